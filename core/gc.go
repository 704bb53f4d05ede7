package core

import "time"

// maxTraverseDepth bounds recursion in mark, mold, and clonify. Exceeding it
// is a fatal stack-overflow condition: the operation aborts rather than
// risking memory corruption on a pathological graph.
const maxTraverseDepth = 4096

// CollectStats describes a single mark-sweep pass.
type CollectStats struct {
	NodesBefore      int
	Marked           int
	Freed            int
	SymbolsForgotten int
	Duration         time.Duration
	Timestamp        time.Time
}

// Collect runs one stop-the-world mark-sweep pass over everything reachable
// from the guard stack, registered root cells, and runtime globals. Returns
// nil without collecting while a GCHold is outstanding. Never concurrent
// with mutation: the runtime model is one logical thread of evaluation.
func (rt *Runtime) Collect() *CollectStats {
	if rt.disable > 0 {
		return nil
	}
	if rt.blackened != 0 {
		panic("Collect: series left colored black by a transient consumer")
	}

	start := time.Now()
	stats := &CollectStats{
		NodesBefore: len(rt.pool.nodes),
		Timestamp:   start,
	}

	// Mark phase: depth-first from every root set.
	for i := range rt.guardCells {
		rt.markCell(&rt.guardCells[i], stats, 0)
	}
	for _, s := range rt.guardNodes {
		rt.markSeries(s, stats, 0)
	}
	for c := range rt.roots {
		rt.markCell(c, stats, 0)
	}
	for i := range rt.globals {
		rt.markCell(&rt.globals[i], stats, 0)
	}

	// Sweep phase: free unmarked managed nodes. Dying symbols leave the
	// intern table first so it never holds a dangling pointer.
	for s := range rt.pool.nodes {
		if s.flags&seriesMarked != 0 || !s.Managed() {
			s.flags &^= seriesMarked
			continue
		}
		if s.sym != nil {
			rt.interns.forget(s)
			stats.SymbolsForgotten++
		}
		rt.pool.release(s)
		stats.Freed++
	}

	rt.pool.allocs = 0
	stats.Duration = time.Since(start)
	rt.lastGC = stats
	rt.log.Debugf("collect: %d nodes, %d marked, %d freed, %d symbols forgotten in %s",
		stats.NodesBefore, stats.Marked, stats.Freed, stats.SymbolsForgotten,
		stats.Duration)
	return stats
}

// LastCollect returns statistics from the most recent pass, or nil if no
// pass has run yet.
func (rt *Runtime) LastCollect() *CollectStats { return rt.lastGC }

// AddRoot registers an external root cell (an evaluator frame slot). The
// cell pointed to is traced on every pass until RemoveRoot.
func (rt *Runtime) AddRoot(c *Cell) {
	rt.roots[c] = struct{}{}
}

// RemoveRoot unregisters an external root cell.
func (rt *Runtime) RemoveRoot(c *Cell) {
	delete(rt.roots, c)
}

// ---------------------------------------------------------------------------
// Mark phase
// ---------------------------------------------------------------------------

// markCell contributes a cell's edges to the traversal. The switch over
// hearts is exhaustive: every kind states exactly which payload slots hold
// nodes, and a kind that must not carry nodes is checked, not assumed.
func (rt *Runtime) markCell(c *Cell, stats *CollectStats, depth int) {
	if depth > maxTraverseDepth {
		panic("gc: stack overflow while marking (graph too deep)")
	}

	switch c.heart {
	case KindNull, KindLogic, KindInteger, KindDecimal, KindPair, KindChar:
		if c.flags&(FlagNode1|FlagNode2) != 0 {
			panic("gc: scalar cell claims a node payload")
		}

	case KindIssue:
		// Inline issue spelling; the node-backed form has heart KindText.
		if c.flags&(FlagNode1|FlagNode2) != 0 {
			panic("gc: inline issue claims a node payload")
		}

	case KindWord, KindSetWord, KindGetWord,
		KindText, KindBinary, KindBitset,
		KindBlock, KindGroup, KindPath, KindMap, KindHandle:
		if c.flags&FlagNode1 == 0 {
			panic("gc: node-backed cell missing its node")
		}
		if c.flags&FlagNode2 != 0 {
			panic("gc: single-node cell claims a second node")
		}
		rt.markSeries(c.node1, stats, depth)

	case KindContext, KindAction:
		rt.markSeries(c.Node(), stats, depth)
		rt.markSeries(c.Node2(), stats, depth)

	case KindEscaped:
		// Deeply quoted value: mark through to the boxed payload.
		rt.markSeries(c.Node(), stats, depth)

	default:
		panic("gc: cell with invalid heart")
	}

	if c.kind.Bindable() && c.binding != nil {
		rt.markSeries(c.binding, stats, depth)
	}
}

// markSeries flags a node reachable and descends into its elements. The
// mark is idempotent: already-marked nodes short-circuit, which is what
// makes cyclic structures safe.
func (rt *Runtime) markSeries(s *Series, stats *CollectStats, depth int) {
	if s == nil {
		return
	}
	if s.flags&seriesMarked != 0 {
		return
	}
	s.flags |= seriesMarked
	stats.Marked++

	switch s.class {
	case ClassBytes:
		// Leaf.
	case ClassCells:
		rt.markSeries(s.link, stats, depth+1)
		for i := range s.cells {
			rt.markCell(&s.cells[i], stats, depth+1)
		}
	case ClassSymbols:
		for _, sym := range s.syms {
			rt.markSeries(sym, stats, depth+1)
		}
	case ClassNodes:
		for _, n := range s.nodes {
			rt.markSeries(n, stats, depth+1)
		}
	}
}

// ---------------------------------------------------------------------------
// Color flip
// ---------------------------------------------------------------------------

// The black/white color bit is separate bookkeeping from the collector's
// mark bit, for consumers that need transient cycle tracking of their own.
// Every series a consumer blackens must be whitened again before the next
// collection; Collect and Shutdown check the balance.

// Blacken colors a series black. Returns false if it was already black.
func (rt *Runtime) Blacken(s *Series) bool {
	if s.flags&seriesBlack != 0 {
		return false
	}
	s.flags |= seriesBlack
	rt.blackened++
	return true
}

// Whiten restores a series to the canonical white state.
func (rt *Runtime) Whiten(s *Series) {
	if s.flags&seriesBlack == 0 {
		panic("Whiten: series is not black")
	}
	s.flags &^= seriesBlack
	rt.blackened--
}

// IsBlack reports whether the series is currently colored black.
func (s *Series) IsBlack() bool { return s.flags&seriesBlack != 0 }
