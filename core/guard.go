package core

// GuardScope protects values from collection for a lexical span. Cells and
// series pushed through a scope are GC roots until Release, which must run
// on every exit path (use defer); the guard stack is strictly balanced.
type GuardScope struct {
	rt       *Runtime
	cellMark int
	nodeMark int
	released bool
}

// NewGuard opens a guard scope at the current stack depths.
func (rt *Runtime) NewGuard() *GuardScope {
	return &GuardScope{
		rt:       rt,
		cellMark: len(rt.guardCells),
		nodeMark: len(rt.guardNodes),
	}
}

// Cell roots a cell value for the lifetime of the scope.
func (g *GuardScope) Cell(c Cell) {
	if g.released {
		panic("GuardScope.Cell: scope already released")
	}
	g.rt.guardCells = append(g.rt.guardCells, c)
}

// Series roots a series node for the lifetime of the scope.
func (g *GuardScope) Series(s *Series) {
	if g.released {
		panic("GuardScope.Series: scope already released")
	}
	g.rt.guardNodes = append(g.rt.guardNodes, s)
}

// Release pops everything the scope pushed. Scopes must release in LIFO
// order; anything else is an unbalanced guard stack, which is fatal.
func (g *GuardScope) Release() {
	if g.released {
		panic("GuardScope.Release: scope already released")
	}
	g.released = true
	if len(g.rt.guardCells) < g.cellMark || len(g.rt.guardNodes) < g.nodeMark {
		panic("GuardScope.Release: guard stack released out of order")
	}
	g.rt.guardCells = g.rt.guardCells[:g.cellMark]
	g.rt.guardNodes = g.rt.guardNodes[:g.nodeMark]
}

// ---------------------------------------------------------------------------
// GC disable bracket
// ---------------------------------------------------------------------------

// GCHold suspends collection while held. Holds nest; collection resumes when
// every hold has been released. Like guard scopes, a hold must be released
// on every exit path.
type GCHold struct {
	rt       *Runtime
	released bool
}

// DisableGC raises the collection-disable counter and returns the hold that
// lowers it again.
func (rt *Runtime) DisableGC() *GCHold {
	rt.disable++
	return &GCHold{rt: rt}
}

// Release lowers the disable counter. Releasing twice panics.
func (h *GCHold) Release() {
	if h.released {
		panic("GCHold.Release: hold already released")
	}
	h.released = true
	h.rt.disable--
}
