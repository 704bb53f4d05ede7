package core

// Pool tracks every live series node so the collector can sweep the ones no
// root reaches. It also counts allocations since the last collection and
// triggers a pass when the pressure threshold is crossed.
type Pool struct {
	rt      *Runtime
	nodes   map[*Series]struct{}
	allocs  int // allocations since the last collection
	trigger int // allocation count that forces a collection; 0 disables
}

func newPool(rt *Runtime, trigger int) *Pool {
	return &Pool{
		rt:      rt,
		nodes:   make(map[*Series]struct{}),
		trigger: trigger,
	}
}

// NumNodes returns the number of live series nodes.
func (p *Pool) NumNodes() int { return len(p.nodes) }

// AllocSeries returns a zeroed series node of the given class and capacity.
// Pass SeriesManaged to hand ownership to the collector immediately;
// otherwise the node is unmanaged and must be freed (or promoted) by the
// caller. Only SeriesManaged and SeriesPow2 may be requested at allocation.
func (rt *Runtime) AllocSeries(class SeriesClass, capacity int, flags SeriesFlags) *Series {
	if capacity < 0 {
		panic("AllocSeries: negative capacity")
	}
	if flags&^(SeriesManaged|SeriesPow2) != 0 {
		panic("AllocSeries: invalid allocation flags")
	}

	p := rt.pool
	p.allocs++
	if p.trigger > 0 && p.allocs >= p.trigger && rt.disable == 0 {
		rt.Collect()
	}

	if flags&SeriesPow2 != 0 && capacity > 0 {
		capacity = ceilPow2(capacity)
	}

	s := &Series{class: class, flags: flags}
	switch class {
	case ClassBytes:
		if capacity <= inlineBytes {
			s.bytes = s.inline[:0]
			s.flags |= seriesInline
		} else {
			s.bytes = make([]byte, 0, capacity)
		}
	case ClassCells:
		s.cells = make([]Cell, 0, capacity)
	case ClassSymbols:
		s.syms = make([]*Series, 0, capacity)
	case ClassNodes:
		s.nodes = make([]*Series, 0, capacity)
	default:
		panic("AllocSeries: invalid series class")
	}

	p.nodes[s] = struct{}{}
	return s
}

// FreeSeries releases an unmanaged node. Freeing a managed node is a
// programming error: the collector owns it.
func (rt *Runtime) FreeSeries(s *Series) {
	if s.Managed() {
		panic("FreeSeries: series is managed")
	}
	rt.pool.release(s)
}

// Manage promotes an unmanaged node to collector ownership. A node may be
// promoted exactly once; promoting a managed node panics.
func (rt *Runtime) Manage(s *Series) *Series {
	if s.Managed() {
		panic("Manage: series is already managed")
	}
	s.flags |= SeriesManaged
	return s
}

// release drops a node from the pool and clears its storage so stale slices
// can't keep large buffers alive.
func (p *Pool) release(s *Series) {
	if _, ok := p.nodes[s]; !ok {
		panic("Pool: releasing unknown series")
	}
	delete(p.nodes, s)
	s.bytes = nil
	s.cells = nil
	s.syms = nil
	s.nodes = nil
	s.link = nil
	s.book = nil
	s.sym = nil
}
