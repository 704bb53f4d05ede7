package core

// Clonify performs a structural copy of v. The series behind a copyable
// kind is always shallow-copied; kinds additionally present in deep are
// recursed into, copying their elements the same way. Quote levels are
// stripped before inspection and reapplied after, so cloning behaves
// identically at any quote depth. Actions are never deepened, since
// duplicating executable identity has no defined semantics, and sequences
// come out frozen again. The copies are managed.
func (rt *Runtime) Clonify(v Cell, deep KindMask) Cell {
	// Partially built copies are unreachable from any root until Clonify
	// returns; collection is held off for the duration.
	defer rt.DisableGC().Release()
	return rt.clonify(v, deep, 0)
}

func (rt *Runtime) clonify(v Cell, deep KindMask, depth int) Cell {
	if depth > maxTraverseDepth {
		panic("clonify: stack overflow while copying (value too deep)")
	}

	quotes := v.QuoteDepth()
	inner := v
	if quotes > 0 {
		inner = rt.Unquote(v, quotes)
	}

	out := rt.clonifyInner(inner, deep, depth)

	if quotes > 0 {
		out = rt.Quote(out, quotes)
	}
	return out
}

func (rt *Runtime) clonifyInner(v Cell, deep KindMask, depth int) Cell {
	if !v.kind.Copyable() {
		return v // scalars, words, handles, actions keep their identity
	}

	switch v.kind {
	case KindText, KindBinary, KindBitset:
		return rt.copyBytesCell(v)

	case KindBlock, KindGroup, KindMap:
		fresh := rt.copyCells(v.node1, deep, depth)
		v.node1 = fresh
		return v

	case KindPath:
		fresh := rt.copyCells(v.node1, deep, depth)
		fresh.Freeze() // sequences are always immutable
		v.node1 = fresh
		return v

	case KindContext:
		return rt.copyContext(v, deep, depth)

	default:
		panic("clonify: copyable kind without a copy rule")
	}
}

func (rt *Runtime) copyBytesCell(v Cell) Cell {
	src := v.node1
	fresh := rt.AllocSeries(ClassBytes, src.Len(), SeriesManaged)
	fresh.AppendBytes(src.Bytes())
	v.node1 = fresh
	return v
}

// copyCells shallow-copies a cell array, then deepens any element whose
// kind is selected by the mask.
func (rt *Runtime) copyCells(src *Series, deep KindMask, depth int) *Series {
	fresh := rt.AllocSeries(ClassCells, src.Len(), SeriesManaged)
	for i := 0; i < src.Len(); i++ {
		item := src.CellAt(i)
		if deep.Has(item.kind) {
			item = rt.clonify(item, deep, depth+1)
		}
		fresh.AppendCell(item)
	}
	return fresh
}

// copyContext copies a context's varlist and reallocates its keylist; the
// two travel together. The phase companion node is shared, not copied.
func (rt *Runtime) copyContext(v Cell, deep KindMask, depth int) Cell {
	varlist := v.node1
	keylist := varlist.Link()

	freshKeys := rt.AllocSeries(ClassSymbols, keylist.Len(), SeriesManaged)
	for i := 0; i < keylist.Len(); i++ {
		freshKeys.AppendSymbol(keylist.SymbolAt(i))
	}

	freshVars := rt.AllocSeries(ClassCells, varlist.Len(), SeriesManaged)
	for i := 0; i < varlist.Len(); i++ {
		item := varlist.CellAt(i)
		if deep.Has(item.kind) {
			item = rt.clonify(item, deep, depth+1)
		}
		freshVars.AppendCell(item)
	}
	freshVars.SetLink(freshKeys)

	v.node1 = freshVars
	return v
}
