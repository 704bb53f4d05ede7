package core

// Convenience constructors for values whose backing series the runtime
// allocates. These are what embedders (the scanner, the REPL, tests) build
// values with; the Cell constructors in cell.go wrap series the caller
// already owns.

// NewText allocates a managed text value.
func (rt *Runtime) NewText(s string) Cell {
	b := rt.AllocSeries(ClassBytes, len(s), SeriesManaged)
	b.AppendString(s)
	return TextCell(b)
}

// NewBinary allocates a managed binary value.
func (rt *Runtime) NewBinary(data []byte) Cell {
	b := rt.AllocSeries(ClassBytes, len(data), SeriesManaged)
	b.AppendBytes(data)
	return BinaryCell(b)
}

// NewIssue allocates an issue value, node-backed only when the spelling is
// too long to live inline in the cell.
func (rt *Runtime) NewIssue(spelling string) Cell {
	if len(spelling) <= maxInlineIssue {
		return IssueCell([]byte(spelling), nil)
	}
	b := rt.AllocSeries(ClassBytes, len(spelling), SeriesManaged)
	b.AppendString(spelling)
	return IssueCell([]byte(spelling), b)
}

// NewBlock allocates a managed block holding the given items.
func (rt *Runtime) NewBlock(items ...Cell) Cell {
	return ArrayCell(KindBlock, rt.newArray(items))
}

// NewGroup allocates a managed group holding the given items.
func (rt *Runtime) NewGroup(items ...Cell) Cell {
	return ArrayCell(KindGroup, rt.newArray(items))
}

// NewPath allocates a managed path from the given items and freezes it.
// Panics if an item is itself a sequence.
func (rt *Runtime) NewPath(items ...Cell) Cell {
	arr := rt.newArray(items)
	arr.Freeze()
	return PathCell(arr)
}

// NewMap allocates a managed map from alternating key/value cells.
func (rt *Runtime) NewMap(pairs ...Cell) Cell {
	if len(pairs)%2 != 0 {
		panic("NewMap: odd number of key/value cells")
	}
	return MapCell(rt.newArray(pairs))
}

// NewContext allocates a managed context with the given keys and values.
func (rt *Runtime) NewContext(keys []*Series, vals []Cell) Cell {
	if len(keys) != len(vals) {
		panic("NewContext: key/value length mismatch")
	}
	// Two allocations before anything is reachable; hold off collection.
	defer rt.DisableGC().Release()
	keylist := rt.AllocSeries(ClassSymbols, len(keys), SeriesManaged)
	for _, k := range keys {
		keylist.AppendSymbol(k)
	}
	varlist := rt.newArray(vals)
	varlist.SetLink(keylist)
	return ContextCell(varlist, nil)
}

// NewHandle allocates a managed handle with the given identity.
func (rt *Runtime) NewHandle(id int64) Cell {
	singular := rt.AllocSeries(ClassCells, 1, SeriesManaged)
	singular.AppendCell(IntegerCell(id))
	return HandleCell(singular, id)
}

func (rt *Runtime) newArray(items []Cell) *Series {
	// The array is unreachable until the caller stores the returned cell;
	// a pressure collection mid-fill must not reap it.
	defer rt.DisableGC().Release()
	arr := rt.AllocSeries(ClassCells, len(items), SeriesManaged)
	for _, item := range items {
		arr.AppendCell(item)
	}
	return arr
}
