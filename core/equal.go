package core

// Equal reports structural equality of two values: same kind, same quote
// depth and isotope state, and element-wise equal payloads. Series identity
// is not compared (two blocks with equal contents are equal) except for
// handles and actions, whose identity is their meaning. Words compare by
// exact spelling, so synonyms of the same canonical are not Equal.
func Equal(a, b Cell) bool {
	return equalCells(a, b, 0)
}

func equalCells(a, b Cell, depth int) bool {
	if depth > maxTraverseDepth {
		panic("Equal: stack overflow while comparing (value too deep)")
	}
	if a.kind != b.kind || a.quote != b.quote || a.IsIsotope() != b.IsIsotope() {
		return false
	}
	if a.heart == KindEscaped || b.heart == KindEscaped {
		if a.heart != b.heart {
			return false
		}
		return equalCells(a.node1.CellAt(0), b.node1.CellAt(0), depth+1)
	}

	switch a.kind {
	case KindNull:
		return true
	case KindLogic, KindInteger, KindPair, KindChar:
		return a.scalar == b.scalar
	case KindDecimal:
		return a.decimal == b.decimal
	case KindWord, KindSetWord, KindGetWord:
		return string(a.node1.bytes) == string(b.node1.bytes)
	case KindIssue:
		return string(a.IssueBytes()) == string(b.IssueBytes())
	case KindText, KindBinary, KindBitset:
		return string(a.node1.bytes) == string(b.node1.bytes)
	case KindBlock, KindGroup, KindPath, KindMap:
		return equalArrays(a.node1, b.node1, depth)
	case KindContext:
		if !equalArrays(a.node1, b.node1, depth) {
			return false
		}
		ak, bk := a.node1.Link(), b.node1.Link()
		if ak.Len() != bk.Len() {
			return false
		}
		for i := 0; i < ak.Len(); i++ {
			if string(ak.SymbolAt(i).bytes) != string(bk.SymbolAt(i).bytes) {
				return false
			}
		}
		return true
	case KindHandle, KindAction:
		return a.node1 == b.node1
	default:
		panic("Equal: cell with invalid kind")
	}
}

func equalArrays(a, b *Series, depth int) bool {
	if a == b {
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !equalCells(a.CellAt(i), b.CellAt(i), depth+1) {
			return false
		}
	}
	return true
}
