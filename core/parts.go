package core

// CellParts is the exploded view of a cell used by serializers (the
// snapshot encoder). It exposes exactly the state a faithful reconstruction
// needs and nothing the runtime relies on internally.
type CellParts struct {
	Kind    Kind
	Heart   Kind
	Quote   uint8
	Flags   CellFlags
	Scalar  int64
	Decimal float64
	Node1   *Series
	Node2   *Series
	Binding *Series
	Index   int
}

// Parts explodes a cell for serialization.
func (c Cell) Parts() CellParts {
	return CellParts{
		Kind:    c.kind,
		Heart:   c.heart,
		Quote:   c.quote,
		Flags:   c.flags,
		Scalar:  c.scalar,
		Decimal: c.decimal,
		Node1:   c.node1,
		Node2:   c.node2,
		Binding: c.binding,
		Index:   c.index,
	}
}

// CellFromParts reassembles a cell from its exploded view, checking the
// node-flag consistency the collector depends on. Intended for
// deserializers; everything else should use the typed constructors.
func CellFromParts(p CellParts) Cell {
	if p.Kind >= NumKinds || p.Heart >= NumKinds {
		panic("CellFromParts: invalid kind")
	}
	if (p.Flags&FlagNode1 != 0) != (p.Node1 != nil) {
		panic("CellFromParts: node1 flag and payload disagree")
	}
	if (p.Flags&FlagNode2 != 0) != (p.Node2 != nil) {
		panic("CellFromParts: node2 flag and payload disagree")
	}
	if p.Binding != nil && !p.Kind.Bindable() {
		panic("CellFromParts: binding on a non-bindable kind")
	}
	return Cell{
		kind:    p.Kind,
		heart:   p.Heart,
		quote:   p.Quote,
		flags:   p.Flags,
		scalar:  p.Scalar,
		decimal: p.Decimal,
		node1:   p.Node1,
		node2:   p.Node2,
		binding: p.Binding,
		index:   p.Index,
	}
}
