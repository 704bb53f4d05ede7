// Package snapshot serializes a reachable cell/series graph to canonical
// CBOR and restores it into a runtime. Snapshots are content-addressed by
// the SHA-256 of their encoding and can be kept in a SQLite-backed catalog.
package snapshot

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/kestrel-lang/kestrel/core"
)

// cborEncMode uses canonical encoding so equal snapshots hash equally.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is one captured value graph. Series are stored in a flat table
// indexed by position; cells refer to series by 1-based index (0 = none),
// which makes shared and cyclic structure explicit in the encoding.
type Snapshot struct {
	ID        string       `cbor:"1,keyasint"`
	CreatedAt time.Time    `cbor:"2,keyasint"`
	Root      WireCell     `cbor:"3,keyasint"`
	Series    []WireSeries `cbor:"4,keyasint"`
}

// WireSeries is the encoded form of one series node.
type WireSeries struct {
	Class  uint8      `cbor:"1,keyasint"`
	Frozen bool       `cbor:"2,keyasint,omitempty"`
	Symbol bool       `cbor:"3,keyasint,omitempty"` // re-interned on decode
	Bytes  []byte     `cbor:"4,keyasint,omitempty"`
	Cells  []WireCell `cbor:"5,keyasint,omitempty"`
	Refs   []uint32   `cbor:"6,keyasint,omitempty"` // keylists and pointer arrays
	Link   uint32     `cbor:"7,keyasint,omitempty"` // companion node (keylist)
}

// WireCell is the encoded form of one cell.
type WireCell struct {
	Kind    uint8   `cbor:"1,keyasint"`
	Heart   uint8   `cbor:"2,keyasint"`
	Quote   uint8   `cbor:"3,keyasint,omitempty"`
	Flags   uint16  `cbor:"4,keyasint,omitempty"`
	Scalar  int64   `cbor:"5,keyasint,omitempty"`
	Decimal float64 `cbor:"6,keyasint,omitempty"`
	Node1   uint32  `cbor:"7,keyasint,omitempty"`
	Node2   uint32  `cbor:"8,keyasint,omitempty"`
	Binding uint32  `cbor:"9,keyasint,omitempty"`
	Index   int64   `cbor:"10,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// Capture walks the graph reachable from root and returns its snapshot.
func Capture(root core.Cell) (*Snapshot, error) {
	enc := &encoder{index: make(map[*core.Series]uint32)}
	wireRoot := enc.cell(root)

	snap := &Snapshot{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Root:      wireRoot,
		Series:    make([]WireSeries, len(enc.order)),
	}
	// Contents are filled after discovery so cyclic references resolve to
	// already-assigned indices.
	for i, s := range enc.order {
		snap.Series[i] = enc.series(s)
	}
	return snap, nil
}

type encoder struct {
	index map[*core.Series]uint32 // series -> 1-based index
	order []*core.Series
}

// ref assigns (or returns) the 1-based index of a series, discovering it on
// first sight. Discovery is index assignment only; element encoding happens
// in a second pass, so cycles terminate.
func (e *encoder) ref(s *core.Series) uint32 {
	if s == nil {
		return 0
	}
	if idx, ok := e.index[s]; ok {
		return idx
	}
	e.order = append(e.order, s)
	idx := uint32(len(e.order))
	e.index[s] = idx

	// Force discovery of everything reachable from this node.
	switch s.Class() {
	case core.ClassCells:
		e.ref(s.Link())
		for i := 0; i < s.Len(); i++ {
			e.cell(s.CellAt(i))
		}
	case core.ClassSymbols:
		for i := 0; i < s.Len(); i++ {
			e.ref(s.SymbolAt(i))
		}
	case core.ClassNodes:
		for i := 0; i < s.Len(); i++ {
			e.ref(s.NodeAt(i))
		}
	}
	return idx
}

func (e *encoder) cell(c core.Cell) WireCell {
	p := c.Parts()
	return WireCell{
		Kind:    uint8(p.Kind),
		Heart:   uint8(p.Heart),
		Quote:   p.Quote,
		Flags:   uint16(p.Flags),
		Scalar:  p.Scalar,
		Decimal: p.Decimal,
		Node1:   e.ref(p.Node1),
		Node2:   e.ref(p.Node2),
		Binding: e.ref(p.Binding),
		Index:   int64(p.Index),
	}
}

func (e *encoder) series(s *core.Series) WireSeries {
	w := WireSeries{
		Class:  uint8(s.Class()),
		Frozen: s.Frozen(),
		Symbol: s.IsSymbol(),
	}
	switch s.Class() {
	case core.ClassBytes:
		w.Bytes = append([]byte(nil), s.Bytes()...)
	case core.ClassCells:
		w.Link = e.index[s.Link()]
		w.Cells = make([]WireCell, s.Len())
		for i := 0; i < s.Len(); i++ {
			w.Cells[i] = e.cell(s.CellAt(i))
		}
	case core.ClassSymbols:
		w.Refs = make([]uint32, s.Len())
		for i := 0; i < s.Len(); i++ {
			w.Refs[i] = e.index[s.SymbolAt(i)]
		}
	case core.ClassNodes:
		w.Refs = make([]uint32, s.Len())
		for i := 0; i < s.Len(); i++ {
			w.Refs[i] = e.index[s.NodeAt(i)]
		}
	}
	return w
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

// Restore rebuilds a snapshot's graph inside rt and returns the root value.
// Symbols are re-interned rather than copied, so restored words share
// identity with words already live in the runtime.
func Restore(rt *core.Runtime, snap *Snapshot) (core.Cell, error) {
	// The graph is unreachable from any root until we hand it back.
	defer rt.DisableGC().Release()

	d := &decoder{rt: rt, nodes: make([]*core.Series, len(snap.Series))}

	// Pass 1: materialize every node so references can be wired.
	for i, w := range snap.Series {
		s, err := d.materialize(w)
		if err != nil {
			return core.NullCell(), fmt.Errorf("snapshot: series %d: %w", i+1, err)
		}
		d.nodes[i] = s
	}
	// Pass 2: fill contents and wire references.
	for i, w := range snap.Series {
		if err := d.fill(d.nodes[i], w); err != nil {
			return core.NullCell(), fmt.Errorf("snapshot: series %d: %w", i+1, err)
		}
	}
	// Pass 3: freeze what was frozen. Deferred so fills can mutate.
	for i, w := range snap.Series {
		if w.Frozen {
			d.nodes[i].Freeze()
		}
	}
	return d.cell(snap.Root)
}

type decoder struct {
	rt    *core.Runtime
	nodes []*core.Series
}

func (d *decoder) materialize(w WireSeries) (*core.Series, error) {
	if w.Symbol {
		sym, err := d.rt.Interns().Intern(w.Bytes)
		if err != nil {
			return nil, err
		}
		return sym, nil
	}
	switch core.SeriesClass(w.Class) {
	case core.ClassBytes:
		s := d.rt.AllocSeries(core.ClassBytes, len(w.Bytes), core.SeriesManaged)
		s.AppendBytes(w.Bytes)
		return s, nil
	case core.ClassCells:
		return d.rt.AllocSeries(core.ClassCells, len(w.Cells), core.SeriesManaged), nil
	case core.ClassSymbols:
		return d.rt.AllocSeries(core.ClassSymbols, len(w.Refs), core.SeriesManaged), nil
	case core.ClassNodes:
		return d.rt.AllocSeries(core.ClassNodes, len(w.Refs), core.SeriesManaged), nil
	default:
		return nil, fmt.Errorf("invalid series class %d", w.Class)
	}
}

func (d *decoder) fill(s *core.Series, w WireSeries) error {
	if w.Symbol {
		return nil // interned, already complete
	}
	switch core.SeriesClass(w.Class) {
	case core.ClassBytes:
		return nil
	case core.ClassCells:
		if w.Link != 0 {
			link, err := d.node(w.Link)
			if err != nil {
				return err
			}
			s.SetLink(link)
		}
		for _, wc := range w.Cells {
			c, err := d.cell(wc)
			if err != nil {
				return err
			}
			s.AppendCell(c)
		}
	case core.ClassSymbols:
		for _, ref := range w.Refs {
			sym, err := d.node(ref)
			if err != nil {
				return err
			}
			s.AppendSymbol(sym)
		}
	case core.ClassNodes:
		for _, ref := range w.Refs {
			n, err := d.node(ref)
			if err != nil {
				return err
			}
			s.PushNode(n)
		}
	}
	return nil
}

func (d *decoder) node(ref uint32) (*core.Series, error) {
	if ref == 0 {
		return nil, nil
	}
	if int(ref) > len(d.nodes) {
		return nil, fmt.Errorf("snapshot: series reference %d out of range", ref)
	}
	return d.nodes[ref-1], nil
}

func (d *decoder) cell(w WireCell) (core.Cell, error) {
	n1, err := d.node(w.Node1)
	if err != nil {
		return core.NullCell(), err
	}
	n2, err := d.node(w.Node2)
	if err != nil {
		return core.NullCell(), err
	}
	binding, err := d.node(w.Binding)
	if err != nil {
		return core.NullCell(), err
	}
	return core.CellFromParts(core.CellParts{
		Kind:    core.Kind(w.Kind),
		Heart:   core.Kind(w.Heart),
		Quote:   w.Quote,
		Flags:   core.CellFlags(w.Flags),
		Scalar:  w.Scalar,
		Decimal: w.Decimal,
		Node1:   n1,
		Node2:   n2,
		Binding: binding,
		Index:   int(w.Index),
	}), nil
}

// ---------------------------------------------------------------------------
// Wire format and content addressing
// ---------------------------------------------------------------------------

// Marshal serializes a snapshot to canonical CBOR bytes.
func Marshal(snap *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snap)
}

// Unmarshal deserializes a snapshot from CBOR bytes.
func Unmarshal(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &snap, nil
}

// Hash returns the content address of an encoded snapshot.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}
