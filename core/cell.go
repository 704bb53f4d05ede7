package core

import "math"

// Cell is the fixed-size tagged value slot, the unit of value representation.
//
// A cell is a plain value: it is copied freely between array elements, stack
// locals, and frame slots. The garbage collector never traces cells directly;
// it traces the Series that contain them, plus the explicit root sets. A
// cell's payload slots hold either inline scalar data or references to Series
// nodes, and the flags record which interpretation applies so the collector
// can walk the graph without guessing.
//
// Kind vs heart: kind is the user-visible datatype, heart is the storage
// layout. They differ in exactly two cases: a long issue is stored as a text
// series (kind=issue, heart=text), and a deeply quoted value boxes its
// payload (heart=escaped). Everywhere else heart == kind, and every accessor
// checks the invariant it depends on.
type Cell struct {
	kind  Kind
	heart Kind
	quote uint8
	flags CellFlags

	scalar  int64   // inline scalar payload (integer, char, logic, packed pair, short issue)
	decimal float64 // inline float payload

	node1   *Series // first node slot; live iff FlagNode1
	node2   *Series // second node slot; live iff FlagNode2
	binding *Series // resolution context; bindable kinds only

	index int // position within node1 for series-valued cells
}

// CellFlags records per-cell bits the collector and renderer depend on.
type CellFlags uint16

const (
	// FlagNode1 and FlagNode2 mark which payload slots hold series nodes.
	// The mark phase trusts these bits absolutely.
	FlagNode1 CellFlags = 1 << iota
	FlagNode2

	// FlagConst makes the value a read-only view of its series.
	FlagConst

	// FlagIsotope marks an evaluator-internal "unstable" variant of the
	// value, distinguished from its meta form.
	FlagIsotope

	// FlagNewline asks the mold engine to emit a line break before this
	// value when it appears inside an array.
	FlagNewline
)

// MaxInlineQuote is the deepest quote level representable without boxing.
const MaxInlineQuote = 3

// ---------------------------------------------------------------------------
// Scalar constructors
// ---------------------------------------------------------------------------

// NullCell returns the null value.
func NullCell() Cell {
	return Cell{kind: KindNull, heart: KindNull}
}

// LogicCell returns a logic (boolean) value.
func LogicCell(b bool) Cell {
	c := Cell{kind: KindLogic, heart: KindLogic}
	if b {
		c.scalar = 1
	}
	return c
}

// IntegerCell returns a 64-bit integer value.
func IntegerCell(n int64) Cell {
	return Cell{kind: KindInteger, heart: KindInteger, scalar: n}
}

// DecimalCell returns a 64-bit float value.
func DecimalCell(f float64) Cell {
	return Cell{kind: KindDecimal, heart: KindDecimal, decimal: f}
}

// PairCell returns a pair value with two packed 32-bit components.
func PairCell(x, y int32) Cell {
	packed := int64(uint64(uint32(x)) | uint64(uint32(y))<<32)
	return Cell{kind: KindPair, heart: KindPair, scalar: packed}
}

// CharCell returns a character value.
func CharCell(r rune) Cell {
	return Cell{kind: KindChar, heart: KindChar, scalar: int64(r)}
}

// ---------------------------------------------------------------------------
// Node-backed constructors
// ---------------------------------------------------------------------------

// WordCell returns a word of the given flavor referring to an interned
// symbol. Panics if kind is not a word flavor or sym is not a symbol series.
func WordCell(kind Kind, sym *Series) Cell {
	if !kind.AnyWord() {
		panic("WordCell: not a word kind")
	}
	if sym.sym == nil {
		panic("WordCell: series is not an interned symbol")
	}
	return Cell{kind: kind, heart: kind, flags: FlagNode1, node1: sym}
}

// TextCell returns a text value over a byte series.
func TextCell(s *Series) Cell {
	mustClass(s, ClassBytes, "TextCell")
	return Cell{kind: KindText, heart: KindText, flags: FlagNode1, node1: s}
}

// BinaryCell returns a binary value over a byte series.
func BinaryCell(s *Series) Cell {
	mustClass(s, ClassBytes, "BinaryCell")
	return Cell{kind: KindBinary, heart: KindBinary, flags: FlagNode1, node1: s}
}

// BitsetCell returns a bitset value over a byte series.
func BitsetCell(s *Series) Cell {
	mustClass(s, ClassBytes, "BitsetCell")
	return Cell{kind: KindBitset, heart: KindBitset, flags: FlagNode1, node1: s}
}

// ArrayCell returns a block or group value over a cell array.
func ArrayCell(kind Kind, arr *Series) Cell {
	if kind != KindBlock && kind != KindGroup {
		panic("ArrayCell: not a block or group kind")
	}
	mustClass(arr, ClassCells, "ArrayCell")
	return Cell{kind: kind, heart: kind, flags: FlagNode1, node1: arr}
}

// PathCell returns a path value over a frozen cell array. Paths are
// sequences: the array must already be frozen and must not directly contain
// another sequence.
func PathCell(arr *Series) Cell {
	mustClass(arr, ClassCells, "PathCell")
	if !arr.Frozen() {
		panic("PathCell: sequence array must be frozen")
	}
	for i := 0; i < arr.Len(); i++ {
		if arr.CellAt(i).kind.Sequence() {
			panic("PathCell: sequence may not directly nest a sequence")
		}
	}
	return Cell{kind: KindPath, heart: KindPath, flags: FlagNode1, node1: arr}
}

// MapCell returns a map value over an alternating key/value pairlist.
func MapCell(pairlist *Series) Cell {
	mustClass(pairlist, ClassCells, "MapCell")
	return Cell{kind: KindMap, heart: KindMap, flags: FlagNode1, node1: pairlist}
}

// ContextCell returns a context value. The varlist holds the variable cells
// and must have its companion keylist attached via Series.SetLink. The
// optional phase node (may be nil) identifies the frame phase or label.
func ContextCell(varlist, phase *Series) Cell {
	mustClass(varlist, ClassCells, "ContextCell")
	if varlist.Link() == nil {
		panic("ContextCell: varlist has no keylist")
	}
	c := Cell{kind: KindContext, heart: KindContext, flags: FlagNode1, node1: varlist}
	if phase != nil {
		c.flags |= FlagNode2
		c.node2 = phase
	}
	return c
}

// HandleCell returns a handle value. The singular node gives all copies of
// the handle a shared identity.
func HandleCell(singular *Series, id int64) Cell {
	mustClass(singular, ClassCells, "HandleCell")
	return Cell{kind: KindHandle, heart: KindHandle, flags: FlagNode1,
		node1: singular, scalar: id}
}

// ActionCell returns an action (function) value with a body array and a
// parameter keylist.
func ActionCell(body, params *Series) Cell {
	mustClass(body, ClassCells, "ActionCell")
	mustClass(params, ClassSymbols, "ActionCell")
	return Cell{kind: KindAction, heart: KindAction,
		flags: FlagNode1 | FlagNode2, node1: body, node2: params}
}

func mustClass(s *Series, class SeriesClass, who string) {
	if s == nil {
		panic(who + ": nil series")
	}
	if s.class != class {
		panic(who + ": wrong series class")
	}
}

// ---------------------------------------------------------------------------
// Issue cells
// ---------------------------------------------------------------------------

// maxInlineIssue is the longest issue spelling stored entirely in the cell.
const maxInlineIssue = 7

// IssueCell returns an issue value. Short spellings live inline in the cell
// (heart=issue, no node); longer spellings are stored in the given byte
// series (heart=text). Exactly one of the representations is used, which is
// the one case besides quoting where kind and heart diverge.
func IssueCell(spelling []byte, backing *Series) Cell {
	if len(spelling) <= maxInlineIssue {
		var packed uint64
		for i, b := range spelling {
			packed |= uint64(b) << (8 * (i + 1))
		}
		packed |= uint64(len(spelling))
		return Cell{kind: KindIssue, heart: KindIssue, scalar: int64(packed)}
	}
	mustClass(backing, ClassBytes, "IssueCell")
	return Cell{kind: KindIssue, heart: KindText, flags: FlagNode1, node1: backing}
}

// IssueBytes returns the spelling of an issue value.
func (c Cell) IssueBytes() []byte {
	if c.kind != KindIssue {
		panic("Cell.IssueBytes: not an issue")
	}
	if c.heart == KindText {
		return c.node1.Bytes()
	}
	packed := uint64(c.scalar)
	n := int(packed & 0xFF)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(packed >> (8 * (i + 1)))
	}
	return out
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the user-visible datatype of the cell.
func (c Cell) Kind() Kind { return c.kind }

// Heart returns the storage layout kind.
func (c Cell) Heart() Kind { return c.heart }

// Logic returns the cell as a bool. Panics if not a logic value.
func (c Cell) Logic() bool {
	if c.kind != KindLogic {
		panic("Cell.Logic: not a logic value")
	}
	return c.scalar != 0
}

// Integer returns the cell as an int64. Panics if not an integer.
func (c Cell) Integer() int64 {
	if c.kind != KindInteger {
		panic("Cell.Integer: not an integer")
	}
	return c.scalar
}

// Decimal returns the cell as a float64. Panics if not a decimal.
func (c Cell) Decimal() float64 {
	if c.kind != KindDecimal {
		panic("Cell.Decimal: not a decimal")
	}
	return c.decimal
}

// Pair returns the two packed components. Panics if not a pair.
func (c Cell) Pair() (x, y int32) {
	if c.kind != KindPair {
		panic("Cell.Pair: not a pair")
	}
	packed := uint64(c.scalar)
	return int32(uint32(packed)), int32(uint32(packed >> 32))
}

// Char returns the cell as a rune. Panics if not a char.
func (c Cell) Char() rune {
	if c.kind != KindChar {
		panic("Cell.Char: not a char")
	}
	return rune(c.scalar)
}

// Symbol returns the interned symbol a word refers to. Panics if the cell is
// not a word flavor.
func (c Cell) Symbol() *Series {
	if !c.kind.AnyWord() {
		panic("Cell.Symbol: not a word")
	}
	return c.node1
}

// Node returns the cell's primary series node, or nil when the first payload
// slot holds inline data.
func (c Cell) Node() *Series {
	if c.flags&FlagNode1 == 0 {
		return nil
	}
	return c.node1
}

// Node2 returns the cell's secondary series node, or nil when absent.
func (c Cell) Node2() *Series {
	if c.flags&FlagNode2 == 0 {
		return nil
	}
	return c.node2
}

// Binding returns the cell's resolution context, or nil when unbound.
// Panics if the kind is not bindable.
func (c Cell) Binding() *Series {
	if !c.kind.Bindable() {
		panic("Cell.Binding: kind is not bindable")
	}
	return c.binding
}

// Bind returns a copy of the cell resolved against ctx. Panics if the kind
// is not bindable.
func (c Cell) Bind(ctx *Series) Cell {
	if !c.kind.Bindable() {
		panic("Cell.Bind: kind is not bindable")
	}
	c.binding = ctx
	return c
}

// Index returns the position of a series-valued cell within its series.
func (c Cell) Index() int { return c.index }

// AtIndex returns a copy of the cell repositioned to index i.
func (c Cell) AtIndex(i int) Cell {
	if c.flags&FlagNode1 == 0 {
		panic("Cell.AtIndex: cell has no series payload")
	}
	c.index = i
	return c
}

// ---------------------------------------------------------------------------
// Flag accessors
// ---------------------------------------------------------------------------

// IsIsotope reports whether the isotope flag is set.
func (c Cell) IsIsotope() bool { return c.flags&FlagIsotope != 0 }

// Isotopic returns a copy with the isotope flag set.
func (c Cell) Isotopic() Cell {
	c.flags |= FlagIsotope
	return c
}

// Meta returns a copy with the isotope flag cleared.
func (c Cell) Meta() Cell {
	c.flags &^= FlagIsotope
	return c
}

// IsConst reports whether the const view flag is set.
func (c Cell) IsConst() bool { return c.flags&FlagConst != 0 }

// Constify returns a copy with the const view flag set.
func (c Cell) Constify() Cell {
	c.flags |= FlagConst
	return c
}

// NewlineBefore reports whether the mold engine should break the line
// before this value inside an array.
func (c Cell) NewlineBefore() bool { return c.flags&FlagNewline != 0 }

// WithNewline returns a copy carrying the newline-before hint.
func (c Cell) WithNewline() Cell {
	c.flags |= FlagNewline
	return c
}

// ---------------------------------------------------------------------------
// Quoting
// ---------------------------------------------------------------------------

// QuoteDepth returns the number of literal-quote levels on the value.
func (c Cell) QuoteDepth() int { return int(c.quote) }

// Quote returns the value with n additional quote levels. Depths up to
// MaxInlineQuote only bump a counter; beyond that the unquoted payload is
// boxed into a hidden singular array so the cell stays fixed-size.
func (rt *Runtime) Quote(c Cell, n int) Cell {
	if n < 0 {
		panic("Runtime.Quote: negative quote count")
	}
	depth := int(c.quote) + n
	if depth > math.MaxUint8 {
		panic("Runtime.Quote: quote depth exceeds representable maximum")
	}
	if depth <= MaxInlineQuote || c.heart == KindEscaped {
		c.quote = uint8(depth)
		return c
	}
	payload := c
	payload.quote = 0
	box := rt.AllocSeries(ClassCells, 1, SeriesManaged)
	box.AppendCell(payload)
	box.Freeze()
	return Cell{
		kind:  c.kind,
		heart: KindEscaped,
		quote: uint8(depth),
		flags: FlagNode1,
		node1: box,
	}
}

// Unquote returns the value with n quote levels removed. Panics if the value
// has fewer levels than requested. When an escaped value drops back to the
// inline range, the boxed payload is unwrapped.
func (rt *Runtime) Unquote(c Cell, n int) Cell {
	if n > int(c.quote) {
		panic("Runtime.Unquote: not enough quote levels")
	}
	depth := int(c.quote) - n
	if c.heart == KindEscaped && depth <= MaxInlineQuote {
		payload := c.node1.CellAt(0)
		payload.quote = uint8(depth)
		return payload
	}
	c.quote = uint8(depth)
	return c
}

// Unquoted returns the value with every quote level removed.
func (rt *Runtime) Unquoted(c Cell) Cell {
	return rt.Unquote(c, int(c.quote))
}
