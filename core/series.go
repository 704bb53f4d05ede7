package core

import "unicode/utf8"

// SeriesClass selects the element layout of a Series.
type SeriesClass uint8

const (
	// ClassBytes is a byte buffer: text, binary, bitsets, and symbols.
	ClassBytes SeriesClass = iota
	// ClassCells is a cell array: blocks, groups, paths, varlists, pairlists.
	ClassCells
	// ClassSymbols is a keylist: a parallel array of symbol series giving an
	// array-backed context its key names.
	ClassSymbols
	// ClassNodes is a pointer array: the intern table and the recursion
	// guard stacks.
	ClassNodes
)

// SeriesFlags holds the header bits of a Series.
type SeriesFlags uint16

const (
	// SeriesManaged marks a node owned by the collector. Unmanaged nodes
	// are freed explicitly by their owner.
	SeriesManaged SeriesFlags = 1 << iota

	// SeriesPow2 rounds the capacity up to a power of two, for consumers
	// that index with a mask.
	SeriesPow2

	seriesMarked // collector mark bit, meaningful only during a pass
	seriesBlack  // transient consumer color, must be restored to white
	seriesFrozen // permanently immutable
	seriesSymbol // byte series that is an interned symbol
	seriesInline // byte payload lives in the inline buffer
)

// inlineBytes is the byte payload size stored directly in the node. Small
// strings and symbols avoid a second allocation entirely.
const inlineBytes = 16

// Series is the variable-length heap unit backing every growable structure.
//
// A series has no single owner: its lifetime is determined by reachability
// from GC roots through the cells that reference it. Unmanaged series are
// the exception (short-lived internal buffers freed explicitly) and may be
// promoted to managed exactly once.
type Series struct {
	class SeriesClass
	flags SeriesFlags

	bytes  []byte
	cells  []Cell
	syms   []*Series
	nodes  []*Series
	inline [inlineBytes]byte

	// link is a companion node: a varlist's keylist. Marked alongside the
	// series itself.
	link *Series

	// sym is non-nil only for interned symbols.
	sym *symbolMeta

	// book accelerates char-index lookups on long UTF-8 text.
	book *bookmark
}

// ---------------------------------------------------------------------------
// Header accessors
// ---------------------------------------------------------------------------

// Class returns the element layout of the series.
func (s *Series) Class() SeriesClass { return s.class }

// Len returns the used element count (bytes for ClassBytes).
func (s *Series) Len() int {
	switch s.class {
	case ClassBytes:
		return len(s.bytes)
	case ClassCells:
		return len(s.cells)
	case ClassSymbols:
		return len(s.syms)
	default:
		return len(s.nodes)
	}
}

// Cap returns the allocated element capacity.
func (s *Series) Cap() int {
	switch s.class {
	case ClassBytes:
		return cap(s.bytes)
	case ClassCells:
		return cap(s.cells)
	case ClassSymbols:
		return cap(s.syms)
	default:
		return cap(s.nodes)
	}
}

// Managed reports whether the node is owned by the collector.
func (s *Series) Managed() bool { return s.flags&SeriesManaged != 0 }

// Frozen reports whether the series is permanently immutable.
func (s *Series) Frozen() bool { return s.flags&seriesFrozen != 0 }

// Freeze makes the series permanently immutable. Freezing twice is harmless.
func (s *Series) Freeze() { s.flags |= seriesFrozen }

// IsSymbol reports whether the series is an interned symbol.
func (s *Series) IsSymbol() bool { return s.flags&seriesSymbol != 0 }

// Link returns the companion node (a varlist's keylist), or nil.
func (s *Series) Link() *Series { return s.link }

// SetLink attaches a companion node. Allowed on frozen series: the link is
// part of the header, not the content.
func (s *Series) SetLink(link *Series) { s.link = link }

// ensureMutable panics if the series is frozen. Mutating a frozen series is
// a programming error, not a recoverable condition.
func (s *Series) ensureMutable() {
	if s.Frozen() {
		panic("Series: mutation of frozen series")
	}
}

// ---------------------------------------------------------------------------
// Byte series
// ---------------------------------------------------------------------------

// Bytes returns the used byte payload. The slice aliases the series storage;
// callers must not retain it across mutations.
func (s *Series) Bytes() []byte {
	if s.class != ClassBytes {
		panic("Series.Bytes: not a byte series")
	}
	return s.bytes
}

// String returns the byte payload as a string.
func (s *Series) String() string {
	return string(s.Bytes())
}

// AppendBytes appends raw bytes, growing as needed.
func (s *Series) AppendBytes(b []byte) {
	if s.class != ClassBytes {
		panic("Series.AppendBytes: not a byte series")
	}
	s.ensureMutable()
	s.ensureBytes(len(b))
	s.bytes = append(s.bytes, b...)
}

// AppendString appends the UTF-8 bytes of a string.
func (s *Series) AppendString(str string) {
	s.AppendBytes([]byte(str))
}

// AppendRune appends a single rune as UTF-8.
func (s *Series) AppendRune(r rune) {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	s.AppendBytes(buf[:n])
}

// TruncateBytes cuts the byte payload back to n bytes.
func (s *Series) TruncateBytes(n int) {
	if s.class != ClassBytes {
		panic("Series.TruncateBytes: not a byte series")
	}
	s.ensureMutable()
	if n < 0 || n > len(s.bytes) {
		panic("Series.TruncateBytes: out of range")
	}
	s.bytes = s.bytes[:n]
}

// ensureBytes grows the byte storage for extra more bytes, handling the
// inline-to-out-of-line transition.
func (s *Series) ensureBytes(extra int) {
	need := len(s.bytes) + extra
	if need <= cap(s.bytes) {
		return
	}
	newCap := cap(s.bytes) * 2
	if newCap < need {
		newCap = need
	}
	if s.flags&SeriesPow2 != 0 {
		newCap = ceilPow2(newCap)
	}
	fresh := make([]byte, len(s.bytes), newCap)
	copy(fresh, s.bytes)
	s.bytes = fresh
	s.flags &^= seriesInline
}

// ---------------------------------------------------------------------------
// Cell arrays
// ---------------------------------------------------------------------------

// CellAt returns the cell at index i.
func (s *Series) CellAt(i int) Cell {
	if s.class != ClassCells {
		panic("Series.CellAt: not a cell array")
	}
	return s.cells[i]
}

// SetCellAt overwrites the cell at index i.
func (s *Series) SetCellAt(i int, c Cell) {
	if s.class != ClassCells {
		panic("Series.SetCellAt: not a cell array")
	}
	s.ensureMutable()
	s.cells[i] = c
}

// AppendCell appends a cell, growing as needed.
func (s *Series) AppendCell(c Cell) {
	if s.class != ClassCells {
		panic("Series.AppendCell: not a cell array")
	}
	s.ensureMutable()
	s.cells = append(s.cells, c)
}

// TruncateCells cuts the array back to n cells.
func (s *Series) TruncateCells(n int) {
	if s.class != ClassCells {
		panic("Series.TruncateCells: not a cell array")
	}
	s.ensureMutable()
	if n < 0 || n > len(s.cells) {
		panic("Series.TruncateCells: out of range")
	}
	s.cells = s.cells[:n]
}

// ---------------------------------------------------------------------------
// Keylists
// ---------------------------------------------------------------------------

// SymbolAt returns the symbol series at index i of a keylist.
func (s *Series) SymbolAt(i int) *Series {
	if s.class != ClassSymbols {
		panic("Series.SymbolAt: not a keylist")
	}
	return s.syms[i]
}

// AppendSymbol appends a symbol to a keylist.
func (s *Series) AppendSymbol(sym *Series) {
	if s.class != ClassSymbols {
		panic("Series.AppendSymbol: not a keylist")
	}
	s.ensureMutable()
	if sym == nil || sym.sym == nil {
		panic("Series.AppendSymbol: not an interned symbol")
	}
	s.syms = append(s.syms, sym)
}

// ---------------------------------------------------------------------------
// Pointer arrays
// ---------------------------------------------------------------------------

// NodeAt returns the node pointer at index i.
func (s *Series) NodeAt(i int) *Series {
	if s.class != ClassNodes {
		panic("Series.NodeAt: not a pointer array")
	}
	return s.nodes[i]
}

// PushNode appends a node pointer.
func (s *Series) PushNode(n *Series) {
	if s.class != ClassNodes {
		panic("Series.PushNode: not a pointer array")
	}
	s.ensureMutable()
	s.nodes = append(s.nodes, n)
}

// PopNode removes and returns the last node pointer.
func (s *Series) PopNode() *Series {
	if s.class != ClassNodes {
		panic("Series.PopNode: not a pointer array")
	}
	s.ensureMutable()
	n := s.nodes[len(s.nodes)-1]
	s.nodes = s.nodes[:len(s.nodes)-1]
	return n
}

// ContainsNode reports whether the pointer array holds n.
func (s *Series) ContainsNode(n *Series) bool {
	if s.class != ClassNodes {
		panic("Series.ContainsNode: not a pointer array")
	}
	for _, p := range s.nodes {
		if p == n {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Bookmarks
// ---------------------------------------------------------------------------

// bookmarkThreshold is the byte length below which a text series carries no
// bookmark; short strings are cheap to scan from the start.
const bookmarkThreshold = 64

// bookmark caches one char-index to byte-offset correspondence so indexed
// access into long UTF-8 text doesn't rescan from the start every time.
type bookmark struct {
	char   int
	offset int
}

// ByteIndexOf returns the byte offset of the given character index in a
// text series, maintaining the bookmark as a side effect.
func (s *Series) ByteIndexOf(charIndex int) int {
	if s.class != ClassBytes {
		panic("Series.ByteIndexOf: not a byte series")
	}
	if len(s.bytes) < bookmarkThreshold {
		s.book = nil // short strings drop their bookmark
		return scanCharOffset(s.bytes, 0, 0, charIndex)
	}
	fromChar, fromOffset := 0, 0
	if s.book != nil && s.book.char <= charIndex && s.book.offset <= len(s.bytes) {
		fromChar, fromOffset = s.book.char, s.book.offset
	}
	offset := scanCharOffset(s.bytes, fromChar, fromOffset, charIndex)
	s.book = &bookmark{char: charIndex, offset: offset}
	return offset
}

func scanCharOffset(b []byte, fromChar, fromOffset, charIndex int) int {
	offset := fromOffset
	for i := fromChar; i < charIndex; i++ {
		if offset >= len(b) {
			panic("Series.ByteIndexOf: char index out of range")
		}
		_, size := utf8.DecodeRune(b[offset:])
		offset += size
	}
	return offset
}

// ---------------------------------------------------------------------------
// Capacity helpers
// ---------------------------------------------------------------------------

func ceilPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
