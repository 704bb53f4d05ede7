package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Molder is the shared text-rendering engine. One growable byte buffer is
// reused across nested mold operations: each scope records a watermark into
// the buffer and must pop or drop it, a stack discipline as strict as a call
// stack. The buffer and recursion-guard stack are unmanaged series; the
// molder owns them for the runtime's lifetime.
type Molder struct {
	rt     *Runtime
	buf    *Series // shared output buffer (ClassBytes)
	stack  *Series // recursion guard: composite nodes in flight (ClassNodes)
	scopes int     // outstanding watermarks
	limit  int     // default char limit for new scopes; 0 = none
}

// moldShrinkCap is the buffer capacity above which slack is reclaimed
// between renders.
const moldShrinkCap = 1 << 12

func newMolder(rt *Runtime, limit int) *Molder {
	return &Molder{
		rt:    rt,
		buf:   rt.AllocSeries(ClassBytes, 256, 0),
		stack: rt.AllocSeries(ClassNodes, 16, 0),
		limit: limit,
	}
}

// MoldScope is one nested rendering session on the shared buffer.
type MoldScope struct {
	m         *Molder
	base      int // buffer watermark at push
	limit     int // char limit applied at pop; 0 = none
	truncated bool
	released  bool
}

// MoldPush begins a rendering session with the runtime's default limit.
func (rt *Runtime) MoldPush() *MoldScope {
	return rt.MoldPushLimited(rt.mold.limit)
}

// MoldPushLimited begins a rendering session truncated to limit characters
// (0 = unlimited).
func (rt *Runtime) MoldPushLimited(limit int) *MoldScope {
	m := rt.mold
	m.scopes++
	return &MoldScope{m: m, base: m.buf.Len(), limit: limit}
}

// Render appends the textual form of v to the scope.
func (sc *MoldScope) Render(v Cell) {
	if sc.released {
		panic("MoldScope.Render: scope already popped")
	}
	sc.m.renderCell(v, 0)
}

// Pop copies out everything rendered since the push, restores the shared
// buffer to its watermark, and reports whether the text was cut at the
// scope's character limit. Truncation happens here, after rendering, at a
// UTF-8 boundary, never mid-render.
func (sc *MoldScope) Pop() (string, bool) {
	m := sc.close("MoldScope.Pop")
	out := string(m.buf.bytes[sc.base:])
	m.buf.bytes = m.buf.bytes[:sc.base]
	if sc.limit > 0 {
		out, sc.truncated = truncateChars(out, sc.limit)
	}
	m.maybeShrink()
	return out, sc.truncated
}

// Drop discards everything rendered since the push without copying.
func (sc *MoldScope) Drop() {
	m := sc.close("MoldScope.Drop")
	m.buf.bytes = m.buf.bytes[:sc.base]
	m.maybeShrink()
}

func (sc *MoldScope) close(who string) *Molder {
	if sc.released {
		panic(who + ": scope already released")
	}
	m := sc.m
	if sc.base > m.buf.Len() {
		panic(who + ": mold stack released out of order")
	}
	sc.released = true
	m.scopes--
	return m
}

// maybeShrink reclaims buffer slack after a large render. Only safe when no
// scope is outstanding: shrinking must not invalidate enclosing watermarks.
func (m *Molder) maybeShrink() {
	if m.scopes != 0 {
		return
	}
	if cap(m.buf.bytes) <= moldShrinkCap || len(m.buf.bytes)*4 > cap(m.buf.bytes) {
		return
	}
	fresh := make([]byte, len(m.buf.bytes), moldShrinkCap)
	copy(fresh, m.buf.bytes)
	m.buf.bytes = fresh
	m.buf.flags &^= seriesInline
}

// Mold renders a value to text in one step. The scope is dropped if the
// render panics, so a failed mold cannot leave the shared buffer pushed.
func (rt *Runtime) Mold(v Cell) string {
	sc := rt.MoldPush()
	defer func() {
		if !sc.released {
			sc.Drop()
		}
	}()
	sc.Render(v)
	out, _ := sc.Pop()
	return out
}

func truncateChars(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}

// ---------------------------------------------------------------------------
// Per-kind render hooks
// ---------------------------------------------------------------------------

func (m *Molder) emit(s string) { m.buf.AppendString(s) }

func (m *Molder) renderCell(v Cell, depth int) {
	if depth > maxTraverseDepth {
		panic("mold: stack overflow while rendering (value too deep)")
	}
	for i := 0; i < v.QuoteDepth(); i++ {
		m.emit("'")
	}
	if v.heart == KindEscaped {
		m.renderCell(v.node1.CellAt(0), depth+1)
		return
	}
	if v.IsIsotope() {
		m.emit("~")
		defer m.emit("~")
	}

	switch v.kind {
	case KindNull:
		m.emit("#[null]")
	case KindLogic:
		if v.Logic() {
			m.emit("#[true]")
		} else {
			m.emit("#[false]")
		}
	case KindInteger:
		m.emit(strconv.FormatInt(v.Integer(), 10))
	case KindDecimal:
		m.emit(formatDecimal(v.Decimal()))
	case KindPair:
		x, y := v.Pair()
		m.emit(strconv.FormatInt(int64(x), 10))
		m.emit("x")
		m.emit(strconv.FormatInt(int64(y), 10))
	case KindChar:
		m.emit("#\"")
		m.emitEscaped(string(v.Char()))
		m.emit("\"")
	case KindWord:
		m.emit(v.Symbol().String())
	case KindSetWord:
		m.emit(v.Symbol().String())
		m.emit(":")
	case KindGetWord:
		m.emit(":")
		m.emit(v.Symbol().String())
	case KindIssue:
		m.emit("#")
		m.buf.AppendBytes(v.IssueBytes())
	case KindText:
		m.emit("\"")
		m.emitEscaped(v.node1.String())
		m.emit("\"")
	case KindBinary:
		m.emit("#{")
		m.emit(strings.ToUpper(hex.EncodeToString(v.node1.Bytes())))
		m.emit("}")
	case KindBitset:
		m.emit("#[bitset! #{")
		m.emit(strings.ToUpper(hex.EncodeToString(v.node1.Bytes())))
		m.emit("}]")
	case KindBlock:
		m.renderArray(v.node1, "[", "]", depth)
	case KindGroup:
		m.renderArray(v.node1, "(", ")", depth)
	case KindPath:
		m.renderPath(v.node1, depth)
	case KindMap:
		m.emit("#[map! ")
		m.renderArray(v.node1, "[", "]", depth)
		m.emit("]")
	case KindContext:
		m.renderContext(v.node1, depth)
	case KindHandle:
		m.emit("#[handle! ")
		m.emit(strconv.FormatInt(v.scalar, 10))
		m.emit("]")
	case KindAction:
		m.renderAction(v.node2)
	default:
		panic("mold: cell with invalid kind")
	}
}

// renderArray renders the elements of a cell array between the given
// delimiters. The node is pushed on the recursion-guard stack first; if it
// is already in flight we are inside a cycle and an ellipsis placeholder is
// emitted instead of recursing forever.
func (m *Molder) renderArray(arr *Series, open, close string, depth int) {
	if m.stack.ContainsNode(arr) {
		m.emit(open)
		m.emit("...")
		m.emit(close)
		return
	}
	m.stack.PushNode(arr)
	defer m.stack.PopNode()

	m.emit(open)
	for i := 0; i < arr.Len(); i++ {
		item := arr.CellAt(i)
		if i > 0 {
			if item.NewlineBefore() {
				m.emit("\n")
			} else {
				m.emit(" ")
			}
		} else if item.NewlineBefore() {
			m.emit("\n")
		}
		m.renderCell(item, depth+1)
	}
	m.emit(close)
}

func (m *Molder) renderPath(arr *Series, depth int) {
	if m.stack.ContainsNode(arr) {
		m.emit("...")
		return
	}
	m.stack.PushNode(arr)
	defer m.stack.PopNode()

	for i := 0; i < arr.Len(); i++ {
		if i > 0 {
			m.emit("/")
		}
		m.renderCell(arr.CellAt(i), depth+1)
	}
}

func (m *Molder) renderContext(varlist *Series, depth int) {
	if m.stack.ContainsNode(varlist) {
		m.emit("#[context! [...]]")
		return
	}
	m.stack.PushNode(varlist)
	defer m.stack.PopNode()

	keylist := varlist.Link()
	m.emit("#[context! [")
	for i := 0; i < varlist.Len(); i++ {
		if i > 0 {
			m.emit(" ")
		}
		m.emit(keylist.SymbolAt(i).String())
		m.emit(": ")
		m.renderCell(varlist.CellAt(i), depth+1)
	}
	m.emit("]]")
}

func (m *Molder) renderAction(params *Series) {
	m.emit("#[action! [")
	for i := 0; i < params.Len(); i++ {
		if i > 0 {
			m.emit(" ")
		}
		m.emit(params.SymbolAt(i).String())
	}
	m.emit("]]")
}

// emitEscaped writes text content with caret escapes for the characters
// that would break the quoted form.
func (m *Molder) emitEscaped(s string) {
	for _, r := range s {
		switch r {
		case '"':
			m.emit("^\"")
		case '^':
			m.emit("^^")
		case '\n':
			m.emit("^/")
		case '\t':
			m.emit("^-")
		default:
			m.buf.AppendRune(r)
		}
	}
}

// formatDecimal renders a float so it re-scans as a decimal, not an integer.
func formatDecimal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") &&
		!strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}
