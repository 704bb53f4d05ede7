package core

import "testing"

// ---------------------------------------------------------------------------
// Shallow vs deep
// ---------------------------------------------------------------------------

func TestClonifyShallow(t *testing.T) {
	rt := newTestRuntime(t)
	inner := rt.NewText("shared")
	original := rt.NewBlock(IntegerCell(1), inner)

	copy := rt.Clonify(original, 0)

	if copy.Node() == original.Node() {
		t.Fatal("top-level series must be copied even for shallow clones")
	}
	if copy.Node().CellAt(1).Node() != inner.Node() {
		t.Error("shallow clone must share the child series")
	}
	if !Equal(copy, original) {
		t.Error("clone should be structurally equal to the original")
	}
}

func TestClonifyDeep(t *testing.T) {
	rt := newTestRuntime(t)
	leaf := rt.NewText("leaf")
	original := rt.NewBlock(rt.NewBlock(leaf), rt.NewText("top"))

	copy := rt.Clonify(original, DeepAll)

	if !Equal(copy, original) {
		t.Fatal("deep clone should be structurally equal")
	}
	// No shared mutable series identity anywhere in the copy.
	if copy.Node() == original.Node() {
		t.Error("outer array shared")
	}
	copyInner := copy.Node().CellAt(0)
	if copyInner.Node() == original.Node().CellAt(0).Node() {
		t.Error("inner array shared")
	}
	if copyInner.Node().CellAt(0).Node() == leaf.Node() {
		t.Error("leaf text shared")
	}

	// Mutating the copy leaves the original untouched.
	copy.Node().SetCellAt(1, IntegerCell(99))
	if original.Node().CellAt(1).Kind() != KindText {
		t.Error("mutating the clone changed the original")
	}
}

func TestClonifyScalarsKeepIdentity(t *testing.T) {
	rt := newTestRuntime(t)
	v := rt.Clonify(IntegerCell(5), DeepAll)
	if v.Integer() != 5 {
		t.Error("scalar clone changed value")
	}
	word := WordCell(KindWord, rt.MustIntern("w"))
	if rt.Clonify(word, DeepAll).Symbol() != word.Symbol() {
		t.Error("words must keep their symbol identity")
	}
}

// ---------------------------------------------------------------------------
// Quote preservation
// ---------------------------------------------------------------------------

func TestClonifyPreservesQuoteDepth(t *testing.T) {
	rt := newTestRuntime(t)
	original := rt.Quote(rt.NewBlock(IntegerCell(1)), 2)

	copy := rt.Clonify(original, DeepAll)

	if copy.QuoteDepth() != 2 {
		t.Fatalf("QuoteDepth() = %d, want 2", copy.QuoteDepth())
	}
	if rt.Unquoted(copy).Node() == rt.Unquoted(original).Node() {
		t.Error("deep clone of a quoted block shared the array")
	}
}

func TestClonifyPreservesEscapedQuote(t *testing.T) {
	rt := newTestRuntime(t)
	depth := MaxInlineQuote + 2
	original := rt.Quote(rt.NewBlock(IntegerCell(1)), depth)

	copy := rt.Clonify(original, DeepAll)

	if copy.QuoteDepth() != depth {
		t.Fatalf("QuoteDepth() = %d, want %d", copy.QuoteDepth(), depth)
	}
	if !Equal(copy, original) {
		t.Error("escaped-quote clone not structurally equal")
	}
}

// ---------------------------------------------------------------------------
// Contexts, sequences, actions
// ---------------------------------------------------------------------------

func TestClonifyContextReallocatesKeylist(t *testing.T) {
	rt := newTestRuntime(t)
	sym := rt.MustIntern("slot")
	original := rt.NewContext([]*Series{sym}, []Cell{rt.NewText("v")})

	copy := rt.Clonify(original, MaskOf(KindContext))

	if copy.Node() == original.Node() {
		t.Fatal("varlist shared")
	}
	if copy.Node().Link() == original.Node().Link() {
		t.Error("keylist must be reallocated with the context")
	}
	if copy.Node().Link().SymbolAt(0) != sym {
		t.Error("keylist entries keep their symbol identity")
	}
}

func TestClonifySequenceComesOutFrozen(t *testing.T) {
	rt := newTestRuntime(t)
	path := rt.NewPath(WordCell(KindWord, rt.MustIntern("a")),
		WordCell(KindWord, rt.MustIntern("b")))

	copy := rt.Clonify(path, DeepAll)

	if copy.Node() == path.Node() {
		t.Fatal("sequence array shared")
	}
	if !copy.Node().Frozen() {
		t.Error("cloned sequence must be frozen")
	}
}

func TestClonifyNeverDeepensActions(t *testing.T) {
	rt := newTestRuntime(t)
	body := rt.AllocSeries(ClassCells, 0, SeriesManaged)
	params := rt.AllocSeries(ClassSymbols, 0, SeriesManaged)
	action := ActionCell(body, params)
	inner := rt.NewBlock(action)

	copy := rt.Clonify(inner, DeepAll)

	got := copy.Node().CellAt(0)
	if got.Node() != body || got.Node2() != params {
		t.Error("actions must keep their executable identity across clones")
	}
}
