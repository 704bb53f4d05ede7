package core

import "testing"

// ---------------------------------------------------------------------------
// Reachability
// ---------------------------------------------------------------------------

func TestCollectFreesUnreachable(t *testing.T) {
	rt := newTestRuntime(t)
	kept := rt.NewBlock(IntegerCell(1), rt.NewText("keep"))
	rt.NewText("garbage")
	rt.NewBlock(IntegerCell(2))

	g := rt.NewGuard()
	g.Cell(kept)
	stats := rt.Collect()
	g.Release()

	if stats == nil {
		t.Fatal("Collect returned nil with GC enabled")
	}
	if stats.Freed < 2 {
		t.Errorf("Freed = %d, want at least 2 (garbage text and block)", stats.Freed)
	}
	// The kept graph is intact.
	if kept.Node().CellAt(1).Node().String() != "keep" {
		t.Error("guarded value was damaged by collection")
	}
}

func TestCollectMarksThroughEveryEdge(t *testing.T) {
	rt := newTestRuntime(t)
	sym := rt.MustIntern("name")
	inner := rt.NewBlock(WordCell(KindWord, sym), rt.NewText("deep"))
	ctx := rt.NewContext([]*Series{sym}, []Cell{inner})
	outer := rt.NewBlock(ctx, rt.Quote(rt.NewBlock(rt.NewText("boxed")), MaxInlineQuote+1))

	g := rt.NewGuard()
	g.Cell(outer)
	defer g.Release()

	before := rt.Pool().NumNodes()
	rt.Collect()
	if rt.Pool().NumNodes() != before {
		t.Errorf("collection freed %d reachable nodes",
			before-rt.Pool().NumNodes())
	}
}

func TestCollectCyclicGraphTerminates(t *testing.T) {
	rt := newTestRuntime(t)
	blk := rt.NewBlock(IntegerCell(1))
	blk.Node().AppendCell(blk) // the block contains itself

	g := rt.NewGuard()
	g.Cell(blk)
	defer g.Release()

	if rt.Collect() == nil {
		t.Fatal("Collect returned nil")
	}
	if blk.Node().Len() != 2 {
		t.Error("cyclic block damaged by collection")
	}
}

// ---------------------------------------------------------------------------
// Guard stack and disable bracket
// ---------------------------------------------------------------------------

func TestGuardScopesAreLIFO(t *testing.T) {
	rt := newTestRuntime(t)
	outer := rt.NewGuard()
	outer.Cell(IntegerCell(1))
	inner := rt.NewGuard()
	inner.Cell(IntegerCell(2))
	inner.Release()
	outer.Release()
	if len(rt.guardCells) != 0 {
		t.Error("guard stack not empty after balanced release")
	}
}

func TestGuardDoubleReleasePanics(t *testing.T) {
	rt := newTestRuntime(t)
	g := rt.NewGuard()
	g.Release()
	defer func() {
		if recover() == nil {
			t.Error("double release should panic")
		}
	}()
	g.Release()
}

func TestDisableGCBlocksCollection(t *testing.T) {
	rt := newTestRuntime(t)
	hold := rt.DisableGC()
	if rt.Collect() != nil {
		t.Error("Collect should refuse to run while disabled")
	}
	inner := rt.DisableGC() // holds nest
	inner.Release()
	if rt.Collect() != nil {
		t.Error("Collect should stay refused until every hold releases")
	}
	hold.Release()
	if rt.Collect() == nil {
		t.Error("Collect should run once all holds are released")
	}
}

func TestPressureTriggersCollection(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: 32})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	for i := 0; i < 100; i++ {
		rt.NewText("transient")
	}
	if rt.LastCollect() == nil {
		t.Error("allocation pressure should have forced a collection")
	}
}

// ---------------------------------------------------------------------------
// Symbols and sweep
// ---------------------------------------------------------------------------

func TestSweepForgetsDeadSymbols(t *testing.T) {
	rt := newTestRuntime(t)
	lower := rt.MustIntern("temp")
	upper := rt.MustIntern("TEMP")

	g := rt.NewGuard()
	g.Series(upper) // only the synonym is rooted
	stats := rt.Collect()
	defer g.Release()

	if stats.SymbolsForgotten == 0 {
		t.Fatal("dead canonical should have been forgotten during sweep")
	}
	if !upper.IsCanonical() {
		t.Error("surviving synonym should be canonical after the sweep")
	}
	if rt.MustIntern("temp") == lower {
		t.Error("swept symbol identity must not come back")
	}
}

func TestRootCells(t *testing.T) {
	rt := newTestRuntime(t)
	frame := rt.NewText("frame-local")
	rt.AddRoot(&frame)
	rt.Collect()
	if frame.Node().String() != "frame-local" {
		t.Error("registered root was collected")
	}
	rt.RemoveRoot(&frame)
	before := rt.Pool().NumNodes()
	rt.Collect()
	if rt.Pool().NumNodes() != before-1 {
		t.Error("unregistered root should be collectable")
	}
}

// ---------------------------------------------------------------------------
// Color flip
// ---------------------------------------------------------------------------

func TestColorFlipBalance(t *testing.T) {
	rt := newTestRuntime(t)
	s := rt.AllocSeries(ClassBytes, 4, SeriesManaged)

	if !rt.Blacken(s) {
		t.Fatal("first Blacken should succeed")
	}
	if rt.Blacken(s) {
		t.Error("second Blacken should report already-black")
	}
	if !s.IsBlack() {
		t.Error("IsBlack() = false after Blacken")
	}

	// Collecting with outstanding black series is a fatal bug.
	func() {
		defer func() {
			if recover() == nil {
				t.Error("Collect with black series should panic")
			}
		}()
		rt.Collect()
	}()

	rt.Whiten(s)
	if s.IsBlack() {
		t.Error("IsBlack() = true after Whiten")
	}
}
