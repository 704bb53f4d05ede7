package snapshot

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrel-lang/kestrel/core"
)

func newTestRuntime(t *testing.T) *core.Runtime {
	t.Helper()
	rt, err := core.NewRuntime(core.Config{GCTrigger: -1})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return rt
}

// roundTrip captures v, pushes it through the wire encoding, and restores it
// into a fresh runtime.
func roundTrip(t *testing.T, v core.Cell) (*core.Runtime, core.Cell) {
	t.Helper()
	snap, err := Capture(v)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	data, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rt := newTestRuntime(t)
	got, err := Restore(rt, back)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return rt, got
}

func TestRoundTripScalars(t *testing.T) {
	for _, v := range []core.Cell{
		core.NullCell(),
		core.LogicCell(true),
		core.IntegerCell(-42),
		core.DecimalCell(3.25),
		core.PairCell(800, 600),
		core.CharCell('é'),
	} {
		if _, got := roundTrip(t, v); !core.Equal(got, v) {
			t.Errorf("round trip changed %v", v.Kind())
		}
	}
}

func TestRoundTripMixedBlock(t *testing.T) {
	rt := newTestRuntime(t)
	v := rt.NewBlock(
		core.IntegerCell(1),
		rt.NewText("hello"),
		rt.NewBinary([]byte{0, 255}),
		rt.Quote(core.WordCell(core.KindWord, rt.MustIntern("spin")), 2),
		rt.NewBlock(core.LogicCell(false)),
	)
	rt2, got := roundTrip(t, v)
	if !core.Equal(got, v) {
		t.Errorf("round trip gave %s, want %s", rt2.Mold(got), rt.Mold(v))
	}
}

func TestRoundTripContext(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := rt.NewContext(
		[]*core.Series{rt.MustIntern("a"), rt.MustIntern("b")},
		[]core.Cell{core.IntegerCell(1), rt.NewText("two")},
	)
	rt2, got := roundTrip(t, ctx)
	if !core.Equal(got, ctx) {
		t.Errorf("round trip gave %s", rt2.Mold(got))
	}
	if got.Node().Link() == nil {
		t.Error("restored context lost its keylist link")
	}
}

// Shared structure must restore as shared structure, not as copies.
func TestRoundTripPreservesSharing(t *testing.T) {
	rt := newTestRuntime(t)
	inner := rt.NewBlock(core.IntegerCell(7))
	outer := rt.NewBlock(inner, inner)

	_, got := roundTrip(t, outer)
	if got.Node().Len() != 2 {
		t.Fatalf("outer length = %d", got.Node().Len())
	}
	if got.Node().CellAt(0).Node() != got.Node().CellAt(1).Node() {
		t.Error("shared block restored as two distinct nodes")
	}
}

func TestRoundTripCycle(t *testing.T) {
	rt := newTestRuntime(t)
	blk := rt.NewBlock(core.IntegerCell(1))
	blk.Node().AppendCell(blk)

	rt2, got := roundTrip(t, blk)
	if got.Node().Len() != 2 {
		t.Fatalf("length = %d", got.Node().Len())
	}
	if got.Node().CellAt(1).Node() != got.Node() {
		t.Error("cycle restored as a copy instead of a back reference")
	}
	// The cyclic render proves traversal still terminates on the restored graph.
	if s := rt2.Mold(got); s != "[1 [...]]" {
		t.Errorf("mold = %q", s)
	}
}

// Restored words go through the intern table, so they unify with symbols
// already live in the target runtime.
func TestRestoreReinternsSymbols(t *testing.T) {
	rt := newTestRuntime(t)
	word := core.WordCell(core.KindWord, rt.MustIntern("velocity"))

	snap, err := Capture(word)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	rt2 := newTestRuntime(t)
	existing := rt2.MustIntern("velocity")
	got, err := Restore(rt2, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.Symbol() != existing {
		t.Error("restored word did not unify with the live symbol")
	}
}

func TestRoundTripPathStaysFrozen(t *testing.T) {
	rt := newTestRuntime(t)
	path := rt.NewPath(
		core.WordCell(core.KindWord, rt.MustIntern("a")),
		core.WordCell(core.KindWord, rt.MustIntern("b")),
	)
	_, got := roundTrip(t, path)
	if !got.Node().Frozen() {
		t.Error("restored path is not frozen")
	}
}

func TestRestoredGraphSurvivesCollection(t *testing.T) {
	rt := newTestRuntime(t)
	v := rt.NewBlock(rt.NewText("keep me"), core.IntegerCell(9))
	snap, err := Capture(v)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	rt2 := newTestRuntime(t)
	got, err := Restore(rt2, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	rt2.AddRoot(&got)
	rt2.Collect()
	if got.Node().CellAt(0).Node().String() != "keep me" {
		t.Error("restored graph damaged by collection")
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	rt := newTestRuntime(t)
	v := rt.NewBlock(core.IntegerCell(1), rt.NewText("x"))
	snap, err := Capture(v)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	a, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if Hash(a) != Hash(b) {
		t.Error("encoding the same snapshot twice hashed differently")
	}
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenStore(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStorePutGet(t *testing.T) {
	rt := newTestRuntime(t)
	st := openTestStore(t)

	v := rt.NewBlock(rt.NewText("persisted"), core.IntegerCell(3))
	snap, err := Capture(v)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	key, err := st.Put(snap)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := st.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.ID != snap.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, snap.ID)
	}
	rt2 := newTestRuntime(t)
	got, err := Restore(rt2, loaded)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !core.Equal(got, v) {
		t.Errorf("restored %s", rt2.Mold(got))
	}
}

func TestStoreGetMissing(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Get("deadbeef"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestStorePutIsIdempotent(t *testing.T) {
	st := openTestStore(t)

	snap, err := Capture(core.IntegerCell(5))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	k1, err := st.Put(snap)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	k2, err := st.Put(snap)
	if err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if k1 != k2 {
		t.Errorf("keys differ: %s vs %s", k1, k2)
	}
	entries, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("catalog has %d entries, want 1", len(entries))
	}
}

func TestStoreList(t *testing.T) {
	st := openTestStore(t)
	for i, n := range []int64{1, 2, 3} {
		snap, err := Capture(core.IntegerCell(n))
		if err != nil {
			t.Fatalf("Capture: %v", err)
		}
		// List orders by creation time, so space the timestamps out.
		snap.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		if _, err := st.Put(snap); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	entries, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d", len(entries))
	}
	if !entries[0].CreatedAt.After(entries[1].CreatedAt) {
		t.Error("entries are not newest first")
	}
}
