package core

import (
	"fmt"
	"math/rand"
	"testing"
)

// ---------------------------------------------------------------------------
// Basic interning
// ---------------------------------------------------------------------------

func TestInternIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	a := rt.MustIntern("foo")
	b := rt.MustIntern("foo")
	if a != b {
		t.Error("repeated intern of the same spelling should return the same identity")
	}
	if !a.Frozen() || !a.IsSymbol() || !a.Managed() {
		t.Error("symbols must be frozen, flagged, managed series")
	}
}

func TestInternCaseSynonyms(t *testing.T) {
	rt := newTestRuntime(t)
	lower := rt.MustIntern("foo")
	upper := rt.MustIntern("FOO")
	mixed := rt.MustIntern("Foo")

	if lower == upper || lower == mixed || upper == mixed {
		t.Fatal("case variants must be distinct symbol identities")
	}
	if !lower.IsCanonical() {
		t.Error("first-interned spelling should be canonical")
	}
	if upper.IsCanonical() || mixed.IsCanonical() {
		t.Error("synonyms must not be canonical")
	}
	if upper.Canonical() != lower || mixed.Canonical() != lower {
		t.Error("synonyms should reach their canonical through the ring")
	}

	// The ring is circular: walking from any member visits all three.
	seen := map[*Series]bool{}
	for p, n := lower, 0; n < 4; p, n = p.sym.next, n+1 {
		seen[p] = true
		if p.sym.next == lower {
			break
		}
	}
	if len(seen) != 3 {
		t.Errorf("ring holds %d members, want 3", len(seen))
	}
}

func TestCompareSpellings(t *testing.T) {
	if CompareSpellings([]byte("foo"), []byte("FOO"), true) {
		t.Error("strict compare should distinguish case")
	}
	if !CompareSpellings([]byte("foo"), []byte("FOO"), false) {
		t.Error("non-strict compare should fold case")
	}
	if CompareSpellings([]byte("foo"), []byte("bar"), false) {
		t.Error("different spellings should not compare equal")
	}
}

func TestInternGrowRehash(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: -1, InternCapacity: 7})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	in := rt.Interns()
	syms := make(map[string]*Series)
	for i := 0; i < 200; i++ {
		sp := fmt.Sprintf("word-%d", i)
		syms[sp] = rt.MustIntern(sp)
	}
	if in.Capacity() <= 7 {
		t.Fatal("table should have grown")
	}
	// Every key still resolves to the same identity after rehashing.
	for sp, want := range syms {
		if got := rt.MustIntern(sp); got != want {
			t.Fatalf("intern %q lost identity across rehash", sp)
		}
	}
}

// Tombstone pressure from intern/forget churn is relieved by compacting at
// the current capacity. A table whose live load stays near zero must not
// step the prime ladder, no matter how many transient spellings pass
// through it.
func TestInternChurnKeepsCapacityBounded(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: -1, InternCapacity: 7})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	in := rt.Interns()
	for i := 0; i < 3000; i++ {
		sp := fmt.Sprintf("transient-%d", i)
		if _, err := in.Intern([]byte(sp)); err != nil {
			t.Fatalf("intern %q after %d churn cycles: %v", sp, i, err)
		}
		// Nothing references the symbol, so the sweep forgets it.
		rt.Collect()
	}
	if got := in.Capacity(); got != 7 {
		t.Errorf("capacity = %d after churn with zero live load, want 7", got)
	}
	if live := in.NumCanonicals(); live != 0 {
		t.Errorf("live canonicals = %d, want 0", live)
	}
}

// Compaction must not defer real growth: when live symbols carry the load,
// the table still steps up even if churn left tombstones behind.
func TestInternGrowsUnderLiveLoadAfterChurn(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: -1, InternCapacity: 7})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	in := rt.Interns()
	for i := 0; i < 50; i++ {
		if _, err := in.Intern([]byte(fmt.Sprintf("gone-%d", i))); err != nil {
			t.Fatalf("Intern: %v", err)
		}
		rt.Collect()
	}
	syms := make(map[string]*Series)
	guard := rt.NewGuard()
	defer guard.Release()
	for i := 0; i < 100; i++ {
		sp := fmt.Sprintf("kept-%d", i)
		sym := rt.MustIntern(sp)
		guard.Series(sym)
		syms[sp] = sym
		rt.Collect()
	}
	if in.Capacity() < 200 {
		t.Errorf("capacity = %d with 100 live symbols, want at least 200", in.Capacity())
	}
	for sp, want := range syms {
		if got := rt.MustIntern(sp); got != want {
			t.Fatalf("intern %q lost identity across churn and growth", sp)
		}
	}
}

func TestBootFixedSymbols(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: -1, BootWords: []string{"add", "print"}})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	add := rt.MustIntern("add")
	if add.FixedID() != 1 {
		t.Errorf("FixedID(add) = %d, want 1", add.FixedID())
	}
	if rt.BootSymbol(2) != rt.MustIntern("print") {
		t.Error("BootSymbol(2) should be the interned 'print'")
	}
	// Boot symbols survive collection with no other references.
	rt.Collect()
	if rt.MustIntern("add") != add {
		t.Error("boot symbol was collected")
	}
}

// ---------------------------------------------------------------------------
// Deletion and canonical promotion
// ---------------------------------------------------------------------------

func TestForgetPromotesSynonym(t *testing.T) {
	rt := newTestRuntime(t)
	lower := rt.MustIntern("foo")
	upper := rt.MustIntern("FOO")

	rt.interns.forget(lower)

	if !upper.IsCanonical() {
		t.Fatal("surviving synonym should be promoted to canonical")
	}
	// The table slot now points at the promoted member: reinterning the
	// exact surviving spelling returns it.
	if rt.MustIntern("FOO") != upper {
		t.Error("promoted canonical lost its slot")
	}
	// A fresh intern of the dead spelling creates a new synonym in the
	// survivor's ring.
	fresh := rt.MustIntern("foo")
	if fresh == lower {
		t.Error("forgotten symbol identity must not be resurrected")
	}
	if fresh.Canonical() != upper {
		t.Error("fresh synonym should link into the survivor's ring")
	}
}

func TestForgetSoleMemberLeavesTombstone(t *testing.T) {
	rt := newTestRuntime(t)
	sym := rt.MustIntern("lonely")
	used := rt.interns.NumCanonicals()
	rt.interns.forget(sym)
	if rt.interns.NumCanonicals() != used-1 {
		t.Error("forgetting a sole member should drop the canonical count")
	}
	if rt.MustIntern("lonely") == sym {
		t.Error("forgotten symbol identity must not be resurrected")
	}
}

// TestInternDeleteProperty is the ground-truth test for open-addressing
// deletion: after any sequence of interleaved inserts and deletes, every
// still-live key must be reachable by probing from its hash. A lookup that
// misses creates a fresh canonical with a new identity, which the ground
// truth map exposes immediately.
func TestInternDeleteProperty(t *testing.T) {
	rt, err := NewRuntime(Config{GCTrigger: -1, InternCapacity: 7})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	in := rt.Interns()
	rng := rand.New(rand.NewSource(0x5eed))

	// A tiny alphabet with case variants maximizes collisions and rings.
	spellings := make([]string, 0, 200)
	for i := 0; i < 100; i++ {
		base := fmt.Sprintf("%c%c%d", 'a'+rng.Intn(4), 'a'+rng.Intn(4), rng.Intn(5))
		spellings = append(spellings, base)
		spellings = append(spellings, string('A'+byte(base[0]-'a'))+base[1:])
	}

	live := map[string]*Series{}
	for step := 0; step < 5000; step++ {
		sp := spellings[rng.Intn(len(spellings))]
		if prev, ok := live[sp]; ok && rng.Intn(2) == 0 {
			in.forget(prev)
			delete(live, sp)
			continue
		}
		got := rt.MustIntern(sp)
		if prev, ok := live[sp]; ok && got != prev {
			t.Fatalf("step %d: key %q hidden by deletion bug (got new identity)", step, sp)
		}
		live[sp] = got
	}

	// Full-table scan as ground truth: every live key resolves, and the
	// canonical count matches the number of live rings.
	rings := map[*Series]bool{}
	for sp, want := range live {
		got := rt.MustIntern(sp)
		if got != want {
			t.Fatalf("final scan: key %q lost identity", sp)
		}
		rings[got.Canonical()] = true
	}
	if in.NumCanonicals() != len(rings) {
		t.Errorf("canonical count %d, want %d live rings", in.NumCanonicals(), len(rings))
	}
}
