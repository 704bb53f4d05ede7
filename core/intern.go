package core

import (
	"errors"
	"fmt"
)

// ErrInternTableFull is returned when the intern table would need to grow
// past the largest precomputed prime capacity.
var ErrInternTableFull = errors.New("core: intern table exceeds maximum capacity")

// internPrimes are the allowed table capacities. Growth steps to the first
// prime at least double the current capacity; prime capacities keep every
// double-hash stride coprime with the table size, so a probe sequence visits
// every slot before repeating.
var internPrimes = []int{
	7, 13, 31, 61, 127, 251, 509, 1021, 2039, 4093, 8191, 16381,
	32749, 65521, 131071, 262139, 524287, 1048573, 2097143, 4194301,
}

// deletedSlot is the tombstone marking a slot whose canonical symbol was
// forgotten. Probes skip it; inserts may reuse it.
var deletedSlot = &Series{}

// Interns is the process-wide string interning table: an open-addressed hash
// table mapping case-folded spellings to canonical symbol series. It is
// owned by a Runtime and consulted by everything that creates a word.
type Interns struct {
	rt    *Runtime
	slots []*Series
	used  int // live canonical symbols
	tombs int // tombstones awaiting the next rehash

	// forgetting guards against interning re-entrantly from within a
	// deletion, which the probe/repair logic is not designed to survive.
	forgetting bool
}

func newInterns(rt *Runtime, capacity int) (*Interns, error) {
	prime, err := nextInternPrime(capacity)
	if err != nil {
		return nil, err
	}
	return &Interns{
		rt:    rt,
		slots: make([]*Series, prime),
	}, nil
}

func nextInternPrime(min int) (int, error) {
	for _, p := range internPrimes {
		if p >= min {
			return p, nil
		}
	}
	return 0, ErrInternTableFull
}

// NumCanonicals returns the number of live canonical symbols.
func (in *Interns) NumCanonicals() int { return in.used }

// Capacity returns the current slot count.
func (in *Interns) Capacity() int { return len(in.slots) }

// ---------------------------------------------------------------------------
// Intern
// ---------------------------------------------------------------------------

// Intern returns the canonical or synonym symbol for the exact spelling,
// creating it if needed. Repeated calls with the same bytes return the same
// series identity until the symbol is collected. The only failure is
// resource exhaustion: a table that cannot grow any further.
func (in *Interns) Intern(spelling []byte) (*Series, error) {
	if in.forgetting {
		panic("Interns.Intern: intern during in-progress deletion")
	}
	if len(spelling) == 0 {
		panic("Interns.Intern: empty spelling")
	}
	// A freshly created symbol is not reachable from any root until the
	// caller stores it somewhere; hold off collection for the duration.
	defer in.rt.DisableGC().Release()

	if (in.used+in.tombs)*2 >= len(in.slots) {
		if err := in.compactOrGrow(); err != nil {
			return nil, err
		}
	}

	h := foldHash(spelling)
	size := uint32(len(in.slots))
	idx := h % size
	skip := h%(size-1) + 1
	firstTomb := -1

	for n := uint32(0); n < size; n++ {
		switch s := in.slots[idx]; {
		case s == nil:
			at := int(idx)
			if firstTomb >= 0 {
				at = firstTomb
			}
			return in.insertCanonical(spelling, h, at), nil
		case s == deletedSlot:
			if firstTomb < 0 {
				firstTomb = int(idx)
			}
		case s.sym.hash == h && foldEqual(s.bytes, spelling):
			// Same canonical spelling. An exact case match may be the
			// canonical itself or any member of its synonym ring.
			for p := s; ; {
				if string(p.bytes) == string(spelling) {
					return p, nil
				}
				p = p.sym.next
				if p == s {
					break
				}
			}
			return in.insertSynonym(spelling, h, s), nil
		}
		idx = (idx + skip) % size
	}
	// A table kept under half load always has a free slot.
	panic("Interns.Intern: probe cycle found no slot")
}

func (in *Interns) newSymbol(spelling []byte, h uint32) *Series {
	s := in.rt.AllocSeries(ClassBytes, len(spelling), SeriesManaged)
	s.AppendBytes(spelling)
	s.Freeze()
	s.flags |= seriesSymbol
	s.sym = &symbolMeta{hash: h}
	s.sym.next = s
	return s
}

func (in *Interns) insertCanonical(spelling []byte, h uint32, at int) *Series {
	s := in.newSymbol(spelling, h)
	s.sym.canon = true
	if in.slots[at] == deletedSlot {
		in.tombs--
	}
	in.slots[at] = s
	in.used++
	return s
}

func (in *Interns) insertSynonym(spelling []byte, h uint32, canon *Series) *Series {
	s := in.newSymbol(spelling, h)
	s.sym.next = canon.sym.next
	canon.sym.next = s
	return s
}

// compactOrGrow relieves the load factor when it trips. Intern/forget churn
// accumulates tombstones faster than live symbols; when tombstones dominate,
// rehashing at the same capacity reclaims them, so table size tracks live
// load rather than cumulative traffic. Growth steps the prime ladder only
// when live symbols themselves carry the load.
func (in *Interns) compactOrGrow() error {
	capacity := len(in.slots)
	if in.tombs <= in.used {
		prime, err := nextInternPrime(2 * capacity)
		if err != nil {
			return fmt.Errorf("core: growing intern table past %d slots: %w",
				capacity, err)
		}
		capacity = prime
	}
	in.rehash(capacity)
	return nil
}

// rehash re-inserts every canonical symbol into a fresh table of the given
// prime capacity, dropping tombstones. Synonyms ride along: they are
// reachable from their canonical's ring and never occupy slots themselves.
func (in *Interns) rehash(prime int) {
	old := in.slots
	in.slots = make([]*Series, prime)
	in.tombs = 0
	size := uint32(prime)
	for _, s := range old {
		if s == nil || s == deletedSlot {
			continue
		}
		h := s.sym.hash
		idx := h % size
		skip := h%(size-1) + 1
		for in.slots[idx] != nil {
			idx = (idx + skip) % size
		}
		in.slots[idx] = s
	}
}

// ---------------------------------------------------------------------------
// Forget
// ---------------------------------------------------------------------------

// forget removes a dying symbol from the table, called by the collector
// before the symbol's storage is released. The table must never retain a
// dangling pointer even momentarily.
//
// A dying synonym is simply unlinked from its ring. A dying canonical with
// surviving synonyms hands its table slot to the next ring member (same
// fold hash, so no rehash is needed). A dying sole member leaves a tombstone
// so probe chains that collided through this slot still terminate correctly;
// tombstones are compacted away at the next rehash. (Backward
// ripple-shift deletion is unsound under double hashing, where each key has
// its own stride; the randomized full-scan property test is the authority
// on deletion correctness.)
func (in *Interns) forget(sym *Series) {
	if in.forgetting {
		panic("Interns.forget: re-entrant deletion")
	}
	in.forgetting = true
	defer func() { in.forgetting = false }()

	meta := sym.sym
	if meta == nil {
		panic("Interns.forget: not an interned symbol")
	}

	// Locate the ring predecessor.
	prev := sym
	for prev.sym.next != sym {
		prev = prev.sym.next
	}

	if !meta.canon {
		prev.sym.next = meta.next
		meta.next = sym
		return
	}

	at := in.findSlot(sym)
	if meta.next != sym {
		// Promote the next ring member to canonical in place.
		heir := meta.next
		prev.sym.next = meta.next
		meta.next = sym
		heir.sym.canon = true
		in.slots[at] = heir
		return
	}
	in.slots[at] = deletedSlot
	in.used--
	in.tombs++
}

// findSlot probes for the slot holding the canonical symbol. Hitting an
// empty slot first means the table has been corrupted.
func (in *Interns) findSlot(sym *Series) int {
	h := sym.sym.hash
	size := uint32(len(in.slots))
	idx := h % size
	skip := h%(size-1) + 1
	for n := uint32(0); n < size; n++ {
		s := in.slots[idx]
		if s == sym {
			return int(idx)
		}
		if s == nil {
			break
		}
		idx = (idx + skip) % size
	}
	panic("Interns.findSlot: canonical symbol missing from table")
}

// ---------------------------------------------------------------------------
// Boot symbols and shutdown diagnostics
// ---------------------------------------------------------------------------

// BootFixed interns the given spellings and assigns them fixed symbol
// numbers 1..n. Boot symbols are rooted by the runtime for its whole
// lifetime, so their identities (and numbers) are stable.
func (in *Interns) BootFixed(spellings []string) ([]*Series, error) {
	out := make([]*Series, 0, len(spellings))
	for i, sp := range spellings {
		sym, err := in.Intern([]byte(sp))
		if err != nil {
			return nil, fmt.Errorf("core: interning boot symbol %q: %w", sp, err)
		}
		if sym.sym.fixed != 0 {
			return nil, fmt.Errorf("core: boot symbol %q interned twice", sp)
		}
		sym.sym.fixed = uint16(i + 1)
		out = append(out, sym)
	}
	return out, nil
}

// liveSymbols counts every symbol still in the table, ring members included.
// Used by the shutdown leak check; diagnostic only.
func (in *Interns) liveSymbols() int {
	count := 0
	for _, s := range in.slots {
		if s == nil || s == deletedSlot {
			continue
		}
		for p := s; ; {
			count++
			p = p.sym.next
			if p == s {
				break
			}
		}
	}
	return count
}
