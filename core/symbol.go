package core

// A symbol is a frozen, managed byte series holding an interned spelling,
// plus a side record linking it to its case-variant synonyms. The canonical
// spelling is the one the intern table indexes; synonyms hang off it in a
// circular singly-linked ring so any member can reach all others and the
// canonical role can be handed to a survivor when the current canonical is
// collected.
type symbolMeta struct {
	next  *Series // circular synonym ring; self-linked when sole member
	hash  uint32  // case-insensitive hash shared by the whole ring
	fixed uint16  // fixed symbol number assigned at boot; 0 = none
	canon bool    // whether this member is the table-indexed canonical
}

// IsCanonical reports whether the symbol is its ring's canonical member.
// Panics if the series is not an interned symbol.
func (s *Series) IsCanonical() bool {
	return s.meta("Series.IsCanonical").canon
}

// Canonical returns the canonical member of the symbol's synonym ring.
func (s *Series) Canonical() *Series {
	s.meta("Series.Canonical")
	for p := s; ; p = p.sym.next {
		if p.sym.canon {
			return p
		}
		if p.sym.next == s {
			return s // ring mid-teardown; caller holds the only live member
		}
	}
}

// FixedID returns the boot-assigned fixed symbol number, or 0 if the symbol
// has none. Fixed numbers give built-in words O(1) identity comparison.
func (s *Series) FixedID() uint16 {
	return s.meta("Series.FixedID").fixed
}

func (s *Series) meta(who string) *symbolMeta {
	if s.sym == nil {
		panic(who + ": not an interned symbol")
	}
	return s.sym
}

// ---------------------------------------------------------------------------
// Spelling comparison
// ---------------------------------------------------------------------------

// CompareSpellings reports whether two spellings are equal. Strict
// comparison is byte-exact; non-strict folds ASCII case, matching the
// equivalence the intern table uses to group synonyms.
func CompareSpellings(a, b []byte, strict bool) bool {
	if strict {
		return string(a) == string(b)
	}
	return foldEqual(a, b)
}

func foldByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func foldEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if foldByte(a[i]) != foldByte(b[i]) {
			return false
		}
	}
	return true
}

// foldHash is an FNV-1a hash over the case-folded spelling, so every member
// of a synonym ring probes to the same slot chain.
func foldHash(spelling []byte) uint32 {
	h := uint32(2166136261)
	for _, b := range spelling {
		h ^= uint32(foldByte(b))
		h *= 16777619
	}
	return h
}
