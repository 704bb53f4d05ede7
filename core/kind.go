package core

// Kind identifies the datatype held in a Cell.
//
// The set of kinds is closed: the garbage collector, the mold engine, and
// Clonify each dispatch on Kind with an exhaustive switch, so adding a kind
// means updating every dispatch site. The compiler's exhaustiveness over
// these switches is what guarantees that no cell has an ambiguous pointer
// layout (every kind states exactly which payload slots hold series nodes).
type Kind uint8

const (
	KindNull Kind = iota
	KindLogic
	KindInteger
	KindDecimal
	KindPair
	KindChar
	KindWord
	KindSetWord
	KindGetWord
	KindIssue
	KindText
	KindBinary
	KindBitset
	KindBlock
	KindGroup
	KindPath
	KindMap
	KindContext
	KindHandle
	KindAction

	// KindEscaped never appears as a cell's Kind; it is a heart used when a
	// cell's quote depth exceeds MaxInlineQuote and the unquoted payload has
	// been boxed into a hidden singular array.
	KindEscaped

	NumKinds
)

var kindNames = [NumKinds]string{
	"null", "logic", "integer", "decimal", "pair", "char",
	"word", "set-word", "get-word", "issue",
	"text", "binary", "bitset",
	"block", "group", "path",
	"map", "context", "handle", "action",
	"escaped",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k >= NumKinds {
		return "invalid"
	}
	return kindNames[k]
}

// ---------------------------------------------------------------------------
// Per-kind traits
// ---------------------------------------------------------------------------

// Bindable reports whether cells of this kind carry a binding reference
// (which lexical or object context the value is resolved against).
func (k Kind) Bindable() bool {
	switch k {
	case KindWord, KindSetWord, KindGetWord, KindBlock, KindGroup, KindPath:
		return true
	default:
		return false
	}
}

// AnyWord reports whether the kind is one of the word flavors.
func (k Kind) AnyWord() bool {
	switch k {
	case KindWord, KindSetWord, KindGetWord:
		return true
	default:
		return false
	}
}

// AnyArray reports whether the kind is backed by a cell array.
func (k Kind) AnyArray() bool {
	switch k {
	case KindBlock, KindGroup, KindPath:
		return true
	default:
		return false
	}
}

// Sequence reports whether the kind is an immutable sequence. Sequences are
// frozen at construction and must not directly nest another sequence.
func (k Kind) Sequence() bool {
	return k == KindPath
}

// Copyable reports whether Clonify shallow-copies the kind's backing series.
// Kinds outside this set (scalars, words, handles, actions) are copied by
// cell value alone.
func (k Kind) Copyable() bool {
	switch k {
	case KindText, KindBinary, KindBitset, KindBlock, KindGroup, KindPath,
		KindMap, KindContext:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Kind masks
// ---------------------------------------------------------------------------

// KindMask is a bitset over Kind, used to select which kinds Clonify
// descends into.
type KindMask uint32

// MaskOf builds a KindMask from the given kinds.
func MaskOf(kinds ...Kind) KindMask {
	var m KindMask
	for _, k := range kinds {
		m |= 1 << k
	}
	return m
}

// Has reports whether the mask contains the kind.
func (m KindMask) Has(k Kind) bool {
	return m&(1<<k) != 0
}

// DeepAll selects every kind Clonify is able to deepen. Actions are
// deliberately absent: duplicating executable identity has no defined
// semantics.
const DeepAll = KindMask(1<<KindText | 1<<KindBinary | 1<<KindBitset |
	1<<KindBlock | 1<<KindGroup | 1<<KindPath | 1<<KindMap | 1<<KindContext)
