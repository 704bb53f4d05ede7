// Package core implements the value-representation and memory-management
// substrate of the Kestrel runtime: fixed-size tagged cells, variable-length
// series, symbol interning, a mark-sweep collector, the mold (text
// rendering) engine, and structural deep copy.
package core

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Config carries the tunables a Runtime is started with. Zero values select
// defaults, so core.NewRuntime(core.Config{}) is a working runtime.
type Config struct {
	// GCTrigger is the allocation count between automatic collections.
	// 0 selects the default; negative disables pressure collection.
	GCTrigger int

	// InternCapacity is the initial intern table capacity, rounded up to
	// the next precomputed prime.
	InternCapacity int

	// MoldLimit truncates rendered output to this many characters.
	// 0 means unlimited.
	MoldLimit int

	// BootWords are interned at startup with fixed symbol numbers 1..n and
	// stay rooted for the runtime's lifetime.
	BootWords []string
}

// DefaultGCTrigger is the allocation pressure threshold used when Config
// leaves GCTrigger zero.
const DefaultGCTrigger = 4096

// DefaultInternCapacity is the initial intern table size used when Config
// leaves InternCapacity zero.
const DefaultInternCapacity = 509

// Runtime owns all process-wide mutable state of the core: the series pool,
// the intern table, the shared mold buffer, and the GC root sets. There are
// no package-level globals; embedders hold a *Runtime and pass it along.
// One Runtime supports one logical thread of mutation.
type Runtime struct {
	log commonlog.Logger
	cfg Config

	pool    *Pool
	interns *Interns
	mold    *Molder

	guardCells []Cell
	guardNodes []*Series
	roots      map[*Cell]struct{}
	globals    []Cell

	disable   int // GC-disable counter; collection refused while > 0
	blackened int // outstanding black-colored series, must return to 0

	lastGC   *CollectStats
	bootSyms []*Series
}

// NewRuntime starts a runtime from the given configuration.
func NewRuntime(cfg Config) (*Runtime, error) {
	if cfg.GCTrigger == 0 {
		cfg.GCTrigger = DefaultGCTrigger
	}
	if cfg.GCTrigger < 0 {
		cfg.GCTrigger = 0 // pressure collection off
	}
	if cfg.InternCapacity == 0 {
		cfg.InternCapacity = DefaultInternCapacity
	}

	rt := &Runtime{
		log:   commonlog.GetLogger("kestrel.core"),
		cfg:   cfg,
		roots: make(map[*Cell]struct{}),
	}
	rt.pool = newPool(rt, cfg.GCTrigger)

	interns, err := newInterns(rt, cfg.InternCapacity)
	if err != nil {
		return nil, fmt.Errorf("core: intern table capacity %d: %w",
			cfg.InternCapacity, err)
	}
	rt.interns = interns
	rt.mold = newMolder(rt, cfg.MoldLimit)

	if len(cfg.BootWords) > 0 {
		syms, err := interns.BootFixed(cfg.BootWords)
		if err != nil {
			return nil, err
		}
		rt.bootSyms = syms
		for _, sym := range syms {
			rt.globals = append(rt.globals, WordCell(KindWord, sym))
		}
	}
	return rt, nil
}

// Interns returns the runtime's interning table.
func (rt *Runtime) Interns() *Interns { return rt.interns }

// Pool returns the runtime's series pool.
func (rt *Runtime) Pool() *Pool { return rt.pool }

// BootSymbol returns the boot symbol with fixed number id (1-based).
func (rt *Runtime) BootSymbol(id uint16) *Series {
	if id == 0 || int(id) > len(rt.bootSyms) {
		panic("Runtime.BootSymbol: no such fixed symbol")
	}
	return rt.bootSyms[id-1]
}

// Intern interns a spelling, returning its symbol series.
func (rt *Runtime) Intern(spelling string) (*Series, error) {
	return rt.interns.Intern([]byte(spelling))
}

// MustIntern interns a spelling and panics on table exhaustion. Intended
// for startup paths and tests.
func (rt *Runtime) MustIntern(spelling string) *Series {
	sym, err := rt.Intern(spelling)
	if err != nil {
		panic("MustIntern: " + err.Error())
	}
	return sym
}

// Shutdown checks the runtime's balance invariants and reports leak
// diagnostics. An unbalanced guard stack, GC-disable counter, mold stack, or
// color state at shutdown is a bug in the embedder; Shutdown surfaces it
// rather than masking it.
func (rt *Runtime) Shutdown() error {
	if n := len(rt.guardCells) + len(rt.guardNodes); n != 0 {
		return fmt.Errorf("core: shutdown with %d guarded values still on the stack", n)
	}
	if rt.disable != 0 {
		return fmt.Errorf("core: shutdown with GC disabled (%d holds outstanding)", rt.disable)
	}
	if rt.blackened != 0 {
		return fmt.Errorf("core: shutdown with %d series still colored black", rt.blackened)
	}
	if rt.mold.scopes != 0 {
		return fmt.Errorf("core: shutdown with %d mold scopes still pushed", rt.mold.scopes)
	}

	// Diagnostic only: symbols beyond the boot set still interned.
	if live := rt.interns.liveSymbols(); live > len(rt.bootSyms) {
		rt.log.Infof("shutdown: %d interned symbols still live (boot set is %d)",
			live, len(rt.bootSyms))
	}
	return nil
}
