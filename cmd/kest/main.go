// Kestrel CLI - load Kestrel source, inspect values, and manage snapshots
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/kestrel-lang/kestrel/core"
	"github.com/kestrel-lang/kestrel/manifest"
	"github.com/kestrel-lang/kestrel/scan"
	"github.com/kestrel-lang/kestrel/snapshot"
)

const historyFile = ".kest_history"

func main() {
	os.Exit(run())
}

func run() int {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	interactive := flag.Bool("i", false, "Start interactive session")
	eval := flag.String("e", "", "Load the given source text, print it molded, and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kest [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Starts Kestrel, loads the given .kest files, and prints their values.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kest -i                # Start interactive session\n")
		fmt.Fprintf(os.Stderr, "  kest -e '[1 2 3]'      # Load and mold one expression\n")
		fmt.Fprintf(os.Stderr, "  kest data.kest         # Load a file, print its values\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	// Pick up kestrel.toml from the working directory or any ancestor.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default()
		m.Dir = cwd
	} else if *verbose {
		fmt.Printf("Using manifest in %s\n", m.Dir)
	}

	rt, err := core.NewRuntime(m.RuntimeOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting runtime: %v\n", err)
		return 1
	}

	if *eval != "" {
		blk, err := scan.Load(rt, *eval)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		printBlock(rt, blk)
		return 0
	}

	files := flag.Args()
	for _, path := range files {
		if err := loadFile(rt, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if *interactive || len(files) == 0 {
		return runSession(rt, m)
	}
	return 0
}

// loadFile scans one source file and prints every value it holds.
func loadFile(rt *core.Runtime, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	blk, err := scan.Load(rt, string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	printBlock(rt, blk)
	return nil
}

func printBlock(rt *core.Runtime, blk core.Cell) {
	node := blk.Node()
	for i := 0; i < node.Len(); i++ {
		fmt.Println(rt.Mold(node.CellAt(i)))
	}
}

// ---------------------------------------------------------------------------
// Interactive session
// ---------------------------------------------------------------------------

// session carries the state the interactive loop mutates: the value most
// recently loaded (the snapshot subject) and the open catalog, if any.
type session struct {
	rt      *core.Runtime
	man     *manifest.Manifest
	store   *snapshot.Store
	current core.Cell
}

func runSession(rt *core.Runtime, m *manifest.Manifest) int {
	fmt.Println("Kestrel session (type :help for commands, :quit to leave)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	// Load history (best-effort)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{rt: rt, man: m, current: core.NullCell()}
	rt.AddRoot(&s.current)
	defer func() {
		rt.RemoveRoot(&s.current)
		if s.store != nil {
			s.store.Close()
		}
	}()

	for {
		line, err := ln.Prompt(">> ")
		if err == liner.ErrPromptAborted { // Ctrl+C drops the line
			continue
		}
		if err != nil { // Ctrl+D, EOF
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(trimmed, ":") {
			if done := s.command(trimmed); done {
				break
			}
			continue
		}

		blk, err := scan.Load(rt, line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		// A single value becomes the subject directly; several stay blocked.
		if blk.Node().Len() == 1 {
			s.current = blk.Node().CellAt(0)
		} else {
			s.current = blk
		}
		fmt.Println(rt.Mold(s.current))
	}

	// Persist history (best-effort)
	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// command handles the ':' meta-commands. Returns true to end the session.
func (s *session) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Println("Session commands:")
		fmt.Println("  :help, :h, :?     Show this help")
		fmt.Println("  :gc               Run a collection and show its statistics")
		fmt.Println("  :stats            Show heap and intern table statistics")
		fmt.Println("  :copy             Deep-copy the current value")
		fmt.Println("  :save             Snapshot the current value into the catalog")
		fmt.Println("  :load <key>       Restore a snapshot as the current value")
		fmt.Println("  :snapshots        List the snapshot catalog")
		fmt.Println("  :quit, :exit      Leave the session")

	case ":quit", ":exit":
		return true

	case ":gc":
		stats := s.rt.Collect()
		if stats == nil {
			fmt.Println("collection is disabled")
			break
		}
		fmt.Printf("%d nodes, %d marked, %d freed, %d symbols forgotten in %s\n",
			stats.NodesBefore, stats.Marked, stats.Freed,
			stats.SymbolsForgotten, stats.Duration)

	case ":stats":
		fmt.Printf("live nodes: %d\n", s.rt.Pool().NumNodes())
		if last := s.rt.LastCollect(); last != nil {
			fmt.Printf("last collection: freed %d at %s\n",
				last.Freed, last.Timestamp.Format("15:04:05"))
		} else {
			fmt.Println("no collection has run yet")
		}

	case ":copy":
		s.current = s.rt.Clonify(s.current, core.DeepAll)
		fmt.Println(s.rt.Mold(s.current))

	case ":save":
		st, err := s.catalog()
		if err != nil {
			fmt.Println(err)
			break
		}
		snap, err := snapshot.Capture(s.current)
		if err != nil {
			fmt.Printf("capture failed: %v\n", err)
			break
		}
		key, err := st.Put(snap)
		if err != nil {
			fmt.Printf("save failed: %v\n", err)
			break
		}
		fmt.Printf("saved %s\n", key)

	case ":load":
		if len(fields) < 2 {
			fmt.Println("usage: :load <key>")
			break
		}
		st, err := s.catalog()
		if err != nil {
			fmt.Println(err)
			break
		}
		snap, err := st.Get(fields[1])
		if err != nil {
			fmt.Printf("load failed: %v\n", err)
			break
		}
		v, err := snapshot.Restore(s.rt, snap)
		if err != nil {
			fmt.Printf("restore failed: %v\n", err)
			break
		}
		s.current = v
		fmt.Println(s.rt.Mold(s.current))

	case ":snapshots":
		st, err := s.catalog()
		if err != nil {
			fmt.Println(err)
			break
		}
		entries, err := st.List()
		if err != nil {
			fmt.Printf("list failed: %v\n", err)
			break
		}
		if len(entries) == 0 {
			fmt.Println("catalog is empty")
			break
		}
		for _, e := range entries {
			fmt.Printf("%s  %s  %s\n",
				e.Hash, e.CreatedAt.Format("2006-01-02 15:04:05"), e.ID)
		}

	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", fields[0])
	}
	return false
}

// catalog opens the manifest's snapshot catalog on first use.
func (s *session) catalog() (*snapshot.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	path := s.man.CatalogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create catalog directory: %w", err)
	}
	st, err := snapshot.OpenStore(path)
	if err != nil {
		return nil, err
	}
	s.store = st
	return st, nil
}
