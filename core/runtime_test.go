package core

import "testing"

// ---------------------------------------------------------------------------
// Shutdown balance checks
// ---------------------------------------------------------------------------

func TestShutdownBalanced(t *testing.T) {
	rt := newTestRuntime(t)
	rt.NewText("transient") // ordinary allocation must not trip anything
	if err := rt.Shutdown(); err != nil {
		t.Fatalf("Shutdown on a balanced runtime: %v", err)
	}
}

func TestShutdownReportsOutstandingGuards(t *testing.T) {
	rt := newTestRuntime(t)
	g := rt.NewGuard()
	g.Cell(IntegerCell(1))
	if err := rt.Shutdown(); err == nil {
		t.Error("Shutdown should report a guarded value still on the stack")
	}
	g.Release()
	if err := rt.Shutdown(); err != nil {
		t.Errorf("Shutdown after release: %v", err)
	}
}

func TestShutdownReportsOutstandingHold(t *testing.T) {
	rt := newTestRuntime(t)
	hold := rt.DisableGC()
	if err := rt.Shutdown(); err == nil {
		t.Error("Shutdown should report GC still disabled")
	}
	hold.Release()
	if err := rt.Shutdown(); err != nil {
		t.Errorf("Shutdown after release: %v", err)
	}
}

func TestShutdownReportsBlackSeries(t *testing.T) {
	rt := newTestRuntime(t)
	s := rt.AllocSeries(ClassBytes, 0, SeriesManaged)
	rt.Blacken(s)
	if err := rt.Shutdown(); err == nil {
		t.Error("Shutdown should report series left colored black")
	}
	rt.Whiten(s)
	if err := rt.Shutdown(); err != nil {
		t.Errorf("Shutdown after whitening: %v", err)
	}
}

func TestShutdownReportsOpenMoldScope(t *testing.T) {
	rt := newTestRuntime(t)
	sc := rt.MoldPush()
	if err := rt.Shutdown(); err == nil {
		t.Error("Shutdown should report a mold scope still pushed")
	}
	sc.Drop()
	if err := rt.Shutdown(); err != nil {
		t.Errorf("Shutdown after drop: %v", err)
	}
}
