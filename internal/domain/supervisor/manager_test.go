package supervisor

import (
	"testing"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

func TestAutoStartHonorsStartManual(t *testing.T) {
	h := newHarness(t)
	h.install("alpha", false)
	h.install("beta", true)

	h.m.AutoStart()

	if got := h.m.ActiveApps(); len(got) != 1 || got[0] != "alpha" {
		t.Errorf("Expected active = [alpha], got %v", got)
	}
	if got := h.m.InactiveApps(); len(got) != 1 || got[0] != "beta" {
		t.Errorf("Expected inactive = [beta], got %v", got)
	}

	if st, _ := h.m.State("alpha"); st != types.AppRunning {
		t.Errorf("Expected alpha running, got %s", st)
	}
	if st, _ := h.m.State("beta"); st != types.AppStopped {
		t.Errorf("Expected beta stopped, got %s", st)
	}
}

func TestStartAppDuplicate(t *testing.T) {
	h := newHarness(t)
	h.install("alpha", false)

	first, err := h.m.StartApp("alpha")
	if err != nil || first != types.OK {
		t.Fatalf("First start = %s, %v", first, err)
	}

	second, err := h.m.StartApp("alpha")
	if err != nil {
		t.Fatalf("Second start protocol error: %v", err)
	}
	if second != types.Duplicate {
		t.Errorf("Expected Duplicate, got %s", second)
	}
}

func TestStartAppNotInstalled(t *testing.T) {
	h := newHarness(t)

	res, err := h.m.StartApp("ghost")
	if err != nil {
		t.Fatalf("Protocol error: %v", err)
	}
	if res != types.NotFound {
		t.Errorf("Expected NotFound, got %s", res)
	}
}

func TestStartAppInvalidNameKillsClient(t *testing.T) {
	h := newHarness(t)

	for _, name := range []string{"", "bad/name"} {
		if _, err := h.m.StartApp(name); err == nil {
			t.Errorf("Expected protocol violation for %q", name)
		}
	}
}

func TestStopAppAsync(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "alpha", 100)

	replies := make(chan types.Result, 1)
	if err := h.m.StopApp("alpha", func(r types.Result) { replies <- r }); err != nil {
		t.Fatalf("StopApp: %v", err)
	}

	// The app has a live process, so the stop completes only once the
	// child-signal path observes the death.
	select {
	case r := <-replies:
		t.Fatalf("Stop replied %s before the app stopped", r)
	default:
	}

	if app.StopCalls != 1 {
		t.Fatalf("Expected one stop call, got %d", app.StopCalls)
	}

	if res := h.m.SigChild(100); res != types.OK {
		t.Fatalf("SigChild = %s", res)
	}

	if r := <-replies; r != types.OK {
		t.Errorf("Expected OK reply, got %s", r)
	}
	if !contains(h.m.InactiveApps(), "alpha") {
		t.Error("Stopped app should be on the inactive list")
	}
	if !h.m.quiesced() {
		t.Error("Registry should have quiesced")
	}
}

func TestStopAppAlreadyStopped(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "delta")
	app.StopSync = true

	// Stop it once so it lands on the inactive list.
	replies := make(chan types.Result, 1)
	h.m.StopApp("delta", func(r types.Result) { replies <- r })
	if r := <-replies; r != types.OK {
		t.Fatalf("First stop reply = %s", r)
	}

	before := h.m.InactiveApps()

	// A second stop finds nothing on the active list.
	h.m.StopApp("delta", func(r types.Result) { replies <- r })
	if r := <-replies; r != types.NotFound {
		t.Errorf("Expected NotFound for stopped app, got %s", r)
	}

	after := h.m.InactiveApps()
	if len(before) != len(after) {
		t.Errorf("Registry changed: %v -> %v", before, after)
	}
}

func TestStopAppSyncWhenAlreadyStoppedState(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "alpha")
	app.StopSync = true

	replies := make(chan types.Result, 1)
	h.m.StopApp("alpha", func(r types.Result) { replies <- r })

	// No live processes: the stop handler fires synchronously.
	if r := <-replies; r != types.OK {
		t.Errorf("Expected synchronous OK reply, got %s", r)
	}
}

func TestLaunchStopRoundTrip(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "alpha")
	app.StopSync = true

	replies := make(chan types.Result, 1)
	h.m.StopApp("alpha", func(r types.Result) { replies <- r })
	<-replies

	if len(h.m.ActiveApps()) != 0 {
		t.Error("Active list should be empty after stop")
	}
	if !contains(h.m.InactiveApps(), "alpha") {
		t.Error("App should remain known on the inactive list")
	}
	if !h.m.quiesced() {
		t.Error("Registry should have quiesced")
	}
}

func TestProcState(t *testing.T) {
	h := newHarness(t)
	h.running(t, "alpha", 100)

	st, err := h.m.ProcState("alpha", "worker")
	if err != nil {
		t.Fatalf("ProcState: %v", err)
	}
	if st != types.ProcRunning {
		t.Errorf("Expected running, got %s", st)
	}

	st, _ = h.m.ProcState("ghost", "worker")
	if st != types.ProcStopped {
		t.Errorf("Unknown app should report stopped, got %s", st)
	}

	if _, err := h.m.ProcState("alpha", "bad/proc"); err == nil {
		t.Error("Expected protocol violation for bad proc name")
	}
}
