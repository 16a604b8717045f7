package supervisor

import (
	"testing"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

func TestCrashInducedRestart(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "gamma", 200)
	app.Action = types.FaultActionRestartApp
	h.reaper.Statuses[200] = 139

	if res := h.m.SigChild(200); res != types.OK {
		t.Fatalf("SigChild = %s", res)
	}

	if len(h.reaper.Reaped) != 1 || h.reaper.Reaped[0] != 200 {
		t.Errorf("Expected pid 200 reaped, got %v", h.reaper.Reaped)
	}
	if app.StartCalls != 2 {
		t.Errorf("Expected restart, start calls = %d", app.StartCalls)
	}
	if st, _ := h.m.State("gamma"); st != types.AppRunning {
		t.Errorf("Expected gamma running after restart, got %s", st)
	}
	if !h.m.quiesced() {
		t.Error("Registry should have quiesced")
	}
}

func TestFaultStopApp(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "gamma", 200)
	app.Action = types.FaultActionStopApp

	if res := h.m.SigChild(200); res != types.OK {
		t.Fatalf("SigChild = %s", res)
	}

	if app.StartCalls != 1 {
		t.Errorf("App should not restart, start calls = %d", app.StartCalls)
	}
	if !contains(h.m.InactiveApps(), "gamma") {
		t.Error("App should be deactivated")
	}
}

func TestFaultIgnoreWithSurvivingProcs(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "gamma", 200, 201)
	app.Action = types.FaultActionIgnore

	if res := h.m.SigChild(200); res != types.OK {
		t.Fatalf("SigChild = %s", res)
	}

	// One process remains; the app is still running and still active.
	if st, _ := h.m.State("gamma"); st != types.AppRunning {
		t.Errorf("Expected gamma still running, got %s", st)
	}
	if !contains(h.m.ActiveApps(), "gamma") {
		t.Error("App should remain active")
	}
}

func TestFaultRebootPropagates(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "gamma", 200)
	app.Action = types.FaultActionReboot

	if res := h.m.SigChild(200); res != types.Fault {
		t.Errorf("Expected Fault for reboot action, got %s", res)
	}
}

func TestSigChildForeignProcessLeftUnreaped(t *testing.T) {
	h := newHarness(t)
	h.running(t, "gamma", 200)

	// 999 carries no app label and belongs to no active app.
	if res := h.m.SigChild(999); res != types.NotFound {
		t.Errorf("Expected NotFound for foreign child, got %s", res)
	}
	if len(h.reaper.Reaped) != 0 {
		t.Errorf("Foreign child must stay unreaped, reaped %v", h.reaper.Reaped)
	}
}

func TestSigChildZombieOfDeactivatedApp(t *testing.T) {
	h := newHarness(t)

	// The label names an app with no active container: a non-direct
	// descendant that died after the app was deactivated.
	h.labels.Names[300] = "oldApp"

	if res := h.m.SigChild(300); res != types.OK {
		t.Errorf("Expected OK, got %s", res)
	}
	if len(h.reaper.Reaped) != 1 || h.reaper.Reaped[0] != 300 {
		t.Errorf("Zombie should be reaped, got %v", h.reaper.Reaped)
	}
}

func TestSigChildLabelFaultTreatedAsNotFound(t *testing.T) {
	h := newHarness(t)
	h.labels.FailPids[301] = true

	if res := h.m.SigChild(301); res != types.NotFound {
		t.Errorf("Expected NotFound when the label cannot be read, got %s", res)
	}
	if len(h.reaper.Reaped) != 0 {
		t.Errorf("Child must stay unreaped, got %v", h.reaper.Reaped)
	}
}

func TestSigChildUnlabelledPidFallback(t *testing.T) {
	h := newHarness(t)
	app := h.running(t, "gamma", 200)
	app.Action = types.FaultActionIgnore

	// The child died before applying its label; resolution falls back to
	// scanning active containers for the PID.
	delete(h.labels.Names, 200)

	if res := h.m.SigChild(200); res != types.OK {
		t.Errorf("Expected OK via PID fallback, got %s", res)
	}
	if len(h.reaper.Reaped) != 1 {
		t.Errorf("Expected the child reaped, got %v", h.reaper.Reaped)
	}
}
