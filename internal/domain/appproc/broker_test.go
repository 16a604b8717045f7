package appproc

import (
	"context"
	"errors"
	"testing"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/supervisor"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/platformtest"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/id"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

type harness struct {
	b       *Broker
	m       *supervisor.Manager
	cfg     *platformtest.FakeConfig
	factory *platformtest.FakeFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		cfg:     &platformtest.FakeConfig{Manual: map[string]bool{}},
		factory: &platformtest.FakeFactory{Apps: map[string]*platformtest.FakeApp{}},
	}

	h.m = supervisor.NewManager(supervisor.Deps{
		Config:     h.cfg,
		Labels:     &platformtest.FakeLabels{Names: map[int]string{}},
		Reaper:     &platformtest.FakeReaper{Statuses: map[int]int{}},
		Factory:    h.factory,
		InstallDir: t.TempDir(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.m.Run(ctx)

	h.b = NewBroker(h.m, nil)
	return h
}

func (h *harness) install(name string) *platformtest.FakeApp {
	app := platformtest.NewFakeApp(name)
	h.cfg.Manual[name] = true
	h.factory.Apps[name] = app
	return app
}

func isViolation(err error) bool {
	var pv *types.ProtocolError
	return errors.As(err, &pv)
}

func TestCreateConfiguredProc(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, err := h.b.Create(sess, "echo", "worker", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ref == "" {
		t.Fatal("Expected a reference")
	}

	if len(app.CreatedProcs) != 1 || app.CreatedProcs[0].ProcName != "worker" {
		t.Fatalf("Unexpected created procs: %+v", app.CreatedProcs)
	}

	// Creating the reference must not start the app.
	if app.StartCalls != 0 {
		t.Errorf("Create must not start the app, start calls = %d", app.StartCalls)
	}
}

func TestCreateDuplicateReferenceKillsClient(t *testing.T) {
	h := newHarness(t)
	h.install("echo")
	sess := id.NewSessionID()

	first, err := h.b.Create(sess, "echo", "p1", "")
	if err != nil {
		t.Fatalf("First create: %v", err)
	}

	// The same configured process resolves to the same handle; a second
	// reference to it is a protocol violation.
	_, err = h.b.Create(sess, "echo", "p1", "")
	if !isViolation(err) {
		t.Fatalf("Expected protocol violation, got %v", err)
	}

	// The first reference stays valid.
	if err := h.b.AddArg(first, "--verbose"); err != nil {
		t.Errorf("First reference should remain valid: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	h.install("echo")
	sess := id.NewSessionID()

	if _, err := h.b.Create(sess, "", "p1", ""); !isViolation(err) {
		t.Error("Empty app name should be a protocol violation")
	}
	if _, err := h.b.Create(sess, "bad/app", "p1", ""); !isViolation(err) {
		t.Error("App name with separator should be a protocol violation")
	}
	if _, err := h.b.Create(sess, "echo", "", ""); !isViolation(err) {
		t.Error("Empty proc name and exec path should be a protocol violation")
	}

	// Unknown app: no reference, but no session kill either.
	ref, err := h.b.Create(sess, "ghost", "p1", "")
	if err != nil {
		t.Errorf("Unknown app should not kill the session: %v", err)
	}
	if ref != "" {
		t.Error("Unknown app should yield no reference")
	}
}

func TestSessionCleanup(t *testing.T) {
	h := newHarness(t)
	h.install("fox")
	h.install("gnu")

	s1 := id.NewSessionID()
	s2 := id.NewSessionID()

	for _, spec := range []struct{ app, proc string }{
		{"fox", "p1"}, {"fox", "p2"}, {"gnu", "p3"},
	} {
		if _, err := h.b.Create(s1, spec.app, spec.proc, ""); err != nil {
			t.Fatalf("Create %s/%s: %v", spec.app, spec.proc, err)
		}
	}
	keep, err := h.b.Create(s2, "gnu", "p4", "")
	if err != nil {
		t.Fatalf("Create for second session: %v", err)
	}

	h.b.CloseSession(s1)

	if n := h.b.Count(); n != 1 {
		t.Errorf("Expected 1 surviving reference, got %d", n)
	}
	if err := h.b.AddArg(keep, "-v"); err != nil {
		t.Errorf("Other session's reference should survive: %v", err)
	}

	// The app containers created on demand remain known.
	if got := h.m.InactiveApps(); len(got) != 2 {
		t.Errorf("Expected fox and gnu to remain inactive, got %v", got)
	}
}

func TestStaleReference(t *testing.T) {
	h := newHarness(t)
	h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")
	if err := h.b.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := h.b.AddArg(ref, "-v"); !isViolation(err) {
		t.Errorf("Stale reference should be a protocol violation, got %v", err)
	}
}

func TestArgOverrideRoundTrip(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")
	proc := app.CreatedProcs[0]

	if err := h.b.AddArg(ref, "--fast"); err != nil {
		t.Fatalf("AddArg: %v", err)
	}
	if !proc.ArgsOverridden || len(proc.Args) != 1 {
		t.Errorf("Override not applied: %+v", proc)
	}

	// An empty argument finalizes an intentionally empty list.
	if err := h.b.ClearArgs(ref); err != nil {
		t.Fatalf("ClearArgs: %v", err)
	}
	if err := h.b.AddArg(ref, ""); err != nil {
		t.Fatalf("AddArg empty: %v", err)
	}
	if !proc.ArgsOverridden || len(proc.Args) != 0 {
		t.Errorf("Empty-list override not applied: %+v", proc)
	}

	if err := h.b.ClearArgs(ref); err != nil {
		t.Fatalf("ClearArgs: %v", err)
	}
	if proc.ArgsOverridden {
		t.Error("ClearArgs should revert to the configured list")
	}
}

func TestPriorityOverride(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")
	proc := app.CreatedProcs[0]

	for _, p := range []string{"idle", "low", "medium", "high", "rt1", "rt32"} {
		if err := h.b.SetPriority(ref, p); err != nil {
			t.Errorf("SetPriority(%s): %v", p, err)
		}
	}
	if proc.Priority != "rt32" {
		t.Errorf("Expected rt32, got %s", proc.Priority)
	}

	for _, p := range []string{"rt0", "rt33", "urgent", "absurdly-long-priority"} {
		if err := h.b.SetPriority(ref, p); !isViolation(err) {
			t.Errorf("SetPriority(%s) should be a protocol violation, got %v", p, err)
		}
	}

	if err := h.b.ClearPriority(ref); err != nil {
		t.Fatalf("ClearPriority: %v", err)
	}
	if proc.Priority != "" {
		t.Errorf("Priority override should be cleared, got %s", proc.Priority)
	}
}

func TestFaultActionOverride(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")
	proc := app.CreatedProcs[0]

	if err := h.b.SetFaultAction(ref, types.FaultActionRestartApp); err != nil {
		t.Fatalf("SetFaultAction: %v", err)
	}
	if !proc.FaultSet || proc.Fault != types.FaultActionRestartApp {
		t.Errorf("Override not applied: %+v", proc)
	}

	if err := h.b.SetFaultAction(ref, types.FaultAction(99)); !isViolation(err) {
		t.Error("Unknown fault action should be a protocol violation")
	}

	if err := h.b.ClearFaultAction(ref); err != nil {
		t.Fatalf("ClearFaultAction: %v", err)
	}
	if proc.FaultSet {
		t.Error("Override should be cleared")
	}
}

func TestStartStartsAppFirst(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")

	res, err := h.b.Start(ref)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res != types.OK {
		t.Fatalf("Start = %s", res)
	}

	if app.StartCalls != 1 {
		t.Errorf("Owning app should have been started, calls = %d", app.StartCalls)
	}
	if app.CreatedProcs[0].Started != 1 {
		t.Errorf("Process should have been started, calls = %d", app.CreatedProcs[0].Started)
	}

	// Second start: app already running, only the proc starts.
	if _, err := h.b.Start(ref); err != nil {
		t.Fatalf("Second start: %v", err)
	}
	if app.StartCalls != 1 {
		t.Errorf("App should not be started twice, calls = %d", app.StartCalls)
	}
}

func TestStopHandlerRegistration(t *testing.T) {
	h := newHarness(t)
	app := h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")
	proc := app.CreatedProcs[0]

	var gotStatus int
	if err := h.b.AddStopHandler(ref, func(status int) { gotStatus = status }); err != nil {
		t.Fatalf("AddStopHandler: %v", err)
	}
	if proc.StopFn == nil {
		t.Fatal("Handler not installed")
	}

	proc.StopFn(9)
	if gotStatus != 9 {
		t.Errorf("Handler not invoked with status, got %d", gotStatus)
	}

	h.b.RemoveStopHandler(ref)
	if proc.StopFn != nil {
		t.Error("Handler should be removed")
	}

	// Removing through a stale reference is tolerated.
	h.b.Delete(ref)
	h.b.RemoveStopHandler(ref)
}

func TestContainerDestroyPurgesRefs(t *testing.T) {
	h := newHarness(t)
	h.install("echo")
	sess := id.NewSessionID()

	ref, _ := h.b.Create(sess, "echo", "p1", "")

	// Uninstalling the app destroys its container, which must purge the
	// reference before the app handle goes away.
	if err := h.m.AppUninstalled("echo"); err != nil {
		t.Fatalf("AppUninstalled: %v", err)
	}

	if n := h.b.Count(); n != 0 {
		t.Errorf("Expected no surviving references, got %d", n)
	}
	if err := h.b.AddArg(ref, "-v"); !isViolation(err) {
		t.Errorf("Reference should be stale after uninstall, got %v", err)
	}
}
