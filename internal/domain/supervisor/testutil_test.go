package supervisor

import (
	"context"
	"testing"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/platformtest"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// harness wires a manager to fakes and runs its event loop for the
// duration of the test.
type harness struct {
	m       *Manager
	cfg     *platformtest.FakeConfig
	labels  *platformtest.FakeLabels
	reaper  *platformtest.FakeReaper
	factory *platformtest.FakeFactory
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		cfg:     &platformtest.FakeConfig{Manual: map[string]bool{}},
		labels:  &platformtest.FakeLabels{Names: map[int]string{}, FailPids: map[int]bool{}},
		reaper:  &platformtest.FakeReaper{Statuses: map[int]int{}},
		factory: &platformtest.FakeFactory{Apps: map[string]*platformtest.FakeApp{}},
		dir:     t.TempDir(),
	}

	h.m = NewManager(Deps{
		Config:     h.cfg,
		Labels:     h.labels,
		Reaper:     h.reaper,
		Factory:    h.factory,
		InstallDir: h.dir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.m.Run(ctx)

	return h
}

// install registers an app in the config tree and factory.
func (h *harness) install(name string, manual bool) *platformtest.FakeApp {
	app := platformtest.NewFakeApp(name)
	h.cfg.Manual[name] = manual
	h.cfg.Order = append(h.cfg.Order, name)
	h.factory.Apps[name] = app
	return app
}

// running installs and launches an app with the given live pids.
func (h *harness) running(t *testing.T, name string, pids ...int) *platformtest.FakeApp {
	t.Helper()

	app := h.install(name, false)
	res, err := h.m.StartApp(name)
	if err != nil {
		t.Fatalf("StartApp(%s) protocol error: %v", name, err)
	}
	if res != types.OK {
		t.Fatalf("StartApp(%s) = %s", name, res)
	}

	app.Pids = pids
	for _, pid := range pids {
		h.labels.Names[pid] = name
	}
	return app
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
