// Package supervisor implements the application lifecycle core: starting,
// stopping, and restarting installed apps, fault recovery on child exit,
// watchdog-timeout dispatch, and the framework shutdown sequence.
//
// App stops are asynchronous: a stop request only begins killing the app's
// processes, and the stopped transition is observed later on the
// child-signal path. Every site that may cause the transition installs a
// stop handler first, then checks whether the app is already stopped and
// fires the handler locally if so. The handler runs exactly once per
// transition, from whichever site observes it.
//
// All state is owned by a single event loop. Entry points enqueue onto the
// loop and the loop runs them one at a time, so the container lists need no
// locking and handlers can never interleave.
package supervisor

import (
	"context"
	"strings"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// Config is the read-only view of the apps configuration tree.
type Config interface {
	Apps() []string
	HasApp(name string) bool
	StartManual(name string) bool
}

// Labels resolves a process's owning app from its security label.
type Labels interface {
	AppName(pid int) (string, types.Result)
}

// ChildReaper collects the exit status of a terminated child.
type ChildReaper interface {
	Reap(pid int) (status int, err error)
}

// AppFactory builds app handles for installed apps.
type AppFactory interface {
	CreateApp(name string) (platform.App, error)
}

// Deps are the external collaborators the manager drives.
type Deps struct {
	Config     Config
	Labels     Labels
	Reaper     ChildReaper
	Factory    AppFactory
	InstallDir string
	Logger     *zap.Logger
}

// Manager owns the app registry and runs the supervision event loop.
type Manager struct {
	cfg        Config
	labels     Labels
	reaper     ChildReaper
	factory    AppFactory
	installDir string

	log     *zap.Logger
	metrics *monitoring.Metrics

	reg   *registry.Registry
	queue chan func()

	// allStopped is the externally registered continuation for the moment
	// every app has shut down. Cleared after firing so it runs once.
	allStopped func()

	// onContainerDestroy purges resources bound to a container before its
	// app handle is deleted. The appProc broker installs it.
	onContainerDestroy func(*registry.Container)
}

// NewManager creates a supervisor manager. Run must be called before any
// operation is invoked.
func NewManager(deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Manager{
		cfg:        deps.Config,
		labels:     deps.Labels,
		reaper:     deps.Reaper,
		factory:    deps.Factory,
		installDir: deps.InstallDir,
		log:        log,
		reg:        registry.New(),
		queue:      make(chan func(), 64),
	}
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Run drains the event loop until ctx is cancelled. Every operation on the
// manager executes here, one at a time.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-m.queue:
			fn()
		}
	}
}

// Invoke runs fn on the event loop and waits for it to complete. It is the
// only way code outside the loop may touch the registry.
func (m *Manager) Invoke(fn func()) {
	done := make(chan struct{})
	m.queue <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// post enqueues fn without waiting for it.
func (m *Manager) post(fn func()) {
	m.queue <- fn
}

// SetAllAppsStoppedHandler registers the continuation fired once when the
// shutdown sequence has stopped every app.
func (m *Manager) SetAllAppsStoppedHandler(fn func()) {
	m.Invoke(func() {
		m.allStopped = fn
	})
}

// SetContainerDestroyHook registers a purge callback invoked before any
// container's app handle is deleted. Must be called during wiring, before
// Run starts consuming events.
func (m *Manager) SetContainerDestroyHook(fn func(*registry.Container)) {
	m.onContainerDestroy = fn
}

// Registry exposes the container lists. Callers must be on the event loop.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// validName reports whether an app or process name is acceptable on the
// IPC surface: non-empty, within the length limit, and free of path
// separators.
func validName(name string) bool {
	if name == "" || len(name) >= types.MaxAppNameBytes {
		return false
	}
	return !strings.Contains(name, "/")
}

// checkAppName validates a client-supplied app name.
func checkAppName(name string) error {
	if !validName(name) {
		return types.Protocolf("invalid app name %q", name)
	}
	return nil
}

// checkProcName validates a client-supplied process name.
func checkProcName(name string) error {
	if !validName(name) {
		return types.Protocolf("invalid process name %q", name)
	}
	return nil
}
