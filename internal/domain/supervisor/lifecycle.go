package supervisor

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/appinfo"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// AutoStart launches every installed app whose startManual flag is unset.
// Per-app launch failures are logged; there is nothing else to do about
// them at boot.
func (m *Manager) AutoStart() {
	m.Invoke(func() {
		names := m.cfg.Apps()
		if len(names) == 0 {
			m.log.Warn("No applications installed")
			return
		}

		for _, name := range names {
			if m.cfg.StartManual(name) {
				// Known but deferred for manual launch; build the
				// container so the app is tracked on the inactive list.
				m.createApp(name)
				continue
			}
			if res := m.launchApp(name); res != types.OK {
				m.log.Error("Application failed to launch",
					zap.String("app", name),
					zap.Stringer("result", res))
			}
		}
	})
}

// StartApp launches the named app. Returns Duplicate if it is already
// running, NotFound if it is not installed, and Fault if it could not be
// launched. A malformed name is a protocol violation fatal to the client
// session.
func (m *Manager) StartApp(name string) (types.Result, error) {
	if err := checkAppName(name); err != nil {
		return types.Fault, err
	}

	var res types.Result
	m.Invoke(func() {
		m.log.Debug("Received request to start application", zap.String("app", name))
		res = m.launchApp(name)
	})
	return res, nil
}

// StopApp begins stopping the named app. The respond callback receives
// NotFound immediately when the app is not running; otherwise it receives
// OK once the app has actually stopped, which is generally after StopApp
// returns.
func (m *Manager) StopApp(name string, respond func(types.Result)) error {
	if err := checkAppName(name); err != nil {
		return err
	}

	m.Invoke(func() {
		m.log.Debug("Received request to stop application", zap.String("app", name))

		c := m.reg.ActiveByName(name)
		if c == nil {
			m.log.Warn("Application is not running and cannot be stopped",
				zap.String("app", name))
			respond(types.NotFound)
			return
		}

		// The stop completes asynchronously; the handler replies once the
		// stopped transition is observed.
		c.StopCmd = respond
		c.StopHandler = registry.StopHandlerRespond

		c.App.Stop()
		m.fireStopHandlerIfStopped(c)
	})
	return nil
}

// State returns the app's state. Unknown apps are Stopped.
func (m *Manager) State(name string) (types.AppState, error) {
	if err := checkAppName(name); err != nil {
		return types.AppStopped, err
	}

	state := types.AppStopped
	m.Invoke(func() {
		if c := m.reg.ActiveByName(name); c != nil {
			state = c.App.State()
		}
	})
	return state, nil
}

// ProcState returns the state of a configured process inside an app.
// Unknown apps and processes are Stopped.
func (m *Manager) ProcState(appName, procName string) (types.ProcState, error) {
	if err := checkAppName(appName); err != nil {
		return types.ProcStopped, err
	}
	if err := checkProcName(procName); err != nil {
		return types.ProcStopped, err
	}

	state := types.ProcStopped
	m.Invoke(func() {
		if c := m.reg.ActiveByName(appName); c != nil {
			state = c.App.ProcState(procName)
		}
	})
	return state, nil
}

// AppNameForPid returns the name of the app that owns the given process,
// resolved from its security label.
func (m *Manager) AppNameForPid(pid int) (string, types.Result) {
	return m.labels.AppName(pid)
}

// Hash returns the installed app's content hash from its install metadata.
func (m *Manager) Hash(appName string) (string, types.Result, error) {
	if err := checkAppName(appName); err != nil {
		return "", types.Fault, err
	}

	hash, res := appinfo.Hash(m.installDir, appName)
	return hash, res, nil
}

// ObtainContainer looks up or creates the container for the named app.
// Must run on the event loop.
func (m *Manager) ObtainContainer(name string) (*registry.Container, types.Result) {
	return m.createApp(name)
}

// StartContainer activates and starts the app held by an existing
// container. Must run on the event loop.
func (m *Manager) StartContainer(c *registry.Container) types.Result {
	return m.startApp(c)
}

// launchApp obtains the app's container and starts it.
func (m *Manager) launchApp(name string) types.Result {
	c, res := m.createApp(name)
	if c == nil {
		m.log.Error("Application cannot run", zap.String("app", name))
		return res
	}

	if c.Active {
		m.log.Error("Application is already running", zap.String("app", name))
		return types.Duplicate
	}

	return m.startApp(c)
}

// createApp finds the app's container on the active or inactive list, or
// builds one from the configuration tree. Returns NotFound when the app is
// not installed.
func (m *Manager) createApp(name string) (*registry.Container, types.Result) {
	if c := m.reg.ActiveByName(name); c != nil {
		return c, types.OK
	}
	if c := m.reg.InactiveByName(name); c != nil {
		return c, types.OK
	}

	if !m.cfg.HasApp(name) {
		m.log.Error("Application is not installed", zap.String("app", name))
		return nil, types.NotFound
	}

	app, err := m.factory.CreateApp(name)
	if err != nil {
		m.log.Error("Failed to create application",
			zap.String("app", name), zap.Error(err))
		return nil, types.Fault
	}

	c := &registry.Container{App: app}
	m.reg.Insert(c)
	return c, types.OK
}

// startApp moves the container to the active list, arms the default stop
// handler, and starts the app. The container stays active even when the
// start fails: any processes that did launch are killed and reaped through
// the child-signal path, which deactivates the container.
func (m *Manager) startApp(c *registry.Container) types.Result {
	m.reg.Activate(c)
	c.StopHandler = registry.StopHandlerDeactivate

	m.metrics.RecordAppStart()
	m.metrics.SetAppsActive(m.reg.ActiveCount())

	return c.App.Start()
}
