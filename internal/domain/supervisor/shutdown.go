package supervisor

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// Shutdown begins stopping every application. The sequence is
// asynchronous: inactive containers are destroyed immediately, then active
// apps are stopped one at a time, head of the list first, each stop chained
// to the next through the ShutdownNext handler. The handler registered with
// SetAllAppsStoppedHandler fires once when the active list is empty.
func (m *Manager) Shutdown() {
	m.Invoke(m.shutdown)
}

func (m *Manager) shutdown() {
	m.destroyAllInactive()

	c := m.reg.FirstActive()
	if c == nil {
		m.fireAllStopped()
		return
	}

	// Stopping this app kicks off the chain that stops the rest: its stop
	// handler re-enters the shutdown sequence.
	c.StopHandler = registry.StopHandlerShutdownNext

	c.App.Stop()
	m.fireStopHandlerIfStopped(c)
}

func (m *Manager) fireAllStopped() {
	if m.allStopped == nil {
		return
	}
	fn := m.allStopped
	m.allStopped = nil
	fn()
}

// destroyAllInactive deletes every inactive container.
func (m *Manager) destroyAllInactive() {
	for {
		c := m.reg.PopInactive()
		if c == nil {
			return
		}
		m.destroyApp(c)
	}
}

// AppInstalled purges the named app's inactive container so the next
// reference rebuilds it from the fresh install.
func (m *Manager) AppInstalled(name string) error {
	return m.purgeInactiveApp(name)
}

// AppUninstalled purges the named app's inactive container.
func (m *Manager) AppUninstalled(name string) error {
	return m.purgeInactiveApp(name)
}

func (m *Manager) purgeInactiveApp(name string) error {
	if err := checkAppName(name); err != nil {
		return err
	}

	m.Invoke(func() {
		c := m.reg.InactiveByName(name)
		if c == nil {
			return
		}

		m.reg.RemoveInactive(c)
		m.destroyApp(c)

		m.log.Debug("Deleted app container", zap.String("app", name))
	})
	return nil
}

// State helpers for tests and the info surface.

// ActiveApps returns the names of apps on the active list in order.
func (m *Manager) ActiveApps() []string {
	var names []string
	m.Invoke(func() {
		for _, c := range m.reg.Active() {
			names = append(names, c.Name())
		}
	})
	return names
}

// InactiveApps returns the names of apps on the inactive list in order.
func (m *Manager) InactiveApps() []string {
	var names []string
	m.Invoke(func() {
		for _, c := range m.reg.Inactive() {
			names = append(names, c.Name())
		}
	})
	return names
}

// quiesced reports whether every stopped app has settled: no container with
// a stopped app still holds a pending stop handler or sits on the active
// list. Used by tests to assert the core invariant.
func (m *Manager) quiesced() bool {
	ok := true
	m.Invoke(func() {
		for _, c := range m.reg.Active() {
			if c.App.State() == types.AppStopped {
				ok = false
			}
		}
		for _, c := range m.reg.Inactive() {
			if c.StopHandler != registry.StopHandlerNone || c.Active {
				ok = false
			}
		}
	})
	return ok
}
