package supervisor

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// fireStopHandlerIfStopped runs the container's pending stop handler when
// the app has already reached the stopped state. Every site that may cause
// the stopped transition calls this immediately after initiating it, so a
// transition that completed synchronously is handled on the spot instead of
// waiting for a child signal that already came and went.
func (m *Manager) fireStopHandlerIfStopped(c *registry.Container) {
	if c.App.State() == types.AppStopped && c.StopHandler != registry.StopHandlerNone {
		m.runStopHandler(c)
	}
}

// runStopHandler dispatches the container's stop handler. Each branch
// clears or reassigns the handler itself, so a handler can never fire twice
// for one transition.
func (m *Manager) runStopHandler(c *registry.Container) {
	switch c.StopHandler {
	case registry.StopHandlerDeactivate:
		m.deactivate(c)

	case registry.StopHandlerRestart:
		m.restart(c)

	case registry.StopHandlerRespond:
		m.respondToStopCmd(c)

	case registry.StopHandlerShutdownNext:
		m.shutdownNext(c)

	default:
		m.log.Fatal("Unexpected stop handler",
			zap.String("app", c.Name()),
			zap.Stringer("handler", c.StopHandler))
	}
}

// deactivate moves the container onto the inactive list.
func (m *Manager) deactivate(c *registry.Container) {
	m.reg.Deactivate(c)

	m.log.Info("Application has stopped", zap.String("app", c.Name()))

	m.metrics.RecordAppStop()
	m.metrics.SetAppsActive(m.reg.ActiveCount())
}

// restart starts the app again after a fault-driven stop. The handler is
// reset to Deactivate first so a process death that does not require a
// restart is still handled properly.
func (m *Manager) restart(c *registry.Container) {
	c.StopHandler = registry.StopHandlerDeactivate

	if c.App.Start() == types.OK {
		m.log.Info("Application restarted", zap.String("app", c.Name()))
		m.metrics.RecordAppStart()
		return
	}

	m.log.Error("Could not restart application", zap.String("app", c.Name()))
	m.deactivate(c)
}

// respondToStopCmd deactivates the container and replies OK to the command
// that requested the stop.
func (m *Manager) respondToStopCmd(c *registry.Container) {
	cmd := c.StopCmd
	c.StopCmd = nil

	m.deactivate(c)

	if cmd != nil {
		cmd(types.OK)
	}
}

// shutdownNext destroys the container of an app that stopped during
// framework shutdown and moves the sequence on to the next active app.
func (m *Manager) shutdownNext(c *registry.Container) {
	m.log.Info("Application has stopped", zap.String("app", c.Name()))

	m.reg.RemoveActive(c)
	m.metrics.SetAppsActive(m.reg.ActiveCount())

	m.destroyApp(c)

	// Continue the shutdown process.
	m.shutdown()
}

// destroyApp purges resources bound to the container and deletes its app
// handle. AppProc records must go first; they hold process handles inside
// the app.
func (m *Manager) destroyApp(c *registry.Container) {
	if m.onContainerDestroy != nil {
		m.onContainerDestroy(c)
	}
	c.App.Delete()
}
