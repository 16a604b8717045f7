package supervisor

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// WatchdogTimedOut dispatches a watchdog expiry to the app that owns the
// process. The IPC reply has already been sent by the transport; dispatch
// is fire-and-forget onto the event loop.
func (m *Manager) WatchdogTimedOut(userID, procID int) {
	m.post(func() {
		m.watchdogTimedOut(userID, procID)
	})
}

func (m *Manager) watchdogTimedOut(userID, procID int) {
	m.log.Info("Handling watchdog expiry",
		zap.Int("userId", userID), zap.Int("procId", procID))

	for _, c := range m.reg.Active() {
		action, owned := c.App.WatchdogTimedOut(procID)
		if !owned {
			continue
		}

		switch action {
		case types.WatchdogActionNotFound:
			// Lower layers resolve this before reporting ownership.
			m.log.Fatal("Unhandled watchdog action notFound caught by supervisor",
				zap.String("app", c.Name()))

		case types.WatchdogActionIgnore, types.WatchdogActionHandled:
			// Do nothing.

		case types.WatchdogActionReboot:
			// A full module reboot cannot be taken from here without
			// resetting attached peripherals as well; restart the app
			// until a module-level reboot path exists.
			m.log.Error("Watchdog action requires a reboot but a module reboot is not supported, restarting the app instead",
				zap.String("app", c.Name()))
			m.stopForRestart(c)

		case types.WatchdogActionRestartApp:
			m.stopForRestart(c)

		case types.WatchdogActionStopApp:
			if c.App.State() != types.AppStopped {
				c.App.Stop()
			}

		case types.WatchdogActionError:
			m.log.Fatal("Unhandled watchdog action error caught by supervisor",
				zap.String("app", c.Name()))

		default:
			m.log.Fatal("Unknown watchdog action",
				zap.String("app", c.Name()), zap.Stringer("action", action))
		}

		m.metrics.RecordWatchdogTimeout(action.String())

		m.fireStopHandlerIfStopped(c)
		return
	}

	// No active app claimed the process.
	m.log.Error("Process was not started by the framework, no watchdog action can be taken",
		zap.Int("procId", procID))
}

// stopForRestart stops the app if it is still running and arms the restart
// continuation.
func (m *Manager) stopForRestart(c *registry.Container) {
	if c.App.State() != types.AppStopped {
		c.App.Stop()
	}
	c.StopHandler = registry.StopHandlerRestart
}
