package supervisor

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// SigChild handles the death of a child process.
//
// Returns NotFound when the child belongs to no app; the caller must leave
// it unreaped for its real owner. Returns Fault when the owning app's fault
// policy demands a system reboot; everything else is OK.
func (m *Manager) SigChild(pid int) types.Result {
	var res types.Result
	m.Invoke(func() {
		res = m.sigChild(pid)
	})
	return res
}

func (m *Manager) sigChild(pid int) types.Result {
	// Resolve the dying process's app from its security label before
	// reaping: the label is scrubbed at reap.
	appName, res := m.labels.AppName(pid)

	if res == types.Overflow {
		m.log.Fatal("App name is too long",
			zap.Int("pid", pid), zap.String("app", appName))
	}

	if res == types.Fault {
		m.log.Error("Could not get app name for child process", zap.Int("pid", pid))
		return types.NotFound
	}

	var c *registry.Container

	if res == types.NotFound {
		// The child may have been killed before it applied its own label.
		// Search the active apps for the PID.
		c = m.reg.ActiveByPid(pid)
		if c == nil {
			// Not ours; the caller decides what to do with it.
			return types.NotFound
		}
	} else {
		c = m.reg.ActiveByName(appName)
		if c == nil {
			// A labelled process with no active container is a zombie of
			// an app that was already deactivated. Reap it and move on.
			m.log.Info("Reaping process for stopped app",
				zap.Int("pid", pid), zap.String("app", appName))

			if _, err := m.reaper.Reap(pid); err != nil {
				m.log.Error("Failed to reap child",
					zap.Int("pid", pid), zap.Error(err))
			}
			return types.OK
		}
	}

	status, err := m.reaper.Reap(pid)
	if err != nil {
		m.log.Error("Failed to reap child", zap.Int("pid", pid), zap.Error(err))
	}

	return m.handleFault(c, pid, status)
}

// handleFault asks the app for the fault action triggered by the process
// death and applies it. Returns Fault only for the Reboot action, which the
// caller propagates into a system reboot.
func (m *Manager) handleFault(c *registry.Container, pid, status int) types.Result {
	action := c.App.SigChild(pid, status)

	switch action {
	case types.FaultActionNone, types.FaultActionIgnore:
		// Do nothing.

	case types.FaultActionRestartApp:
		if c.App.State() != types.AppStopped {
			c.App.Stop()
		}
		// Restart once the app has fully stopped.
		c.StopHandler = registry.StopHandlerRestart

	case types.FaultActionStopApp:
		if c.App.State() != types.AppStopped {
			c.App.Stop()
		}

	case types.FaultActionReboot:
		m.metrics.RecordFaultAction(action.String())
		return types.Fault

	default:
		m.log.Fatal("Unexpected fault action",
			zap.String("app", c.Name()), zap.Stringer("action", action))
	}

	m.metrics.RecordFaultAction(action.String())

	m.fireStopHandlerIfStopped(c)
	return types.OK
}
