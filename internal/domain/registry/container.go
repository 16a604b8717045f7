package registry

import (
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// StopHandler is the continuation fired when an app reaches the stopped
// state. It is installed before any action that may cause the transition
// and fires exactly once per transition, from whichever site observes the
// app arriving at stopped.
type StopHandler int

const (
	// StopHandlerNone means no continuation is pending.
	StopHandlerNone StopHandler = iota

	// StopHandlerDeactivate moves the container to the inactive list.
	StopHandlerDeactivate

	// StopHandlerRestart resets the continuation to Deactivate and starts
	// the app again.
	StopHandlerRestart

	// StopHandlerRespond deactivates the container and replies OK to the
	// pending stop command.
	StopHandlerRespond

	// StopHandlerShutdownNext destroys the container and continues the
	// framework shutdown sequence with the next active app.
	StopHandlerShutdownNext
)

func (h StopHandler) String() string {
	switch h {
	case StopHandlerNone:
		return "none"
	case StopHandlerDeactivate:
		return "deactivate"
	case StopHandlerRestart:
		return "restart"
	case StopHandlerRespond:
		return "respondToStopCmd"
	case StopHandlerShutdownNext:
		return "shutdownNext"
	default:
		return "unknown"
	}
}

// Container is the supervisor's per-app record. Containers are created on
// demand the first time an app is referenced and survive stop/start cycles;
// they are destroyed only on uninstall, reinstall, or framework shutdown.
type Container struct {
	// App is the handle into the per-app subsystem.
	App platform.App

	// StopHandler is the pending continuation for the next stopped
	// transition.
	StopHandler StopHandler

	// StopCmd replies to the in-flight external stop request, if any.
	StopCmd func(types.Result)

	// Active reports which list holds the container.
	Active bool
}

// Name returns the app's name.
func (c *Container) Name() string {
	return c.App.Name()
}
