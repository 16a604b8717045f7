// Package platform defines the capability set the supervisor consumes from
// the per-app subsystem. The supervisor never reaches into an app's
// processes directly; it drives these interfaces and observes state
// transitions through the child-signal path.
package platform

import (
	"os"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// App is the per-application capability handle. Start and Stop may return
// before the app finishes its transition; the stopped transition is always
// observed through the supervisor's child-signal path.
type App interface {
	// Name returns the app's installed name.
	Name() string

	// Start launches the app's configured processes.
	Start() types.Result

	// Stop begins killing the app's processes. Asynchronous: the app is
	// stopped only once every process has been reaped.
	Stop()

	// State returns the app's current lifecycle state.
	State() types.AppState

	// ProcState returns the state of a configured process.
	ProcState(procName string) types.ProcState

	// HasTopLevelProc reports whether pid is a process the app launched
	// directly. Used when a child dies before applying its own security
	// label.
	HasTopLevelProc(pid int) bool

	// SigChild records the death of pid with the given wait status and
	// returns the fault action the supervisor must apply. Process-level
	// recovery (restarting a single process) happens inside the app layer.
	SigChild(pid int, status int) types.FaultAction

	// WatchdogTimedOut resolves a watchdog expiry for procID. The boolean
	// reports whether this app owns the process; when false the action is
	// meaningless and the supervisor moves on to the next app.
	WatchdogTimedOut(procID int) (types.WatchdogAction, bool)

	// CreateProc builds a process handle for a configured process
	// (procName non-empty) or an ad-hoc executable (execPath non-empty).
	CreateProc(procName, execPath string) (Proc, error)

	// StartProc launches a process previously built with CreateProc.
	StartProc(p Proc) types.Result

	// DeleteProc discards a process handle. A running instance is not
	// killed; it remains under the app's fault monitoring.
	DeleteProc(p Proc)

	// Delete releases the app handle. The app must be stopped first.
	Delete()
}

// Proc is a handle to a single process inside an app, carrying client
// overrides that must not outlive the handle. Overrides applied after the
// process has started have no effect on the running instance.
type Proc interface {
	// SetStdIn attaches the process's standard input. Defaults to
	// /dev/null when never called.
	SetStdIn(f *os.File)

	// SetStdOut attaches the process's standard output. Defaults to the
	// framework log.
	SetStdOut(f *os.File)

	// SetStdErr attaches the process's standard error. Defaults to the
	// framework log.
	SetStdErr(f *os.File)

	// AddArg appends a command line argument, overriding the configured
	// argument list. An empty argument finalizes an intentionally empty
	// list. Returns Overflow if the argument is too long.
	AddArg(arg string) types.Result

	// ClearArgs reverts to the configured argument list.
	ClearArgs()

	// SetPriority overrides the process priority. The priority string is
	// one of idle, low, medium, high, rt1..rt32. Returns Overflow if the
	// string is too long and Fault if it names no known priority.
	SetPriority(priority string) types.Result

	// ClearPriority reverts to the configured or default priority.
	// Clearing never fails; a non-OK return is a bug in the app layer.
	ClearPriority() types.Result

	// SetFaultAction overrides the process's fault action.
	SetFaultAction(action types.FaultAction)

	// ClearFaultAction reverts to the configured or default fault action.
	ClearFaultAction()

	// SetStopHandler installs fn to run when the process stops, with the
	// process's wait status. A nil fn clears the handler. At most one
	// handler exists per process.
	SetStopHandler(fn func(status int))
}
