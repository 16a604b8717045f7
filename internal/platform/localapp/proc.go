package localapp

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// Proc is one process inside an app: either a configured worker or an
// ad-hoc executable created by a client. Client overrides live here, never
// in the configuration, so a normal app start is unaffected by them.
type Proc struct {
	app  *App
	name string

	// Configured parameters.
	configExec  string
	configArgs  []string
	configPrio  string
	configFault types.FaultAction
	configWdog  types.WatchdogAction

	// Client overrides.
	execOverride  string
	argsOverride  []string
	argsOverrid   bool
	prioOverride  string
	prioOverrid   bool
	faultOverride types.FaultAction
	faultOverrid  bool

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	stopFn func(status int)

	pid   int
	state types.ProcState

	// adhoc processes are deleted with their handle; configured ones
	// persist for the app's lifetime.
	adhoc bool
}

func (p *Proc) SetStdIn(f *os.File)  { p.stdin = f }
func (p *Proc) SetStdOut(f *os.File) { p.stdout = f }
func (p *Proc) SetStdErr(f *os.File) { p.stderr = f }

// AddArg appends an override argument. The first AddArg disables the
// configured list; an empty argument just finalizes the override so an
// intentionally empty list is expressible.
func (p *Proc) AddArg(arg string) types.Result {
	if len(arg) >= types.MaxArgBytes {
		return types.Overflow
	}

	p.argsOverrid = true
	if arg != "" {
		p.argsOverride = append(p.argsOverride, arg)
	}
	return types.OK
}

// ClearArgs reverts to the configured argument list.
func (p *Proc) ClearArgs() {
	p.argsOverride = nil
	p.argsOverrid = false
}

// SetPriority overrides the process priority.
func (p *Proc) SetPriority(priority string) types.Result {
	if res := types.ValidatePriority(priority); res != types.OK {
		return res
	}
	p.prioOverride = priority
	p.prioOverrid = true
	return types.OK
}

// ClearPriority reverts to the configured or default priority.
func (p *Proc) ClearPriority() types.Result {
	p.prioOverride = ""
	p.prioOverrid = false
	return types.OK
}

// SetFaultAction overrides the process's fault action.
func (p *Proc) SetFaultAction(action types.FaultAction) {
	p.faultOverride = action
	p.faultOverrid = true
}

// ClearFaultAction reverts to the configured or default fault action.
func (p *Proc) ClearFaultAction() {
	p.faultOverride = types.FaultActionNone
	p.faultOverrid = false
}

// SetStopHandler installs fn to run when the process stops.
func (p *Proc) SetStopHandler(fn func(status int)) {
	p.stopFn = fn
}

// executable resolves the path to exec.
func (p *Proc) executable() string {
	if p.execOverride != "" {
		return p.execOverride
	}
	return p.configExec
}

// arguments resolves the effective argument list.
func (p *Proc) arguments() []string {
	if p.argsOverrid {
		return p.argsOverride
	}
	return p.configArgs
}

// priority resolves the effective priority. Empty means default.
func (p *Proc) priority() string {
	if p.prioOverrid {
		return p.prioOverride
	}
	return p.configPrio
}

// faultAction resolves the effective fault action.
func (p *Proc) faultAction() types.FaultAction {
	if p.faultOverrid && p.faultOverride != types.FaultActionNone {
		return p.faultOverride
	}
	if p.configFault != types.FaultActionNone {
		return p.configFault
	}
	return types.FaultActionIgnore
}

// watchdogAction resolves the effective watchdog action.
func (p *Proc) watchdogAction() types.WatchdogAction {
	return p.configWdog
}

// clearOverrides drops every client override so a later normal start uses
// only configured parameters.
func (p *Proc) clearOverrides() {
	p.execOverride = ""
	p.ClearArgs()
	p.ClearPriority()
	p.ClearFaultAction()

	for _, f := range []*os.File{p.stdin, p.stdout, p.stderr} {
		if f != nil {
			f.Close()
		}
	}
	p.stdin = nil
	p.stdout = nil
	p.stderr = nil
}

func errProcRunning(name string) error {
	return fmt.Errorf("configured process %q is already running", name)
}

func errNoExecutable(name string) error {
	return fmt.Errorf("process %q is not configured and no executable was given", name)
}
