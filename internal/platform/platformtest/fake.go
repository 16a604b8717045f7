// Package platformtest provides hand-rolled fakes of the platform
// capability set for supervisor and broker tests.
package platformtest

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
)

// FakeApp implements platform.App with scriptable behavior.
//
// Stop transitions synchronously to Stopped when StopSync is set or Pids is
// empty, which models an app whose processes were already gone; otherwise
// the app stays in its current state until SigChild drains Pids.
type FakeApp struct {
	AppName     string
	St          types.AppState
	StartResult types.Result
	StopSync    bool

	// Pids are the app's live top-level processes.
	Pids []int

	// Action is returned by SigChild for every process death.
	Action types.FaultAction

	// WdogAction is returned for watchdog expiries on owned processes.
	WdogAction types.WatchdogAction

	StartCalls int
	StopCalls  int
	Deleted    bool

	// DeleteHook, when set, runs on Delete. Tests use it to record
	// destruction order.
	DeleteHook func()

	CreateProcErr   error
	StartProcResult types.Result
	CreatedProcs    []*FakeProc
	DeletedProcs    []*FakeProc
}

// NewFakeApp creates a stopped fake app.
func NewFakeApp(name string) *FakeApp {
	return &FakeApp{
		AppName:         name,
		St:              types.AppStopped,
		StartResult:     types.OK,
		Action:          types.FaultActionIgnore,
		WdogAction:      types.WatchdogActionIgnore,
		StartProcResult: types.OK,
	}
}

func (a *FakeApp) Name() string { return a.AppName }

func (a *FakeApp) Start() types.Result {
	a.StartCalls++
	if a.StartResult == types.OK {
		a.St = types.AppRunning
	}
	return a.StartResult
}

func (a *FakeApp) Stop() {
	a.StopCalls++
	if a.StopSync || len(a.Pids) == 0 {
		a.St = types.AppStopped
	}
}

func (a *FakeApp) State() types.AppState { return a.St }

func (a *FakeApp) ProcState(procName string) types.ProcState {
	if a.St == types.AppRunning {
		return types.ProcRunning
	}
	return types.ProcStopped
}

func (a *FakeApp) HasTopLevelProc(pid int) bool {
	for _, p := range a.Pids {
		if p == pid {
			return true
		}
	}
	return false
}

// SigChild drops pid from the live set; the app stops when the set drains.
func (a *FakeApp) SigChild(pid, status int) types.FaultAction {
	for i, p := range a.Pids {
		if p == pid {
			a.Pids = append(a.Pids[:i], a.Pids[i+1:]...)
			break
		}
	}
	if len(a.Pids) == 0 {
		a.St = types.AppStopped
	}
	return a.Action
}

func (a *FakeApp) WatchdogTimedOut(procID int) (types.WatchdogAction, bool) {
	return a.WdogAction, a.HasTopLevelProc(procID)
}

func (a *FakeApp) CreateProc(procName, execPath string) (platform.Proc, error) {
	if a.CreateProcErr != nil {
		return nil, a.CreateProcErr
	}

	// A configured process is the same handle for every Create call;
	// ad-hoc processes are always new.
	if procName != "" {
		for _, p := range a.CreatedProcs {
			if p.ProcName == procName {
				return p, nil
			}
		}
	}

	p := &FakeProc{ProcName: procName, Exec: execPath}
	a.CreatedProcs = append(a.CreatedProcs, p)
	return p, nil
}

func (a *FakeApp) StartProc(p platform.Proc) types.Result {
	p.(*FakeProc).Started++
	return a.StartProcResult
}

func (a *FakeApp) DeleteProc(p platform.Proc) {
	a.DeletedProcs = append(a.DeletedProcs, p.(*FakeProc))
}

func (a *FakeApp) Delete() {
	a.Deleted = true
	if a.DeleteHook != nil {
		a.DeleteHook()
	}
}

// FakeProc implements platform.Proc, recording overrides.
type FakeProc struct {
	ProcName string
	Exec     string

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Args           []string
	ArgsOverridden bool

	Priority string
	Fault    types.FaultAction
	FaultSet bool

	StopFn  func(status int)
	Started int
}

func (p *FakeProc) SetStdIn(f *os.File)  { p.Stdin = f }
func (p *FakeProc) SetStdOut(f *os.File) { p.Stdout = f }
func (p *FakeProc) SetStdErr(f *os.File) { p.Stderr = f }

func (p *FakeProc) AddArg(arg string) types.Result {
	if len(arg) >= types.MaxArgBytes {
		return types.Overflow
	}
	p.ArgsOverridden = true
	if arg != "" {
		p.Args = append(p.Args, arg)
	}
	return types.OK
}

func (p *FakeProc) ClearArgs() {
	p.Args = nil
	p.ArgsOverridden = false
}

func (p *FakeProc) SetPriority(priority string) types.Result {
	if res := types.ValidatePriority(priority); res != types.OK {
		return res
	}
	p.Priority = priority
	return types.OK
}

func (p *FakeProc) ClearPriority() types.Result {
	p.Priority = ""
	return types.OK
}

func (p *FakeProc) SetFaultAction(action types.FaultAction) {
	p.Fault = action
	p.FaultSet = true
}

func (p *FakeProc) ClearFaultAction() {
	p.Fault = types.FaultActionNone
	p.FaultSet = false
}

func (p *FakeProc) SetStopHandler(fn func(status int)) {
	p.StopFn = fn
}

// FakeConfig is an in-memory apps configuration tree.
type FakeConfig struct {
	// Manual maps installed app names to their startManual flag.
	Manual map[string]bool

	// Order fixes the enumeration order; defaults to map order is not
	// acceptable for autostart tests.
	Order []string
}

func (c *FakeConfig) Apps() []string {
	if c.Order != nil {
		return c.Order
	}
	names := make([]string, 0, len(c.Manual))
	for name := range c.Manual {
		names = append(names, name)
	}
	return names
}

func (c *FakeConfig) HasApp(name string) bool {
	_, ok := c.Manual[name]
	return ok
}

func (c *FakeConfig) StartManual(name string) bool {
	return c.Manual[name]
}

// FakeLabels resolves app names from a static pid table.
type FakeLabels struct {
	// Names maps pid to owning app name.
	Names map[int]string

	// FailPids report Fault, modelling an unreadable label.
	FailPids map[int]bool
}

func (l *FakeLabels) AppName(pid int) (string, types.Result) {
	if l.FailPids[pid] {
		return "", types.Fault
	}
	name, ok := l.Names[pid]
	if !ok {
		return "", types.NotFound
	}
	return name, types.OK
}

// FakeReaper records reaps and serves scripted exit statuses.
type FakeReaper struct {
	// Statuses maps pid to the wait status Reap returns.
	Statuses map[int]int

	Reaped []int
	Err    error
}

func (r *FakeReaper) Reap(pid int) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.Reaped = append(r.Reaped, pid)
	return r.Statuses[pid], nil
}

// FakeFactory hands out pre-built fake apps by name.
type FakeFactory struct {
	Apps map[string]*FakeApp
}

func (f *FakeFactory) CreateApp(name string) (platform.App, error) {
	app, ok := f.Apps[name]
	if !ok {
		return nil, fmt.Errorf("no app handle for %q", name)
	}
	return app, nil
}
