package localapp

import (
	"bufio"
	"os"
	"os/exec"
	"syscall"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// App runs an installed app's worker processes. All methods are driven from
// the supervisor event loop, so no locking is needed.
type App struct {
	name  string
	dir   string
	log   *zap.Logger
	state types.AppState

	// configured holds the processes from the app's configuration, in
	// start order. Ad-hoc client processes are tracked only in adhoc.
	configured []*Proc
	adhoc      []*Proc

	// running maps live top-level PIDs to their processes.
	running map[int]*Proc

	// stopping suppresses fault recovery while the app is being killed.
	stopping bool

	// logR/logW is the pipe that collects the default stdout/stderr of
	// every child.
	logR *os.File
	logW *os.File
}

// Name returns the app's installed name.
func (a *App) Name() string { return a.name }

// State returns the app's lifecycle state.
func (a *App) State() types.AppState { return a.state }

// Start launches every configured process. On any launch failure the
// already-started processes are killed and the start reports a fault; their
// deaths surface through the child-signal path as usual.
func (a *App) Start() types.Result {
	a.stopping = false
	a.state = types.AppRunning

	for _, p := range a.configured {
		if err := a.startProc(p); err != nil {
			a.log.Error("Failed to start configured process",
				zap.String("proc", p.name), zap.Error(err))
			a.Stop()
			return types.Fault
		}
	}

	if len(a.running) == 0 {
		a.state = types.AppStopped
	}
	return types.OK
}

// Stop kills every live process. The app reaches the stopped state once
// the last one has been reaped.
func (a *App) Stop() {
	a.stopping = true

	if len(a.running) == 0 {
		a.state = types.AppStopped
		return
	}

	for pid := range a.running {
		// Kill the whole process group so descendants go too.
		if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
			unix.Kill(pid, unix.SIGKILL)
		}
	}
}

// ProcState returns the state of a configured process.
func (a *App) ProcState(procName string) types.ProcState {
	for _, p := range a.configured {
		if p.name == procName {
			return p.state
		}
	}
	return types.ProcStopped
}

// HasTopLevelProc reports whether pid was launched directly by this app.
func (a *App) HasTopLevelProc(pid int) bool {
	_, ok := a.running[pid]
	return ok
}

// SigChild records the death of pid and resolves the fault action the
// supervisor must take. Process-level restarts are handled here; only
// app-level actions propagate up.
func (a *App) SigChild(pid, status int) types.FaultAction {
	p, ok := a.running[pid]
	if !ok {
		return types.FaultActionIgnore
	}

	delete(a.running, pid)
	p.state = types.ProcStopped
	p.pid = 0

	if p.stopFn != nil {
		p.stopFn(status)
	}

	action := types.FaultActionIgnore
	if !a.stopping && abnormal(status) {
		a.log.Warn("Process terminated abnormally",
			zap.String("proc", p.name),
			zap.Int("pid", pid),
			zap.Int("status", status))
		action = p.faultAction()
	}

	if action == types.FaultActionRestartProc {
		action = types.FaultActionIgnore
		if err := a.startProc(p); err != nil {
			a.log.Error("Failed to restart process",
				zap.String("proc", p.name), zap.Error(err))
		}
	}

	if len(a.running) == 0 {
		a.state = types.AppStopped
	}
	return action
}

// WatchdogTimedOut resolves a watchdog expiry for procID.
func (a *App) WatchdogTimedOut(procID int) (types.WatchdogAction, bool) {
	p, ok := a.running[procID]
	if !ok {
		return types.WatchdogActionNotFound, false
	}
	return p.watchdogAction(), true
}

// CreateProc returns a handle to a configured process, or builds an ad-hoc
// one around the given executable.
func (a *App) CreateProc(procName, execPath string) (platform.Proc, error) {
	if procName != "" {
		for _, p := range a.configured {
			if p.name != procName {
				continue
			}
			if p.state == types.ProcRunning {
				return nil, errProcRunning(procName)
			}
			if execPath != "" {
				p.execOverride = execPath
			}
			return p, nil
		}
	}

	if execPath == "" {
		return nil, errNoExecutable(procName)
	}

	name := procName
	if name == "" {
		name = "unspecified"
	}

	p := &Proc{
		app:         a,
		name:        name,
		configExec:  execPath,
		configFault: types.FaultActionIgnore,
		configWdog:  types.WatchdogActionIgnore,
		state:       types.ProcStopped,
		adhoc:       true,
	}
	a.adhoc = append(a.adhoc, p)
	return p, nil
}

// StartProc launches a process handle built with CreateProc.
func (a *App) StartProc(proc platform.Proc) types.Result {
	p := proc.(*Proc)
	if p.state == types.ProcRunning {
		return types.Fault
	}

	if err := a.startProc(p); err != nil {
		a.log.Error("Failed to start process",
			zap.String("proc", p.name), zap.Error(err))
		return types.Fault
	}

	if a.state != types.AppRunning {
		a.state = types.AppRunning
		a.stopping = false
	}
	return types.OK
}

// DeleteProc discards a process handle. The running instance, if any, is
// left alone; it stays under the app's fault monitoring until it dies.
func (a *App) DeleteProc(proc platform.Proc) {
	p := proc.(*Proc)

	p.clearOverrides()
	p.stopFn = nil

	if !p.adhoc {
		return
	}
	for i, got := range a.adhoc {
		if got == p {
			a.adhoc = append(a.adhoc[:i], a.adhoc[i+1:]...)
			return
		}
	}
}

// Delete releases the app handle.
func (a *App) Delete() {
	a.logW.Close()
}

// startProc forks and execs the process, attaching its standard streams
// and applying any priority override. Overrides are consumed at exec time;
// setters after this point do not reach the running instance.
func (a *App) startProc(p *Proc) error {
	cmd := exec.Command(p.executable(), p.arguments()...)
	cmd.Dir = a.dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var devNull *os.File
	if p.stdin != nil {
		cmd.Stdin = p.stdin
	} else {
		f, err := os.Open(os.DevNull)
		if err != nil {
			return err
		}
		devNull = f
		cmd.Stdin = f
	}

	if p.stdout != nil {
		cmd.Stdout = p.stdout
	} else {
		cmd.Stdout = a.logW
	}
	if p.stderr != nil {
		cmd.Stderr = p.stderr
	} else {
		cmd.Stderr = a.logW
	}

	err := cmd.Start()
	if devNull != nil {
		devNull.Close()
	}
	if err != nil {
		return err
	}

	pid := cmd.Process.Pid
	p.pid = pid
	p.state = types.ProcRunning
	a.running[pid] = p

	// Attached descriptors belong to the child now; drop the parent
	// copies so a later start falls back to the defaults.
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	if p.stdout != nil {
		p.stdout.Close()
		p.stdout = nil
	}
	if p.stderr != nil {
		p.stderr.Close()
		p.stderr = nil
	}

	if prio := p.priority(); prio != "" {
		if err := applyPriority(pid, prio); err != nil {
			a.log.Warn("Failed to apply process priority",
				zap.String("proc", p.name),
				zap.String("priority", prio),
				zap.Error(err))
		}
	}

	a.log.Info("Process started",
		zap.String("proc", p.name), zap.Int("pid", pid))
	return nil
}

// pumpLog forwards the children's default output to the framework log.
func (a *App) pumpLog() {
	scanner := bufio.NewScanner(a.logR)
	for scanner.Scan() {
		a.log.Info(scanner.Text())
	}
	a.logR.Close()
}

// abnormal reports whether a wait status describes an abnormal
// termination: killed by a signal or a non-zero exit.
func abnormal(status int) bool {
	ws := unix.WaitStatus(status)
	if ws.Signaled() {
		return true
	}
	return ws.Exited() && ws.ExitStatus() != 0
}
