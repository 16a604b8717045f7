// Package appproc issues client-held references to individual processes
// inside applications.
//
// A client creates a reference to a configured or ad-hoc process, attaches
// file descriptors, overrides priority, arguments, or the fault action, and
// starts the process inside the app's security domain. Overrides live on
// the reference, never in the app's configuration, so a normal app start is
// unaffected. Every reference is tagged with the IPC session that created
// it and is destroyed when that session closes, so ad-hoc overrides cannot
// outlive their requesting client.
package appproc

import (
	"os"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/registry"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/supervisor"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/id"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// container is one outstanding process reference.
type container struct {
	proc  platform.Proc
	app   *registry.Container
	owner id.SessionID
}

// Broker manages the reference map. All map access runs on the supervisor
// event loop so it can never race with lifecycle transitions.
type Broker struct {
	sup     *supervisor.Manager
	log     *zap.Logger
	metrics *monitoring.Metrics
	gen     *id.Generator
	refs    map[id.AppProcRef]*container
}

// NewBroker creates a broker bound to the supervisor manager. The broker
// installs itself as the manager's container-destroy hook so references
// never outlive their app container.
func NewBroker(sup *supervisor.Manager, log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}

	b := &Broker{
		sup:  sup,
		log:  log,
		gen:  id.NewGenerator(),
		refs: make(map[id.AppProcRef]*container),
	}

	sup.SetContainerDestroyHook(b.purgeApp)
	return b
}

// WithMetrics adds metrics tracking to the broker.
func (b *Broker) WithMetrics(metrics *monitoring.Metrics) *Broker {
	b.metrics = metrics
	return b
}

// Create builds a process reference inside the named app for the given
// session. Either procName or execPath may be empty but not both. Returns
// an empty reference with no error when the app layer refuses the process;
// a ProtocolError is fatal to the client session.
func (b *Broker) Create(sess id.SessionID, appName, procName, execPath string) (id.AppProcRef, error) {
	if !validAppName(appName) {
		return "", types.Protocolf("invalid app name %q", appName)
	}
	if procName == "" && execPath == "" {
		return "", types.Protocolf("process name and executable path cannot both be empty")
	}

	var (
		ref  id.AppProcRef
		vErr error
	)
	b.sup.Invoke(func() {
		c, _ := b.sup.ObtainContainer(appName)
		if c == nil {
			return
		}

		proc, err := c.App.CreateProc(procName, execPath)
		if err != nil {
			b.log.Error("Failed to create app process",
				zap.String("app", appName),
				zap.String("proc", procName),
				zap.Error(err))
			return
		}

		// A configured process may be referenced by at most one client.
		if b.isReferenced(proc) {
			c.App.DeleteProc(proc)
			vErr = types.Protocolf("process is already referenced by a client")
			return
		}

		ref = b.gen.NewAppProcRef()
		b.refs[ref] = &container{proc: proc, app: c, owner: sess}
		b.metrics.SetAppProcRefs(len(b.refs))
	})
	return ref, vErr
}

// Delete drops the reference and deletes the process in the app layer.
func (b *Broker) Delete(ref id.AppProcRef) error {
	return b.withProc(ref, func(pc *container) {
		delete(b.refs, ref)
		pc.app.App.DeleteProc(pc.proc)
		b.metrics.SetAppProcRefs(len(b.refs))
	})
}

// Start launches the referenced process, starting the owning app first if
// it is not already running.
func (b *Broker) Start(ref id.AppProcRef) (types.Result, error) {
	res := types.Fault
	err := b.withProc(ref, func(pc *container) {
		if pc.app.App.State() != types.AppRunning {
			if b.sup.StartContainer(pc.app) != types.OK {
				return
			}
		}
		res = pc.app.App.StartProc(pc.proc)
	})
	return res, err
}

// SetStdIn attaches the process's standard input.
func (b *Broker) SetStdIn(ref id.AppProcRef, f *os.File) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.SetStdIn(f)
	})
}

// SetStdOut attaches the process's standard output.
func (b *Broker) SetStdOut(ref id.AppProcRef, f *os.File) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.SetStdOut(f)
	})
}

// SetStdErr attaches the process's standard error.
func (b *Broker) SetStdErr(ref id.AppProcRef, f *os.File) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.SetStdErr(f)
	})
}

// AddArg appends a command line argument, overriding the configured list.
// An overlong argument is a protocol violation.
func (b *Broker) AddArg(ref id.AppProcRef, arg string) error {
	var vErr error
	err := b.withProc(ref, func(pc *container) {
		if pc.proc.AddArg(arg) != types.OK {
			vErr = types.Protocolf("argument %q is too long", arg)
		}
	})
	if err != nil {
		return err
	}
	return vErr
}

// ClearArgs reverts to the configured argument list.
func (b *Broker) ClearArgs(ref id.AppProcRef) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.ClearArgs()
	})
}

// SetPriority overrides the process priority. An unknown or overlong
// priority string is a protocol violation.
func (b *Broker) SetPriority(ref id.AppProcRef, priority string) error {
	var vErr error
	err := b.withProc(ref, func(pc *container) {
		switch pc.proc.SetPriority(priority) {
		case types.OK:
		case types.Overflow:
			vErr = types.Protocolf("priority string %q is too long", priority)
		default:
			vErr = types.Protocolf("priority string %q is invalid", priority)
		}
	})
	if err != nil {
		return err
	}
	return vErr
}

// ClearPriority reverts to the configured or default priority.
func (b *Broker) ClearPriority(ref id.AppProcRef) error {
	return b.withProc(ref, func(pc *container) {
		if pc.proc.ClearPriority() != types.OK {
			b.log.Fatal("Clearing a priority override cannot fail")
		}
	})
}

// SetFaultAction overrides the process's fault action.
func (b *Broker) SetFaultAction(ref id.AppProcRef, action types.FaultAction) error {
	switch action {
	case types.FaultActionIgnore, types.FaultActionRestartProc,
		types.FaultActionRestartApp, types.FaultActionStopApp,
		types.FaultActionReboot:
	default:
		return types.Protocolf("invalid fault action")
	}

	return b.withProc(ref, func(pc *container) {
		pc.proc.SetFaultAction(action)
	})
}

// ClearFaultAction reverts to the configured or default fault action.
func (b *Broker) ClearFaultAction(ref id.AppProcRef) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.ClearFaultAction()
	})
}

// AddStopHandler installs fn to run when the process stops. There is only
// one handler per process, so the proc reference doubles as the handler
// reference.
func (b *Broker) AddStopHandler(ref id.AppProcRef, fn func(status int)) error {
	return b.withProc(ref, func(pc *container) {
		pc.proc.SetStopHandler(fn)
	})
}

// RemoveStopHandler clears the process's stop handler. A stale reference is
// tolerated here: the record may already have been purged with its session.
func (b *Broker) RemoveStopHandler(ref id.AppProcRef) {
	b.sup.Invoke(func() {
		pc, ok := b.refs[ref]
		if !ok {
			return
		}
		pc.proc.SetStopHandler(nil)
	})
}

// CloseSession destroys every reference the session owns.
func (b *Broker) CloseSession(sess id.SessionID) {
	b.sup.Invoke(func() {
		for ref, pc := range b.refs {
			if pc.owner != sess {
				continue
			}
			delete(b.refs, ref)
			pc.app.App.DeleteProc(pc.proc)
		}
		b.metrics.SetAppProcRefs(len(b.refs))
	})
	b.metrics.SessionClosed()
}

// Count returns the number of live references.
func (b *Broker) Count() int {
	var n int
	b.sup.Invoke(func() {
		n = len(b.refs)
	})
	return n
}

// purgeApp destroys every reference bound to the app container. Runs on
// the event loop as the manager's container-destroy hook.
func (b *Broker) purgeApp(c *registry.Container) {
	for ref, pc := range b.refs {
		if pc.app != c {
			continue
		}
		delete(b.refs, ref)
		pc.app.App.DeleteProc(pc.proc)
	}
	b.metrics.SetAppProcRefs(len(b.refs))
}

// isReferenced reports whether any live record already holds the process
// handle. Must run on the event loop.
func (b *Broker) isReferenced(proc platform.Proc) bool {
	for _, pc := range b.refs {
		if pc.proc == proc {
			return true
		}
	}
	return false
}

// withProc runs fn with the record for ref on the event loop. A stale or
// malformed reference is a protocol violation.
func (b *Broker) withProc(ref id.AppProcRef, fn func(*container)) error {
	if !id.HasPrefix(string(ref), id.AppProcPrefix) {
		return types.Protocolf("malformed application process reference %q", ref)
	}

	var err error
	b.sup.Invoke(func() {
		pc, ok := b.refs[ref]
		if !ok {
			err = types.Protocolf("invalid application process reference %q", ref)
			return
		}
		fn(pc)
	})
	return err
}

func validAppName(name string) bool {
	if name == "" || len(name) >= types.MaxAppNameBytes {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return false
		}
	}
	return true
}
