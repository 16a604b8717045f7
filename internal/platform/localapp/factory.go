// Package localapp implements the platform app capability over ordinary OS
// processes. Each app is a set of configured worker processes launched from
// its install directory; the supervisor observes their deaths through the
// child-signal path and drives recovery through the capability interfaces.
package localapp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/cfgstore"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"go.uber.org/zap"
)

// Factory builds app handles from the configuration tree.
type Factory struct {
	store      *cfgstore.Store
	installDir string
	log        *zap.Logger
}

// NewFactory creates a factory reading app definitions from store.
func NewFactory(store *cfgstore.Store, installDir string, log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{store: store, installDir: installDir, log: log}
}

// CreateApp builds the app handle for an installed app.
func (f *Factory) CreateApp(name string) (platform.App, error) {
	cfg, ok := f.store.App(name)
	if !ok {
		return nil, fmt.Errorf("app %q is not in the configuration tree", name)
	}

	logR, logW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create log pipe for app %q: %w", name, err)
	}

	a := &App{
		name:    name,
		dir:     filepath.Join(f.installDir, name),
		log:     f.log.With(zap.String("app", name)),
		state:   types.AppStopped,
		running: make(map[int]*Proc),
		logR:    logR,
		logW:    logW,
	}

	for _, pc := range cfg.Procs {
		fault, ok := types.ParseFaultAction(pc.FaultAction)
		if !ok {
			a.log.Warn("Unknown fault action in configuration, using ignore",
				zap.String("proc", pc.Name), zap.String("action", pc.FaultAction))
			fault = types.FaultActionIgnore
		}
		wdog, ok := types.ParseWatchdogAction(pc.WatchdogAction)
		if !ok {
			a.log.Warn("Unknown watchdog action in configuration, using ignore",
				zap.String("proc", pc.Name), zap.String("action", pc.WatchdogAction))
			wdog = types.WatchdogActionIgnore
		}

		a.configured = append(a.configured, &Proc{
			app:        a,
			name:       pc.Name,
			configExec: pc.Exec,
			configArgs: pc.Args,
			configPrio: pc.Priority,
			configFault: fault,
			configWdog:  wdog,
			state:       types.ProcStopped,
		})
	}

	go a.pumpLog()
	return a, nil
}
