// Package server wires the supervisor core to its platform collaborators
// and exposes the IPC surface.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	apihttp "github.com/GriffinCanCode/ModuleOS/supervisor/internal/api/http"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/api/middleware"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/api/ws"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/appproc"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/supervisor"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/config"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/cfgstore"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/localapp"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/reaper"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/platform/seclabel"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Server owns the supervisor manager, the appProc broker, and the HTTP IPC
// surface.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *monitoring.Metrics

	sup    *supervisor.Manager
	broker *appproc.Broker
	reap   *reaper.Reaper

	router  *gin.Engine
	httpSrv *http.Server

	cancel context.CancelFunc

	rebootOnce sync.Once
	rebootCh   chan struct{}
}

// NewServer builds a fully wired server.
func NewServer(cfg *config.Config) (*Server, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()

	store, err := cfgstore.Load(cfg.Apps.ConfigPath)
	if err != nil {
		// A device with nothing installed has no config tree yet.
		log.Warn("No apps configuration tree, starting empty",
			zap.String("path", cfg.Apps.ConfigPath), zap.Error(err))
		store = cfgstore.Empty()
	}

	childReaper := reaper.New()

	sup := supervisor.NewManager(supervisor.Deps{
		Config:     store,
		Labels:     seclabel.New(cfg.Apps.LabelPrefix),
		Reaper:     childReaper,
		Factory:    localapp.NewFactory(store, cfg.Apps.InstallDir, log.Component("app")),
		InstallDir: cfg.Apps.InstallDir,
		Logger:     log.Component("supervisor"),
	}).WithMetrics(metrics)

	broker := appproc.NewBroker(sup, log.Component("appproc")).WithMetrics(metrics)

	s := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		sup:      sup,
		broker:   broker,
		reap:     childReaper,
		rebootCh: make(chan struct{}),
	}
	s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if s.cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimit.RequestsPerSecond,
			Burst:             s.cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(s.sup, s.log.Component("http"))
	wsHandler := ws.NewHandler(s.broker, s.log.Component("appproc")).WithMetrics(s.metrics)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// App control
	router.POST("/ctrl/apps/:name/start", handlers.StartApp)
	router.POST("/ctrl/apps/:name/stop", handlers.StopApp)

	// App info
	router.GET("/info/apps/:name/state", handlers.GetState)
	router.GET("/info/apps/:name/procs/:proc/state", handlers.GetProcState)
	router.GET("/info/apps/:name/hash", handlers.GetHash)
	router.GET("/info/procs/:pid/app", handlers.GetName)

	// Watchdog and installer notifications
	router.POST("/wdog/timeout", handlers.WatchdogTimedOut)
	router.POST("/install/events", handlers.InstallerEvent)

	// AppProc sessions
	router.GET("/appproc", wsHandler.HandleConnection)

	s.router = router
}

// Run starts the supervision loop, the child reaper, autostart, and the
// IPC listener. It blocks until the listener fails or Close is called.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.sup.Run(ctx)
	go s.reapLoop(ctx)

	s.log.Info("Starting applications")
	s.sup.AutoStart()

	addr := s.cfg.Addr()
	s.log.Info("IPC surface listening", zap.String("addr", addr))

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops the IPC surface, shuts down every app, and tears down the
// event loop. Safe to call once.
func (s *Server) Close() error {
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	s.sup.SetAllAppsStoppedHandler(func() { close(done) })
	s.sup.Shutdown()

	select {
	case <-done:
		s.log.Info("All applications stopped")
	case <-time.After(30 * time.Second):
		s.log.Error("Timed out waiting for applications to stop")
	}

	if s.cancel != nil {
		s.cancel()
	}
	return s.log.Sync()
}

// RebootRequested closes when an app's fault policy demands a system
// reboot. The caller owns the actual reboot.
func (s *Server) RebootRequested() <-chan struct{} {
	return s.rebootCh
}

// reapLoop turns SIGCHLD into supervisor events. The signal itself only
// wakes the loop; every waitable child is then peeked and dispatched.
func (s *Server) reapLoop(ctx context.Context) {
	sig := make(chan os.Signal, 16)
	signal.Notify(sig, unix.SIGCHLD)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			s.drainChildren()
		}
	}
}

// drainChildren dispatches every currently waitable child.
func (s *Server) drainChildren() {
	for {
		pid, ok, err := s.reap.Peek()
		if err != nil {
			s.log.Error("Failed to wait for children", zap.Error(err))
			return
		}
		if !ok {
			return
		}

		switch s.sup.SigChild(pid) {
		case types.NotFound:
			// Not an app process: leave it unreaped for its real owner.
			// It stays at the head of the wait queue, so stop draining
			// until the next signal.
			s.log.Debug("Leaving child that belongs to no app unreaped",
				zap.Int("pid", pid))
			return

		case types.Fault:
			s.log.Error("Application fault requires a system reboot",
				zap.Int("pid", pid))
			s.requestReboot()
		}
	}
}

func (s *Server) requestReboot() {
	s.rebootOnce.Do(func() {
		close(s.rebootCh)
	})
}
