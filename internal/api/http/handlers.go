// Package http exposes the supervisor's control and info IPC surface.
//
// Clients see only the coarse result codes; structured detail goes to the
// logs. A protocol violation (malformed name, bad parameters) terminates
// the offending client connection, never the supervisor.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/supervisor"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers carries the dependencies of the ctrl/info/wdog/install routes.
type Handlers struct {
	sup *supervisor.Manager
	log *zap.Logger
}

// NewHandlers creates the IPC surface handlers.
func NewHandlers(sup *supervisor.Manager, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{sup: sup, log: log}
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StartApp handles ctrl start requests.
func (h *Handlers) StartApp(c *gin.Context) {
	name := c.Param("name")

	res, err := h.sup.StartApp(name)
	if err != nil {
		h.killClient(c, err)
		return
	}

	c.JSON(statusFor(res), gin.H{"result": res.String()})
}

// StopApp handles ctrl stop requests. The reply is deferred until the app
// has actually stopped; a client that disconnects first simply never sees
// it.
func (h *Handlers) StopApp(c *gin.Context) {
	name := c.Param("name")

	replies := make(chan types.Result, 1)
	if err := h.sup.StopApp(name, func(r types.Result) { replies <- r }); err != nil {
		h.killClient(c, err)
		return
	}

	select {
	case res := <-replies:
		c.JSON(statusFor(res), gin.H{"result": res.String()})
	case <-c.Request.Context().Done():
		// The requester is gone; the eventual reply is dropped.
		h.log.Debug("Stop requester disconnected", zap.String("app", name))
	}
}

// GetState handles info state requests.
func (h *Handlers) GetState(c *gin.Context) {
	name := c.Param("name")

	state, err := h.sup.State(name)
	if err != nil {
		h.killClient(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"app": name, "state": state.String()})
}

// GetProcState handles info process state requests.
func (h *Handlers) GetProcState(c *gin.Context) {
	appName := c.Param("name")
	procName := c.Param("proc")

	state, err := h.sup.ProcState(appName, procName)
	if err != nil {
		h.killClient(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"app":   appName,
		"proc":  procName,
		"state": state.String(),
	})
}

// GetName resolves the app owning a PID.
func (h *Handlers) GetName(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil {
		h.killClient(c, types.Protocolf("invalid pid %q", c.Param("pid")))
		return
	}

	name, res := h.sup.AppNameForPid(pid)
	if res != types.OK {
		c.JSON(statusFor(res), gin.H{"result": res.String()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pid": pid, "app": name})
}

// GetHash returns the installed app's content hash.
func (h *Handlers) GetHash(c *gin.Context) {
	name := c.Param("name")

	hash, res, err := h.sup.Hash(name)
	if err != nil {
		h.killClient(c, err)
		return
	}
	if res != types.OK {
		c.JSON(statusFor(res), gin.H{"result": res.String()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"app": name, "md5": hash})
}

// watchdogRequest is the wdog timeout notification payload.
type watchdogRequest struct {
	UserID int `json:"user_id"`
	ProcID int `json:"proc_id" binding:"required"`
}

// WatchdogTimedOut accepts a watchdog expiry. The reply goes out
// immediately; dispatch happens asynchronously on the supervisor loop.
func (h *Handlers) WatchdogTimedOut(c *gin.Context) {
	var req watchdogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.killClient(c, types.Protocolf("invalid watchdog request: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"result": types.OK.String()})

	h.sup.WatchdogTimedOut(req.UserID, req.ProcID)
}

// installerEvent is the app install/uninstall notification payload.
type installerEvent struct {
	Name  string `json:"name" binding:"required"`
	Event string `json:"event" binding:"required"`
}

// InstallerEvent handles install and uninstall notifications, both of
// which purge the app's inactive container.
func (h *Handlers) InstallerEvent(c *gin.Context) {
	var req installerEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		h.killClient(c, types.Protocolf("invalid installer event: %v", err))
		return
	}

	var err error
	switch req.Event {
	case "install":
		err = h.sup.AppInstalled(req.Name)
	case "uninstall":
		err = h.sup.AppUninstalled(req.Name)
	default:
		err = types.Protocolf("unknown installer event %q", req.Event)
	}
	if err != nil {
		h.killClient(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": types.OK.String()})
}

// killClient reports a protocol violation and drops the client connection.
func (h *Handlers) killClient(c *gin.Context, err error) {
	var pv *types.ProtocolError
	if errors.As(err, &pv) {
		h.log.Warn("Killing client session", zap.String("reason", pv.Reason))
	} else {
		h.log.Warn("Killing client session", zap.Error(err))
	}

	c.Header("Connection", "close")
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// statusFor maps result codes onto HTTP statuses.
func statusFor(res types.Result) int {
	switch res {
	case types.OK:
		return http.StatusOK
	case types.Duplicate:
		return http.StatusConflict
	case types.NotFound:
		return http.StatusNotFound
	case types.Overflow, types.BadParameter:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
