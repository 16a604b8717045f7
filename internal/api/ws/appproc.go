// Package ws carries the appProc service. Each websocket connection is one
// IPC session: every reference created over it is tagged with the session
// and destroyed when the connection closes, so client overrides can never
// leak into a later normal start. A protocol violation closes the
// connection, which triggers the same cleanup.
package ws

import (
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/domain/appproc"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/id"
	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The IPC surface binds to loopback; peers are local processes.
		return true
	},
}

// Handler manages appProc sessions.
type Handler struct {
	broker  *appproc.Broker
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates the appProc websocket handler.
func NewHandler(broker *appproc.Broker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{broker: broker, log: log}
}

// WithMetrics adds metrics tracking to the handler.
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// request is one appProc operation on the wire.
type request struct {
	Op       string `json:"op"`
	Ref      string `json:"ref,omitempty"`
	App      string `json:"app,omitempty"`
	Proc     string `json:"proc,omitempty"`
	Exec     string `json:"exec,omitempty"`
	Arg      string `json:"arg,omitempty"`
	Priority string `json:"priority,omitempty"`
	Action   string `json:"action,omitempty"`
	Path     string `json:"path,omitempty"`
}

// session serializes writes to one connection; stop events arrive from the
// supervisor loop while replies go out from the read loop.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// HandleConnection runs one appProc session until the client disconnects
// or violates the protocol.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess := id.NewSessionID()
	s := &session{conn: conn}

	h.metrics.SessionOpened()
	h.log.Debug("AppProc session opened", zap.String("session", string(sess)))

	// The close contract: every reference this session created goes away
	// with it.
	defer h.broker.CloseSession(sess)

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			h.log.Debug("AppProc session closed",
				zap.String("session", string(sess)), zap.Error(err))
			return
		}

		if err := h.dispatch(s, sess, req); err != nil {
			var pv *types.ProtocolError
			if errors.As(err, &pv) {
				h.log.Warn("Killing appProc client session",
					zap.String("session", string(sess)),
					zap.String("reason", pv.Reason))
				s.send(gin.H{"ok": false, "error": err.Error()})
				return
			}

			s.send(gin.H{"ok": false, "error": err.Error()})
		}
	}
}

// dispatch executes one operation and sends its reply. A returned
// ProtocolError terminates the session.
func (h *Handler) dispatch(s *session, sess id.SessionID, req request) error {
	ref := id.AppProcRef(req.Ref)

	switch req.Op {
	case "create":
		got, err := h.broker.Create(sess, req.App, req.Proc, req.Exec)
		if err != nil {
			return err
		}
		if got == "" {
			return s.send(gin.H{"ok": false})
		}
		return s.send(gin.H{"ok": true, "ref": string(got)})

	case "delete":
		if err := h.broker.Delete(ref); err != nil {
			return err
		}

	case "start":
		res, err := h.broker.Start(ref)
		if err != nil {
			return err
		}
		return s.send(gin.H{"ok": res == types.OK, "result": res.String()})

	case "add_arg":
		if err := h.broker.AddArg(ref, req.Arg); err != nil {
			return err
		}

	case "clear_args":
		if err := h.broker.ClearArgs(ref); err != nil {
			return err
		}

	case "set_priority":
		if err := h.broker.SetPriority(ref, req.Priority); err != nil {
			return err
		}

	case "clear_priority":
		if err := h.broker.ClearPriority(ref); err != nil {
			return err
		}

	case "set_fault_action":
		action, ok := types.ParseFaultAction(req.Action)
		if !ok {
			return types.Protocolf("invalid fault action %q", req.Action)
		}
		if err := h.broker.SetFaultAction(ref, action); err != nil {
			return err
		}

	case "clear_fault_action":
		if err := h.broker.ClearFaultAction(ref); err != nil {
			return err
		}

	case "set_stdin", "set_stdout", "set_stderr":
		if err := h.attachStream(req.Op, ref, req.Path); err != nil {
			return err
		}

	case "add_stop_handler":
		err := h.broker.AddStopHandler(ref, func(status int) {
			// Runs on the supervisor loop; a slow client must not stall it.
			go s.send(gin.H{"event": "proc_stopped", "ref": string(ref), "status": status})
		})
		if err != nil {
			return err
		}

	case "remove_stop_handler":
		h.broker.RemoveStopHandler(ref)

	default:
		return types.Protocolf("unknown appProc operation %q", req.Op)
	}

	return s.send(gin.H{"ok": true})
}

// attachStream opens the named file and attaches it as the process's
// standard stream. The descriptor belongs to the child once the process
// starts.
func (h *Handler) attachStream(op string, ref id.AppProcRef, path string) error {
	if path == "" {
		return types.Protocolf("missing path for %s", op)
	}

	var (
		f   *os.File
		err error
	)
	if op == "set_stdin" {
		f, err = os.Open(path)
	} else {
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	}
	if err != nil {
		return err
	}

	switch op {
	case "set_stdin":
		err = h.broker.SetStdIn(ref, f)
	case "set_stdout":
		err = h.broker.SetStdOut(ref, f)
	case "set_stderr":
		err = h.broker.SetStdErr(ref, f)
	}
	if err != nil {
		f.Close()
	}
	return err
}
