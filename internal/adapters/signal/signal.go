package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Options tunes per-connection limits and timers.
type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Verifier core.TokenVerifier
	Limiter  *RoomRateLimiter
	opts     Options
	upgrader websocket.Upgrader

	active atomic.Int64
}

func NewSignalWSController(o *orch.Orchestrator, verifier core.TokenVerifier, limiter *RoomRateLimiter, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	return &SignalWSController{
		Orch:     o,
		Verifier: verifier,
		Limiter:  limiter,
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(opts.AllowedOrigins)},
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	normalized := make([]string, 0, len(allowed))
	for _, a := range allowed {
		normalized = append(normalized, strings.TrimRight(strings.ToLower(a), "/"))
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return slices.Contains(normalized, strings.TrimRight(strings.ToLower(origin), "/"))
	}
}

// WsSignalConn is the registry-facing side of one websocket. Frames are
// queued and written by writePump; the adapter owns the socket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(conn *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: conn, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting frames; writePump then closes the socket.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// HandleChat serves one chat connection and blocks until it is closed.
func (ctl *SignalWSController) HandleChat(ctx context.Context, c *gin.Context) {
	ctl.active.Add(1)
	defer ctl.active.Add(-1)

	sid := core.SessionID(uuid.NewString())
	roomID := domain.RoomID(c.Param("room_id"))
	token := BearerToken(c.Request)

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).Str("room", string(roomID)).Msg("new WS connection")

	s := &chatSession{
		ctl:   ctl,
		sid:   sid,
		room:  roomID,
		token: token,
		ws:    ws,
		state: Connecting,
	}
	s.run(ctx)
}

// Active reports how many chat handlers are still running.
func (ctl *SignalWSController) Active() int64 {
	return ctl.active.Load()
}

// Drain waits until every chat handler has returned. http.Server.Shutdown
// does not track hijacked connections, so callers use this before closing
// the stores those handlers write to.
func (ctl *SignalWSController) Drain(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for ctl.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d chat sessions still open: %w", ctl.active.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// BearerToken reads the token query parameter, falling back to an
// "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
