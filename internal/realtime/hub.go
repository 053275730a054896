// Package realtime pushes chat events to connected browsers over websockets.
package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// EventOnlineUsers carries the IDs of every user with an open connection
const EventOnlineUsers = "getOnlineUsers"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var ErrHubClosed = errors.New("realtime hub closed")

// Event is the frame written to clients
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn   *websocket.Conn
	userID domain.UserID

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func (c *client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks realtime connections by user. A user may hold several
// connections, one per open tab; they count as online while any remains.
type Hub struct {
	auth       middleware.Authenticator
	cookieName string
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[domain.UserID]map[*client]struct{}
	closed  bool
}

// NewHub creates a hub that authenticates connections with the session
// cookie and accepts browser upgrades only from trusted origins.
func NewHub(cfg *config.Config, auth middleware.Authenticator, logger *zap.Logger) *Hub {
	logger = logger.Named("realtime")
	trusted := middleware.NewTrustedOrigins(cfg.CORS.AllowedOrigins, logger)

	return &Hub{
		auth:       auth,
		cookieName: cfg.JWT.CookieName,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || trusted.Allows(origin)
			},
		},
		clients: make(map[domain.UserID]map[*client]struct{}),
	}
}

// Handle upgrades the request and serves the connection until it closes
func (h *Hub) Handle(c *gin.Context) {
	token := middleware.Cookie(c.Request.Context(), h.cookieName)
	if token == "" {
		if ck, err := c.Request.Cookie(h.cookieName); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - no token provided"})
		return
	}

	userID, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized - invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written an error response
		h.logger.Debug("Failed to upgrade connection", zap.Error(err))
		c.Abort()
		return
	}

	cl := &client{conn: conn, userID: userID, done: make(chan struct{})}
	if err := h.register(cl); err != nil {
		cl.close()
		return
	}

	go h.pingLoop(cl)
	h.readLoop(cl)
}

func (h *Hub) register(cl *client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	conns, ok := h.clients[cl.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[cl.userID] = conns
	}
	conns[cl] = struct{}{}
	h.updateGaugesLocked()
	h.mu.Unlock()

	h.logger.Info("Realtime client connected", zap.String("user_id", cl.userID.String()))
	h.broadcastOnline()
	return nil
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if conns, ok := h.clients[cl.userID]; ok {
		delete(conns, cl)
		if len(conns) == 0 {
			delete(h.clients, cl.userID)
		}
	}
	h.updateGaugesLocked()
	closed := h.closed
	h.mu.Unlock()

	h.logger.Info("Realtime client disconnected", zap.String("user_id", cl.userID.String()))
	if !closed {
		h.broadcastOnline()
	}
}

func (h *Hub) updateGaugesLocked() {
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	metrics.RealtimeConnections.Set(float64(n))
	metrics.OnlineUsers.Set(float64(len(h.clients)))
}

// readLoop drains client frames until the connection fails. Clients have
// nothing to say to the server, so frames are discarded.
func (h *Hub) readLoop(cl *client) {
	defer func() {
		h.unregister(cl)
		cl.close()
	}()

	cl.conn.SetReadLimit(4096)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Realtime read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) pingLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			if err := cl.ping(); err != nil {
				cl.close()
				return
			}
		}
	}
}

// OnlineUsers returns the IDs of connected users in sorted order
func (h *Hub) OnlineUsers() []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]domain.UserID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsOnline reports whether the user has at least one open connection
func (h *Hub) IsOnline(userID domain.UserID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Emit sends an event to every connection of the user. Offline users are
// skipped silently.
func (h *Hub) Emit(userID domain.UserID, event string, payload any) {
	if userID == "" {
		return
	}
	h.send(h.connections(userID), Event{Event: event, Data: payload})
}

func (h *Hub) broadcastOnline() {
	h.send(h.connections(""), Event{Event: EventOnlineUsers, Data: h.OnlineUsers()})
}

// connections snapshots the user's connections, or all of them for ""
func (h *Hub) connections(userID domain.UserID) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*client
	for id, conns := range h.clients {
		if userID != "" && id != userID {
			continue
		}
		for cl := range conns {
			out = append(out, cl)
		}
	}
	return out
}

func (h *Hub) send(targets []*client, ev Event) {
	if len(targets) == 0 {
		return
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode realtime event", zap.String("event", ev.Event), zap.Error(err))
		return
	}
	for _, cl := range targets {
		if err := cl.write(frame); err != nil {
			h.logger.Debug("Dropping realtime client after write failure",
				zap.String("user_id", cl.userID.String()), zap.Error(err))
			cl.close()
		}
	}
}

// Close disconnects every client and refuses new ones. Hijacked websocket
// connections are not tracked by http.Server.Shutdown, so the server calls
// this during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*client
	for _, conns := range h.clients {
		for cl := range conns {
			all = append(all, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range all {
		cl.close()
	}
}
