// Package websocket pushes live-reload notifications to open pages.
//
// A single hub goroutine owns registration, unregistration and fan-out.
// Each client has a buffered send queue drained by its own writer; a client
// whose queue is full is dropped rather than allowed to stall the hub.
package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/safepreview/internal/logging"
)

const (
	sendBuffer   = 64
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second

	// DefaultMaxConnectionsPerIP bounds connections from a single address.
	DefaultMaxConnectionsPerIP = 16
)

// WebSocketManager handles connection management and broadcasting.
//
// Invariants:
//   - clients and ipConns are only touched with mu held
//   - a client's send channel is closed exactly once, by the hub
//   - channels are never closed; shutdown is signalled through ctx
type WebSocketManager struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*Client
	ipConns map[string]int

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	maxPerIP        int
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	isShutdown   atomic.Bool
	hubDone      chan struct{}
}

// Option configures a WebSocketManager.
type Option func(*WebSocketManager)

// WithMaxConnectionsPerIP sets the per-address connection limit. Zero or
// less disables the limit.
func WithMaxConnectionsPerIP(n int) Option {
	return func(wm *WebSocketManager) {
		wm.maxPerIP = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(wm *WebSocketManager) {
		if logger != nil {
			wm.logger = logger.WithComponent("websocket")
		}
	}
}

// NewWebSocketManager starts the hub. originValidator is required.
func NewWebSocketManager(originValidator OriginValidator, opts ...Option) *WebSocketManager {
	if originValidator == nil {
		panic("WebSocketManager: originValidator cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	wm := &WebSocketManager{
		clients:         make(map[*websocket.Conn]*Client),
		ipConns:         make(map[string]int),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		maxPerIP:        DefaultMaxConnectionsPerIP,
		logger:          logging.NewNopLogger(),
		ctx:             ctx,
		cancel:          cancel,
		hubDone:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(wm)
	}

	go wm.runHub()

	return wm
}

// HandleWebSocket validates and upgrades a connection, then registers it.
func (wm *WebSocketManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if wm.isShutdown.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	origin := r.Header.Get("Origin")
	if origin != "" && !wm.originValidator.IsAllowedOrigin(origin) {
		logging.LogSecurityEvent(r.Context(), wm.logger, "websocket_origin_rejected", map[string]interface{}{
			"origin": logging.SanitizeForLog(origin),
			"remote": r.RemoteAddr,
		})
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	clientIP := clientIP(r)
	if !wm.reserveIP(clientIP) {
		wm.logger.Warn(r.Context(), nil, "websocket connection limit reached", "ip", clientIP)
		http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
		return
	}

	// Origin was checked above; the library's same-host check would reject
	// the configured cross-port origins.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		wm.releaseIP(clientIP)
		wm.logger.Warn(r.Context(), err, "websocket upgrade failed", "ip", clientIP)
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		IP:          clientIP,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
	}

	select {
	case wm.register <- client:
	case <-wm.ctx.Done():
		wm.releaseIP(clientIP)
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go wm.handleClient(client)
}

func (wm *WebSocketManager) reserveIP(ip string) bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if wm.maxPerIP > 0 && wm.ipConns[ip] >= wm.maxPerIP {
		return false
	}
	wm.ipConns[ip]++

	return true
}

func (wm *WebSocketManager) releaseIP(ip string) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.releaseIPLocked(ip)
}

func (wm *WebSocketManager) releaseIPLocked(ip string) {
	if wm.ipConns[ip] <= 1 {
		delete(wm.ipConns, ip)
		return
	}
	wm.ipConns[ip]--
}

// clientIP uses the socket address only; forwarding headers are spoofable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func (wm *WebSocketManager) runHub() {
	defer close(wm.hubDone)

	for {
		select {
		case client := <-wm.register:
			wm.registerClient(client)
		case conn := <-wm.unregister:
			wm.unregisterClient(conn)
		case message := <-wm.broadcast:
			wm.broadcastToClients(message)
		case <-wm.ctx.Done():
			wm.closeAll()
			return
		}
	}
}

func (wm *WebSocketManager) registerClient(client *Client) {
	wm.mu.Lock()
	wm.clients[client.conn] = client
	total := len(wm.clients)
	wm.mu.Unlock()

	wm.logger.Debug(wm.ctx, "websocket client connected", "client_id", client.ID, "clients", total)
}

func (wm *WebSocketManager) unregisterClient(conn *websocket.Conn) {
	wm.mu.Lock()
	client, exists := wm.clients[conn]
	if exists {
		delete(wm.clients, conn)
		close(client.send)
		wm.releaseIPLocked(client.IP)
	}
	total := len(wm.clients)
	wm.mu.Unlock()

	if !exists {
		return
	}
	// Close waits for the peer's close frame; keep that off the hub.
	go func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	wm.logger.Debug(wm.ctx, "websocket client disconnected", "client_id", client.ID, "clients", total)
}

func (wm *WebSocketManager) broadcastToClients(message []byte) {
	wm.mu.RLock()
	var slow []*websocket.Conn
	for conn, client := range wm.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, conn)
		}
	}
	wm.mu.RUnlock()

	for _, conn := range slow {
		wm.unregisterClient(conn)
	}
}

func (wm *WebSocketManager) closeAll() {
	wm.mu.Lock()
	clients := wm.clients
	wm.clients = make(map[*websocket.Conn]*Client)
	wm.ipConns = make(map[string]int)
	for _, client := range clients {
		close(client.send)
	}
	wm.mu.Unlock()

	for conn := range clients {
		_ = conn.CloseNow()
	}
}

func (wm *WebSocketManager) handleClient(client *Client) {
	go wm.writeToClient(client)

	// Pages never send anything meaningful; reading only services control
	// frames and notices the close.
	ctx := client.conn.CloseRead(wm.ctx)
	<-ctx.Done()

	select {
	case wm.unregister <- client.conn:
	case <-wm.ctx.Done():
	}
}

func (wm *WebSocketManager) writeToClient(client *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(wm.ctx, writeTimeout)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				wm.logger.Debug(wm.ctx, "websocket write failed", "client_id", client.ID, "error", err.Error())
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(wm.ctx, writeTimeout)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		case <-wm.ctx.Done():
			return
		}
	}
}

// BroadcastMessage queues message for every connected client. Messages are
// dropped when the manager is shut down or the queue is full.
func (wm *WebSocketManager) BroadcastMessage(message UpdateMessage) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	data, err := json.Marshal(message)
	if err != nil {
		wm.logger.Error(wm.ctx, err, "failed to marshal broadcast message")
		return
	}

	if wm.isShutdown.Load() {
		return
	}
	select {
	case wm.broadcast <- data:
	default:
		wm.logger.Warn(wm.ctx, nil, "broadcast queue full, dropping message", "type", message.Type)
	}
}

// GetConnectedClients returns the number of connected clients
func (wm *WebSocketManager) GetConnectedClients() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	return len(wm.clients)
}

// GetClients returns a snapshot of connected clients keyed by ID.
func (wm *WebSocketManager) GetClients() map[string]Client {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	clients := make(map[string]Client, len(wm.clients))
	for _, c := range wm.clients {
		clients[c.ID] = Client{ID: c.ID, IP: c.IP, ConnectedAt: c.ConnectedAt}
	}

	return clients
}

// Shutdown closes every connection and stops the hub.
func (wm *WebSocketManager) Shutdown(ctx context.Context) error {
	wm.shutdownOnce.Do(func() {
		wm.isShutdown.Store(true)
		wm.cancel()
	})

	select {
	case <-wm.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns whether the WebSocket manager has been shut down
func (wm *WebSocketManager) IsShutdown() bool {
	return wm.isShutdown.Load()
}
