package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/aerodesk/aerodesk/internal/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

// wsMessage is the only frame shape sent to WebSocket clients.
type wsMessage struct {
	Type string `json:"type"`
}

var (
	wsConnected = wsMessage{Type: "connected"}
	wsRefresh   = wsMessage{Type: "refresh"}
)

type wsClient struct {
	conn    *websocket.Conn
	refresh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (c *wsClient) stop() {
	c.once.Do(func() { close(c.done) })
}

// wsHub tracks WebSocket clients and fans refresh signals out to them.
type wsHub struct {
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func newWSHub(log logger.Logger) *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Panels are served from other origins during roleplay sessions.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  log,
		clients: make(map[*wsClient]struct{}),
	}
}

// broadcastRefresh queues a refresh for every client. Pending refreshes coalesce.
func (h *wsHub) broadcastRefresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

func (h *wsHub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close stops every client and rejects new ones.
func (h *wsHub) close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.stop()
	}
}

// websocketChanges upgrades the request and sends {"type":"refresh"} on
// every store change until either side closes.
func (s *Server) websocketChanges(c echo.Context) error {
	conn, err := s.hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied to the client.
		s.logger.Debug("WebSocket upgrade failed", logger.Error(err))
		return nil
	}
	defer conn.Close()

	client := &wsClient{
		conn:    conn,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if !s.hub.add(client) {
		return nil
	}
	defer s.hub.remove(client)

	if err := writeWS(conn, wsConnected); err != nil {
		return nil
	}
	s.logger.Debug("WebSocket client connected", logger.String("ip", c.RealIP()))

	readerDone := make(chan struct{})
	go s.readWS(client, readerDone)
	defer func() {
		client.stop()
		_ = conn.Close()
		<-readerDone
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-client.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(wsWriteWait))
			return nil
		case <-client.refresh:
			if err := writeWS(conn, wsRefresh); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

// readWS drains client frames so control messages are processed, and stops
// the client once the connection fails.
func (s *Server) readWS(client *wsClient, done chan<- struct{}) {
	defer close(done)
	defer client.stop()

	conn := client.conn
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket closed unexpectedly", logger.Error(err))
			}
			return
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
