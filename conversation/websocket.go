package conversation

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	sendBuffer = 256
)

// ViewMessage is what a chat view receives for each entry. Class is the
// element class the entry is displayed with.
type ViewMessage struct {
	Entry
	Class string `json:"class"`
}

func newViewMessage(e Entry) ViewMessage {
	return ViewMessage{Entry: e, Class: e.Role.Class()}
}

// WebSocketRenderer pushes every rendered entry to the connected chat views.
// A view that connects late first receives the entries it missed.
type WebSocketRenderer struct {
	upgrader websocket.Upgrader

	mu          sync.Mutex
	backlog     []ViewMessage
	subscribers map[*wsConnection]struct{}
	closed      bool
}

type wsConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	renderer  *WebSocketRenderer
	closeOnce sync.Once
}

func NewWebSocketRenderer() *WebSocketRenderer {
	return &WebSocketRenderer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		subscribers: make(map[*wsConnection]struct{}),
	}
}

func (w *WebSocketRenderer) Render(e Entry) {
	msg := newViewMessage(e)
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal message", "error", err, "id", e.ID)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.backlog = append(w.backlog, msg)

	for c := range w.subscribers {
		select {
		case c.send <- data:
		default:
			slog.Warn("Dropping slow chat view", "remoteAddr", c.conn.RemoteAddr())
			w.removeLocked(c)
		}
	}
}

// Messages returns every entry rendered so far.
func (w *WebSocketRenderer) Messages() []ViewMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ViewMessage, len(w.backlog))
	copy(out, w.backlog)
	return out
}

// ServeHTTP upgrades the request and subscribes the connection.
func (w *WebSocketRenderer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	c := &wsConnection{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		renderer: w,
	}

	if !w.register(c) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// register queues the backlog for c and subscribes it.
func (w *WebSocketRenderer) register(c *wsConnection) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}

	for _, msg := range w.backlog {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Warn("Backlog exceeds send buffer", "messages", len(w.backlog))
		}
	}
	w.subscribers[c] = struct{}{}
	slog.Debug("Chat view connected", "remoteAddr", c.conn.RemoteAddr(), "views", len(w.subscribers))
	return true
}

func (w *WebSocketRenderer) unregister(c *wsConnection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(c)
}

func (w *WebSocketRenderer) removeLocked(c *wsConnection) {
	if _, ok := w.subscribers[c]; !ok {
		return
	}
	delete(w.subscribers, c)
	c.closeOnce.Do(func() { close(c.send) })
}

func (w *WebSocketRenderer) subscriberCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subscribers)
}

// Close disconnects every view. Later connections are refused.
func (w *WebSocketRenderer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for c := range w.subscribers {
		w.removeLocked(c)
	}
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; views never send chat data.
func (c *wsConnection) readPump() {
	defer func() {
		c.renderer.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}
	}
}
