package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gomoku/internal/game"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub      *Hub
	handler  *Handler
	conn     *websocket.Conn
	send     chan []byte
	username string

	mu     sync.Mutex
	gameID string
	closed bool
}

func newClient(hub *Hub, handler *Handler, conn *websocket.Conn, username string) *Client {
	return &Client{
		hub:      hub,
		handler:  handler,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		username: username,
	}
}

// GameID returns the game the client is currently attached to
func (c *Client) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

func (c *Client) setGameID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameID = id
}

// sendMessage queues a message for the client, dropping it if the buffer is full
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error("error marshaling message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	c.sendRaw(msg.Type, data)
}

// sendRaw queues an encoded message of the given type
func (c *Client) sendRaw(msgType string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("client send buffer full",
			zap.String("username", c.username),
			zap.String("type", msgType))
	}
}

// close stops delivery to the client and ends its write pump
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps messages from the websocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Info("client disconnected unexpectedly",
					zap.String("username", c.username), zap.Error(err))
			}
			return
		}
		c.handler.HandleMessage(c, data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// checkOrigin accepts any origin when "*" is configured, otherwise only the
// listed ones
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWs upgrades the HTTP connection and registers a client for the
// username given in the query string
func ServeWs(hub *Hub, handler *Handler, w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" || len(username) > 50 {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	if strings.EqualFold(username, game.BotUsername) {
		http.Error(w, "username is reserved", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(hub.opts.AllowedOrigins),
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("error upgrading connection", zap.Error(err))
		return
	}

	client := newClient(hub, handler, conn, username)
	if !hub.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
