package websocket

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tullo/wordguard/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

// Client is a dashboard connection watching the violations of one chat.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	id          uuid.UUID
	userID      int64
	chatID      int64
	super       bool
	connectedAt time.Time
	logger      *zap.Logger

	// inbound frames are only pings, so a small bucket is plenty
	limiter *rate.Limiter

	sendMu sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client. A super client receives the events
// of every chat.
func NewClient(hub *Hub, conn *websocket.Conn, userID, chatID int64, super bool, logger *zap.Logger) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          uuid.New(),
		userID:      userID,
		chatID:      chatID,
		super:       super,
		connectedAt: time.Now(),
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (c *Client) watches(chatID int64) bool {
	if c.super && c.chatID == models.SuperScope {
		return true
	}
	return c.chatID == chatID
}

// ReadPump reads control frames until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket error", zap.Error(err))
			}
			break
		}

		if !c.limiter.Allow() {
			c.sendError("rate_limited")
			continue
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

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

// handleMessage answers application level pings; the feed is otherwise read only.
func (c *Client) handleMessage(data []byte) {
	var wsMsg models.WSMessage
	if err := sonic.Unmarshal(data, &wsMsg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch wsMsg.Event {
	case models.EventPing:
		c.sendJSON(models.WSMessage{Event: models.EventPong})
	default:
		c.sendError("Unknown event type")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(models.WSMessage{
		Event: models.EventError,
		Payload: models.WSErrorPayload{
			Message: message,
		},
	})
}

func (c *Client) sendJSON(message models.WSMessage) {
	data, err := sonic.Marshal(message)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data without blocking. It reports false when the queue is full
// or the client has been closed.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
