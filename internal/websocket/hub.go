package websocket

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/tullo/wordguard/internal/cache"
	"github.com/tullo/wordguard/internal/models"
	"go.uber.org/zap"
)

// chatMessage is an encoded frame addressed to the subscribers of one chat.
type chatMessage struct {
	chatID int64
	data   []byte
}

// Hub maintains the set of active clients and fans violation events out to the
// clients watching the event's chat. Clients watching the super scope see every chat.
type Hub struct {
	// Registered clients
	clients map[uuid.UUID]*Client

	// Outbound frames
	broadcast chan chatMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Redis client for pub/sub
	redis *cache.RedisClient

	logger *zap.Logger

	// Closed when Run returns
	done chan struct{}

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewHub creates a new Hub. redis may be nil, in which case only Broadcast feeds the hub.
func NewHub(redis *cache.RedisClient, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan chatMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		redis:      redis,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run starts the hub and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.redis != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()

			h.logger.Info("Client registered",
				zap.String("client_id", client.id.String()),
				zap.Int64("user_id", client.userID),
				zap.Int64("chat_id", client.chatID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closeSend()
			}
			h.mu.Unlock()

			h.logger.Info("Client unregistered", zap.String("client_id", client.id.String()))

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) deliver(message chatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		if !client.watches(message.chatID) {
			continue
		}
		if !client.trySend(message.data) {
			// slow consumer
			client.closeSend()
			delete(h.clients, id)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.closeSend()
		delete(h.clients, id)
	}
}

// subscribeToRedis forwards violation events published by any process.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.redis.SubscribeToViolations(ctx)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, err := cache.DecodeViolationEvent(msg.Payload)
			if err != nil {
				h.logger.Warn("Dropping malformed violation event", zap.Error(err))
				continue
			}
			if err := h.Broadcast(event); err != nil {
				h.logger.Warn("Failed to broadcast violation", zap.Error(err))
			}
		}
	}
}

// Broadcast queues a violation event for the clients watching its chat.
func (h *Hub) Broadcast(event *models.ViolationEvent) error {
	data, err := sonic.Marshal(models.WSMessage{
		Event:   models.EventViolationNew,
		Payload: event,
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- chatMessage{chatID: event.Log.ChatID, data: data}:
	case <-h.done:
	}
	return nil
}

// PublishViolation feeds the hub directly. It is the publisher used when Redis
// is not configured, so only this process's violations reach its clients.
func (h *Hub) PublishViolation(_ context.Context, log *models.ViolationLog) error {
	return h.Broadcast(&models.ViolationEvent{ID: uuid.New(), Log: *log})
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToChat sends a message to the clients watching chatID without going through Run.
func (h *Hub) SendToChat(chatID int64, message interface{}) error {
	data, err := sonic.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.watches(chatID) {
			// Client's send channel may be full, skip it then
			client.trySend(data)
		}
	}

	return nil
}

// Watchers returns how many clients receive events for chatID.
func (h *Hub) Watchers(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, client := range h.clients {
		if client.watches(chatID) {
			n++
		}
	}
	return n
}
