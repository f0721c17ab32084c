package websocket

import (
	"context"
	"encoding/json"

	"ai-docchat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisChannel carries session updates between instances.
const RedisChannel = "chat_session_events"

// Hub fans session updates out to the websocket clients watching each session.
type Hub struct {
	// sessionID -> connected clients (several tabs may watch one session)
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery

	// done is closed when Run returns
	done chan struct{}

	// Redis connection for cross-instance communication
	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

type delivery struct {
	sessionID string
	data      []byte
}

type clusterMessage struct {
	Origin    string          `json:"origin"`
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run owns the client map; every change to it happens on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-h.register:
			if h.clients[client.SessionID] == nil {
				h.clients[client.SessionID] = make(map[*Client]struct{})
			}
			h.clients[client.SessionID][client] = struct{}{}
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.remove(client)

		case d := <-h.deliver:
			for client := range h.clients[d.sessionID] {
				select {
				case client.Send <- d.data:
				default:
					h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"session_id": d.sessionID})
					h.remove(client)
				}
			}
		}
	}
}

// join registers a client. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("Hub", "Session has no more watchers", map[string]interface{}{"session_id": client.SessionID})
	}
}

// Send delivers a message to local watchers of the session and, when Redis is
// available, to the watchers connected to other instances.
func (h *Hub) Send(ctx context.Context, sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal message", map[string]interface{}{"error": err, "session_id": sessionID})
		return
	}

	h.enqueue(delivery{sessionID: sessionID, data: data})

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{
			Origin:    h.instanceID,
			SessionID: sessionID,
			Message:   data,
		})
		if err := h.rdb.Publish(ctx, RedisChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, RedisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		// our own publications were already delivered locally
		if payload.Origin == h.instanceID {
			continue
		}
		h.enqueue(delivery{sessionID: payload.SessionID, data: payload.Message})
	}
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliver <- d:
	default:
		h.logger.Warn("Hub", "Delivery queue full, dropping update", map[string]interface{}{"session_id": d.sessionID})
	}
}
