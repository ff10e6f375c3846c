// Package notify pushes entitlement events to connected players over
// WebSocket. With Redis configured, events fan out to every instance.
package notify

import (
	"context"
	"encoding/json"
	"expvar"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jcq/jcq-api/internal/domain/purchase"
	"github.com/jcq/jcq-api/internal/pkg/logger"
)

// EventType for WebSocket messages
type EventType string

const EventEntitlementGranted EventType = "entitlement.granted"

const actorEventsChannel = "jcq:actor_events"

var (
	wsConnectionsGauge   = expvar.NewInt("notify_ws_connections")
	wsEventsSentTotal    = expvar.NewInt("notify_ws_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("notify_ws_events_dropped_total")
)

// Event is what a player's socket receives.
type Event struct {
	Type         EventType     `json:"type"`
	GameID       uuid.UUID     `json:"game_id"`
	ChapterID    *uuid.UUID    `json:"chapter_id,omitempty"`
	PurchaseType purchase.Type `json:"purchase_type"`
	PurchaseID   uuid.UUID     `json:"purchase_id"`
}

type actorEventMessage struct {
	ActorID          string          `json:"actor_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection represents a WebSocket connection
type Connection struct {
	ActorID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
}

// Hub tracks the sockets of this instance by actor.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

// NewHub creates a hub. redisClient may be nil for a single instance.
func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with an explicit instance identifier.
func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		redis:       redisClient,
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}
	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, actorEventsChannel)
	}
	return h
}

// Run forwards events published by other instances until Shutdown.
func (h *Hub) Run() {
	if h.pubsub == nil {
		<-h.ctx.Done()
		return
	}
	h.runRedisSubscriber()
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleActorEventPayload(msg.Payload)
		}
	}
}

func (h *Hub) handleActorEventPayload(payload string) {
	var msg actorEventMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return
	}
	if msg.SenderInstanceID == h.instanceID {
		return
	}
	actorID, err := uuid.Parse(msg.ActorID)
	if err != nil {
		return
	}
	h.sendLocal(actorID, msg.Payload)
}

// Register adds a connection. It reports false once the hub is shut down.
func (h *Hub) Register(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	if h.connections[conn.ActorID] == nil {
		h.connections[conn.ActorID] = make(map[*Connection]bool)
	}
	h.connections[conn.ActorID][conn] = true
	wsConnectionsGauge.Add(1)
	log.Debug().Str("actor_id", conn.ActorID.String()).Msg("Actor connected to WebSocket")
	return true
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.connections[conn.ActorID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; exists {
		delete(conns, conn)
		close(conn.Send)
		wsConnectionsGauge.Add(-1)
	}
	if len(conns) == 0 {
		delete(h.connections, conn.ActorID)
	}
	log.Debug().Str("actor_id", conn.ActorID.String()).Msg("Actor disconnected from WebSocket")
}

// SendToActor delivers event to every socket of actorID on any instance.
func (h *Hub) SendToActor(actorID uuid.UUID, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.sendLocal(actorID, data)
	return h.publish(actorID, data)
}

// EntitlementGranted tells the actor their purchase has landed.
func (h *Hub) EntitlementGranted(ctx context.Context, p *purchase.Purchase) {
	event := &Event{
		Type:         EventEntitlementGranted,
		GameID:       p.GameID,
		ChapterID:    p.ChapterID,
		PurchaseType: p.Type,
		PurchaseID:   p.ID,
	}
	if err := h.SendToActor(p.ActorID, event); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("actor_id", p.ActorID.String()).Msg("Entitlement notification publish failed")
	}
}

func (h *Hub) sendLocal(actorID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[actorID] {
		select {
		case conn.Send <- data:
			wsEventsSentTotal.Add(1)
		default:
			wsEventsDroppedTotal.Add(1)
			log.Warn().Str("actor_id", actorID.String()).Msg("WebSocket send buffer full")
		}
	}
}

func (h *Hub) publish(actorID uuid.UUID, data []byte) error {
	if h.redis == nil {
		return nil
	}
	payload, err := json.Marshal(actorEventMessage{
		ActorID:          actorID.String(),
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return err
	}
	return h.redis.Publish(h.ctx, actorEventsChannel, payload).Err()
}

// ConnectionCount returns number of local connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
