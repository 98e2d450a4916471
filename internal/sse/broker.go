package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/openclaw/attendance-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100
)

const (
	EventScanAccepted = "scan_accepted"
	EventScanRejected = "scan_rejected"
	EventSessionEnded = "session_ended"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

type Client struct {
	SessionID string
	Events    chan Event
	Done      chan struct{}
}

type topic struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Broker fans session events out to local SSE clients. Events travel through
// Redis pub/sub so every server instance sees every publish.
type Broker struct {
	redis  *redisclient.Client
	topics map[string]*topic // sessionID -> subscribers
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:  redisClient,
		topics: make(map[string]*topic),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *Broker) Subscribe(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Events:    make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	t := b.topics[sessionID]
	if t == nil {
		ctx, cancel := context.WithCancel(b.ctx)
		t = &topic{clients: make(map[*Client]bool), cancel: cancel}
		b.topics[sessionID] = t

		pubsub := b.redis.Subscribe(ctx, redisclient.SessionEventsChannel(sessionID))
		go b.relay(ctx, sessionID, t, pubsub.Channel(), pubsub.Close)
	}
	t.clients[client] = true
	clientCount := len(t.clients)
	b.mu.Unlock()

	log.Info().
		Str("sessionId", sessionID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[client.SessionID]
	if !ok || !t.clients[client] {
		return
	}
	delete(t.clients, client)
	close(client.Done)

	if len(t.clients) == 0 {
		t.cancel()
		delete(b.topics, client.SessionID)
	}

	log.Info().
		Str("sessionId", client.SessionID).
		Int("clientCount", len(t.clients)).
		Msg("sse client unsubscribed")
}

func (b *Broker) Publish(ctx context.Context, sessionID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionEventsChannel(sessionID)
	return b.redis.Publish(ctx, channel, data).Err()
}

// relay feeds one topic from its redis subscription. It holds the topic itself
// so a relay outliving its topic never reaches a newer topic's clients.
func (b *Broker) relay(ctx context.Context, sessionID string, t *topic, ch <-chan *goredis.Message, closeFn func() error) {
	defer closeFn()

	log.Debug().
		Str("sessionId", sessionID).
		Msg("redis pubsub subscribed")

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(t, sessionID, event)
		}
	}
}

func (b *Broker) broadcast(t *topic, sessionID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range t.clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("sessionId", sessionID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.topics {
		for client := range t.clients {
			close(client.Done)
		}
	}
	b.topics = make(map[string]*topic)
}

func (b *Broker) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t := b.topics[sessionID]; t != nil {
		return len(t.clients)
	}
	return 0
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, t := range b.topics {
		total += len(t.clients)
	}
	return total
}
