// Package messaging delivers domain events to in-process handlers and,
// when Redis is available, to other registrar instances over pub/sub.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bitcollege/registrar/internal/domain/shared"
	"github.com/bitcollege/registrar/pkg/logger"
)

// ErrEventBusClosed is returned by Publish and Subscribe after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus dispatches events to handlers registered in this process.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logger.Logger
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of inline.
	AsyncMode      bool
	WorkerPoolSize int
	Logger         *logger.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 4
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		log:        config.Logger.With(logger.Component("eventbus")),
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers. Handler errors are
// logged, never returned.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if b.asyncMode {
			b.executeAsync(event, handler)
			continue
		}
		if err := handler(event); err != nil {
			b.log.Error("handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}

	return nil
}

func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		start := time.Now()
		if err := handler(event); err != nil {
			b.log.Error("async handler error",
				logger.String("event_type", string(event.EventType())),
				logger.Latency(time.Since(start)),
				logger.Err(err),
			)
		}
	}()
}

// Close waits for in-flight async handlers and rejects further use.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisMessage represents a message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisClient is the slice of Redis the bus needs.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client      RedisClient
	ChannelName string

	// InstanceID tags outgoing messages so this instance skips its own.
	InstanceID string

	PublishTimeout time.Duration
	Local          InMemoryEventBusConfig
	Logger         *logger.Logger
}

// RedisEventBus publishes every event to a Redis channel and to local
// handlers, and replays events from other instances to local handlers.
type RedisEventBus struct {
	client         RedisClient
	localBus       *InMemoryEventBus
	channelName    string
	instanceID     string
	publishTimeout time.Duration
	log            *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRedisEventBus creates the bus and starts listening on the channel.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "registrar.events"
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Local.Logger == nil {
		config.Local.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:         config.Client,
		localBus:       NewInMemoryEventBus(config.Local),
		channelName:    config.ChannelName,
		instanceID:     config.InstanceID,
		publishTimeout: config.PublishTimeout,
		log:            config.Logger.With(logger.Component("redis-eventbus")),
		ctx:            ctx,
		cancel:         cancel,
	}

	messages, err := config.Client.Subscribe(ctx, config.ChannelName)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", config.ChannelName, err)
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(messages)
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends the event to Redis and to local handlers. A Redis failure is
// logged and local delivery still happens.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	msg, err := newWireMessage(b.instanceID, event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channelName, msg); err != nil {
		b.log.Error("failed to publish to redis",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}

	return b.localBus.Publish(event)
}

func (b *RedisEventBus) subscriptionLoop(messages <-chan RedisMessage) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.log.Error("redis subscription error", logger.Err(msg.Err))
				continue
			}
			b.handleRedisMessage(msg)
		}
	}
}

func (b *RedisEventBus) handleRedisMessage(msg RedisMessage) {
	event, instanceID, err := DecodeMessage([]byte(msg.Payload))
	if err != nil {
		b.log.Warn("failed to decode event", logger.Err(err))
		return
	}
	if instanceID == b.instanceID {
		return
	}
	if err := b.localBus.Publish(event); err != nil {
		b.log.Error("failed to process remote event", logger.Err(err))
	}
}

// Close stops the listener and the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.localBus.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type wireMessage struct {
	InstanceID string `json:"instance_id"`
	shared.EventEnvelope
}

type correlated interface {
	Correlation() string
}

func newWireMessage(instanceID string, event shared.Event) (wireMessage, error) {
	var correlationID string
	if c, ok := event.(correlated); ok {
		correlationID = c.Correlation()
	}
	env, err := shared.NewEnvelope(event, correlationID)
	if err != nil {
		return wireMessage{}, err
	}
	return wireMessage{InstanceID: instanceID, EventEnvelope: env}, nil
}

// DecodeMessage parses a pub/sub payload back into an event and returns the
// id of the instance that sent it.
func DecodeMessage(data []byte) (shared.Event, string, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, "", err
	}
	if msg.Type == "" {
		return nil, "", errors.New("event type missing")
	}

	payload := map[string]any{}
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, "", fmt.Errorf("payload: %w", err)
		}
	}

	return &RemoteEvent{
		BaseEvent: shared.BaseEvent{
			Type:          msg.Type,
			Timestamp:     msg.Timestamp,
			AggregateId:   msg.AggregateID,
			CorrelationID: msg.CorrelationID,
		},
		payload: payload,
	}, msg.InstanceID, nil
}

// RemoteEvent is an event received from another instance.
type RemoteEvent struct {
	shared.BaseEvent
	payload map[string]any
}

// Payload implements shared.Event.
func (e *RemoteEvent) Payload() map[string]any {
	return e.payload
}

var (
	_ shared.EventBus = (*InMemoryEventBus)(nil)
	_ shared.EventBus = (*RedisEventBus)(nil)
)
