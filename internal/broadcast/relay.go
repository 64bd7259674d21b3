package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel content events travel on.
const DefaultChannel = "site:content-updated"

type relayMessage struct {
	Instance string    `json:"instance"`
	Key      string    `json:"key"`
	Origin   string    `json:"origin"`
	At       time.Time `json:"at"`
}

// RedisRelay bridges a local Bus to the other API instances sharing a Redis server.
// Saves made in this process go out; saves from other instances come back in as
// SourceRemote events.
type RedisRelay struct {
	client   *redis.Client
	bus      *Bus
	logger   *zap.Logger
	channel  string
	instance string
	ready    chan struct{}
}

// NewRedisRelay connects to redisURL and checks the connection.
func NewRedisRelay(redisURL string, bus *Bus, logger *zap.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisRelayWithClient(client, bus, logger), nil
}

// NewRedisRelayWithClient builds a relay on an existing client.
func NewRedisRelayWithClient(client *redis.Client, bus *Bus, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:   client,
		bus:      bus,
		logger:   logger,
		channel:  DefaultChannel,
		instance: uuid.NewString(),
		ready:    make(chan struct{}),
	}
}

// Instance is the id this relay stamps on outgoing messages.
func (r *RedisRelay) Instance() string {
	return r.instance
}

// Ready is closed once the Redis subscription is active.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays events until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	local, cancel := r.bus.Subscribe(32)
	defer cancel()
	inbound := pubsub.Channel()
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-local:
			if !ok {
				return nil
			}
			if event.Source != SourceFacade {
				continue
			}
			if err := r.publish(ctx, event); err != nil {
				r.logger.Warn("relay content event", zap.String("key", event.Key), zap.Error(err))
			}
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

// Announce publishes a change made outside any running façade, such as an admin
// command, so every subscribed instance reloads key.
func (r *RedisRelay) Announce(ctx context.Context, key, origin string) error {
	return r.publish(ctx, Event{Key: key, Origin: origin, Source: SourceFacade, At: time.Now().UTC()})
}

func (r *RedisRelay) publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(relayMessage{
		Instance: r.instance,
		Key:      event.Key,
		Origin:   event.Origin,
		At:       event.At,
	})
	if err != nil {
		return fmt.Errorf("marshal relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish relay message: %w", err)
	}
	return nil
}

func (r *RedisRelay) deliver(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn("ignored malformed relay message", zap.Error(err))
		return
	}
	if msg.Instance == r.instance {
		return
	}
	r.bus.Publish(Event{Key: msg.Key, Origin: msg.Origin, Source: SourceRemote, At: msg.At})
}

// Ping checks if Redis is reachable.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
