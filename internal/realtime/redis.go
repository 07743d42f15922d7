package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// EventsChannel returns the pub/sub channel name for an instance.
// Pattern: sibyl:{instance_name}:events
//
// Channels are namespaced by instance name so multiple Sibyl deployments can
// share a single Redis server.
func EventsChannel(instanceName string) string {
	return fmt.Sprintf("sibyl:%s:events", instanceName)
}

// RedisSource subscribes to push notifications over Redis pub/sub. It is the
// transport of choice when the client runs inside the backend's network,
// e.g. a worker colocated with the broker. Delivery is at-most-once: a
// subscriber that falls behind may miss events, which the blanket
// invalidation on reconnect recovers.
type RedisSource struct {
	events <-chan Event
	errors <-chan error
	states <-chan ConnState
	cancel func()
	once   sync.Once
	rdb    *redis.Client
}

// NewRedisSource connects to Redis and subscribes to the instance's events
// channel. Returns an error if instanceName is empty or Redis is not
// reachable. Caller must Close() when done; cancelling ctx also stops the
// subscription.
func NewRedisSource(ctx context.Context, redisOpts *redis.Options, instanceName string) (*RedisSource, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis not reachable: %w", err)
	}

	pubsub := rdb.Subscribe(ctx, EventsChannel(instanceName))

	// Buffered so a briefly slow consumer doesn't stall the read loop.
	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	statesChan := make(chan ConnState, 4)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer close(statesChan)
		defer pubsub.Close()

		statesChan <- StateConnecting
		statesChan <- StateConnected

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					// Report and skip; the subscription continues.
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal push event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				if err := ev.Validate(); err != nil {
					select {
					case errorsChan <- fmt.Errorf("invalid push event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &RedisSource{
		events: eventsChan,
		errors: errorsChan,
		states: statesChan,
		cancel: cancelFunc,
		rdb:    rdb,
	}, nil
}

// Events returns the channel of push notifications.
func (s *RedisSource) Events() <-chan Event { return s.events }

// Errors returns the channel of non-fatal subscription errors.
func (s *RedisSource) Errors() <-chan error { return s.errors }

// States returns the channel of connection-state transitions.
func (s *RedisSource) States() <-chan ConnState { return s.states }

// Close stops the subscription and closes the Redis connection.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *RedisSource) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.rdb.Close()
	})
	return nil
}
