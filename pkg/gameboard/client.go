package gameboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the game display bus.
// All keys and channels are automatically namespaced with the game instance
// id. The client is thread-safe and can be used concurrently from multiple
// goroutines.
type Client struct {
	rdb      *redis.Client
	instance string
}

// NewClient creates a client for the specified game instance.
// Returns an error if instance is empty.
func NewClient(redisOpts *redis.Options, instance string) (*Client, error) {
	if instance == "" {
		return nil, fmt.Errorf("game instance id cannot be empty")
	}

	return &Client{
		rdb:      redis.NewClient(redisOpts),
		instance: instance,
	}, nil
}

// Instance returns the game instance id this client is scoped to.
func (c *Client) Instance() string {
	return c.instance
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishEvent publishes a display event to the instance's channel.
// Score events are additionally written to the scores hash so late joiners
// can read current standings without replaying the stream.
func (c *Client) PublishEvent(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	if e.CreatedAtMs == 0 {
		e.CreatedAtMs = time.Now().UnixMilli()
	}

	if e.Type == EventScoreChanged {
		field := strconv.Itoa(e.Player)
		if err := c.rdb.HSet(ctx, ScoresKey(c.instance), field, e.Score).Err(); err != nil {
			return fmt.Errorf("failed to write score to Redis: %w", err)
		}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal display event: %w", err)
	}

	if err := c.rdb.Publish(ctx, DisplayEventsChannel(c.instance), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish display event: %w", err)
	}

	return nil
}

// Scores returns the latest known score per player id.
func (c *Client) Scores(ctx context.Context) (map[int]int, error) {
	raw, err := c.rdb.HGetAll(ctx, ScoresKey(c.instance)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scores from Redis: %w", err)
	}

	scores := make(map[int]int, len(raw))
	for field, value := range raw {
		player, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("malformed player id in scores hash: %q", field)
		}
		score, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("malformed score for player %d: %q", player, value)
		}
		scores[player] = score
	}

	return scores, nil
}

// Subscription delivers display events for one game instance.
type Subscription struct {
	events chan *Event
	errors chan error
	cancel context.CancelFunc
}

// Events returns the channel delivering display events.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel delivering non-fatal subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and releases its goroutine.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe subscribes to the instance's display events.
// Caller must call subscription.Close() when done. Context cancellation also
// stops the subscription.
//
// Events are delivered on a buffered channel (size 64) to absorb bursts; if
// the subscriber falls far behind, Redis Pub/Sub may drop messages
// (at-most-once delivery), which is acceptable for a display mirror.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, DisplayEventsChannel(c.instance))

	// Confirm the subscription is live before returning so callers never
	// miss events published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to display events: %w", err)
	}

	eventsChan := make(chan *Event, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal display event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
