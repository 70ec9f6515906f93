package gameboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-game")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-game", client.Instance())
	})

	t.Run("rejects empty instance id", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance id cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestChannelAndKeyNamespacing(t *testing.T) {
	assert.Equal(t, "meld:g1:display_events", DisplayEventsChannel("g1"))
	assert.Equal(t, "meld:g1:scores", ScoresKey("g1"))
}

func TestEventValidate(t *testing.T) {
	t.Run("accepts known types", func(t *testing.T) {
		for _, typ := range []EventType{
			EventCardPlaced, EventCardRemoved, EventTokenPlaced, EventTokenRemoved,
			EventTokensCleared, EventScoreChanged, EventCountdown, EventFreeze,
		} {
			e := &Event{Type: typ}
			assert.NoError(t, e.Validate(), "type %s", typ)
		}
	})

	t.Run("rejects missing type", func(t *testing.T) {
		e := &Event{}
		assert.Error(t, e.Validate())
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		e := &Event{Type: "tea_break"}
		assert.Error(t, e.Validate())
	})
}

func TestPublishEvent(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("rejects invalid events", func(t *testing.T) {
		err := client.PublishEvent(ctx, &Event{})
		assert.Error(t, err)
	})

	t.Run("stamps creation time", func(t *testing.T) {
		e := &Event{Type: EventCardPlaced, Card: 5, Slot: 2}
		require.NoError(t, client.PublishEvent(ctx, e))
		assert.NotZero(t, e.CreatedAtMs)
	})

	t.Run("score events update the scores hash", func(t *testing.T) {
		require.NoError(t, client.PublishEvent(ctx, &Event{
			Type: EventScoreChanged, Player: 0, Score: 3,
		}))
		require.NoError(t, client.PublishEvent(ctx, &Event{
			Type: EventScoreChanged, Player: 1, Score: 1,
		}))

		scores, err := client.Scores(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[int]int{0: 3, 1: 1}, scores)
	})
}

func TestScoresEmptyGame(t *testing.T) {
	client, _ := setupTestClient(t)

	scores, err := client.Scores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	published := &Event{Type: EventTokenPlaced, Player: 1, Slot: 7}
	require.NoError(t, client.PublishEvent(ctx, published))

	select {
	case got := <-sub.Events():
		assert.Equal(t, EventTokenPlaced, got.Type)
		assert.Equal(t, 1, got.Player)
		assert.Equal(t, 7, got.Slot)
		assert.NotZero(t, got.CreatedAtMs)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never delivered the event")
	}
}

func TestSubscribeIsInstanceScoped(t *testing.T) {
	_, mr := setupTestClient(t)

	clientA, err := NewClient(&redis.Options{Addr: mr.Addr()}, "game-a")
	require.NoError(t, err)
	t.Cleanup(func() { clientA.Close() })

	clientB, err := NewClient(&redis.Options{Addr: mr.Addr()}, "game-b")
	require.NoError(t, err)
	t.Cleanup(func() { clientB.Close() })

	ctx := context.Background()
	subB, err := clientB.Subscribe(ctx)
	require.NoError(t, err)
	defer subB.Close()

	require.NoError(t, clientA.PublishEvent(ctx, &Event{Type: EventCardPlaced, Card: 1}))

	select {
	case e := <-subB.Events():
		t.Fatalf("game-b subscriber received game-a event: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)

	sub.Close()

	// The events channel is closed once the pump goroutine exits.
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionSurfacesMalformedPayloads(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(DisplayEventsChannel("test-game"), "not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal")
	case <-time.After(2 * time.Second):
		t.Fatal("malformed payload never surfaced on the error channel")
	}
}
