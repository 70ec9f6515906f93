package display

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/meld/pkg/gameboard"
)

// recorder counts notifications per kind.
type recorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string]int)}
}

func (r *recorder) note(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[kind]++
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[kind]
}

func (r *recorder) PlaceCard(card, slot int)                      { r.note("placeCard") }
func (r *recorder) RemoveCard(slot int)                           { r.note("removeCard") }
func (r *recorder) PlaceToken(player, slot int)                   { r.note("placeToken") }
func (r *recorder) RemoveToken(player, slot int)                  { r.note("removeToken") }
func (r *recorder) RemoveAllTokens(slots []int)                   { r.note("removeAllTokens") }
func (r *recorder) SetScore(player, score int)                    { r.note("setScore") }
func (r *recorder) SetCountdown(d time.Duration, warning bool)    { r.note("setCountdown") }
func (r *recorder) SetFreeze(player int, remaining time.Duration) { r.note("setFreeze") }

func TestMultiFansOutToEverySink(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	m := Multi{a, b}

	m.PlaceCard(1, 2)
	m.RemoveCard(2)
	m.PlaceToken(0, 3)
	m.RemoveToken(0, 3)
	m.RemoveAllTokens([]int{1, 2})
	m.SetScore(0, 1)
	m.SetCountdown(time.Second, false)
	m.SetFreeze(0, time.Second)

	for _, rec := range []*recorder{a, b} {
		for _, kind := range []string{
			"placeCard", "removeCard", "placeToken", "removeToken",
			"removeAllTokens", "setScore", "setCountdown", "setFreeze",
		} {
			assert.Equal(t, 1, rec.count(kind), kind)
		}
	}
}

func TestConsoleRendersBoardOnCountdown(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 6, 3, []string{"alice", "bob"})

	c.PlaceCard(42, 0)
	c.PlaceCard(7, 4)
	c.PlaceToken(0, 0)
	c.SetScore(0, 2)
	c.SetFreeze(1, 3*time.Second)

	// Nothing is written until the countdown paces a redraw.
	assert.Zero(t, buf.Len())

	c.SetCountdown(30*time.Second, false)

	out := buf.String()
	assert.Contains(t, out, "30s remaining")
	assert.Contains(t, out, " 42")
	assert.Contains(t, out, "  7")
	assert.Contains(t, out, "A") // alice's token mark
	assert.Contains(t, out, "alice: 2")
	assert.Contains(t, out, "bob: 0")
	assert.Contains(t, out, "frozen 3s")
}

func TestConsoleRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 3, 3, []string{"alice"})

	c.SetCountdown(10*time.Second, false)
	first := buf.String()
	// First frame: 3 lines (countdown, grid row, scores), no cursor movement.
	assert.NotContains(t, first, "\x1b[3A")
	assert.Equal(t, 3, strings.Count(first, "\n"))

	c.SetCountdown(9*time.Second, false)
	// Second frame climbs back over the first and clears it.
	assert.Contains(t, buf.String()[len(first):], "\x1b[3A\x1b[J")
}

func TestConsoleClearsState(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, 3, 3, []string{"alice"})

	c.PlaceCard(5, 1)
	c.PlaceToken(0, 1)
	c.RemoveAllTokens([]int{1})
	c.RemoveCard(1)
	c.SetCountdown(10*time.Second, false)

	out := buf.String()
	assert.Contains(t, out, "[ --  ]")
	assert.NotContains(t, out, "A")
}

func TestRedisDisplayPublishesEvents(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := gameboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-game")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	d := NewRedis(ctx, client)
	d.PlaceCard(4, 9)
	d.SetScore(1, 2)
	d.SetCountdown(90*time.Second, true)

	expect := []gameboard.EventType{
		gameboard.EventCardPlaced,
		gameboard.EventScoreChanged,
		gameboard.EventCountdown,
	}
	for _, want := range expect {
		select {
		case got := <-sub.Events():
			assert.Equal(t, want, got.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("never received %s event", want)
		}
	}

	// Score events also land in the scores hash.
	scores, err := client.Scores(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2}, scores)
}
