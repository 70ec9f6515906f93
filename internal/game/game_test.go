package game

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dyluth/meld/internal/config"
	"github.com/dyluth/meld/internal/deck"
)

// displayRecorder captures display notifications for assertions.
type displayRecorder struct {
	mu           sync.Mutex
	cards        map[int]int     // slot -> card
	tokens       map[[2]int]bool // (player, slot) -> present
	scores       map[int]int     // player -> score
	countdowns   int
	lastWarning  bool
	removedSlots []int
}

func newDisplayRecorder() *displayRecorder {
	return &displayRecorder{
		cards:  make(map[int]int),
		tokens: make(map[[2]int]bool),
		scores: make(map[int]int),
	}
}

func (r *displayRecorder) PlaceCard(card, slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[slot] = card
}

func (r *displayRecorder) RemoveCard(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, slot)
	r.removedSlots = append(r.removedSlots, slot)
}

func (r *displayRecorder) PlaceToken(player, slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[[2]int{player, slot}] = true
}

func (r *displayRecorder) RemoveToken(player, slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, [2]int{player, slot})
}

func (r *displayRecorder) RemoveAllTokens(slots []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.tokens {
		for _, slot := range slots {
			if key[1] == slot {
				delete(r.tokens, key)
			}
		}
	}
}

func (r *displayRecorder) SetScore(player, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[player] = score
}

func (r *displayRecorder) SetCountdown(remaining time.Duration, warning bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countdowns++
	r.lastWarning = warning
}

func (r *displayRecorder) SetFreeze(player int, remaining time.Duration) {}

func (r *displayRecorder) hasToken(player, slot int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[[2]int{player, slot}]
}

func (r *displayRecorder) score(player int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[player]
}

// stubOracle gives tests full control over legality decisions.
type stubOracle struct {
	legal bool
	melds [][]int
}

func (s stubOracle) TestSet(cards []int) bool { return s.legal }

func (s stubOracle) FindSets(cards []int, limit int) [][]int { return s.melds }

func testConfig(bots int) *config.MeldConfig {
	players := make([]config.Player, bots)
	for i := range players {
		players[i] = config.Player{Name: string(rune('a' + i)), Kind: "bot"}
	}
	return &config.MeldConfig{
		Version: "1.0",
		Game: config.GameConfig{
			FeatureSize:  3,
			FeatureCount: 4,
			TableSize:    12,
			DeckSize:     81,
		},
		Timing: config.TimingConfig{
			TurnTimeoutMs:        60000,
			TurnTimeoutWarningMs: 5000,
			// Freezes long enough that tests observe them deterministically.
			PointFreezeMs:   3600000,
			PenaltyFreezeMs: 3600000,
			TableDelayMs:    0,
			TickMs:          5,
		},
		Players: players,
	}
}

// newTestGame builds a game with a deterministic rng and a recording display.
// The dealer loop is not running; tests drive it directly.
func newTestGame(t *testing.T, bots int, oracle Oracle) (*Game, *displayRecorder) {
	t.Helper()

	cfg := testConfig(bots)
	require.NoError(t, cfg.Validate())

	rec := newDisplayRecorder()
	g, err := New(cfg, oracle, rec, DealerOptions{
		Rand: rand.New(rand.NewPCG(7, 11)),
	})
	require.NoError(t, err)
	return g, rec
}

func waitTimeout() <-chan time.Time { return time.After(2 * time.Second) }

func shortPause() <-chan time.Time { return time.After(50 * time.Millisecond) }

func realOracle(t *testing.T) *deck.Oracle {
	t.Helper()
	oracle, err := deck.NewOracle(3, 4)
	require.NoError(t, err)
	return oracle
}

// placeCards deals specific cards to specific slots and pulls them out of
// the dealer's deck, then marks the table ready.
func placeCards(g *Game, bySlot map[int]int) {
	placed := make(map[int]bool, len(bySlot))
	for slot, card := range bySlot {
		g.table.LockSlot(slot)
		g.table.PlaceCard(card, slot)
		g.table.UnlockSlot(slot)
		placed[card] = true
	}

	kept := g.dealer.deck[:0]
	for _, card := range g.dealer.deck {
		if !placed[card] {
			kept = append(kept, card)
		}
	}
	g.dealer.deck = kept

	g.table.SetReady(true)
	g.dealer.resetCountdown()
}

func TestGameEndsWhenNoMeldRemains(t *testing.T) {
	g, _ := newTestGame(t, 2, stubOracle{legal: false, melds: nil})

	done := make(chan []Result, 1)
	go func() {
		done <- g.Run(context.Background())
	}()

	select {
	case results := <-done:
		require.Len(t, results, 2)
		for _, r := range results {
			require.Equal(t, 0, r.Score)
			require.True(t, r.Winner) // everybody ties at zero
		}
		require.Equal(t, PhaseEnded, g.dealer.Phase())
	case <-time.After(5 * time.Second):
		t.Fatal("game did not end despite no meld remaining")
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	cfg := testConfig(2)
	cfg.Timing.TurnTimeoutMs = 200
	cfg.Timing.TurnTimeoutWarningMs = 50
	require.NoError(t, cfg.Validate())

	g, err := New(cfg, realOracle(t), newDisplayRecorder(), DealerOptions{
		Rand: rand.New(rand.NewPCG(1, 2)),
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		g.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	g.Terminate()
	g.Terminate()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("game did not shut down after Terminate")
	}
}

func TestContextCancellationStopsTheGame(t *testing.T) {
	cfg := testConfig(2)
	cfg.Timing.TurnTimeoutMs = 500
	require.NoError(t, cfg.Validate())

	g, err := New(cfg, realOracle(t), newDisplayRecorder(), DealerOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("game did not stop on context cancellation")
	}
}
