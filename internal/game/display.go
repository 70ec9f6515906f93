package game

import "time"

// Display is the one-way notification sink that mirrors table and score
// changes. Implementations must be safe for concurrent use: players notify
// token changes from their own goroutines while the dealer notifies card,
// score and timer changes. All calls are fire-and-forget.
type Display interface {
	PlaceCard(card, slot int)
	RemoveCard(slot int)
	PlaceToken(player, slot int)
	RemoveToken(player, slot int)
	RemoveAllTokens(slots []int)
	SetScore(player, score int)
	SetCountdown(remaining time.Duration, warning bool)
	SetFreeze(player int, remaining time.Duration)
}

// Oracle decides card-group legality. The engine treats legality as an
// opaque capability; internal/deck provides the standard implementation.
type Oracle interface {
	// TestSet reports whether the cards form a legal meld.
	TestSet(cards []int) bool
	// FindSets enumerates legal melds within cards, stopping after limit
	// melds. A limit <= 0 means no bound.
	FindSets(cards []int, limit int) [][]int
}

// NopDisplay discards every notification.
type NopDisplay struct{}

func (NopDisplay) PlaceCard(card, slot int)                           {}
func (NopDisplay) RemoveCard(slot int)                                {}
func (NopDisplay) PlaceToken(player, slot int)                        {}
func (NopDisplay) RemoveToken(player, slot int)                       {}
func (NopDisplay) RemoveAllTokens(slots []int)                        {}
func (NopDisplay) SetScore(player, score int)                         {}
func (NopDisplay) SetCountdown(remaining time.Duration, warning bool) {}
func (NopDisplay) SetFreeze(player int, remaining time.Duration)      {}
