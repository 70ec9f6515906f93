package display

import (
	"time"

	"github.com/dyluth/meld/internal/game"
)

// Multi fans every notification out to all wrapped displays, so a local
// console and the Redis event bus can mirror the same game.
type Multi []game.Display

func (m Multi) PlaceCard(card, slot int) {
	for _, d := range m {
		d.PlaceCard(card, slot)
	}
}

func (m Multi) RemoveCard(slot int) {
	for _, d := range m {
		d.RemoveCard(slot)
	}
}

func (m Multi) PlaceToken(player, slot int) {
	for _, d := range m {
		d.PlaceToken(player, slot)
	}
}

func (m Multi) RemoveToken(player, slot int) {
	for _, d := range m {
		d.RemoveToken(player, slot)
	}
}

func (m Multi) RemoveAllTokens(slots []int) {
	for _, d := range m {
		d.RemoveAllTokens(slots)
	}
}

func (m Multi) SetScore(player, score int) {
	for _, d := range m {
		d.SetScore(player, score)
	}
}

func (m Multi) SetCountdown(remaining time.Duration, warning bool) {
	for _, d := range m {
		d.SetCountdown(remaining, warning)
	}
}

func (m Multi) SetFreeze(player int, remaining time.Duration) {
	for _, d := range m {
		d.SetFreeze(player, remaining)
	}
}
