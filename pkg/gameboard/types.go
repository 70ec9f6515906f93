// Package gameboard provides type-safe display event definitions and a Redis
// client for mirroring a running meld game. The engine publishes every table,
// score and timer change as a display event; spectator processes subscribe
// to follow a game remotely.
//
// All Redis keys and channels are namespaced by game instance id so multiple
// games can safely coexist on a single Redis server.
package gameboard

import "fmt"

// EventType identifies what changed on the game display.
type EventType string

const (
	// EventCardPlaced reports a card dealt into a slot.
	EventCardPlaced EventType = "card_placed"

	// EventCardRemoved reports a slot cleared of its card.
	EventCardRemoved EventType = "card_removed"

	// EventTokenPlaced reports a player token placed on a slot.
	EventTokenPlaced EventType = "token_placed"

	// EventTokenRemoved reports a player token removed from a slot.
	EventTokenRemoved EventType = "token_removed"

	// EventTokensCleared reports all tokens removed from the given slots.
	EventTokensCleared EventType = "tokens_cleared"

	// EventScoreChanged reports a player's new score.
	EventScoreChanged EventType = "score_changed"

	// EventCountdown reports the round countdown, with the warning style flag.
	EventCountdown EventType = "countdown"

	// EventFreeze reports how long a player remains frozen.
	EventFreeze EventType = "freeze"
)

// Event is one display change. Fields are populated per type; unused fields
// stay at their zero value.
type Event struct {
	Type        EventType `json:"type"`
	Player      int       `json:"player,omitempty"`
	Slot        int       `json:"slot,omitempty"`
	Card        int       `json:"card,omitempty"`
	Score       int       `json:"score,omitempty"`
	Slots       []int     `json:"slots,omitempty"`
	RemainingMs int64     `json:"remaining_ms,omitempty"`
	Warning     bool      `json:"warning,omitempty"`
	CreatedAtMs int64     `json:"created_at_ms,omitempty"`
}

// Validate checks the event carries a known type.
func (e *Event) Validate() error {
	switch e.Type {
	case EventCardPlaced, EventCardRemoved, EventTokenPlaced, EventTokenRemoved,
		EventTokensCleared, EventScoreChanged, EventCountdown, EventFreeze:
		return nil
	case "":
		return fmt.Errorf("event type is required")
	default:
		return fmt.Errorf("unknown event type: %s", e.Type)
	}
}

// DisplayEventsChannel returns the pub/sub channel for a game instance.
func DisplayEventsChannel(instance string) string {
	return fmt.Sprintf("meld:%s:display_events", instance)
}

// ScoresKey returns the hash key holding latest per-player scores, so late
// joiners can catch up without replaying events.
func ScoresKey(instance string) string {
	return fmt.Sprintf("meld:%s:scores", instance)
}
