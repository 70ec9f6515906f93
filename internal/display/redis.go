// Package display provides Display sinks for the meld engine: a local
// terminal renderer, a Redis event bus publisher and a fan-out combinator.
package display

import (
	"context"
	"log"
	"time"

	"github.com/dyluth/meld/pkg/gameboard"
)

// Redis publishes every display change to the game's Redis event bus so
// spectators can follow the game remotely. Calls are fire-and-forget:
// publish failures are logged and never surface into the engine.
type Redis struct {
	client *gameboard.Client
	ctx    context.Context
}

// NewRedis creates a Redis display over an instance-scoped gameboard client.
// The context bounds every publish; pass the game's run context.
func NewRedis(ctx context.Context, client *gameboard.Client) *Redis {
	return &Redis{client: client, ctx: ctx}
}

func (r *Redis) publish(e *gameboard.Event) {
	if err := r.client.PublishEvent(r.ctx, e); err != nil && r.ctx.Err() == nil {
		log.Printf("[Display] failed to publish %s event: %v", e.Type, err)
	}
}

func (r *Redis) PlaceCard(card, slot int) {
	r.publish(&gameboard.Event{Type: gameboard.EventCardPlaced, Card: card, Slot: slot})
}

func (r *Redis) RemoveCard(slot int) {
	r.publish(&gameboard.Event{Type: gameboard.EventCardRemoved, Slot: slot})
}

func (r *Redis) PlaceToken(player, slot int) {
	r.publish(&gameboard.Event{Type: gameboard.EventTokenPlaced, Player: player, Slot: slot})
}

func (r *Redis) RemoveToken(player, slot int) {
	r.publish(&gameboard.Event{Type: gameboard.EventTokenRemoved, Player: player, Slot: slot})
}

func (r *Redis) RemoveAllTokens(slots []int) {
	r.publish(&gameboard.Event{Type: gameboard.EventTokensCleared, Slots: slots})
}

func (r *Redis) SetScore(player, score int) {
	r.publish(&gameboard.Event{Type: gameboard.EventScoreChanged, Player: player, Score: score})
}

func (r *Redis) SetCountdown(remaining time.Duration, warning bool) {
	r.publish(&gameboard.Event{
		Type:        gameboard.EventCountdown,
		RemainingMs: remaining.Milliseconds(),
		Warning:     warning,
	})
}

func (r *Redis) SetFreeze(player int, remaining time.Duration) {
	r.publish(&gameboard.Event{
		Type:        gameboard.EventFreeze,
		Player:      player,
		RemainingMs: remaining.Milliseconds(),
	})
}
