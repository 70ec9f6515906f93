package game

import (
	"context"
	"encoding/json"
	"log"
	"math/rand/v2"
	"sync"
	"time"
)

// Phase is the dealer's round state.
type Phase string

const (
	// PhaseDealing indicates cards are being placed on empty slots.
	PhaseDealing Phase = "dealing"

	// PhaseRunning indicates the countdown is active and claims are processed.
	PhaseRunning Phase = "running"

	// PhaseReshuffling indicates the grid is being cleared back into the deck.
	PhaseReshuffling Phase = "reshuffling"

	// PhaseEnded indicates no legal meld remains or termination was requested.
	PhaseEnded Phase = "ended"
)

// Dealer is the game controller and the sole consumer of claims. Running
// claim validation on a single goroutine makes each validation atomic with
// respect to every other: no global validation lock is needed beyond the
// per-player selection mutexes it takes while mutating token state.
type Dealer struct {
	table   *Table
	oracle  Oracle
	display Display
	players []*Player

	featureSize        int
	turnTimeout        time.Duration
	turnTimeoutWarning time.Duration
	pointFreeze        time.Duration
	penaltyFreeze      time.Duration
	tick               time.Duration

	// features optionally decodes a card id for hint logging.
	features func(card int) []int

	rng *rand.Rand

	// deck holds card ids not on the table: shrinks on refill, regrows only
	// at reshuffle when unscored table cards return.
	deck []int

	// claims delivers player ids in arrival order. Capacity len(players):
	// a player cannot enqueue twice while under examination, so a send
	// never blocks. Receiving doubles as the dealer's wakeup.
	claims chan int

	// pendingRemoval queues scored melds' slots for removal from the grid.
	// Dealer-goroutine only.
	pendingRemoval [][]int

	reshuffleAt time.Time
	phase       Phase

	done          chan struct{}
	terminateOnce sync.Once
}

// DealerOptions configures a Dealer.
type DealerOptions struct {
	FeatureSize        int
	DeckSize           int
	TurnTimeout        time.Duration
	TurnTimeoutWarning time.Duration
	PointFreeze        time.Duration
	PenaltyFreeze      time.Duration
	Tick               time.Duration

	// Features, when set, decodes card ids for hint logging.
	Features func(card int) []int

	// Rand, when set, makes card draws deterministic (tests).
	Rand *rand.Rand
}

// NewDealer creates a dealer over the given table with a full deck.
func NewDealer(table *Table, oracle Oracle, display Display, opts DealerOptions) *Dealer {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().UnixNano())>>32))
	}

	deck := make([]int, opts.DeckSize)
	for i := range deck {
		deck[i] = i
	}

	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}

	return &Dealer{
		table:              table,
		oracle:             oracle,
		display:            display,
		featureSize:        opts.FeatureSize,
		turnTimeout:        opts.TurnTimeout,
		turnTimeoutWarning: opts.TurnTimeoutWarning,
		pointFreeze:        opts.PointFreeze,
		penaltyFreeze:      opts.PenaltyFreeze,
		tick:               tick,
		features:           opts.Features,
		rng:                rng,
		deck:               deck,
		phase:              PhaseDealing,
		done:               make(chan struct{}),
	}
}

// AttachPlayers wires the participants. Must be called before Run, once.
func (d *Dealer) AttachPlayers(players []*Player) {
	d.players = players
	d.claims = make(chan int, len(players))
	for _, p := range players {
		p.dealer = d
	}
}

// Phase returns the current round phase.
func (d *Dealer) Phase() Phase {
	return d.phase
}

// DeckRemaining returns how many cards are left off-table.
func (d *Dealer) DeckRemaining() int {
	return len(d.deck)
}

// Terminate requests orderly shutdown of the round loop. Idempotent.
func (d *Dealer) Terminate() {
	d.terminateOnce.Do(func() {
		close(d.done)
	})
}

// submitClaim enqueues a completed selection for validation and wakes the
// dealer. The send cannot block: capacity covers one outstanding claim per
// player, enforced by the examination flag.
func (d *Dealer) submitClaim(playerID int) {
	select {
	case d.claims <- playerID:
	default:
		// Unreachable while the examination flag holds; dropping here is
		// still safe because the player would be woken at reshuffle.
		log.Printf("[Dealer] claim queue full, dropping claim from player %d", playerID)
	}
}

// Run drives rounds until no legal meld remains in deck plus table, or
// termination is requested. It does not manage player goroutines; the
// caller starts them before and stops them after.
func (d *Dealer) Run(ctx context.Context) {
	log.Printf("[Dealer] starting: %d players, %d cards, %d slots",
		len(d.players), len(d.deck)+d.table.CountCards(), d.table.SlotCount())

	for !d.shouldFinish(ctx) {
		d.setPhase(PhaseDealing)
		d.placeCards()

		d.setPhase(PhaseRunning)
		d.timerLoop(ctx)
		d.updateCountdown()

		d.setPhase(PhaseReshuffling)
		d.reshuffle()
	}

	d.setPhase(PhaseEnded)
	d.announceWinners()
	log.Printf("[Dealer] terminated")
}

// timerLoop runs one round: process claims and keep the grid replenished
// until the countdown times out or termination is requested.
func (d *Dealer) timerLoop(ctx context.Context) {
	for !d.terminated(ctx) && time.Now().Before(d.reshuffleAt) {
		d.sleepUntilWokenOrTimeout(ctx)
		d.examineClaims()
		d.updateCountdown()
		d.removeMarkedCards()
		d.placeCards()
	}
}

// sleepUntilWokenOrTimeout blocks for one tick or until a claim arrives,
// whichever is first. A claim received here is examined immediately so FIFO
// order is preserved before examineClaims drains the rest.
func (d *Dealer) sleepUntilWokenOrTimeout(ctx context.Context) {
	timer := time.NewTimer(d.tick)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-d.done:
	case <-timer.C:
	case playerID := <-d.claims:
		d.examineClaim(playerID)
	}
}

// examineClaims drains the claim queue in arrival order.
func (d *Dealer) examineClaims() {
	for {
		select {
		case playerID := <-d.claims:
			d.examineClaim(playerID)
		default:
			return
		}
	}
}

// examineClaim validates one claim. Stale claims (selection no longer
// featureSize slots, because a scored meld stole a shared slot) are dropped
// silently, but the claimant is still released.
func (d *Dealer) examineClaim(playerID int) {
	p := d.players[playerID]

	p.selMu.Lock()
	if len(p.selection) != d.featureSize {
		p.selMu.Unlock()
		p.dropStale()
		d.logEvent("claim_stale", map[string]interface{}{
			"player": playerID,
		})
		return
	}
	slots := append([]int(nil), p.selection...)
	p.selMu.Unlock()

	// The claimant is blocked waiting for resolution and the dealer is the
	// only other selection writer, so the snapshot cannot go stale here.
	cards := make([]int, len(slots))
	for i, slot := range slots {
		cards[i] = d.table.Card(slot)
		if cards[i] < 0 {
			// A claimed slot was emptied by a scored meld before this claim
			// was dequeued: stale, not illegal.
			p.dropStale()
			d.logEvent("claim_stale", map[string]interface{}{
				"player": playerID,
				"slots":  slots,
			})
			return
		}
	}

	if d.oracle.TestSet(cards) {
		d.pendingRemoval = append(d.pendingRemoval, slots)
		d.invalidateTokens(slots)
		p.award(d.pointFreeze)
		d.logEvent("claim_scored", map[string]interface{}{
			"player": playerID,
			"slots":  slots,
			"cards":  cards,
			"score":  p.Score(),
		})
	} else {
		p.penalize(d.penaltyFreeze)
		d.logEvent("claim_rejected", map[string]interface{}{
			"player": playerID,
			"slots":  slots,
			"cards":  cards,
		})
	}
}

// invalidateTokens removes tokens on the scored slots from every player's
// selection, the scorer included. This is what turns an overlapping rival
// claim stale instead of double-scoring a removed card.
func (d *Dealer) invalidateTokens(slots []int) {
	d.table.SetReady(false)
	for _, p := range d.players {
		p.invalidateSlots(slots)
	}
	d.table.SetReady(true)
}

// removeMarkedCards clears scored melds from the grid under slot write
// locks, taken in ascending slot order.
func (d *Dealer) removeMarkedCards() {
	if len(d.pendingRemoval) == 0 {
		return
	}

	d.table.SetReady(false)

	// Tokens were invalidated when each meld scored, but with the grid ready
	// again a press could have re-selected a doomed slot since. Sweep once
	// more with the grid closed so no selection references a removed card.
	for _, slots := range d.pendingRemoval {
		for _, p := range d.players {
			p.invalidateSlots(slots)
		}
	}

	for _, slots := range d.pendingRemoval {
		for _, slot := range sortedSlots(slots) {
			d.table.LockSlot(slot)
			d.table.RemoveCard(slot)
			d.table.UnlockSlot(slot)
		}
	}
	d.pendingRemoval = nil
	d.table.SetReady(true)
}

// placeCards refills every empty slot with a uniform draw from the deck.
// Any fill resets the round countdown and emits fresh hints.
func (d *Dealer) placeCards() {
	filled := false
	for slot := 0; slot < d.table.SlotCount(); slot++ {
		if d.table.Card(slot) >= 0 {
			continue
		}
		if len(d.deck) == 0 {
			break
		}

		i := d.rng.IntN(len(d.deck))
		card := d.deck[i]
		d.deck[i] = d.deck[len(d.deck)-1]
		d.deck = d.deck[:len(d.deck)-1]

		d.table.LockSlot(slot)
		d.table.PlaceCard(card, slot)
		d.table.UnlockSlot(slot)
		filled = true
	}

	if filled {
		d.resetCountdown()
		d.table.SetReady(true)
		d.table.Hints(d.oracle, d.features)
	}
}

// reshuffle resolves anything still queued, then returns every unscored
// card from the grid to the deck.
func (d *Dealer) reshuffle() {
	// Claims enqueued before the timeout still get their FIFO validation.
	d.examineClaims()
	d.removeMarkedCards()

	d.table.SetReady(false)

	for _, p := range d.players {
		p.clearSelection()
	}

	for slot := 0; slot < d.table.SlotCount(); slot++ {
		card := d.table.Card(slot)
		if card < 0 {
			continue
		}
		d.table.LockSlot(slot)
		d.table.RemoveCard(slot)
		d.table.UnlockSlot(slot)
		d.deck = append(d.deck, card)
	}
}

// resetCountdown restarts the round deadline. Player freezes are left
// untouched; only the countdown baseline moves.
func (d *Dealer) resetCountdown() {
	d.reshuffleAt = time.Now().Add(d.turnTimeout)
}

// updateCountdown refreshes the countdown and per-player freeze displays.
func (d *Dealer) updateCountdown() {
	remaining := time.Until(d.reshuffleAt)
	if remaining < 0 {
		remaining = 0
	}
	d.display.SetCountdown(remaining, remaining <= d.turnTimeoutWarning)

	for _, p := range d.players {
		d.display.SetFreeze(p.id, p.FreezeRemaining())
	}
}

// shouldFinish reports whether the game is over: termination requested, or
// no legal meld exists across the deck and the table.
func (d *Dealer) shouldFinish(ctx context.Context) bool {
	if d.terminated(ctx) {
		return true
	}
	all := append(d.table.Cards(), d.deck...)
	return len(d.oracle.FindSets(all, 1)) == 0
}

func (d *Dealer) terminated(ctx context.Context) bool {
	select {
	case <-d.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// announceWinners logs the highest-scoring players.
func (d *Dealer) announceWinners() {
	best := 0
	for _, p := range d.players {
		if s := p.Score(); s > best {
			best = s
		}
	}

	var winners []string
	for _, p := range d.players {
		if p.Score() == best {
			winners = append(winners, p.name)
		}
	}

	d.logEvent("game_over", map[string]interface{}{
		"winners":    winners,
		"best_score": best,
	})
}

func (d *Dealer) setPhase(phase Phase) {
	if d.phase == phase {
		return
	}
	d.phase = phase
	d.logEvent("phase_changed", map[string]interface{}{
		"phase": string(phase),
	})
}

// sortedSlots returns a copy of slots in ascending order, the fixed order
// for write-lock acquisition.
func sortedSlots(slots []int) []int {
	out := append([]int(nil), slots...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// logEvent logs a structured event in JSON format.
func (d *Dealer) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "dealer"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Dealer] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
