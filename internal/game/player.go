package game

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// Player is one participant: a goroutine consuming slot presses, a bounded
// in-progress selection of slots, and for bots a second goroutine generating
// random presses.
//
// The selection slice is guarded by selMu and is mutated by both the owning
// player goroutine (toggle) and the dealer goroutine (cross-player
// invalidation, claim resolution). The dealer is the only writer of score
// and freeze state.
type Player struct {
	id      int
	name    string
	human   bool
	table   *Table
	dealer  *Dealer
	display Display

	featureSize int

	// presses buffers incoming slot presses. Capacity featureSize: while a
	// claim is under examination the player goroutine stops consuming, the
	// buffer fills, and a bot generator blocks on send. That blocking send
	// is the generator's backpressure gate.
	presses chan int

	selMu     sync.Mutex
	selection []int // ordered selected slots, len in [0, featureSize]
	examined  bool  // true from claim enqueue until the dealer resolves it

	// resolved is signalled (non-blocking, cap 1) by the dealer when it
	// resolves this player's claim: scored, penalized or dropped as stale.
	resolved chan struct{}

	score       int          // guarded by selMu
	freezeUntil atomic.Int64 // unix millis; -1 = not frozen

	done          chan struct{}
	terminateOnce sync.Once
}

// NewPlayer creates a player. Bots get their press generator when Run starts.
func NewPlayer(id int, name string, human bool, featureSize int, table *Table, display Display) *Player {
	p := &Player{
		id:          id,
		name:        name,
		human:       human,
		table:       table,
		display:     display,
		featureSize: featureSize,
		presses:     make(chan int, featureSize),
		resolved:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	p.freezeUntil.Store(-1)
	return p
}

// ID returns the player's id.
func (p *Player) ID() int { return p.id }

// Name returns the player's configured name.
func (p *Player) Name() string { return p.name }

// Human reports whether presses come from external input rather than the
// internal generator.
func (p *Player) Human() bool { return p.human }

// Score returns the player's current score.
func (p *Player) Score() int {
	p.selMu.Lock()
	defer p.selMu.Unlock()
	return p.score
}

// Selection returns a copy of the in-progress selection.
func (p *Player) Selection() []int {
	p.selMu.Lock()
	defer p.selMu.Unlock()
	return append([]int(nil), p.selection...)
}

// Frozen reports whether the player is inside a freeze window.
func (p *Player) Frozen() bool {
	return p.freezeUntil.Load() > time.Now().UnixMilli()
}

// FreezeRemaining returns how much of the freeze window is left, or zero.
func (p *Player) FreezeRemaining() time.Duration {
	remaining := p.freezeUntil.Load() - time.Now().UnixMilli()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining) * time.Millisecond
}

// Press submits a slot press. It is dropped unless the table is ready, the
// player is not frozen and no claim of theirs is under examination. A press
// that arrives while the buffer is full is dropped, matching a key press
// landing faster than the player goroutine consumes.
func (p *Player) Press(slot int) {
	if slot < 0 || slot >= p.table.SlotCount() {
		return
	}
	if !p.table.Ready() || p.Frozen() {
		return
	}

	p.selMu.Lock()
	examined := p.examined
	p.selMu.Unlock()
	if examined {
		return
	}

	select {
	case p.presses <- slot:
	default:
	}
}

// Terminate requests orderly shutdown. Idempotent; unblocks the player
// goroutine and any bot generator.
func (p *Player) Terminate() {
	p.terminateOnce.Do(func() {
		close(p.done)
	})
}

// Run is the player goroutine main loop: consume presses, toggle tokens,
// and after submitting a claim block until the dealer resolves it. For bots
// it also runs the press generator and waits for it on the way out.
func (p *Player) Run(ctx context.Context) {
	log.Printf("[Player %d] %s starting", p.id, p.name)

	var generator sync.WaitGroup
	if !p.human {
		generator.Add(1)
		go func() {
			defer generator.Done()
			p.generatePresses(ctx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			p.Terminate()
			generator.Wait()
			return
		case <-p.done:
			generator.Wait()
			log.Printf("[Player %d] %s terminated", p.id, p.name)
			return
		case slot := <-p.presses:
			if p.handlePress(slot) {
				// Claim submitted: wait for the dealer's verdict before
				// consuming further presses.
				select {
				case <-p.resolved:
					p.drainPresses()
				case <-ctx.Done():
					p.Terminate()
					generator.Wait()
					return
				case <-p.done:
					generator.Wait()
					return
				}
			}
		}
	}
}

// generatePresses is the bot loop: uniform random slots, blocked by the
// press buffer while the player's claim is under examination.
func (p *Player) generatePresses(ctx context.Context) {
	log.Printf("[Player %d] generator starting", p.id)
	for {
		slot := rand.IntN(p.table.SlotCount())
		select {
		case p.presses <- slot:
		case <-ctx.Done():
			return
		case <-p.done:
			log.Printf("[Player %d] generator terminated", p.id)
			return
		}
	}
}

// handlePress toggles a token on slot if the game state allows it.
// Returns true if the toggle completed the selection and enqueued a claim.
func (p *Player) handlePress(slot int) bool {
	if p.Frozen() {
		return false
	}

	p.table.RLockSlot(slot)
	defer p.table.RUnlockSlot(slot)

	// Re-check ready under the slot lock: the dealer flips it before taking
	// write locks, so a toggle can never interleave with a card mutation.
	if !p.table.Ready() {
		return false
	}
	if p.table.Card(slot) < 0 {
		return false
	}

	return p.toggle(slot)
}

// toggle flips slot membership in the selection. Adding the featureSize'th
// slot marks the selection under examination and submits a claim.
func (p *Player) toggle(slot int) bool {
	p.selMu.Lock()
	defer p.selMu.Unlock()

	if p.examined {
		return false
	}

	for i, s := range p.selection {
		if s == slot {
			p.selection = append(p.selection[:i], p.selection[i+1:]...)
			p.table.RemoveToken(p.id, slot)
			return false
		}
	}

	if len(p.selection) >= p.featureSize {
		return false
	}

	p.selection = append(p.selection, slot)
	p.table.PlaceToken(p.id, slot)

	if len(p.selection) == p.featureSize {
		p.examined = true
		// Discard any wakeup left over from a reshuffle-time clear so the
		// wait below only observes this claim's resolution.
		select {
		case <-p.resolved:
		default:
		}
		p.dealer.submitClaim(p.id)
		return true
	}
	return false
}

// drainPresses discards presses buffered while the claim was under
// examination, releasing the generator's backpressure gate.
func (p *Player) drainPresses() {
	for {
		select {
		case <-p.presses:
		default:
			return
		}
	}
}

// signalResolved wakes the player goroutine after claim resolution.
// Non-blocking: the channel is buffered and drained exactly once per claim.
func (p *Player) signalResolved() {
	select {
	case p.resolved <- struct{}{}:
	default:
	}
}

// freeze opens a freeze window of the given length.
func (p *Player) freeze(d time.Duration) {
	p.freezeUntil.Store(time.Now().Add(d).UnixMilli())
}

// award resolves a legal claim: +1 point, point freeze, selection cleared.
// Tokens on the scored slots were already removed by the dealer's
// invalidation pass. Called only by the dealer.
func (p *Player) award(freezeFor time.Duration) {
	p.selMu.Lock()
	p.score++
	score := p.score
	p.examined = false
	p.clearSelectionLocked()
	p.selMu.Unlock()

	p.display.SetScore(p.id, score)
	p.freeze(freezeFor)
	p.signalResolved()
}

// penalize resolves an illegal claim: penalty freeze, selection cleared,
// score untouched. Called only by the dealer.
func (p *Player) penalize(freezeFor time.Duration) {
	p.selMu.Lock()
	p.examined = false
	p.clearSelectionLocked()
	p.selMu.Unlock()

	p.freeze(freezeFor)
	p.signalResolved()
}

// dropStale resolves a claim whose selection changed between enqueue and
// examination: no score, no freeze, remaining tokens kept. The examination
// flag is still cleared so the player does not hang.
func (p *Player) dropStale() {
	p.selMu.Lock()
	p.examined = false
	p.selMu.Unlock()

	p.signalResolved()
}

// invalidateSlots removes any token this player holds on the given slots.
// Called by the dealer for every player when a meld is scored.
func (p *Player) invalidateSlots(slots []int) {
	p.selMu.Lock()
	defer p.selMu.Unlock()

	kept := p.selection[:0]
	for _, s := range p.selection {
		removed := false
		for _, dead := range slots {
			if s == dead {
				removed = true
				break
			}
		}
		if removed {
			p.table.RemoveToken(p.id, s)
		} else {
			kept = append(kept, s)
		}
	}
	p.selection = kept
}

// clearSelection empties the selection and clears the examination flag,
// waking any pending waiter. Used by the dealer at reshuffle.
func (p *Player) clearSelection() {
	p.selMu.Lock()
	p.examined = false
	p.clearSelectionLocked()
	p.selMu.Unlock()

	p.signalResolved()
}

func (p *Player) clearSelectionLocked() {
	for _, s := range p.selection {
		p.table.RemoveToken(p.id, s)
	}
	p.selection = nil
}
