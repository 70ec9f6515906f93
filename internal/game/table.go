package game

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Table holds the shared grid: the slot↔card bijection, the per-slot locks
// and the ready flag that gates player token activity.
//
// Locking discipline: a player toggling a single slot holds that slot's lock
// in read mode for the duration of the toggle, so players acting on different
// slots never contend. The dealer takes slot locks in write mode, always in
// ascending slot order, when placing or removing cards.
//
// Invariant: slotToCard[s] == c iff cardToSlot[c] == s, except while a
// place/remove is in flight under that slot's write lock.
type Table struct {
	display Display
	delay   time.Duration // artificial dealing latency per place/remove

	slotToCard []int // card per slot, -1 if empty
	cardToSlot []int // slot per card, -1 if off-table
	slotLocks  []sync.RWMutex

	// ready is false during reshuffle/removal; players must not toggle
	// tokens while it is false, and re-check it under the slot lock.
	ready atomic.Bool
}

// NewTable creates an empty table with tableSize slots over a deck of
// deckSize distinct cards.
func NewTable(tableSize, deckSize int, delay time.Duration, display Display) *Table {
	t := &Table{
		display:    display,
		delay:      delay,
		slotToCard: make([]int, tableSize),
		cardToSlot: make([]int, deckSize),
		slotLocks:  make([]sync.RWMutex, tableSize),
	}
	for i := range t.slotToCard {
		t.slotToCard[i] = -1
	}
	for i := range t.cardToSlot {
		t.cardToSlot[i] = -1
	}
	return t
}

// SlotCount returns the number of grid slots.
func (t *Table) SlotCount() int {
	return len(t.slotToCard)
}

// Ready reports whether players may toggle tokens.
func (t *Table) Ready() bool {
	return t.ready.Load()
}

// SetReady flips the grid-wide gate on player token activity.
func (t *Table) SetReady(ready bool) {
	t.ready.Store(ready)
}

// Card returns the card occupying slot, or -1 if the slot is empty.
// Callers racing the dealer must hold the slot's read lock.
func (t *Table) Card(slot int) int {
	return t.slotToCard[slot]
}

// Slot returns the slot holding card, or -1 if the card is off-table.
func (t *Table) Slot(card int) int {
	return t.cardToSlot[card]
}

// Cards returns the ids of all cards currently on the table.
func (t *Table) Cards() []int {
	var cards []int
	for _, card := range t.slotToCard {
		if card >= 0 {
			cards = append(cards, card)
		}
	}
	return cards
}

// CountCards returns the number of cards currently on the table.
func (t *Table) CountCards() int {
	return len(t.Cards())
}

// PlaceCard places a card in a grid slot, after the artificial dealing
// delay, and notifies the display. Caller must hold the slot's write lock.
func (t *Table) PlaceCard(card, slot int) {
	time.Sleep(t.delay)

	t.display.PlaceCard(card, slot)

	t.cardToSlot[card] = slot
	t.slotToCard[slot] = card
}

// RemoveCard removes the card from a grid slot, after the artificial dealing
// delay, and notifies the display (tokens on the slot disappear with the
// card). Caller must hold the slot's write lock. No-op on an empty slot.
func (t *Table) RemoveCard(slot int) {
	time.Sleep(t.delay)

	card := t.slotToCard[slot]
	if card < 0 {
		return
	}

	t.display.RemoveAllTokens([]int{slot})
	t.display.RemoveCard(slot)

	t.cardToSlot[card] = -1
	t.slotToCard[slot] = -1
}

// PlaceToken mirrors a token on the display. Token membership truth lives in
// the owning player, not here.
func (t *Table) PlaceToken(player, slot int) {
	t.display.PlaceToken(player, slot)
}

// RemoveToken mirrors a token removal on the display.
func (t *Table) RemoveToken(player, slot int) {
	t.display.RemoveToken(player, slot)
}

// RLockSlot acquires the slot's lock in read mode (player toggles).
func (t *Table) RLockSlot(slot int) {
	t.slotLocks[slot].RLock()
}

// RUnlockSlot releases the slot's read lock.
func (t *Table) RUnlockSlot(slot int) {
	t.slotLocks[slot].RUnlock()
}

// LockSlot acquires the slot's lock in write mode (dealer mutation).
func (t *Table) LockSlot(slot int) {
	t.slotLocks[slot].Lock()
}

// UnlockSlot releases the slot's write lock.
func (t *Table) UnlockSlot(slot int) {
	t.slotLocks[slot].Unlock()
}

// Hints logs every legal meld currently on the table, with slots and feature
// vectors. Observability only, never authoritative.
func (t *Table) Hints(oracle Oracle, features func(card int) []int) {
	for _, meld := range oracle.FindSets(t.Cards(), 0) {
		slots := make([]int, len(meld))
		for i, card := range meld {
			slots[i] = t.cardToSlot[card]
		}
		if features != nil {
			vectors := make([][]int, len(meld))
			for i, card := range meld {
				vectors[i] = features(card)
			}
			log.Printf("[Table] Hint: meld at slots %v features %v", slots, vectors)
		} else {
			log.Printf("[Table] Hint: meld at slots %v", slots)
		}
	}
}
