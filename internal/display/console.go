package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	scoreStyle   = color.New(color.FgGreen)
	warningStyle = color.New(color.FgRed, color.Bold)
)

// Console renders the game in a terminal. It accumulates grid, token and
// score state from display notifications and redraws once per countdown
// update, so players, bots and the dealer can all notify it concurrently
// without flooding the terminal.
type Console struct {
	w       io.Writer
	columns int
	names   []string

	mu       sync.Mutex
	cards    []int           // card per slot, -1 if empty
	tokens   []map[int]bool  // per slot, player ids holding a token
	scores   []int           // per player
	freezes  []time.Duration // per player
	rendered int             // lines written by the previous redraw
}

// NewConsole creates a console display for a grid of tableSize slots laid
// out in rows of columns, with one entry per configured player name.
func NewConsole(w io.Writer, tableSize, columns int, names []string) *Console {
	c := &Console{
		w:       w,
		columns: columns,
		names:   names,
		cards:   make([]int, tableSize),
		tokens:  make([]map[int]bool, tableSize),
		scores:  make([]int, len(names)),
		freezes: make([]time.Duration, len(names)),
	}
	for i := range c.cards {
		c.cards[i] = -1
		c.tokens[i] = make(map[int]bool)
	}
	return c
}

func (c *Console) PlaceCard(card, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[slot] = card
}

func (c *Console) RemoveCard(slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[slot] = -1
}

func (c *Console) PlaceToken(player, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[slot][player] = true
}

func (c *Console) RemoveToken(player, slot int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens[slot], player)
}

func (c *Console) RemoveAllTokens(slots []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, slot := range slots {
		c.tokens[slot] = make(map[int]bool)
	}
}

func (c *Console) SetScore(player, score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if player >= 0 && player < len(c.scores) {
		c.scores[player] = score
	}
}

func (c *Console) SetFreeze(player int, remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if player >= 0 && player < len(c.freezes) {
		c.freezes[player] = remaining
	}
}

// SetCountdown redraws the whole board in place. The dealer refreshes the
// countdown once per tick, which paces the rendering: the cursor moves back
// up over the previous frame and clears it before the new one is written.
func (c *Console) SetCountdown(remaining time.Duration, warning bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	if c.rendered > 0 {
		fmt.Fprintf(&b, "\x1b[%dA\x1b[J", c.rendered)
	}

	countdown := fmt.Sprintf("-- %s remaining --", remaining.Round(time.Second))
	if warning {
		b.WriteString(warningStyle.Sprint(countdown))
	} else {
		b.WriteString(countdown)
	}
	b.WriteByte('\n')

	for slot := range c.cards {
		if slot > 0 && slot%c.columns == 0 {
			b.WriteByte('\n')
		}
		b.WriteString(c.renderSlot(slot))
		b.WriteByte(' ')
	}
	b.WriteByte('\n')

	for id, name := range c.names {
		b.WriteString(scoreStyle.Sprintf("%s: %d", name, c.scores[id]))
		if c.freezes[id] > 0 {
			b.WriteString(warningStyle.Sprintf(" (frozen %s)", c.freezes[id].Round(time.Second)))
		}
		b.WriteString("  ")
	}
	b.WriteByte('\n')

	frame := b.String()
	c.rendered = strings.Count(frame, "\n")
	fmt.Fprint(c.w, frame)
}

func (c *Console) renderSlot(slot int) string {
	card := c.cards[slot]
	if card < 0 {
		return "[ --  ]"
	}

	// Tokens render as one letter per player: A for player 0, B for 1, ...
	marks := make([]byte, 0, len(c.names))
	for id := range c.names {
		if c.tokens[slot][id] {
			marks = append(marks, byte('A'+id))
		}
	}

	return fmt.Sprintf("[%3d|%-3s]", card, string(marks))
}
