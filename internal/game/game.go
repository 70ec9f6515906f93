// Package game implements the concurrent meld engine: a shared table of
// cards, one goroutine per player (bots get a second, press-generating
// goroutine) and a single dealer goroutine that validates claims in strict
// arrival order, scores them and keeps the grid replenished under a
// countdown.
package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/meld/internal/config"
)

// Game wires a table, a dealer and the configured players, and owns their
// goroutine lifecycles.
type Game struct {
	cfg     *config.MeldConfig
	table   *Table
	dealer  *Dealer
	players []*Player
}

// Result is one player's final standing.
type Result struct {
	Player string
	Score  int
	Winner bool
}

// New builds a game from configuration. The oracle and display are external
// collaborators supplied by the caller.
func New(cfg *config.MeldConfig, oracle Oracle, display Display, opts DealerOptions) (*Game, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if display == nil {
		display = NopDisplay{}
	}

	table := NewTable(cfg.Game.TableSize, cfg.Game.DeckSize, cfg.Timing.TableDelay(), display)

	opts.FeatureSize = cfg.Game.FeatureSize
	opts.DeckSize = cfg.Game.DeckSize
	opts.TurnTimeout = cfg.Timing.TurnTimeout()
	opts.TurnTimeoutWarning = cfg.Timing.TurnTimeoutWarning()
	opts.PointFreeze = cfg.Timing.PointFreeze()
	opts.PenaltyFreeze = cfg.Timing.PenaltyFreeze()
	opts.Tick = cfg.Timing.Tick()

	dealer := NewDealer(table, oracle, display, opts)

	players := make([]*Player, len(cfg.Players))
	for i, pc := range cfg.Players {
		players[i] = NewPlayer(i, pc.Name, pc.Kind == "human", cfg.Game.FeatureSize, table, display)
	}
	dealer.AttachPlayers(players)

	return &Game{
		cfg:     cfg,
		table:   table,
		dealer:  dealer,
		players: players,
	}, nil
}

// Table returns the shared table.
func (g *Game) Table() *Table {
	return g.table
}

// Player returns the player with the given id.
func (g *Game) Player(id int) *Player {
	return g.players[id]
}

// Players returns all players in id order.
func (g *Game) Players() []*Player {
	return g.players
}

// Run starts every player goroutine, runs the dealer loop on the calling
// goroutine, then shuts the players down and waits for orderly exit.
// It returns final standings sorted by descending score.
func (g *Game) Run(ctx context.Context) []Result {
	var wg sync.WaitGroup
	for _, p := range g.players {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}

	g.dealer.Run(ctx)

	for _, p := range g.players {
		p.Terminate()
	}
	wg.Wait()

	return g.results()
}

// Terminate requests orderly shutdown of the whole game. Idempotent; safe
// from any goroutine.
func (g *Game) Terminate() {
	g.dealer.Terminate()
	for _, p := range g.players {
		p.Terminate()
	}
}

func (g *Game) results() []Result {
	best := 0
	for _, p := range g.players {
		if s := p.Score(); s > best {
			best = s
		}
	}

	results := make([]Result, len(g.players))
	for i, p := range g.players {
		score := p.Score()
		results[i] = Result{
			Player: p.Name(),
			Score:  score,
			Winner: score == best,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}
