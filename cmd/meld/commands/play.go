package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/meld/internal/config"
	"github.com/dyluth/meld/internal/deck"
	"github.com/dyluth/meld/internal/display"
	"github.com/dyluth/meld/internal/game"
	"github.com/dyluth/meld/internal/printer"
	"github.com/dyluth/meld/pkg/gameboard"
)

var (
	playConfigPath string
	playQuiet      bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Run a game from meld.yml",
	Long: `Run a game with the players defined in the configuration file.

Human players press their configured keys (followed by Enter) to toggle a
token on the matching grid slot; bots select slots on their own. The game
ends when no legal meld remains, or on Ctrl+C.

Examples:
  # Run with the default config
  meld play

  # Run with a specific config, grid rendering off
  meld play --config games/bots-only.yml --quiet`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playConfigPath, "config", "meld.yml", "Path to the game configuration file")
	playCmd.Flags().BoolVar(&playQuiet, "quiet", false, "Disable the terminal grid renderer")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(playConfigPath)
	if err != nil {
		return printer.Error("Invalid game configuration", err.Error(), []string{
			"Check the file exists and matches the meld.yml schema",
		})
	}

	oracle, err := deck.NewOracle(cfg.Game.FeatureSize, cfg.Game.FeatureCount)
	if err != nil {
		return printer.Error("Invalid card geometry", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameID := uuid.New().String()

	names := make([]string, len(cfg.Players))
	for i, p := range cfg.Players {
		names[i] = p.Name
	}

	var sinks display.Multi
	if !playQuiet {
		columns := cfg.Game.FeatureSize
		sinks = append(sinks, display.NewConsole(os.Stdout, cfg.Game.TableSize, columns, names))
	}
	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		client, err := gameboard.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, gameID)
		if err != nil {
			return printer.Error("Failed to create Redis display client", err.Error(), nil)
		}
		defer client.Close()

		if err := client.Ping(ctx); err != nil {
			return printer.Error("Redis is not reachable", err.Error(), []string{
				"Check redis.addr in the configuration",
				"Remove the redis section to play without the event bus",
			})
		}

		printer.Info("Mirroring display events to Redis (game id: %s)\n", gameID)
		sinks = append(sinks, display.NewRedis(ctx, client))
	}

	var sink game.Display = sinks
	if len(sinks) == 0 {
		sink = game.NopDisplay{}
	}

	g, err := game.New(cfg, oracle, sink, game.DealerOptions{Features: oracle.Features})
	if err != nil {
		return printer.Error("Failed to build game", err.Error(), nil)
	}

	// Route stdin key presses to human players.
	if hasHumans(cfg) {
		go readKeyPresses(ctx, os.Stdin, cfg, g)
	}

	results := g.Run(ctx)

	printer.Success("Game over\n")
	for _, r := range results {
		if r.Winner {
			printer.Success("%s: %d\n", r.Player, r.Score)
		} else {
			printer.Printf("%s: %d\n", r.Player, r.Score)
		}
	}

	return nil
}

func hasHumans(cfg *config.MeldConfig) bool {
	for _, p := range cfg.Players {
		if p.Kind == "human" {
			return true
		}
	}
	return false
}

// readKeyPresses maps each typed key to the slot it denotes in a human
// player's keymap and submits the press. Input is line-buffered, so keys
// take effect on Enter.
func readKeyPresses(ctx context.Context, r io.Reader, cfg *config.MeldConfig, g *game.Game) {
	reader := bufio.NewReader(r)
	for ctx.Err() == nil {
		ch, _, err := reader.ReadRune()
		if err != nil {
			return
		}

		for id, pc := range cfg.Players {
			if pc.Kind != "human" {
				continue
			}
			for slot, key := range []rune(pc.Keys) {
				if key == ch {
					g.Player(id).Press(slot)
				}
			}
		}
	}
}
