package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/meld/internal/printer"
	"github.com/dyluth/meld/pkg/gameboard"
)

var (
	watchRedisAddr string
	watchGameID    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running game over its Redis event bus",
	Long: `Subscribe to a game's display events and print them as they happen.

The game must have been started with a redis section in its configuration;
'meld play' prints the game id to pass here.

Examples:
  meld watch --redis localhost:6379 --game 2f1c9c1e-...`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisAddr, "redis", "localhost:6379", "Redis address of the game's event bus")
	watchCmd.Flags().StringVar(&watchGameID, "game", "", "Game instance id to follow (required)")
	watchCmd.MarkFlagRequired("game")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := gameboard.NewClient(&redis.Options{Addr: watchRedisAddr}, watchGameID)
	if err != nil {
		return printer.Error("Failed to create Redis client", err.Error(), nil)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx); err != nil {
		return printer.Error("Redis is not reachable", err.Error(), []string{
			"Check the --redis address",
		})
	}

	// Show current standings first, then stream changes.
	if scores, err := client.Scores(ctx); err == nil && len(scores) > 0 {
		for player, score := range scores {
			printer.Info("player %d: %d\n", player, score)
		}
	}

	sub, err := client.Subscribe(ctx)
	if err != nil {
		return printer.Error("Failed to subscribe to display events", err.Error(), nil)
	}
	defer sub.Close()

	printer.Info("Watching game %s (Ctrl+C to stop)\n", watchGameID)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printEvent(event)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("subscription error: %v\n", err)
		}
	}
}

func printEvent(e *gameboard.Event) {
	switch e.Type {
	case gameboard.EventCardPlaced:
		printer.Info("card %d placed in slot %d\n", e.Card, e.Slot)
	case gameboard.EventCardRemoved:
		printer.Info("slot %d cleared\n", e.Slot)
	case gameboard.EventTokenPlaced:
		printer.Info("player %d placed a token on slot %d\n", e.Player, e.Slot)
	case gameboard.EventTokenRemoved:
		printer.Info("player %d removed a token from slot %d\n", e.Player, e.Slot)
	case gameboard.EventTokensCleared:
		printer.Info("tokens cleared from slots %v\n", e.Slots)
	case gameboard.EventScoreChanged:
		printer.Success("player %d scored: %d\n", e.Player, e.Score)
	case gameboard.EventCountdown:
		remaining := time.Duration(e.RemainingMs) * time.Millisecond
		if e.Warning {
			printer.Warning("%s remaining\n", remaining.Round(time.Second))
		}
	case gameboard.EventFreeze:
		if e.RemainingMs > 0 {
			printer.Info("player %d frozen for %dms\n", e.Player, e.RemainingMs)
		}
	}
}
