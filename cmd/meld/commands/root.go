package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meld",
	Short: "Meld - concurrent pattern-matching card game",
	Long: `Meld runs a round-based multiplayer pattern-matching card game: a shared
grid of cards, several concurrent players (human or bot) racing to claim
legal melds, and a dealer that validates claims, scores them and keeps the
grid replenished under a countdown.

Display changes can be mirrored to a Redis event bus so spectators can
follow a game remotely with 'meld watch'.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
