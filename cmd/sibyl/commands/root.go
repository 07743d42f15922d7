package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	// Global flags
	flagConfig string
	flagServer string
	flagToken  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sibyl",
	Short: "Sibyl - knowledge-graph workspace client",
	Long: `Sibyl is the command-line client for the Sibyl knowledge-graph backend.

It browses and edits entities, tasks, agents and planning sessions through a
shared query cache with optimistic updates: edits show immediately, reconcile
against the server's response, and roll back on failure. A realtime push
channel keeps the cache invalidated as other clients change the graph.`,
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

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.sibyl/config.yml)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Backend URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Access token (overrides config)")
}
