package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/cache"
	"github.com/sibyl-dev/sibyl-go/internal/render"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backend summary statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := cache.Fetch(ctx, a.cache, statsKey(), func(ctx context.Context) (*sibyl.Stats, error) {
		return a.client.Stats(ctx)
	})
	if err != nil {
		return err
	}

	render.Stats(os.Stdout, stats)
	return nil
}
