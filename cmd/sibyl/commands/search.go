package commands

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/debounce"
	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/internal/render"
	"github.com/sibyl-dev/sibyl-go/pkg/sibyl"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Incremental entity search",
	Long: `Incremental entity search reading query revisions from stdin.

Each input line replaces the current query. Fetches are debounced: a burst
of revisions issues a single request once input goes quiet (300ms by
default, configurable via cache.debounce), always for page 1.

Example:
  sibyl search        # then type, refining the query line by line`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	d := debounce.New(a.cfg.Debounce())
	defer d.Stop()

	// Serializes result printing so bursts of output don't interleave.
	var mu sync.Mutex

	runQuery := func(query string) {
		resp, err := a.fetchEntityList(ctx, sibyl.ListParams{Search: query, Page: 1})

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			printer.Warning("search failed: %v\n", err)
			return
		}
		printer.Printf("── %q ──\n", query)
		render.EntityTable(os.Stdout, resp.Entities, resp.Total)
	}

	printer.Step("type to search, one query per line (Ctrl-D to stop)\n")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		d.Trigger(func() { runQuery(query) })
	}

	// Don't lose the final revision on EOF.
	d.Flush()

	return scanner.Err()
}
