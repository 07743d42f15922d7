package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sibyl-dev/sibyl-go/internal/config"
	"github.com/sibyl-dev/sibyl-go/internal/printer"
	"github.com/sibyl-dev/sibyl-go/internal/realtime"
	"github.com/sibyl-dev/sibyl-go/internal/render"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail realtime change notifications",
	Long: `Subscribe to the backend's push channel and print change notifications
as they arrive, with a connection-state indicator.

The transport comes from config: the backend websocket endpoint (default),
or Redis pub/sub for deployments where the client runs next to the broker.

Examples:
  # Tail all changes
  sibyl watch

  # Against an explicit backend
  sibyl --server http://localhost:8080 watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	src, err := newSource(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	printer.Step("watching for changes (Ctrl-C to stop)\n")

	merger := &realtime.Merger{
		Cache:    a.cache,
		Registry: a.runner.Registry,
		OnEvent: func(ev realtime.Event) {
			printer.Printf("%s  %-8s %-8s %s\n",
				time.Now().Format("15:04:05"), ev.Action, ev.Kind, render.ShortID(ev.ID))
		},
		OnState: func(st realtime.ConnState) {
			switch st {
			case realtime.StateConnected:
				printer.Success("connected\n")
			case realtime.StateConnecting:
				printer.Info("connecting...\n")
			case realtime.StateDisconnected:
				printer.Warning("disconnected\n")
			}
		},
		OnError: func(err error) {
			printer.Warning("%v\n", err)
		},
	}

	merger.Run(ctx, src)
	return nil
}

// newSource builds the configured push source.
func newSource(ctx context.Context, cfg *config.Config) (realtime.Source, error) {
	switch cfg.Transport() {
	case config.TransportRedis:
		return realtime.NewRedisSource(ctx, &redis.Options{Addr: cfg.Realtime.RedisAddr}, cfg.Realtime.Instance)
	default:
		return realtime.NewWebsocketSource(ctx, cfg.Server.URL, cfg.Server.AccessToken)
	}
}
