package cli

import (
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smpeer/smpeer/internal/logger"
	"github.com/smpeer/smpeer/internal/rendezvous"
	"github.com/smpeer/smpeer/internal/rendezvous/history"
)

var flagHistoryDB string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a rendezvous server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewLoggerAt(logger.LevelFor(flagDebug))

		var store *history.Store
		if flagHistoryDB != "" {
			var err error
			store, err = history.Open(flagHistoryDB)
			if err != nil {
				return err
			}
		}

		srv, err := rendezvous.NewServer(rendezvous.ServerConfig{
			Addr:    net.JoinHostPort(flagHost, strconv.Itoa(flagPort)),
			Path:    flagPath,
			Secure:  flagSecure,
			Logger:  log,
			History: store,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(ctx) }()

		select {
		case <-ctx.Done():
			_ = srv.Shutdown()
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagHistoryDB, "db", "", "sqlite file recording registrations (empty disables)")
}
