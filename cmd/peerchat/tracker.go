package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peerchat-io/peerchat/internal/auth"
	"github.com/peerchat-io/peerchat/internal/channelstore"
	"github.com/peerchat-io/peerchat/internal/config"
	"github.com/peerchat-io/peerchat/internal/directory"
	"github.com/peerchat-io/peerchat/internal/tracker"
)

func newTrackerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tracker",
		Short: "Run the tracker: peer directory, channel store, and login",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTracker()
		},
	}
}

func runTracker() error {
	cfg, err := config.NewTrackerConfig()
	if err != nil {
		return err
	}

	credentials, err := auth.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = credentials.Close() }()

	coordinator := tracker.NewCoordinator(
		directory.New(cfg.MaxPeers),
		channelstore.New(cfg.Retention, cfg.DefaultChannels...),
		credentials,
	)

	server := tracker.CreateServer(cfg.ListenAddr, tracker.NewServer(coordinator, credentials).Router())

	errCh := make(chan error, 1)
	go func() {
		if err := tracker.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down", sig)
	}

	return tracker.ShutdownServer(server, cfg.ShutdownTimeout)
}
