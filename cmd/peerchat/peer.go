package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peerchat-io/peerchat/internal/config"
	"github.com/peerchat-io/peerchat/internal/peer"
)

func newPeerCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Run a peer node: inbox, direct messaging, and UI notifier",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPeer(username)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name submitted to the tracker (overrides PEER_USERNAME)")

	return cmd
}

func runPeer(username string) error {
	cfg, err := config.NewPeerConfig()
	if err != nil {
		return err
	}
	if username != "" {
		cfg.Username = username
	}

	hub := peer.NewHub()
	go hub.Run()

	agent := peer.NewAgent(cfg.AdvertiseAddr, cfg.Username, cfg.TrackerURL,
		cfg.RequestTimeout, peer.NewInbox(cfg.Retention), hub)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	err = agent.RegisterWithTracker(ctx)
	cancel()
	if err != nil {
		// The tracker may simply not be up yet; the peer still serves
		// direct traffic and can be registered manually later.
		log.Printf("[Peer] Tracker registration failed: %v", err)
	}

	server := peer.CreateServer(cfg.ListenAddr, peer.NewServer(agent, hub, cfg).Router())

	errCh := make(chan error, 1)
	go func() {
		if err := peer.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	if err := peer.ShutdownServer(server, cfg.ShutdownTimeout); err != nil {
		return err
	}
	return hub.Shutdown(cfg.ShutdownTimeout)
}
