// Package daemon wires configuration, per-network stores, chain clients,
// the commitment verifier, monitors, the supervisor, and the HTTP surface
// into a single running process.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/rewindbitcoin/watchtower/api"
	"github.com/rewindbitcoin/watchtower/chainclient"
	"github.com/rewindbitcoin/watchtower/commitment"
	"github.com/rewindbitcoin/watchtower/monitor"
	"github.com/rewindbitcoin/watchtower/notify"
	"github.com/rewindbitcoin/watchtower/store"
	"github.com/rewindbitcoin/watchtower/supervisor"
)

func baseURLForNetwork(networkID string, cfg *config) (string, bool) {
	switch networkID {
	case "bitcoin":
		return chainclient.BitcoinBaseURL, true
	case "testnet":
		return chainclient.TestnetBaseURL, true
	case "tape":
		return chainclient.TapeBaseURL, true
	case "regtest":
		return cfg.EnableRegtest, true
	default:
		return "", false
	}
}

func cycleInterval(networkID string) time.Duration {
	if networkID == "regtest" {
		return supervisor.RegtestCycleInterval
	}
	return supervisor.DefaultCycleInterval
}

// Main parses args, starts every enabled network, serves the HTTP
// surface, and blocks until the process receives an interrupt. It is
// factored out of main() so tests and alternate entry points can drive it
// directly.
func Main(args []string, shutdownCh <-chan struct{}) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	initLogRotator(cfg.logFilePath(), defaultMaxLogSize, defaultMaxLogs)
	setLogLevels(cfg.LogLevel)

	dmnLog.Infof("starting watchtower, db-folder=%s port=%d", cfg.DBFolder, cfg.Port)

	stores := make(map[string]*store.DB)
	sup := supervisor.New()
	verifier := commitment.New(cfg.DBFolder)

	networks := cfg.enabledNetworks()
	for _, networkID := range networks {
		baseURL, ok := baseURLForNetwork(networkID, cfg)
		if !ok || baseURL == "" {
			return fmt.Errorf("daemon: no base URL configured for network %q", networkID)
		}

		db, err := store.Open(cfg.DBFolder, networkID)
		if err != nil {
			return fmt.Errorf("daemon: open store for %s: %w", networkID, err)
		}
		stores[networkID] = db

		chain := chainclient.New(baseURL)
		pusher := notify.NewExpoPusher()
		scheduler := notify.NewScheduler(db, pusher, ntfyLog)

		m := monitor.New(monitor.Config{
			NetworkID: networkID,
			DB:        db,
			Chain:     chain,
			Verifier:  verifier,
			Scheduler: scheduler,
			Log:       mntrLog,
		})

		sup.AddNetwork(networkID, m, cycleInterval(networkID), spvrLog)
		dmnLog.Infof("enabled network %s against %s", networkID, baseURL)
	}

	server := api.NewServer(stores, verifier, cfg.WithCommitments, httpLog)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		for _, db := range stores {
			db.Close()
		}
		return fmt.Errorf("daemon: listen on port %d: %w", cfg.Port, err)
	}
	dmnLog.Infof("http surface listening on %s", listener.Addr())

	httpServer := &http.Server{Handler: server}
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- httpServer.Serve(listener)
	}()

	sup.Start()

	select {
	case <-shutdownCh:
		dmnLog.Info("shutdown requested")
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			dmnLog.Errorf("http server error: %v", err)
		}
	}

	sup.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), supervisor.ShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		dmnLog.Warnf("http server shutdown: %v", err)
	}

	for networkID, db := range stores {
		if err := db.Close(); err != nil {
			dmnLog.Warnf("close store for %s: %v", networkID, err)
		}
	}

	if logRotator != nil {
		logRotator.Close()
	}

	return nil
}

// IsHelpRequest reports whether err is the go-flags sentinel produced by
// -h/--help, so callers can exit 0 instead of treating it as a failure.
func IsHelpRequest(err error) bool {
	if ferr, ok := err.(*flags.Error); ok {
		return ferr.Type == flags.ErrHelp
	}
	return false
}
