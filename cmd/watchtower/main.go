package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewindbitcoin/watchtower/daemon"
)

func main() {
	shutdownCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(shutdownCh)
	}()

	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := daemon.Main(os.Args[1:], shutdownCh); err != nil {
		if daemon.IsHelpRequest(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
