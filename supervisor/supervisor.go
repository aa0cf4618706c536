// Package supervisor starts one monitor per enabled network and runs its
// periodic cycle loop with an interruptible sleep, grounded directly on
// daemon/breacharbiter.go's Start/Stop idiom: atomic started/stopped
// guards, a quit channel, and a done channel awaited on Stop (bounded by
// ShutdownGrace).
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btclog"

	"github.com/rewindbitcoin/watchtower/monitor"
)

// Default and regtest cycle intervals.
const (
	DefaultCycleInterval = 60 * time.Second
	RegtestCycleInterval = 30 * time.Second

	// ShutdownGrace bounds how long Stop waits for an in-flight cycle
	// before giving up.
	ShutdownGrace = 60 * time.Second
)

// Worker drives one network's Monitor on a periodic, interruptible cycle.
type Worker struct {
	started int32 // atomic
	stopped int32 // atomic

	networkID string
	monitor   *monitor.Monitor
	interval  time.Duration
	log       btclog.Logger

	quit chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWorker constructs a Worker for one network. interval is the
// inter-cycle sleep duration (30s for regtest, 60s otherwise).
func NewWorker(networkID string, m *monitor.Monitor, interval time.Duration, log btclog.Logger) *Worker {
	return &Worker{
		networkID: networkID,
		monitor:   m,
		interval:  interval,
		log:       log,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the worker's cycle loop. Idempotent.
func (w *Worker) Start() {
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return
	}

	w.wg.Add(1)
	go w.loop()
}

func (w *Worker) loop() {
	defer w.wg.Done()
	defer close(w.done)

	for {
		ctx := context.Background()
		if err := w.monitor.RunCycle(ctx); err != nil && w.log != nil {
			w.log.Errorf("network %s: cycle failed: %v", w.networkID, err)
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-timer.C:
		case <-w.quit:
			timer.Stop()
			return
		}
	}
}

// Stop requests the worker's sleep be interrupted immediately, then waits
// for the in-flight cycle (if any) to finish, up to ShutdownGrace. It
// returns once the worker has stopped or the grace period has elapsed,
// whichever comes first.
func (w *Worker) Stop() {
	if !atomic.CompareAndSwapInt32(&w.stopped, 0, 1) {
		return
	}

	close(w.quit)

	select {
	case <-w.done:
	case <-time.After(ShutdownGrace):
		if w.log != nil {
			w.log.Warnf("network %s: shutdown grace period elapsed with cycle still in flight", w.networkID)
		}
	}
}

// Supervisor owns one Worker per enabled network.
type Supervisor struct {
	workers map[string]*Worker
}

// New constructs an empty Supervisor; call AddNetwork per enabled network
// before Start.
func New() *Supervisor {
	return &Supervisor{workers: make(map[string]*Worker)}
}

// AddNetwork registers a worker for networkID. interval is the inter-cycle
// sleep duration for this network (30s for regtest, 60s otherwise). Must
// be called before Start.
func (s *Supervisor) AddNetwork(networkID string, m *monitor.Monitor, interval time.Duration, log btclog.Logger) {
	s.workers[networkID] = NewWorker(networkID, m, interval, log)
}

// Start starts every registered worker.
func (s *Supervisor) Start() {
	for _, w := range s.workers {
		w.Start()
	}
}

// Stop stops every registered worker concurrently, each in its own
// goroutine, and waits for all of them to finish. The HTTP server and
// stores should only be closed after Stop returns.
func (s *Supervisor) Stop() {
	var wg sync.WaitGroup
	for _, w := range s.workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
