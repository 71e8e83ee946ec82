package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
)

// DefaultReconnectInterval is the default interval at which the supervisor
// restarts the source connection.
const DefaultReconnectInterval = 60 * time.Minute

// Forwarder is one live connection to an audio source: it feeds a Sampler
// with RTP packets until ctx is cancelled or the connection dies on its own,
// and then signals done (by sending on it or closing it).
type Forwarder interface {
	Run(ctx context.Context, done chan<- struct{})
}

// Supervisor periodically tears down and restarts a Forwarder, guarding
// against overlap with a currentForwarder sentinel: a forwarder's
// termination is only acted on if it is still the forwarder the supervisor
// most recently started. Grounded on server/notifications/transmitter.go's
// cloudPinger ticker-driven reconnect loop.
type Supervisor struct {
	interval   time.Duration
	newForward func() Forwarder
	log        logs.Log
}

// NewSupervisor constructs a Supervisor. interval <= 0 means
// DefaultReconnectInterval. newForward is called each time a fresh
// connection is needed.
func NewSupervisor(interval time.Duration, newForward func() Forwarder, log logs.Log) *Supervisor {
	if interval <= 0 {
		interval = DefaultReconnectInterval
	}
	return &Supervisor{interval: interval, newForward: newForward, log: log}
}

// Run drives the supervisor until ctx is cancelled. It starts an initial
// forwarder immediately, then restarts one every interval, and whenever the
// current one terminates on its own.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	// currentForwarder is a generation counter rather than a pointer, so the
	// sentinel check in each forwarder's goroutine is a plain atomic load
	// instead of a racy read of a shared interface variable.
	var currentForwarder atomic.Int64
	done := make(chan struct{}, 1)

	var cancelCurrent context.CancelFunc
	var currentMyDone chan struct{}

	start := func() {
		gen := currentForwarder.Add(1)
		forwardCtx, cancel := context.WithCancel(ctx)
		cancelCurrent = cancel
		f := sv.newForward()
		myDone := make(chan struct{}, 1)
		currentMyDone = myDone
		go func() {
			f.Run(forwardCtx, myDone)
			// Only report termination if this forwarder is still the one
			// the supervisor thinks is current; a forwarder that was
			// already superseded by a periodic restart must not trigger
			// a second, redundant restart.
			if currentForwarder.Load() == gen {
				done <- struct{}{}
			}
		}()
	}

	start()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.log.Infof("audio supervisor: periodic reconnect")
			// Bump the generation counter before cancelling, so the
			// terminating forwarder's own generation check fails and it
			// doesn't also post a stale wakeup to `done`. Then stop it and
			// wait for actual termination before starting its replacement,
			// so a periodic restart never leaves the old forwarder feeding
			// packets alongside the new one.
			currentForwarder.Add(1)
			cancelCurrent()
			<-currentMyDone
			start()
		case <-done:
			sv.log.Warnf("audio supervisor: forwarder terminated, reconnecting")
			start()
		}
	}
}
