package syncer

import (
	"context"
	"sync"
	"time"
)

// Poller calls fn every interval until stopped. fn is never invoked
// concurrently with itself, and never after Stop returns.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPoller runs fn once immediately, then on every tick. Cancelling ctx
// has the same effect as Stop.
func StartPoller(ctx context.Context, interval time.Duration, fn func(context.Context)) *Poller {
	ctx, cancel := context.WithCancel(ctx)
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return p
}

// Stop cancels polling and waits for an in-flight fn to return. It is safe
// to call more than once.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }
