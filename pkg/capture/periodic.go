package capture

import (
	"context"
	"sync"
	"time"
)

// Periodic runs a function on a fixed interval until stopped.
// The task owns its cancellation: Stop (or the parent context) ends it.
type Periodic struct {
	interval time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPeriodic creates a task that calls fn every interval once started.
// fn runs on the task's goroutine and should return quickly.
func NewPeriodic(interval time.Duration, fn func(context.Context)) *Periodic {
	return &Periodic{
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
}

// Start begins ticking. The first call to fn happens one interval later.
func (p *Periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
	return nil
}

func (p *Periodic) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick racing cancellation must not fire.
			if ctx.Err() != nil {
				return
			}
			p.fn(ctx)
		}
	}
}

// Cancel requests the task to end without waiting. Safe to call from fn.
func (p *Periodic) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		close(p.done)
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop ends the task and waits for its goroutine to exit.
// It is idempotent. Do not call it from fn; use Cancel there.
func (p *Periodic) Stop() {
	p.Cancel()
	<-p.done
}

// Done is closed once the task has ended.
func (p *Periodic) Done() <-chan struct{} {
	return p.done
}
