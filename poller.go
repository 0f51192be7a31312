package access

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is how often the poller re-fetches the profile while
// the account waits on an administrator decision.
var DefaultPollInterval = 10 * time.Second

// StatusPoller re-fetches the current profile on a fixed interval so
// admin-side status changes propagate without manual refresh. It runs only
// while the session classifies as pending or rejected and stops itself once
// the classification escalates. No backoff: polling stays unconditional and
// fixed-interval regardless of prior failures.
//
// The poller is scoped to its consumer: cancel the context passed to Start
// (or call Stop) when the owning screen is torn down, otherwise the timer
// leaks.
type StatusPoller struct {
	manager  *SessionManager
	interval time.Duration
	logger   Logger
	provider LoggerProvider

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

type StatusPollerOption func(*StatusPoller)

// WithPollInterval overrides the poll interval.
func WithPollInterval(interval time.Duration) StatusPollerOption {
	return func(p *StatusPoller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithPollerLogger sets the logger used by the poller.
func WithPollerLogger(logger Logger) StatusPollerOption {
	return func(p *StatusPoller) {
		p.provider, p.logger = ResolveLogger("access.status_poller", p.provider, logger)
	}
}

// WithPollerLoggerProvider resolves the poller logger from a provider.
func WithPollerLoggerProvider(provider LoggerProvider) StatusPollerOption {
	return func(p *StatusPoller) {
		p.provider, p.logger = ResolveLogger("access.status_poller", provider, p.logger)
	}
}

// NewStatusPoller returns a poller driving the given manager.
func NewStatusPoller(manager *SessionManager, opts ...StatusPollerOption) *StatusPoller {
	provider, logger := ResolveLogger("access.status_poller", nil, nil)

	poller := &StatusPoller{
		manager:  manager,
		interval: DefaultPollInterval,
		logger:   logger,
		provider: provider,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(poller)
		}
	}

	return poller
}

// Start launches the polling loop. Starting an already running poller is a
// no-op. The loop exits when ctx is cancelled, Stop is called, or the
// session stops classifying as pending/rejected.
func (p *StatusPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	stop, done := p.stop, p.done
	p.mu.Unlock()

	go p.loop(ctx, stop, done)
}

// Stop cancels the loop and waits for the in-flight tick, if any, to
// finish. Safe to call multiple times and on a never-started poller.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
}

// Running reports whether the loop is active.
func (p *StatusPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StatusPoller) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer p.markStopped()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			classification := p.manager.Current().Classification()
			if !classification.RequiresPolling() {
				p.logger.Debug("classification settled, stopping poller",
					"classification", string(classification),
				)
				return
			}

			p.manager.RefreshProfile(ctx)
		}
	}
}

func (p *StatusPoller) markStopped() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}
