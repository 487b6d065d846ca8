// Package supervisor supervises the Engine's background polling
// loops (spec §9: tour-readiness polling, live-config polling,
// progressive-loading timers) with thejerf/suture/v4, adapted from the
// teacher's SupervisorTree (internal/supervisor/tree.go): a single
// root supervisor here, since this module has only one layer of
// background work rather than the teacher's data/messaging/api split.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/tourscope/internal/logging"
)

// Config mirrors the teacher's TreeConfig, at suture's documented
// defaults.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig matches suture's built-in defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree wraps a single suture.Supervisor running the Engine's
// background services.
type Tree struct {
	root *suture.Supervisor
	cfg  Config
}

// New constructs a Tree whose suture events are logged through
// sutureslog to slog.Default() (not to logging's zerolog output), the
// same sutureslog.Handler shape the teacher wires up.
func New(cfg Config) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultConfig()
	}
	handler := &sutureslog.Handler{Logger: slog.Default()}
	spec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	return &Tree{root: suture.New("tourscope-engine", spec), cfg: cfg}
}

// Add registers a supervised service and returns its token.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Remove stops and removes a previously added service.
func (t *Tree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}

// ServeBackground starts the tree and returns a channel that receives
// its terminal error.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// PollingService runs fn every interval until its context is canceled,
// satisfying suture.Service (spec §9's tour-readiness and live-config
// pollers).
type PollingService struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// Serve implements suture.Service.
func (p *PollingService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Fn(ctx); err != nil {
				logging.Warn().Err(err).Str("service", p.Name).Msg("supervisor: polling service returned an error")
			}
		}
	}
}

// String satisfies suture's optional Stringer for clearer event logs.
func (p *PollingService) String() string { return p.Name }

// DeadlineService calls Fn every Interval until Fn reports done, the
// Deadline passes (OnTimeout is then called) or ctx is canceled; an
// error from Fn is logged and the next tick tries again. The engine
// uses it for the one-shot progressive-loading upgrade.
type DeadlineService struct {
	Name     string
	Interval time.Duration
	Deadline time.Duration
	Fn       func(ctx context.Context) (done bool, err error)
	OnTimeout func()
}

// Serve implements suture.Service.
func (d *DeadlineService) Serve(ctx context.Context) error {
	deadline := time.NewTimer(d.Deadline)
	defer deadline.Stop()
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if d.OnTimeout != nil {
				d.OnTimeout()
			}
			return nil
		case <-ticker.C:
			done, err := d.Fn(ctx)
			if err != nil {
				logging.Warn().Err(err).Str("service", d.Name).Msg("supervisor: deadline service check failed")
				continue
			}
			if done {
				return nil
			}
		}
	}
}

// String satisfies suture's optional Stringer.
func (d *DeadlineService) String() string { return d.Name }
