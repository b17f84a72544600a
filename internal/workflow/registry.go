package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long an untouched session survives a sweep.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	wf       *Workflow
	lastSeen time.Time
}

// Registry keeps the workflow sessions of the host UI.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  func() *Workflow
	idle     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry builds a registry creating sessions with factory.
func NewRegistry(factory func() *Workflow) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		idle:     DefaultIdleTimeout,
		now:      time.Now,
	}
}

// WithIdleTimeout sets how long a session may go untouched before Sweep drops it.
func (r *Registry) WithIdleTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.idle = d
	}
	return r
}

// WithNow overrides the clock for deterministic tests.
func (r *Registry) WithNow(now func() time.Time) *Registry {
	if now != nil {
		r.now = now
	}
	return r
}

// WithLogger attaches a logger for sweep events.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Start creates a session in the SELECT step.
func (r *Registry) Start() (string, *Workflow) {
	id := uuid.NewString()
	wf := r.factory()
	r.mu.Lock()
	r.sessions[id] = &entry{wf: wf, lastSeen: r.now()}
	r.mu.Unlock()
	return id, wf
}

// Get returns the session with id and marks it as active.
func (r *Registry) Get(id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.now()
	return e.wf, nil
}

// Exit leaves the session and forgets it. The exit guard of the workflow applies.
func (r *Registry) Exit(id string) error {
	wf, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := wf.Exit(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Sweep drops sessions idle for longer than the timeout. Sessions the exit guard
// holds (a close in flight or a receipt still pending) are kept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	dropped := 0
	for id, e := range r.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		if err := e.wf.Exit(); err != nil {
			continue
		}
		delete(r.sessions, id)
		dropped++
	}
	if dropped > 0 {
		r.log().Info("idle close sessions dropped", slog.Int("count", dropped), slog.Int("remaining", len(r.sessions)))
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}
