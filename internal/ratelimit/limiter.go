// Package ratelimit throttles client actions with a per-connection sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultLimits are the per-window ceilings by action kind.
var DefaultLimits = map[string]int{
	"create_room": 5,
	"join_room":   10,
	"send_chat":   10,
	"send_emote":  20,
	"play_card":   30,
	"draw_card":   30,
}

const (
	DefaultLimit         = 60
	DefaultWindow        = 60 * time.Second
	DefaultSweepInterval = 5 * time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // zero when allowed
}

type key struct {
	conn uuid.UUID
	kind string
}

// window records the accepted request times for one key, oldest first.
type window struct {
	requests []time.Time
}

// prune drops entries at or before start.
func (w *window) prune(start time.Time) {
	i := 0
	for i < len(w.requests) && !w.requests[i].After(start) {
		i++
	}
	if i > 0 {
		w.requests = append(w.requests[:0], w.requests[i:]...)
	}
}

// Limiter keys a sliding window by (connection, action kind).
type Limiter struct {
	limits       map[string]int
	defaultLimit int
	window       time.Duration
	now          func() time.Time
	log          logrus.FieldLogger

	mu      sync.Mutex
	windows map[key]*window
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLimit overrides the ceiling for one action kind.
func WithLimit(kind string, limit int) Option {
	return func(l *Limiter) { l.limits[kind] = limit }
}

// WithLogger sets the logger used by the sweep loop.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Limiter) { l.log = log }
}

// New creates a limiter with DefaultLimits and a 60s window.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		limits:       make(map[string]int, len(DefaultLimits)),
		defaultLimit: DefaultLimit,
		window:       DefaultWindow,
		now:          time.Now,
		log:          logrus.StandardLogger(),
		windows:      make(map[key]*window),
	}
	for k, v := range DefaultLimits {
		l.limits[k] = v
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the ceiling for kind.
func (l *Limiter) Limit(kind string) int {
	if n, ok := l.limits[kind]; ok {
		return n
	}
	return l.defaultLimit
}

// Allow records a request for (conn, kind) if it fits in the window.
func (l *Limiter) Allow(conn uuid.UUID, kind string) Decision {
	limit := l.Limit(kind)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{conn: conn, kind: kind}
	w, ok := l.windows[k]
	if !ok {
		w = &window{}
		l.windows[k] = w
	}
	w.prune(now.Add(-l.window))

	if len(w.requests) >= limit {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: l.window}
	}
	w.requests = append(w.requests, now)
	return Decision{Allowed: true, Remaining: limit - len(w.requests)}
}

// Forget drops every window belonging to conn.
func (l *Limiter) Forget(conn uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.windows {
		if k.conn == conn {
			delete(l.windows, k)
		}
	}
}

// Sweep evicts windows with no request inside the current window and
// returns how many were removed.
func (l *Limiter) Sweep() int {
	start := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, w := range l.windows {
		w.prune(start)
		if len(w.requests) == 0 {
			delete(l.windows, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.WithField("evicted", n).Debug("rate limiter sweep")
			}
		}
	}
}
