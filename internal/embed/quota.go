package embed

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mserrors "github.com/Aman-CERP/mailsearch/internal/errors"
)

// Quota defaults.
const (
	DefaultBaseCooldown   = time.Hour
	DefaultMaxCooldown    = 24 * time.Hour
	DefaultCooldownGrowth = 1.5
)

// QuotaState is the availability of a quota-limited provider.
type QuotaState int

const (
	// QuotaAvailable lets requests through.
	QuotaAvailable QuotaState = iota
	// QuotaCooldown rejects requests until the cooldown expires.
	QuotaCooldown
)

// String returns a string representation of the state.
func (s QuotaState) String() string {
	switch s {
	case QuotaAvailable:
		return "available"
	case QuotaCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// QuotaSnapshot is a point-in-time view of a governor.
type QuotaSnapshot struct {
	State            QuotaState
	CooldownUntil    time.Time
	CooldownDuration time.Duration
	LastRequestAt    time.Time
}

// QuotaGovernor tracks whether a provider may be called. A quota failure
// puts it in cooldown for the current duration and then grows the duration
// up to a ceiling; a success resets the duration to its base.
type QuotaGovernor struct {
	name   string
	base   time.Duration
	max    time.Duration
	growth float64
	now    func() time.Time
	logger *slog.Logger

	mu            sync.Mutex
	state         QuotaState
	cooldownUntil time.Time
	duration      time.Duration
	lastRequestAt time.Time
}

// QuotaOption configures a QuotaGovernor.
type QuotaOption func(*QuotaGovernor)

// WithCooldown sets the base duration, ceiling and growth factor.
func WithCooldown(base, max time.Duration, growth float64) QuotaOption {
	return func(g *QuotaGovernor) {
		if base > 0 {
			g.base = base
		}
		if max > 0 {
			g.max = max
		}
		if growth >= 1 {
			g.growth = growth
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) QuotaOption {
	return func(g *QuotaGovernor) {
		g.now = now
	}
}

// WithQuotaLogger sets the logger used for transitions.
func WithQuotaLogger(logger *slog.Logger) QuotaOption {
	return func(g *QuotaGovernor) {
		g.logger = logger
	}
}

// NewQuotaGovernor creates an available governor. Default: 1h base,
// x1.5 growth, 24h ceiling.
func NewQuotaGovernor(name string, opts ...QuotaOption) *QuotaGovernor {
	g := &QuotaGovernor{
		name:   name,
		base:   DefaultBaseCooldown,
		max:    DefaultMaxCooldown,
		growth: DefaultCooldownGrowth,
		now:    time.Now,
		logger: slog.Default(),
		state:  QuotaAvailable,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.base > g.max {
		g.base = g.max
	}
	g.duration = g.base
	return g
}

// Name returns the provider name.
func (g *QuotaGovernor) Name() string {
	return g.name
}

// Allow records a request attempt. It fails with ERR_303_QUOTA_EXCEEDED
// while the cooldown has not expired.
func (g *QuotaGovernor) Allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.expire(now)
	if g.state == QuotaCooldown {
		return mserrors.New(mserrors.ErrCodeQuotaExceeded,
			fmt.Sprintf("%s quota exhausted, retry after %s", g.name, g.cooldownUntil.Format(time.RFC3339)), nil).
			WithDetail("provider", g.name).
			WithDetail("cooldown_until", g.cooldownUntil.Format(time.RFC3339))
	}
	g.lastRequestAt = now
	return nil
}

// Available reports whether Allow would currently succeed.
func (g *QuotaGovernor) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expire(g.now())
	return g.state == QuotaAvailable
}

// RecordSuccess resets the cooldown duration to its base.
func (g *QuotaGovernor) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expire(g.now())
	if g.duration != g.base {
		g.logger.Info("quota_backoff_reset",
			slog.String("provider", g.name),
			slog.Duration("cooldown", g.base))
		g.duration = g.base
	}
}

// RecordQuotaFailure enters cooldown for the current duration and grows the
// next one. Failures reported while already cooling down are ignored.
func (g *QuotaGovernor) RecordQuotaFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.expire(now)
	if g.state == QuotaCooldown {
		return
	}

	g.state = QuotaCooldown
	g.cooldownUntil = now.Add(g.duration)
	g.logger.Warn("quota_cooldown_started",
		slog.String("provider", g.name),
		slog.Duration("cooldown", g.duration),
		slog.Time("until", g.cooldownUntil))

	next := time.Duration(float64(g.duration) * g.growth)
	if next > g.max {
		next = g.max
	}
	g.duration = next
}

// Snapshot returns the current state.
func (g *QuotaGovernor) Snapshot() QuotaSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expire(g.now())
	return QuotaSnapshot{
		State:            g.state,
		CooldownUntil:    g.cooldownUntil,
		CooldownDuration: g.duration,
		LastRequestAt:    g.lastRequestAt,
	}
}

// expire leaves cooldown once now is past cooldownUntil. Must be called with
// mu held.
func (g *QuotaGovernor) expire(now time.Time) {
	if g.state == QuotaCooldown && now.After(g.cooldownUntil) {
		g.state = QuotaAvailable
		g.logger.Info("quota_cooldown_ended", slog.String("provider", g.name))
	}
}
