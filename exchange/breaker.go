package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"spotrisk/market"
	"spotrisk/pkg/ratelimit"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker wraps a Client with a token-bucket rate limit, a per-call timeout
// and a circuit breaker. After `threshold` consecutive transport failures the
// circuit opens and calls fail fast with ErrUnavailable until the cooldown
// elapses; the first call after cooldown probes the exchange (half-open) and
// either closes the circuit or re-opens it.
//
// Business rejections (ErrInsufficientFunds, ErrRejected, ErrNoData) are not
// transport failures and never trip the circuit.
type Breaker struct {
	inner     Client
	limiter   *ratelimit.Limiter
	log       *zap.Logger
	threshold int
	cooldown  time.Duration
	timeout   time.Duration

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	onState  func(state string)
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithStateHook registers a callback invoked on every state transition, used
// to export the breaker state as a gauge.
func WithStateHook(fn func(state string)) BreakerOption {
	return func(b *Breaker) { b.onState = fn }
}

// NewBreaker wraps client. threshold is the consecutive-failure count that
// opens the circuit, cooldown how long it stays open, timeout the per-call
// deadline.
func NewBreaker(client Client, limiter *ratelimit.Limiter, log *zap.Logger, threshold int, cooldown, timeout time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := &Breaker{
		inner:     client,
		limiter:   limiter,
		log:       log,
		threshold: threshold,
		cooldown:  cooldown,
		timeout:   timeout,
		state:     stateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current breaker state as a string.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// allow decides whether a call may proceed. In the open state it fails fast
// until the cooldown has elapsed, then lets a single probe through.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		b.transition(stateHalfOpen)
		return nil
	default:
		return nil
	}
}

// record updates the breaker after a call. Only transport failures count.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || isBusinessError(err) {
		b.failures = 0
		if b.state != stateClosed {
			b.transition(stateClosed)
		}
		return
	}

	b.failures++
	if b.state == stateHalfOpen || b.failures >= b.threshold {
		b.openedAt = time.Now()
		b.transition(stateOpen)
		b.log.Warn("circuit breaker opened",
			zap.Int("failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
			zap.Error(err))
	}
}

// transition changes state. Caller must hold the lock.
func (b *Breaker) transition(to breakerState) {
	b.state = to
	if to == stateClosed {
		b.failures = 0
	}
	if b.onState != nil {
		b.onState(to.String())
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrNoData)
}

// call runs fn under the limiter, timeout and breaker accounting.
func (b *Breaker) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	var out []market.Candle
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.GetCandles(ctx, symbol, timeframe, limit)
		return err
	})
	return out, err
}

func (b *Breaker) GetSymbolFilters(ctx context.Context, symbol string) (market.SymbolFilters, error) {
	var out market.SymbolFilters
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.GetSymbolFilters(ctx, symbol)
		return err
	})
	return out, err
}

func (b *Breaker) GetFreeBalance(ctx context.Context, asset string) (float64, error) {
	var out float64
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.GetFreeBalance(ctx, asset)
		return err
	})
	return out, err
}

func (b *Breaker) GetTicker(ctx context.Context, symbol string) (float64, error) {
	var out float64
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.GetTicker(ctx, symbol)
		return err
	})
	return out, err
}

func (b *Breaker) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	var out Fill
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		out, err = b.inner.PlaceMarketOrder(ctx, symbol, side, quantity)
		return err
	})
	return out, err
}

var _ Client = (*Breaker)(nil)
