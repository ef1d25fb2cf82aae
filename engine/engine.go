// Package engine runs the trading loop: every tick it marks the account,
// consults the risk governor, manages exits for open positions and turns
// entry signals into sized orders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spotrisk/config"
	"spotrisk/exchange"
	"spotrisk/exit"
	"spotrisk/gateway"
	"spotrisk/indicators"
	"spotrisk/journal"
	"spotrisk/ledger"
	"spotrisk/market"
	"spotrisk/metrics"
	"spotrisk/risk"
)

// ErrHalted is returned by Run when the governor halts trading permanently.
// The engine saves state and refuses to continue until an operator restarts
// it deliberately.
var ErrHalted = errors.New("engine: trading halted by risk governor")

type Engine struct {
	cfg      *config.Config
	client   exchange.Client
	book     *ledger.Ledger
	gw       *gateway.Gateway
	exits    *exit.Engine
	sizer    *risk.Sizer
	governor *risk.Governor
	signals  market.SignalSource
	jrnl     journal.Journal
	log      *zap.Logger
	interval time.Duration
}

func New(cfg *config.Config, client exchange.Client, book *ledger.Ledger, gw *gateway.Gateway,
	exits *exit.Engine, sizer *risk.Sizer, governor *risk.Governor,
	signals market.SignalSource, jrnl journal.Journal, log *zap.Logger) (*Engine, error) {

	interval, err := cfg.Engine.TickIntervalDuration()
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		client:   client,
		book:     book,
		gw:       gw,
		exits:    exits,
		sizer:    sizer,
		governor: governor,
		signals:  signals,
		jrnl:     jrnl,
		log:      log,
		interval: interval,
	}, nil
}

// Run ticks until the context is cancelled or the governor halts trading
// permanently. State is flushed on the way out.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("engine started",
		zap.Strings("symbols", e.cfg.Engine.Symbols),
		zap.Duration("interval", e.interval),
		zap.Bool("live", e.cfg.IsLiveMode))

	for {
		select {
		case <-ctx.Done():
			e.flush()
			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(ctx, time.Now().UTC()); err != nil {
				e.flush()
				return err
			}
		}
	}
}

// Tick runs one full cycle. Returns ErrHalted on a permanent governor halt;
// all other per-symbol failures are contained and logged.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	started := time.Now()
	defer func() { metrics.ObserveTick(time.Since(started).Seconds()) }()

	prices := e.markPrices(ctx)
	equity := e.book.TotalEquity(prices)
	stat := e.book.EnsureDay(now, equity)
	metrics.ObserveEquity(equity)
	metrics.SetOpenPositions(len(e.book.Positions()))
	if err := e.jrnl.RecordEquity(journal.EquityPoint{Time: now, Equity: equity}); err != nil {
		e.log.Warn("equity journal write failed", zap.Error(err))
	}

	realizedPct := 0.0
	if stat.StartEquity > 0 {
		realizedPct = stat.RealizedPnLUSD / stat.StartEquity * 100
	}
	status := e.governor.Check(now, equity, realizedPct)
	if status.Permanent {
		metrics.IncHalt(status.Reason)
		e.log.Error("permanent halt", zap.String("reason", status.Reason), zap.Float64("equity", equity))
		return ErrHalted
	}
	if status.Halted {
		metrics.IncHalt(status.Reason)
	}

	e.manageExits(ctx, prices, now)
	e.drainSignals(ctx, prices, status.Halted)

	if err := e.book.Save(); err != nil {
		e.log.Error("state save failed", zap.Error(err))
	}
	return nil
}

// markPrices fetches tickers for configured symbols and any open positions.
// Symbols that fail to price are skipped this tick.
func (e *Engine) markPrices(ctx context.Context) map[string]float64 {
	symbols := make(map[string]struct{}, len(e.cfg.Engine.Symbols))
	for _, s := range e.cfg.Engine.Symbols {
		symbols[s] = struct{}{}
	}
	for _, p := range e.book.Positions() {
		symbols[p.Symbol] = struct{}{}
	}

	prices := make(map[string]float64, len(symbols))
	for s := range symbols {
		price, err := e.client.GetTicker(ctx, s)
		if err != nil {
			e.log.Warn("ticker unavailable", zap.String("symbol", s), zap.Error(err))
			continue
		}
		prices[s] = price
	}
	return prices
}

// atrFor computes the current ATR for a symbol from fresh candles.
func (e *Engine) atrFor(ctx context.Context, symbol string) (float64, error) {
	candles, err := e.client.GetCandles(ctx, symbol, e.cfg.Exchange.Timeframe, e.cfg.Exchange.CandleLimit)
	if err != nil {
		return 0, err
	}
	return indicators.ATR(candles, e.cfg.Engine.ATRPeriod)
}

// manageExits evaluates the exit policy for every open position. A failure on
// one symbol never blocks the others.
func (e *Engine) manageExits(ctx context.Context, prices map[string]float64, now time.Time) {
	for _, pos := range e.book.Positions() {
		price, ok := prices[pos.Symbol]
		if !ok {
			continue
		}

		atr, err := e.atrFor(ctx, pos.Symbol)
		if err != nil {
			// Stale volatility beats none: fall back to the entry ATR.
			e.log.Warn("atr refresh failed, using entry atr",
				zap.String("symbol", pos.Symbol), zap.Error(err))
			atr = pos.ATRAtEntry
		}

		d := e.exits.Evaluate(pos, price, atr, now)
		if err := e.applyDecision(ctx, pos, d); err != nil {
			e.log.Error("exit action failed",
				zap.String("symbol", pos.Symbol),
				zap.String("action", string(d.Action)),
				zap.Error(err))
		}
	}
}

func (e *Engine) applyDecision(ctx context.Context, pos ledger.Position, d exit.Decision) error {
	switch d.Action {
	case exit.Close:
		_, err := e.gw.Sell(ctx, pos.Symbol, 1, d.Reason)
		return err
	case exit.PartialExit:
		e.gw.ApplyStop(pos.Symbol, d.NewStop, d.NewHighest)
		_, err := e.gw.Sell(ctx, pos.Symbol, d.ExitFraction, d.Reason)
		return err
	case exit.UpdateStop:
		e.gw.ApplyStop(pos.Symbol, d.NewStop, d.NewHighest)
		e.log.Debug("stop ratcheted",
			zap.String("symbol", pos.Symbol),
			zap.Float64("stop", d.NewStop),
			zap.Float64("highest", d.NewHighest))
		return nil
	default:
		e.gw.ApplyStop(pos.Symbol, d.NewStop, d.NewHighest)
		return nil
	}
}

// drainSignals consumes every pending signal. Exit signals are honored even
// under a daily halt; entry signals are dropped while halted.
func (e *Engine) drainSignals(ctx context.Context, prices map[string]float64, entriesBlocked bool) {
	for {
		sig, ok := e.signals.Next()
		if !ok {
			return
		}
		if err := e.handleSignal(ctx, sig, prices, entriesBlocked); err != nil {
			e.log.Error("signal handling failed",
				zap.String("symbol", sig.Symbol),
				zap.String("action", string(sig.Action)),
				zap.Error(err))
		}
	}
}

func (e *Engine) handleSignal(ctx context.Context, sig market.TradeSignal, prices map[string]float64, entriesBlocked bool) error {
	switch sig.Action {
	case market.ActionExit:
		if _, open := e.book.Get(sig.Symbol); !open {
			return nil
		}
		_, err := e.gw.Sell(ctx, sig.Symbol, 1, "SIGNAL_EXIT")
		return err

	case market.ActionPartialExit:
		pos, open := e.book.Get(sig.Symbol)
		if !open || pos.PartialExitDone {
			return nil
		}
		_, err := e.gw.Sell(ctx, sig.Symbol, e.cfg.Exit.PartialExitRatio, "SIGNAL_PARTIAL_EXIT")
		return err

	case market.ActionEntry:
		if entriesBlocked {
			e.log.Info("entry signal dropped, trading halted", zap.String("symbol", sig.Symbol))
			return nil
		}
		return e.enter(ctx, sig, prices)

	default:
		return fmt.Errorf("unknown signal action %q", sig.Action)
	}
}

func (e *Engine) enter(ctx context.Context, sig market.TradeSignal, prices map[string]float64) error {
	price, ok := prices[sig.Symbol]
	if !ok {
		var err error
		price, err = e.client.GetTicker(ctx, sig.Symbol)
		if err != nil {
			return fmt.Errorf("price %s: %w", sig.Symbol, err)
		}
	}

	atr := sig.Details.ATR
	if atr <= 0 {
		var err error
		if atr, err = e.atrFor(ctx, sig.Symbol); err != nil {
			e.log.Warn("atr unavailable for entry, sizing at high risk",
				zap.String("symbol", sig.Symbol), zap.Error(err))
			atr = 0
		}
	}

	volPct := risk.VolatilityPct(atr, price)
	if volPct == 0 {
		// Unknown volatility sizes as high risk rather than not at all.
		volPct = e.cfg.Risk.VolatilityHighThreshold
	}

	sizing := e.sizer.Size(volPct, sig.Details.Regime, e.book.Cash(), sig.Score)

	res, err := e.gw.Buy(ctx, sig.Symbol, sizing.TargetNotional, price, gateway.OrderContext{
		ATR:      atr,
		Regime:   sig.Details.Regime,
		Sniper:   sig.Details.Sniper,
		Leverage: sizing.Leverage,
	})
	if err != nil {
		return err
	}
	if res.Skipped {
		e.log.Info("entry skipped",
			zap.String("symbol", sig.Symbol),
			zap.String("reason", res.SkipReason))
	}
	return nil
}

func (e *Engine) flush() {
	if err := e.book.Save(); err != nil {
		e.log.Error("final state save failed", zap.Error(err))
	}
}
