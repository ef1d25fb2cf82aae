// Package gateway turns sizing decisions into exchange orders: it normalizes
// quantities to symbol filters, guards the spendable balance, books fills
// into the ledger and journals every execution.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"spotrisk/config"
	"spotrisk/exchange"
	"spotrisk/journal"
	"spotrisk/ledger"
	"spotrisk/metrics"
	"spotrisk/pkg/id"
)

// OrderContext carries the signal attributes an entry stamps onto the
// resulting position.
type OrderContext struct {
	ATR      float64
	Regime   string
	Sniper   bool
	Leverage float64
}

// Result reports the outcome of a Buy or Sell. A skipped order is not an
// error: the quantity was too small to bother the exchange with.
type Result struct {
	Fill       exchange.Fill
	Skipped    bool
	SkipReason string
}

// Gateway executes orders against the exchange and keeps the ledger and
// journal consistent with every fill.
type Gateway struct {
	cfg    *config.Config
	client exchange.Client
	book   *ledger.Ledger
	jrnl   journal.Journal
	log    *zap.Logger
	mode   string
}

func New(cfg *config.Config, client exchange.Client, book *ledger.Ledger, jrnl journal.Journal, log *zap.Logger) *Gateway {
	mode := "paper"
	if cfg.IsLiveMode {
		mode = "live"
	}
	return &Gateway{cfg: cfg, client: client, book: book, jrnl: jrnl, log: log, mode: mode}
}

// spendable returns the balance an entry may commit, scaled by leverage and
// the safety margin. Live mode reads the exchange; paper mode trusts the
// ledger.
func (g *Gateway) spendable(ctx context.Context, leverage float64) (float64, error) {
	free := g.book.Cash()
	if g.cfg.IsLiveMode {
		var err error
		free, err = g.client.GetFreeBalance(ctx, g.cfg.Exchange.QuoteAsset)
		if err != nil {
			return 0, fmt.Errorf("read balance: %w", err)
		}
	}
	if leverage < 1 {
		leverage = 1
	}
	return free * leverage * g.cfg.Risk.BalanceSafetyRatio, nil
}

// Buy opens a position with the given target notional. Returns a skipped
// Result when the notional is below the dust threshold or a position is
// already open for the symbol.
func (g *Gateway) Buy(ctx context.Context, symbol string, targetNotional, price float64, octx OrderContext) (Result, error) {
	if _, open := g.book.Get(symbol); open {
		return Result{Skipped: true, SkipReason: "position already open"}, nil
	}
	if targetNotional < g.cfg.Risk.MinTradeNotional {
		g.log.Debug("entry below dust threshold, skipping",
			zap.String("symbol", symbol),
			zap.Float64("notional", targetNotional))
		return Result{Skipped: true, SkipReason: "below minimum trade notional"}, nil
	}

	filters, err := g.client.GetSymbolFilters(ctx, symbol)
	if err != nil {
		return Result{}, fmt.Errorf("fetch filters for %s: %w", symbol, err)
	}

	free, err := g.spendable(ctx, octx.Leverage)
	if err != nil {
		return Result{}, err
	}

	qty, err := normalizeQuantity(targetNotional/price, price, free, filters)
	if errors.Is(err, exchange.ErrInsufficientFunds) {
		// Balance may have moved since sizing. Re-read it and retry once
		// with whatever is actually spendable.
		free, rerr := g.spendable(ctx, octx.Leverage)
		if rerr != nil {
			return Result{}, rerr
		}
		qty, err = normalizeQuantity(free/price, price, free, filters)
	}
	if err != nil {
		return Result{}, err
	}

	fill, err := g.client.PlaceMarketOrder(ctx, symbol, exchange.Buy, qty)
	if errors.Is(err, exchange.ErrInsufficientFunds) {
		// The venue saw less balance than the pre-check did. Re-read what is
		// actually spendable and place exactly one more order.
		free, rerr := g.spendable(ctx, octx.Leverage)
		if rerr != nil {
			return Result{}, rerr
		}
		qty, rerr = normalizeQuantity(free/price, price, free, filters)
		if rerr != nil {
			return Result{}, rerr
		}
		g.log.Warn("buy rejected for balance, retrying once",
			zap.String("symbol", symbol),
			zap.Float64("quantity", qty))
		fill, err = g.client.PlaceMarketOrder(ctx, symbol, exchange.Buy, qty)
	}
	if err != nil {
		return Result{}, fmt.Errorf("place buy for %s: %w", symbol, err)
	}

	g.book.Upsert(ledger.Position{
		Symbol:           symbol,
		EntryPrice:       fill.Price,
		Quantity:         fill.Quantity,
		OpenedAt:         fill.Time,
		HighestPrice:     fill.Price,
		ATRAtEntry:       octx.ATR,
		VolatilityRegime: octx.Regime,
		Leverage:         octx.Leverage,
		IsSniperEntry:    octx.Sniper,
	})
	g.book.AdjustCash(-(fill.Price*fill.Quantity + fill.Fee))
	g.record(fill, "", 0)
	metrics.IncOrder(g.mode, string(exchange.Buy))

	g.log.Info("position opened",
		zap.String("symbol", symbol),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.String("regime", octx.Regime),
		zap.Bool("sniper", octx.Sniper))

	if err := g.book.Save(); err != nil {
		g.log.Error("state save failed after buy", zap.Error(err))
	}
	return Result{Fill: fill}, nil
}

// Sell closes fraction of an open position (1 for a full close) and books
// the realized result. reason is the exit reason recorded with the trade.
func (g *Gateway) Sell(ctx context.Context, symbol string, fraction float64, reason string) (Result, error) {
	pos, open := g.book.Get(symbol)
	if !open {
		return Result{}, fmt.Errorf("%w: no open position for %s", exchange.ErrRejected, symbol)
	}
	if fraction <= 0 || fraction > 1 {
		return Result{}, fmt.Errorf("%w: invalid exit fraction %.2f", exchange.ErrRejected, fraction)
	}

	filters, err := g.client.GetSymbolFilters(ctx, symbol)
	if err != nil {
		return Result{}, fmt.Errorf("fetch filters for %s: %w", symbol, err)
	}

	qty := pos.Quantity
	full := fraction == 1
	if !full {
		qty = FloorToStep(pos.Quantity*fraction, filters.StepSize)
		remainder := pos.Quantity - qty
		// A partial that would leave dust behind becomes a full close.
		if qty < filters.MinQty || remainder < filters.MinQty {
			qty = pos.Quantity
			full = true
		}
	}

	// The ledger can drift from the venue (fees paid in base, external
	// withdrawals). In live mode sell only what the account actually holds.
	if g.cfg.IsLiveMode {
		base := strings.TrimSuffix(symbol, g.cfg.Exchange.QuoteAsset)
		held, err := g.client.GetFreeBalance(ctx, base)
		if err != nil {
			return Result{}, fmt.Errorf("read holdings for %s: %w", symbol, err)
		}
		if held < qty {
			clamped := FloorToStep(held, filters.StepSize)
			if clamped < filters.MinQty {
				g.log.Warn("sell refused, held balance below minimum quantity",
					zap.String("symbol", symbol),
					zap.Float64("held", held),
					zap.Float64("minQty", filters.MinQty))
				return Result{Skipped: true, SkipReason: "held balance below minimum quantity"}, nil
			}
			g.log.Warn("ledger quantity exceeds held balance, clamping",
				zap.String("symbol", symbol),
				zap.Float64("ledger", qty),
				zap.Float64("held", held))
			qty = clamped
		}
	}

	// Dust guard: a position worth less than the minimum notional can't be
	// sold. Keep it until it appreciates; this is not an error.
	if filters.MinNotional > 0 {
		price, err := g.client.GetTicker(ctx, symbol)
		if err != nil {
			return Result{}, fmt.Errorf("price %s: %w", symbol, err)
		}
		if qty*price < filters.MinNotional {
			g.log.Info("sell refused, position is dust",
				zap.String("symbol", symbol),
				zap.Float64("notional", qty*price),
				zap.Float64("minNotional", filters.MinNotional))
			return Result{Skipped: true, SkipReason: "below minimum notional"}, nil
		}
	}

	fill, err := g.client.PlaceMarketOrder(ctx, symbol, exchange.Sell, qty)
	if err != nil {
		return Result{}, fmt.Errorf("place sell for %s: %w", symbol, err)
	}

	pnlPct := pos.UnrealizedPnLPct(fill.Price)
	pnlUSD := (fill.Price-pos.EntryPrice)*fill.Quantity - fill.Fee

	if full {
		g.book.Remove(symbol)
	} else {
		pos.Quantity -= fill.Quantity
		pos.PartialExitDone = true
		g.book.Upsert(pos)
	}

	g.book.AdjustCash(fill.Price*fill.Quantity - fill.Fee)
	g.book.RecordTrade(fill.Time, pnlUSD)
	g.record(fill, reason, pnlPct)
	metrics.IncOrder(g.mode, string(exchange.Sell))
	metrics.IncExit(reason)
	metrics.IncTrade(pnlUSD)

	g.log.Info("position reduced",
		zap.String("symbol", symbol),
		zap.Bool("full", full),
		zap.String("reason", reason),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("pnlPct", pnlPct))

	if err := g.book.Save(); err != nil {
		g.log.Error("state save failed after sell", zap.Error(err))
	}
	return Result{Fill: fill}, nil
}

// ApplyStop persists a trailing-stop update onto the stored position.
func (g *Gateway) ApplyStop(symbol string, stop, highest float64) {
	pos, open := g.book.Get(symbol)
	if !open {
		return
	}
	pos.StopPrice = stop
	pos.HighestPrice = highest
	g.book.Upsert(pos)
}

func (g *Gateway) record(fill exchange.Fill, reason string, pnlPct float64) {
	rec := ledger.OrderRecord{
		ID:       id.New(),
		Time:     fill.Time,
		Symbol:   fill.Symbol,
		Side:     string(fill.Side),
		Price:    fill.Price,
		Quantity: fill.Quantity,
		Status:   "FILLED",
		Reason:   reason,
		PnLPct:   pnlPct,
	}
	g.book.AppendOrder(rec)

	if err := g.jrnl.RecordTrade(journal.Entry{
		ID:       rec.ID,
		Time:     fill.Time,
		Symbol:   fill.Symbol,
		Side:     string(fill.Side),
		Price:    fill.Price,
		Quantity: fill.Quantity,
		PnLPct:   pnlPct,
		Reason:   reason,
		Status:   "FILLED",
	}); err != nil {
		g.log.Warn("journal write failed", zap.Error(err))
	}
}
