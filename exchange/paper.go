package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spotrisk/market"
)

// PaperClient is an in-memory exchange used in simulated mode and in tests.
// Fills happen instantly at the current ticker price, balances are tracked
// per asset and a taker fee is charged on each fill.
type PaperClient struct {
	mu       sync.Mutex
	prices   map[string]float64
	candles  map[string][]market.Candle
	filters  map[string]market.SymbolFilters
	balances map[string]float64
	feePct   float64
}

// NewPaperClient creates a paper exchange charging feePct percent per fill.
func NewPaperClient(feePct float64) *PaperClient {
	return &PaperClient{
		prices:   make(map[string]float64),
		candles:  make(map[string][]market.Candle),
		filters:  make(map[string]market.SymbolFilters),
		balances: make(map[string]float64),
		feePct:   feePct,
	}
}

// SetPrice sets the current ticker price for a symbol.
func (p *PaperClient) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// SetCandles sets the candle history returned for a symbol.
func (p *PaperClient) SetCandles(symbol string, candles []market.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[symbol] = candles
}

// SetFilters sets the trading filters for a symbol.
func (p *PaperClient) SetFilters(symbol string, f market.SymbolFilters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters[symbol] = f
}

// SetBalance sets the free balance for an asset.
func (p *PaperClient) SetBalance(asset string, amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[asset] = amount
}

func (p *PaperClient) GetCandles(_ context.Context, symbol, _ string, limit int) ([]market.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cs, ok := p.candles[symbol]
	if !ok || len(cs) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrNoData, symbol)
	}
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	out := make([]market.Candle, len(cs))
	copy(out, cs)
	return out, nil
}

func (p *PaperClient) GetSymbolFilters(_ context.Context, symbol string) (market.SymbolFilters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.filters[symbol]
	if !ok {
		// Permissive defaults so tests only set filters when they matter.
		return market.SymbolFilters{StepSize: 0.00001, MinQty: 0.00001, MinNotional: 0}, nil
	}
	return f, nil
}

func (p *PaperClient) GetFreeBalance(_ context.Context, asset string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[asset], nil
}

func (p *PaperClient) GetTicker(_ context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: no ticker for %s", ErrNoData, symbol)
	}
	return price, nil
}

func (p *PaperClient) PlaceMarketOrder(_ context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[symbol]
	if !ok {
		return Fill{}, fmt.Errorf("%w: no ticker for %s", ErrNoData, symbol)
	}
	if quantity <= 0 {
		return Fill{}, fmt.Errorf("%w: non-positive quantity %.8f", ErrRejected, quantity)
	}

	notional := quantity * price
	fee := notional * p.feePct / 100

	return Fill{
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Fee:      fee,
		Time:     time.Now().UTC(),
	}, nil
}

var _ Client = (*PaperClient)(nil)
