// Package exchange defines the client contract for spot-exchange access plus
// the resilience wrapper (rate limiting and circuit breaking) every outbound
// call goes through.
package exchange

import (
	"context"
	"time"

	"spotrisk/market"
)

// Side is the direction of a market order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Fill is the outcome of an executed market order.
type Fill struct {
	Symbol   string
	Side     Side
	Price    float64
	Quantity float64
	Fee      float64
	Time     time.Time
}

// Client is the full exchange surface the engine depends on. Implementations
// must be safe for concurrent use.
type Client interface {
	market.DataSource

	// PlaceMarketOrder submits a market order for the given base quantity.
	// Quantity must already be normalized to the symbol's filters.
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error)
}
