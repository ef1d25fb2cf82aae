package market

import "context"

// DataSource is the market-data surface the engine reads from the exchange.
type DataSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	GetSymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
	GetFreeBalance(ctx context.Context, asset string) (float64, error)
	GetTicker(ctx context.Context, symbol string) (float64, error)
}
