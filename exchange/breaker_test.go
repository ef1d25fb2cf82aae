package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spotrisk/market"
)

// flakyClient fails GetTicker with a transport error until fixed.
type flakyClient struct {
	*PaperClient
	failing bool
	calls   int
}

func (f *flakyClient) GetTicker(ctx context.Context, symbol string) (float64, error) {
	f.calls++
	if f.failing {
		return 0, errors.New("connection reset")
	}
	return f.PaperClient.GetTicker(ctx, symbol)
}

func newFlaky() *flakyClient {
	f := &flakyClient{PaperClient: NewPaperClient(0)}
	f.SetPrice("BTCUSDT", 50000)
	return f
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	inner := newFlaky()
	inner.failing = true
	b := NewBreaker(inner, nil, zap.NewNop(), 3, time.Hour, time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := b.GetTicker(ctx, "BTCUSDT")
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	// Open circuit fails fast without touching the client.
	calls := inner.calls
	_, err := b.GetTicker(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, calls, inner.calls)
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	t.Parallel()

	inner := newFlaky()
	inner.failing = true
	b := NewBreaker(inner, nil, zap.NewNop(), 1, 10*time.Millisecond, time.Second)

	ctx := context.Background()
	_, err := b.GetTicker(ctx, "BTCUSDT")
	require.Error(t, err)
	require.Equal(t, "open", b.State())

	inner.failing = false
	time.Sleep(20 * time.Millisecond)

	price, err := b.GetTicker(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_HalfOpenProbeReopens(t *testing.T) {
	t.Parallel()

	inner := newFlaky()
	inner.failing = true
	b := NewBreaker(inner, nil, zap.NewNop(), 1, 10*time.Millisecond, time.Second)

	ctx := context.Background()
	_, _ = b.GetTicker(ctx, "BTCUSDT")
	time.Sleep(20 * time.Millisecond)

	// Probe fails: straight back to open regardless of threshold.
	_, err := b.GetTicker(ctx, "BTCUSDT")
	require.Error(t, err)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_BusinessErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	inner := NewPaperClient(0)
	// No ticker set: GetTicker returns ErrNoData, a business error.
	b := NewBreaker(inner, nil, zap.NewNop(), 1, time.Hour, time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := b.GetTicker(ctx, "BTCUSDT")
		require.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_StateHook(t *testing.T) {
	t.Parallel()

	var seen []string
	inner := newFlaky()
	inner.failing = true
	b := NewBreaker(inner, nil, zap.NewNop(), 1, time.Hour, time.Second,
		WithStateHook(func(s string) { seen = append(seen, s) }))

	_, _ = b.GetTicker(context.Background(), "BTCUSDT")
	assert.Equal(t, []string{"open"}, seen)
}

func TestPaperClient_FillAtTickerWithFee(t *testing.T) {
	t.Parallel()

	p := NewPaperClient(0.1)
	p.SetPrice("ETHUSDT", 2000)

	fill, err := p.PlaceMarketOrder(context.Background(), "ETHUSDT", Buy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, fill.Price)
	assert.Equal(t, 0.5, fill.Quantity)
	assert.InDelta(t, 1.0, fill.Fee, 1e-9) // 0.1% of 1000
}

func TestPaperClient_CandleLimit(t *testing.T) {
	t.Parallel()

	p := NewPaperClient(0)
	cs := make([]market.Candle, 10)
	for i := range cs {
		cs[i].Close = float64(i)
	}
	p.SetCandles("BTCUSDT", cs)

	got, err := p.GetCandles(context.Background(), "BTCUSDT", "15m", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 9.0, got[2].Close)
}
