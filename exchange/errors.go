package exchange

import "errors"

var (
	// ErrInsufficientFunds means the exchange refused an order because the
	// account balance can't cover it. Callers may retry once with a smaller
	// quantity after re-reading the balance.
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")

	// ErrRejected means the exchange rejected the order for a business reason
	// (bad symbol, filter violation). Not retryable and not a breaker failure.
	ErrRejected = errors.New("exchange: order rejected")

	// ErrUnavailable means the exchange could not be reached or the circuit
	// breaker is open.
	ErrUnavailable = errors.New("exchange: unavailable")

	// ErrNoData means a market-data request returned an empty result.
	ErrNoData = errors.New("exchange: no data")
)
