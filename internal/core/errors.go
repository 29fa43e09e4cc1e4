package core

import "errors"

var (
	// ErrInsufficientBalance indicates the buy notional exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBelowMinNotional indicates the computed trade notional is under the configured minimum.
	ErrBelowMinNotional = errors.New("notional below min")
	// ErrMaxPositionsReached indicates the ledger is at its open-position capacity.
	ErrMaxPositionsReached = errors.New("max positions reached")
	// ErrNoPosition indicates a sell was requested for a symbol with no open position.
	ErrNoPosition = errors.New("no open position")
	// ErrPositionOpen indicates a buy was requested for a symbol that already holds a position.
	ErrPositionOpen = errors.New("position already open")
	// ErrAlreadyExecuting indicates an order for the symbol is still in flight.
	ErrAlreadyExecuting = errors.New("order already executing")
	// ErrOrderRejected indicates the exchange explicitly declined the order.
	ErrOrderRejected = errors.New("order rejected")
	// ErrPriceUnavailable indicates no current price is tracked for the symbol.
	ErrPriceUnavailable = errors.New("price unavailable")
)
