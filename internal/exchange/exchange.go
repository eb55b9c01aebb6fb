package exchange

import (
	"context"
	"errors"
	"time"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrTradingHalted        = errors.New("trading halted")
	ErrInsufficientCash     = errors.New("insufficient cash")
	ErrInsufficientPosition = errors.New("insufficient position")
)

// OrderRequest asks for a fill of NotionalUSD at the reference Price taken
// from the market snapshot that produced the decision.
type OrderRequest struct {
	TraceID     string
	Symbol      string
	Side        string
	NotionalUSD float64
	Price       float64
}

// OrderResult reports the executed fill.
type OrderResult struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	NotionalUSD float64   `json:"notional_usd"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Balance is the account state as of the last fill.
type Balance struct {
	CashUSD     float64 `json:"cash_usd"`
	PositionQty float64 `json:"position_qty"`
	EquityUSD   float64 `json:"equity_usd"`
}

// Exchange executes orders. Implementations must be safe for concurrent use.
type Exchange interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	Balance(ctx context.Context) (Balance, error)
}
