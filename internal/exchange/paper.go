package exchange

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"maestro/internal/logger"

	"github.com/shopspring/decimal"
)

// quantityPlaces matches the usual crypto lot precision.
const quantityPlaces = 8

var decimalZero = decimal.Zero

// haltGuard lets the paper exchange double-check the safety gate. The engine
// never routes orders while halted, so a rejection here means a wiring bug
// upstream and is logged accordingly.
type haltGuard interface {
	CanProceed() bool
}

// Paper simulates a spot account: a cash ledger in USD and one position per
// run. Fills happen instantly at the request's reference price.
type Paper struct {
	guard haltGuard
	log   logger.Component
	nowFn func() time.Time

	mu        sync.Mutex
	cash      decimal.Decimal
	position  decimal.Decimal
	lastPrice decimal.Decimal
}

func NewPaper(initialCashUSD float64, guard haltGuard) (*Paper, error) {
	if initialCashUSD <= 0 || math.IsNaN(initialCashUSD) || math.IsInf(initialCashUSD, 0) {
		return nil, fmt.Errorf("initial cash must be a positive amount, got %v", initialCashUSD)
	}
	return &Paper{
		guard: guard,
		log:   logger.For("paper"),
		nowFn: time.Now,
		cash:  decFromFloat(initialCashUSD),
	}, nil
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, err
	}
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	switch {
	case strings.TrimSpace(req.Symbol) == "":
		return OrderResult{}, fmt.Errorf("%w: symbol is empty", ErrInvalidOrder)
	case side != SideBuy && side != SideSell:
		return OrderResult{}, fmt.Errorf("%w: side %q", ErrInvalidOrder, req.Side)
	case !(req.NotionalUSD > 0):
		return OrderResult{}, fmt.Errorf("%w: notional %v", ErrInvalidOrder, req.NotionalUSD)
	case !(req.Price > 0):
		return OrderResult{}, fmt.Errorf("%w: price %v", ErrInvalidOrder, req.Price)
	}
	if p.guard != nil && !p.guard.CanProceed() {
		p.log.Errorf("order %s %s reached the exchange while halted, refusing (trace %s)", side, req.Symbol, req.TraceID)
		return OrderResult{}, ErrTradingHalted
	}

	price := decFromFloat(req.Price)
	qty := decFromFloat(req.NotionalUSD).Div(price).Round(quantityPlaces)
	if qty.LessThanOrEqual(decimalZero) {
		return OrderResult{}, fmt.Errorf("%w: notional %v rounds to zero quantity at price %v", ErrInvalidOrder, req.NotionalUSD, req.Price)
	}
	// Settle on the rounded quantity so cash and position stay consistent.
	notional := qty.Mul(price)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch side {
	case SideBuy:
		if p.cash.LessThan(notional) {
			return OrderResult{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCash, p.cash.StringFixed(2), notional.StringFixed(2))
		}
		p.cash = p.cash.Sub(notional)
		p.position = p.position.Add(qty)
	case SideSell:
		if p.position.LessThan(qty) {
			return OrderResult{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientPosition, p.position.String(), qty.String())
		}
		p.position = p.position.Sub(qty)
		p.cash = p.cash.Add(notional)
	}
	p.lastPrice = price

	res := OrderResult{
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Side:        side,
		Quantity:    decToFloat(qty),
		Price:       req.Price,
		NotionalUSD: decToFloat(notional),
		ExecutedAt:  p.nowFn().UTC(),
	}
	p.log.Infof("fill %s %s %s @ %s (%s USD), cash %s, position %s",
		side, qty.String(), res.Symbol, price.String(), notional.StringFixed(2),
		p.cash.StringFixed(2), p.position.String())
	return res, nil
}

// Balance marks the position at the last fill price. Before the first fill
// equity equals cash.
func (p *Paper) Balance(ctx context.Context) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	equity := p.cash.Add(p.position.Mul(p.lastPrice))
	return Balance{
		CashUSD:     decToFloat(p.cash),
		PositionQty: decToFloat(p.position),
		EquityUSD:   decToFloat(equity),
	}, nil
}

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}
