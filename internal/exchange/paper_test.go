package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGuard struct{ proceed bool }

func (g stubGuard) CanProceed() bool { return g.proceed }

func TestPaperBuyAndSellRoundTrip(t *testing.T) {
	p, err := NewPaper(10000, nil)
	require.NoError(t, err)
	ctx := context.Background()

	buy, err := p.PlaceOrder(ctx, OrderRequest{
		TraceID: "t-1", Symbol: "btcusdt", Side: "buy", NotionalUSD: 100, Price: 64000,
	})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", buy.Symbol)
	assert.Equal(t, SideBuy, buy.Side)
	assert.InDelta(t, 100.0/64000.0, buy.Quantity, 1e-8)
	assert.False(t, buy.ExecutedAt.IsZero())

	bal, err := p.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000-buy.NotionalUSD, bal.CashUSD, 1e-9)
	assert.InDelta(t, buy.Quantity, bal.PositionQty, 1e-12)
	assert.InDelta(t, 10000, bal.EquityUSD, 1e-6)

	sell, err := p.PlaceOrder(ctx, OrderRequest{
		TraceID: "t-2", Symbol: "BTCUSDT", Side: "SELL", NotionalUSD: buy.NotionalUSD, Price: 64000,
	})
	require.NoError(t, err)
	assert.InDelta(t, buy.Quantity, sell.Quantity, 1e-12)

	bal, err = p.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000, bal.CashUSD, 1e-9)
	assert.InDelta(t, 0, bal.PositionQty, 1e-12)
}

func TestPaperRejectsBadOrders(t *testing.T) {
	p, err := NewPaper(1000, nil)
	require.NoError(t, err)
	ctx := context.Background()

	cases := []OrderRequest{
		{Symbol: "", Side: SideBuy, NotionalUSD: 10, Price: 100},
		{Symbol: "BTCUSDT", Side: "HOLD", NotionalUSD: 10, Price: 100},
		{Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 0, Price: 100},
		{Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: -5, Price: 100},
		{Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 10, Price: 0},
	}
	for _, req := range cases {
		_, err := p.PlaceOrder(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidOrder, "request %+v", req)
	}

	bal, err := p.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000, bal.CashUSD, 1e-9, "rejected orders must not touch the ledger")
}

func TestPaperInsufficientCash(t *testing.T) {
	p, err := NewPaper(50, nil)
	require.NoError(t, err)

	_, err = p.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 100, Price: 64000,
	})
	assert.ErrorIs(t, err, ErrInsufficientCash)
}

func TestPaperRejectsShortSale(t *testing.T) {
	p, err := NewPaper(1000, nil)
	require.NoError(t, err)

	_, err = p.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideSell, NotionalUSD: 10, Price: 64000,
	})
	assert.ErrorIs(t, err, ErrInsufficientPosition)
}

func TestPaperRefusesWhileHalted(t *testing.T) {
	p, err := NewPaper(1000, stubGuard{proceed: false})
	require.NoError(t, err)

	_, err = p.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 10, Price: 64000,
	})
	assert.ErrorIs(t, err, ErrTradingHalted)

	open, err := NewPaper(1000, stubGuard{proceed: true})
	require.NoError(t, err)
	_, err = open.PlaceOrder(context.Background(), OrderRequest{
		Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 10, Price: 64000,
	})
	assert.NoError(t, err)
}

func TestPaperConcurrentOrdersConserveCash(t *testing.T) {
	p, err := NewPaper(100, nil)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.PlaceOrder(ctx, OrderRequest{Symbol: "BTCUSDT", Side: SideBuy, NotionalUSD: 10, Price: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	bal, err := p.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0, bal.CashUSD, 1e-9)
	assert.InDelta(t, 100, bal.PositionQty, 1e-9)
	assert.InDelta(t, 100, bal.EquityUSD, 1e-9)
}

func TestPaperRejectsNonPositiveInitialCash(t *testing.T) {
	_, err := NewPaper(0, nil)
	require.Error(t, err)
	_, err = NewPaper(-10, nil)
	require.Error(t, err)
}

func TestPaperErrorsAreDistinguishable(t *testing.T) {
	assert.False(t, errors.Is(ErrInsufficientCash, ErrInvalidOrder))
	assert.False(t, errors.Is(ErrTradingHalted, ErrInvalidOrder))
}
