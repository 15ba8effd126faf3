package executor

import (
	"context"
	"testing"
	"time"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLimitConfig() LimitExecutorConfig {
	return LimitExecutorConfig{MaxRetries: 2, TimeDelta: time.Millisecond}
}

func TestLimitExecutorFillsImmediately(t *testing.T) {
	pair := model.Pair{Commodity: "BTC", Base: "USDT"}
	ex := &fakeExchange{
		balances: model.Balances{"BTC": decimal.NewFromInt(1), "USDT": decimal.NewFromInt(10000)},
		rules:    permissiveRules(pair),
		books:    []model.OrderBook{model.NewOrderBookFromScalar(pair, decimal.NewFromInt(10000))},
		statuses: map[string]*OrderStatus{
			"l1": {OrigQuantity: decimal.NewFromFloat(0.01), ExecutedQuantity: decimal.NewFromFloat(0.01), MeanPrice: decimal.NewFromInt(10000), Commission: map[model.Asset]decimal.Decimal{}},
		},
	}
	orders := []model.Order{{Pair: pair, Type: model.LIMIT, Side: model.SELL, Quantity: decimal.NewFromFloat(0.01)}}

	le := NewLimitExecutor(ex, fastLimitConfig(), nil)
	stats, err := le.Run(context.Background(), orders, nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "sell", stats[0].Action)
	assert.Len(t, ex.cancelled, 1)
}

func TestLimitExecutorPartialFillRetries(t *testing.T) {
	pair := model.Pair{Commodity: "BTC", Base: "USDT"}
	ex := &fakeExchange{
		balances: model.Balances{"BTC": decimal.NewFromInt(1)},
		rules:    permissiveRules(pair),
		books:    []model.OrderBook{model.NewOrderBookFromScalar(pair, decimal.NewFromInt(10000))},
		placeLimitHandles: []*LimitOrderHandle{
			{OrderID: "r1", Pair: pair},
			{OrderID: "r2", Pair: pair},
		},
		statuses: map[string]*OrderStatus{
			"r1": {OrigQuantity: decimal.NewFromFloat(0.5), ExecutedQuantity: decimal.NewFromFloat(0.3), MeanPrice: decimal.NewFromInt(10000), Commission: map[model.Asset]decimal.Decimal{}},
			"r2": {OrigQuantity: decimal.NewFromFloat(0.2), ExecutedQuantity: decimal.NewFromFloat(0.2), MeanPrice: decimal.NewFromInt(10000), Commission: map[model.Asset]decimal.Decimal{}},
		},
	}
	orders := []model.Order{{Pair: pair, Type: model.LIMIT, Side: model.SELL, Quantity: decimal.NewFromFloat(0.5)}}

	le := NewLimitExecutor(ex, fastLimitConfig(), nil)
	stats, err := le.Run(context.Background(), orders, nil)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.True(t, stats[0].Volume == 0.3)
	assert.True(t, stats[1].Volume == 0.2)
}

func TestLimitExecutorGivesUpAfterMaxRetries(t *testing.T) {
	pair := model.Pair{Commodity: "BTC", Base: "USDT"}
	ex := &fakeExchange{
		balances: model.Balances{"BTC": decimal.NewFromInt(1)},
		rules:    permissiveRules(pair),
		books:    []model.OrderBook{model.NewOrderBookFromScalar(pair, decimal.NewFromInt(10000))},
		statuses: map[string]*OrderStatus{
			"l1": {OrigQuantity: decimal.NewFromFloat(0.5), ExecutedQuantity: decimal.Zero, MeanPrice: decimal.Zero, Commission: map[model.Asset]decimal.Decimal{}},
		},
	}
	orders := []model.Order{{Pair: pair, Type: model.LIMIT, Side: model.SELL, Quantity: decimal.NewFromFloat(0.5)}}

	le := NewLimitExecutor(ex, fastLimitConfig(), nil)
	stats, err := le.Run(context.Background(), orders, nil)
	require.NoError(t, err)
	// Every round returns zero execution, contributing a zero-volume
	// Statistics record each time, until retries are exhausted.
	assert.LessOrEqual(t, len(stats), fastLimitConfig().MaxRetries+1)
}
