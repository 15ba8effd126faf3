package materializer

import (
	"testing"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prices() model.PriceEstimates {
	return model.PriceEstimates{
		"BTC":  decimal.NewFromInt(10000),
		"USDT": decimal.NewFromInt(1),
		"ETH":  decimal.NewFromInt(1000),
	}
}

func TestMaterializeForwardPairIsSell(t *testing.T) {
	known := map[model.Pair]struct{}{{Commodity: "BTC", Base: "USDT"}: {}}
	transfer := model.AbstractTransfer{From: "BTC", To: "USDT", AmountInBase: decimal.NewFromInt(100)}

	order, err := Materialize(transfer, known, prices(), model.MARKET, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Pair{Commodity: "BTC", Base: "USDT"}, order.Pair)
	assert.Equal(t, model.SELL, order.Side)
	assert.True(t, order.Quantity.Equal(decimal.NewFromFloat(0.01)))
}

func TestMaterializeReversePairIsBuy(t *testing.T) {
	known := map[model.Pair]struct{}{{Commodity: "BTC", Base: "USDT"}: {}}
	// Transfer moves value USDT->BTC; only BTC_USDT is a known pair, so this
	// materializes as a BUY on the reverse pair.
	transfer := model.AbstractTransfer{From: "USDT", To: "BTC", AmountInBase: decimal.NewFromInt(100)}

	order, err := Materialize(transfer, known, prices(), model.MARKET, nil)
	require.NoError(t, err)
	assert.Equal(t, model.Pair{Commodity: "BTC", Base: "USDT"}, order.Pair)
	assert.Equal(t, model.BUY, order.Side)
}

func TestMaterializeErrorsWhenNoPairKnown(t *testing.T) {
	transfer := model.AbstractTransfer{From: "BTC", To: "USDT", AmountInBase: decimal.NewFromInt(100)}
	_, err := Materialize(transfer, map[model.Pair]struct{}{}, prices(), model.MARKET, nil)
	assert.Error(t, err)
}

func TestMaterializeLimitRequiresSeedPrice(t *testing.T) {
	known := map[model.Pair]struct{}{{Commodity: "BTC", Base: "USDT"}: {}}
	transfer := model.AbstractTransfer{From: "BTC", To: "USDT", AmountInBase: decimal.NewFromInt(100)}

	_, err := Materialize(transfer, known, prices(), model.LIMIT, nil)
	assert.Error(t, err)

	order, err := Materialize(transfer, known, prices(), model.LIMIT, prices())
	require.NoError(t, err)
	assert.True(t, order.Price.IsPositive())
}

func TestTopologicalSortOrdersProducerBeforeConsumer(t *testing.T) {
	// BTC sold for USDT (produces USDT), USDT used to buy ETH (consumes USDT
	// via BUY on ETH_USDT, which produces ETH from USDT).
	sellBTC := model.Order{Pair: model.Pair{Commodity: "BTC", Base: "USDT"}, Type: model.MARKET, Side: model.SELL, Quantity: decimal.NewFromInt(1)}
	buyETH := model.Order{Pair: model.Pair{Commodity: "ETH", Base: "USDT"}, Type: model.MARKET, Side: model.BUY, Quantity: decimal.NewFromInt(1)}

	sorted := TopologicalSort([]model.Order{buyETH, sellBTC})
	require.Len(t, sorted, 2)
	assert.Equal(t, sellBTC, sorted[0])
	assert.Equal(t, buyETH, sorted[1])
}

func TestTopologicalSortIndependentOrdersPreserveCount(t *testing.T) {
	a := model.Order{Pair: model.Pair{Commodity: "BTC", Base: "USDT"}, Type: model.MARKET, Side: model.SELL, Quantity: decimal.NewFromInt(1)}
	b := model.Order{Pair: model.Pair{Commodity: "LTC", Base: "ETH"}, Type: model.MARKET, Side: model.SELL, Quantity: decimal.NewFromInt(1)}

	sorted := TopologicalSort([]model.Order{a, b})
	assert.Len(t, sorted, 2)
}
