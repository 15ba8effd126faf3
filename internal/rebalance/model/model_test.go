package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairStringAndReverse(t *testing.T) {
	p := Pair{Commodity: "BTC", Base: "USDT"}
	assert.Equal(t, "BTC_USDT", p.String())
	assert.Equal(t, Pair{Commodity: "USDT", Base: "BTC"}, p.Reverse())
}

func TestOrderBookConstructors(t *testing.T) {
	pair := Pair{Commodity: "BTC", Base: "USDT"}

	scalar := NewOrderBookFromScalar(pair, decimal.NewFromInt(100))
	mid, err := scalar.Mid()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(mid))
	assert.True(t, scalar.Valid())

	bidAsk := NewOrderBookFromBidAsk(pair, decimal.NewFromInt(99), decimal.NewFromInt(101))
	mid, err = bidAsk.Mid()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(mid))

	two := NewOrderBookFromTwo(pair, decimal.NewFromInt(101), decimal.NewFromInt(99))
	assert.True(t, decimal.NewFromInt(99).Equal(two.WallBid))
	assert.True(t, decimal.NewFromInt(101).Equal(two.WallAsk))
}

func TestOrderBookMidFailsOnMissingWall(t *testing.T) {
	ob := OrderBook{Pair: Pair{Commodity: "BTC", Base: "USDT"}, WallBid: decimal.Zero, WallAsk: decimal.NewFromInt(1)}
	_, err := ob.Mid()
	assert.Error(t, err)
	assert.False(t, ob.Valid())
}

func TestOrderValidate(t *testing.T) {
	pair := Pair{Commodity: "BTC", Base: "USDT"}

	tests := []struct {
		name    string
		order   Order
		wantErr bool
	}{
		{"valid market order", Order{Pair: pair, Type: MARKET, Side: SELL, Quantity: decimal.NewFromInt(1)}, false},
		{"valid limit order", Order{Pair: pair, Type: LIMIT, Side: BUY, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}, false},
		{"limit missing price", Order{Pair: pair, Type: LIMIT, Side: BUY, Quantity: decimal.NewFromInt(1)}, true},
		{"market with price", Order{Pair: pair, Type: MARKET, Side: BUY, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}, true},
		{"zero quantity", Order{Pair: pair, Type: MARKET, Side: BUY, Quantity: decimal.Zero}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBalancesAndPriceEstimatesGetDefault(t *testing.T) {
	b := Balances{"BTC": decimal.NewFromInt(1)}
	assert.True(t, b.Get("BTC").Equal(decimal.NewFromInt(1)))
	assert.True(t, b.Get("ETH").IsZero())

	p := PriceEstimates{"BTC": decimal.NewFromInt(50000)}
	assert.True(t, p.Get("BTC").Equal(decimal.NewFromInt(50000)))
	assert.True(t, p.Get("ETH").IsZero())
}
