// Package rebalance orchestrates the full pipeline: fetch balances and order
// books, estimate prices, complete target weights, plan a min-cost set of
// abstract transfers, materialize them into concrete orders, and hand the
// batch to the chosen executor.
//
// Grounded on the original implementation's pre_rebalance
// (rebalancer/utils.py), which performs the same assembly before either
// market_order_rebalance or limit_order_rebalance takes over.
package rebalance

import (
	"context"
	"fmt"

	"github.com/mExOms/rebalancer/internal/rebalance/executor"
	"github.com/mExOms/rebalancer/internal/rebalance/materializer"
	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/mExOms/rebalancer/internal/rebalance/planner"
	"github.com/mExOms/rebalancer/internal/rebalance/portfolio"
	"github.com/mExOms/rebalancer/internal/rebalance/prices"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaddingAsset is the default asset that absorbs the gap when a caller
// supplies partial target weights.
const PaddingAsset = model.Asset("BTC")

// LimitPseudoFeeDivisor biases the limit-mode planner to minimize order
// count before fees: every hop effectively costs a flat baseline in
// addition to its real fee. Grounded on limit_order_rebalancer.py's
// limit_pseudo_fee = Decimal('1e2').
var LimitPseudoFeeDivisor = decimal.NewFromInt(100)

// Plan is the prepared state ready for an executor.
type Plan struct {
	InitialWeights model.Weights
	FinalWeights   model.Weights
	PortfolioValue decimal.Decimal
	Prices         model.PriceEstimates
	Transfers      []model.AbstractTransfer
	Orders         []model.Order
}

// PreRebalanceResult bundles everything the planner and materializer need.
type PreRebalanceResult struct {
	Balances       model.Balances
	OrderBooks     []model.OrderBook
	Prices         model.PriceEstimates
	InitialWeights model.Weights
	FinalWeights   model.Weights
	PortfolioValue decimal.Decimal
}

// PreRebalance fetches balances and order books, estimates prices, completes
// partial target weights, and returns everything needed to plan and
// materialize transfers. throughTradeCurrencies widens the order-book
// fetch beyond the assets directly mentioned in balances/targetWeights (the
// exchange's designated bridge currencies, e.g. BTC/ETH/BNB/USDT).
func PreRebalance(ctx context.Context, ex executor.Exchange, targetWeights model.Weights, throughTradeCurrencies map[model.Asset]struct{}, base model.Asset) (*PreRebalanceResult, error) {
	balances, err := ex.GetBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebalance: get balances: %w", err)
	}

	assets := make(map[model.Asset]struct{})
	for a := range balances {
		assets[a] = struct{}{}
	}
	for a := range targetWeights {
		assets[a] = struct{}{}
	}
	for a := range throughTradeCurrencies {
		assets[a] = struct{}{}
	}
	assets[base] = struct{}{}

	pairs := allPossiblePairs(assets)
	books, err := ex.GetOrderBooks(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("rebalance: get order books: %w", err)
	}

	priceEstimates, err := prices.Estimate(books, base)
	if err != nil {
		return nil, fmt.Errorf("rebalance: estimate prices: %w", err)
	}

	wanted := make([]model.Asset, 0, len(targetWeights))
	for a := range targetWeights {
		wanted = append(wanted, a)
	}
	if missing := prices.Unreachable(priceEstimates, wanted); len(missing) > 0 {
		return nil, fmt.Errorf("rebalance: no price estimate for target assets %v", missing)
	}

	initialWeights, err := portfolio.Weights(balances, priceEstimates)
	if err != nil {
		return nil, fmt.Errorf("rebalance: %w", err)
	}
	portfolioValue := portfolio.Value(balances, priceEstimates)

	finalWeights, err := portfolio.CompleteWeights(targetWeights, PaddingAsset)
	if err != nil {
		return nil, fmt.Errorf("rebalance: %w", err)
	}

	return &PreRebalanceResult{
		Balances:       balances,
		OrderBooks:     books,
		Prices:         priceEstimates,
		InitialWeights: initialWeights,
		FinalWeights:   finalWeights,
		PortfolioValue: portfolioValue,
	}, nil
}

// allPossiblePairs enumerates candidate base-quoted pairs across every asset
// pair in the set, matching the original's construction of
// all_possible_products from through_trade_currencies | resources | weights.
func allPossiblePairs(assets map[model.Asset]struct{}) []model.Pair {
	var pairs []model.Pair
	list := make([]model.Asset, 0, len(assets))
	for a := range assets {
		list = append(list, a)
	}
	for i, a := range list {
		for j, b := range list {
			if i == j {
				continue
			}
			pairs = append(pairs, model.Pair{Commodity: a, Base: b})
		}
	}
	return pairs
}

// BuildPlan runs the planner and materializer stages: computing abstract
// transfers from initial to final weights using the given per-pair fees,
// then converting them into concrete orders on the exchange's known pairs.
func BuildPlan(initialWeights, finalWeights model.Weights, pairFees []planner.PairFee, knownPairs map[model.Pair]struct{}, priceEstimates model.PriceEstimates, portfolioValue decimal.Decimal, orderType model.OrderType, log *logrus.Entry) (*Plan, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	transfers, err := planner.Plan(initialWeights, finalWeights, pairFees)
	if err != nil {
		return nil, fmt.Errorf("rebalance: plan: %w", err)
	}

	orders := make([]model.Order, 0, len(transfers))
	for _, t := range transfers {
		scaled := model.AbstractTransfer{
			From:         t.From,
			To:           t.To,
			AmountInBase: t.AmountInBase.Mul(portfolioValue),
		}
		order, err := materializer.Materialize(scaled, knownPairs, priceEstimates, orderType, priceEstimates)
		if err != nil {
			log.WithError(err).WithField("transfer", fmt.Sprintf("%s->%s", t.From, t.To)).Warn("dropping unmaterializable transfer")
			continue
		}
		orders = append(orders, order)
	}

	if orderType == model.MARKET {
		orders = materializer.TopologicalSort(orders)
	}

	return &Plan{
		InitialWeights: initialWeights,
		FinalWeights:   finalWeights,
		PortfolioValue: portfolioValue,
		Prices:         priceEstimates,
		Transfers:      transfers,
		Orders:         orders,
	}, nil
}

// PairFeesFromMarket composes taker/maker fee and spread cost per pair into
// the retained-fraction input the planner expects. For limit mode, the
// result is additionally scaled by LimitPseudoFeeDivisor so the optimizer
// favors fewer hops over marginally cheaper ones.
func PairFeesFromMarket(books []model.OrderBook, fees map[model.Pair]decimal.Decimal, limitMode bool) ([]planner.PairFee, error) {
	out := make([]planner.PairFee, 0, len(books)*2)
	for _, ob := range books {
		fee, ok := fees[ob.Pair]
		if !ok {
			continue
		}
		spreadFee, err := portfolio.SpreadToFee(ob)
		if err != nil {
			return nil, err
		}
		totalFeeLost := portfolio.TotalFee(fee, spreadFee)
		retained := decimal.NewFromInt(1).Sub(totalFeeLost)
		if limitMode {
			// Every hop costs a flat baseline on top of its real fee, so
			// the planner prefers fewer hops before cheaper ones.
			retained = retained.Div(LimitPseudoFeeDivisor)
		}
		if !retained.IsPositive() {
			continue
		}
		out = append(out,
			planner.PairFee{From: ob.Pair.Commodity, To: ob.Pair.Base, Fee: retained},
			planner.PairFee{From: ob.Pair.Base, To: ob.Pair.Commodity, Fee: retained},
		)
	}
	return out, nil
}
