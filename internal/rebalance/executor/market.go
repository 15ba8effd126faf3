package executor

import (
	"context"
	"fmt"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/mExOms/rebalancer/internal/rebalance/validator"
	"github.com/sirupsen/logrus"
)

// MaxMarketAttempts bounds retries per order before the executor skips it
// and moves on, matching the original's fixed 10-attempt ceiling.
const MaxMarketAttempts = 10

// MarketExecutor places a topologically-sorted batch of market orders,
// retrying each up to MaxMarketAttempts times before skipping it and
// continuing — a single failing pair must not block the rest of the
// rebalance. It never persists Statistics itself; that is the host's job.
type MarketExecutor struct {
	Exchange Exchange
	Log      *logrus.Entry
}

func NewMarketExecutor(exchange Exchange, log *logrus.Entry) *MarketExecutor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MarketExecutor{Exchange: exchange, Log: log.WithField("component", "market_executor")}
}

// Run executes orders in the given order, returning one Statistics record
// per order that was ultimately placed (skipped orders contribute nothing).
func (e *MarketExecutor) Run(ctx context.Context, orders []model.Order, prices model.PriceEstimates) ([]model.Statistics, error) {
	rules, err := e.Exchange.GetExchangeRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("get exchange rules: %w", err)
	}
	balances, err := e.Exchange.GetBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}

	var stats []model.Statistics

	for _, order := range orders {
		log := e.Log.WithField("pair", order.Pair.String())

		books, err := e.Exchange.GetOrderBooks(ctx, []model.Pair{order.Pair})
		var midPrice float64
		if err == nil && len(books) == 1 {
			if mid, merr := books[0].Mid(); merr == nil {
				midPrice, _ = mid.Float64()
			}
		}

		// Orders later in a topologically-sorted batch are funded by the
		// proceeds of earlier ones, so validate against balances as tracked
		// through this run's own fills, not the pre-rebalance snapshot.
		validated, verr := validator.Validate(order, rules[order.Pair], balances, prices)
		if verr != nil {
			log.WithError(verr).Warn("order failed validation, skipping")
			continue
		}
		if validated == nil {
			log.Warn("order rejected by validator against current balances, skipping")
			continue
		}
		order = *validated

		var result *ExecutionResult
		for attempt := 0; attempt < MaxMarketAttempts; attempt++ {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			default:
			}

			result, err = e.Exchange.PlaceMarketOrder(ctx, order, prices)
			if err == nil {
				break
			}
			if _, retryable := err.(*RetryableError); !retryable {
				log.WithError(err).Warn("market order failed fatally, skipping")
				result = nil
				break
			}
			log.WithError(err).WithField("attempt", attempt+1).Warn("market order attempt failed, retrying")
		}

		if result == nil {
			log.Warn("market order exhausted retries or failed fatally, skipping")
			continue
		}

		applyFill(balances, order, result)
		stats = append(stats, toStatistics(order, result, midPrice))
	}

	return stats, nil
}

// applyFill updates the locally-tracked balance map after an order executes,
// so the next order in a chained batch validates against post-fill balances
// instead of the balances fetched at the start of the run.
func applyFill(balances model.Balances, order model.Order, result *ExecutionResult) {
	cost := result.ExecutedQuantity.Mul(result.MeanPrice)
	switch order.Side {
	case model.SELL:
		balances[order.Pair.Commodity] = balances.Get(order.Pair.Commodity).Sub(result.ExecutedQuantity)
		balances[order.Pair.Base] = balances.Get(order.Pair.Base).Add(cost)
	case model.BUY:
		balances[order.Pair.Base] = balances.Get(order.Pair.Base).Sub(cost)
		balances[order.Pair.Commodity] = balances.Get(order.Pair.Commodity).Add(result.ExecutedQuantity)
	}
	for asset, fee := range result.Commission {
		balances[asset] = balances.Get(asset).Sub(fee)
	}
}

func toStatistics(order model.Order, result *ExecutionResult, midPrice float64) model.Statistics {
	meanPrice, _ := result.MeanPrice.Float64()
	executed, _ := result.ExecutedQuantity.Float64()

	feeInBase := 0.0
	if fee, ok := result.Commission[order.Pair.Base]; ok {
		feeInBase, _ = fee.Float64()
	}

	action := "sell"
	if order.Side == model.BUY {
		action = "buy"
	}

	return model.Statistics{
		MidMarketPrice:   midPrice,
		AverageExecPrice: meanPrice,
		Volume:           executed,
		Pair:             order.Pair.String(),
		FeeInBase:        feeInBase,
		Action:           action,
	}
}
