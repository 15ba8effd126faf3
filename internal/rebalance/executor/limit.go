package executor

import (
	"context"
	"sync"
	"time"

	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/mExOms/rebalancer/internal/rebalance/validator"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// partialFillThreshold is the minimum unfilled remainder (in quantity units)
// that counts as a genuine partial fill rather than noise/rounding.
var partialFillThreshold = decimal.RequireFromString("0.001")

// LimitExecutorConfig controls the round-based loop's pacing.
type LimitExecutorConfig struct {
	MaxRetries int           // per-pair retry ceiling
	TimeDelta  time.Duration // wait between placement and reconciliation each round
}

// DefaultLimitExecutorConfig matches the original's max_retries=10, time_delta=30s.
func DefaultLimitExecutorConfig() LimitExecutorConfig {
	return LimitExecutorConfig{MaxRetries: 10, TimeDelta: 30 * time.Second}
}

// ProgressFunc receives an estimated time remaining (milliseconds) once per
// round, after that round's placements and before its wait.
type ProgressFunc func(estimatedMillisRemaining int64)

// LimitExecutor places price-seeded limit orders in rounds: each round fans
// out eligible placements concurrently (grounded on the teacher's
// sync.WaitGroup worker-pool idiom, internal/router/execution_engine.go),
// waits, then cancels and reconciles strictly sequentially before starting
// the next round.
type LimitExecutor struct {
	Exchange Exchange
	Config   LimitExecutorConfig
	Log      *logrus.Entry
}

func NewLimitExecutor(exchange Exchange, cfg LimitExecutorConfig, log *logrus.Entry) *LimitExecutor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LimitExecutor{Exchange: exchange, Config: cfg, Log: log.WithField("component", "limit_executor")}
}

type pendingOrder struct {
	order   model.Order
	retries int
}

// Run drives orders to completion or exhaustion, reporting progress via
// onProgress (may be nil), and returns one Statistics record for every
// placed order reconciled in every round, including zero-fill rounds.
func (e *LimitExecutor) Run(ctx context.Context, orders []model.Order, onProgress ProgressFunc) ([]model.Statistics, error) {
	pending := make([]*pendingOrder, 0, len(orders))
	for _, o := range orders {
		pending = append(pending, &pendingOrder{order: o})
	}

	rules, err := e.Exchange.GetExchangeRules(ctx)
	if err != nil {
		return nil, err
	}

	var stats []model.Statistics

	for len(pending) > 0 && !allExceeded(pending, e.Config.MaxRetries) {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		pairs := uniquePairs(pending)
		books, err := e.Exchange.GetOrderBooks(ctx, pairs)
		if err != nil {
			return stats, err
		}
		midByPair := make(map[model.Pair]decimal.Decimal, len(books))
		for _, ob := range books {
			if mid, merr := ob.Mid(); merr == nil {
				midByPair[ob.Pair] = mid
			}
		}

		balances, err := e.Exchange.GetBalances(ctx)
		if err != nil {
			return stats, err
		}

		currenciesFrom, currenciesTo := partitionCurrencies(pending)
		currenciesFree := subtract(currenciesFrom, currenciesTo)

		type placement struct {
			p      *pendingOrder
			handle *LimitOrderHandle
		}
		var placements []placement
		var mu sync.Mutex
		var wg sync.WaitGroup

		eligible := make([]*pendingOrder, 0, len(pending))
		for _, p := range pending {
			if p.retries > e.Config.MaxRetries {
				continue
			}
			mid, ok := midByPair[p.order.Pair]
			if !ok {
				continue
			}
			p.order.Price = mid
			if !feasible(p.order, currenciesFree, balances, mid) {
				continue
			}
			validated, verr := validator.Validate(p.order, rules[p.order.Pair], balances, model.PriceEstimates{})
			if verr != nil {
				p.retries = e.Config.MaxRetries + 1 // malformed order, not worth retrying
				continue
			}
			if validated == nil {
				continue
			}
			p.order = *validated
			eligible = append(eligible, p)
		}

		for _, p := range eligible {
			wg.Add(1)
			go func(p *pendingOrder) {
				defer wg.Done()
				handle, err := e.Exchange.PlaceLimitOrder(ctx, p.order)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if _, retryable := err.(*RetryableError); retryable {
						p.retries++
					} else {
						p.retries = e.Config.MaxRetries + 1 // fatal: drop on next sweep
					}
					return
				}
				if handle == nil {
					// filter-rejected at submission time, nothing resting to reconcile
					p.retries = e.Config.MaxRetries + 1
					return
				}
				placements = append(placements, placement{p: p, handle: handle})
			}(p)
		}
		wg.Wait()

		if onProgress != nil {
			onProgress(timeEstimateMillis(pending, e.Config))
		}

		select {
		case <-time.After(e.Config.TimeDelta):
		case <-ctx.Done():
			return stats, ctx.Err()
		}

		// Cancel and reconcile strictly sequentially: correctness here does
		// not depend on concurrency, only on running after every placement
		// in this round has settled.
		for _, pl := range placements {
			_ = e.Exchange.CancelOrder(ctx, *pl.handle)
			status, err := e.Exchange.GetOrder(ctx, *pl.handle)
			if err != nil {
				pl.p.retries = e.Config.MaxRetries + 1
				continue
			}

			executed, _ := status.ExecutedQuantity.Float64()
			mean, _ := status.MeanPrice.Float64()
			feeInBase := 0.0
			if fee, ok := status.Commission[pl.p.order.Pair.Base]; ok {
				feeInBase, _ = fee.Float64()
			}
			action := "sell"
			if pl.p.order.Side == model.BUY {
				action = "buy"
			}
			midF, _ := midByPair[pl.p.order.Pair].Float64()
			stats = append(stats, model.Statistics{
				MidMarketPrice:   midF,
				AverageExecPrice: mean,
				Volume:           executed,
				Pair:             pl.p.order.Pair.String(),
				FeeInBase:        feeInBase,
				Action:           action,
			})

			remainder := status.OrigQuantity.Sub(status.ExecutedQuantity)
			if remainder.GreaterThan(partialFillThreshold) {
				// The exchange-reported remainder is not generally stepSize
				// aligned; re-validate before queueing it for the next round
				// instead of carrying an invalid quantity forward.
				candidate := pl.p.order
				candidate.Quantity = remainder
				validated, verr := validator.Validate(candidate, rules[candidate.Pair], balances, model.PriceEstimates{})
				if verr != nil || validated == nil {
					pl.p.retries = e.Config.MaxRetries + 1
				} else {
					pl.p.order = *validated
					pl.p.retries++
				}
			} else {
				pl.p.retries = e.Config.MaxRetries + 1
			}
		}

		pending = removeExceeded(pending, e.Config.MaxRetries)
	}

	return stats, nil
}

func allExceeded(pending []*pendingOrder, maxRetries int) bool {
	for _, p := range pending {
		if p.retries <= maxRetries {
			return false
		}
	}
	return true
}

func removeExceeded(pending []*pendingOrder, maxRetries int) []*pendingOrder {
	out := pending[:0]
	for _, p := range pending {
		if p.retries <= maxRetries {
			out = append(out, p)
		}
	}
	return out
}

func uniquePairs(pending []*pendingOrder) []model.Pair {
	seen := make(map[model.Pair]struct{})
	var pairs []model.Pair
	for _, p := range pending {
		if _, ok := seen[p.order.Pair]; !ok {
			seen[p.order.Pair] = struct{}{}
			pairs = append(pairs, p.order.Pair)
		}
	}
	return pairs
}

func partitionCurrencies(pending []*pendingOrder) (from, to map[model.Asset]struct{}) {
	from = make(map[model.Asset]struct{})
	to = make(map[model.Asset]struct{})
	for _, p := range pending {
		if p.order.Side == model.SELL {
			from[p.order.Pair.Commodity] = struct{}{}
			to[p.order.Pair.Base] = struct{}{}
		} else {
			from[p.order.Pair.Base] = struct{}{}
			to[p.order.Pair.Commodity] = struct{}{}
		}
	}
	return from, to
}

func subtract(a, b map[model.Asset]struct{}) map[model.Asset]struct{} {
	out := make(map[model.Asset]struct{})
	for k := range a {
		if _, in := b[k]; !in {
			out[k] = struct{}{}
		}
	}
	return out
}

// feasible gates an order by available balances and free currencies: an
// order is allowed this round only if its required currency is not also
// being bought by another pending order, or we already hold enough of it.
func feasible(order model.Order, free map[model.Asset]struct{}, balances model.Balances, price decimal.Decimal) bool {
	if order.Side == model.SELL {
		if _, ok := free[order.Pair.Commodity]; ok {
			return true
		}
		return balances.Get(order.Pair.Commodity).GreaterThanOrEqual(order.Quantity)
	}
	if _, ok := free[order.Pair.Base]; ok {
		return true
	}
	required := order.Quantity.Mul(price)
	return balances.Get(order.Pair.Base).GreaterThanOrEqual(required)
}

func timeEstimateMillis(pending []*pendingOrder, cfg LimitExecutorConfig) int64 {
	if len(pending) == 0 {
		return 0
	}
	sum := 0
	for _, p := range pending {
		remaining := cfg.MaxRetries - p.retries
		if remaining > 0 {
			sum += remaining
		}
	}
	mean := float64(sum) / float64(len(pending))
	return int64(mean * float64(cfg.TimeDelta.Seconds()) * 3 * 1000)
}
