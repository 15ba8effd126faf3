// Command rebalance-cli drives a single rebalance pass against a configured
// exchange: load target weights, plan the cheapest set of transfers, validate
// them against live exchange rules and balances, and execute either as market
// orders (fire-and-forget) or limit orders (round-based, price-following).
//
// Grounded on the teacher's cmd/binance-spot/main.go and cmd/oms-server/main.go
// for the viper config / logrus / NATS wiring and signal-based graceful
// shutdown, and on original_source/binance_limit_order.py for the overall
// rebalance-then-report shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/mExOms/rebalancer/internal/exchange"
	"github.com/mExOms/rebalancer/internal/exchange/binancespot"
	"github.com/mExOms/rebalancer/internal/rebalance"
	"github.com/mExOms/rebalancer/internal/rebalance/executor"
	"github.com/mExOms/rebalancer/internal/rebalance/model"
	natsClient "github.com/mExOms/rebalancer/pkg/nats"
	"github.com/mExOms/rebalancer/pkg/storage"
	"github.com/shopspring/decimal"
)

// feeSource is the capability a fee-aware exchange adapter exposes beyond
// executor.Exchange; not every Exchange implementation need support it; see
// resolveFees.
type feeSource interface {
	GetTakerFee(ctx context.Context, pair model.Pair) (decimal.Decimal, error)
	GetMakerFee(ctx context.Context, pair model.Pair) (decimal.Decimal, error)
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	log := logrus.NewEntry(logger)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/configs")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../../configs")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	base := model.Asset(viper.GetString("rebalance.base"))
	if base == "" {
		base = "USDT"
	}
	mode := model.OrderType(viper.GetString("rebalance.mode"))
	if mode != model.MARKET && mode != model.LIMIT {
		mode = model.MARKET
	}
	targetWeights, err := loadTargetWeights(viper.GetStringMap("rebalance.target_weights"))
	if err != nil {
		log.Fatalf("invalid target weights: %v", err)
	}

	exCfg := exchange.LoadConfig()
	ex, err := exchange.BuildExchange(exCfg, log)
	if err != nil {
		log.Fatalf("failed to build exchange adapter: %v", err)
	}

	dataDir := viper.GetString("storage.data_dir")
	if dataDir == "" {
		dataDir = "./data"
	}
	fileStore, err := storage.NewFileStorage(dataDir)
	if err != nil {
		log.Fatalf("failed to open file storage: %v", err)
	}
	defer fileStore.Close()

	retentionDays := viper.GetInt("storage.retention_days")
	if retentionDays == 0 {
		retentionDays = 90
	}
	compressDays := viper.GetInt("storage.compress_days")
	if compressDays == 0 {
		compressDays = 7
	}
	rotator := storage.NewLogRotator(dataDir, retentionDays, compressDays)
	if err := rotator.RotateLogs(); err != nil {
		log.WithError(err).Warn("log rotation failed")
	}
	if err := rotator.CleanOldSnapshots(); err != nil {
		log.WithError(err).Warn("snapshot cleanup failed")
	}

	var nc *natsClient.Client
	if viper.GetString("nats.url") != "" {
		nc, err = natsClient.NewClient(&natsClient.Config{
			URL:      viper.GetString("nats.url"),
			ClientID: "rebalance-cli",
			Streams: []natsClient.StreamConfig{
				{
					Name:     natsClient.StreamRebalance,
					Subjects: natsClient.GetStreamSubjects(natsClient.StreamRebalance),
					MaxAge:   30 * 24 * time.Hour,
				},
			},
		})
		if err != nil {
			log.WithError(err).Warn("failed to connect to NATS, continuing without publication")
			nc = nil
		} else {
			defer nc.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("received shutdown signal, cancelling rebalance")
		cancel()
	}()

	if err := run(ctx, ex, fileStore, nc, log, targetWeights, base, mode); err != nil {
		log.Fatalf("rebalance failed: %v", err)
	}
	log.Info("rebalance complete")
}

func run(ctx context.Context, ex executor.Exchange, fileStore *storage.FileStorage, nc *natsClient.Client, log *logrus.Entry, targetWeights model.Weights, base model.Asset, mode model.OrderType) error {
	pre, err := rebalance.PreRebalance(ctx, ex, targetWeights, binancespot.ThroughTradeCurrencies, base)
	if err != nil {
		return fmt.Errorf("pre-rebalance: %w", err)
	}

	rules, err := ex.GetExchangeRules(ctx)
	if err != nil {
		return fmt.Errorf("get exchange rules: %w", err)
	}
	knownPairs := make(map[model.Pair]struct{}, len(rules))
	for pair := range rules {
		knownPairs[pair] = struct{}{}
	}

	fees, err := resolveFees(ctx, ex, pre.OrderBooks, mode)
	if err != nil {
		return fmt.Errorf("resolve fees: %w", err)
	}
	pairFees, err := rebalance.PairFeesFromMarket(pre.OrderBooks, fees, mode == model.LIMIT)
	if err != nil {
		return fmt.Errorf("compute pair fees: %w", err)
	}

	plan, err := rebalance.BuildPlan(pre.InitialWeights, pre.FinalWeights, pairFees, knownPairs, pre.Prices, pre.PortfolioValue, mode, log)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}
	log.WithFields(logrus.Fields{
		"transfers": len(plan.Transfers),
		"orders":    len(plan.Orders),
		"mode":      mode,
	}).Info("plan built")

	// Each executor validates every order against live exchange rules and
	// balances immediately before submission (see internal/rebalance/
	// validator and executor), so a chained plan is checked against balances
	// as they actually stand after each fill rather than the pre-rebalance
	// snapshot here.
	var stats []model.Statistics
	switch mode {
	case model.LIMIT:
		le := executor.NewLimitExecutor(ex, executor.DefaultLimitExecutorConfig(), log)
		stats, err = le.Run(ctx, plan.Orders, func(remainingMillis int64) {
			log.WithField("estimated_remaining_ms", remainingMillis).Info("limit round complete")
		})
	default:
		me := executor.NewMarketExecutor(ex, log)
		stats, err = me.Run(ctx, plan.Orders, pre.Prices)
	}
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	for _, s := range stats {
		if err := fileStore.LogStatistics(s); err != nil {
			log.WithError(err).Warn("failed to persist statistics record")
		}
		if nc != nil {
			if err := nc.PublishStatistics(s.Pair, s.Action, s); err != nil {
				log.WithError(err).Warn("failed to publish statistics record")
			}
		}
	}
	return nil
}

// resolveFees builds a flat taker/maker fee map covering every pair in books.
// When the exchange adapter doesn't expose per-pair fees (feeSource), it
// falls back to the adapter's own documented flat default.
func resolveFees(ctx context.Context, ex executor.Exchange, books []model.OrderBook, mode model.OrderType) (map[model.Pair]decimal.Decimal, error) {
	fees := make(map[model.Pair]decimal.Decimal, len(books))
	fs, ok := ex.(feeSource)
	for _, ob := range books {
		if !ok {
			fees[ob.Pair] = binancespot.DefaultTakerFee
			continue
		}
		var fee decimal.Decimal
		var err error
		if mode == model.LIMIT {
			fee, err = fs.GetMakerFee(ctx, ob.Pair)
		} else {
			fee, err = fs.GetTakerFee(ctx, ob.Pair)
		}
		if err != nil {
			return nil, fmt.Errorf("fee for %s: %w", ob.Pair, err)
		}
		fees[ob.Pair] = fee
	}
	return fees, nil
}

// loadTargetWeights converts viper's generic map (string keys, numeric or
// string values) into a model.Weights keyed by asset.
func loadTargetWeights(raw map[string]interface{}) (model.Weights, error) {
	weights := make(model.Weights, len(raw))
	for asset, v := range raw {
		var d decimal.Decimal
		switch val := v.(type) {
		case string:
			parsed, err := decimal.NewFromString(val)
			if err != nil {
				return nil, fmt.Errorf("weight for %s: %w", asset, err)
			}
			d = parsed
		case float64:
			d = decimal.NewFromFloat(val)
		case int:
			d = decimal.NewFromInt(int64(val))
		default:
			return nil, fmt.Errorf("weight for %s: unsupported type %T", asset, v)
		}
		weights[model.Asset(asset)] = d
	}
	return weights, nil
}
