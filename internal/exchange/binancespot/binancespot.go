// Package binancespot adapts github.com/adshao/go-binance/v2 to the
// executor.Exchange capability interface the rebalancer core depends on.
//
// Grounded on the teacher's services/binance/spot/client.go for the concrete
// go-binance/v2 call shapes, and on original_source/exchange/binance.py for
// the filter-to-rule mapping (commodity = baseAsset, base = quoteAsset) and
// fill aggregation (value-weighted mean price, per-asset commission sums).
package binancespot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/mExOms/rebalancer/internal/rebalance/executor"
	"github.com/mExOms/rebalancer/internal/rebalance/model"
	"github.com/mExOms/rebalancer/pkg/cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ThroughTradeCurrencies are the bridge assets the rebalancer should always
// consider when widening the order-book fetch, matching the original's
// through_trade_currencies().
var ThroughTradeCurrencies = map[model.Asset]struct{}{
	"BTC": {}, "BNB": {}, "ETH": {}, "USDT": {},
}

// DefaultTakerFee and DefaultMakerFee match the original's flat
// Decimal('0.001') fallback when per-symbol fee tiers are unavailable.
var (
	DefaultTakerFee = decimal.RequireFromString("0.001")
	DefaultMakerFee = decimal.RequireFromString("0.001")
)

// restRateLimit and restRateWindow bound REST call volume against this
// process's own account, well under Binance's per-minute weight cap, so a
// mis-sized target-weight config can't hammer the API in a tight loop.
const (
	restRateLimit  = 1100
	restRateWindow = time.Minute
)

// Adapter wraps a go-binance/v2 client as an executor.Exchange.
type Adapter struct {
	client  *binance.Client
	cache   *cache.MemoryCache
	limiter *cache.RateLimiter
	log     *logrus.Entry

	rulesByPair map[model.Pair]model.PairRules
	symbolByPair map[model.Pair]string
}

// New builds an Adapter. When testnet is true, the client's base URL is
// redirected to Binance's public spot testnet.
func New(apiKey, apiSecret string, testnet bool, log *logrus.Entry) *Adapter {
	client := binance.NewClient(apiKey, apiSecret)
	if testnet {
		client.BaseURL = "https://testnet.binance.vision/api"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{
		client:  client,
		cache:   cache.NewMemoryCache(),
		limiter: cache.NewRateLimiter(restRateLimit, restRateWindow),
		log:     log.WithField("component", "binancespot"),
	}
}

// throttle blocks until a REST call slot is free or ctx is done. Binance
// weighs calls per minute per key rather than per endpoint, so every REST
// call shares the adapter's single rate-limit window.
func (a *Adapter) throttle(ctx context.Context) error {
	for !a.limiter.Allow() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (a *Adapter) GetBalances(ctx context.Context) (model.Balances, error) {
	if cached, ok := a.cache.Get("account_balances"); ok {
		return cached.(model.Balances), nil
	}
	if err := a.throttle(ctx); err != nil {
		return nil, err
	}

	account, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binancespot: get account: %w", err)
	}

	balances := make(model.Balances)
	for _, b := range account.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil || !free.IsPositive() {
			continue
		}
		balances[model.Asset(b.Asset)] = free
	}

	a.cache.Set("account_balances", balances, 5*time.Second)
	return balances, nil
}

func (a *Adapter) GetOrderBooks(ctx context.Context, pairs []model.Pair) ([]model.OrderBook, error) {
	if err := a.ensureRules(ctx); err != nil {
		return nil, err
	}
	if err := a.throttle(ctx); err != nil {
		return nil, err
	}

	tickers, err := a.client.NewListBookTickersService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binancespot: list book tickers: %w", err)
	}
	bySymbol := make(map[string]*binance.BookTicker, len(tickers))
	for _, t := range tickers {
		bySymbol[t.Symbol] = t
	}

	wanted := make(map[model.Pair]struct{}, len(pairs))
	for _, p := range pairs {
		wanted[p] = struct{}{}
	}

	var books []model.OrderBook
	for pair, symbol := range a.symbolByPair {
		if _, ok := wanted[pair]; !ok {
			continue
		}
		t, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		bid, err1 := decimal.NewFromString(t.BidPrice)
		ask, err2 := decimal.NewFromString(t.AskPrice)
		if err1 != nil || err2 != nil || !bid.IsPositive() || !ask.IsPositive() {
			continue
		}
		books = append(books, model.NewOrderBookFromBidAsk(pair, bid, ask))
	}
	return books, nil
}

func (a *Adapter) GetExchangeRules(ctx context.Context) (map[model.Pair]model.PairRules, error) {
	if err := a.ensureRules(ctx); err != nil {
		return nil, err
	}
	return a.rulesByPair, nil
}

// ensureRules populates rulesByPair/symbolByPair from exchange info, cached
// for an hour the way the teacher caches GetExchangeInfo.
func (a *Adapter) ensureRules(ctx context.Context) error {
	if a.rulesByPair != nil {
		return nil
	}
	if cached, ok := a.cache.Get("exchange_info"); ok {
		rules := cached.(map[model.Pair]model.PairRules)
		a.rulesByPair = rules
		return nil
	}

	if err := a.throttle(ctx); err != nil {
		return err
	}
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binancespot: get exchange info: %w", err)
	}

	rules := make(map[model.Pair]model.PairRules)
	symbols := make(map[model.Pair]string)
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		// commodity = baseAsset, base = quoteAsset: resolves the original
		// spec's Open Question per exchange/binance.py's filter dict.
		pair := model.Pair{Commodity: model.Asset(s.BaseAsset), Base: model.Asset(s.QuoteAsset)}

		lot := s.LotSizeFilter()
		price := s.PriceFilter()
		notional := s.MinNotionalFilter()
		if lot == nil || price == nil {
			continue
		}
		minSize, _ := decimal.NewFromString(lot.MinQuantity)
		maxSize, _ := decimal.NewFromString(lot.MaxQuantity)
		sizeStep, _ := decimal.NewFromString(lot.StepSize)
		minPrice, _ := decimal.NewFromString(price.MinPrice)
		maxPrice, _ := decimal.NewFromString(price.MaxPrice)
		priceStep, _ := decimal.NewFromString(price.TickSize)
		minNotional := decimal.RequireFromString("10")
		if notional != nil {
			if v, err := decimal.NewFromString(notional.MinNotional); err == nil {
				minNotional = v
			}
		}

		rules[pair] = model.PairRules{
			MinSize:     minSize,
			MaxSize:     maxSize,
			SizeStep:    sizeStep,
			PriceStep:   priceStep,
			MinNotional: minNotional,
			MinPrice:    minPrice,
			MaxPrice:    maxPrice,
		}
		symbols[pair] = s.Symbol
	}

	a.rulesByPair = rules
	a.symbolByPair = symbols
	a.cache.Set("exchange_info", rules, time.Hour)
	return nil
}

func (a *Adapter) GetTakerFee(ctx context.Context, pair model.Pair) (decimal.Decimal, error) {
	return DefaultTakerFee, nil
}

func (a *Adapter) GetMakerFee(ctx context.Context, pair model.Pair) (decimal.Decimal, error) {
	return DefaultMakerFee, nil
}

func (a *Adapter) symbolFor(pair model.Pair) (string, error) {
	if err := a.ensureRules(context.Background()); err != nil {
		return "", err
	}
	symbol, ok := a.symbolByPair[pair]
	if !ok {
		return "", fmt.Errorf("binancespot: unknown pair %s", pair)
	}
	return symbol, nil
}

func (a *Adapter) PlaceMarketOrder(ctx context.Context, order model.Order, prices model.PriceEstimates) (*executor.ExecutionResult, error) {
	symbol, err := a.symbolFor(order.Pair)
	if err != nil {
		return nil, err
	}
	if err := a.throttle(ctx); err != nil {
		return nil, err
	}

	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(order.Side)).
		Type(binance.OrderTypeMarket).
		Quantity(order.Quantity.String()).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, &executor.RetryableError{Err: err}
	}

	return aggregateFills(order.Pair, order.Side, resp), nil
}

// aggregateFills reduces a CreateOrderResponse's fills into a value-weighted
// mean price and per-asset commission sums, matching the original's
// place_market_order response parsing.
func aggregateFills(pair model.Pair, side model.Direction, resp *binance.CreateOrderResponse) *executor.ExecutionResult {
	result := &executor.ExecutionResult{
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		Pair:       pair,
		Side:       side,
		Commission: make(map[model.Asset]decimal.Decimal),
	}

	origQty, _ := decimal.NewFromString(resp.OrigQuantity)
	execQty, _ := decimal.NewFromString(resp.ExecutedQuantity)
	result.OrigQuantity = origQty
	result.ExecutedQuantity = execQty

	var valueSum, qtySum decimal.Decimal
	for _, fill := range resp.Fills {
		price, _ := decimal.NewFromString(fill.Price)
		qty, _ := decimal.NewFromString(fill.Quantity)
		valueSum = valueSum.Add(price.Mul(qty))
		qtySum = qtySum.Add(qty)

		commission, _ := decimal.NewFromString(fill.Commission)
		asset := model.Asset(fill.CommissionAsset)
		result.Commission[asset] = result.Commission[asset].Add(commission)
	}
	if qtySum.IsPositive() {
		result.MeanPrice = valueSum.Div(qtySum)
	}
	return result
}

func (a *Adapter) PlaceLimitOrder(ctx context.Context, order model.Order) (*executor.LimitOrderHandle, error) {
	symbol, err := a.symbolFor(order.Pair)
	if err != nil {
		return nil, err
	}
	if err := a.throttle(ctx); err != nil {
		return nil, err
	}

	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(order.Side)).
		Type(binance.OrderTypeLimitMaker).
		Price(order.Price.String()).
		Quantity(order.Quantity.String()).
		Do(ctx)
	if err != nil {
		return nil, &executor.RetryableError{Err: err}
	}

	return &executor.LimitOrderHandle{OrderID: strconv.FormatInt(resp.OrderID, 10), Pair: order.Pair}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, handle executor.LimitOrderHandle) error {
	symbol, err := a.symbolFor(handle.Pair)
	if err != nil {
		return err
	}
	orderID, err := strconv.ParseInt(handle.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("binancespot: malformed order id %q: %w", handle.OrderID, err)
	}
	if err := a.throttle(ctx); err != nil {
		return err
	}
	_, err = a.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		// Cancelling an already-gone order is treated as success.
		if isUnknownOrder(err) {
			return nil
		}
		return err
	}
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, handle executor.LimitOrderHandle) (*executor.OrderStatus, error) {
	symbol, err := a.symbolFor(handle.Pair)
	if err != nil {
		return nil, err
	}
	orderID, err := strconv.ParseInt(handle.OrderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("binancespot: malformed order id %q: %w", handle.OrderID, err)
	}
	if err := a.throttle(ctx); err != nil {
		return nil, err
	}
	order, err := a.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, err
	}

	origQty, _ := decimal.NewFromString(order.OrigQuantity)
	execQty, _ := decimal.NewFromString(order.ExecutedQuantity)
	price, _ := decimal.NewFromString(order.Price)

	return &executor.OrderStatus{
		OrigQuantity:     origQty,
		ExecutedQuantity: execQty,
		MeanPrice:        price,
		Commission:       map[model.Asset]decimal.Decimal{},
	}, nil
}

func isUnknownOrder(err error) bool {
	apiErr, ok := err.(*binance.APIError)
	return ok && apiErr.Code == -2011 // "Unknown order sent"
}
