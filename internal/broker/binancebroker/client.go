package binancebroker

import (
	"context"

	"github.com/adshao/go-binance/v2"
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// ListOpenOrdersService interface for listing open orders.
type ListOpenOrdersService interface {
	Do(ctx context.Context) ([]*binance.Order, error)
}

// CancelOrderService interface for canceling orders.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// ListOrdersService interface for listing historical orders of one symbol.
type ListOrdersService interface {
	Symbol(symbol string) ListOrdersService
	StartTime(startTime int64) ListOrdersService
	EndTime(endTime int64) ListOrdersService
	Do(ctx context.Context) ([]*binance.Order, error)
}

// ListTradesService interface for listing account trades.
type ListTradesService interface {
	Symbol(symbol string) ListTradesService
	StartTime(startTime int64) ListTradesService
	EndTime(endTime int64) ListTradesService
	Do(ctx context.Context) ([]*binance.TradeV3, error)
}

// ExchangeInfoService interface for symbol metadata.
type ExchangeInfoService interface {
	Symbol(symbol string) ExchangeInfoService
	Do(ctx context.Context) (*binance.ExchangeInfo, error)
}

// BinanceClient interface abstracts the Binance REST client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewListOpenOrdersService() ListOpenOrdersService
	NewCancelOrderService() CancelOrderService
	NewListOrdersService() ListOrdersService
	NewListTradesService() ListTradesService
	NewExchangeInfoService() ExchangeInfoService
}

// WebSocketService abstracts the Binance kline stream for testing.
type WebSocketService interface {
	WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewListOpenOrdersService() ListOpenOrdersService {
	return &realListOpenOrdersService{service: r.client.NewListOpenOrdersService()}
}

func (r *realBinanceClient) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceClient) NewListOrdersService() ListOrdersService {
	return &realListOrdersService{service: r.client.NewListOrdersService()}
}

func (r *realBinanceClient) NewListTradesService() ListTradesService {
	return &realListTradesService{service: r.client.NewListTradesService()}
}

func (r *realBinanceClient) NewExchangeInfoService() ExchangeInfoService {
	return &realExchangeInfoService{service: r.client.NewExchangeInfoService()}
}

// realWebSocketService forwards to the package-level Binance stream helpers.
type realWebSocketService struct{}

func (realWebSocketService) WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

// Real service wrappers

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListOpenOrdersService struct {
	service *binance.ListOpenOrdersService
}

func (s *realListOpenOrdersService) Do(ctx context.Context) ([]*binance.Order, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realListOrdersService struct {
	service *binance.ListOrdersService
}

func (s *realListOrdersService) Symbol(symbol string) ListOrdersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListOrdersService) StartTime(startTime int64) ListOrdersService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *realListOrdersService) EndTime(endTime int64) ListOrdersService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *realListOrdersService) Do(ctx context.Context) ([]*binance.Order, error) {
	return s.service.Do(ctx)
}

type realListTradesService struct {
	service *binance.ListTradesService
}

func (s *realListTradesService) Symbol(symbol string) ListTradesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListTradesService) StartTime(startTime int64) ListTradesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *realListTradesService) EndTime(endTime int64) ListTradesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *realListTradesService) Do(ctx context.Context) ([]*binance.TradeV3, error) {
	return s.service.Do(ctx)
}

type realExchangeInfoService struct {
	service *binance.ExchangeInfoService
}

func (s *realExchangeInfoService) Symbol(symbol string) ExchangeInfoService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return s.service.Do(ctx)
}
