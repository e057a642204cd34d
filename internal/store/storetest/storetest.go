// Package storetest holds a conformance suite shared by the store implementations.
package storetest

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Repository is everything a full store implements.
type Repository interface {
	store.RobotRepository
	store.OrderRepository
	store.StateRepository
}

// RepositorySuite exercises a Repository. NewRepository is called before each test.
type RepositorySuite struct {
	suite.Suite
	NewRepository func() Repository

	repo Repository
	base time.Time
}

func (s *RepositorySuite) SetupTest() {
	s.repo = s.NewRepository()
	s.base = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
}

func (s *RepositorySuite) robot(id, ticker string, tags ...string) *types.Robot {
	return &types.Robot{
		ID:               id,
		Instrument:       "FIGI-" + ticker,
		Ticker:           ticker,
		Name:             ticker + " robot",
		Budget:           decimal.RequireFromString("1000.50"),
		BuyPrice:         decimal.RequireFromString("10.5"),
		SellPrice:        decimal.RequireFromString("11.25"),
		PlaceBuyPrice:    optional.Some(decimal.RequireFromString("10.6")),
		PlaceSellPrice:   optional.None[decimal.Decimal](),
		MinShares:        0,
		MaxShares:        100,
		InitialMinShares: 0,
		InitialMaxShares: 100,
		StartShares:      0,
		Lot:              10,
		Shares:           20,
		Enabled:          true,
		Removed:          false,
		Strategy:         types.StrategyPlain,
		Tags:             tags,
		CreatedAt:        s.base,
		UpdatedAt:        s.base,
	}
}

func (s *RepositorySuite) order(id, brokerID string, status types.OrderStatus, created time.Time, robots ...string) *types.Order {
	return &types.Order{
		ID:             id,
		BrokerOrderID:  brokerID,
		Instrument:     "FIGI-AAPL",
		Side:           types.SideBuy,
		Status:         status,
		RequestedLots:  3,
		ExecutedLots:   1,
		RequestedPrice: decimal.RequireFromString("10.5"),
		Price:          decimal.RequireFromString("10.49"),
		Commission:     decimal.RequireFromString("0.06"),
		Payment:        decimal.RequireFromString("-104.9"),
		Currency:       "usd",
		Trades: []types.Trade{
			{TradeID: "t1", Date: created, Quantity: 10, Price: decimal.RequireFromString("10.49")},
		},
		Collections: robots,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func (s *RepositorySuite) TestRobotRoundTrip() {
	ctx := context.Background()
	robot := s.robot("r1", "AAPL", "tech")

	s.Require().NoError(s.repo.CreateRobot(ctx, robot))

	got, err := s.repo.GetRobot(ctx, "r1")
	s.Require().NoError(err)
	s.Equal("AAPL", got.Ticker)
	s.True(got.Budget.Equal(robot.Budget))
	s.True(got.PlaceBuyPrice.IsSome())
	s.True(got.PlaceBuyPrice.Unwrap().Equal(decimal.RequireFromString("10.6")))
	s.True(got.PlaceSellPrice.IsNone())
	s.Equal([]string{"tech"}, got.Tags)
	s.True(got.CreatedAt.Equal(s.base))

	got.Shares = 40
	got.Enabled = false
	s.Require().NoError(s.repo.SaveRobot(ctx, &got))

	again, err := s.repo.GetRobot(ctx, "r1")
	s.Require().NoError(err)
	s.Equal(int64(40), again.Shares)
	s.False(again.Enabled)
}

func (s *RepositorySuite) TestRobotNotFound() {
	ctx := context.Background()

	_, err := s.repo.GetRobot(ctx, "missing")
	s.True(errors.HasCode(err, errors.ErrCodeRobotNotFound))

	err = s.repo.SaveRobot(ctx, s.robot("missing", "X"))
	s.True(errors.HasCode(err, errors.ErrCodeRobotNotFound))
}

func (s *RepositorySuite) TestListRobotsFilters() {
	ctx := context.Background()
	a := s.robot("a", "AAPL", "tech")
	b := s.robot("b", "SBER", "bank")
	b.Enabled = false
	c := s.robot("c", "AAPL")
	c.Removed = true
	c.Enabled = false

	for _, r := range []*types.Robot{a, b, c} {
		s.Require().NoError(s.repo.CreateRobot(ctx, r))
	}

	all, err := s.repo.ListRobots(ctx, store.RobotFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	withRemoved, err := s.repo.ListRobots(ctx, store.RobotFilter{IncludeRemoved: true})
	s.Require().NoError(err)
	s.Len(withRemoved, 3)

	byTag, err := s.repo.ListRobots(ctx, store.RobotFilter{Tag: optional.Some("bank")})
	s.Require().NoError(err)
	s.Len(byTag, 1)
	s.Equal("b", byTag[0].ID)

	enabled, err := s.repo.ListRobots(ctx, store.RobotFilter{Enabled: optional.Some(true)})
	s.Require().NoError(err)
	s.Len(enabled, 1)
	s.Equal("a", enabled[0].ID)

	byTicker, err := s.repo.ListRobots(ctx, store.RobotFilter{Ticker: optional.Some("AAPL"), IncludeRemoved: true})
	s.Require().NoError(err)
	s.Len(byTicker, 2)
}

func (s *RepositorySuite) TestOrderRoundTrip() {
	ctx := context.Background()
	order := s.order("o1", "b1", types.OrderStatusNew, s.base, "r1")

	s.Require().NoError(s.repo.CreateOrder(ctx, order))

	got, err := s.repo.FindOrderByBrokerID(ctx, "b1")
	s.Require().NoError(err)
	s.Equal("o1", got.ID)
	s.Equal([]string{"r1"}, got.Collections)
	s.Len(got.Trades, 1)
	s.True(got.Payment.Equal(decimal.RequireFromString("-104.9")))

	got.AddCollection("r2")
	got.ExecutedLots = 3
	got.Status = types.OrderStatusDone
	s.Require().NoError(s.repo.SaveOrder(ctx, &got))

	again, err := s.repo.GetOrder(ctx, "o1")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"r1", "r2"}, again.Collections)
	s.Equal(types.OrderStatusDone, again.Status)
	s.Equal(int64(3), again.ExecutedLots)
}

func (s *RepositorySuite) TestOrderDuplicateBrokerID() {
	ctx := context.Background()

	s.Require().NoError(s.repo.CreateOrder(ctx, s.order("o1", "b1", types.OrderStatusNew, s.base)))

	err := s.repo.CreateOrder(ctx, s.order("o2", "b1", types.OrderStatusNew, s.base))
	s.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
}

func (s *RepositorySuite) TestOrderNotFound() {
	ctx := context.Background()

	_, err := s.repo.GetOrder(ctx, "nope")
	s.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))

	_, err = s.repo.FindOrderByBrokerID(ctx, "nope")
	s.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))

	err = s.repo.SaveOrder(ctx, s.order("nope", "nope", types.OrderStatusNew, s.base))
	s.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (s *RepositorySuite) TestListOrdersFilters() {
	ctx := context.Background()

	orders := []*types.Order{
		s.order("o1", "b1", types.OrderStatusNew, s.base, "r1"),
		s.order("o2", "b2", types.OrderStatusDone, s.base.Add(time.Hour), "r1", "r2"),
		s.order("o3", "b3", types.OrderStatusPartiallyFill, s.base.Add(2*time.Hour), "r2"),
	}
	orders[2].Side = types.SideSell

	for _, o := range orders {
		s.Require().NoError(s.repo.CreateOrder(ctx, o))
	}

	byRobot, err := s.repo.ListOrders(ctx, store.OrderFilter{RobotID: optional.Some("r1")})
	s.Require().NoError(err)
	s.Len(byRobot, 2)
	s.Equal("o1", byRobot[0].ID)
	s.Equal("o2", byRobot[1].ID)

	open, err := s.repo.ListOrders(ctx, store.OrderFilter{Statuses: store.OpenStatuses})
	s.Require().NoError(err)
	s.Len(open, 2)

	sells, err := s.repo.ListOrders(ctx, store.OrderFilter{Side: optional.Some(types.SideSell)})
	s.Require().NoError(err)
	s.Len(sells, 1)
	s.Equal("o3", sells[0].ID)

	window, err := s.repo.ListOrders(ctx, store.OrderFilter{
		From: optional.Some(s.base.Add(30 * time.Minute)),
		To:   optional.Some(s.base.Add(2 * time.Hour)),
	})
	s.Require().NoError(err)
	s.Len(window, 1)
	s.Equal("o2", window[0].ID)

	unsynced, err := s.repo.ListOrders(ctx, store.OrderFilter{IsSynced: optional.Some(false), Instrument: optional.Some("FIGI-AAPL")})
	s.Require().NoError(err)
	s.Len(unsynced, 3)
}

func (s *RepositorySuite) TestRunState() {
	ctx := context.Background()

	_, err := s.repo.GetRunState(ctx)
	s.True(errors.HasCode(err, errors.ErrCodeRunStateNotFound))

	s.Require().NoError(s.repo.SaveRunState(ctx, types.RunState{IsRunning: true, UpdatedAt: s.base}))
	s.Require().NoError(s.repo.SaveRunState(ctx, types.RunState{IsRunning: false, UpdatedAt: s.base.Add(time.Minute)}))

	state, err := s.repo.GetRunState(ctx)
	s.Require().NoError(err)
	s.False(state.IsRunning)
	s.True(state.UpdatedAt.Equal(s.base.Add(time.Minute)))
}
