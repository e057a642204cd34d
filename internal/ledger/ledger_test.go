package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/store/memory"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/mocks"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type LedgerTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	broker *mocks.MockBroker
	store  *memory.Store
	ledger *Ledger
	now    time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.broker = mocks.NewMockBroker(suite.ctrl)
	suite.store = memory.New()
	suite.now = time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	suite.ledger = New(Config{BrokerTimeout: time.Second}, suite.store, suite.broker, nil, logger.NewNopLogger())
	suite.ledger.now = func() time.Time { return suite.now }
}

func (suite *LedgerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *LedgerTestSuite) doneOperation(id string) types.Operation {
	return types.Operation{
		ID:            id,
		Instrument:    "BBG000B9XRY4",
		Side:          types.SideBuy,
		Status:        types.OrderStatusDone,
		RequestedLots: 2,
		ExecutedLots:  2,
		Price:         decimal.RequireFromString("100.5"),
		Commission:    decimal.RequireFromString("0.11"),
		Payment:       decimal.RequireFromString("-2010"),
		Currency:      "usd",
		Trades: []types.Trade{
			{TradeID: "t1", Date: suite.now, Quantity: 20, Price: decimal.RequireFromString("100.5")},
		},
		Date: suite.now,
	}
}

func (suite *LedgerTestSuite) placed(brokerID string) types.Order {
	order, err := suite.ledger.CreateFromPlacement(context.Background(), "robot-1", "BBG000B9XRY4", types.SideBuy,
		decimal.RequireFromString("100.5"), types.OrderResult{
			BrokerOrderID: brokerID,
			Status:        types.OrderStatusNew,
			RequestedLots: 2,
			ExecutedLots:  0,
			Commission:    decimal.Zero,
		})
	suite.Require().NoError(err)

	return order
}

func (suite *LedgerTestSuite) TestCreateFromPlacement() {
	order := suite.placed("b-1")

	suite.NotEmpty(order.ID)
	suite.Equal([]string{"robot-1"}, order.Collections)
	suite.Equal(types.OrderStatusNew, order.Status)
	suite.True(order.RequestedPrice.Equal(decimal.RequireFromString("100.5")))
	suite.False(order.IsSynced)

	stored, err := suite.store.FindOrderByBrokerID(context.Background(), "b-1")
	suite.Require().NoError(err)
	suite.Equal(order.ID, stored.ID)
}

func (suite *LedgerTestSuite) TestCreateFromPlacementRejectsEmptyBrokerID() {
	_, err := suite.ledger.CreateFromPlacement(context.Background(), "robot-1", "BBG000B9XRY4", types.SideBuy,
		decimal.NewFromInt(100), types.OrderResult{Status: types.OrderStatusNew, RequestedLots: 1})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
}

func (suite *LedgerTestSuite) TestFindOrCreateReturnsExisting() {
	order := suite.placed("b-1")

	found, err := suite.ledger.FindOrCreate(context.Background(), "b-1", suite.now)
	suite.Require().NoError(err)
	suite.Equal(order.ID, found.ID)
}

func (suite *LedgerTestSuite) TestFindOrCreateImportsFromHistory() {
	op := suite.doneOperation("b-2")

	suite.broker.EXPECT().
		ListOperations(gomock.Any(), suite.now.Add(-24*time.Hour), suite.now.Add(24*time.Hour), "").
		Return([]types.Operation{suite.doneOperation("other"), op}, nil)

	order, err := suite.ledger.FindOrCreate(context.Background(), "b-2", suite.now)
	suite.Require().NoError(err)
	suite.Equal("b-2", order.BrokerOrderID)
	suite.Equal(types.OrderStatusDone, order.Status)
	suite.True(order.RequestedPrice.IsZero())
	suite.True(order.Commission.IsZero())
	suite.Empty(order.Collections)
}

func (suite *LedgerTestSuite) TestFindOrCreateOperationMissing() {
	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), "").Return(nil, nil)

	_, err := suite.ledger.FindOrCreate(context.Background(), "b-404", suite.now)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOperationNotFound))
}

func (suite *LedgerTestSuite) TestSyncAppliesOperation() {
	order := suite.placed("b-1")
	op := suite.doneOperation("b-1")

	suite.broker.EXPECT().
		ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), "BBG000B9XRY4").
		Return([]types.Operation{op}, nil)

	suite.Require().NoError(suite.ledger.Sync(context.Background(), &order))

	suite.Equal(types.OrderStatusDone, order.Status)
	suite.Equal(int64(2), order.ExecutedLots)
	suite.True(order.Commission.Equal(decimal.RequireFromString("0.11")))
	suite.True(order.IsSynced)

	stored, err := suite.store.GetOrder(context.Background(), order.ID)
	suite.Require().NoError(err)
	suite.True(stored.IsSynced)
	suite.Len(stored.Trades, 1)
}

func (suite *LedgerTestSuite) TestSyncKeepsPriceWhenOperationPriceIsZero() {
	order := suite.placed("b-1")
	op := suite.doneOperation("b-1")
	op.Price = decimal.Zero
	op.Payment = decimal.Zero

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]types.Operation{op}, nil)

	suite.Require().NoError(suite.ledger.Sync(context.Background(), &order))
	suite.True(order.Price.Equal(decimal.RequireFromString("100.5")))
	// payment has not arrived yet
	suite.False(order.IsSynced)
}

func (suite *LedgerTestSuite) TestSyncMissingOperationLeavesOrder() {
	order := suite.placed("b-1")
	before := order

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	suite.Require().NoError(suite.ledger.Sync(context.Background(), &order))
	suite.Equal(before, order)
}

func (suite *LedgerTestSuite) TestSyncDeclinedIsSynced() {
	order := suite.placed("b-1")
	op := suite.doneOperation("b-1")
	op.Status = types.OrderStatusDecline
	op.ExecutedLots = 0
	op.Commission = decimal.Zero
	op.Payment = decimal.Zero
	op.Trades = nil

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]types.Operation{op}, nil)

	suite.Require().NoError(suite.ledger.Sync(context.Background(), &order))
	suite.True(order.IsSynced)
}

func (suite *LedgerTestSuite) TestSyncBrokerError() {
	order := suite.placed("b-1")

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New(errors.ErrCodeBrokerUnavailable, "down"))

	err := suite.ledger.Sync(context.Background(), &order)
	suite.Error(err)
	suite.True(errors.IsTransient(err))
}

func (suite *LedgerTestSuite) TestCancel() {
	order := suite.placed("b-1")
	op := suite.doneOperation("b-1")
	op.Status = types.OrderStatusDecline
	op.ExecutedLots = 0

	gomock.InOrder(
		suite.broker.EXPECT().CancelOrder(gomock.Any(), "b-1").Return(nil),
		suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]types.Operation{op}, nil),
	)

	suite.Require().NoError(suite.ledger.Cancel(context.Background(), &order))
	suite.Equal(types.OrderStatusDecline, order.Status)
}

func (suite *LedgerTestSuite) TestCancelFailureSkipsSync() {
	order := suite.placed("b-1")

	suite.broker.EXPECT().CancelOrder(gomock.Any(), "b-1").
		Return(errors.New(errors.ErrCodeCancelFailed, "rejected"))

	err := suite.ledger.Cancel(context.Background(), &order)
	suite.True(errors.HasCode(err, errors.ErrCodeCancelFailed))
}

func (suite *LedgerTestSuite) TestCheckPayments() {
	ctx := context.Background()

	order := suite.placed("b-1")
	order.Status = types.OrderStatusDone
	suite.Require().NoError(suite.store.SaveOrder(ctx, &order))

	unlucky := suite.placed("b-2")
	unlucky.Status = types.OrderStatusDone
	suite.Require().NoError(suite.store.SaveOrder(ctx, &unlucky))

	// Still open, so not a payment candidate.
	suite.placed("b-3")

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]types.Operation{suite.doneOperation("b-1")}, nil).Times(2)

	synced, err := suite.ledger.CheckPayments(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, synced)

	pending, err := suite.ledger.List(ctx, storeUnsyncedDone())
	suite.Require().NoError(err)
	suite.Len(pending, 1)
	suite.Equal("b-2", pending[0].BrokerOrderID)
}

func (suite *LedgerTestSuite) TestCheckPaymentsSettlesOrderFilledAtPlacement() {
	ctx := context.Background()

	filled, err := suite.ledger.CreateFromPlacement(ctx, "robot-1", "BBG000B9XRY4", types.SideBuy,
		decimal.RequireFromString("100.5"), types.OrderResult{
			BrokerOrderID: "b-1",
			Status:        types.OrderStatusFill,
			RequestedLots: 2,
			ExecutedLots:  2,
			Commission:    decimal.Zero,
		})
	suite.Require().NoError(err)

	// Cancelled before any execution, so there is nothing to settle.
	untouched := suite.placed("b-2")
	untouched.Status = types.OrderStatusCancelled
	suite.Require().NoError(suite.store.SaveOrder(ctx, &untouched))

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]types.Operation{suite.doneOperation("b-1")}, nil).Times(1)

	synced, err := suite.ledger.CheckPayments(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, synced)

	stored, err := suite.store.GetOrder(ctx, filled.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusDone, stored.Status)
	suite.True(stored.IsSynced)
	suite.True(stored.Payment.Equal(decimal.RequireFromString("-2010")))

	cancelled, err := suite.store.GetOrder(ctx, untouched.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusCancelled, cancelled.Status)
	suite.False(cancelled.IsSynced)
}

func (suite *LedgerTestSuite) TestCheckPaymentsSettlesPartlyExecutedCancelledOrder() {
	ctx := context.Background()

	order := suite.placed("b-1")
	order.Status = types.OrderStatusCancelled
	order.ExecutedLots = 1
	suite.Require().NoError(suite.store.SaveOrder(ctx, &order))

	op := suite.doneOperation("b-1")
	op.Status = types.OrderStatusCancelled
	op.ExecutedLots = 1

	suite.broker.EXPECT().ListOperations(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]types.Operation{op}, nil)

	synced, err := suite.ledger.CheckPayments(ctx)
	suite.Require().NoError(err)
	suite.Equal(1, synced)

	stored, err := suite.store.GetOrder(ctx, order.ID)
	suite.Require().NoError(err)
	suite.Equal(types.OrderStatusCancelled, stored.Status)
	suite.True(stored.IsSynced)
}

func (suite *LedgerTestSuite) TestImportAttributesToRobot() {
	ctx := context.Background()
	existing := suite.placed("b-1")

	from := suite.now.Add(-48 * time.Hour)
	suite.broker.EXPECT().ListOperations(gomock.Any(), from, suite.now, "").
		Return([]types.Operation{suite.doneOperation("b-1"), suite.doneOperation("b-9")}, nil)

	created, err := suite.ledger.Import(ctx, from, suite.now, "", optional.Some("robot-7"))
	suite.Require().NoError(err)
	suite.Equal(1, created)

	stored, err := suite.store.GetOrder(ctx, existing.ID)
	suite.Require().NoError(err)
	suite.ElementsMatch([]string{"robot-1", "robot-7"}, stored.Collections)

	imported, err := suite.store.FindOrderByBrokerID(ctx, "b-9")
	suite.Require().NoError(err)
	suite.Equal([]string{"robot-7"}, imported.Collections)
	suite.True(imported.IsSynced)
	suite.True(imported.Payment.Equal(decimal.RequireFromString("-2010")))
}

func (suite *LedgerTestSuite) TestCollections() {
	ctx := context.Background()
	order := suite.placed("b-1")

	updated, err := suite.ledger.AddCollection(ctx, order.ID, "robot-2")
	suite.Require().NoError(err)
	suite.Equal([]string{"robot-1", "robot-2"}, updated.Collections)

	updated, err = suite.ledger.AddCollection(ctx, order.ID, "robot-2")
	suite.Require().NoError(err)
	suite.Len(updated.Collections, 2)

	updated, err = suite.ledger.RemoveCollection(ctx, order.ID, "robot-1")
	suite.Require().NoError(err)
	suite.Equal([]string{"robot-2"}, updated.Collections)

	_, err = suite.ledger.AddCollection(ctx, "missing", "robot-2")
	suite.True(errors.HasCode(err, errors.ErrCodeOrderNotFound))
}

func (suite *LedgerTestSuite) TestOpenAndDoneOrders() {
	ctx := context.Background()
	suite.placed("b-1")

	sell, err := suite.ledger.CreateFromPlacement(ctx, "robot-1", "BBG000B9XRY4", types.SideSell,
		decimal.NewFromInt(110), types.OrderResult{BrokerOrderID: "b-2", Status: types.OrderStatusPartiallyFill, RequestedLots: 3, ExecutedLots: 1})
	suite.Require().NoError(err)

	done := suite.placed("b-3")
	done.Status = types.OrderStatusDone
	suite.Require().NoError(suite.ledger.Save(ctx, &done))

	filled := suite.placed("b-4")
	filled.Status = types.OrderStatusFill
	filled.ExecutedLots = 2
	suite.Require().NoError(suite.ledger.Save(ctx, &filled))

	open, err := suite.ledger.OpenOrders(ctx, "robot-1", optional.None[types.Side]())
	suite.Require().NoError(err)
	suite.Len(open, 2)

	sells, err := suite.ledger.OpenOrders(ctx, "robot-1", optional.Some(types.SideSell))
	suite.Require().NoError(err)
	suite.Require().Len(sells, 1)
	suite.Equal(sell.ID, sells[0].ID)

	doneOrders, err := suite.ledger.DoneOrders(ctx, "robot-1")
	suite.Require().NoError(err)
	suite.Len(doneOrders, 2)

	other, err := suite.ledger.OpenOrders(ctx, "robot-2", optional.None[types.Side]())
	suite.Require().NoError(err)
	suite.Empty(other)
}

func storeUnsyncedDone() store.OrderFilter {
	return store.OrderFilter{
		Statuses: []types.OrderStatus{types.OrderStatusDone},
		IsSynced: optional.Some(false),
	}
}
