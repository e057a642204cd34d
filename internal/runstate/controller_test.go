package runstate

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/mocks"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type fakeSubscriber struct {
	enabled      int
	subscribed   int
	subscribeErr error
}

func (f *fakeSubscriber) SubscribeEnabled(context.Context) (int, error) {
	if f.subscribeErr != nil {
		return 0, f.subscribeErr
	}

	f.subscribed = f.enabled

	return f.enabled, nil
}

func (f *fakeSubscriber) UnsubscribeAll() int {
	n := f.subscribed
	f.subscribed = 0

	return n
}

type ControllerTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	state      *mocks.MockStateRepository
	notifier   *mocks.MockNotifier
	subscriber *fakeSubscriber
	controller *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (suite *ControllerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.state = mocks.NewMockStateRepository(suite.ctrl)
	suite.notifier = mocks.NewMockNotifier(suite.ctrl)
	suite.subscriber = &fakeSubscriber{enabled: 3}
	suite.controller = New(suite.state, suite.subscriber, suite.notifier, logger.NewNopLogger())
}

func (suite *ControllerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *ControllerTestSuite) TestGetCreatesStoppedState() {
	suite.state.EXPECT().GetRunState(gomock.Any()).
		Return(types.RunState{}, errors.New(errors.ErrCodeRunStateNotFound, "missing"))
	suite.state.EXPECT().SaveRunState(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, state types.RunState) error {
			suite.False(state.IsRunning)

			return nil
		})

	running, err := suite.controller.IsRunning(context.Background())
	suite.Require().NoError(err)
	suite.False(running)
}

func (suite *ControllerTestSuite) TestGetPropagatesStoreErrors() {
	suite.state.EXPECT().GetRunState(gomock.Any()).
		Return(types.RunState{}, errors.New(errors.ErrCodeStoreUnavailable, "down"))

	_, err := suite.controller.Get(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeStoreUnavailable))
}

func (suite *ControllerTestSuite) TestRunAndStop() {
	gomock.InOrder(
		suite.state.EXPECT().SaveRunState(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, state types.RunState) error {
				suite.True(state.IsRunning)

				return nil
			}),
		suite.state.EXPECT().SaveRunState(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, state types.RunState) error {
				suite.False(state.IsRunning)

				return nil
			}),
	)
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Run", Message: "3 robots have been started",
	}).Return(nil)
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Stop", Message: "3 robots have been stopped",
	}).Return(errors.New(errors.ErrCodeNotificationFailed, "ignored"))

	state, started, err := suite.controller.Run(context.Background())
	suite.Require().NoError(err)
	suite.True(state.IsRunning)
	suite.Equal(3, started)
	suite.Equal(3, suite.subscriber.subscribed)

	state, err = suite.controller.Stop(context.Background())
	suite.Require().NoError(err)
	suite.False(state.IsRunning)
	suite.Equal(0, suite.subscriber.subscribed)
}

func (suite *ControllerTestSuite) TestRunDoesNotSubscribeWhenSaveFails() {
	suite.state.EXPECT().SaveRunState(gomock.Any(), gomock.Any()).
		Return(errors.New(errors.ErrCodeStoreUnavailable, "down"))

	_, _, err := suite.controller.Run(context.Background())
	suite.Error(err)
	suite.Equal(0, suite.subscriber.subscribed)
}

func (suite *ControllerTestSuite) TestStartupWhenRunning() {
	suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: true}, nil)

	started, err := suite.controller.Startup(context.Background())
	suite.Require().NoError(err)
	suite.Equal(3, started)
}

func (suite *ControllerTestSuite) TestStartupWhenStopped() {
	suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: false}, nil)

	started, err := suite.controller.Startup(context.Background())
	suite.Require().NoError(err)
	suite.Equal(0, started)
	suite.Equal(0, suite.subscriber.subscribed)
}

func (suite *ControllerTestSuite) TestPersistDoesNotSubscribe() {
	suite.state.EXPECT().SaveRunState(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, state types.RunState) error {
			suite.True(state.IsRunning)

			return nil
		})

	state, err := suite.controller.Persist(context.Background(), true)
	suite.Require().NoError(err)
	suite.True(state.IsRunning)
	suite.Equal(0, suite.subscriber.subscribed)
}

func (suite *ControllerTestSuite) TestSyncAppliesRemoteChanges() {
	gomock.InOrder(
		suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: true}, nil),
		suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: true}, nil),
		suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: false}, nil),
	)
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Run", Message: "3 robots have been started",
	}).Return(nil).Times(1)
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Stop", Message: "3 robots have been stopped",
	}).Return(nil).Times(1)

	suite.Require().NoError(suite.controller.Sync(context.Background()))
	suite.Equal(3, suite.subscriber.subscribed)

	// unchanged flag is a no-op
	suite.Require().NoError(suite.controller.Sync(context.Background()))

	suite.Require().NoError(suite.controller.Sync(context.Background()))
	suite.Equal(0, suite.subscriber.subscribed)
}

func (suite *ControllerTestSuite) TestWatchStopsWithContext() {
	suite.state.EXPECT().GetRunState(gomock.Any()).Return(types.RunState{IsRunning: false}, nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		suite.controller.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		suite.Fail("watch did not stop")
	}
}
