package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/mocks"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type fakePayments struct {
	calls  atomic.Int32
	synced int
	err    error
}

func (f *fakePayments) CheckPayments(context.Context) (int, error) {
	f.calls.Add(1)

	return f.synced, f.err
}

type fakeStreams struct {
	calls int
}

func (f *fakeStreams) ResubscribeAll(context.Context) int {
	f.calls++

	return 4
}

type SchedulerTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	notifier *mocks.MockNotifier
	payments *fakePayments
	streams  *fakeStreams
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.notifier = mocks.NewMockNotifier(suite.ctrl)
	suite.payments = &fakePayments{synced: 2}
	suite.streams = &fakeStreams{}
}

func (suite *SchedulerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *SchedulerTestSuite) newScheduler(config Config) (*Scheduler, error) {
	return New(config, suite.payments, suite.streams, suite.notifier, logger.NewNopLogger())
}

func (suite *SchedulerTestSuite) TestDefaultsRegisterBothJobs() {
	s, err := suite.newScheduler(Config{})
	suite.Require().NoError(err)

	s.Start()
	defer s.Stop()

	next := s.Next()
	suite.Require().Len(next, 2)

	moscow, err := time.LoadLocation(DefaultLocation)
	suite.Require().NoError(err)

	resubscribe := next[1].In(moscow)
	suite.Equal(10, resubscribe.Hour())
	suite.Equal(0, resubscribe.Minute())
	suite.Equal(2, resubscribe.Second())

	suite.Equal(12, next[0].Second())
	suite.Equal(0, next[0].Minute()%10)
}

func (suite *SchedulerTestSuite) TestInvalidConfig() {
	_, err := suite.newScheduler(Config{PaymentsSpec: "every now and then"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = suite.newScheduler(Config{Location: "Mars/Olympus_Mons"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *SchedulerTestSuite) TestCheckPaymentsNotifies() {
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Payments", Message: "2 orders have been synced",
	}).Return(nil)

	s, err := suite.newScheduler(Config{})
	suite.Require().NoError(err)

	synced, err := s.CheckPayments(context.Background())
	suite.Require().NoError(err)
	suite.Equal(2, synced)
	suite.Equal(int32(1), suite.payments.calls.Load())
}

func (suite *SchedulerTestSuite) TestCheckPaymentsFailureDoesNotNotify() {
	suite.payments.err = errors.New(errors.ErrCodeBrokerUnavailable, "down")

	s, err := suite.newScheduler(Config{})
	suite.Require().NoError(err)

	_, err = s.CheckPayments(context.Background())
	suite.True(errors.IsTransient(err))
}

func (suite *SchedulerTestSuite) TestResubscribeNotifies() {
	suite.notifier.EXPECT().Send(gomock.Any(), notification.Alert{
		Level: notification.AlertInfo, Title: "Resubscribe", Message: "4 subscriptions have been renewed",
	}).Return(errors.New(errors.ErrCodeNotificationFailed, "ignored"))

	s, err := suite.newScheduler(Config{})
	suite.Require().NoError(err)

	suite.Equal(4, s.Resubscribe(context.Background()))
	suite.Equal(1, suite.streams.calls)
}

func (suite *SchedulerTestSuite) TestJobsRunOnSchedule() {
	suite.notifier.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s, err := suite.newScheduler(Config{PaymentsSpec: "* * * * * *", Location: "UTC"})
	suite.Require().NoError(err)

	s.Start()
	suite.Eventually(func() bool {
		return suite.payments.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
}
