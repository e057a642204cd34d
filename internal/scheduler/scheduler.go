// Package scheduler runs the periodic maintenance jobs: the payment sweep and
// the daily re-subscription of upstream price streams.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultPaymentsSpec    = "12 */10 * * * *"
	DefaultResubscribeSpec = "2 0 10 * * *"
	DefaultLocation        = "Europe/Moscow"
)

// Config holds the cron specs. Specs carry a leading seconds field.
type Config struct {
	PaymentsSpec    string `yaml:"payments_spec" json:"payments_spec" jsonschema:"title=Payments Spec,default=12 */10 * * * *"`
	ResubscribeSpec string `yaml:"resubscribe_spec" json:"resubscribe_spec" jsonschema:"title=Resubscribe Spec,default=2 0 10 * * *"`
	Location        string `yaml:"location" json:"location" jsonschema:"title=Location,default=Europe/Moscow"`
	// JobTimeout bounds one job run.
	JobTimeout time.Duration `yaml:"job_timeout" json:"job_timeout" jsonschema:"title=Job Timeout,type=string,default=5m"`
}

// PaymentChecker syncs settled orders that still miss payment details.
type PaymentChecker interface {
	CheckPayments(ctx context.Context) (int, error)
}

// Resubscriber cycles every open upstream stream.
type Resubscriber interface {
	ResubscribeAll(ctx context.Context) int
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron     *cron.Cron
	payments PaymentChecker
	streams  Resubscriber
	notifier notification.Notifier
	log      *logger.Logger
	timeout  time.Duration
}

// cronLogger routes the cron runner's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// New creates a scheduler with both jobs registered. Start runs it.
func New(config Config, payments PaymentChecker, streams Resubscriber, notifier notification.Notifier, log *logger.Logger) (*Scheduler, error) {
	config = withDefaults(config)
	log = log.Named("scheduler")

	loc, err := time.LoadLocation(config.Location)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "unknown scheduler location %q", config.Location)
	}

	clog := cronLogger{log: log.Sugar()}

	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		payments: payments,
		streams:  streams,
		notifier: notifier,
		log:      log,
		timeout:  config.JobTimeout,
	}

	if _, err := s.cron.AddFunc(config.PaymentsSpec, s.paymentsJob); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid payments spec %q", config.PaymentsSpec)
	}

	if _, err := s.cron.AddFunc(config.ResubscribeSpec, s.resubscribeJob); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid resubscribe spec %q", config.ResubscribeSpec)
	}

	return s, nil
}

func withDefaults(config Config) Config {
	if config.PaymentsSpec == "" {
		config.PaymentsSpec = DefaultPaymentsSpec
	}

	if config.ResubscribeSpec == "" {
		config.ResubscribeSpec = DefaultResubscribeSpec
	}

	if config.Location == "" {
		config.Location = DefaultLocation
	}

	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}

	return config
}

// Start runs the jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the runner. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next activation of every job, in registration order.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))

	for _, entry := range entries {
		next = append(next, entry.Next)
	}

	return next
}

func (s *Scheduler) paymentsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.CheckPayments(ctx); err != nil {
		s.log.Error("payment sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) resubscribeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.Resubscribe(ctx)
}

// CheckPayments runs the payment sweep once and reports the result.
func (s *Scheduler) CheckPayments(ctx context.Context) (int, error) {
	synced, err := s.payments.CheckPayments(ctx)
	if err != nil {
		return 0, err
	}

	s.log.Info("payment sweep finished", zap.Int("synced", synced))
	notification.Deliver(ctx, s.notifier, s.log, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Payments",
		Message: fmt.Sprintf("%d orders have been synced", synced),
	})

	return synced, nil
}

// Resubscribe cycles the upstream streams once and reports the result.
func (s *Scheduler) Resubscribe(ctx context.Context) int {
	count := s.streams.ResubscribeAll(ctx)

	s.log.Info("streams resubscribed", zap.Int("count", count))
	notification.Deliver(ctx, s.notifier, s.log, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Resubscribe",
		Message: fmt.Sprintf("%d subscriptions have been renewed", count),
	})

	return count
}
