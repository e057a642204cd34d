package main

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/broker/binancebroker"
	"github.com/rxtech-lab/argo-robots/internal/broker/paper"
	"github.com/rxtech-lab/argo-robots/internal/config"
	"github.com/rxtech-lab/argo-robots/internal/hub"
	"github.com/rxtech-lab/argo-robots/internal/journal"
	"github.com/rxtech-lab/argo-robots/internal/ledger"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/metrics"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/robot"
	"github.com/rxtech-lab/argo-robots/internal/runstate"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/store/redisstate"
	"github.com/rxtech-lab/argo-robots/internal/store/sqlstore"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

// app holds every long-lived component of the process.
type app struct {
	config   *config.Config
	log      *logger.Logger
	metrics  *metrics.Metrics
	sql      *sqlstore.Store
	state    store.StateRepository
	broker   broker.Broker
	notifier notification.Notifier
	journal  optional.Option[*journal.FillsWriter]
	hub      *hub.Hub
	ledger   *ledger.Ledger
	engine   *robot.Engine
	control  *runstate.Controller
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	sql, err := sqlstore.Open(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:   cfg,
		log:      log,
		metrics:  metrics.New(),
		sql:      sql,
		state:    newStateRepository(cfg, sql, log),
		broker:   nil,
		notifier: newNotifier(cfg, log),
		journal:  optional.None[*journal.FillsWriter](),
		hub:      nil,
		ledger:   nil,
		engine:   nil,
		control:  nil,
	}

	a.broker, err = newBroker(cfg, log)
	if err != nil {
		a.Close()

		return nil, err
	}

	recorder := optional.None[robot.FillRecorder]()

	if cfg.Journal.Path != "" {
		writer := journal.NewFillsWriter(cfg.Journal.Path)
		if err := writer.Initialize(); err != nil {
			a.Close()

			return nil, errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to open fills journal", err)
		}

		a.journal = optional.Some(writer)
		recorder = optional.Some[robot.FillRecorder](writer)
	}

	a.hub = hub.New(cfg.Hub, a.broker, a.broker, a.metrics, log)
	a.ledger = ledger.New(cfg.Ledger, sql, a.broker, a.metrics, log)
	a.engine = robot.New(cfg.Robot, robot.Dependencies{
		Robots:   sql,
		State:    a.state,
		Ledger:   a.ledger,
		Trader:   a.broker,
		Resolver: a.broker,
		Hub:      a.hub,
		Journal:  recorder,
		Notifier: a.notifier,
		Metrics:  a.metrics,
		Log:      log,
	})
	a.control = runstate.New(a.state, a.engine, a.notifier, log)

	return a, nil
}

func newBroker(cfg *config.Config, log *logger.Logger) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case broker.TypeBinance:
		return binancebroker.New(cfg.Broker.Binance, log)
	case broker.TypePaper:
		upstream := optional.None[broker.Streamer]()

		if cfg.Broker.Upstream == broker.TypeBinance {
			prices, err := binancebroker.New(cfg.Broker.Binance, log)
			if err != nil {
				return nil, err
			}

			upstream = optional.Some[broker.Streamer](prices)
		}

		return paper.New(cfg.Broker.Paper, upstream, log)
	}

	return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown broker type %q", cfg.Broker.Type)
}

// newStateRepository keeps the run flag in Redis when an address is
// configured and in the SQL store otherwise.
func newStateRepository(cfg *config.Config, sql *sqlstore.Store, log *logger.Logger) store.StateRepository {
	if cfg.Redis.Addr == "" {
		return sql
	}

	log.Info("run state is kept in redis", zap.String("addr", cfg.Redis.Addr))

	return redisstate.New(cfg.Redis)
}

func newNotifier(cfg *config.Config, log *logger.Logger) notification.Notifier {
	if cfg.Telegram.Token == "" {
		return notification.NewLogNotifier(log)
	}

	return notification.NewTelegramNotifier(cfg.Telegram)
}

// Close releases the components in reverse order of creation.
func (a *app) Close() {
	if a.engine != nil {
		a.engine.Close()
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.journal.IsSome() {
		if err := a.journal.Unwrap().Close(); err != nil {
			a.log.Warn("failed to close fills journal", zap.Error(err))
		}
	}

	if err := a.sql.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
}
