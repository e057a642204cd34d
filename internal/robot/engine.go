// Package robot runs the trading robots. Every enabled robot listens to the
// price stream of its instrument, places limit orders when the price crosses
// its band and reconciles its inventory against the broker's order state.
package robot

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/broker"
	"github.com/rxtech-lab/argo-robots/internal/hub"
	"github.com/rxtech-lab/argo-robots/internal/ledger"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/metrics"
	"github.com/rxtech-lab/argo-robots/internal/mutex"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

// FillRecorder receives every fill applied to a robot.
type FillRecorder interface {
	Record(fill types.Fill) error
}

// Dependencies are the collaborators of the engine.
type Dependencies struct {
	Robots   store.RobotRepository
	State    store.StateRepository
	Ledger   *ledger.Ledger
	Trader   broker.Trader
	Resolver broker.InstrumentResolver
	Hub      *hub.Hub
	Journal  optional.Option[FillRecorder]
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// entry is one robot held in the hot index. mu guards robot; broker calls
// are never made while it is held.
type entry struct {
	mu     sync.Mutex
	robot  types.Robot
	worker *worker
}

func (en *entry) snapshot() types.Robot {
	en.mu.Lock()
	defer en.mu.Unlock()

	return cloneRobot(en.robot)
}

func cloneRobot(r types.Robot) types.Robot {
	r.Tags = slices.Clone(r.Tags)

	return r
}

// worker serializes the ticks of one robot.
type worker struct {
	ticks chan types.Candle
	done  chan struct{}
	once  sync.Once
}

func (w *worker) offer(candle types.Candle) bool {
	select {
	case w.ticks <- candle:
		return true
	default:
		return false
	}
}

func (w *worker) stop() {
	w.once.Do(func() { close(w.done) })
}

// Engine owns the robot index and drives every robot's decision loop.
type Engine struct {
	config   Config
	robots   store.RobotRepository
	state    store.StateRepository
	ledger   *ledger.Ledger
	trader   broker.Trader
	resolver broker.InstrumentResolver
	hub      *hub.Hub
	journal  optional.Option[FillRecorder]
	notifier notification.Notifier
	metrics  *metrics.Metrics
	log      *logger.Logger

	// tradeLocks guards order placement, checkLocks guards reconciliation.
	tradeLocks *mutex.Registry[string]
	checkLocks *mutex.Registry[string]
	// recheck holds the force-recheck flags.
	recheck *mutex.Registry[string]

	mu    sync.Mutex
	index map[string]*entry
	wg    sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// New creates an engine. Close stops its workers.
func New(config Config, deps Dependencies) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		config:     config.withDefaults(),
		robots:     deps.Robots,
		state:      deps.State,
		ledger:     deps.Ledger,
		trader:     deps.Trader,
		resolver:   deps.Resolver,
		hub:        deps.Hub,
		journal:    deps.Journal,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		log:        deps.Log.Named("robot"),
		tradeLocks: mutex.NewRegistry[string](),
		checkLocks: mutex.NewRegistry[string](),
		recheck:    mutex.NewRegistry[string](),
		mu:         sync.Mutex{},
		index:      make(map[string]*entry),
		wg:         sync.WaitGroup{},
		baseCtx:    ctx,
		cancel:     cancel,
		now:        time.Now,
	}
}

// load returns the hot entry for id, reading it from the store on first use.
func (e *Engine) load(ctx context.Context, id string) (*entry, error) {
	e.mu.Lock()
	en, ok := e.index[id]
	e.mu.Unlock()

	if ok {
		return en, nil
	}

	robot, err := e.robots.GetRobot(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another caller may have loaded it meanwhile.
	if en, ok := e.index[id]; ok {
		return en, nil
	}

	en = &entry{mu: sync.Mutex{}, robot: robot, worker: nil}
	e.index[id] = en

	return en, nil
}

// IsLoaded reports whether the robot sits in the hot index.
func (e *Engine) IsLoaded(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.index[id]

	return ok
}

func (e *Engine) save(ctx context.Context, r *types.Robot) error {
	r.UpdatedAt = e.now()

	return e.robots.SaveRobot(ctx, r)
}

// Create resolves the robot's instrument and stores it disabled.
// The instrument may be given as a broker id or a ticker.
func (e *Engine) Create(ctx context.Context, robot types.Robot) (types.Robot, error) {
	meta, err := e.resolver.ResolveInstrument(ctx, robot.Instrument)
	if err != nil {
		return types.Robot{}, err
	}

	now := e.now()

	robot.ID = uuid.New().String()
	robot.Instrument = meta.ID
	robot.Ticker = meta.Ticker

	if robot.Name == "" {
		robot.Name = meta.Name
	}

	if robot.Lot == 0 {
		robot.Lot = meta.Lot
	}

	if robot.Strategy == "" {
		robot.Strategy = types.StrategyPlain
	}

	if robot.InitialMinShares == 0 && robot.InitialMaxShares == 0 {
		robot.InitialMinShares = robot.MinShares
		robot.InitialMaxShares = robot.MaxShares
	}

	robot.Enabled = false
	robot.Removed = false
	robot.CreatedAt = now
	robot.UpdatedAt = now

	if err := robot.Validate(); err != nil {
		return types.Robot{}, err
	}

	if err := e.robots.CreateRobot(ctx, &robot); err != nil {
		return types.Robot{}, err
	}

	e.log.Info("robot created",
		zap.String("robot_id", robot.ID),
		zap.String("ticker", robot.Ticker),
		zap.String("buy_price", robot.BuyPrice.String()),
		zap.String("sell_price", robot.SellPrice.String()))

	return robot, nil
}

// Update replaces the editable fields of a robot. Identity, lifecycle and
// timestamps are kept. A rejected edit leaves the robot untouched.
func (e *Engine) Update(ctx context.Context, id string, edit types.Robot) (types.Robot, error) {
	en, err := e.load(ctx, id)
	if err != nil {
		return types.Robot{}, err
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	current := en.robot
	if current.Removed {
		return types.Robot{}, errors.Newf(errors.ErrCodeRobotRemoved, "robot %s is removed", id)
	}

	edit.ID = current.ID
	edit.Enabled = current.Enabled
	edit.Removed = current.Removed
	edit.CreatedAt = current.CreatedAt
	edit.Tags = slices.Clone(edit.Tags)

	if err := edit.Validate(); err != nil {
		return types.Robot{}, err
	}

	if current.Enabled && edit.Instrument != current.Instrument {
		return types.Robot{}, errors.Newf(errors.ErrCodeRobotEnabled,
			"robot %s must be disabled before its instrument changes", id)
	}

	if err := e.save(ctx, &edit); err != nil {
		return types.Robot{}, err
	}

	en.robot = edit

	e.log.Info("robot updated", zap.String("robot_id", id))

	return cloneRobot(edit), nil
}

// Remove soft-deletes a disabled robot.
func (e *Engine) Remove(ctx context.Context, id string) (types.Robot, error) {
	en, err := e.load(ctx, id)
	if err != nil {
		return types.Robot{}, err
	}

	en.mu.Lock()

	if en.robot.Enabled {
		en.mu.Unlock()

		return types.Robot{}, errors.Newf(errors.ErrCodeRobotEnabled, "robot %s is enabled", id)
	}

	removed := en.robot
	removed.Removed = true

	if !en.robot.Removed {
		if err := e.save(ctx, &removed); err != nil {
			en.mu.Unlock()

			return types.Robot{}, err
		}

		en.robot = removed
	}

	en.mu.Unlock()

	e.mu.Lock()
	delete(e.index, id)
	e.mu.Unlock()

	e.log.Info("robot removed", zap.String("robot_id", id))

	return cloneRobot(removed), nil
}

// Get returns a robot, preferring the hot copy.
func (e *Engine) Get(ctx context.Context, id string) (types.Robot, error) {
	e.mu.Lock()
	en, ok := e.index[id]
	e.mu.Unlock()

	if ok {
		return en.snapshot(), nil
	}

	return e.robots.GetRobot(ctx, id)
}

// ListFilter selects robots for List.
type ListFilter struct {
	Instrument optional.Option[string]
	Ticker     optional.Option[string]
	Tag        optional.Option[string]
}

// List returns the robots that are not removed, ordered by ticker and then
// by buy price from the highest.
func (e *Engine) List(ctx context.Context, filter ListFilter) ([]types.Robot, error) {
	robots, err := e.robots.ListRobots(ctx, store.RobotFilter{
		Instrument:     filter.Instrument,
		Ticker:         filter.Ticker,
		Tag:            filter.Tag,
		Enabled:        optional.None[bool](),
		IncludeRemoved: false,
	})
	if err != nil {
		return nil, err
	}

	hot := make(map[string]*entry, len(robots))

	e.mu.Lock()
	for _, r := range robots {
		if en, ok := e.index[r.ID]; ok {
			hot[r.ID] = en
		}
	}
	e.mu.Unlock()

	for i, r := range robots {
		if en, ok := hot[r.ID]; ok {
			robots[i] = en.snapshot()
		}
	}

	slices.SortStableFunc(robots, func(a, b types.Robot) int {
		return cmp.Or(
			strings.Compare(a.Ticker, b.Ticker),
			b.BuyPrice.Cmp(a.BuyPrice),
		)
	})

	return robots, nil
}

// Enable marks the robot enabled and subscribes it when robots are running.
func (e *Engine) Enable(ctx context.Context, id string) (types.Robot, error) {
	en, err := e.load(ctx, id)
	if err != nil {
		return types.Robot{}, err
	}

	en.mu.Lock()

	if en.robot.Removed {
		en.mu.Unlock()

		return types.Robot{}, errors.Newf(errors.ErrCodeRobotRemoved, "robot %s is removed", id)
	}

	if !en.robot.Enabled {
		enabled := en.robot
		enabled.Enabled = true

		if err := e.save(ctx, &enabled); err != nil {
			en.mu.Unlock()

			return types.Robot{}, err
		}

		en.robot = enabled
	}

	snap := cloneRobot(en.robot)
	en.mu.Unlock()

	running, err := e.isRunning(ctx)
	if err != nil {
		return snap, err
	}

	if running {
		if err := e.subscribe(ctx, en, snap); err != nil {
			return snap, err
		}
	}

	e.log.Info("robot enabled", zap.String("robot_id", id), zap.Bool("running", running))

	return snap, nil
}

// Disable unsubscribes the robot and marks it disabled.
func (e *Engine) Disable(ctx context.Context, id string) (types.Robot, error) {
	en, err := e.load(ctx, id)
	if err != nil {
		return types.Robot{}, err
	}

	en.mu.Lock()

	if en.robot.Enabled {
		disabled := en.robot
		disabled.Enabled = false

		if err := e.save(ctx, &disabled); err != nil {
			en.mu.Unlock()

			return types.Robot{}, err
		}

		en.robot = disabled
	}

	snap := cloneRobot(en.robot)
	en.mu.Unlock()

	e.unsubscribe(en, snap)

	e.log.Info("robot disabled", zap.String("robot_id", id))

	return snap, nil
}

func (e *Engine) isRunning(ctx context.Context) (bool, error) {
	state, err := e.state.GetRunState(ctx)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeRunStateNotFound) {
			return false, nil
		}

		return false, err
	}

	return state.IsRunning, nil
}

func (e *Engine) key(r types.Robot) hub.Key {
	return hub.Key{Instrument: r.Instrument, Resolution: e.config.Resolution}
}

// subscribe starts the robot's worker and registers it with the hub.
func (e *Engine) subscribe(ctx context.Context, en *entry, r types.Robot) error {
	e.mu.Lock()

	if en.worker != nil {
		e.mu.Unlock()

		return nil
	}

	w := &worker{
		ticks: make(chan types.Candle, e.config.TickBuffer),
		done:  make(chan struct{}),
		once:  sync.Once{},
	}
	en.worker = w
	e.wg.Add(1)
	e.mu.Unlock()

	go e.runWorker(r.ID, w)

	err := e.hub.Subscribe(ctx, e.key(r), r.ID, func(candle types.Candle) {
		if !w.offer(candle) {
			e.metrics.TickDropped()
			e.log.Warn("tick queue full, dropping tick", zap.String("robot_id", r.ID))
		}
	})
	if err != nil {
		e.mu.Lock()
		if en.worker == w {
			en.worker = nil
		}
		e.mu.Unlock()

		w.stop()

		return err
	}

	e.metrics.SetEnabledRobots(e.Subscribed())

	return nil
}

// unsubscribe removes the robot from the hub and stops its worker.
func (e *Engine) unsubscribe(en *entry, r types.Robot) {
	e.mu.Lock()
	w := en.worker
	en.worker = nil
	e.mu.Unlock()

	e.hub.Unsubscribe(e.key(r), r.ID)

	if w != nil {
		w.stop()
	}

	e.metrics.SetEnabledRobots(e.Subscribed())
}

func (e *Engine) runWorker(id string, w *worker) {
	defer e.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-e.baseCtx.Done():
			return
		case candle := <-w.ticks:
			if err := e.PriceWasUpdated(e.baseCtx, id, candle.Close, candle.Volume); err != nil {
				e.log.Warn("failed to handle price update", zap.String("robot_id", id), zap.Error(err))
			}
		}
	}
}

// Subscribed returns how many robots currently listen to the price stream.
func (e *Engine) Subscribed() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0

	for _, en := range e.index {
		if en.worker != nil {
			n++
		}
	}

	return n
}

// SubscribeEnabled subscribes every enabled robot. It returns how many robots
// were subscribed. A robot that fails to subscribe is logged and skipped.
func (e *Engine) SubscribeEnabled(ctx context.Context) (int, error) {
	robots, err := e.robots.ListRobots(ctx, store.RobotFilter{
		Instrument:     optional.None[string](),
		Ticker:         optional.None[string](),
		Tag:            optional.None[string](),
		Enabled:        optional.Some(true),
		IncludeRemoved: false,
	})
	if err != nil {
		return 0, err
	}

	count := 0

	for _, r := range robots {
		en, err := e.load(ctx, r.ID)
		if err != nil {
			e.log.Warn("failed to load robot", zap.String("robot_id", r.ID), zap.Error(err))

			continue
		}

		if err := e.subscribe(ctx, en, en.snapshot()); err != nil {
			e.log.Warn("failed to subscribe robot", zap.String("robot_id", r.ID), zap.Error(err))

			continue
		}

		count++
	}

	e.log.Info("robots subscribed", zap.Int("count", count), zap.Int("enabled", len(robots)))

	return count, nil
}

// UnsubscribeAll detaches every robot from the price stream. Robots keep
// their enabled flag. It returns how many robots were detached.
func (e *Engine) UnsubscribeAll() int {
	e.mu.Lock()
	active := make([]*entry, 0, len(e.index))

	for _, en := range e.index {
		if en.worker != nil {
			active = append(active, en)
		}
	}
	e.mu.Unlock()

	for _, en := range active {
		e.unsubscribe(en, en.snapshot())
	}

	e.log.Info("robots unsubscribed", zap.Int("count", len(active)))

	return len(active)
}

// Close detaches all robots and waits for their workers to finish the tick
// they are handling.
func (e *Engine) Close() {
	e.UnsubscribeAll()
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) notify(ctx context.Context, level notification.AlertLevel, title, message string) {
	notification.Deliver(ctx, e.notifier, e.log, notification.Alert{
		Level:   level,
		Title:   title,
		Message: message,
	})
}
