// Package runstate holds the process-wide run flag that gates whether enabled
// robots listen to the price stream.
package runstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/notification"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

// Subscriber attaches and detaches the enabled robots.
type Subscriber interface {
	SubscribeEnabled(ctx context.Context) (int, error)
	UnsubscribeAll() int
}

// Controller starts and stops the robots.
type Controller struct {
	state    store.StateRepository
	robots   Subscriber
	notifier notification.Notifier
	log      *logger.Logger
	// mu serializes every state change.
	mu sync.Mutex
	// applied is the flag this process has acted on. It trails the persisted
	// flag when another process calls Persist.
	applied bool
	now     func() time.Time
}

// New creates a controller.
func New(state store.StateRepository, robots Subscriber, notifier notification.Notifier, log *logger.Logger) *Controller {
	return &Controller{
		state:    state,
		robots:   robots,
		notifier: notifier,
		log:      log.Named("runstate"),
		mu:       sync.Mutex{},
		applied:  false,
		now:      time.Now,
	}
}

// Get returns the run state, saving a stopped state on first use.
func (c *Controller) Get(ctx context.Context) (types.RunState, error) {
	state, err := c.state.GetRunState(ctx)
	if err == nil {
		return state, nil
	}

	if !errors.HasCode(err, errors.ErrCodeRunStateNotFound) {
		return types.RunState{}, err
	}

	state = types.RunState{IsRunning: false, UpdatedAt: c.now()}
	if err := c.state.SaveRunState(ctx, state); err != nil {
		return types.RunState{}, err
	}

	return state, nil
}

// IsRunning reports whether robots are running.
func (c *Controller) IsRunning(ctx context.Context) (bool, error) {
	state, err := c.Get(ctx)
	if err != nil {
		return false, err
	}

	return state.IsRunning, nil
}

// Run marks the state running and subscribes every enabled robot.
// It returns how many robots were started.
func (c *Controller) Run(ctx context.Context) (types.RunState, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := types.RunState{IsRunning: true, UpdatedAt: c.now()}
	if err := c.state.SaveRunState(ctx, state); err != nil {
		return types.RunState{}, 0, err
	}

	started, err := c.start(ctx)
	if err != nil {
		return state, 0, err
	}

	return state, started, nil
}

// Stop marks the state stopped and detaches every robot. Robots keep their
// enabled flag so the next Run picks them up again.
func (c *Controller) Stop(ctx context.Context) (types.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := types.RunState{IsRunning: false, UpdatedAt: c.now()}
	if err := c.state.SaveRunState(ctx, state); err != nil {
		return types.RunState{}, err
	}

	c.stop(ctx)

	return state, nil
}

// Persist saves the flag without touching subscriptions. A serving process
// applies it through Watch.
func (c *Controller) Persist(ctx context.Context, running bool) (types.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := types.RunState{IsRunning: running, UpdatedAt: c.now()}
	if err := c.state.SaveRunState(ctx, state); err != nil {
		return types.RunState{}, err
	}

	return state, nil
}

// Startup restores the robots after a restart: when the persisted state is
// running, every enabled robot is subscribed again.
func (c *Controller) Startup(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.Get(ctx)
	if err != nil {
		return 0, err
	}

	if !state.IsRunning {
		c.log.Info("robots are stopped, not subscribing")

		return 0, nil
	}

	started, err := c.robots.SubscribeEnabled(ctx)
	if err != nil {
		return 0, err
	}

	c.applied = true
	c.log.Info("robots resumed after startup", zap.Int("count", started))

	return started, nil
}

// Watch polls the persisted flag every interval and applies changes made by
// other processes until ctx is done.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.log.Warn("failed to sync run state", zap.Error(err))
			}
		}
	}
}

// Sync applies the persisted flag when it differs from the applied one.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.Get(ctx)
	if err != nil {
		return err
	}

	if state.IsRunning == c.applied {
		return nil
	}

	if !state.IsRunning {
		c.stop(ctx)

		return nil
	}

	_, err = c.start(ctx)

	return err
}

func (c *Controller) start(ctx context.Context) (int, error) {
	started, err := c.robots.SubscribeEnabled(ctx)
	if err != nil {
		return 0, err
	}

	c.applied = true
	c.log.Info("robots started", zap.Int("count", started))
	notification.Deliver(ctx, c.notifier, c.log, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Run",
		Message: fmt.Sprintf("%d robots have been started", started),
	})

	return started, nil
}

func (c *Controller) stop(ctx context.Context) {
	stopped := c.robots.UnsubscribeAll()

	c.applied = false
	c.log.Info("robots stopped", zap.Int("count", stopped))
	notification.Deliver(ctx, c.notifier, c.log, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Stop",
		Message: fmt.Sprintf("%d robots have been stopped", stopped),
	})
}
