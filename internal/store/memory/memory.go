// Package memory implements the store interfaces in process memory.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
)

// Store keeps robots, orders and the run state in maps. Values are copied
// on the way in and out so callers never share slices with the store.
type Store struct {
	mu       sync.RWMutex
	robots   map[string]types.Robot
	orders   map[string]types.Order
	byBroker map[string]string
	state    *types.RunState
}

// New creates an empty store.
func New() *Store {
	return &Store{
		mu:       sync.RWMutex{},
		robots:   make(map[string]types.Robot),
		orders:   make(map[string]types.Order),
		byBroker: make(map[string]string),
		state:    nil,
	}
}

func cloneRobot(r types.Robot) types.Robot {
	r.Tags = slices.Clone(r.Tags)

	return r
}

func cloneOrder(o types.Order) types.Order {
	o.Trades = slices.Clone(o.Trades)
	o.Collections = slices.Clone(o.Collections)

	return o
}

func (s *Store) CreateRobot(_ context.Context, robot *types.Robot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.robots[robot.ID]; ok {
		return errors.Newf(errors.ErrCodeInvalidRobot, "robot already exists: %s", robot.ID)
	}

	s.robots[robot.ID] = cloneRobot(*robot)

	return nil
}

func (s *Store) SaveRobot(_ context.Context, robot *types.Robot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.robots[robot.ID]; !ok {
		return errors.Newf(errors.ErrCodeRobotNotFound, "robot not found: %s", robot.ID)
	}

	s.robots[robot.ID] = cloneRobot(*robot)

	return nil
}

func (s *Store) GetRobot(_ context.Context, id string) (types.Robot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	robot, ok := s.robots[id]
	if !ok {
		return types.Robot{}, errors.Newf(errors.ErrCodeRobotNotFound, "robot not found: %s", id)
	}

	return cloneRobot(robot), nil
}

func (s *Store) ListRobots(_ context.Context, filter store.RobotFilter) ([]types.Robot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Robot, 0)

	for _, robot := range s.robots {
		if filter.Matches(robot) {
			out = append(out, cloneRobot(robot))
		}
	}

	slices.SortFunc(out, func(a, b types.Robot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

func (s *Store) CreateOrder(_ context.Context, order *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return errors.Newf(errors.ErrCodeInvalidOrder, "order already exists: %s", order.ID)
	}

	if _, ok := s.byBroker[order.BrokerOrderID]; ok {
		return errors.Newf(errors.ErrCodeInvalidOrder, "broker order already recorded: %s", order.BrokerOrderID)
	}

	s.orders[order.ID] = cloneOrder(*order)
	s.byBroker[order.BrokerOrderID] = order.ID

	return nil
}

func (s *Store) SaveOrder(_ context.Context, order *types.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; !ok {
		return errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", order.ID)
	}

	s.orders[order.ID] = cloneOrder(*order)
	s.byBroker[order.BrokerOrderID] = order.ID

	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderNotFound, "order not found: %s", id)
	}

	return cloneOrder(order), nil
}

func (s *Store) FindOrderByBrokerID(_ context.Context, brokerOrderID string) (types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byBroker[brokerOrderID]
	if !ok {
		return types.Order{}, errors.Newf(errors.ErrCodeOrderNotFound, "order not found for broker id: %s", brokerOrderID)
	}

	return cloneOrder(s.orders[id]), nil
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Order, 0)

	for _, order := range s.orders {
		if filter.Matches(order) {
			out = append(out, cloneOrder(order))
		}
	}

	slices.SortFunc(out, func(a, b types.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

func (s *Store) GetRunState(_ context.Context) (types.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return types.RunState{}, errors.New(errors.ErrCodeRunStateNotFound, "run state not found")
	}

	return *s.state, nil
}

func (s *Store) SaveRunState(_ context.Context, state types.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = &state

	return nil
}

var (
	_ store.RobotRepository = (*Store)(nil)
	_ store.OrderRepository = (*Store)(nil)
	_ store.StateRepository = (*Store)(nil)
)
