// Package redisstate keeps the run state in Redis so several processes
// sharing one broker account agree on whether robots are running.
package redisstate

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rxtech-lab/argo-robots/internal/store"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
)

const defaultKey = "robots:run_state"

// Client is the subset of the Redis client used by the store.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// Config represents the Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr" json:"addr" jsonschema:"title=Address,description=Redis host:port; empty keeps the run state in SQL"`
	Password string `yaml:"password" json:"password" jsonschema:"title=Password"`
	DB       int    `yaml:"db" json:"db" jsonschema:"title=Database" validate:"gte=0"`
	Key      string `yaml:"key" json:"key" jsonschema:"title=Key,default=robots:run_state"`
}

// Store implements store.StateRepository on a single Redis key.
type Store struct {
	rdb Client
	key string
}

// New connects to Redis using config.
func New(config Config) *Store {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return NewWithClient(rdb, config.Key)
}

// NewWithClient creates a store on an existing client. An empty key selects the default.
func NewWithClient(rdb Client, key string) *Store {
	if key == "" {
		key = defaultKey
	}

	return &Store{rdb: rdb, key: key}
}

func (s *Store) GetRunState(ctx context.Context) (types.RunState, error) {
	data, err := s.rdb.Get(ctx, s.key).Result()
	if stderrors.Is(err, goredis.Nil) {
		return types.RunState{}, errors.New(errors.ErrCodeRunStateNotFound, "run state not found")
	}

	if err != nil {
		return types.RunState{}, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to read run state from redis", err)
	}

	var state types.RunState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return types.RunState{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode run state", err)
	}

	return state, nil
}

func (s *Store) SaveRunState(ctx context.Context, state types.RunState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to encode run state", err)
	}

	if err := s.rdb.Set(ctx, s.key, data, 0).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to write run state to redis", err)
	}

	return nil
}

var _ store.StateRepository = (*Store)(nil)
