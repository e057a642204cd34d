package redisstate

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rxtech-lab/argo-robots/internal/types"
	codederrors "github.com/rxtech-lab/argo-robots/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	values map[string]string
	err    error
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}

	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}

	return goredis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}

	f.values[key] = string(value.([]byte))

	return goredis.NewStatusResult("OK", nil)
}

func TestRunStateRoundTrip(t *testing.T) {
	client := &fakeClient{values: map[string]string{}}
	s := NewWithClient(client, "")

	_, err := s.GetRunState(context.Background())
	assert.True(t, codederrors.HasCode(err, codederrors.ErrCodeRunStateNotFound))

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveRunState(context.Background(), types.RunState{IsRunning: true, UpdatedAt: now}))
	assert.Contains(t, client.values, defaultKey)

	state, err := s.GetRunState(context.Background())
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
	assert.True(t, state.UpdatedAt.Equal(now))
}

func TestRunStateRedisErrors(t *testing.T) {
	client := &fakeClient{values: map[string]string{}, err: errors.New("connection refused")}
	s := NewWithClient(client, "custom")

	_, err := s.GetRunState(context.Background())
	assert.True(t, codederrors.HasCode(err, codederrors.ErrCodeStoreUnavailable))

	err = s.SaveRunState(context.Background(), types.RunState{IsRunning: false})
	assert.True(t, codederrors.HasCode(err, codederrors.ErrCodeStoreUnavailable))
}

func TestRunStateCorruptValue(t *testing.T) {
	client := &fakeClient{values: map[string]string{"k": "{not json"}}
	s := NewWithClient(client, "k")

	_, err := s.GetRunState(context.Background())
	assert.True(t, codederrors.HasCode(err, codederrors.ErrCodeQueryFailed))
}
