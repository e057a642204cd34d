package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/store/storetest"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestSQLStoreSuite(t *testing.T) {
	suite.Run(t, &storetest.RepositorySuite{
		NewRepository: func() storetest.Repository {
			s, err := Open(":memory:", logger.NewNopLogger())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })

			return s
		},
	})
}

func TestSQLStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robots.db")
	ctx := context.Background()

	s, err := Open(path, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveRunState(ctx, types.RunState{IsRunning: true}))
	require.NoError(t, s.Close())

	reopened, err := Open(path, logger.NewNopLogger())
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Ping(ctx))

	state, err := reopened.GetRunState(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
}
