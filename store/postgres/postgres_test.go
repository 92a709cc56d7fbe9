package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/storetest"
)

func TestPostgresStore(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) leave.Store {
		ctx := context.Background()
		pool, err := postgres.Connect(ctx, dbURL)
		require.NoError(t, err)
		s, err := postgres.New(ctx, pool)
		require.NoError(t, err)
		require.NoError(t, s.Reset(ctx))
		t.Cleanup(func() { s.Close() })
		return s
	})
}
