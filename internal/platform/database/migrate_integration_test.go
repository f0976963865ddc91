//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"veritas/internal/platform/database"
	"veritas/migrations"
	"veritas/pkg/testutil/containers"
)

func TestMigrateIsIdempotentAndReversible(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()

	all, err := database.LoadMigrations(migrations.FS)
	require.NoError(t, err)

	// The shared container starts fully migrated.
	none, err := database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	require.Empty(t, none)

	reverted, err := database.Rollback(ctx, pg.DB, migrations.FS, len(all))
	require.NoError(t, err)
	require.Len(t, reverted, len(all))
	require.Equal(t, all[len(all)-1].Version, reverted[0])
	t.Cleanup(func() {
		_, _ = database.Migrate(context.Background(), pg.DB, migrations.FS)
	})

	applied, err := database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	require.Len(t, applied, len(all))

	again, err := database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	require.Empty(t, again)

	reverted, err = database.Rollback(ctx, pg.DB, migrations.FS, 1)
	require.NoError(t, err)
	require.Equal(t, []string{all[len(all)-1].Version}, reverted)

	applied, err = database.Migrate(ctx, pg.DB, migrations.FS)
	require.NoError(t, err)
	require.Equal(t, reverted, applied)
}
