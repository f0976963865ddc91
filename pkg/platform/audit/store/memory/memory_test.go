package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "veritas/pkg/domain"
	audit "veritas/pkg/platform/audit"
)

func TestListingsAreNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore()
	owner := id.UserID(uuid.New())
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.Append(ctx, audit.Event{UserID: owner, Action: "scan_deleted", Timestamp: base}))
	require.NoError(t, st.Append(ctx, audit.Event{UserID: owner, Action: "protection_changed", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, st.Append(ctx, audit.Event{Action: "account_deleted", Timestamp: base.Add(time.Minute)}))

	mine, err := st.ListByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "protection_changed", mine[0].Action)

	recent, err := st.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "account_deleted", recent[0].Action, "ties resolve to the later append")
	assert.Equal(t, "protection_changed", recent[1].Action)

	st.Clear()
	recent, err = st.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
