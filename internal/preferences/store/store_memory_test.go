package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/internal/preferences/models"
	"veritas/internal/sentinel"
	id "veritas/pkg/domain"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	userID := id.UserID(uuid.New())

	_, err := s.Get(ctx, userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	prefs := models.Default(userID)
	prefs.ProtectionActive = true
	prefs.UpdatedAt = time.Now()
	require.NoError(t, s.Save(ctx, prefs))

	got, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, got.ProtectionActive)
	assert.True(t, got.NotificationsEnabled)

	got.ProtectionActive = false
	again, err := s.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, again.ProtectionActive, "returned value must be a copy")

	assert.ErrorIs(t, s.Save(ctx, &models.Preferences{}), sentinel.ErrInvalidInput)
	assert.ErrorIs(t, s.Save(ctx, nil), sentinel.ErrInvalidInput)
}
