package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veritas/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseScanID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAccountID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

func TestParseItemID(t *testing.T) {
	_, err := ParseItemID("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	id, err := ParseItemID("crypto_guru_official")
	require.NoError(t, err)
	assert.Equal(t, ItemID("crypto_guru_official"), id)
	assert.False(t, id.IsNil())
}

func TestNewIDsAreDistinct(t *testing.T) {
	a, b := NewScanID(), NewScanID()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())

	u, v := NewUserID(), NewUserID()
	assert.NotEqual(t, u, v)
	assert.False(t, u.IsNil())
}

func TestIDsMarshalAsUUIDStrings(t *testing.T) {
	scanID := NewScanID()
	b, err := json.Marshal(struct {
		ID ScanID `json:"id"`
	}{scanID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+scanID.String()+`"}`, string(b))

	var decoded struct {
		ID ScanID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, scanID, decoded.ID)
}
