package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veritas/pkg/domain-errors"
)

func TestCheckStringLength(t *testing.T) {
	tests := []struct {
		name  string
		value string
		max   int
		ok    bool
	}{
		{"empty", "", MaxUsernameLength, true},
		{"at the limit", strings.Repeat("a", MaxUsernameLength), MaxUsernameLength, true},
		{"one over", strings.Repeat("a", MaxUsernameLength+1), MaxUsernameLength, false},
		{"multibyte counted as characters", strings.Repeat("é", 10), 10, true},
		{"multibyte one over", strings.Repeat("é", 11), 10, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckStringLength("username", tc.value, tc.max)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), "username exceeds max length")
		})
	}
}

func TestCheckRequired(t *testing.T) {
	assert.NoError(t, CheckRequired("reason", "impersonating a doctor"))

	for _, blank := range []string{"", "   ", "\t\n"} {
		err := CheckRequired("reason", blank)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "reason is required")
	}
}
