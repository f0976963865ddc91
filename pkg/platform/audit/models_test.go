package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-5, DefaultListLimit},
		{25, 25},
		{MaxListLimit, MaxListLimit},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in), "limit %d", tt.in)
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryAdmin, CategoryOf(string(EventAccountStatusChanged)))
	assert.Equal(t, CategoryAdmin, CategoryOf(string(EventAccountDeleted)))
	assert.Equal(t, CategorySecurity, CategoryOf(string(EventAdminAccessDenied)))
	assert.Equal(t, CategoryOperations, CategoryOf(string(EventAccountReported)))
	assert.Equal(t, CategoryOperations, CategoryOf("anything_else"))
}
