package sync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritas/pkg/testutil"
)

func TestDoSerializesReadModifyWrite(t *testing.T) {
	m := NewShardedMutex()
	// One counter per key: only writers of the same key share a shard lock.
	var counts [3]int

	result := testutil.RunConcurrent(150, func(i int) error {
		key := fmt.Sprintf("user-%d", i%3)
		return m.Do(key, func() error {
			counts[i%3]++
			return nil
		})
	})

	require.Equal(t, int32(150), result.Successes, "first error: %v", result.First)
	assert.Equal(t, [3]int{50, 50, 50}, counts)
}

func TestDoPropagatesError(t *testing.T) {
	m := NewShardedMutex()
	errSave := errors.New("save failed")

	assert.ErrorIs(t, m.Do("user-1", func() error { return errSave }), errSave)
	// The shard must be released after a failed fn.
	assert.NoError(t, m.Do("user-1", func() error { return nil }))
}

func TestShardFor(t *testing.T) {
	m := NewShardedMutex()
	assert.Equal(t, 0, m.shardFor(""))
	assert.Equal(t, m.shardFor("user-42"), m.shardFor("user-42"))
	for i := range 64 {
		s := m.shardFor(fmt.Sprintf("user-%d", i))
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, shardCount)
	}
}
