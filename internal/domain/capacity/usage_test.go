package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmarket/backend/internal/domain/resource"
	"github.com/gridmarket/backend/internal/domain/shared"
)

func testTotal() resource.Resources {
	return resource.Resources{CPU: 8, Memory: 16 * resource.Gigabyte, FastStorage: 512, BulkStorage: 1024}
}

func TestUsage_Consume(t *testing.T) {
	t.Run("accumulates holds", func(t *testing.T) {
		u := NewUsage(testTotal())

		require.NoError(t, u.Consume(resource.Resources{CPU: 4, Memory: 8 * resource.Gigabyte}))
		require.NoError(t, u.Consume(resource.Resources{CPU: 4, FastStorage: 512}))

		assert.Equal(t, uint64(8), u.Used.CPU)
		assert.Equal(t, resource.Resources{Memory: 8 * resource.Gigabyte, BulkStorage: 1024}, u.Free())
	})

	t.Run("rejects a hold exceeding any component", func(t *testing.T) {
		u := NewUsage(testTotal())
		require.NoError(t, u.Consume(resource.Resources{CPU: 6}))

		err := u.Consume(resource.Resources{CPU: 3})
		require.Error(t, err)
		assert.Equal(t, shared.CodeInsufficientResources, shared.ErrorCode(err))
		// failed consume leaves the ledger untouched
		assert.Equal(t, uint64(6), u.Used.CPU)
	})
}

func TestUsage_Release(t *testing.T) {
	u := NewUsage(testTotal())
	require.NoError(t, u.Consume(resource.Resources{CPU: 4, BulkStorage: 100}))

	u.Release(resource.Resources{CPU: 4, BulkStorage: 100})
	assert.True(t, u.Used.IsEmpty())

	// releasing more than held saturates instead of wrapping
	u.Release(resource.Resources{CPU: 1})
	assert.True(t, u.Used.IsEmpty())
}

func TestUsage_Resize(t *testing.T) {
	u := NewUsage(testTotal())
	old := resource.Resources{CPU: 4, Memory: 8 * resource.Gigabyte}
	require.NoError(t, u.Consume(old))

	t.Run("grows within the freed headroom", func(t *testing.T) {
		grown := resource.Resources{CPU: 8, Memory: 8 * resource.Gigabyte}
		require.NoError(t, u.Resize(old, grown))
		assert.Equal(t, grown, u.Used)
	})

	t.Run("rejects growth past total and rolls back", func(t *testing.T) {
		held := u.Used
		err := u.Resize(held, resource.Resources{CPU: 9})
		require.Error(t, err)
		assert.Equal(t, shared.CodeInsufficientResources, shared.ErrorCode(err))
		assert.Equal(t, held, u.Used)
	})
}

func TestUsage_Validate(t *testing.T) {
	u := NewUsage(testTotal())
	assert.NoError(t, u.Validate())

	u.Used = resource.Resources{CPU: 99}
	err := u.Validate()
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvariant, shared.ErrorCode(err))
}
