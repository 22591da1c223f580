package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResources_Add(t *testing.T) {
	a := Resources{CPU: 2, Memory: 4 * Gigabyte, FastStorage: 100, BulkStorage: 200}
	b := Resources{CPU: 1, Memory: 2 * Gigabyte, FastStorage: 50, BulkStorage: 25}

	sum := a.Add(b)

	assert.Equal(t, uint64(3), sum.CPU)
	assert.Equal(t, 6*Gigabyte, sum.Memory)
	assert.Equal(t, uint64(150), sum.FastStorage)
	assert.Equal(t, uint64(225), sum.BulkStorage)
	// operands are untouched
	assert.Equal(t, uint64(2), a.CPU)
}

func TestResources_Sub(t *testing.T) {
	t.Run("subtracts component-wise", func(t *testing.T) {
		a := Resources{CPU: 4, Memory: 8, FastStorage: 100, BulkStorage: 200}
		b := Resources{CPU: 1, Memory: 3, FastStorage: 40, BulkStorage: 50}

		diff := a.Sub(b)

		assert.Equal(t, Resources{CPU: 3, Memory: 5, FastStorage: 60, BulkStorage: 150}, diff)
	})

	t.Run("saturates at zero instead of wrapping", func(t *testing.T) {
		a := Resources{CPU: 1, Memory: 2}
		b := Resources{CPU: 5, Memory: 1, FastStorage: 10}

		diff := a.Sub(b)

		assert.Equal(t, Resources{CPU: 0, Memory: 1, FastStorage: 0, BulkStorage: 0}, diff)
	})
}

func TestResources_FitsIn(t *testing.T) {
	total := Resources{CPU: 8, Memory: 16, FastStorage: 512, BulkStorage: 1024}

	t.Run("equal vector fits", func(t *testing.T) {
		assert.True(t, total.FitsIn(total))
	})

	t.Run("smaller vector fits", func(t *testing.T) {
		assert.True(t, Resources{CPU: 8, Memory: 8}.FitsIn(total))
	})

	t.Run("any larger component fails", func(t *testing.T) {
		assert.False(t, Resources{CPU: 9}.FitsIn(total))
		assert.False(t, Resources{BulkStorage: 1025}.FitsIn(total))
	})
}

func TestResources_IsEmpty(t *testing.T) {
	assert.True(t, Resources{}.IsEmpty())
	assert.False(t, Resources{Memory: 1}.IsEmpty())
}
