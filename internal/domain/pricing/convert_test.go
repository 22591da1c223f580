package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertToSettlement(t *testing.T) {
	feed := PriceReading{Average: 500, Min: 100, Max: 1_000}

	t.Run("converts at the average price", func(t *testing.T) {
		// 10000 units at 500 mUSD/token: 10000 * 1e7 / 5e6 = 20000
		assert.Equal(t, uint64(20_000), ConvertToSettlement(10_000, feed))
	})

	t.Run("truncates sub-unit remainders", func(t *testing.T) {
		// 1 unit / 5e6 * 1e7 = 2 exactly; 3 units at 700 leave a remainder
		assert.Equal(t, uint64(2), ConvertToSettlement(1, feed))
		odd := PriceReading{Average: 700, Min: 100, Max: 1_000}
		assert.Equal(t, uint64(4), ConvertToSettlement(3, odd)) // 4.28... -> 4
	})

	t.Run("clamps a crashed feed to the floor", func(t *testing.T) {
		crashed := PriceReading{Average: 7, Min: 100, Max: 1_000}
		assert.Equal(t, uint64(100_000), ConvertToSettlement(10_000, crashed))
	})

	t.Run("clamps a spiked feed to the ceiling", func(t *testing.T) {
		spiked := PriceReading{Average: 90_000, Min: 100, Max: 1_000}
		assert.Equal(t, uint64(10_000), ConvertToSettlement(10_000, spiked))
	})

	t.Run("zero price yields nothing rather than dividing by zero", func(t *testing.T) {
		assert.Zero(t, ConvertToSettlement(10_000, PriceReading{}))
	})
}
