package fixedpoint

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinor(t *testing.T) {
	t.Run("whole_amount", func(t *testing.T) {
		assert.Equal(t, int64(90_000_000), ToMinor(decimal.NewFromInt(90)))
	})

	t.Run("fractional_amount", func(t *testing.T) {
		assert.Equal(t, int64(12_857_142), ToMinor(decimal.RequireFromString("12.857142")))
	})

	t.Run("floors_excess_precision", func(t *testing.T) {
		assert.Equal(t, int64(1_234_567), ToMinor(decimal.RequireFromString("1.23456789")))
	})
}

func TestFromMinor(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.000006").Equal(FromMinor(6)))
	assert.True(t, decimal.NewFromInt(90).Equal(FromMinor(90_000_000)))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.000001", "1.5", "100", "12.857142"} {
		d := decimal.RequireFromString(s)
		assert.True(t, d.Equal(FromMinor(ToMinor(d))), "round trip of %s", s)
	}
}

func TestPct(t *testing.T) {
	bank := decimal.NewFromInt(100)
	pct := decimal.RequireFromString("0.9")
	assert.Equal(t, int64(90_000_000), Pct(bank, pct))
}
