package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroydoc/upd-processor/internal/decimal"
)

func TestFromString(t *testing.T) {
	d, err := decimal.FromString("123456.78")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("123456.78")))

	_, err = decimal.FromString("not-a-number")
	require.Error(t, err)
}

func TestMustFromString(t *testing.T) {
	d := decimal.MustFromString("999.99")
	assert.True(t, d.Equal(dec.RequireFromString("999.99")))

	assert.Panics(t, func() {
		decimal.MustFromString("invalid")
	})
}

func TestParseRussian(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dot separator", "350.00", "350.00"},
		{"comma separator", "350,00", "350.00"},
		{"space groups", "1 234 567,89", "1234567.89"},
		{"nbsp groups", "1 234 567.89", "1234567.89"},
		{"plain integer", "42000", "42000"},
		{"leading whitespace", "  17,5", "17.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.ParseRussian(tt.input)
			require.NoError(t, err)
			assert.True(t, d.Equal(dec.RequireFromString(tt.expected)),
				"got %s, want %s", d, tt.expected)
		})
	}

	_, err := decimal.ParseRussian("сто рублей")
	require.Error(t, err)
}

func TestApproxEqual(t *testing.T) {
	a := dec.RequireFromString("100.00")
	assert.True(t, decimal.ApproxEqual(a, dec.RequireFromString("100.00")))
	assert.True(t, decimal.ApproxEqual(a, dec.RequireFromString("100.01")))
	assert.True(t, decimal.ApproxEqual(a, dec.RequireFromString("99.99")))
	assert.False(t, decimal.ApproxEqual(a, dec.RequireFromString("100.02")))
	assert.False(t, decimal.ApproxEqual(a, dec.RequireFromString("99.98")))
}

func TestWithinTolerance(t *testing.T) {
	limit := dec.RequireFromString("120.00")
	assert.True(t, decimal.WithinTolerance(dec.RequireFromString("119.00"), limit))
	assert.True(t, decimal.WithinTolerance(dec.RequireFromString("120.00"), limit))
	assert.True(t, decimal.WithinTolerance(dec.RequireFromString("120.005"), limit))
	assert.False(t, decimal.WithinTolerance(dec.RequireFromString("120.01"), limit))
	assert.False(t, decimal.WithinTolerance(dec.RequireFromString("120.02"), limit))
}

func TestMulDiv(t *testing.T) {
	assert.True(t, decimal.Mul(dec.NewFromInt(100), dec.RequireFromString("0.15")).Equal(dec.NewFromInt(15)))
	assert.True(t, decimal.Div(dec.NewFromInt(100), dec.NewFromInt(3)).Equal(dec.RequireFromString("33.33")))
	assert.True(t, decimal.Div(dec.NewFromInt(100), dec.Zero).IsZero())
}

func TestVATFromRate(t *testing.T) {
	amount := dec.RequireFromString("35000.00")
	vat := decimal.VATFromRate(amount, dec.NewFromInt(20))
	assert.True(t, vat.Equal(dec.RequireFromString("7000.00")), "got %s", vat)

	assert.True(t, decimal.VATFromRate(amount, dec.Zero).IsZero())
}

func TestSum(t *testing.T) {
	total := decimal.Sum([]dec.Decimal{
		dec.RequireFromString("35000.00"),
		dec.RequireFromString("16000.00"),
	})
	assert.True(t, total.Equal(dec.RequireFromString("51000.00")))
}
