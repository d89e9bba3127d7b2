package amount

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

func TestToFixedPoint(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals int
		want     string
		wantErr  bool
	}{
		{name: "whole number 18 decimals", human: "4", decimals: 18, want: "4000000000000000000"},
		{name: "fractional", human: "1.5", decimals: 18, want: "1500000000000000000"},
		{name: "zero decimals", human: "42", decimals: 0, want: "42"},
		{name: "full precision", human: "0.000000000000000001", decimals: 18, want: "1"},
		{name: "leading whitespace", human: " 2.25", decimals: 6, want: "2250000"},
		{name: "empty", human: "", decimals: 18, wantErr: true},
		{name: "non-numeric", human: "abc", decimals: 18, wantErr: true},
		{name: "zero", human: "0", decimals: 18, wantErr: true},
		{name: "zero with fraction digits", human: "0.000", decimals: 18, wantErr: true},
		{name: "negative", human: "-1", decimals: 18, wantErr: true},
		{name: "too many decimal places", human: "0.0000001", decimals: 6, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFixedPoint(tt.human, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToHuman(t *testing.T) {
	tests := []struct {
		name     string
		fixed    string
		decimals int
		want     string
	}{
		{name: "whole", fixed: "4000000000000000000", decimals: 18, want: "4"},
		{name: "fractional", fixed: "1500000000000000000", decimals: 18, want: "1.5"},
		{name: "smallest unit", fixed: "1", decimals: 18, want: "0.000000000000000001"},
		{name: "zero decimals", fixed: "42", decimals: 0, want: "42"},
		{name: "trailing zeros trimmed", fixed: "2250000", decimals: 6, want: "2.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixed, ok := new(big.Int).SetString(tt.fixed, 10)
			require.True(t, ok)
			assert.Equal(t, tt.want, ToHuman(fixed, tt.decimals))
		})
	}

	assert.Equal(t, "0", ToHuman(nil, 18))
}

func TestFixedPointRoundTrip(t *testing.T) {
	cases := []struct {
		human    string
		decimals int
	}{
		{"1", 0}, {"1", 18}, {"0.5", 18}, {"123.456", 6},
		{"0.000001", 6}, {"999999999.999999999999999999", 18},
	}
	for _, c := range cases {
		fixed, err := ToFixedPoint(c.human, c.decimals)
		require.NoError(t, err, "parse %q", c.human)
		assert.Equal(t, c.human, ToHuman(fixed, c.decimals), "round-trip %q/%d", c.human, c.decimals)
	}
}

func TestSufficient(t *testing.T) {
	hundred := big.NewInt(100)
	assert.True(t, Sufficient(hundred, big.NewInt(100)))
	assert.False(t, Sufficient(big.NewInt(99), hundred))
	assert.True(t, Sufficient(big.NewInt(101), hundred))
	assert.True(t, Sufficient(nil, nil))
	assert.False(t, Sufficient(nil, big.NewInt(1)))
}

func TestShortfall(t *testing.T) {
	assert.Equal(t, "0", Shortfall(big.NewInt(5), big.NewInt(5)).String())
	assert.Equal(t, "0", Shortfall(big.NewInt(9), big.NewInt(5)).String())
	assert.Equal(t, "3", Shortfall(big.NewInt(2), big.NewInt(5)).String())
	assert.Equal(t, "5", Shortfall(nil, big.NewInt(5)).String())
}
