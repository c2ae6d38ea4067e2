package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUpCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2.5", 3},
		{"2.49", 2},
		{"2.51", 3},
		{"123456.5", 123457},
		{"0", 0},
		{"-2.5", -3},
		{"-2.49", -2},
	}
	for _, tc := range cases {
		got := RoundHalfUpCents(decimal.RequireFromString(tc.in))
		require.Equal(t, tc.want, got, "round %s", tc.in)
	}
}

func TestCostConservationUnderDivision(t *testing.T) {
	// 80 cents spread over 2 output units.
	perOutput := RoundHalfUpCents(Cents(80).Div(decimal.NewFromInt(2)))
	require.EqualValues(t, 40, perOutput)
}
