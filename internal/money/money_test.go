package money_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-sales-stats/internal/money"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want money.Minor
	}{
		{"0", 0},
		{"12", 1200},
		{"12.3", 1230},
		{"1234.56", 123456},
		{" 7.00 ", 700},
		{"0.005", 1},
		{"0.004", 0},
		{"-0.005", -1},
		{"-13.10", -1310},
		{"1e2", 10000},
	}
	for _, tc := range cases {
		got, err := money.ToMinorUnits(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestToMinorUnitsInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1,000", "12.3.4", "100000000000000000000", "1e30", "-1e30", "92233720368547758.08"} {
		_, err := money.ToMinorUnits(in)
		require.ErrorIs(t, err, money.ErrInvalidAmount, in)
	}
}

func TestToDecimalString(t *testing.T) {
	require.Equal(t, "0.00", money.ToDecimalString(0))
	require.Equal(t, "13.00", money.ToDecimalString(1300))
	require.Equal(t, "0.05", money.ToDecimalString(5))
	require.Equal(t, "-13.00", money.ToDecimalString(-1300))
	require.Equal(t, "-0.50", money.ToDecimalString(-50))
}

func TestRoundTripNumericallyEqual(t *testing.T) {
	for _, in := range []string{"1", "1.5", "001.50", "99.99", "-2.1"} {
		m, err := money.ToMinorUnits(in)
		require.NoError(t, err)
		back, err := money.ToMinorUnits(money.ToDecimalString(m))
		require.NoError(t, err)
		require.Equal(t, m, back, in)
	}
}

func TestToMinorUnitsBounds(t *testing.T) {
	got, err := money.ToMinorUnits("92233720368547758.07")
	require.NoError(t, err)
	require.Equal(t, money.Minor(math.MaxInt64), got)

	got, err = money.ToMinorUnits("-92233720368547758.08")
	require.NoError(t, err)
	require.Equal(t, money.Minor(math.MinInt64), got)
}

func mulDivRound(t *testing.T, a, b, c money.Minor) money.Minor {
	t.Helper()
	got, err := money.MulDivRound(a, b, c)
	require.NoError(t, err)
	return got
}

func TestMulDivRound(t *testing.T) {
	require.Equal(t, money.Minor(350), mulDivRound(t, 500, 700, 1000))
	require.Equal(t, money.Minor(150), mulDivRound(t, 500, 300, 1000))
	// 100 * 1/3 = 33.33
	require.Equal(t, money.Minor(33), mulDivRound(t, 100, 1, 3))
	// 100 * 2/3 = 66.67
	require.Equal(t, money.Minor(67), mulDivRound(t, 100, 2, 3))
	// exact half rounds away from zero
	require.Equal(t, money.Minor(3), mulDivRound(t, 5, 1, 2))
	require.Equal(t, money.Minor(-3), mulDivRound(t, -5, 1, 2))
	require.Equal(t, money.Minor(0), mulDivRound(t, 10, 10, 0))
	// products beyond int64 stay exact
	require.Equal(t, money.Minor(4_000_000_000), mulDivRound(t, 8_000_000_000, 4_000_000_000, 8_000_000_000))
}

func TestMulDivRoundOverflow(t *testing.T) {
	_, err := money.MulDivRound(9_000_000_000_000_000_000, 9, 1)
	require.ErrorIs(t, err, money.ErrOverflow)
	_, err = money.MulDivRound(-9_000_000_000_000_000_000, 9, 1)
	require.ErrorIs(t, err, money.ErrOverflow)

	require.Equal(t, money.Minor(math.MaxInt64), mulDivRound(t, math.MaxInt64, 3, 3))
}
