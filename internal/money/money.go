package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Minor represents a monetary value stored in minor units (cents).
type Minor = int64

// minorExp is the number of fractional digits carried by Minor.
const minorExp = 2

// ErrInvalidAmount is returned when a monetary string is not a parseable decimal.
var ErrInvalidAmount = errors.New("money: invalid amount")

// ErrOverflow is returned when a product share does not fit in Minor.
var ErrOverflow = errors.New("money: result out of range")

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

func inRange(d decimal.Decimal) bool {
	return d.Cmp(minMinor) >= 0 && d.Cmp(maxMinor) <= 0
}

// ToMinorUnits parses a base-10 decimal amount and rounds it half away from
// zero to the nearest minor unit.
func ToMinorUnits(value string) (Minor, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	shifted := d.Round(minorExp).Shift(minorExp)
	if !inRange(shifted) {
		return 0, fmt.Errorf("%w: out of range %q", ErrInvalidAmount, value)
	}
	return shifted.IntPart(), nil
}

// ToDecimalString renders minor units as a decimal with two fractional digits.
func ToDecimalString(m Minor) string {
	return decimal.New(m, -minorExp).StringFixed(minorExp)
}

// MulDivRound computes round(a*b/c) exactly, rounding half away from zero.
// A zero divisor yields zero. ErrOverflow is returned when the rounded
// quotient does not fit in Minor.
func MulDivRound(a, b, c Minor) (Minor, error) {
	if c == 0 {
		return 0, nil
	}
	num := decimal.NewFromInt(a).Mul(decimal.NewFromInt(b))
	den := decimal.NewFromInt(c)
	q, r := num.QuoRem(den, 0)
	// |r| < |c|; round away from zero once the remainder reaches half.
	if !r.IsZero() && r.Abs().Mul(decimal.NewFromInt(2)).Cmp(den.Abs()) >= 0 {
		if num.Sign()*den.Sign() > 0 {
			q = q.Add(decimal.NewFromInt(1))
		} else {
			q = q.Sub(decimal.NewFromInt(1))
		}
	}
	if !inRange(q) {
		return 0, fmt.Errorf("%w: %d*%d/%d", ErrOverflow, a, b, c)
	}
	return q.IntPart(), nil
}
