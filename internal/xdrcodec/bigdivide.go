package xdrcodec

import (
	"math/big"

	"github.com/stellar/go/support/errors"
)

// Rounding selects which way BigDivide rounds a non-exact quotient. The
// direction is consensus-critical: the taker's payment rounds up, what the
// taker receives rounds down, favoring the maker on every cross.
type Rounding int

const (
	// RoundDown truncates towards zero.
	RoundDown Rounding = iota
	// RoundUp rounds away from zero on any remainder.
	RoundUp
)

// ErrOverflow is returned when a BigDivide result does not fit in an int64.
var ErrOverflow = errors.New("xdrcodec: bigdivide result overflows int64")

// BigDivide computes floor_or_ceil(a*b/c) using a 128-bit intermediate
// product, matching stellar-core's bigDivide contract used throughout price
// and offer-amount computations. c must be positive.
func BigDivide(a, b, c int64, rounding Rounding) (int64, error) {
	if c <= 0 {
		return 0, errors.New("xdrcodec: bigdivide divisor must be positive")
	}
	if a < 0 || b < 0 {
		return 0, errors.New("xdrcodec: bigdivide operands must be non-negative")
	}

	prod := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	divisor := big.NewInt(c)

	quot := new(big.Int)
	rem := new(big.Int)
	quot.QuoRem(prod, divisor, rem)

	if rounding == RoundUp && rem.Sign() != 0 {
		quot.Add(quot, big.NewInt(1))
	}

	if !quot.IsInt64() {
		return 0, ErrOverflow
	}
	return quot.Int64(), nil
}
