// Package fixedpoint provides exact multiply-then-divide arithmetic over
// wide integers. Intermediate products are held in arbitrary precision so
// no operand magnitude can cause overflow or silent truncation.
package fixedpoint

import (
	"errors"
	"math/big"
)

// ErrDivisionByZero is returned when the denominator of a fixed-point
// division is zero. This is a programmer or data error, never expected
// during a correct evaluation.
var ErrDivisionByZero = errors.New("fixedpoint: division by zero")

var one = big.NewInt(1)

// MulDiv computes floor(a * b / denominator) without precision loss.
func MulDiv(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denominator), nil
}

// MulDivRoundingUp computes ceil(a * b / denominator) without precision loss.
func MulDivRoundingUp(a, b, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	quotient, remainder := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, one)
	}
	return quotient, nil
}
