package fixedpoint

import (
	"math/big"
	"testing"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big int literal: %s", s)
	}
	return n
}

func TestMulDivZeroDenominator(t *testing.T) {
	if _, err := MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Errorf("MulDiv with zero denominator: got %v, want ErrDivisionByZero", err)
	}
	if _, err := MulDivRoundingUp(big.NewInt(1), big.NewInt(1), nil); err != ErrDivisionByZero {
		t.Errorf("MulDivRoundingUp with nil denominator: got %v, want ErrDivisionByZero", err)
	}
}

func TestMulDivExactDivision(t *testing.T) {
	// When a*b is divisible by denom, floor and ceil agree.
	a := big.NewInt(1_000_000)
	b := big.NewInt(997_000)
	denom := big.NewInt(1_000)

	down, err := MulDiv(a, b, denom)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	up, err := MulDivRoundingUp(a, b, denom)
	if err != nil {
		t.Fatalf("MulDivRoundingUp: %v", err)
	}
	if down.Cmp(up) != 0 {
		t.Errorf("exact division: floor %s != ceil %s", down, up)
	}
	want := big.NewInt(997_000_000)
	if down.Cmp(want) != 0 {
		t.Errorf("MulDiv(1e6, 997000, 1000) = %s, want %s", down, want)
	}
}

func TestMulDivRoundingRelation(t *testing.T) {
	// ceil >= floor always; strictly greater iff a*b is not divisible by denom.
	cases := []struct{ a, b, d int64 }{
		{7, 3, 2},
		{10, 10, 3},
		{1, 1, 1},
		{123456789, 987654321, 1000003},
		{0, 55, 7},
	}
	for _, tc := range cases {
		a, b, d := big.NewInt(tc.a), big.NewInt(tc.b), big.NewInt(tc.d)
		down, _ := MulDiv(a, b, d)
		up, _ := MulDivRoundingUp(a, b, d)
		if down.Cmp(up) > 0 {
			t.Errorf("MulDiv(%d,%d,%d)=%s > MulDivRoundingUp=%s", tc.a, tc.b, tc.d, down, up)
		}
		rem := new(big.Int).Mul(a, b)
		rem.Mod(rem, d)
		divisible := rem.Sign() == 0
		if divisible != (down.Cmp(up) == 0) {
			t.Errorf("MulDiv(%d,%d,%d): divisible=%v but floor=%s ceil=%s", tc.a, tc.b, tc.d, divisible, down, up)
		}
	}
}

func TestMulDivWideOperands(t *testing.T) {
	// 256-bit operands: the intermediate product is ~512 bits and must not
	// lose precision.
	a := mustBig(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935") // 2^256-1
	b := mustBig(t, "340282366920938463463374607431768211456")                                          // 2^128
	d := big.NewInt(2)

	got, err := MulDiv(a, b, d)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	want := new(big.Int).Mul(a, b)
	want.Rsh(want, 1)
	if got.Cmp(want) != 0 {
		t.Errorf("wide MulDiv: got %s, want %s", got, want)
	}
}
