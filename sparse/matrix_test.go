// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sparse

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func mustCOO(t *testing.T, r, c int, rows, cols []int, vals []float64) *Matrix {
	t.Helper()
	m, err := NewCOO(r, c, rows, cols, vals)
	if err != nil {
		t.Fatalf("NewCOO(%d,%d): unexpected error: %v", r, c, err)
	}
	return m
}

func TestNewCOORejectsNegative(t *testing.T) {
	_, err := NewCOO(1, 1, []int{0}, []int{0}, []float64{-1})
	if err == nil {
		t.Fatalf("NewCOO with negative value: got nil error, want ErrNegativeValue")
	}
}

func TestNewCOORejectsOutOfRange(t *testing.T) {
	_, err := NewCOO(1, 1, []int{1}, []int{0}, []float64{1})
	if err == nil {
		t.Fatalf("NewCOO with out-of-range row: got nil error, want ErrIndexRange")
	}
}

func TestNewCOOSumsDuplicates(t *testing.T) {
	m := mustCOO(t, 2, 2, []int{0, 0, 1}, []int{0, 0, 1}, []float64{1, 2, 3})
	if got := m.At(0, 0); got != 3 {
		t.Errorf("At(0,0) = %v, want 3 (duplicates summed)", got)
	}
	if got := m.NNZ(); got != 2 {
		t.Errorf("NNZ() = %d, want 2", got)
	}
}

func TestTransposeRoundTrip(t *testing.T) {
	m := mustCOO(t, 2, 3, []int{0, 0, 1}, []int{0, 2, 1}, []float64{1, 2, 3})
	tt := m.T().T()
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if !floats.EqualWithinAbsOrRel(m.At(i, j), tt.At(i, j), 1e-12, 1e-12) {
				t.Errorf("At(%d,%d) = %v after double transpose, want %v", i, j, tt.At(i, j), m.At(i, j))
			}
		}
	}
}

func TestMulIdentity(t *testing.T) {
	// 2x2 identity times a 2x2 matrix returns the matrix unchanged.
	id := mustCOO(t, 2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 1})
	a := mustCOO(t, 2, 2, []int{0, 0, 1}, []int{0, 1, 1}, []float64{2, 3, 4})

	c := Mul(id, false, a, false)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !floats.EqualWithinAbsOrRel(c.At(i, j), a.At(i, j), 1e-12, 1e-12) {
				t.Errorf("(I*A)[%d,%d] = %v, want %v", i, j, c.At(i, j), a.At(i, j))
			}
		}
	}
}

func TestMulTranspose(t *testing.T) {
	a := mustCOO(t, 2, 3, []int{0, 0, 1}, []int{0, 2, 1}, []float64{1, 2, 3})
	// Aᵀ·A should be 3x3 and symmetric.
	ata := Mul(a, true, a, false)
	r, c := ata.Dims()
	if r != 3 || c != 3 {
		t.Fatalf("Dims() = (%d,%d), want (3,3)", r, c)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !floats.EqualWithinAbsOrRel(ata.At(i, j), ata.At(j, i), 1e-12, 1e-12) {
				t.Errorf("AᵀA not symmetric at (%d,%d): %v vs %v", i, j, ata.At(i, j), ata.At(j, i))
			}
		}
	}
}

func TestMulAccum(t *testing.T) {
	a := mustCOO(t, 1, 2, []int{0, 0}, []int{0, 1}, []float64{1, 1})
	b := mustCOO(t, 2, 1, []int{0, 1}, []int{0, 0}, []float64{2, 3})
	c0 := mustCOO(t, 1, 1, []int{0}, []int{0}, []float64{10})

	c := MulAccum(c0, a, false, b, false)
	if got, want := c.At(0, 0), 10.0+2.0+3.0; !floats.EqualWithinAbsOrRel(got, want, 1e-12, 1e-12) {
		t.Errorf("MulAccum result = %v, want %v", got, want)
	}
}

func TestElemDivNonNegZeroIsZeroNotNaN(t *testing.T) {
	a := Zero(1, 2)
	b := mustCOO(t, 1, 2, []int{0}, []int{1}, []float64{5})
	// a has a structural zero everywhere, so dividing must not manufacture
	// NaN at any position, and at the one position a does have no entry
	// the result has no entry either.
	r := ElemDivNonNeg(a, b, 1e-9)
	if r.NNZ() != 0 {
		t.Errorf("ElemDivNonNeg of an all-zero numerator: NNZ() = %d, want 0", r.NNZ())
	}

	c := mustCOO(t, 1, 2, []int{0}, []int{1}, []float64{10})
	r2 := ElemDivNonNeg(c, b, 1e-9)
	if got := r2.At(0, 1); math.IsNaN(got) || !floats.EqualWithinAbsOrRel(got, 2.0, 1e-12, 1e-12) {
		t.Errorf("ElemDivNonNeg(10,5) = %v, want 2", got)
	}
}

func TestPruneRemovesBelowThreshold(t *testing.T) {
	m := mustCOO(t, 1, 3, []int{0, 0, 0}, []int{0, 1, 2}, []float64{0.0001, 0.5, 1})
	p := Prune(m, 0.001)
	if p.NNZ() != 2 {
		t.Errorf("Prune NNZ() = %d, want 2", p.NNZ())
	}
}

func TestColumnOfOnesAndL1(t *testing.T) {
	// A^T * 1 should give column sums.
	a := mustCOO(t, 2, 2, []int{0, 0, 1}, []int{0, 1, 1}, []float64{1, 2, 3})
	ones := ColumnOfOnes(2)
	l1 := Mul(a, true, ones, false)
	if got, want := l1.At(0, 0), 1.0; got != want {
		t.Errorf("column 0 sum = %v, want %v", got, want)
	}
	if got, want := l1.At(1, 0), 5.0; got != want {
		t.Errorf("column 1 sum = %v, want %v", got, want)
	}
}

func TestToDenseAndToVec(t *testing.T) {
	m := mustCOO(t, 1, 3, []int{0, 0}, []int{0, 2}, []float64{1, 2})
	v := m.ToVec()
	if v.Len() != 3 {
		t.Fatalf("ToVec().Len() = %d, want 3", v.Len())
	}
	if v.AtVec(1) != 0 {
		t.Errorf("ToVec().AtVec(1) = %v, want 0", v.AtVec(1))
	}
	d := m.ToDense()
	r, c := d.Dims()
	if r != 1 || c != 3 {
		t.Errorf("ToDense().Dims() = (%d,%d), want (1,3)", r, c)
	}
}

func TestConstantFillsEveryEntry(t *testing.T) {
	m := Constant(2, 3, 1.5)
	if m.NNZ() != 6 {
		t.Errorf("Constant(2,3,1.5).NNZ() = %d, want 6", m.NNZ())
	}
	if got := m.At(1, 2); got != 1.5 {
		t.Errorf("At(1,2) = %v, want 1.5", got)
	}
	if z := Constant(2, 2, 0); z.NNZ() != 0 {
		t.Errorf("Constant(_,_,0).NNZ() = %d, want 0", z.NNZ())
	}
}

func TestCombineClampsNegativeToZero(t *testing.T) {
	a := mustCOO(t, 1, 2, []int{0, 0}, []int{0, 1}, []float64{1, 5})
	b := mustCOO(t, 1, 2, []int{0, 0}, []int{0, 1}, []float64{4, 1})

	// 1*a - 1*b: column 0 is 1-4=-3 (clamped to 0), column 1 is 5-1=4.
	c := Combine(a, 1, b, -1)
	if got := c.At(0, 0); got != 0 {
		t.Errorf("Combine negative result = %v, want clamped to 0", got)
	}
	if got, want := c.At(0, 1), 4.0; got != want {
		t.Errorf("Combine(0,1) = %v, want %v", got, want)
	}
	if c.NNZ() != 1 {
		t.Errorf("Combine NNZ() = %d, want 1 (clamped entry dropped)", c.NNZ())
	}
}

func TestBytesAndNNZReport(t *testing.T) {
	m := mustCOO(t, 2, 2, []int{0, 1}, []int{0, 1}, []float64{1, 2})
	if m.NNZ() != 2 {
		t.Errorf("NNZ() = %d, want 2", m.NNZ())
	}
	if m.Bytes() == 0 {
		t.Errorf("Bytes() = 0, want > 0")
	}
}
