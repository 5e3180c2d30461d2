// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse implements the non-negative sparse-matrix primitive the
// basis pyramid and optimizers are built on: construction from COO triples,
// accumulating multiply with optional transpose of either operand,
// elementwise divide/multiply/square/add-scalar, threshold pruning, and
// dense export. It plays the role the specification assigns to an external
// sparse-matrix collaborator; no pack repository supplies one, so this
// package is written from scratch in the idiom of gonum/mat (Dims/At
// accessors, a blas64.Vector-backed data slice) rather than as a generic
// sparse-linear-algebra library.
package sparse

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNegativeValue is returned when a COO triple carries a negative value;
// the core never represents signed quantities.
var ErrNegativeValue = errors.New("sparse: negative value in non-negative matrix")

// ErrShape is returned when an operation is attempted between matrices of
// mismatched dimension.
var ErrShape = errors.New("sparse: dimension mismatch")

// ErrIndexRange is returned when a COO triple has a row or column index
// outside [0, dim).
var ErrIndexRange = errors.New("sparse: index out of range")

// Matrix is a compressed-row sparse matrix of non-negative float64 values.
// The zero value is not usable; construct with NewCOO or Zero.
type Matrix struct {
	r, c int

	// rowPtr has length r+1; row i's entries occupy
	// [rowPtr[i], rowPtr[i+1]) in colIdx/data.
	rowPtr []int
	colIdx []int
	data   blas64.Vector
}

// Dims returns the row and column count.
func (m *Matrix) Dims() (r, c int) {
	return m.r, m.c
}

// NNZ reports the number of structurally non-zero entries.
func (m *Matrix) NNZ() int {
	if m == nil {
		return 0
	}
	return len(m.colIdx)
}

// Bytes reports the approximate memory occupied by the matrix's index and
// value storage, per the §6.1 "occupied byte size" requirement.
func (m *Matrix) Bytes() uintptr {
	const (
		intSize   = 8
		floatSize = 8
	)
	return uintptr(len(m.rowPtr))*intSize + uintptr(len(m.colIdx))*intSize + uintptr(m.data.N)*floatSize
}

// Zero returns an r×c matrix with no non-zero entries.
func Zero(r, c int) *Matrix {
	if r < 0 || c < 0 {
		panic("sparse: negative dimension")
	}
	return &Matrix{
		r:      r,
		c:      c,
		rowPtr: make([]int, r+1),
		data:   blas64.Vector{N: 0, Inc: 1, Data: nil},
	}
}

// NewCOO builds a Matrix of shape r×c from parallel triples (rows[k],
// cols[k], vals[k]). Duplicate (row,col) pairs are summed, matching the
// usual COO-to-CSR assembly convention. All vals must be non-negative and
// all indices within range, or construction fails (§7 configuration error).
func NewCOO(r, c int, rows, cols []int, vals []float64) (*Matrix, error) {
	if len(rows) != len(cols) || len(rows) != len(vals) {
		return nil, fmt.Errorf("sparse: mismatched COO slice lengths: %d rows, %d cols, %d vals", len(rows), len(cols), len(vals))
	}
	for k, v := range vals {
		if v < 0 {
			return nil, fmt.Errorf("%w: at (%d,%d)=%g", ErrNegativeValue, rows[k], cols[k], v)
		}
		if rows[k] < 0 || rows[k] >= r || cols[k] < 0 || cols[k] >= c {
			return nil, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrIndexRange, rows[k], cols[k], r, c)
		}
	}

	type entry struct {
		row, col int
		val      float64
	}
	entries := make([]entry, len(rows))
	for k := range rows {
		entries[k] = entry{rows[k], cols[k], vals[k]}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].row != entries[j].row {
			return entries[i].row < entries[j].row
		}
		return entries[i].col < entries[j].col
	})

	rowPtr := make([]int, r+1)
	colIdx := make([]int, 0, len(entries))
	vals2 := make([]float64, 0, len(entries))

	i := 0
	for row := 0; row < r; row++ {
		rowPtr[row] = len(colIdx)
		for i < len(entries) && entries[i].row == row {
			col := entries[i].col
			sum := entries[i].val
			i++
			for i < len(entries) && entries[i].row == row && entries[i].col == col {
				sum += entries[i].val
				i++
			}
			colIdx = append(colIdx, col)
			vals2 = append(vals2, sum)
		}
	}
	rowPtr[r] = len(colIdx)

	return &Matrix{
		r:      r,
		c:      c,
		rowPtr: rowPtr,
		colIdx: colIdx,
		data:   blas64.Vector{N: len(vals2), Inc: 1, Data: vals2},
	}, nil
}

// At returns the value at (i,j), or 0 if structurally absent.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.r || j < 0 || j >= m.c {
		panic(ErrIndexRange)
	}
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	for k := lo; k < hi; k++ {
		if m.colIdx[k] == j {
			return m.data.Data[k]
		}
	}
	return 0
}

// RowNNZ returns the number of structural non-zeros in row i.
func (m *Matrix) RowNNZ(i int) int {
	return m.rowPtr[i+1] - m.rowPtr[i]
}

// Row calls f for each structural non-zero in row i, in increasing column
// order. f must not mutate the matrix.
func (m *Matrix) Row(i int, f func(col int, val float64)) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	for k := lo; k < hi; k++ {
		f(m.colIdx[k], m.data.Data[k])
	}
}

// T returns the transpose as a new, independently-stored Matrix.
func (m *Matrix) T() *Matrix {
	rows := make([]int, m.NNZ())
	cols := make([]int, m.NNZ())
	vals := make([]float64, m.NNZ())
	n := 0
	for i := 0; i < m.r; i++ {
		m.Row(i, func(col int, val float64) {
			rows[n], cols[n], vals[n] = col, i, val
			n++
		})
	}
	t, err := NewCOO(m.c, m.r, rows, cols, vals)
	if err != nil {
		// rows/cols/vals are derived from an already-valid Matrix, so this
		// can only happen on an internal inconsistency.
		panic(err)
	}
	return t
}

// Copy returns an independent copy of m.
func (m *Matrix) Copy() *Matrix {
	cp := &Matrix{
		r:      m.r,
		c:      m.c,
		rowPtr: append([]int(nil), m.rowPtr...),
		colIdx: append([]int(nil), m.colIdx...),
	}
	data := append([]float64(nil), m.data.Data...)
	cp.data = blas64.Vector{N: len(data), Inc: 1, Data: data}
	return cp
}

// Mul computes C = A·B (or C = Aᵀ·B, A·Bᵀ, Aᵀ·Bᵀ per transA/transB), using
// a per-row dense accumulator so the result's row order, and therefore its
// floating-point summation order, is deterministic (§5 determinism).
func Mul(a *Matrix, transA bool, b *Matrix, transB bool) *Matrix {
	return MulAccum(nil, a, transA, b, transB)
}

// MulAccum computes C = c0 + A·B (c0 may be nil, meaning C = A·B), applying
// the requested transposes, and returns the new matrix; c0 is not mutated.
func MulAccum(c0 *Matrix, a *Matrix, transA bool, b *Matrix, transB bool) *Matrix {
	av, bv := a, b
	if transA {
		av = a.T()
	}
	if transB {
		bv = b.T()
	}
	if av.c != bv.r {
		panic(fmt.Errorf("%w: %dx%d · %dx%d", ErrShape, av.r, av.c, bv.r, bv.c))
	}
	if c0 != nil && (c0.r != av.r || c0.c != bv.c) {
		panic(fmt.Errorf("%w: accumulator %dx%d vs result %dx%d", ErrShape, c0.r, c0.c, av.r, bv.c))
	}

	rows := []int{}
	cols := []int{}
	vals := []float64{}
	acc := make([]float64, bv.c)
	seen := make([]bool, bv.c)
	touched := make([]int, 0, bv.c)

	for i := 0; i < av.r; i++ {
		for _, j := range touched {
			acc[j] = 0
			seen[j] = false
		}
		touched = touched[:0]

		av.Row(i, func(k int, aik float64) {
			bv.Row(k, func(j int, bkj float64) {
				if !seen[j] {
					seen[j] = true
					touched = append(touched, j)
				}
				acc[j] += aik * bkj
			})
		})
		if c0 != nil {
			c0.Row(i, func(j int, v float64) {
				if !seen[j] {
					seen[j] = true
					touched = append(touched, j)
				}
				acc[j] += v
			})
		}

		sort.Ints(touched)
		for _, j := range touched {
			if acc[j] != 0 {
				rows = append(rows, i)
				cols = append(cols, j)
				vals = append(vals, acc[j])
			}
		}
	}

	out, err := NewCOO(av.r, bv.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// ElemMul returns the elementwise (Hadamard) product of a and b, which must
// have identical dimensions.
func ElemMul(a, b *Matrix) *Matrix {
	return elemwise(a, b, func(x, y float64) float64 { return x * y })
}

// ElemSquare returns the elementwise square of m.
func ElemSquare(m *Matrix) *Matrix {
	rows, cols, vals := m.coo()
	floats.MulTo(vals, vals, vals)
	out, err := NewCOO(m.r, m.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// ElemDivNonNeg returns the elementwise ratio a[i,j] / max(b[i,j], eps),
// except that a structural zero of a always produces an exact 0, never a
// spurious eps-scaled value: this is the §4.2 step-2 error ratio
// "fE = b / max(f, eps); zero bins must produce zero ratio, not NaN".
func ElemDivNonNeg(a, b *Matrix, eps float64) *Matrix {
	if a.r != b.r || a.c != b.c {
		panic(fmt.Errorf("%w: %dx%d vs %dx%d", ErrShape, a.r, a.c, b.r, b.c))
	}
	rows, cols, vals := a.coo()
	for k := range vals {
		denom := b.At(rows[k], cols[k])
		if denom < eps {
			denom = eps
		}
		vals[k] = vals[k] / denom
	}
	out, err := NewCOO(a.r, a.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// AddScalar returns m with s added to every structural non-zero entry. It
// does not instantiate new entries for structural zeros: the L1-penalty
// denominator l1+λ built from it (see optim.shrinkageDenominator) has no
// entry for a basis column whose column sum is zero, such as the padding
// columns at the edges of a leaf's grid.
func AddScalar(m *Matrix, s float64) *Matrix {
	rows, cols, vals := m.coo()
	floats.AddConst(s, vals)
	out, err := NewCOO(m.r, m.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// Combine returns c1*a + c2*b, elementwise, with any negative result
// clamped to zero. This is the one place signed intermediate arithmetic is
// allowed to touch this otherwise non-negative-only type: EVE1's Nesterov
// extrapolation computes y + ((t-1)/tNext)*(y - xPrev), which is transiently
// signed until the §4.3 step-4 clamp is applied.
func Combine(a *Matrix, c1 float64, b *Matrix, c2 float64) *Matrix {
	if a.r != b.r || a.c != b.c {
		panic(fmt.Errorf("%w: %dx%d vs %dx%d", ErrShape, a.r, a.c, b.r, b.c))
	}
	acc := make(map[[2]int]float64)
	a.eachCoord(func(i, j int, v float64) { acc[[2]int{i, j}] += c1 * v })
	b.eachCoord(func(i, j int, v float64) { acc[[2]int{i, j}] += c2 * v })

	rows := make([]int, 0, len(acc))
	cols := make([]int, 0, len(acc))
	vals := make([]float64, 0, len(acc))
	for k, v := range acc {
		if v > 0 {
			rows = append(rows, k[0])
			cols = append(cols, k[1])
			vals = append(vals, v)
		}
	}
	out, err := NewCOO(a.r, a.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

func (m *Matrix) eachCoord(f func(i, j int, v float64)) {
	for i := 0; i < m.r; i++ {
		m.Row(i, func(j int, v float64) { f(i, j, v) })
	}
}

func elemwise(a, b *Matrix, f func(x, y float64) float64) *Matrix {
	if a.r != b.r || a.c != b.c {
		panic(fmt.Errorf("%w: %dx%d vs %dx%d", ErrShape, a.r, a.c, b.r, b.c))
	}
	rows := []int{}
	cols := []int{}
	vals := []float64{}
	for i := 0; i < a.r; i++ {
		a.Row(i, func(j int, av float64) {
			bv := b.At(i, j)
			if v := f(av, bv); v != 0 {
				rows = append(rows, i)
				cols = append(cols, j)
				vals = append(vals, v)
			}
		})
	}
	out, err := NewCOO(a.r, a.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

func (m *Matrix) coo() (rows, cols []int, vals []float64) {
	rows = make([]int, m.NNZ())
	cols = make([]int, m.NNZ())
	vals = make([]float64, m.NNZ())
	n := 0
	for i := 0; i < m.r; i++ {
		m.Row(i, func(col int, val float64) {
			rows[n], cols[n], vals[n] = i, col, val
			n++
		})
	}
	return rows, cols, vals
}

// Prune returns a copy of m with every entry whose value is strictly below
// threshold structurally removed.
func Prune(m *Matrix, threshold float64) *Matrix {
	rows, cols, vals := m.coo()
	keepRows := rows[:0:0]
	keepCols := cols[:0:0]
	keepVals := vals[:0:0]
	for k, v := range vals {
		if v >= threshold {
			keepRows = append(keepRows, rows[k])
			keepCols = append(keepCols, cols[k])
			keepVals = append(keepVals, v)
		}
	}
	out, err := NewCOO(m.r, m.c, keepRows, keepCols, keepVals)
	if err != nil {
		panic(err)
	}
	return out
}

// Max returns the largest entry in m, or 0 for an all-zero matrix.
func (m *Matrix) Max() float64 {
	max := 0.0
	for _, v := range m.data.Data[:m.NNZ()] {
		if v > max {
			max = v
		}
	}
	return max
}

// Sum returns the sum of all entries in m.
func (m *Matrix) Sum() float64 {
	sum := 0.0
	for _, v := range m.data.Data[:m.NNZ()] {
		sum += v
	}
	return sum
}

// ColumnOfOnes returns an n×1 matrix of ones, used to compute A^T·1 column
// sums via Mul.
func ColumnOfOnes(n int) *Matrix {
	rows := make([]int, n)
	cols := make([]int, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		rows[i], cols[i], vals[i] = i, 0, 1
	}
	m, err := NewCOO(n, 1, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return m
}

// Constant returns a fully dense r×c matrix with every entry set to v. v
// must be non-negative. Used to seed the optimizer's coefficient state with
// a uniform starting value (§4.2 step 0, "initialize every non-transient
// node's x to a uniform positive seed").
func Constant(r, c int, v float64) *Matrix {
	if v == 0 {
		return Zero(r, c)
	}
	rows := make([]int, 0, r*c)
	cols := make([]int, 0, r*c)
	vals := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			rows = append(rows, i)
			cols = append(cols, j)
			vals = append(vals, v)
		}
	}
	m, err := NewCOO(r, c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return m
}

// RowOfOnes returns a 1×n matrix of ones.
func RowOfOnes(n int) *Matrix {
	rows := make([]int, n)
	cols := make([]int, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		rows[i], cols[i], vals[i] = 0, i, 1
	}
	m, err := NewCOO(1, n, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return m
}

// BroadcastRows repeats a 1×c row vector into an n×c matrix, so that a
// per-basis-function quantity (one value per column, e.g. the cached L1
// column-sum vector) can be combined elementwise with a multi-channel
// coefficient matrix whose rows index channels (§3).
func BroadcastRows(row *Matrix, n int) *Matrix {
	if row.r != 1 {
		panic(fmt.Errorf("sparse: BroadcastRows requires a 1-row matrix, got %d rows", row.r))
	}
	rows := make([]int, 0, row.NNZ()*n)
	cols := make([]int, 0, row.NNZ()*n)
	vals := make([]float64, 0, row.NNZ()*n)
	for i := 0; i < n; i++ {
		row.Row(0, func(j int, v float64) {
			rows = append(rows, i)
			cols = append(cols, j)
			vals = append(vals, v)
		})
	}
	out, err := NewCOO(n, row.c, rows, cols, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// ToDense exports m to a dense row-major mat.Dense (r×c), as used to
// populate Output.Xs/AXs/GXs.
func (m *Matrix) ToDense() *mat.Dense {
	d := mat.NewDense(m.r, m.c, nil)
	for i := 0; i < m.r; i++ {
		m.Row(i, func(j int, v float64) {
			d.Set(i, j, v)
		})
	}
	return d
}

// ToVec flattens a single-row or single-column matrix to a dense
// *mat.VecDense.
func (m *Matrix) ToVec() *mat.VecDense {
	if m.r == 1 {
		v := mat.NewVecDense(m.c, nil)
		m.Row(0, func(j int, val float64) { v.SetVec(j, val) })
		return v
	}
	if m.c == 1 {
		v := mat.NewVecDense(m.r, nil)
		for i := 0; i < m.r; i++ {
			v.SetVec(i, m.At(i, 0))
		}
		return v
	}
	panic(fmt.Errorf("sparse: ToVec requires a row or column vector, got %dx%d", m.r, m.c))
}
