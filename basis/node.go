// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package basis implements the basis pyramid: a directed acyclic graph of
// basis nodes, each owning a fixed sparse synthesis matrix A (and its
// transpose) and exposing forward synthesis and adjoint analysis (§4.1).
//
// Per the design notes (§9 "Pyramid as arena + index"), the Pyramid owns
// all nodes in a contiguous slice; a node holds its parent's integer index
// as a non-owning back-reference, never a pointer, so the whole pyramid can
// be built in topological order and torn down in reverse order without any
// cyclic ownership.
package basis

import "github.com/awd97/seamass/sparse"

// Kind identifies which basis-node variant a Node is, standing in for the
// source's virtual-dispatch hierarchy (Basis/BasisBspline/.../BasisMatrix)
// as a sum type (§9).
type Kind int

const (
	// KindMatrix is a node whose A is supplied directly as a COO matrix,
	// rather than built from a B-spline dictionary.
	KindMatrix Kind = iota
	// KindBsplineLeaf builds its A from bin edges and a B-spline order.
	KindBsplineLeaf
	// KindBsplineScale halves resolution along one dimension of its
	// parent's grid using the B-spline refinement kernel.
	KindBsplineScale
	// KindGroup aggregates channels along a declared group axis.
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindMatrix:
		return "Matrix"
	case KindBsplineLeaf:
		return "BsplineLeaf"
	case KindBsplineScale:
		return "BsplineScale"
	case KindGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// Node is the capability set every basis-pyramid node exposes, per §9
// ("a common capability set {synthesize, analyze, grid_info, is_transient}").
type Node interface {
	// Index is this node's position in the owning Pyramid's node slice.
	Index() int
	// ParentIndex is the owning Pyramid's node slice index of this node's
	// parent, or -1 for the root.
	ParentIndex() int
	// Transient reports whether this node is a pure pipeline stage whose
	// coefficients are not part of the solved output (§3).
	Transient() bool
	// Kind reports which basis-node variant this is.
	Kind() Kind
	// Grid describes this node's tensor-product B-spline grid.
	Grid() GridInfo

	// Synthesize sets f := A·x (or f += A·x if accumulate is true) and
	// returns f. x is in this node's own coefficient space; f is in the
	// parent's coefficient space (§4.1).
	Synthesize(x *sparse.Matrix, accumulate bool, f *sparse.Matrix) *sparse.Matrix
	// Analyze sets xE := Aᵀ·fE (using the elementwise-squared A if squared
	// is true) and returns xE (§4.1).
	Analyze(fE *sparse.Matrix, squared bool) *sparse.Matrix
	// L1 returns the cached column-sum vector Aᵀ·1 used as the L1 penalty
	// term in the multiplicative update (§4.2); it is recomputed only when
	// the node's structure changes (§4.1 invariants).
	L1() *sparse.Matrix
}

// base implements the common bookkeeping (index/parent/transient/grid/A/Aᵀ)
// shared by every Node variant; each variant embeds it and adds its own
// construction logic and, where needed (Group), extra operations.
type base struct {
	index       int
	parentIndex int
	transient   bool
	kind        Kind
	grid        GridInfo

	a  *sparse.Matrix // synthesis matrix: parent-rows × own-columns
	aT *sparse.Matrix // cached transpose

	l1 *sparse.Matrix // cached Aᵀ·1 column sums
}

// newBase stores a as an m×n synthesis matrix (m = parent's row count /
// bins, n = this node's own column count / basis functions), matching the
// source's a_/aT_ pair (BasisBsplineScale.cpp: "a_.init(m, n, ...)",
// "aT_.init(n, m, ...)"), and caches the 1×n column-sum vector Aᵀ·1 used as
// the L1 penalty (§4.1 invariants).
func newBase(kind Kind, index, parentIndex int, transient bool, grid GridInfo, a *sparse.Matrix) base {
	aT := a.T()
	m, _ := a.Dims()
	l1 := sparse.Mul(sparse.RowOfOnes(m), false, a, false)
	return base{
		index:       index,
		parentIndex: parentIndex,
		transient:   transient,
		kind:        kind,
		grid:        grid,
		a:           a,
		aT:          aT,
		l1:          l1,
	}
}

func (b base) Index() int         { return b.index }
func (b base) ParentIndex() int   { return b.parentIndex }
func (b base) Transient() bool    { return b.transient }
func (b base) Kind() Kind         { return b.kind }
func (b base) Grid() GridInfo     { return b.grid }
func (b base) L1() *sparse.Matrix { return b.l1 }

// Synthesize implements Node.Synthesize: f := x·Aᵀ, or f += x·Aᵀ if
// accumulate. x's rows are channels, columns are this node's n basis
// functions (n); Aᵀ is n×m, so the product is channels×m, i.e. f lives in
// the parent's (bin) row space — the row-major equivalent of the spec's
// column-vector "f += A·x" (§4.1).
func (b base) Synthesize(x *sparse.Matrix, accumulate bool, f *sparse.Matrix) *sparse.Matrix {
	if accumulate && f != nil {
		return sparse.MulAccum(f, x, false, b.aT, false)
	}
	return sparse.Mul(x, false, b.aT, false)
}

// Analyze implements Node.Analyze: xE := fE·A (using the elementwise square
// of A when squared is true), the row-major equivalent of "xE := Aᵀ·fE"
// (§4.1).
func (b base) Analyze(fE *sparse.Matrix, squared bool) *sparse.Matrix {
	if squared {
		sq := sparse.ElemSquare(b.a)
		return sparse.Mul(fE, false, sq, false)
	}
	return sparse.Mul(fE, false, b.a, false)
}
