// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

import (
	"fmt"

	"github.com/awd97/seamass/sparse"
)

// MatrixNode is a basis node whose synthesis matrix is supplied directly as
// a COO matrix rather than built from a B-spline dictionary (§9 "sum type
// with variants {Matrix, BsplineLeaf, BsplineScale, Group}"). It is used as
// a standalone root when a caller already has a precomputed system matrix.
type MatrixNode struct {
	base
}

var _ Node = (*MatrixNode)(nil)

// NewMatrixNode wraps a caller-supplied COO matrix as a root basis node.
func NewMatrixNode(a *sparse.Matrix, transient bool) *MatrixNode {
	m, n := a.Dims()
	grid := NewGridInfo(1)
	grid.Scale[0] = 0
	grid.Offset[0] = 0
	grid.Extent[0] = n
	grid.Count = 1
	_ = m
	return &MatrixNode{base: newBase(KindMatrix, 0, -1, transient, grid, a)}
}

// Grouper is implemented by root nodes that additionally aggregate channels
// along a declared group axis, producing Output.GXs (§3, §4.1 "Group
// (channel-aggregation) construction").
type Grouper interface {
	Node
	// GroupSynthesize aggregates x's channel rows into aggregated-channel
	// output rows per the grouping supplied at construction, and carries
	// the aggregated coefficients forward through the wrapped root's own
	// synthesis so the result lives in the same bin space as Synthesize's
	// output (Data Model §3: "gXs = A_group·x_root").
	GroupSynthesize(x *sparse.Matrix, accumulate bool, g *sparse.Matrix) *sparse.Matrix
}

// GroupNode wraps a root node (typically a *BsplineLeaf) with an
// additional tall aggregation matrix summing or averaging channel rows of
// the root's coefficients into group rows (§4.1). It is itself the
// pyramid's root (index 0): Index/ParentIndex/Grid/Synthesize/Analyze/L1
// all delegate to the wrapped node unchanged, since a caller solving with
// a GroupNode root gets exactly the same per-channel xs/aXs the wrapped
// node alone would produce, plus the extra aggregated gXs. Kind reports
// KindGroup.
type GroupNode struct {
	Node
	group  *sparse.Matrix // groupCount × channels
	groupT *sparse.Matrix
}

var _ Grouper = (*GroupNode)(nil)

// NewGroupNode builds a GroupNode wrapping root, aggregating its channel
// rows according to groupOf (groupOf[c] is the group index of channel c,
// in [0, groupCount)). If average is true, each group row is the mean of
// its member channels rather than their sum.
func NewGroupNode(root Node, groupOf []int, groupCount int, average bool) (*GroupNode, error) {
	if groupCount <= 0 {
		return nil, fmt.Errorf("%w: group count must be positive, got %d", errConfig, groupCount)
	}
	counts := make([]int, groupCount)
	for _, g := range groupOf {
		if g < 0 || g >= groupCount {
			return nil, fmt.Errorf("%w: group index %d out of range [0,%d)", errConfig, g, groupCount)
		}
		counts[g]++
	}

	rows := make([]int, len(groupOf))
	cols := make([]int, len(groupOf))
	vals := make([]float64, len(groupOf))
	for c, g := range groupOf {
		rows[c], cols[c] = g, c
		if average {
			vals[c] = 1 / float64(counts[g])
		} else {
			vals[c] = 1
		}
	}

	group, err := sparse.NewCOO(groupCount, len(groupOf), rows, cols, vals)
	if err != nil {
		return nil, err
	}

	return &GroupNode{
		Node:   root,
		group:  group,
		groupT: group.T(),
	}, nil
}

// Kind implements Node.Kind.
func (g *GroupNode) Kind() Kind { return KindGroup }

// GroupSynthesize implements Grouper.GroupSynthesize.
func (g *GroupNode) GroupSynthesize(x *sparse.Matrix, accumulate bool, out *sparse.Matrix) *sparse.Matrix {
	aggregated := sparse.Mul(g.group, false, x, false)
	return g.Node.Synthesize(aggregated, accumulate, out)
}
