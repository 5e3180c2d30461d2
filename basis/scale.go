// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

import (
	"fmt"

	"github.com/awd97/seamass/bspline"
	"github.com/awd97/seamass/sparse"
)

// ScaleNode halves resolution along one dimension of its parent's grid
// using the B-spline half-sample refinement kernel (§4.1 "Scale (dyadic
// pyramid) construction").
type ScaleNode struct {
	base
	dimension int
}

var _ Node = (*ScaleNode)(nil)

// NewScaleNode builds a child of parent one dyadic level coarser along
// dimension. order must match the parent pyramid's fixed B-spline order.
func NewScaleNode(index int, parent Node, dimension, order int, transient bool) (*ScaleNode, error) {
	parentGrid := parent.Grid()
	if dimension < 0 || dimension >= parentGrid.Dimensions {
		return nil, fmt.Errorf("%w: dimension %d out of range [0,%d)", errConfig, dimension, parentGrid.Dimensions)
	}

	grid := parentGrid.Clone()
	grid.Scale[dimension] = parentGrid.Scale[dimension] - 1
	grid.Offset[dimension] = floorDiv(parentGrid.Offset[dimension], 2)
	grid.Extent[dimension] = (parentGrid.Offset[dimension]+parentGrid.Extent[dimension]-1-order)/2 + order + 1 - grid.Offset[dimension]

	m := parentGrid.Extent[dimension]
	n := grid.Extent[dimension]
	if n <= 0 {
		return nil, fmt.Errorf("%w: scale node along dimension %d has non-positive extent %d", errConfig, dimension, n)
	}

	h := bspline.RefinementKernel(order)
	offsetShift := order + ((parentGrid.Offset[dimension] + 1) % 2)

	var rows, cols []int
	var vals []float64
	for j := 0; j < n; j++ {
		for i, hi := range h {
			row := 2*j + i - offsetShift
			if row < 0 || row >= m {
				continue
			}
			rows = append(rows, row)
			cols = append(cols, j)
			vals = append(vals, hi)
		}
	}

	a, err := sparse.NewCOO(m, n, rows, cols, vals)
	if err != nil {
		return nil, err
	}

	return &ScaleNode{
		base:      newBase(KindBsplineScale, index, parent.Index(), transient, grid, a),
		dimension: dimension,
	}, nil
}

// Dimension returns the index of the grid dimension this node halves.
func (s *ScaleNode) Dimension() int { return s.dimension }

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
