// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

// GridInfo describes the tensor-product B-spline grid owned by a basis
// node: a dyadic scale, integer offset and extent per dimension, plus the
// number of independent grids (channels) sharing this layout (§3).
type GridInfo struct {
	Dimensions int
	Scale      []int
	Offset     []int
	Extent     []int
	Count      int
}

// NewGridInfo returns a GridInfo of the given dimensionality with zeroed
// scale/offset/extent slices ready to be filled in by a constructor.
func NewGridInfo(dimensions int) GridInfo {
	return GridInfo{
		Dimensions: dimensions,
		Scale:      make([]int, dimensions),
		Offset:     make([]int, dimensions),
		Extent:     make([]int, dimensions),
		Count:      1,
	}
}

// N returns the number of coefficient columns: the product of the extents
// across all dimensions.
func (g GridInfo) N() int {
	n := 1
	for _, e := range g.Extent {
		n *= e
	}
	return n
}

// Size returns the total number of coefficients across all Count grids.
func (g GridInfo) Size() int64 {
	return int64(g.N()) * int64(g.Count)
}

// Clone returns an independent copy of g.
func (g GridInfo) Clone() GridInfo {
	c := g
	c.Scale = append([]int(nil), g.Scale...)
	c.Offset = append([]int(nil), g.Offset...)
	c.Extent = append([]int(nil), g.Extent...)
	return c
}
