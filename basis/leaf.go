// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

import (
	"fmt"
	"math"

	"github.com/awd97/seamass/bspline"
	"github.com/awd97/seamass/sparse"
)

// BsplineLeaf is the root of a pyramid: an order-k B-spline dictionary
// whose columns, evaluated and integrated over the input bin edges (and,
// for a 2-D pyramid, sampled at each spectrum's scan start time), produce
// one A row per (spectrum, bin) pair (§4.1 "Leaf (m/z B-spline)
// construction").
type BsplineLeaf struct {
	base
	order int
}

var _ Node = (*BsplineLeaf)(nil)

// NewBsplineMzLeaf builds a 1-D root leaf over a single spectrum's bin
// edges at the given dyadic m/z scale. binEdges must be strictly
// increasing and have at least 2 entries (configuration error otherwise,
// §7).
func NewBsplineMzLeaf(binEdges []float64, scale, order int, transient bool) (*BsplineLeaf, error) {
	if err := checkBinEdges(binEdges); err != nil {
		return nil, err
	}
	grid, a, err := buildMzLeafMatrix(binEdges, scale, order)
	if err != nil {
		return nil, err
	}
	return &BsplineLeaf{base: newBase(KindBsplineLeaf, 0, -1, transient, grid, a), order: order}, nil
}

// NewBsplineMzScanLeaf builds a 2-D root leaf tensor-producting an m/z
// B-spline dictionary (evaluated against binEdges, shared by every
// spectrum) with a scan-time B-spline dictionary sampled at scanTimes, one
// per spectrum, per §12.4. len(scanTimes) spectra each contribute
// len(binEdges)-1 bin rows, for len(scanTimes)*(len(binEdges)-1) rows
// total.
func NewBsplineMzScanLeaf(binEdges []float64, scanTimes []float64, mzScale, scanScale, order int, transient bool) (*BsplineLeaf, error) {
	if err := checkBinEdges(binEdges); err != nil {
		return nil, err
	}
	if len(scanTimes) == 0 {
		return nil, fmt.Errorf("%w: no scan times", errConfig)
	}

	mzGrid, mzOffset, mzExtent := mzGridExtent(binEdges, mzScale, order)
	scanOffset, scanExtent := scanGridExtent(scanTimes, scanScale, order)

	grid := NewGridInfo(2)
	grid.Scale = []int{mzScale, scanScale}
	grid.Offset = []int{mzOffset, scanOffset}
	grid.Extent = []int{mzExtent, scanExtent}
	grid.Count = 1
	_ = mzGrid

	numBins := len(binEdges) - 1
	m := len(scanTimes) * numBins
	n := mzExtent * scanExtent

	mzRes := bspline.MzPerTh(mzScale)
	scanRes := bspline.ScanPerMinute(scanScale)

	var rows, cols []int
	var vals []float64
	for s, t := range scanTimes {
		scanVals := make([]float64, scanExtent)
		for k := 0; k < scanExtent; k++ {
			scanVals[k] = bspline.Eval(order, t*scanRes-float64(scanOffset+k))
		}
		for b := 0; b < numBins; b++ {
			lo := binEdges[b]*mzRes - float64(mzOffset)
			hi := binEdges[b+1]*mzRes - float64(mzOffset)
			row := s*numBins + b
			for j := 0; j < mzExtent; j++ {
				mzVal := bspline.Integral(order, lo-float64(j), hi-float64(j))
				if mzVal == 0 {
					continue
				}
				for k := 0; k < scanExtent; k++ {
					if scanVals[k] == 0 {
						continue
					}
					rows = append(rows, row)
					cols = append(cols, j*scanExtent+k)
					vals = append(vals, mzVal*scanVals[k])
				}
			}
		}
	}

	a, err := sparse.NewCOO(m, n, rows, cols, vals)
	if err != nil {
		return nil, err
	}
	return &BsplineLeaf{base: newBase(KindBsplineLeaf, 0, -1, transient, grid, a), order: order}, nil
}

func checkBinEdges(binEdges []float64) error {
	if len(binEdges) < 2 {
		return fmt.Errorf("%w: need at least 2 bin edges, got %d", errConfig, len(binEdges))
	}
	for i := 1; i < len(binEdges); i++ {
		if binEdges[i] <= binEdges[i-1] {
			return fmt.Errorf("%w: bin edges must be strictly increasing at index %d", errConfig, i)
		}
	}
	return nil
}

func mzGridExtent(binEdges []float64, scale, order int) (grid GridInfo, offset, extent int) {
	res := bspline.MzPerTh(scale)
	lo := binEdges[0] * res
	hi := binEdges[len(binEdges)-1] * res
	offset = int(math.Floor(lo)) - order
	maxIdx := int(math.Ceil(hi)) + order
	extent = maxIdx - offset + 1

	grid = NewGridInfo(1)
	grid.Scale[0] = scale
	grid.Offset[0] = offset
	grid.Extent[0] = extent
	return grid, offset, extent
}

func scanGridExtent(scanTimes []float64, scale, order int) (offset, extent int) {
	res := bspline.ScanPerMinute(scale)
	lo, hi := scanTimes[0], scanTimes[0]
	for _, t := range scanTimes {
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}
	offset = int(math.Floor(lo*res)) - order
	maxIdx := int(math.Ceil(hi*res)) + order
	extent = maxIdx - offset + 1
	return offset, extent
}

func buildMzLeafMatrix(binEdges []float64, scale, order int) (GridInfo, *sparse.Matrix, error) {
	grid, offset, extent := mzGridExtent(binEdges, scale, order)
	res := bspline.MzPerTh(scale)
	numBins := len(binEdges) - 1

	var rows, cols []int
	var vals []float64
	for b := 0; b < numBins; b++ {
		lo := binEdges[b]*res - float64(offset)
		hi := binEdges[b+1]*res - float64(offset)
		for j := 0; j < extent; j++ {
			v := bspline.Integral(order, lo-float64(j), hi-float64(j))
			if v == 0 {
				continue
			}
			rows = append(rows, b)
			cols = append(cols, j)
			vals = append(vals, v)
		}
	}
	a, err := sparse.NewCOO(numBins, extent, rows, cols, vals)
	if err != nil {
		return GridInfo{}, nil, err
	}
	return grid, a, nil
}
