// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seamass ties the basis pyramid and the SRL/EVE1 optimizers
// together into the core API of §6.2: build a pyramid from an Input, drive
// it to convergence with shrinkage tapering (§4.4), and export the solved
// coefficients.
package seamass

import (
	"fmt"
	"math"

	"github.com/awd97/seamass/basis"
	"github.com/awd97/seamass/bspline"
	"github.com/awd97/seamass/optim"
	"github.com/awd97/seamass/sparse"
)

const (
	// defaultPruneThreshold is §9's hard-coded τ, exposed as Config.PruneThreshold
	// with this value used when the caller leaves it at its zero value.
	defaultPruneThreshold = 0.001
	// taperFloor is the §4.4 shrinkage-tapering cutover: below this, a
	// further halving jumps straight to zero instead.
	taperFloor = 1.0 / 16
)

// Driver implements the core API of §6.2 and the shrinkage-tapering
// termination logic of §4.4.
type Driver struct {
	pyramid *basis.Pyramid
	srl     *optim.SRL
	outer   optim.Optimizer
	group   *basis.GroupNode
	data    *sparse.Matrix

	shrinkage float64
	taper     bool
	tolerance float64

	iteration int
	converged bool
	err       error

	// Logger receives per-step progress (§10.3). Nil disables it.
	Logger Logger
}

// New builds a pyramid from input and initializes both optimizers at
// cfg.Shrinkage (§6.2 "init(input, shrinkage, taper, tolerance)"). It
// returns a configuration error without starting a solve if input is
// malformed (non-monotone bin edges, empty data, negative intensities,
// bad group indices): see §7.
func New(input Input, cfg Config) (*Driver, error) {
	if input.Data == nil {
		return nil, fmt.Errorf("%w: input.Data is nil", errConfig)
	}
	channels, bins := input.Data.Dims()
	if channels == 0 || bins == 0 {
		return nil, fmt.Errorf("%w: input.Data has no channels or bins", errConfig)
	}

	var leaf basis.Node
	var err error
	switch {
	case input.Matrix != nil:
		if m, _ := input.Matrix.Dims(); m != bins {
			return nil, fmt.Errorf("%w: input.Matrix has %d rows, want %d matching input.Data bins", errConfig, m, bins)
		}
		leaf = basis.NewMatrixNode(input.Matrix, false)
	case len(input.ScanTimes) > 0:
		leaf, err = basis.NewBsplineMzScanLeaf(input.BinEdges, input.ScanTimes, input.MzScale, input.ScanScale, bspline.Order, false)
	default:
		leaf, err = basis.NewBsplineMzLeaf(input.BinEdges, input.MzScale, bspline.Order, false)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	pyr := basis.NewPyramid(leaf)

	// Each level registers one ScaleNode per grid dimension, chained so the
	// second dimension's scale node compounds on top of the first's rather
	// than branching independently from the leaf (§4.1 "One matrix per
	// dimension; composition is left to the caller").
	current := leaf
	for level := 0; level < input.ScaleLevels; level++ {
		for d := 0; d < leaf.Grid().Dimensions; d++ {
			node, err := basis.NewScaleNode(pyr.Len(), current, d, bspline.Order, false)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errConfig, err)
			}
			pyr.Append(node)
			current = node
		}
	}

	var group *basis.GroupNode
	if len(input.GroupOf) > 0 {
		group, err = basis.NewGroupNode(leaf, input.GroupOf, input.GroupCount, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errConfig, err)
		}
		pyr.ReplaceRoot(group)
	}

	pruneThreshold := cfg.PruneThreshold
	if pruneThreshold == 0 {
		pruneThreshold = defaultPruneThreshold
	}

	srl := optim.NewSRL(pyr, input.Data, pruneThreshold)
	outer := optim.NewEVE1(srl)
	outer.Init(cfg.Shrinkage)

	return &Driver{
		pyramid:   pyr,
		srl:       srl,
		outer:     outer,
		group:     group,
		data:      input.Data,
		shrinkage: cfg.Shrinkage,
		taper:     cfg.Taper,
		tolerance: cfg.Tolerance,
	}, nil
}

// Step performs one outer iteration (§6.2 "step() → bool"). It returns
// false once the solve has converged or failed; cont reports whether the
// caller should call Step again, and stats carries this step's diagnostics
// regardless of outcome.
func (d *Driver) Step() (cont bool, stats StepStats) {
	if d.err != nil || d.converged {
		return false, d.currentStats(0)
	}

	prev := append([]*sparse.Matrix(nil), d.outer.Xs()...)
	grad := d.outer.Step()
	d.iteration++
	stats = d.currentStats(grad)

	if d.Logger != nil {
		d.Logger.Printf("seamass: iteration %d nnz=%d nx=%d gradient=%g shrinkage=%g",
			d.iteration, stats.NNZ, stats.NX, stats.Gradient, stats.Shrinkage)
	}

	if math.IsNaN(grad) || math.IsInf(grad, 0) {
		// Roll back to the coefficients this step started from, so Output
		// still reports the last accepted iterate.
		d.outer.SetXs(prev)
		d.err = &NumericError{Iteration: d.iteration, Gradient: grad}
		return false, stats
	}

	if grad > d.tolerance {
		return true, stats
	}

	if d.shrinkage == 0 || !d.taper {
		d.converged = true
		return false, stats
	}

	// Taper path (§4.4): halve λ while the halved value would still clear
	// the floor, otherwise jump straight to zero; re-seed the outer
	// optimizer at the new λ and keep going.
	candidate := d.shrinkage * 0.5
	if candidate > taperFloor {
		d.shrinkage = candidate
	} else {
		d.shrinkage = 0
	}
	d.outer.Init(d.shrinkage)
	return true, stats
}

// Iteration implements the core API's "iteration() → int".
func (d *Driver) Iteration() int {
	return d.iteration
}

// Err returns the numeric-breakdown error that aborted the solve, or nil if
// the solve is still running or converged cleanly (§7 "a separate query ...
// per implementation choice").
func (d *Driver) Err() error {
	return d.err
}

// Output implements the core API's "output(out)", returning the root's
// coefficients and their synthesized reconstructions in their current
// state. It may be called between steps or after a converged/failed Step
// (§5 "never concurrently with a step").
func (d *Driver) Output() Output {
	f, combinedRoot := d.srl.Predict()

	out := Output{
		Xs:                combinedRoot.ToDense(),
		AXs:               f.ToDense(),
		InputMass:         d.data.Sum(),
		ReconstructedMass: f.Sum(),
	}
	if d.group != nil {
		g := d.group.GroupSynthesize(combinedRoot, false, nil)
		out.GXs = g.ToDense()
	}
	return out
}

func (d *Driver) currentStats(grad float64) StepStats {
	var nnz, nx int
	xs := d.outer.Xs()
	for _, i := range d.pyramid.NonTransientIndices() {
		x := xs[i]
		if x == nil {
			continue
		}
		nnz += x.NNZ()
		r, c := x.Dims()
		nx += r * c
	}
	return StepStats{NNZ: nnz, NX: nx, Gradient: grad, Shrinkage: d.shrinkage}
}
