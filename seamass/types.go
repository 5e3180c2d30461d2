// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seamass

import (
	"gonum.org/v1/gonum/mat"

	"github.com/awd97/seamass/sparse"
)

// Input bundles everything the driver needs to build a basis pyramid and
// seed the SRL optimizer (§6.2 "init(input, ...)").
type Input struct {
	// BinEdges are the m/z bin edges shared by every spectrum (channel),
	// strictly increasing, len(BinEdges)-1 bins. Ignored when Matrix is set.
	BinEdges []float64
	// ScanTimes is one retention/scan-time value per spectrum. Leaving it
	// empty builds a 1-D, m/z-only pyramid; supplying it builds the 2-D
	// m/z×scan-time pyramid of §12.4, whose Data is a single channel holding
	// every spectrum's bins in one row (column = spectrum*numBins + bin).
	// Ignored when Matrix is set.
	ScanTimes []float64
	// Matrix, if non-nil, roots the pyramid at a caller-supplied system
	// matrix (bins × basis functions) instead of building a B-spline leaf
	// from BinEdges/ScanTimes — the plain-`BasisMatrix` root case of §12.2,
	// for callers who already have a precomputed synthesis matrix. Its row
	// count must match Data's column count (bins).
	Matrix *sparse.Matrix
	// Data is the observed bin vector b: channels × bins, non-negative.
	Data *sparse.Matrix
	// GroupOf assigns each channel to a group index in [0, GroupCount).
	// Leaving it empty (input.gN == 0 in §6.2) builds a plain m/z pyramid
	// with no group node.
	GroupOf    []int
	GroupCount int
	// MzScale is the leaf's dyadic m/z scale.
	MzScale int
	// ScanScale is the leaf's dyadic scan-time scale; ignored unless
	// ScanTimes is non-empty.
	ScanScale int
	// ScaleLevels is the number of dyadic coarsening levels appended above
	// the leaf, one ScaleNode per dimension per level (§4.1 "Scale (dyadic
	// pyramid) construction"). Zero builds a pyramid with only the leaf.
	ScaleLevels int
}

// Config holds the driver's tunable hyperparameters (§4.4).
type Config struct {
	// Shrinkage is the starting L1 penalty weight λ.
	Shrinkage float64
	// Taper enables the shrinkage-tapering schedule of §4.4; if false, the
	// solve terminates as soon as the gradient norm falls below Tolerance
	// at the starting Shrinkage.
	Taper bool
	// Tolerance is the gradient-norm convergence threshold ε.
	Tolerance float64
	// PruneThreshold is the fraction τ of a node's per-iteration maximum
	// below which a coefficient is discarded. Zero selects the §9 default
	// of 0.001.
	PruneThreshold float64
}

// Logger receives per-step progress output (§10.3, §12.1). A nil Logger
// disables it; *log.Logger satisfies this interface directly.
type Logger interface {
	Printf(format string, v ...any)
}

// StepStats reports per-step diagnostics (§12.1), generalizing the debug
// counters original_source/asrl/Asrl.cpp prints at iteration 0 and after
// every step from a raw stdout block to a returned, loggable value.
type StepStats struct {
	// NNZ is the total number of structurally non-zero coefficients across
	// every non-transient node.
	NNZ int
	// NX is the total number of coefficient slots (dense, pre-pruning)
	// across every non-transient node.
	NX int
	// Gradient is the convergence metric returned by this step.
	Gradient float64
	// Shrinkage is the λ this step ran at.
	Shrinkage float64
}

// Output holds the solved coefficients and their synthesized
// reconstructions (§3, §6.2, §12.5).
type Output struct {
	// Xs is the root's coefficients: channels × N(root), the same
	// quantity synthesized into AXs.
	Xs *mat.Dense
	// AXs is the root's bin-space reconstruction, A_root·x_root:
	// channels × bins.
	AXs *mat.Dense
	// GXs is the group-aggregated bin-space reconstruction,
	// A_group·x_root: groupCount × bins. Nil when the input has no group
	// node.
	GXs *mat.Dense
	// InputMass and ReconstructedMass are sum(b) and sum(AXs) respectively
	// (§8 property 3 "mass consistency", §12.5).
	InputMass         float64
	ReconstructedMass float64
}
