// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optim

import (
	"math"

	"github.com/awd97/seamass/basis"
	"github.com/awd97/seamass/sparse"
)

// eps floors the denominators of the two divisions the SRL update performs
// (the error ratio b/f and the L1-shrinkage ratio xE/(l1+λ)), so a zero in
// either denominator produces a large finite ratio rather than a NaN or
// Inf, while a zero numerator always produces a zero ratio (§4.2 step 2,
// §7).
const eps = 1e-12

// SRL is the sparse Richardson–Lucy inner optimizer (§4.2): each Step
// synthesizes the current coefficient state down through the pyramid into
// bin space, forms the multiplicative error ratio against the observed
// data, analyzes it back up through the pyramid, and applies an
// L1-shrinkage multiplicative update to every non-transient node's
// coefficients, pruning anything that falls below a threshold fraction of
// its node's own maximum.
type SRL struct {
	pyramid        *basis.Pyramid
	b              *sparse.Matrix // channels × bins, the observed data in the root's bin space
	pruneThreshold float64
	channels       int

	lambda    float64
	iteration int
	xs        []*sparse.Matrix // indexed by pyramid node index; nil for transient nodes
}

var _ Optimizer = (*SRL)(nil)

// NewSRL builds an SRL optimizer over pyramid, solving against the observed
// data b (channels × bins, matching the root node's bin space). pruneThreshold
// is the fraction of a node's per-iteration maximum below which a
// coefficient is discarded (§4.2 step 6); it must be in [0,1).
func NewSRL(pyramid *basis.Pyramid, b *sparse.Matrix, pruneThreshold float64) *SRL {
	channels, _ := b.Dims()
	return &SRL{
		pyramid:        pyramid,
		b:              b,
		pruneThreshold: pruneThreshold,
		channels:       channels,
	}
}

// Init implements Optimizer.Init: every non-transient node's coefficients
// are seeded to a uniform positive value (one), except that an entirely
// zero observation seeds every node to zero instead — any positive seed
// would be driven to zero by the very first update in that case, and the
// zero-input edge case (§8) requires x_n = 0 immediately after Init, before
// any Step is taken.
func (s *SRL) Init(lambda float64) {
	s.lambda = lambda
	s.iteration = 0

	zeroInput := s.b.Sum() == 0
	s.xs = make([]*sparse.Matrix, s.pyramid.Len())
	for _, i := range s.pyramid.NonTransientIndices() {
		n := s.pyramid.At(i).Grid().N()
		if zeroInput {
			s.xs[i] = sparse.Zero(s.channels, n)
		} else {
			s.xs[i] = sparse.Constant(s.channels, n, 1)
		}
	}
}

// Xs implements Optimizer.Xs.
func (s *SRL) Xs() []*sparse.Matrix {
	return s.xs
}

// SetXs implements Optimizer.SetXs.
func (s *SRL) SetXs(xs []*sparse.Matrix) {
	s.xs = xs
}

// Iteration implements Optimizer.Iteration.
func (s *SRL) Iteration() int {
	return s.iteration
}

// Predict re-synthesizes the current coefficient state down to bin space
// without mutating it: f is the root's bin-space prediction and combinedRoot
// is the fully-telescoped coefficient matrix at node 0 (its own coefficients
// plus every descendant's contribution folded in), the same quantity a
// group node aggregates into Output.GXs.
func (s *SRL) Predict() (f, combinedRoot *sparse.Matrix) {
	combined := s.telescope()
	f = s.pyramid.At(0).Synthesize(combined[0], false, nil)
	return f, combined[0]
}

func (s *SRL) telescope() []*sparse.Matrix {
	nodes := s.pyramid.Nodes()
	n := len(nodes)
	combined := make([]*sparse.Matrix, n)
	for i := n - 1; i >= 0; i-- {
		x := s.xs[i]
		if x == nil {
			x = sparse.Zero(s.channels, nodes[i].Grid().N())
		}
		combined[i] = x.Copy()
		for _, c := range s.pyramid.Children(i) {
			combined[i] = nodes[c].Synthesize(combined[c], true, combined[i])
		}
	}
	return combined
}

// Step implements Optimizer.Step, performing the six numbered steps of
// §4.2: (1) synthesize the combined coefficient state down to bin space,
// (2) form the error ratio, (3) analyze it back up through the pyramid,
// (4)-(5) apply the L1-shrinkage multiplicative update, (6) prune.
func (s *SRL) Step() float64 {
	nodes := s.pyramid.Nodes()
	n := len(nodes)

	// Step 1: telescope every child's coefficients into its parent's
	// coefficient space, coarsest node first, then synthesize the
	// fully-combined root coefficients down into bin space.
	combined := s.telescope()
	f := nodes[0].Synthesize(combined[0], false, nil)

	// Step 2: the multiplicative error ratio.
	fE := sparse.ElemDivNonNeg(s.b, f, eps)

	// Step 3: analyze the ratio back up through the pyramid, root first,
	// each node's adjoint input being its parent's already-analyzed result.
	xE := make([]*sparse.Matrix, n)
	xE[0] = nodes[0].Analyze(fE, false)
	for i := 1; i < n; i++ {
		xE[i] = nodes[i].Analyze(xE[nodes[i].ParentIndex()], false)
	}

	// Steps 4-6: the L1-shrinkage multiplicative update and prune, for every
	// non-transient node. The RMS log-ratio between old and updated
	// non-zero coefficients is accumulated as the returned convergence
	// metric (§8 "gradient" in the driver's StepStats).
	var sumSq float64
	var count int
	for _, i := range s.pyramid.NonTransientIndices() {
		node := nodes[i]
		old := s.xs[i]

		denom := shrinkageDenominator(node.L1(), s.channels, s.lambda)
		factor := sparse.ElemDivNonNeg(xE[i], denom, eps)
		updated := sparse.ElemMul(old, factor)

		for r := 0; r < s.channels; r++ {
			old.Row(r, func(j int, ov float64) {
				nv := updated.At(r, j)
				if ov > 0 && nv > 0 {
					lr := math.Log(nv / ov)
					sumSq += lr * lr
					count++
				}
			})
		}

		threshold := s.pruneThreshold * updated.Max()
		s.xs[i] = sparse.Prune(updated, threshold)
	}

	s.iteration++
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// shrinkageDenominator broadcasts a node's cached 1×n L1 column-sum vector
// into a channels×n matrix and adds the shrinkage parameter lambda to every
// entry, producing the §4.2 step-5 denominator l1_n + λ.
func shrinkageDenominator(l1 *sparse.Matrix, channels int, lambda float64) *sparse.Matrix {
	return sparse.AddScalar(sparse.BroadcastRows(l1, channels), lambda)
}
