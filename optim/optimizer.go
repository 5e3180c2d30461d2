// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optim implements the two optimizers layered on top of a basis
// pyramid (§4.2, §4.3): SRL, the inner sparse multiplicative-update solver,
// and EVE1, the Nesterov-style outer accelerator that wraps any Optimizer
// and extrapolates its iterates.
package optim

import "github.com/awd97/seamass/sparse"

// Optimizer is the shared capability both SRL and EVE1 expose, so the
// driver (§4.4) can wrap one in the other without knowing which is which —
// EVE1 implements this interface over an inner Optimizer precisely so the
// two compose (§4.3 "EVE1 wraps any inner optimizer exposing Step/Init").
type Optimizer interface {
	// Init (re-)starts the optimizer at shrinkage lambda, reseeding
	// coefficient state. The driver calls this once per taper step (§4.4).
	Init(lambda float64)
	// Step performs one iteration and returns a convergence metric: the
	// RMS log-ratio between the previous and updated non-zero coefficients
	// across every non-transient node (0 once nothing changed).
	Step() float64
	// Xs returns the current per-node coefficient state, indexed by the
	// owning Pyramid's node index; entries for transient nodes are nil.
	// The returned slice and its *sparse.Matrix elements must not be
	// mutated by the caller.
	Xs() []*sparse.Matrix
	// SetXs overwrites the coefficient state used as the starting point of
	// the next Step call. Used by EVE1 to feed its extrapolated iterate
	// back into the inner optimizer (§4.3 step 4).
	SetXs(xs []*sparse.Matrix)
	// Iteration reports how many Step calls have completed since the last
	// Init.
	Iteration() int
}
