// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seamass

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/awd97/seamass/sparse"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func matrixFromRow(t *testing.T, row []float64) *sparse.Matrix {
	t.Helper()
	cols := make([]int, 0, len(row))
	rows := make([]int, 0, len(row))
	vals := make([]float64, 0, len(row))
	for j, v := range row {
		if v == 0 {
			continue
		}
		rows = append(rows, 0)
		cols = append(cols, j)
		vals = append(vals, v)
	}
	m, err := sparse.NewCOO(1, len(row), rows, cols, vals)
	if err != nil {
		t.Fatalf("NewCOO: %v", err)
	}
	return m
}

// gaussianCounts discretizes a Gaussian of the given area, mean and sigma
// over edges into one count per bin (§8 "Single Gaussian peak" / "Two
// overlapping peaks"), using distuv.Normal as the teacher's test files do
// for synthetic fixtures (§10.5).
func gaussianCounts(edges []float64, mean, sigma, area float64) []float64 {
	dist := distuv.Normal{Mu: mean, Sigma: sigma}
	counts := make([]float64, len(edges)-1)
	for i := range counts {
		width := edges[i+1] - edges[i]
		center := (edges[i] + edges[i+1]) / 2
		counts[i] = area * dist.Prob(center) * width
	}
	return counts
}

// poissonCounts draws one Poisson(lambda) sample per bin (§8 "Pure noise"),
// seeded deterministically via golang.org/x/exp/rand the way gonum/stat's
// own tests seed distuv sources (§10.5, §8 property 5).
func poissonCounts(n int, lambda float64, seed uint64) []float64 {
	dist := distuv.Poisson{Lambda: lambda, Src: rand.NewSource(seed)}
	counts := make([]float64, n)
	for i := range counts {
		counts[i] = dist.Rand()
	}
	return counts
}

func runToConvergence(t *testing.T, d *Driver, maxIterations int) StepStats {
	t.Helper()
	var stats StepStats
	for i := 0; i < maxIterations; i++ {
		cont, s := d.Step()
		stats = s
		if !cont {
			if d.Err() != nil {
				t.Fatalf("solve failed: %v", d.Err())
			}
			return stats
		}
	}
	t.Fatalf("did not converge within %d iterations (last gradient %v)", maxIterations, stats.Gradient)
	return stats
}

func TestNewRejectsNilDataAcceptsAllZeroData(t *testing.T) {
	edges := linspace(400, 401, 11)
	if _, err := New(Input{BinEdges: edges, MzScale: 1}, Config{}); !IsConfigError(err) {
		t.Errorf("New with nil Data: got %v, want a configuration error", err)
	}

	allZero := matrixFromRow(t, make([]float64, 10))
	if _, err := New(Input{BinEdges: edges, Data: allZero, MzScale: 1}, Config{}); err != nil {
		t.Errorf("New with all-zero Data: unexpected error %v", err)
	}
}

func TestNewRejectsNonMonotoneBinEdges(t *testing.T) {
	edges := []float64{400, 400.1, 400.05, 401}
	data := matrixFromRow(t, []float64{1, 1, 1})
	if _, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{}); !IsConfigError(err) {
		t.Errorf("New with non-monotone bin edges: got %v, want a configuration error", err)
	}
}

func TestZeroInputConvergesOnFirstStepWithoutTaper(t *testing.T) {
	edges := linspace(400, 401, 21)
	data := matrixFromRow(t, make([]float64, 20))

	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{Shrinkage: 0, Taper: false, Tolerance: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cont, stats := d.Step()
	if cont {
		t.Errorf("first Step on zero input: cont = true, want false (converges immediately)")
	}
	if stats.Gradient != 0 {
		t.Errorf("first Step on zero input: gradient = %v, want 0", stats.Gradient)
	}
	if d.Err() != nil {
		t.Errorf("first Step on zero input: Err() = %v, want nil", d.Err())
	}
}

// TestTaperScheduleVisitsExpectedSequence exercises §8's "Taper schedule"
// scenario directly: with an all-zero input the gradient is exactly 0 on
// every step (see TestZeroInputConvergesOnFirstStepWithoutTaper), so with
// taper enabled the driver must taper all the way down one halving per
// step, visiting exactly the sequence named in §8.
func TestTaperScheduleVisitsExpectedSequence(t *testing.T) {
	edges := linspace(400, 401, 21)
	data := matrixFromRow(t, make([]float64, 20))

	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{Shrinkage: 8, Taper: true, Tolerance: 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []float64{8, 4, 2, 1, 0.5, 0.25, 0.125, 0}
	for i, wantLambda := range want {
		cont, stats := d.Step()
		if stats.Shrinkage != wantLambda {
			t.Errorf("step %d: shrinkage = %v, want %v", i, stats.Shrinkage, wantLambda)
		}
		lastStep := i == len(want)-1
		if lastStep && cont {
			t.Errorf("final step: cont = true, want false (shrinkage reached 0, converged)")
		}
		if !lastStep && !cont {
			t.Errorf("step %d: cont = false, want true (still tapering)", i)
		}
	}
}

// nanOptimizer is a minimal optim.Optimizer test double used to exercise
// Driver.Step's numeric-breakdown path (§4.2 "Failure semantics", §7
// "Numeric breakdown") without needing to actually destabilize the SRL
// iteration, which never produces a NaN by construction (every division in
// the optimizer is epsilon-floored).
type nanOptimizer struct {
	xs []*sparse.Matrix
}

func (n *nanOptimizer) Init(lambda float64)              {}
func (n *nanOptimizer) Step() float64                    { return math.NaN() }
func (n *nanOptimizer) Xs() []*sparse.Matrix             { return n.xs }
func (n *nanOptimizer) SetXs(xs []*sparse.Matrix)        { n.xs = xs }
func (n *nanOptimizer) Iteration() int                   { return 0 }

func TestStepAbortsOnNaNGradient(t *testing.T) {
	edges := linspace(400, 401, 11)
	data := matrixFromRow(t, make([]float64, 10))
	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.outer = &nanOptimizer{xs: make([]*sparse.Matrix, d.pyramid.Len())}

	cont, stats := d.Step()
	if cont {
		t.Errorf("Step after NaN gradient: cont = true, want false")
	}
	if !math.IsNaN(stats.Gradient) {
		t.Errorf("Step after NaN gradient: stats.Gradient = %v, want NaN", stats.Gradient)
	}
	var numErr *NumericError
	if !errors.As(d.Err(), &numErr) {
		t.Fatalf("Err() = %v, want a *NumericError", d.Err())
	}
}

func TestSingleGaussianPeakReconstructsApproximateMass(t *testing.T) {
	edges := linspace(400, 401, 1001)
	counts := gaussianCounts(edges, 400.5, 0.002, 1000)
	data := matrixFromRow(t, counts)

	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{Shrinkage: 1, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runToConvergence(t, d, 500)

	out := d.Output()
	if out.ReconstructedMass > out.InputMass*1.1 {
		t.Errorf("reconstructed mass %v exceeds input mass %v by more than 10%%", out.ReconstructedMass, out.InputMass)
	}
	if out.ReconstructedMass < out.InputMass*0.5 {
		t.Errorf("reconstructed mass %v is less than half the input mass %v", out.ReconstructedMass, out.InputMass)
	}

	r, c := out.Xs.Dims()
	total := r * c
	nnz := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if out.Xs.At(i, j) != 0 {
				nnz++
			}
		}
	}
	if nnz >= total {
		t.Errorf("root coefficients: nnz = %d of %d, want a sparse solution (some pruning to have occurred)", nnz, total)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := out.Xs.At(i, j); v < 0 {
				t.Errorf("root coefficient (%d,%d) = %v, want >= 0", i, j, v)
			}
		}
	}
}

func TestPureNoiseSolveStaysSparse(t *testing.T) {
	const numBins = 2000
	edges := linspace(400, 401, numBins+1)
	counts := poissonCounts(numBins, 10, 1)
	data := matrixFromRow(t, counts)

	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 1}, Config{Shrinkage: 4, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runToConvergence(t, d, 500)

	out := d.Output()
	r, c := out.Xs.Dims()
	nnz := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if out.Xs.At(i, j) != 0 {
				nnz++
			}
		}
	}
	if frac := float64(nnz) / float64(r*c); frac > 0.5 {
		t.Errorf("pure-noise solve: non-zero fraction = %v, want a substantially sparser solution", frac)
	}
}

// TestTwoDScanTimePyramidBuildsAndStepsWithoutError exercises §8's "2-D
// (m/z × scan-time)" scenario. A 2-D leaf's own A already tensors the
// scan-time dimension into its row space (row = spectrum*numBins + bin, per
// §12.4), so the observed data here is a single channel holding every
// spectrum's bins flattened into one row, not one row per spectrum.
func TestTwoDScanTimePyramidBuildsAndStepsWithoutError(t *testing.T) {
	const numSpectra = 8
	const numBins = 50
	edges := linspace(400, 401, numBins+1)
	scanTimes := linspace(0, 10, numSpectra)

	flat := make([]float64, numSpectra*numBins)
	for s, st := range scanTimes {
		center := 400.2 + 0.05*st/10
		row := gaussianCounts(edges, center, 0.01, 200)
		copy(flat[s*numBins:(s+1)*numBins], row)
	}
	data := matrixFromRow(t, flat)

	d, err := New(Input{
		BinEdges:  edges,
		ScanTimes: scanTimes,
		Data:      data,
		MzScale:   1,
		ScanScale: 4,
	}, Config{Shrinkage: 1, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New (2-D pyramid): %v", err)
	}

	for i := 0; i < 50; i++ {
		cont, stats := d.Step()
		if stats.Gradient < 0 {
			t.Errorf("step %d: gradient = %v, want >= 0", i, stats.Gradient)
		}
		if !cont {
			break
		}
	}
	if d.Err() != nil {
		t.Fatalf("2-D solve failed: %v", d.Err())
	}

	out := d.Output()
	r, c := out.AXs.Dims()
	if r != 1 || c != numSpectra*numBins {
		t.Errorf("AXs dims = (%d,%d), want (1,%d)", r, c, numSpectra*numBins)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := out.AXs.At(i, j); v < 0 {
				t.Errorf("AXs(%d,%d) = %v, want >= 0", i, j, v)
			}
		}
	}
}

// TestTwoOverlappingPeaksResolveDistinctLocalMaxima exercises §8's "Two
// overlapping peaks" scenario directly: two Gaussians 6 mTh apart, closer
// together than either peak's own width, must still surface as two distinct
// local maxima in xs after convergence at scale 3 — not merge into one.
func TestTwoOverlappingPeaksResolveDistinctLocalMaxima(t *testing.T) {
	const numBins = 2000
	edges := linspace(500.48, 500.52, numBins+1)
	counts := gaussianCounts(edges, 500.497, 0.002, 500)
	peak2 := gaussianCounts(edges, 500.503, 0.002, 500)
	for i := range counts {
		counts[i] += peak2[i]
	}
	data := matrixFromRow(t, counts)

	d, err := New(Input{BinEdges: edges, Data: data, MzScale: 3}, Config{Shrinkage: 1, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	runToConvergence(t, d, 500)

	out := d.Output()
	_, c := out.Xs.Dims()

	var peaks []int
	for j := 0; j < c; j++ {
		v := out.Xs.At(0, j)
		if v <= 0 {
			continue
		}
		prevOK := j == 0 || out.Xs.At(0, j-1) < v
		nextOK := j == c-1 || out.Xs.At(0, j+1) < v
		if prevOK && nextOK {
			peaks = append(peaks, j)
		}
	}

	if len(peaks) < 2 {
		t.Fatalf("found %d local maxima in xs, want at least 2 (peaks at %v, coefficient count %d)", len(peaks), peaks, c)
	}
	if peaks[len(peaks)-1]-peaks[0] < 2 {
		t.Errorf("local maxima %v are not distinct (too close together to resolve two peaks)", peaks)
	}
}

// TestMatrixRootedDriverUsesCallerSuppliedSystemMatrix exercises the
// plain-BasisMatrix-root case of §12.2: a caller who already has a
// precomputed system matrix (rather than B-spline bin edges) roots the
// pyramid directly at it via Input.Matrix.
func TestMatrixRootedDriverUsesCallerSuppliedSystemMatrix(t *testing.T) {
	const bins, n = 20, 5
	var rows, cols []int
	var vals []float64
	for i := 0; i < bins; i++ {
		j := i * n / bins
		rows = append(rows, i)
		cols = append(cols, j)
		vals = append(vals, 1)
	}
	a, err := sparse.NewCOO(bins, n, rows, cols, vals)
	if err != nil {
		t.Fatalf("NewCOO: %v", err)
	}

	counts := make([]float64, bins)
	for i := range counts {
		counts[i] = 10
	}
	data := matrixFromRow(t, counts)

	d, err := New(Input{Matrix: a, Data: data}, Config{Shrinkage: 1, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New (matrix-rooted): %v", err)
	}
	runToConvergence(t, d, 500)

	out := d.Output()
	r, c := out.AXs.Dims()
	if r != 1 || c != bins {
		t.Errorf("AXs dims = (%d,%d), want (1,%d)", r, c, bins)
	}
	for j := 0; j < c; j++ {
		if v := out.AXs.At(0, j); v < 0 {
			t.Errorf("AXs(0,%d) = %v, want >= 0", j, v)
		}
	}
}

// TestNewRejectsMismatchedMatrixRows exercises the configuration-error path
// when Input.Matrix's row count disagrees with Data's bin count.
func TestNewRejectsMismatchedMatrixRows(t *testing.T) {
	a, err := sparse.NewCOO(5, 3, []int{0, 1, 2, 3, 4}, []int{0, 1, 2, 0, 1}, []float64{1, 1, 1, 1, 1})
	if err != nil {
		t.Fatalf("NewCOO: %v", err)
	}
	data := matrixFromRow(t, make([]float64, 10))
	if _, err := New(Input{Matrix: a, Data: data}, Config{}); !IsConfigError(err) {
		t.Errorf("New with mismatched Matrix rows: got %v, want a configuration error", err)
	}
}

func TestGroupNodeProducesAggregatedOutput(t *testing.T) {
	edges := linspace(400, 401, 101)
	counts1 := gaussianCounts(edges, 400.5, 0.01, 100)
	counts2 := gaussianCounts(edges, 400.5, 0.01, 100)

	var rows, cols []int
	var vals []float64
	for j, v := range counts1 {
		if v != 0 {
			rows = append(rows, 0)
			cols = append(cols, j)
			vals = append(vals, v)
		}
	}
	for j, v := range counts2 {
		if v != 0 {
			rows = append(rows, 1)
			cols = append(cols, j)
			vals = append(vals, v)
		}
	}
	data, err := sparse.NewCOO(2, 100, rows, cols, vals)
	if err != nil {
		t.Fatalf("NewCOO: %v", err)
	}

	d, err := New(Input{
		BinEdges:   edges,
		Data:       data,
		GroupOf:    []int{0, 0},
		GroupCount: 1,
		MzScale:    1,
	}, Config{Shrinkage: 1, Taper: true, Tolerance: 1.0 / 1024})
	if err != nil {
		t.Fatalf("New (group pyramid): %v", err)
	}
	runToConvergence(t, d, 500)

	out := d.Output()
	if out.GXs == nil {
		t.Fatalf("Output.GXs = nil, want populated for a grouped input")
	}
	r, c := out.GXs.Dims()
	if r != 1 || c != 100 {
		t.Errorf("GXs dims = (%d,%d), want (1,100)", r, c)
	}
}
