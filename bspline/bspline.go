// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bspline evaluates the cardinal (uniform-knot) B-spline basis
// function of fixed order used throughout the basis pyramid (§4.1), and
// the half-sample refinement kernel used by dyadic scale nodes.
package bspline

import "math"

// Order is the fixed B-spline order used by every leaf and scale node in
// the pyramid, per §4.1.
const Order = 3

// MzPerTh returns the number of order-Order B-spline basis functions per Th
// (dalton-per-charge unit) at dyadic scale s, per §4.1's formula
// "2^s · 60 / 1.0033548378 bspline-per-Th". 1.0033548378 is the average
// mass difference between consecutive isotope peaks (C13-C12), so this
// resolution tracks isotope spacing rather than a fixed m/z step.
func MzPerTh(scale int) float64 {
	return math.Pow(2, float64(scale)) * 60.0 / 1.0033548378
}

// ScanPerMinute returns the number of basis functions per minute of
// retention/scan time at dyadic scale s: "2^s bsplines-per-minute", the
// plain dyadic analogue of MzPerTh for the time dimension (§12.4).
func ScanPerMinute(scale int) float64 {
	return math.Pow(2, float64(scale))
}

// Eval evaluates the cardinal B-spline of the given order at x, using the
// standard Cox-de Boor recursion for uniform integer knots. Order-0 is the
// unit box on [0,1); the support of order-k is [0, k+1).
func Eval(order int, x float64) float64 {
	if order == 0 {
		if x >= 0 && x < 1 {
			return 1
		}
		return 0
	}
	k := float64(order)
	return (x/k)*Eval(order-1, x) + ((k+1-x)/k)*Eval(order-1, x-1)
}

// Integral returns the definite integral of the order-k cardinal B-spline
// over [lo, hi]. For order >= 1 it uses Simpson's rule over a fixed number
// of subintervals; the B-spline is then a continuous degree-k piecewise
// polynomial with compact support [0, order+1), so this converges quickly.
// The discontinuous order-0 unit box is integrated exactly. It is used to
// populate one leaf-matrix row per bin (§4.1: "the order-k B-spline basis
// function evaluated and integrated over each bin").
func Integral(order int, lo, hi float64) float64 {
	const steps = 16
	if hi <= lo {
		return 0
	}
	if order == 0 {
		return math.Max(0, math.Min(hi, 1)-math.Max(lo, 0))
	}
	h := (hi - lo) / steps
	sum := Eval(order, lo) + Eval(order, hi)
	for i := 1; i < steps; i++ {
		x := lo + float64(i)*h
		if i%2 == 0 {
			sum += 2 * Eval(order, x)
		} else {
			sum += 4 * Eval(order, x)
		}
	}
	return sum * h / 3
}

// Factorial returns n! for n >= 0.
func Factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Binomial returns C(n, k), the binomial coefficient.
func Binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	return Factorial(n) / (Factorial(k) * Factorial(n-k))
}

// RefinementKernel returns the half-sample refinement kernel of an
// order-k B-spline: the binomial weights C(k+1,i) / 2^k, i = 0..k+1, of the
// two-scale relation (which expresses an order-k B-spline at scale s as a
// weighted sum of order-k B-splines at scale s+1), normalized to sum to 1,
// i.e. h[i] = C(k+1,i) / 2^(k+1) (§4.1). ScaleNode's synthesis matrix is
// built from it.
func RefinementKernel(order int) []float64 {
	n := order + 2
	h := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		h[i] = Binomial(order+1, i) / math.Pow(2, float64(order))
		sum += h[i]
	}
	for i := range h {
		h[i] /= sum
	}
	return h
}
