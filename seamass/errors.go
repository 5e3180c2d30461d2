// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seamass

import (
	"errors"
	"fmt"
)

// errConfig is wrapped by every construction-time configuration error (§7
// "Configuration error: ... reported at construction; solve never starts").
var errConfig = errors.New("seamass: configuration error")

// IsConfigError reports whether err is (or wraps) a construction-time
// configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, errConfig)
}

// NumericError reports a NaN or infinite gradient norm observed during
// iteration (§4.2 "Failure semantics", §7 "Numeric breakdown"). The solve
// stops; coefficients at the last accepted iterate remain readable via
// Driver.Output.
type NumericError struct {
	Iteration int
	Gradient  float64
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("seamass: numeric breakdown at iteration %d (gradient=%v)", e.Iteration, e.Gradient)
}
