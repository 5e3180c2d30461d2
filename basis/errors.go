// Copyright ©2026 The seaMass-core Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package basis

import "errors"

// errConfig is wrapped by every basis-construction configuration error
// (§7 "Configuration error: ... reported at construction; solve never
// starts").
var errConfig = errors.New("basis: configuration error")

// IsConfigError reports whether err is (or wraps) a basis construction
// configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, errConfig)
}
