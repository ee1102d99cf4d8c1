// SPDX-License-Identifier: AGPL-3.0-or-later

package sqltoolkit

import (
	"fmt"
	"sync"
)

// Factory builds a Toolkit instance. Implementation packages register a
// Factory via RegisterImplementation in their init(), mirroring how a
// backing parsing library is swapped without touching consumer code.
type Factory func() Toolkit

var (
	mu      sync.RWMutex
	factory Factory
	cached  Toolkit
)

// RegisterImplementation installs the Toolkit factory used by Get. Calling
// it twice without an intervening Reset panics — exactly one backing
// implementation may be registered per process, the same rule the backend
// provider registry enforces for duplicate provider IDs.
func RegisterImplementation(f Factory) {
	if f == nil {
		panic("sqltoolkit: RegisterImplementation called with a nil factory")
	}
	mu.Lock()
	defer mu.Unlock()
	if factory != nil {
		panic("sqltoolkit: an implementation is already registered")
	}
	factory = f
}

// Get returns the process-wide Toolkit, constructing it from the registered
// factory on first use and caching it thereafter.
func Get() Toolkit {
	mu.RLock()
	if cached != nil {
		t := cached
		mu.RUnlock()
		return t
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if cached != nil {
		return cached
	}
	if factory == nil {
		panic(fmt.Sprintf("sqltoolkit: Get called with no implementation registered; " +
			"import a backing implementation package (e.g. pkg/sqltoolkit/pgquery) for its init() side effect"))
	}
	cached = factory()
	return cached
}

// Reset clears the registered factory and cached instance. Tests use this
// to swap in a fake Toolkit between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	factory = nil
	cached = nil
}
