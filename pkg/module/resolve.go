// SPDX-License-Identifier: Apache-2.0

package module

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by Resolve failures so callers can map them to the
// DEPENDENCY_NOT_FOUND error code.
var ErrNotFound = errors.New("dependency not found")

// Lookup locates a module by name.
type Lookup func(name string) (*Module, bool)

// Resolve locates the module satisfying a dependency declaration. The
// primary module is tried first; if it is missing or its version fails the
// declared pattern, the declared fallback is tried; if there is none and the
// dependency is optional, Resolve returns nil without error; otherwise it
// fails wrapping ErrNotFound.
func Resolve(decl DependencyDeclaration, lookup Lookup) (*Module, error) {
	if primary, ok := lookup(decl.Module); ok {
		if VersionMatches(primary.Version, decl.Version) {
			return primary, nil
		}
		return resolveFallback(decl, lookup,
			fmt.Sprintf("version %s does not match %s", primary.Version, decl.Version))
	}
	return resolveFallback(decl, lookup, "module not registered")
}

func resolveFallback(decl DependencyDeclaration, lookup Lookup, reason string) (*Module, error) {
	if decl.Fallback != "" {
		if fb, ok := lookup(decl.Fallback); ok {
			return fb, nil
		}
		if !decl.Optional {
			return nil, fmt.Errorf("%w: %q (%s) and fallback %q is not registered",
				ErrNotFound, decl.Module, reason, decl.Fallback)
		}
	}
	if decl.Optional {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q (%s)", ErrNotFound, decl.Module, reason)
}
