// SIM.KEYS lets operators list the keys a scope currently remembers, optionally filtered by a glob pattern (the same
// `*`, `?` and `[...]` syntax as Redis KEYS). This module implements the glob filtering.

package scan

import (
	"fmt"
	"iter"

	"v.io/v23/glob"
)

// MatchGlob filters the `keys` stream with the given glob `pattern`. An invalid pattern is an error.
func MatchGlob(pattern string, keys iter.Seq[string]) (iter.Seq[string], error) {
	parsedPattern, err := glob.Parse(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return func(yield func(string) bool) {
		for key := range keys {
			if parsedPattern.Head().Match(key) {
				if !yield(key) {
					return
				}
			}
		}
	}, nil
}
