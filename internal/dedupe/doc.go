// Package dedupe provides a time-based cache that remembers the result of a
// keyed request, so a client retrying with the same key gets the original
// result instead of repeating the side effect.
package dedupe
