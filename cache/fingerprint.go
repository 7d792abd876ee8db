package cache

import "hash/fnv"

// Fingerprint returns the fnv-64a hash of s.
func Fingerprint(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
