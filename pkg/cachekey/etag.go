package cachekey

import (
	"fmt"
	"hash/fnv"
)

// ETag computes a quoted opaque fingerprint of a response body using
// FNV-1a. It is a freshness hint for conditional requests, not a
// correctness or security boundary, so the non-cryptographic hash and
// its collision odds are acceptable.
func ETag(body []byte) string {
	h := fnv.New64a()
	h.Write(body)
	return fmt.Sprintf("%q", fmt.Sprintf("%016x", h.Sum64()))
}
