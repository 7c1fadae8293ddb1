// Package sha256 content-addresses uploaded media.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements site.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data. Identical uploads share a digest,
// which the catalog uses as the object name.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
