package site

import "time"

// Clock abstracts the wall clock so services can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique, sortable record identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces a stable content digest.
type Hasher interface {
	Hash(data []byte) (string, error)
}
