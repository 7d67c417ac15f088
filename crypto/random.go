package crypto

import (
	crand "crypto/rand"
	"io"
)

// CRandBytes returns numBytes of cryptographically secure random bytes.
// This only uses the OS's randomness.
func CRandBytes(numBytes int) []byte {
	b := make([]byte, numBytes)
	_, err := crand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// CReader returns the OS's cryptographically secure random source.
func CReader() io.Reader {
	return crand.Reader
}
