package normalize

import (
	"crypto/sha256"
	"fmt"
)

// Hash returns the hex-encoded SHA-256 of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
