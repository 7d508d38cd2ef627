package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Fingerprint returns a stable cache key for a file identified by name and
// size. Two files with the same name and byte size share a fingerprint, so
// recognition results can be reused across rescans and across backends.
func Fingerprint(name string, size int64) string {
	sum := sha256.Sum256([]byte(name + ":" + strconv.FormatInt(size, 10)))
	return hex.EncodeToString(sum[:])
}
