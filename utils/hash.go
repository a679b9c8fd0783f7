package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// CombinedMD5 hashes several byte slices as one stream, each prefixed by its length.
func CombinedMD5(parts ...[]byte) string {
	hash := md5.New()
	for _, p := range parts {
		var n [8]byte
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		hash.Write(n[:])
		hash.Write(p)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
