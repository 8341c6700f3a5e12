package util

import (
	"crypto/sha256"
	"encoding/hex"
)

const ownerDigestLen = 32

// OwnerDigest maps an owner id onto a fixed-length, path-safe key segment.
func OwnerDigest(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:])[:ownerDigestLen]
}
