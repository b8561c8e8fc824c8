// Package digest computes and compares the digests used by a binary cache:
// SHA-256 for whole files and NARs, BLAKE3 for CDC chunk contents.
// Catalog-declared values may be raw hex or Nix base-32, with an optional
// "sha256:" prefix.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nix-community/go-nix/pkg/nixbase32"
	"github.com/zeebo/blake3"
)

const sha256Prefix = "sha256:"

// Sha256Hex returns the hex-encoded SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// Blake3Hex returns the hex-encoded BLAKE3 digest of data.
// Chunks are addressed by this digest of their decompressed bytes.
func Blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// StripSha256Prefix drops an optional "sha256:" prefix from a
// catalog-declared hash value.
func StripSha256Prefix(declared string) string {
	return strings.TrimPrefix(declared, sha256Prefix)
}

// Nix32 returns the Nix base-32 representation of a hex digest.
func Nix32(hexDigest string) (string, error) {
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("invalid hex digest %q: %w", hexDigest, err)
	}

	return nixbase32.EncodeToString(raw), nil
}

// Matches reports whether a computed hex digest matches a catalog-declared
// value. The declared value may carry a "sha256:" prefix and may be either
// raw hex or the Nix base-32 encoding of the same digest bytes; the hex
// comparison is tried first.
//
// A non-nil error means the base-32 comparison could not be attempted at
// all. Callers should report that as unverifiable rather than as a
// mismatch.
func Matches(computedHex, declared string) (bool, error) {
	expected := StripSha256Prefix(declared)
	if expected == "" {
		return false, nil
	}

	if computedHex == expected {
		return true, nil
	}

	nix32, err := Nix32(computedHex)
	if err != nil {
		return false, err
	}

	return nix32 == expected, nil
}
