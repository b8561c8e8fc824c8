package store

import (
	"fmt"
	"path"

	"github.com/flokli/nix-verify/pkg/compression"
)

// NarFileKey returns the storage key of a flat NAR file, given its hash and
// the compression type recorded in the catalog. Keys are sharded by the
// first and first two characters of the hash:
//
//	store/nar/<h0>/<h0h1>/<hash>.nar[.<suffix>]
//
// An empty or "none" compression yields no suffix.
func NarFileKey(hash, compressionType string) (string, error) {
	if len(hash) < 2 {
		return "", fmt.Errorf("hash %q is too short to derive a sharded key", hash)
	}

	suffix, err := compression.TypeToSuffix(compressionType)
	if err != nil {
		return "", err
	}

	return path.Join("store", "nar", hash[0:1], hash[0:2], hash+".nar"+suffix), nil
}

// ChunkKey returns the storage key of a CDC chunk, given its content hash:
//
//	store/chunk/<h0>/<h0h1>/<hash>
func ChunkKey(hash string) (string, error) {
	if len(hash) < 2 {
		return "", fmt.Errorf("hash %q is too short to derive a sharded key", hash)
	}

	return path.Join("store", "chunk", hash[0:1], hash[0:2], hash), nil
}
