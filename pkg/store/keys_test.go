package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokli/nix-verify/pkg/store"
)

func TestNarFileKey(t *testing.T) {
	hash := "1f53zvjpyvgn7pqdvfcaxvkwkcy64rsm"

	tests := []struct {
		compression string
		key         string
	}{
		{compression: "", key: "store/nar/1/1f/" + hash + ".nar"},
		{compression: "none", key: "store/nar/1/1f/" + hash + ".nar"},
		{compression: "zstd", key: "store/nar/1/1f/" + hash + ".nar.zst"},
		{compression: "xz", key: "store/nar/1/1f/" + hash + ".nar.xz"},
		{compression: "bzip2", key: "store/nar/1/1f/" + hash + ".nar.bz2"},
	}

	for _, test := range tests {
		t.Run("compression "+test.compression, func(t *testing.T) {
			key, err := store.NarFileKey(hash, test.compression)
			require.NoError(t, err)
			assert.Equal(t, test.key, key)
		})
	}

	t.Run("unknown compression", func(t *testing.T) {
		_, err := store.NarFileKey(hash, "sevenzip")
		assert.Error(t, err)
	})

	t.Run("hash too short", func(t *testing.T) {
		_, err := store.NarFileKey("a", "")
		assert.Error(t, err)
	})
}

func TestChunkKey(t *testing.T) {
	hash := "af1349b9f5f9a1a6a0404dee36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

	key, err := store.ChunkKey(hash)
	require.NoError(t, err)
	assert.Equal(t, "store/chunk/a/af/"+hash, key)

	t.Run("hash too short", func(t *testing.T) {
		_, err := store.ChunkKey("f")
		assert.Error(t, err)
	})
}
