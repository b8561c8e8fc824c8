package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var _ Store = &LocalStore{}

// LocalStore reads objects from a local filesystem rooted at the
// deployment's storage path.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at root.
// The root needs to exist and be a directory.
func NewLocalStore(root string) (*LocalStore, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("unable to open storage root %q: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %q is not a directory", root)
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.fullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
		}

		return nil, fmt.Errorf("unable to read %v: %w", key, err)
	}

	return data, nil
}

func (s *LocalStore) Size(_ context.Context, key string) (int64, error) {
	info, err := os.Stat(s.fullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %v", ErrNotFound, key)
		}

		return 0, fmt.Errorf("unable to stat %v: %w", key, err)
	}

	return info.Size(), nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.fullPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("unable to stat %v: %w", key, err)
	}

	return true, nil
}

// fullPath converts a slash-separated storage key to an absolute path below
// the storage root.
func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
