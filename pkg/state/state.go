// Package state loads the deployment descriptor (state.json) written by
// the launcher. The descriptor tells the verifier which catalog backend,
// storage backend and chunking mode a deployment runs with.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Storage backend kinds as recorded in the descriptor.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

var (
	// ErrMissingStoragePath is returned for local storage without a path.
	ErrMissingStoragePath = errors.New("local storage requires storage_path")

	// ErrMissingS3Config is returned for s3 storage without an s3 block.
	ErrMissingS3Config = errors.New("s3 storage requires an s3 configuration block")

	// ErrUnknownStorage is returned for an unrecognized storage kind.
	ErrUnknownStorage = errors.New("unknown storage kind")
)

// S3 describes an S3-compatible object store endpoint.
type S3 struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// State is the deployment descriptor. Fields the launcher writes for its
// own use (process IDs, ports, lock configuration) are ignored.
type State struct {
	CDC         bool   `json:"cdc"`
	DB          string `json:"db"`
	DBURL       string `json:"db_url"`
	Storage     string `json:"storage"`
	StoragePath string `json:"storage_path"`
	S3          *S3    `json:"s3"`
}

// Load reads and validates the descriptor at path. Any failure here is
// fatal for the whole run.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read state file %q (is the deployment running?): %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unable to parse state file %q: %w", path, err)
	}

	if err := st.validate(); err != nil {
		return nil, fmt.Errorf("invalid state file %q: %w", path, err)
	}

	return &st, nil
}

func (st *State) validate() error {
	switch st.Storage {
	case StorageLocal:
		if st.StoragePath == "" {
			return ErrMissingStoragePath
		}
	case StorageS3:
		if st.S3 == nil || st.S3.Endpoint == "" || st.S3.Bucket == "" {
			return ErrMissingS3Config
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, st.Storage)
	}

	if st.DB == "" {
		return errors.New("missing db kind")
	}

	if st.DBURL == "" {
		return errors.New("missing db_url")
	}

	return nil
}
