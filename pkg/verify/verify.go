// Package verify cross-checks the catalog of a binary cache deployment
// against the bytes actually held in storage. Flat NAR files are checked
// for size and SHA-256; CDC NARs are reconstructed chunk by chunk, each
// chunk checked for compressed size, decompressed size and BLAKE3 content
// hash, and the reassembled NAR checked against the declared whole-NAR
// SHA-256 and size.
//
// The verifier is strictly read-only. One failing entry never aborts the
// scan; only an unreadable descriptor or an unreachable catalog does.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flokli/nix-verify/pkg/catalog"
	"github.com/flokli/nix-verify/pkg/compression"
	"github.com/flokli/nix-verify/pkg/digest"
	"github.com/flokli/nix-verify/pkg/store"
)

// Chunks are always stored zstd-compressed, independent of the flat-file
// compression recorded per nar_file.
const chunkCompression = compression.TypeZstd

// Catalog is the subset of catalog queries the verifier needs.
type Catalog interface {
	NarInfos(ctx context.Context, filterHash string, limit int) ([]catalog.NarInfo, error)
	NarFilesFor(ctx context.Context, narInfoID int64) ([]catalog.NarFile, error)
	ChunksFor(ctx context.Context, narFileID int64) ([]catalog.ChunkRow, error)
}

// Verifier verifies catalog entries against a storage backend.
type Verifier struct {
	Catalog Catalog
	Store   store.Store

	// CDC is the deployment's chunking mode. Entries whose structural
	// shape contradicts it fail without any hashing.
	CDC bool

	// Timeout bounds every individual storage and catalog call.
	// Zero means no bound.
	Timeout time.Duration

	// Jobs is the number of narinfos verified concurrently. Values
	// below 1 mean sequential.
	Jobs int

	// Out receives the streamed per-entry report.
	Out io.Writer
}

// Run verifies all narinfos (optionally restricted to filterHash, capped at
// limit) and streams a report to Out. A non-nil error is fatal; per-entry
// failures are reported through the Summary instead.
func (v *Verifier) Run(ctx context.Context, filterHash string, limit int) (*Summary, error) {
	cctx, cancel := v.callCtx(ctx)
	narInfos, err := v.Catalog.NarInfos(cctx, filterHash, limit)

	cancel()

	if err != nil {
		return nil, fmt.Errorf("unable to list narinfos: %w", err)
	}

	fmt.Fprintf(v.Out, "Verifying %d narinfo(s)...\n\n", len(narInfos))

	summary := &Summary{Total: len(narInfos)}

	var muOut sync.Mutex

	jobs := v.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for _, ni := range narInfos {
		ni := ni

		g.Go(func() error {
			rep := v.verifyNarInfo(gctx, ni)

			muOut.Lock()
			defer muOut.Unlock()

			rep.write(v.Out)
			summary.Errors += rep.failures
			summary.Unverified += rep.unverified

			return nil
		})
	}

	// workers never return errors, failures are accumulated per entry
	_ = g.Wait()

	summary.write(v.Out)

	return summary, nil
}

// verifyNarInfo checks one narinfo and all nar_files linked to it.
func (v *Verifier) verifyNarInfo(ctx context.Context, ni catalog.NarInfo) *entryReport {
	storePath := ni.StorePath.String
	if storePath == "" {
		storePath = "(unknown)"
	}

	rep := &entryReport{header: fmt.Sprintf("[%s]  %s", ni.Hash, storePath)}

	cctx, cancel := v.callCtx(ctx)
	narFiles, err := v.Catalog.NarFilesFor(cctx, ni.ID)

	cancel()

	if err != nil {
		rep.fail("unable to resolve linked nar_files: %v", err)

		return rep
	}

	if len(narFiles) == 0 {
		rep.fail("no linked nar_file found in narinfo_nar_files")

		return rep
	}

	for _, nf := range narFiles {
		if v.CDC {
			v.verifyChunkedNarFile(ctx, rep, ni, nf)
		} else {
			v.verifyFlatNarFile(ctx, rep, ni, nf)
		}
	}

	return rep
}

// verifyFlatNarFile checks a nar_file expected to be stored as one flat
// (possibly compressed) file.
func (v *Verifier) verifyFlatNarFile(ctx context.Context, rep *entryReport, ni catalog.NarInfo, nf catalog.NarFile) {
	if nf.TotalChunks > 0 {
		rep.fail("CDC disabled but nar_file %d has total_chunks=%d (unexpected chunks)", nf.ID, nf.TotalChunks)

		return
	}

	errs, unverified := v.checkFlatFile(ctx, ni, nf)

	rep.unverifiedLines(unverified)

	if len(errs) > 0 {
		rep.failAll(errs)

		return
	}

	desc := nf.Compression.String
	if desc == "" || desc == compression.TypeNone {
		desc = "uncompressed"
	}

	rep.pass("flat file (%s): size and hash match", desc)
}

func (v *Verifier) checkFlatFile(ctx context.Context, ni catalog.NarInfo, nf catalog.NarFile) (errs, unverified []string) {
	key, err := store.NarFileKey(nf.Hash, nf.Compression.String)
	if err != nil {
		return []string{fmt.Sprintf("nar_file %d: %v", nf.ID, err)}, nil
	}

	raw, err := v.readObject(ctx, key)
	if err != nil {
		return []string{fmt.Sprintf("nar_file %d: %v", nf.ID, err)}, nil
	}

	// a size mismatch doesn't short-circuit the hash check, both are
	// reported for full diagnostics
	if int64(len(raw)) != nf.FileSize {
		errs = append(errs, fmt.Sprintf(
			"file size mismatch (stored %d, catalog file_size=%d)", len(raw), nf.FileSize,
		))
	}

	computed := digest.Sha256Hex(raw)

	ok, merr := digest.Matches(computed, ni.FileHash.String)

	switch {
	case merr != nil:
		unverified = append(unverified, fmt.Sprintf("file hash unverifiable: %v", merr))
	case !ok:
		nix32, _ := digest.Nix32(computed)
		errs = append(errs, fmt.Sprintf(
			"file hash mismatch (expected %s, got %s hex / %s nix32)",
			digest.StripSha256Prefix(ni.FileHash.String), computed, nix32,
		))
	}

	return errs, unverified
}

// verifyChunkedNarFile checks a nar_file expected to be stored as an
// ordered sequence of CDC chunks.
func (v *Verifier) verifyChunkedNarFile(ctx context.Context, rep *entryReport, ni catalog.NarInfo, nf catalog.NarFile) {
	if nf.TotalChunks == 0 {
		// an empty NAR legitimately has no chunks
		if ni.NarSize.Int64 == 0 {
			rep.pass("CDC: empty NAR (0 chunks) verified")

			return
		}

		rep.fail("CDC enabled but nar_file %d has total_chunks=0 (no chunks stored)", nf.ID)

		return
	}

	errs, unverified := v.checkChunks(ctx, ni, nf)

	rep.unverifiedLines(unverified)

	if len(errs) > 0 {
		rep.failAll(errs)

		return
	}

	rep.pass("CDC: %d chunk(s) verified, NAR hash and size match", nf.TotalChunks)
}

func (v *Verifier) checkChunks(ctx context.Context, ni catalog.NarInfo, nf catalog.NarFile) (errs, unverified []string) {
	cctx, cancel := v.callCtx(ctx)
	chunks, err := v.Catalog.ChunksFor(cctx, nf.ID)

	cancel()

	if err != nil {
		return []string{fmt.Sprintf("unable to resolve chunks for nar_file %d: %v", nf.ID, err)}, nil
	}

	if len(chunks) == 0 {
		return []string{fmt.Sprintf(
			"no chunks found in nar_file_chunks for nar_file %d (total_chunks=%d)", nf.ID, nf.TotalChunks,
		)}, nil
	}

	// structural check before any hashing: the chunk_index sequence must
	// be exactly 0..total_chunks-1
	if serr := checkChunkSequence(chunks, nf.TotalChunks); serr != "" {
		return []string{serr}, nil
	}

	// the whole-NAR digest folds decompressed chunk bytes in strict
	// chunk_index order
	narHash := sha256.New()

	var narSize int64

	for _, ch := range chunks {
		key, err := store.ChunkKey(ch.Hash)
		if err != nil {
			errs = append(errs, fmt.Sprintf("chunk %s: %v", shortHash(ch.Hash), err))

			continue
		}

		compressed, err := v.readObject(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Sprintf("chunk %s: %v", shortHash(ch.Hash), err))

			continue
		}

		if int64(len(compressed)) != ch.CompressedSize {
			errs = append(errs, fmt.Sprintf(
				"chunk %s: compressed size mismatch (stored %d, catalog %d)",
				shortHash(ch.Hash), len(compressed), ch.CompressedSize,
			))
		}

		data, err := compression.Decompress(compressed, chunkCompression)
		if err != nil {
			errs = append(errs, fmt.Sprintf("chunk %s: %v", shortHash(ch.Hash), err))

			continue
		}

		if int64(len(data)) != ch.Size {
			errs = append(errs, fmt.Sprintf(
				"chunk %s: uncompressed size mismatch (got %d, catalog %d)",
				shortHash(ch.Hash), len(data), ch.Size,
			))
		}

		if computed := digest.Blake3Hex(data); computed != ch.Hash {
			errs = append(errs, fmt.Sprintf(
				"chunk %s: content hash mismatch (got %s)",
				shortHash(ch.Hash), shortHash(computed),
			))
		}

		narHash.Write(data)
		narSize += int64(len(data))
	}

	// whole-NAR checks are meaningless if any contributing chunk failed
	if len(errs) > 0 {
		return errs, unverified
	}

	if narSize != ni.NarSize.Int64 {
		errs = append(errs, fmt.Sprintf(
			"reconstructed NAR size mismatch (got %d, catalog nar_size=%d)", narSize, ni.NarSize.Int64,
		))
	}

	computed := hex.EncodeToString(narHash.Sum(nil))

	ok, merr := digest.Matches(computed, ni.NarHash.String)

	switch {
	case merr != nil:
		unverified = append(unverified, fmt.Sprintf("reconstructed NAR hash unverifiable: %v", merr))
	case !ok:
		nix32, _ := digest.Nix32(computed)
		errs = append(errs, fmt.Sprintf(
			"reconstructed NAR hash mismatch (expected %s, got %s hex / %s nix32)",
			digest.StripSha256Prefix(ni.NarHash.String), computed, nix32,
		))
	}

	return errs, unverified
}

// checkChunkSequence returns a non-empty error string if the rows, already
// sorted by chunk_index, do not form exactly the sequence 0..totalChunks-1.
func checkChunkSequence(chunks []catalog.ChunkRow, totalChunks int64) string {
	if int64(len(chunks)) != totalChunks {
		return fmt.Sprintf(
			"chunk count mismatch (catalog has %d chunk rows, nar_file declares total_chunks=%d)",
			len(chunks), totalChunks,
		)
	}

	for i, ch := range chunks {
		if ch.Index != int64(i) {
			return fmt.Sprintf(
				"broken chunk_index sequence at position %d (found index %d, want %d)", i, ch.Index, i,
			)
		}
	}

	return ""
}

func (v *Verifier) readObject(ctx context.Context, key string) ([]byte, error) {
	cctx, cancel := v.callCtx(ctx)
	defer cancel()

	return v.Store.Read(cctx, key)
}

func (v *Verifier) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.Timeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, v.Timeout)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12] + "…"
	}

	return hash
}
