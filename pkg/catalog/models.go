package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// NarInfo is one row of the narinfos table: the metadata record of a cached
// store path, with the declared whole-object hashes and sizes.
type NarInfo struct {
	ID        int64
	Hash      string
	StorePath sql.NullString

	// FileHash and FileSize describe the compressed NAR file.
	FileHash sql.NullString
	FileSize sql.NullInt64

	// NarHash and NarSize describe the decompressed NAR.
	NarHash sql.NullString
	NarSize sql.NullInt64
}

// NarFile is one row of the nar_files table: the physical representation of
// a NAR. TotalChunks 0 means the NAR is stored as one flat file, >0 means
// it is stored as that many CDC chunks.
type NarFile struct {
	ID          int64
	Hash        string
	Compression sql.NullString
	FileSize    int64
	TotalChunks int64
}

// ChunkRow is one ordered chunk of a nar_file, joined from nar_file_chunks
// and chunks. Hash is the BLAKE3 digest of the decompressed chunk bytes and
// doubles as its storage address.
type ChunkRow struct {
	Index          int64
	Hash           string
	Size           int64
	CompressedSize int64
}

// NarInfos returns narinfo rows ordered by id, optionally restricted to a
// single hash and capped at limit rows (0 means no cap).
func (c *Catalog) NarInfos(ctx context.Context, filterHash string, limit int) ([]NarInfo, error) {
	query := "SELECT id, hash, store_path, file_hash, file_size, nar_hash, nar_size FROM narinfos"

	var args []any

	if filterHash != "" {
		query += " WHERE hash = ?"
		args = append(args, filterHash)
	}

	query += " ORDER BY id"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query narinfos: %w", err)
	}
	defer rows.Close()

	var narInfos []NarInfo

	for rows.Next() {
		var ni NarInfo

		err := rows.Scan(&ni.ID, &ni.Hash, &ni.StorePath, &ni.FileHash, &ni.FileSize, &ni.NarHash, &ni.NarSize)
		if err != nil {
			return nil, fmt.Errorf("unable to scan narinfo row: %w", err)
		}

		narInfos = append(narInfos, ni)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate narinfos: %w", err)
	}

	return narInfos, nil
}

// NarFilesFor returns the nar_files linked to a narinfo via the
// narinfo_nar_files join table (commonly exactly one).
func (c *Catalog) NarFilesFor(ctx context.Context, narInfoID int64) ([]NarFile, error) {
	query := `SELECT nf.id, nf.hash, nf.compression, nf.file_size, nf.total_chunks
FROM nar_files nf
JOIN narinfo_nar_files nnf ON nnf.nar_file_id = nf.id
WHERE nnf.narinfo_id = ?
ORDER BY nf.id`

	rows, err := c.query(ctx, query, narInfoID)
	if err != nil {
		return nil, fmt.Errorf("unable to query nar_files for narinfo %d: %w", narInfoID, err)
	}
	defer rows.Close()

	var narFiles []NarFile

	for rows.Next() {
		var nf NarFile

		err := rows.Scan(&nf.ID, &nf.Hash, &nf.Compression, &nf.FileSize, &nf.TotalChunks)
		if err != nil {
			return nil, fmt.Errorf("unable to scan nar_file row: %w", err)
		}

		narFiles = append(narFiles, nf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate nar_files: %w", err)
	}

	return narFiles, nil
}

// ChunksFor returns the ordered chunk linkage of a nar_file, sorted by
// chunk_index. Reassembling the decompressed chunk bytes in this order must
// reproduce the original NAR.
func (c *Catalog) ChunksFor(ctx context.Context, narFileID int64) ([]ChunkRow, error) {
	query := `SELECT nfc.chunk_index, c.hash, c.size, c.compressed_size
FROM nar_file_chunks nfc
JOIN chunks c ON nfc.chunk_id = c.id
WHERE nfc.nar_file_id = ?
ORDER BY nfc.chunk_index`

	rows, err := c.query(ctx, query, narFileID)
	if err != nil {
		return nil, fmt.Errorf("unable to query chunks for nar_file %d: %w", narFileID, err)
	}
	defer rows.Close()

	var chunks []ChunkRow

	for rows.Next() {
		var ch ChunkRow

		err := rows.Scan(&ch.Index, &ch.Hash, &ch.Size, &ch.CompressedSize)
		if err != nil {
			return nil, fmt.Errorf("unable to scan chunk row: %w", err)
		}

		chunks = append(chunks, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to iterate chunks: %w", err)
	}

	return chunks, nil
}
