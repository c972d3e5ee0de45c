package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/eventsnap/photo-finder/internal/index"
)

// VectorRepository stores indexed photo vectors in PostgreSQL with pgvector.
// It carries the same semantics as the file-backed flat index: vectors are
// addressed by dense ordinals, and searches return squared L2 distances.
type VectorRepository struct {
	pool *Pool
	dim  int
}

// NewVectorRepository creates a repository for vectors of the given dimension.
func NewVectorRepository(pool *Pool, dim int) *VectorRepository {
	return &VectorRepository{pool: pool, dim: dim}
}

// Dim returns the vector dimension the repository was created with.
func (r *VectorRepository) Dim() int {
	return r.dim
}

// ReplaceAll atomically replaces the stored index for a mode. Ordinals are
// assigned from the slice positions; vectors[i] belongs to records[i].
func (r *VectorRepository) ReplaceAll(ctx context.Context, mode index.Mode, vectors [][]float32, records []index.Record) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid index mode: %q", mode)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("vector/record count mismatch: %d vs %d", len(vectors), len(records))
	}
	for i, v := range vectors {
		if len(v) != r.dim {
			return fmt.Errorf("vector %d: %w: expected %d, got %d", i, index.ErrDimensionMismatch, r.dim, len(v))
		}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM photo_vectors WHERE mode = $1", string(mode)); err != nil {
		return fmt.Errorf("clear previous index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO photo_vectors (mode, ordinal, image_path, bbox, det_score, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		var bbox any
		if len(rec.BBox) > 0 {
			box := make([]int64, len(rec.BBox))
			for j, v := range rec.BBox {
				box[j] = int64(v)
			}
			bbox = pq.Array(box)
		}

		vec := pgvector.NewVector(vectors[i])
		if _, err := stmt.ExecContext(ctx, string(mode), i, rec.ImagePath, bbox, rec.DetScore, vec); err != nil {
			return fmt.Errorf("insert vector %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index replacement: %w", err)
	}
	return nil
}

// Count returns the number of vectors stored for a mode.
func (r *VectorRepository) Count(ctx context.Context, mode index.Mode) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photo_vectors WHERE mode = $1", string(mode)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return count, nil
}

// Search returns the k nearest vectors for a mode, closest first, ties broken
// by ascending ordinal. Distances are squared L2, matching the file-backed
// index.
func (r *VectorRepository) Search(ctx context.Context, mode index.Mode, query []float32, k int) ([]index.Hit, error) {
	if len(query) != r.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", index.ErrDimensionMismatch, r.dim, len(query))
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	count, err := r.Count(ctx, mode)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, index.ErrEmptyIndex
	}

	rows, err := r.pool.Query(ctx, `
		SELECT ordinal, embedding <-> $1::vector AS distance
		FROM photo_vectors
		WHERE mode = $2
		ORDER BY distance, ordinal
		LIMIT $3
	`, pgvector.NewVector(query), string(mode), k)
	if err != nil {
		return nil, fmt.Errorf("query nearest vectors: %w", err)
	}
	defer rows.Close()

	var hits []index.Hit
	for rows.Next() {
		var ordinal int
		var distance float64
		if err := rows.Scan(&ordinal, &distance); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		// pgvector's <-> is plain L2; square it to match the flat index.
		hits = append(hits, index.Hit{Ordinal: ordinal, Distance: distance * distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search hits: %w", err)
	}
	return hits, nil
}

// Metadata reconstructs the index metadata for a mode, ordered by ordinal.
func (r *VectorRepository) Metadata(ctx context.Context, mode index.Mode) (*index.Metadata, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ordinal, image_path, bbox, det_score
		FROM photo_vectors
		WHERE mode = $1
		ORDER BY ordinal
	`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	meta := &index.Metadata{Mode: mode}
	for rows.Next() {
		var rec index.Record
		var bbox []sql.NullInt64
		var det sql.NullFloat64
		if err := rows.Scan(&rec.ItemID, &rec.ImagePath, pq.Array(&bbox), &det); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Mode = mode
		rec.DetScore = det.Float64
		for _, v := range bbox {
			rec.BBox = append(rec.BBox, int(v.Int64))
		}
		meta.Records = append(meta.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return meta, nil
}

// Index binds the repository to a context and mode so it can serve as a
// search backend for the retrieval engine. The returned value snapshots the
// vector count at bind time.
func (r *VectorRepository) Index(ctx context.Context, mode index.Mode) (*BoundIndex, error) {
	count, err := r.Count(ctx, mode)
	if err != nil {
		return nil, err
	}
	return &BoundIndex{repo: r, ctx: ctx, mode: mode, count: count}, nil
}

// BoundIndex adapts VectorRepository to the ctx-free search interface the
// retrieval engine expects.
type BoundIndex struct {
	repo  *VectorRepository
	ctx   context.Context
	mode  index.Mode
	count int
}

func (b *BoundIndex) Search(query []float32, k int) ([]index.Hit, error) {
	return b.repo.Search(b.ctx, b.mode, query, k)
}

func (b *BoundIndex) Count() int {
	return b.count
}

func (b *BoundIndex) Dim() int {
	return b.repo.dim
}
