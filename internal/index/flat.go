package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Binary file layout: magic, version, dim, count, then count*dim float32
// values in row order, all little-endian.
var flatMagic = [4]byte{'P', 'F', 'I', 'X'}

const flatVersion uint16 = 1

// FlatIndex is an exact nearest-neighbor index over a fixed-dimension
// collection of unit-norm vectors. Search is a linear scan by squared
// Euclidean distance; for normalized vectors that ordering is identical to
// cosine similarity ordering. The index is immutable between Build/Load
// calls and safe for concurrent readers.
type FlatIndex struct {
	dim  int
	data []float32 // count*dim values, row-major
}

// NewFlatIndex creates an empty index with the given vector dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Dim returns the configured vector dimension.
func (x *FlatIndex) Dim() int {
	return x.dim
}

// Count returns the number of stored vectors.
func (x *FlatIndex) Count() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Vector returns the stored vector at the given ordinal. The returned slice
// aliases the index storage and must not be modified.
func (x *FlatIndex) Vector(ordinal int) ([]float32, error) {
	if ordinal < 0 || ordinal >= x.Count() {
		return nil, fmt.Errorf("ordinal %d out of range [0, %d)", ordinal, x.Count())
	}
	return x.data[ordinal*x.dim : (ordinal+1)*x.dim], nil
}

// Build replaces the index content with the given vectors. Callers must
// supply pre-normalized vectors; Build does not normalize on their behalf.
// Fails with ErrDimensionMismatch if any vector's length differs from the
// configured dimension, leaving the previous content untouched.
func (x *FlatIndex) Build(vectors [][]float32) error {
	data := make([]float32, 0, len(vectors)*x.dim)
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d: %w",
				i, len(v), x.dim, ErrDimensionMismatch)
		}
		data = append(data, v...)
	}
	x.data = data
	return nil
}

// Search returns up to k nearest vectors to the query by squared Euclidean
// distance, ascending, with ties broken by ascending ordinal. If fewer than
// k vectors are stored, all of them are returned.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if x.Count() == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d: %w",
			len(query), x.dim, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	count := x.Count()
	hits := make([]Hit, count)
	for i := 0; i < count; i++ {
		row := x.data[i*x.dim : (i+1)*x.dim]
		var d float64
		for j, q := range query {
			diff := float64(q) - float64(row[j])
			d += diff * diff
		}
		hits[i] = Hit{Ordinal: i, Distance: d}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Ordinal < hits[b].Ordinal
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// SimilarityFromDistance converts a squared Euclidean distance between two
// unit-norm vectors to their cosine similarity: s = 1 - d/2. The conversion
// is exact, not an approximation.
func SimilarityFromDistance(d float64) float64 {
	return 1 - d/2
}

// Save writes the full vector collection to path in the flat binary format.
func (x *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(flatMagic[:]); err != nil {
		return fmt.Errorf("writing index header: %w", err)
	}
	header := []any{flatVersion, uint32(x.dim), uint32(x.Count())}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writing index header: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, x.data); err != nil {
		return fmt.Errorf("writing index vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	return nil
}

// Load reads a vector collection from path, replacing the current content
// only on success. A missing file fails with ErrNotFound; any failure leaves
// the previously loaded index untouched.
func (x *FlatIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("reading index header: %w", err)
	}
	if magic != flatMagic {
		return fmt.Errorf("not an index file: %s", path)
	}

	var version uint16
	var dim, count uint32
	for _, v := range []any{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("reading index header: %w", err)
		}
	}
	if version != flatVersion {
		return fmt.Errorf("unsupported index version %d", version)
	}
	if int(dim) != x.dim {
		return fmt.Errorf("index file has dimension %d, configured dimension is %d: %w",
			dim, x.dim, ErrDimensionMismatch)
	}

	data := make([]float32, int(dim)*int(count))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("reading index vectors: %w", err)
	}

	x.data = data
	return nil
}
