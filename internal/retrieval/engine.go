package retrieval

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/eventsnap/photo-finder/internal/index"
)

// ErrModeMismatch means the loaded index was built in a mode the requested
// query type cannot use. Recoverable: callers turn it into a user-facing
// message, never a crash.
var ErrModeMismatch = errors.New("index mode does not support this query type")

// VectorIndex is the search surface the engine needs. FlatIndex implements
// it directly; the postgres store provides a per-request adapter.
type VectorIndex interface {
	Search(query []float32, k int) ([]index.Hit, error)
	Count() int
	Dim() int
}

// Engine turns one query vector into a ranked, deduplicated-by-photo result
// set. It is stateless across calls beyond the index pair it wraps, which is
// loaded once and treated as read-only for the lifetime of a query session.
type Engine struct {
	idx  VectorIndex
	meta *index.Metadata
}

// NewEngine wraps a vector index and its metadata. Fails with
// ErrIndexCorrupt if the vector count and record count disagree; the check
// runs here so a corrupt pair is rejected before the first search.
func NewEngine(idx VectorIndex, meta *index.Metadata) (*Engine, error) {
	if idx.Count() != len(meta.Records) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", index.ErrIndexCorrupt, idx.Count(), len(meta.Records))
	}
	return &Engine{idx: idx, meta: meta}, nil
}

// Mode returns the mode the index was built in. An index with no explicit
// mode defaults to face mode.
func (e *Engine) Mode() index.Mode {
	if !e.meta.Mode.Valid() {
		return index.ModeFace
	}
	return e.meta.Mode
}

// Count returns the number of indexed items.
func (e *Engine) Count() int {
	return e.idx.Count()
}

// SearchWithThreshold searches the index and keeps only candidates whose
// cosine similarity is at least threshold, ordered by descending similarity
// with ties broken by ascending ordinal. An empty result is a normal
// outcome, not an error.
func (e *Engine) SearchWithThreshold(query []float32, threshold float64, maxCandidates int) ([]MatchResult, error) {
	hits, err := e.idx.Search(query, maxCandidates)
	if err != nil {
		return nil, err
	}

	matches := make([]MatchResult, 0, len(hits))
	for _, h := range hits {
		if h.Ordinal < 0 {
			continue // invalid ordinal marker from the underlying index
		}
		sim := index.SimilarityFromDistance(h.Distance)
		if sim < threshold {
			continue
		}
		matches = append(matches, MatchResult{
			Ordinal:    h.Ordinal,
			Similarity: sim,
			Distance:   h.Distance,
			Record:     e.meta.Records[h.Ordinal],
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].Ordinal < matches[b].Ordinal
	})

	return matches, nil
}

// FindPhotosByEmbedding finds photos matching a pre-computed face embedding,
// for example from a registered person profile. In face mode, matches are
// grouped back to their source photo and ranked by the best matching face,
// so one strong match surfaces a photo even when its other faces are
// irrelevant to the query.
func (e *Engine) FindPhotosByEmbedding(query []float32, threshold float64, maxCandidates int, personName string) (*QueryResult, error) {
	queryType := "face"
	if personName != "" {
		queryType = "registered_person"
	}
	info := QueryInfo{
		QueryID:             uuid.NewString(),
		QueryType:           queryType,
		PersonName:          personName,
		EmbeddingDim:        len(query),
		SimilarityThreshold: threshold,
	}

	matches, err := e.SearchWithThreshold(query, threshold, maxCandidates)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		msg := fmt.Sprintf("No confident matches found (threshold: %g). Try lowering the threshold.", threshold)
		if personName != "" {
			msg = fmt.Sprintf("No photos found for %s. Try lowering the threshold.", personName)
		}
		return &QueryResult{Message: msg, QueryInfo: info, Matches: []PhotoResult{}}, nil
	}

	photos := e.groupByPhoto(matches)

	msg := fmt.Sprintf("Found %d photos matching your query", len(photos))
	if personName != "" {
		msg = fmt.Sprintf("Found %d photo(s) containing %s", len(photos), personName)
	}
	return &QueryResult{
		Success:     true,
		Message:     msg,
		QueryInfo:   info,
		Matches:     photos,
		TotalPhotos: len(photos),
	}, nil
}

// FindPhotosByText finds photos matching an embedded free-text description.
// Requires a full-image index: per-face crops carry no scene semantics, so a
// face-mode index fails with ErrModeMismatch.
func (e *Engine) FindPhotosByText(query []float32, queryText string, threshold float64, maxCandidates int) (*QueryResult, error) {
	if e.Mode() != index.ModeFullImage {
		return nil, fmt.Errorf("text search needs a full_image index, this one was built in %q mode: %w",
			e.Mode(), ErrModeMismatch)
	}

	info := QueryInfo{
		QueryID:             uuid.NewString(),
		QueryType:           "text",
		QueryText:           queryText,
		EmbeddingDim:        len(query),
		SimilarityThreshold: threshold,
	}

	matches, err := e.SearchWithThreshold(query, threshold, maxCandidates)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return &QueryResult{
			Message:   fmt.Sprintf("No confident matches found (threshold: %g). Try lowering the threshold.", threshold),
			QueryInfo: info,
			Matches:   []PhotoResult{},
		}, nil
	}

	photos := e.groupByPhoto(matches)
	return &QueryResult{
		Success:     true,
		Message:     fmt.Sprintf("Found %d photos matching your query", len(photos)),
		QueryInfo:   info,
		Matches:     photos,
		TotalPhotos: len(photos),
	}, nil
}

// groupByPhoto turns threshold-filtered matches into per-photo results. The
// incoming matches are already sorted by descending similarity, so groups
// are discovered best-candidate-first; the final stable sort by max
// similarity keeps that discovery order for ties.
func (e *Engine) groupByPhoto(matches []MatchResult) []PhotoResult {
	if e.Mode() == index.ModeFullImage {
		// Each match is already a distinct photo.
		photos := make([]PhotoResult, len(matches))
		for i, m := range matches {
			photos[i] = PhotoResult{
				ImagePath:     m.Record.ImagePath,
				MaxSimilarity: m.Similarity,
				AvgSimilarity: m.Similarity,
				NumMatches:    1,
			}
		}
		return photos
	}

	// Face mode: group matching faces by source photo.
	byPath := make(map[string]int)
	photos := make([]PhotoResult, 0)
	for _, m := range matches {
		bbox := m.Record.BBox
		if bbox == nil {
			bbox = []int{0, 0, 0, 0}
		}
		face := FaceMatch{BBox: bbox, Similarity: m.Similarity, DetScore: m.Record.DetScore}

		i, ok := byPath[m.Record.ImagePath]
		if !ok {
			byPath[m.Record.ImagePath] = len(photos)
			photos = append(photos, PhotoResult{
				ImagePath: m.Record.ImagePath,
				Faces:     []FaceMatch{face},
			})
			continue
		}
		photos[i].Faces = append(photos[i].Faces, face)
	}

	for i := range photos {
		var sum, max float64
		for _, f := range photos[i].Faces {
			sum += f.Similarity
			if f.Similarity > max {
				max = f.Similarity
			}
		}
		photos[i].MaxSimilarity = max
		photos[i].AvgSimilarity = sum / float64(len(photos[i].Faces))
		photos[i].NumMatches = len(photos[i].Faces)
	}

	sort.SliceStable(photos, func(a, b int) bool {
		return photos[a].MaxSimilarity > photos[b].MaxSimilarity
	})
	return photos
}

// CombineQueries averages two same-dimension embeddings and re-normalizes
// the result to unit norm. This two-term average is the only query fusion
// supported.
func CombineQueries(a, b []float32) ([]float32, error) {
	if len(a) == 0 || len(a) != len(b) {
		return nil, fmt.Errorf("cannot combine embeddings of dimension %d and %d: %w",
			len(a), len(b), index.ErrDimensionMismatch)
	}

	combined := make([]float32, len(a))
	var norm float64
	for i := range a {
		v := (float64(a[i]) + float64(b[i])) / 2
		combined[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, errors.New("combined embedding has zero norm")
	}
	for i := range combined {
		combined[i] = float32(float64(combined[i]) / norm)
	}
	return combined, nil
}

// Summary renders a human-readable digest of a query result for CLI output.
func Summary(result *QueryResult) string {
	if !result.Success {
		return result.Message
	}

	out := fmt.Sprintf("%s\n", result.Message)
	out += fmt.Sprintf("  Total photos matched: %d\n", result.TotalPhotos)
	if result.TotalPhotos > 0 {
		best, sum := 0.0, 0.0
		for _, p := range result.Matches {
			sum += p.MaxSimilarity
			if p.MaxSimilarity > best {
				best = p.MaxSimilarity
			}
		}
		out += fmt.Sprintf("  Best match similarity: %.3f\n", best)
		out += fmt.Sprintf("  Average similarity: %.3f\n", sum/float64(result.TotalPhotos))
		out += fmt.Sprintf("  Similarity threshold used: %g\n", result.QueryInfo.SimilarityThreshold)
	}
	return out
}
