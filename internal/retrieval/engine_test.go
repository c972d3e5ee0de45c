package retrieval

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/eventsnap/photo-finder/internal/index"
)

// vectorWithSimilarity returns a 2-dimensional unit vector whose cosine
// similarity to the query (1, 0) is exactly s.
func vectorWithSimilarity(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s))}
}

var queryRight = []float32{1, 0}

// buildEngine builds a flat index + metadata pair in the given mode, one
// vector per record.
func buildEngine(t *testing.T, mode index.Mode, sims []float64, paths []string) *Engine {
	t.Helper()

	vectors := make([][]float32, len(sims))
	records := make([]index.Record, len(sims))
	for i, s := range sims {
		vectors[i] = vectorWithSimilarity(s)
		records[i] = index.Record{ItemID: i, ImagePath: paths[i], Mode: mode}
		if mode == index.ModeFace {
			records[i].BBox = []int{i * 10, 0, i*10 + 50, 60}
			records[i].DetScore = 0.9
		}
	}

	idx, err := index.NewFlatIndex(2)
	if err != nil {
		t.Fatalf("NewFlatIndex failed: %v", err)
	}
	if err := idx.Build(vectors); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	engine, err := NewEngine(idx, &index.Metadata{Mode: mode, Records: records})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestNewEngineRejectsCorruptPair(t *testing.T) {
	idx, _ := index.NewFlatIndex(2)
	if err := idx.Build([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	meta := &index.Metadata{
		Mode:    index.ModeFullImage,
		Records: []index.Record{{ItemID: 0, ImagePath: "a.jpg", Mode: index.ModeFullImage}},
	}

	_, err := NewEngine(idx, meta)
	if !errors.Is(err, index.ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestSearchWithThreshold(t *testing.T) {
	engine := buildEngine(t, index.ModeFullImage,
		[]float64{0.30, 0.81, 0.52},
		[]string{"a.jpg", "b.jpg", "c.jpg"})

	matches, err := engine.SearchWithThreshold(queryRight, 0.5, 100)
	if err != nil {
		t.Fatalf("SearchWithThreshold failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above 0.5, got %d", len(matches))
	}
	// Descending similarity.
	if matches[0].Record.ImagePath != "b.jpg" || matches[1].Record.ImagePath != "c.jpg" {
		t.Errorf("wrong order: %s then %s", matches[0].Record.ImagePath, matches[1].Record.ImagePath)
	}
	if math.Abs(matches[0].Similarity-0.81) > 1e-5 {
		t.Errorf("expected similarity ~0.81, got %v", matches[0].Similarity)
	}
}

func TestSearchWithThresholdMonotonic(t *testing.T) {
	engine := buildEngine(t, index.ModeFullImage,
		[]float64{0.9, 0.7, 0.5, 0.3, 0.1},
		[]string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"})

	prev := math.MaxInt
	for _, threshold := range []float64{0.0, 0.2, 0.4, 0.6, 0.8, 0.95} {
		matches, err := engine.SearchWithThreshold(queryRight, threshold, 100)
		if err != nil {
			t.Fatalf("SearchWithThreshold(%v) failed: %v", threshold, err)
		}
		if len(matches) > prev {
			t.Errorf("raising threshold to %v increased result count %d -> %d",
				threshold, prev, len(matches))
		}
		prev = len(matches)
	}
}

func TestSearchWithThresholdNoMatchIsNotError(t *testing.T) {
	engine := buildEngine(t, index.ModeFullImage, []float64{0.1}, []string{"a.jpg"})

	matches, err := engine.SearchWithThreshold(queryRight, 0.9, 100)
	if err != nil {
		t.Fatalf("no match above threshold must not be an error, got %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected 0 matches, got %d", len(matches))
	}
}

func TestFindPhotosByTextScenario(t *testing.T) {
	// Three photos with similarities 0.81, 0.52, 0.30 and threshold 0.5:
	// two photos survive, ordered best first.
	engine := buildEngine(t, index.ModeFullImage,
		[]float64{0.81, 0.52, 0.30},
		[]string{"p1.jpg", "p2.jpg", "p3.jpg"})

	result, err := engine.FindPhotosByText(queryRight, "people dancing", 0.5, 100)
	if err != nil {
		t.Fatalf("FindPhotosByText failed: %v", err)
	}

	if !result.Success {
		t.Fatalf("expected success, got message %q", result.Message)
	}
	if result.TotalPhotos != 2 {
		t.Fatalf("expected 2 photos, got %d", result.TotalPhotos)
	}
	if result.Matches[0].ImagePath != "p1.jpg" || result.Matches[1].ImagePath != "p2.jpg" {
		t.Errorf("wrong photo order: %s then %s",
			result.Matches[0].ImagePath, result.Matches[1].ImagePath)
	}
	for _, p := range result.Matches {
		if p.MaxSimilarity != p.AvgSimilarity || p.NumMatches != 1 {
			t.Errorf("full-image photo %s should have max == avg and one match: %+v", p.ImagePath, p)
		}
	}
	if result.QueryInfo.QueryType != "text" || result.QueryInfo.QueryText != "people dancing" {
		t.Errorf("unexpected query info: %+v", result.QueryInfo)
	}
}

func TestFindPhotosByTextModeMismatch(t *testing.T) {
	engine := buildEngine(t, index.ModeFace, []float64{0.9}, []string{"a.jpg"})

	_, err := engine.FindPhotosByText(queryRight, "beach", 0.5, 100)
	if !errors.Is(err, ErrModeMismatch) {
		t.Errorf("expected ErrModeMismatch, got %v", err)
	}
}

func TestFindPhotosByEmbeddingFaceGrouping(t *testing.T) {
	// Photo P has two faces at 0.9 and 0.3; only the 0.9 face clears the
	// 0.5 threshold, so P aggregates a single contributor.
	engine := buildEngine(t, index.ModeFace,
		[]float64{0.9, 0.3, 0.7, 0.6},
		[]string{"P.jpg", "P.jpg", "Q.jpg", "Q.jpg"})

	result, err := engine.FindPhotosByEmbedding(queryRight, 0.5, 100, "Ann")
	if err != nil {
		t.Fatalf("FindPhotosByEmbedding failed: %v", err)
	}
	if !result.Success || result.TotalPhotos != 2 {
		t.Fatalf("expected 2 photos, got %d (message %q)", result.TotalPhotos, result.Message)
	}

	p := result.Matches[0]
	if p.ImagePath != "P.jpg" {
		t.Fatalf("expected P.jpg first, got %s", p.ImagePath)
	}
	if p.NumMatches != 1 {
		t.Errorf("expected 1 contributing face (0.3 face below threshold), got %d", p.NumMatches)
	}
	if math.Abs(p.MaxSimilarity-0.9) > 1e-5 || math.Abs(p.AvgSimilarity-0.9) > 1e-5 {
		t.Errorf("expected max = avg = 0.9, got max %v avg %v", p.MaxSimilarity, p.AvgSimilarity)
	}

	q := result.Matches[1]
	if q.ImagePath != "Q.jpg" || q.NumMatches != 2 {
		t.Fatalf("expected Q.jpg with 2 faces, got %s with %d", q.ImagePath, q.NumMatches)
	}
	if math.Abs(q.MaxSimilarity-0.7) > 1e-5 {
		t.Errorf("expected max 0.7, got %v", q.MaxSimilarity)
	}
	if math.Abs(q.AvgSimilarity-0.65) > 1e-5 {
		t.Errorf("expected avg 0.65, got %v", q.AvgSimilarity)
	}
	if result.QueryInfo.QueryType != "registered_person" || result.QueryInfo.PersonName != "Ann" {
		t.Errorf("unexpected query info: %+v", result.QueryInfo)
	}
}

func TestFindPhotosByEmbeddingNoMatches(t *testing.T) {
	engine := buildEngine(t, index.ModeFace, []float64{0.2}, []string{"a.jpg"})

	result, err := engine.FindPhotosByEmbedding(queryRight, 0.8, 100, "Bob")
	if err != nil {
		t.Fatalf("no match must not be an error, got %v", err)
	}
	if result.Success {
		t.Error("expected success=false for empty result")
	}
	if result.Message == "" {
		t.Error("expected an explanatory message")
	}
	if len(result.Matches) != 0 || result.TotalPhotos != 0 {
		t.Errorf("expected empty matches, got %+v", result.Matches)
	}
}

func TestGroupingIdempotent(t *testing.T) {
	engine := buildEngine(t, index.ModeFace,
		[]float64{0.9, 0.8, 0.7, 0.6, 0.85},
		[]string{"a.jpg", "b.jpg", "a.jpg", "c.jpg", "b.jpg"})

	matches, err := engine.SearchWithThreshold(queryRight, 0.5, 100)
	if err != nil {
		t.Fatalf("SearchWithThreshold failed: %v", err)
	}

	first := engine.groupByPhoto(matches)
	second := engine.groupByPhoto(matches)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("grouping not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestCombineQueries(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	combined, err := CombineQueries(a, b)
	if err != nil {
		t.Fatalf("CombineQueries failed: %v", err)
	}

	var norm float64
	for _, v := range combined {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("combined vector not unit norm: %v", norm)
	}
	if math.Abs(float64(combined[0])-float64(combined[1])) > 1e-6 {
		t.Errorf("averaging orthogonal unit vectors should give equal components, got %v", combined)
	}
}

func TestCombineQueriesDimensionMismatch(t *testing.T) {
	_, err := CombineQueries([]float32{1, 0}, []float32{1, 0, 0})
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
