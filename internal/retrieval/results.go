package retrieval

import "github.com/eventsnap/photo-finder/internal/index"

// MatchResult is one per-vector candidate that cleared the similarity
// threshold. Transient, never persisted.
type MatchResult struct {
	Ordinal    int          `json:"item_id"`
	Similarity float64      `json:"similarity"`
	Distance   float64      `json:"distance"`
	Record     index.Record `json:"metadata"`
}

// FaceMatch is one contributing face inside a PhotoResult.
type FaceMatch struct {
	BBox       []int   `json:"bbox"`
	Similarity float64 `json:"similarity"`
	DetScore   float64 `json:"det_score"`
}

// PhotoResult is one distinct photo in a ranked result set. In face mode a
// photo aggregates all of its matching faces; in full-image mode it wraps a
// single match.
type PhotoResult struct {
	ImagePath     string      `json:"image_path"`
	Faces         []FaceMatch `json:"faces,omitempty"`
	MaxSimilarity float64     `json:"max_similarity"`
	AvgSimilarity float64     `json:"avg_similarity"`
	NumMatches    int         `json:"num_matches"`
}

// QueryInfo describes the query that produced a result set.
type QueryInfo struct {
	QueryID             string  `json:"query_id"`
	QueryType           string  `json:"query_type"` // "face", "text" or "registered_person"
	QueryText           string  `json:"query_text,omitempty"`
	PersonName          string  `json:"person_name,omitempty"`
	EmbeddingDim        int     `json:"embedding_dim"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// QueryResult is the full outcome of one photo query. "No matches above
// threshold" is a normal outcome: Success is false, Message explains why,
// and no error is raised.
type QueryResult struct {
	Success     bool          `json:"success"`
	Message     string        `json:"message"`
	QueryInfo   QueryInfo     `json:"query_info"`
	Matches     []PhotoResult `json:"matches"`
	TotalPhotos int           `json:"total_photos"`
}
