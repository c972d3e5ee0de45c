package index

// Mode describes what each stored vector represents.
type Mode string

const (
	// ModeFullImage means one embedding per photo, used for text search.
	ModeFullImage Mode = "full_image"
	// ModeFace means one embedding per detected face region, used for identity search.
	ModeFace Mode = "face"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	return m == ModeFullImage || m == ModeFace
}

// Record holds the metadata for one stored vector. Its position in the
// metadata slice must equal the row ordinal in the vector index; the two
// files are always written and read as a pair.
type Record struct {
	ItemID    int     `json:"item_id"`
	ImagePath string  `json:"image_path"`
	Mode      Mode    `json:"mode"`
	BBox      []int   `json:"bbox,omitempty"`      // [x1, y1, x2, y2] pixel coordinates, face mode only
	DetScore  float64 `json:"det_score,omitempty"` // face detector confidence, 0-1
}

// Metadata is the full metadata side of an index pair. Mode is set once at
// build time; the per-record mode tags are kept for wire compatibility but
// readers should branch on the index-level mode.
type Metadata struct {
	Mode    Mode     `json:"mode"`
	Records []Record `json:"records"`
}

// Hit is one nearest-neighbor result: the row ordinal and its squared
// Euclidean distance to the query.
type Hit struct {
	Ordinal  int
	Distance float64
}
