package index

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	meta := &Metadata{
		Mode: ModeFace,
		Records: []Record{
			{ItemID: 0, ImagePath: "photos/b.jpg", Mode: ModeFace, BBox: []int{10, 20, 110, 140}, DetScore: 0.97},
			{ItemID: 1, ImagePath: "photos/a.jpg", Mode: ModeFace, BBox: []int{5, 5, 60, 80}, DetScore: 0.88},
			{ItemID: 2, ImagePath: "photos/b.jpg", Mode: ModeFace, BBox: []int{200, 30, 280, 120}, DetScore: 0.91},
		},
	}

	if err := SaveMetadata(meta, path); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}

	loaded, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if loaded.Mode != ModeFace {
		t.Errorf("expected mode %q, got %q", ModeFace, loaded.Mode)
	}
	// Order must be preserved exactly as written, never re-sorted.
	if !reflect.DeepEqual(loaded.Records, meta.Records) {
		t.Errorf("records changed across round-trip:\nwant %+v\ngot  %+v", meta.Records, loaded.Records)
	}
}

func TestLoadMetadataMissing(t *testing.T) {
	_, err := LoadMetadata(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveMetadataInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	err := SaveMetadata(&Metadata{Mode: "thumbnail"}, path)
	if err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestLoadPairCountMismatch(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.bin")
	metaPath := filepath.Join(dir, "metadata.json")

	idx, _ := NewFlatIndex(2)
	if err := idx.Build([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := idx.Save(indexPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	meta := &Metadata{
		Mode:    ModeFullImage,
		Records: []Record{{ItemID: 0, ImagePath: "photos/a.jpg", Mode: ModeFullImage}},
	}
	if err := SaveMetadata(meta, metaPath); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}

	_, _, err := LoadPair(2, indexPath, metaPath)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestSavePairRefusesMismatch(t *testing.T) {
	dir := t.TempDir()

	idx, _ := NewFlatIndex(2)
	if err := idx.Build([][]float32{{1, 0}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	meta := &Metadata{Mode: ModeFullImage}
	err := SavePair(idx, meta, filepath.Join(dir, "index.bin"), filepath.Join(dir, "metadata.json"))
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestLoadPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.bin")
	metaPath := filepath.Join(dir, "metadata.json")

	idx, _ := NewFlatIndex(2)
	if err := idx.Build([][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	meta := &Metadata{
		Mode: ModeFullImage,
		Records: []Record{
			{ItemID: 0, ImagePath: "photos/a.jpg", Mode: ModeFullImage},
			{ItemID: 1, ImagePath: "photos/b.jpg", Mode: ModeFullImage},
		},
	}
	if err := SavePair(idx, meta, indexPath, metaPath); err != nil {
		t.Fatalf("SavePair failed: %v", err)
	}

	loadedIdx, loadedMeta, err := LoadPair(2, indexPath, metaPath)
	if err != nil {
		t.Fatalf("LoadPair failed: %v", err)
	}
	if loadedIdx.Count() != 2 || len(loadedMeta.Records) != 2 {
		t.Errorf("expected 2 vectors and 2 records, got %d and %d",
			loadedIdx.Count(), len(loadedMeta.Records))
	}
}
