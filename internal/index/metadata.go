package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveMetadata writes the metadata side of an index pair as JSON. Record
// order is preserved exactly as given, never re-sorted.
func SaveMetadata(meta *Metadata, path string) error {
	if !meta.Mode.Valid() {
		return fmt.Errorf("invalid index mode %q", meta.Mode)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

// LoadMetadata reads metadata written by SaveMetadata. A missing file fails
// with ErrNotFound.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata file: %w", err)
	}
	if !meta.Mode.Valid() {
		return nil, fmt.Errorf("metadata file %s has invalid mode %q", path, meta.Mode)
	}
	return &meta, nil
}

// SavePair writes the vector index and its metadata together. The two files
// describe one index and are never written independently.
func SavePair(idx *FlatIndex, meta *Metadata, indexPath, metaPath string) error {
	if idx.Count() != len(meta.Records) {
		return fmt.Errorf("%w: %d vectors, %d records", ErrIndexCorrupt, idx.Count(), len(meta.Records))
	}
	if err := idx.Save(indexPath); err != nil {
		return err
	}
	return SaveMetadata(meta, metaPath)
}

// LoadPair loads the vector index and its metadata together and verifies the
// row counts agree, failing with ErrIndexCorrupt before the pair can be
// searched.
func LoadPair(dim int, indexPath, metaPath string) (*FlatIndex, *Metadata, error) {
	idx, err := NewFlatIndex(dim)
	if err != nil {
		return nil, nil, err
	}
	if err := idx.Load(indexPath); err != nil {
		return nil, nil, err
	}
	meta, err := LoadMetadata(metaPath)
	if err != nil {
		return nil, nil, err
	}
	if idx.Count() != len(meta.Records) {
		return nil, nil, fmt.Errorf("%w: %d vectors, %d records", ErrIndexCorrupt, idx.Count(), len(meta.Records))
	}
	return idx, meta, nil
}
