package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/index"
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// Options controls an index build.
type Options struct {
	Mode        index.Mode
	Concurrency int
	Progress    bool
}

// Stats summarizes a completed build.
type Stats struct {
	PhotosProcessed int
	PhotosSkipped   int
	VectorsIndexed  int
}

// Builder constructs search indexes from a photo directory.
type Builder struct {
	provider embedding.Provider
}

func NewBuilder(provider embedding.Provider) *Builder {
	return &Builder{provider: provider}
}

// photoResult holds the embeddings extracted from one photo, keyed back to
// its position in the sorted file list so output ordering is deterministic
// regardless of worker scheduling.
type photoResult struct {
	vectors [][]float32
	records []index.Record
}

// BuildDir walks dir, embeds every supported photo in the requested mode and
// returns the built index with its metadata. Photos that fail to embed are
// skipped with a warning; the build only fails when nothing could be indexed.
func (b *Builder) BuildDir(ctx context.Context, dir string, opts Options) (*index.FlatIndex, *index.Metadata, *Stats, error) {
	if !opts.Mode.Valid() {
		return nil, nil, nil, fmt.Errorf("invalid index mode: %q", opts.Mode)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	photos, err := listPhotos(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(photos) == 0 {
		return nil, nil, nil, fmt.Errorf("no supported photos found in %s", dir)
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.NewOptions(len(photos),
			progressbar.OptionSetDescription("Indexing photos"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]*photoResult, len(photos))
	var skipped int
	var mu sync.Mutex

	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup

	for i, path := range photos {
		wg.Add(1)
		go func(pos int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := b.embedPhoto(ctx, dir, path, opts.Mode)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, err)
				mu.Lock()
				skipped++
				mu.Unlock()
			} else {
				results[pos] = res
			}
			if bar != nil {
				bar.Add(1)
			}
		}(i, path)
	}
	wg.Wait()
	if bar != nil {
		fmt.Println()
	}

	var vectors [][]float32
	meta := &index.Metadata{Mode: opts.Mode}
	for _, res := range results {
		if res == nil {
			continue
		}
		for i := range res.vectors {
			rec := res.records[i]
			rec.ItemID = len(vectors)
			meta.Records = append(meta.Records, rec)
			vectors = append(vectors, res.vectors[i])
		}
	}

	if len(vectors) == 0 {
		return nil, nil, nil, fmt.Errorf("no photos could be embedded")
	}

	idx, err := index.NewFlatIndex(b.provider.Dim())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := idx.Build(vectors); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build index: %w", err)
	}

	stats := &Stats{
		PhotosProcessed: len(photos) - skipped,
		PhotosSkipped:   skipped,
		VectorsIndexed:  len(vectors),
	}
	return idx, meta, stats, nil
}

func (b *Builder) embedPhoto(ctx context.Context, dir, path string, mode index.Mode) (*photoResult, error) {
	full := filepath.Join(dir, filepath.FromSlash(path))

	switch mode {
	case index.ModeFullImage:
		vec, err := b.provider.EmbedImage(ctx, full)
		if err != nil {
			return nil, err
		}
		return &photoResult{
			vectors: [][]float32{vec},
			records: []index.Record{{ImagePath: path, Mode: mode}},
		}, nil

	case index.ModeFace:
		faces, err := b.provider.EmbedFaces(ctx, full)
		if err != nil {
			return nil, err
		}
		res := &photoResult{}
		for _, f := range faces {
			res.vectors = append(res.vectors, f.Embedding)
			res.records = append(res.records, index.Record{
				ImagePath: path,
				Mode:      mode,
				BBox:      f.BBox,
				DetScore:  f.DetScore,
			})
		}
		return res, nil
	}
	return nil, fmt.Errorf("invalid index mode: %q", mode)
}

// listPhotos returns the relative paths of all supported photos under dir,
// sorted for deterministic ordinals.
func listPhotos(dir string) ([]string, error) {
	var photos []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		photos = append(photos, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk photo directory: %w", err)
	}
	sort.Strings(photos)
	return photos, nil
}
