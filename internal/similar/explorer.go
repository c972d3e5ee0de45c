// Package similar explores near-duplicate photos in a built index with an
// in-memory HNSW graph. It is an offline analysis tool; threshold searches go
// through the retrieval engine instead.
package similar

import (
	"errors"
	"fmt"
	"sort"

	"github.com/coder/hnsw"

	"github.com/eventsnap/photo-finder/internal/index"
)

const maxNeighborsPerNode = 16

// Neighbor is one nearby photo in embedding space.
type Neighbor struct {
	Ordinal    int     `json:"ordinal"`
	ImagePath  string  `json:"image_path"`
	Similarity float64 `json:"similarity"`
}

// Explorer answers approximate nearest-neighbor queries over a loaded index.
type Explorer struct {
	graph  *hnsw.Graph[int]
	idx    *index.FlatIndex
	meta   *index.Metadata
	byPath map[string]int // image path -> first ordinal
}

// NewExplorer builds the HNSW graph from every vector in the index.
func NewExplorer(idx *index.FlatIndex, meta *index.Metadata) (*Explorer, error) {
	if idx.Count() == 0 {
		return nil, errors.New("index is empty")
	}
	if idx.Count() != len(meta.Records) {
		return nil, index.ErrIndexCorrupt
	}

	g := hnsw.NewGraph[int]()
	g.M = maxNeighborsPerNode
	g.Ml = 1.0 / float64(maxNeighborsPerNode)
	g.Distance = hnsw.CosineDistance

	byPath := make(map[string]int, len(meta.Records))
	for ordinal := 0; ordinal < idx.Count(); ordinal++ {
		vec, err := idx.Vector(ordinal)
		if err != nil {
			return nil, err
		}
		g.Add(hnsw.MakeNode(ordinal, vec))
		path := meta.Records[ordinal].ImagePath
		if _, ok := byPath[path]; !ok {
			byPath[path] = ordinal
		}
	}

	return &Explorer{graph: g, idx: idx, meta: meta, byPath: byPath}, nil
}

// Neighbors returns the k photos nearest to the given ordinal, most similar
// first. The queried photo itself is excluded.
func (e *Explorer) Neighbors(ordinal, k int) ([]Neighbor, error) {
	query, err := e.idx.Vector(ordinal)
	if err != nil {
		return nil, err
	}

	// Ask for one extra node since the query photo is its own nearest neighbor.
	nodes := e.graph.Search(query, k+1)

	neighbors := make([]Neighbor, 0, k)
	for _, n := range nodes {
		if n.Key == ordinal {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Ordinal:    n.Key,
			ImagePath:  e.meta.Records[n.Key].ImagePath,
			Similarity: 1 - float64(hnsw.CosineDistance(query, n.Value)),
		})
		if len(neighbors) == k {
			break
		}
	}
	return neighbors, nil
}

// NeighborsByPath is Neighbors addressed by image path.
func (e *Explorer) NeighborsByPath(path string, k int) ([]Neighbor, error) {
	ordinal, ok := e.byPath[path]
	if !ok {
		return nil, fmt.Errorf("photo not in index: %s", path)
	}
	return e.Neighbors(ordinal, k)
}

// Groups clusters photos whose embeddings sit above the similarity threshold
// into near-duplicate groups. Only groups with at least two photos are
// returned, largest first.
func (e *Explorer) Groups(threshold float64, k int) ([][]string, error) {
	n := e.idx.Count()
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for ordinal := 0; ordinal < n; ordinal++ {
		neighbors, err := e.Neighbors(ordinal, k)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if nb.Similarity >= threshold {
				union(ordinal, nb.Ordinal)
			}
		}
	}

	// Collect components, deduplicating paths (face mode has several vectors
	// per photo).
	members := make(map[int]map[string]bool)
	for ordinal := 0; ordinal < n; ordinal++ {
		root := find(ordinal)
		if members[root] == nil {
			members[root] = make(map[string]bool)
		}
		members[root][e.meta.Records[ordinal].ImagePath] = true
	}

	var groups [][]string
	for _, paths := range members {
		if len(paths) < 2 {
			continue
		}
		group := make([]string, 0, len(paths))
		for p := range paths {
			group = append(group, p)
		}
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})
	return groups, nil
}
