// Package embedding talks to the CLIP embedding sidecar. The retrieval core
// never inspects how vectors are produced; everything behind the Provider
// interface is replaceable, including by test fakes.
package embedding

import (
	"context"
	"errors"
)

// ErrNoSingleFace means a selfie did not contain exactly one detectable
// face. User-facing and recoverable: the caller should ask for a clearer
// selfie rather than fail hard.
var ErrNoSingleFace = errors.New("no face detected or multiple faces found")

// Face is one detected face region with its embedding.
type Face struct {
	BBox      []int // [x1, y1, x2, y2] pixel coordinates
	Embedding []float32
	DetScore  float64
}

// Provider produces fixed-dimension unit-norm embeddings. All returned
// vectors must already be L2-normalized; the retrieval core performs no
// normalization of its own.
type Provider interface {
	// EmbedImage returns one embedding for the whole image.
	EmbedImage(ctx context.Context, path string) ([]float32, error)
	// EmbedFaces returns one embedding per detected face. An image with no
	// faces yields an empty slice, not an error.
	EmbedFaces(ctx context.Context, path string) ([]Face, error)
	// EmbedText returns an embedding for a free-text description, in the
	// same comparison space as EmbedImage.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// Dim returns the embedding dimension this provider produces.
	Dim() int
}

// SelfieEmbedding extracts the single face embedding from a selfie. Fails
// with ErrNoSingleFace unless exactly one face is detected.
func SelfieEmbedding(ctx context.Context, p Provider, path string) ([]float32, error) {
	faces, err := p.EmbedFaces(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(faces) != 1 {
		return nil, ErrNoSingleFace
	}
	return faces[0].Embedding, nil
}
