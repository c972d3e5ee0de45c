package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// CropFace cuts a face bounding box [x1, y1, x2, y2] out of an image,
// expanded by margin pixels on every side and clamped to the image bounds.
func CropFace(data []byte, bbox []int, margin int) ([]byte, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("invalid bounding box: expected 4 values, got %d", len(bbox))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rect := image.Rect(bbox[0]-margin, bbox[1]-margin, bbox[2]+margin, bbox[3]+margin)
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("bounding box %v is outside image bounds %v", bbox, bounds)
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	src, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image format does not support cropping")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src.SubImage(rect), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode cropped face: %w", err)
	}
	return buf.Bytes(), nil
}
