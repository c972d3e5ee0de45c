package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, width, height int, asPNG bool) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	if asPNG {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("could not decode result: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestThumbnailDownscalesLandscape(t *testing.T) {
	data := encodeTestImage(t, 800, 400, false)

	out, err := Thumbnail(data, 200)
	if err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 200 {
		t.Errorf("expected width 200, got %d", w)
	}
	if h != 100 {
		t.Errorf("expected height 100, got %d", h)
	}
}

func TestThumbnailDownscalesPortrait(t *testing.T) {
	data := encodeTestImage(t, 300, 600, false)

	out, err := Thumbnail(data, 150)
	if err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if h != 150 {
		t.Errorf("expected height 150, got %d", h)
	}
	if w != 75 {
		t.Errorf("expected width 75, got %d", w)
	}
}

func TestThumbnailSmallImageReencoded(t *testing.T) {
	data := encodeTestImage(t, 100, 80, true)

	out, err := Thumbnail(data, 200)
	if err != nil {
		t.Fatalf("thumbnail failed: %v", err)
	}

	// Dimensions preserved but converted to JPEG.
	w, h := decodeDims(t, out)
	if w != 100 || h != 80 {
		t.Errorf("expected 100x80, got %dx%d", w, h)
	}
	_, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("could not decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg output, got %s", format)
	}
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image"), 100); err == nil {
		t.Error("expected error for invalid image data")
	}
}

func TestCropFace(t *testing.T) {
	data := encodeTestImage(t, 400, 300, false)

	out, err := CropFace(data, []int{100, 50, 200, 150}, 0)
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 100 || h != 100 {
		t.Errorf("expected 100x100 crop, got %dx%d", w, h)
	}
}

func TestCropFaceMarginClamped(t *testing.T) {
	data := encodeTestImage(t, 200, 200, false)

	// Box near the top-left corner; margin pushes past the edge.
	out, err := CropFace(data, []int{10, 10, 60, 60}, 20)
	if err != nil {
		t.Fatalf("crop failed: %v", err)
	}

	w, h := decodeDims(t, out)
	if w != 80 || h != 80 {
		t.Errorf("expected 80x80 clamped crop, got %dx%d", w, h)
	}
}

func TestCropFaceInvalidBox(t *testing.T) {
	data := encodeTestImage(t, 100, 100, false)

	if _, err := CropFace(data, []int{10, 20, 30}, 0); err == nil {
		t.Error("expected error for 3-value bounding box")
	}
	if _, err := CropFace(data, []int{500, 500, 600, 600}, 0); err == nil {
		t.Error("expected error for out-of-bounds box")
	}
}
