package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
)

const defaultBaseURL = "http://localhost:8000"

// Client is an HTTP client for the embedding sidecar. The sidecar exposes
// /embed/image and /embed/faces (multipart image upload) and /embed/text
// (JSON body), all returning unit-norm vectors of a fixed dimension.
type Client struct {
	baseURL string
	dim     int
	client  *http.Client
}

// NewClient creates a client for the embedding sidecar at baseURL,
// producing vectors of the given dimension.
func NewClient(baseURL string, dim int) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		client:  &http.Client{},
	}, nil
}

// Dim returns the configured embedding dimension.
func (c *Client) Dim() int {
	return c.dim
}

// embeddingResponse is the sidecar's response for single-vector endpoints.
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// faceDetection is one detected face in the sidecar's /embed/faces response.
// The sidecar reports bounding boxes as floats; they are rounded to pixel
// integers here.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

type facesResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type textRequest struct {
	Text string `json:"text"`
}

// postMultipartImage posts image data as a multipart form to the given
// endpoint and returns the raw response body.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// checkDim validates a returned vector against the configured dimension.
func (c *Client) checkDim(embedding []float32) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding returned")
	}
	if len(embedding) != c.dim {
		return fmt.Errorf("embedding server returned dimension %d, expected %d", len(embedding), c.dim)
	}
	return nil
}

// EmbedImage computes the whole-image embedding for the image file at path.
func (c *Client) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/image", data)
	if err != nil {
		return nil, err
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if err := c.checkDim(embResp.Embedding); err != nil {
		return nil, err
	}
	return embResp.Embedding, nil
}

// EmbedFaces detects faces in the image file at path and returns one
// embedding per face. No faces is a valid result, not an error.
func (c *Client) EmbedFaces(ctx context.Context, path string) ([]Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/faces", data)
	if err != nil {
		return nil, err
	}

	var faceResp facesResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		if err := c.checkDim(f.Embedding); err != nil {
			return nil, fmt.Errorf("face %d: %w", f.FaceIndex, err)
		}
		bbox := make([]int, len(f.BBox))
		for i, v := range f.BBox {
			bbox[i] = int(math.Round(v))
		}
		faces = append(faces, Face{
			BBox:      bbox,
			Embedding: f.Embedding,
			DetScore:  f.DetScore,
		})
	}
	return faces, nil
}

// EmbedText computes the embedding for a free-text query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/text", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if err := c.checkDim(embResp.Embedding); err != nil {
		return nil, err
	}
	return embResp.Embedding, nil
}

// detectMIMEType detects the MIME type from image data magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
