package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/profile"
	"github.com/eventsnap/photo-finder/internal/retrieval"
)

const testDim = 4

// referenceVector is the query direction all test similarities are measured
// against.
func referenceVector() []float32 {
	return unitVector(1)
}

// unitVector returns a unit vector with the given cosine similarity to the
// reference vector.
func unitVector(similarity float64) []float32 {
	v := make([]float32, testDim)
	v[0] = float32(similarity)
	v[1] = float32(math.Sqrt(1 - similarity*similarity))
	return v
}

// fakeProvider is a canned embedding provider for handler tests. Face counts
// come from the uploaded file's content; text queries embed to the reference
// vector.
type fakeProvider struct {
	facesByContent map[string]int
	failText       bool
}

func (f *fakeProvider) Dim() int { return testDim }

func (f *fakeProvider) EmbedImage(_ context.Context, path string) ([]float32, error) {
	return referenceVector(), nil
}

func (f *fakeProvider) EmbedFaces(_ context.Context, path string) ([]embedding.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n := f.facesByContent[string(data)]
	faces := make([]embedding.Face, n)
	for i := range faces {
		faces[i] = embedding.Face{
			BBox:      []int{10, 10, 60, 60},
			Embedding: referenceVector(),
			DetScore:  0.95,
		}
	}
	return faces, nil
}

func (f *fakeProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	if f.failText {
		return nil, errors.New("embedding service down")
	}
	return referenceVector(), nil
}

// buildEngine creates an engine over vectors with the given similarities to
// the reference vector.
func buildEngine(t *testing.T, mode index.Mode, sims []float64, paths []string) *retrieval.Engine {
	t.Helper()

	idx, err := index.NewFlatIndex(testDim)
	if err != nil {
		t.Fatalf("could not create index: %v", err)
	}
	vectors := make([][]float32, len(sims))
	meta := &index.Metadata{Mode: mode}
	for i, s := range sims {
		vectors[i] = unitVector(s)
		rec := index.Record{ItemID: i, ImagePath: paths[i], Mode: mode}
		if mode == index.ModeFace {
			rec.BBox = []int{0, 0, 50, 50}
			rec.DetScore = 0.9
		}
		meta.Records = append(meta.Records, rec)
	}
	if err := idx.Build(vectors); err != nil {
		t.Fatalf("could not build index: %v", err)
	}

	engine, err := retrieval.NewEngine(idx, meta)
	if err != nil {
		t.Fatalf("could not create engine: %v", err)
	}
	return engine
}

// testService wires a full service with face and text engines, one registered
// person ("Ann") and a photo library directory.
func testService(t *testing.T) *Service {
	t.Helper()

	profiles, err := profile.NewStore(filepath.Join(t.TempDir(), "profiles.json"))
	if err != nil {
		t.Fatalf("could not create profile store: %v", err)
	}
	if err := profiles.Register("Ann", referenceVector(), ""); err != nil {
		t.Fatalf("could not register test person: %v", err)
	}

	photoDir := t.TempDir()
	for _, name := range []string{"party.jpg", "beach.jpg"} {
		if err := os.WriteFile(filepath.Join(photoDir, name), []byte("photo-bytes"), 0644); err != nil {
			t.Fatalf("could not write test photo: %v", err)
		}
	}

	return &Service{
		Config:     config.Load(),
		Provider:   &fakeProvider{facesByContent: map[string]int{"selfie-one-face": 1, "selfie-two-faces": 2}},
		Profiles:   profiles,
		FaceEngine: buildEngine(t, index.ModeFace, []float64{0.9, 0.3}, []string{"party.jpg", "beach.jpg"}),
		TextEngine: buildEngine(t, index.ModeFullImage, []float64{0.8, 0.1}, []string{"party.jpg", "beach.jpg"}),
		PhotoDir:   photoDir,
	}
}

// jsonRequest builds a POST request with a JSON body.
func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("could not marshal request body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a POST request with form fields and one uploaded file.
func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName, fileContent string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("could not write form field: %v", err)
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		t.Fatalf("could not create form file: %v", err)
	}
	if _, err := part.Write([]byte(fileContent)); err != nil {
		t.Fatalf("could not write file content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("could not close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
