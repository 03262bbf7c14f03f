package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}

func newFaceServer(t *testing.T, status int, resp any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("part Content-Type = %q, want image/jpeg", ct)
			}
			data, _ := io.ReadAll(file)
			if len(data) != len(jpegHeader) {
				t.Errorf("uploaded %d bytes, want %d", len(data), len(jpegHeader))
			}
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractFace_PicksBestDetection(t *testing.T) {
	srv := newFaceServer(t, http.StatusOK, FaceResponse{
		FacesCount: 2,
		Faces: []FaceDetection{
			{FaceIndex: 0, Dim: 2, Embedding: []float32{1, 1}, DetScore: 0.7},
			{FaceIndex: 1, Dim: 2, Embedding: []float32{2, 2}, DetScore: 0.95},
		},
		Model: "buffalo_l",
	})

	emb, err := NewEmbeddingClient(srv.URL+"/", 0).ExtractFace(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("ExtractFace failed: %v", err)
	}
	if len(emb) != 2 || emb[0] != 2 {
		t.Errorf("embedding = %v, want the 0.95 detection", emb)
	}
}

func TestExtractFace_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		resp   any
	}{
		{"no faces", http.StatusOK, FaceResponse{FacesCount: 0}},
		{"empty embedding", http.StatusOK, FaceResponse{FacesCount: 1, Faces: []FaceDetection{{DetScore: 0.9}}}},
		{"server error", http.StatusInternalServerError, map[string]string{"error": "boom"}},
		{"bad json", http.StatusOK, "not an object"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newFaceServer(t, tc.status, tc.resp)
			_, err := NewEmbeddingClient(srv.URL, 0).ExtractFace(context.Background(), jpegHeader)
			if !errors.Is(err, ErrExtractionFailed) {
				t.Errorf("expected ErrExtractionFailed, got %v", err)
			}
		})
	}
}

func TestExtractFace_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewEmbeddingClient(url, 0).ExtractFace(context.Background(), jpegHeader)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", jpegHeader, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType = %q, want %q", got, tc.expected)
			}
		})
	}
}
