package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testJPEG renders a small solid JPEG for upload tests.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/faces" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("bad multipart form: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": 2,
			"faces": []map[string]any{
				{"face_index": 0, "dim": 4, "embedding": []float32{1, 0, 0, 0}, "bbox": []float64{0, 0, 10, 10}, "det_score": 0.99},
				{"face_index": 1, "dim": 4, "embedding": []float32{0, 1, 0, 0}, "bbox": []float64{20, 0, 30, 10}, "det_score": 0.97},
			},
			"model": "buffalo_l",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	embeddings, err := client.Detect(context.Background(), testJPEG(t, 10, 10))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[0][0] != 1 || embeddings[1][1] != 1 {
		t.Errorf("embeddings not preserved: %v", embeddings)
	}
}

func TestDetectZeroFacesIsValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"faces_count": 0, "faces": []any{}, "model": "buffalo_l"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	embeddings, err := client.Detect(context.Background(), testJPEG(t, 10, 10))
	if err != nil {
		t.Fatalf("zero faces must not error: %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("expected no embeddings, got %d", len(embeddings))
	}
}

func TestDetectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot decode image", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	if _, err := client.Detect(context.Background(), testJPEG(t, 10, 10)); err == nil {
		t.Fatal("expected error from detector failure")
	}
}

func TestDetectResizesLargePhotos(t *testing.T) {
	var uploadedSize int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(50 << 20); err != nil {
			t.Fatal(err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		img, _, err := image.Decode(file)
		if err != nil {
			t.Fatalf("uploaded data is not an image: %v", err)
		}
		uploadedSize = img.Bounds().Dx()
		json.NewEncoder(w).Encode(map[string]any{"faces_count": 0, "faces": []any{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, 64)
	if _, err := client.Detect(context.Background(), testJPEG(t, 200, 100)); err != nil {
		t.Fatal(err)
	}
	if uploadedSize != 64 {
		t.Errorf("expected longer edge downscaled to 64, got %d", uploadedSize)
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0x57, 0x45, 0x42, 0x50}, "image/webp"},
		{"unknown", []byte{0, 1, 2, 3, 4, 5, 6, 7}, "application/octet-stream"},
		{"too short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectMIMEType(tc.data); got != tc.expected {
				t.Errorf("detectMIMEType = %q; want %q", got, tc.expected)
			}
		})
	}
}

func TestResizeImageKeepsSmallImages(t *testing.T) {
	data := testJPEG(t, 32, 16)
	out, err := ResizeImage(data, 64)
	if err != nil {
		t.Fatal(err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Errorf("small image should keep its size, got %v", img.Bounds())
	}
}
