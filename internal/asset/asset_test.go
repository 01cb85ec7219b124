package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/pixedit/pixedit/internal/typeid"
)

const testPixelBudget = 1 << 20

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 80, A: 255})
		}
	}
	return img
}

func TestDecodeFormats(t *testing.T) {
	src := testImage(6, 4)
	tests := []struct {
		format string
		encode func(io.Writer, image.Image) error
	}{
		{"png", png.Encode},
		{"jpeg", func(w io.Writer, m image.Image) error { return jpeg.Encode(w, m, nil) }},
		{"gif", func(w io.Writer, m image.Image) error { return gif.Encode(w, m, nil) }},
		{"bmp", bmp.Encode},
		{"tiff", func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.encode(&buf, src); err != nil {
				t.Fatal(err)
			}
			img, format, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %q, want %q", format, tt.format)
			}
			if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 4 {
				t.Errorf("bounds = %v", img.Bounds())
			}
		})
	}
}

// A well-formed asset id that was never stored.
var typeidMissing = typeid.NewAssetID()

func TestStoreSaveLoad(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	id, err := store.Save(testImage(5, 3))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	img, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	if _, err := store.Load(context.Background(), typeidMissing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of unknown asset err = %v, want %v", err, ErrNotFound)
	}
}

func TestStoreLoadRejects(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	if _, err := store.Load(context.Background(), "../secret"); !errors.Is(err, ErrNotFound) {
		t.Errorf("path id err = %v, want %v", err, ErrNotFound)
	}

	id, _ := store.Save(testImage(2, 2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Load(ctx, id); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled load err = %v", err)
	}
}

func multipartBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &body, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	h := NewHandler(store, testPixelBudget)

	var png1 bytes.Buffer
	png.Encode(&png1, testImage(8, 4))
	var bmp1 bytes.Buffer
	bmp.Encode(&bmp1, testImage(3, 9))

	tests := []struct {
		name       string
		file       string
		data       []byte
		wantStatus int
		wantW      int
	}{
		{"png", "a.png", png1.Bytes(), http.StatusOK, 8},
		{"bmp", "b.bmp", bmp1.Bytes(), http.StatusOK, 3},
		{"not an image", "notes.txt", []byte("hello"), http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.file, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/assets/upload", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()

			h.Upload(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp UploadResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Width != tt.wantW || resp.Name != tt.file {
				t.Errorf("response = %+v", resp)
			}
			if _, err := store.Load(context.Background(), resp.ID); err != nil {
				t.Errorf("uploaded asset not loadable: %v", err)
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "x")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	NewHandler(store, testPixelBudget).Upload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// hugePNG returns a small PNG whose header declares w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(1, 1)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// Signature (8), IHDR length (4), "IHDR" (4), then width and height.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeLimited(t *testing.T) {
	var small bytes.Buffer
	png.Encode(&small, testImage(20, 10))

	tests := []struct {
		name    string
		data    []byte
		max     int64
		wantErr error
	}{
		{"within budget", small.Bytes(), 200, nil},
		{"one pixel over", small.Bytes(), 199, ErrTooLarge},
		{"declared 100000x100000", hugePNG(t, 100000, 100000), testPixelBudget, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _, err := DecodeLimited(bytes.NewReader(tt.data), tt.max)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if img.Bounds().Dx() != 20 {
				t.Errorf("bounds = %v", img.Bounds())
			}
		})
	}
}

func TestUploadRejectsOversizedHeader(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir)

	body, ct := multipartBody(t, "bomb.png", hugePNG(t, 60000, 60000))
	req := httptest.NewRequest(http.MethodPost, "/assets/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	NewHandler(store, testPixelBudget).Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["error"] == "" {
		t.Error("missing error message")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("rejected upload left %d files", len(entries))
	}
}
