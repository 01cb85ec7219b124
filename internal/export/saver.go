package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/pixedit/pixedit/internal/db"
	"github.com/pixedit/pixedit/internal/typeid"
)

const defaultName = "pixedit"

var ErrEmptyImage = errors.New("nothing to export")

// Recorder stores export metadata. It is optional.
type Recorder interface {
	CreateExport(ctx context.Context, arg db.CreateExportParams) (db.Export, error)
}

// Result describes a saved export.
type Result struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int64  `json:"bytes"`
}

// FileSaver writes flattened images as JPEG files and records them.
type FileSaver struct {
	dir      string
	quality  int
	recorder Recorder
}

// NewFileSaver creates a saver writing into dir. recorder may be nil.
func NewFileSaver(dir string, quality int, recorder Recorder) (*FileSaver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &FileSaver{
		dir:      dir,
		quality:  quality,
		recorder: recorder,
	}, nil
}

func (s *FileSaver) Dir() string { return s.dir }

// Save encodes img and stores it. The file only appears under its final
// name once fully written; a failed record removes it again.
func (s *FileSaver) Save(ctx context.Context, sessionID, name string, img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exportID := typeid.NewExportID()
	filename := fmt.Sprintf("%s_%s.jpg", sanitizeName(name), exportID)
	finalPath := filepath.Join(s.dir, filename)

	tmp, err := os.CreateTemp(s.dir, ".export-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	stat, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("stat output file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("rename output file: %w", err)
	}

	b := img.Bounds()
	res := &Result{
		ID:       exportID,
		Filename: filename,
		URL:      "/exports/" + filename,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Bytes:    stat.Size(),
	}

	if s.recorder != nil {
		_, err := s.recorder.CreateExport(ctx, db.CreateExportParams{
			ID:        res.ID,
			SessionID: sessionID,
			Filename:  res.Filename,
			Width:     int32(res.Width),
			Height:    int32(res.Height),
			Bytes:     res.Bytes,
		})
		if err != nil {
			os.Remove(finalPath)
			return nil, fmt.Errorf("record export: %w", err)
		}
	}

	slog.Info("export complete", "export", res.ID, "session", sessionID, "file", filename, "size", res.Bytes)
	return res, nil
}

func sanitizeName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".jpg")
	if name == "" {
		return defaultName
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
