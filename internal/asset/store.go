package asset

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pixedit/pixedit/internal/typeid"
)

var (
	ErrNotFound = errors.New("asset not found")
	ErrTooLarge = errors.New("image exceeds pixel limit")
)

// Store keeps uploaded images on disk as PNG, named by asset id.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Decode reads any supported image format and returns the image and its
// format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// DecodeLimited reads the header first and rejects images declaring more
// than maxPixels before any pixel buffer is allocated.
func DecodeLimited(r io.ReadSeeker, maxPixels int64) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, "", fmt.Errorf("rewind image: %w", err)
	}
	return Decode(r)
}

// Save stores img under a fresh asset id.
func (s *Store) Save(img image.Image) (string, error) {
	assetID := typeid.NewAssetID()
	path := s.path(assetID)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close asset file: %w", err)
	}
	return assetID, nil
}

// Load decodes the stored asset. The decode checks ctx before and after
// reading so a canceled load does not hand back a result.
func (s *Store) Load(ctx context.Context, assetID string) (image.Image, error) {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(assetID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, assetID)
		}
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func (s *Store) path(assetID string) string {
	return filepath.Join(s.dir, assetID+".png")
}
