package editor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// FilterMode selects the color effect applied on render and export.
type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterGrayscale
	FilterWarm
	FilterCool
)

var filterNames = [...]string{
	FilterNone:      "none",
	FilterGrayscale: "grayscale",
	FilterWarm:      "warm",
	FilterCool:      "cool",
}

func (f FilterMode) String() string {
	if f < 0 || int(f) >= len(filterNames) {
		return fmt.Sprintf("FilterMode(%d)", int(f))
	}
	return filterNames[f]
}

// Valid reports whether f is a known mode.
func (f FilterMode) Valid() bool {
	return f >= FilterNone && f <= FilterCool
}

// Next cycles to the following mode.
func (f FilterMode) Next() FilterMode {
	return (f + 1) % FilterMode(len(filterNames))
}

// ParseFilterMode parses the names produced by String.
func ParseFilterMode(s string) (FilterMode, error) {
	for i, name := range filterNames {
		if name == s {
			return FilterMode(i), nil
		}
	}
	return FilterNone, fmt.Errorf("unknown filter mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f FilterMode) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid filter mode %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FilterMode) UnmarshalText(b []byte) error {
	m, err := ParseFilterMode(string(b))
	if err != nil {
		return err
	}
	*f = m
	return nil
}

// ApplyFilter returns a filtered copy of img. The source is never modified.
func ApplyFilter(img image.Image, mode FilterMode) *image.NRGBA {
	switch mode {
	case FilterGrayscale:
		return imaging.Grayscale(img)
	case FilterWarm:
		return imaging.AdjustFunc(img, scaleChannels(1.1, 1.1, 1.0))
	case FilterCool:
		return imaging.AdjustFunc(img, scaleChannels(1.0, 1.0, 1.15))
	default:
		return imaging.Clone(img)
	}
}

func scaleChannels(r, g, b float64) func(color.NRGBA) color.NRGBA {
	return func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampChannel(float64(c.R) * r),
			G: clampChannel(float64(c.G) * g),
			B: clampChannel(float64(c.B) * b),
			A: c.A,
		}
	}
}

func clampChannel(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v + 0.5)
}
