package editor

import (
	"image/color"
	"math"
	"testing"
)

func TestExportSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		target       float64
		wantW, wantH int
	}{
		{"source ratio", 400, 300, -1, 400, 300},
		{"square from wide", 400, 200, 1, 200, 200},
		{"square from tall", 200, 400, 1, 200, 200},
		{"9:16 from square", 900, 900, 9.0 / 16.0, 506, 900},
		{"16:9 from square", 900, 900, 16.0 / 9.0, 900, 506},
		{"no image", 0, 0, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := IdentityView()
			v.TargetAspectRatio = tt.target
			w, h := ExportSize(tt.w, tt.h, v)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ExportSize = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestExportMatrix(t *testing.T) {
	v := ViewTransform{Scale: 2, TranslateX: 0.5, TranslateY: 0.5}
	m := ExportMatrix(100, 100, 100, 100, v)

	// Source center lands on the output center, then shifts by the view
	// translation (y inverted).
	x, y := m.TransformPoint(50, 50)
	if math.Abs(x-75) > 1e-9 || math.Abs(y-25) > 1e-9 {
		t.Errorf("center maps to (%v, %v), want (75, 25)", x, y)
	}
	x, y = m.TransformPoint(0, 0)
	if math.Abs(x-(-25)) > 1e-9 || math.Abs(y-(-75)) > 1e-9 {
		t.Errorf("origin maps to (%v, %v), want (-25, -75)", x, y)
	}
}

func TestFlattenLetterboxesOnBlack(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	src := solidImage(100, 50, red)

	v := IdentityView()
	v.Scale = 0.5
	out := Flatten(src, v, FilterNone)

	if b := out.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("output = %v, want 100x50", b.Size())
	}
	if got := out.NRGBAAt(50, 25); got != red {
		t.Errorf("center = %v, want %v", got, red)
	}
	if got := out.NRGBAAt(2, 2); got != (color.NRGBA{A: 255}) {
		t.Errorf("corner = %v, want opaque black", got)
	}
}

func TestApplyFilter(t *testing.T) {
	gray := color.NRGBA{R: 100, G: 100, B: 100, A: 255}
	tests := []struct {
		mode FilterMode
		in   color.NRGBA
		want color.NRGBA
	}{
		{FilterNone, gray, gray},
		{FilterWarm, gray, color.NRGBA{R: 110, G: 110, B: 100, A: 255}},
		{FilterCool, gray, color.NRGBA{R: 100, G: 100, B: 115, A: 255}},
		{FilterWarm, color.NRGBA{R: 250, G: 240, B: 10, A: 128}, color.NRGBA{R: 255, G: 255, B: 10, A: 128}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			src := solidImage(3, 3, tt.in)
			got := ApplyFilter(src, tt.mode).NRGBAAt(1, 1)
			if got != tt.want {
				t.Errorf("ApplyFilter(%v) = %v, want %v", tt.mode, got, tt.want)
			}
			if src.NRGBAAt(1, 1) != tt.in {
				t.Error("source modified")
			}
		})
	}
}

func TestApplyFilterGrayscale(t *testing.T) {
	src := solidImage(2, 2, color.NRGBA{R: 200, G: 50, B: 10, A: 255})
	got := ApplyFilter(src, FilterGrayscale).NRGBAAt(0, 0)
	if got.R != got.G || got.G != got.B {
		t.Errorf("grayscale pixel = %v", got)
	}
}

func TestFilterModeText(t *testing.T) {
	for m := FilterNone; m <= FilterCool; m++ {
		b, err := m.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back FilterMode
		if err := back.UnmarshalText(b); err != nil || back != m {
			t.Errorf("%v did not survive text encoding: %v %v", m, back, err)
		}
	}
	if _, err := ParseFilterMode("sepia"); err == nil {
		t.Error("unknown mode parsed")
	}
	if FilterCool.Next() != FilterNone {
		t.Error("Next must wrap")
	}
}
