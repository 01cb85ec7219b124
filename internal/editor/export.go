package editor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ExportSize returns the output dimensions for flattening an imgW x imgH
// source framed at the view's content ratio. The limiting side keeps the
// source's pixel size.
func ExportSize(imgW, imgH int, vt ViewTransform) (int, int) {
	if imgW <= 0 || imgH <= 0 {
		return 0, 0
	}
	srcRatio := float64(imgW) / float64(imgH)
	ratio := vt.ContentRatio(srcRatio)

	if srcRatio > ratio {
		return max(1, int(float64(imgH)*ratio)), imgH
	}
	return imgW, max(1, int(float64(imgW)/ratio))
}

// ExportMatrix maps source pixels into an outW x outH output: center the
// source, scale about the output center, then apply the normalized view
// translation (y inverted).
func ExportMatrix(imgW, imgH, outW, outH int, vt ViewTransform) Matrix2D {
	ow, oh := float64(outW), float64(outH)

	m := Translate2D(ow/2-float64(imgW)/2, oh/2-float64(imgH)/2)
	m = m.Then(ScaleAbout(vt.Scale, vt.Scale, ow/2, oh/2))
	m = m.Then(Translate2D(vt.TranslateX*ow/2, -vt.TranslateY*oh/2))
	return m
}

// Flatten renders src through the filter and view transform onto a black
// canvas sized by ExportSize.
func Flatten(src image.Image, vt ViewTransform, mode FilterMode) *image.NRGBA {
	b := src.Bounds()
	outW, outH := ExportSize(b.Dx(), b.Dy(), vt)

	dst := imaging.New(outW, outH, color.NRGBA{A: 255})
	filtered := ApplyFilter(src, mode)

	s2d := ExportMatrix(b.Dx(), b.Dy(), outW, outH, vt)
	draw.CatmullRom.Transform(dst, s2d.Aff3(), filtered, filtered.Bounds(), draw.Over, nil)
	return dst
}
