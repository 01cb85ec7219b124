package editor

import "math"

const (
	MinScale = 0.5
	MaxScale = 5.0

	// PanDivisor converts a screen-pixel drag into normalized translation.
	PanDivisor = 500.0
)

// ViewTransform is the on-screen placement of the image: a uniform scale
// about the viewport center, a translation in normalized (bottom-up) units
// and the aspect ratio the renderer letterboxes to.
type ViewTransform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`

	// TargetAspectRatio <= 0 means the source image's own ratio.
	TargetAspectRatio float64 `json:"targetAspectRatio"`
}

// IdentityView returns the untransformed view.
func IdentityView() ViewTransform {
	return ViewTransform{Scale: 1, TargetAspectRatio: -1}
}

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return MinScale
	}
	return min(max(s, MinScale), MaxScale)
}

// ApplyZoom multiplies the scale by factor and clamps the result.
func (v *ViewTransform) ApplyZoom(factor float64) {
	v.Scale = ClampScale(v.Scale * factor)
}

// ApplyPan adds normalized deltas to the translation. Panning past the
// image edges is allowed.
func (v *ViewTransform) ApplyPan(dxNorm, dyNorm float64) {
	v.TranslateX += dxNorm
	v.TranslateY += dyNorm
}

// ResetPlacement restores unit scale and zero translation, keeping the
// target aspect ratio.
func (v *ViewTransform) ResetPlacement() {
	v.Scale = 1
	v.TranslateX = 0
	v.TranslateY = 0
}

// ContentRatio resolves the ratio the renderer should frame for an image of
// ratio imgRatio.
func (v ViewTransform) ContentRatio(imgRatio float64) float64 {
	if v.TargetAspectRatio > 0 {
		return v.TargetAspectRatio
	}
	return imgRatio
}

// ViewMatrix returns T(tx, ty, 0) * S(s, s, 1) in column-major order.
func (v ViewTransform) ViewMatrix() Mat4 {
	m := Identity4()
	m[0] = v.Scale
	m[5] = v.Scale
	m[12] = v.TranslateX
	m[13] = v.TranslateY
	return m
}
