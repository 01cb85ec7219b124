package editor

// Projection is an orthographic extent in normalized device units.
type Projection struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Top    float64 `json:"top"`
}

// IdentityProjection is the unit extent, used until an image and viewport
// are both known.
func IdentityProjection() Projection {
	return Projection{Left: -1, Right: 1, Bottom: -1, Top: 1}
}

// ComputeProjection letterboxes or pillarboxes content of targetRatio into a
// vw x vh viewport. targetRatio <= 0 falls back to imgRatio. It returns false
// when the viewport or both ratios are unusable.
func ComputeProjection(vw, vh int, imgRatio, targetRatio float64) (Projection, bool) {
	if vw <= 0 || vh <= 0 {
		return IdentityProjection(), false
	}

	contentRatio := targetRatio
	if contentRatio <= 0 {
		contentRatio = imgRatio
	}
	if contentRatio <= 0 {
		return IdentityProjection(), false
	}

	screenRatio := float64(vw) / float64(vh)
	if screenRatio > contentRatio {
		// Wider screen: pad left and right.
		ratio := screenRatio / contentRatio
		return Projection{Left: -ratio, Right: ratio, Bottom: -1, Top: 1}, true
	}
	ratio := contentRatio / screenRatio
	return Projection{Left: -1, Right: 1, Bottom: -ratio, Top: ratio}, true
}

// Matrix returns the orthographic matrix for the extent with near -1, far 1.
func (p Projection) Matrix() Mat4 {
	const near, far = -1.0, 1.0

	m := Mat4{}
	m[0] = 2 / (p.Right - p.Left)
	m[5] = 2 / (p.Top - p.Bottom)
	m[10] = -2 / (far - near)
	m[12] = -(p.Right + p.Left) / (p.Right - p.Left)
	m[13] = -(p.Top + p.Bottom) / (p.Top - p.Bottom)
	m[14] = -(far + near) / (far - near)
	m[15] = 1
	return m
}
