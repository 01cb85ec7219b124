package editor

// ImageBounds returns the screen-space rectangle the image occupies for the
// given viewport and view transform. The overlay and the crop commit both
// go through this function so the two never disagree.
func ImageBounds(viewport Size, vt ViewTransform, imgRatio float64) Rect {
	if viewport.IsEmpty() || imgRatio <= 0 {
		return Rect{}
	}

	viewRatio := viewport.Width / viewport.Height

	var drawW, drawH float64
	if imgRatio > viewRatio {
		drawW = viewport.Width
		drawH = viewport.Width / imgRatio
	} else {
		drawH = viewport.Height
		drawW = viewport.Height * imgRatio
	}

	drawW *= vt.Scale
	drawH *= vt.Scale

	// Translation is bottom-up normalized; screen space is top-down.
	cx := viewport.Width/2 + vt.TranslateX*viewport.Width/2
	cy := viewport.Height/2 - vt.TranslateY*viewport.Height/2

	return RectFromCenter(cx, cy, drawW, drawH)
}
