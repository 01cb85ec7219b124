package editor

const (
	overlayDim         = "rgba(0,0,0,0.667)"
	overlayBorder      = "#ffffff"
	overlayBorderWidth = 4.0
	overlayHandle      = "#ffffff"
	overlayHandleSize  = 20.0
)

// DrawCommand is a single screen-space drawing operation for a 2D canvas
// front end. Commands are in painter's order.
type DrawCommand struct {
	Op          string     `json:"op"` // "image", "fillRect", "strokeRect", "circle"
	Rect        Rect       `json:"rect"`
	Radius      float64    `json:"radius,omitempty"`
	Fill        string     `json:"fill,omitempty"`
	Stroke      string     `json:"stroke,omitempty"`
	StrokeWidth float64    `json:"strokeWidth,omitempty"`
	Filter      FilterMode `json:"filter,omitempty"`
	Version     uint64     `json:"version,omitempty"`
}

// DrawCommands compiles the current frame: the image at its on-screen
// bounds, then the crop overlay when cropping.
func (e *Editor) DrawCommands() []DrawCommand {
	if e.img == nil || e.viewport.IsEmpty() {
		return nil
	}

	cmds := []DrawCommand{{
		Op:      "image",
		Rect:    e.ImageBounds(),
		Filter:  e.filter,
		Version: e.imageVersion,
	}}
	if e.cropping {
		cmds = append(cmds, overlayCommands(e.overlay.CropRect(), e.viewport)...)
	}
	return cmds
}

func overlayCommands(c Rect, vp Size) []DrawCommand {
	dim := func(r Rect) DrawCommand {
		return DrawCommand{Op: "fillRect", Rect: r, Fill: overlayDim}
	}
	handle := func(x, y float64) DrawCommand {
		return DrawCommand{Op: "circle", Rect: Rect{Left: x, Top: y, Right: x, Bottom: y}, Radius: overlayHandleSize, Fill: overlayHandle}
	}

	return []DrawCommand{
		dim(Rect{Left: 0, Top: 0, Right: vp.Width, Bottom: c.Top}),
		dim(Rect{Left: 0, Top: c.Bottom, Right: vp.Width, Bottom: vp.Height}),
		dim(Rect{Left: 0, Top: c.Top, Right: c.Left, Bottom: c.Bottom}),
		dim(Rect{Left: c.Right, Top: c.Top, Right: vp.Width, Bottom: c.Bottom}),
		{Op: "strokeRect", Rect: c, Stroke: overlayBorder, StrokeWidth: overlayBorderWidth},
		handle(c.Left, c.Top),
		handle(c.Right, c.Top),
		handle(c.Right, c.Bottom),
		handle(c.Left, c.Bottom),
	}
}
