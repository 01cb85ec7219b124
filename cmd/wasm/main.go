//go:build js && wasm

package main

import (
	"bytes"
	"encoding/json"
	"syscall/js"

	"github.com/disintegration/imaging"

	"github.com/pixedit/pixedit/internal/asset"
	"github.com/pixedit/pixedit/internal/editor"
)

const exportQuality = 92

var ed *editor.Editor

func main() {
	ed = editor.New()

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	api.Set("loadImage", js.FuncOf(loadImage))
	api.Set("setViewport", js.FuncOf(setViewport))
	api.Set("pointerDown", js.FuncOf(pointerDown))
	api.Set("pointerMove", js.FuncOf(pointerMove))
	api.Set("pointerUp", js.FuncOf(pointerUp))
	api.Set("beginZoom", js.FuncOf(beginZoom))
	api.Set("zoom", js.FuncOf(zoom))
	api.Set("setFilter", js.FuncOf(setFilter))
	api.Set("setAspectRatio", js.FuncOf(setAspectRatio))
	api.Set("enterCrop", js.FuncOf(enterCrop))
	api.Set("exitCrop", js.FuncOf(exitCrop))
	api.Set("commitCrop", js.FuncOf(commitCrop))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("exportJPEG", js.FuncOf(exportJPEG))

	// --- Queries (frontend ← editor) ---
	api.Set("render", js.FuncOf(render))
	api.Set("renderUpdate", js.FuncOf(renderUpdate))
	api.Set("hitTest", js.FuncOf(hitTest))
	api.Set("getState", js.FuncOf(getState))
	api.Set("getImage", js.FuncOf(getImage))

	js.Global().Set("pixeditEditor", api)
	js.Global().Set("pixeditWasmReady", js.ValueOf(true))

	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func okResult() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

// loadImage takes the encoded file as a Uint8Array.
func loadImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing image bytes"})
	}
	buf := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(buf, args[0])

	img, format, err := asset.Decode(bytes.NewReader(buf))
	if err != nil {
		return errorResult(err)
	}
	ed.SetImage(img)
	w, h := ed.ImageSize()
	return js.ValueOf(map[string]interface{}{"ok": true, "format": format, "width": w, "height": h})
}

func setViewport(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	ed.SetViewport(args[0].Int(), args[1].Int())
	return nil
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.PointerDown(args[0].Float(), args[1].Float()))
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.PointerMove(args[0].Float(), args[1].Float()))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	ed.PointerUp()
	return nil
}

func beginZoom(this js.Value, args []js.Value) interface{} {
	ed.BeginZoom()
	return nil
}

func zoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(ed.Zoom(args[0].Float()))
}

func setFilter(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing filter"})
	}
	mode, err := editor.ParseFilterMode(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	if err := ed.SetFilter(mode); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func setAspectRatio(this js.Value, args []js.Value) interface{} {
	ratio := 0.0
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		ratio = args[0].Float()
	}
	ed.SetTargetAspectRatio(ratio)
	return nil
}

func enterCrop(this js.Value, args []js.Value) interface{} {
	ratio := 0.0
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		ratio = args[0].Float()
	}
	if err := ed.EnterCrop(ratio); err != nil {
		return errorResult(err)
	}
	return okResult()
}

func exitCrop(this js.Value, args []js.Value) interface{} {
	ed.ExitCrop()
	return nil
}

func commitCrop(this js.Value, args []js.Value) interface{} {
	px, err := ed.CommitCrop()
	if err != nil {
		return errorResult(err)
	}
	return toJSON(px)
}

func undo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.Redo())
}

// exportJPEG returns the flattened image as JPEG bytes in a Uint8Array.
func exportJPEG(this js.Value, args []js.Value) interface{} {
	img, err := ed.Export()
	if err != nil {
		return errorResult(err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(exportQuality)); err != nil {
		return errorResult(err)
	}
	ed.MarkSaved()

	out := js.Global().Get("Uint8Array").New(buf.Len())
	js.CopyBytesToJS(out, buf.Bytes())
	return out
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return toJSON(ed.DrawCommands())
}

// renderUpdate returns the newest pending update, or null when nothing
// changed since the last call. mvp is ready for uniformMatrix4fv.
func renderUpdate(this js.Value, args []js.Value) interface{} {
	u, ok := ed.Mailbox().TryReceive()
	if !ok {
		return js.Null()
	}
	mvp := js.Global().Get("Float32Array").New(16)
	for i, v := range u.MVP.Float32() {
		mvp.SetIndex(i, v)
	}
	return js.ValueOf(map[string]interface{}{
		"update": toJSON(u),
		"mvp":    mvp,
	})
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(ed.HitTest(args[0].Float(), args[1].Float()).String())
}

func getState(this js.Value, args []js.Value) interface{} {
	return toJSON(ed.State())
}

// getImage returns the unfiltered source pixels as RGBA bytes.
func getImage(this js.Value, args []js.Value) interface{} {
	img := ed.Image()
	if img == nil {
		return js.Null()
	}
	pix := js.Global().Get("Uint8ClampedArray").New(len(img.Pix))
	js.CopyBytesToJS(pix, img.Pix)
	return js.ValueOf(map[string]interface{}{
		"width":  img.Rect.Dx(),
		"height": img.Rect.Dy(),
		"pixels": pix,
	})
}
