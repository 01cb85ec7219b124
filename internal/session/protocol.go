package session

import (
	"encoding/json"
	"log/slog"

	"github.com/pixedit/pixedit/internal/editor"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	// Client -> server
	TypeImageLoad   = "image.load"
	TypeViewport    = "viewport"
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"
	TypeZoomBegin   = "zoom.begin"
	TypeZoom        = "zoom"
	TypePan         = "pan"
	TypeFilter      = "filter"
	TypeAspect      = "aspect"
	TypeCropEnter   = "crop.enter"
	TypeCropExit    = "crop.exit"
	TypeCropCommit  = "crop.commit"
	TypeUndo        = "undo"
	TypeRedo        = "redo"
	TypeExport      = "export"

	// Server -> client
	TypeWelcome      = "welcome"
	TypeState        = "state"
	TypeRender       = "render"
	TypeImageLoaded  = "image.loaded"
	TypeCropDone     = "crop.done"
	TypeCropFailed   = "crop.failed"
	TypeExportDone   = "export.done"
	TypeExportFailed = "export.failed"
	TypePeerJoin     = "peer.join"
	TypePeerLeave    = "peer.leave"
	TypeError        = "error"
)

type ImageLoadPayload struct {
	AssetID string `json:"assetId"`
}

type ViewportPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ZoomPayload struct {
	Factor float64 `json:"factor"`
}

type PanPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type FilterPayload struct {
	Mode editor.FilterMode `json:"mode"`
}

// RatioPayload carries an aspect ratio; 0 or less means free/source.
type RatioPayload struct {
	Ratio float64 `json:"ratio"`
}

type ExportPayload struct {
	Name string `json:"name"`
}

type WelcomePayload struct {
	ClientID string   `json:"clientId"`
	Peers    []string `json:"peers"`
}

type PeerPayload struct {
	ClientID string `json:"clientId"`
}

type ImageLoadedPayload struct {
	AssetID string `json:"assetId"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type CropDonePayload struct {
	Pixels editor.PixelRect `json:"pixels"`
}

type ExportDonePayload struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type FailurePayload struct {
	Reason string `json:"reason"`
}

func newMessage(typ, sessionID string, payload any) *Message {
	msg := &Message{Type: typ, SessionID: sessionID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal payload", "type", typ, "error", err)
			return msg
		}
		msg.Payload = data
	}
	return msg
}
