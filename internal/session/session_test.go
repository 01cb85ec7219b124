package session

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pixedit/pixedit/internal/editor"
	"github.com/pixedit/pixedit/internal/export"
)

type fakePeer struct {
	id string
	ch chan *Message
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, ch: make(chan *Message, 1024)}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg *Message) {
	select {
	case p.ch <- msg:
	default:
	}
}

func (p *fakePeer) waitFor(t *testing.T, typ string) *Message {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-p.ch:
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", typ)
			return nil
		}
	}
}

type fakeLoader struct {
	mu     sync.Mutex
	images map[string]image.Image
	gates  map[string]chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{images: map[string]image.Image{}, gates: map[string]chan struct{}{}}
}

func (l *fakeLoader) add(id string, w, h int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.images[id] = image.NewNRGBA(image.Rect(0, 0, w, h))
}

func (l *fakeLoader) gate(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan struct{})
	l.gates[id] = ch
	return ch
}

func (l *fakeLoader) Load(ctx context.Context, id string) (image.Image, error) {
	l.mu.Lock()
	img, ok := l.images[id]
	gate := l.gates[id]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.New("no such asset")
	}
	return img, nil
}

type fakeSaver struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (s *fakeSaver) Save(_ context.Context, sessionID, name string, img image.Image) (*export.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.names = append(s.names, name)
	b := img.Bounds()
	return &export.Result{ID: "exp_1", Filename: name + ".jpg", URL: "/exports/" + name + ".jpg", Width: b.Dx(), Height: b.Dy()}, nil
}

func newTestSession(t *testing.T, loader Loader, saver Saver) (*Session, *fakePeer) {
	t.Helper()
	s := newSession(context.Background(), "sess_test", loader, saver)
	s.start()
	t.Cleanup(s.stop)

	p := newFakePeer("c1")
	s.join(p)
	p.waitFor(t, TypeWelcome)
	return s, p
}

func submit(t *testing.T, s *Session, p Peer, typ string, payload any) {
	t.Helper()
	msg := &Message{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		msg.Payload = data
	}
	if !s.Submit(p, msg) {
		t.Fatalf("submit %s: session closed", typ)
	}
}

func loadImage(t *testing.T, s *Session, p *fakePeer, id string) {
	t.Helper()
	submit(t, s, p, TypeImageLoad, ImageLoadPayload{AssetID: id})
	p.waitFor(t, TypeImageLoaded)
}

func TestSessionLoadCropUndo(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_tall", 1000, 2000)
	s, p := newTestSession(t, loader, &fakeSaver{})

	submit(t, s, p, TypeViewport, ViewportPayload{Width: 1000, Height: 1000})
	loadImage(t, s, p, "asset_tall")

	submit(t, s, p, TypeCropEnter, RatioPayload{Ratio: 0})
	submit(t, s, p, TypeCropCommit, nil)

	msg := p.waitFor(t, TypeCropDone)
	var done CropDonePayload
	if err := json.Unmarshal(msg.Payload, &done); err != nil {
		t.Fatal(err)
	}
	if want := (editor.PixelRect{X: 100, Y: 200, W: 800, H: 1600}); done.Pixels != want {
		t.Errorf("pixels = %+v, want %+v", done.Pixels, want)
	}

	submit(t, s, p, TypeUndo, nil)
	s.do(func(ed *editor.Editor) {
		if w, h := ed.ImageSize(); w != 1000 || h != 2000 {
			t.Errorf("after undo image = %dx%d", w, h)
		}
		if !ed.History().CanRedo() {
			t.Error("redo should be available")
		}
	})
}

func TestSessionBroadcastsRender(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_sq", 100, 100)
	s, p := newTestSession(t, loader, &fakeSaver{})

	submit(t, s, p, TypeViewport, ViewportPayload{Width: 1000, Height: 500})
	loadImage(t, s, p, "asset_sq")

	deadline := time.After(2 * time.Second)
	for {
		msg := p.waitFor(t, TypeRender)
		var u editor.RenderUpdate
		if err := json.Unmarshal(msg.Payload, &u); err != nil {
			t.Fatal(err)
		}
		if u.ImageWidth == 100 {
			if u.Projection.Left != -2 {
				t.Errorf("projection = %+v", u.Projection)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no render update for the loaded image")
		default:
		}
	}
}

func TestSessionStaleLoadDiscarded(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_slow", 10, 10)
	loader.add("asset_fast", 30, 20)
	release := loader.gate("asset_slow")
	s, p := newTestSession(t, loader, &fakeSaver{})

	submit(t, s, p, TypeImageLoad, ImageLoadPayload{AssetID: "asset_slow"})
	loadImage(t, s, p, "asset_fast")

	close(release)
	s.async.Wait()

	s.do(func(ed *editor.Editor) {
		if w, h := ed.ImageSize(); w != 30 || h != 20 {
			t.Errorf("image = %dx%d, want the newer 30x20", w, h)
		}
	})
}

func TestSessionLoadError(t *testing.T) {
	s, p := newTestSession(t, newFakeLoader(), &fakeSaver{})
	submit(t, s, p, TypeImageLoad, ImageLoadPayload{AssetID: "asset_missing"})
	p.waitFor(t, TypeError)
}

func TestSessionDegenerateCrop(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_tiny", 2, 2)
	s, p := newTestSession(t, loader, &fakeSaver{})

	submit(t, s, p, TypeViewport, ViewportPayload{Width: 1000, Height: 1000})
	loadImage(t, s, p, "asset_tiny")
	submit(t, s, p, TypeCropEnter, RatioPayload{})
	submit(t, s, p, TypePointerDown, PointerPayload{X: 900, Y: 900})
	submit(t, s, p, TypePointerMove, PointerPayload{X: 200, Y: 200})
	submit(t, s, p, TypePointerUp, nil)
	submit(t, s, p, TypeCropCommit, nil)

	p.waitFor(t, TypeCropFailed)
	s.do(func(ed *editor.Editor) {
		if w, h := ed.ImageSize(); w != 2 || h != 2 {
			t.Errorf("image = %dx%d, want 2x2", w, h)
		}
		if ed.History().CanUndo() {
			t.Error("failed crop recorded history")
		}
	})
}

func TestSessionExport(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_a", 40, 20)
	saver := &fakeSaver{}
	s, p := newTestSession(t, loader, saver)

	loadImage(t, s, p, "asset_a")
	submit(t, s, p, TypeFilter, map[string]string{"mode": "grayscale"})
	submit(t, s, p, TypeAspect, RatioPayload{Ratio: 1})
	submit(t, s, p, TypeExport, ExportPayload{Name: "out"})

	msg := p.waitFor(t, TypeExportDone)
	var done ExportDonePayload
	if err := json.Unmarshal(msg.Payload, &done); err != nil {
		t.Fatal(err)
	}
	if done.Width != 20 || done.Height != 20 {
		t.Errorf("export size = %dx%d, want 20x20", done.Width, done.Height)
	}
	s.do(func(ed *editor.Editor) {
		if ed.Modified() {
			t.Error("successful export must clear modified")
		}
		if ed.Filter() != editor.FilterGrayscale {
			t.Errorf("filter = %v", ed.Filter())
		}
	})
}

func TestSessionExportFailureKeepsModified(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_a", 40, 20)
	s, p := newTestSession(t, loader, &fakeSaver{err: errors.New("disk full")})

	loadImage(t, s, p, "asset_a")
	submit(t, s, p, TypeZoomBegin, nil)
	submit(t, s, p, TypeZoom, ZoomPayload{Factor: 2})
	submit(t, s, p, TypeExport, nil)

	p.waitFor(t, TypeExportFailed)
	s.do(func(ed *editor.Editor) {
		if !ed.Modified() {
			t.Error("failed export must leave modified set")
		}
	})
}

func TestSessionExportWithoutImage(t *testing.T) {
	s, p := newTestSession(t, newFakeLoader(), &fakeSaver{})
	submit(t, s, p, TypeExport, nil)
	p.waitFor(t, TypeExportFailed)
}

func TestSessionRejectsBadMessages(t *testing.T) {
	s, p := newTestSession(t, newFakeLoader(), &fakeSaver{})

	tests := []struct {
		name    string
		typ     string
		payload any
	}{
		{"unknown type", "paint", nil},
		{"missing payload", TypeZoom, nil},
		{"bad filter", TypeFilter, map[string]string{"mode": "sepia"}},
		{"bad viewport", TypeViewport, ViewportPayload{}},
		{"crop without image", TypeCropEnter, RatioPayload{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submit(t, s, p, tt.typ, tt.payload)
			p.waitFor(t, TypeError)
		})
	}
}

func TestSessionPeersSeeEachOther(t *testing.T) {
	s, p1 := newTestSession(t, newFakeLoader(), &fakeSaver{})

	p2 := newFakePeer("c2")
	s.join(p2)
	msg := p2.waitFor(t, TypeWelcome)
	var w WelcomePayload
	json.Unmarshal(msg.Payload, &w)
	if len(w.Peers) != 2 {
		t.Errorf("peers = %v", w.Peers)
	}
	p1.waitFor(t, TypePeerJoin)

	if n := s.leave(p2); n != 1 {
		t.Errorf("remaining peers = %d", n)
	}
	p1.waitFor(t, TypePeerLeave)
}

func TestSessionStopDropsInflightLoad(t *testing.T) {
	loader := newFakeLoader()
	loader.add("asset_slow", 10, 10)
	loader.gate("asset_slow")

	s := newSession(context.Background(), "sess_stop", loader, &fakeSaver{})
	s.start()
	p := newFakePeer("c1")
	s.join(p)
	submit(t, s, p, TypeImageLoad, ImageLoadPayload{AssetID: "asset_slow"})
	s.do(func(*editor.Editor) {})

	done := make(chan struct{})
	go func() {
		s.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	if s.Submit(p, &Message{Type: TypeUndo}) {
		t.Error("closed session accepted a message")
	}
}
