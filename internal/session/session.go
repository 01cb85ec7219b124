package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"

	"github.com/pixedit/pixedit/internal/editor"
	"github.com/pixedit/pixedit/internal/export"
)

const eventQueueSize = 256

// Loader fetches and decodes a source image.
type Loader interface {
	Load(ctx context.Context, assetID string) (image.Image, error)
}

// Saver persists a flattened export.
type Saver interface {
	Save(ctx context.Context, sessionID, name string, img image.Image) (*export.Result, error)
}

// Peer receives outbound messages.
type Peer interface {
	ID() string
	Send(msg *Message)
}

// Session is one editing session. Its Editor is owned by a single goroutine
// (run); everything else reaches it by posting closures onto events.
// A second goroutine forwards render updates to the peers.
type Session struct {
	id     string
	editor *editor.Editor
	loader Loader
	saver  Saver

	events chan func()
	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup
	async  sync.WaitGroup

	mu    sync.RWMutex
	peers map[string]Peer

	// Owned by run.
	saving bool
}

func newSession(parent context.Context, id string, loader Loader, saver Saver) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:     id,
		editor: editor.New(),
		loader: loader,
		saver:  saver,
		events: make(chan func(), eventQueueSize),
		ctx:    ctx,
		cancel: cancel,
		peers:  make(map[string]Peer),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) start() {
	mailbox := s.editor.Mailbox()
	s.loops.Add(2)
	go s.run()
	go s.renderLoop(mailbox)
}

// stop cancels outstanding work and waits for every goroutine to exit.
func (s *Session) stop() {
	s.cancel()
	// The loop is the only caller of async.Add, so it must exit first.
	s.loops.Wait()
	s.async.Wait()
}

func (s *Session) run() {
	defer s.loops.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.editor.Invalidate()
			return
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) renderLoop(mailbox *editor.Mailbox) {
	defer s.loops.Done()
	for {
		u, err := mailbox.Receive(s.ctx)
		if err != nil {
			return
		}
		msg := newMessage(TypeRender, s.id, u)
		msg.Seq = int64(u.Seq)
		s.broadcast(msg, "")
	}
}

// post queues fn for the interactive loop. It gives up when the session is
// closing.
func (s *Session) post(fn func()) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// do runs fn on the interactive loop and waits for it.
func (s *Session) do(fn func(ed *editor.Editor)) bool {
	done := make(chan struct{})
	if !s.post(func() {
		defer close(done)
		fn(s.editor)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Submit hands an inbound message to the interactive loop.
func (s *Session) Submit(from Peer, msg *Message) bool {
	return s.post(func() { s.handle(from, msg) })
}

func (s *Session) join(p Peer) int {
	s.mu.Lock()
	s.peers[p.ID()] = p
	n := len(s.peers)
	s.mu.Unlock()

	s.post(func() {
		p.Send(newMessage(TypeWelcome, s.id, WelcomePayload{ClientID: p.ID(), Peers: s.peerIDs()}))
		p.Send(s.stateMessage(0))
		if s.editor.HasImage() {
			p.Send(newMessage(TypeRender, s.id, s.editor.RenderUpdate()))
		}
	})
	s.broadcast(newMessage(TypePeerJoin, s.id, PeerPayload{ClientID: p.ID()}), p.ID())
	return n
}

func (s *Session) leave(p Peer) int {
	s.mu.Lock()
	delete(s.peers, p.ID())
	n := len(s.peers)
	s.mu.Unlock()

	s.broadcast(newMessage(TypePeerLeave, s.id, PeerPayload{ClientID: p.ID()}), "")
	return n
}

func (s *Session) peerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) broadcast(msg *Message, excludeID string) {
	s.mu.RLock()
	peers := make([]Peer, 0, len(s.peers))
	for id, p := range s.peers {
		if id != excludeID {
			peers = append(peers, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range peers {
		p.Send(msg)
	}
}

func (s *Session) stateMessage(seq int64) *Message {
	msg := newMessage(TypeState, s.id, s.editor.State())
	msg.Seq = seq
	return msg
}

func reply(from Peer, msg *Message) {
	if from != nil {
		from.Send(msg)
	}
}

// handle runs on the interactive loop.
func (s *Session) handle(from Peer, msg *Message) {
	ed := s.editor
	if err := s.apply(ed, from, msg); err != nil {
		slog.Warn("session command failed", "session", s.id, "type", msg.Type, "error", err)
		out := newMessage(TypeError, s.id, FailurePayload{Reason: err.Error()})
		out.Seq = msg.Seq
		reply(from, out)
		return
	}
	s.broadcast(s.stateMessage(msg.Seq), "")
}

func (s *Session) apply(ed *editor.Editor, from Peer, msg *Message) error {
	switch msg.Type {
	case TypeImageLoad:
		var p ImageLoadPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.AssetID == "" {
			return errors.New("image.load: missing assetId")
		}
		s.startLoad(ed.BeginLoad(), p.AssetID, from)

	case TypeViewport:
		var p ViewportPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("viewport: invalid size %dx%d", p.Width, p.Height)
		}
		ed.SetViewport(p.Width, p.Height)

	case TypePointerDown:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		ed.PointerDown(p.X, p.Y)

	case TypePointerMove:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		ed.PointerMove(p.X, p.Y)

	case TypePointerUp:
		ed.PointerUp()

	case TypeZoomBegin:
		ed.BeginZoom()

	case TypeZoom:
		var p ZoomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		ed.Zoom(p.Factor)

	case TypePan:
		var p PanPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		ed.Pan(p.DX, p.DY)

	case TypeFilter:
		var p FilterPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return ed.SetFilter(p.Mode)

	case TypeAspect:
		var p RatioPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if !ed.HasImage() {
			return editor.ErrNoImage
		}
		ed.SetTargetAspectRatio(p.Ratio)

	case TypeCropEnter:
		var p RatioPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return ed.EnterCrop(p.Ratio)

	case TypeCropExit:
		ed.ExitCrop()

	case TypeCropCommit:
		px, err := ed.CommitCrop()
		if err != nil {
			out := newMessage(TypeCropFailed, s.id, FailurePayload{Reason: err.Error()})
			out.Seq = msg.Seq
			reply(from, out)
			return nil
		}
		s.broadcast(newMessage(TypeCropDone, s.id, CropDonePayload{Pixels: px}), "")

	case TypeUndo:
		ed.Undo()

	case TypeRedo:
		ed.Redo()

	case TypeExport:
		var p ExportPayload
		if len(msg.Payload) > 0 {
			if err := decode(msg, &p); err != nil {
				return err
			}
		}
		s.startExport(ed, p.Name, from, msg.Seq)

	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

// startLoad decodes off the loop and posts the result back. A result whose
// token has been superseded is dropped.
func (s *Session) startLoad(token editor.LoadToken, assetID string, from Peer) {
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		img, err := s.loader.Load(s.ctx, assetID)

		s.post(func() {
			if !s.editor.Valid(token) {
				slog.Debug("discarding stale image load", "session", s.id, "asset", assetID)
				return
			}
			if err != nil {
				slog.Warn("image load failed", "session", s.id, "asset", assetID, "error", err)
				reply(from, newMessage(TypeError, s.id, FailurePayload{Reason: "load image: " + err.Error()}))
				return
			}
			s.editor.AcceptImage(token, img)
			w, h := s.editor.ImageSize()
			slog.Info("image loaded", "session", s.id, "asset", assetID, "width", w, "height", h)
			s.broadcast(newMessage(TypeImageLoaded, s.id, ImageLoadedPayload{AssetID: assetID, Width: w, Height: h}), "")
			s.broadcast(s.stateMessage(0), "")
		})
	}()
}

// startExport flattens on the loop, then encodes and stores off it. Only
// one export runs at a time per session.
func (s *Session) startExport(ed *editor.Editor, name string, from Peer, seq int64) {
	fail := func(reason string) {
		out := newMessage(TypeExportFailed, s.id, FailurePayload{Reason: reason})
		out.Seq = seq
		reply(from, out)
	}

	if s.saving {
		fail("export already in progress")
		return
	}
	img, err := ed.Export()
	if err != nil {
		fail(err.Error())
		return
	}

	s.saving = true
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		res, err := s.saver.Save(s.ctx, s.id, name, img)

		s.post(func() {
			s.saving = false
			if err != nil {
				slog.Warn("export failed", "session", s.id, "error", err)
				fail(err.Error())
				return
			}
			s.editor.MarkSaved()
			out := newMessage(TypeExportDone, s.id, ExportDonePayload{
				ID:       res.ID,
				URL:      res.URL,
				Filename: res.Filename,
				Width:    res.Width,
				Height:   res.Height,
			})
			out.Seq = seq
			s.broadcast(out, "")
			s.broadcast(s.stateMessage(0), "")
		})
	}()
}
