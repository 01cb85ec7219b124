package session

import (
	"context"
	"log/slog"
	"sync"
)

type Hub struct {
	mu         sync.RWMutex
	sessions   map[string]*Session // sessionID -> session
	loader     Loader
	saver      Saver
	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(loader Loader, saver Saver) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:   make(map[string]*Session),
		loader:     loader,
		saver:      saver,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.ctx.Done():
			h.stopAll()
			return
		}
	}
}

// Stop ends every session and waits for Run to return.
func (h *Hub) Stop() {
	h.cancel()
	<-h.done
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Session returns the live session with id, if any.
func (h *Hub) Session(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	sess, ok := h.sessions[client.SessionID]
	if !ok {
		sess = newSession(h.ctx, client.SessionID, h.loader, h.saver)
		sess.start()
		h.sessions[client.SessionID] = sess
	}
	h.mu.Unlock()

	client.session = sess
	close(client.joined)
	n := sess.join(client)

	slog.Info("client joined", "client", client.ClientID, "session", client.SessionID, "clients", n)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	sess, ok := h.sessions[client.SessionID]
	if !ok {
		h.mu.Unlock()
		return
	}

	n := sess.leave(client)
	client.closeSend()

	if n == 0 {
		delete(h.sessions, client.SessionID)
	}
	h.mu.Unlock()

	if n == 0 {
		// Drop in-flight loads and saves for a session nobody is editing.
		sess.stop()
		slog.Info("session closed", "session", client.SessionID)
	}

	slog.Info("client left", "client", client.ClientID, "session", client.SessionID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	if sender.session == nil {
		slog.Warn("message before join", "client", sender.ClientID)
		return
	}
	if !sender.session.Submit(sender, msg) {
		slog.Debug("session closed, dropping message", "type", msg.Type, "client", sender.ClientID)
	}
}

func (h *Hub) stopAll() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		sessions = append(sessions, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}
