package editor

import (
	"context"
	"sync"
)

// RenderUpdate is everything the renderer needs for one frame. It is posted
// whole so the render side never observes a half-applied change.
type RenderUpdate struct {
	Seq          uint64     `json:"seq"`
	View         Mat4       `json:"view"`
	Projection   Projection `json:"projection"`
	MVP          Mat4       `json:"mvp"`
	Filter       FilterMode `json:"filter"`
	ImageVersion uint64     `json:"imageVersion"`
	ImageWidth   int        `json:"imageWidth"`
	ImageHeight  int        `json:"imageHeight"`
}

// Mailbox is a single-slot, latest-wins hand-off from the interactive side
// to the render side. Post never blocks.
type Mailbox struct {
	mu sync.Mutex
	ch chan RenderUpdate
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan RenderUpdate, 1)}
}

// Post replaces any pending update with u.
func (m *Mailbox) Post(u RenderUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.ch:
	default:
	}
	m.ch <- u
}

// Receive blocks until an update is pending or ctx is done.
func (m *Mailbox) Receive(ctx context.Context) (RenderUpdate, error) {
	select {
	case u := <-m.ch:
		return u, nil
	case <-ctx.Done():
		return RenderUpdate{}, ctx.Err()
	}
}

// TryReceive returns the pending update, if any, without blocking.
func (m *Mailbox) TryReceive() (RenderUpdate, bool) {
	select {
	case u := <-m.ch:
		return u, true
	default:
		return RenderUpdate{}, false
	}
}
