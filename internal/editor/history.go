package editor

import "image"

// MaxHistoryDepth bounds the undo stack.
const MaxHistoryDepth = 6

// Option is an explicit optional value. Take moves the value out, leaving
// the option empty, so a payload has exactly one owner at a time.
type Option[T any] struct {
	value T
	ok    bool
}

// Some wraps v.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, ok: true}
}

// None returns an empty option.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome reports whether a value is present.
func (o Option[T]) IsSome() bool { return o.ok }

// Take returns the value and empties the option.
func (o *Option[T]) Take() (T, bool) {
	v, ok := o.value, o.ok
	var zero T
	o.value, o.ok = zero, false
	return v, ok
}

// Snapshot is the editor state captured before a mutating action. Pixels is
// present only when the action replaces the image.
type Snapshot struct {
	View   ViewTransform
	Filter FilterMode
	Pixels Option[*image.NRGBA]
}

// CaptureFunc builds a snapshot of the current editor state, carrying pixels
// only when withPixels is set.
type CaptureFunc func(withPixels bool) Snapshot

// History holds bounded linear undo/redo stacks.
type History struct {
	undo []Snapshot
	redo []Snapshot
}

// NewHistory returns empty history.
func NewHistory() *History {
	return &History{}
}

// Record pushes s as the state before a new action, evicting the oldest
// entry past MaxHistoryDepth, and drops all redo entries.
func (h *History) Record(s Snapshot) {
	h.undo = pushBounded(h.undo, s)
	clear(h.redo)
	h.redo = h.redo[:0]
}

// Undo pops the most recent undo entry. The current state is captured onto
// the redo stack first, with pixels only if the popped entry carries pixels.
func (h *History) Undo(capture CaptureFunc) (Snapshot, bool) {
	return step(&h.undo, &h.redo, capture)
}

// Redo is the mirror of Undo.
func (h *History) Redo(capture CaptureFunc) (Snapshot, bool) {
	return step(&h.redo, &h.undo, capture)
}

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Depths returns the undo and redo stack sizes.
func (h *History) Depths() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

// Clear drops all entries.
func (h *History) Clear() {
	clear(h.undo)
	clear(h.redo)
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

func step(from, to *[]Snapshot, capture CaptureFunc) (Snapshot, bool) {
	n := len(*from)
	if n == 0 {
		return Snapshot{}, false
	}

	next := (*from)[n-1]
	*to = pushBounded(*to, capture(next.Pixels.IsSome()))

	(*from)[n-1] = Snapshot{}
	*from = (*from)[:n-1]
	return next, true
}

func pushBounded(stack []Snapshot, s Snapshot) []Snapshot {
	if len(stack) >= MaxHistoryDepth {
		copy(stack, stack[1:])
		stack[len(stack)-1] = Snapshot{}
		stack = stack[:len(stack)-1]
	}
	return append(stack, s)
}
