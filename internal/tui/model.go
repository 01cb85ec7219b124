// Package tui is a terminal front end for the editor. The preview is drawn
// with half-block characters; mouse drags drive the same pointer gestures as
// the websocket and wasm front ends.
package tui

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pixedit/pixedit/internal/asset"
	"github.com/pixedit/pixedit/internal/editor"
	"github.com/pixedit/pixedit/internal/export"
)

const (
	localSession = "local"
	saveTimeout  = 30 * time.Second
	zoomStep     = 1.25
	panStep      = 10 * unitsPerPixel
)

type cropRatio struct {
	label string
	value float64
}

var cropRatios = []cropRatio{
	{"free", 0},
	{"1:1", 1},
	{"3:4", 3.0 / 4},
	{"9:16", 9.0 / 16},
}

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a0a0a0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// Saver persists a flattened export.
type Saver interface {
	Save(ctx context.Context, sessionID, name string, img image.Image) (*export.Result, error)
}

type loadedMsg struct {
	token editor.LoadToken
	img   image.Image
	err   error
}

type savedMsg struct {
	result *export.Result
	err    error
}

// Model is the bubbletea model for one image.
type Model struct {
	ed     *editor.Editor
	path   string
	name   string
	saver  Saver
	keys   keyMap
	help   help.Model
	cache  previewCache
	update editor.RenderUpdate

	width, height int
	cols, rows    int

	ratio       int
	pressed     bool
	saving      bool
	confirmQuit bool
	lastCrop    *editor.PixelRect
	status      string
	statusErr   bool

	copyText func(string) error
}

// New creates a model that loads the image at path and saves through saver
// under name.
func New(path, name string, saver Saver) *Model {
	return &Model{
		ed:       editor.New(),
		path:     path,
		name:     name,
		saver:    saver,
		keys:     defaultKeyMap(),
		help:     help.New(),
		copyText: clipboard.WriteAll,
	}
}

// Run starts the program and blocks until the user quits.
func Run(path, name string, saver Saver) error {
	p := tea.NewProgram(New(path, name, saver), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	m.setStatus("loading "+m.path, false)
	return m.load(m.path)
}

// load decodes path off the update loop. The token lets a newer load win.
func (m *Model) load(path string) tea.Cmd {
	token := m.ed.BeginLoad()
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return loadedMsg{token: token, err: err}
		}
		defer f.Close()
		img, _, err := asset.Decode(f)
		return loadedMsg{token: token, img: img, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
	case loadedMsg:
		m.handleLoaded(msg)
	case savedMsg:
		m.handleSaved(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}

	if u, ok := m.ed.Mailbox().TryReceive(); ok {
		m.update = u
	}
	return m, cmd
}

func (m *Model) layout() {
	footer := 1 + lipgloss.Height(m.help.View(m.keys))
	m.cols = max(1, m.width)
	m.rows = max(1, m.height-footer)
	m.ed.SetViewport(m.cols*unitsPerPixel, m.rows*2*unitsPerPixel)
}

func (m *Model) handleLoaded(msg loadedMsg) {
	if msg.err != nil {
		if m.ed.Valid(msg.token) {
			m.setStatus(fmt.Sprintf("load %s: %v", m.path, msg.err), true)
		}
		return
	}
	if !m.ed.AcceptImage(msg.token, msg.img) {
		return
	}
	w, h := m.ed.ImageSize()
	m.lastCrop = nil
	m.setStatus(fmt.Sprintf("%s %dx%d", m.path, w, h), false)
}

func (m *Model) handleSaved(msg savedMsg) {
	m.saving = false
	if msg.err != nil {
		m.setStatus("save failed: "+msg.err.Error(), true)
		return
	}
	m.ed.MarkSaved()
	m.confirmQuit = false
	m.setStatus("saved "+msg.result.Filename, false)
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	// Cell centers in editor units. A cell is one preview pixel wide and
	// two tall.
	x := float64(msg.X*unitsPerPixel) + unitsPerPixel/2
	y := float64(msg.Y*2*unitsPerPixel) + unitsPerPixel

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.zoom(zoomStep)
	case msg.Button == tea.MouseButtonWheelDown:
		m.zoom(1 / zoomStep)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if msg.Y < m.rows {
			m.pressed = m.ed.PointerDown(x, y)
		}
	case msg.Action == tea.MouseActionMotion && m.pressed:
		m.ed.PointerMove(x, y)
	case msg.Action == tea.MouseActionRelease:
		if m.pressed {
			m.ed.PointerUp()
			m.pressed = false
		}
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if !key.Matches(msg, m.keys.Quit) {
		m.confirmQuit = false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.ed.Modified() && !m.confirmQuit {
			m.confirmQuit = true
			m.setStatus("unsaved changes, press q again to quit", true)
			return nil
		}
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	case key.Matches(msg, m.keys.ZoomIn):
		m.zoom(zoomStep)
	case key.Matches(msg, m.keys.ZoomOut):
		m.zoom(1 / zoomStep)
	case key.Matches(msg, m.keys.Up):
		m.ed.Pan(0, -panStep)
	case key.Matches(msg, m.keys.Down):
		m.ed.Pan(0, panStep)
	case key.Matches(msg, m.keys.Left):
		m.ed.Pan(-panStep, 0)
	case key.Matches(msg, m.keys.Right):
		m.ed.Pan(panStep, 0)
	case key.Matches(msg, m.keys.Crop):
		m.cycleCrop()
	case key.Matches(msg, m.keys.Commit):
		m.commitCrop()
	case key.Matches(msg, m.keys.Cancel):
		if m.ed.Cropping() {
			m.ed.ExitCrop()
			m.setStatus("crop cancelled", false)
		}
	case key.Matches(msg, m.keys.Filter):
		if m.ed.HasImage() && !m.ed.Cropping() {
			next := m.ed.Filter().Next()
			if err := m.ed.SetFilter(next); err != nil {
				m.setStatus(err.Error(), true)
			} else {
				m.setStatus("filter "+next.String(), false)
			}
		}
	case key.Matches(msg, m.keys.Undo):
		if !m.ed.Undo() {
			m.setStatus("nothing to undo", false)
		}
	case key.Matches(msg, m.keys.Redo):
		if !m.ed.Redo() {
			m.setStatus("nothing to redo", false)
		}
	case key.Matches(msg, m.keys.Save):
		return m.save()
	case key.Matches(msg, m.keys.Copy):
		m.copyCrop()
	}
	return nil
}

func (m *Model) zoom(factor float64) {
	if !m.ed.HasImage() || m.ed.Cropping() {
		return
	}
	m.ed.BeginZoom()
	m.ed.Zoom(factor)
}

func (m *Model) cycleCrop() {
	if !m.ed.HasImage() {
		m.setStatus(editor.ErrNoImage.Error(), true)
		return
	}
	if m.ed.Cropping() {
		m.ratio = (m.ratio + 1) % len(cropRatios)
	} else {
		m.ratio = 0
	}
	r := cropRatios[m.ratio]
	if err := m.ed.EnterCrop(r.value); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus("crop "+r.label, false)
}

func (m *Model) commitCrop() {
	if !m.ed.Cropping() {
		return
	}
	px, err := m.ed.CommitCrop()
	if err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.lastCrop = &px
	m.setStatus(fmt.Sprintf("cropped to %dx%d at (%d,%d)", px.W, px.H, px.X, px.Y), false)
}

func (m *Model) copyCrop() {
	if m.lastCrop == nil {
		m.setStatus("no crop to copy", false)
		return
	}
	r := m.lastCrop
	text := fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H)
	if err := m.copyText(text); err != nil {
		m.setStatus("copy failed: "+err.Error(), true)
		return
	}
	m.setStatus("copied "+text, false)
}

// save flattens on the update loop and writes the file in a command.
func (m *Model) save() tea.Cmd {
	if m.saver == nil {
		m.setStatus("saving is not configured", true)
		return nil
	}
	if m.saving {
		m.setStatus("save already in progress", false)
		return nil
	}
	img, err := m.ed.Export()
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}

	m.saving = true
	m.setStatus("saving...", false)
	saver, name := m.saver, m.name
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		res, err := saver.Save(ctx, localSession, name, img)
		return savedMsg{result: res, err: err}
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) View() string {
	if m.width == 0 {
		return ""
	}

	preview := newFrame(m.ed, &m.cache, m.update).render(m.cols, m.rows)

	title := titleStyle.Render("pixedit")
	if m.ed.Modified() {
		title += titleStyle.Render("*")
	}
	style := statusStyle
	if m.statusErr {
		style = errorStyle
	}
	status := title + " " + style.Render(m.status)

	return lipgloss.JoinVertical(lipgloss.Left, preview, status, m.help.View(m.keys))
}
