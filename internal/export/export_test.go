package export

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pixedit/pixedit/internal/auth"
	"github.com/pixedit/pixedit/internal/db"
)

type fakeDB struct {
	rows []db.Export
	err  error
}

func (f *fakeDB) CreateExport(_ context.Context, arg db.CreateExportParams) (db.Export, error) {
	if f.err != nil {
		return db.Export{}, f.err
	}
	e := db.Export{
		ID: arg.ID, SessionID: arg.SessionID, Filename: arg.Filename,
		Width: arg.Width, Height: arg.Height, Bytes: arg.Bytes, CreatedAt: time.Now(),
	}
	f.rows = append(f.rows, e)
	return e, nil
}

func (f *fakeDB) ListExportsBySession(_ context.Context, sessionID string, limit int32) ([]db.Export, error) {
	var out []db.Export
	for _, e := range f.rows {
		if e.SessionID == sessionID && int32(len(out)) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func newSaver(t *testing.T, rec Recorder) *FileSaver {
	t.Helper()
	s, err := NewFileSaver(t.TempDir(), 90, rec)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFileSaverSave(t *testing.T) {
	store := &fakeDB{}
	s := newSaver(t, store)

	res, err := s.Save(context.Background(), "sess_1", "holiday photo", image.NewNRGBA(image.Rect(0, 0, 40, 30)))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Filename != "holiday-photo_"+res.ID+".jpg" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.Width != 40 || res.Height != 30 || res.Bytes <= 0 {
		t.Errorf("result = %+v", res)
	}

	f, err := os.Open(filepath.Join(s.Dir(), res.Filename))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil || cfg.Width != 40 || cfg.Height != 30 {
		t.Errorf("jpeg config = %+v, %v", cfg, err)
	}

	if len(store.rows) != 1 || store.rows[0].SessionID != "sess_1" || store.rows[0].ID != res.ID {
		t.Errorf("recorded rows = %+v", store.rows)
	}
}

func TestFileSaverDefaultName(t *testing.T) {
	s := newSaver(t, nil)
	res, err := s.Save(context.Background(), "sess_1", "", image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Filename != "pixedit_"+res.ID+".jpg" {
		t.Errorf("filename = %q", res.Filename)
	}
}

func TestFileSaverSameNameKeepsBoth(t *testing.T) {
	store := &fakeDB{}
	s := newSaver(t, store)

	a, err := s.Save(context.Background(), "sess_a", "photo", image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save(context.Background(), "sess_b", "photo", image.NewNRGBA(image.Rect(0, 0, 6, 6)))
	if err != nil {
		t.Fatal(err)
	}
	if a.Filename == b.Filename {
		t.Fatalf("both exports written to %q", a.Filename)
	}
	for _, res := range []*Result{a, b} {
		if _, err := os.Stat(filepath.Join(s.Dir(), res.Filename)); err != nil {
			t.Errorf("export %s missing: %v", res.ID, err)
		}
	}
	if len(store.rows) != 2 {
		t.Errorf("recorded rows = %d", len(store.rows))
	}
}

func TestFileSaverFailures(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		s := newSaver(t, nil)
		if _, err := s.Save(context.Background(), "s", "x", image.NewNRGBA(image.Rectangle{})); !errors.Is(err, ErrEmptyImage) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("record failure removes file", func(t *testing.T) {
		s := newSaver(t, &fakeDB{err: errors.New("db down")})
		if _, err := s.Save(context.Background(), "s", "x", image.NewNRGBA(image.Rect(0, 0, 4, 4))); err == nil {
			t.Fatal("record failure swallowed")
		}
		entries, _ := os.ReadDir(s.Dir())
		if len(entries) != 0 {
			t.Errorf("left files behind: %v", entries)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		s := newSaver(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Save(ctx, "s", "x", image.NewNRGBA(image.Rect(0, 0, 4, 4))); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestListHandler(t *testing.T) {
	store := &fakeDB{}
	s := newSaver(t, store)
	s.Save(context.Background(), "sess_a", "one", image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	s.Save(context.Background(), "sess_b", "two", image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	svc := auth.NewService(nil, "secret")
	sess, _ := svc.CreateSession(context.Background())
	s.Save(context.Background(), sess.SessionID, "mine", image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	h := svc.AuthMiddleware(http.HandlerFunc(NewHandler(s.Dir(), store).List))

	req := httptest.NewRequest(http.MethodGet, "/exports", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var items []db.Export
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].SessionID != sess.SessionID {
		t.Errorf("items = %+v", items)
	}
}

func TestListHandlerWithoutDatabase(t *testing.T) {
	h := NewHandler(t.TempDir(), nil)
	req := httptest.NewRequest(http.MethodGet, "/exports", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionIDKey, "sess_x"))
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}
