package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benoitkugler/favigen/favicon"
	"github.com/benoitkugler/favigen/pngenc"
	"github.com/benoitkugler/favigen/svgraster"
	"github.com/benoitkugler/favigen/svgsource"
	"github.com/klauspost/compress/zip"
)

const simpleSVG = "<svg><rect width='10' height='10'/></svg>"

// recorder is an in-memory emitter
type recorder struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
}

func (r *recorder) Emit(_ context.Context, name string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = map[string][]byte{}
	}
	r.files[name] = data
	r.order = append(r.order, name)
	return nil
}

// failAt wraps the default rasterizer, failing the decode at given sizes
type failAt struct {
	sizes map[int]bool
	delay func(size int) time.Duration
}

func (f failAt) Rasterize(ctx context.Context, markup []byte, width, height int) (image.Image, error) {
	if f.delay != nil {
		time.Sleep(f.delay(width))
	}
	if f.sizes[width] {
		return nil, errors.New("simulated decode error")
	}
	return svgraster.OKSVG{}.Rasterize(ctx, markup, width, height)
}

func newSession(t *testing.T, rasterizer svgraster.Rasterizer, workers int) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(Options{
		Renderer: svgraster.NewRenderer(rasterizer),
		Emitter:  rec,
		Workers:  workers,
	})
	if err := s.Load(simpleSVG); err != nil {
		t.Fatal(err)
	}
	return s, rec
}

func TestLoadErrors(t *testing.T) {
	s := New(Options{Emitter: &recorder{}})
	if err := s.Load(""); !errors.Is(err, svgsource.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if s.State() != Error || !errors.Is(s.Err(), svgsource.ErrEmptyInput) {
		t.Errorf("unexpected state %s / %v", s.State(), s.Err())
	}
	if err := s.Load("not svg at all"); !errors.Is(err, svgsource.ErrMissingRootElement) {
		t.Errorf("expected ErrMissingRootElement, got %v", err)
	}
	// newest error replaces the oldest
	if !errors.Is(s.Err(), svgsource.ErrMissingRootElement) {
		t.Errorf("unexpected last error %v", s.Err())
	}
	if _, ok := s.Document(); ok {
		t.Error("no document expected")
	}
	if _, err := s.Generate(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestLoadKeepsPreviousDocument(t *testing.T) {
	s, _ := newSession(t, nil, 0)
	if err := s.Load("   "); err == nil {
		t.Fatal("expected an error")
	}
	doc, ok := s.Document()
	if !ok || !strings.Contains(doc.Text(), svgsource.Namespace) {
		t.Errorf("previous document lost: %q", doc.Text())
	}
}

func TestLoadFile(t *testing.T) {
	s := New(Options{})
	if err := s.LoadFile("icon.png", "image/png", strings.NewReader(simpleSVG)); !errors.Is(err, svgsource.ErrNotVectorFile) {
		t.Errorf("expected ErrNotVectorFile, got %v", err)
	}
	if err := s.LoadFile("icon.svg", "", strings.NewReader(simpleSVG)); err != nil {
		t.Fatal(err)
	}
	if s.State() != Idle || s.Err() != nil {
		t.Errorf("unexpected state %s / %v", s.State(), s.Err())
	}
}

func TestGenerate(t *testing.T) {
	s, _ := newSession(t, nil, 0)
	previews, err := s.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != len(favicon.PreviewSizes) {
		t.Fatalf("expected %d previews, got %d", len(favicon.PreviewSizes), len(previews))
	}
	for i, p := range previews {
		if p.Size != favicon.PreviewSizes[i] || p.Err != nil {
			t.Fatalf("unexpected preview %d: %d %v", i, p.Size, p.Err)
		}
		if b := p.Image.Bounds(); b.Dx() != p.Size || b.Dy() != p.Size {
			t.Errorf("preview %d has bounds %v", p.Size, b)
		}
	}
	if s.State() != PreviewReady {
		t.Errorf("unexpected state %s", s.State())
	}
}

func TestGeneratePartialFailure(t *testing.T) {
	s, _ := newSession(t, failAt{sizes: map[int]bool{64: true}}, 0)
	previews, err := s.Generate(context.Background())
	var renderErr *svgraster.RenderError
	if !errors.As(err, &renderErr) || renderErr.Size != 64 {
		t.Fatalf("expected a RenderError at 64, got %v", err)
	}
	for _, p := range previews {
		if (p.Size == 64) != (p.Err != nil) {
			t.Errorf("size %d: unexpected error %v", p.Size, p.Err)
		}
	}
	if s.State() != Error {
		t.Errorf("unexpected state %s", s.State())
	}
}

func TestDownloadOne(t *testing.T) {
	s, rec := newSession(t, nil, 0)
	if err := s.DownloadOne(context.Background(), 180); err != nil {
		t.Fatal(err)
	}
	data, ok := rec.files["apple-touch-icon.png"]
	if !ok {
		t.Fatalf("icon not emitted: %v", rec.order)
	}
	img, err := pngenc.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 180 || b.Dy() != 180 {
		t.Errorf("unexpected bounds %v", b)
	}
	if s.State() != PreviewReady {
		t.Errorf("unexpected state %s", s.State())
	}
}

// counting counts the decodes
type counting struct {
	mu sync.Mutex
	n  int
}

func (c *counting) Rasterize(ctx context.Context, markup []byte, width, height int) (image.Image, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return svgraster.OKSVG{}.Rasterize(ctx, markup, width, height)
}

func TestDownloadOneUnsupportedSize(t *testing.T) {
	c := &counting{}
	s, rec := newSession(t, c, 0)
	err := s.DownloadOne(context.Background(), 64)
	var unsupported *favicon.UnsupportedSizeError
	if !errors.As(err, &unsupported) || unsupported.Size != 64 {
		t.Fatalf("expected UnsupportedSizeError, got %v", err)
	}
	if c.n != 0 {
		t.Error("no render expected for an unsupported size")
	}
	if len(rec.order) != 0 {
		t.Error("nothing should be emitted")
	}
}

func archiveEntries(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := pngenc.Decode(b); err != nil {
			t.Errorf("%s is not a png: %s", f.Name, err)
		}
		names = append(names, f.Name)
	}
	return names
}

func TestDownloadAll(t *testing.T) {
	for _, workers := range []int{0, 3} {
		s, rec := newSession(t, nil, workers)
		if err := s.DownloadAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		got := archiveEntries(t, rec.files[favicon.ArchiveName])
		expected := []string{
			"favicon/favicon-16x16.png",
			"favicon/favicon-32x32.png",
			"favicon/apple-touch-icon.png",
			"favicon/android-chrome-192x192.png",
			"favicon/android-chrome-512x512.png",
		}
		if strings.Join(got, ",") != strings.Join(expected, ",") {
			t.Errorf("workers %d: unexpected entries %v", workers, got)
		}
	}
}

func TestDownloadAllOmitsFailedSize(t *testing.T) {
	s, rec := newSession(t, failAt{sizes: map[int]bool{180: true}}, 0)
	err := s.DownloadAll(context.Background())
	var renderErr *svgraster.RenderError
	if !errors.As(err, &renderErr) || renderErr.Size != 180 {
		t.Fatalf("expected a RenderError at 180, got %v", err)
	}
	got := archiveEntries(t, rec.files[favicon.ArchiveName])
	if len(got) != 4 {
		t.Fatalf("expected 4 files, got %v", got)
	}
	for _, name := range got {
		if name == "favicon/apple-touch-icon.png" {
			t.Error("failed size should be omitted")
		}
	}
	if s.State() != Error {
		t.Errorf("unexpected state %s", s.State())
	}
}

func TestDownloadAllNothingToEmit(t *testing.T) {
	all := map[int]bool{}
	for _, size := range favicon.ExportSizes {
		all[size] = true
	}
	s, rec := newSession(t, failAt{sizes: all}, 0)
	if err := s.DownloadAll(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if len(rec.order) != 0 {
		t.Errorf("nothing should be emitted, got %v", rec.order)
	}
}

func TestExportAllKeepsOrder(t *testing.T) {
	// smaller sizes finish last
	slow := failAt{delay: func(size int) time.Duration { return time.Duration(600-size) * 50 * time.Microsecond }}
	s, _ := newSession(t, slow, len(favicon.ExportSizes))
	batch, err := s.ExportAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Errors) != 0 {
		t.Fatal(batch.Err())
	}
	for i, size := range favicon.ExportSizes {
		name, _ := favicon.ResolveName(size)
		if batch.Artifacts[i].Name != name {
			t.Errorf("artifact %d: expected %s, got %s", i, name, batch.Artifacts[i].Name)
		}
	}
}

func TestStateString(t *testing.T) {
	if PreviewReady.String() != "PreviewReady" || State(200).String() != "<unknown State>" {
		t.Error("unexpected state names")
	}
}

func TestDownloadOneErrorMessage(t *testing.T) {
	s, rec := newSession(t, failAt{sizes: map[int]bool{32: true}}, 0)
	err := s.DownloadOne(context.Background(), 32)
	if err == nil || !strings.HasPrefix(err.Error(), "Error generating PNG for size 32: ") {
		t.Fatalf("unexpected error %v", err)
	}
	var renderErr *svgraster.RenderError
	if !errors.As(err, &renderErr) || renderErr.Size != 32 {
		t.Errorf("cause lost: %v", err)
	}
	if s.Err() != err || len(rec.order) != 0 {
		t.Errorf("unexpected session state: %v, %v", s.Err(), rec.order)
	}

	// unsupported sizes get the same message
	err = s.DownloadOne(context.Background(), 64)
	if err == nil || !strings.HasPrefix(err.Error(), "Error generating PNG for size 64: ") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestExportUTF16File(t *testing.T) {
	const src = `<?xml version="1.0" encoding="UTF-16"?><svg width="1em" height="1em" viewBox="0 0 24 24"><rect width="24" height="24" fill="#ff0000"/></svg>`
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFE})
	for _, r := range src {
		buf.WriteByte(byte(r))
		buf.WriteByte(byte(r >> 8))
	}
	s := New(Options{Emitter: &recorder{}})
	if err := s.LoadFile("icon.svg", "image/svg+xml", &buf); err != nil {
		t.Fatal(err)
	}
	a, err := s.Export(context.Background(), 32)
	if err != nil {
		t.Fatal(err)
	}
	img, err := pngenc.Decode(a.Data)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, alpha := img.At(16, 16).RGBA(); r < 0xc000 || alpha < 0xc000 {
		t.Errorf("expected a red center, got %v", img.At(16, 16))
	}
}
