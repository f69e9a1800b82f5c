// Package session drives the favicon pipeline for one user:
// it keeps the current document, renders previews and
// exports the icons, one by one or as an archive.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/benoitkugler/favigen/bundle"
	"github.com/benoitkugler/favigen/emit"
	"github.com/benoitkugler/favigen/favicon"
	"github.com/benoitkugler/favigen/pngenc"
	"github.com/benoitkugler/favigen/svgraster"
	"github.com/benoitkugler/favigen/svgsource"
	"github.com/dustin/go-humanize"
)

var ErrNoDocument = errors.New("please generate favicons first")

// Options configures a Session. Zero values are replaced by defaults.
type Options struct {
	Renderer *svgraster.Renderer // defaults to an OKSVG renderer
	Emitter  emit.Emitter        // defaults to the current directory
	Logger   *slog.Logger        // defaults to a discarding logger

	// Workers bounds the number of sizes exported concurrently
	// by ExportAll. Values below 2 mean sequential exports.
	Workers int
}

// Session holds the current document and the last error.
// Its methods are safe for concurrent use; concurrent actions
// are not serialized, the last one to finish sets the state.
type Session struct {
	renderer *svgraster.Renderer
	emitter  emit.Emitter
	logger   *slog.Logger
	workers  int

	mu      sync.Mutex
	doc     svgsource.Document
	state   State
	lastErr error
}

// New returns an idle session, without document.
func New(opts Options) *Session {
	s := &Session{
		renderer: opts.Renderer,
		emitter:  opts.Emitter,
		logger:   opts.Logger,
		workers:  opts.Workers,
	}
	if s.renderer == nil {
		s.renderer = svgraster.NewRenderer(nil)
	}
	if s.emitter == nil {
		s.emitter = emit.Dir(".")
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// State returns the current step of the pipeline.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the last error reported, or nil.
// Only the newest error is kept.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Document returns the current document, if any.
func (s *Session) Document() (svgsource.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, !s.doc.IsZero()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	if st != Error {
		s.lastErr = nil
	}
}

// fail records err as the newest error and returns it.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Error
	s.lastErr = err
	return err
}

func (s *Session) currentDocument() (svgsource.Document, error) {
	doc, ok := s.Document()
	if !ok {
		return doc, s.fail(ErrNoDocument)
	}
	return doc, nil
}

// Load validates `text` and makes it the current document.
// On failure the previous document is kept.
func (s *Session) Load(text string) error {
	s.setState(Validating)
	doc, err := svgsource.Validate(text)
	if err != nil {
		return s.fail(err)
	}
	s.setDocument(doc)
	return nil
}

// LoadFile is like Load, for the content of an uploaded file.
// Files which don't look like SVG images are rejected.
func (s *Session) LoadFile(name, contentType string, r io.Reader) error {
	if !svgsource.IsVectorFile(name, contentType) {
		return s.fail(svgsource.ErrNotVectorFile)
	}
	s.setState(Validating)
	doc, err := svgsource.Read(r, contentType)
	if err != nil {
		return s.fail(err)
	}
	s.setDocument(doc)
	return nil
}

func (s *Session) setDocument(doc svgsource.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.state = Idle
	s.lastErr = nil
}

// Preview is the on-screen rendering at one size.
// Exactly one of Image and Err is non nil.
type Preview struct {
	Size  int
	Image *image.RGBA
	Err   error
}

// Generate renders the current document at every preview size.
// A failure at one size does not prevent the others: every
// failure is reported in its Preview, and joined in the returned error.
func (s *Session) Generate(ctx context.Context) ([]Preview, error) {
	doc, err := s.currentDocument()
	if err != nil {
		return nil, err
	}
	s.setState(Rendering)

	previews := make([]Preview, len(favicon.PreviewSizes))
	var errs []error
	for i, size := range favicon.PreviewSizes {
		img, err := s.renderer.Render(ctx, doc, size)
		previews[i] = Preview{Size: size, Image: img, Err: err}
		if err != nil {
			s.logger.Error("preview failed", "size", size, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return previews, s.fail(errors.Join(errs...))
	}
	s.setState(PreviewReady)
	return previews, nil
}

// export renders, encodes and names one icon, without touching the state.
func (s *Session) export(ctx context.Context, doc svgsource.Document, size int) (bundle.Artifact, error) {
	name, err := favicon.ResolveName(size)
	if err != nil {
		return bundle.Artifact{}, err
	}
	img, err := s.renderer.Render(ctx, doc, size)
	if err != nil {
		return bundle.Artifact{}, err
	}
	data, err := pngenc.Encode(img)
	if err != nil {
		return bundle.Artifact{}, fmt.Errorf("size %d: %w", size, err)
	}
	return bundle.Artifact{Name: name, Data: data}, nil
}

// Export returns the PNG icon for one of the export sizes,
// under its canonical name.
func (s *Session) Export(ctx context.Context, size int) (bundle.Artifact, error) {
	doc, err := s.currentDocument()
	if err != nil {
		return bundle.Artifact{}, err
	}
	s.setState(Encoding)
	a, err := s.export(ctx, doc, size)
	if err != nil {
		s.logger.Error("export failed", "size", size, "error", err)
		return a, s.fail(err)
	}
	return a, nil
}

// DownloadOne exports one icon and hands it to the emitter.
// Any failure past the document check is reported as
// "Error generating PNG for size N", wrapping the cause.
func (s *Session) DownloadOne(ctx context.Context, size int) error {
	doc, err := s.currentDocument()
	if err != nil {
		return err
	}
	s.setState(Encoding)
	a, err := s.export(ctx, doc, size)
	if err == nil {
		s.setState(Downloading)
		err = s.emitter.Emit(ctx, a.Name, a.Data)
	}
	if err != nil {
		s.logger.Error("download failed", "size", size, "error", err)
		return s.fail(fmt.Errorf("Error generating PNG for size %d: %w", size, err))
	}
	s.logger.Info("icon saved", "file", a.Name, "size", humanize.Bytes(uint64(len(a.Data))))
	s.setState(PreviewReady)
	return nil
}

// Batch is the outcome of exporting every size.
// Artifacts follow favicon.ExportSizes order, skipping failed sizes.
type Batch struct {
	Artifacts []bundle.Artifact
	Errors    []error
}

// Err joins the per size errors.
func (b Batch) Err() error { return errors.Join(b.Errors...) }

// ExportAll exports every size of favicon.ExportSizes.
// Failed sizes are logged and left out of the artifacts;
// the returned error is only non nil when there is no document.
func (s *Session) ExportAll(ctx context.Context) (Batch, error) {
	doc, err := s.currentDocument()
	if err != nil {
		return Batch{}, err
	}
	s.setState(Encoding)

	type result struct {
		artifact bundle.Artifact
		err      error
	}
	sizes := favicon.ExportSizes
	results := make([]result, len(sizes))
	if s.workers < 2 {
		for i, size := range sizes {
			a, err := s.export(ctx, doc, size)
			results[i] = result{a, err}
		}
	} else {
		sem := make(chan struct{}, s.workers)
		var wg sync.WaitGroup
		for i, size := range sizes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				a, err := s.export(ctx, doc, size)
				results[i] = result{a, err}
			}()
		}
		wg.Wait()
	}

	var batch Batch
	for i, r := range results {
		if r.err != nil {
			s.logger.Error("export failed", "size", sizes[i], "error", r.err)
			name, _ := favicon.ResolveName(sizes[i])
			batch.Errors = append(batch.Errors, fmt.Errorf("Error generating %s: %w", name, r.err))
			continue
		}
		batch.Artifacts = append(batch.Artifacts, r.artifact)
	}
	return batch, nil
}

// DownloadAll exports every size, packs the icons in an archive
// and emits it as favicons.zip. The archive is emitted as long as one
// size succeeded; failures are returned afterwards.
func (s *Session) DownloadAll(ctx context.Context) error {
	batch, err := s.ExportAll(ctx)
	if err != nil {
		return err
	}
	if len(batch.Artifacts) == 0 {
		return s.fail(batch.Err())
	}

	s.setState(Archiving)
	archive, err := bundle.Build(batch.Artifacts)
	if err != nil {
		return s.fail(err)
	}
	s.logger.Info("archive built", "files", len(batch.Artifacts), "size", humanize.Bytes(uint64(len(archive))))

	s.setState(Downloading)
	if err := s.emitter.Emit(ctx, favicon.ArchiveName, archive); err != nil {
		return s.fail(fmt.Errorf("saving %s: %w", favicon.ArchiveName, err))
	}
	if err := batch.Err(); err != nil {
		return s.fail(err)
	}
	s.setState(PreviewReady)
	return nil
}
