// Package emit delivers generated files to the user: written
// into a directory, or streamed to a writer such as stdout.
package emit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Emitter saves a named blob.
type Emitter interface {
	Emit(ctx context.Context, name string, data []byte) error
}

// Dir writes files into a directory. Files are first written
// to a temporary file then renamed, so a reader never sees
// a partial icon.
type Dir string

var _ Emitter = Dir("")

func (d Dir) Emit(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}
	dir := string(d)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	// the temporary file is released whatever happens below
	tmpName := tmp.Name()
	committed := false
	defer func() {
		tmp.Close()
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("setting mode of %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	committed = true
	return nil
}

// Writer streams the blob to W, ignoring the name.
type Writer struct {
	W io.Writer
}

func (w Writer) Emit(ctx context.Context, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := w.W.Write(data)
	return err
}
