// Package bundle packs encoded icons into a single zip archive.
package bundle

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/benoitkugler/favigen/favicon"
	"github.com/klauspost/compress/zip"
)

// Artifact is a named file to put in the archive.
type Artifact struct {
	Name string
	Data []byte
}

// modTime is stamped on every entry so that the same artifacts
// always produce the same archive.
var modTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Build returns a zip archive holding every artifact under the
// favicon/ folder, in the order given.
// When two artifacts share a name, the last one wins.
func Build(artifacts []Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := BuildTo(&buf, artifacts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTo is like Build but streams the archive to `w`.
func BuildTo(w io.Writer, artifacts []Artifact) error {
	zw := zip.NewWriter(w)
	for _, a := range dedupe(artifacts) {
		header := &zip.FileHeader{
			Name:     path.Join(favicon.Folder, a.Name),
			Method:   zip.Deflate,
			Modified: modTime,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("adding %s to archive: %w", a.Name, err)
		}
		if _, err := fw.Write(a.Data); err != nil {
			return fmt.Errorf("writing %s to archive: %w", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	return nil
}

// dedupe keeps one artifact per name: the content is the last one
// seen, the position the first one.
func dedupe(artifacts []Artifact) []Artifact {
	index := make(map[string]int, len(artifacts))
	out := make([]Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if i, ok := index[a.Name]; ok {
			out[i] = a
			continue
		}
		index[a.Name] = len(out)
		out = append(out, a)
	}
	return out
}
