// Package favicon holds the fixed tables describing the generated icon set:
// which sizes are previewed and exported, how each export is named,
// and the HTML snippet referencing them.
package favicon

import "fmt"

const (
	// Folder is the directory holding the icons, both inside the
	// archive and in the snippet URLs.
	Folder = "favicon"

	// ArchiveName is the name of the bulk download.
	ArchiveName = "favicons.zip"
)

// ExportSizes lists the downloadable sizes, in archive order.
var ExportSizes = []int{16, 32, 180, 192, 512}

// PreviewSizes lists the sizes rendered for on-screen preview.
var PreviewSizes = []int{16, 32, 64, 128, 512}

var names = map[int]string{
	16:  "favicon-16x16.png",
	32:  "favicon-32x32.png",
	180: "apple-touch-icon.png",
	192: "android-chrome-192x192.png",
	512: "android-chrome-512x512.png",
}

// UnsupportedSizeError is returned when asking the name
// of a size which is not exported.
type UnsupportedSizeError struct {
	Size int
}

func (e *UnsupportedSizeError) Error() string {
	return fmt.Sprintf("unsupported favicon size %d", e.Size)
}

// ResolveName returns the canonical filename for an export size.
func ResolveName(size int) (string, error) {
	name, ok := names[size]
	if !ok {
		return "", &UnsupportedSizeError{Size: size}
	}
	return name, nil
}

// Snippet is the markup to paste in a page <head>, referencing
// the icons once extracted at the site root.
const Snippet = `<link rel="icon" type="image/png" sizes="16x16" href="/favicon/favicon-16x16.png">
<link rel="icon" type="image/png" sizes="32x32" href="/favicon/favicon-32x32.png">
<link rel="apple-touch-icon" sizes="180x180" href="/favicon/apple-touch-icon.png">
<link rel="icon" type="image/png" sizes="192x192" href="/favicon/android-chrome-192x192.png">
<link rel="icon" type="image/png" sizes="512x512" href="/favicon/android-chrome-512x512.png">`
