// Checks and repairs raw SVG markup before it is handed
// to a rasterizer.
// Only the presence of the root element and of a namespace
// declaration is checked: well-formedness errors are left to
// the rasterizer, which reports them as render failures.
package svgsource

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Namespace is the attribute inserted when the markup has none.
const Namespace = `xmlns="http://www.w3.org/2000/svg"`

const rootToken = "<svg"

// These messages are shown to the user as is.
var (
	ErrEmptyInput         = errors.New("Please provide SVG file or code")
	ErrMissingRootElement = errors.New("Invalid SVG: Must contain <svg> tag")
	ErrNotVectorFile      = errors.New("Please upload an SVG file")
)

// Document is validated SVG markup. Its text always contains
// a root <svg> tag and a namespace declaration.
type Document struct {
	text string
}

// Text returns the (possibly repaired) markup.
func (d Document) Text() string { return d.text }

// Bytes returns a copy of the markup, suitable for decoders.
func (d Document) Bytes() []byte { return []byte(d.text) }

// IsZero is true for the zero Document, which has never been validated.
func (d Document) IsZero() bool { return d.text == "" }

// Validate checks `text` and returns the document to render.
// When no namespace is declared, the standard one is inserted
// right after the first <svg token; the rest of the text is kept as is.
func Validate(text string) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, ErrEmptyInput
	}
	idx := strings.Index(text, rootToken)
	if idx < 0 {
		return Document{}, ErrMissingRootElement
	}
	if !strings.Contains(text, "xmlns") {
		at := idx + len(rootToken)
		text = text[:at] + " " + Namespace + text[at:]
	}
	return Document{text: text}, nil
}

// IsVectorFile reports whether a file looks like an SVG image,
// judging by its declared content type or its name.
func IsVectorFile(name, contentType string) bool {
	return strings.Contains(contentType, "svg") || strings.HasSuffix(name, ".svg")
}

// matches the encoding pseudo-attribute of a leading XML declaration
var xmlEncoding = regexp.MustCompile(`^(\s*<\?xml\s[^>]*?\bencoding\s*=\s*["'])([A-Za-z0-9._:-]+)(["'])`)

// Read decodes the content of an SVG file to UTF-8 and validates it.
// The encoding is taken from a BOM or the charset parameter of
// `contentType`, then from the XML declaration; otherwise valid UTF-8
// is assumed. The XML declaration of the returned document always
// names UTF-8, since its text has been transcoded.
func Read(r io.Reader, contentType string) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("reading svg: %w", err)
	}
	decoded, err := toUTF8(raw, contentType)
	if err != nil {
		return Document{}, fmt.Errorf("decoding svg: %w", err)
	}
	text := strings.TrimPrefix(string(decoded), "\uFEFF")
	text = xmlEncoding.ReplaceAllString(text, "${1}UTF-8${3}")
	return Validate(text)
}

func toUTF8(raw []byte, contentType string) ([]byte, error) {
	// only the first 1024 bytes are inspected here
	enc, _, certain := charset.DetermineEncoding(raw, contentType)
	if !certain {
		declared, name := charset.Lookup(declaredEncoding(raw))
		switch {
		case declared != nil && !strings.HasPrefix(name, "utf-16"):
			enc = declared
		case utf8.Valid(raw):
			return raw, nil
		}
	}
	return enc.NewDecoder().Bytes(raw)
}

// declaredEncoding returns the encoding label of the XML declaration
// of an ASCII compatible document, or an empty string.
func declaredEncoding(raw []byte) string {
	m := xmlEncoding.FindSubmatch(raw)
	if m == nil {
		return ""
	}
	return string(m[2])
}
