// Package pdf implements the document model the redaction engine operates
// on: a loader for digital and scanned PDFs, positioned text and image
// content per page, page rasterization for OCR, and a writer that
// regenerates the whole object graph on save. Because serialization never
// copies source bytes through, content removed from the model is physically
// absent from the output file.
package pdf

import (
	"errors"
	"image"
	"strings"
)

// ErrLocked is returned when an encrypted document is used before a
// successful Authenticate call.
var ErrLocked = errors.New("pdf: document is encrypted and locked")

// Color is an RGB triple with components in [0,1].
type Color struct {
	R, G, B float64
}

var (
	Black = Color{0, 0, 0}
	White = Color{1, 1, 1}
)

// TextSpan is a run of glyphs placed on a page.
type TextSpan struct {
	Text  string
	Size  float64
	Color Color
	Box   Rect
}

// ImageObject is a raster image placed on a page. frame holds the decoded
// pixels once needed; Data keeps the original encoded payload until the
// pixels are modified.
type ImageObject struct {
	Width  int
	Height int
	Data   []byte
	Filter string // DCTDecode, FlateDecode or "" when only frame is set
	Box    Rect
	frame  image.Image
}

// FillRect is a solid rectangle painted on a page.
type FillRect struct {
	Box   Rect
	Color Color
}

// RedactMark is a registered, not yet applied, destructive redaction: the
// glyphs under Box are removed and the mask text is rendered over an opaque
// fill when the page commit runs.
type RedactMark struct {
	Box  Rect
	Mask string
}

// Page is a single document page. Coordinates are top-left origin points.
type Page struct {
	Width  float64
	Height float64
	Spans  []TextSpan
	Images []ImageObject
	Fills  []FillRect

	marks []RedactMark
}

// Document is an in-memory PDF. It is owned by exactly one request, mutated
// in place by redaction, and released with Close after serialization.
type Document struct {
	Pages []*Page

	encrypted     bool
	authenticated bool
	crypt         *standardCrypt
	closed        bool

	// finish runs the deferred page parse of an encrypted file once the
	// key is available.
	finish func() error
}

// NewDocument returns an empty unencrypted document.
func NewDocument() *Document {
	return &Document{}
}

// AddPage appends a blank page of the given size in points.
func (d *Document) AddPage(width, height float64) *Page {
	p := &Page{Width: width, Height: height}
	d.Pages = append(d.Pages, p)
	return p
}

// IsEncrypted reports whether the source file carried an encryption
// dictionary, regardless of authentication state.
func (d *Document) IsEncrypted() bool { return d.encrypted }

// Authenticate attempts to unlock an encrypted document. It reports false
// for a wrong password; the caller cannot distinguish wrong from missing.
func (d *Document) Authenticate(password string) bool {
	if !d.encrypted {
		return true
	}
	if d.authenticated {
		return true
	}
	if d.crypt != nil && d.crypt.authenticate(password) {
		d.authenticated = true
		if d.finish != nil {
			fin := d.finish
			d.finish = nil
			if err := fin(); err != nil {
				d.authenticated = false
				return false
			}
		}
		return true
	}
	return false
}

// Close releases the document. Further use of the page data is invalid.
func (d *Document) Close() {
	if d.closed {
		return
	}
	d.closed = true
	for _, p := range d.Pages {
		p.Spans = nil
		p.Images = nil
		p.Fills = nil
		p.marks = nil
	}
	d.Pages = nil
}

// Text returns the page's extracted plain text, one line per span.
func (p *Page) Text() string {
	var b strings.Builder
	for i, s := range p.Spans {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Text returns the whole document's extracted text with pages separated by
// blank lines.
func (d *Document) Text() string {
	var parts []string
	for _, p := range d.Pages {
		if t := p.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// SearchFor returns the bounding rects of every occurrence of literal within
// the page's spans. Matches are located within a single span; the width of
// the sub-box is derived from font metrics.
func (p *Page) SearchFor(literal string) []Rect {
	if literal == "" {
		return nil
	}
	var out []Rect
	for _, s := range p.Spans {
		from := 0
		for {
			idx := strings.Index(s.Text[from:], literal)
			if idx < 0 {
				break
			}
			idx += from
			x0 := s.Box.X0 + textWidth(s.Text[:idx], s.Size)
			x1 := x0 + textWidth(literal, s.Size)
			out = append(out, Rect{X0: x0, Y0: s.Box.Y0, X1: x1, Y1: s.Box.Y1})
			from = idx + len(literal)
		}
	}
	return out
}

// AddRedaction registers a destructive mark on the page. Nothing is removed
// until ApplyRedactions commits all registered marks at once.
func (p *Page) AddRedaction(mark RedactMark) {
	p.marks = append(p.marks, mark)
}

// ApplyRedactions commits every registered mark: spans overlapping a mark
// box lose the covered glyphs (splitting around the hole where needed), an
// opaque fill is painted over each box, and the mark's text is rendered on
// top in white. The removed glyph data does not survive serialization.
func (p *Page) ApplyRedactions() {
	if len(p.marks) == 0 {
		return
	}
	var kept []TextSpan
	for _, span := range p.Spans {
		kept = append(kept, cutSpan(span, p.marks)...)
	}
	p.Spans = kept
	for _, m := range p.marks {
		p.Fills = append(p.Fills, FillRect{Box: m.Box, Color: Black})
		if m.Mask != "" {
			const maskSize = 9
			y0 := m.Box.Y0 + (m.Box.Height()-maskSize)/2
			if y0 < m.Box.Y0 {
				y0 = m.Box.Y0
			}
			p.Spans = append(p.Spans, TextSpan{
				Text:  m.Mask,
				Size:  maskSize,
				Color: White,
				Box:   Rect{X0: m.Box.X0 + 1, Y0: y0, X1: m.Box.X0 + 1 + textWidth(m.Mask, maskSize), Y1: y0 + maskSize},
			})
		}
	}
	p.marks = nil
}

// cutSpan removes the glyphs of span covered by any mark box, returning the
// surviving fragments with recomputed boxes.
func cutSpan(span TextSpan, marks []RedactMark) []TextSpan {
	covered := func(x0, x1 float64) bool {
		glyph := Rect{X0: x0, Y0: span.Box.Y0, X1: x1, Y1: span.Box.Y1}
		// Require a real horizontal overlap so rounding at a box edge does
		// not eat the neighbouring glyph.
		for _, m := range marks {
			if glyph.Intersects(m.Box) && minf(glyph.X1, m.Box.X1)-maxf(glyph.X0, m.Box.X0) > glyph.Width()*0.5 {
				return true
			}
		}
		return false
	}

	var out []TextSpan
	var fragment []rune
	fragStart := 0.0
	x := span.Box.X0
	flush := func() {
		if len(fragment) == 0 {
			return
		}
		text := string(fragment)
		out = append(out, TextSpan{
			Text:  text,
			Size:  span.Size,
			Color: span.Color,
			Box:   Rect{X0: fragStart, Y0: span.Box.Y0, X1: fragStart + textWidth(text, span.Size), Y1: span.Box.Y1},
		})
		fragment = fragment[:0]
	}
	for _, r := range span.Text {
		w := textWidth(string(r), span.Size)
		if covered(x, x+w) {
			flush()
		} else {
			if len(fragment) == 0 {
				fragStart = x
			}
			fragment = append(fragment, r)
		}
		x += w
	}
	flush()
	return out
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
