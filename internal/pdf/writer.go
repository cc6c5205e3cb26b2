package pdf

import (
	"bytes"
	"compress/zlib"
	"crypto/rand"
	"fmt"
	"strconv"
)

// SaveOptions controls output serialization. Setting a password produces an
// encrypted file using the standard security handler (RC4-128, revision 3).
type SaveOptions struct {
	UserPassword  string
	OwnerPassword string
}

// Save serializes the document. The object graph is regenerated from the
// in-memory model, so content absent from the model is absent from the
// bytes: no incremental-update tail preserves what redaction removed.
func (d *Document) Save() ([]byte, error) {
	return d.SaveWithOptions(SaveOptions{})
}

// SaveWithOptions serializes the document, optionally encrypting it.
func (d *Document) SaveWithOptions(opts SaveOptions) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("pdf: save on closed document")
	}
	if d.encrypted && !d.authenticated {
		return nil, ErrLocked
	}

	w := &fileWriter{fileID: make([]byte, 16)}
	if _, err := rand.Read(w.fileID); err != nil {
		return nil, fmt.Errorf("pdf: generate file id: %w", err)
	}
	if opts.UserPassword != "" || opts.OwnerPassword != "" {
		owner := opts.OwnerPassword
		if owner == "" {
			owner = opts.UserPassword
		}
		c := &standardCrypt{r: 3, v: 2, length: 128, p: -4, fileID: w.fileID}
		c.o = c.ownerEntry([]byte(owner), []byte(opts.UserPassword))
		c.fileKey = c.deriveKey([]byte(opts.UserPassword))
		c.u = append(c.userEntry(c.fileKey), make([]byte, 16)...)
		w.crypt = c
	}
	return w.write(d)
}

// fileWriter emits a complete classic-xref PDF file.
type fileWriter struct {
	buf     bytes.Buffer
	offsets []int // offsets[n] is the byte offset of object n; index 0 unused
	fileID  []byte
	crypt   *standardCrypt
}

const (
	objCatalog = 1
	objPages   = 2
	objFont    = 3
)

func (w *fileWriter) write(d *Document) ([]byte, error) {
	// Assign object numbers up front so kid references can be emitted
	// before their objects.
	next := objFont + 1
	pageNums := make([]int, len(d.Pages))
	contentNums := make([]int, len(d.Pages))
	imageNums := make([][]int, len(d.Pages))
	for i, p := range d.Pages {
		pageNums[i] = next
		contentNums[i] = next + 1
		next += 2
		imageNums[i] = make([]int, len(p.Images))
		for j := range p.Images {
			imageNums[i][j] = next
			next++
		}
	}
	encryptNum := 0
	if w.crypt != nil {
		encryptNum = next
		next++
	}
	w.offsets = make([]int, next)

	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	var kids bytes.Buffer
	for _, n := range pageNums {
		fmt.Fprintf(&kids, "%d 0 R ", n)
	}
	w.writeObj(objCatalog, "<< /Type /Catalog /Pages 2 0 R >>")
	w.writeObj(objPages, fmt.Sprintf("<< /Type /Pages /Kids [ %s] /Count %d >>",
		kids.String(), len(d.Pages)))
	w.writeObj(objFont, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, p := range d.Pages {
		var res bytes.Buffer
		res.WriteString("<< /Font << /F1 3 0 R >>")
		if len(p.Images) > 0 {
			res.WriteString(" /XObject <<")
			for j, n := range imageNums[i] {
				fmt.Fprintf(&res, " /Im%d %d 0 R", j, n)
			}
			res.WriteString(" >>")
		}
		res.WriteString(" >>")
		w.writeObj(pageNums[i], fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources %s /Contents %d 0 R >>",
			ftoa(p.Width), ftoa(p.Height), res.String(), contentNums[i]))

		content, err := pageContentStream(p)
		if err != nil {
			return nil, err
		}
		var zbuf bytes.Buffer
		zw := zlib.NewWriter(&zbuf)
		if _, err := zw.Write(content); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		w.writeStreamObj(contentNums[i], "/Filter /FlateDecode", zbuf.Bytes())

		for j := range p.Images {
			im := &p.Images[j]
			data, filter, err := im.encodedStream()
			if err != nil {
				return nil, fmt.Errorf("pdf: encode image: %w", err)
			}
			extra := fmt.Sprintf("/Subtype /Image /Width %d /Height %d /BitsPerComponent 8 /ColorSpace /DeviceRGB",
				im.Width, im.Height)
			if filter != "" {
				extra += " /Filter /" + filter
			}
			w.writeStreamObj(imageNums[i][j], extra, data)
		}
	}

	if w.crypt != nil {
		c := w.crypt
		w.writeObj(encryptNum, fmt.Sprintf(
			"<< /Filter /Standard /V %d /R %d /Length %d /P %d /O %s /U %s >>",
			c.v, c.r, c.length, c.p, pdfHexString(c.o), pdfHexString(c.u)))
	}

	xrefOff := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n", len(w.offsets))
	w.buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < len(w.offsets); n++ {
		fmt.Fprintf(&w.buf, "%010d 00000 n \n", w.offsets[n])
	}
	w.buf.WriteString("trailer\n")
	fmt.Fprintf(&w.buf, "<< /Size %d /Root 1 0 R /ID [ %s %s ]",
		len(w.offsets), pdfHexString(w.fileID), pdfHexString(w.fileID))
	if w.crypt != nil {
		fmt.Fprintf(&w.buf, " /Encrypt %d 0 R", encryptNum)
	}
	w.buf.WriteString(" >>\n")
	fmt.Fprintf(&w.buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	return w.buf.Bytes(), nil
}

func (w *fileWriter) writeObj(num int, body string) {
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (w *fileWriter) writeStreamObj(num int, dictExtra string, data []byte) {
	if w.crypt != nil {
		data = rc4Apply(w.crypt.objectKey(num, 0), data)
	}
	w.offsets[num] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dictExtra, len(data))
	w.buf.Write(data)
	w.buf.WriteString("\nendstream\nendobj\n")
}

// pageContentStream renders a page's model into content-stream operators:
// images at the bottom, fills above them, text on top. Coordinates flip
// from the model's top-left origin to PDF's bottom-left origin.
func pageContentStream(p *Page) ([]byte, error) {
	var b bytes.Buffer
	h := p.Height

	for j := range p.Images {
		box := p.Images[j].Box
		fmt.Fprintf(&b, "q\n%s 0 0 %s %s %s cm\n/Im%d Do\nQ\n",
			ftoa(box.Width()), ftoa(box.Height()),
			ftoa(box.X0), ftoa(h-box.Y1), j)
	}
	for _, f := range p.Fills {
		fmt.Fprintf(&b, "%s %s %s rg\n%s %s %s %s re\nf\n",
			ftoa(f.Color.R), ftoa(f.Color.G), ftoa(f.Color.B),
			ftoa(f.Box.X0), ftoa(h-f.Box.Y1),
			ftoa(f.Box.Width()), ftoa(f.Box.Height()))
	}
	for _, s := range p.Spans {
		if s.Text == "" {
			continue
		}
		y := h - s.Box.Y0 - 0.8*s.Size
		fmt.Fprintf(&b, "BT\n/F1 %s Tf\n%s %s %s rg\n%s %s Td\n(%s) Tj\nET\n",
			ftoa(s.Size),
			ftoa(s.Color.R), ftoa(s.Color.G), ftoa(s.Color.B),
			ftoa(s.Box.X0), ftoa(y),
			escapeString(s.Text))
	}
	return b.Bytes(), nil
}

// escapeString produces the body of a PDF literal string.
func escapeString(s string) string {
	var b bytes.Buffer
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func pdfHexString(data []byte) string {
	var b bytes.Buffer
	b.WriteByte('<')
	for _, c := range data {
		fmt.Fprintf(&b, "%02X", c)
	}
	b.WriteByte('>')
	return b.String()
}

// ftoa formats a coordinate without an exponent, trimming trailing zeros.
func ftoa(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}
