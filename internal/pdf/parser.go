package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
)

// parser reads a classic cross-reference file. Damaged or truncated xref
// tables are repaired by scanning the raw bytes for object headers, the
// same recovery most viewers apply.
type parser struct {
	data    []byte
	offsets map[int]int
	cache   map[int]any
	trailer dict
	crypt   *standardCrypt
}

// Open reads and parses the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return Read(data)
}

// Read parses a PDF from memory. For encrypted files the returned document
// reports IsEncrypted and holds no pages until Authenticate succeeds.
func Read(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("read pdf: missing file header")
	}
	p := &parser{
		data:    data,
		offsets: make(map[int]int),
		cache:   make(map[int]any),
		trailer: make(dict),
	}
	if err := p.readXref(); err != nil {
		if rerr := p.rebuildXref(); rerr != nil {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
	}

	doc := NewDocument()
	if encRef, ok := p.trailer["Encrypt"]; ok && encRef != nil {
		enc, ok := p.resolve(encRef).(dict)
		if !ok {
			return nil, fmt.Errorf("read pdf: malformed encryption dictionary")
		}
		var fileID []byte
		if ids, ok := p.trailer["ID"].([]any); ok && len(ids) > 0 {
			if id, ok := ids[0].(strval); ok {
				fileID = []byte(id)
			}
		}
		doc.encrypted = true
		doc.crypt = newStandardCrypt(enc, fileID)
		p.crypt = doc.crypt
		p.cache = make(map[int]any) // drop objects cached before the key exists
		doc.finish = func() error { return p.buildPages(doc) }
		return doc, nil
	}
	if err := p.buildPages(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// readXref follows startxref and the /Prev chain of classic xref tables.
func (p *parser) readXref() error {
	tailStart := len(p.data) - 1024
	if tailStart < 0 {
		tailStart = 0
	}
	idx := bytes.LastIndex(p.data[tailStart:], []byte("startxref"))
	if idx < 0 {
		return fmt.Errorf("startxref not found")
	}
	l := &lexer{data: p.data, pos: tailStart + idx + len("startxref")}
	off, err := l.parseObject()
	if err != nil {
		return fmt.Errorf("bad startxref: %w", err)
	}
	offset, ok := off.(int64)
	if !ok {
		return fmt.Errorf("bad startxref value")
	}

	seen := make(map[int64]bool)
	for offset > 0 && !seen[offset] {
		seen[offset] = true
		if offset >= int64(len(p.data)) {
			return fmt.Errorf("xref offset %d out of range", offset)
		}
		next, err := p.readXrefSection(int(offset))
		if err != nil {
			return err
		}
		offset = next
	}
	if _, ok := p.trailer["Root"]; !ok {
		return fmt.Errorf("trailer has no document root")
	}
	return nil
}

// readXrefSection parses one xref table plus trailer, returning the /Prev
// offset or 0.
func (p *parser) readXrefSection(offset int) (int64, error) {
	l := &lexer{data: p.data, pos: offset}
	if kw := l.parseKeyword(); kw != "xref" {
		return 0, fmt.Errorf("expected xref table at %d, found %q", offset, kw)
	}
	for {
		c, ok := l.peek()
		if !ok {
			return 0, fmt.Errorf("truncated xref table")
		}
		if c == 't' { // trailer
			break
		}
		startObj, err := l.parseObject()
		if err != nil {
			return 0, err
		}
		count, err := l.parseObject()
		if err != nil {
			return 0, err
		}
		first, ok1 := startObj.(int64)
		n, ok2 := count.(int64)
		if !ok1 || !ok2 {
			return 0, fmt.Errorf("malformed xref subsection header")
		}
		for i := int64(0); i < n; i++ {
			l.skipWS()
			if l.pos+18 > len(l.data) {
				return 0, fmt.Errorf("truncated xref entry")
			}
			entry := string(l.data[l.pos : l.pos+18])
			l.pos += 18
			off, err := strconv.Atoi(entry[:10])
			if err != nil {
				return 0, fmt.Errorf("malformed xref entry %q", entry)
			}
			kind := entry[17]
			num := int(first + i)
			// Later tables are read first; the newest entry wins.
			if _, exists := p.offsets[num]; !exists && kind == 'n' {
				p.offsets[num] = off
			}
		}
	}
	if kw := l.parseKeyword(); kw != "trailer" {
		return 0, fmt.Errorf("expected trailer, found %q", kw)
	}
	tr, err := l.parseDict()
	if err != nil {
		return 0, err
	}
	for k, v := range tr {
		if _, exists := p.trailer[k]; !exists {
			p.trailer[k] = v
		}
	}
	if prev, ok := tr.intVal("Prev"); ok {
		return prev, nil
	}
	return 0, nil
}

var objHeaderRe = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// rebuildXref recovers object offsets by scanning for "N G obj" headers and
// reassembles the trailer from trailer dictionaries or the catalog object.
func (p *parser) rebuildXref() error {
	p.offsets = make(map[int]int)
	for _, m := range objHeaderRe.FindAllSubmatchIndex(p.data, -1) {
		num, err := strconv.Atoi(string(p.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		start := m[0]
		for start < m[2] && (p.data[start] == ' ' || p.data[start] == '\t') {
			start++
		}
		p.offsets[num] = start // later definitions overwrite earlier ones
	}
	if len(p.offsets) == 0 {
		return fmt.Errorf("no objects found")
	}
	for _, m := range regexp.MustCompile(`trailer`).FindAllIndex(p.data, -1) {
		l := &lexer{data: p.data, pos: m[1]}
		if tr, err := l.parseDict(); err == nil {
			for k, v := range tr {
				p.trailer[k] = v
			}
		}
	}
	if _, ok := p.trailer["Root"]; !ok {
		for num := range p.offsets {
			if d, ok := p.loadObject(num).(dict); ok && d.nameVal("Type") == "Catalog" {
				p.trailer["Root"] = ref{num: num}
				break
			}
		}
	}
	if _, ok := p.trailer["Root"]; !ok {
		return fmt.Errorf("no document catalog found")
	}
	return nil
}

// resolve dereferences indirect references, returning direct values as-is.
func (p *parser) resolve(v any) any {
	for i := 0; i < 32; i++ { // cycle guard
		r, ok := v.(ref)
		if !ok {
			return v
		}
		v = p.loadObject(r.num)
	}
	return nil
}

// loadObject parses the object at the recorded offset, decrypting strings
// and stream payloads when a file key is available.
func (p *parser) loadObject(num int) any {
	if v, ok := p.cache[num]; ok {
		return v
	}
	off, ok := p.offsets[num]
	if !ok || off >= len(p.data) {
		return nil
	}
	l := &lexer{data: p.data, pos: off}
	objNum, err := l.parseObject()
	if err != nil {
		return nil
	}
	gen, err := l.parseObject()
	if err != nil {
		return nil
	}
	if kw := l.parseKeyword(); kw != "obj" {
		return nil
	}
	n, _ := objNum.(int64)
	g, _ := gen.(int64)
	if int(n) != num {
		return nil
	}
	val, err := l.parseObject()
	if err != nil {
		return nil
	}
	if d, ok := val.(dict); ok {
		save := l.pos
		if kw := l.parseKeyword(); kw == "stream" {
			val = p.readStream(l, d)
		} else {
			l.pos = save
		}
	}
	if p.crypt != nil && p.crypt.fileKey != nil {
		val = p.decryptValue(val, num, int(g))
	}
	// Do not cache values read before the decryption key exists; they
	// would shadow the decrypted form.
	if p.crypt == nil || p.crypt.fileKey != nil {
		p.cache[num] = val
	}
	return val
}

// readStream consumes the stream payload following a dictionary. The
// /Length entry is authoritative; a scan for endstream covers files where
// it is wrong.
func (p *parser) readStream(l *lexer, d dict) *streamObj {
	// EOL after the stream keyword.
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
	start := l.pos
	length := -1
	if v, ok := p.resolve(d["Length"]).(int64); ok {
		length = int(v)
	}
	if length >= 0 && start+length <= len(l.data) {
		tail := l.data[start+length:]
		probe := &lexer{data: tail}
		if probe.parseKeyword() == "endstream" {
			return &streamObj{dict: d, data: l.data[start : start+length]}
		}
	}
	if idx := bytes.Index(l.data[start:], []byte("endstream")); idx >= 0 {
		end := start + idx
		for end > start && (l.data[end-1] == '\n' || l.data[end-1] == '\r') {
			end--
		}
		return &streamObj{dict: d, data: l.data[start:end]}
	}
	return &streamObj{dict: d, data: nil}
}

// decryptValue applies the per-object key to every string and stream
// payload inside v.
func (p *parser) decryptValue(v any, num, gen int) any {
	switch t := v.(type) {
	case strval:
		return strval(p.crypt.decrypt(num, gen, []byte(t)))
	case []any:
		for i := range t {
			t[i] = p.decryptValue(t[i], num, gen)
		}
		return t
	case dict:
		for k, e := range t {
			t[k] = p.decryptValue(e, num, gen)
		}
		return t
	case *streamObj:
		t.data = p.crypt.decrypt(num, gen, t.data)
		return t
	}
	return v
}

// streamData returns the stream payload with its flate filter undone. DCT
// streams pass through so JPEG images keep their native encoding.
func (p *parser) streamData(s *streamObj) ([]byte, error) {
	filter := s.dict.nameVal("Filter")
	if filter == "" {
		if arr, ok := s.dict["Filter"].([]any); ok && len(arr) > 0 {
			if n, ok := arr[0].(name); ok {
				filter = string(n)
			}
		}
	}
	switch filter {
	case "":
		return s.data, nil
	case "FlateDecode":
		zr, err := zlib.NewReader(bytes.NewReader(s.data))
		if err != nil {
			return nil, fmt.Errorf("inflate stream: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate stream: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported stream filter %q", filter)
	}
}

// buildPages walks the page tree and materializes every leaf page.
func (p *parser) buildPages(doc *Document) error {
	root, ok := p.resolve(p.trailer["Root"]).(dict)
	if !ok {
		return fmt.Errorf("read pdf: malformed document catalog")
	}
	pagesNode, ok := p.resolve(root["Pages"]).(dict)
	if !ok {
		return fmt.Errorf("read pdf: catalog has no page tree")
	}
	return p.walkPages(doc, pagesNode, nil, nil, 0)
}

func (p *parser) walkPages(doc *Document, node dict, mediaBox []any, resources dict, depth int) error {
	if depth > 64 {
		return fmt.Errorf("read pdf: page tree too deep")
	}
	if mb, ok := p.resolve(node["MediaBox"]).([]any); ok {
		mediaBox = mb
	}
	if res, ok := p.resolve(node["Resources"]).(dict); ok {
		resources = res
	}
	switch node.nameVal("Type") {
	case "Pages", "":
		kids, ok := p.resolve(node["Kids"]).([]any)
		if !ok {
			return fmt.Errorf("read pdf: page tree node has no kids")
		}
		for _, kid := range kids {
			child, ok := p.resolve(kid).(dict)
			if !ok {
				continue
			}
			if err := p.walkPages(doc, child, mediaBox, resources, depth+1); err != nil {
				return err
			}
		}
		return nil
	case "Page":
		return p.buildPage(doc, node, mediaBox, resources)
	default:
		return nil
	}
}

func (p *parser) buildPage(doc *Document, node dict, mediaBox []any, resources dict) error {
	width, height := 612.0, 792.0
	if len(mediaBox) == 4 {
		x0, _ := numToFloat(p.resolve(mediaBox[0]))
		y0, _ := numToFloat(p.resolve(mediaBox[1]))
		x1, _ := numToFloat(p.resolve(mediaBox[2]))
		y1, _ := numToFloat(p.resolve(mediaBox[3]))
		width, height = x1-x0, y1-y0
	}
	page := doc.AddPage(width, height)

	content, err := p.pageContent(node)
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	xobjects := make(dict)
	if resources != nil {
		if xo, ok := p.resolve(resources["XObject"]).(dict); ok {
			xobjects = xo
		}
	}
	return p.parseContent(page, content, xobjects)
}

// pageContent concatenates the decoded /Contents streams.
func (p *parser) pageContent(node dict) ([]byte, error) {
	var streams []*streamObj
	switch c := p.resolve(node["Contents"]).(type) {
	case *streamObj:
		streams = append(streams, c)
	case []any:
		for _, item := range c {
			if s, ok := p.resolve(item).(*streamObj); ok {
				streams = append(streams, s)
			}
		}
	case nil:
		return nil, nil
	}
	var out []byte
	for _, s := range streams {
		data, err := p.streamData(s)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, data...)
	}
	return out, nil
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix struct{ a, b, c, d, e, f float64 }

var identity = matrix{a: 1, d: 1}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		a: m.a*n.a + m.b*n.c,
		b: m.a*n.b + m.b*n.d,
		c: m.c*n.a + m.d*n.c,
		d: m.c*n.b + m.d*n.d,
		e: m.e*n.a + m.f*n.c + n.e,
		f: m.e*n.b + m.f*n.d + n.f,
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.e, m.b*x + m.d*y + m.f
}

// gstate is the subset of graphics state the content walk tracks.
type gstate struct {
	ctm  matrix
	fill Color
}

// parseContent replays a content stream, collecting text spans, fill
// rectangles and placed images. Text positions use the standard baseline
// operators; glyph extents come from the built-in font metrics.
func (p *parser) parseContent(page *Page, content []byte, xobjects dict) error {
	l := &lexer{data: content}
	var operands []any

	gs := gstate{ctm: identity, fill: Black}
	var gsStack []gstate

	var (
		inText       bool
		fontSize     float64
		lineX, lineY float64
		curX, curY   float64
		leading      float64
		pendingRects []Rect
	)

	num := func(i int) float64 {
		if i < 0 || i >= len(operands) {
			return 0
		}
		v, _ := numToFloat(operands[i])
		return v
	}

	emit := func(raw strval) {
		text := string(raw)
		if text == "" {
			return
		}
		px, py := gs.ctm.apply(curX, curY)
		y0 := page.Height - py - 0.8*fontSize
		w := textWidth(text, fontSize)
		page.Spans = append(page.Spans, TextSpan{
			Text:  text,
			Size:  fontSize,
			Color: gs.fill,
			Box:   Rect{X0: px, Y0: y0, X1: px + w, Y1: y0 + fontSize},
		})
		curX += w
	}
	nextLine := func() {
		lineY -= leading
		curX, curY = lineX, lineY
	}

	for {
		if _, ok := l.peek(); !ok {
			return nil
		}
		c := l.data[l.pos]
		if c == '/' || c == '(' || c == '<' || c == '[' ||
			c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			op, err := l.parseObject()
			if err != nil {
				return fmt.Errorf("parse content stream: %w", err)
			}
			operands = append(operands, op)
			continue
		}

		kw := l.parseKeyword()
		switch kw {
		case "q":
			gsStack = append(gsStack, gs)
		case "Q":
			if n := len(gsStack); n > 0 {
				gs = gsStack[n-1]
				gsStack = gsStack[:n-1]
			}
		case "cm":
			if len(operands) >= 6 {
				m := matrix{a: num(0), b: num(1), c: num(2), d: num(3), e: num(4), f: num(5)}
				gs.ctm = m.mul(gs.ctm)
			}
		case "BT":
			inText = true
			lineX, lineY, curX, curY = 0, 0, 0, 0
		case "ET":
			inText = false
		case "Tf":
			fontSize = num(1)
		case "TL":
			leading = num(0)
		case "Td":
			lineX += num(0)
			lineY += num(1)
			curX, curY = lineX, lineY
		case "TD":
			leading = -num(1)
			lineX += num(0)
			lineY += num(1)
			curX, curY = lineX, lineY
		case "Tm":
			// Only the translation is carried; rotated text is rare in the
			// documents this engine targets.
			lineX, lineY = num(4), num(5)
			curX, curY = lineX, lineY
		case "T*":
			nextLine()
		case "Tj":
			if inText && len(operands) >= 1 {
				if s, ok := operands[0].(strval); ok {
					emit(s)
				}
			}
		case "'":
			if inText && len(operands) >= 1 {
				nextLine()
				if s, ok := operands[0].(strval); ok {
					emit(s)
				}
			}
		case "\"":
			if inText && len(operands) >= 3 {
				nextLine()
				if s, ok := operands[2].(strval); ok {
					emit(s)
				}
			}
		case "TJ":
			if inText && len(operands) >= 1 {
				if arr, ok := operands[0].([]any); ok {
					for _, item := range arr {
						switch v := item.(type) {
						case strval:
							emit(v)
						case int64:
							curX -= float64(v) / 1000 * fontSize
						case float64:
							curX -= v / 1000 * fontSize
						}
					}
				}
			}
		case "rg":
			gs.fill = Color{R: num(0), G: num(1), B: num(2)}
		case "g":
			v := num(0)
			gs.fill = Color{R: v, G: v, B: v}
		case "re":
			if len(operands) >= 4 {
				x, y, w, h := num(0), num(1), num(2), num(3)
				px0, py0 := gs.ctm.apply(x, y)
				px1, py1 := gs.ctm.apply(x+w, y+h)
				pendingRects = append(pendingRects, Rect{
					X0: minf(px0, px1),
					Y0: page.Height - maxf(py0, py1),
					X1: maxf(px0, px1),
					Y1: page.Height - minf(py0, py1),
				})
			}
		case "f", "F", "f*":
			for _, r := range pendingRects {
				page.Fills = append(page.Fills, FillRect{Box: r, Color: gs.fill})
			}
			pendingRects = nil
		case "n", "W", "W*", "S", "s", "B", "B*", "b", "b*":
			pendingRects = nil
		case "Do":
			if len(operands) >= 1 {
				if xname, ok := operands[0].(name); ok {
					if err := p.placeImage(page, xobjects, string(xname), gs.ctm); err != nil {
						return err
					}
				}
			}
		}
		operands = operands[:0]
	}
}

// placeImage resolves an image XObject and records it at the box the current
// transformation matrix paints it into.
func (p *parser) placeImage(page *Page, xobjects dict, xname string, ctm matrix) error {
	s, ok := p.resolve(xobjects[xname]).(*streamObj)
	if !ok {
		return nil
	}
	if s.dict.nameVal("Subtype") != "Image" {
		return nil
	}
	w, _ := s.dict.intVal("Width")
	h, _ := s.dict.intVal("Height")
	filter := s.dict.nameVal("Filter")
	if filter == "" {
		if arr, ok := s.dict["Filter"].([]any); ok && len(arr) > 0 {
			if n, ok := arr[0].(name); ok {
				filter = string(n)
			}
		}
	}
	// The unit square maps through the CTM to the paint area.
	x0, y0 := ctm.apply(0, 0)
	x1, y1 := ctm.apply(1, 1)
	box := Rect{
		X0: minf(x0, x1),
		Y0: page.Height - maxf(y0, y1),
		X1: maxf(x0, x1),
		Y1: page.Height - minf(y0, y1),
	}
	page.Images = append(page.Images, ImageObject{
		Width:  int(w),
		Height: int(h),
		Data:   s.data,
		Filter: filter,
		Box:    box,
	})
	return nil
}
