package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func addSpan(p *Page, text string, x, y, size float64) {
	p.Spans = append(p.Spans, TextSpan{
		Text:  text,
		Size:  size,
		Color: Black,
		Box:   Rect{X0: x, Y0: y, X1: x + textWidth(text, size), Y1: y + size},
	})
}

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 200, G: 200, B: 200, A: 255}
			if (x/8+y/8)%2 == 0 {
				c = color.RGBA{R: 40, G: 40, B: 40, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// TestRoundTrip serializes a document and parses it back.
func TestRoundTrip(t *testing.T) {
	doc := NewDocument()
	page := doc.AddPage(612, 792)
	addSpan(page, "Name: Rakesh Kumar", 72, 100, 12)
	addSpan(page, "PAN: ABCDE1234F", 72, 120, 12)

	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reread, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(reread.Pages) != 1 {
		t.Fatalf("Expected 1 page, got %d", len(reread.Pages))
	}

	t.Run("TextSurvives", func(t *testing.T) {
		text := reread.Text()
		if !strings.Contains(text, "ABCDE1234F") {
			t.Errorf("Extracted text missing content: %q", text)
		}
	})

	t.Run("SearchBoxesStable", func(t *testing.T) {
		before := page.SearchFor("ABCDE1234F")
		after := reread.Pages[0].SearchFor("ABCDE1234F")
		if len(before) != 1 || len(after) != 1 {
			t.Fatalf("Expected 1 hit before and after, got %d and %d", len(before), len(after))
		}
		for _, pair := range [][2]float64{
			{before[0].X0, after[0].X0},
			{before[0].Y0, after[0].Y0},
			{before[0].X1, after[0].X1},
			{before[0].Y1, after[0].Y1},
		} {
			if diff := pair[0] - pair[1]; diff > 0.5 || diff < -0.5 {
				t.Errorf("Search box drifted: before %+v after %+v", before[0], after[0])
				break
			}
		}
	})

	t.Run("MultiPage", func(t *testing.T) {
		doc := NewDocument()
		for i := 0; i < 3; i++ {
			addSpan(doc.AddPage(612, 792), "page content", 72, 100, 11)
		}
		data, err := doc.Save()
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		reread, err := Read(data)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if len(reread.Pages) != 3 {
			t.Errorf("Expected 3 pages, got %d", len(reread.Pages))
		}
	})
}

// TestRedactionDestroysContent verifies that committed redactions do not
// leave the original glyphs anywhere in the serialized file.
func TestRedactionDestroysContent(t *testing.T) {
	doc := NewDocument()
	page := doc.AddPage(612, 792)
	addSpan(page, "Aadhaar: 1234 5678 9012 end", 72, 100, 12)

	boxes := page.SearchFor("1234 5678 9012")
	if len(boxes) != 1 {
		t.Fatalf("Expected 1 search hit, got %d", len(boxes))
	}
	page.AddRedaction(RedactMark{Box: boxes[0], Mask: "XXXX XXXX 9012"})
	page.ApplyRedactions()

	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reread, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	text := reread.Text()

	if strings.Contains(text, "5678") {
		t.Errorf("Redacted digits survived serialization: %q", text)
	}
	if !strings.Contains(text, "XXXX XXXX 9012") {
		t.Errorf("Mask text missing from output: %q", text)
	}
	if !strings.Contains(text, "Aadhaar:") {
		t.Errorf("Text outside the redaction box was lost: %q", text)
	}

	// The mark must also leave an opaque fill behind.
	found := false
	for _, f := range reread.Pages[0].Fills {
		if f.Color == Black && f.Box.Intersects(boxes[0]) {
			found = true
		}
	}
	if !found {
		t.Error("No opaque fill over the redaction box")
	}
}

// TestEncryptionRoundTrip exercises the standard security handler through
// the writer and back.
func TestEncryptionRoundTrip(t *testing.T) {
	makeEncrypted := func(t *testing.T, opts SaveOptions) []byte {
		t.Helper()
		doc := NewDocument()
		addSpan(doc.AddPage(612, 792), "Phone: 9876543210", 72, 100, 12)
		data, err := doc.SaveWithOptions(opts)
		if err != nil {
			t.Fatalf("SaveWithOptions failed: %v", err)
		}
		return data
	}

	t.Run("LockedUntilAuthenticated", func(t *testing.T) {
		doc, err := Read(makeEncrypted(t, SaveOptions{UserPassword: "secret"}))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !doc.IsEncrypted() {
			t.Fatal("Document not reported as encrypted")
		}
		if len(doc.Pages) != 0 {
			t.Errorf("Locked document exposed %d pages", len(doc.Pages))
		}
		if _, err := doc.Save(); err != ErrLocked {
			t.Errorf("Save on locked document: got %v, want ErrLocked", err)
		}
	})

	t.Run("WrongAndEmptyPasswordRejected", func(t *testing.T) {
		doc, err := Read(makeEncrypted(t, SaveOptions{UserPassword: "secret"}))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if doc.Authenticate("wrong") {
			t.Error("Wrong password accepted")
		}
		if doc.Authenticate("") {
			t.Error("Empty password accepted")
		}
	})

	t.Run("UserPasswordUnlocks", func(t *testing.T) {
		doc, err := Read(makeEncrypted(t, SaveOptions{UserPassword: "secret"}))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !doc.Authenticate("secret") {
			t.Fatal("Correct password rejected")
		}
		if !strings.Contains(doc.Text(), "9876543210") {
			t.Errorf("Decrypted text wrong: %q", doc.Text())
		}
	})

	t.Run("OwnerPasswordUnlocks", func(t *testing.T) {
		doc, err := Read(makeEncrypted(t, SaveOptions{UserPassword: "user", OwnerPassword: "owner"}))
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !doc.Authenticate("owner") {
			t.Fatal("Owner password rejected")
		}
		if !strings.Contains(doc.Text(), "9876543210") {
			t.Errorf("Decrypted text wrong: %q", doc.Text())
		}
	})

	t.Run("UnencryptedNeedsNoPassword", func(t *testing.T) {
		doc := NewDocument()
		doc.AddPage(612, 792)
		if !doc.Authenticate("") {
			t.Error("Unencrypted document refused empty authentication")
		}
	})
}

// TestCutSpan covers glyph removal around a redaction hole.
func TestCutSpan(t *testing.T) {
	span := TextSpan{
		Text: "call 9876543210 now",
		Size: 12,
		Box:  Rect{X0: 0, Y0: 0, X1: textWidth("call 9876543210 now", 12), Y1: 12},
	}
	holeStart := textWidth("call ", 12)
	holeEnd := holeStart + textWidth("9876543210", 12)
	marks := []RedactMark{{Box: Rect{X0: holeStart, Y0: 0, X1: holeEnd, Y1: 12}}}

	frags := cutSpan(span, marks)
	var texts []string
	for _, f := range frags {
		texts = append(texts, f.Text)
	}
	joined := strings.Join(texts, "|")
	if strings.Contains(joined, "9876543210") {
		t.Errorf("Covered glyphs survived: %q", joined)
	}
	if !strings.Contains(joined, "call") || !strings.Contains(joined, "now") {
		t.Errorf("Uncovered glyphs lost: %q", joined)
	}
}

// TestImageRoundTripAndBurn covers image serialization and pixel
// destruction.
func TestImageRoundTripAndBurn(t *testing.T) {
	doc := NewDocument()
	page := doc.AddPage(200, 200)
	box := Rect{X0: 10, Y0: 10, X1: 170, Y1: 170}
	page.Images = append(page.Images, NewImageObject(checkerboard(160, 160), box))

	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reread, err := Read(data)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(reread.Pages[0].Images) != 1 {
		t.Fatalf("Expected 1 image, got %d", len(reread.Pages[0].Images))
	}
	im := &reread.Pages[0].Images[0]
	frame, err := im.Frame()
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if frame.Bounds().Dx() != 160 || frame.Bounds().Dy() != 160 {
		t.Fatalf("Image dimensions wrong: %v", frame.Bounds())
	}

	burn := Rect{X0: 50, Y0: 50, X1: 100, Y1: 100}
	if err := im.Burn([]Rect{burn}); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	frame, _ = im.Frame()
	// The page box maps 10..170 onto pixels 0..160; 60,60 sits inside the
	// burned area, 10,10 outside it.
	r, g, b, _ := frame.At(60, 60).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("Burned pixel not black: %d %d %d", r, g, b)
	}
	r, g, b, _ = frame.At(10, 10).RGBA()
	if r == 0 && g == 0 && b == 0 {
		t.Error("Pixel outside the burn area was blackened")
	}

	// After a burn the original payload must not be reused on save.
	data2, err := reread.Save()
	if err != nil {
		t.Fatalf("Save after burn failed: %v", err)
	}
	again, err := Read(data2)
	if err != nil {
		t.Fatalf("Read after burn failed: %v", err)
	}
	frame2, err := again.Pages[0].Images[0].Frame()
	if err != nil {
		t.Fatalf("Frame after burn failed: %v", err)
	}
	r, g, b, _ = frame2.At(60, 60).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("Burned pixel restored after round trip: %d %d %d", r, g, b)
	}
}

// TestRenderProducesPNG covers page rasterization for the OCR path.
func TestRenderProducesPNG(t *testing.T) {
	doc := NewDocument()
	page := doc.AddPage(100, 150)
	page.Images = append(page.Images,
		NewImageObject(checkerboard(80, 120), Rect{X0: 10, Y0: 15, X1: 90, Y1: 135}))

	raster, err := page.Render(2.0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raster))
	if err != nil {
		t.Fatalf("Render output is not PNG: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 300 {
		t.Errorf("Raster dimensions wrong: %v", img.Bounds())
	}
}

// TestXrefRepair parses a file whose xref offsets are wrong.
func TestXrefRepair(t *testing.T) {
	doc := NewDocument()
	addSpan(doc.AddPage(612, 792), "recoverable", 72, 100, 12)
	data, err := doc.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Corrupt the startxref offset so the repair scan must run.
	broken := bytes.Replace(data, []byte("startxref\n"), []byte("startxref\n9999999 %"), 1)
	reread, err := Read(broken)
	if err != nil {
		t.Fatalf("Read with broken xref failed: %v", err)
	}
	if !strings.Contains(reread.Text(), "recoverable") {
		t.Errorf("Repaired document lost content: %q", reread.Text())
	}
}

func TestSearchForMetrics(t *testing.T) {
	p := &Page{Width: 612, Height: 792}
	addSpan(p, "id ABCDE1234F tail", 50, 60, 10)

	hits := p.SearchFor("ABCDE1234F")
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}
	wantX0 := 50 + textWidth("id ", 10)
	if diff := hits[0].X0 - wantX0; diff > 0.01 || diff < -0.01 {
		t.Errorf("Hit X0 = %f, want %f", hits[0].X0, wantX0)
	}
	if hits[0].Y0 != 60 || hits[0].Y1 != 70 {
		t.Errorf("Hit vertical extent wrong: %+v", hits[0])
	}
	if p.SearchFor("missing") != nil {
		t.Error("Search for absent literal returned hits")
	}
}

func TestAESStreamMalformed(t *testing.T) {
	key := make([]byte, 16)
	cases := map[string]int{
		"Empty":      0,
		"ShortOfIV":  8,
		"IVOnly":     16,
		"RaggedBody": 24,
	}
	for name, size := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := aesCBCDecrypt(key, make([]byte, size)); err == nil {
				t.Errorf("aesCBCDecrypt accepted a %d-byte payload", size)
			}
		})
	}
}
