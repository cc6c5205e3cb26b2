package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
)

// NewImageObject wraps decoded pixels as a page image. The encoded payload
// is produced lazily at serialization time.
func NewImageObject(img image.Image, box Rect) ImageObject {
	b := img.Bounds()
	return ImageObject{
		Width:  b.Dx(),
		Height: b.Dy(),
		Box:    box,
		frame:  img,
	}
}

// Frame returns the decoded pixels, decoding the stored payload on first
// use.
func (im *ImageObject) Frame() (image.Image, error) {
	if im.frame != nil {
		return im.frame, nil
	}
	switch im.Filter {
	case "DCTDecode":
		img, err := jpeg.Decode(bytes.NewReader(im.Data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg image: %w", err)
		}
		im.frame = img
	case "FlateDecode", "":
		img, err := decodeRawRGB(im.Data, im.Width, im.Height, im.Filter == "FlateDecode")
		if err != nil {
			return nil, err
		}
		im.frame = img
	default:
		return nil, fmt.Errorf("unsupported image filter %q", im.Filter)
	}
	return im.frame, nil
}

// Burn paints opaque black rectangles, given in page coordinates, into the
// image pixels themselves. The previous encoded payload is discarded so the
// original samples cannot be recovered from the written file.
func (im *ImageObject) Burn(boxes []Rect) error {
	src, err := im.Frame()
	if err != nil {
		return err
	}
	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(src.Bounds())
		draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	}
	sx := float64(im.Width) / im.Box.Width()
	sy := float64(im.Height) / im.Box.Height()
	for _, b := range boxes {
		px := image.Rect(
			int((b.X0-im.Box.X0)*sx),
			int((b.Y0-im.Box.Y0)*sy),
			int((b.X1-im.Box.X0)*sx)+1,
			int((b.Y1-im.Box.Y0)*sy)+1,
		).Intersect(rgba.Bounds())
		draw.Draw(rgba, px, image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	im.frame = rgba
	im.Data = nil
	im.Filter = ""
	return nil
}

// encodedStream returns the image payload and filter name for
// serialization. Unmodified images pass their original payload through;
// modified or freshly ingested ones are written as flate-compressed raw RGB
// samples.
func (im *ImageObject) encodedStream() (data []byte, filter string, err error) {
	if im.Data != nil && im.Filter != "" {
		return im.Data, im.Filter, nil
	}
	frame, err := im.Frame()
	if err != nil {
		return nil, "", err
	}
	raw := make([]byte, 0, im.Width*im.Height*3)
	b := frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := frame.At(x, y).RGBA()
			raw = append(raw, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, "", err
	}
	if err := zw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "FlateDecode", nil
}

func decodeRawRGB(data []byte, width, height int, flate bool) (image.Image, error) {
	raw := data
	if flate {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("inflate image stream: %w", err)
		}
		defer zr.Close()
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate image stream: %w", err)
		}
	}
	if len(raw) < width*height*3 {
		return nil, fmt.Errorf("image stream too short: %d bytes for %dx%d", len(raw), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: raw[i], G: raw[i+1], B: raw[i+2], A: 255})
			i += 3
		}
	}
	return img, nil
}
