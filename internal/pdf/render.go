package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Render rasterizes the page's image content onto a white canvas at the
// given upscale factor and returns PNG bytes suitable for OCR input. Vector
// text is not painted; the OCR path only ever renders pages whose content is
// a scanned raster plane.
func (p *Page) Render(scale float64) ([]byte, error) {
	w := int(p.Width*scale + 0.5)
	h := int(p.Height*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i := range p.Images {
		frame, err := p.Images[i].Frame()
		if err != nil {
			// An image we cannot decode contributes nothing to the raster;
			// OCR proceeds on whatever else the page holds.
			continue
		}
		box := p.Images[i].Box.Scale(scale)
		dst := image.Rect(int(box.X0), int(box.Y0), int(box.X1+0.5), int(box.Y1+0.5))
		xdraw.ApproxBiLinear.Scale(canvas, dst, frame, frame.Bounds(), xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
