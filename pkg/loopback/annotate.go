package loopback

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teslashibe/go-signstream/pkg/letters"
)

var (
	landmarkColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	connectionColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	labelColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBackground = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

const (
	landmarkRadius  = 3
	connectionWidth = 2
	labelPadding    = 4
)

// Annotate returns a copy of img with the detected hands drawn over it and
// the translation in the top-left corner.
func Annotate(img image.Image, rec Recognition) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	w, h := float64(b.Dx()), float64(b.Dy())
	for _, hand := range rec.Hands {
		pts := make([]image.Point, len(hand.Landmarks))
		for i, p := range hand.Landmarks {
			pts[i] = image.Pt(int(p.X*w), int(p.Y*h))
		}
		for _, c := range letters.Connections {
			if c[0] < len(pts) && c[1] < len(pts) {
				drawLine(dst, pts[c[0]], pts[c[1]], connectionColor)
			}
		}
		for _, p := range pts {
			fillDisc(dst, p, landmarkRadius, landmarkColor)
		}
	}

	if rec.Translation != "" {
		drawLabel(dst, rec.Translation)
	}
	return dst
}

// drawLine draws a Bresenham line with a square brush.
func drawLine(dst *image.RGBA, a, b image.Point, c color.RGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		brush := image.Rect(x, y, x+connectionWidth, y+connectionWidth).Intersect(dst.Rect)
		draw.Draw(dst, brush, image.NewUniform(c), image.Point{}, draw.Src)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func fillDisc(dst *image.RGBA, center image.Point, r int, c color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y > r*r {
				continue
			}
			p := center.Add(image.Pt(x, y))
			if p.In(dst.Rect) {
				dst.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

func drawLabel(dst *image.RGBA, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	box := image.Rect(0, 0, width+2*labelPadding, height+2*labelPadding).Intersect(dst.Rect)
	draw.Draw(dst, box, image.NewUniform(labelBackground), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(labelPadding, labelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
