// Package annotate draws the rep counter, feedback banner and pose skeleton
// onto video frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/kdimtricp/repcoach/internal/pose"
)

const (
	boxWidth  = 150
	boxHeight = 100
	boxMargin = 20

	bannerPadding = 10
	bannerAlpha   = 0.6

	minVisibility = 0.5
	// Joints further than this outside the normalised frame are not drawn.
	maxOffFrame = 1.0
	jointRadius   = 3
	limbThickness = 2
)

var (
	counterColor = color.RGBA{R: 66, G: 117, B: 245, A: 255}
	limbColor    = color.RGBA{R: 230, G: 66, B: 245, A: 255}
	jointColor   = color.RGBA{R: 66, G: 117, B: 245, A: 255}
	warnColor    = color.RGBA{R: 255, A: 255}
	okColor      = color.RGBA{G: 255, A: 255}
)

// Overlay is what gets drawn on a single frame.
type Overlay struct {
	Count     int
	Feedback  string
	Landmarks *pose.Landmarks
}

type Annotator struct {
	countFace    font.Face
	labelFace    font.Face
	feedbackFace font.Face
}

func New() (*Annotator, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	newFace := func(size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}

	a := &Annotator{}
	if a.countFace, err = newFace(56); err != nil {
		return nil, fmt.Errorf("failed to create counter face: %w", err)
	}
	if a.labelFace, err = newFace(18); err != nil {
		return nil, fmt.Errorf("failed to create label face: %w", err)
	}
	if a.feedbackFace, err = newFace(32); err != nil {
		return nil, fmt.Errorf("failed to create feedback face: %w", err)
	}
	return a, nil
}

// Annotate returns a copy of img with the overlay drawn on it. img itself is
// never modified.
func (a *Annotator) Annotate(img image.Image, ov Overlay) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if ov.Landmarks != nil && ov.Landmarks.Valid() {
		drawSkeleton(dst, *ov.Landmarks)
	}

	a.drawCounter(dst, ov.Count)

	if ov.Feedback != "" {
		a.drawBanner(dst, ov.Feedback)
	}

	return dst
}

// drawCounter paints the rep box in the bottom-right corner.
func (a *Annotator) drawCounter(dst *image.RGBA, count int) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	box := image.Rect(w-boxWidth-boxMargin, h-boxHeight-boxMargin, w-boxMargin, h-boxMargin)
	box = box.Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	draw.Draw(dst, box, image.NewUniform(counterColor), image.Point{}, draw.Src)

	drawText(dst, a.labelFace, "REPS", w-boxWidth+40, h-90)
	drawText(dst, a.countFace, strconv.Itoa(count), w-boxWidth+30, h-40)
}

// drawBanner centres the feedback text over a translucent background: red
// for corrections (text containing "!"), green otherwise.
func (a *Annotator) drawBanner(dst *image.RGBA, text string) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()

	tw := font.MeasureString(a.feedbackFace, text).Ceil()
	th := a.feedbackFace.Metrics().Ascent.Ceil()

	x := (w - tw) / 2
	y := (h + th) / 2

	bg := okColor
	if strings.Contains(text, "!") {
		bg = warnColor
	}

	rect := image.Rect(x-bannerPadding, y-th-bannerPadding, x+tw+bannerPadding, y+bannerPadding)
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(bannerAlpha * 255))})
	draw.DrawMask(dst, rect.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, mask, image.Point{}, draw.Over)

	drawText(dst, a.feedbackFace, text, x, y)
}

func drawText(dst draw.Image, face font.Face, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawSkeleton(dst *image.RGBA, lm pose.Landmarks) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	px := func(i pose.Index) (float32, float32) {
		return float32(lm[i].X * float64(w)), float32(lm[i].Y * float64(h))
	}
	visible := func(i pose.Index) bool {
		return lm[i].Visibility >= minVisibility && onCanvas(lm[i].X) && onCanvas(lm[i].Y)
	}

	limbs := vector.NewRasterizer(w, h)
	drawn := false
	for _, c := range pose.Connections {
		if !visible(c[0]) || !visible(c[1]) {
			continue
		}
		x0, y0 := px(c[0])
		x1, y1 := px(c[1])
		addSegment(limbs, x0, y0, x1, y1, limbThickness)
		drawn = true
	}
	if drawn {
		limbs.Draw(dst, dst.Bounds(), image.NewUniform(limbColor), image.Point{})
	}

	joints := vector.NewRasterizer(w, h)
	drawn = false
	for i := range lm[:pose.NumLandmarks] {
		idx := pose.Index(i)
		if !visible(idx) {
			continue
		}
		x, y := px(idx)
		addCircle(joints, x, y, jointRadius)
		drawn = true
	}
	if drawn {
		joints.Draw(dst, dst.Bounds(), image.NewUniform(jointColor), image.Point{})
	}
}

func onCanvas(v float64) bool {
	return !math.IsNaN(v) && v >= -maxOffFrame && v <= 1+maxOffFrame
}

// addSegment adds a line of the given thickness as a closed quad.
func addSegment(z *vector.Rasterizer, x0, y0, x1, y1, thickness float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*thickness/2, dx/length*thickness/2

	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func addCircle(z *vector.Rasterizer, cx, cy, r float32) {
	const segments = 16
	z.MoveTo(cx+r, cy)
	for i := 1; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		z.LineTo(cx+r*float32(math.Cos(theta)), cy+r*float32(math.Sin(theta)))
	}
	z.ClosePath()
}
