package canvas

import (
	"math"

	"rookery-counter/pkg/geometry"
)

// Zoom step per wheel tick. Up and down are exact inverses so a tick
// pair always lands back on the same scale.
const (
	zoomInFactor  = 1.25
	zoomOutFactor = 0.8
)

// viewTransform maps photo pixels to view pixels. Zoom is tracked in
// wheel ticks anchored at the fit-to-view scale: each tick above the fit
// tick is one zoomInFactor step, and zooming below fit snaps back to fit.
type viewTransform struct {
	imageW, imageH int
	viewW, viewH   float64

	scale    float64
	fitScale float64
	ticks    int
	fitTicks int
}

func newViewTransform() *viewTransform {
	return &viewTransform{scale: 1.0, fitScale: 1.0}
}

// SetImageSize resets the transform for a new photo and fits it.
func (vt *viewTransform) SetImageSize(w, h int) {
	vt.imageW, vt.imageH = w, h
	vt.FitToView()
}

// SetViewSize records the viewport size. The current zoom is kept; only
// the fit anchor moves.
func (vt *viewTransform) SetViewSize(w, h float64) {
	vt.viewW, vt.viewH = w, h
	vt.recomputeFit()
}

func (vt *viewTransform) recomputeFit() {
	if vt.imageW <= 0 || vt.imageH <= 0 || vt.viewW <= 0 || vt.viewH <= 0 {
		vt.fitScale = 1.0
		vt.fitTicks = int(math.Floor(vt.fitScale * 10))
		return
	}
	vt.fitScale = math.Min(vt.viewW/float64(vt.imageW), vt.viewH/float64(vt.imageH))
	vt.fitTicks = int(math.Floor(vt.fitScale * 10))
}

// FitToView scales the photo to fill the viewport and re-anchors the
// tick counter there.
func (vt *viewTransform) FitToView() {
	vt.recomputeFit()
	vt.scale = vt.fitScale
	vt.ticks = vt.fitTicks
}

// WheelTick applies one wheel notch. Returns true when the scale changed.
func (vt *viewTransform) WheelTick(up bool) bool {
	before := vt.scale
	if up {
		vt.ticks++
		if vt.ticks > vt.fitTicks {
			vt.scale *= zoomInFactor
		} else {
			vt.scale = vt.fitScale
		}
	} else {
		vt.ticks--
		if vt.ticks > vt.fitTicks {
			vt.scale *= zoomOutFactor
		} else {
			// Cannot zoom out past fit.
			vt.scale = vt.fitScale
			vt.ticks = vt.fitTicks
		}
	}
	return vt.scale != before
}

// Scale returns the current photo-to-view scale factor.
func (vt *viewTransform) Scale() float64 {
	return vt.scale
}

// Percent returns the zoom relative to the fit scale, where fit is 100%.
func (vt *viewTransform) Percent() int {
	if vt.fitScale == 0 {
		return 100
	}
	return int(math.Round(vt.scale / vt.fitScale * 100))
}

// ScaledSize returns the photo's size in view pixels.
func (vt *viewTransform) ScaledSize() (w, h float64) {
	return float64(vt.imageW) * vt.scale, float64(vt.imageH) * vt.scale
}

func (vt *viewTransform) matrix() geometry.AffineTransform {
	return geometry.Scale(vt.scale, vt.scale)
}

// ToView converts photo coordinates to view coordinates.
func (vt *viewTransform) ToView(imgX, imgY float64) (float64, float64) {
	p := vt.matrix().Apply(geometry.NewPoint2D(imgX, imgY))
	return p.X, p.Y
}

// ToImage converts view coordinates back to photo coordinates.
func (vt *viewTransform) ToImage(viewX, viewY float64) (float64, float64) {
	inv, ok := vt.matrix().Inverse()
	if !ok {
		return viewX, viewY
	}
	p := inv.Apply(geometry.NewPoint2D(viewX, viewY))
	return p.X, p.Y
}

// ToImagePixel converts view coordinates to integer photo pixels,
// truncating toward zero the way marker records are keyed.
func (vt *viewTransform) ToImagePixel(viewX, viewY float64) (int, int) {
	x, y := vt.ToImage(viewX, viewY)
	return int(x), int(y)
}

// InBounds reports whether a photo pixel lies on the photo, inclusive of
// the far edge so markers can sit flush against it.
func (vt *viewTransform) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x <= vt.imageW && y <= vt.imageH
}
