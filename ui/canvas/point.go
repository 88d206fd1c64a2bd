package canvas

import (
	"image"
	"image/color"
	"math"

	"rookery-counter/internal/store"
	"rookery-counter/pkg/colorutil"
	"rookery-counter/pkg/geometry"
)

// Marker is one count record rendered on the photo. Its position lives in
// photo pixel coordinates; rendering scales through the view transform.
type Marker struct {
	Record store.PointRecord
	Kind   store.Kind

	// Dot shading, center out to edge.
	Center color.RGBA
	Edge   color.RGBA

	Size     int // dot diameter in photo pixels
	Label    string
	Selected bool
	Visible  bool
}

// NewMarker builds a marker for a record with the category's brush.
func NewMarker(rec store.PointRecord, kind store.Kind, center, edge color.RGBA, size int) *Marker {
	if size < 2 {
		size = 2
	}
	return &Marker{
		Record:  rec,
		Kind:    kind,
		Center:  center,
		Edge:    edge,
		Size:    size,
		Label:   rec.Category,
		Visible: true,
	}
}

// Bounds returns the marker's hit area in photo coordinates: the dot plus
// the label strip extending to its right.
func (m *Marker) Bounds() geometry.Rect {
	pad := float64(m.Size) * 0.5
	width := float64(len(m.Label)+1) * float64(m.Size)
	return geometry.NewRect(
		float64(m.Record.Left)-pad,
		float64(m.Record.Top)-pad,
		width,
		float64(m.Size),
	)
}

// Contains reports whether a photo coordinate hits the marker.
func (m *Marker) Contains(x, y float64) bool {
	return m.Visible && m.Bounds().Contains(geometry.NewPoint2D(x, y))
}

// In reports whether the marker's dot lies inside a photo-coordinate rect,
// for rubber-band selection.
func (m *Marker) In(r geometry.Rect) bool {
	return m.Visible && r.Contains(geometry.NewPoint2D(float64(m.Record.Left), float64(m.Record.Top)))
}

// Render draws the marker into the view-space output image.
func (m *Marker) Render(output *image.RGBA, vt *viewTransform, showLabel bool) {
	if !m.Visible || m.Record.IsSentinel() {
		return
	}

	vx, vy := vt.ToView(float64(m.Record.Left), float64(m.Record.Top))
	cx, cy := int(math.Round(vx)), int(math.Round(vy))

	radius := int(math.Round(float64(m.Size) * vt.Scale() / 2))
	if radius < 2 {
		radius = 2
	}
	drawGradientDot(output, cx, cy, radius, m.Center, m.Edge)

	scale := int(vt.Scale() * 2)
	if showLabel && m.Label != "" {
		drawText(output, m.Label, cx+radius+scale+2, cy-5*max(scale, 1)/2, scale, m.Edge)
	}

	if m.Selected {
		b := m.Bounds()
		x1, y1 := vt.ToView(b.X, b.Y)
		x2, y2 := vt.ToView(b.X+b.Width, b.Y+b.Height)
		drawDashedRect(output, int(x1), int(y1), int(x2), int(y2), colorutil.Yellow)
	}
}
