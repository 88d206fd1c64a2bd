// Package canvas provides the photo annotation canvas and its drawing
// primitives.
package canvas

import (
	"image"

	"rookery-counter/pkg/colorutil"
	"rookery-counter/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// Mode selects how primary clicks on the photo behave.
type Mode int

const (
	ModeCreatePoints Mode = iota // left click drops a marker
	ModeSelectPoints             // left click/drag selects and moves markers
)

const (
	magnifierZoom = 3.0
	magnifierSize = 160 // box edge in view pixels
	magnifierGap  = 20
)

// AnnotationCanvas displays a survey photo with its markers and handles
// pan, zoom, placement, selection and drag interactions.
type AnnotationCanvas struct {
	widget.BaseWidget

	photo   image.Image
	markers []*Marker
	vt      *viewTransform

	mode       Mode
	showLabels bool
	hiddenCats map[string]bool
	markerSize int

	// Interaction state.
	panning    bool
	panStart   fyne.Position
	panOffset  fyne.Position
	dragTarget *Marker
	dragX      float64 // photo coords of the dragged dot
	dragY      float64
	banding    bool
	bandStart  geometry.Point2D // view coords
	bandEnd    geometry.Point2D

	// Magnifier follows the cursor when armed.
	magnifier bool
	hoverX    float64 // view coords
	hoverY    float64

	raster  *fynecanvas.Raster
	scroll  *zoomScroll
	content *photoContent
	imgSize fyne.Size

	// Callbacks.
	onNewPoint           func(left, top int, pickCategory bool)
	onPointsSelected     func(markers []*Marker)
	onPointMoved         func(m *Marker, left, top int) bool
	onPointRemoveRequest func(markers []*Marker)
	onZoomChanged        func(percent int)
}

// zoomScroll wraps a scroll container but intercepts the wheel for zoom.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	canvas *AnnotationCanvas
}

func newZoomScroll(content fyne.CanvasObject, canvas *AnnotationCanvas) *zoomScroll {
	scroll := container.NewScroll(content)
	scroll.Direction = container.ScrollBoth
	zs := &zoomScroll{scroll: scroll, canvas: canvas}
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) Scrolled(ev *fyne.ScrollEvent) {
	// Wheel is zoom, not scroll.
	if ev.Scrolled.DY > 0 {
		zs.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		zs.canvas.ZoomOut()
	}
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Offset returns the scroll container's current offset.
func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

// ScrollTo moves the viewport to the given offset.
func (zs *zoomScroll) ScrollTo(pos fyne.Position) {
	zs.scroll.Offset = pos
	zs.scroll.Refresh()
}

// Size returns the scroll container's size.
func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

// Refresh refreshes the scroll container.
func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

// Resize sets the size of the scroll container.
func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
	zs.canvas.vt.SetViewSize(float64(size.Width), float64(size.Height))
}

// photoContent wraps the raster and translates raw mouse events into the
// canvas interaction state machine.
type photoContent struct {
	widget.BaseWidget
	canvas *AnnotationCanvas
	raster *fynecanvas.Raster
}

func newPhotoContent(ac *AnnotationCanvas, raster *fynecanvas.Raster) *photoContent {
	pc := &photoContent{canvas: ac, raster: raster}
	pc.ExtendBaseWidget(pc)
	return pc
}

func (pc *photoContent) CreateRenderer() fyne.WidgetRenderer {
	return &photoContentRenderer{content: pc}
}

func (pc *photoContent) MinSize() fyne.Size {
	return pc.raster.MinSize()
}

// viewPos converts an event position to canvas view coordinates.
func (pc *photoContent) viewPos(pos fyne.Position) (float64, float64) {
	offset := pc.canvas.scroll.Offset()
	return float64(pos.X + offset.X), float64(pos.Y + offset.Y)
}

func (pc *photoContent) MouseDown(ev *desktop.MouseEvent) {
	x, y := pc.viewPos(ev.Position)
	pick := ev.Modifier&fyne.KeyModifierAlt != 0
	pc.canvas.pressAt(ev.Button, x, y, pick)
}

func (pc *photoContent) MouseUp(ev *desktop.MouseEvent) {
	x, y := pc.viewPos(ev.Position)
	pc.canvas.releaseAt(ev.Button, x, y)
}

func (pc *photoContent) MouseIn(ev *desktop.MouseEvent) {
	x, y := pc.viewPos(ev.Position)
	pc.canvas.moveTo(x, y)
}

func (pc *photoContent) MouseMoved(ev *desktop.MouseEvent) {
	x, y := pc.viewPos(ev.Position)
	pc.canvas.moveTo(x, y)
}

func (pc *photoContent) MouseOut() {}

func (pc *photoContent) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY > 0 {
		pc.canvas.ZoomIn()
	} else if ev.Scrolled.DY < 0 {
		pc.canvas.ZoomOut()
	}
}

type photoContentRenderer struct {
	content *photoContent
}

func (r *photoContentRenderer) Layout(size fyne.Size) {
	r.content.raster.Resize(size)
}

func (r *photoContentRenderer) MinSize() fyne.Size {
	return r.content.raster.MinSize()
}

func (r *photoContentRenderer) Refresh() {
	r.content.raster.Refresh()
}

func (r *photoContentRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.content.raster}
}

func (r *photoContentRenderer) Destroy() {}

// New creates an empty annotation canvas in point-creation mode.
func New() *AnnotationCanvas {
	ac := &AnnotationCanvas{
		vt:         newViewTransform(),
		mode:       ModeCreatePoints,
		showLabels: true,
		hiddenCats: make(map[string]bool),
		markerSize: 8,
		imgSize:    fyne.NewSize(400, 300),
	}

	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.raster.ScaleMode = fynecanvas.ImageScalePixels
	ac.raster.SetMinSize(ac.imgSize)

	ac.content = newPhotoContent(ac, ac.raster)
	ac.scroll = newZoomScroll(ac.content, ac)

	ac.ExtendBaseWidget(ac)
	return ac
}

// Container returns the canvas container for embedding in layouts.
func (ac *AnnotationCanvas) Container() fyne.CanvasObject {
	return ac.scroll
}

// SetPhoto replaces the displayed photo, clears all markers and fits the
// view. A nil photo blanks the canvas.
func (ac *AnnotationCanvas) SetPhoto(img image.Image) {
	ac.photo = img
	ac.markers = nil
	ac.dragTarget = nil
	ac.banding = false
	if img != nil {
		b := img.Bounds()
		ac.vt.SetImageSize(b.Dx(), b.Dy())
	} else {
		ac.vt.SetImageSize(0, 0)
	}
	ac.updateContentSize()
	ac.zoomChanged()
}

// PhotoSize returns the photo dimensions in pixels.
func (ac *AnnotationCanvas) PhotoSize() (w, h int) {
	if ac.photo == nil {
		return 0, 0
	}
	b := ac.photo.Bounds()
	return b.Dx(), b.Dy()
}

// SetMode switches between point creation and selection.
func (ac *AnnotationCanvas) SetMode(mode Mode) {
	ac.mode = mode
	if mode == ModeCreatePoints {
		ac.ClearSelection()
	}
}

// Mode returns the active interaction mode.
func (ac *AnnotationCanvas) Mode() Mode {
	return ac.mode
}

// AddMarker places a marker on the canvas.
func (ac *AnnotationCanvas) AddMarker(m *Marker) {
	m.Size = ac.markerSize
	m.Visible = !ac.hiddenCats[m.Record.Category]
	ac.markers = append(ac.markers, m)
	ac.Refresh()
}

// RemoveMarker takes a marker off the canvas.
func (ac *AnnotationCanvas) RemoveMarker(m *Marker) {
	for i, existing := range ac.markers {
		if existing == m {
			ac.markers = append(ac.markers[:i], ac.markers[i+1:]...)
			break
		}
	}
	if ac.dragTarget == m {
		ac.dragTarget = nil
	}
	ac.Refresh()
}

// Markers returns a snapshot of the markers currently on the canvas.
// Callers may add or remove markers while iterating the result.
func (ac *AnnotationCanvas) Markers() []*Marker {
	return append([]*Marker(nil), ac.markers...)
}

// SelectedMarkers returns the markers in the current selection.
func (ac *AnnotationCanvas) SelectedMarkers() []*Marker {
	var out []*Marker
	for _, m := range ac.markers {
		if m.Selected {
			out = append(out, m)
		}
	}
	return out
}

// ClearSelection deselects all markers.
func (ac *AnnotationCanvas) ClearSelection() {
	for _, m := range ac.markers {
		m.Selected = false
	}
	ac.Refresh()
}

// RequestRemoveSelected asks the host to delete the selected markers.
func (ac *AnnotationCanvas) RequestRemoveSelected() {
	selected := ac.SelectedMarkers()
	if len(selected) > 0 && ac.onPointRemoveRequest != nil {
		ac.onPointRemoveRequest(selected)
	}
}

// SetLabelsVisible toggles category labels next to the dots.
func (ac *AnnotationCanvas) SetLabelsVisible(visible bool) {
	ac.showLabels = visible
	ac.Refresh()
}

// SetCategoryVisible hides or shows every marker of one category.
func (ac *AnnotationCanvas) SetCategoryVisible(category string, visible bool) {
	if visible {
		delete(ac.hiddenCats, category)
	} else {
		ac.hiddenCats[category] = true
	}
	for _, m := range ac.markers {
		if m.Record.Category == category {
			m.Visible = visible
		}
	}
	ac.Refresh()
}

// SetMarkerSize changes the dot diameter for all markers.
func (ac *AnnotationCanvas) SetMarkerSize(size int) {
	if size < 2 {
		size = 2
	}
	ac.markerSize = size
	for _, m := range ac.markers {
		m.Size = size
	}
	ac.Refresh()
}

// ToggleMagnifier arms or disarms the loupe that follows the cursor.
func (ac *AnnotationCanvas) ToggleMagnifier() {
	ac.magnifier = !ac.magnifier
	ac.Refresh()
}

// ZoomIn advances one wheel tick in.
func (ac *AnnotationCanvas) ZoomIn() {
	if ac.vt.WheelTick(true) {
		ac.updateContentSize()
		ac.zoomChanged()
	}
}

// ZoomOut backs off one wheel tick, stopping at the fit scale.
func (ac *AnnotationCanvas) ZoomOut() {
	if ac.vt.WheelTick(false) {
		ac.updateContentSize()
		ac.zoomChanged()
	}
}

// FitToView scales the photo to the viewport.
func (ac *AnnotationCanvas) FitToView() {
	viewSize := ac.scroll.Size()
	if viewSize.Width > 0 && viewSize.Height > 0 {
		ac.vt.SetViewSize(float64(viewSize.Width), float64(viewSize.Height))
	}
	ac.vt.FitToView()
	ac.updateContentSize()
	ac.zoomChanged()
}

// ZoomPercent returns the zoom relative to fit, where fit is 100.
func (ac *AnnotationCanvas) ZoomPercent() int {
	return ac.vt.Percent()
}

// OnNewPoint is called with photo pixel coordinates when a primary click
// lands on the photo in creation mode. pickCategory is true for Alt-clicks.
func (ac *AnnotationCanvas) OnNewPoint(callback func(left, top int, pickCategory bool)) {
	ac.onNewPoint = callback
}

// OnPointsSelected is called when a rubber-band selection completes.
func (ac *AnnotationCanvas) OnPointsSelected(callback func(markers []*Marker)) {
	ac.onPointsSelected = callback
}

// OnPointMoved is called when a marker drag ends inside the photo. Return
// false to reject the move; the marker snaps back.
func (ac *AnnotationCanvas) OnPointMoved(callback func(m *Marker, left, top int) bool) {
	ac.onPointMoved = callback
}

// OnPointRemoveRequested is called with the selection to delete.
func (ac *AnnotationCanvas) OnPointRemoveRequested(callback func(markers []*Marker)) {
	ac.onPointRemoveRequest = callback
}

// OnZoomChanged is called with the new zoom percent after any zoom change.
func (ac *AnnotationCanvas) OnZoomChanged(callback func(percent int)) {
	ac.onZoomChanged = callback
}

func (ac *AnnotationCanvas) zoomChanged() {
	if ac.onZoomChanged != nil {
		ac.onZoomChanged(ac.vt.Percent())
	}
}

// markerAt finds the topmost visible marker whose hit area covers a photo
// coordinate.
func (ac *AnnotationCanvas) markerAt(imgX, imgY float64) *Marker {
	for i := len(ac.markers) - 1; i >= 0; i-- {
		if ac.markers[i].Contains(imgX, imgY) {
			return ac.markers[i]
		}
	}
	return nil
}

// pressAt starts an interaction at view coordinates (x, y).
func (ac *AnnotationCanvas) pressAt(btn desktop.MouseButton, x, y float64, pickCategory bool) {
	switch btn {
	case desktop.MouseButtonTertiary:
		ac.ToggleMagnifier()

	case desktop.MouseButtonSecondary:
		ac.panning = true
		ac.panStart = fyne.NewPos(float32(x), float32(y))
		ac.panOffset = ac.scroll.Offset()

	case desktop.MouseButtonPrimary:
		imgX, imgY := ac.vt.ToImage(x, y)
		switch ac.mode {
		case ModeCreatePoints:
			left, top := int(imgX), int(imgY)
			// Clicks in the negative margin are discarded.
			if left < 0 || top < 0 || !ac.vt.InBounds(left, top) {
				return
			}
			if ac.onNewPoint != nil {
				ac.onNewPoint(left, top, pickCategory)
			}

		case ModeSelectPoints:
			if m := ac.markerAt(imgX, imgY); m != nil {
				ac.dragTarget = m
				ac.dragX = float64(m.Record.Left)
				ac.dragY = float64(m.Record.Top)
				return
			}
			ac.banding = true
			ac.bandStart = geometry.NewPoint2D(x, y)
			ac.bandEnd = ac.bandStart
		}
	}
}

// moveTo advances the active interaction to view coordinates (x, y).
func (ac *AnnotationCanvas) moveTo(x, y float64) {
	ac.hoverX, ac.hoverY = x, y

	switch {
	case ac.panning:
		dx := float32(x) - ac.panStart.X
		dy := float32(y) - ac.panStart.Y
		ac.scroll.ScrollTo(fyne.NewPos(ac.panOffset.X-dx, ac.panOffset.Y-dy))

	case ac.dragTarget != nil:
		ac.dragX, ac.dragY = ac.vt.ToImage(x, y)
		ac.Refresh()

	case ac.banding:
		ac.bandEnd = geometry.NewPoint2D(x, y)
		ac.Refresh()

	case ac.magnifier:
		ac.Refresh()
	}
}

// releaseAt finishes the active interaction at view coordinates (x, y).
func (ac *AnnotationCanvas) releaseAt(btn desktop.MouseButton, x, y float64) {
	switch btn {
	case desktop.MouseButtonSecondary:
		ac.panning = false

	case desktop.MouseButtonPrimary:
		switch {
		case ac.dragTarget != nil:
			ac.finishDrag(x, y)

		case ac.banding:
			ac.banding = false
			ac.finishBand(x, y)
		}
	}
}

func (ac *AnnotationCanvas) finishDrag(x, y float64) {
	m := ac.dragTarget
	ac.dragTarget = nil

	imgX, imgY := ac.vt.ToImage(x, y)
	left, top := int(imgX), int(imgY)

	// Out-of-photo drops and no-op drags snap back.
	if !ac.vt.InBounds(left, top) ||
		(left == m.Record.Left && top == m.Record.Top) {
		ac.Refresh()
		return
	}

	if ac.onPointMoved != nil && !ac.onPointMoved(m, left, top) {
		ac.Refresh()
		return
	}

	m.Record.Left = left
	m.Record.Top = top
	ac.Refresh()
}

func (ac *AnnotationCanvas) finishBand(x, y float64) {
	ac.bandEnd = geometry.NewPoint2D(x, y)

	x1, y1 := ac.vt.ToImage(ac.bandStart.X, ac.bandStart.Y)
	x2, y2 := ac.vt.ToImage(ac.bandEnd.X, ac.bandEnd.Y)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	rect := geometry.NewRect(x1, y1, x2-x1, y2-y1)

	var selected []*Marker
	for _, m := range ac.markers {
		m.Selected = m.In(rect)
		if m.Selected {
			selected = append(selected, m)
		}
	}

	if len(selected) > 0 && ac.onPointsSelected != nil {
		ac.onPointsSelected(selected)
	}
	ac.Refresh()
}

// Refresh redraws the canvas.
func (ac *AnnotationCanvas) Refresh() {
	ac.raster.Refresh()
}

// updateContentSize resizes the raster to the zoomed photo.
func (ac *AnnotationCanvas) updateContentSize() {
	w, h := ac.vt.ScaledSize()
	if w <= 0 || h <= 0 {
		ac.imgSize = fyne.NewSize(400, 300)
	} else {
		ac.imgSize = fyne.NewSize(float32(w), float32(h))
	}

	ac.raster.SetMinSize(ac.imgSize)
	ac.raster.Resize(ac.imgSize)
	if ac.content != nil {
		ac.content.Resize(ac.imgSize)
		ac.content.Refresh()
	}
	ac.raster.Refresh()
	if ac.scroll != nil {
		ac.scroll.Refresh()
	}
}

// draw is the raster drawing function.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))

	// Opaque black background.
	for i := 3; i < len(output.Pix); i += 4 {
		output.Pix[i] = 255
	}

	if ac.photo != nil {
		ac.blitPhoto(output, w, h)
	}

	for _, m := range ac.markers {
		if m == ac.dragTarget {
			continue
		}
		m.Render(output, ac.vt, ac.showLabels)
	}

	// The dragged marker follows the cursor as a ghost.
	if ac.dragTarget != nil {
		ghost := *ac.dragTarget
		ghost.Record.Left = int(ac.dragX)
		ghost.Record.Top = int(ac.dragY)
		ghost.Render(output, ac.vt, ac.showLabels)
	}

	if ac.banding {
		drawDashedRect(output,
			int(ac.bandStart.X), int(ac.bandStart.Y),
			int(ac.bandEnd.X), int(ac.bandEnd.Y),
			colorutil.Yellow)
	}

	if ac.magnifier && ac.photo != nil {
		ac.drawMagnifier(output, w, h)
	}

	return output
}

// blitPhoto scales the photo into view space with nearest-neighbor
// sampling, matching the raster's pixel scale mode.
func (ac *AnnotationCanvas) blitPhoto(output *image.RGBA, w, h int) {
	src := ac.photo
	srcBounds := src.Bounds()
	scale := ac.vt.Scale()
	if scale <= 0 {
		return
	}

	for y := 0; y < h; y++ {
		srcY := srcBounds.Min.Y + int(float64(y)/scale)
		if srcY >= srcBounds.Max.Y {
			break
		}
		for x := 0; x < w; x++ {
			srcX := srcBounds.Min.X + int(float64(x)/scale)
			if srcX >= srcBounds.Max.X {
				break
			}
			output.Set(x, y, src.At(srcX, srcY))
		}
	}
}

// drawMagnifier draws a loupe of the pixels under the cursor, flipped to
// the other side when the cursor runs close to a viewport edge.
func (ac *AnnotationCanvas) drawMagnifier(output *image.RGBA, w, h int) {
	srcBounds := ac.photo.Bounds()
	imgX, imgY := ac.vt.ToImage(ac.hoverX, ac.hoverY)

	boxX := int(ac.hoverX) + magnifierGap
	boxY := int(ac.hoverY) + magnifierGap
	if boxX+magnifierSize > w {
		boxX = int(ac.hoverX) - magnifierGap - magnifierSize
	}
	if boxY+magnifierSize > h {
		boxY = int(ac.hoverY) - magnifierGap - magnifierSize
	}

	// Photo pixels per magnifier pixel.
	step := 1.0 / (ac.vt.Scale() * magnifierZoom)
	half := float64(magnifierSize) / 2

	bounds := output.Bounds()
	for dy := 0; dy < magnifierSize; dy++ {
		py := boxY + dy
		if py < bounds.Min.Y || py >= bounds.Max.Y {
			continue
		}
		srcY := srcBounds.Min.Y + int(imgY+(float64(dy)-half)*step)
		for dx := 0; dx < magnifierSize; dx++ {
			px := boxX + dx
			if px < bounds.Min.X || px >= bounds.Max.X {
				continue
			}
			srcX := srcBounds.Min.X + int(imgX+(float64(dx)-half)*step)
			if srcX < srcBounds.Min.X || srcX >= srcBounds.Max.X ||
				srcY < srcBounds.Min.Y || srcY >= srcBounds.Max.Y {
				output.Set(px, py, colorutil.Black)
				continue
			}
			output.Set(px, py, ac.photo.At(srcX, srcY))
		}
	}

	// Loupe border and crosshair center.
	drawLine(output, boxX, boxY, boxX+magnifierSize, boxY, colorutil.Yellow, 1)
	drawLine(output, boxX, boxY+magnifierSize, boxX+magnifierSize, boxY+magnifierSize, colorutil.Yellow, 1)
	drawLine(output, boxX, boxY, boxX, boxY+magnifierSize, colorutil.Yellow, 1)
	drawLine(output, boxX+magnifierSize, boxY, boxX+magnifierSize, boxY+magnifierSize, colorutil.Yellow, 1)
	cx := boxX + magnifierSize/2
	cy := boxY + magnifierSize/2
	drawLine(output, cx-5, cy, cx+5, cy, colorutil.Yellow, 1)
	drawLine(output, cx, cy-5, cx, cy+5, colorutil.Yellow, 1)
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &annotationCanvasRenderer{canvas: ac}
}

type annotationCanvasRenderer struct {
	canvas *AnnotationCanvas
}

func (r *annotationCanvasRenderer) Layout(size fyne.Size) {
	if r.canvas.scroll != nil {
		r.canvas.scroll.Resize(size)
	} else if r.canvas.content != nil {
		r.canvas.content.Resize(size)
	}
}

func (r *annotationCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *annotationCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *annotationCanvasRenderer) Objects() []fyne.CanvasObject {
	if r.canvas.scroll != nil {
		return []fyne.CanvasObject{r.canvas.scroll}
	}
	return []fyne.CanvasObject{r.canvas.content}
}

func (r *annotationCanvasRenderer) Destroy() {}
