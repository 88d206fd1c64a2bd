// Package mainwindow provides the main counting window.
package mainwindow

import (
	"context"
	"database/sql"
	"fmt"
	"image/color"
	"log/slog"
	"path/filepath"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/count"
	"rookery-counter/internal/imageio"
	"rookery-counter/internal/session"
	"rookery-counter/internal/store"
	"rookery-counter/pkg/colorutil"
	"rookery-counter/ui/canvas"
	"rookery-counter/ui/dialogs"
	"rookery-counter/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	fynecanvas "fyne.io/fyne/v2/canvas"
)

// CountWindow is the primary application window: the photo list on the
// left, the annotation canvas in the middle, and the marker table on the
// right. Each photo gets its own database transaction, committed when the
// user moves on.
type CountWindow struct {
	fyne.Window
	app     fyne.App
	session *session.Session
	conn    *sql.DB
	prefs   *prefs.Prefs

	photoRoot  string
	files      []string
	currentIdx int

	canvas  *canvas.AnnotationCanvas
	tracker *count.Tracker

	// Per-photo transaction and the stores bound to it.
	tx       *sql.Tx
	points   *store.PointStore
	efforts  *store.EffortStore
	sources  *store.SourceStore
	resolver *count.Resolver
	prompter *dialogs.Prompter

	siteNames  []string
	ghosts     map[*canvas.Marker]bool
	showGhosts bool

	photoList  *widget.List
	pointTable *widget.Table
	tableRows  []*canvas.Marker
	zoomLabel  *widget.Label
	statusBar  *widget.Label
	modeSelect *widget.RadioGroup

	labelsItem *fyne.MenuItem
	ghostsItem *fyne.MenuItem
}

// New creates the counting window over an opened database and survey
// session. siteNames is the reference list of local sites for the site.
func New(fyneApp fyne.App, sess *session.Session, conn *sql.DB, p *prefs.Prefs, photoRoot string, siteNames []string) *CountWindow {
	win := fyneApp.NewWindow("Rookery Counter")

	mw := &CountWindow{
		Window:     win,
		app:        fyneApp,
		session:    sess,
		conn:       conn,
		prefs:      p,
		photoRoot:  photoRoot,
		currentIdx: -1,
		siteNames:  siteNames,
		ghosts:     make(map[*canvas.Marker]bool),
		showGhosts: p.Bool(prefs.KeyShowGhosts, false),
	}
	mw.tracker = count.NewTracker(func(file string) {
		fyne.Do(func() {
			if mw.photoList != nil {
				mw.photoList.Refresh()
			}
		})
	})

	mw.setupUI()
	mw.setupMenus()
	mw.setupShortcuts()
	mw.setupEventHandlers()

	win.Resize(fyne.NewSize(
		float32(p.Float(prefs.KeyWindowWidth, 1280)),
		float32(p.Float(prefs.KeyWindowHeight, 800)),
	))
	win.SetCloseIntercept(mw.onClose)
	return mw
}

func (mw *CountWindow) setupUI() {
	mw.canvas = canvas.New()
	mw.canvas.SetMarkerSize(mw.prefs.Int(prefs.KeyMarkerSize, 8))
	mw.canvas.SetLabelsVisible(mw.prefs.Bool(prefs.KeyLabelsVisible, true))

	mw.canvas.OnNewPoint(mw.onNewPoint)
	mw.canvas.OnPointMoved(mw.onPointMoved)
	mw.canvas.OnPointsSelected(func(markers []*canvas.Marker) {
		mw.updateStatus(fmt.Sprintf("%d points selected", len(markers)))
	})
	mw.canvas.OnPointRemoveRequested(mw.onRemoveMarkers)
	mw.canvas.OnZoomChanged(func(percent int) {
		mw.zoomLabel.SetText(fmt.Sprintf("%d%%", percent))
	})

	mw.statusBar = widget.NewLabel("Choose a photo folder to begin")
	mw.zoomLabel = widget.NewLabel("100%")

	mw.photoList = widget.NewList(
		func() int { return len(mw.files) },
		func() fyne.CanvasObject {
			text := fynecanvas.NewText("", color.Black)
			text.TextSize = 13
			return text
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			text := obj.(*fynecanvas.Text)
			text.Text = mw.files[id]
			text.Color = mw.stateColor(mw.tracker.StateOf(mw.files[id]))
			text.Refresh()
		},
	)
	mw.photoList.OnSelected = func(id widget.ListItemID) {
		if id == mw.currentIdx {
			return
		}
		go mw.switchTo(id)
	}

	mw.pointTable = widget.NewTable(
		func() (int, int) { return len(mw.tableRows) + 1, 4 },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if id.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText([]string{"Category", "Left", "Top", "Site"}[id.Col])
				return
			}
			label.TextStyle = fyne.TextStyle{}
			m := mw.tableRows[id.Row-1]
			switch id.Col {
			case 0:
				label.SetText(m.Record.Category)
			case 1:
				label.SetText(fmt.Sprintf("%d", m.Record.Left))
			case 2:
				label.SetText(fmt.Sprintf("%d", m.Record.Top))
			case 3:
				label.SetText(m.Record.LocalSite)
			}
		},
	)
	mw.pointTable.SetColumnWidth(0, 110)
	mw.pointTable.SetColumnWidth(1, 60)
	mw.pointTable.SetColumnWidth(2, 60)
	mw.pointTable.SetColumnWidth(3, 70)

	toolbar := mw.createToolbar()
	categoryBar := mw.createCategoryBar()

	canvasArea := container.NewBorder(
		container.NewVBox(toolbar, categoryBar),
		nil, nil, nil,
		mw.canvas.Container(),
	)

	split := container.NewHSplit(mw.photoList, canvasArea)
	split.SetOffset(0.18)
	outer := container.NewHSplit(split, mw.pointTable)
	outer.SetOffset(0.8)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil, nil,
		outer,
	)
	mw.SetContent(content)
}

func (mw *CountWindow) createToolbar() fyne.CanvasObject {
	mw.modeSelect = widget.NewRadioGroup([]string{"Create", "Select"}, func(choice string) {
		if choice == "Select" {
			mw.canvas.SetMode(canvas.ModeSelectPoints)
		} else {
			mw.canvas.SetMode(canvas.ModeCreatePoints)
		}
	})
	mw.modeSelect.Horizontal = true
	mw.modeSelect.SetSelected("Create")

	zoomOutBtn := widget.NewButton("-", mw.canvas.ZoomOut)
	zoomInBtn := widget.NewButton("+", mw.canvas.ZoomIn)
	fitBtn := widget.NewButton("Fit", mw.canvas.FitToView)

	return container.NewHBox(
		mw.modeSelect,
		widget.NewSeparator(),
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		fitBtn,
		mw.zoomLabel,
	)
}

// createCategoryBar builds one button per category, in display order, plus
// the two review buttons.
func (mw *CountWindow) createCategoryBar() fyne.CanvasObject {
	bar := container.NewHBox()
	for _, cat := range mw.session.Categories {
		name := cat.Name
		bar.Add(widget.NewButton(name, func() {
			mw.session.SetActiveCategory(name)
		}))
	}
	bar.Add(widget.NewSeparator())
	bar.Add(widget.NewButton("No Animal", func() { go mw.placeSentinel(catalog.NoAnimal) }))
	bar.Add(widget.NewButton("No Marked", func() { go mw.placeSentinel(catalog.NoMarked) }))
	return container.NewHScroll(bar)
}

func (mw *CountWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Choose Photo Folder...", mw.onChooseFolder),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Fill Out Effort...", func() { go mw.onEditEffort() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.onClose() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Change Category...", func() { go mw.onChangeCategory() }),
		fyne.NewMenuItem("Change Local Site...", func() { go mw.onChangeLocalSite() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Delete Selected", mw.canvas.RequestRemoveSelected),
	)

	mw.labelsItem = fyne.NewMenuItem("Show Labels", nil)
	mw.labelsItem.Checked = mw.prefs.Bool(prefs.KeyLabelsVisible, true)
	mw.labelsItem.Action = func() {
		mw.labelsItem.Checked = !mw.labelsItem.Checked
		mw.prefs.SetBool(prefs.KeyLabelsVisible, mw.labelsItem.Checked)
		mw.canvas.SetLabelsVisible(mw.labelsItem.Checked)
	}

	mw.ghostsItem = fyne.NewMenuItem("Show Other Species", nil)
	mw.ghostsItem.Checked = mw.showGhosts
	mw.ghostsItem.Action = func() {
		mw.showGhosts = !mw.showGhosts
		mw.ghostsItem.Checked = mw.showGhosts
		mw.prefs.SetBool(prefs.KeyShowGhosts, mw.showGhosts)
		for m := range mw.ghosts {
			m.Visible = mw.showGhosts
		}
		mw.canvas.Refresh()
	}

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.canvas.ZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.canvas.ZoomOut),
		fyne.NewMenuItem("Fit to Window", mw.canvas.FitToView),
		fyne.NewMenuItemSeparator(),
		mw.labelsItem,
		mw.ghostsItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Marker Size...", mw.onMarkerSize),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, helpMenu))
}

// setupShortcuts binds the three category tiers: 1-9 direct, Ctrl+1-9 for
// the second nine, Alt+1-9 for the third. Delete removes the selection.
func (mw *CountWindow) setupShortcuts() {
	digits := []fyne.KeyName{
		fyne.Key1, fyne.Key2, fyne.Key3, fyne.Key4, fyne.Key5,
		fyne.Key6, fyne.Key7, fyne.Key8, fyne.Key9,
	}

	for i, key := range digits {
		index := i
		mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierControl},
			func(fyne.Shortcut) { mw.selectCategoryIndex(9 + index) })
		mw.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: key, Modifier: fyne.KeyModifierAlt},
			func(fyne.Shortcut) { mw.selectCategoryIndex(18 + index) })
	}

	mw.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			mw.canvas.RequestRemoveSelected()
		default:
			for i, key := range digits {
				if ev.Name == key {
					mw.selectCategoryIndex(i)
					return
				}
			}
		}
	})
}

func (mw *CountWindow) selectCategoryIndex(index int) {
	if cat, ok := mw.session.CategoryAt(index); ok {
		mw.session.SetActiveCategory(cat.Name)
	}
}

func (mw *CountWindow) setupEventHandlers() {
	mw.session.On(session.EventCategoryChanged, func(data interface{}) {
		if name, ok := data.(string); ok {
			fyne.Do(func() { mw.updateStatus("Category: " + name) })
		}
	})
	mw.session.On(session.EventLocalSiteChanged, func(data interface{}) {
		if site, ok := data.(string); ok {
			fyne.Do(func() { mw.updateStatus("Local site: " + site) })
		}
	})
}

func (mw *CountWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *CountWindow) stateColor(state count.FileState) color.Color {
	switch state {
	case count.StateCounted:
		return color.RGBA{R: 0xCC, A: 0xFF}
	case count.StateNoAnimal:
		return color.RGBA{B: 0xCC, A: 0xFF}
	case count.StateNoMarked:
		return color.RGBA{G: 0x99, A: 0xFF}
	default:
		return color.Black
	}
}

// brushFor resolves a category's marker colors, honoring any per-user
// color override.
func (mw *CountWindow) brushFor(cat catalog.Category) (center, edge color.RGBA) {
	edge = colorutil.ParseHexOr(cat.ColorLarge, colorutil.Gray)
	center = colorutil.ParseHexOr(cat.ColorSmall, colorutil.White)
	if override := mw.prefs.String(prefs.ColorKey(cat.Name)); override != "" {
		edge = colorutil.ParseHexOr(override, edge)
	}
	return center, edge
}

// LoadFolder scans a directory for photos, registers them in the count
// source table and fills the photo list.
func (mw *CountWindow) LoadFolder(dir string) error {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return fmt.Errorf("failed to scan photo folder: %w", err)
	}

	var files []string
	for _, path := range entries {
		if imageio.Recognized(path) {
			files = append(files, filepath.Base(path))
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no photos in %s", dir)
	}

	ctx := context.Background()
	sv := mw.session.Survey
	sources := store.NewSourceStore(mw.conn)
	points := store.NewPointStore(mw.conn)
	for _, file := range files {
		if err := sources.Ensure(ctx, sv, file); err != nil {
			return err
		}
		counts, err := points.CountsForFile(ctx, sv, file)
		if err != nil {
			return err
		}
		mw.tracker.Prime(file, counts)
	}

	mw.photoRoot = dir
	mw.files = files
	mw.currentIdx = -1
	mw.prefs.SetString(prefs.KeyLastPhotoDir, dir)
	mw.photoList.Refresh()
	mw.updateStatus(fmt.Sprintf("%d photos in %s", len(files), dir))
	return nil
}

// switchTo commits the current photo and opens another, enforcing the
// review guard. Runs off the UI goroutine.
func (mw *CountWindow) switchTo(id int) {
	if !mw.confirmReviewed() {
		fyne.Do(func() { mw.photoList.Select(mw.currentIdx) })
		return
	}
	mw.commit()
	mw.openPhoto(id)
}

// confirmReviewed enforces the navigation guard: an uncounted photo must
// be marked No Animal, No Marked, or the navigation cancelled.
func (mw *CountWindow) confirmReviewed() bool {
	if mw.currentIdx < 0 {
		return true
	}
	file := mw.files[mw.currentIdx]
	if mw.tracker.StateOf(file) != count.StateUncounted {
		return true
	}

	choice := make(chan string, 1)
	fyne.Do(func() {
		var dlg *dialog.CustomDialog
		pickBtn := func(name string) *widget.Button {
			return widget.NewButton(name, func() {
				choice <- name
				dlg.Hide()
			})
		}
		content := container.NewVBox(
			widget.NewLabel("This photo has no markers. Mark it before moving on?"),
			container.NewHBox(pickBtn("No Animal"), pickBtn("No Marked"), pickBtn("Cancel")),
		)
		dlg = dialog.NewCustomWithoutButtons("Photo Not Counted", content, mw.Window)
		dlg.SetOnClosed(func() {
			select {
			case choice <- "Cancel":
			default:
			}
		})
		dlg.Show()
	})

	switch <-choice {
	case "No Animal":
		mw.placeSentinelOn(file, catalog.NoAnimal)
		return true
	case "No Marked":
		mw.placeSentinelOn(file, catalog.NoMarked)
		return true
	default:
		return false
	}
}

// openPhoto begins a fresh transaction and loads a photo with its markers.
// Runs off the UI goroutine.
func (mw *CountWindow) openPhoto(id int) {
	ctx := context.Background()
	file := mw.files[id]

	tx, err := mw.conn.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin photo transaction", "file", file, "error", err)
		return
	}
	mw.tx = tx
	mw.points = store.NewPointStore(tx)
	mw.efforts = store.NewEffortStore(tx)
	mw.sources = store.NewSourceStore(tx)
	mw.prompter = dialogs.NewPrompter(mw.Window, mw.efforts, mw.siteNames, mw.session.Categories)
	mw.resolver = count.NewResolver(mw.session, count.Deps{
		Points:     mw.points,
		Efforts:    mw.efforts,
		SiteNames:  mw.siteNames,
		Categories: mw.prompter,
		Sites:      mw.prompter,
		Confirm:    mw.prompter,
		EffortEdit: mw.prompter,
		Sink:       mw.tracker,
	})

	img, err := imageio.Decode(filepath.Join(mw.photoRoot, file))
	if err != nil {
		slog.Warn("failed to load photo, using placeholder", "file", file, "error", err)
		img = imageio.Blank(4000, 3000)
	}

	sv := mw.session.Survey
	points, patterns, err := mw.points.AllForFile(ctx, sv, file)
	if err != nil {
		slog.Error("failed to load markers", "file", file, "error", err)
		return
	}
	var ghostPoints, ghostPatterns []store.PointRecord
	ghostPoints, err = mw.points.OtherSpecies(ctx, store.KindPoint, sv, file)
	if err == nil {
		ghostPatterns, err = mw.points.OtherSpecies(ctx, store.KindPattern, sv, file)
	}
	if err != nil {
		slog.Warn("failed to load other-species markers", "file", file, "error", err)
	}

	fyne.Do(func() {
		mw.currentIdx = id
		mw.session.SetCurrentFile(file)
		mw.ghosts = make(map[*canvas.Marker]bool)
		mw.canvas.SetPhoto(img)

		for _, rec := range points {
			mw.addMarkerFor(rec, store.KindPoint)
		}
		for _, rec := range patterns {
			mw.addMarkerFor(rec, store.KindPattern)
		}
		for _, rec := range ghostPoints {
			mw.addGhostFor(rec, store.KindPoint)
		}
		for _, rec := range ghostPatterns {
			mw.addGhostFor(rec, store.KindPattern)
		}

		mw.canvas.FitToView()
		mw.refreshTable()
		mw.SetTitle("Rookery Counter - " + file)
		mw.updateStatus(fmt.Sprintf("%s: %d points", file, len(points)+len(patterns)))
	})
}

func (mw *CountWindow) addMarkerFor(rec store.PointRecord, kind store.Kind) *canvas.Marker {
	cat, ok := catalog.ByName(mw.session.Categories, rec.Category)
	if !ok {
		cat = catalog.Category{Name: rec.Category}
	}
	center, edge := mw.brushFor(cat)
	m := canvas.NewMarker(rec, kind, center, edge, mw.prefs.Int(prefs.KeyMarkerSize, 8))
	mw.canvas.AddMarker(m)
	return m
}

// addGhostFor places a muted, non-editable marker for another species'
// record so its pixel reads as occupied.
func (mw *CountWindow) addGhostFor(rec store.PointRecord, kind store.Kind) {
	m := canvas.NewMarker(rec, kind, colorutil.White, colorutil.Gray, mw.prefs.Int(prefs.KeyMarkerSize, 8))
	m.Label = rec.Species + ":" + rec.Category
	mw.canvas.AddMarker(m)
	m.Visible = mw.showGhosts
	mw.ghosts[m] = true
}

// commit finishes the current photo's transaction.
func (mw *CountWindow) commit() {
	if mw.tx == nil {
		return
	}
	if err := mw.tx.Commit(); err != nil {
		slog.Error("failed to commit photo transaction", "error", err)
	}
	mw.tx = nil
}

func (mw *CountWindow) refreshTable() {
	mw.tableRows = mw.tableRows[:0]
	for _, m := range mw.canvas.Markers() {
		if !mw.ghosts[m] && !m.Record.IsSentinel() {
			mw.tableRows = append(mw.tableRows, m)
		}
	}
	mw.pointTable.Refresh()
}

// onNewPoint runs the placement workflow for a click. Called on the UI
// goroutine; the resolver blocks on dialogs, so it moves to a goroutine.
func (mw *CountWindow) onNewPoint(left, top int, pickCategory bool) {
	if mw.resolver == nil {
		return
	}
	file := mw.session.CurrentFile()
	go func() {
		p, err := mw.resolver.PlacePoint(context.Background(), file, left, top, pickCategory)
		if err != nil {
			slog.Error("failed to place point", "file", file, "error", err)
			return
		}
		if p == nil {
			return
		}
		fyne.Do(func() {
			if p.Record.IsSentinel() {
				mw.reloadMarkers()
				return
			}
			mw.removeSentinelMarkers()
			mw.addMarkerFor(p.Record, p.Kind)
			mw.refreshTable()
		})
	}()
}

// removeSentinelMarkers drops any sentinel marker from the canvas; the
// resolver has already deleted the record.
func (mw *CountWindow) removeSentinelMarkers() {
	for _, m := range mw.canvas.Markers() {
		if !mw.ghosts[m] && m.Record.IsSentinel() {
			mw.canvas.RemoveMarker(m)
		}
	}
}

// reloadMarkers rebuilds the canvas markers from the database, used after
// operations that rewrite several records at once.
func (mw *CountWindow) reloadMarkers() {
	if mw.currentIdx < 0 {
		return
	}
	ctx := context.Background()
	sv := mw.session.Survey
	file := mw.files[mw.currentIdx]

	points, patterns, err := mw.points.AllForFile(ctx, sv, file)
	if err != nil {
		slog.Error("failed to reload markers", "file", file, "error", err)
		return
	}

	for _, m := range mw.canvas.Markers() {
		if !mw.ghosts[m] {
			mw.canvas.RemoveMarker(m)
		}
	}
	for _, rec := range points {
		mw.addMarkerFor(rec, store.KindPoint)
	}
	for _, rec := range patterns {
		mw.addMarkerFor(rec, store.KindPattern)
	}
	mw.refreshTable()
}

// onPointMoved commits a drag. The canvas keeps the marker in place when
// this returns false.
func (mw *CountWindow) onPointMoved(m *canvas.Marker, left, top int) bool {
	if mw.ghosts[m] || mw.resolver == nil {
		return false
	}
	if err := mw.resolver.MovePoint(context.Background(), m.Kind, &m.Record, left, top); err != nil {
		slog.Error("failed to move point", "error", err)
		return false
	}
	mw.refreshTable()
	return true
}

func (mw *CountWindow) onRemoveMarkers(markers []*canvas.Marker) {
	if mw.resolver == nil {
		return
	}
	file := mw.session.CurrentFile()
	refs := mw.refsFor(markers)
	if len(refs) == 0 {
		return
	}
	go func() {
		if err := mw.resolver.RemoveRecords(context.Background(), file, refs); err != nil {
			slog.Error("failed to remove points", "file", file, "error", err)
			return
		}
		fyne.Do(func() {
			for _, m := range markers {
				if !mw.ghosts[m] {
					mw.canvas.RemoveMarker(m)
				}
			}
			mw.refreshTable()
		})
	}()
}

func (mw *CountWindow) refsFor(markers []*canvas.Marker) []count.RecordRef {
	var refs []count.RecordRef
	for _, m := range markers {
		if !mw.ghosts[m] {
			refs = append(refs, count.RecordRef{Kind: m.Kind, Record: m.Record})
		}
	}
	return refs
}

// placeSentinel marks the current photo empty. Runs off the UI goroutine.
func (mw *CountWindow) placeSentinel(name string) {
	file := mw.session.CurrentFile()
	if file == "" || mw.resolver == nil {
		return
	}
	mw.placeSentinelOn(file, name)
}

func (mw *CountWindow) placeSentinelOn(file, name string) {
	p, err := mw.resolver.PlaceSentinel(context.Background(), file, name)
	if err != nil {
		slog.Error("failed to place sentinel", "file", file, "category", name, "error", err)
		return
	}
	if p != nil && file == mw.session.CurrentFile() {
		fyne.Do(mw.reloadMarkers)
	}
}

// onChangeCategory reassigns the selected markers. Runs off the UI
// goroutine because the resolver prompts.
func (mw *CountWindow) onChangeCategory() {
	refs := mw.refsFor(mw.canvas.SelectedMarkers())
	if len(refs) == 0 || mw.resolver == nil {
		return
	}
	file := mw.session.CurrentFile()
	cat, ok, err := mw.resolver.ChangeCategory(context.Background(), file, refs)
	if err != nil {
		slog.Error("failed to change category", "file", file, "error", err)
		return
	}
	if ok {
		fyne.Do(func() {
			mw.reloadMarkers()
			mw.updateStatus("Changed to " + cat.Name)
		})
	}
}

// onChangeLocalSite reassigns the selected markers' local site.
func (mw *CountWindow) onChangeLocalSite() {
	refs := mw.refsFor(mw.canvas.SelectedMarkers())
	if len(refs) == 0 || mw.resolver == nil {
		return
	}
	site, ok, err := mw.resolver.ChangeLocalSite(context.Background(), refs)
	if err != nil {
		slog.Error("failed to change local site", "error", err)
		return
	}
	if ok {
		fyne.Do(func() {
			mw.reloadMarkers()
			mw.updateStatus("Moved to " + site)
		})
	}
}

func (mw *CountWindow) onEditEffort() {
	if mw.prompter == nil {
		// No photo open yet: prompt against the shared connection.
		mw.prompter = dialogs.NewPrompter(mw.Window,
			store.NewEffortStore(mw.conn), mw.siteNames, mw.session.Categories)
	}
	mw.prompter.EditEffort(mw.session.Survey)
}

func (mw *CountWindow) onChooseFolder() {
	fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		if err := mw.LoadFolder(uri.Path()); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	if last := mw.prefs.String(prefs.KeyLastPhotoDir); last != "" {
		if listable, err := storage.ListerForURI(storage.NewFileURI(last)); err == nil {
			fd.SetLocation(listable)
		}
	}
	fd.Show()
}

func (mw *CountWindow) onMarkerSize() {
	entry := widget.NewEntry()
	entry.SetText(fmt.Sprintf("%d", mw.prefs.Int(prefs.KeyMarkerSize, 8)))
	dialog.ShowForm("Marker Size", "Apply", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Dot size (pixels)", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			var size int
			if _, err := fmt.Sscanf(entry.Text, "%d", &size); err != nil || size < 2 {
				return
			}
			mw.prefs.SetInt(prefs.KeyMarkerSize, size)
			mw.canvas.SetMarkerSize(size)
		}, mw.Window)
}

func (mw *CountWindow) onAbout() {
	sv := mw.session.Survey
	dialog.ShowInformation("About Rookery Counter",
		fmt.Sprintf("Rookery Counter\n\nPoint-count photo annotation for wildlife surveys.\n\n"+
			"Survey: %d site %d, %s (%s)", sv.Year, sv.Site, sv.Species, sv.CountType),
		mw.Window)
}

// onClose enforces the review guard, commits and saves preferences before
// quitting.
func (mw *CountWindow) onClose() {
	go func() {
		if !mw.confirmReviewed() {
			return
		}
		mw.commit()

		size := mw.Canvas().Size()
		mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
		mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
		if err := mw.prefs.Save(); err != nil {
			slog.Error("failed to save preferences", "error", err)
		}

		fyne.Do(func() { mw.app.Quit() })
	}()
}
