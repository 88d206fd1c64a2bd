// Package count implements the workflow that turns a placed marker into a
// persisted count record: category and local-site resolution, effort
// validation, sentinel handling, and completion tracking.
package count

import (
	"context"
	"fmt"
	"log/slog"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/session"
	"rookery-counter/internal/store"
)

// CategoryPicker chooses a category from the species' ordered list.
// ok is false when the user dismisses the picker.
type CategoryPicker interface {
	PickCategory(cats []catalog.Category) (catalog.Category, bool)
}

// LocalSitePicker chooses a local site from the site's named sub-areas.
type LocalSitePicker interface {
	PickLocalSite(sites []string) (string, bool)
}

// Confirmer asks a yes/no question. The workflow treats "no" as a hard
// abort of the pending operation only.
type Confirmer interface {
	Confirm(title, message string) bool
}

// EffortEditor opens the effort-editing surface for the survey scope and
// reports whether the user completed it.
type EffortEditor interface {
	EditEffort(sv session.Survey) bool
}

// CompletionSink receives per-category tally deltas whenever a record is
// added or removed. Fire-and-forget from the resolver's perspective.
type CompletionSink interface {
	RecordCounted(file string, deltas map[string]int, op string)
}

// RecordRef pairs a record with the table kind it lives in.
type RecordRef struct {
	Kind   store.Kind
	Record store.PointRecord
}

// Placement describes a record the resolver persisted, with everything the
// canvas needs to build the marker.
type Placement struct {
	Record   store.PointRecord
	Kind     store.Kind
	Category catalog.Category
}

// Resolver runs the point-creation workflow. All prompts are synchronous
// call-outs; a dismissed prompt aborts the single pending operation and
// leaves every piece of state unchanged.
type Resolver struct {
	session    *session.Session
	points     *store.PointStore
	efforts    *store.EffortStore
	siteNames  []string
	categories CategoryPicker
	sites      LocalSitePicker
	confirm    Confirmer
	effortEdit EffortEditor
	sink       CompletionSink
}

// Deps bundles the resolver's collaborators.
type Deps struct {
	Points     *store.PointStore
	Efforts    *store.EffortStore
	SiteNames  []string // support_local_sites names offered by the picker
	Categories CategoryPicker
	Sites      LocalSitePicker
	Confirm    Confirmer
	EffortEdit EffortEditor
	Sink       CompletionSink
}

// NewResolver creates a resolver over a session and its collaborators.
func NewResolver(s *session.Session, d Deps) *Resolver {
	return &Resolver{
		session:    s,
		points:     d.Points,
		efforts:    d.Efforts,
		siteNames:  d.SiteNames,
		categories: d.Categories,
		sites:      d.Sites,
		confirm:    d.Confirm,
		effortEdit: d.EffortEdit,
		sink:       d.Sink,
	}
}

// PlacePoint resolves category and local site for a new marker at
// (left, top) and persists the record. A nil Placement with nil error
// means the request was refused (no category, cancelled prompt, duplicate
// coordinate); state is unchanged in that case.
func (r *Resolver) PlacePoint(ctx context.Context, file string, left, top int, pickCategory bool) (*Placement, error) {
	if pickCategory {
		cat, ok := r.categories.PickCategory(r.session.Categories)
		if !ok {
			return nil, nil
		}
		r.session.SetActiveCategory(cat.Name)
	}

	cat, ok := r.session.ActiveCategory()
	if !ok {
		// No active category: silently do nothing.
		return nil, nil
	}
	if catalog.IsSentinel(cat.Name) {
		return r.PlaceSentinel(ctx, file, cat.Name)
	}

	sv := r.session.Survey
	points, patterns, err := r.points.AllForFile(ctx, sv, file)
	if err != nil {
		return nil, err
	}

	site, ok, err := r.resolveLocalSite(ctx, len(points)+len(patterns) == 0)
	if err != nil || !ok {
		return nil, err
	}

	if r.occupied(ctx, file, left, top, points, patterns) {
		slog.Warn("coordinate already occupied", "file", file, "left", left, "top", top)
		return nil, nil
	}

	// A lone sentinel gives way to the first real marker.
	if len(patterns) == 0 && len(points) == 1 && points[0].IsSentinel() {
		if err := r.points.Delete(ctx, store.KindPoint, points[0]); err != nil {
			return nil, err
		}
		r.notify(file, points[0].Category, -1, "sub")
	}

	rec := store.NewPointRecord(sv, file, left, top, site, cat.Name)
	kind := store.KindFor(cat.Name)
	if err := r.points.Create(ctx, kind, rec); err != nil {
		return nil, err
	}
	r.notify(file, cat.Name, +1, "add")

	p := &Placement{Record: rec, Kind: kind, Category: cat}
	r.session.Emit(session.EventPointAdded, p)
	return p, nil
}

// PlaceSentinel marks a photo as reviewed-but-empty. Existing real markers
// must be confirmed away twice before the sentinel is written.
func (r *Resolver) PlaceSentinel(ctx context.Context, file, name string) (*Placement, error) {
	if !catalog.IsSentinel(name) {
		return nil, fmt.Errorf("category %q is not a sentinel", name)
	}

	sv := r.session.Survey
	points, patterns, err := r.points.AllForFile(ctx, sv, file)
	if err != nil {
		return nil, err
	}

	var existing *store.PointRecord
	var real []RecordRef
	for i := range points {
		if points[i].IsSentinel() {
			existing = &points[i]
		} else {
			real = append(real, RecordRef{Kind: store.KindPoint, Record: points[i]})
		}
	}
	for i := range patterns {
		real = append(real, RecordRef{Kind: store.KindPattern, Record: patterns[i]})
	}

	if existing != nil && existing.Category == name {
		// Already marked with this sentinel.
		return nil, nil
	}

	if len(real) > 0 {
		msg := fmt.Sprintf("Placing %s removes all %d points on this photo. Delete them?", name, len(real))
		if !r.confirm.Confirm("Delete Points", msg) {
			return nil, nil
		}
		if !r.confirm.Confirm("Delete Points", "This cannot be undone. Are you sure?") {
			return nil, nil
		}
		if err := r.RemoveRecords(ctx, file, real); err != nil {
			return nil, err
		}
	}
	if existing != nil {
		if err := r.points.Delete(ctx, store.KindPoint, *existing); err != nil {
			return nil, err
		}
		r.notify(file, existing.Category, -1, "sub")
	}

	rec := store.NewPointRecord(sv, file, catalog.SentinelPosition, catalog.SentinelPosition,
		r.session.LocalSite(), name)
	if err := r.points.Create(ctx, store.KindPoint, rec); err != nil {
		return nil, err
	}
	r.notify(file, name, +1, "add")

	p := &Placement{Record: rec, Kind: store.KindPoint, Category: catalog.SentinelCategory(sv.Species, name)}
	r.session.Emit(session.EventPointAdded, p)
	return p, nil
}

// MovePoint commits a dragged marker's new position. The canvas has
// already bounds-checked; unchanged coordinates are a no-op.
func (r *Resolver) MovePoint(ctx context.Context, kind store.Kind, rec *store.PointRecord, left, top int) error {
	if err := r.points.UpdatePosition(ctx, kind, rec, left, top); err != nil {
		return err
	}
	r.session.Emit(session.EventPointMoved, rec)
	return nil
}

// RemoveRecords deletes the given records and notifies the completion sink.
func (r *Resolver) RemoveRecords(ctx context.Context, file string, refs []RecordRef) error {
	for _, ref := range refs {
		if err := r.points.Delete(ctx, ref.Kind, ref.Record); err != nil {
			return err
		}
		r.notify(file, ref.Record.Category, -1, "sub")
		r.session.Emit(session.EventPointRemoved, ref)
	}
	return nil
}

// ChangeCategory re-tags existing records with a newly picked category.
// A kind change (point <-> pattern) is a delete-and-create at the same
// coordinates. Returns the category applied, or ok=false when cancelled.
func (r *Resolver) ChangeCategory(ctx context.Context, file string, refs []RecordRef) (catalog.Category, bool, error) {
	cat, ok := r.categories.PickCategory(r.session.Categories)
	if !ok || catalog.IsSentinel(cat.Name) {
		return catalog.Category{}, false, nil
	}
	newKind := store.KindFor(cat.Name)

	for _, ref := range refs {
		rec := ref.Record
		if rec.Category == cat.Name {
			continue
		}
		old := rec.Category
		if ref.Kind == newKind {
			if err := r.points.UpdateCategory(ctx, ref.Kind, &rec, cat.Name); err != nil {
				return catalog.Category{}, false, err
			}
		} else {
			if err := r.points.Delete(ctx, ref.Kind, rec); err != nil {
				return catalog.Category{}, false, err
			}
			moved := store.NewPointRecord(r.session.Survey, file, rec.Left, rec.Top, rec.LocalSite, cat.Name)
			if err := r.points.Create(ctx, newKind, moved); err != nil {
				return catalog.Category{}, false, err
			}
		}
		r.notify(file, old, -1, "sub")
		r.notify(file, cat.Name, +1, "add")
	}
	return cat, true, nil
}

// ChangeLocalSite moves existing records to a newly picked local site,
// validating the site against the day's effort first.
func (r *Resolver) ChangeLocalSite(ctx context.Context, refs []RecordRef) (string, bool, error) {
	site, ok := r.sites.PickLocalSite(r.siteNames)
	if !ok {
		return "", false, nil
	}
	ok, err := r.validateEffort(ctx, site)
	if err != nil || !ok {
		return "", false, err
	}
	for _, ref := range refs {
		rec := ref.Record
		if err := r.points.UpdateLocalSite(ctx, ref.Kind, &rec, site); err != nil {
			return "", false, err
		}
	}
	r.session.SetLocalSite(site)
	return site, true, nil
}

// resolveLocalSite returns the local site for a new marker, prompting when
// none is selected or this is the photo's first marker.
func (r *Resolver) resolveLocalSite(ctx context.Context, firstPoint bool) (string, bool, error) {
	site := r.session.LocalSite()
	if site == "" || firstPoint {
		choice, ok := r.sites.PickLocalSite(r.siteNames)
		if !ok {
			return "", false, nil
		}
		site = choice
	}
	ok, err := r.validateEffort(ctx, site)
	if err != nil || !ok {
		return "", false, err
	}
	r.session.SetLocalSite(site)
	return site, true, nil
}

// validateEffort checks the site against the count type's declared effort,
// offering the effort editor as remediation before re-checking.
func (r *Resolver) validateEffort(ctx context.Context, site string) (bool, error) {
	sv := r.session.Survey
	ok, err := r.efforts.HasLocalSite(ctx, sv, site)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	msg := fmt.Sprintf("Local site %q has no %s effort for this day. Fill out effort now?", site, sv.CountType)
	if !r.confirm.Confirm("Fill out Effort?", msg) {
		return false, nil
	}
	if !r.effortEdit.EditEffort(sv) {
		return false, nil
	}
	return r.efforts.HasLocalSite(ctx, sv, site)
}

// occupied reports whether any resident record, own species or ghost,
// already sits at (left, top). Category is deliberately ignored: one
// marker per pixel.
func (r *Resolver) occupied(ctx context.Context, file string, left, top int, points, patterns []store.PointRecord) bool {
	for _, rec := range points {
		if rec.Left == left && rec.Top == top {
			return true
		}
	}
	for _, rec := range patterns {
		if rec.Left == left && rec.Top == top {
			return true
		}
	}
	for _, kind := range []store.Kind{store.KindPoint, store.KindPattern} {
		ghosts, err := r.points.OtherSpecies(ctx, kind, r.session.Survey, file)
		if err != nil {
			slog.Warn("ghost lookup failed during duplicate check", "error", err)
			continue
		}
		for _, rec := range ghosts {
			if rec.Left == left && rec.Top == top {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) notify(file, category string, delta int, op string) {
	if r.sink == nil {
		return
	}
	r.sink.RecordCounted(file, map[string]int{category: delta}, op)
}
