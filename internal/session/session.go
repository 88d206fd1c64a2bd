// Package session holds the live survey-editing state and its event bus.
package session

import (
	"fmt"
	"sync"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/config"
)

// Survey is the composite key every count record is scoped by.
type Survey struct {
	Year      int
	Site      int
	Date      int    // YYYYMMDD
	TimeStart string // zero-padded HHMMSS
	Creator   string
	Species   string
	Observer  string
	CountType string
}

// Valid reports whether the key is complete enough to write records under.
func (s Survey) Valid() error {
	if s.Year == 0 || s.Date == 0 {
		return fmt.Errorf("survey key: year and date are required")
	}
	if len(s.TimeStart) != 6 {
		return fmt.Errorf("survey key: time_start %q is not HHMMSS", s.TimeStart)
	}
	if s.Species == "" || s.CountType == "" {
		return fmt.Errorf("survey key: species and count_type are required")
	}
	return nil
}

// EventType identifies session events the hosting window subscribes to.
type EventType int

const (
	EventPhotoLoaded EventType = iota
	EventPointAdded
	EventPointRemoved
	EventPointMoved
	EventZoomChanged
	EventCompletionChanged
	EventCategoryChanged
	EventLocalSiteChanged
)

// Listener is called when an event is emitted.
type Listener func(data interface{})

// Session is the mutable per-window survey state. The canvas, resolver and
// window all share one Session; mutation happens on the UI goroutine only,
// the mutex guards the listener table and reads from tests.
type Session struct {
	mu sync.RWMutex

	Survey     Survey
	Categories []catalog.Category // ordered by DisplayOrder

	activeCategory string
	localSite      string
	currentFile    string

	listeners map[EventType][]Listener
}

// New creates a session from validated settings.
func New(cfg *config.Settings, date int, timeStart string) *Session {
	return &Session{
		Survey: Survey{
			Year:      cfg.Survey.Year,
			Site:      cfg.Survey.Site,
			Date:      date,
			TimeStart: timeStart,
			Creator:   cfg.Survey.Creator,
			Species:   cfg.Survey.Species,
			Observer:  cfg.Survey.Observer,
			CountType: cfg.Survey.CountType,
		},
		listeners: make(map[EventType][]Listener),
	}
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[EventType][]Listener)
	}
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// ActiveCategory returns the sticky category new markers are tagged with,
// or false when none has been chosen yet.
func (s *Session) ActiveCategory() (catalog.Category, bool) {
	s.mu.RLock()
	name := s.activeCategory
	cats := s.Categories
	s.mu.RUnlock()
	if name == "" {
		return catalog.Category{}, false
	}
	if catalog.IsSentinel(name) {
		return catalog.SentinelCategory(s.Survey.Species, name), true
	}
	return catalog.ByName(cats, name)
}

// SetActiveCategory changes the sticky category and notifies subscribers.
func (s *Session) SetActiveCategory(name string) {
	s.mu.Lock()
	changed := s.activeCategory != name
	s.activeCategory = name
	s.mu.Unlock()
	if changed {
		s.Emit(EventCategoryChanged, name)
	}
}

// LocalSite returns the currently selected local site ("" when unset).
func (s *Session) LocalSite() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localSite
}

// SetLocalSite changes the selected local site and notifies subscribers.
func (s *Session) SetLocalSite(site string) {
	s.mu.Lock()
	changed := s.localSite != site
	s.localSite = site
	s.mu.Unlock()
	if changed {
		s.Emit(EventLocalSiteChanged, site)
	}
}

// CurrentFile returns the photo file name being annotated.
func (s *Session) CurrentFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentFile
}

// SetCurrentFile records the photo being annotated.
func (s *Session) SetCurrentFile(name string) {
	s.mu.Lock()
	s.currentFile = name
	s.mu.Unlock()
	s.Emit(EventPhotoLoaded, name)
}

// CategoryAt returns the nth category in display order, for the 1..9
// keyboard shortcut tiers.
func (s *Session) CategoryAt(index int) (catalog.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.Categories) {
		return catalog.Category{}, false
	}
	return s.Categories[index], true
}
