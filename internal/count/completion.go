package count

import (
	"sync"

	"rookery-counter/internal/catalog"
)

// FileState is the completion color of a photo in the hosting window's list.
type FileState int

const (
	StateUncounted FileState = iota
	StateCounted             // red: holds real count records
	StateNoAnimal            // blue: reviewed, no animals
	StateNoMarked            // green: reviewed, nothing assignable
)

// Tracker maintains per-photo category tallies and derives each photo's
// completion state. It is the CompletionSink the resolver notifies.
type Tracker struct {
	mu       sync.Mutex
	files    map[string]map[string]int
	onChange func(file string)
}

// NewTracker creates an empty tracker. onChange, if non-nil, fires after
// every tally mutation with the affected file.
func NewTracker(onChange func(file string)) *Tracker {
	return &Tracker{
		files:    make(map[string]map[string]int),
		onChange: onChange,
	}
}

// Prime seeds a photo's tallies from records already in the database.
func (t *Tracker) Prime(file string, counts map[string]int) {
	t.mu.Lock()
	tally := make(map[string]int, len(counts))
	for cat, n := range counts {
		tally[cat] = n
	}
	t.files[file] = tally
	t.mu.Unlock()
	t.changed(file)
}

// RecordCounted applies per-category deltas for a photo. Implements
// CompletionSink; op is informational ("add"/"sub").
func (t *Tracker) RecordCounted(file string, deltas map[string]int, op string) {
	t.mu.Lock()
	tally := t.files[file]
	if tally == nil {
		tally = make(map[string]int)
		t.files[file] = tally
	}
	for cat, d := range deltas {
		tally[cat] += d
		if tally[cat] <= 0 {
			delete(tally, cat)
		}
	}
	t.mu.Unlock()
	t.changed(file)
}

// StateOf derives a photo's completion state from its tallies.
func (t *Tracker) StateOf(file string) FileState {
	t.mu.Lock()
	defer t.mu.Unlock()
	tally := t.files[file]
	if len(tally) == 0 {
		return StateUncounted
	}
	if tally[catalog.NoAnimal] > 0 {
		return StateNoAnimal
	}
	if tally[catalog.NoMarked] > 0 {
		return StateNoMarked
	}
	return StateCounted
}

// Counts returns a copy of a photo's per-category tallies.
func (t *Tracker) Counts(file string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.files[file]))
	for cat, n := range t.files[file] {
		out[cat] = n
	}
	return out
}

func (t *Tracker) changed(file string) {
	if t.onChange != nil {
		t.onChange(file)
	}
}
