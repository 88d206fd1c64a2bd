package count

import (
	"testing"

	"rookery-counter/internal/catalog"

	"github.com/stretchr/testify/assert"
)

func TestTrackerStates(t *testing.T) {
	tr := NewTracker(nil)

	assert.Equal(t, StateUncounted, tr.StateOf("a.jpg"))

	tr.RecordCounted("a.jpg", map[string]int{"Adult": 1}, "add")
	assert.Equal(t, StateCounted, tr.StateOf("a.jpg"))

	tr.RecordCounted("b.jpg", map[string]int{catalog.NoAnimal: 1}, "add")
	assert.Equal(t, StateNoAnimal, tr.StateOf("b.jpg"))

	tr.RecordCounted("c.jpg", map[string]int{catalog.NoMarked: 1}, "add")
	assert.Equal(t, StateNoMarked, tr.StateOf("c.jpg"))
}

func TestTrackerDeltasAndZeroing(t *testing.T) {
	tr := NewTracker(nil)

	tr.RecordCounted("a.jpg", map[string]int{"Adult": 1}, "add")
	tr.RecordCounted("a.jpg", map[string]int{"Adult": 1}, "add")
	tr.RecordCounted("a.jpg", map[string]int{"Pup": 1}, "add")
	assert.Equal(t, map[string]int{"Adult": 2, "Pup": 1}, tr.Counts("a.jpg"))

	tr.RecordCounted("a.jpg", map[string]int{"Pup": -1}, "sub")
	assert.Equal(t, map[string]int{"Adult": 2}, tr.Counts("a.jpg"))

	tr.RecordCounted("a.jpg", map[string]int{"Adult": -2}, "sub")
	assert.Empty(t, tr.Counts("a.jpg"))
	assert.Equal(t, StateUncounted, tr.StateOf("a.jpg"))
}

func TestTrackerPrimeReplacesTallies(t *testing.T) {
	tr := NewTracker(nil)
	tr.RecordCounted("a.jpg", map[string]int{"Adult": 5}, "add")

	seed := map[string]int{"Pup": 3}
	tr.Prime("a.jpg", seed)
	seed["Pup"] = 99 // caller's map must not alias the tracker's
	assert.Equal(t, map[string]int{"Pup": 3}, tr.Counts("a.jpg"))
}

func TestTrackerOnChange(t *testing.T) {
	var fired []string
	tr := NewTracker(func(file string) { fired = append(fired, file) })

	tr.Prime("a.jpg", nil)
	tr.RecordCounted("a.jpg", map[string]int{"Adult": 1}, "add")
	tr.RecordCounted("b.jpg", map[string]int{"Adult": 1}, "add")

	assert.Equal(t, []string{"a.jpg", "a.jpg", "b.jpg"}, fired)
}
