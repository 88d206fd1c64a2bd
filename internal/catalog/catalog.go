// Package catalog holds the animal-category reference data used when
// classifying markers on survey photos.
package catalog

import "strings"

// Sentinel category names. A sentinel is a single marker at (-1,-1)
// recording that a photo was reviewed but holds nothing countable.
const (
	NoAnimal = "NoAnimal"
	NoMarked = "NoMarked"
)

// Default sentinel colors, overridable per user.
const (
	NoAnimalColor = "#031FCB"
	NoMarkedColor = "#108405"
)

// PatternLabel is the reserved category name whose markers are stored
// as pattern counts rather than discrete point counts.
const PatternLabel = "inj"

// SentinelPosition is the coordinate pair shared by all sentinel records.
const SentinelPosition = -1

// Category describes one age/sex classification for a species.
// Two colors feed the gradient brush that markers are painted with.
type Category struct {
	Species      string
	Name         string
	ColorLarge   string // hex "#RRGGBB", gradient top
	ColorSmall   string // hex "#RRGGBB", gradient bottom
	Countable    bool   // counts toward photo completion
	Description  string
	DisplayOrder int
}

// IsSentinel reports whether name is one of the reviewed-but-empty markers.
func IsSentinel(name string) bool {
	return name == NoAnimal || name == NoMarked
}

// IsPattern reports whether name routes to the pattern-count record kind.
func IsPattern(name string) bool {
	return strings.EqualFold(name, PatternLabel)
}

// SentinelCategory returns the built-in category for a sentinel name.
// Sentinels are not species reference data, so they carry fixed colors.
func SentinelCategory(species, name string) Category {
	c := Category{Species: species, Name: name, Countable: false}
	switch name {
	case NoAnimal:
		c.ColorLarge = NoAnimalColor
		c.ColorSmall = NoAnimalColor
	case NoMarked:
		c.ColorLarge = NoMarkedColor
		c.ColorSmall = NoMarkedColor
	}
	return c
}

// ByName finds a category by name in an ordered list.
func ByName(cats []Category, name string) (Category, bool) {
	for _, c := range cats {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
