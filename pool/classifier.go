package pool

import (
	"slices"

	"github.com/meigma/assetlift/source"
)

// DefaultSentinel is the name given to placeholder headers.
const DefaultSentinel = "$default"

// MaxNameLen bounds name reads.
const MaxNameLen = 256

// Verdict is a classifier decision for one slot.
type Verdict struct {
	Status Status
	Name   string
}

// Classifier decides the status of each slot.
//
// Ordering contract: within one scan, Classify is called exactly once per
// slot in ascending slot order, after Reset. Implementations may carry state
// from earlier slots to later ones; decisions that depend on such state are
// only as good as the ordering of the pool. A Classifier is used by one scan
// at a time.
type Classifier interface {
	Reset()
	Classify(c *source.Cursor, p Pool, h Header) (Verdict, error)
}

// PlaceholderClassifier implements the structural rules:
//
//  1. A zero name pointer, or one pointing inside the pool, is Null.
//  2. A name equal to Sentinel is Placeholder, and the header becomes the
//     template.
//  3. A header whose secondary pointers all equal the template's is
//     Placeholder.
//  4. Anything else is Loaded.
//
// Rule 3 needs the template, so a slot structurally identical to a template
// that appears later in the pool is reported Loaded.
type PlaceholderClassifier struct {
	Sentinel string

	template []uint64
}

// NewPlaceholderClassifier returns a classifier using DefaultSentinel.
func NewPlaceholderClassifier() *PlaceholderClassifier {
	return &PlaceholderClassifier{Sentinel: DefaultSentinel}
}

// Reset forgets the template.
func (pc *PlaceholderClassifier) Reset() {
	pc.template = nil
}

// Classify implements Classifier.
func (pc *PlaceholderClassifier) Classify(c *source.Cursor, p Pool, h Header) (Verdict, error) {
	if h.NamePtr == 0 || p.Contains(h.NamePtr) {
		return Verdict{Status: StatusNull}, nil
	}
	name, err := c.ReadCString(h.NamePtr, MaxNameLen)
	if err != nil {
		return Verdict{}, err
	}
	if name == pc.Sentinel {
		pc.template = slices.Clone(h.Secondary)
		return Verdict{Status: StatusPlaceholder, Name: name}, nil
	}
	if pc.template != nil && slices.Equal(pc.template, h.Secondary) {
		return Verdict{Status: StatusPlaceholder, Name: name}, nil
	}
	return Verdict{Status: StatusLoaded, Name: name}, nil
}

var _ Classifier = (*PlaceholderClassifier)(nil)
