package switchtile

import (
	"cmp"
	"slices"
	"strconv"
)

// SeriesInput is one declared data series of a switch tile.
type SeriesInput struct {
	Label        string
	Value        *string
	StateMap     *StateMap
	ActionApp    string
	ActionDevice string
	ActionTopic  string
	Styling      map[string]any
}

type NormalizedSeries struct {
	Label        string         `json:"label"`
	Index        int            `json:"-"`
	ActionApp    string         `json:"actionApp,omitempty"`
	ActionDevice string         `json:"actionDevice,omitempty"`
	ActionTopic  string         `json:"actionTopic,omitempty"`
	Styling      map[string]any `json:"styling,omitempty"`
	Selected     State          `json:"selected"`
}

// SeriesSet is an insertion ordered mapping of unique labels to normalized series.
type SeriesSet struct {
	keys    []string
	entries map[string]NormalizedSeries
}

func newSeriesSet(capacity int) *SeriesSet {
	return &SeriesSet{
		keys:    make([]string, 0, capacity),
		entries: make(map[string]NormalizedSeries, capacity),
	}
}

func (s *SeriesSet) put(ns NormalizedSeries) {
	if _, ok := s.entries[ns.Label]; !ok {
		s.keys = append(s.keys, ns.Label)
	}
	s.entries[ns.Label] = ns
}

func (s *SeriesSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *SeriesSet) Has(label string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[label]
	return ok
}

func (s *SeriesSet) Get(label string) (NormalizedSeries, bool) {
	if s == nil {
		return NormalizedSeries{}, false
	}
	ns, ok := s.entries[label]
	return ns, ok
}

// Keys returns the labels in input order.
func (s *SeriesSet) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Entries returns the series in input order.
func (s *SeriesSet) Entries() []NormalizedSeries {
	if s == nil {
		return nil
	}
	out := make([]NormalizedSeries, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.entries[k])
	}
	return out
}

// Sorted returns the series ordered by label, the way the tile lays its switches out.
func (s *SeriesSet) Sorted() []NormalizedSeries {
	out := s.Entries()
	slices.SortFunc(out, func(a, b NormalizedSeries) int {
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// Normalize builds a fresh SeriesSet from series, evaluating each entry's state.
//
// A label that is already taken gets the entry's position appended ("A" at index 2
// becomes "A-2"). If that key is taken too, the position is appended again, so the
// result always holds one key per input entry.
func Normalize(series []SeriesInput) *SeriesSet {
	set := newSeriesSet(len(series))
	for idx, in := range series {
		label := in.Label
		for set.Has(label) {
			label = label + "-" + strconv.Itoa(idx)
		}
		set.put(NormalizedSeries{
			Label:        label,
			Index:        idx,
			ActionApp:    in.ActionApp,
			ActionDevice: in.ActionDevice,
			ActionTopic:  in.ActionTopic,
			Styling:      in.Styling,
			Selected:     Evaluate(in.StateMap, in.Value),
		})
	}
	return set
}
