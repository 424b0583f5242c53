package switchtile

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// State is the tri-state outcome of evaluating a series against its StateMap.
type State int8

const (
	StateUnknown State = iota
	StateOn
	StateOff
)

// StateMap holds the optional on/off rules of a series.
type StateMap struct {
	On  *string `json:"on,omitempty" yaml:"on,omitempty"`
	Off *string `json:"off,omitempty" yaml:"off,omitempty"`
}

func StateOf(selected bool) State {
	if selected {
		return StateOn
	}
	return StateOff
}

func (s State) String() string {
	switch s {
	case StateOn:
		return "on"
	case StateOff:
		return "off"
	default:
		return "unknown"
	}
}

// Bool returns the boolean state and whether it is known.
func (s State) Bool() (selected bool, known bool) {
	return s == StateOn, s != StateUnknown
}

func (s State) MarshalJSON() ([]byte, error) {
	switch s {
	case StateOn:
		return []byte("true"), nil
	case StateOff:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*s = StateOn
	case "false":
		*s = StateOff
	default:
		*s = StateUnknown
	}
	return nil
}

type comparator struct {
	prefix string
	on     func(value, threshold float64) bool
	off    func(value, threshold float64) bool
}

// Longer prefixes go first so that "<=5" is never read as "<" followed by "=5".
var comparators = []comparator{
	{
		prefix: "<=",
		on:     func(v, t float64) bool { return v <= t },
		off:    func(v, t float64) bool { return v > t },
	},
	{
		prefix: "<",
		on:     func(v, t float64) bool { return v < t },
		off:    func(v, t float64) bool { return v <= t },
	},
	{
		prefix: ">=",
		on:     func(v, t float64) bool { return v >= t },
		off:    func(v, t float64) bool { return v < t },
	},
	{
		prefix: ">",
		on:     func(v, t float64) bool { return v > t },
		off:    func(v, t float64) bool { return v <= t },
	},
}

// Evaluate decides the state of a series value against its StateMap.
//
// The on rule is inspected first. A numeric on rule compares value and threshold with
// its own operator. Otherwise a numeric off rule is inspected and its comparator is
// inverted, so configuring only one side is enough. When neither rule is numeric both
// are treated as comma separated literal lists. A nil value, a missing rule, an
// unparsable number or a value in neither list all give StateUnknown.
func Evaluate(sm *StateMap, value *string) State {
	if value == nil {
		return StateUnknown
	}
	var on, off *string
	if sm != nil {
		on, off = sm.On, sm.Off
	}

	if on != nil {
		if cmp, ok := matchComparator(*on); ok {
			return compare(*value, (*on)[len(cmp.prefix):], cmp.on)
		}
	}
	if off != nil {
		if cmp, ok := matchComparator(*off); ok {
			return compare(*value, (*off)[len(cmp.prefix):], cmp.off)
		}
	}

	if slices.Contains(literals(on), *value) {
		return StateOn
	}
	if slices.Contains(literals(off), *value) {
		return StateOff
	}
	return StateUnknown
}

// isLeadingSpace reports Unicode white space and the byte order mark, except NEL.
func isLeadingSpace(r rune) bool {
	return r == '\uFEFF' || (r != '\u0085' && unicode.IsSpace(r))
}

func matchComparator(rule string) (comparator, bool) {
	for _, cmp := range comparators {
		if strings.HasPrefix(rule, cmp.prefix) {
			return cmp, true
		}
	}
	return comparator{}, false
}

func compare(value, threshold string, fn func(v, t float64) bool) State {
	v, ok := parseLeadingFloat(value)
	if !ok {
		return StateUnknown
	}
	t, ok := parseLeadingFloat(threshold)
	if !ok {
		return StateUnknown
	}
	return StateOf(fn(v, t))
}

var leadingFloat = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// parseLeadingFloat reads the longest numeric prefix of s after leading whitespace,
// so "5kW" reads as 5 and "kW5" does not parse.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimLeftFunc(s, isLeadingSpace))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// literals splits a literal rule. Only the first double quote and the first single
// quote of each token are removed, wherever they appear.
func literals(rule *string) []string {
	if rule == nil {
		return nil
	}
	tokens := strings.Split(*rule, ",")
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		tok = strings.Replace(tok, `"`, "", 1)
		tok = strings.Replace(tok, `'`, "", 1)
		tokens[i] = tok
	}
	return tokens
}
