package util

import (
	"sort"
	"strings"
)

// StringSet is a map[string]bool with a handful of convenience methods,
// used by the bridge to flag duplicate document ids in a draft request
// before they ever reach the compiler.
type StringSet map[string]bool

// NewStringSet builds a StringSet, optionally seeded from existing
// map[string]bool values.
func NewStringSet(of ...map[string]bool) StringSet {
	s := StringSet{}
	for _, m := range of {
		for k := range m {
			s.Add(k)
		}
	}
	return s
}

func (s StringSet) Has(value string) bool {
	_, has := s[value]
	return has
}

func (s StringSet) Add(value string) {
	s[value] = true
}

func (s StringSet) Remove(value string) {
	delete(s, value)
}

func (s StringSet) Len() int {
	return len(s)
}

// StringOrdered renders the set's contents alphabetized, useful for
// deterministic log lines and error messages.
func (s StringSet) StringOrdered() string {
	items := make([]string, 0, len(s))
	for k := range s {
		items = append(items, k)
	}
	sort.Strings(items)

	var sb strings.Builder
	sb.WriteRune('{')
	sb.WriteString(strings.Join(items, ", "))
	sb.WriteRune('}')
	return sb.String()
}
