package permissions

import "sort"

// Set is an unordered collection of permission strings
type Set map[string]struct{}

// NewSet returns a set holding perms
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	s.Add(perms...)
	return s
}

// Add inserts perms
func (s Set) Add(perms ...string) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

// Has reports whether p is in the set
func (s Set) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Union adds every member of other
func (s Set) Union(other Set) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Len returns the number of members
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
