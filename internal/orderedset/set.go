// Package orderedset provides an insertion-ordered set of identifiers.
package orderedset

// Set is a sequence of unique strings with an index for O(1) membership.
// Remove swaps the last element into the vacated slot, so order is not
// preserved across removals. Set is not safe for concurrent use.
type Set struct {
	items []string
	index map[string]int
}

// New creates a set holding items in order. Repeated items are skipped.
func New(items ...string) *Set {
	s := &Set{
		items: make([]string, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add appends v if absent. Returns false if v was already a member.
func (s *Set) Add(v string) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

// Remove deletes v by swapping the last element into its slot.
// Returns false if v was not a member.
func (s *Set) Remove(v string) bool {
	i, ok := s.index[v]
	if !ok {
		return false
	}

	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items[last] = ""
	s.items = s.items[:last]
	delete(s.index, v)
	return true
}

// Contains reports whether v is a member.
func (s *Set) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns a copy of the members in their current order.
func (s *Set) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	c := &Set{
		items: make([]string, len(s.items)),
		index: make(map[string]int, len(s.items)),
	}
	copy(c.items, s.items)
	for k, v := range s.index {
		c.index[k] = v
	}
	return c
}
