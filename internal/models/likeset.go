package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// LikeSet is the set of user ids that like a post.
type LikeSet map[string]struct{}

// NewLikeSet returns a set containing the provided ids.
func NewLikeSet(ids ...string) LikeSet {
	set := make(LikeSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Has reports whether id likes the post.
func (s LikeSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id. Empty ids are ignored.
func (s LikeSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Remove deletes id from the set.
func (s LikeSet) Remove(id string) {
	delete(s, id)
}

// Toggle flips the membership of id and reports whether it is now present.
func (s LikeSet) Toggle(id string) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return s.Has(id)
}

// Len returns the number of likes.
func (s LikeSet) Len() int {
	return len(s)
}

// Clone returns an independent copy of the set.
func (s LikeSet) Clone() LikeSet {
	out := make(LikeSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the members in ascending order.
func (s LikeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Equal reports whether both sets hold the same members.
func (s LikeSet) Equal(other LikeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array of user ids.
func (s LikeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON accepts either an array of ids or the legacy
// {"<id>": true} object form, where only true entries count as likes.
func (s *LikeSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	set := NewLikeSet()

	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '[':
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decode like set: %w", err)
		}
		for _, id := range ids {
			set.Add(id)
		}
	case len(data) > 0 && data[0] == '{':
		var legacy map[string]bool
		if err := json.Unmarshal(data, &legacy); err != nil {
			return fmt.Errorf("decode like set: %w", err)
		}
		for id, liked := range legacy {
			if liked {
				set.Add(id)
			}
		}
	default:
		return fmt.Errorf("decode like set: unexpected token %q", data)
	}

	*s = set
	return nil
}
