package security

import "sort"

// State records attribute values removed from a loaded record because the
// current actor may not see them, so later layers can render placeholders.
//
// A State belongs to a single record and is not safe for concurrent use.
// The zero value and a nil *State both mean "nothing erased".
type State struct {
	erased map[string][]any
}

// ErasedAttributes returns the names of attributes with erased values, sorted.
func (s *State) ErasedAttributes() []string {
	if s == nil || len(s.erased) == 0 {
		return nil
	}
	attrs := make([]string, 0, len(s.erased))
	for attr := range s.erased {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	return attrs
}

// ErasedIDs returns the identifiers erased from attr, in insertion order.
func (s *State) ErasedIDs(attr string) []any {
	if s == nil || s.erased == nil {
		return nil
	}
	ids := s.erased[attr]
	if len(ids) == 0 {
		return nil
	}
	out := make([]any, len(ids))
	copy(out, ids)
	return out
}

// AddErasedID records that id was removed from attr. Duplicates are kept.
func (s *State) AddErasedID(attr string, id any) {
	s.AddErasedIDs(attr, id)
}

// AddErasedIDs records several removed identifiers for attr.
func (s *State) AddErasedIDs(attr string, ids ...any) {
	if len(ids) == 0 {
		return
	}
	if s.erased == nil {
		s.erased = make(map[string][]any)
	}
	s.erased[attr] = append(s.erased[attr], ids...)
}

// ErasedData returns a copy of the whole mapping, or nil when nothing was erased.
func (s *State) ErasedData() map[string][]any {
	if s == nil || len(s.erased) == 0 {
		return nil
	}
	out := make(map[string][]any, len(s.erased))
	for attr, ids := range s.erased {
		out[attr] = append([]any(nil), ids...)
	}
	return out
}
