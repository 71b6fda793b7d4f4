package models

// OwnershipMap maps card identity to an owned count. Zero or absent
// means "not owned".
type OwnershipMap map[string]int

func (m OwnershipMap) Count(identity string) int {
	if m == nil {
		return 0
	}
	if n := m[identity]; n > 0 {
		return n
	}
	return 0
}

func (m OwnershipMap) Owns(identity string) bool {
	return m.Count(identity) > 0
}

// Clone returns an independent copy; a nil map clones to an empty one.
func (m OwnershipMap) Clone() OwnershipMap {
	out := make(OwnershipMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
