package model

// FilterSet is the set of categories currently visible. The zero value
// is not useful; construct with NewFilterSet. A FilterSet never becomes
// empty: the last remaining category cannot be toggled off.
type FilterSet struct {
	on map[Category]bool
}

// NewFilterSet returns a filter set with all known categories enabled.
func NewFilterSet() FilterSet {
	on := make(map[Category]bool, len(Categories))
	for _, c := range Categories {
		on[c] = true
	}
	return FilterSet{on: on}
}

// Has reports whether the category is currently visible.
func (f FilterSet) Has(c Category) bool {
	return f.on[c]
}

// Len returns the number of enabled categories.
func (f FilterSet) Len() int {
	n := 0
	for _, v := range f.on {
		if v {
			n++
		}
	}
	return n
}

// Toggle flips the category's visibility. Disabling the last enabled
// category is rejected as a no-op; the return value reports whether the
// set actually changed.
func (f FilterSet) Toggle(c Category) bool {
	known := false
	for _, k := range Categories {
		if k == c {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if f.on[c] && f.Len() == 1 {
		return false
	}
	f.on[c] = !f.on[c]
	return true
}

// Clone returns an independent copy of the filter set.
func (f FilterSet) Clone() FilterSet {
	on := make(map[Category]bool, len(f.on))
	for k, v := range f.on {
		on[k] = v
	}
	return FilterSet{on: on}
}
