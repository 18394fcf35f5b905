// Package replica derives add/remove notifications from two snapshots of a replicated
// collection. The same functions serve local mutations and snapshots received from the
// authoritative server, so both paths emit identical notifications.
package replica

// Delta is the difference between two snapshots of an ordered collection.
type Delta[T comparable] struct {
	// Removed holds entries present in the old snapshot but not the new one, in old order.
	Removed []T
	// Added holds entries present in the new snapshot but not the old one, in new order.
	Added []T
}

// Empty reports whether the snapshots contained the same valid entries.
func (d Delta[T]) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Diff compares old and cur by identity. Entries for which valid returns false
// (nil or unresolved references that appear mid-sync) are ignored on both sides.
//
// Precondition: valid may be nil, in which case every entry is valid.
// Postcondition: Diff is pure; applying it to equal snapshots yields an empty Delta.
func Diff[T comparable](old, cur []T, valid func(T) bool) Delta[T] {
	if valid == nil {
		valid = func(T) bool { return true }
	}
	oldSet := make(map[T]struct{}, len(old))
	for _, v := range old {
		if valid(v) {
			oldSet[v] = struct{}{}
		}
	}
	curSet := make(map[T]struct{}, len(cur))
	for _, v := range cur {
		if valid(v) {
			curSet[v] = struct{}{}
		}
	}

	var d Delta[T]
	reported := make(map[T]struct{})
	for _, v := range old {
		if !valid(v) {
			continue
		}
		if _, ok := curSet[v]; ok {
			continue
		}
		if _, ok := reported[v]; !ok {
			d.Removed = append(d.Removed, v)
			reported[v] = struct{}{}
		}
	}
	for _, v := range cur {
		if !valid(v) {
			continue
		}
		if _, ok := oldSet[v]; !ok {
			d.Added = append(d.Added, v)
			oldSet[v] = struct{}{}
		}
	}
	return d
}

// Compact returns the valid entries of items in order, as a new slice.
func Compact[T comparable](items []T, valid func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		if valid == nil || valid(v) {
			out = append(out, v)
		}
	}
	return out
}

// IndexOf returns the position of the first entry equal to v, or -1.
func IndexOf[T comparable](items []T, v T) int {
	for i, item := range items {
		if item == v {
			return i
		}
	}
	return -1
}
