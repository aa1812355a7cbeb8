package cache

import "sort"

// Candidate describes one durable-tier entry considered for eviction.
type Candidate struct {
	Key string

	// Timestamp is the entry's write time in unix milliseconds. Entries
	// whose record failed to parse carry a zero timestamp so corruption
	// sorts to the front and can never block eviction.
	Timestamp int64

	// Size is the stored byte size of the entry.
	Size int64
}

// PlanEviction selects victims until at least target bytes would be freed
// or the candidate list is exhausted, and returns their keys in removal
// order.
//
// Victims are ordered by write timestamp, oldest first. Write time is the
// recency clock here, not last-access time: reads never refresh an entry,
// so a frequently read but long-ago written bundle is still evicted before
// a newer one. Entries with equal timestamps keep their enumeration order,
// which adapters guarantee to be stable.
func PlanEviction(target int64, candidates []Candidate) []string {
	if target <= 0 || len(candidates) == 0 {
		return nil
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var freed int64
	var victims []string
	for _, c := range sorted {
		if freed >= target {
			break
		}
		victims = append(victims, c.Key)
		freed += c.Size
	}
	return victims
}
