package group

import "sort"

// assign implements spec.md §4.4's deterministic round-robin: sort
// members and partitions, then hand partition i to
// members[i % len(members)]. Every call with the same inputs produces
// the same output, which is what lets every member (not just the
// leader) independently verify the assignment it's handed.
func assign(members []string, partitions []int32) map[string][]int32 {
	sortedMembers := append([]string(nil), members...)
	sort.Strings(sortedMembers)
	sortedPartitions := append([]int32(nil), partitions...)
	sort.Slice(sortedPartitions, func(i, j int) bool { return sortedPartitions[i] < sortedPartitions[j] })

	out := make(map[string][]int32, len(sortedMembers))
	for _, m := range sortedMembers {
		out[m] = nil
	}
	if len(sortedMembers) == 0 {
		return out
	}
	for i, p := range sortedPartitions {
		m := sortedMembers[i%len(sortedMembers)]
		out[m] = append(out[m], p)
	}
	return out
}
