package discover

import "sort"

// ClusterBlocks consolidates discrete block numbers from an indexed
// source into active ranges, merging neighbors whose gap does not exceed
// mergeGap. The input does not need to be sorted or unique.
func ClusterBlocks(blocks []uint64, mergeGap uint64) []ActiveRange {
	if len(blocks) == 0 {
		return nil
	}

	sorted := make([]uint64, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	ranges := make([]ActiveRange, 0)
	start := sorted[0]
	prev := sorted[0]
	for _, block := range sorted[1:] {
		if block-prev <= mergeGap {
			prev = block
			continue
		}
		ranges = append(ranges, ActiveRange{Start: start, End: prev, BlockCount: prev - start + 1})
		start = block
		prev = block
	}
	ranges = append(ranges, ActiveRange{Start: start, End: prev, BlockCount: prev - start + 1})

	return ranges
}
