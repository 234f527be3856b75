package discover

import "fmt"

// BlockInterval is an inclusive block range.
type BlockInterval struct {
	Start uint64
	End   uint64
}

// NewBlockInterval validates and builds an interval.
func NewBlockInterval(start, end uint64) (BlockInterval, error) {
	if end < start {
		return BlockInterval{}, fmt.Errorf("end block must be >= start block")
	}
	return BlockInterval{Start: start, End: end}, nil
}

// Width returns the number of blocks covered by the interval.
func (iv BlockInterval) Width() uint64 {
	return iv.End - iv.Start + 1
}

// SplitMid splits the interval into two contiguous halves. The interval
// must span at least two blocks.
func (iv BlockInterval) SplitMid() (BlockInterval, BlockInterval) {
	mid := iv.Start + (iv.End-iv.Start)/2
	return BlockInterval{Start: iv.Start, End: mid}, BlockInterval{Start: mid + 1, End: iv.End}
}

// SplitChunks splits the interval into sub-intervals of at most chunkSize
// blocks.
func (iv BlockInterval) SplitChunks(chunkSize uint64) ([]BlockInterval, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}

	chunks := make([]BlockInterval, 0)
	start := iv.Start
	for start <= iv.End {
		remaining := iv.End - start + 1
		var end uint64
		if remaining <= chunkSize {
			end = iv.End
		} else {
			end = start + chunkSize - 1
		}
		chunks = append(chunks, BlockInterval{Start: start, End: end})
		if end == iv.End {
			break
		}
		start = end + 1
	}

	return chunks, nil
}

// ActiveRange is a block interval confirmed by direct query to contain at
// least one watched event.
type ActiveRange struct {
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	BlockCount uint64 `json:"block_count"`
}

// Interval returns the range as a BlockInterval.
func (r ActiveRange) Interval() BlockInterval {
	return BlockInterval{Start: r.Start, End: r.End}
}
