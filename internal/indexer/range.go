package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// RecentRange returns the last n blocks ending at latest, clamped at genesis.
func RecentRange(latest, n uint64) (BlockRange, error) {
	if n == 0 {
		return BlockRange{}, fmt.Errorf("block count must be greater than zero")
	}
	from := uint64(0)
	if latest+1 > n {
		from = latest + 1 - n
	}
	return BlockRange{From: from, To: latest}, nil
}

// SplitRange splits an inclusive block range into ascending batches of at
// most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}
