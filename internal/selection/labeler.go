package selection

import "fmt"

// Label broadcasts each sample's verdict over its window. The samples must
// tile [0, total) in order, leaving at most a trailing gap shorter than
// interval frames; anything else returns ErrPartition.
func Label(samples []FrameSample, verdicts []int, total, interval int) (Labels, error) {
	if len(samples) != len(verdicts) {
		return nil, fmt.Errorf("%w: %d samples, %d verdicts", ErrPartition, len(samples), len(verdicts))
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", ErrPartition, total)
	}

	next := 0
	for i, s := range samples {
		if s.StartFrame != next || s.EndFrame <= s.StartFrame || s.EndFrame > total {
			return nil, fmt.Errorf("%w: window %d is [%d, %d), expected start %d within %d frames",
				ErrPartition, i, s.StartFrame, s.EndFrame, next, total)
		}
		next = s.EndFrame
	}
	if gap := total - next; interval > 0 && gap >= interval {
		return nil, fmt.Errorf("%w: %d trailing frames not covered", ErrPartition, gap)
	}

	labels := make(Labels, total)
	for i, s := range samples {
		v := verdicts[i]
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("invalid verdict %d for window %d", v, i)
		}
		for f := s.StartFrame; f < s.EndFrame; f++ {
			labels[f] = v
		}
	}
	return labels, nil
}
