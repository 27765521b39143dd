package aggregate

import (
	"fmt"
	"math"
	"time"
)

// Aggregate selects the reducer applied to each (start, stop) group.
type Aggregate string

const (
	Mean Aggregate = "mean"
	Sum  Aggregate = "sum"
)

// AggregatedRead is a derived, per-window energy value. It is produced per
// request and never persisted.
type AggregatedRead struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
	Value int64     `json:"value"`
}

type windowKey struct {
	start int64
	stop  int64
}

// Collapse groups reads sharing an identical (start, stop) window and
// reduces each group's values with the given aggregate, flooring the result.
// Group order follows first appearance in the input.
func Collapse(reads []AggregatedRead, fn Aggregate) ([]AggregatedRead, error) {
	if fn != Mean && fn != Sum {
		return nil, fmt.Errorf("unsupported aggregate %q", string(fn))
	}

	var order []windowKey
	grouped := map[windowKey][]int64{}
	windows := map[windowKey]AggregatedRead{}

	for _, read := range reads {
		key := windowKey{start: read.Start.UnixNano(), stop: read.Stop.UnixNano()}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
			windows[key] = read
		}
		grouped[key] = append(grouped[key], read.Value)
	}

	out := make([]AggregatedRead, 0, len(order))
	for _, key := range order {
		values := grouped[key]
		out = append(out, AggregatedRead{
			Start: windows[key].Start,
			Stop:  windows[key].Stop,
			Value: reduce(fn, values),
		})
	}
	return out, nil
}

func reduce(fn Aggregate, values []int64) int64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	switch fn {
	case Mean:
		return int64(math.Floor(float64(sum) / float64(len(values))))
	default:
		return sum
	}
}
