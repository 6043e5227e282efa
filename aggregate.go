package loom

import (
	"github.com/loomdb/loom/document"
)

// AggregateOp names one of the supported aggregate reductions.
type AggregateOp uint8

const (
	AggCount AggregateOp = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// AggregateSpec requests one reduction, optionally grouped by a field.
type AggregateSpec struct {
	Op      AggregateOp
	Field   string // ignored for AggCount
	GroupBy string // empty means "aggregate the whole set"
}

// AggregateResult is one group's reduction; Group is nil when the request
// had no GroupBy.
type AggregateResult struct {
	Group any
	Value float64
}

// runAggregate reduces records (already filtered, post soft-delete) per
// spec. Non-numeric values are skipped for sum/avg/min/max, matching the
// query engine's "ignore rather than fail" posture for heterogeneous
// collections.
func runAggregate(records []map[string]any, spec AggregateSpec) []AggregateResult {
	groups := map[any][]map[string]any{}
	var order []any
	if spec.GroupBy == "" {
		groups[nil] = records
		order = []any{nil}
	} else {
		for _, rec := range records {
			key := rec[spec.GroupBy]
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], rec)
		}
	}

	results := make([]AggregateResult, 0, len(order))
	for _, key := range order {
		results = append(results, AggregateResult{Group: key, Value: reduce(groups[key], spec)})
	}
	return results
}

func reduce(records []map[string]any, spec AggregateSpec) float64 {
	if spec.Op == AggCount {
		return float64(len(records))
	}

	var nums []float64
	for _, rec := range records {
		v := document.FromRaw(rec[spec.Field])
		if n, ok := v.Number(); ok {
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return 0
	}

	switch spec.Op {
	case AggSum:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum
	case AggAvg:
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums))
	case AggMin:
		min := nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
		}
		return min
	case AggMax:
		max := nums[0]
		for _, n := range nums[1:] {
			if n > max {
				max = n
			}
		}
		return max
	default:
		return 0
	}
}
