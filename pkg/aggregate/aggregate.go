// SPDX-License-Identifier: Apache-2.0
// Package aggregate combines multiple module results into one by a named
// strategy: "first", "array" or "merge" (the default).
package aggregate

import (
	"strings"

	"github.com/ziel-io/cognitive-modules/pkg/envelope"
)

// Strategy names understood by Aggregate.
const (
	StrategyFirst = "first"
	StrategyArray = "array"
	StrategyMerge = "merge"
)

// Aggregate combines results according to the strategy. An empty input list
// yields an AGGREGATION_ERROR failure; a single-element input is returned
// unchanged with no merge logic applied. Unknown strategies fall back to
// merge.
func Aggregate(results []*envelope.Result, strategy string) *envelope.Result {
	if len(results) == 0 {
		return envelope.Failure(envelope.CodeAggregationError, "no results to aggregate")
	}
	if len(results) == 1 {
		return results[0]
	}

	switch strategy {
	case StrategyFirst:
		return first(results)
	case StrategyArray:
		return array(results)
	default:
		return merge(results)
	}
}

// first returns the first successful result, or the first result at all if
// none succeeded.
func first(results []*envelope.Result) *envelope.Result {
	for _, r := range results {
		if r.OK {
			return r
		}
	}
	return results[0]
}

// array collects every successful payload, in order, under a results key.
func array(results []*envelope.Result) *envelope.Result {
	collected := make([]any, 0, len(results))
	for _, r := range results {
		if r.OK {
			collected = append(collected, r.Data)
		}
	}
	return envelope.Success(
		map[string]any{"results": collected},
		envelope.Meta{
			Confidence: meanConfidence(results),
			Risk:       maxRisk(results),
		},
	)
}

// merge deep-merges every successful payload in input order. Later inputs
// overwrite earlier ones on key collision; array-valued fields are replaced
// wholesale rather than concatenated.
func merge(results []*envelope.Result) *envelope.Result {
	var merged any
	for _, r := range results {
		if !r.OK {
			continue
		}
		merged = mergeValue(merged, r.Data)
	}
	if merged == nil {
		merged = map[string]any{}
	}

	var explains []string
	for _, r := range results {
		if e := r.Meta.Explain; e != "" {
			explains = append(explains, e)
		}
	}

	return envelope.Success(merged, envelope.Meta{
		Confidence: meanConfidence(results),
		Risk:       maxRisk(results),
		Explain:    envelope.TruncateExplain(strings.Join(explains, " ")),
	})
}

// mergeValue merges src into dst. Two objects merge key by key; anything
// else (arrays included) replaces dst wholesale.
func mergeValue(dst, src any) any {
	dstMap, dstOK := dst.(map[string]any)
	srcMap, srcOK := src.(map[string]any)
	if !dstOK || !srcOK {
		return src
	}
	out := make(map[string]any, len(dstMap)+len(srcMap))
	for k, v := range dstMap {
		out[k] = v
	}
	for k, v := range srcMap {
		if existing, ok := out[k]; ok {
			out[k] = mergeValue(existing, v)
		} else {
			out[k] = v
		}
	}
	return out
}

// meanConfidence averages confidence across all inputs, defaulting to 0.5
// when there are none.
func meanConfidence(results []*envelope.Result) float64 {
	if len(results) == 0 {
		return 0.5
	}
	var sum float64
	for _, r := range results {
		sum += r.Meta.Confidence
	}
	return sum / float64(len(results))
}

func maxRisk(results []*envelope.Result) envelope.RiskLevel {
	max := envelope.RiskNone
	for _, r := range results {
		max = envelope.MaxRisk(max, r.Meta.Risk)
	}
	return max
}
