package source

import "sort"

// StageNoReading is reported when a gauge has runnable ranges but no current
// observation.
const StageNoReading = "no gauge reading"

// stageBands returns the band labels for n sorted range boundaries. Odd
// boundary counts are ambiguous about which side of medium gets the extra
// band, so the side holding more boundaries wins.
func stageBands(n int, lowBiased bool) []string {
	switch {
	case n == 3:
		return []string{"lower runnable", "higher runnable"}
	case n == 4:
		return []string{"low", "medium", "high"}
	case n == 5 && lowBiased:
		return []string{"very low", "medium low", "medium", "high"}
	case n == 5:
		return []string{"low", "medium", "medium high", "very high"}
	case n == 6:
		return []string{"low", "medium low", "medium", "medium high", "high"}
	case n == 7 && lowBiased:
		return []string{"very low", "low", "medium low", "medium", "medium high", "high"}
	case n == 7:
		return []string{"low", "medium low", "medium", "medium high", "high", "very high"}
	case n == 8:
		return []string{"very low", "low", "medium low", "medium", "medium high", "high", "very high"}
	case n == 9 && lowBiased:
		return []string{"extremely low", "very low", "low", "medium low", "medium", "medium high", "high", "very high"}
	case n == 9:
		return []string{"very low", "low", "medium low", "medium", "medium high", "high", "very high", "extremely high"}
	case n == 10:
		return []string{"extremely low", "very low", "low", "medium low", "medium", "medium high", "high", "very high", "extremely high"}
	default:
		return nil
	}
}

func sortedUnique(vals []float64) []float64 {
	seen := make(map[float64]bool, len(vals))
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// deriveStage classifies a gauge observation against the source's runnable
// range boundaries. boundaries is indexed by range slot 0..9; slots 0-5 count
// toward the low side and 5-9 toward the high side when breaking band-count
// ties, matching the published convention of the source datasets.
func deriveStage(observation *float64, boundaries map[int]float64) string {
	var all, low, high []float64
	for slot, v := range boundaries {
		all = append(all, v)
		if slot <= 5 {
			low = append(low, v)
		}
		if slot >= 5 {
			high = append(high, v)
		}
	}

	metrics := sortedUnique(all)
	if len(metrics) == 0 {
		return ""
	}
	if observation == nil {
		return StageNoReading
	}

	obs := *observation
	if obs < metrics[0] {
		return "too low"
	}
	if obs > metrics[len(metrics)-1] {
		return "too high"
	}

	if len(metrics) == 2 || (len(metrics) == 1 && len(sortedUnique(high)) > 0) {
		return "runnable"
	}

	bands := stageBands(len(metrics), len(sortedUnique(low)) > len(sortedUnique(high)))
	for i, label := range bands {
		if metrics[i] < obs && obs < metrics[i+1] {
			return label
		}
	}

	// observation sits exactly on an interior boundary
	return ""
}
