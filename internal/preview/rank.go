package preview

import "sort"

// Rank orders results by MaxConcurrentJobs, highest first, keeping the input
// order between equal entries, and keeps at most maxNodes of them when
// maxNodes > 0. The input slice is not reordered.
func Rank(results []FitResult, maxNodes int) []FitResult {
	out := append([]FitResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaxConcurrentJobs > out[j].MaxConcurrentJobs
	})
	if maxNodes > 0 && len(out) > maxNodes {
		out = out[:maxNodes]
	}
	return out
}
