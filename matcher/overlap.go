package matcher

// RemoveOverlaps drops, from every pair of intersecting results, the one with
// the lower score. Equal scores keep the result that comes first. The order
// of the surviving results is preserved.
func RemoveOverlaps(results []FindResult) []FindResult {
	removed := make([]bool, len(results))
	for i := range results {
		for j := i + 1; j < len(results); j++ {
			if !results[i].Rect.Intersects(results[j].Rect) {
				continue
			}
			if results[i].Score >= results[j].Score {
				removed[j] = true
			} else {
				removed[i] = true
			}
		}
	}

	kept := make([]FindResult, 0, len(results))
	for i, r := range results {
		if !removed[i] {
			kept = append(kept, r)
		}
	}
	return kept
}
