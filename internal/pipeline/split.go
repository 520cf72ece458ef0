package pipeline

import "math/rand/v2"

// Filter keeps records usable for training: a problem statement and a
// passing solution.
func Filter(recs []*Record) []*Record {
	out := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Problem.Text == "" || rec.SolutionCode() == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Split assigns each record to "val" or "train". Records are shuffled
// with a seeded generator, so the same seed and input order always
// produce the same split.
func Split(recs []*Record, valFrac float64, seed uint64) {
	if valFrac < 0 {
		valFrac = 0
	}
	if valFrac > 1 {
		valFrac = 1
	}
	shuffled := append([]*Record(nil), recs...)
	rng := rand.New(rand.NewPCG(seed, 0))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	nVal := int(float64(len(shuffled)) * valFrac)
	for i, rec := range shuffled {
		if i < nVal {
			rec.Split = "val"
		} else {
			rec.Split = "train"
		}
		rec.EnsureID()
	}
}

// SplitCounts tallies records per split label.
func SplitCounts(recs []*Record) map[string]int {
	counts := make(map[string]int)
	for _, rec := range recs {
		counts[rec.Split]++
	}
	return counts
}
