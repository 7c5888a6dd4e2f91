package dataset

import (
	"math"
	"math/rand"
	"sort"

	"github.com/mikey/phish-detector/internal/core"
)

// StratifiedSplit partitions rows into train and test sets, keeping each
// label's share close to the full set. Every label with at least two rows
// contributes at least one test row.
func StratifiedSplit(rows []Row, testFraction float64, seed int64) ([]Row, []Row) {
	if testFraction <= 0 || len(rows) < 2 {
		return append([]Row(nil), rows...), nil
	}
	if testFraction >= 1 {
		return nil, append([]Row(nil), rows...)
	}

	byLabel := make(map[core.Label][]Row)
	for _, r := range rows {
		byLabel[r.Label] = append(byLabel[r.Label], r)
	}
	labels := make([]core.Label, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	rng := rand.New(rand.NewSource(seed))
	var train, test []Row
	for _, l := range labels {
		group := byLabel[l]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })

		n := int(math.Round(float64(len(group)) * testFraction))
		if n == 0 && len(group) >= 2 {
			n = 1
		}
		if n >= len(group) {
			n = len(group) - 1
		}
		test = append(test, group[:n]...)
		train = append(train, group[n:]...)
	}

	Shuffle(train, seed)
	Shuffle(test, seed)
	return train, test
}
