package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"github.com/gammazero/workerpool"
)

// Params controls forest training
type Params struct {
	Trees       int
	MaxDepth    int
	MinLeaf     int
	MaxFeatures int // features tried per split, 0 means sqrt(columns)
	Seed        int64
	Workers     int
}

// DefaultParams returns the training defaults
func DefaultParams() Params {
	return Params{
		Trees:    200,
		MaxDepth: 16,
		MinLeaf:  1,
		Seed:     42,
		Workers:  runtime.NumCPU(),
	}
}

// Fit trains a forest on rows x with labels y. Training is deterministic for
// a given seed regardless of the number of workers.
func Fit(columns []string, x [][]float64, y []int, p Params) (*Forest, error) {
	if len(columns) == 0 {
		return nil, errors.New("no feature columns")
	}
	if len(x) == 0 {
		return nil, errors.New("no training rows")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%d rows but %d labels", len(x), len(y))
	}
	for i, row := range x {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	if p.Trees <= 0 {
		return nil, fmt.Errorf("tree count must be positive, got %d", p.Trees)
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = math.MaxInt32
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > len(columns) {
		p.MaxFeatures = int(math.Max(1, math.Round(math.Sqrt(float64(len(columns))))))
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}

	classes, encoded := encodeClasses(y)
	if len(classes) < 2 {
		// A single observed class still yields a usable binary model
		classes, encoded = padClasses(classes, encoded)
	}

	trees := make([]Tree, p.Trees)
	gains := make([][]float64, p.Trees)

	wp := workerpool.New(p.Workers)
	for i := 0; i < p.Trees; i++ {
		i := i
		wp.Submit(func() {
			b := &builder{
				x:         x,
				y:         encoded,
				nClasses:  len(classes),
				params:    p,
				rng:       rand.New(rand.NewSource(p.Seed + int64(i))),
				gain:      make([]float64, len(columns)),
				nFeatures: len(columns),
			}
			trees[i] = b.build(b.bootstrap())
			gains[i] = b.gain
		})
	}
	wp.StopWait()

	return &Forest{
		columns:     append([]string(nil), columns...),
		classes:     classes,
		importances: meanImportances(gains, len(columns)),
		trees:       trees,
	}, nil
}

// encodeClasses maps labels to dense indices in ascending label order
func encodeClasses(y []int) ([]int, []int) {
	set := make(map[int]bool)
	for _, v := range y {
		set[v] = true
	}
	classes := make([]int, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Ints(classes)

	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(y))
	for i, v := range y {
		encoded[i] = index[v]
	}
	return classes, encoded
}

func padClasses(classes, encoded []int) ([]int, []int) {
	other := 0
	if classes[0] == 0 {
		other = 1
	}
	if other < classes[0] {
		for i := range encoded {
			encoded[i]++
		}
		return []int{other, classes[0]}, encoded
	}
	return []int{classes[0], other}, encoded
}

// meanImportances normalizes each tree's impurity decrease, averages over
// trees and normalizes the result to sum to 1
func meanImportances(gains [][]float64, n int) []float64 {
	out := make([]float64, n)
	for _, g := range gains {
		total := 0.0
		for _, v := range g {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range g {
			out[j] += v / total
		}
	}

	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

type builder struct {
	x         [][]float64
	y         []int
	nClasses  int
	nFeatures int
	params    Params
	rng       *rand.Rand
	gain      []float64
	nodes     []Node
}

func (b *builder) bootstrap() []int {
	idx := make([]int, len(b.x))
	for i := range idx {
		idx[i] = b.rng.Intn(len(b.x))
	}
	return idx
}

func (b *builder) build(samples []int) Tree {
	b.nodes = nil
	b.grow(samples, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for samples in pre-order and returns its index
func (b *builder) grow(samples []int, depth int) int {
	counts := b.counts(samples)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if depth >= b.params.MaxDepth || len(samples) < 2*b.params.MinLeaf || isPure(counts) {
		b.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	s, ok := b.bestSplit(samples, counts)
	if !ok {
		b.nodes[id].Value = distribution(counts, len(samples))
		return id
	}

	b.gain[s.feature] += s.gain

	var left, right []int
	for _, i := range samples {
		if b.x[i][s.feature] <= s.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = Node{Feature: s.feature, Threshold: s.threshold, Left: l, Right: r}
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit searches a random subset of features for the split with the
// largest weighted Gini decrease
func (b *builder) bestSplit(samples []int, counts []int) (split, bool) {
	n := len(samples)
	parent := float64(n) * gini(counts, n)

	best := split{gain: 1e-12}
	found := false

	order := make([]int, n)
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for tried, f := range b.rng.Perm(b.nFeatures) {
		// Keep drawing past the budget only while no valid split exists
		if tried >= b.params.MaxFeatures && found {
			break
		}
		copy(order, samples)
		sort.SliceStable(order, func(i, j int) bool {
			return b.x[order[i]][f] < b.x[order[j]][f]
		})

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, counts)

		for i := 0; i < n-1; i++ {
			c := b.y[order[i]]
			leftCounts[c]++
			rightCounts[c]--

			cur, next := b.x[order[i]][f], b.x[order[i+1]][f]
			if cur == next {
				continue
			}
			nl, nr := i+1, n-i-1
			if nl < b.params.MinLeaf || nr < b.params.MinLeaf {
				continue
			}

			g := parent - float64(nl)*gini(leftCounts, nl) - float64(nr)*gini(rightCounts, nr)
			if g > best.gain {
				t := cur + (next-cur)/2
				if t >= next {
					t = cur
				}
				best = split{feature: f, threshold: t, gain: g}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) counts(samples []int) []int {
	c := make([]int, b.nClasses)
	for _, i := range samples {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts []int, n int) []float64 {
	v := make([]float64, len(counts))
	if n == 0 {
		return v
	}
	for k, c := range counts {
		v[k] = float64(c) / float64(n)
	}
	return v
}
