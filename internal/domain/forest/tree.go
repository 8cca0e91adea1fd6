package forest

import (
	"math"
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one node of a fitted tree. Leaves have Feature == -1 and carry the
// class probabilities in Value; split nodes send x[Feature] <= Threshold left.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a fitted CART tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// builder grows one tree over weighted samples.
type builder struct {
	x        [][]float64
	y        []int // class index
	w        []float64
	classes  int
	features int
	mtry     int
	params   Params
	rng      *rand.Rand
	tree     *Tree
}

func (b *builder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	node := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: leaf})

	if b.stop(idx, counts, depth) {
		b.tree.Nodes[node].Value = normalize(counts)
		return node
	}
	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		b.tree.Nodes[node].Value = normalize(counts)
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[node] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return node
}

func (b *builder) stop(idx []int, counts []float64, depth int) bool {
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return true
	}
	if len(idx) < b.params.MinSamplesSplit {
		return true
	}
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func (b *builder) classCounts(idx []int) []float64 {
	counts := make([]float64, b.classes)
	for _, i := range idx {
		counts[b.y[i]] += b.w[i]
	}
	return counts
}

// bestSplit searches features in random order. It examines at least mtry
// features and keeps going until one yields a valid split.
func (b *builder) bestSplit(idx []int, parent []float64) (int, float64, bool) {
	total := sum(parent)
	parentImpurity := b.impurity(parent, total)

	bestFeature, bestThreshold := -1, 0.0
	bestGain := 1e-12
	order := make([]int, len(idx))
	left := make([]float64, b.classes)
	right := make([]float64, b.classes)

	for visited, f := range b.rng.Perm(b.features) {
		if visited >= b.mtry && bestFeature >= 0 {
			break
		}
		copy(order, idx)
		sort.SliceStable(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

		for c := range left {
			left[c] = 0
			right[c] = parent[c]
		}
		wl := 0.0
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			wl += b.w[i]
			cur, next := b.x[i][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			wr := total - wl
			if wl <= 0 || wr <= 0 {
				continue
			}
			gain := parentImpurity - (wl*b.impurity(left, wl)+wr*b.impurity(right, wr))/total
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	out := 0.0
	switch b.params.Criterion {
	case Entropy:
		for _, c := range counts {
			if c > 0 {
				p := c / total
				out -= p * math.Log2(p)
			}
		}
	default:
		out = 1
		for _, c := range counts {
			p := c / total
			out -= p * p
		}
	}
	return out
}

func normalize(counts []float64) []float64 {
	out := make([]float64, len(counts))
	t := sum(counts)
	if t == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / t
	}
	return out
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
