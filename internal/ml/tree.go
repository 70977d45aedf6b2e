package ml

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a fitted decision tree, stored in a flat slice.
// Leaf nodes carry the dropout fraction of the training samples they hold.
type treeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int32   `json:"l"`
	Right     int32   `json:"r"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"v"`
}

// Tree is a single CART-style classification tree. The root is node 0.
type Tree struct {
	Nodes []treeNode `json:"nodes"`
}

// predict walks the tree and returns the leaf's dropout fraction.
func (t *Tree) predict(vec []float64) float64 {
	idx := int32(0)
	for {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value
		}
		if vec[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// treeBuilder grows one tree on a bootstrap sample. All randomness flows
// through a single seeded source so training is reproducible.
type treeBuilder struct {
	x          [][]float64
	y          []bool
	maxDepth   int
	minLeaf    int
	featsSplit int
	rng        *rand.Rand
	nodes      []treeNode
}

func growTree(x [][]float64, y []bool, sample []int, maxDepth, minLeaf, featsSplit int, rng *rand.Rand) Tree {
	b := &treeBuilder{
		x:          x,
		y:          y,
		maxDepth:   maxDepth,
		minLeaf:    minLeaf,
		featsSplit: featsSplit,
		rng:        rng,
	}
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}
}

// build appends the subtree for the given sample and returns its node index.
func (b *treeBuilder) build(sample []int, depth int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, treeNode{})

	positives := 0
	for _, i := range sample {
		if b.y[i] {
			positives++
		}
	}
	value := float64(positives) / float64(len(sample))

	if depth >= b.maxDepth || len(sample) < 2*b.minLeaf || positives == 0 || positives == len(sample) {
		b.nodes[idx] = treeNode{Leaf: true, Value: value}
		return idx
	}

	feature, threshold, ok := b.bestSplit(sample)
	if !ok {
		b.nodes[idx] = treeNode{Leaf: true, Value: value}
		return idx
	}

	left := make([]int, 0, len(sample))
	right := make([]int, 0, len(sample))
	for _, i := range sample {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		b.nodes[idx] = treeNode{Leaf: true, Value: value}
		return idx
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[idx] = treeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit scans a random feature subset and returns the Gini-optimal
// threshold. Candidate thresholds are midpoints between consecutive distinct
// values of the sorted feature column.
func (b *treeBuilder) bestSplit(sample []int) (feature int, threshold float64, ok bool) {
	numFeatures := len(b.x[0])
	perm := b.rng.Perm(numFeatures)
	candidates := perm[:b.featsSplit]

	bestGini := math.Inf(1)
	total := float64(len(sample))

	type pair struct {
		v float64
		y bool
	}
	pairs := make([]pair, len(sample))

	for _, f := range candidates {
		for i, s := range sample {
			pairs[i] = pair{b.x[s][f], b.y[s]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

		totalPos := 0
		for _, p := range pairs {
			if p.y {
				totalPos++
			}
		}

		leftN, leftPos := 0, 0
		for i := 0; i < len(pairs)-1; i++ {
			leftN++
			if pairs[i].y {
				leftPos++
			}
			if pairs[i].v == pairs[i+1].v {
				continue
			}
			if leftN < b.minLeaf || len(pairs)-leftN < b.minLeaf {
				continue
			}

			rightN := len(pairs) - leftN
			rightPos := totalPos - leftPos
			gini := (float64(leftN)*giniImpurity(leftPos, leftN) +
				float64(rightN)*giniImpurity(rightPos, rightN)) / total

			if gini < bestGini {
				bestGini = gini
				feature = f
				threshold = (pairs[i].v + pairs[i+1].v) / 2
				ok = true
			}
		}
	}

	return feature, threshold, ok
}

func giniImpurity(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}
