package forecast

// Regression tree over a single feature (the day index). Splits minimize
// the summed squared error of the two halves; leaves predict the mean of
// their samples.

type treeNode struct {
	leaf      bool
	value     float64
	threshold float64
	left      *treeNode
	right     *treeNode
}

const (
	treeMaxDepth = 8
	treeMinLeaf  = 2
)

func buildTree(xs, ys []float64, depth int) *treeNode {
	if len(ys) == 0 {
		return &treeNode{leaf: true}
	}
	if depth >= treeMaxDepth || len(ys) < 2*treeMinLeaf {
		return &treeNode{leaf: true, value: mean(ys)}
	}

	bestIdx, bestScore := -1, sse(ys)
	for i := treeMinLeaf; i <= len(ys)-treeMinLeaf; i++ {
		// xs is sorted; skip duplicate positions so both halves differ in x.
		if xs[i] == xs[i-1] {
			continue
		}
		score := sse(ys[:i]) + sse(ys[i:])
		if score < bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return &treeNode{leaf: true, value: mean(ys)}
	}

	return &treeNode{
		threshold: (xs[bestIdx-1] + xs[bestIdx]) / 2,
		left:      buildTree(xs[:bestIdx], ys[:bestIdx], depth+1),
		right:     buildTree(xs[bestIdx:], ys[bestIdx:], depth+1),
	}
}

func (n *treeNode) predict(x float64) float64 {
	for !n.leaf {
		if x < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func mean(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	var sum float64
	for _, y := range ys {
		sum += y
	}
	return sum / float64(len(ys))
}

func sse(ys []float64) float64 {
	m := mean(ys)
	var total float64
	for _, y := range ys {
		d := y - m
		total += d * d
	}
	return total
}
