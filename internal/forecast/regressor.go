package forecast

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// regressor is the shared shape of the two daily-series models.
type regressor interface {
	fit(xs, ys []float64)
	predict(x float64) float64
}

// linearModel is ordinary least squares on day index. Used below
// minDaysForForest distinct days, where the ensemble would overfit.
type linearModel struct {
	alpha, beta float64
}

func (m *linearModel) fit(xs, ys []float64) {
	m.alpha, m.beta = stat.LinearRegression(xs, ys, nil, false)
	if !isFinite(m.alpha) || !isFinite(m.beta) {
		// Zero variance in x (a single observed day) has no slope to fit;
		// degrade to a constant prediction at the mean.
		m.alpha = stat.Mean(ys, nil)
		m.beta = 0
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (m *linearModel) predict(x float64) float64 {
	return m.alpha + m.beta*x
}

const (
	forestTrees = 100
	forestSeed  = 42
)

// forestModel is a bagged ensemble of regression trees. The seed is fixed
// so repeated runs over the same history produce the same forecast.
type forestModel struct {
	trees []*treeNode
}

func (m *forestModel) fit(xs, ys []float64) {
	rng := rand.New(rand.NewSource(forestSeed))
	n := len(xs)
	m.trees = make([]*treeNode, forestTrees)

	sampleX := make([]float64, n)
	sampleY := make([]float64, n)
	order := make([]int, n)
	for t := 0; t < forestTrees; t++ {
		for i := range order {
			order[i] = rng.Intn(n)
		}
		sort.Ints(order)
		for i, idx := range order {
			sampleX[i] = xs[idx]
			sampleY[i] = ys[idx]
		}
		m.trees[t] = buildTree(sampleX, sampleY, 0)
	}
}

func (m *forestModel) predict(x float64) float64 {
	if len(m.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(m.trees))
}
