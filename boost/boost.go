package boost

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Config holds the boosting hyperparameters.
type Config struct {
	Rounds         int     `yaml:"rounds" split_words:"true" validate:"min=1"`
	MaxDepth       int     `yaml:"max_depth" split_words:"true" validate:"min=1,max=16"`
	Eta            float64 `yaml:"eta" split_words:"true" validate:"gt=0,lte=1"`
	Lambda         float64 `yaml:"lambda" split_words:"true" validate:"gte=0"`
	Gamma          float64 `yaml:"gamma" split_words:"true" validate:"gte=0"`
	MinChildWeight float64 `yaml:"min_child_weight" split_words:"true" validate:"gte=0"`
	Subsample      float64 `yaml:"subsample" split_words:"true" validate:"gt=0,lte=1"`
	Seed           int64   `yaml:"seed" split_words:"true"`
}

// DefaultConfig returns the defaults used for price regression.
func DefaultConfig() Config {
	return Config{
		Rounds:         200,
		MaxDepth:       4,
		Eta:            0.05,
		Lambda:         1,
		Gamma:          0,
		MinChildWeight: 1,
		Subsample:      0.8,
		Seed:           42,
	}
}

// ErrNotFitted is returned by operations that need a fitted model.
var ErrNotFitted = errors.New("boost: model not fitted")

// Model is a fitted tree ensemble.
type Model struct {
	cfg       Config
	base      float64
	trees     []*node
	nFeatures int
	gain      []float64
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	weight    float64
	leaf      bool
}

// New creates an unfitted model.
func New(cfg Config) *Model {
	return &Model{cfg: cfg}
}

// IsFitted reports whether Fit has completed.
func (m *Model) IsFitted() bool {
	return m.nFeatures > 0
}

// Trees returns the number of trees in the ensemble.
func (m *Model) Trees() int {
	return len(m.trees)
}

// Fit trains the ensemble on rows X with targets y.
func (m *Model) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("boost: %d rows and %d targets", len(X), len(y))
	}
	nf := len(X[0])
	if nf == 0 {
		return errors.New("boost: rows have no features")
	}
	for i, row := range X {
		if len(row) != nf {
			return fmt.Errorf("boost: row %d has %d features, want %d", i, len(row), nf)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("boost: row %d has a non-finite feature", i)
			}
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return fmt.Errorf("boost: target %d is not finite", i)
		}
	}
	cfg := m.cfg
	if cfg.Rounds < 1 || cfg.MaxDepth < 1 || cfg.Eta <= 0 || cfg.Subsample <= 0 || cfg.Subsample > 1 {
		return fmt.Errorf("boost: invalid config %+v", cfg)
	}

	m.base = stat.Mean(y, nil)
	m.trees = m.trees[:0]
	m.gain = make([]float64, nf)
	m.nFeatures = nf

	rng := rand.New(rand.NewSource(cfg.Seed))
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.base
	}
	grad := make([]float64, len(y))
	hess := make([]float64, len(y))

	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	for round := 0; round < cfg.Rounds; round++ {
		for i := range y {
			grad[i] = pred[i] - y[i]
			hess[i] = 1
		}

		rows := all
		if cfg.Subsample < 1 {
			rows = sample(rng, len(y), cfg.Subsample)
		}

		b := builder{cfg: cfg, X: X, grad: grad, hess: hess, gain: m.gain}
		tree := b.grow(rows, 0)
		m.trees = append(m.trees, tree)

		for i, row := range X {
			pred[i] += cfg.Eta * tree.predict(row)
		}
	}
	return nil
}

// Predict returns the ensemble prediction for one feature vector.
// An unfitted model or a vector of the wrong width yields NaN.
func (m *Model) Predict(x []float64) float64 {
	if !m.IsFitted() || len(x) != m.nFeatures {
		return math.NaN()
	}
	out := m.base
	for _, t := range m.trees {
		out += m.cfg.Eta * t.predict(x)
	}
	return out
}

// PredictBatch predicts every row of X.
func (m *Model) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// FeatureImportance returns each feature's share of the total split gain.
// The shares sum to 1 unless no split was made, in which case all are zero.
func (m *Model) FeatureImportance() []float64 {
	out := make([]float64, len(m.gain))
	copy(out, m.gain)
	if total := floats.Sum(out); total > 0 {
		floats.Scale(1/total, out)
	}
	return out
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.weight
}

// sample draws a sorted subset of round(frac*n) row indices without replacement.
func sample(rng *rand.Rand, n int, frac float64) []int {
	k := int(math.Round(frac * float64(n)))
	if k < 1 {
		k = 1
	}
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

type builder struct {
	cfg  Config
	X    [][]float64
	grad []float64
	hess []float64
	gain []float64
}

func (b *builder) leafWeight(G, H float64) float64 {
	return -G / (H + b.cfg.Lambda)
}

func (b *builder) score(G, H float64) float64 {
	return G * G / (H + b.cfg.Lambda)
}

func (b *builder) grow(rows []int, depth int) *node {
	G, H := 0.0, 0.0
	for _, i := range rows {
		G += b.grad[i]
		H += b.hess[i]
	}
	leaf := &node{leaf: true, weight: b.leafWeight(G, H)}
	if depth >= b.cfg.MaxDepth || len(rows) < 2 {
		return leaf
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	parent := b.score(G, H)

	sorted := make([]int, len(rows))
	for f := range b.X[rows[0]] {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})

		GL, HL := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			GL += b.grad[i]
			HL += b.hess[i]
			cur, next := b.X[i][f], b.X[sorted[k+1]][f]
			if cur == next {
				continue
			}
			GR, HR := G-GL, H-HL
			if HL < b.cfg.MinChildWeight || HR < b.cfg.MinChildWeight {
				continue
			}
			gain := 0.5*(b.score(GL, HL)+b.score(GR, HR)-parent) - b.cfg.Gamma
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	var left, right []int
	for _, i := range rows {
		if b.X[i][bestFeature] < bestThreshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.gain[bestFeature] += bestGain

	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}
