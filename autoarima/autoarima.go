package autoarima

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sartorproj/stockcast/sarima"
	"github.com/sartorproj/stockcast/stats"
	"github.com/sartorproj/stockcast/timeseries"
)

// ErrNoModel is returned when no candidate order could be fitted.
var ErrNoModel = errors.New("autoarima: no candidate order could be fitted")

// Config holds configuration for the order search.
type Config struct {
	MaxP        int    // Maximum AR order (default: 3)
	MaxD        int    // Maximum differencing order (default: 2)
	MaxQ        int    // Maximum MA order (default: 3)
	MaxSP       int    // Maximum seasonal AR order (default: 1)
	MaxSD       int    // Maximum seasonal differencing order (default: 1)
	MaxSQ       int    // Maximum seasonal MA order (default: 1)
	M           int    // Seasonal period; 0 or 1 disables the seasonal search
	Criterion   string // "aic", "aicc" or "bic" (default: "aicc")
	StationTest string // "adf" or "kpss" (default: "kpss")
	MaxModels   int    // Upper bound on fitted candidates (default: 40)
	Parallelism int    // Concurrent fits per search round (default: 1, sequential)
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxP:        3,
		MaxD:        2,
		MaxQ:        3,
		MaxSP:       1,
		MaxSD:       1,
		MaxSQ:       1,
		Criterion:   "aicc",
		StationTest: "kpss",
		MaxModels:   40,
		Parallelism: 1,
	}
}

// Candidate is one fitted order and its score.
type Candidate struct {
	Order sarima.Order
	Score float64
}

// Suggestion is the outcome of an order search.
type Suggestion struct {
	Order     sarima.Order
	Criterion string
	Score     float64
	AIC       float64
	AICc      float64
	BIC       float64
	Evaluated []Candidate // sorted by score, best first
	Failed    int         // candidates whose fit returned an error
}

// Suggest picks d with a stationarity test, D with the seasonal strength rule,
// then runs a stepwise search over (p, q, P, Q) minimizing the criterion.
func Suggest(ctx context.Context, series *timeseries.Series, cfg *Config) (*Suggestion, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if series == nil || series.Len() < 20 {
		return nil, fmt.Errorf("autoarima: need at least 20 observations")
	}

	seasonal := cfg.M > 1
	d := stats.NDiffs(series, cfg.MaxD, cfg.StationTest)
	sd := 0
	if seasonal {
		sd = stats.NSDiffs(series, cfg.M, cfg.MaxSD)
	}

	s := &searcher{
		series:  series,
		cfg:     cfg,
		visited: make(map[sarima.Order]bool),
	}

	start := []sarima.Order{
		{P: 0, D: d, Q: 0},
		{P: 1, D: d, Q: 0},
		{P: 0, D: d, Q: 1},
		{P: 1, D: d, Q: 1},
		{P: 2, D: d, Q: 2},
	}
	if seasonal {
		start = append(start,
			sarima.Order{P: 1, D: d, Q: 0, SP: 1, SD: sd, M: cfg.M},
			sarima.Order{P: 0, D: d, Q: 1, SQ: 1, SD: sd, M: cfg.M},
			sarima.Order{P: 1, D: d, Q: 1, SP: 1, SD: sd, SQ: 1, M: cfg.M},
		)
		for i := range start[:5] {
			start[i].SD, start[i].M = sd, cfg.M
		}
	}

	best, err := s.round(ctx, start)
	if err != nil {
		return nil, err
	}

	for best != nil {
		next, err := s.round(ctx, s.neighbors(best.Order))
		if err != nil {
			return nil, err
		}
		if next == nil || next.Score >= best.Score {
			break
		}
		best = next
	}

	if best == nil {
		return nil, ErrNoModel
	}

	sort.Slice(s.evaluated, func(i, j int) bool {
		return s.evaluated[i].Score < s.evaluated[j].Score
	})

	return &Suggestion{
		Order:     best.Order,
		Criterion: s.criterionName(),
		Score:     best.Score,
		AIC:       best.model.AIC,
		AICc:      best.model.AICc,
		BIC:       best.model.BIC,
		Evaluated: s.evaluated,
		Failed:    s.failed,
	}, nil
}

type fitted struct {
	Candidate
	model *sarima.Model
}

type searcher struct {
	series *timeseries.Series
	cfg    *Config

	mu        sync.Mutex
	visited   map[sarima.Order]bool
	evaluated []Candidate
	failed    int
}

// round fits every unvisited order concurrently and returns the best of them.
func (s *searcher) round(ctx context.Context, orders []sarima.Order) (*fitted, error) {
	var todo []sarima.Order
	for _, o := range orders {
		if s.visited[o] || !s.allowed(o) {
			continue
		}
		if len(s.visited) >= s.maxModels() {
			break
		}
		s.visited[o] = true
		todo = append(todo, o)
	}

	results := make([]*fitted, len(todo))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism())
	for i, o := range todo {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model := sarima.New(o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
			if err := model.Fit(s.series); err != nil {
				s.mu.Lock()
				s.failed++
				s.mu.Unlock()
				return nil
			}
			score := s.score(model)
			if math.IsNaN(score) || math.IsInf(score, 0) {
				s.mu.Lock()
				s.failed++
				s.mu.Unlock()
				return nil
			}
			results[i] = &fitted{Candidate: Candidate{Order: o, Score: score}, model: model}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *fitted
	for _, r := range results {
		if r == nil {
			continue
		}
		s.evaluated = append(s.evaluated, r.Candidate)
		if best == nil || r.Score < best.Score {
			best = r
		}
	}
	return best, nil
}

func (s *searcher) neighbors(o sarima.Order) []sarima.Order {
	out := []sarima.Order{}
	step := func(dp, dq, dsp, dsq int) {
		n := o
		n.P += dp
		n.Q += dq
		n.SP += dsp
		n.SQ += dsq
		out = append(out, n)
	}
	step(1, 0, 0, 0)
	step(-1, 0, 0, 0)
	step(0, 1, 0, 0)
	step(0, -1, 0, 0)
	step(1, 1, 0, 0)
	step(-1, -1, 0, 0)
	if s.cfg.M > 1 {
		step(0, 0, 1, 0)
		step(0, 0, -1, 0)
		step(0, 0, 0, 1)
		step(0, 0, 0, -1)
	}
	return out
}

func (s *searcher) allowed(o sarima.Order) bool {
	return o.P >= 0 && o.P <= s.cfg.MaxP &&
		o.Q >= 0 && o.Q <= s.cfg.MaxQ &&
		o.SP >= 0 && o.SP <= s.cfg.MaxSP &&
		o.SQ >= 0 && o.SQ <= s.cfg.MaxSQ
}

func (s *searcher) score(m *sarima.Model) float64 {
	switch s.criterionName() {
	case "aic":
		return m.AIC
	case "bic":
		return m.BIC
	default:
		return m.AICc
	}
}

func (s *searcher) criterionName() string {
	switch s.cfg.Criterion {
	case "aic", "bic":
		return s.cfg.Criterion
	default:
		return "aicc"
	}
}

func (s *searcher) maxModels() int {
	if s.cfg.MaxModels > 0 {
		return s.cfg.MaxModels
	}
	return 40
}

func (s *searcher) parallelism() int {
	if s.cfg.Parallelism > 0 {
		return s.cfg.Parallelism
	}
	return 1
}
