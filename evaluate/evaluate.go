// Package evaluate fits candidate models on a chronological train split, scores
// their forecasts of the held-out tail and picks the best one.
package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sartorproj/stockcast/market"
	"github.com/sartorproj/stockcast/timeseries"
)

// ErrNoCandidate is returned when every candidate failed to fit.
var ErrNoCandidate = errors.New("no candidate model could be fitted")

// DefaultTestFraction is the share of the series held out for scoring.
const DefaultTestFraction = 0.2

// Options controls the comparison.
type Options struct {
	TestFraction float64 // share of observations held out, in (0, 1)
}

// Result scores one fitted candidate on the test window.
type Result struct {
	Model    string             `json:"model"`
	Kind     Kind               `json:"kind"`
	RMSE     float64            `json:"rmse"`
	MAE      float64            `json:"mae"`
	MAPE     float64            `json:"mape"`
	Params   map[string]float64 `json:"params"`
	Forecast []float64          `json:"forecast"`
}

// MarshalJSON writes undefined metrics as null and leaves out non-finite
// parameters, neither of which JSON can represent.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	params := make(map[string]float64, len(r.Params))
	for k, v := range r.Params {
		if finite(v) {
			params[k] = v
		}
	}
	p := plain(r)
	p.Params = params
	return json.Marshal(struct {
		plain
		RMSE *float64 `json:"rmse"`
		MAE  *float64 `json:"mae"`
		MAPE *float64 `json:"mape"`
	}{p, nullable(r.RMSE), nullable(r.MAE), nullable(r.MAPE)})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func nullable(v float64) *float64 {
	if !finite(v) {
		return nil
	}
	return &v
}

// Failure records a candidate excluded from the comparison.
type Failure struct {
	Model string `json:"model"`
	Kind  Kind   `json:"kind"`
	Error string `json:"error"`
}

// Comparison is the outcome of one evaluation run. Results are ranked best first.
type Comparison struct {
	RunID     string      `json:"run_id"`
	TrainSize int         `json:"train_size"`
	TestSize  int         `json:"test_size"`
	TestDates []time.Time `json:"test_dates"`
	Actual    []float64   `json:"actual"`
	Results   []Result    `json:"results"`
	Failed    []Failure   `json:"failed,omitempty"`
	Best      *Result     `json:"best"`
	Candidate Candidate   `json:"-"`
}

// Split returns the train and test sizes for n observations. The test window is
// the last round(n*fraction) observations and both parts are non-empty.
func Split(n int, fraction float64) (train, test int, err error) {
	if fraction <= 0 || fraction >= 1 {
		return 0, 0, fmt.Errorf("test fraction must be in (0, 1), got %v", fraction)
	}
	test = int(math.Round(float64(n) * fraction))
	train = n - test
	if test < 1 || train < 1 {
		return 0, 0, fmt.Errorf("cannot split %d observations with test fraction %v", n, fraction)
	}
	return train, test, nil
}

// Compare fits every candidate on the leading part of the close series and scores
// its forecast of the trailing part. Candidates that fail are reported in Failed;
// the run fails only when none succeed.
func Compare(ctx context.Context, series *market.PriceSeries, candidates []Candidate, opts Options) (*Comparison, error) {
	frac := opts.TestFraction
	if frac == 0 {
		frac = DefaultTestFraction
	}
	closes := series.Closes()
	trainSize, testSize, err := Split(closes.Len(), frac)
	if err != nil {
		return nil, err
	}
	train := closes.Slice(0, trainSize)
	test := closes.Slice(trainSize, closes.Len())

	cmp := &Comparison{
		RunID:     uuid.NewString(),
		TrainSize: trainSize,
		TestSize:  testSize,
		TestDates: test.Timestamps,
		Actual:    test.Values,
	}

	byName := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := score(c, train, test.Values)
		if err != nil {
			cmp.Failed = append(cmp.Failed, Failure{Model: c.Name(), Kind: c.Kind, Error: err.Error()})
			continue
		}
		byName[res.Model] = c
		cmp.Results = append(cmp.Results, *res)
	}

	if len(cmp.Results) == 0 {
		return cmp, ErrNoCandidate
	}

	sort.SliceStable(cmp.Results, func(i, j int) bool {
		return Better(cmp.Results[i], cmp.Results[j])
	})
	cmp.Best = &cmp.Results[0]
	cmp.Candidate = byName[cmp.Best.Model]
	return cmp, nil
}

func score(c Candidate, train *timeseries.Series, actual []float64) (*Result, error) {
	p, err := c.Fit(train)
	if err != nil {
		return nil, err
	}
	forecast, _, _, err := p.PredictWithInterval(len(actual), 0.95)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: forecast: %w", ErrFit, c.Name(), err)
	}
	for _, v := range forecast {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s: non-finite forecast", ErrFit, c.Name())
		}
	}

	rmse, mae, mape := Metrics(actual, forecast)
	return &Result{
		Model:    c.Name(),
		Kind:     c.Kind,
		RMSE:     rmse,
		MAE:      mae,
		MAPE:     mape,
		Params:   p.Params(),
		Forecast: forecast,
	}, nil
}

// Better reports whether a ranks ahead of b: lower RMSE, ties broken by lower MAPE.
func Better(a, b Result) bool {
	if a.RMSE != b.RMSE {
		return a.RMSE < b.RMSE
	}
	return a.MAPE < b.MAPE
}

// Metrics calculates forecast accuracy. MAPE is in percent and skips zero actuals.
func Metrics(actual, predicted []float64) (rmse, mae, mape float64) {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	counted := 0
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		rmse += d * d
		mae += math.Abs(d)
		if actual[i] != 0 {
			mape += math.Abs(d) / math.Abs(actual[i]) * 100
			counted++
		}
	}
	if counted > 0 {
		mape /= float64(counted)
	} else {
		mape = math.NaN()
	}
	return math.Sqrt(rmse / float64(n)), mae / float64(n), mape
}
