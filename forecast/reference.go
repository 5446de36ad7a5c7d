package forecast

import (
	"math"
	"os"
	"time"
)

// Difference compares one date of our forecast with a reference run.
type Difference struct {
	Date      time.Time `json:"date"`
	Ours      float64   `json:"ours"`
	Reference float64   `json:"reference"`
	Delta     float64   `json:"delta"` // ours - reference
	InBand    bool      `json:"in_band"`
}

// ReferenceSummary aggregates the differences over matching dates.
type ReferenceSummary struct {
	Matched     int          `json:"matched"`
	MeanAbs     float64      `json:"mean_abs_delta"`
	MaxAbs      float64      `json:"max_abs_delta"`
	InBand      int          `json:"in_band"`
	Differences []Difference `json:"differences"`
}

// LoadReference reads a reference forecast CSV from path.
func LoadReference(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// CompareReference matches rows by date. A reference value is in band when it
// lies within our 95% interval. Dates missing from either side are ignored.
func CompareReference(ours, reference []Row) *ReferenceSummary {
	byDate := make(map[time.Time]Row, len(reference))
	for _, r := range reference {
		byDate[r.Date] = r
	}

	s := &ReferenceSummary{}
	total := 0.0
	for _, o := range ours {
		ref, ok := byDate[o.Date]
		if !ok {
			continue
		}
		d := Difference{
			Date:      o.Date,
			Ours:      o.Predicted,
			Reference: ref.Predicted,
			Delta:     o.Predicted - ref.Predicted,
			InBand:    ref.Predicted >= o.Lower95 && ref.Predicted <= o.Upper95,
		}
		abs := math.Abs(d.Delta)
		total += abs
		s.MaxAbs = math.Max(s.MaxAbs, abs)
		if d.InBand {
			s.InBand++
		}
		s.Differences = append(s.Differences, d)
	}
	s.Matched = len(s.Differences)
	if s.Matched > 0 {
		s.MeanAbs = total / float64(s.Matched)
	}
	return s
}
