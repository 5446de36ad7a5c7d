package dashboard

import (
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/sartorproj/stockcast/forecast"
	"github.com/sartorproj/stockcast/market"
)

const (
	chartWidth  = 960
	chartHeight = 420
)

var (
	historyColor  = drawing.ColorFromHex("1f77b4")
	forecastColor = drawing.ColorFromHex("d62728")
	bandColor     = drawing.ColorFromHex("ff9896").WithAlpha(110)
)

func priceAxis(v any) string {
	if f, ok := v.(float64); ok {
		return decimal.NewFromFloat(f).StringFixed(0)
	}
	return ""
}

func newChart(series []chart.Series) chart.Chart {
	c := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 10, Right: 10, Bottom: 10},
		},
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{ValueFormatter: priceAxis},
		Series: series,
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c
}

func closeLine(s *market.PriceSeries, name string) chart.TimeSeries {
	return chart.TimeSeries{
		Name:    name,
		XValues: s.Dates(),
		YValues: s.Column(market.ColClose),
		Style:   chart.Style{StrokeColor: historyColor, StrokeWidth: 1.5},
	}
}

// renderHistory draws the closes of s as an SVG line chart.
func renderHistory(w io.Writer, s *market.PriceSeries, symbol string) error {
	graph := newChart([]chart.Series{closeLine(s, symbol+" close")})
	return graph.Render(chart.SVG, w)
}

// renderForecast draws recent history, the forecast line and, when band is
// set, the shaded 95% interval. The band is the upper bound filled with a
// translucent color, masked below the lower bound with the background color.
func renderForecast(w io.Writer, recent *market.PriceSeries, res *forecast.Result, band bool) error {
	dates := make([]time.Time, 0, len(res.Rows)+1)
	point := make([]float64, 0, len(res.Rows)+1)
	lower := make([]float64, 0, len(res.Rows)+1)
	upper := make([]float64, 0, len(res.Rows)+1)

	// Anchor the forecast at the last observation so the lines join.
	last := recent.Last()
	dates = append(dates, last.Date)
	point = append(point, last.Close)
	lower = append(lower, last.Close)
	upper = append(upper, last.Close)
	for _, r := range res.Rows {
		dates = append(dates, r.Date)
		point = append(point, r.Predicted)
		lower = append(lower, r.Lower95)
		upper = append(upper, r.Upper95)
	}

	var series []chart.Series
	if band {
		series = append(series,
			chart.TimeSeries{
				Name:    "95% interval",
				XValues: dates,
				YValues: upper,
				Style:   chart.Style{StrokeColor: bandColor, FillColor: bandColor},
			},
			chart.TimeSeries{
				XValues: dates,
				YValues: lower,
				Style:   chart.Style{StrokeColor: bandColor, FillColor: drawing.ColorWhite},
			},
		)
	}
	series = append(series,
		closeLine(recent, "history"),
		chart.TimeSeries{
			Name:    res.Model + " forecast",
			XValues: dates,
			YValues: point,
			Style:   chart.Style{StrokeColor: forecastColor, StrokeWidth: 2, StrokeDashArray: []float64{5, 3}},
		},
	)

	graph := newChart(series)
	return graph.Render(chart.SVG, w)
}
