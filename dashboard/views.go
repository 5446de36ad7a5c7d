package dashboard

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sartorproj/stockcast/evaluate"
	"github.com/sartorproj/stockcast/forecast"
)

//go:embed templates/*.html
var templateFS embed.FS

// Dashboard tabs.
const (
	TabHistory    = "history"
	TabForecast   = "forecast"
	TabModel      = "model"
	TabComparison = "comparison"
)

var tabs = []string{TabHistory, TabForecast, TabModel, TabComparison}

var funcs = template.FuncMap{
	"price": func(v float64) string { return fixed2(v, "") },
	"pct":   func(v float64) string { return fixed2(v, "%") },
	"num":   func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) },
	"date":  func(t time.Time) string { return t.Format(time.DateOnly) },
}

// fixed2 formats v with two decimals, or "-" when v is not finite.
func fixed2(v float64, suffix string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(2) + suffix
}

func parseTemplates() (*template.Template, error) {
	return template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

type param struct {
	Name  string
	Value float64
}

type pageData struct {
	Symbol       string
	Model        string
	LastDate     time.Time
	LastClose    float64
	Observations int
	Filled       int
	Horizon      int
	Range        HorizonRange
	Tab          string
	Tabs         []string
	ShowCI       bool
	Error        string

	Forecast    *forecast.Result
	HistoryURL  string
	ForecastURL string
	CSVURL      string
	XLSXURL     string

	Summary string
	Params  []param

	Comparison   *evaluate.Comparison
	Reference    *forecast.ReferenceSummary
	ReferenceErr string
}

// TabURL links to tab keeping the current horizon and CI toggle.
func (p pageData) TabURL(tab string) string {
	return "/?" + p.query(map[string]string{"tab": tab})
}

func (p pageData) query(extra map[string]string) string {
	q := url.Values{}
	q.Set("tab", p.Tab)
	q.Set("horizon", strconv.Itoa(p.Horizon))
	q.Set("ci", strconv.FormatBool(p.ShowCI))
	for k, v := range extra {
		q.Set(k, v)
	}
	return q.Encode()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	f := s.state.Forecaster
	data := pageData{
		Symbol:       s.state.Symbol,
		Model:        f.Model().Name(),
		LastDate:     f.LastDate(),
		LastClose:    f.LastClose(),
		Observations: f.NObs(),
		Filled:       s.state.Clean.ForwardFilled,
		Range:        s.horizonRange(),
		Tab:          r.URL.Query().Get("tab"),
		Tabs:         tabs,
		ShowCI:       showCI(r),
		Summary:      f.Model().Describe(),
		Comparison:   s.state.Comparison,
		Reference:    s.reference,
		ReferenceErr: s.state.ReferenceErr,
	}
	if !slices.Contains(tabs, data.Tab) {
		data.Tab = TabForecast
	}
	params := f.Model().Params()
	for _, k := range sortedKeys(params) {
		data.Params = append(data.Params, param{Name: k, Value: params[k]})
	}

	status := http.StatusOK
	res, err := s.forecast(r)
	if err != nil {
		if !isRejection(err) {
			s.errors.handle(w, r, err)
			return
		}
		status = http.StatusBadRequest
		data.Error = rejectionMessage(err)
		s.logger.WarnContext(r.Context(), "horizon rejected", "error", err)
		res, err = f.Forecast(s.cfg.Forecast.DefaultHorizon)
		if err != nil {
			s.errors.handle(w, r, err)
			return
		}
	}
	data.Forecast = res
	data.Horizon = res.Horizon

	h := strconv.Itoa(res.Horizon)
	ci := strconv.FormatBool(data.ShowCI)
	data.HistoryURL = "/chart/history.svg"
	data.ForecastURL = "/chart/forecast.svg?" + url.Values{"horizon": {h}, "ci": {ci}}.Encode()
	data.CSVURL = "/forecast.csv?horizon=" + h
	data.XLSXURL = "/forecast.xlsx?horizon=" + h

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.errors.handle(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func rejectionMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
