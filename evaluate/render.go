package evaluate

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var titleStyle = lipgloss.NewStyle().Bold(true)

// Render writes the ranked results and any failures as terminal tables.
func (c *Comparison) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s\n", titleStyle.Render("Model comparison")); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Run %s  train=%d  test=%d\n", c.RunID, c.TrainSize, c.TestSize); err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("rank", "model", "RMSE", "MAE", "MAPE %")
	for i, r := range c.Results {
		t.Row(fmt.Sprint(i+1), r.Model, metric(r.RMSE), metric(r.MAE), metric(r.MAPE))
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	if len(c.Failed) > 0 {
		f := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("excluded", "reason")
		for _, fail := range c.Failed {
			f.Row(fail.Model, fail.Error)
		}
		if _, err := fmt.Fprintln(w, f.Render()); err != nil {
			return err
		}
	}

	if c.Best != nil {
		_, err := fmt.Fprintf(w, "Best: %s\n", c.Best.Model)
		return err
	}
	return nil
}

func metric(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
