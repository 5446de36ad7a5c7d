package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sartorproj/stockcast/timeseries"
)

// CSV column names.
const (
	ColDate      = "Date"
	ColPredicted = "PredictedClose"
	ColLower     = "LowerCI95"
	ColUpper     = "UpperCI95"
)

// Header is the export column order.
var Header = []string{ColDate, ColPredicted, ColLower, ColUpper}

var columnAliases = map[string]string{
	"Predicted_Close": ColPredicted,
	"Lower_95":        ColLower,
	"Upper_95":        ColUpper,
}

const dateLayout = "2006-01-02"

// WriteCSV writes rows with the Header columns. Values use the shortest
// representation that parses back to the same float64.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Date.Format(dateLayout),
			strconv.FormatFloat(r.Predicted, 'g', -1, 64),
			strconv.FormatFloat(r.Lower95, 'g', -1, 64),
			strconv.FormatFloat(r.Upper95, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a forecast table written by WriteCSV or by a reference run using
// the Predicted_Close, Lower_95 and Upper_95 headers.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if alias, ok := columnAliases[h]; ok {
			h = alias
		}
		idx[h] = i
	}
	for _, col := range Header {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := timeseries.ParseDate(rec[idx[ColDate]], dateLayout, false)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := Row{Date: date}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{ColPredicted, &row.Predicted},
			{ColLower, &row.Lower95},
			{ColUpper, &row.Upper95},
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[f.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.col, err)
			}
			*f.dst = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

const sheetName = "Forecast"

// WriteXLSX writes the forecast as a single-sheet workbook.
func WriteXLSX(w io.Writer, res *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return err
		}
	}
	for i, r := range res.Rows {
		row := i + 2
		values := []any{r.Date.Format(dateLayout), r.Predicted, r.Lower95, r.Upper95}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(sheetName, "A", "D", 16); err != nil {
		return err
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: res.Model + " forecast"}); err != nil {
		return err
	}

	return f.Write(w)
}
