package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ReadCSV reads a frame from delimited text with a header row.
func ReadCSV(r io.Reader, comma rune) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	f, err := NewFrame(header...)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", f.Len()+1, err)
		}
		if err := f.AppendRow(row...); err != nil {
			return nil, fmt.Errorf("read row %d: %w", f.Len()+1, err)
		}
	}
	return f, nil
}

// WriteCSV writes the frame with a header row.
func WriteCSV(w io.Writer, f *Frame, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(f.columns); err != nil {
		return err
	}
	row := make([]string, len(f.columns))
	for i := 0; i < f.rows; i++ {
		for c := range f.columns {
			row[c] = f.cells[c][i]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSV writes input columns followed by score columns. Non-finite scores are written as empty cells.
func (t *ScoreTable) WriteCSV(w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	nIn := len(t.frame.columns)
	row := make([]string, nIn+len(t.metrics))
	for i := 0; i < t.frame.rows; i++ {
		for c := 0; c < nIn; c++ {
			row[c] = t.frame.cells[c][i]
		}
		for m, name := range t.metrics {
			row[nIn+m] = formatScore(t.scores[name][i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
