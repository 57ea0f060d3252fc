package metric

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datar-psa/mtdetect/api"
	"github.com/datar-psa/mtdetect/table"
)

type lengthScorer struct{}

func (lengthScorer) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	if strings.TrimSpace(in.Output) == "" {
		return api.Score{Name: "Length", Error: errors.New("empty translation")}
	}
	return api.Score{Name: "Length", Score: float64(len([]rune(in.Output)))}
}

func TestScoreRows(t *testing.T) {
	frame := table.FromRecords([]table.Record{
		{Source: "s1", Translation: "abc", Target: "t1"},
		{Source: "s2", Translation: " ", Target: "t2"},
		{Source: "s3", Translation: "привет", Target: "t3"},
	})

	scores, err := ScoreRows(context.Background(), frame, lengthScorer{}, table.ColumnTranslations)

	var rowErrs *RowErrors
	if !errors.As(err, &rowErrs) {
		t.Fatalf("ScoreRows() error = %v, want *RowErrors", err)
	}
	if got := rowErrs.FailedRows(); len(got) != 1 || got[0] != 1 {
		t.Errorf("FailedRows() = %v, want [1]", got)
	}
	if len(scores) != 3 {
		t.Fatalf("ScoreRows() returned %d scores, want 3", len(scores))
	}
	if scores[0] != 3 || scores[2] != 6 {
		t.Errorf("ScoreRows() = %v, want [3 NaN 6]", scores)
	}
	if !math.IsNaN(scores[1]) {
		t.Errorf("ScoreRows() row 1 = %v, want NaN", scores[1])
	}
}

func TestFromScorer_MissingColumn(t *testing.T) {
	frame, err := table.NewFrame(table.ColumnSources, table.ColumnTranslations)
	if err != nil {
		t.Fatal(err)
	}
	_ = frame.AppendRow("s", "t")

	m := FromScorer("Length", lengthScorer{}, table.ColumnTranslations, table.ColumnTargets)
	if m.Name() != "Length" {
		t.Errorf("Name() = %q, want Length", m.Name())
	}
	_, err = m.Compute(context.Background(), frame)
	if !errors.Is(err, table.ErrMissingColumn) {
		t.Errorf("Compute() error = %v, want missing column", err)
	}
}

func TestScoreRows_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frame := table.FromRecords([]table.Record{{Translation: "x"}})
	if _, err := ScoreRows(ctx, frame, lengthScorer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("ScoreRows() error = %v, want context.Canceled", err)
	}
}
