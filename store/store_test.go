package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datar-psa/mtdetect/table"
)

func scoreTable(t *testing.T) *table.ScoreTable {
	t.Helper()
	frame := table.FromRecords([]table.Record{
		{Source: "s1", Translation: "t1", Target: "r1"},
		{Source: "s2", Translation: "t2", Target: "r2"},
	})
	st := table.NewScoreTable(frame)
	require.NoError(t, st.Add("BLEU", []float64{75.0, 7.0}))
	require.NoError(t, st.Add("METEOR", []float64{math.NaN(), math.NaN()}))
	st.Omit("BLEURT", errors.New("no BLEURT backend configured"))
	return st
}

func openTemp(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_SaveGetRun(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	run := NewRun("data/mock.csv", scoreTable(t))
	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "run ids are UUIDs")
	assert.Equal(t, id, run.ID)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "data/mock.csv", got.Input)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, []string{"BLEU", "METEOR"}, got.Metrics)
	assert.InDelta(t, 41.0, got.Means["BLEU"], 1e-12)
	assert.True(t, math.IsNaN(got.Means["METEOR"]), "all-NaN mean survives as NaN")
	assert.Equal(t, map[string]string{"BLEURT": "no BLEURT backend configured"}, got.Omitted)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSQLStore_GetRunNotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRun(context.Background(), "missing"), ErrNotFound)
}

func TestSQLStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, input := range []string{"a.csv", "b.csv", "c.csv"} {
		run := NewRun(input, scoreTable(t))
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := s.SaveRun(ctx, run)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.csv", all[0].Input)
	assert.Equal(t, "a.csv", all[2].Input)

	latest, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "b.csv", latest[1].Input)

	require.NoError(t, s.DeleteRun(ctx, all[0].ID))
	all, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLStore_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	run := NewRun("x.csv", scoreTable(t))
	_, err := s.SaveRun(ctx, run)
	require.NoError(t, err)

	dup := NewRun("y.csv", scoreTable(t))
	dup.ID = run.ID
	_, err = s.SaveRun(ctx, dup)
	require.Error(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "x.csv", got.Input, "failed insert leaves the original intact")
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.SaveRun(ctx, NewRun("mock", scoreTable(t)))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "mock", got.Input)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveRun(context.Background(), NewRun("mem", scoreTable(t)))
	require.NoError(t, err)
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
