package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
	"github.com/joseph-ayodele/invoice-extract/internal/evaluation"
	"github.com/joseph-ayodele/invoice-extract/internal/repository"
)

func TestEvaluationXLSX(t *testing.T) {
	rows := []evaluation.Row{
		{ID: "inv-1", Metrics: evaluation.Metrics{ExactMatch: true, FieldAccuracy: 1, BLEU: 1, F1: 1}},
		{Metrics: evaluation.Metrics{FieldAccuracy: 0.5, Levenshtein: 0.2}},
	}
	data, err := NewService(nil, nil).EvaluationXLSX(rows, evaluation.Summarize(rows))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{evaluationSheet, summarySheet}, f.GetSheetList())

	got, err := f.GetRows(evaluationSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Exact Match", got[0][1])
	assert.Equal(t, "inv-1", got[1][0])
	assert.Equal(t, "2", got[2][0])
	assert.Equal(t, "0.5", got[2][2])

	v, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	v, err = f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)
}

func TestJobsXLSX(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(ctx, nil))

	repo := repository.NewExtractJobRepository(db, nil)
	ok, err := repo.Create(ctx, "INVOICE A")
	require.NoError(t, err)
	require.NoError(t, repo.MarkRunning(ctx, ok.ID))
	require.NoError(t, repo.FinishSuccess(ctx, ok.ID, "done", "{}", []byte(`{"total":"1"}`), []string{"a", "b"}))
	_, err = repo.Create(ctx, "INVOICE B")
	require.NoError(t, err)

	data, err := NewService(repo, nil).JobsXLSX(ctx, repository.JobFilter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(jobsSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Job ID", got[0][0])

	var okRow []string
	for _, r := range got[1:] {
		if r[0] == ok.ID.String() {
			okRow = r
		}
	}
	require.NotNil(t, okRow)
	assert.Equal(t, "OK", okRow[1])
	assert.Equal(t, `{"total":"1"}`, okRow[6])
	assert.Equal(t, "a; b", okRow[7])
}

func TestJobsXLSXWithoutStore(t *testing.T) {
	_, err := NewService(nil, nil).JobsXLSX(context.Background(), repository.JobFilter{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
