package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webmonitor/internal/monitor"
)

func TestReportInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reporter, err := NewWithPool(mock, "reports")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	report := monitor.Report{
		ID:          "report-1",
		CycleID:     "cycle-1",
		URL:         "https://example.com",
		Kind:        monitor.KindImage,
		Analysis:    "no alerts",
		ArtifactURI: "gs://shots/example.com/abc.png",
		CheckedAt:   now,
		Duration:    1500 * time.Millisecond,
	}

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(
			report.ID,
			report.CycleID,
			report.URL,
			"image",
			report.Analysis,
			"",
			report.ArtifactURI,
			now,
			int64(1500),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, reporter.Report(context.Background(), report))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reporter, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO reports").WillReturnError(errors.New("connection reset"))

	err = reporter.Report(context.Background(), monitor.Report{ID: "r", Kind: monitor.KindError})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reporter, err := NewWithPool(mock, "reports")
	require.NoError(t, err)
	assert.Error(t, reporter.Report(context.Background(), monitor.Report{}))
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	reporter, err := NewWithPool(mock, "monitor_reports")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS monitor_reports").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, reporter.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "reports; DROP TABLE x")
	assert.Error(t, err)
	_, err = NewWithPool(nil, "reports")
	assert.Error(t, err)
	_, err = New(context.Background(), Config{})
	assert.Error(t, err)
}
