package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

func newConversionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConversionRepositoryCreateDefaultsToQueued(t *testing.T) {
	db, mock, cleanup := newConversionRepoMock(t)
	defer cleanup()

	repo := NewConversionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conversions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	conv := &models.Conversion{DesignID: "design-1", CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), conv))
	require.Equal(t, models.ConversionStatusQueued, conv.Status)
	require.NotEmpty(t, conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryLifecycleUpdates(t *testing.T) {
	db, mock, cleanup := newConversionRepoMock(t)
	defer cleanup()

	repo := NewConversionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversions SET status")).
		WithArgs("conv-1", string(models.ConversionStatusProcessing), 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkProcessing(context.Background(), "conv-1", 3))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversions SET pages_done")).
		WithArgs("conv-1", 2, 66, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateProgress(context.Background(), "conv-1", 2, 66))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE conversions SET status")).
		WithArgs("conv-1", string(models.ConversionStatusCompleted), "doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkCompleted(context.Background(), "conv-1", "doc-1"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryListPending(t *testing.T) {
	db, mock, cleanup := newConversionRepoMock(t)
	defer cleanup()

	repo := NewConversionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "design_id", "document_id", "status", "progress", "pages_total", "pages_done", "error_message", "created_by", "started_at", "finished_at", "created_at", "updated_at"}).
		AddRow("conv-1", "design-1", nil, "QUEUED", 0, 0, 0, nil, "user-1", nil, nil, time.Now(), time.Now()).
		AddRow("conv-2", "design-2", nil, "PROCESSING", 50, 2, 1, nil, "user-1", time.Now(), nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, design_id, document_id")).
		WithArgs(string(models.ConversionStatusQueued), string(models.ConversionStatusProcessing)).
		WillReturnRows(rows)

	convs, err := repo.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConversionRepositoryDeleteFinishedBefore(t *testing.T) {
	db, mock, cleanup := newConversionRepoMock(t)
	defer cleanup()

	repo := NewConversionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conversions")).
		WithArgs(string(models.ConversionStatusCompleted), string(models.ConversionStatusFailed), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := repo.DeleteFinishedBefore(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 4, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
