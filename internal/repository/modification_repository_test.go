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

func newModificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestModificationRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newModificationRepoMock(t)
	defer cleanup()

	repo := NewModificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO modifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mod := &models.Modification{
		DocumentID:   "doc-1",
		Description:  "Change the button color",
		OriginalCode: "<td bgcolor=\"#336699\">",
		NewCode:      "<td bgcolor=\"#CC0000\">",
		StartLine:    12,
		EndLine:      12,
		CreatedBy:    "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), mod))
	require.NotEmpty(t, mod.ID)
	require.Equal(t, models.ModificationStatusProposed, mod.Status)

	rows := sqlmock.NewRows([]string{"id", "document_id", "description", "original_code", "new_code", "start_line", "end_line", "start_col", "end_col", "status", "created_by", "applied_at", "created_at", "updated_at"}).
		AddRow(mod.ID, mod.DocumentID, mod.Description, mod.OriginalCode, mod.NewCode, 12, 12, nil, nil, "PROPOSED", "user-1", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, description")).
		WithArgs(mod.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), mod.ID)
	require.NoError(t, err)
	require.Equal(t, mod.ID, found.ID)
	require.Equal(t, 12, found.StartLine)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModificationRepositoryUpdateStatusStampsAppliedAt(t *testing.T) {
	db, mock, cleanup := newModificationRepoMock(t)
	defer cleanup()

	repo := NewModificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE modifications SET status")).
		WithArgs("mod-1", string(models.ModificationStatusApplied), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "mod-1", models.ModificationStatusApplied))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestModificationRepositoryListByDocument(t *testing.T) {
	db, mock, cleanup := newModificationRepoMock(t)
	defer cleanup()

	repo := NewModificationRepository(db)
	rows := sqlmock.NewRows([]string{"id", "document_id", "description", "original_code", "new_code", "start_line", "end_line", "start_col", "end_col", "status", "created_by", "applied_at", "created_at", "updated_at"}).
		AddRow("mod-2", "doc-1", "second", "b", "c", 3, 4, nil, nil, "APPLIED", "user-1", time.Now(), time.Now(), time.Now()).
		AddRow("mod-1", "doc-1", "first", "a", "b", 1, 2, nil, nil, "REVERTED", "user-1", time.Now(), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, description")).
		WithArgs("doc-1").
		WillReturnRows(rows)

	mods, err := repo.ListByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, mods, 2)
	require.True(t, mods[0].Applied())
	require.NoError(t, mock.ExpectationsWereMet())
}
