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

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryCreateWritesInitialVersion(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	doc := &models.Document{
		OwnerID: "user-1",
		Title:   "Spring Campaign",
		Subject: "Spring deals inside",
		Content: "<html><body>Hello</body></html>",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)
	require.Equal(t, 1, doc.CurrentVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositorySaveNewVersionAdvancesPointer(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO document_versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET subject")).
		WithArgs("doc-1", "New subject", "<html>v2</html>", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := &models.Document{
		ID:             "doc-1",
		OwnerID:        "user-1",
		Subject:        "New subject",
		Content:        "<html>v2</html>",
		CurrentVersion: 2,
	}
	next, err := repo.SaveNewVersion(context.Background(), doc, "tweak header", "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, next)
	require.Equal(t, 3, doc.CurrentVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryGetVersion(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "document_id", "version", "content", "comment", "created_by", "created_at"}).
		AddRow("ver-1", "doc-1", 2, "<html>v2</html>", "tweak header", "user-1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, version, content")).
		WithArgs("doc-1", 2).
		WillReturnRows(rows)

	ver, err := repo.GetVersion(context.Background(), "doc-1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, ver.Version)
	require.Equal(t, "<html>v2</html>", ver.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositorySoftDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET deleted_at")).
		WithArgs("doc-missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "doc-missing", time.Now().UTC())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
