package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emailgen-labs/emailgen-api/internal/dto"
	"github.com/emailgen-labs/emailgen-api/internal/models"
	appErrors "github.com/emailgen-labs/emailgen-api/pkg/errors"
	"github.com/emailgen-labs/emailgen-api/pkg/jobs"
)

type conversionRepoStub struct {
	convs map[string]*models.Conversion
}

func newConversionRepoStub() *conversionRepoStub {
	return &conversionRepoStub{convs: make(map[string]*models.Conversion)}
}

func (s *conversionRepoStub) Create(ctx context.Context, conv *models.Conversion) error {
	if conv.ID == "" {
		conv.ID = "conv-1"
	}
	s.convs[conv.ID] = conv
	return nil
}

func (s *conversionRepoStub) GetByID(ctx context.Context, id string) (*models.Conversion, error) {
	conv, ok := s.convs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *conv
	return &out, nil
}

func (s *conversionRepoStub) MarkProcessing(ctx context.Context, id string, pagesTotal int) error {
	s.convs[id].Status = models.ConversionStatusProcessing
	s.convs[id].PagesTotal = pagesTotal
	return nil
}

func (s *conversionRepoStub) UpdateProgress(ctx context.Context, id string, pagesDone, progress int) error {
	s.convs[id].PagesDone = pagesDone
	s.convs[id].Progress = progress
	return nil
}

func (s *conversionRepoStub) MarkCompleted(ctx context.Context, id, documentID string) error {
	s.convs[id].Status = models.ConversionStatusCompleted
	s.convs[id].DocumentID = &documentID
	s.convs[id].Progress = 100
	return nil
}

func (s *conversionRepoStub) MarkFailed(ctx context.Context, id, message string) error {
	s.convs[id].Status = models.ConversionStatusFailed
	s.convs[id].ErrorMessage = &message
	return nil
}

func (s *conversionRepoStub) ListPending(ctx context.Context) ([]models.Conversion, error) {
	var out []models.Conversion
	for _, c := range s.convs {
		if c.Status == models.ConversionStatusQueued || c.Status == models.ConversionStatusProcessing {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *conversionRepoStub) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type designStoreStub struct {
	design *models.Design
}

func (s *designStoreStub) GetByID(ctx context.Context, id string) (*models.Design, error) {
	if s.design == nil || s.design.ID != id {
		return nil, sql.ErrNoRows
	}
	out := *s.design
	return &out, nil
}

type fileStorageStub struct {
	dir string
}

func (s *fileStorageStub) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(s.dir, filename))
}

type converterStub struct {
	html  string
	err   error
	calls int
}

func (s *converterStub) ConvertDesign(ctx context.Context, image []byte, mimeType, instructions string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.html, nil
}

type documentWriterStub struct {
	created *models.Document
}

func (s *documentWriterStub) CreateFromConversion(ctx context.Context, ownerID, title, subject, content, sourceDesignID string) (*models.Document, error) {
	s.created = &models.Document{
		ID:      "doc-1",
		OwnerID: ownerID,
		Title:   title,
		Subject: subject,
		Content: content,
	}
	return s.created, nil
}

type queueStub struct {
	jobs       []jobs.Job
	enqueueErr error
}

func (s *queueStub) Enqueue(job jobs.Job) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func writeDesignFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestConversionServiceCreateEnqueues(t *testing.T) {
	repo := newConversionRepoStub()
	designs := &designStoreStub{design: &models.Design{ID: "design-1", Title: "Mockup", PageCount: 1}}
	queue := &queueStub{}
	svc := NewConversionService(repo, designs, &fileStorageStub{}, &converterStub{}, &documentWriterStub{}, queue, nil, zap.NewNop(), ConversionServiceConfig{})

	resp, err := svc.Create(context.Background(), dto.CreateConversionRequest{DesignID: "design-1", Title: "Spring"}, editorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.ConversionStatusQueued, resp.Status)
	require.Len(t, queue.jobs, 1)
	payload, ok := queue.jobs[0].Payload.(ConversionJobPayload)
	require.True(t, ok)
	assert.Equal(t, "Spring", payload.Title)
}

func TestConversionServiceCreateUnknownDesign(t *testing.T) {
	repo := newConversionRepoStub()
	svc := NewConversionService(repo, &designStoreStub{}, &fileStorageStub{}, &converterStub{}, &documentWriterStub{}, &queueStub{}, nil, zap.NewNop(), ConversionServiceConfig{})

	_, err := svc.Create(context.Background(), dto.CreateConversionRequest{DesignID: "missing"}, editorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConversionServiceProcessSinglePage(t *testing.T) {
	dir := t.TempDir()
	writeDesignFile(t, dir, "mockup.png", []byte("png-bytes"))

	repo := newConversionRepoStub()
	repo.convs["conv-1"] = &models.Conversion{ID: "conv-1", DesignID: "design-1", Status: models.ConversionStatusQueued, CreatedBy: "user-1"}
	designs := &designStoreStub{design: &models.Design{ID: "design-1", Title: "Mockup", StoragePath: "mockup.png", MimeType: "image/png", PageCount: 1}}
	converter := &converterStub{html: "<html><body>converted</body></html>"}
	writer := &documentWriterStub{}
	svc := NewConversionService(repo, designs, &fileStorageStub{dir: dir}, converter, writer, &queueStub{}, nil, zap.NewNop(), ConversionServiceConfig{})

	err := svc.Process(context.Background(), jobs.Job{ID: "conv-1", Payload: ConversionJobPayload{Title: "Spring", Instructions: "keep it short"}})
	require.NoError(t, err)

	conv := repo.convs["conv-1"]
	assert.Equal(t, models.ConversionStatusCompleted, conv.Status)
	assert.Equal(t, 100, conv.Progress)
	require.NotNil(t, conv.DocumentID)
	assert.Equal(t, "doc-1", *conv.DocumentID)
	assert.Equal(t, 1, converter.calls)
	require.NotNil(t, writer.created)
	assert.Equal(t, "Spring", writer.created.Title)
	assert.Equal(t, "user-1", writer.created.OwnerID)
}

func TestConversionServiceProcessMultiPage(t *testing.T) {
	dir := t.TempDir()
	writeDesignFile(t, dir, "brief.pdf", []byte("pdf-bytes"))

	repo := newConversionRepoStub()
	repo.convs["conv-1"] = &models.Conversion{ID: "conv-1", DesignID: "design-1", Status: models.ConversionStatusQueued, CreatedBy: "user-1"}
	designs := &designStoreStub{design: &models.Design{ID: "design-1", Title: "Brief", StoragePath: "brief.pdf", MimeType: "application/pdf", PageCount: 3}}
	converter := &converterStub{html: "<section>page</section>"}
	svc := NewConversionService(repo, designs, &fileStorageStub{dir: dir}, converter, &documentWriterStub{}, &queueStub{}, nil, zap.NewNop(), ConversionServiceConfig{})

	err := svc.Process(context.Background(), jobs.Job{ID: "conv-1"})
	require.NoError(t, err)

	conv := repo.convs["conv-1"]
	assert.Equal(t, models.ConversionStatusCompleted, conv.Status)
	assert.Equal(t, 3, conv.PagesTotal)
	assert.Equal(t, 3, conv.PagesDone)
	assert.Equal(t, 3, converter.calls)
}

func TestConversionServiceProcessConverterFailure(t *testing.T) {
	dir := t.TempDir()
	writeDesignFile(t, dir, "mockup.png", []byte("png-bytes"))

	repo := newConversionRepoStub()
	repo.convs["conv-1"] = &models.Conversion{ID: "conv-1", DesignID: "design-1", Status: models.ConversionStatusQueued, CreatedBy: "user-1"}
	designs := &designStoreStub{design: &models.Design{ID: "design-1", StoragePath: "mockup.png", MimeType: "image/png", PageCount: 1}}
	converter := &converterStub{err: context.DeadlineExceeded}
	svc := NewConversionService(repo, designs, &fileStorageStub{dir: dir}, converter, &documentWriterStub{}, &queueStub{}, nil, zap.NewNop(), ConversionServiceConfig{})

	err := svc.Process(context.Background(), jobs.Job{ID: "conv-1"})
	require.Error(t, err)
	assert.Equal(t, models.ConversionStatusFailed, repo.convs["conv-1"].Status)
	require.NotNil(t, repo.convs["conv-1"].ErrorMessage)
}
