package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
	"github.com/campuslabs/labops-api/pkg/jobs"
	"github.com/campuslabs/labops-api/pkg/storage"
)

type exportStoreStub struct {
	jobs map[string]*models.ExportJob
}

func newExportStoreStub() *exportStoreStub {
	return &exportStoreStub{jobs: make(map[string]*models.ExportJob)}
}

func (s *exportStoreStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "exp-stub"
	}
	job.Status = models.ExportStatusPending
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

func (s *exportStoreStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := s.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *exportStoreStub) MarkDone(ctx context.Context, id, filePath, downloadURL string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusDone
	job.FilePath = filePath
	job.DownloadURL = downloadURL
	return nil
}

func (s *exportStoreStub) MarkFailed(ctx context.Context, id, reason string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusFailed
	job.Failure = reason
	return nil
}

func (s *exportStoreStub) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var paths []string
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			paths = append(paths, job.FilePath)
			delete(s.jobs, id)
		}
	}
	return paths, nil
}

type requestSourceStub struct {
	record *models.MaintenanceRequest
	err    error
}

func (s *requestSourceStub) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *requestSourceStub) List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.record == nil {
		return nil, nil
	}
	return []models.MaintenanceRequest{*s.record}, nil
}

type deadstockSourceStub struct {
	entries []models.DeadstockEntry
}

func (s *deadstockSourceStub) List(ctx context.Context, claims *models.JWTClaims, filter models.DeadstockFilter) ([]models.DeadstockEntry, error) {
	return s.entries, nil
}

func newTestExportService(t *testing.T, store *exportStoreStub, requests *requestSourceStub) *ExportService {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(store, requests, &deadstockSourceStub{}, nil, files, signer, ExportServiceConfig{})
}

func TestExportServiceCreateRejectsUnknownFormat(t *testing.T) {
	svc := newTestExportService(t, newExportStoreStub(), &requestSourceStub{})

	_, err := svc.CreateExport(context.Background(), claimsFor(models.RoleAdmin, "admin-1"), dto.CreateExportRequest{
		Kind:   models.ExportKindRequestList,
		Format: "docx",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCreateRequiresTargetForSingleTicket(t *testing.T) {
	svc := newTestExportService(t, newExportStoreStub(), &requestSourceStub{})

	_, err := svc.CreateExport(context.Background(), claimsFor(models.RoleAdmin, "admin-1"), dto.CreateExportRequest{
		Kind:   models.ExportKindRequest,
		Format: models.ExportFormatPDF,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderSingleTicket(t *testing.T) {
	store := newExportStoreStub()
	requests := &requestSourceStub{record: storedRequest(4)}
	svc := newTestExportService(t, store, requests)

	job := &models.ExportJob{ID: "exp-1", Kind: models.ExportKindRequest, Format: models.ExportFormatCSV, TargetID: "req-1", RequestedBy: "admin-1"}
	require.NoError(t, store.Create(context.Background(), job))

	svc.handleJob(context.Background(), jobs.Job{ID: "exp-1", Payload: exportPayload{
		JobID:    "exp-1",
		Kind:     models.ExportKindRequest,
		Format:   models.ExportFormatCSV,
		TargetID: "req-1",
		Claims:   *claimsFor(models.RoleAdmin, "admin-1"),
	}})

	done, err := store.GetByID(context.Background(), "exp-1")
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusDone, done.Status)
	require.NotEmpty(t, done.FilePath)
	require.Contains(t, done.DownloadURL, "/exports/download/")

	file, _, err := svc.OpenDownload(context.Background(), extractToken(done.DownloadURL))
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceFailureIsReportedOnce(t *testing.T) {
	store := newExportStoreStub()
	requests := &requestSourceStub{err: appErrors.Clone(appErrors.ErrNotFound, "maintenance request not found")}
	svc := newTestExportService(t, store, requests)

	job := &models.ExportJob{ID: "exp-2", Kind: models.ExportKindRequest, Format: models.ExportFormatPDF, TargetID: "req-gone", RequestedBy: "admin-1"}
	require.NoError(t, store.Create(context.Background(), job))

	err := svc.handleJob(context.Background(), jobs.Job{ID: "exp-2", Payload: exportPayload{
		JobID:    "exp-2",
		Kind:     models.ExportKindRequest,
		Format:   models.ExportFormatPDF,
		TargetID: "req-gone",
		Claims:   *claimsFor(models.RoleAdmin, "admin-1"),
	}})
	require.NoError(t, err)

	failed, err := store.GetByID(context.Background(), "exp-2")
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusFailed, failed.Status)
	require.Contains(t, failed.Failure, "not found")
}

func TestExportServiceDownloadRejectsTamperedToken(t *testing.T) {
	store := newExportStoreStub()
	svc := newTestExportService(t, store, &requestSourceStub{record: storedRequest(2)})

	_, _, err := svc.OpenDownload(context.Background(), "exp-1.123.zm9v.bad-signature")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func extractToken(downloadURL string) string {
	return filepath.Base(downloadURL)
}
