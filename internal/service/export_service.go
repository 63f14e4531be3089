package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/campuslabs/labops-api/internal/dto"
	"github.com/campuslabs/labops-api/internal/models"
	"github.com/campuslabs/labops-api/internal/workflow"
	appErrors "github.com/campuslabs/labops-api/pkg/errors"
	"github.com/campuslabs/labops-api/pkg/export"
	"github.com/campuslabs/labops-api/pkg/jobs"
	"github.com/campuslabs/labops-api/pkg/storage"
)

type exportStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkDone(ctx context.Context, id, filePath, downloadURL string) error
	MarkFailed(ctx context.Context, id, reason string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

type exportRequestSource interface {
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.MaintenanceRequest, error)
}

type exportDeadstockSource interface {
	List(ctx context.Context, claims *models.JWTClaims, filter models.DeadstockFilter) ([]models.DeadstockEntry, error)
}

type exportMetrics interface {
	ExportFinished(format, status string)
}

// exportPayload is what travels through the job queue. Claims are
// snapshotted at enqueue time so the render applies the requester's
// visibility, not the worker's.
type exportPayload struct {
	JobID    string
	Kind     models.ExportKind
	Format   models.ExportFormat
	TargetID string
	Claims   models.JWTClaims
}

// ExportService renders ticket and deadstock snapshots asynchronously.
// A failed render is reported once on the job record; the queue does
// not retry it.
type ExportService struct {
	store     exportStore
	requests  exportRequestSource
	deadstock exportDeadstockSource
	metrics   exportMetrics

	pdf  *export.PDFExporter
	csv  *export.CSVExporter
	xlsx *export.XLSXExporter

	files  *storage.LocalStorage
	signer *storage.SignedURLSigner
	queue  *jobs.Queue
	logger *zap.Logger
}

// ExportServiceConfig wires the export worker pool.
type ExportServiceConfig struct {
	WorkerConcurrency int
	Logger            *zap.Logger
}

// NewExportService constructs the service and its job queue. Call
// Start before enqueuing work.
func NewExportService(store exportStore, requests exportRequestSource, deadstock exportDeadstockSource, metrics exportMetrics, files *storage.LocalStorage, signer *storage.SignedURLSigner, cfg ExportServiceConfig) *ExportService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ExportService{
		store:     store,
		requests:  requests,
		deadstock: deadstock,
		metrics:   metrics,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		xlsx:      export.NewXLSXExporter(),
		files:     files,
		signer:    signer,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("exports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// CreateExport queues a snapshot export and returns the pending job.
func (s *ExportService) CreateExport(ctx context.Context, claims *models.JWTClaims, req dto.CreateExportRequest) (*models.ExportJob, error) {
	switch req.Format {
	case models.ExportFormatPDF, models.ExportFormatCSV, models.ExportFormatXLSX:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}
	switch req.Kind {
	case models.ExportKindRequest:
		if req.TargetID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "targetId is required for a single-ticket export")
		}
		// Authorization runs now so a forbidden ticket fails fast,
		// not in the worker.
		if _, err := s.requests.Get(ctx, claims, req.TargetID); err != nil {
			return nil, err
		}
	case models.ExportKindRequestList, models.ExportKindDeadstockList:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export kind %q", req.Kind))
	}

	job := &models.ExportJob{
		Kind:        req.Kind,
		Format:      req.Format,
		TargetID:    req.TargetID,
		RequestedBy: claims.UserID,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:   job.ID,
		Type: string(req.Kind),
		Payload: exportPayload{
			JobID:    job.ID,
			Kind:     req.Kind,
			Format:   req.Format,
			TargetID: req.TargetID,
			Claims:   *claims,
		},
	}); err != nil {
		if markErr := s.store.MarkFailed(ctx, job.ID, "export queue unavailable"); markErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return job, nil
}

// Status reports job progress to its requester.
func (s *ExportService) Status(ctx context.Context, claims *models.JWTClaims, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.RequestedBy != claims.UserID && claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}

	return &dto.ExportStatusResponse{
		ID:          job.ID,
		Status:      job.Status,
		DownloadURL: job.DownloadURL,
		Failure:     job.Failure,
	}, nil
}

// OpenDownload validates a signed token and opens the artifact.
func (s *ExportService) OpenDownload(ctx context.Context, token string) (*os.File, *models.ExportJob, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.store.GetByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusDone || job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export artifact not available")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export artifact")
	}
	return file, job, nil
}

// CleanupExpired removes stale export rows and their artifacts. Wired
// to the cron schedule at startup.
func (s *ExportService) CleanupExpired(ctx context.Context, maxAge time.Duration) {
	paths, err := s.store.DeleteOlderThan(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := s.files.Delete(path); err != nil {
			s.logger.Warn("failed to remove export artifact", zap.String("path", path), zap.Error(err))
		}
	}
	if len(paths) > 0 {
		s.logger.Info("export cleanup removed stale jobs", zap.Int("count", len(paths)))
	}
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		s.logger.Error("export job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}

	data, ext, err := s.render(ctx, payload)
	if err != nil {
		s.fail(ctx, payload, err)
		return nil
	}

	filename := fmt.Sprintf("%s.%s", payload.JobID, ext)
	relPath, err := s.files.Save(filename, data)
	if err != nil {
		s.fail(ctx, payload, err)
		return nil
	}

	token, _, err := s.signer.Generate(payload.JobID, relPath)
	if err != nil {
		s.fail(ctx, payload, err)
		return nil
	}

	downloadURL := "/api/v1/exports/download/" + token
	if err := s.store.MarkDone(ctx, payload.JobID, relPath, downloadURL); err != nil {
		s.logger.Error("failed to mark export done", zap.String("job_id", payload.JobID), zap.Error(err))
		return nil
	}
	if s.metrics != nil {
		s.metrics.ExportFinished(string(payload.Format), string(models.ExportStatusDone))
	}
	return nil
}

func (s *ExportService) fail(ctx context.Context, payload exportPayload, cause error) {
	s.logger.Warn("export job failed",
		zap.String("job_id", payload.JobID),
		zap.String("kind", string(payload.Kind)),
		zap.Error(cause))
	if err := s.store.MarkFailed(ctx, payload.JobID, cause.Error()); err != nil {
		s.logger.Error("failed to mark export failed", zap.String("job_id", payload.JobID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ExportFinished(string(payload.Format), string(models.ExportStatusFailed))
	}
}

func (s *ExportService) render(ctx context.Context, payload exportPayload) ([]byte, string, error) {
	switch payload.Kind {
	case models.ExportKindRequest:
		record, err := s.requests.Get(ctx, &payload.Claims, payload.TargetID)
		if err != nil {
			return nil, "", err
		}
		return s.renderRequestDocument(record, payload.Format)
	case models.ExportKindRequestList:
		records, err := s.requests.List(ctx, &payload.Claims, models.RequestFilter{Limit: 200})
		if err != nil {
			return nil, "", err
		}
		return s.renderDataset(requestListDataset(records), payload.Format, "Maintenance Requests")
	case models.ExportKindDeadstockList:
		entries, err := s.deadstock.List(ctx, &payload.Claims, models.DeadstockFilter{Limit: 200})
		if err != nil {
			return nil, "", err
		}
		return s.renderDataset(deadstockDataset(entries), payload.Format, "Deadstock Register")
	}
	return nil, "", fmt.Errorf("unsupported export kind %q", payload.Kind)
}

// renderRequestDocument snapshots one ticket as labelled sections in
// step order, with the same conditional suppression the view applies.
func (s *ExportService) renderRequestDocument(record *models.MaintenanceRequest, format models.ExportFormat) ([]byte, string, error) {
	doc := export.Document{
		Title:    "Maintenance Request",
		Subtitle: fmt.Sprintf("Ticket %s, step %d of %d", record.ID, record.CurrentStep, workflow.TotalSteps),
	}
	for _, section := range workflow.Render(record, "") {
		out := export.Section{Heading: fmt.Sprintf("%d. %s", section.Ordinal, section.Title)}
		for _, field := range section.Fields {
			out.Fields = append(out.Fields, export.Field{Label: field.Label, Value: field.Value})
		}
		doc.Sections = append(doc.Sections, out)
	}

	switch format {
	case models.ExportFormatPDF:
		data, err := s.pdf.RenderDocument(doc)
		return data, "pdf", err
	case models.ExportFormatCSV:
		data, err := s.csv.RenderDocument(doc)
		return data, "csv", err
	case models.ExportFormatXLSX:
		data, err := s.xlsx.Render(documentAsDataset(doc), "Request")
		return data, "xlsx", err
	}
	return nil, "", fmt.Errorf("unsupported export format %q", format)
}

func (s *ExportService) renderDataset(data export.Dataset, format models.ExportFormat, title string) ([]byte, string, error) {
	switch format {
	case models.ExportFormatPDF:
		out, err := s.pdf.RenderTable(data, title)
		return out, "pdf", err
	case models.ExportFormatCSV:
		out, err := s.csv.Render(data)
		return out, "csv", err
	case models.ExportFormatXLSX:
		out, err := s.xlsx.Render(data, title)
		return out, "xlsx", err
	}
	return nil, "", fmt.Errorf("unsupported export format %q", format)
}

func requestListDataset(records []models.MaintenanceRequest) export.Dataset {
	data := export.Dataset{
		Headers: []string{"ID", "Lab", "Problem", "Reported", "Department", "Location", "Step", "Approval"},
	}
	for _, r := range records {
		data.Rows = append(data.Rows, []string{
			r.ID, r.LabID, string(r.TypeOfProblem), r.ReportDate, r.Department, r.Location,
			strconv.Itoa(r.CurrentStep), string(r.AdminApprovalStatus),
		})
	}
	return data
}

func deadstockDataset(entries []models.DeadstockEntry) export.Dataset {
	data := export.Dataset{
		Headers: []string{"ID", "Lab", "Item", "Quantity", "Reason", "Reported", "Recorded By"},
	}
	for _, e := range entries {
		data.Rows = append(data.Rows, []string{
			e.ID, e.LabID, e.ItemName, strconv.Itoa(e.Quantity), e.Reason, e.ReportDate, e.RecordedBy,
		})
	}
	return data
}

func documentAsDataset(doc export.Document) export.Dataset {
	data := export.Dataset{Headers: []string{"Field", "Value"}}
	for _, section := range doc.Sections {
		data.Rows = append(data.Rows, []string{section.Heading, ""})
		for _, field := range section.Fields {
			data.Rows = append(data.Rows, []string{field.Label, field.Value})
		}
	}
	return data
}
