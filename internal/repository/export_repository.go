package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslabs/labops-api/internal/models"
)

const exportColumns = `id, kind, format, target_id, status, file_path, download_url, failure, requested_by, created_at, completed_at`

// ExportRepository persists export jobs so status survives a restart
// and download links can be validated after the worker finishes.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create inserts a pending export job.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO export_jobs (id, kind, format, target_id, status, file_path, download_url, failure, requested_by, created_at, completed_at)
	VALUES (:id, :kind, :format, :target_id, :status, :file_path, :download_url, :failure, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID fetches one export job.
func (r *ExportRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE id = $1`, exportColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkDone records a finished job, its artifact path and download link.
func (r *ExportRepository) MarkDone(ctx context.Context, id, filePath, downloadURL string) error {
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, download_url = $4, failure = '', completed_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ExportStatusDone, filePath, downloadURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark export done: %w", err)
	}
	return requireRowsAffected(result)
}

// MarkFailed records a failed job with its reason.
func (r *ExportRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE export_jobs SET status = $2, failure = $3, completed_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ExportStatusFailed, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return requireRowsAffected(result)
}

// DeleteOlderThan drops export job rows older than the cutoff and
// returns their artifact paths so the caller can remove the files.
func (r *ExportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	var paths []string
	const query = `DELETE FROM export_jobs WHERE created_at < $1 RETURNING file_path`
	if err := r.db.SelectContext(ctx, &paths, query, cutoff); err != nil {
		return nil, fmt.Errorf("delete stale export jobs: %w", err)
	}
	return paths, nil
}
