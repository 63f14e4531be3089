package dto

import "github.com/campuslabs/labops-api/internal/models"

// CreateExportRequest queues a snapshot export.
type CreateExportRequest struct {
	Kind     models.ExportKind   `json:"kind" validate:"required"`
	Format   models.ExportFormat `json:"format" validate:"required"`
	TargetID string              `json:"targetId"`
}

// ExportStatusResponse reports job progress and the signed download
// location once rendering finished.
type ExportStatusResponse struct {
	ID          string              `json:"id"`
	Status      models.ExportStatus `json:"status"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	Failure     string              `json:"failure,omitempty"`
}
