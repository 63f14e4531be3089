package models

import "time"

// ExportFormat enumerates supported export renderings.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportKind selects what an export job snapshots.
type ExportKind string

const (
	ExportKindRequest       ExportKind = "REQUEST"
	ExportKindRequestList   ExportKind = "REQUEST_LIST"
	ExportKindDeadstockList ExportKind = "DEADSTOCK_LIST"
)

// ExportStatus tracks asynchronous export job progress.
type ExportStatus string

const (
	ExportStatusPending ExportStatus = "PENDING"
	ExportStatusDone    ExportStatus = "DONE"
	ExportStatusFailed  ExportStatus = "FAILED"
)

// ExportJob is one queued snapshot generation.
type ExportJob struct {
	ID          string       `db:"id" json:"id"`
	Kind        ExportKind   `db:"kind" json:"kind"`
	Format      ExportFormat `db:"format" json:"format"`
	TargetID    string       `db:"target_id" json:"targetId,omitempty"`
	Status      ExportStatus `db:"status" json:"status"`
	FilePath    string       `db:"file_path" json:"-"`
	DownloadURL string       `db:"download_url" json:"downloadUrl,omitempty"`
	Failure     string       `db:"failure" json:"failure,omitempty"`
	RequestedBy string       `db:"requested_by" json:"requestedBy"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time   `db:"completed_at" json:"completedAt,omitempty"`
}
