package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslabs/labops-api/internal/models"
)

const deadstockColumns = `id, lab_id, item_name, quantity, reason, report_date, recorded_by, created_at`

// DeadstockRepository persists equipment-disposal reports.
type DeadstockRepository struct {
	db *sqlx.DB
}

// NewDeadstockRepository constructs the repository.
func NewDeadstockRepository(db *sqlx.DB) *DeadstockRepository {
	return &DeadstockRepository{db: db}
}

// Create inserts a deadstock entry.
func (r *DeadstockRepository) Create(ctx context.Context, entry *models.DeadstockEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deadstock_entries (id, lab_id, item_name, quantity, reason, report_date, recorded_by, created_at)
	VALUES (:id, :lab_id, :item_name, :quantity, :reason, :report_date, :recorded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create deadstock entry: %w", err)
	}
	return nil
}

// List returns deadstock entries matching the filter, latest first.
func (r *DeadstockRepository) List(ctx context.Context, filter models.DeadstockFilter) ([]models.DeadstockEntry, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.LabID != "" {
		args = append(args, filter.LabID)
		conditions = append(conditions, fmt.Sprintf("lab_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(item_name ILIKE $%d OR reason ILIKE $%d)", len(args), len(args)))
	}
	if filter.FromDate != "" {
		args = append(args, filter.FromDate)
		conditions = append(conditions, fmt.Sprintf("report_date >= $%d", len(args)))
	}
	if filter.ToDate != "" {
		args = append(args, filter.ToDate)
		conditions = append(conditions, fmt.Sprintf("report_date <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM deadstock_entries%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		deadstockColumns, where, limit, offset)

	var entries []models.DeadstockEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list deadstock entries: %w", err)
	}
	return entries, nil
}
