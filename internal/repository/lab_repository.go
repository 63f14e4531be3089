package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslabs/labops-api/internal/models"
)

const labColumns = `id, name, department, location, incharge_id, created_at, updated_at`

// LabRepository persists laboratories and their equipment tallies.
type LabRepository struct {
	db *sqlx.DB
}

// NewLabRepository constructs the repository.
func NewLabRepository(db *sqlx.DB) *LabRepository {
	return &LabRepository{db: db}
}

// Create inserts a new lab.
func (r *LabRepository) Create(ctx context.Context, lab *models.Lab) error {
	if lab.ID == "" {
		lab.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lab.CreatedAt = now
	lab.UpdatedAt = now

	const query = `INSERT INTO labs (id, name, department, location, incharge_id, created_at, updated_at)
	VALUES (:id, :name, :department, :location, :incharge_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lab); err != nil {
		return fmt.Errorf("create lab: %w", err)
	}
	return nil
}

// GetByID fetches one lab.
func (r *LabRepository) GetByID(ctx context.Context, id string) (*models.Lab, error) {
	query := fmt.Sprintf(`SELECT %s FROM labs WHERE id = $1`, labColumns)
	var lab models.Lab
	if err := r.db.GetContext(ctx, &lab, query, id); err != nil {
		return nil, err
	}
	return &lab, nil
}

// List returns labs matching the filter and the total match count.
func (r *LabRepository) List(ctx context.Context, filter models.LabFilter) ([]models.Lab, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR location ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM labs" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count labs: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM labs%s ORDER BY name ASC LIMIT %d OFFSET %d`,
		labColumns, where, size, (page-1)*size)

	var labs []models.Lab
	if err := r.db.SelectContext(ctx, &labs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list labs: %w", err)
	}
	return labs, total, nil
}

// Update rewrites the mutable lab columns.
func (r *LabRepository) Update(ctx context.Context, lab *models.Lab) error {
	lab.UpdatedAt = time.Now().UTC()
	const query = `UPDATE labs SET name = :name, department = :department, location = :location,
	incharge_id = :incharge_id, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, lab)
	if err != nil {
		return fmt.Errorf("update lab: %w", err)
	}
	return requireRowsAffected(result)
}

// Delete removes a lab.
func (r *LabRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM labs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lab: %w", err)
	}
	return requireRowsAffected(result)
}

// UpsertEquipmentCount writes the working/defective tally for one
// equipment category in a lab, inserting the row on first report.
func (r *LabRepository) UpsertEquipmentCount(ctx context.Context, count *models.EquipmentCount) error {
	if count.ID == "" {
		count.ID = uuid.NewString()
	}
	count.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO equipment_counts (id, lab_id, category, working, defective, updated_at)
	VALUES (:id, :lab_id, :category, :working, :defective, :updated_at)
	ON CONFLICT (lab_id, category) DO UPDATE
	SET working = EXCLUDED.working, defective = EXCLUDED.defective, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, count); err != nil {
		return fmt.Errorf("upsert equipment count: %w", err)
	}
	return nil
}

// ListEquipmentCounts returns the tallies recorded for a lab.
func (r *LabRepository) ListEquipmentCounts(ctx context.Context, labID string) ([]models.EquipmentCount, error) {
	const query = `SELECT id, lab_id, category, working, defective, updated_at
	FROM equipment_counts WHERE lab_id = $1 ORDER BY category ASC`
	var counts []models.EquipmentCount
	if err := r.db.SelectContext(ctx, &counts, query, labID); err != nil {
		return nil, fmt.Errorf("list equipment counts: %w", err)
	}
	return counts, nil
}

// InchargeLabIDs returns the labs a user is in charge of. Role scoping
// for request listings leans on this.
func (r *LabRepository) InchargeLabIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM labs WHERE incharge_id = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("list incharge labs: %w", err)
	}
	return ids, nil
}
