package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuslabs/labops-api/internal/models"
)

func newLabRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLabRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()

	repo := NewLabRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO labs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lab := &models.Lab{Name: "CAD Lab", Department: "Mechanical", Location: "Block B"}
	require.NoError(t, repo.Create(context.Background(), lab))
	require.NotEmpty(t, lab.ID)

	rows := sqlmock.NewRows([]string{"id", "name", "department", "location", "incharge_id", "created_at", "updated_at"}).
		AddRow(lab.ID, lab.Name, lab.Department, lab.Location, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, department, location")).
		WithArgs(lab.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), lab.ID)
	require.NoError(t, err)
	require.Equal(t, "CAD Lab", found.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()

	repo := NewLabRepository(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM labs WHERE department = \\$1").
		WithArgs("Mechanical").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{"id", "name", "department", "location", "incharge_id", "created_at", "updated_at"}).
		AddRow("lab-1", "CAD Lab", "Mechanical", "Block B", nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM labs WHERE department = \\$1 ORDER BY name ASC").
		WithArgs("Mechanical").
		WillReturnRows(rows)

	labs, total, err := repo.List(context.Background(), models.LabFilter{Department: "Mechanical"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, labs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryUpsertEquipmentCount(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()

	repo := NewLabRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO equipment_counts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	count := &models.EquipmentCount{LabID: "lab-1", Category: "Workstations", Working: 28, Defective: 2}
	require.NoError(t, repo.UpsertEquipmentCount(context.Background(), count))
	require.NotEmpty(t, count.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLabRepositoryInchargeLabIDs(t *testing.T) {
	db, mock, cleanup := newLabRepoMock(t)
	defer cleanup()

	repo := NewLabRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM labs WHERE incharge_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("lab-1").AddRow("lab-2"))

	ids, err := repo.InchargeLabIDs(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, []string{"lab-1", "lab-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
