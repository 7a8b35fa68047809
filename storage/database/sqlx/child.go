package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/shulehq/shule/core/child"
)

type childRow struct {
	ID          string      `db:"id"`
	SchoolID    string      `db:"school_id"`
	ClassroomID null.String `db:"classroom_id"`
	Name        string      `db:"name"`
	DateOfBirth null.Time   `db:"date_of_birth"`
	Gender      null.String `db:"gender"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func unpackChild(row childRow) child.Child {
	return child.Child{
		ID:          row.ID,
		SchoolID:    row.SchoolID,
		ClassroomID: row.ClassroomID.String,
		Name:        row.Name,
		DateOfBirth: row.DateOfBirth.Time,
		Gender:      row.Gender.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

const childColumns = `id, school_id, classroom_id, name, date_of_birth, gender, created_at, updated_at`

type childRepository struct {
	db *sqlx.DB
}

var _ child.Repository = (*childRepository)(nil) // interface compliance check

func NewChildRepository(db *sqlx.DB) *childRepository {
	return &childRepository{db: db}
}

func (repo childRepository) CreateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	if chd.ID == "" {
		chd.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO child (`+childColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		chd.ID, chd.SchoolID,
		null.NewString(chd.ClassroomID, chd.ClassroomID != ""),
		chd.Name,
		null.NewTime(chd.DateOfBirth.UTC(), !chd.DateOfBirth.IsZero()),
		null.NewString(chd.Gender, chd.Gender != ""),
		chd.CreatedAt.UTC(), chd.UpdatedAt.UTC())
	if err != nil {
		return child.Child{}, errors.Wrap(err, "inserting child")
	}
	return chd, nil
}

func (repo childRepository) GetChildByID(ctx context.Context, id string) (child.Child, error) {
	if _, err := uuid.Parse(id); err != nil {
		return child.Child{}, child.ErrNotFound
	}
	var row childRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+childColumns+` FROM child WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return child.Child{}, child.ErrNotFound
		}
		return child.Child{}, errors.Wrap(err, "finding child")
	}
	return unpackChild(row), nil
}

func (repo childRepository) QueryChildren(ctx context.Context, filter child.QueryFilter) ([]child.Child, error) {
	query := `SELECT ` + childColumns + ` FROM child`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.ClassroomID != "" {
		conds = append(conds, "classroom_id = "+arg(filter.ClassroomID))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []childRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	children := make([]child.Child, 0, len(rows))
	for _, row := range rows {
		children = append(children, unpackChild(row))
	}
	return children, nil
}
