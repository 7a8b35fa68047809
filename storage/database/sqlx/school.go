package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/school"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	City      string    `db:"city"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type classroomRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Name      string    `db:"name"`
	Capacity  int       `db:"capacity"`
	AgeGroup  string    `db:"age_group"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if sch.ID == "" {
		sch.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO school (id, name, type, city, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sch.ID, sch.Name, sch.Type, sch.City, sch.IsActive, sch.CreatedAt.UTC(), sch.UpdatedAt.UTC())
	if err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return sch, nil
}

func (repo schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.School{}, school.ErrNotFound
	}
	var row schoolRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, name, type, city, is_active, created_at, updated_at FROM school WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "finding school")
	}
	return school.School(row), nil
}

func (repo schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	var rows []schoolRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT id, name, type, city, is_active, created_at, updated_at FROM school ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, school.School(row))
	}
	return schools, nil
}

func (repo schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE school SET name = $2, type = $3, city = $4, is_active = $5, updated_at = $6 WHERE id = $1`,
		sch.ID, sch.Name, sch.Type, sch.City, sch.IsActive, sch.UpdatedAt.UTC())
	if err != nil {
		return school.School{}, errors.Wrap(err, "updating school")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return school.School{}, school.ErrNotFound
	}
	return sch, nil
}

func (repo schoolRepository) CreateClassroom(ctx context.Context, room school.Classroom) (school.Classroom, error) {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO classroom (id, school_id, name, capacity, age_group, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		room.ID, room.SchoolID, room.Name, room.Capacity, room.AgeGroup, room.CreatedAt.UTC(), room.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "classroom_school_id_name_key") {
			return school.Classroom{}, school.ErrClassroomExists
		}
		return school.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return room, nil
}

func (repo schoolRepository) GetClassroomByID(ctx context.Context, id string) (school.Classroom, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Classroom{}, school.ErrClassroomNotFound
	}
	var row classroomRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, school_id, name, capacity, age_group, created_at, updated_at FROM classroom WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return school.Classroom{}, school.ErrClassroomNotFound
		}
		return school.Classroom{}, errors.Wrap(err, "finding classroom")
	}
	return school.Classroom(row), nil
}

func (repo schoolRepository) QueryClassrooms(ctx context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	query := `SELECT id, school_id, name, capacity, age_group, created_at, updated_at FROM classroom`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.Name != "" {
		conds = append(conds, "name ILIKE "+arg(filter.Name))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []classroomRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	rooms := make([]school.Classroom, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, school.Classroom(row))
	}
	return rooms, nil
}
