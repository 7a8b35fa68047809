package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/relationship"
)

type parentLinkRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	ParentID  string    `db:"parent_id"`
	ChildID   string    `db:"child_id"`
	Type      string    `db:"type"`
	IsPrimary bool      `db:"is_primary"`
	CanPickup bool      `db:"can_pickup"`
	CreatedAt time.Time `db:"created_at"`
}

type teacherAssignmentRow struct {
	ID          string    `db:"id"`
	SchoolID    string    `db:"school_id"`
	TeacherID   string    `db:"teacher_id"`
	ClassroomID string    `db:"classroom_id"`
	IsPrimary   bool      `db:"is_primary"`
	CreatedAt   time.Time `db:"created_at"`
}

type relationshipRepository struct {
	db *sqlx.DB
}

var _ relationship.Repository = (*relationshipRepository)(nil) // interface compliance check

func NewRelationshipRepository(db *sqlx.DB) *relationshipRepository {
	return &relationshipRepository{db: db}
}

func (repo relationshipRepository) CreateParentLink(ctx context.Context, link relationship.ParentLink) (relationship.ParentLink, error) {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO parent_link (id, school_id, parent_id, child_id, type, is_primary, can_pickup, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		link.ID, link.SchoolID, link.ParentID, link.ChildID, link.Type, link.IsPrimary, link.CanPickup, link.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "parent_link_parent_id_child_id_key") {
			return relationship.ParentLink{}, relationship.ErrAlreadyLinked
		}
		return relationship.ParentLink{}, errors.Wrap(err, "inserting parent link")
	}
	return link, nil
}

func (repo relationshipRepository) DeleteParentLink(ctx context.Context, schoolID, parentID, childID string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM parent_link WHERE school_id = $1 AND parent_id = $2 AND child_id = $3`,
		schoolID, parentID, childID)
	if err != nil {
		return errors.Wrap(err, "deleting parent link")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return relationship.ErrNotFound
	}
	return nil
}

func (repo relationshipRepository) QueryParentLinks(ctx context.Context, filter relationship.LinkFilter) ([]relationship.ParentLink, error) {
	query := `SELECT id, school_id, parent_id, child_id, type, is_primary, can_pickup, created_at FROM parent_link`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = "+arg(filter.ParentID))
	}
	if filter.ChildID != "" {
		conds = append(conds, "child_id = "+arg(filter.ChildID))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []parentLinkRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying parent links")
	}
	links := make([]relationship.ParentLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, relationship.ParentLink(row))
	}
	return links, nil
}

func (repo relationshipRepository) CreateTeacherAssignment(ctx context.Context, asg relationship.TeacherAssignment) (relationship.TeacherAssignment, error) {
	if asg.ID == "" {
		asg.ID = uuid.New().String()
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO teacher_assignment (id, school_id, teacher_id, classroom_id, is_primary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		asg.ID, asg.SchoolID, asg.TeacherID, asg.ClassroomID, asg.IsPrimary, asg.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "teacher_assignment_teacher_id_classroom_id_key") {
			return relationship.TeacherAssignment{}, relationship.ErrAlreadyAssigned
		}
		return relationship.TeacherAssignment{}, errors.Wrap(err, "inserting teacher assignment")
	}
	return asg, nil
}

func (repo relationshipRepository) DeleteTeacherAssignment(ctx context.Context, schoolID, teacherID, classroomID string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM teacher_assignment WHERE school_id = $1 AND teacher_id = $2 AND classroom_id = $3`,
		schoolID, teacherID, classroomID)
	if err != nil {
		return errors.Wrap(err, "deleting teacher assignment")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return relationship.ErrNotFound
	}
	return nil
}

func (repo relationshipRepository) QueryTeacherAssignments(ctx context.Context, filter relationship.AssignmentFilter) ([]relationship.TeacherAssignment, error) {
	query := `SELECT id, school_id, teacher_id, classroom_id, is_primary, created_at FROM teacher_assignment`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.TeacherID != "" {
		conds = append(conds, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.ClassroomID != "" {
		conds = append(conds, "classroom_id = "+arg(filter.ClassroomID))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	var rows []teacherAssignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying teacher assignments")
	}
	asgs := make([]relationship.TeacherAssignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, relationship.TeacherAssignment(row))
	}
	return asgs, nil
}
