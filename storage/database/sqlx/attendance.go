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

	"github.com/shulehq/shule/core/attendance"
)

type attendanceRow struct {
	ID        string      `db:"id"`
	SchoolID  string      `db:"school_id"`
	ChildID   string      `db:"child_id"`
	Date      null.Time   `db:"date"`
	Status    string      `db:"status"`
	CheckIn   null.Time   `db:"check_in"`
	CheckOut  null.Time   `db:"check_out"`
	MarkedBy  null.String `db:"marked_by"`
	Notes     string      `db:"notes"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

func packAttendance(rec attendance.Record) attendanceRow {
	return attendanceRow{
		ID:        rec.ID,
		SchoolID:  rec.SchoolID,
		ChildID:   rec.ChildID,
		Date:      null.NewTime(rec.Date, !rec.Date.IsZero()),
		Status:    rec.Status,
		CheckIn:   null.NewTime(rec.CheckIn.UTC(), !rec.CheckIn.IsZero()),
		CheckOut:  null.NewTime(rec.CheckOut.UTC(), !rec.CheckOut.IsZero()),
		MarkedBy:  null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
		Notes:     rec.Notes,
		CreatedAt: null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(rec.UpdatedAt.UTC(), !rec.UpdatedAt.IsZero()),
	}
}

func unpackAttendance(row attendanceRow) attendance.Record {
	return attendance.Record{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		ChildID:   row.ChildID,
		Date:      attendance.TruncateToDay(row.Date.Time),
		Status:    row.Status,
		CheckIn:   row.CheckIn.Time,
		CheckOut:  row.CheckOut.Time,
		MarkedBy:  row.MarkedBy.String,
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

const attendanceColumns = `id, school_id, child_id, date, status, check_in, check_out, marked_by, notes, created_at, updated_at`

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	row := packAttendance(rec)
	query := `
		INSERT INTO attendance (` + attendanceColumns + `)
		VALUES (:id, :school_id, :child_id, :date, :status, :check_in, :check_out, :marked_by, :notes, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err, "attendance_child_id_date_key") {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) GetRecordByID(ctx context.Context, id string) (attendance.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}
	var row attendanceRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+attendanceColumns+` FROM attendance WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, errors.Wrap(err, "finding attendance record")
	}
	return unpackAttendance(row), nil
}

func (repo attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE attendance SET status = $2, check_in = $3, check_out = $4, notes = $5, updated_at = $6 WHERE id = $1`,
		rec.ID, rec.Status,
		null.NewTime(rec.CheckIn.UTC(), !rec.CheckIn.IsZero()),
		null.NewTime(rec.CheckOut.UTC(), !rec.CheckOut.IsZero()),
		rec.Notes, rec.UpdatedAt.UTC())
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance`
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SchoolID != "" {
		conds = append(conds, "school_id = "+arg(filter.SchoolID))
	}
	if filter.ChildID != "" {
		conds = append(conds, "child_id = "+arg(filter.ChildID))
	}
	if !filter.Date.IsZero() {
		conds = append(conds, "date = "+arg(attendance.TruncateToDay(filter.Date)))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "date >= "+arg(attendance.TruncateToDay(filter.From)))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "date <= "+arg(attendance.TruncateToDay(filter.To)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date"

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, unpackAttendance(row))
	}
	return recs, nil
}
