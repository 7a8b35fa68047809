package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/attendance"
)

type attendanceRepository struct {
	records *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{records: db.attendance}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.records.Lock()
	defer repo.records.Unlock()

	for _, r := range repo.records.table {
		if r.ChildID == rec.ChildID && r.Date.Equal(rec.Date) {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	repo.records.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecordByID(ctx context.Context, id string) (attendance.Record, error) {
	repo.records.RLock()
	defer repo.records.RUnlock()

	if r, ok := repo.records.table[id]; ok {
		return *r, nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.records.Lock()
	defer repo.records.Unlock()

	if _, ok := repo.records.table[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	repo.records.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	repo.records.RLock()
	defer repo.records.RUnlock()

	recs := make([]attendance.Record, 0, len(repo.records.table))
	for _, r := range repo.records.table {
		if filter.SchoolID != "" && r.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ChildID != "" && r.ChildID != filter.ChildID {
			continue
		}
		if !filter.Date.IsZero() && !r.Date.Equal(attendance.TruncateToDay(filter.Date)) {
			continue
		}
		if !filter.From.IsZero() && r.Date.Before(attendance.TruncateToDay(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && r.Date.After(attendance.TruncateToDay(filter.To)) {
			continue
		}
		recs = append(recs, *r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs, nil
}
