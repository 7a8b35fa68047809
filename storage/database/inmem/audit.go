package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/audit"
)

type auditRepository struct {
	entries *auditTable
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{entries: db.audit}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	repo.entries.Lock()
	defer repo.entries.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	repo.entries.table[entry.ID] = &entry
	return entry, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	repo.entries.RLock()
	defer repo.entries.RUnlock()

	entries := make([]audit.Entry, 0, len(repo.entries.table))
	for _, e := range repo.entries.table {
		if filter.SchoolID != "" && e.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		entries = append(entries, *e)
	}
	// newest first
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}
