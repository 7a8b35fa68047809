package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/child"
)

type childRepository struct {
	db *childTable
}

var _ child.Repository = (*childRepository)(nil)

func NewChildRepository(db *DB) *childRepository {
	return &childRepository{db: db.child}
}

func (repo *childRepository) CreateChild(ctx context.Context, chd child.Child) (child.Child, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if chd.ID == "" {
		chd.ID = uuid.New().String()
	}
	repo.db.table[chd.ID] = &chd
	return chd, nil
}

func (repo *childRepository) GetChildByID(ctx context.Context, id string) (child.Child, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if chd, ok := repo.db.table[id]; ok {
		return *chd, nil
	}
	return child.Child{}, child.ErrNotFound
}

func (repo *childRepository) QueryChildren(ctx context.Context, filter child.QueryFilter) ([]child.Child, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	children := make([]child.Child, 0, len(repo.db.table))
	for _, chd := range repo.db.table {
		if filter.SchoolID != "" && chd.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ClassroomID != "" && chd.ClassroomID != filter.ClassroomID {
			continue
		}
		children = append(children, *chd)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].CreatedAt.Before(children[j].CreatedAt) })
	return children, nil
}
