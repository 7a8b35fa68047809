package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/relationship"
)

type relationshipRepository struct {
	links       *linkTable
	assignments *assignmentTable
}

var _ relationship.Repository = (*relationshipRepository)(nil)

func NewRelationshipRepository(db *DB) *relationshipRepository {
	return &relationshipRepository{links: db.link, assignments: db.assignment}
}

func (repo *relationshipRepository) CreateParentLink(ctx context.Context, link relationship.ParentLink) (relationship.ParentLink, error) {
	repo.links.Lock()
	defer repo.links.Unlock()

	for _, l := range repo.links.table {
		if l.ParentID == link.ParentID && l.ChildID == link.ChildID {
			return relationship.ParentLink{}, relationship.ErrAlreadyLinked
		}
	}
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	repo.links.table[link.ID] = &link
	return link, nil
}

func (repo *relationshipRepository) DeleteParentLink(ctx context.Context, schoolID, parentID, childID string) error {
	repo.links.Lock()
	defer repo.links.Unlock()

	for id, l := range repo.links.table {
		if l.SchoolID == schoolID && l.ParentID == parentID && l.ChildID == childID {
			delete(repo.links.table, id)
			return nil
		}
	}
	return relationship.ErrNotFound
}

func (repo *relationshipRepository) QueryParentLinks(ctx context.Context, filter relationship.LinkFilter) ([]relationship.ParentLink, error) {
	repo.links.RLock()
	defer repo.links.RUnlock()

	links := make([]relationship.ParentLink, 0, len(repo.links.table))
	for _, l := range repo.links.table {
		if filter.SchoolID != "" && l.SchoolID != filter.SchoolID {
			continue
		}
		if filter.ParentID != "" && l.ParentID != filter.ParentID {
			continue
		}
		if filter.ChildID != "" && l.ChildID != filter.ChildID {
			continue
		}
		links = append(links, *l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.Before(links[j].CreatedAt) })
	return links, nil
}

func (repo *relationshipRepository) CreateTeacherAssignment(ctx context.Context, asg relationship.TeacherAssignment) (relationship.TeacherAssignment, error) {
	repo.assignments.Lock()
	defer repo.assignments.Unlock()

	for _, a := range repo.assignments.table {
		if a.TeacherID == asg.TeacherID && a.ClassroomID == asg.ClassroomID {
			return relationship.TeacherAssignment{}, relationship.ErrAlreadyAssigned
		}
	}
	if asg.ID == "" {
		asg.ID = uuid.New().String()
	}
	repo.assignments.table[asg.ID] = &asg
	return asg, nil
}

func (repo *relationshipRepository) DeleteTeacherAssignment(ctx context.Context, schoolID, teacherID, classroomID string) error {
	repo.assignments.Lock()
	defer repo.assignments.Unlock()

	for id, a := range repo.assignments.table {
		if a.SchoolID == schoolID && a.TeacherID == teacherID && a.ClassroomID == classroomID {
			delete(repo.assignments.table, id)
			return nil
		}
	}
	return relationship.ErrNotFound
}

func (repo *relationshipRepository) QueryTeacherAssignments(ctx context.Context, filter relationship.AssignmentFilter) ([]relationship.TeacherAssignment, error) {
	repo.assignments.RLock()
	defer repo.assignments.RUnlock()

	asgs := make([]relationship.TeacherAssignment, 0, len(repo.assignments.table))
	for _, a := range repo.assignments.table {
		if filter.SchoolID != "" && a.SchoolID != filter.SchoolID {
			continue
		}
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.ClassroomID != "" && a.ClassroomID != filter.ClassroomID {
			continue
		}
		asgs = append(asgs, *a)
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].CreatedAt.Before(asgs[j].CreatedAt) })
	return asgs, nil
}
