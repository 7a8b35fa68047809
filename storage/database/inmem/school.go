package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/school"
)

type schoolRepository struct {
	schools    *schoolTable
	classrooms *classroomTable
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) *schoolRepository {
	return &schoolRepository{schools: db.school, classrooms: db.classroom}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	if sch.ID == "" {
		sch.ID = uuid.New().String()
	}
	repo.schools.table[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	if sch, ok := repo.schools.table[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	repo.schools.RLock()
	defer repo.schools.RUnlock()

	schools := make([]school.School, 0, len(repo.schools.table))
	for _, sch := range repo.schools.table {
		schools = append(schools, *sch)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].CreatedAt.Before(schools[j].CreatedAt) })
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.schools.Lock()
	defer repo.schools.Unlock()

	orig, ok := repo.schools.table[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	if sch.Name != "" {
		orig.Name = sch.Name
	}
	if sch.Type != "" {
		orig.Type = sch.Type
	}
	if sch.City != "" {
		orig.City = sch.City
	}
	orig.IsActive = sch.IsActive
	if !sch.UpdatedAt.IsZero() {
		orig.UpdatedAt = sch.UpdatedAt
	}
	repo.schools.table[sch.ID] = orig
	return *orig, nil
}

func (repo *schoolRepository) CreateClassroom(ctx context.Context, room school.Classroom) (school.Classroom, error) {
	repo.classrooms.Lock()
	defer repo.classrooms.Unlock()

	for _, r := range repo.classrooms.table {
		if r.SchoolID == room.SchoolID && strings.EqualFold(r.Name, room.Name) {
			return school.Classroom{}, school.ErrClassroomExists
		}
	}
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	repo.classrooms.table[room.ID] = &room
	return room, nil
}

func (repo *schoolRepository) GetClassroomByID(ctx context.Context, id string) (school.Classroom, error) {
	repo.classrooms.RLock()
	defer repo.classrooms.RUnlock()

	if room, ok := repo.classrooms.table[id]; ok {
		return *room, nil
	}
	return school.Classroom{}, school.ErrClassroomNotFound
}

func (repo *schoolRepository) QueryClassrooms(ctx context.Context, filter school.ClassroomFilter) ([]school.Classroom, error) {
	repo.classrooms.RLock()
	defer repo.classrooms.RUnlock()

	rooms := make([]school.Classroom, 0, len(repo.classrooms.table))
	for _, room := range repo.classrooms.table {
		if filter.SchoolID != "" && room.SchoolID != filter.SchoolID {
			continue
		}
		if filter.Name != "" && !strings.EqualFold(room.Name, filter.Name) {
			continue
		}
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}
