package school

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound          = errors.New("school not found")
	ErrClassroomNotFound = errors.New("classroom not found")
	ErrClassroomExists   = errors.New("a classroom with this name already exists in this school")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		QueryAllSchools(ctx context.Context) ([]School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)

		CreateClassroom(ctx context.Context, room Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		GetByID(ctx context.Context, id string) (School, error)
		QueryAll(ctx context.Context) ([]School, error)
		AddClassroom(ctx context.Context, schoolID string, nc NewClassroom) (Classroom, error)
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	now := time.Now().UTC()
	sch := School{
		Name:      ns.Name,
		Type:      ns.Type,
		City:      ns.City,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateSchool(ctx, sch)
}

func (svc *service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx)
}

func (svc *service) AddClassroom(ctx context.Context, schoolID string, nc NewClassroom) (Classroom, error) {
	if _, err := svc.repo.GetSchoolByID(ctx, schoolID); err != nil {
		return Classroom{}, err
	}
	now := time.Now().UTC()
	room := Classroom{
		SchoolID:  schoolID,
		Name:      nc.Name,
		Capacity:  nc.Capacity,
		AgeGroup:  nc.AgeGroup,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateClassroom(ctx, room)
}

func (svc *service) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroomByID(ctx, id)
}

func (svc *service) QueryClassrooms(ctx context.Context, filter ClassroomFilter) ([]Classroom, error) {
	return svc.repo.QueryClassrooms(ctx, filter)
}
