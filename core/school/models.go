package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulehq/shule/core"
)

// School types
const (
	TypeDaycare   = "daycare"
	TypePreschool = "preschool"
	TypeMixed     = "mixed"
)

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	City      string    `json:"city,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Classroom struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	AgeGroup  string    `json:"age_group,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"omitempty,oneof=daycare preschool mixed"`
	City string `json:"city"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Type = core.CleanString(ns.Type, true /* lower */)
	if ns.Type == "" {
		ns.Type = TypeDaycare
	}
	ns.City = core.CleanString(ns.City)
	return validate.Struct(ns)
}

// NewClassroom contains information needed to create a new Classroom.
type NewClassroom struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"omitempty,gte=0"`
	AgeGroup string `json:"age_group"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.AgeGroup = core.CleanString(nc.AgeGroup)
	return validate.Struct(nc)
}

// ClassroomFilter selects classrooms within a school.
type ClassroomFilter struct {
	SchoolID string
	Name     string
}
