package child

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
)

var ErrNotFound = errors.New("child not found")

type Child struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	ClassroomID string    `json:"classroom_id,omitempty"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"date_of_birth,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewChild contains information needed to create a new Child.
type NewChild struct {
	Name        string    `json:"name" validate:"required"`
	ClassroomID string    `json:"classroom_id" validate:"omitempty,uuid4"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (nc *NewChild) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Gender = core.CleanString(nc.Gender, true /* lower */)
	return validate.Struct(nc)
}

// QueryFilter selects children within a school.
type QueryFilter struct {
	SchoolID    string
	ClassroomID string
}

type Repository interface {
	CreateChild(ctx context.Context, chd Child) (Child, error)
	GetChildByID(ctx context.Context, id string) (Child, error)
	QueryChildren(ctx context.Context, filter QueryFilter) ([]Child, error)
}
