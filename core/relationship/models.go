package relationship

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulehq/shule/core"
)

// Parent link types
const (
	LinkMother   = "mother"
	LinkFather   = "father"
	LinkGuardian = "guardian"
	LinkOther    = "other"
)

// ParentLink ties a parent to a child within a school.
// Links are never updated in place; edits are delete + recreate.
type ParentLink struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ParentID  string    `json:"parent_id"`
	ChildID   string    `json:"child_id"`
	Type      string    `json:"type"`
	IsPrimary bool      `json:"is_primary"`
	CanPickup bool      `json:"can_pickup"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// TeacherAssignment ties a teacher to a classroom within a school.
type TeacherAssignment struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	TeacherID   string    `json:"teacher_id"`
	ClassroomID string    `json:"classroom_id"`
	IsPrimary   bool      `json:"is_primary"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewParentLink contains information needed to link a parent to a child.
type NewParentLink struct {
	ParentID  string `json:"parent_id" validate:"required,uuid4"`
	ChildID   string `json:"child_id" validate:"required,uuid4"`
	Type      string `json:"type" validate:"omitempty,oneof=mother father guardian other"`
	IsPrimary bool   `json:"is_primary"`
	CanPickup *bool  `json:"can_pickup"`
}

func (nl *NewParentLink) Validate(validate *validator.Validate) error {
	nl.Type = core.CleanString(nl.Type, true /* lower */)
	if nl.Type == "" {
		nl.Type = LinkGuardian
	}
	return validate.Struct(nl)
}

// NewTeacherAssignment contains information needed to assign a teacher to a classroom.
type NewTeacherAssignment struct {
	TeacherID   string `json:"teacher_id" validate:"required,uuid4"`
	ClassroomID string `json:"classroom_id" validate:"required,uuid4"`
	IsPrimary   bool   `json:"is_primary"`
}

func (na *NewTeacherAssignment) Validate(validate *validator.Validate) error {
	return validate.Struct(na)
}

// LinkFilter selects parent links; zero fields are ignored.
type LinkFilter struct {
	SchoolID string
	ParentID string
	ChildID  string
}

// AssignmentFilter selects teacher assignments; zero fields are ignored.
type AssignmentFilter struct {
	SchoolID    string
	TeacherID   string
	ClassroomID string
}
