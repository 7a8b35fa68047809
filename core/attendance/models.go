package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shulehq/shule/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// Record is a child's attendance for one day. One record per (child, date).
type Record struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ChildID   string    `json:"child_id"`
	Date      time.Time `json:"date"` // date only, UTC midnight
	Status    string    `json:"status"`
	CheckIn   time.Time `json:"check_in,omitempty"`
	CheckOut  time.Time `json:"check_out,omitempty"`
	MarkedBy  string    `json:"marked_by,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewRecord contains information needed to mark a child's attendance.
type NewRecord struct {
	ChildID string    `json:"child_id" validate:"required,uuid4"`
	Date    time.Time `json:"date"`
	Status  string    `json:"status" validate:"required,oneof=present absent late excused"`
	Notes   string    `json:"notes"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Status = core.CleanString(nr.Status, true /* lower */)
	nr.Notes = core.CleanString(nr.Notes)
	if nr.Date.IsZero() {
		nr.Date = Today()
	} else {
		nr.Date = TruncateToDay(nr.Date)
	}
	return validate.Struct(nr)
}

// QueryFilter selects attendance records; zero fields are ignored.
type QueryFilter struct {
	SchoolID string    `query:"-"`
	ChildID  string    `query:"child_id"`
	Date     time.Time `query:"date"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

// TruncateToDay normalizes a timestamp to UTC midnight.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Today() time.Time {
	return TruncateToDay(time.Now())
}
