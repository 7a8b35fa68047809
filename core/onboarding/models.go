package onboarding

import (
	"github.com/go-playground/validator/v10"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/school"
	"github.com/shulehq/shule/core/user"
)

// Temporary passwords assigned by convention per role and returned in the
// response so the operator can relay credentials. Deliberately not
// generated-and-emailed secrets.
const (
	PrincipalTempPassword = "Karibu@Principal1"
	TeacherTempPassword   = "Karibu@Teacher1"
	ParentTempPassword    = "Karibu@Parent1"
)

// Step names used in StepError.
const (
	StepSchool      = "school"
	StepPrincipal   = "principal"
	StepClassroom   = "classroom"
	StepTeacher     = "teacher"
	StepSampleChild = "sample_child"
	StepSampleParent = "sample_parent"
	StepSampleLink   = "sample_link"
)

type (
	TeacherInput struct {
		Name          string `json:"name" validate:"required"`
		Email         string `json:"email" validate:"required,email"`
		ClassroomID   string `json:"classroom_id" validate:"omitempty,uuid4"`
		ClassroomName string `json:"classroom_name"`
	}

	ClassroomInput struct {
		Name     string `json:"name" validate:"required"`
		Capacity int    `json:"capacity" validate:"omitempty,gte=0"`
		AgeGroup string `json:"age_group"`
	}

	// Request is the pilot-school onboarding payload.
	Request struct {
		SchoolName     string           `json:"schoolName" validate:"required"`
		SchoolType     string           `json:"schoolType" validate:"omitempty,oneof=daycare preschool mixed"`
		City           string           `json:"city"`
		PrincipalEmail string           `json:"principalEmail" validate:"required,email"`
		PrincipalName  string           `json:"principalName" validate:"required"`
		PrincipalPhone string           `json:"principalPhone"`
		Teachers       []TeacherInput   `json:"teachers" validate:"omitempty,dive"`
		Classrooms     []ClassroomInput `json:"classrooms" validate:"omitempty,dive"`
		SkipSampleData bool             `json:"skipSampleData"`
	}
)

func (r *Request) Validate(validate *validator.Validate) error {
	r.SchoolName = core.CleanString(r.SchoolName)
	r.SchoolType = core.CleanString(r.SchoolType, true /* lower */)
	r.City = core.CleanString(r.City)
	r.PrincipalEmail = core.CleanString(r.PrincipalEmail, true /* lower */)
	r.PrincipalName = core.CleanString(r.PrincipalName)
	for i := range r.Teachers {
		r.Teachers[i].Name = core.CleanString(r.Teachers[i].Name)
		r.Teachers[i].Email = core.CleanString(r.Teachers[i].Email, true /* lower */)
		r.Teachers[i].ClassroomName = core.CleanString(r.Teachers[i].ClassroomName)
	}
	for i := range r.Classrooms {
		r.Classrooms[i].Name = core.CleanString(r.Classrooms[i].Name)
		r.Classrooms[i].AgeGroup = core.CleanString(r.Classrooms[i].AgeGroup)
	}
	return validate.Struct(r)
}

type (
	// StepError records one failed unit of work with enough context for the
	// operator to retry just that unit.
	StepError struct {
		Step      string `json:"step"`
		Email     string `json:"email,omitempty"`
		Classroom string `json:"classroom,omitempty"`
		Error     string `json:"error"`
	}

	TeacherResult struct {
		User        user.User `json:"user"`
		Password    string    `json:"password"`
		ClassroomID string    `json:"classroom_id,omitempty"`
	}

	// Result is the transient per-request bag accumulated by the sequencer.
	Result struct {
		School            *school.School     `json:"school"`
		Principal         *user.User         `json:"principal"`
		PrincipalPassword string             `json:"principal_password,omitempty"`
		Classrooms        []school.Classroom `json:"classrooms"`
		Teachers          []TeacherResult    `json:"teachers"`
		SampleChildren    []child.Child      `json:"sample_children"`
		SampleParents     []user.User        `json:"sample_parents"`
		Errors            []StepError        `json:"errors"`
	}
)

// Succeeded reports overall success: school AND principal both created.
// Any other combination is a hard failure even if later stages partially
// succeeded.
func (r *Result) Succeeded() bool {
	return r.School != nil && r.Principal != nil
}

func (r *Result) HasWarnings() bool {
	return len(r.Errors) > 0
}

func (r *Result) Message() string {
	switch {
	case !r.Succeeded():
		return "pilot school onboarding failed"
	case r.HasWarnings():
		return "pilot school onboarded with warnings"
	default:
		return "pilot school onboarded successfully"
	}
}

func (r *Result) appendError(step, email, classroom string, err error) {
	r.Errors = append(r.Errors, StepError{
		Step:      step,
		Email:     email,
		Classroom: classroom,
		Error:     err.Error(),
	})
}

// Status is the read-side view of an onboarded school.
type Status struct {
	School     school.School      `json:"school"`
	Classrooms []school.Classroom `json:"classrooms"`
	Teachers   []user.User        `json:"teachers"`
	ChildCount int                `json:"child_count"`
}
