package relationship

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/rbac"
	"github.com/shulehq/shule/core/school"
	"github.com/shulehq/shule/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("relationship not found")
	ErrAlreadyLinked   = errors.New("this parent is already linked to this child")
	ErrAlreadyAssigned = errors.New("this teacher is already assigned to this classroom")

	errNotAParent  = "user is not a parent"
	errNotATeacher = "user is not a teacher"
	errWrongSchool = "does not belong to this school"
)

type (
	Repository interface {
		// CreateParentLink returns ErrAlreadyLinked when the (parent, child)
		// pair already exists.
		CreateParentLink(ctx context.Context, link ParentLink) (ParentLink, error)
		DeleteParentLink(ctx context.Context, schoolID, parentID, childID string) error
		QueryParentLinks(ctx context.Context, filter LinkFilter) ([]ParentLink, error)

		// CreateTeacherAssignment returns ErrAlreadyAssigned when the
		// (teacher, classroom) pair already exists.
		CreateTeacherAssignment(ctx context.Context, asg TeacherAssignment) (TeacherAssignment, error)
		DeleteTeacherAssignment(ctx context.Context, schoolID, teacherID, classroomID string) error
		QueryTeacherAssignments(ctx context.Context, filter AssignmentFilter) ([]TeacherAssignment, error)
	}

	// Service performs the authorized family-link and teacher-assignment
	// mutations: authorize, cross-reference, mutate, audit.
	Service interface {
		LinkParentChild(ctx context.Context, actorID, schoolID string, nl NewParentLink) (ParentLink, error)
		UnlinkParentChild(ctx context.Context, actorID, schoolID, parentID, childID string) error
		QueryLinks(ctx context.Context, actorID, schoolID string, filter LinkFilter) ([]ParentLink, error)

		AssignTeacher(ctx context.Context, actorID, schoolID string, na NewTeacherAssignment) (TeacherAssignment, error)
		UnassignTeacher(ctx context.Context, actorID, schoolID, teacherID, classroomID string) error
		QueryAssignments(ctx context.Context, actorID, schoolID string, filter AssignmentFilter) ([]TeacherAssignment, error)
	}

	service struct {
		repo       Repository
		users      user.Service
		children   child.Repository
		classrooms school.Service
		access     *rbac.Validator
		recorder   audit.Recorder
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	users user.Service,
	children child.Repository,
	classrooms school.Service,
	access *rbac.Validator,
	recorder audit.Recorder,
) Service {
	return &service{
		repo:       repo,
		users:      users,
		children:   children,
		classrooms: classrooms,
		access:     access,
		recorder:   recorder,
	}
}

func (svc *service) LinkParentChild(ctx context.Context, actorID, schoolID string, nl NewParentLink) (ParentLink, error) {
	acc, err := svc.access.Validate(ctx, actorID, schoolID)
	if err != nil {
		return ParentLink{}, err
	}

	parent, err := svc.getSchoolUser(ctx, nl.ParentID, schoolID, "parent_id", "parent not found")
	if err != nil {
		return ParentLink{}, err
	}
	if !parent.IsParent() {
		return ParentLink{}, core.NewFieldError("parent_id", errNotAParent)
	}

	if _, err = svc.getSchoolChild(ctx, nl.ChildID, schoolID); err != nil {
		return ParentLink{}, err
	}

	canPickup := true
	if nl.CanPickup != nil {
		canPickup = *nl.CanPickup
	}
	link := ParentLink{
		SchoolID:  schoolID,
		ParentID:  nl.ParentID,
		ChildID:   nl.ChildID,
		Type:      nl.Type,
		IsPrimary: nl.IsPrimary,
		CanPickup: canPickup,
		CreatedAt: time.Now().UTC(),
	}
	link, err = svc.repo.CreateParentLink(ctx, link)
	if err != nil {
		return ParentLink{}, err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionLink,
		EntityType: audit.EntityParentLink,
		EntityID:   link.ID,
		SchoolID:   schoolID,
		Changes: map[string]interface{}{
			"parent_id": link.ParentID,
			"child_id":  link.ChildID,
			"type":      link.Type,
		},
	})
	return link, nil
}

func (svc *service) UnlinkParentChild(ctx context.Context, actorID, schoolID, parentID, childID string) error {
	acc, err := svc.access.Validate(ctx, actorID, schoolID)
	if err != nil {
		return err
	}

	if err = svc.repo.DeleteParentLink(ctx, schoolID, parentID, childID); err != nil {
		return err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionUnlink,
		EntityType: audit.EntityParentLink,
		SchoolID:   schoolID,
		Changes: map[string]interface{}{
			"parent_id": parentID,
			"child_id":  childID,
		},
	})
	return nil
}

func (svc *service) QueryLinks(ctx context.Context, actorID, schoolID string, filter LinkFilter) ([]ParentLink, error) {
	if _, err := svc.access.Validate(ctx, actorID, schoolID); err != nil {
		return nil, err
	}
	filter.SchoolID = schoolID
	return svc.repo.QueryParentLinks(ctx, filter)
}

func (svc *service) AssignTeacher(ctx context.Context, actorID, schoolID string, na NewTeacherAssignment) (TeacherAssignment, error) {
	acc, err := svc.access.Validate(ctx, actorID, schoolID)
	if err != nil {
		return TeacherAssignment{}, err
	}

	teacher, err := svc.getSchoolUser(ctx, na.TeacherID, schoolID, "teacher_id", "teacher not found")
	if err != nil {
		return TeacherAssignment{}, err
	}
	if !teacher.IsTeacher() {
		return TeacherAssignment{}, core.NewFieldError("teacher_id", errNotATeacher)
	}

	room, err := svc.classrooms.GetClassroom(ctx, na.ClassroomID)
	if err != nil {
		if errors.Cause(err) == school.ErrClassroomNotFound {
			return TeacherAssignment{}, core.NewValidationError(err, core.FieldError{Field: "classroom_id", Error: err.Error()})
		}
		return TeacherAssignment{}, errors.Wrap(err, "finding classroom")
	}
	if room.SchoolID != schoolID {
		return TeacherAssignment{}, core.NewFieldError("classroom_id", "classroom " + errWrongSchool)
	}

	asg := TeacherAssignment{
		SchoolID:    schoolID,
		TeacherID:   na.TeacherID,
		ClassroomID: na.ClassroomID,
		IsPrimary:   na.IsPrimary,
		CreatedAt:   time.Now().UTC(),
	}
	asg, err = svc.repo.CreateTeacherAssignment(ctx, asg)
	if err != nil {
		return TeacherAssignment{}, err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionAssign,
		EntityType: audit.EntityTeacherAssignment,
		EntityID:   asg.ID,
		SchoolID:   schoolID,
		Changes: map[string]interface{}{
			"teacher_id":   asg.TeacherID,
			"classroom_id": asg.ClassroomID,
		},
	})
	return asg, nil
}

func (svc *service) UnassignTeacher(ctx context.Context, actorID, schoolID, teacherID, classroomID string) error {
	acc, err := svc.access.Validate(ctx, actorID, schoolID)
	if err != nil {
		return err
	}

	if err = svc.repo.DeleteTeacherAssignment(ctx, schoolID, teacherID, classroomID); err != nil {
		return err
	}

	svc.recorder.Record(ctx, audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionUnassign,
		EntityType: audit.EntityTeacherAssignment,
		SchoolID:   schoolID,
		Changes: map[string]interface{}{
			"teacher_id":   teacherID,
			"classroom_id": classroomID,
		},
	})
	return nil
}

func (svc *service) QueryAssignments(ctx context.Context, actorID, schoolID string, filter AssignmentFilter) ([]TeacherAssignment, error) {
	if _, err := svc.access.Validate(ctx, actorID, schoolID); err != nil {
		return nil, err
	}
	filter.SchoolID = schoolID
	return svc.repo.QueryTeacherAssignments(ctx, filter)
}

// getSchoolUser loads a user and verifies it belongs to the target school.
func (svc *service) getSchoolUser(ctx context.Context, id, schoolID, field, notFoundMsg string) (user.User, error) {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewValidationError(err, core.FieldError{Field: field, Error: notFoundMsg})
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if usr.SchoolID != schoolID {
		return user.User{}, core.NewFieldError(field, "user " + errWrongSchool)
	}
	return usr, nil
}

// getSchoolChild loads a child and verifies it belongs to the target school.
func (svc *service) getSchoolChild(ctx context.Context, id, schoolID string) (child.Child, error) {
	chd, err := svc.children.GetChildByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == child.ErrNotFound {
			return child.Child{}, core.NewValidationError(err, core.FieldError{Field: "child_id", Error: err.Error()})
		}
		return child.Child{}, errors.Wrap(err, "finding child")
	}
	if chd.SchoolID != schoolID {
		return child.Child{}, core.NewFieldError("child_id", "child " + errWrongSchool)
	}
	return chd, nil
}
