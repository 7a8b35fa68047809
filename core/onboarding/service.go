// Package onboarding runs the multi-step pilot-school setup pipeline.
//
// Unlike the fail-fast authorized mutations, stages 2-5 accumulate per-unit
// errors and continue; only school creation (stage 1) aborts the sequence.
// There is no transaction across stages and no rollback: re-running against
// the same emails relies on the reuse-by-email logic to avoid duplicates.
package onboarding

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/identity"
	"github.com/shulehq/shule/core/relationship"
	"github.com/shulehq/shule/core/school"
	"github.com/shulehq/shule/core/user"
)

// sample rows created by stage 5, tied to the first created classroom.
// Parent i is linked to child i by position.
var (
	sampleChildren = []struct {
		Name   string
		Gender string
	}{
		{"Imani Sample", "female"},
		{"Jabari Sample", "male"},
		{"Zuri Sample", "female"},
	}

	sampleParents = []struct {
		Name string
	}{
		{"Asha Sample"},
		{"Baraka Sample"},
		{"Neema Sample"},
	}
)

type (
	// Service runs the pilot-school onboarding sequence. Authorization is the
	// caller's concern; the sequencer itself only touches storage collaborators.
	Service interface {
		Run(ctx context.Context, req Request) (Result, error)
		Status(ctx context.Context, schoolID string) (Status, error)
	}

	service struct {
		schools  school.Repository
		users    user.Repository
		accounts identity.Provider
		rels     relationship.Repository
		children child.Repository
		mailSvc  core.EmailService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	schools school.Repository,
	users user.Repository,
	accounts identity.Provider,
	rels relationship.Repository,
	children child.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		schools:  schools,
		users:    users,
		accounts: accounts,
		rels:     rels,
		children: children,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

// Run executes the five onboarding stages strictly in order. The returned
// error is non-nil only when stage 1 (school creation) fails; every other
// failure lands in Result.Errors.
func (svc *service) Run(ctx context.Context, req Request) (Result, error) {
	var res Result

	// Stage 1 - school. The only fail-fast stage.
	sch, err := svc.createSchool(ctx, req)
	if err != nil {
		res.appendError(StepSchool, "", "", err)
		return res, errors.Wrap(err, "creating school")
	}
	res.School = &sch

	// Stage 2 - principal.
	principal, err := svc.ensureUser(ctx, req.PrincipalName, req.PrincipalEmail, req.PrincipalPhone,
		user.RolePrincipal, sch.ID, PrincipalTempPassword)
	if err != nil {
		res.appendError(StepPrincipal, req.PrincipalEmail, "", err)
	} else {
		res.Principal = &principal
		res.PrincipalPassword = PrincipalTempPassword
		svc.sendWelcomeMail(principal, sch.Name, PrincipalTempPassword)
	}

	// Stage 3 - classrooms.
	for _, in := range req.Classrooms {
		room, err := svc.createClassroom(ctx, sch.ID, in)
		if err != nil {
			res.appendError(StepClassroom, "", in.Name, err)
			continue
		}
		res.Classrooms = append(res.Classrooms, room)
	}

	// Stage 4 - teachers, optionally assigned to a classroom.
	for _, in := range req.Teachers {
		teacher, err := svc.ensureUser(ctx, in.Name, in.Email, "", user.RoleTeacher, sch.ID, TeacherTempPassword)
		if err != nil {
			res.appendError(StepTeacher, in.Email, "", err)
			continue
		}
		tr := TeacherResult{User: teacher, Password: TeacherTempPassword}

		if roomID := svc.resolveClassroom(in, res.Classrooms); roomID != "" {
			asgID, err := svc.ensureAssignment(ctx, sch.ID, teacher.ID, roomID)
			if err != nil {
				res.appendError(StepTeacher, in.Email, in.ClassroomName, err)
			} else {
				tr.ClassroomID = asgID
			}
		}
		res.Teachers = append(res.Teachers, tr)
	}

	// Stage 5 - sample data.
	if !req.SkipSampleData {
		svc.createSampleData(ctx, sch.ID, &res)
	}

	return res, nil
}

func (svc *service) createSchool(ctx context.Context, req Request) (school.School, error) {
	now := time.Now().UTC()
	typ := req.SchoolType
	if typ == "" {
		typ = school.TypeDaycare
	}
	return svc.schools.CreateSchool(ctx, school.School{
		Name:      req.SchoolName,
		Type:      typ,
		City:      req.City,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) createClassroom(ctx context.Context, schoolID string, in ClassroomInput) (school.Classroom, error) {
	now := time.Now().UTC()
	return svc.schools.CreateClassroom(ctx, school.Classroom{
		SchoolID:  schoolID,
		Name:      in.Name,
		Capacity:  in.Capacity,
		AgeGroup:  in.AgeGroup,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// ensureUser is the single get-or-create identity + profile procedure shared
// by the principal, teacher and sample-parent stages.
//
// Lookup order: existing profile by email -> existing identity account by
// email -> new identity account; then upsert the profile keyed by the
// account id. Calling it twice with the same email reuses the first call's
// identity id and profile row.
func (svc *service) ensureUser(ctx context.Context, name, email, phone string, role user.Role, schoolID, password string) (user.User, error) {
	usr, err := svc.users.GetUser(ctx, user.GetFilter{Email: email})
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != user.ErrNotFound {
		return user.User{}, errors.Wrap(err, "finding profile by email")
	}

	acct, err := svc.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != identity.ErrNotFound {
			return user.User{}, errors.Wrap(err, "finding account by email")
		}
		acct, err = svc.accounts.Create(ctx, identity.NewAccount{Email: email, EmailConfirmed: true})
		if err != nil {
			return user.User{}, errors.Wrap(err, "creating account")
		}
	}

	now := time.Now().UTC()
	active := true
	usr = user.User{
		ID:        acct.ID,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Role:      role,
		SchoolID:  schoolID,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = usr.SetPassword(password); err != nil {
		return user.User{}, errors.Wrap(err, "setting password")
	}
	usr, err = svc.users.UpdateOrCreateUser(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "upserting profile")
	}
	return usr, nil
}

// resolveClassroom picks the assignment target: an explicit classroom id
// wins; otherwise the classroom name is resolved against the rooms created
// in stage 3.
func (svc *service) resolveClassroom(in TeacherInput, created []school.Classroom) string {
	if in.ClassroomID != "" {
		return in.ClassroomID
	}
	if in.ClassroomName == "" {
		return ""
	}
	for _, room := range created {
		if strings.EqualFold(room.Name, in.ClassroomName) {
			return room.ID
		}
	}
	return ""
}

// ensureAssignment creates a teacher-classroom assignment unless one already
// exists. Returns the classroom id the teacher ended up assigned to.
func (svc *service) ensureAssignment(ctx context.Context, schoolID, teacherID, classroomID string) (string, error) {
	existing, err := svc.rels.QueryTeacherAssignments(ctx, relationship.AssignmentFilter{
		TeacherID:   teacherID,
		ClassroomID: classroomID,
	})
	if err != nil {
		return "", errors.Wrap(err, "checking existing assignment")
	}
	if len(existing) > 0 {
		return classroomID, nil
	}

	_, err = svc.rels.CreateTeacherAssignment(ctx, relationship.TeacherAssignment{
		SchoolID:    schoolID,
		TeacherID:   teacherID,
		ClassroomID: classroomID,
		IsPrimary:   true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil && errors.Cause(err) != relationship.ErrAlreadyAssigned {
		return "", errors.Wrap(err, "creating assignment")
	}
	return classroomID, nil
}

// createSampleData creates exactly three sample children in the first
// created classroom and three sample parents, linking parent i to child i
// by array position.
func (svc *service) createSampleData(ctx context.Context, schoolID string, res *Result) {
	var classroomID string
	if len(res.Classrooms) > 0 {
		classroomID = res.Classrooms[0].ID
	}

	now := time.Now().UTC()
	for _, in := range sampleChildren {
		chd, err := svc.children.CreateChild(ctx, child.Child{
			SchoolID:    schoolID,
			ClassroomID: classroomID,
			Name:        in.Name,
			Gender:      in.Gender,
			DateOfBirth: now.AddDate(-3, 0, 0),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			res.appendError(StepSampleChild, "", in.Name, err)
			continue
		}
		res.SampleChildren = append(res.SampleChildren, chd)
	}

	for i, in := range sampleParents {
		// emails are scoped to the school so a second onboarded school gets
		// its own sample accounts.
		email := sampleParentEmail(schoolID, i)
		parent, err := svc.ensureUser(ctx, in.Name, email, "", user.RoleParent, schoolID, ParentTempPassword)
		if err != nil {
			res.appendError(StepSampleParent, email, "", err)
			continue
		}
		res.SampleParents = append(res.SampleParents, parent)

		if i >= len(res.SampleChildren) {
			continue
		}
		_, err = svc.rels.CreateParentLink(ctx, relationship.ParentLink{
			SchoolID:  schoolID,
			ParentID:  parent.ID,
			ChildID:   res.SampleChildren[i].ID,
			Type:      relationship.LinkGuardian,
			IsPrimary: true,
			CanPickup: true,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil && errors.Cause(err) != relationship.ErrAlreadyLinked {
			res.appendError(StepSampleLink, email, "", err)
		}
	}
}

func sampleParentEmail(schoolID string, i int) string {
	id := schoolID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("sample.parent%d.%s@example.com", i+1, id)
}

func (svc *service) sendWelcomeMail(usr user.User, schoolName, password string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + schoolName,
		TemplateName: "welcome",
		TemplateData: struct {
			Name, SchoolName, Email, TempPassword string
		}{usr.Name, schoolName, usr.Email, password},
	})
}

// Status returns the read-side view of an onboarded school.
func (svc *service) Status(ctx context.Context, schoolID string) (Status, error) {
	sch, err := svc.schools.GetSchoolByID(ctx, schoolID)
	if err != nil {
		return Status{}, err
	}

	rooms, err := svc.schools.QueryClassrooms(ctx, school.ClassroomFilter{SchoolID: schoolID})
	if err != nil {
		return Status{}, errors.Wrap(err, "querying classrooms")
	}

	teachers, err := svc.users.QueryUsers(ctx, &user.QueryFilter{
		SchoolID: schoolID,
		Roles:    []user.Role{user.RoleTeacher},
	}, nil)
	if err != nil {
		return Status{}, errors.Wrap(err, "querying teachers")
	}

	kids, err := svc.children.QueryChildren(ctx, child.QueryFilter{SchoolID: schoolID})
	if err != nil {
		return Status{}, errors.Wrap(err, "querying children")
	}

	return Status{
		School:     sch,
		Classrooms: rooms,
		Teachers:   teachers,
		ChildCount: len(kids),
	}, nil
}
