package onboarding_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/identity"
	"github.com/shulehq/shule/core/onboarding"
	"github.com/shulehq/shule/core/relationship"
	"github.com/shulehq/shule/core/school"
	"github.com/shulehq/shule/core/user"
	emailsvc "github.com/shulehq/shule/services/email"
	inmemdb "github.com/shulehq/shule/storage/database/inmem"
)

type noopLogger struct{}

func (noopLogger) Enable(bool)                  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

type fixture struct {
	svc      onboarding.Service
	users    user.Repository
	accounts identity.Provider
	rels     relationship.Repository
	children child.Repository
	schools  school.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	core.Conf = &core.Config{
		AppName:         "Shule",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
	}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening inmem db: %v", err)
	}
	f := &fixture{
		users:    inmemdb.NewUserRepository(db),
		accounts: inmemdb.NewAccountProvider(db),
		rels:     inmemdb.NewRelationshipRepository(db),
		children: inmemdb.NewChildRepository(db),
		schools:  inmemdb.NewSchoolRepository(db),
	}
	f.svc = onboarding.NewService(
		f.schools, f.users, f.accounts, f.rels, f.children,
		emailsvc.NewConsoleServiceMock(), noopLogger{})
	return f
}

func pilotRequest() onboarding.Request {
	return onboarding.Request{
		SchoolName:     "Little Stars Daycare",
		SchoolType:     school.TypeDaycare,
		City:           "Kinshasa",
		PrincipalEmail: "principal@littlestars.cd",
		PrincipalName:  "Grace Principal",
		Classrooms: []onboarding.ClassroomInput{
			{Name: "Sunflower", Capacity: 20, AgeGroup: "2-3"},
			{Name: "Moonbeam", Capacity: 15, AgeGroup: "4-5"},
		},
		Teachers: []onboarding.TeacherInput{
			{Name: "Tina Teacher", Email: "tina@littlestars.cd", ClassroomName: "Sunflower"},
			{Name: "Tom Teacher", Email: "tom@littlestars.cd"},
		},
	}
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Run() did not succeed: %+v", res.Errors)
	}
	if res.HasWarnings() {
		t.Fatalf("Run() returned warnings: %+v", res.Errors)
	}
	if res.Message() != "pilot school onboarded successfully" {
		t.Errorf("Message() = %q", res.Message())
	}

	if res.School == nil || res.School.ID == "" || res.School.Name != "Little Stars Daycare" {
		t.Fatalf("school = %+v", res.School)
	}
	if !res.School.IsActive {
		t.Error("school is not active")
	}

	if res.Principal == nil || res.Principal.Role != user.RolePrincipal || res.Principal.SchoolID != res.School.ID {
		t.Fatalf("principal = %+v", res.Principal)
	}
	if res.PrincipalPassword != onboarding.PrincipalTempPassword {
		t.Errorf("principal password = %q; want %q", res.PrincipalPassword, onboarding.PrincipalTempPassword)
	}
	if err := res.Principal.CheckPassword(onboarding.PrincipalTempPassword); err != nil {
		t.Error("principal temp password does not verify")
	}

	if len(res.Classrooms) != 2 {
		t.Fatalf("classrooms = %d; want 2", len(res.Classrooms))
	}
	if len(res.Teachers) != 2 {
		t.Fatalf("teachers = %d; want 2", len(res.Teachers))
	}
	if res.Teachers[0].ClassroomID != res.Classrooms[0].ID {
		t.Errorf("teacher assignment = %q; want classroom %q", res.Teachers[0].ClassroomID, res.Classrooms[0].ID)
	}
	if res.Teachers[1].ClassroomID != "" {
		t.Errorf("unassigned teacher got classroom %q", res.Teachers[1].ClassroomID)
	}
	for _, tr := range res.Teachers {
		if tr.Password != onboarding.TeacherTempPassword {
			t.Errorf("teacher password = %q; want %q", tr.Password, onboarding.TeacherTempPassword)
		}
	}

	// exactly 3 sample children and parents, parent i linked to child i
	if len(res.SampleChildren) != 3 {
		t.Fatalf("sample children = %d; want 3", len(res.SampleChildren))
	}
	if len(res.SampleParents) != 3 {
		t.Fatalf("sample parents = %d; want 3", len(res.SampleParents))
	}
	for i, p := range res.SampleParents {
		if p.Role != user.RoleParent {
			t.Errorf("sample parent %d role = %v", i, p.Role)
		}
		links, err := f.rels.QueryParentLinks(ctx, relationship.LinkFilter{ParentID: p.ID})
		if err != nil {
			t.Fatalf("QueryParentLinks(): %v", err)
		}
		if len(links) != 1 || links[0].ChildID != res.SampleChildren[i].ID {
			t.Errorf("sample parent %d links = %+v; want child %q", i, links, res.SampleChildren[i].ID)
		}
	}
	for _, chd := range res.SampleChildren {
		if chd.ClassroomID != res.Classrooms[0].ID {
			t.Errorf("sample child classroom = %q; want first classroom %q", chd.ClassroomID, res.Classrooms[0].ID)
		}
	}
}

// re-running the sequence with the same emails must reuse the existing
// identities and profiles instead of failing or duplicating them.
func TestService_Run_rerunReusesByEmail(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	first, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("first Run(): %v", err)
	}
	second, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("second Run(): %v", err)
	}
	if !second.Succeeded() {
		t.Fatalf("second Run() did not succeed: %+v", second.Errors)
	}

	if second.Principal.ID != first.Principal.ID {
		t.Errorf("principal id changed across runs: %q -> %q", first.Principal.ID, second.Principal.ID)
	}
	for i := range first.Teachers {
		if second.Teachers[i].User.ID != first.Teachers[i].User.ID {
			t.Errorf("teacher %d id changed across runs", i)
		}
	}

	users, err := f.users.QueryUsers(ctx, nil, nil)
	if err != nil {
		t.Fatalf("QueryUsers(): %v", err)
	}
	// 1 principal + 2 teachers + 3 sample parents per school; the second run
	// creates a new school whose sample parents are scoped to it.
	byEmail := make(map[string]int)
	for _, u := range users {
		byEmail[u.Email]++
	}
	for email, n := range byEmail {
		if n > 1 {
			t.Errorf("duplicate profiles for %s: %d", email, n)
		}
	}
	var principals int
	for _, u := range users {
		if u.Role == user.RolePrincipal {
			principals++
		}
	}
	if principals != 1 {
		t.Errorf("principals = %d; want 1", principals)
	}
}

func TestService_Run_skipSampleData(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	req := pilotRequest()
	req.SkipSampleData = true

	res, err := f.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if !res.Succeeded() || res.HasWarnings() {
		t.Fatalf("Run() = %+v", res.Errors)
	}
	if len(res.SampleChildren) != 0 || len(res.SampleParents) != 0 {
		t.Errorf("sample data created despite skip: %d children, %d parents",
			len(res.SampleChildren), len(res.SampleParents))
	}

	kids, err := f.children.QueryChildren(ctx, child.QueryFilter{SchoolID: res.School.ID})
	if err != nil {
		t.Fatalf("QueryChildren(): %v", err)
	}
	if len(kids) != 0 {
		t.Errorf("children in storage = %d; want 0", len(kids))
	}
}

func TestService_Run_minimalRequest(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.Run(ctx, onboarding.Request{
		SchoolName:     "Tiny",
		PrincipalEmail: "p@tiny.cd",
		PrincipalName:  "P",
	})
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("Run() did not succeed: %+v", res.Errors)
	}
	// no classrooms: sample children end up unassigned but still created
	if len(res.SampleChildren) != 3 {
		t.Errorf("sample children = %d; want 3", len(res.SampleChildren))
	}
	for _, chd := range res.SampleChildren {
		if chd.ClassroomID != "" {
			t.Errorf("sample child classroom = %q; want none", chd.ClassroomID)
		}
	}
	if res.School.Type != school.TypeDaycare {
		t.Errorf("school type = %q; want default %q", res.School.Type, school.TypeDaycare)
	}
}

// two schools each get their own sample parents: emails are school-scoped.
func TestService_Run_sampleEmailsScopedPerSchool(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	req1 := pilotRequest()
	res1, err := f.svc.Run(ctx, req1)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	req2 := pilotRequest()
	req2.SchoolName = "Bright Minds"
	req2.PrincipalEmail = "principal@brightminds.cd"
	req2.Teachers = nil
	req2.Classrooms = nil
	res2, err := f.svc.Run(ctx, req2)
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	for i := range res1.SampleParents {
		e1, e2 := res1.SampleParents[i].Email, res2.SampleParents[i].Email
		if e1 == e2 {
			t.Errorf("sample parent %d shares email %q across schools", i, e1)
		}
		if !strings.HasSuffix(e1, "@example.com") || !strings.HasSuffix(e2, "@example.com") {
			t.Errorf("sample parent emails = %q, %q; want @example.com", e1, e2)
		}
	}
	if res2.SampleParents[0].SchoolID != res2.School.ID {
		t.Errorf("second school's sample parent school = %q; want %q",
			res2.SampleParents[0].SchoolID, res2.School.ID)
	}
}

func TestService_Status(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	res, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	status, err := f.svc.Status(ctx, res.School.ID)
	if err != nil {
		t.Fatalf("Status(): %v", err)
	}
	if status.School.ID != res.School.ID {
		t.Errorf("Status() school = %q; want %q", status.School.ID, res.School.ID)
	}
	if len(status.Classrooms) != 2 {
		t.Errorf("Status() classrooms = %d; want 2", len(status.Classrooms))
	}
	if len(status.Teachers) != 2 {
		t.Errorf("Status() teachers = %d; want 2", len(status.Teachers))
	}
	if status.ChildCount != 3 {
		t.Errorf("Status() child count = %d; want 3", status.ChildCount)
	}

	t.Run("unknown school", func(t *testing.T) {
		if _, err := f.svc.Status(ctx, "9b40b356-1c0e-4bd4-96cc-5b46b5b93f94"); err != school.ErrNotFound {
			t.Errorf("Status() error = %v; want %v", err, school.ErrNotFound)
		}
	})

	// welcome mail went out to the principal
	var found bool
	for _, msg := range emailsvc.SentMessages {
		if len(msg.To) > 0 && msg.To[0].Address == "principal@littlestars.cd" {
			found = true
			break
		}
	}
	if !found {
		t.Error("no welcome email sent to the principal")
	}
}

// flakyClassroomRepo fails every classroom insert while leaving the rest of
// the school repository intact.
type flakyClassroomRepo struct {
	school.Repository
	err error
}

func (r flakyClassroomRepo) CreateClassroom(ctx context.Context, room school.Classroom) (school.Classroom, error) {
	return school.Classroom{}, r.err
}

func TestService_Run_classroomFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.svc = onboarding.NewService(
		flakyClassroomRepo{Repository: f.schools, err: errors.New("classroom insert failed")},
		f.users, f.accounts, f.rels, f.children,
		emailsvc.NewConsoleServiceMock(), noopLogger{})

	res, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if !res.Succeeded() {
		t.Fatalf("Run() did not succeed: %+v", res.Errors)
	}
	if !res.HasWarnings() {
		t.Fatal("Run() returned no warnings")
	}
	if res.Message() != "pilot school onboarded with warnings" {
		t.Errorf("Message() = %q", res.Message())
	}

	var classroomErrs int
	for _, se := range res.Errors {
		if se.Step == onboarding.StepClassroom {
			classroomErrs++
		}
	}
	if classroomErrs != 2 {
		t.Errorf("classroom errors = %d; want 2: %+v", classroomErrs, res.Errors)
	}

	// later stages still ran
	if len(res.Teachers) != 2 {
		t.Errorf("teachers = %d; want 2", len(res.Teachers))
	}
	if res.Principal == nil || res.PrincipalPassword != onboarding.PrincipalTempPassword {
		t.Errorf("principal = %+v", res.Principal)
	}
}

// failingAccountProvider rejects account allocation; lookups pass through.
type failingAccountProvider struct {
	identity.Provider
	err error
}

func (p failingAccountProvider) Create(ctx context.Context, na identity.NewAccount) (identity.Account, error) {
	return identity.Account{}, p.err
}

func TestService_Run_principalFailureIsHardFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.svc = onboarding.NewService(
		f.schools, f.users,
		failingAccountProvider{Provider: f.accounts, err: errors.New("identity provider down")},
		f.rels, f.children,
		emailsvc.NewConsoleServiceMock(), noopLogger{})

	res, err := f.svc.Run(ctx, pilotRequest())
	if err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if res.Succeeded() {
		t.Fatal("Run() succeeded without a principal")
	}
	if res.Message() != "pilot school onboarding failed" {
		t.Errorf("Message() = %q", res.Message())
	}
	if res.Principal != nil {
		t.Errorf("principal = %+v; want nil", res.Principal)
	}

	var principalErrs int
	for _, se := range res.Errors {
		if se.Step == onboarding.StepPrincipal {
			principalErrs++
		}
	}
	if principalErrs != 1 {
		t.Errorf("principal errors = %d; want 1: %+v", principalErrs, res.Errors)
	}

	// only school creation is fail-fast: stages 3-5 were still attempted
	if res.School == nil {
		t.Fatal("school was not created")
	}
	if len(res.Classrooms) != 2 {
		t.Errorf("classrooms = %d; want 2", len(res.Classrooms))
	}
}
