package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/attendance"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/child"
	"github.com/shulehq/shule/core/rbac"
	"github.com/shulehq/shule/core/user"
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
	svc      attendance.Service
	users    user.Repository
	children child.Repository
	audits   []audit.Entry
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening inmem db: %v", err)
	}
	f := &fixture{
		users:    inmemdb.NewUserRepository(db),
		children: inmemdb.NewChildRepository(db),
	}

	access := rbac.NewValidator(user.NewServiceMock(f.users, nil, nil, nil))
	recorder := audit.NewRecorder(inmemdb.NewAuditRepository(db), noopLogger{}, func(entry audit.Entry, err error) {
		if err == nil {
			f.audits = append(f.audits, entry)
		}
	})

	f.svc = attendance.NewService(inmemdb.NewAttendanceRepository(db), f.children, access, recorder)
	return f
}

func (f *fixture) createUser(t *testing.T, name, email string, role user.Role, schoolID string) user.User {
	t.Helper()

	now := time.Now().UTC()
	active := true
	usr, err := f.users.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		SchoolID:  schoolID,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createUser(): %v", err)
	}
	return usr
}

func (f *fixture) createChild(t *testing.T, schoolID, name string) child.Child {
	t.Helper()

	now := time.Now().UTC()
	chd, err := f.children.CreateChild(context.Background(), child.Child{
		SchoolID: schoolID, Name: name, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createChild(): %v", err)
	}
	return chd
}

func TestService_Mark(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	schoolID := "11f53a9b-b462-4f69-a54a-bdcbbca9a943"
	otherSchoolID := "7e25b9f3-5a2b-45b4-a37e-9dcfb8e9e7cf"
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, schoolID)
	parent := f.createUser(t, "Parent", "parent@test.cd", user.RoleParent, schoolID)
	chd := f.createChild(t, schoolID, "Kid")
	strayChild := f.createChild(t, otherSchoolID, "Stray Kid")
	today := attendance.Today()

	rec, err := f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
		ChildID: chd.ID, Date: today, Status: attendance.StatusPresent,
	})
	if err != nil {
		t.Fatalf("Mark(): %v", err)
	}
	if rec.ID == "" || rec.SchoolID != schoolID || rec.MarkedBy != teacher.ID {
		t.Errorf("Mark() = %+v", rec)
	}
	if rec.CheckIn.IsZero() {
		t.Error("Mark() with status present did not stamp CheckIn")
	}
	if len(f.audits) != 1 || f.audits[0].EntityType != audit.EntityAttendance {
		t.Errorf("audit trail = %+v", f.audits)
	}

	// one record per (child, date)
	if _, err = f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
		ChildID: chd.ID, Date: today, Status: attendance.StatusLate,
	}); err != attendance.ErrAlreadyMarked {
		t.Errorf("duplicate mark error = %v; want %v", err, attendance.ErrAlreadyMarked)
	}

	t.Run("absent has no check-in", func(t *testing.T) {
		chd2 := f.createChild(t, schoolID, "Kid 2")
		rec, err := f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
			ChildID: chd2.ID, Date: today, Status: attendance.StatusAbsent,
		})
		if err != nil {
			t.Fatalf("Mark(): %v", err)
		}
		if !rec.CheckIn.IsZero() {
			t.Errorf("Mark() with status absent stamped CheckIn = %v", rec.CheckIn)
		}
	})

	t.Run("parent cannot mark", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, parent.ID, schoolID, attendance.NewRecord{
			ChildID: chd.ID, Date: today.AddDate(0, 0, 1), Status: attendance.StatusPresent,
		})
		if err != rbac.ErrInsufficientRole {
			t.Errorf("error = %v; want %v", err, rbac.ErrInsufficientRole)
		}
	})

	t.Run("teacher from another school", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, teacher.ID, otherSchoolID, attendance.NewRecord{
			ChildID: strayChild.ID, Date: today, Status: attendance.StatusPresent,
		})
		if err != rbac.ErrSchoolDenied {
			t.Errorf("error = %v; want %v", err, rbac.ErrSchoolDenied)
		}
	})

	t.Run("child from another school", func(t *testing.T) {
		_, err := f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
			ChildID: strayChild.ID, Date: today, Status: attendance.StatusPresent,
		})
		vErr, ok := err.(*core.ValidationError)
		if !ok {
			t.Fatalf("error = %v (%T); want *core.ValidationError", err, err)
		}
		if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "child_id" {
			t.Errorf("ValidationError fields = %+v; want child_id", vErr.Fields)
		}
	})
}

func TestService_CheckOut(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	schoolID := "11f53a9b-b462-4f69-a54a-bdcbbca9a943"
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, schoolID)
	chd := f.createChild(t, schoolID, "Kid")

	rec, err := f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
		ChildID: chd.ID, Date: attendance.Today(), Status: attendance.StatusPresent,
	})
	if err != nil {
		t.Fatalf("Mark(): %v", err)
	}

	out, err := f.svc.CheckOut(ctx, teacher.ID, schoolID, rec.ID)
	if err != nil {
		t.Fatalf("CheckOut(): %v", err)
	}
	if out.CheckOut.IsZero() {
		t.Error("CheckOut() did not stamp CheckOut")
	}
	if out.CheckOut.Before(out.CheckIn) {
		t.Errorf("CheckOut() = %v before CheckIn %v", out.CheckOut, out.CheckIn)
	}

	t.Run("record from another school", func(t *testing.T) {
		super := f.createUser(t, "Super", "super@test.cd", user.RoleSuper, "")
		_, err := f.svc.CheckOut(ctx, super.ID, "7e25b9f3-5a2b-45b4-a37e-9dcfb8e9e7cf", rec.ID)
		if err != attendance.ErrNotFound {
			t.Errorf("error = %v; want %v", err, attendance.ErrNotFound)
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := f.svc.CheckOut(ctx, teacher.ID, schoolID, "9b40b356-1c0e-4bd4-96cc-5b46b5b93f94")
		if err != attendance.ErrNotFound {
			t.Errorf("error = %v; want %v", err, attendance.ErrNotFound)
		}
	})
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	schoolID := "11f53a9b-b462-4f69-a54a-bdcbbca9a943"
	teacher := f.createUser(t, "Teacher", "teacher@test.cd", user.RoleTeacher, schoolID)
	chd1 := f.createChild(t, schoolID, "Kid 1")
	chd2 := f.createChild(t, schoolID, "Kid 2")

	today := attendance.Today()
	yesterday := today.AddDate(0, 0, -1)
	for _, m := range []struct {
		childID string
		date    time.Time
		status  string
	}{
		{chd1.ID, yesterday, attendance.StatusPresent},
		{chd1.ID, today, attendance.StatusLate},
		{chd2.ID, today, attendance.StatusAbsent},
	} {
		if _, err := f.svc.Mark(ctx, teacher.ID, schoolID, attendance.NewRecord{
			ChildID: m.childID, Date: m.date, Status: m.status,
		}); err != nil {
			t.Fatalf("Mark(): %v", err)
		}
	}

	tests := []struct {
		name   string
		filter attendance.QueryFilter
		want   int
	}{
		{name: "all", filter: attendance.QueryFilter{}, want: 3},
		{name: "by child", filter: attendance.QueryFilter{ChildID: chd1.ID}, want: 2},
		{name: "by date", filter: attendance.QueryFilter{Date: today}, want: 2},
		{name: "range", filter: attendance.QueryFilter{From: yesterday, To: yesterday}, want: 1},
		{name: "empty range", filter: attendance.QueryFilter{From: today.AddDate(0, 0, 5)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := f.svc.Query(ctx, teacher.ID, schoolID, tt.filter)
			if err != nil {
				t.Fatalf("Query(): %v", err)
			}
			if len(recs) != tt.want {
				t.Errorf("Query() returned %d records; want %d", len(recs), tt.want)
			}
		})
	}
}
