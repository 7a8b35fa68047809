package echoapi

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shulehq/shule/core/attendance"
	"github.com/shulehq/shule/core/user"
)

func Test_attendanceAPI(t *testing.T) {
	sch := createTestSchool(t, "Attendance School")
	teacher := createTestUser(t, "Teacher", "att.teacher@test.cd", user.RoleTeacher, sch.ID, true)
	parent := createTestUser(t, "Parent", "att.parent@test.cd", user.RoleParent, sch.ID, true)
	chd := createTestChild(t, sch.ID, "Att Kid")

	base := "/v1/teacher/schools/" + sch.ID + "/attendance"
	token := getToken(t, teacher)
	today := attendance.Today()

	t.Run("parent token rejected at the gate", func(t *testing.T) {
		body := marchallObj(t, attendance.NewRecord{ChildID: chd.ID, Status: attendance.StatusPresent})
		req, rec := newAuthRequest(http.MethodPost, base, getToken(t, parent), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: failureData(t, "permission denied"),
		}, rec)
	})

	t.Run("invalid status", func(t *testing.T) {
		body := marchallObj(t, attendance.NewRecord{ChildID: chd.ID, Status: "napping"})
		req, rec := newAuthRequest(http.MethodPost, base, token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	var marked attendance.Record
	t.Run("mark present", func(t *testing.T) {
		body := marchallObj(t, attendance.NewRecord{ChildID: chd.ID, Date: today, Status: attendance.StatusPresent, Notes: "on time"})
		req, rec := newAuthRequest(http.MethodPost, base, token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		decodeData(t, rec, &marked)
		if marked.ID == "" || marked.MarkedBy != teacher.ID || marked.Status != attendance.StatusPresent {
			t.Errorf("record = %+v", marked)
		}
		if marked.CheckIn.IsZero() {
			t.Error("marking present did not stamp CheckIn")
		}
	})

	t.Run("already marked", func(t *testing.T) {
		body := marchallObj(t, attendance.NewRecord{ChildID: chd.ID, Date: today, Status: attendance.StatusLate})
		req, rec := newAuthRequest(http.MethodPost, base, token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, attendance.ErrAlreadyMarked.Error()),
		}, rec)
	})

	t.Run("check out", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, base+"/"+marked.ID, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var rec2 attendance.Record
		decodeData(t, rec, &rec2)
		if rec2.CheckOut.IsZero() {
			t.Error("check out did not stamp CheckOut")
		}
	})

	t.Run("check out unknown record", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, base+"/9b40b356-1c0e-4bd4-96cc-5b46b5b93f94", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: failureData(t, attendance.ErrNotFound.Error()),
		}, rec)
	})

	t.Run("query", func(t *testing.T) {
		v := make(url.Values)
		v.Add("child_id", chd.ID)
		v.Add("date", today.Format(time.RFC3339))
		req, rec := newAuthRequest(http.MethodGet, base+"?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var recs []attendance.Record
		decodeData(t, rec, &recs)
		if len(recs) != 1 || recs[0].ID != marked.ID {
			t.Errorf("query = %+v; want the marked record", recs)
		}
	})
}
