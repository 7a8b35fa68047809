package echoapi

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/shulehq/shule/core/relationship"
	"github.com/shulehq/shule/core/user"
)

func Test_relationshipAPI_links(t *testing.T) {
	sch := createTestSchool(t, "Links School")
	admin := createTestUser(t, "Admin", "links.admin@test.cd", user.RoleAdmin, sch.ID, true)
	teacher := createTestUser(t, "Teacher", "links.teacher@test.cd", user.RoleTeacher, sch.ID, true)
	parent := createTestUser(t, "Parent", "links.parent@test.cd", user.RoleParent, sch.ID, true)
	chd := createTestChild(t, sch.ID, "Links Kid")

	base := "/v1/admin/schools/" + sch.ID + "/links"
	adminToken := getToken(t, admin)

	body := marchallObj(t, relationship.NewParentLink{
		ParentID: parent.ID, ChildID: chd.ID, Type: relationship.LinkMother, IsPrimary: true,
	})

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, base, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized,
			wantData: failureData(t, errMissingToken.Error),
		}, rec)
	})

	t.Run("teacher token rejected at the gate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, getToken(t, teacher), body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: failureData(t, "permission denied"),
		}, rec)
	})

	var link relationship.ParentLink
	t.Run("link", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		decodeData(t, rec, &link)
		if link.ID == "" || link.SchoolID != sch.ID || link.Type != relationship.LinkMother {
			t.Errorf("link = %+v", link)
		}
	})

	t.Run("duplicate link", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, relationship.ErrAlreadyLinked.Error()),
		}, rec)
	})

	t.Run("linking a non-parent", func(t *testing.T) {
		badBody := marchallObj(t, relationship.NewParentLink{ParentID: teacher.ID, ChildID: chd.ID})
		req, rec := newAuthRequest(http.MethodPost, base, adminToken, badBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, map[string]string{"parent_id": "user is not a parent"}),
		}, rec)
	})

	t.Run("query links", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base+"?parent_id="+parent.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: successData(t, []relationship.ParentLink{link}),
		}, rec)
	})

	t.Run("unlink", func(t *testing.T) {
		v := make(url.Values)
		v.Add("parent_id", parent.ID)
		v.Add("child_id", chd.ID)
		req, rec := newAuthRequest(http.MethodDelete, base+"?"+v.Encode(), adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		// same pair again
		req, rec = newAuthRequest(http.MethodDelete, base+"?"+v.Encode(), adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: failureData(t, relationship.ErrNotFound.Error()),
		}, rec)
	})

	t.Run("unlink requires both ids", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, base+"?parent_id="+parent.ID, adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, "parent_id and child_id are required"),
		}, rec)
	})
}

func Test_relationshipAPI_assignments(t *testing.T) {
	sch := createTestSchool(t, "Assign School")
	principal := createTestUser(t, "Principal", "assign.princip@test.cd", user.RolePrincipal, sch.ID, true)
	teacher := createTestUser(t, "Teacher", "assign.teacher@test.cd", user.RoleTeacher, sch.ID, true)
	room := createTestClassroom(t, sch.ID, "Rainbow")

	base := "/v1/admin/schools/" + sch.ID + "/assignments"
	token := getToken(t, principal)

	body := marchallObj(t, relationship.NewTeacherAssignment{
		TeacherID: teacher.ID, ClassroomID: room.ID, IsPrimary: true,
	})

	var asg relationship.TeacherAssignment
	t.Run("assign", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		decodeData(t, rec, &asg)
		if asg.ID == "" || asg.TeacherID != teacher.ID || asg.ClassroomID != room.ID {
			t.Errorf("assignment = %+v", asg)
		}
	})

	t.Run("duplicate assignment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, base, token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, relationship.ErrAlreadyAssigned.Error()),
		}, rec)
	})

	t.Run("query assignments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, base+"?teacher_id="+teacher.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: successData(t, []relationship.TeacherAssignment{asg}),
		}, rec)
	})

	t.Run("unassign", func(t *testing.T) {
		v := make(url.Values)
		v.Add("teacher_id", teacher.ID)
		v.Add("classroom_id", room.ID)
		req, rec := newAuthRequest(http.MethodDelete, base+"?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, base, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusOK,
			wantData: successData(t, []relationship.TeacherAssignment{}),
		}, rec)
	})
}
