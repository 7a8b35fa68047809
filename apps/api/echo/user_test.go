package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/shulehq/shule/core/identity"
	"github.com/shulehq/shule/core/user"
)

func Test_userAPI_login(t *testing.T) {
	sch := createTestSchool(t, "Login School")
	admin := createTestUser(t, "Admin", "login.admin@test.cd", user.RoleAdmin, sch.ID, true)
	teacher := createTestUser(t, "Teacher", "login.teacher@test.cd", user.RoleTeacher, sch.ID, true)
	createTestUser(t, "Sleeper", "login.sleeper@test.cd", user.RoleAdmin, sch.ID, false)

	tests := []httpTest{
		{
			name:     "empty body",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name:     "unknown email",
			body:     marchallObj(t, LoginRequest{Email: "ghost@test.cd", Password: "S3cure!Pass"}),
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, "authentication failed"),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: admin.Email, Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, "authentication failed"),
		},
		{
			name:     "deactivated account",
			body:     marchallObj(t, LoginRequest{Email: "login.sleeper@test.cd", Password: "S3cure!Pass"}),
			wantCode: http.StatusForbidden,
			wantData: failureData(t, "account deactivated"),
		},
		{name: "admin lands on /admin", body: marchallObj(t, LoginRequest{Email: admin.Email, Password: "S3cure!Pass"}), wantCode: http.StatusOK, extra: "/admin"},
		{name: "teacher lands on /teacher", body: marchallObj(t, LoginRequest{Email: teacher.Email, Password: "S3cure!Pass"}), wantCode: http.StatusOK, extra: "/teacher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if landing, ok := tt.extra.(string); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var res LoginResponse
				decodeData(t, rec, &res)
				if res.Token == "" {
					t.Error("login returned no token")
				}
				if res.Landing != landing {
					t.Errorf("landing = %q; want %q", res.Landing, landing)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userAPI_allocate(t *testing.T) {
	sch := createTestSchool(t, "Alloc School")
	other := createTestSchool(t, "Other Alloc School")
	super := createTestUser(t, "Super", "alloc.super@test.cd", user.RoleSuper, "", true)
	admin := createTestUser(t, "Admin", "alloc.admin@test.cd", user.RoleAdmin, sch.ID, true)
	teacher := createTestUser(t, "Teacher", "alloc.teacher@test.cd", user.RoleTeacher, sch.ID, true)

	path := "/v1/admin/schools/" + sch.ID + "/users"
	newBody := func(name, email string, role user.Role) []byte {
		return marchallObj(t, user.NewUser{
			Name:            name,
			Email:           email,
			Role:            role,
			Password:        "S3cure!Pass",
			PasswordConfirm: "S3cure!Pass",
		})
	}

	tests := []httpTest{
		{
			name:     "auth required",
			path:     path,
			body:     newBody("T", "alloc.t1@test.cd", user.RoleTeacher),
			wantCode: http.StatusUnauthorized,
			wantData: failureData(t, errMissingToken.Error),
		},
		{
			name:     "teacher token rejected at the gate",
			path:     path,
			body:     newBody("T", "alloc.t2@test.cd", user.RoleTeacher),
			token:    getToken(t, teacher),
			wantCode: http.StatusForbidden,
			wantData: failureData(t, "permission denied"),
		},
		{
			name:     "admin of another school denied",
			path:     "/v1/admin/schools/" + other.ID + "/users",
			body:     newBody("T", "alloc.t3@test.cd", user.RoleTeacher),
			token:    getToken(t, admin),
			wantCode: http.StatusForbidden,
			wantData: failureData(t, "access denied to this school"),
		},
		{
			name:     "cannot allocate a super",
			path:     path,
			body:     newBody("S", "alloc.s1@test.cd", user.RoleSuper),
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, map[string]string{"role": "cannot allocate this role"}),
		},
		{
			name:     "duplicate email",
			path:     path,
			body:     newBody("Dup", admin.Email, user.RoleTeacher),
			token:    getToken(t, admin),
			wantCode: http.StatusBadRequest,
			wantData: failureData(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{name: "admin allocates a teacher", path: path, body: newBody("New Teacher", "alloc.new1@test.cd", user.RoleTeacher), token: getToken(t, admin), wantCode: http.StatusCreated, extra: user.RoleTeacher},
		{name: "super allocates a parent", path: path, body: newBody("New Parent", "alloc.new2@test.cd", user.RoleParent), token: getToken(t, super), wantCode: http.StatusCreated, extra: user.RoleParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if role, ok := tt.extra.(user.Role); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				decodeData(t, rec, &usr)
				if usr.ID == "" || usr.Role != role || usr.SchoolID != sch.ID {
					t.Errorf("allocated user = %+v", usr)
				}
				if !usr.Active() {
					t.Error("allocated user is not active")
				}
				// the profile must be backed by an identity account with the same id
				acct, err := acctProvider.GetByEmail(context.Background(), usr.Email)
				if err != nil {
					t.Errorf("allocated user %s has no identity account: %v", usr.ID, err)
				} else if acct.ID != usr.ID {
					t.Errorf("profile id = %q; account id = %q", usr.ID, acct.ID)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("existing account is reused by email", func(t *testing.T) {
		acct, err := acctProvider.Create(context.Background(), identity.NewAccount{Email: "alloc.linked@test.cd", EmailConfirmed: true})
		if err != nil {
			t.Fatalf("creating account: %v", err)
		}

		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, admin),
			newBody("Linked Parent", "alloc.linked@test.cd", user.RoleParent))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %v; body %s", rec.Code, rec.Body.String())
		}
		var usr user.User
		decodeData(t, rec, &usr)
		if usr.ID != acct.ID {
			t.Errorf("profile id = %q; want account id %q", usr.ID, acct.ID)
		}
	})
}

func Test_userAPI_query(t *testing.T) {
	sch := createTestSchool(t, "Query School")
	other := createTestSchool(t, "Other Query School")
	admin := createTestUser(t, "Query Admin", "query.admin@test.cd", user.RoleAdmin, sch.ID, true)
	teacher := createTestUser(t, "Query Teacher", "query.teacher@test.cd", user.RoleTeacher, sch.ID, true)
	parent := createTestUser(t, "Query Parent", "query.parent@test.cd", user.RoleParent, sch.ID, true)
	createTestUser(t, "Stray", "query.stray@test.cd", user.RoleTeacher, other.ID, true)

	base := "/v1/admin/schools/" + sch.ID + "/users"
	path := func(search string, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		for _, r := range roles {
			v.Add("role", r.String())
		}
		return base + "?" + v.Encode()
	}

	tests := []httpTest{
		{name: "school only", path: base, wantData: successData(t, []user.User{admin, teacher, parent})},
		{name: "role=teacher", path: path("", user.RoleTeacher), wantData: successData(t, []user.User{teacher})},
		{name: "role=teacher,parent", path: path("", user.RoleTeacher, user.RoleParent), wantData: successData(t, []user.User{teacher, parent})},
		{name: "search", path: path("query parent"), wantData: successData(t, []user.User{parent})},
		{name: "search (unknown)", path: path("lol"), wantData: successData(t, []user.User{})},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = getToken(t, admin)
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
