package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/koneum/eduwaly/apps/api/echo"
	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	"github.com/koneum/eduwaly/tests"
)

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	sch := testutil.CreateSchool(t, f.env.Schools, "Lycée Wagué", "lycee_wague")
	testutil.CreateUser(t, f.env.Users, "Awa", "awadiop", "awa@test.ml", strongPwd, user.RoleTeacher, sch.ID, true)
	testutil.CreateUser(t, f.env.Users, "Gone", "goneuser", "gone@test.ml", strongPwd, user.RoleTeacher, sch.ID, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("awadiop", "nope"),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", strongPwd),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("goneuser", strongPwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", method: http.MethodPost, path: "/v1/users/login", body: login("AWADIOP", strongPwd)},
		{name: "by email", method: http.MethodPost, path: "/v1/users/login", body: login("awa@test.ml", strongPwd)},
	}
	f.run(t, tests)

	rec := f.do(http.MethodPost, "/v1/users/login", "", login("awadiop", strongPwd))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoapi.LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	rec = f.do(http.MethodPost, "/v1/users/token-refresh", resp.Token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func Test_userApi_authentication(t *testing.T) {
	f := setup(t)
	sch := testutil.CreateSchool(t, f.env.Schools, "Lycée Wagué", "lycee_wague")
	teacher := testutil.CreateUser(t, f.env.Users, "Awa", "awadiop", "awa@test.ml", "", user.RoleTeacher, sch.ID, true)
	deleted := testutil.CreateUser(t, f.env.Users, "Gone", "goneuser", "gone@test.ml", "", user.RoleTeacher, sch.ID, true)
	deletedToken := f.getToken(t, deleted)
	_, err := f.env.Users.DeleteUsersByID(context.Background(), deleted.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "no token", path: "/v1/users/roles", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/users/roles", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errInvalidToken)},
		{
			name: "deleted user", path: "/v1/users/" + teacher.ID, token: deletedToken,
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: core.ErrUnauthenticated.Error()}),
		},
		{name: "roles", path: "/v1/users/roles", token: f.getToken(t, teacher), wantData: marshalObj(t, user.Roles)},
		{name: "self", path: "/v1/users/" + teacher.ID, token: f.getToken(t, teacher), wantData: marshalObj(t, teacher)},
	}
	f.run(t, tests)
}

func Test_userApi_tenantIsolation(t *testing.T) {
	f := setup(t)
	schA := testutil.CreateSchool(t, f.env.Schools, "School A", "school_a")
	schB := testutil.CreateSchool(t, f.env.Schools, "School B", "school_b")
	adminA := testutil.CreateUser(t, f.env.Users, "Admin A", "admin_a", "admin@a.ml", "", user.RoleSchoolAdmin, schA.ID, true)
	teacherA := testutil.CreateUser(t, f.env.Users, "Teacher A", "teacher_a", "teacher@a.ml", "", user.RoleTeacher, schA.ID, true)
	teacherB := testutil.CreateUser(t, f.env.Users, "Teacher B", "teacher_b", "teacher@b.ml", "", user.RoleTeacher, schB.ID, true)
	root := testutil.CreateUser(t, f.env.Users, "Root", "rootuser", "root@eduwaly.test", "", user.RoleSuperAdmin, "", true)

	adminToken := f.getToken(t, adminA)
	tests := []httpTest{
		{name: "same school", path: "/v1/users/" + teacherA.ID, token: adminToken, wantData: marshalObj(t, teacherA)},
		{
			name: "other school", path: "/v1/users/" + teacherB.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "nonexistent id", path: "/v1/users/" + uuid.New().String(), token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "nonexistent id's permissions", path: "/v1/users/" + uuid.New().String() + "/permissions", token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "other school's permissions", path: "/v1/users/" + teacherB.ID + "/permissions", token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "nonexistent id's authorization", path: "/v1/authorization/" + uuid.New().String(), token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "other school's authorization", path: "/v1/authorization/" + teacherB.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "nonexistent id for super admin", path: "/v1/users/" + uuid.New().String(), token: f.getToken(t, root),
			wantCode: http.StatusNotFound,
		},
		{
			name: "other school's user delete", method: http.MethodDelete, path: "/v1/users/" + teacherB.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "teacher without grant", path: "/v1/users/" + adminA.ID, token: f.getToken(t, teacherA),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{name: "super admin", path: "/v1/users/" + teacherB.ID, token: f.getToken(t, root), wantData: marshalObj(t, teacherB)},
		{
			name: "listing is scoped to the school", path: "/v1/users?ordering=username&school_id=" + schB.ID, token: adminToken,
			wantData: marshalObj(t, []user.User{adminA, teacherA}),
		},
		{
			name: "create in another school", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body: marshalObj(t, user.NewUser{
				SchoolID: schB.ID, Name: "Intruder", Username: "intruder", Role: user.RoleTeacher,
				Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
		{
			name: "super admin create in unknown school", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, root),
			body: marshalObj(t, user.NewUser{
				SchoolID: uuid.New().String(), Name: "Lost", Username: "lostuser", Role: user.RoleParent,
				Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"school_id":"school does not exist"}`),
		},
		{
			name: "role above own", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body: marshalObj(t, user.NewUser{
				Name: "Boss", Username: "bossuser", Role: user.RoleSuperAdmin, Password: strongPwd, PasswordConfirm: strongPwd,
			}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"role":"not enough rights to set this role"}`),
		},
		{
			name: "deactivate oneself", method: http.MethodPut, path: "/v1/users/" + adminA.ID, token: adminToken,
			body:     []byte(`{"is_active":false}`),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, errPermissionDenied),
		},
	}
	f.run(t, tests)
}

func Test_userApi_headCount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tiny, err := f.env.PlanSvc.Create(ctx, plan.NewPlan{
		Name: "TINY", DisplayName: "Tiny", Currency: "XOF", Interval: plan.Monthly,
		Limits: plan.Limits{MaxStudents: plan.Max(1), MaxTeachers: plan.Unlimited},
	})
	require.NoError(t, err)

	sch := testutil.CreateSchool(t, f.env.Schools, "Lycée Wagué", "lycee_wague")
	unsubscribed := testutil.CreateSchool(t, f.env.Schools, "Lycée Askia", "lycee_askia")
	testutil.Subscribe(t, f.env.Subscriptions, sch.ID, tiny.ID, subscription.StatusActive)
	admin := testutil.CreateUser(t, f.env.Users, "Admin", "adminuser", "admin@test.ml", "", user.RoleSchoolAdmin, sch.ID, true)
	other := testutil.CreateUser(t, f.env.Users, "Other", "otheradmin", "other@test.ml", "", user.RoleSchoolAdmin, unsubscribed.ID, true)

	newUser := func(uname string, role user.Role) []byte {
		return marshalObj(t, user.NewUser{Name: "Élève", Username: uname, Role: role, Password: strongPwd, PasswordConfirm: strongPwd})
	}
	tests := []httpTest{
		{name: "first student", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, admin), body: newUser("student1", user.RoleStudent), wantCode: http.StatusCreated},
		{
			name: "over the student limit", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, admin),
			body: newUser("student2", user.RoleStudent), wantCode: http.StatusPaymentRequired,
			wantData: marshalObj(t, echoapi.UpgradeResponse{Error: "upgrade required", Reason: core.UpgradeReasonLimit, Limit: string(plan.LimitMaxStudents)}),
		},
		{name: "unlimited teachers", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, admin), body: newUser("teacher1", user.RoleTeacher), wantCode: http.StatusCreated},
		{name: "uncapped role", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, admin), body: newUser("parent1", user.RoleParent), wantCode: http.StatusCreated},
		{
			name: "no subscription", method: http.MethodPost, path: "/v1/users", token: f.getToken(t, other),
			body: newUser("student3", user.RoleStudent), wantCode: http.StatusPaymentRequired,
			wantData: marshalObj(t, echoapi.UpgradeResponse{Error: "upgrade required", Reason: core.UpgradeReasonNoSubscription}),
		},
	}
	f.run(t, tests)
}
