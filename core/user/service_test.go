package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/subscription"
	"github.com/koneum/eduwaly/core/user"
	"github.com/koneum/eduwaly/tests"
)

const strongPwd = "Kx9#mQ2!vL"

func newStudent(schoolID, uname string) user.NewUser {
	return user.NewUser{SchoolID: schoolID, Name: "Élève", Username: uname, Role: user.RoleStudent, Password: strongPwd, PasswordConfirm: strongPwd}
}

func TestService_Create_headCount(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	env.SeedPlans(t)

	small, err := env.PlanSvc.Create(ctx, plan.NewPlan{
		Name: "SMALL", DisplayName: "Small", Currency: "XOF", Interval: plan.Monthly,
		Limits: plan.Limits{MaxStudents: plan.Max(2), MaxTeachers: plan.Max(0)},
	})
	require.NoError(t, err)
	sch := testutil.CreateSchool(t, env.Schools, "School", "school")
	testutil.Subscribe(t, env.Subscriptions, sch.ID, small.ID, subscription.StatusActive)

	for _, uname := range []string{"student1", "student2"} {
		_, err := env.UserSvc.Create(ctx, newStudent(sch.ID, uname))
		require.NoError(t, err)
	}

	_, err = env.UserSvc.Create(ctx, newStudent(sch.ID, "student3"))
	var upgrade *core.UpgradeRequiredError
	require.True(t, errors.As(err, &upgrade), "got %v", err)
	assert.Equal(t, core.UpgradeReasonLimit, upgrade.Reason)
	assert.Equal(t, string(plan.LimitMaxStudents), upgrade.Limit)

	teacher := newStudent(sch.ID, "teacher1")
	teacher.Role = user.RoleTeacher
	_, err = env.UserSvc.Create(ctx, teacher)
	require.True(t, errors.As(err, &upgrade), "got %v", err)
	assert.Equal(t, string(plan.LimitMaxTeachers), upgrade.Limit)

	count, err := env.UserSvc.CountByRole(ctx, sch.ID, user.RoleStudent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	// upgrading lifts the limit right away
	plans, err := env.PlanSvc.Query(ctx, false)
	require.NoError(t, err)
	var enterprise plan.Plan
	for _, p := range plans {
		if p.Name == plan.Enterprise {
			enterprise = p
		}
	}
	_, err = env.SubscriptionSvc.Upgrade(ctx, sch.ID, enterprise.ID)
	require.NoError(t, err)
	_, err = env.UserSvc.Create(ctx, newStudent(sch.ID, "student3"))
	assert.NoError(t, err)
}

func TestService_Create_school(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	_, err := env.UserSvc.Create(ctx, user.NewUser{Name: "Orphan", Username: "orphan", Role: user.RoleParent, Password: strongPwd})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "school_id", verr.Fields[0].Field)

	_, err = env.UserSvc.Create(ctx, user.NewUser{SchoolID: "missing-school", Name: "Lost", Username: "lostuser", Role: user.RoleParent, Password: strongPwd})
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, user.ErrUnknownSchool, verr.Err)
	assert.Equal(t, "school_id", verr.Fields[0].Field)

	root, err := env.UserSvc.Create(ctx, user.NewUser{SchoolID: "ignored", Name: "Root", Username: "rootuser", Role: user.RoleSuperAdmin, Password: strongPwd})
	require.NoError(t, err)
	assert.Empty(t, root.SchoolID)
	assert.True(t, root.IsActive)
	assert.NoError(t, root.CheckPassword(strongPwd))
}

func TestUser_CanManage(t *testing.T) {
	tests := []struct {
		role   user.Role
		target user.Role
		want   bool
	}{
		{role: user.RoleSuperAdmin, target: user.RoleSchoolAdmin, want: true},
		{role: user.RoleSchoolAdmin, target: user.RoleSchoolAdmin, want: true},
		{role: user.RoleSchoolAdmin, target: user.RoleSuperAdmin, want: false},
		{role: user.RoleManager, target: user.RoleTeacher, want: true},
		{role: user.RoleTeacher, target: user.RoleManager, want: false},
		{role: user.RoleSecretary, target: user.RolePersonnel, want: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+">"+string(tt.target), func(t *testing.T) {
			usr := user.User{Role: tt.role}
			assert.Equal(t, tt.want, usr.CanManage(tt.target))
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range user.AllRoles {
		got, err := user.ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := user.ParseRole("JANITOR")
	assert.Equal(t, user.ErrInvalidRole, err)
	_, err = user.ParseRole("teacher")
	assert.Equal(t, user.ErrInvalidRole, err)
}

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	testutil.CreateUser(t, env.Users, "Taken", "takenuser", "taken@test.ml", "", user.RoleTeacher, "school-1", true)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
		wantTag   string
	}{
		{name: "valid", nu: newStudent("school-1", "student1")},
		{name: "no username nor email", nu: user.NewUser{Name: "X", Role: user.RoleStudent, Password: strongPwd, PasswordConfirm: strongPwd}, wantField: "username", wantTag: "username_or_email"},
		{name: "bad role", nu: user.NewUser{Name: "X", Username: "someone", Role: "JANITOR", Password: strongPwd, PasswordConfirm: strongPwd}, wantField: "role", wantTag: "role"},
		{name: "short password", nu: user.NewUser{Name: "X", Username: "someone", Role: user.RoleStudent, Password: "aB1!", PasswordConfirm: "aB1!"}, wantField: "password", wantTag: "pwdminlen"},
		{name: "numeric password", nu: user.NewUser{Name: "X", Username: "someone", Role: user.RoleStudent, Password: "12345678901", PasswordConfirm: "12345678901"}, wantField: "password", wantTag: "pwdnotallnum"},
		{name: "simple password", nu: user.NewUser{Name: "X", Username: "someone", Role: user.RoleStudent, Password: "abcdefghij", PasswordConfirm: "abcdefghij"}, wantField: "password", wantTag: "pwdcplx"},
		{name: "password like username", nu: user.NewUser{Name: "X", Username: "kx9mq2vl", Role: user.RoleStudent, Password: strongPwd, PasswordConfirm: strongPwd}, wantField: "password", wantTag: "pwdtoosim"},
		{name: "confirmation mismatch", nu: user.NewUser{Name: "X", Username: "someone", Role: user.RoleStudent, Password: strongPwd, PasswordConfirm: "nope"}, wantField: "password_confirm", wantTag: "eqfield"},
		{name: "username taken", nu: newStudent("school-1", "TakenUser"), wantField: "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(context.Background(), validate, env.UserSvc)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			switch verr := errors.Cause(err).(type) {
			case validator.ValidationErrors:
				found := false
				for _, fe := range verr {
					if fe.Field() == tt.wantField && fe.Tag() == tt.wantTag {
						found = true
					}
				}
				assert.True(t, found, "got %v", verr)
			case *core.ValidationError:
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			default:
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}
