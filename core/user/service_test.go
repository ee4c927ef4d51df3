package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func setup(t *testing.T) (user.Service, user.Repository) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	core.ParseEmailTemplates(logger)
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewServiceMock(repo, emailsvc.NewConsoleServiceMock(conf, logger), conf, logger), repo
}

func TestRolePriority(t *testing.T) {
	assert.Equal(t, 30, user.RolePriority(user.RoleAdminOwner))
	assert.Zero(t, user.RolePriority("nobody:"))
	assert.Equal(t, 11, user.MaxRolePriority([]string{user.RoleStudent, user.RoleCollegeAdmin}))
	assert.Zero(t, user.MaxRolePriority(nil))
	assert.Len(t, user.AllRoles, 5)
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)

	usr, err := svc.Create(bg, user.NewUser{
		Name: "Asha", Username: "asha", Email: "asha@test.in",
		Password: "s3cret", PasswordConfirm: "s3cret", Roles: []string{user.RoleStudent},
	})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.NoError(t, usr.CheckPassword("s3cret"))

	p, err := svc.Profile(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.True(t, p.WeeklyQuizEnabled)
	assert.Equal(t, user.AIModeGlobal, p.AIMode)

	got, err := svc.GetByUsernameOrEmail(bg, " ASHA@test.in ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	err = svc.CheckUniqueness(bg, "asha", "other@test.in")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "err = %v", err)
	assert.Equal(t, "username", verr.Fields[0].Field)

	err = svc.CheckUniqueness(bg, "other", "asha@test.in")
	require.True(t, errors.As(err, &verr), "err = %v", err)
	assert.Equal(t, "email", verr.Fields[0].Field)

	assert.NoError(t, svc.CheckUniqueness(bg, "asha", "asha@test.in", usr))
}

func TestService_QueryAndUpdate(t *testing.T) {
	svc, repo := setup(t)
	active := testutil.CreateStudent(t, repo)
	inactive := testutil.CreateUser(t, repo, "Ravi", "ravi", "ravi@test.in", "", []string{user.RoleStudent}, false)
	testutil.CreateUser(t, repo, "Boss", "boss", "boss@test.in", "", []string{user.RoleAdmin}, true)

	students, err := svc.ActiveStudents(bg)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, active.ID, students[0].ID)

	users, err := svc.Query(bg, &user.QueryFilter{Search: "RAVI"}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, inactive.ID, users[0].ID)

	isActive := true
	updated, err := svc.Update(bg, inactive.ID, user.UpdateUser{
		Name: "Ravi K", Username: "ravi", Email: "ravi@test.in", IsActive: &isActive,
		Roles: []string{user.RoleCompany}, Password: "newpass", PasswordConfirm: "newpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ravi K", updated.Name)
	assert.True(t, updated.IsActive)
	assert.True(t, updated.IsCompany())
	assert.NoError(t, updated.CheckPassword("newpass"))

	_, err = svc.Update(bg, "missing", user.UpdateUser{})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	require.NoError(t, svc.Delete(bg, inactive.ID))
	_, err = svc.GetByID(bg, inactive.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_Profile(t *testing.T) {
	svc, repo := setup(t)
	usr := testutil.CreateStudent(t, repo)

	p, err := svc.AddXP(bg, usr.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, 250, p.XP)
	assert.Equal(t, 3, p.Level)

	p, err = svc.AddXP(bg, usr.ID, -1000)
	require.NoError(t, err)
	assert.Zero(t, p.XP)
	assert.Equal(t, 1, p.Level)

	p, err = svc.SetStreak(bg, usr.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Streak)

	require.NoError(t, svc.SetCurrentChapter(bg, usr.ID, "b1", "c1"))

	bio, off := "  Learning Go  ", false
	p, err = svc.UpdateProfile(bg, usr.ID, user.UpdateProfile{Bio: &bio, WeeklyQuizEnabled: &off, AIMode: user.AIModeBook})
	require.NoError(t, err)
	assert.Equal(t, "Learning Go", p.Bio)
	assert.False(t, p.WeeklyQuizEnabled)
	assert.Equal(t, user.AIModeBook, p.AIMode)
	assert.Equal(t, "c1", p.CurrentChapterID)
	assert.Equal(t, 4, p.Streak)
}

func TestUpdateProfile_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	up := user.UpdateProfile{Timezone: " UTC ", AIMode: " BOOK "}
	require.NoError(t, up.Validate(validate))
	assert.Equal(t, "UTC", up.Timezone)
	assert.Equal(t, user.AIModeBook, up.AIMode)

	up = user.UpdateProfile{Timezone: "Mars/Olympus"}
	_, ok := up.Validate(validate).(*core.ValidationError)
	assert.True(t, ok)

	up = user.UpdateProfile{AIMode: "psychic"}
	assert.Error(t, up.Validate(validate))
}

func TestService_passwordReset(t *testing.T) {
	svc, repo := setup(t)
	usr := testutil.CreateStudent(t, repo, "oldpass")

	assert.Equal(t, user.ErrNotFound, errors.Cause(svc.RequestPasswordReset(bg, "nobody@test.in")))

	inactive := testutil.CreateUser(t, repo, "Off", "off", "off@test.in", "x", []string{user.RoleStudent}, false)
	assert.Equal(t, user.ErrAccountInactive, svc.RequestPasswordReset(bg, inactive.Email))

	emailsvc.ResetSentMessages()
	require.NoError(t, svc.RequestPasswordReset(bg, usr.Email))
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "password_reset", msg.TemplateName)

	parts := strings.Split(msg.TemplateData.(map[string]string)["Path"], "/")
	require.Len(t, parts, 4)
	uid, token := parts[2], parts[3]
	assert.Equal(t, user.EncodeUID(usr), uid)

	rp := user.ResetUserPassword{UID: uid, Token: token, Password: "newpass", PasswordConfirm: "newpass"}
	require.NoError(t, svc.ResetPassword(bg, rp))

	got, err := svc.GetByID(bg, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("newpass"))

	tests := []struct {
		name  string
		rp    user.ResetUserPassword
		field string
	}{
		{name: "token already used", rp: rp, field: "token"},
		{name: "bad uid", rp: user.ResetUserPassword{UID: "!!", Token: token, Password: "x"}, field: "uid"},
		{name: "unknown uid", rp: user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "ghost"}), Token: token, Password: "x"}, field: "uid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ResetPassword(bg, tt.rp)
			verr, ok := err.(*core.ValidationError)
			require.True(t, ok, "err = %v", err)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}
