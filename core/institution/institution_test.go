package institution_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func TestIsFeatureAllowed(t *testing.T) {
	tests := []struct {
		feature string
		want    map[string]bool
	}{
		{institution.FeatureAdminDashboard, map[string]bool{"free": false, "pro": true, "enterprise": true}},
		{institution.FeatureWeakTopics, map[string]bool{"free": false, "pro": true, "enterprise": true}},
		{institution.FeaturePDFExport, map[string]bool{"free": false, "pro": true, "enterprise": true}},
		{institution.FeatureBatchFiltering, map[string]bool{"free": false, "pro": false, "enterprise": true}},
		{institution.FeaturePlacementPrediction, map[string]bool{"free": false, "pro": false, "enterprise": true}},
		{"teleportation", map[string]bool{"free": false, "pro": false, "enterprise": false}},
	}
	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			for plan, want := range tt.want {
				assert.Equal(t, want, institution.IsFeatureAllowed(plan, tt.feature), plan)
				assert.Equal(t, want, institution.Institution{Plan: plan}.IsFeatureAllowed(tt.feature), plan)
			}
		})
	}
}

func TestInstitution_HasActiveSubscription(t *testing.T) {
	today := core.Today()
	assert.True(t, institution.Institution{IsActive: true}.HasActiveSubscription())
	assert.True(t, institution.Institution{IsActive: true, SubscriptionEnd: today}.HasActiveSubscription())
	assert.False(t, institution.Institution{IsActive: true, SubscriptionEnd: today.AddDate(0, 0, -1)}.HasActiveSubscription())
	assert.False(t, institution.Institution{SubscriptionEnd: today.AddDate(0, 0, 5)}.HasActiveSubscription())
}

func TestNewInstitution_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	ni := institution.NewInstitution{Name: " Tech College ", Code: " TECH_01 ", AdminEmail: " Dean@Tech.IN "}
	require.NoError(t, ni.Validate(validate))
	assert.Equal(t, "Tech College", ni.Name)
	assert.Equal(t, "tech_01", ni.Code)
	assert.Equal(t, "dean@tech.in", ni.AdminEmail)
	assert.Equal(t, institution.PlanFree, ni.Plan)

	ni.Plan = "Platinum"
	assert.Error(t, ni.Validate(validate))

	ni = institution.NewInstitution{Name: "x", Code: "has space", AdminEmail: "a@b.in"}
	assert.Error(t, ni.Validate(validate))

	cp := institution.ConfirmPayment{OrderID: " order_1 "}
	require.NoError(t, cp.Validate(validate))
	assert.Equal(t, "order_1", cp.OrderID)
	cp = institution.ConfirmPayment{OrderID: "  "}
	assert.Error(t, cp.Validate(validate))

	up := institution.UpdatePlan{Plan: "ENTERPRISE"}
	require.NoError(t, up.Validate(validate))
	assert.Equal(t, institution.PlanEnterprise, up.Plan)
}

type institutionApp struct {
	svc      institution.Service
	users    user.Service
	userRepo user.Repository
}

func setup(t *testing.T) *institutionApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	core.ParseEmailTemplates(logger)
	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(userRepo, mailSvc, conf, logger)
	svc := institution.NewService(inmemdb.NewInstitutionRepository(db), userSvc, mailSvc, conf, logger)
	return &institutionApp{svc: svc, users: userSvc, userRepo: userRepo}
}

func (app *institutionApp) create(t *testing.T, code, email string) (institution.Institution, user.User) {
	inst, admin, err := app.svc.Create(bg, institution.NewInstitution{
		Name:       strings.ToUpper(code) + " College",
		Code:       code,
		AdminEmail: email,
		Plan:       institution.PlanFree,
	})
	require.NoError(t, err)
	return inst, admin
}

func TestService_Create(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	inst, admin := app.create(t, "abc", "principal.office@abc.in")
	assert.NotEmpty(t, inst.ID)
	assert.True(t, inst.IsActive)
	assert.Equal(t, 499, inst.MonthlyPrice)
	assert.True(t, inst.SubscriptionEnd.IsZero())

	assert.Equal(t, "principal_office", admin.Username)
	assert.Equal(t, "ABC College Admin", admin.Name)
	assert.True(t, admin.IsCollegeAdmin())

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "institution_admin", msg.TemplateName)
	assert.Equal(t, "principal.office@abc.in", msg.To[0].Address)
	assert.Equal(t, "principal_office", msg.TemplateData.(map[string]string)["Username"])
	assert.Len(t, msg.TemplateData.(map[string]string)["Password"], 10)

	m, got, err := app.svc.AdminMembership(bg, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, institution.MemberCollegeAdmin, m.Role)
	assert.Equal(t, inst.ID, got.ID)

	t.Run("duplicate code", func(t *testing.T) {
		_, _, err := app.svc.Create(bg, institution.NewInstitution{Name: "Other", Code: "abc", AdminEmail: "x@abc.in"})
		require.Error(t, err)
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, "err = %v", err)
		assert.Equal(t, institution.ErrCodeExists, verr.Err)
	})

	t.Run("username taken", func(t *testing.T) {
		_, admin := app.create(t, "abc2", "principal.office@other.in")
		assert.Equal(t, "principal_office_1", admin.Username)
	})

	t.Run("existing user becomes admin", func(t *testing.T) {
		usr := testutil.CreateUser(t, app.userRepo, "Dean", "dean", "dean@xyz.in", "pass", []string{user.RoleStudent}, true)
		_, admin := app.create(t, "xyz", "dean@xyz.in")
		assert.Equal(t, usr.ID, admin.ID)
		assert.Equal(t, "dean", admin.Username)
		assert.ElementsMatch(t, []string{user.RoleStudent, user.RoleCollegeAdmin}, admin.Roles)

		// the existing password is kept and none is mailed
		got, err := app.users.GetByID(bg, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, got.CheckPassword("pass"))
		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "dean@xyz.in", msg.To[0].Address)
		assert.Empty(t, msg.TemplateData.(map[string]string)["Password"])
		assert.Contains(t, msg.TextContent, "your account dean was made its admin")
		assert.NotContains(t, msg.TextContent, "Password:")
	})

	insts, err := app.svc.List(bg)
	require.NoError(t, err)
	assert.Len(t, insts, 3)
}

func TestService_AdminMembership_notAdmin(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.userRepo)

	_, _, err := app.svc.AdminMembership(bg, usr.ID)
	assert.Equal(t, institution.ErrNotAdmin, err)
	_, err = app.svc.GenerateInvite(bg, usr.ID)
	assert.Equal(t, institution.ErrNotAdmin, err)
}

func TestService_Join(t *testing.T) {
	app := setup(t)
	inst, admin := app.create(t, "joinme", "admin@joinme.in")

	_, err := app.svc.Join(bg, "anyone", "", institution.JoinRequest{})
	assert.Equal(t, institution.ErrInvalidInvite, err)
	_, err = app.svc.Join(bg, "anyone", "nope", institution.JoinRequest{})
	assert.Equal(t, institution.ErrInvalidInvite, err)

	inst, err = app.svc.GenerateInvite(bg, admin.ID)
	require.NoError(t, err)
	require.Len(t, inst.InviteToken, 32)

	limit := 1
	_, err = app.svc.UpdatePlan(bg, inst.ID, institution.UpdatePlan{Plan: institution.PlanPro, StudentLimit: &limit})
	require.NoError(t, err)

	s1 := testutil.CreateStudent(t, app.userRepo)
	m, err := app.svc.Join(bg, s1.ID, inst.InviteToken, institution.JoinRequest{Branch: "CSE", Batch: "2026"})
	require.NoError(t, err)
	assert.Equal(t, institution.MemberStudent, m.Role)
	assert.Equal(t, inst.ID, m.InstitutionID)

	s2 := testutil.CreateStudent(t, app.userRepo)
	_, err = app.svc.Join(bg, s2.ID, inst.InviteToken, institution.JoinRequest{})
	assert.Equal(t, institution.ErrStudentLimitReached, err)

	// members can rejoin to move batch
	m, err = app.svc.Join(bg, s1.ID, inst.InviteToken, institution.JoinRequest{Branch: "CSE", Batch: "2027"})
	require.NoError(t, err)
	assert.Equal(t, "2027", m.Batch)

	members, err := app.svc.Members(bg, institution.MemberFilter{InstitutionID: inst.ID, Role: institution.MemberStudent})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "2027", members[0].Batch)

	_, err = app.svc.Deactivate(bg, inst.ID)
	require.NoError(t, err)
	_, err = app.svc.Join(bg, s1.ID, inst.InviteToken, institution.JoinRequest{})
	assert.Equal(t, institution.ErrSubscriptionExpired, err)
}

func TestService_billing(t *testing.T) {
	app := setup(t)
	inst, _ := app.create(t, "payco", "admin@payco.in")

	_, err := app.svc.CreateOrder(bg, "missing")
	assert.Equal(t, institution.ErrNotFound, err)

	order, err := app.svc.CreateOrder(bg, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 49900, order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, institution.PlanPro, order.Plan)
	assert.Equal(t, institution.BillingCreated, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderID, "order_"))
	assert.Len(t, order.OrderID, len("order_")+14)

	_, err = app.svc.ConfirmPayment(bg, inst.ID, institution.ConfirmPayment{OrderID: "order_missing"})
	assert.Equal(t, institution.ErrOrderNotFound, err)

	// another institution cannot confirm the order
	other, _ := app.create(t, "otherco", "admin@otherco.in")
	_, err = app.svc.ConfirmPayment(bg, other.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	assert.Equal(t, institution.ErrOrderNotFound, err)
	got, err := app.svc.Get(bg, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, institution.PlanFree, got.Plan)
	assert.True(t, got.SubscriptionEnd.IsZero())

	paid, err := app.svc.ConfirmPayment(bg, inst.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	require.NoError(t, err)
	assert.Equal(t, institution.PlanPro, paid.Plan)
	assert.True(t, paid.IsActive)
	assert.Equal(t, core.Today().AddDate(0, 0, 30), paid.SubscriptionEnd)

	_, err = app.svc.ConfirmPayment(bg, inst.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	assert.Equal(t, institution.ErrOrderAlreadyConfirmed, err)

	// renewing early extends from the current end
	order, err = app.svc.CreateOrder(bg, inst.ID)
	require.NoError(t, err)
	paid, err = app.svc.ConfirmPayment(bg, inst.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	require.NoError(t, err)
	assert.Equal(t, institution.PlanPro, paid.Plan)
	assert.Equal(t, core.Today().AddDate(0, 0, 60), paid.SubscriptionEnd)
}

func TestService_ExpireSubscriptions(t *testing.T) {
	app := setup(t)
	paying, _ := app.create(t, "paying", "admin@paying.in")
	free, _ := app.create(t, "freebie", "admin@freebie.in")

	order, err := app.svc.CreateOrder(bg, paying.ID)
	require.NoError(t, err)
	_, err = app.svc.ConfirmPayment(bg, paying.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	require.NoError(t, err)

	expired, err := app.svc.ExpireSubscriptions(bg)
	require.NoError(t, err)
	assert.Empty(t, expired)

	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)
	later := time.Now().AddDate(0, 0, 31)
	core.NowFunc = func() time.Time { return later }

	expired, err = app.svc.ExpireSubscriptions(bg)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, paying.ID, expired[0].ID)
	assert.False(t, expired[0].IsActive)

	got, err := app.svc.Get(bg, free.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	// already inactive institutions are skipped
	expired, err = app.svc.ExpireSubscriptions(bg)
	require.NoError(t, err)
	assert.Empty(t, expired)
}
