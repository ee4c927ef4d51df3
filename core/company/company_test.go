package company_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func TestLimits(t *testing.T) {
	assert.Equal(t, company.PlanLimits{MaxFilters: 5}, company.Limits(company.PlanFree))
	assert.Equal(t, company.PlanLimits{MaxFilters: 50, ViewTranscripts: true}, company.Limits(company.PlanPro))
	assert.Equal(t, 9999, company.Company{Plan: company.PlanEnterprise}.Limits().MaxFilters)
	assert.Equal(t, company.Limits(company.PlanFree), company.Limits("gold"))
}

func TestNewCompany_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	nc := company.NewCompany{Name: "  Acme  "}
	require.NoError(t, nc.Validate(validate))
	assert.Equal(t, "Acme", nc.Name)
	assert.Equal(t, company.PlanFree, nc.Plan)

	nc = company.NewCompany{Name: "Acme", Plan: "Gold"}
	assert.Error(t, nc.Validate(validate))

	nc = company.NewCompany{Name: " ", Plan: "PRO"}
	assert.Error(t, nc.Validate(validate))
	assert.Equal(t, company.PlanPro, nc.Plan)
}

type companyApp struct {
	svc   company.Service
	repos *database.Repositories
}

func setup(t *testing.T) *companyApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	repos := database.NewMemoryRepositories(inmemdb.Open())
	userSvc := user.NewService(repos.User, emailsvc.NewConsoleServiceMock(conf, logger), conf, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	bank, err := interview.DefaultQuestionBank()
	require.NoError(t, err)
	interviewSvc := interview.NewService(repos.Interview, bank, skillSvc, activity.NewService(repos.Activity), logger)
	return &companyApp{svc: company.NewService(repos.Company, userSvc, skillSvc, interviewSvc), repos: repos}
}

// candidate creates a student with the given skill profile.
func (app *companyApp) candidate(t *testing.T, p skill.Profile) user.User {
	usr := testutil.CreateStudent(t, app.repos.User)
	p.UserID = usr.ID
	_, err := app.repos.Skill.SaveProfile(bg, p)
	require.NoError(t, err)
	return usr
}

func TestService_Member(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)

	_, err := app.svc.Member(bg, usr.ID)
	assert.Equal(t, company.ErrNotCompanyUser, err)

	assert.Equal(t, company.ErrNotFound, app.svc.AddUser(bg, "missing", usr.ID))

	c, err := app.svc.Create(bg, company.NewCompany{Name: "Acme", Plan: company.PlanPro})
	require.NoError(t, err)
	require.NoError(t, app.svc.AddUser(bg, c.ID, usr.ID))

	got, err := app.svc.Member(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestService_FilterCandidates(t *testing.T) {
	app := setup(t)
	strong := app.candidate(t, skill.Profile{ReadinessScore: 90, ConsistencyScore: 80, BehaviorScore: 70, RiskLevel: skill.RiskLow})
	average := app.candidate(t, skill.Profile{ReadinessScore: 70, ConsistencyScore: 50, BehaviorScore: 40, RiskLevel: skill.RiskMedium})
	weak := app.candidate(t, skill.Profile{ReadinessScore: 50, RiskLevel: skill.RiskHigh})
	// profile left behind by a deleted account
	_, err := app.repos.Skill.SaveProfile(bg, skill.Profile{UserID: "ghost", ReadinessScore: 99})
	require.NoError(t, err)

	acme := company.Company{Name: "Acme", Plan: company.PlanFree}
	usernames := func(cands []company.Candidate) []string {
		names := make([]string, 0, len(cands))
		for _, c := range cands {
			names = append(names, c.Username)
		}
		return names
	}
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		filter company.CandidateFilter
		want   []string
	}{
		{name: "defaults", want: []string{strong.Username, average.Username}},
		{name: "min readiness", filter: company.CandidateFilter{MinReadiness: f(40)}, want: []string{strong.Username, average.Username, weak.Username}},
		{name: "risk", filter: company.CandidateFilter{MinReadiness: f(0), Risk: " HIGH "}, want: []string{weak.Username}},
		{name: "probability", filter: company.CandidateFilter{MinProbability: f(.5)}, want: []string{strong.Username}},
		{name: "nobody", filter: company.CandidateFilter{MinReadiness: f(100)}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands, err := app.svc.FilterCandidates(bg, acme, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, usernames(cands))
		})
	}

	cands, err := app.svc.FilterCandidates(bg, acme, company.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.InDelta(t, .68, cands[0].HiringProbability, 1e-9)
	assert.Equal(t, float64(68), cands[0].Prediction.ServiceProbability)
	assert.Equal(t, skill.CategoryService, cands[0].Prediction.Category)
	assert.Equal(t, strong.Name, cands[0].Name)
}

func TestService_FilterCandidates_planLimit(t *testing.T) {
	app := setup(t)
	for i := 0; i < 7; i++ {
		app.candidate(t, skill.Profile{ReadinessScore: float64(61 + i), RiskLevel: skill.RiskLow})
	}

	cands, err := app.svc.FilterCandidates(bg, company.Company{Plan: company.PlanFree}, company.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, cands, 5)
	assert.Equal(t, float64(67), cands[0].Profile.ReadinessScore)

	cands, err = app.svc.FilterCandidates(bg, company.Company{Plan: company.PlanPro}, company.CandidateFilter{})
	require.NoError(t, err)
	assert.Len(t, cands, 7)
}

func TestService_CandidateProfile(t *testing.T) {
	app := setup(t)
	usr := app.candidate(t, skill.Profile{ReadinessScore: 80, RiskLevel: skill.RiskLow})

	_, err := app.svc.CandidateProfile(bg, company.Company{Plan: company.PlanFree}, usr.Username)
	assert.Equal(t, core.ErrUpgradeRequired, err)

	pro := company.Company{Plan: company.PlanPro}
	_, err = app.svc.CandidateProfile(bg, pro, "nobody")
	assert.Equal(t, company.ErrCandidateAbsent, err)

	detail, err := app.svc.CandidateProfile(bg, pro, usr.Username)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, detail.UserID)
	assert.Equal(t, float64(80), detail.Profile.ReadinessScore)
	assert.Empty(t, detail.Transcript)
	assert.Equal(t, float64(40), detail.Prediction.ServiceProbability)
}
