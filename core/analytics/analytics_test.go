package analytics_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func TestBuckets(t *testing.T) {
	var b analytics.Buckets
	for _, r := range []float64{0, 39.99, 40, 69.99, 70, 100} {
		b.Add(r)
	}
	labels, counts := b.Labeled()
	assert.Equal(t, []string{"<40", "40-70", ">=70"}, labels)
	assert.Equal(t, []int{2, 2, 2}, counts)
}

type fakeRenderer struct {
	report analytics.PlacementReport
	export analytics.StudentsExport
}

func (r *fakeRenderer) PlacementPDF(report analytics.PlacementReport) ([]byte, error) {
	r.report = report
	return []byte("%PDF"), nil
}

func (r *fakeRenderer) StudentsXLSX(e analytics.StudentsExport) ([]byte, error) {
	r.export = e
	return []byte("PK"), nil
}

type analyticsApp struct {
	svc         analytics.Service
	instSvc     institution.Service
	activitySvc activity.Service
	renderer    *fakeRenderer
	repos       *database.Repositories

	inst     institution.Institution
	admin    user.User
	students []user.User // best prepared first
}

func setup(t *testing.T) *analyticsApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	core.ParseEmailTemplates(logger)

	repos := database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(repos.User, mailSvc, conf, logger)
	activitySvc := activity.NewService(repos.Activity)
	bookSvc := book.NewService(repos.Book, book.NewKnowledgeBase(), userSvc, activitySvc, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	quizSvc := quiz.NewService(repos.Quiz, bookSvc, userSvc, skillSvc, activitySvc, mailSvc, quiz.NewGenerator(rand.NewSource(1)), logger)
	instSvc := institution.NewService(repos.Institution, userSvc, mailSvc, conf, logger)
	renderer := &fakeRenderer{}

	app := &analyticsApp{
		svc:         analytics.NewService(repos.Analytics, instSvc, skillSvc, quizSvc, userSvc, activitySvc, mailSvc, renderer, logger),
		instSvc:     instSvc,
		activitySvc: activitySvc,
		renderer:    renderer,
		repos:       repos,
	}

	var err error
	app.inst, app.admin, err = instSvc.Create(bg, institution.NewInstitution{
		Name: "Tech College", Code: "tech", AdminEmail: "admin@tech.in", Plan: institution.PlanFree,
	})
	require.NoError(t, err)
	app.inst, err = instSvc.GenerateInvite(bg, app.admin.ID)
	require.NoError(t, err)

	for _, s := range []struct {
		branch    string
		readiness float64
		risk      string
	}{
		{"CSE", 80, skill.RiskLow},
		{"CSE", 55, skill.RiskMedium},
		{"ECE", 20, skill.RiskHigh},
	} {
		usr := testutil.CreateStudent(t, repos.User)
		_, err := instSvc.Join(bg, usr.ID, app.inst.InviteToken, institution.JoinRequest{Branch: s.branch, Batch: "2026"})
		require.NoError(t, err)
		_, err = repos.Skill.SaveProfile(bg, skill.Profile{UserID: usr.ID, ReadinessScore: s.readiness, RiskLevel: s.risk})
		require.NoError(t, err)
		app.students = append(app.students, usr)
	}
	return app
}

func (app *analyticsApp) setPlan(t *testing.T, plan string) {
	_, err := app.instSvc.UpdatePlan(bg, app.inst.ID, institution.UpdatePlan{Plan: plan})
	require.NoError(t, err)
}

func TestService_AdminDashboard(t *testing.T) {
	app := setup(t)
	weak := app.students[2]

	for _, ts := range []quiz.TopicStat{
		{UserID: app.students[1].ID, Subject: "java", Topic: "Loops", MasteryScore: 30},
		{UserID: weak.ID, Subject: "java", Topic: "Loops", MasteryScore: 10},
		{UserID: weak.ID, Subject: "java", Topic: "Arrays", MasteryScore: 20},
		{UserID: weak.ID, Subject: "java", Topic: "Classes", MasteryScore: 90},
	} {
		_, err := app.repos.Quiz.SaveTopicStat(bg, ts)
		require.NoError(t, err)
	}
	_, err := app.repos.Interview.SaveSession(bg, interview.Session{
		ID: "s1", UserID: weak.ID, WeekStart: core.WeekStart(core.Now()),
		TotalQuestions: 5, AverageScore: 4, RiskFlag: true, Completed: true,
	})
	require.NoError(t, err)

	t.Run("not an admin", func(t *testing.T) {
		_, err := app.svc.AdminDashboard(bg, weak.ID, analytics.DashboardFilter{})
		assert.Equal(t, institution.ErrNotAdmin, err)
	})

	t.Run("free plan", func(t *testing.T) {
		_, err := app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{})
		assert.Equal(t, core.ErrUpgradeRequired, err)
	})

	app.setPlan(t, institution.PlanPro)

	t.Run("pro plan", func(t *testing.T) {
		d, err := app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, d.TotalStudents)
		assert.Equal(t, 51.67, d.AvgReadiness)
		assert.Equal(t, analytics.Buckets{Low: 1, Medium: 1, High: 1}, d.Buckets)
		assert.Equal(t, "Moderate placement probability", d.Outlook)

		require.Len(t, d.TopStudents, 3)
		assert.Equal(t, app.students[0].Username, d.TopStudents[0].Username)
		assert.Equal(t, float64(80), d.TopStudents[0].Readiness)
		for i, lvl := range []string{skill.RiskLow, skill.RiskMedium, skill.RiskHigh} {
			require.Len(t, d.RiskLists[lvl], 1, lvl)
			assert.Equal(t, app.students[i].Username, d.RiskLists[lvl][0].Username)
		}

		assert.Equal(t, []analytics.TopicCluster{{Topic: "Loops", Students: 2}, {Topic: "Arrays", Students: 1}}, d.WeakTopicClusters)
		assert.Equal(t, []analytics.StudentSummary{{
			Username: weak.Username, Name: weak.Name, Readiness: 20, RiskLevel: skill.RiskHigh,
		}}, d.RiskStudents)

		require.Len(t, d.InterviewGrowth, 8)
		assert.Equal(t, core.WeekStart(core.Now()), d.InterviewGrowth[7].WeekStart)
		assert.Equal(t, float64(4), d.InterviewGrowth[7].AvgScore)
		assert.Zero(t, d.InterviewGrowth[0].AvgScore)

		assert.Nil(t, d.PlacementDistribution)
	})

	t.Run("batch filtering needs enterprise", func(t *testing.T) {
		_, err := app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{Branch: "CSE"})
		assert.Equal(t, core.ErrUpgradeRequired, err)
	})

	t.Run("enterprise plan", func(t *testing.T) {
		app.setPlan(t, institution.PlanEnterprise)
		d, err := app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{Branch: "CSE"})
		require.NoError(t, err)
		assert.Equal(t, 2, d.TotalStudents)
		assert.Empty(t, d.RiskStudents)

		d, err = app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{
			skill.CategoryTier1:            0,
			skill.CategoryService:          0,
			skill.CategoryNeedsImprovement: 2,
			skill.CategoryHighRisk:         1,
		}, d.PlacementDistribution)
	})

	t.Run("inactive institution", func(t *testing.T) {
		_, err := app.instSvc.Deactivate(bg, app.inst.ID)
		require.NoError(t, err)
		_, err = app.svc.AdminDashboard(bg, app.admin.ID, analytics.DashboardFilter{})
		assert.Equal(t, institution.ErrSubscriptionExpired, err)
	})
}

func TestService_reports(t *testing.T) {
	app := setup(t)

	_, _, err := app.svc.PlacementReportPDF(bg, app.admin.ID)
	assert.Equal(t, core.ErrUpgradeRequired, err)
	_, _, err = app.svc.StudentsExport(bg, app.admin.ID)
	assert.Equal(t, core.ErrUpgradeRequired, err)

	app.setPlan(t, institution.PlanPro)

	pdf, name, err := app.svc.PlacementReportPDF(bg, app.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), pdf)
	assert.Equal(t, "placement_report_tech.pdf", name)
	assert.Equal(t, "Tech College", app.renderer.report.Institution.Name)
	assert.Equal(t, 51.67, app.renderer.report.AvgReadiness)
	assert.Len(t, app.renderer.report.TopStudents, 3)
	assert.False(t, app.renderer.report.GeneratedAt.IsZero())

	xlsx, name, err := app.svc.StudentsExport(bg, app.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), xlsx)
	assert.Equal(t, "students_tech.xlsx", name)
	require.Len(t, app.renderer.export.Students, 3)
	assert.Equal(t, "CSE", app.renderer.export.Students[0].Branch)
	assert.Equal(t, analytics.Buckets{Low: 1, Medium: 1, High: 1}, app.renderer.export.Buckets)
}

func TestService_EmailPlacementReport(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	assert.Equal(t, core.ErrUpgradeRequired, app.svc.EmailPlacementReport(bg, app.admin.ID))
	assert.Empty(t, emailsvc.SentMessages)
	assert.Equal(t, institution.ErrNotAdmin, app.svc.EmailPlacementReport(bg, app.students[0].ID))

	app.setPlan(t, institution.PlanPro)
	require.NoError(t, app.svc.EmailPlacementReport(bg, app.admin.ID))

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "placement_report", msg.TemplateName)
	assert.Equal(t, "admin@tech.in", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Tech College")
	require.True(t, msg.HasAttachments())
	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, "placement_report_tech.pdf", at.Filename)
	assert.Equal(t, "application/pdf", at.ContentType)
	assert.Equal(t, "JVBERg==", at.Content.String())
}

func TestService_PlatformAnalytics(t *testing.T) {
	app := setup(t)
	for _, action := range []string{activity.ActionQuiz, activity.ActionQuiz, activity.ActionInterview, activity.ActionLogin} {
		require.NoError(t, app.activitySvc.Log(bg, app.students[0].ID, action))
	}

	p, err := app.svc.PlatformAnalytics(bg)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalColleges)
	assert.Equal(t, 3, p.TotalStudents)
	assert.Equal(t, 51.67, p.AvgReadiness)
	assert.Equal(t, 499, p.Revenue)
	assert.Equal(t, 2, p.QuizzesLast30)
	assert.Equal(t, 1, p.InterviewsLast30)
	require.Len(t, p.Colleges, 1)
	assert.Equal(t, 3, p.Colleges[0].Students)

	_, err = app.instSvc.Deactivate(bg, app.inst.ID)
	require.NoError(t, err)
	p, err = app.svc.PlatformAnalytics(bg)
	require.NoError(t, err)
	assert.Zero(t, p.Revenue)
}

func TestService_StudentDashboard(t *testing.T) {
	app := setup(t)
	usr := app.students[0]
	today := core.Today()

	for i, score := range []float64{50, 100} {
		_, err := app.repos.Quiz.CreateAttempt(bg, quiz.Attempt{ID: string(rune('a' + i)), UserID: usr.ID, Score: score})
		require.NoError(t, err)
	}
	for _, ts := range []quiz.TopicStat{
		{UserID: usr.ID, Subject: "java", Topic: "Loops", MasteryScore: 90},
		{UserID: usr.ID, Subject: "java", Topic: "Arrays", MasteryScore: 75},
		{UserID: usr.ID, Subject: "java", Topic: "Classes", MasteryScore: 55},
		{UserID: usr.ID, Subject: "java", Topic: "Streams", MasteryScore: 10},
	} {
		_, err := app.repos.Quiz.SaveTopicStat(bg, ts)
		require.NoError(t, err)
	}
	for _, da := range []quiz.DailyAttempt{
		{UserID: usr.ID, Date: today, Score: 80},
		{UserID: usr.ID, Date: today.AddDate(0, 0, -1), Score: 60},
		{UserID: usr.ID, Date: today.AddDate(0, 0, -10), Score: 40},
	} {
		_, err := app.repos.Quiz.CreateDailyAttempt(bg, da)
		require.NoError(t, err)
	}
	for _, h := range []skill.ReadinessHistory{
		{UserID: usr.ID, Date: today, ReadinessScore: 80},
		{UserID: usr.ID, Date: today.AddDate(0, 0, -8), ReadinessScore: 60},
	} {
		_, err := app.repos.Skill.InsertHistory(bg, h)
		require.NoError(t, err)
	}

	d, err := app.svc.StudentDashboard(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Profile.Level)
	assert.Equal(t, float64(80), d.Skill.ReadinessScore)
	assert.Equal(t, float64(75), d.AvgScore)

	require.Len(t, d.StrongTopics, 2)
	assert.Equal(t, "Loops", d.StrongTopics[0].Topic)
	assert.Equal(t, "Arrays", d.StrongTopics[1].Topic)
	require.Len(t, d.WeakTopics, 1)
	assert.Equal(t, "Streams", d.WeakTopics[0].Topic)

	assert.Len(t, d.DailyScores, 2)
	require.NotNil(t, d.TodayScore)
	assert.Equal(t, float64(80), *d.TodayScore)
	assert.Equal(t, 2, d.Streak)

	require.Len(t, d.StreakChart, 7)
	assert.Equal(t, today, d.StreakChart[6].Date)
	assert.True(t, d.StreakChart[6].Attended)
	assert.True(t, d.StreakChart[5].Attended)
	assert.False(t, d.StreakChart[0].Attended)
	assert.Equal(t, float64(20), d.ReadinessGrowth)

	t.Run("new student", func(t *testing.T) {
		d, err := app.svc.StudentDashboard(bg, app.students[1].ID)
		require.NoError(t, err)
		assert.Zero(t, d.Streak)
		assert.Nil(t, d.TodayScore)
		assert.Empty(t, d.DailyScores)
		assert.NotNil(t, d.StrongTopics)
		assert.Zero(t, d.ReadinessGrowth)
	})
}
