package analytics

import (
	"bytes"
	"context"
	"net/mail"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	topStudents      = 10
	weakMastery      = 40
	strongMastery    = 70
	clusterLimit     = 5
	topicLimit       = 5
	growthWeeks      = 8
	trendDays        = 30
	dashboardDays    = 7
	platformLookback = 30
)

type (
	Repository interface {
		// InstitutionStudents returns the student members of an institution, best prepared first.
		InstitutionStudents(ctx context.Context, institutionID string, filter DashboardFilter) ([]StudentRow, error)
		// WeakTopicClusters counts, per topic, the distinct users whose mastery is below threshold.
		WeakTopicClusters(ctx context.Context, userIDs []string, threshold float64, limit int) ([]TopicCluster, error)
		// FlaggedStudents returns the users whose latest interview session is risk flagged.
		FlaggedStudents(ctx context.Context, userIDs []string) ([]string, error)
		// InterviewGrowth averages the interview session scores per week since the given week start.
		InterviewGrowth(ctx context.Context, userIDs []string, since time.Time) ([]WeekScore, error)
		ReadinessTrend(ctx context.Context, userIDs []string, since time.Time) ([]DayScore, error)
		CollegeStats(ctx context.Context) ([]CollegeStats, error)
		// PlatformTotals returns the number of skill profiles and their average readiness.
		PlatformTotals(ctx context.Context) (int, float64, error)
	}

	// Renderer renders the downloadable reports.
	Renderer interface {
		PlacementPDF(r PlacementReport) ([]byte, error)
		StudentsXLSX(e StudentsExport) ([]byte, error)
	}

	Service interface {
		AdminDashboard(ctx context.Context, adminID string, filter DashboardFilter) (Dashboard, error)
		// PlacementReportPDF returns the report and its file name.
		PlacementReportPDF(ctx context.Context, adminID string) ([]byte, string, error)
		// EmailPlacementReport mails the placement report to the college admin as a PDF attachment.
		EmailPlacementReport(ctx context.Context, adminID string) error
		StudentsExport(ctx context.Context, adminID string) ([]byte, string, error)
		PlatformAnalytics(ctx context.Context) (Platform, error)
		StudentDashboard(ctx context.Context, userID string) (StudentDashboard, error)
	}

	service struct {
		repo        Repository
		instSvc     institution.Service
		skillSvc    skill.Service
		quizSvc     quiz.Service
		userSvc     user.Service
		activitySvc activity.Service
		mailSvc     core.EmailService
		renderer    Renderer
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	instSvc institution.Service,
	skillSvc skill.Service,
	quizSvc quiz.Service,
	userSvc user.Service,
	activitySvc activity.Service,
	mailSvc core.EmailService,
	renderer Renderer,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		instSvc:     instSvc,
		skillSvc:    skillSvc,
		quizSvc:     quizSvc,
		userSvc:     userSvc,
		activitySvc: activitySvc,
		mailSvc:     mailSvc,
		renderer:    renderer,
		logger:      logger,
	}
}

// adminInstitution returns the institution of a college admin, checking its subscription and plan.
func (svc *service) adminInstitution(ctx context.Context, adminID string, features ...string) (institution.Institution, error) {
	_, inst, err := svc.instSvc.AdminMembership(ctx, adminID)
	if err != nil {
		return institution.Institution{}, err
	}
	if !inst.HasActiveSubscription() {
		return institution.Institution{}, institution.ErrSubscriptionExpired
	}
	for _, f := range features {
		if !inst.IsFeatureAllowed(f) {
			return institution.Institution{}, core.ErrUpgradeRequired
		}
	}
	return inst, nil
}

func userIDs(rows []StudentRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids
}

func avgReadiness(rows []StudentRow) (float64, Buckets) {
	var b Buckets
	scores := make([]float64, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.Profile.ReadinessScore)
		b.Add(r.Profile.ReadinessScore)
	}
	return core.Round(core.Mean(scores), 2), b
}

func top(rows []StudentRow, n int) []StudentSummary {
	if len(rows) > n {
		rows = rows[:n]
	}
	tops := make([]StudentSummary, 0, len(rows))
	for _, r := range rows {
		tops = append(tops, summarize(r))
	}
	return tops
}

func (svc *service) AdminDashboard(ctx context.Context, adminID string, filter DashboardFilter) (Dashboard, error) {
	features := []string{institution.FeatureAdminDashboard}
	if !filter.IsEmpty() {
		features = append(features, institution.FeatureBatchFiltering)
	}
	inst, err := svc.adminInstitution(ctx, adminID, features...)
	if err != nil {
		return Dashboard{}, err
	}

	rows, err := svc.repo.InstitutionStudents(ctx, inst.ID, filter)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying students")
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Profile.ReadinessScore > rows[j].Profile.ReadinessScore })
	ids := userIDs(rows)

	d := Dashboard{
		Institution:   inst,
		TotalStudents: len(rows),
		TopStudents:   top(rows, topStudents),
		RiskLists:     map[string][]StudentSummary{},
	}
	d.AvgReadiness, d.Buckets = avgReadiness(rows)
	d.Outlook = skill.InstitutionOutlook(d.AvgReadiness)
	for _, lvl := range skill.RiskLevels {
		d.RiskLists[lvl] = []StudentSummary{}
	}
	for _, r := range rows {
		if _, ok := d.RiskLists[r.Profile.RiskLevel]; ok {
			d.RiskLists[r.Profile.RiskLevel] = append(d.RiskLists[r.Profile.RiskLevel], summarize(r))
		}
	}

	now := core.Now()
	g, gctx := errgroup.WithContext(ctx)
	if inst.IsFeatureAllowed(institution.FeatureWeakTopics) {
		g.Go(func() error {
			clusters, err := svc.repo.WeakTopicClusters(gctx, ids, weakMastery, clusterLimit)
			d.WeakTopicClusters = clusters
			return errors.Wrap(err, "querying weak topic clusters")
		})
	}
	g.Go(func() error {
		flagged, err := svc.repo.FlaggedStudents(gctx, ids)
		if err != nil {
			return errors.Wrap(err, "querying flagged students")
		}
		d.RiskStudents = riskStudents(rows, flagged)
		return nil
	})
	g.Go(func() error {
		since := core.WeekStart(now).AddDate(0, 0, -7*(growthWeeks-1))
		weeks, err := svc.repo.InterviewGrowth(gctx, ids, since)
		if err != nil {
			return errors.Wrap(err, "querying interview growth")
		}
		d.InterviewGrowth = fillWeeks(weeks, since, growthWeeks)
		return nil
	})
	g.Go(func() error {
		trend, err := svc.repo.ReadinessTrend(gctx, ids, core.TruncateDay(now).AddDate(0, 0, -trendDays+1))
		d.ReadinessTrend = trend
		return errors.Wrap(err, "querying readiness trend")
	})
	if inst.IsFeatureAllowed(institution.FeaturePlacementPrediction) {
		g.Go(func() error {
			dist, err := svc.placementDistribution(gctx, rows)
			d.PlacementDistribution = dist
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// riskStudents returns the flagged students, least prepared first.
func riskStudents(rows []StudentRow, flagged []string) []StudentSummary {
	isFlagged := make(map[string]bool, len(flagged))
	for _, id := range flagged {
		isFlagged[id] = true
	}
	risky := make([]StudentSummary, 0, len(flagged))
	for i := len(rows) - 1; i >= 0; i-- {
		if isFlagged[rows[i].UserID] {
			risky = append(risky, summarize(rows[i]))
		}
	}
	return risky
}

// fillWeeks returns n consecutive weeks from since, with a zero score for weeks without sessions.
func fillWeeks(weeks []WeekScore, since time.Time, n int) []WeekScore {
	byWeek := make(map[time.Time]float64, len(weeks))
	for _, w := range weeks {
		byWeek[core.TruncateDay(w.WeekStart)] = w.AvgScore
	}
	filled := make([]WeekScore, 0, n)
	for i := 0; i < n; i++ {
		week := since.AddDate(0, 0, 7*i)
		filled = append(filled, WeekScore{WeekStart: week, Label: week.Format("Jan 02"), AvgScore: core.Round(byWeek[week], 2)})
	}
	return filled
}

func (svc *service) placementDistribution(ctx context.Context, rows []StudentRow) (map[string]int, error) {
	dist := map[string]int{
		skill.CategoryTier1:            0,
		skill.CategoryService:          0,
		skill.CategoryNeedsImprovement: 0,
		skill.CategoryHighRisk:         0,
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, r := range rows {
		p := r.Profile
		g.Go(func() error {
			pred, err := svc.skillSvc.Predict(gctx, p)
			if err != nil {
				return errors.Wrap(err, "predicting placement")
			}
			mu.Lock()
			dist[pred.Category]++
			mu.Unlock()
			return nil
		})
	}
	return dist, g.Wait()
}

func (svc *service) PlacementReportPDF(ctx context.Context, adminID string) ([]byte, string, error) {
	pdf, r, err := svc.placementReport(ctx, adminID)
	if err != nil {
		return nil, "", err
	}
	return pdf, placementReportName(r.Institution), nil
}

func placementReportName(inst institution.Institution) string {
	return "placement_report_" + inst.Code + ".pdf"
}

func (svc *service) placementReport(ctx context.Context, adminID string) ([]byte, PlacementReport, error) {
	inst, err := svc.adminInstitution(ctx, adminID, institution.FeaturePDFExport)
	if err != nil {
		return nil, PlacementReport{}, err
	}
	rows, err := svc.repo.InstitutionStudents(ctx, inst.ID, DashboardFilter{})
	if err != nil {
		return nil, PlacementReport{}, errors.Wrap(err, "querying students")
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Profile.ReadinessScore > rows[j].Profile.ReadinessScore })
	clusters, err := svc.repo.WeakTopicClusters(ctx, userIDs(rows), weakMastery, clusterLimit)
	if err != nil {
		return nil, PlacementReport{}, errors.Wrap(err, "querying weak topic clusters")
	}

	r := PlacementReport{
		Institution: inst,
		GeneratedAt: core.Now(),
		TopStudents: top(rows, topStudents),
		Clusters:    clusters,
	}
	r.AvgReadiness, r.Buckets = avgReadiness(rows)
	r.Outlook = skill.InstitutionOutlook(r.AvgReadiness)
	pdf, err := svc.renderer.PlacementPDF(r)
	if err != nil {
		return nil, PlacementReport{}, errors.Wrap(err, "rendering placement report")
	}
	return pdf, r, nil
}

func (svc *service) EmailPlacementReport(ctx context.Context, adminID string) error {
	pdf, r, err := svc.placementReport(ctx, adminID)
	if err != nil {
		return err
	}
	admin, err := svc.userSvc.GetByID(ctx, adminID)
	if err != nil {
		return errors.Wrap(err, "getting admin user")
	}

	to := admin.MailAddress()
	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Placement report: " + r.Institution.Name,
		TemplateName: "placement_report",
		TemplateData: map[string]interface{}{
			"Name":         to.Name,
			"Institution":  r.Institution.Name,
			"AvgReadiness": r.AvgReadiness,
			"Outlook":      r.Outlook,
		},
	}
	if err := msg.Attach(bytes.NewReader(pdf), placementReportName(r.Institution), "application/pdf"); err != nil {
		return errors.Wrap(err, "attaching placement report")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *service) StudentsExport(ctx context.Context, adminID string) ([]byte, string, error) {
	inst, err := svc.adminInstitution(ctx, adminID, institution.FeaturePDFExport)
	if err != nil {
		return nil, "", err
	}
	rows, err := svc.repo.InstitutionStudents(ctx, inst.ID, DashboardFilter{})
	if err != nil {
		return nil, "", errors.Wrap(err, "querying students")
	}
	e := StudentsExport{Institution: inst, GeneratedAt: core.Now(), Students: rows}
	e.AvgReadiness, e.Buckets = avgReadiness(rows)
	xlsx, err := svc.renderer.StudentsXLSX(e)
	if err != nil {
		return nil, "", errors.Wrap(err, "rendering students export")
	}
	return xlsx, "students_" + inst.Code + ".xlsx", nil
}

func (svc *service) PlatformAnalytics(ctx context.Context) (Platform, error) {
	var p Platform
	since := core.Now().AddDate(0, 0, -platformLookback)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		colleges, err := svc.repo.CollegeStats(gctx)
		if err != nil {
			return errors.Wrap(err, "querying college stats")
		}
		p.Colleges = colleges
		p.TotalColleges = len(colleges)
		for _, c := range colleges {
			if c.IsActive {
				p.Revenue += c.MonthlyPrice
			}
		}
		return nil
	})
	g.Go(func() error {
		students, avg, err := svc.repo.PlatformTotals(gctx)
		p.TotalStudents, p.AvgReadiness = students, core.Round(avg, 2)
		return errors.Wrap(err, "querying platform totals")
	})
	g.Go(func() (err error) {
		p.QuizzesLast30, err = svc.activitySvc.CountSince(gctx, activity.ActionQuiz, since)
		return errors.Wrap(err, "counting quizzes")
	})
	g.Go(func() (err error) {
		p.InterviewsLast30, err = svc.activitySvc.CountSince(gctx, activity.ActionInterview, since)
		return errors.Wrap(err, "counting interviews")
	})
	if err := g.Wait(); err != nil {
		return Platform{}, err
	}
	return p, nil
}

func (svc *service) StudentDashboard(ctx context.Context, userID string) (StudentDashboard, error) {
	var (
		d        StudentDashboard
		stats    []quiz.TopicStat
		attempts []quiz.Attempt
		daily    []quiz.DailyAttempt
		history  []skill.ReadinessHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Profile, err = svc.userSvc.Profile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		d.Skill, err = svc.skillSvc.Profile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		stats, err = svc.quizSvc.TopicStats(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = svc.quizSvc.Attempts(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		daily, err = svc.quizSvc.DailyAttempts(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		history, err = svc.skillSvc.History(gctx, userID, 2*dashboardDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return StudentDashboard{}, errors.Wrap(err, "loading student dashboard")
	}

	scores := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		scores = append(scores, a.Score)
	}
	d.AvgScore = core.Round(core.Mean(scores), 2)
	d.StrongTopics, d.WeakTopics = splitTopics(stats)

	today := core.Today()
	weekAgo := today.AddDate(0, 0, -dashboardDays+1)
	dates := make([]time.Time, 0, len(daily))
	attended := make(map[time.Time]bool, len(daily))
	d.DailyScores = []quiz.DailyAttempt{}
	for _, a := range daily {
		day := core.TruncateDay(a.Date)
		dates = append(dates, day)
		attended[day] = true
		if !day.Before(weekAgo) {
			d.DailyScores = append(d.DailyScores, a)
		}
		if day.Equal(today) {
			score := a.Score
			d.TodayScore = &score
		}
	}
	d.Streak = quiz.Streak(dates, today)
	for i := 0; i < dashboardDays; i++ {
		day := weekAgo.AddDate(0, 0, i)
		d.StreakChart = append(d.StreakChart, DayFlag{Date: day, Attended: attended[day]})
	}
	d.ReadinessGrowth = readinessGrowth(history, weekAgo)
	return d, nil
}

// splitTopics returns the 5 best mastered topics (>= 70) and the 5 weakest (< 40).
func splitTopics(stats []quiz.TopicStat) ([]quiz.TopicStat, []quiz.TopicStat) {
	strong, weak := []quiz.TopicStat{}, []quiz.TopicStat{}
	for _, ts := range stats {
		switch {
		case ts.MasteryScore >= strongMastery:
			strong = append(strong, ts)
		case ts.MasteryScore < weakMastery:
			weak = append(weak, ts)
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].MasteryScore > strong[j].MasteryScore })
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].MasteryScore < weak[j].MasteryScore })
	if len(strong) > topicLimit {
		strong = strong[:topicLimit]
	}
	if len(weak) > topicLimit {
		weak = weak[:topicLimit]
	}
	return strong, weak
}

// readinessGrowth compares the mean readiness of the last 7 days with the 7 days before.
func readinessGrowth(history []skill.ReadinessHistory, weekAgo time.Time) float64 {
	var last, prev []float64
	for _, h := range history {
		if core.TruncateDay(h.Date).Before(weekAgo) {
			prev = append(prev, h.ReadinessScore)
		} else {
			last = append(last, h.ReadinessScore)
		}
	}
	if len(last) == 0 || len(prev) == 0 {
		return 0
	}
	return core.Round(core.Mean(last)-core.Mean(prev), 2)
}
