package boiledrepos

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/boil"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

// skill profile columns of a user, defaulted for users without a profile yet
const profileSelect = `
	u.id AS user_id,
	COALESCE(sp.technical_score, 0) AS technical_score,
	COALESCE(sp.accuracy_score, 0) AS accuracy_score,
	COALESCE(sp.communication_score, 0) AS communication_score,
	COALESCE(sp.consistency_score, 0) AS consistency_score,
	COALESCE(sp.confidence_score, 0) AS confidence_score,
	COALESCE(sp.readiness_score, 0) AS readiness_score,
	COALESCE(sp.behavior_score, 0) AS behavior_score,
	COALESCE(sp.risk_level, 'low') AS risk_level,
	COALESCE(sp.next_difficulty, '') AS next_difficulty,
	sp.updated_at`

type studentRow struct {
	UserID             string      `boil:"user_id"`
	Username           null.String `boil:"username"`
	Name               string      `boil:"name"`
	Email              null.String `boil:"email"`
	Branch             string      `boil:"branch"`
	Batch              string      `boil:"batch"`
	TechnicalScore     float64     `boil:"technical_score"`
	AccuracyScore      float64     `boil:"accuracy_score"`
	CommunicationScore float64     `boil:"communication_score"`
	ConsistencyScore   float64     `boil:"consistency_score"`
	ConfidenceScore    float64     `boil:"confidence_score"`
	ReadinessScore     float64     `boil:"readiness_score"`
	BehaviorScore      float64     `boil:"behavior_score"`
	RiskLevel          string      `boil:"risk_level"`
	NextDifficulty     string      `boil:"next_difficulty"`
	UpdatedAt          null.Time   `boil:"updated_at"`
}

func (r studentRow) unboil() analytics.StudentRow {
	return analytics.StudentRow{
		UserID:   r.UserID,
		Username: r.Username.String,
		Name:     r.Name,
		Email:    r.Email.String,
		Branch:   r.Branch,
		Batch:    r.Batch,
		Profile: skill.Profile{
			UserID:             r.UserID,
			TechnicalScore:     r.TechnicalScore,
			AccuracyScore:      r.AccuracyScore,
			CommunicationScore: r.CommunicationScore,
			ConsistencyScore:   r.ConsistencyScore,
			ConfidenceScore:    r.ConfidenceScore,
			ReadinessScore:     r.ReadinessScore,
			BehaviorScore:      r.BehaviorScore,
			RiskLevel:          r.RiskLevel,
			NextDifficulty:     r.NextDifficulty,
			UpdatedAt:          r.UpdatedAt.Time.UTC(),
		},
	}
}

type analyticsRepository struct {
	exec boil.ContextExecutor
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

// NewAnalyticsRepository returns the postgres analytics repository. Its aggregates run in SQL.
func NewAnalyticsRepository(exec boil.ContextExecutor) analytics.Repository {
	return &analyticsRepository{exec: exec}
}

func (repo *analyticsRepository) InstitutionStudents(ctx context.Context, institutionID string, filter analytics.DashboardFilter) ([]analytics.StudentRow, error) {
	var rows []studentRow
	err := queries.Raw(`
		SELECT u.username, u.name, u.email, m.branch, m.batch,`+profileSelect+`
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN skill_profiles sp ON sp.user_id = u.id
		WHERE m.institution_id::text = $1 AND m.role = $2
			AND ($3 = '' OR m.branch = $3) AND ($4 = '' OR m.batch = $4)
		ORDER BY COALESCE(sp.readiness_score, 0) DESC, m.joined_at`,
		institutionID, institution.MemberStudent, filter.Branch, filter.Batch,
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying institution students")
	}

	students := make([]analytics.StudentRow, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unboil())
	}
	return students, nil
}

func (repo *analyticsRepository) WeakTopicClusters(ctx context.Context, userIDs []string, threshold float64, limit int) ([]analytics.TopicCluster, error) {
	var rows []struct {
		Topic    string `boil:"topic"`
		Students int    `boil:"students"`
	}
	err := queries.Raw(`
		SELECT topic, COUNT(DISTINCT user_id) AS students
		FROM topic_stats
		WHERE user_id::text = ANY($1) AND mastery_score < $2
		GROUP BY topic
		ORDER BY students DESC, topic
		LIMIT NULLIF($3, 0)`,
		pq.Array(userIDs), threshold, limit,
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying weak topic clusters")
	}

	clusters := make([]analytics.TopicCluster, 0, len(rows))
	for _, r := range rows {
		clusters = append(clusters, analytics.TopicCluster{Topic: r.Topic, Students: r.Students})
	}
	return clusters, nil
}

func (repo *analyticsRepository) FlaggedStudents(ctx context.Context, userIDs []string) ([]string, error) {
	var rows []struct {
		UserID string `boil:"user_id"`
	}
	err := queries.Raw(`
		SELECT user_id FROM (
			SELECT DISTINCT ON (user_id) user_id, risk_flag
			FROM interview_sessions
			WHERE user_id::text = ANY($1)
			ORDER BY user_id, week_start DESC
		) latest
		WHERE risk_flag`,
		pq.Array(userIDs),
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying flagged students")
	}

	flagged := make(map[string]bool, len(rows))
	for _, r := range rows {
		flagged[r.UserID] = true
	}
	// keep the caller's order
	users := make([]string, 0, len(rows))
	for _, id := range userIDs {
		if flagged[id] {
			users = append(users, id)
		}
	}
	return users, nil
}

func (repo *analyticsRepository) InterviewGrowth(ctx context.Context, userIDs []string, since time.Time) ([]analytics.WeekScore, error) {
	var rows []struct {
		WeekStart time.Time `boil:"week_start"`
		AvgScore  float64   `boil:"avg_score"`
	}
	err := queries.Raw(`
		SELECT week_start, AVG(average_score) AS avg_score
		FROM interview_sessions
		WHERE user_id::text = ANY($1) AND total_questions > 0 AND week_start >= $2
		GROUP BY week_start
		ORDER BY week_start`,
		pq.Array(userIDs), core.TruncateDay(since),
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying interview growth")
	}

	weeks := make([]analytics.WeekScore, 0, len(rows))
	for _, r := range rows {
		week := core.TruncateDay(r.WeekStart)
		weeks = append(weeks, analytics.WeekScore{WeekStart: week, Label: week.Format("Jan 02"), AvgScore: core.Round(r.AvgScore, 2)})
	}
	return weeks, nil
}

func (repo *analyticsRepository) ReadinessTrend(ctx context.Context, userIDs []string, since time.Time) ([]analytics.DayScore, error) {
	var rows []struct {
		Day          time.Time `boil:"day"`
		AvgReadiness float64   `boil:"avg_readiness"`
	}
	err := queries.Raw(`
		SELECT day, AVG(readiness_score) AS avg_readiness
		FROM readiness_history
		WHERE user_id::text = ANY($1) AND day >= $2
		GROUP BY day
		ORDER BY day`,
		pq.Array(userIDs), core.TruncateDay(since),
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying readiness trend")
	}

	days := make([]analytics.DayScore, 0, len(rows))
	for _, r := range rows {
		days = append(days, analytics.DayScore{Date: core.TruncateDay(r.Day), AvgReadiness: core.Round(r.AvgReadiness, 2)})
	}
	return days, nil
}

func (repo *analyticsRepository) CollegeStats(ctx context.Context) ([]analytics.CollegeStats, error) {
	var rows []struct {
		InstitutionID string  `boil:"institution_id"`
		Name          string  `boil:"name"`
		Plan          string  `boil:"plan"`
		IsActive      bool    `boil:"is_active"`
		MonthlyPrice  int     `boil:"monthly_price"`
		Students      int     `boil:"students"`
		AvgReadiness  float64 `boil:"avg_readiness"`
	}
	err := queries.Raw(`
		SELECT i.id AS institution_id, i.name, i.plan, i.is_active, i.monthly_price,
			COUNT(m.user_id) AS students,
			COALESCE(AVG(COALESCE(sp.readiness_score, 0)) FILTER (WHERE m.user_id IS NOT NULL), 0) AS avg_readiness
		FROM institutions i
		LEFT JOIN memberships m ON m.institution_id = i.id AND m.role = $1
		LEFT JOIN skill_profiles sp ON sp.user_id = m.user_id
		GROUP BY i.id
		ORDER BY i.name`,
		institution.MemberStudent,
	).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying college stats")
	}

	stats := make([]analytics.CollegeStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, analytics.CollegeStats{
			InstitutionID: r.InstitutionID,
			Name:          r.Name,
			Plan:          r.Plan,
			IsActive:      r.IsActive,
			MonthlyPrice:  r.MonthlyPrice,
			Students:      r.Students,
			AvgReadiness:  core.Round(r.AvgReadiness, 2),
		})
	}
	return stats, nil
}

func (repo *analyticsRepository) PlatformTotals(ctx context.Context) (int, float64, error) {
	var totals struct {
		Profiles     int     `boil:"profiles"`
		AvgReadiness float64 `boil:"avg_readiness"`
	}
	err := queries.Raw(
		"SELECT COUNT(*) AS profiles, COALESCE(AVG(readiness_score), 0) AS avg_readiness FROM skill_profiles",
	).Bind(ctx, repo.exec, &totals)
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying platform totals")
	}
	return totals.Profiles, core.Round(totals.AvgReadiness, 2), nil
}
