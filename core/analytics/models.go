package analytics

import (
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

// Readiness buckets
const (
	BucketLow    = "<40"
	BucketMedium = "40-70"
	BucketHigh   = ">=70"
)

// StudentRow is a student of an institution with their skill profile.
type StudentRow struct {
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Branch   string        `json:"branch"`
	Batch    string        `json:"batch"`
	Profile  skill.Profile `json:"profile"`
}

type StudentSummary struct {
	Username  string  `json:"username"`
	Name      string  `json:"name"`
	Readiness float64 `json:"readiness"`
	RiskLevel string  `json:"risk_level"`
}

func summarize(r StudentRow) StudentSummary {
	return StudentSummary{
		Username:  r.Username,
		Name:      r.Name,
		Readiness: r.Profile.ReadinessScore,
		RiskLevel: r.Profile.RiskLevel,
	}
}

type TopicCluster struct {
	Topic    string `json:"topic"`
	Students int    `json:"students"`
}

type WeekScore struct {
	WeekStart time.Time `json:"week_start"`
	Label     string    `json:"label"`
	AvgScore  float64   `json:"avg_score"`
}

type DayScore struct {
	Date         time.Time `json:"date"`
	AvgReadiness float64   `json:"avg_readiness"`
}

type Buckets struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

func (b *Buckets) Add(readiness float64) {
	switch {
	case readiness < 40:
		b.Low++
	case readiness < 70:
		b.Medium++
	default:
		b.High++
	}
}

// Labeled returns the buckets in display order.
func (b Buckets) Labeled() ([]string, []int) {
	return []string{BucketLow, BucketMedium, BucketHigh}, []int{b.Low, b.Medium, b.High}
}

type DashboardFilter struct {
	Branch string `query:"branch"`
	Batch  string `query:"batch"`
}

func (f DashboardFilter) IsEmpty() bool {
	return f.Branch == "" && f.Batch == ""
}

type Dashboard struct {
	Institution           institution.Institution     `json:"institution"`
	TotalStudents         int                         `json:"total_students"`
	AvgReadiness          float64                     `json:"avg_readiness"`
	Buckets               Buckets                     `json:"buckets"`
	TopStudents           []StudentSummary            `json:"top_students"`
	WeakTopicClusters     []TopicCluster              `json:"weak_topic_clusters,omitempty"`
	RiskLists             map[string][]StudentSummary `json:"risk_lists"`
	RiskStudents          []StudentSummary            `json:"risk_students"`
	InterviewGrowth       []WeekScore                 `json:"interview_growth"`
	ReadinessTrend        []DayScore                  `json:"readiness_trend"`
	PlacementDistribution map[string]int              `json:"placement_distribution,omitempty"`
	Outlook               string                      `json:"outlook"`
}

// PlacementReport is the content of the downloadable placement report of an institution.
type PlacementReport struct {
	Institution  institution.Institution
	GeneratedAt  time.Time
	AvgReadiness float64
	Buckets      Buckets
	TopStudents  []StudentSummary
	Clusters     []TopicCluster
	Outlook      string
}

type StudentsExport struct {
	Institution  institution.Institution
	GeneratedAt  time.Time
	AvgReadiness float64
	Buckets      Buckets
	Students     []StudentRow
}

type CollegeStats struct {
	InstitutionID string  `json:"institution_id"`
	Name          string  `json:"name"`
	Plan          string  `json:"plan"`
	IsActive      bool    `json:"is_active"`
	MonthlyPrice  int     `json:"monthly_price"`
	Students      int     `json:"students"`
	AvgReadiness  float64 `json:"avg_readiness"`
}

type Platform struct {
	TotalColleges    int            `json:"total_colleges"`
	TotalStudents    int            `json:"total_students"`
	AvgReadiness     float64        `json:"avg_readiness"`
	Revenue          int            `json:"revenue"`
	QuizzesLast30    int            `json:"quizzes_last_30_days"`
	InterviewsLast30 int            `json:"interviews_last_30_days"`
	Colleges         []CollegeStats `json:"colleges"`
}

type DayFlag struct {
	Date     time.Time `json:"date"`
	Attended bool      `json:"attended"`
}

type StudentDashboard struct {
	Profile         user.Profile        `json:"profile"`
	Skill           skill.Profile       `json:"skill"`
	AvgScore        float64             `json:"avg_score"`
	StrongTopics    []quiz.TopicStat    `json:"strong_topics"`
	WeakTopics      []quiz.TopicStat    `json:"weak_topics"`
	DailyScores     []quiz.DailyAttempt `json:"daily_scores"`
	Streak          int                 `json:"streak"`
	StreakChart     []DayFlag           `json:"streak_chart"`
	TodayScore      *float64            `json:"today_score"`
	ReadinessGrowth float64             `json:"readiness_growth"`
}
