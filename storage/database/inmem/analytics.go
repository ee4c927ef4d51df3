package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

type analyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*analyticsRepository)(nil)

func NewAnalyticsRepository(db *DB) analytics.Repository {
	return &analyticsRepository{db: db}
}

func (repo *analyticsRepository) profile(userID string) skill.Profile {
	if p, ok := repo.db.skillProfiles[userID]; ok {
		return p
	}
	return skill.Profile{UserID: userID, RiskLevel: skill.RiskLow}
}

func (repo *analyticsRepository) InstitutionStudents(_ context.Context, institutionID string, filter analytics.DashboardFilter) ([]analytics.StudentRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mf := institution.MemberFilter{
		InstitutionID: institutionID,
		Role:          institution.MemberStudent,
		Branch:        filter.Branch,
		Batch:         filter.Batch,
	}
	rows := make([]analytics.StudentRow, 0)
	for _, m := range repo.db.memberships {
		if !mf.Match(m) {
			continue
		}
		usr, ok := repo.db.users[m.UserID]
		if !ok {
			continue
		}
		rows = append(rows, analytics.StudentRow{
			UserID:   usr.ID,
			Username: usr.Username,
			Name:     usr.Name,
			Email:    usr.Email,
			Branch:   m.Branch,
			Batch:    m.Batch,
			Profile:  repo.profile(usr.ID),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Profile.ReadinessScore > rows[j].Profile.ReadinessScore })
	return rows, nil
}

func (repo *analyticsRepository) WeakTopicClusters(_ context.Context, userIDs []string, threshold float64, limit int) ([]analytics.TopicCluster, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := inSet(userIDs)
	students := make(map[string]map[string]bool)
	for _, ts := range repo.db.topicStats {
		if !ids[ts.UserID] || ts.MasteryScore >= threshold {
			continue
		}
		if students[ts.Topic] == nil {
			students[ts.Topic] = make(map[string]bool)
		}
		students[ts.Topic][ts.UserID] = true
	}

	clusters := make([]analytics.TopicCluster, 0, len(students))
	for topic, users := range students {
		clusters = append(clusters, analytics.TopicCluster{Topic: topic, Students: len(users)})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Students != clusters[j].Students {
			return clusters[i].Students > clusters[j].Students
		}
		return clusters[i].Topic < clusters[j].Topic
	})
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	return clusters, nil
}

func (repo *analyticsRepository) FlaggedStudents(_ context.Context, userIDs []string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := inSet(userIDs)
	latest := make(map[string]time.Time)
	flagged := make(map[string]bool)
	for _, s := range repo.db.sessions {
		if !ids[s.UserID] || s.WeekStart.Before(latest[s.UserID]) {
			continue
		}
		latest[s.UserID] = s.WeekStart
		flagged[s.UserID] = s.RiskFlag
	}

	users := make([]string, 0)
	for _, id := range userIDs {
		if flagged[id] {
			users = append(users, id)
		}
	}
	return users, nil
}

func (repo *analyticsRepository) InterviewGrowth(_ context.Context, userIDs []string, since time.Time) ([]analytics.WeekScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := inSet(userIDs)
	scores := make(map[time.Time][]float64)
	for _, s := range repo.db.sessions {
		if !ids[s.UserID] || s.TotalQuestions == 0 || s.WeekStart.Before(since) {
			continue
		}
		week := core.TruncateDay(s.WeekStart)
		scores[week] = append(scores[week], s.AverageScore)
	}

	weeks := make([]analytics.WeekScore, 0, len(scores))
	for week, s := range scores {
		weeks = append(weeks, analytics.WeekScore{WeekStart: week, Label: week.Format("Jan 02"), AvgScore: core.Round(core.Mean(s), 2)})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].WeekStart.Before(weeks[j].WeekStart) })
	return weeks, nil
}

func (repo *analyticsRepository) ReadinessTrend(_ context.Context, userIDs []string, since time.Time) ([]analytics.DayScore, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := inSet(userIDs)
	scores := make(map[time.Time][]float64)
	for _, h := range repo.db.history {
		if !ids[h.UserID] || h.Date.Before(since) {
			continue
		}
		day := core.TruncateDay(h.Date)
		scores[day] = append(scores[day], h.ReadinessScore)
	}

	days := make([]analytics.DayScore, 0, len(scores))
	for day, s := range scores {
		days = append(days, analytics.DayScore{Date: day, AvgReadiness: core.Round(core.Mean(s), 2)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (repo *analyticsRepository) CollegeStats(_ context.Context) ([]analytics.CollegeStats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := make([]analytics.CollegeStats, 0, len(repo.db.institutions))
	for _, inst := range repo.db.institutions {
		var readiness []float64
		for _, m := range repo.db.memberships {
			if m.InstitutionID == inst.ID && m.Role == institution.MemberStudent {
				readiness = append(readiness, repo.profile(m.UserID).ReadinessScore)
			}
		}
		stats = append(stats, analytics.CollegeStats{
			InstitutionID: inst.ID,
			Name:          inst.Name,
			Plan:          inst.Plan,
			IsActive:      inst.IsActive,
			MonthlyPrice:  inst.MonthlyPrice,
			Students:      len(readiness),
			AvgReadiness:  core.Round(core.Mean(readiness), 2),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, nil
}

func (repo *analyticsRepository) PlatformTotals(_ context.Context) (int, float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	readiness := make([]float64, 0, len(repo.db.skillProfiles))
	for _, p := range repo.db.skillProfiles {
		readiness = append(readiness, p.ReadinessScore)
	}
	return len(readiness), core.Round(core.Mean(readiness), 2), nil
}
