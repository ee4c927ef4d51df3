package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

type InterviewRepository struct {
	db *DB
}

var (
	_ interview.Repository = (*InterviewRepository)(nil)
	_ skill.SessionSource  = (*InterviewRepository)(nil)
)

// NewInterviewRepository returns the interview repository. It also serves as the skill.SessionSource.
func NewInterviewRepository(db *DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

func (repo *InterviewRepository) GetSession(_ context.Context, userID string, weekStart time.Time) (interview.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sessions[key(userID, dayKey(weekStart))]; ok {
		return s, nil
	}
	return interview.Session{}, interview.ErrNotFound
}

func (repo *InterviewRepository) SaveSession(_ context.Context, s interview.Session) (interview.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.sessions[key(s.UserID, dayKey(s.WeekStart))] = s
	return s, nil
}

func (repo *InterviewRepository) CreateResponse(_ context.Context, r interview.Response) (interview.Response, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.responses = append(repo.db.responses, r)
	return r, nil
}

func (repo *InterviewRepository) QueryResponses(_ context.Context, sessionID string) ([]interview.Response, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	responses := make([]interview.Response, 0)
	for _, r := range repo.db.responses {
		if r.SessionID == sessionID {
			responses = append(responses, r)
		}
	}
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].CreatedAt.Before(responses[j].CreatedAt) })
	return responses, nil
}

func (repo *InterviewRepository) QueryUserResponses(_ context.Context, userID string, limit int) ([]interview.Response, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessionIDs := make(map[string]bool)
	for _, s := range repo.db.sessions {
		if s.UserID == userID {
			sessionIDs[s.ID] = true
		}
	}
	responses := make([]interview.Response, 0)
	for i := len(repo.db.responses) - 1; i >= 0; i-- {
		if r := repo.db.responses[i]; sessionIDs[r.SessionID] {
			responses = append(responses, r)
		}
	}
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].CreatedAt.After(responses[j].CreatedAt) })
	if limit > 0 && len(responses) > limit {
		responses = responses[:limit]
	}
	return responses, nil
}

func (repo *InterviewRepository) completedSessions(userIDs map[string]bool) []interview.Session {
	sessions := make([]interview.Session, 0)
	for _, s := range repo.db.sessions {
		if s.Completed && userIDs[s.UserID] {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].WeekStart.After(sessions[j].WeekStart) })
	return sessions
}

func (repo *InterviewRepository) RecentSessionAverages(_ context.Context, userID string, n int) ([]float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := repo.completedSessions(map[string]bool{userID: true})
	if n > 0 && len(sessions) > n {
		sessions = sessions[:n]
	}
	averages := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		averages = append(averages, s.AverageScore)
	}
	return averages, nil
}
