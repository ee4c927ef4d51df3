package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

type QuizRepository struct {
	db *DB
}

var (
	_ quiz.Repository   = (*QuizRepository)(nil)
	_ skill.ScoreSource = (*QuizRepository)(nil)
)

// NewQuizRepository returns the quiz repository. It also serves as the skill.ScoreSource.
func NewQuizRepository(db *DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (repo *QuizRepository) CreateQuiz(_ context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.quizzes[q.ID] = q
	repo.db.quizOrder = append(repo.db.quizOrder, q.ID)
	return q, nil
}

func (repo *QuizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if q, ok := repo.db.quizzes[id]; ok {
		return q, nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *QuizRepository) LatestQuiz(_ context.Context) (quiz.Quiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n := len(repo.db.quizOrder); n > 0 {
		return repo.db.quizzes[repo.db.quizOrder[n-1]], nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *QuizRepository) CreateInstance(_ context.Context, inst quiz.Instance) (quiz.Instance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.instances[inst.ID] = inst
	return inst, nil
}

func (repo *QuizRepository) GetInstance(_ context.Context, id string) (quiz.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inst, ok := repo.db.instances[id]; ok {
		return inst, nil
	}
	return quiz.Instance{}, quiz.ErrInstanceNotFound
}

func (repo *QuizRepository) UpdateInstance(_ context.Context, inst quiz.Instance) (quiz.Instance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.instances[inst.ID]; !ok {
		return quiz.Instance{}, quiz.ErrInstanceNotFound
	}
	repo.db.instances[inst.ID] = inst
	return inst, nil
}

func (repo *QuizRepository) CreateProctorLog(_ context.Context, l quiz.ProctorLog) (quiz.ProctorLog, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l.ID = int64(len(repo.db.proctorLogs) + 1)
	repo.db.proctorLogs = append(repo.db.proctorLogs, l)
	return l, nil
}

func (repo *QuizRepository) CreateAttempt(_ context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.attempts = append(repo.db.attempts, a)
	return a, nil
}

func (repo *QuizRepository) userAttempts(userID string) []quiz.Attempt {
	attempts := make([]quiz.Attempt, 0)
	for i := len(repo.db.attempts) - 1; i >= 0; i-- {
		if a := repo.db.attempts[i]; a.UserID == userID {
			attempts = append(attempts, a)
		}
	}
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].SubmittedAt.After(attempts[j].SubmittedAt) })
	return attempts
}

func (repo *QuizRepository) QueryAttempts(_ context.Context, userID string) ([]quiz.Attempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.userAttempts(userID), nil
}

func (repo *QuizRepository) GetTopicStat(_ context.Context, userID, subject, topic string) (quiz.TopicStat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ts, ok := repo.db.topicStats[key(userID, subject, topic)]; ok {
		return ts, nil
	}
	return quiz.TopicStat{}, quiz.ErrTopicNotFound
}

func (repo *QuizRepository) SaveTopicStat(_ context.Context, ts quiz.TopicStat) (quiz.TopicStat, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.topicStats[key(ts.UserID, ts.Subject, ts.Topic)] = ts
	return ts, nil
}

func (repo *QuizRepository) topicStats(userID string) []quiz.TopicStat {
	stats := make([]quiz.TopicStat, 0)
	for _, ts := range repo.db.topicStats {
		if userID == "" || ts.UserID == userID {
			stats = append(stats, ts)
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].UserID != stats[j].UserID {
			return stats[i].UserID < stats[j].UserID
		}
		return key(stats[i].Subject, stats[i].Topic) < key(stats[j].Subject, stats[j].Topic)
	})
	return stats
}

func (repo *QuizRepository) QueryTopicStats(_ context.Context, userID string) ([]quiz.TopicStat, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.topicStats(userID), nil
}

func (repo *QuizRepository) GetDailyQuiz(_ context.Context, date time.Time) (quiz.DailyQuiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if dq, ok := repo.db.dailyQuizzes[dayKey(date)]; ok {
		return dq, nil
	}
	return quiz.DailyQuiz{}, quiz.ErrNotFound
}

func (repo *QuizRepository) SaveDailyQuiz(_ context.Context, dq quiz.DailyQuiz) (quiz.DailyQuiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.dailyQuizzes[dayKey(dq.Date)] = dq
	return dq, nil
}

func (repo *QuizRepository) CreateDailyAttempt(_ context.Context, a quiz.DailyAttempt) (quiz.DailyAttempt, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	k := key(a.UserID, dayKey(a.Date))
	if _, ok := repo.db.dailyAttempts[k]; ok {
		return quiz.DailyAttempt{}, quiz.ErrAlreadyAttempted
	}
	repo.db.dailyAttempts[k] = a
	return a, nil
}

func (repo *QuizRepository) QueryDailyAttempts(_ context.Context, userID string) ([]quiz.DailyAttempt, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := make([]quiz.DailyAttempt, 0)
	for _, a := range repo.db.dailyAttempts {
		if a.UserID == userID {
			attempts = append(attempts, a)
		}
	}
	sort.Slice(attempts, func(i, j int) bool { return attempts[i].Date.After(attempts[j].Date) })
	return attempts, nil
}

func (repo *QuizRepository) GetWeeklyQuiz(_ context.Context, userID string, weekStart time.Time) (quiz.WeeklyQuiz, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if wq, ok := repo.db.weeklyQuizzes[key(userID, dayKey(weekStart))]; ok {
		return wq, nil
	}
	return quiz.WeeklyQuiz{}, quiz.ErrNotFound
}

func (repo *QuizRepository) SaveWeeklyQuiz(_ context.Context, wq quiz.WeeklyQuiz) (quiz.WeeklyQuiz, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.weeklyQuizzes[key(wq.UserID, dayKey(wq.WeekStart))] = wq
	return wq, nil
}

func (repo *QuizRepository) CreateBankQuestion(_ context.Context, bq quiz.BankQuestion) (quiz.BankQuestion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.bankQuestions = append(repo.db.bankQuestions, bq)
	return bq, nil
}

func (repo *QuizRepository) QueryBankQuestions(_ context.Context, subject string) ([]quiz.BankQuestion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	questions := make([]quiz.BankQuestion, 0)
	for _, bq := range repo.db.bankQuestions {
		if bq.Subject == subject {
			questions = append(questions, bq)
		}
	}
	return questions, nil
}

func (repo *QuizRepository) MasteryScores(_ context.Context, userID string) ([]float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stats := repo.topicStats(userID)
	scores := make([]float64, 0, len(stats))
	for _, ts := range stats {
		scores = append(scores, ts.MasteryScore)
	}
	return scores, nil
}

func (repo *QuizRepository) AttemptScores(_ context.Context, userID string) ([]float64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	attempts := repo.userAttempts(userID)
	scores := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		scores = append(scores, a.Score)
	}
	return scores, nil
}
