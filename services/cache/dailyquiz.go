package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
)

const (
	dailyQuizPrefix = keyPrefix + "daily:"
	dailyQuizTTL    = 26 * time.Hour
)

// cachedQuizRepository serves the quiz of the day from redis; everything else goes to the wrapped repository.
type cachedQuizRepository struct {
	quiz.Repository
	rdb    *redis.Client
	logger core.Logger
}

var _ quiz.Repository = (*cachedQuizRepository)(nil)

func NewCachedQuizRepository(repo quiz.Repository, rdb *redis.Client, logger core.Logger) quiz.Repository {
	return &cachedQuizRepository{Repository: repo, rdb: rdb, logger: logger}
}

func dailyQuizKey(date time.Time) string {
	return dailyQuizPrefix + core.TruncateDay(date).Format("2006-01-02")
}

func (repo *cachedQuizRepository) GetDailyQuiz(ctx context.Context, date time.Time) (quiz.DailyQuiz, error) {
	data, err := repo.rdb.Get(ctx, dailyQuizKey(date)).Bytes()
	if err == nil {
		var dq quiz.DailyQuiz
		if err = json.Unmarshal(data, &dq); err == nil {
			return dq, nil
		}
	}
	if err != redis.Nil {
		repo.logger.Warn("reading cached daily quiz", err)
	}

	dq, err := repo.Repository.GetDailyQuiz(ctx, date)
	if err != nil {
		return quiz.DailyQuiz{}, err
	}
	repo.store(ctx, dq)
	return dq, nil
}

func (repo *cachedQuizRepository) SaveDailyQuiz(ctx context.Context, dq quiz.DailyQuiz) (quiz.DailyQuiz, error) {
	dq, err := repo.Repository.SaveDailyQuiz(ctx, dq)
	if err != nil {
		return quiz.DailyQuiz{}, err
	}
	repo.store(ctx, dq)
	return dq, nil
}

func (repo *cachedQuizRepository) store(ctx context.Context, dq quiz.DailyQuiz) {
	data, err := json.Marshal(dq)
	if err != nil {
		repo.logger.Warn("encoding daily quiz", err)
		return
	}
	if err := repo.rdb.Set(ctx, dailyQuizKey(dq.Date), data, dailyQuizTTL).Err(); err != nil {
		repo.logger.Warn("caching daily quiz", err)
	}
}
