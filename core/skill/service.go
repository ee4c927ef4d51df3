package skill

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// predictionSessions is the number of completed interview sessions averaged by the placement prediction.
const predictionSessions = 3

var ErrNotFound = errors.New("skill profile not found")

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound)
}

type (
	// ScoreSource provides the quiz results a Profile is computed from.
	ScoreSource interface {
		MasteryScores(ctx context.Context, userID string) ([]float64, error)
		// AttemptScores returns the quiz attempt scores, most recent first.
		AttemptScores(ctx context.Context, userID string) ([]float64, error)
	}

	// SessionSource provides the interview results used for difficulty and placement prediction.
	SessionSource interface {
		// RecentSessionAverages returns the average answer score (0-10) of the n latest completed
		// sessions, most recent first.
		RecentSessionAverages(ctx context.Context, userID string, n int) ([]float64, error)
	}

	Repository interface {
		GetProfile(ctx context.Context, userID string) (Profile, error)
		SaveProfile(ctx context.Context, p Profile) (Profile, error)
		// QueryProfiles returns the matching profiles ordered by readiness, highest first.
		QueryProfiles(ctx context.Context, filter *ProfileFilter) ([]Profile, error)
		// InsertHistory stores h unless the user already has a row for h.Date.
		InsertHistory(ctx context.Context, h ReadinessHistory) (bool, error)
		QueryHistory(ctx context.Context, userID string, since time.Time) ([]ReadinessHistory, error)
	}

	Service interface {
		Profile(ctx context.Context, userID string) (Profile, error)
		Profiles(ctx context.Context, filter *ProfileFilter) ([]Profile, error)
		Recompute(ctx context.Context, userID string) (Profile, error)
		SetInterviewSignals(ctx context.Context, userID string, communication, confidence float64) (Profile, error)
		ApplyBehavior(ctx context.Context, userID string, b Behavior) (Profile, error)
		SetNextDifficulty(ctx context.Context, userID, difficulty string) (Profile, error)
		History(ctx context.Context, userID string, days int) ([]ReadinessHistory, error)
		Predict(ctx context.Context, p Profile) (Prediction, error)
		HiringProbability(ctx context.Context, p Profile) (float64, error)
	}

	service struct {
		repo      Repository
		scores    ScoreSource
		sessions  SessionSource
		predictor *Predictor
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, scores ScoreSource, sessions SessionSource, predictor *Predictor, logger core.Logger) Service {
	if predictor == nil {
		predictor = NewPredictor(nil)
	}
	return &service{
		repo:      repo,
		scores:    scores,
		sessions:  sessions,
		predictor: predictor,
		logger:    logger,
	}
}

// Profile returns the user's skill Profile, or a zero one when nothing was recorded yet.
func (svc *service) Profile(ctx context.Context, userID string) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Profile{}, errors.Wrap(err, "getting skill profile")
	}
	return NewProfile(userID, core.Now()), nil
}

func (svc *service) Profiles(ctx context.Context, filter *ProfileFilter) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, filter)
}

func (svc *service) Recompute(ctx context.Context, userID string) (Profile, error) {
	p, err := svc.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return svc.recompute(ctx, p)
}

func (svc *service) recompute(ctx context.Context, p Profile) (Profile, error) {
	masteries, err := svc.scores.MasteryScores(ctx, p.UserID)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting mastery scores")
	}
	attempts, err := svc.scores.AttemptScores(ctx, p.UserID)
	if err != nil {
		return Profile{}, errors.Wrap(err, "getting attempt scores")
	}

	p = Compute(p, masteries, attempts, attempts)
	p.UpdatedAt = core.Now()
	if p, err = svc.repo.SaveProfile(ctx, p); err != nil {
		return Profile{}, errors.Wrap(err, "saving skill profile")
	}

	h := ReadinessHistory{UserID: p.UserID, Date: core.Today(), ReadinessScore: p.ReadinessScore}
	if _, err := svc.repo.InsertHistory(ctx, h); err != nil {
		return Profile{}, errors.Wrap(err, "inserting readiness history")
	}
	return p, nil
}

// SetInterviewSignals stores the interview derived scores (0-100) and recomputes the profile.
func (svc *service) SetInterviewSignals(ctx context.Context, userID string, communication, confidence float64) (Profile, error) {
	p, err := svc.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p.CommunicationScore = score(communication)
	p.ConfidenceScore = score(confidence)
	return svc.recompute(ctx, p)
}

func (svc *service) ApplyBehavior(ctx context.Context, userID string, b Behavior) (Profile, error) {
	return svc.mutate(ctx, userID, func(p *Profile) {
		p.BehaviorScore = b.BehaviorScore
		p.RiskLevel = RiskLevel(p.ReadinessScore, b.BehaviorScore, b.PerformanceSlope)
	})
}

func (svc *service) SetNextDifficulty(ctx context.Context, userID, difficulty string) (Profile, error) {
	return svc.mutate(ctx, userID, func(p *Profile) { p.NextDifficulty = difficulty })
}

func (svc *service) mutate(ctx context.Context, userID string, mutate func(p *Profile)) (Profile, error) {
	p, err := svc.Profile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	mutate(&p)
	p.UpdatedAt = core.Now()
	p, err = svc.repo.SaveProfile(ctx, p)
	return p, errors.Wrap(err, "saving skill profile")
}

// History returns the readiness history of the last `days` days, oldest first.
func (svc *service) History(ctx context.Context, userID string, days int) ([]ReadinessHistory, error) {
	if days <= 0 {
		days = 30
	}
	return svc.repo.QueryHistory(ctx, userID, core.Today().AddDate(0, 0, -days+1))
}

func (svc *service) avgInterview(ctx context.Context, userID string) (float64, error) {
	avgs, err := svc.sessions.RecentSessionAverages(ctx, userID, predictionSessions)
	if err != nil {
		return 0, errors.Wrap(err, "getting interview averages")
	}
	return core.Mean(avgs), nil
}

func (svc *service) Predict(ctx context.Context, p Profile) (Prediction, error) {
	avg, err := svc.avgInterview(ctx, p.UserID)
	if err != nil {
		return Prediction{}, err
	}
	return svc.predictor.Predict(p, avg), nil
}

func (svc *service) HiringProbability(ctx context.Context, p Profile) (float64, error) {
	avg, err := svc.avgInterview(ctx, p.UserID)
	if err != nil {
		return 0, err
	}
	return svc.predictor.HiringProbability(p, avg), nil
}
