package interview

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

// number of completed sessions the next difficulty is adapted from
const adaptiveSessions = 3

var (
	// errors
	ErrNotFound         = errors.New("interview session not found")
	ErrAlreadyCompleted = errors.New("Weekly interview already completed.")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound)
	core.RegisterErrorStatus(http.StatusConflict, ErrAlreadyCompleted)
}

type (
	Repository interface {
		GetSession(ctx context.Context, userID string, weekStart time.Time) (Session, error)
		SaveSession(ctx context.Context, s Session) (Session, error)
		CreateResponse(ctx context.Context, r Response) (Response, error)
		// QueryResponses returns the responses of a session in chronological order.
		QueryResponses(ctx context.Context, sessionID string) ([]Response, error)
		// QueryUserResponses returns the latest responses of a user across sessions, most recent first.
		QueryUserResponses(ctx context.Context, userID string, limit int) ([]Response, error)
		RecentSessionAverages(ctx context.Context, userID string, n int) ([]float64, error)
	}

	Service interface {
		// WeeklySession returns the session of the current week, creating it on first access.
		WeeklySession(ctx context.Context, userID string) (Session, error)
		Status(ctx context.Context, userID string) (Status, error)
		NextQuestion(ctx context.Context, userID string) (string, error)
		Answer(ctx context.Context, usr user.User, na NewAnswer) (AnswerResult, error)
		Transcript(ctx context.Context, userID string) ([]Response, error)
	}

	service struct {
		repo        Repository
		bank        QuestionBank
		skillSvc    skill.Service
		activitySvc activity.Service
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, bank QuestionBank, skillSvc skill.Service, activitySvc activity.Service, logger core.Logger) Service {
	return &service{
		repo:        repo,
		bank:        bank,
		skillSvc:    skillSvc,
		activitySvc: activitySvc,
		logger:      logger,
	}
}

func (svc *service) currentSession(ctx context.Context, userID string) (Session, error) {
	s, err := svc.repo.GetSession(ctx, userID, core.WeekStart(core.Now()))
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Session{}, errors.Wrap(err, "getting interview session")
	}
	return s, err
}

func (svc *service) WeeklySession(ctx context.Context, userID string) (Session, error) {
	s, err := svc.currentSession(ctx, userID)
	switch {
	case err == nil && s.Completed:
		return Session{}, ErrAlreadyCompleted
	case err == nil:
		return s, nil
	case errors.Cause(err) != ErrNotFound:
		return Session{}, err
	}

	avgs, err := svc.repo.RecentSessionAverages(ctx, userID, adaptiveSessions)
	if err != nil {
		return Session{}, errors.Wrap(err, "getting session averages")
	}
	now := core.Now()
	s, err = svc.repo.SaveSession(ctx, Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		WeekStart:  core.WeekStart(now),
		Difficulty: skill.AdaptiveDifficulty(skill.DifficultyMedium, avgs),
		CreatedAt:  now,
	})
	return s, errors.Wrap(err, "creating interview session")
}

func (svc *service) Status(ctx context.Context, userID string) (Status, error) {
	s, err := svc.currentSession(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Status{Status: StatusNotStarted}, nil
		}
		return Status{}, err
	}
	st := Status{Status: StatusInProgress, QuestionsAnswered: s.TotalQuestions, Difficulty: s.Difficulty}
	if s.Completed {
		st.Status = StatusCompleted
	}
	return st, nil
}

func (svc *service) NextQuestion(ctx context.Context, userID string) (string, error) {
	s, err := svc.WeeklySession(ctx, userID)
	if err != nil {
		return "", err
	}
	responses, err := svc.repo.QueryResponses(ctx, s.ID)
	if err != nil {
		return "", errors.Wrap(err, "querying responses")
	}
	asked := make([]string, 0, len(responses))
	for _, r := range responses {
		asked = append(asked, r.QuestionText)
	}
	return svc.bank.Next(s.Difficulty, asked), nil
}

// Answer scores an answer of the weekly session, refreshes the session aggregates and behavior
// analysis and feeds the interview signals into the skill profile. The session completes with its
// fifth answer.
func (svc *service) Answer(ctx context.Context, usr user.User, na NewAnswer) (AnswerResult, error) {
	s, err := svc.WeeklySession(ctx, usr.ID)
	if err != nil {
		return AnswerResult{}, err
	}

	score := ScoreAnswer(na.Answer)
	r, err := svc.repo.CreateResponse(ctx, Response{
		ID:                 uuid.NewString(),
		SessionID:          s.ID,
		QuestionText:       na.Question,
		AnswerText:         na.Answer,
		TechnicalScore:     score.Technical,
		ClarityScore:       score.Clarity,
		CommunicationScore: score.Communication,
		ConfidenceScore:    score.Confidence,
		TotalScore:         score.Total,
		AnswerLength:       score.Words,
		TimeTakenSeconds:   na.TimeTakenSeconds,
		CreatedAt:          core.Now(),
	})
	if err != nil {
		return AnswerResult{}, errors.Wrap(err, "creating response")
	}

	responses, err := svc.repo.QueryResponses(ctx, s.ID)
	if err != nil {
		return AnswerResult{}, errors.Wrap(err, "querying responses")
	}
	behavior, analyzed := aggregate(&s, responses)
	s.Completed = s.TotalQuestions >= sessionQuestions
	if s, err = svc.repo.SaveSession(ctx, s); err != nil {
		return AnswerResult{}, errors.Wrap(err, "saving interview session")
	}

	if _, err := svc.skillSvc.SetInterviewSignals(ctx, usr.ID, score.Communication*10, score.Confidence*10); err != nil {
		return AnswerResult{}, errors.Wrap(err, "setting interview signals")
	}
	if analyzed {
		if _, err := svc.skillSvc.ApplyBehavior(ctx, usr.ID, behavior); err != nil {
			return AnswerResult{}, errors.Wrap(err, "applying behavior")
		}
	}
	if s.Completed {
		if err := svc.adaptDifficulty(ctx, usr.ID); err != nil {
			svc.logger.Error("adapting interview difficulty", err, usr)
		}
	}
	if err := svc.activitySvc.Log(ctx, usr.ID, activity.ActionInterview); err != nil {
		svc.logger.Error("logging interview usage", err, usr)
	}
	return AnswerResult{Response: r, Feedback: Feedback(score.Total), Session: s}, nil
}

func (svc *service) adaptDifficulty(ctx context.Context, userID string) error {
	avgs, err := svc.repo.RecentSessionAverages(ctx, userID, adaptiveSessions)
	if err != nil {
		return errors.Wrap(err, "getting session averages")
	}
	_, err = svc.skillSvc.SetNextDifficulty(ctx, userID, skill.AdaptiveDifficulty(skill.DifficultyMedium, avgs))
	return err
}

// aggregate refreshes the averages and behavior fields of s from its chronological responses.
func aggregate(s *Session, responses []Response) (skill.Behavior, bool) {
	n := len(responses)
	s.TotalQuestions = n
	if n == 0 {
		return skill.Behavior{}, false
	}
	samples := make([]skill.Sample, 0, n)
	var totals, lengths, times float64
	for _, r := range responses {
		totals += r.TotalScore
		lengths += float64(r.AnswerLength)
		times += float64(r.TimeTakenSeconds)
		samples = append(samples, skill.Sample{
			TotalScore:       r.TotalScore,
			ConfidenceScore:  r.ConfidenceScore,
			TimeTakenSeconds: float64(r.TimeTakenSeconds),
		})
	}
	s.AverageScore = core.Round(totals/float64(n), 2)
	s.AvgAnswerLength = core.Round(lengths/float64(n), 2)
	s.AvgTimeTaken = core.Round(times/float64(n), 2)

	b, ok := skill.AnalyzeSession(samples)
	if ok {
		s.PerformanceSlope = b.PerformanceSlope
		s.ConsistencyScore = b.ConsistencyScore
		s.ConfidenceTrend = b.ConfidenceTrend
		s.RiskFlag = b.RiskFlag
	}
	return b, ok
}

func (svc *service) Transcript(ctx context.Context, userID string) ([]Response, error) {
	return svc.repo.QueryUserResponses(ctx, userID, transcriptLength)
}
