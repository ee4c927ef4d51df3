package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

var (
	sessionColumns = []string{
		"id", "user_id", "week_start", "difficulty", "total_questions", "average_score", "avg_answer_length",
		"avg_time_taken", "performance_slope", "consistency_score", "confidence_trend", "risk_flag", "completed", "created_at",
	}
	responseColumns = []string{
		"id", "session_id", "question_text", "answer_text", "technical_score", "clarity_score", "communication_score",
		"confidence_score", "total_score", "answer_length", "time_taken_seconds", "created_at",
	}
)

type sessionRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	WeekStart        time.Time `db:"week_start"`
	Difficulty       string    `db:"difficulty"`
	TotalQuestions   int       `db:"total_questions"`
	AverageScore     float64   `db:"average_score"`
	AvgAnswerLength  float64   `db:"avg_answer_length"`
	AvgTimeTaken     float64   `db:"avg_time_taken"`
	PerformanceSlope float64   `db:"performance_slope"`
	ConsistencyScore float64   `db:"consistency_score"`
	ConfidenceTrend  float64   `db:"confidence_trend"`
	RiskFlag         bool      `db:"risk_flag"`
	Completed        bool      `db:"completed"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r sessionRow) session() interview.Session {
	s := interview.Session(r)
	s.WeekStart = utcDate(s.WeekStart)
	s.CreatedAt = s.CreatedAt.UTC()
	return s
}

type responseRow struct {
	ID                 string    `db:"id"`
	SessionID          string    `db:"session_id"`
	QuestionText       string    `db:"question_text"`
	AnswerText         string    `db:"answer_text"`
	TechnicalScore     float64   `db:"technical_score"`
	ClarityScore       float64   `db:"clarity_score"`
	CommunicationScore float64   `db:"communication_score"`
	ConfidenceScore    float64   `db:"confidence_score"`
	TotalScore         float64   `db:"total_score"`
	AnswerLength       int       `db:"answer_length"`
	TimeTakenSeconds   int       `db:"time_taken_seconds"`
	CreatedAt          time.Time `db:"created_at"`
}

func responsesFromRows(rows []responseRow) []interview.Response {
	responses := make([]interview.Response, 0, len(rows))
	for _, r := range rows {
		resp := interview.Response(r)
		resp.CreatedAt = resp.CreatedAt.UTC()
		responses = append(responses, resp)
	}
	return responses
}

type InterviewRepository struct {
	db *sqlx.DB
}

var (
	_ interview.Repository = (*InterviewRepository)(nil)
	_ skill.SessionSource  = (*InterviewRepository)(nil)
)

// NewInterviewRepository returns the interview repository. It also serves as the skill.SessionSource.
func NewInterviewRepository(db *sqlx.DB) *InterviewRepository {
	return &InterviewRepository{db: db}
}

func (repo *InterviewRepository) GetSession(ctx context.Context, userID string, weekStart time.Time) (interview.Session, error) {
	if !isUUID(userID) {
		return interview.Session{}, interview.ErrNotFound
	}
	var r sessionRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("interview_sessions", "user_id", "week_start"), userID, utcDate(weekStart)); err != nil {
		return interview.Session{}, trapNoRowsErr(err, interview.ErrNotFound, "getting interview session")
	}
	return r.session(), nil
}

func (repo *InterviewRepository) SaveSession(ctx context.Context, s interview.Session) (interview.Session, error) {
	r := sessionRow(s)
	r.WeekStart = utcDate(r.WeekStart)
	r.CreatedAt = r.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("interview_sessions", sessionColumns, []string{"user_id", "week_start"}), r)
	return s, errors.Wrap(err, "saving interview session")
}

func (repo *InterviewRepository) CreateResponse(ctx context.Context, resp interview.Response) (interview.Response, error) {
	r := responseRow(resp)
	r.CreatedAt = r.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, insertQuery("interview_responses", responseColumns), r)
	return resp, errors.Wrap(err, "inserting interview response")
}

func (repo *InterviewRepository) QueryResponses(ctx context.Context, sessionID string) ([]interview.Response, error) {
	if !isUUID(sessionID) {
		return []interview.Response{}, nil
	}
	var rows []responseRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("interview_responses", "session_id")+" ORDER BY created_at", sessionID); err != nil {
		return nil, errors.Wrap(err, "querying interview responses")
	}
	return responsesFromRows(rows), nil
}

func (repo *InterviewRepository) QueryUserResponses(ctx context.Context, userID string, limit int) ([]interview.Response, error) {
	if !isUUID(userID) {
		return []interview.Response{}, nil
	}
	q := `SELECT r.* FROM interview_responses r
		JOIN interview_sessions s ON s.id = r.session_id
		WHERE s.user_id = $1
		ORDER BY r.created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	var rows []responseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying user interview responses")
	}
	return responsesFromRows(rows), nil
}

func (repo *InterviewRepository) RecentSessionAverages(ctx context.Context, userID string, n int) ([]float64, error) {
	if !isUUID(userID) {
		return []float64{}, nil
	}
	q := "SELECT average_score FROM interview_sessions WHERE user_id = $1 AND completed ORDER BY week_start DESC"
	args := []interface{}{userID}
	if n > 0 {
		q += " LIMIT $2"
		args = append(args, n)
	}
	averages := []float64{}
	if err := repo.db.SelectContext(ctx, &averages, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying session averages")
	}
	return averages, nil
}
