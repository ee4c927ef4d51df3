package interview

import (
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	appfs "github.com/NaveenRoman/AI-TUTor/fs"
)

// Session statuses
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	sessionQuestions   = 5
	transcriptLength   = 20
	questionBankPath   = "assets/interview/questions.yaml"
	clarityMinWords    = 60
	confidenceMinWords = 40
)

var keywordRegex = regexp.MustCompile(`(?i)\b(java|jvm|class|object|method|memory|runtime|inheritance|polymorphism)\b`)

// Session is the weekly mock interview of a user.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	WeekStart        time.Time `json:"week_start"`
	Difficulty       string    `json:"difficulty"`
	TotalQuestions   int       `json:"total_questions"`
	AverageScore     float64   `json:"average_score"`
	AvgAnswerLength  float64   `json:"avg_answer_length"`
	AvgTimeTaken     float64   `json:"avg_time_taken"`
	PerformanceSlope float64   `json:"performance_slope"`
	ConsistencyScore float64   `json:"consistency_score"`
	ConfidenceTrend  float64   `json:"confidence_trend"`
	RiskFlag         bool      `json:"risk_flag"`
	Completed        bool      `json:"completed"`
	CreatedAt        time.Time `json:"created_at"`
}

type Response struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	QuestionText       string    `json:"question_text"`
	AnswerText         string    `json:"answer_text"`
	TechnicalScore     float64   `json:"technical_score"`
	ClarityScore       float64   `json:"clarity_score"`
	CommunicationScore float64   `json:"communication_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	TotalScore         float64   `json:"total_score"`
	AnswerLength       int       `json:"answer_length"`
	TimeTakenSeconds   int       `json:"time_taken_seconds"`
	CreatedAt          time.Time `json:"created_at"`
}

// Score is the rule based evaluation of an answer. Every score is out of 10.
type Score struct {
	Technical     float64 `json:"technical"`
	Clarity       float64 `json:"clarity"`
	Communication float64 `json:"communication"`
	Confidence    float64 `json:"confidence"`
	Total         float64 `json:"total"`
	Words         int     `json:"words"`
}

func ScoreAnswer(answer string) Score {
	words := len(strings.Fields(answer))

	hits := make(map[string]bool)
	for _, kw := range keywordRegex.FindAllString(answer, -1) {
		hits[strings.ToLower(kw)] = true
	}
	s := Score{
		Technical:     core.Clamp(float64(3+len(hits)), 0, 10),
		Clarity:       5,
		Communication: 5,
		Confidence:    5,
		Words:         words,
	}
	if words > clarityMinWords {
		s.Clarity = 8
	}
	if strings.Contains(answer, ".") {
		s.Communication = 7
	}
	if words > confidenceMinWords {
		s.Confidence = 7
	}
	s.Total = core.Round((s.Technical+s.Clarity+s.Communication+s.Confidence)/4, 1)
	return s
}

func Feedback(total float64) string {
	switch {
	case total >= 8:
		return "Excellent answer. Strong fundamentals."
	case total >= 6:
		return "Good answer. Add more structured explanation."
	default:
		return "Basic understanding. Revise core concepts."
	}
}

type NewAnswer struct {
	Question         string `json:"question" validate:"required"`
	Answer           string `json:"answer" validate:"required"`
	TimeTakenSeconds int    `json:"time_taken" validate:"gte=0"`
}

func (na *NewAnswer) Validate(validate *validator.Validate) error {
	na.Question = core.CleanString(na.Question)
	na.Answer = core.CleanString(na.Answer)
	return validate.Struct(na)
}

type AnswerResult struct {
	Response Response `json:"response"`
	Feedback string   `json:"feedback"`
	Session  Session  `json:"session"`
}

type Status struct {
	Status            string `json:"status"`
	QuestionsAnswered int    `json:"questions_answered"`
	Difficulty        string `json:"difficulty,omitempty"`
}

// QuestionBank holds the interview questions by difficulty.
type QuestionBank map[string][]string

func LoadQuestionBank(r io.Reader) (QuestionBank, error) {
	var qb QuestionBank
	if err := yaml.NewDecoder(r).Decode(&qb); err != nil {
		return nil, errors.Wrap(err, "decoding question bank")
	}
	for _, d := range []string{skill.DifficultyEasy, skill.DifficultyMedium, skill.DifficultyHard} {
		if len(qb[d]) == 0 {
			return nil, errors.Errorf("question bank has no %s questions", d)
		}
	}
	return qb, nil
}

// DefaultQuestionBank loads the bundled question bank.
func DefaultQuestionBank() (QuestionBank, error) {
	f, err := appfs.FS.Open(questionBankPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening question bank")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()
	return LoadQuestionBank(f)
}

// Next returns the first question of the difficulty that was not asked yet, starting over when
// all of them were asked.
func (qb QuestionBank) Next(difficulty string, asked []string) string {
	questions := qb[difficulty]
	if len(questions) == 0 {
		questions = qb[skill.DifficultyMedium]
	}
	if len(questions) == 0 {
		return ""
	}
	done := make(map[string]bool, len(asked))
	for _, q := range asked {
		done[q] = true
	}
	for _, q := range questions {
		if !done[q] {
			return q
		}
	}
	return questions[len(asked)%len(questions)]
}
