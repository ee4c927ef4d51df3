package quiz

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// Quiz types
const (
	TypeFull   = "full"
	TypeAuto   = "auto"
	TypeDaily  = "daily"
	TypeWeekly = "weekly"
	TypeTopic  = "topic"
)

const (
	excellentTip = "Excellent work! Keep practicing."

	decayIdleDays = 14
	decayFactor   = 0.95

	dailyMCQTarget = 10
)

type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer"`
}

type Questions struct {
	MCQ     []Question `json:"mcq"`
	Fill    []Question `json:"fill"`
	Short   []Question `json:"short"`
	Long    []Question `json:"long"`
	Program []Question `json:"program"`
}

// NewQuestions returns Questions with empty, non-nil sections.
func NewQuestions() Questions {
	return Questions{
		MCQ:     []Question{},
		Fill:    []Question{},
		Short:   []Question{},
		Long:    []Question{},
		Program: []Question{},
	}
}

func (qs Questions) IsEmpty() bool {
	return len(qs.MCQ)+len(qs.Fill)+len(qs.Short)+len(qs.Long) == 0
}

// Answers holds the answers to the objective sections, index-aligned with the questions.
type Answers struct {
	MCQ  []string `json:"mcq"`
	Fill []string `json:"fill"`
}

type Quiz struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Chapter   string    `json:"chapter"`
	Type      string    `json:"type"`
	Questions Questions `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

type Instance struct {
	ID         string    `json:"id"`
	QuizID     string    `json:"quiz_id"`
	StudentID  string    `json:"student_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ClientInfo string    `json:"client_info"`
}

type Mistake struct {
	Type     string `json:"type"`
	Question string `json:"question"`
	Expected string `json:"expected"`
	Given    string `json:"given"`
}

type Attempt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	QuizID          string    `json:"quiz_id"`
	InstanceID      string    `json:"instance_id"`
	StartedAt       time.Time `json:"started_at"`
	SubmittedAt     time.Time `json:"submitted_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Answers         Answers   `json:"answers"`
	Score           float64   `json:"score"`
	CorrectCount    int       `json:"correct_count"`
	TotalQuestions  int       `json:"total_questions"`
	Mistakes        []Mistake `json:"mistakes"`
	AITip           string    `json:"ai_tip"`
}

// TopicStat tracks the mastery of a topic (chapter or section heading) of a subject by a user.
type TopicStat struct {
	UserID           string    `json:"user_id"`
	Subject          string    `json:"subject"`
	Topic            string    `json:"topic"`
	Attempts         int       `json:"attempts"`
	Correct          int       `json:"correct"`
	MasteryScore     float64   `json:"mastery_score"`
	LastMasteryScore float64   `json:"last_mastery_score"`
	ImprovementRate  float64   `json:"improvement_rate"`
	LastImprovedAt   time.Time `json:"last_improved_at"`
	LastAttempted    time.Time `json:"last_attempted"`
}

// Record folds a graded attempt into the stat. Mastery is the share of correct answers over all
// attempts, decayed by 5% when the topic was left idle for more than 14 days.
func (ts *TopicStat) Record(correct, total int, now time.Time) {
	previous := ts.MasteryScore
	ts.Attempts++
	ts.Correct += correct

	var mastery float64
	if total > 0 {
		mastery = float64(ts.Correct) / float64(ts.Attempts*total) * 100
	}
	improvement := mastery - previous
	ts.ImprovementRate = core.Round(improvement, 2)
	ts.LastMasteryScore = previous
	if improvement > 0 {
		ts.LastImprovedAt = now
	}
	if ts.isIdle(now) {
		mastery *= decayFactor
	}
	ts.MasteryScore = core.Round(core.Clamp(mastery, 0, 100), 2)
	ts.LastAttempted = now
}

func (ts *TopicStat) isIdle(now time.Time) bool {
	return !ts.LastAttempted.IsZero() && int(now.Sub(ts.LastAttempted).Hours()/24) > decayIdleDays
}

// Decay applies the idle decay without recording an attempt. It reports whether the stat changed.
func (ts *TopicStat) Decay(now time.Time) bool {
	if !ts.isIdle(now) || ts.MasteryScore == 0 {
		return false
	}
	ts.MasteryScore = core.Round(ts.MasteryScore*decayFactor, 2)
	return true
}

type DailyQuiz struct {
	Date      time.Time `json:"date"`
	Subject   string    `json:"subject"`
	Questions Questions `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

type DailyAttempt struct {
	UserID           string    `json:"user_id"`
	Date             time.Time `json:"date"`
	Score            float64   `json:"score"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectAnswers   int       `json:"correct_answers"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

type WeeklyQuiz struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	WeekStart   time.Time `json:"week_start"`
	Questions   Questions `json:"questions"`
	Score       *float64  `json:"score"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProctorLog struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id"`
	StudentID  string    `json:"student_id"`
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
}

// BankQuestion is a curated multiple choice question used to top up generated daily quizzes.
type BankQuestion struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Question      string    `json:"question"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectOption string    `json:"correct_option"`
	Difficulty    string    `json:"difficulty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (bq BankQuestion) ToQuestion() Question {
	options := []string{bq.OptionA, bq.OptionB, bq.OptionC, bq.OptionD}
	var answer string
	switch strings.ToUpper(bq.CorrectOption) {
	case "A":
		answer = bq.OptionA
	case "B":
		answer = bq.OptionB
	case "C":
		answer = bq.OptionC
	case "D":
		answer = bq.OptionD
	}
	return Question{Question: bq.Question, Options: options, Answer: answer}
}

// Result is the outcome of grading the objective sections of a quiz.
type Result struct {
	Correct  int       `json:"correct"`
	Total    int       `json:"total"`
	Percent  float64   `json:"score"`
	Mistakes []Mistake `json:"wrong"`
}

// Grade compares answers with the mcq (and optionally fill) questions, ignoring case and
// surrounding whitespace. Missing answers count as wrong.
func Grade(qs Questions, ans Answers, withFill bool) Result {
	res := Result{Mistakes: []Mistake{}}
	grade := func(kind string, questions []Question, given []string) {
		for i, q := range questions {
			res.Total++
			var g string
			if i < len(given) {
				g = given[i]
			}
			if strings.EqualFold(strings.TrimSpace(g), strings.TrimSpace(q.Answer)) {
				res.Correct++
				continue
			}
			res.Mistakes = append(res.Mistakes, Mistake{Type: kind, Question: q.Question, Expected: q.Answer, Given: g})
		}
	}
	grade("mcq", qs.MCQ, ans.MCQ)
	if withFill {
		grade("fill", qs.Fill, ans.Fill)
	}
	if res.Total > 0 {
		res.Percent = core.Round(float64(res.Correct)/float64(res.Total)*100, 2)
	}
	return res
}

// AITip suggests what to revise for the topics that had wrong answers.
func AITip(wrongTopics []string) string {
	seen := make(map[string]bool, len(wrongTopics))
	var tips []string
	for _, t := range wrongTopics {
		if seen[t] {
			continue
		}
		seen[t] = true
		tips = append(tips, "Revise core concepts of "+t)
	}
	if len(tips) == 0 {
		return excellentTip
	}
	return strings.Join(tips, " | ")
}

// Streak counts the consecutive days with a daily attempt, ending today, or yesterday when today
// has not been attempted yet.
func Streak(dates []time.Time, today time.Time) int {
	attempted := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		attempted[core.TruncateDay(d)] = true
	}
	day := core.TruncateDay(today)
	if !attempted[day] {
		day = day.AddDate(0, 0, -1)
	}
	var streak int
	for attempted[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Submission is a student's answer sheet for a Quiz. InstanceID is set when the quiz was started
// (and proctored) through an Instance.
type Submission struct {
	QuizID        string   `json:"quiz_id" validate:"required"`
	InstanceID    string   `json:"instance_id"`
	Answers       Answers  `json:"answers"`
	ProctorEvents []string `json:"proctor_events" validate:"max=100"`
}

type DailySubmission struct {
	Date             time.Time `json:"date"` // today when zero
	Answers          Answers   `json:"answers"`
	TimeTakenSeconds int       `json:"time_taken" validate:"gte=0"`
}

type DailyResult struct {
	Attempt DailyAttempt `json:"attempt"`
	Result  Result       `json:"result"`
	Streak  int          `json:"streak"`
}

type NewBankQuestion struct {
	Subject       string `json:"subject" validate:"required"`
	Question      string `json:"question" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c" validate:"required"`
	OptionD       string `json:"option_d" validate:"required"`
	CorrectOption string `json:"correct_option" validate:"required,oneof=A B C D"`
	Difficulty    string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

func (nbq *NewBankQuestion) Validate(validate *validator.Validate) error {
	nbq.Subject = core.CleanString(nbq.Subject, true /* lower */)
	nbq.CorrectOption = strings.ToUpper(core.CleanString(nbq.CorrectOption))
	nbq.Difficulty = core.CleanString(nbq.Difficulty, true /* lower */)
	if nbq.Difficulty == "" {
		nbq.Difficulty = "medium"
	}
	return validate.Struct(nbq)
}
