package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
)

var (
	quizColumns         = []string{"id", "subject", "chapter", "quiz_type", "questions", "created_at"}
	instanceColumns     = []string{"id", "quiz_id", "student_id", "started_at", "finished_at", "client_info"}
	attemptColumns      = []string{"id", "user_id", "quiz_id", "instance_id", "started_at", "submitted_at", "duration_seconds", "answers", "score", "correct_count", "total_questions", "mistakes", "ai_tip"}
	topicStatColumns    = []string{"user_id", "subject", "topic", "attempts", "correct", "mastery_score", "last_mastery_score", "improvement_rate", "last_improved_at", "last_attempted"}
	dailyQuizColumns    = []string{"quiz_date", "subject", "questions", "created_at"}
	dailyAttemptColumns = []string{"user_id", "quiz_date", "score", "total_questions", "correct_answers", "time_taken_seconds", "created_at"}
	weeklyQuizColumns   = []string{"id", "user_id", "week_start", "questions", "score", "submitted_at", "created_at"}
	bankQuestionColumns = []string{"id", "subject", "question", "option_a", "option_b", "option_c", "option_d", "correct_option", "difficulty", "created_at"}
)

type quizRow struct {
	ID        string                `db:"id"`
	Subject   string                `db:"subject"`
	Chapter   string                `db:"chapter"`
	Type      string                `db:"quiz_type"`
	Questions jsonb[quiz.Questions] `db:"questions"`
	CreatedAt time.Time             `db:"created_at"`
}

func (r quizRow) quiz() quiz.Quiz {
	return quiz.Quiz{ID: r.ID, Subject: r.Subject, Chapter: r.Chapter, Type: r.Type, Questions: r.Questions.V, CreatedAt: r.CreatedAt.UTC()}
}

type instanceRow struct {
	ID         string    `db:"id"`
	QuizID     string    `db:"quiz_id"`
	StudentID  string    `db:"student_id"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt null.Time `db:"finished_at"`
	ClientInfo string    `db:"client_info"`
}

func newInstanceRow(inst quiz.Instance) instanceRow {
	return instanceRow{
		ID:         inst.ID,
		QuizID:     inst.QuizID,
		StudentID:  inst.StudentID,
		StartedAt:  inst.StartedAt.UTC(),
		FinishedAt: nullTime(inst.FinishedAt),
		ClientInfo: inst.ClientInfo,
	}
}

type attemptRow struct {
	ID              string                `db:"id"`
	UserID          string                `db:"user_id"`
	QuizID          string                `db:"quiz_id"`
	InstanceID      null.String           `db:"instance_id"`
	StartedAt       time.Time             `db:"started_at"`
	SubmittedAt     time.Time             `db:"submitted_at"`
	DurationSeconds int                   `db:"duration_seconds"`
	Answers         jsonb[quiz.Answers]   `db:"answers"`
	Score           float64               `db:"score"`
	CorrectCount    int                   `db:"correct_count"`
	TotalQuestions  int                   `db:"total_questions"`
	Mistakes        jsonb[[]quiz.Mistake] `db:"mistakes"`
	AITip           string                `db:"ai_tip"`
}

func (r attemptRow) attempt() quiz.Attempt {
	mistakes := r.Mistakes.V
	if mistakes == nil {
		mistakes = []quiz.Mistake{}
	}
	return quiz.Attempt{
		ID:              r.ID,
		UserID:          r.UserID,
		QuizID:          r.QuizID,
		InstanceID:      r.InstanceID.String,
		StartedAt:       r.StartedAt.UTC(),
		SubmittedAt:     r.SubmittedAt.UTC(),
		DurationSeconds: r.DurationSeconds,
		Answers:         r.Answers.V,
		Score:           r.Score,
		CorrectCount:    r.CorrectCount,
		TotalQuestions:  r.TotalQuestions,
		Mistakes:        mistakes,
		AITip:           r.AITip,
	}
}

type topicStatRow struct {
	UserID           string    `db:"user_id"`
	Subject          string    `db:"subject"`
	Topic            string    `db:"topic"`
	Attempts         int       `db:"attempts"`
	Correct          int       `db:"correct"`
	MasteryScore     float64   `db:"mastery_score"`
	LastMasteryScore float64   `db:"last_mastery_score"`
	ImprovementRate  float64   `db:"improvement_rate"`
	LastImprovedAt   null.Time `db:"last_improved_at"`
	LastAttempted    time.Time `db:"last_attempted"`
}

func (r topicStatRow) stat() quiz.TopicStat {
	return quiz.TopicStat{
		UserID:           r.UserID,
		Subject:          r.Subject,
		Topic:            r.Topic,
		Attempts:         r.Attempts,
		Correct:          r.Correct,
		MasteryScore:     r.MasteryScore,
		LastMasteryScore: r.LastMasteryScore,
		ImprovementRate:  r.ImprovementRate,
		LastImprovedAt:   r.LastImprovedAt.Time.UTC(),
		LastAttempted:    r.LastAttempted.UTC(),
	}
}

type dailyQuizRow struct {
	Date      time.Time             `db:"quiz_date"`
	Subject   string                `db:"subject"`
	Questions jsonb[quiz.Questions] `db:"questions"`
	CreatedAt time.Time             `db:"created_at"`
}

type dailyAttemptRow struct {
	UserID           string    `db:"user_id"`
	Date             time.Time `db:"quiz_date"`
	Score            float64   `db:"score"`
	TotalQuestions   int       `db:"total_questions"`
	CorrectAnswers   int       `db:"correct_answers"`
	TimeTakenSeconds int       `db:"time_taken_seconds"`
	CreatedAt        time.Time `db:"created_at"`
}

type weeklyQuizRow struct {
	ID          string                `db:"id"`
	UserID      string                `db:"user_id"`
	WeekStart   time.Time             `db:"week_start"`
	Questions   jsonb[quiz.Questions] `db:"questions"`
	Score       null.Float64          `db:"score"`
	SubmittedAt null.Time             `db:"submitted_at"`
	CreatedAt   time.Time             `db:"created_at"`
}

type bankQuestionRow struct {
	ID            string    `db:"id"`
	Subject       string    `db:"subject"`
	Question      string    `db:"question"`
	OptionA       string    `db:"option_a"`
	OptionB       string    `db:"option_b"`
	OptionC       string    `db:"option_c"`
	OptionD       string    `db:"option_d"`
	CorrectOption string    `db:"correct_option"`
	Difficulty    string    `db:"difficulty"`
	CreatedAt     time.Time `db:"created_at"`
}

// date columns come back as midnight UTC
func utcDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type QuizRepository struct {
	db *sqlx.DB
}

var (
	_ quiz.Repository   = (*QuizRepository)(nil)
	_ skill.ScoreSource = (*QuizRepository)(nil)
)

// NewQuizRepository returns the quiz repository. It also serves as the skill.ScoreSource.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (repo *QuizRepository) CreateQuiz(ctx context.Context, q quiz.Quiz) (quiz.Quiz, error) {
	r := quizRow{ID: q.ID, Subject: q.Subject, Chapter: q.Chapter, Type: q.Type, Questions: jsonb[quiz.Questions]{V: q.Questions}, CreatedAt: q.CreatedAt.UTC()}
	_, err := repo.db.NamedExecContext(ctx, insertQuery("quizzes", quizColumns), r)
	return q, errors.Wrap(err, "inserting quiz")
}

func (repo *QuizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	if !isUUID(id) {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	var r quizRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("quizzes", "id"), id); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting quiz")
	}
	return r.quiz(), nil
}

func (repo *QuizRepository) LatestQuiz(ctx context.Context) (quiz.Quiz, error) {
	var r quizRow
	if err := repo.db.GetContext(ctx, &r, "SELECT * FROM quizzes ORDER BY created_at DESC LIMIT 1"); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting latest quiz")
	}
	return r.quiz(), nil
}

func (repo *QuizRepository) CreateInstance(ctx context.Context, inst quiz.Instance) (quiz.Instance, error) {
	_, err := repo.db.NamedExecContext(ctx, insertQuery("quiz_instances", instanceColumns), newInstanceRow(inst))
	return inst, errors.Wrap(err, "inserting quiz instance")
}

func (repo *QuizRepository) GetInstance(ctx context.Context, id string) (quiz.Instance, error) {
	if !isUUID(id) {
		return quiz.Instance{}, quiz.ErrInstanceNotFound
	}
	var r instanceRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("quiz_instances", "id"), id); err != nil {
		return quiz.Instance{}, trapNoRowsErr(err, quiz.ErrInstanceNotFound, "getting quiz instance")
	}
	return quiz.Instance{
		ID:         r.ID,
		QuizID:     r.QuizID,
		StudentID:  r.StudentID,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.Time.UTC(),
		ClientInfo: r.ClientInfo,
	}, nil
}

func (repo *QuizRepository) UpdateInstance(ctx context.Context, inst quiz.Instance) (quiz.Instance, error) {
	res, err := repo.db.NamedExecContext(ctx, updateQuery("quiz_instances", instanceColumns[1:], []string{"id"}), newInstanceRow(inst))
	if err != nil {
		return quiz.Instance{}, errors.Wrap(err, "updating quiz instance")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return quiz.Instance{}, quiz.ErrInstanceNotFound
	}
	return inst, nil
}

func (repo *QuizRepository) CreateProctorLog(ctx context.Context, l quiz.ProctorLog) (quiz.ProctorLog, error) {
	err := repo.db.GetContext(ctx, &l.ID,
		"INSERT INTO proctor_logs (instance_id, student_id, event, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		l.InstanceID, l.StudentID, l.Event, l.Timestamp.UTC())
	return l, errors.Wrap(err, "inserting proctor log")
}

func (repo *QuizRepository) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	r := attemptRow{
		ID:              a.ID,
		UserID:          a.UserID,
		QuizID:          a.QuizID,
		InstanceID:      nullString(a.InstanceID),
		StartedAt:       a.StartedAt.UTC(),
		SubmittedAt:     a.SubmittedAt.UTC(),
		DurationSeconds: a.DurationSeconds,
		Answers:         jsonb[quiz.Answers]{V: a.Answers},
		Score:           a.Score,
		CorrectCount:    a.CorrectCount,
		TotalQuestions:  a.TotalQuestions,
		Mistakes:        jsonb[[]quiz.Mistake]{V: a.Mistakes},
		AITip:           a.AITip,
	}
	_, err := repo.db.NamedExecContext(ctx, insertQuery("quiz_attempts", attemptColumns), r)
	return a, errors.Wrap(err, "inserting quiz attempt")
}

func (repo *QuizRepository) QueryAttempts(ctx context.Context, userID string) ([]quiz.Attempt, error) {
	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("quiz_attempts", "user_id")+" ORDER BY submitted_at DESC", userID); err != nil {
		return nil, errors.Wrap(err, "querying quiz attempts")
	}
	attempts := make([]quiz.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, r.attempt())
	}
	return attempts, nil
}

func (repo *QuizRepository) GetTopicStat(ctx context.Context, userID, subject, topic string) (quiz.TopicStat, error) {
	var r topicStatRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("topic_stats", "user_id", "subject", "topic"), userID, subject, topic); err != nil {
		return quiz.TopicStat{}, trapNoRowsErr(err, quiz.ErrTopicNotFound, "getting topic stat")
	}
	return r.stat(), nil
}

func (repo *QuizRepository) SaveTopicStat(ctx context.Context, ts quiz.TopicStat) (quiz.TopicStat, error) {
	r := topicStatRow{
		UserID:           ts.UserID,
		Subject:          ts.Subject,
		Topic:            ts.Topic,
		Attempts:         ts.Attempts,
		Correct:          ts.Correct,
		MasteryScore:     ts.MasteryScore,
		LastMasteryScore: ts.LastMasteryScore,
		ImprovementRate:  ts.ImprovementRate,
		LastImprovedAt:   nullTime(ts.LastImprovedAt),
		LastAttempted:    ts.LastAttempted.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("topic_stats", topicStatColumns, []string{"user_id", "subject", "topic"}), r)
	return ts, errors.Wrap(err, "saving topic stat")
}

func (repo *QuizRepository) QueryTopicStats(ctx context.Context, userID string) ([]quiz.TopicStat, error) {
	q, args := "SELECT * FROM topic_stats", []interface{}{}
	if userID != "" {
		q, args = selectWhere("topic_stats", "user_id"), []interface{}{userID}
	}
	var rows []topicStatRow
	if err := repo.db.SelectContext(ctx, &rows, q+" ORDER BY user_id, subject, topic", args...); err != nil {
		return nil, errors.Wrap(err, "querying topic stats")
	}
	stats := make([]quiz.TopicStat, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, r.stat())
	}
	return stats, nil
}

func (repo *QuizRepository) GetDailyQuiz(ctx context.Context, date time.Time) (quiz.DailyQuiz, error) {
	var r dailyQuizRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("daily_quizzes", "quiz_date"), utcDate(date)); err != nil {
		return quiz.DailyQuiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting daily quiz")
	}
	return quiz.DailyQuiz{Date: utcDate(r.Date), Subject: r.Subject, Questions: r.Questions.V, CreatedAt: r.CreatedAt.UTC()}, nil
}

func (repo *QuizRepository) SaveDailyQuiz(ctx context.Context, dq quiz.DailyQuiz) (quiz.DailyQuiz, error) {
	r := dailyQuizRow{Date: utcDate(dq.Date), Subject: dq.Subject, Questions: jsonb[quiz.Questions]{V: dq.Questions}, CreatedAt: dq.CreatedAt.UTC()}
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("daily_quizzes", dailyQuizColumns, []string{"quiz_date"}), r)
	return dq, errors.Wrap(err, "saving daily quiz")
}

func (repo *QuizRepository) CreateDailyAttempt(ctx context.Context, a quiz.DailyAttempt) (quiz.DailyAttempt, error) {
	r := dailyAttemptRow{
		UserID:           a.UserID,
		Date:             utcDate(a.Date),
		Score:            a.Score,
		TotalQuestions:   a.TotalQuestions,
		CorrectAnswers:   a.CorrectAnswers,
		TimeTakenSeconds: a.TimeTakenSeconds,
		CreatedAt:        a.CreatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, insertQuery("daily_attempts", dailyAttemptColumns), r); err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return quiz.DailyAttempt{}, quiz.ErrAlreadyAttempted
		}
		return quiz.DailyAttempt{}, errors.Wrap(err, "inserting daily attempt")
	}
	return a, nil
}

func (repo *QuizRepository) QueryDailyAttempts(ctx context.Context, userID string) ([]quiz.DailyAttempt, error) {
	var rows []dailyAttemptRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("daily_attempts", "user_id")+" ORDER BY quiz_date DESC", userID); err != nil {
		return nil, errors.Wrap(err, "querying daily attempts")
	}
	attempts := make([]quiz.DailyAttempt, 0, len(rows))
	for _, r := range rows {
		a := quiz.DailyAttempt(r)
		a.Date = utcDate(a.Date)
		a.CreatedAt = a.CreatedAt.UTC()
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo *QuizRepository) GetWeeklyQuiz(ctx context.Context, userID string, weekStart time.Time) (quiz.WeeklyQuiz, error) {
	var r weeklyQuizRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("weekly_quizzes", "user_id", "week_start"), userID, utcDate(weekStart)); err != nil {
		return quiz.WeeklyQuiz{}, trapNoRowsErr(err, quiz.ErrNotFound, "getting weekly quiz")
	}
	return quiz.WeeklyQuiz{
		ID:          r.ID,
		UserID:      r.UserID,
		WeekStart:   utcDate(r.WeekStart),
		Questions:   r.Questions.V,
		Score:       r.Score.Ptr(),
		SubmittedAt: r.SubmittedAt.Time.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

func (repo *QuizRepository) SaveWeeklyQuiz(ctx context.Context, wq quiz.WeeklyQuiz) (quiz.WeeklyQuiz, error) {
	r := weeklyQuizRow{
		ID:          wq.ID,
		UserID:      wq.UserID,
		WeekStart:   utcDate(wq.WeekStart),
		Questions:   jsonb[quiz.Questions]{V: wq.Questions},
		Score:       null.Float64FromPtr(wq.Score),
		SubmittedAt: nullTime(wq.SubmittedAt),
		CreatedAt:   wq.CreatedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("weekly_quizzes", weeklyQuizColumns, []string{"user_id", "week_start"}), r)
	if err != nil {
		return quiz.WeeklyQuiz{}, errors.Wrap(err, "saving weekly quiz")
	}
	return repo.GetWeeklyQuiz(ctx, wq.UserID, wq.WeekStart)
}

func (repo *QuizRepository) CreateBankQuestion(ctx context.Context, bq quiz.BankQuestion) (quiz.BankQuestion, error) {
	r := bankQuestionRow(bq)
	r.CreatedAt = r.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, insertQuery("bank_questions", bankQuestionColumns), r)
	return bq, errors.Wrap(err, "inserting bank question")
}

func (repo *QuizRepository) QueryBankQuestions(ctx context.Context, subject string) ([]quiz.BankQuestion, error) {
	var rows []bankQuestionRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("bank_questions", "subject")+" ORDER BY created_at", subject); err != nil {
		return nil, errors.Wrap(err, "querying bank questions")
	}
	questions := make([]quiz.BankQuestion, 0, len(rows))
	for _, r := range rows {
		questions = append(questions, quiz.BankQuestion(r))
	}
	return questions, nil
}

func (repo *QuizRepository) MasteryScores(ctx context.Context, userID string) ([]float64, error) {
	scores := []float64{}
	err := repo.db.SelectContext(ctx, &scores, "SELECT mastery_score FROM topic_stats WHERE user_id = $1 ORDER BY subject, topic", userID)
	return scores, errors.Wrap(err, "querying mastery scores")
}

func (repo *QuizRepository) AttemptScores(ctx context.Context, userID string) ([]float64, error) {
	scores := []float64{}
	err := repo.db.SelectContext(ctx, &scores, "SELECT score FROM quiz_attempts WHERE user_id = $1 ORDER BY submitted_at DESC", userID)
	return scores, errors.Wrap(err, "querying attempt scores")
}
