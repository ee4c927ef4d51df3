package quiz_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

type quizApp struct {
	svc   quiz.Service
	users user.Service
	repos *database.Repositories
}

func newKB() *book.KnowledgeBase {
	java := book.NewSubject("java", "java")
	java.AddSection(book.Section{
		Heading: "Loops",
		Sentences: []string{
			"A for loop repeats a block a fixed number of times.",
			"A while loop repeats until its condition becomes false.",
			"The break statement exits the nearest enclosing loop.",
			"The continue statement skips to the next iteration.",
			"Nested loops multiply the number of iterations.",
			"An infinite loop never reaches its exit condition.",
			"Loop counters are usually declared inside the header.",
		},
		File: "1_loops.html",
	})
	java.AddSection(book.Section{
		Heading: "Classes",
		Sentences: []string{
			"Classes bundle fields together with their methods.",
			"Constructors initialise every field of a new object.",
		},
		File: "2_classes.html",
	})
	return book.NewKnowledgeBase(java)
}

func setup(t *testing.T) *quizApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	core.ParseEmailTemplates(logger)

	repos := database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(repos.User, mailSvc, conf, logger)
	activitySvc := activity.NewService(repos.Activity)
	bookSvc := book.NewService(repos.Book, newKB(), userSvc, activitySvc, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	svc := quiz.NewService(repos.Quiz, bookSvc, userSvc, skillSvc, activitySvc, mailSvc,
		quiz.NewGenerator(rand.NewSource(7)), logger)
	return &quizApp{svc: svc, users: userSvc, repos: repos}
}

func answersOf(qs quiz.Questions) quiz.Answers {
	var ans quiz.Answers
	for _, q := range qs.MCQ {
		ans.MCQ = append(ans.MCQ, q.Answer)
	}
	for _, q := range qs.Fill {
		ans.Fill = append(ans.Fill, q.Answer)
	}
	return ans
}

func TestService_GenerateChapterQuiz(t *testing.T) {
	app := setup(t)

	q, err := app.svc.GenerateChapterQuiz(bg, "Java", "Loops")
	require.NoError(t, err)
	assert.Equal(t, quiz.TypeFull, q.Type)
	assert.Equal(t, "java", q.Subject)
	assert.Equal(t, "Loops", q.Chapter)
	assert.Len(t, q.Questions.MCQ, 5)
	assert.Len(t, q.Questions.Fill, 2)

	latest, err := app.svc.Latest(bg)
	require.NoError(t, err)
	assert.Equal(t, q.ID, latest.ID)

	_, err = app.svc.GenerateChapterQuiz(bg, "rust", "Loops")
	assert.Equal(t, quiz.ErrSubjectNotFound, err)
	_, err = app.svc.GenerateChapterQuiz(bg, "java", "Generics")
	assert.Equal(t, quiz.ErrTopicNotFound, err)
}

func TestService_ChapterCompleted(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)
	emailsvc.ResetSentMessages()

	err := app.svc.ChapterCompleted(bg, usr, book.Book{Slug: "java", Title: "Java Programming"},
		book.Chapter{Title: "Classes", File: "2_classes.html", Order: 2})
	require.NoError(t, err)

	q, err := app.svc.Latest(bg)
	require.NoError(t, err)
	assert.Equal(t, quiz.TypeAuto, q.Type)
	assert.Equal(t, "Classes", q.Chapter)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "Quiz unlocked: Classes", msg.Subject)
	assert.Equal(t, usr.Email, msg.To[0].Address)

	err = app.svc.ChapterCompleted(bg, usr, book.Book{Slug: "java"}, book.Chapter{File: "9_missing.html"})
	assert.Equal(t, quiz.ErrTopicNotFound, errors.Cause(err))
}

func TestService_Submit(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)
	q, err := app.svc.GenerateChapterQuiz(bg, "java", "Loops")
	require.NoError(t, err)

	t.Run("all correct", func(t *testing.T) {
		a, err := app.svc.Submit(bg, usr, quiz.Submission{QuizID: q.ID, Answers: answersOf(q.Questions)})
		require.NoError(t, err)
		assert.Equal(t, float64(100), a.Score)
		assert.Equal(t, 7, a.CorrectCount)
		assert.Equal(t, 7, a.TotalQuestions)
		assert.Empty(t, a.Mistakes)
		assert.Equal(t, "Excellent work! Keep practicing.", a.AITip)

		p, err := app.users.Profile(bg, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, p.XP)
	})

	t.Run("all wrong", func(t *testing.T) {
		a, err := app.svc.Submit(bg, usr, quiz.Submission{QuizID: q.ID})
		require.NoError(t, err)
		assert.Zero(t, a.Score)
		assert.Len(t, a.Mistakes, 7)
		assert.Equal(t, "Revise core concepts of Loops", a.AITip)
	})

	t.Run("mastery", func(t *testing.T) {
		stats, err := app.svc.TopicStats(bg, usr.ID)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 2, stats[0].Attempts)
		assert.Equal(t, float64(50), stats[0].MasteryScore)

		weak, err := app.svc.WeakTopics(bg, usr.ID, 60, 5)
		require.NoError(t, err)
		require.Len(t, weak, 1)
		assert.Equal(t, "Loops", weak[0].Topic)

		weak, err = app.svc.WeakTopics(bg, usr.ID, 40, 5)
		require.NoError(t, err)
		assert.Empty(t, weak)
	})

	t.Run("attempts", func(t *testing.T) {
		attempts, err := app.svc.Attempts(bg, usr.ID)
		require.NoError(t, err)
		assert.Len(t, attempts, 2)
	})

	t.Run("unknown quiz", func(t *testing.T) {
		_, err := app.svc.Submit(bg, usr, quiz.Submission{QuizID: "unknown"})
		assert.Equal(t, quiz.ErrNotFound, errors.Cause(err))
	})
}

func TestService_proctoredAttempt(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)
	other := testutil.CreateStudent(t, app.repos.User)
	q, err := app.svc.GenerateChapterQuiz(bg, "java", "Loops")
	require.NoError(t, err)

	_, err = app.svc.Start(bg, "unknown", usr.ID, "firefox")
	assert.Equal(t, quiz.ErrNotFound, errors.Cause(err))

	inst, err := app.svc.Start(bg, q.ID, usr.ID, "firefox")
	require.NoError(t, err)
	assert.False(t, inst.StartedAt.IsZero())

	sub := quiz.Submission{QuizID: q.ID, InstanceID: inst.ID, ProctorEvents: []string{" tab_switch ", "fullscreen_exit"}}
	_, err = app.svc.Submit(bg, other, sub)
	assert.Equal(t, quiz.ErrInstanceNotFound, errors.Cause(err))

	a, err := app.svc.Submit(bg, usr, sub)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, a.InstanceID)
	assert.Equal(t, inst.StartedAt, a.StartedAt)

	_, err = app.svc.Submit(bg, usr, sub)
	assert.Equal(t, quiz.ErrAlreadyAttempted, errors.Cause(err))
}

func TestService_daily(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)

	bq, err := app.svc.AddBankQuestion(bg, quiz.NewBankQuestion{
		Subject: "java", Question: "Which keyword stops a loop?",
		OptionA: "stop", OptionB: "break", OptionC: "exit", OptionD: "halt", CorrectOption: "B", Difficulty: "easy",
	})
	require.NoError(t, err)

	dq, err := app.svc.GenerateDaily(bg, usr.ID, "java", false)
	require.NoError(t, err)
	assert.Equal(t, "java", dq.Subject)
	assert.Equal(t, core.Today(), dq.Date)

	// 9 generated questions, topped up from the bank
	var banked bool
	for _, q := range dq.Questions.MCQ {
		if q.Question == bq.Question {
			banked = true
			assert.Equal(t, "break", q.Answer)
		}
	}
	assert.True(t, banked)

	again, err := app.svc.GetDaily(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, dq.CreatedAt, again.CreatedAt)

	res, err := app.svc.SubmitDaily(bg, usr, quiz.DailySubmission{Answers: answersOf(dq.Questions), TimeTakenSeconds: 90})
	require.NoError(t, err)
	assert.Equal(t, float64(100), res.Result.Percent)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 90, res.Attempt.TimeTakenSeconds)

	p, err := app.users.Profile(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Streak)

	_, err = app.svc.SubmitDaily(bg, usr, quiz.DailySubmission{})
	assert.Equal(t, quiz.ErrAlreadyAttempted, err)

	attempts, err := app.svc.DailyAttempts(bg, usr.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestService_GenerateDaily_noBooks(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	repos := database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(repos.User, mailSvc, conf, logger)
	activitySvc := activity.NewService(repos.Activity)
	bookSvc := book.NewService(repos.Book, nil, userSvc, activitySvc, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	svc := quiz.NewService(repos.Quiz, bookSvc, userSvc, skillSvc, activitySvc, mailSvc, nil, logger)

	_, err := svc.GenerateDaily(bg, "", "", false)
	assert.Equal(t, quiz.ErrSubjectNotFound, err)
}

func TestService_weekly(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)

	_, _, err := app.svc.SubmitWeekly(bg, usr.ID, quiz.Answers{})
	assert.Equal(t, quiz.ErrNotFound, errors.Cause(err))

	wq, err := app.svc.GenerateWeekly(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, core.WeekStart(core.Now()), wq.WeekStart)
	assert.NotEmpty(t, wq.Questions.MCQ)
	assert.Nil(t, wq.Score)

	again, err := app.svc.GenerateWeekly(bg, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, wq.ID, again.ID)

	submitted, res, err := app.svc.SubmitWeekly(bg, usr.ID, answersOf(wq.Questions))
	require.NoError(t, err)
	require.NotNil(t, submitted.Score)
	assert.Equal(t, float64(100), *submitted.Score)
	assert.Equal(t, len(wq.Questions.MCQ), res.Total)

	_, _, err = app.svc.SubmitWeekly(bg, usr.ID, quiz.Answers{})
	assert.Equal(t, quiz.ErrAlreadyAttempted, err)
}

func TestService_DecayIdleTopics(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)
	q, err := app.svc.GenerateChapterQuiz(bg, "java", "Loops")
	require.NoError(t, err)
	_, err = app.svc.Submit(bg, usr, quiz.Submission{QuizID: q.ID, Answers: answersOf(q.Questions)})
	require.NoError(t, err)

	users, err := app.svc.DecayIdleTopics(bg)
	require.NoError(t, err)
	assert.Empty(t, users)

	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)
	later := time.Now().AddDate(0, 0, 20)
	core.NowFunc = func() time.Time { return later }

	users, err = app.svc.DecayIdleTopics(bg)
	require.NoError(t, err)
	assert.Equal(t, []string{usr.ID}, users)

	stats, err := app.svc.TopicStats(bg, usr.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, float64(95), stats[0].MasteryScore)
}
