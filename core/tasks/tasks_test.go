package tasks_test

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
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/tasks"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	cachesvc "github.com/NaveenRoman/AI-TUTor/services/cache"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func TestStudyTasks(t *testing.T) {
	assert.Equal(t, []string{"Revise current topics"}, tasks.StudyTasks(nil))
	assert.Equal(t, []string{"Revise Loops + 10 questions", "Revise Maps + 10 questions"}, tasks.StudyTasks([]string{"Loops", "Maps"}))
}

type tasksApp struct {
	runner      *tasks.Runner
	locker      tasks.Locker
	users       user.Service
	instSvc     institution.Service
	activitySvc activity.Service
	repos       *database.Repositories
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
		},
		File: "1_loops.html",
	})
	return book.NewKnowledgeBase(java)
}

func setup(t *testing.T) *tasksApp {
	conf := testutil.NewConfig()
	conf.Worker.DailyQuizSpec = "0 0 * * *"
	logger := testutil.NewLogger(t)
	core.ParseEmailTemplates(logger)

	repos := database.NewMemoryRepositories(inmemdb.Open())
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(repos.User, mailSvc, conf, logger)
	activitySvc := activity.NewService(repos.Activity)
	bookSvc := book.NewService(repos.Book, newKB(), userSvc, activitySvc, logger)
	skillSvc := skill.NewService(repos.Skill, repos.Scores, repos.Sessions, skill.NewPredictor(nil), logger)
	quizSvc := quiz.NewService(repos.Quiz, bookSvc, userSvc, skillSvc, activitySvc, mailSvc, quiz.NewGenerator(rand.NewSource(3)), logger)
	instSvc := institution.NewService(repos.Institution, userSvc, mailSvc, conf, logger)
	locker := cachesvc.NewMemoryLocker()

	return &tasksApp{
		runner:      tasks.NewRunner(quizSvc, userSvc, skillSvc, instSvc, activitySvc, mailSvc, locker, conf, logger),
		locker:      locker,
		users:       userSvc,
		instSvc:     instSvc,
		activitySvc: activitySvc,
		repos:       repos,
	}
}

// sent returns the recorded messages of a template addressed to email.
func sent(template, email string) []core.EmailMessage {
	var msgs []core.EmailMessage
	for _, msg := range emailsvc.SentMessages {
		if msg.TemplateName == template && len(msg.To) > 0 && msg.To[0].Address == email {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

func TestRunner_Jobs(t *testing.T) {
	app := setup(t)
	jobs := app.runner.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name)
		assert.NotNil(t, j.Run, j.Name)
	}
	assert.Equal(t, []string{
		tasks.JobDailyQuiz, tasks.JobWeeklyQuizzes, tasks.JobWeakTopics, tasks.JobStudyEmails, tasks.JobSubscriptions,
	}, names)
	assert.Equal(t, "0 0 * * *", jobs[0].Spec)
}

func TestScheduledTick(t *testing.T) {
	tick := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, tick, tasks.ScheduledTick(tick.Add(40*time.Millisecond)))
	assert.Equal(t, tick, tasks.ScheduledTick(tick.Add(3*time.Second)))
	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, tick, tasks.ScheduledTick(tick.In(ist).Add(time.Second)))
}

func TestRunner_Run(t *testing.T) {
	app := setup(t)
	tick := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	var runs int
	job := tasks.Job{Name: "count", Run: func(ctx context.Context) error {
		runs++
		return nil
	}}

	unlock, ok, err := app.locker.TryLock(bg, "count:2026-03-02T06:00:00Z", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	app.runner.Run(bg, job, tick)
	assert.Zero(t, runs, "runs while the slot is claimed elsewhere")

	unlock()
	app.runner.Run(bg, job, tick)
	app.runner.Run(bg, job, tick)
	assert.Equal(t, 1, runs, "runs twice in one slot")

	app.runner.Run(bg, job, tick.Add(time.Minute))
	assert.Equal(t, 2, runs)

	// failed runs release their slot for a retry
	var attempts int
	failing := tasks.Job{Name: "fail", Run: func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	}}
	app.runner.Run(bg, failing, tick)
	app.runner.Run(bg, failing, tick)
	assert.Equal(t, 2, attempts)

	app.runner.Run(bg, tasks.Job{Name: "panic", Run: func(ctx context.Context) error { panic("boom") }}, tick)
	_, ok, err = app.locker.TryLock(bg, "panic:2026-03-02T06:00:00Z", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunner_Run_weeklyQuizzesOncePerSlot(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	usr := testutil.CreateStudent(t, app.repos.User)
	_, err := app.repos.Quiz.SaveTopicStat(bg, quiz.TopicStat{UserID: usr.ID, Subject: "java", Topic: "Loops", MasteryScore: 10})
	require.NoError(t, err)

	var job tasks.Job
	for _, j := range app.runner.Jobs() {
		if j.Name == tasks.JobWeeklyQuizzes {
			job = j
		}
	}
	require.NotNil(t, job.Run)

	// two workers firing the same cron entry a few seconds apart
	start := time.Now()
	app.runner.Run(bg, job, tasks.ScheduledTick(start))
	app.runner.Run(bg, job, tasks.ScheduledTick(start.Truncate(time.Minute).Add(2*time.Second)))

	notifs, err := app.activitySvc.Notifications(bg, usr.ID, false)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)
	assert.Len(t, sent("weekly_quiz", usr.Email), 1)
}

func TestRunner_DailyQuiz(t *testing.T) {
	app := setup(t)
	require.NoError(t, app.runner.DailyQuiz(bg))

	dq, err := app.repos.Quiz.GetDailyQuiz(bg, core.Today())
	require.NoError(t, err)
	assert.Equal(t, "java", dq.Subject)
	assert.NotEmpty(t, dq.Questions.MCQ)
}

func TestRunner_WeeklyQuizzes(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	weak := testutil.CreateStudent(t, app.repos.User)
	optedOut := testutil.CreateStudent(t, app.repos.User)
	off := false
	_, err := app.users.UpdateProfile(bg, optedOut.ID, user.UpdateProfile{WeeklyQuizEnabled: &off})
	require.NoError(t, err)
	_, err = app.repos.Quiz.SaveTopicStat(bg, quiz.TopicStat{UserID: weak.ID, Subject: "java", Topic: "Loops", MasteryScore: 10})
	require.NoError(t, err)

	require.NoError(t, app.runner.WeeklyQuizzes(bg))

	week := core.WeekStart(core.Now())
	wq, err := app.repos.Quiz.GetWeeklyQuiz(bg, weak.ID, week)
	require.NoError(t, err)
	assert.False(t, wq.Questions.IsEmpty())
	_, err = app.repos.Quiz.GetWeeklyQuiz(bg, optedOut.ID, week)
	assert.Equal(t, quiz.ErrNotFound, errors.Cause(err))

	notifs, err := app.activitySvc.Notifications(bg, weak.ID, true)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "Weekly quiz ready", notifs[0].Title)
	assert.Equal(t, wq.ID, notifs[0].Payload["weekly_quiz_id"])
	assert.Equal(t, []string{"Loops"}, notifs[0].Payload["topics"])

	assert.Len(t, sent("weekly_quiz", weak.Email), 1)
	assert.Empty(t, sent("weekly_quiz", optedOut.Email))
}

func TestRunner_StudyEmails(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	weak := testutil.CreateStudent(t, app.repos.User)
	fresh := testutil.CreateStudent(t, app.repos.User)
	for _, ts := range []quiz.TopicStat{
		{UserID: weak.ID, Subject: "java", Topic: "Loops", MasteryScore: 10},
		{UserID: weak.ID, Subject: "java", Topic: "Maps", MasteryScore: 30},
		{UserID: weak.ID, Subject: "java", Topic: "Classes", MasteryScore: 90},
	} {
		_, err := app.repos.Quiz.SaveTopicStat(bg, ts)
		require.NoError(t, err)
	}

	require.NoError(t, app.runner.StudyEmails(bg))

	msgs := sent("study_plan", weak.Email)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"Revise Loops + 10 questions", "Revise Maps + 10 questions"},
		msgs[0].TemplateData.(map[string]interface{})["Tasks"])

	msgs = sent("study_plan", fresh.Email)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"Revise current topics"}, msgs[0].TemplateData.(map[string]interface{})["Tasks"])
}

func TestRunner_RefreshWeakTopics(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repos.User)
	_, err := app.repos.Quiz.SaveTopicStat(bg, quiz.TopicStat{
		UserID: usr.ID, Subject: "java", Topic: "Loops", MasteryScore: 80, Attempts: 1,
		LastAttempted: core.Now().AddDate(0, 0, -20),
	})
	require.NoError(t, err)

	require.NoError(t, app.runner.RefreshWeakTopics(bg))

	ts, err := app.repos.Quiz.GetTopicStat(bg, usr.ID, "java", "Loops")
	require.NoError(t, err)
	assert.Equal(t, float64(76), ts.MasteryScore)
	_, err = app.repos.Skill.GetProfile(bg, usr.ID)
	assert.NoError(t, err, "skill profile recomputed")
}

func TestRunner_ExpireSubscriptions(t *testing.T) {
	app := setup(t)
	inst, _, err := app.instSvc.Create(bg, institution.NewInstitution{
		Name: "Tech College", Code: "tech", AdminEmail: "admin@tech.in", Plan: institution.PlanFree,
	})
	require.NoError(t, err)
	order, err := app.instSvc.CreateOrder(bg, inst.ID)
	require.NoError(t, err)
	_, err = app.instSvc.ConfirmPayment(bg, inst.ID, institution.ConfirmPayment{OrderID: order.OrderID})
	require.NoError(t, err)

	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)
	later := time.Now().AddDate(0, 0, 45)
	core.NowFunc = func() time.Time { return later }

	require.NoError(t, app.runner.ExpireSubscriptions(bg))
	got, err := app.instSvc.Get(bg, inst.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
