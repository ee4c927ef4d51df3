package tasks

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

// Job names
const (
	JobDailyQuiz     = "daily_quiz"
	JobWeeklyQuizzes = "weekly_quizzes"
	JobWeakTopics    = "weak_topics"
	JobStudyEmails   = "study_emails"
	JobSubscriptions = "subscriptions"
)

const (
	weakMastery     = 40
	studyEmailTasks = 3
	weeklyTopics    = 5
	defaultTask     = "Revise current topics"
)

// Locker hands out named locks shared by every worker, so a scheduled job runs once per tick.
type Locker interface {
	// TryLock takes the lock named key for at most ttl. ok is false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

type Job struct {
	Name string
	Spec string // cron spec
	Run  func(ctx context.Context) error
}

type Runner struct {
	quizSvc     quiz.Service
	userSvc     user.Service
	skillSvc    skill.Service
	instSvc     institution.Service
	activitySvc activity.Service
	mailSvc     core.EmailService
	locker      Locker
	conf        *core.Config
	logger      core.Logger
}

func NewRunner(
	quizSvc quiz.Service,
	userSvc user.Service,
	skillSvc skill.Service,
	instSvc institution.Service,
	activitySvc activity.Service,
	mailSvc core.EmailService,
	locker Locker,
	conf *core.Config,
	logger core.Logger,
) *Runner {
	return &Runner{
		quizSvc:     quizSvc,
		userSvc:     userSvc,
		skillSvc:    skillSvc,
		instSvc:     instSvc,
		activitySvc: activitySvc,
		mailSvc:     mailSvc,
		locker:      locker,
		conf:        conf,
		logger:      logger,
	}
}

// Jobs lists the scheduled jobs with their configured cron specs.
func (r *Runner) Jobs() []Job {
	return []Job{
		{Name: JobDailyQuiz, Spec: r.conf.Worker.DailyQuizSpec, Run: r.DailyQuiz},
		{Name: JobWeeklyQuizzes, Spec: r.conf.Worker.WeeklyQuizSpec, Run: r.WeeklyQuizzes},
		{Name: JobWeakTopics, Spec: r.conf.Worker.WeakTopicSpec, Run: r.RefreshWeakTopics},
		{Name: JobStudyEmails, Spec: r.conf.Worker.StudyEmailSpec, Run: r.StudyEmails},
		{Name: JobSubscriptions, Spec: r.conf.Worker.SubscriptionSpec, Run: r.ExpireSubscriptions},
	}
}

// ScheduledTick is the schedule slot of a cron run starting at now. Cron fires on whole minutes, so
// workers firing the same entry agree on it even when their clocks are a few seconds apart.
func ScheduledTick(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute)
}

func slotKey(job string, tick time.Time) string {
	return job + ":" + tick.UTC().Format(time.RFC3339)
}

// Run runs job for the schedule slot tick, once across every worker. The slot claim is kept after a
// successful run until LockTTL expires, and released when the run fails so it can be retried.
// Failures are logged, never returned: one bad run must not stop the scheduler.
func (r *Runner) Run(ctx context.Context, job Job, tick time.Time) {
	unlock, ok, err := r.locker.TryLock(ctx, slotKey(job.Name, tick), r.conf.Worker.LockTTL)
	if err != nil {
		r.logger.Error("locking job", err, "job", job.Name)
		return
	}
	if !ok {
		r.logger.Info("job slot already claimed", "job", job.Name, "tick", tick.Format(time.RFC3339))
		return
	}
	done := false
	defer func() {
		if !done {
			unlock()
		}
	}()

	start := core.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job panicked", fmt.Errorf("%v", rec), "job", job.Name)
		}
	}()
	if err := job.Run(ctx); err != nil {
		r.logger.Error("running job", err, "job", job.Name)
		return
	}
	done = true
	r.logger.Info("job done", "job", job.Name, "took", core.Now().Sub(start).String())
}

// eachUser runs fn for every user id with a bounded concurrency. Errors are logged per user.
func (r *Runner) eachUser(ctx context.Context, job string, userIDs []string, fn func(ctx context.Context, userID string) error) error {
	g, ctx := errgroup.WithContext(ctx)
	if r.conf.Worker.Concurrency > 0 {
		g.SetLimit(r.conf.Worker.Concurrency)
	}
	for _, id := range userIDs {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, id); err != nil {
				r.logger.Error("job failed for user", err, "job", job, "user_id", id)
			}
			return nil
		})
	}
	return g.Wait()
}

// DailyQuiz generates the quiz of the day ahead of the first visit.
func (r *Runner) DailyQuiz(ctx context.Context) error {
	dq, err := r.quizSvc.GenerateDaily(ctx, "", "", false)
	if err != nil {
		return errors.Wrap(err, "generating daily quiz")
	}
	r.logger.Info("daily quiz ready", "subject", dq.Subject, "date", dq.Date.Format("2006-01-02"))
	return nil
}

// WeeklyQuizzes prepares the weekly quiz of every active student who did not opt out, then tells them.
func (r *Runner) WeeklyQuizzes(ctx context.Context) error {
	students, err := r.userSvc.ActiveStudents(ctx)
	if err != nil {
		return errors.Wrap(err, "querying active students")
	}
	byID := make(map[string]user.User, len(students))
	ids := make([]string, 0, len(students))
	for _, usr := range students {
		byID[usr.ID] = usr
		ids = append(ids, usr.ID)
	}

	return r.eachUser(ctx, JobWeeklyQuizzes, ids, func(ctx context.Context, userID string) error {
		usr := byID[userID]
		p, err := r.userSvc.Profile(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		if !p.WeeklyQuizEnabled {
			return nil
		}
		wq, err := r.quizSvc.GenerateWeekly(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "generating weekly quiz")
		}
		topics, err := r.weakTopicNames(ctx, userID, weeklyTopics)
		if err != nil {
			return err
		}

		payload := map[string]interface{}{"weekly_quiz_id": wq.ID, "topics": topics}
		if _, err := r.activitySvc.Notify(ctx, userID, "Weekly quiz ready", "Your weekly quiz is ready.", payload); err != nil {
			return errors.Wrap(err, "notifying user")
		}
		if usr.Email != "" {
			r.mailSvc.SendMessages(&core.EmailMessage{
				To:           []mail.Address{usr.MailAddress()},
				Subject:      "Your weekly quiz is ready",
				TemplateName: "weekly_quiz",
				TemplateData: map[string]interface{}{"Name": usr.MailAddress().Name, "Topics": topics},
			})
		}
		return nil
	})
}

func (r *Runner) weakTopicNames(ctx context.Context, userID string, limit int) ([]string, error) {
	weak, err := r.quizSvc.WeakTopics(ctx, userID, weakMastery, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying weak topics")
	}
	names := make([]string, 0, len(weak))
	for _, ts := range weak {
		names = append(names, ts.Topic)
	}
	return names, nil
}

// RefreshWeakTopics decays the topics left idle and recomputes the skill profile of their users.
func (r *Runner) RefreshWeakTopics(ctx context.Context) error {
	userIDs, err := r.quizSvc.DecayIdleTopics(ctx)
	if err != nil {
		return errors.Wrap(err, "decaying idle topics")
	}
	return r.eachUser(ctx, JobWeakTopics, userIDs, func(ctx context.Context, userID string) error {
		_, err := r.skillSvc.Recompute(ctx, userID)
		return errors.Wrap(err, "recomputing skill profile")
	})
}

// StudyTasks turns weak topics into the daily study plan lines.
func StudyTasks(weakTopics []string) []string {
	if len(weakTopics) == 0 {
		return []string{defaultTask}
	}
	tasks := make([]string, 0, len(weakTopics))
	for _, t := range weakTopics {
		tasks = append(tasks, "Revise "+t+" + 10 questions")
	}
	return tasks
}

// StudyEmails sends every active student the study plan of the day.
func (r *Runner) StudyEmails(ctx context.Context) error {
	students, err := r.userSvc.ActiveStudents(ctx)
	if err != nil {
		return errors.Wrap(err, "querying active students")
	}
	byID := make(map[string]user.User, len(students))
	ids := make([]string, 0, len(students))
	for _, usr := range students {
		if usr.Email == "" {
			continue
		}
		byID[usr.ID] = usr
		ids = append(ids, usr.ID)
	}

	return r.eachUser(ctx, JobStudyEmails, ids, func(ctx context.Context, userID string) error {
		topics, err := r.weakTopicNames(ctx, userID, studyEmailTasks)
		if err != nil {
			return err
		}
		usr := byID[userID]
		r.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      "Your study plan for today",
			TemplateName: "study_plan",
			TemplateData: map[string]interface{}{"Name": usr.MailAddress().Name, "Tasks": StudyTasks(topics)},
		})
		return nil
	})
}

// ExpireSubscriptions deactivates the institutions whose subscription ended.
func (r *Runner) ExpireSubscriptions(ctx context.Context) error {
	expired, err := r.instSvc.ExpireSubscriptions(ctx)
	if err != nil {
		return errors.Wrap(err, "expiring subscriptions")
	}
	for _, inst := range expired {
		r.logger.Info("subscription expired", "institution", inst.Code)
	}
	return nil
}
