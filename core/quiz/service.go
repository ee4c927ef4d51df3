package quiz

import (
	"context"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	dailySections  = 6
	weeklyTopics   = 5
	weeklyMastery  = 40
	attemptXPRatio = 10
)

// daily subjects rotate from this date when the user has no reading history
var rotationEpoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	// errors
	ErrNotFound         = errors.New("quiz not found")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrTopicNotFound    = errors.New("topic not found")
	ErrInstanceNotFound = errors.New("quiz instance not found")
	ErrAlreadyAttempted = errors.New("quiz already attempted")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound, ErrSubjectNotFound, ErrTopicNotFound, ErrInstanceNotFound)
	core.RegisterErrorStatus(http.StatusConflict, ErrAlreadyAttempted)
}

type (
	Repository interface {
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		LatestQuiz(ctx context.Context) (Quiz, error)

		CreateInstance(ctx context.Context, inst Instance) (Instance, error)
		GetInstance(ctx context.Context, id string) (Instance, error)
		UpdateInstance(ctx context.Context, inst Instance) (Instance, error)
		CreateProctorLog(ctx context.Context, l ProctorLog) (ProctorLog, error)

		CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
		// QueryAttempts returns the attempts of a user, most recent first.
		QueryAttempts(ctx context.Context, userID string) ([]Attempt, error)

		GetTopicStat(ctx context.Context, userID, subject, topic string) (TopicStat, error)
		SaveTopicStat(ctx context.Context, ts TopicStat) (TopicStat, error)
		// QueryTopicStats returns the topic stats of a user, or of every user when userID is empty.
		QueryTopicStats(ctx context.Context, userID string) ([]TopicStat, error)

		GetDailyQuiz(ctx context.Context, date time.Time) (DailyQuiz, error)
		SaveDailyQuiz(ctx context.Context, dq DailyQuiz) (DailyQuiz, error)
		// CreateDailyAttempt fails with ErrAlreadyAttempted when the user already attempted that date.
		CreateDailyAttempt(ctx context.Context, a DailyAttempt) (DailyAttempt, error)
		// QueryDailyAttempts returns the daily attempts of a user, most recent first.
		QueryDailyAttempts(ctx context.Context, userID string) ([]DailyAttempt, error)

		GetWeeklyQuiz(ctx context.Context, userID string, weekStart time.Time) (WeeklyQuiz, error)
		SaveWeeklyQuiz(ctx context.Context, wq WeeklyQuiz) (WeeklyQuiz, error)

		CreateBankQuestion(ctx context.Context, bq BankQuestion) (BankQuestion, error)
		QueryBankQuestions(ctx context.Context, subject string) ([]BankQuestion, error)
	}

	Service interface {
		GenerateChapterQuiz(ctx context.Context, subject, chapter string) (Quiz, error)
		AutoGenerateForFile(ctx context.Context, subject, file, title string) (Quiz, error)
		// ChapterCompleted generates the quiz of a completed chapter and tells the reader it is unlocked.
		ChapterCompleted(ctx context.Context, usr user.User, b book.Book, ch book.Chapter) error
		Get(ctx context.Context, id string) (Quiz, error)
		Latest(ctx context.Context) (Quiz, error)
		Start(ctx context.Context, quizID, studentID, clientInfo string) (Instance, error)
		Submit(ctx context.Context, usr user.User, sub Submission) (Attempt, error)
		ProctorLog(ctx context.Context, instanceID, studentID, event string) (ProctorLog, error)
		Attempts(ctx context.Context, userID string) ([]Attempt, error)

		GenerateDaily(ctx context.Context, userID, subject string, force bool) (DailyQuiz, error)
		GetDaily(ctx context.Context, userID string) (DailyQuiz, error)
		SubmitDaily(ctx context.Context, usr user.User, sub DailySubmission) (DailyResult, error)
		DailyAttempts(ctx context.Context, userID string) ([]DailyAttempt, error)

		GenerateWeekly(ctx context.Context, userID string) (WeeklyQuiz, error)
		SubmitWeekly(ctx context.Context, userID string, ans Answers) (WeeklyQuiz, Result, error)

		TopicStats(ctx context.Context, userID string) ([]TopicStat, error)
		// WeakTopics returns up to limit topics with a mastery below threshold, weakest first.
		WeakTopics(ctx context.Context, userID string, threshold float64, limit int) ([]TopicStat, error)
		// DecayIdleTopics decays the mastery of every idle topic and returns the users affected.
		DecayIdleTopics(ctx context.Context) ([]string, error)
		AddBankQuestion(ctx context.Context, nbq NewBankQuestion) (BankQuestion, error)
	}

	service struct {
		repo        Repository
		books       book.Service
		userSvc     user.Service
		skillSvc    skill.Service
		activitySvc activity.Service
		mailSvc     core.EmailService
		gen         *Generator
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	books book.Service,
	userSvc user.Service,
	skillSvc skill.Service,
	activitySvc activity.Service,
	mailSvc core.EmailService,
	gen *Generator,
	logger core.Logger,
) Service {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &service{
		repo:        repo,
		books:       books,
		userSvc:     userSvc,
		skillSvc:    skillSvc,
		activitySvc: activitySvc,
		mailSvc:     mailSvc,
		gen:         gen,
		logger:      logger,
	}
}

func (svc *service) createQuiz(ctx context.Context, subject, chapter, typ string, qs Questions) (Quiz, error) {
	q, err := svc.repo.CreateQuiz(ctx, Quiz{
		ID:        uuid.NewString(),
		Subject:   subject,
		Chapter:   chapter,
		Type:      typ,
		Questions: qs,
		CreatedAt: core.Now(),
	})
	return q, errors.Wrap(err, "creating quiz")
}

func (svc *service) GenerateChapterQuiz(ctx context.Context, subject, chapter string) (Quiz, error) {
	subj, ok := svc.books.KB().Subject(subject)
	if !ok {
		return Quiz{}, ErrSubjectNotFound
	}
	sec, ok := subj.Section(chapter)
	if !ok {
		return Quiz{}, ErrTopicNotFound
	}
	return svc.createQuiz(ctx, subj.Name, sec.Heading, TypeFull, svc.gen.GenerateFull(sec.Text()))
}

func (svc *service) AutoGenerateForFile(ctx context.Context, subject, file, title string) (Quiz, error) {
	subj, ok := svc.books.KB().Subject(subject)
	if !ok {
		return Quiz{}, ErrSubjectNotFound
	}
	sections := subj.SectionsForFile(file)
	if len(sections) == 0 {
		return Quiz{}, ErrTopicNotFound
	}
	texts := make([]string, 0, len(sections))
	for _, sec := range sections {
		texts = append(texts, sec.Text())
	}
	return svc.createQuiz(ctx, subj.Name, title, TypeAuto, svc.gen.GenerateFull(strings.Join(texts, " ")))
}

func (svc *service) ChapterCompleted(ctx context.Context, usr user.User, b book.Book, ch book.Chapter) error {
	q, err := svc.AutoGenerateForFile(ctx, b.Slug, ch.File, ch.Title)
	if err != nil {
		return errors.Wrap(err, "generating chapter quiz")
	}
	if usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      "Quiz unlocked: " + ch.Title,
			TemplateName: "quiz_unlocked",
			TemplateData: map[string]string{
				"Name":    usr.MailAddress().Name,
				"Book":    b.Title,
				"Chapter": ch.Title,
				"Path":    "/quizzes/" + q.ID,
			},
		})
	}
	return nil
}

func (svc *service) Get(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) Latest(ctx context.Context) (Quiz, error) {
	return svc.repo.LatestQuiz(ctx)
}

func (svc *service) Start(ctx context.Context, quizID, studentID, clientInfo string) (Instance, error) {
	if _, err := svc.repo.GetQuiz(ctx, quizID); err != nil {
		return Instance{}, err
	}
	inst, err := svc.repo.CreateInstance(ctx, Instance{
		ID:         uuid.NewString(),
		QuizID:     quizID,
		StudentID:  studentID,
		StartedAt:  core.Now(),
		ClientInfo: clientInfo,
	})
	return inst, errors.Wrap(err, "creating quiz instance")
}

func (svc *service) instance(ctx context.Context, id, quizID, studentID string) (Instance, error) {
	inst, err := svc.repo.GetInstance(ctx, id)
	if err != nil {
		return Instance{}, err
	}
	if inst.QuizID != quizID || inst.StudentID != studentID {
		return Instance{}, ErrInstanceNotFound
	}
	if !inst.FinishedAt.IsZero() {
		return Instance{}, ErrAlreadyAttempted
	}
	return inst, nil
}

// Submit grades the objective sections of a quiz and folds the result into the user's topic mastery,
// XP and skill profile.
func (svc *service) Submit(ctx context.Context, usr user.User, sub Submission) (Attempt, error) {
	q, err := svc.repo.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	now := core.Now()
	startedAt := now
	var inst Instance
	if sub.InstanceID != "" {
		if inst, err = svc.instance(ctx, sub.InstanceID, q.ID, usr.ID); err != nil {
			return Attempt{}, err
		}
		startedAt = inst.StartedAt
	}

	res := Grade(q.Questions, sub.Answers, true)
	var wrongTopics []string
	if len(res.Mistakes) > 0 {
		wrongTopics = append(wrongTopics, q.Chapter)
	}
	a, err := svc.repo.CreateAttempt(ctx, Attempt{
		ID:              uuid.NewString(),
		UserID:          usr.ID,
		QuizID:          q.ID,
		InstanceID:      sub.InstanceID,
		StartedAt:       startedAt,
		SubmittedAt:     now,
		DurationSeconds: int(now.Sub(startedAt).Seconds()),
		Answers:         sub.Answers,
		Score:           res.Percent,
		CorrectCount:    res.Correct,
		TotalQuestions:  res.Total,
		Mistakes:        res.Mistakes,
		AITip:           AITip(wrongTopics),
	})
	if err != nil {
		return Attempt{}, errors.Wrap(err, "creating attempt")
	}

	if res.Total > 0 {
		if err := svc.recordTopic(ctx, usr.ID, q.Subject, q.Chapter, res, now); err != nil {
			return Attempt{}, err
		}
	}
	if sub.InstanceID != "" {
		for _, event := range sub.ProctorEvents {
			if _, err := svc.ProctorLog(ctx, inst.ID, usr.ID, event); err != nil {
				return Attempt{}, err
			}
		}
		inst.FinishedAt = now
		if _, err := svc.repo.UpdateInstance(ctx, inst); err != nil {
			return Attempt{}, errors.Wrap(err, "finishing quiz instance")
		}
	}
	if _, err := svc.userSvc.AddXP(ctx, usr.ID, int(a.Score)/attemptXPRatio); err != nil {
		return Attempt{}, errors.Wrap(err, "adding xp")
	}

	if err := svc.activitySvc.Log(ctx, usr.ID, activity.ActionQuiz); err != nil {
		svc.logger.Error("logging quiz usage", err, usr)
	}
	if _, err := svc.skillSvc.Recompute(ctx, usr.ID); err != nil {
		svc.logger.Error("recomputing skill profile", err, usr)
	}
	return a, nil
}

func (svc *service) recordTopic(ctx context.Context, userID, subject, topic string, res Result, now time.Time) error {
	ts, err := svc.repo.GetTopicStat(ctx, userID, subject, topic)
	if err != nil {
		if errors.Cause(err) != ErrTopicNotFound {
			return errors.Wrap(err, "getting topic stat")
		}
		ts = TopicStat{UserID: userID, Subject: subject, Topic: topic}
	}
	ts.Record(res.Correct, res.Total, now)
	_, err = svc.repo.SaveTopicStat(ctx, ts)
	return errors.Wrap(err, "saving topic stat")
}

func (svc *service) ProctorLog(ctx context.Context, instanceID, studentID, event string) (ProctorLog, error) {
	l, err := svc.repo.CreateProctorLog(ctx, ProctorLog{
		InstanceID: instanceID,
		StudentID:  studentID,
		Event:      core.CleanString(event),
		Timestamp:  core.Now(),
	})
	return l, errors.Wrap(err, "creating proctor log")
}

func (svc *service) Attempts(ctx context.Context, userID string) ([]Attempt, error) {
	return svc.repo.QueryAttempts(ctx, userID)
}

// dailySubject picks the explicit subject when known, then the subject the user read last,
// then a subject rotating every day.
func (svc *service) dailySubject(ctx context.Context, userID, subject string) (*book.Subject, error) {
	kb := svc.books.KB()
	if subj, ok := kb.Subject(subject); ok {
		return subj, nil
	}
	if userID != "" {
		last, err := svc.books.LastCompletedSubject(ctx, userID)
		if err != nil {
			return nil, err
		}
		if subj, ok := kb.Subject(last); ok {
			return subj, nil
		}
	}
	subjects := kb.Subjects()
	if len(subjects) == 0 {
		return nil, ErrSubjectNotFound
	}
	days := int(core.Today().Sub(rotationEpoch).Hours() / 24)
	idx := days % len(subjects)
	if idx < 0 {
		idx += len(subjects)
	}
	subj, _ := kb.Subject(subjects[idx])
	return subj, nil
}

// GenerateDaily returns the quiz of the day, generating it first when missing or when forced.
func (svc *service) GenerateDaily(ctx context.Context, userID, subject string, force bool) (DailyQuiz, error) {
	today := core.Today()
	if !force {
		dq, err := svc.repo.GetDailyQuiz(ctx, today)
		if err == nil {
			return dq, nil
		}
		if errors.Cause(err) != ErrNotFound {
			return DailyQuiz{}, errors.Wrap(err, "getting daily quiz")
		}
	}

	subj, err := svc.dailySubject(ctx, userID, subject)
	if err != nil {
		return DailyQuiz{}, err
	}
	var texts []string
	for _, heading := range svc.gen.Sample(subj.Headings(), dailySections) {
		sec, _ := subj.Section(heading)
		texts = append(texts, sec.Text())
	}
	qs := svc.gen.GenerateMixed(strings.Join(texts, " "))
	if qs.MCQ, err = svc.topUpMCQ(ctx, subj.Name, qs.MCQ); err != nil {
		return DailyQuiz{}, err
	}

	dq, err := svc.repo.SaveDailyQuiz(ctx, DailyQuiz{
		Date:      today,
		Subject:   subj.Name,
		Questions: qs,
		CreatedAt: core.Now(),
	})
	return dq, errors.Wrap(err, "saving daily quiz")
}

func (svc *service) topUpMCQ(ctx context.Context, subject string, mcq []Question) ([]Question, error) {
	missing := dailyMCQTarget - len(mcq)
	if missing <= 0 {
		return mcq, nil
	}
	bank, err := svc.repo.QueryBankQuestions(ctx, subject)
	if err != nil {
		return nil, errors.Wrap(err, "querying bank questions")
	}
	ids := make([]string, 0, len(bank))
	byID := make(map[string]BankQuestion, len(bank))
	for _, bq := range bank {
		ids = append(ids, bq.ID)
		byID[bq.ID] = bq
	}
	for _, id := range svc.gen.Sample(ids, missing) {
		mcq = append(mcq, byID[id].ToQuestion())
	}
	return mcq, nil
}

func (svc *service) GetDaily(ctx context.Context, userID string) (DailyQuiz, error) {
	return svc.GenerateDaily(ctx, userID, "", false)
}

func (svc *service) SubmitDaily(ctx context.Context, usr user.User, sub DailySubmission) (DailyResult, error) {
	date := core.TruncateDay(sub.Date)
	if sub.Date.IsZero() {
		date = core.Today()
	}
	dq, err := svc.repo.GetDailyQuiz(ctx, date)
	if err != nil {
		return DailyResult{}, err
	}

	res := Grade(dq.Questions, sub.Answers, true)
	a, err := svc.repo.CreateDailyAttempt(ctx, DailyAttempt{
		UserID:           usr.ID,
		Date:             date,
		Score:            res.Percent,
		TotalQuestions:   res.Total,
		CorrectAnswers:   res.Correct,
		TimeTakenSeconds: sub.TimeTakenSeconds,
		CreatedAt:        core.Now(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyAttempted {
			return DailyResult{}, ErrAlreadyAttempted
		}
		return DailyResult{}, errors.Wrap(err, "creating daily attempt")
	}

	attempts, err := svc.repo.QueryDailyAttempts(ctx, usr.ID)
	if err != nil {
		return DailyResult{}, errors.Wrap(err, "querying daily attempts")
	}
	dates := make([]time.Time, 0, len(attempts))
	for _, at := range attempts {
		dates = append(dates, at.Date)
	}
	streak := Streak(dates, core.Today())
	if _, err := svc.userSvc.SetStreak(ctx, usr.ID, streak); err != nil {
		return DailyResult{}, errors.Wrap(err, "setting streak")
	}
	if err := svc.activitySvc.Log(ctx, usr.ID, activity.ActionDailyQuiz); err != nil {
		svc.logger.Error("logging daily quiz usage", err, usr)
	}
	return DailyResult{Attempt: a, Result: res, Streak: streak}, nil
}

func (svc *service) DailyAttempts(ctx context.Context, userID string) ([]DailyAttempt, error) {
	return svc.repo.QueryDailyAttempts(ctx, userID)
}

// GenerateWeekly returns the user's quiz of the current week, built from their weakest topics.
func (svc *service) GenerateWeekly(ctx context.Context, userID string) (WeeklyQuiz, error) {
	week := core.WeekStart(core.Now())
	wq, err := svc.repo.GetWeeklyQuiz(ctx, userID, week)
	if err == nil {
		return wq, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return WeeklyQuiz{}, errors.Wrap(err, "getting weekly quiz")
	}

	texts, err := svc.weeklyTexts(ctx, userID)
	if err != nil {
		return WeeklyQuiz{}, err
	}
	wq, err = svc.repo.SaveWeeklyQuiz(ctx, WeeklyQuiz{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekStart: week,
		Questions: svc.gen.GenerateMixed(strings.Join(texts, " ")),
		CreatedAt: core.Now(),
	})
	return wq, errors.Wrap(err, "saving weekly quiz")
}

func (svc *service) weeklyTexts(ctx context.Context, userID string) ([]string, error) {
	weak, err := svc.WeakTopics(ctx, userID, weeklyMastery, -1)
	if err != nil {
		return nil, err
	}
	kb := svc.books.KB()
	var texts []string
	for _, ts := range weak {
		sec, ok := kb.Section(ts.Subject, ts.Topic)
		if !ok {
			if _, sec, ok = kb.FindSection(ts.Topic); !ok {
				continue
			}
		}
		texts = append(texts, sec.Text())
		if len(texts) == weeklyTopics {
			break
		}
	}
	if len(texts) > 0 {
		return texts, nil
	}

	subj, ok := kb.Subject(svc.gen.Pick(kb.Subjects()))
	if !ok {
		return nil, nil
	}
	for _, sec := range subj.Sections() {
		texts = append(texts, sec.Text())
		if len(texts) == weeklyTopics {
			break
		}
	}
	return texts, nil
}

func (svc *service) SubmitWeekly(ctx context.Context, userID string, ans Answers) (WeeklyQuiz, Result, error) {
	wq, err := svc.repo.GetWeeklyQuiz(ctx, userID, core.WeekStart(core.Now()))
	if err != nil {
		return WeeklyQuiz{}, Result{}, err
	}
	if wq.Score != nil {
		return WeeklyQuiz{}, Result{}, ErrAlreadyAttempted
	}
	res := Grade(wq.Questions, ans, false)
	wq.Score = &res.Percent
	wq.SubmittedAt = core.Now()
	if wq, err = svc.repo.SaveWeeklyQuiz(ctx, wq); err != nil {
		return WeeklyQuiz{}, Result{}, errors.Wrap(err, "saving weekly quiz")
	}
	return wq, res, nil
}

func (svc *service) TopicStats(ctx context.Context, userID string) ([]TopicStat, error) {
	return svc.repo.QueryTopicStats(ctx, userID)
}

func (svc *service) WeakTopics(ctx context.Context, userID string, threshold float64, limit int) ([]TopicStat, error) {
	stats, err := svc.repo.QueryTopicStats(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying topic stats")
	}
	weak := make([]TopicStat, 0, len(stats))
	for _, ts := range stats {
		if ts.MasteryScore < threshold {
			weak = append(weak, ts)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].MasteryScore < weak[j].MasteryScore })
	if limit >= 0 && len(weak) > limit {
		weak = weak[:limit]
	}
	return weak, nil
}

func (svc *service) DecayIdleTopics(ctx context.Context) ([]string, error) {
	stats, err := svc.repo.QueryTopicStats(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying topic stats")
	}
	now := core.Now()
	seen := make(map[string]bool)
	var users []string
	for _, ts := range stats {
		if !ts.Decay(now) {
			continue
		}
		if _, err := svc.repo.SaveTopicStat(ctx, ts); err != nil {
			return users, errors.Wrap(err, "saving topic stat")
		}
		if !seen[ts.UserID] {
			seen[ts.UserID] = true
			users = append(users, ts.UserID)
		}
	}
	return users, nil
}

func (svc *service) AddBankQuestion(ctx context.Context, nbq NewBankQuestion) (BankQuestion, error) {
	bq, err := svc.repo.CreateBankQuestion(ctx, BankQuestion{
		ID:            uuid.NewString(),
		Subject:       nbq.Subject,
		Question:      nbq.Question,
		OptionA:       nbq.OptionA,
		OptionB:       nbq.OptionB,
		OptionC:       nbq.OptionC,
		OptionD:       nbq.OptionD,
		CorrectOption: nbq.CorrectOption,
		Difficulty:    nbq.Difficulty,
		CreatedAt:     core.Now(),
	})
	return bq, errors.Wrap(err, "creating bank question")
}
