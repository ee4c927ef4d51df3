package book

import (
	"context"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	chapterCompleteXP = 10
	studyPlanDays     = 7

	revisionTopic  = "Revision"
	weeklyQuizSlot = "Weekly quiz"
)

var (
	// errors
	ErrNotFound        = errors.New("book not found")
	ErrChapterNotFound = errors.New("chapter not found")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrNotFound, ErrChapterNotFound)
}

// ChapterHook runs after a chapter is completed for the first time.
type ChapterHook func(ctx context.Context, usr user.User, b Book, ch Chapter) error

type (
	Repository interface {
		// UpsertBook inserts or updates a Book by slug.
		UpsertBook(ctx context.Context, b Book) (Book, error)
		// UpsertChapter inserts or updates a Chapter by (book, order).
		UpsertChapter(ctx context.Context, ch Chapter) (Chapter, error)
		QueryBooks(ctx context.Context) ([]Book, error)
		GetBook(ctx context.Context, slug string) (Book, error)
		GetBookByID(ctx context.Context, id string) (Book, error)
		// QueryChapters returns the chapters of a book ordered by Chapter.Order.
		QueryChapters(ctx context.Context, bookID string) ([]Chapter, error)
		GetChapter(ctx context.Context, bookID string, order int) (Chapter, error)
		GetChapterByID(ctx context.Context, id string) (Chapter, error)

		GetChapterProgress(ctx context.Context, userID, chapterID string) (ChapterProgress, error)
		SaveChapterProgress(ctx context.Context, p ChapterProgress) (ChapterProgress, error)
		// QueryChapterProgress returns the chapter progress rows of a user, ordered by LastSeenAt.
		QueryChapterProgress(ctx context.Context, userID string) ([]ChapterProgress, error)
		SaveBookProgress(ctx context.Context, p BookProgress) (BookProgress, error)
		QueryBookProgress(ctx context.Context, userID string) ([]BookProgress, error)
	}

	Service interface {
		KB() *KnowledgeBase
		SyncCatalog(ctx context.Context, catalog []CatalogBook) error
		List(ctx context.Context) ([]Book, error)
		Outline(ctx context.Context, userID, slug string) (Outline, error)
		Read(ctx context.Context, userID, slug string, order int) (Chapter, []Section, error)
		MarkChapterComplete(ctx context.Context, usr user.User, slug string, order int) (ChapterProgress, error)
		Progress(ctx context.Context, userID string) ([]BookProgress, error)
		StudyPlan(ctx context.Context, userID string, weakTopics []string) ([]StudyDay, error)
		// LastCompletedSubject returns the slug of the book of the most recently completed chapter, if any.
		LastCompletedSubject(ctx context.Context, userID string) (string, error)
		OnChapterComplete(hook ChapterHook)
	}

	service struct {
		repo     Repository
		kb       *KnowledgeBase
		userSvc  user.Service
		usageSvc activity.Service
		logger   core.Logger
		hooks    []ChapterHook
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, kb *KnowledgeBase, userSvc user.Service, usageSvc activity.Service, logger core.Logger) Service {
	if kb == nil {
		kb = NewKnowledgeBase()
	}
	return &service{
		repo:     repo,
		kb:       kb,
		userSvc:  userSvc,
		usageSvc: usageSvc,
		logger:   logger,
	}
}

func (svc *service) KB() *KnowledgeBase {
	return svc.kb
}

func (svc *service) OnChapterComplete(hook ChapterHook) {
	svc.hooks = append(svc.hooks, hook)
}

func (svc *service) SyncCatalog(ctx context.Context, catalog []CatalogBook) error {
	for _, cb := range catalog {
		b := cb.Book
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = core.Now()
		}
		b, err := svc.repo.UpsertBook(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "upserting book %s", cb.Book.Slug)
		}
		for _, ch := range cb.Chapters {
			ch.BookID = b.ID
			if ch.ID == "" {
				ch.ID = uuid.NewString()
			}
			if _, err := svc.repo.UpsertChapter(ctx, ch); err != nil {
				return errors.Wrapf(err, "upserting chapter %s/%d", b.Slug, ch.Order)
			}
		}
	}
	return nil
}

func (svc *service) List(ctx context.Context) ([]Book, error) {
	return svc.repo.QueryBooks(ctx)
}

func (svc *service) Outline(ctx context.Context, userID, slug string) (Outline, error) {
	b, err := svc.repo.GetBook(ctx, slug)
	if err != nil {
		return Outline{}, err
	}
	chapters, err := svc.repo.QueryChapters(ctx, b.ID)
	if err != nil {
		return Outline{}, errors.Wrap(err, "querying chapters")
	}
	completed, err := svc.completedChapters(ctx, userID)
	if err != nil {
		return Outline{}, err
	}

	out := Outline{Book: b, Chapters: make([]ChapterStatus, 0, len(chapters))}
	prevCompleted := true // first chapter is always unlocked
	var count int
	for _, ch := range chapters {
		done := completed[ch.ID]
		if done {
			count++
		}
		out.Chapters = append(out.Chapters, ChapterStatus{Chapter: ch, Completed: done, Unlocked: prevCompleted})
		prevCompleted = done
	}
	out.Progress = newBookProgress(userID, b.ID, count, len(chapters))
	return out, nil
}

// Read returns a chapter with its knowledge base sections and records the visit.
func (svc *service) Read(ctx context.Context, userID, slug string, order int) (Chapter, []Section, error) {
	b, ch, err := svc.chapter(ctx, slug, order)
	if err != nil {
		return Chapter{}, nil, err
	}

	p, err := svc.repo.GetChapterProgress(ctx, userID, ch.ID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Chapter{}, nil, errors.Wrap(err, "getting chapter progress")
	}
	p.UserID, p.ChapterID, p.LastSeenAt = userID, ch.ID, core.Now()
	if _, err := svc.repo.SaveChapterProgress(ctx, p); err != nil {
		return Chapter{}, nil, errors.Wrap(err, "saving chapter progress")
	}

	var sections []Section
	if subj, ok := svc.kb.Subject(b.Slug); ok {
		sections = subj.SectionsForFile(ch.File)
	}
	return ch, sections, nil
}

func (svc *service) chapter(ctx context.Context, slug string, order int) (Book, Chapter, error) {
	b, err := svc.repo.GetBook(ctx, slug)
	if err != nil {
		return Book{}, Chapter{}, err
	}
	ch, err := svc.repo.GetChapter(ctx, b.ID, order)
	if err != nil {
		return Book{}, Chapter{}, err
	}
	return b, ch, nil
}

// MarkChapterComplete is idempotent: completing a chapter twice neither grants XP nor runs hooks again.
func (svc *service) MarkChapterComplete(ctx context.Context, usr user.User, slug string, order int) (ChapterProgress, error) {
	b, ch, err := svc.chapter(ctx, slug, order)
	if err != nil {
		return ChapterProgress{}, err
	}

	p, err := svc.repo.GetChapterProgress(ctx, usr.ID, ch.ID)
	switch {
	case err == nil && p.Completed:
		return p, nil
	case err != nil && errors.Cause(err) != ErrNotFound:
		return ChapterProgress{}, errors.Wrap(err, "getting chapter progress")
	}

	now := core.Now()
	p.UserID, p.ChapterID = usr.ID, ch.ID
	p.Completed, p.CompletedAt, p.LastSeenAt = true, now, now
	if p, err = svc.repo.SaveChapterProgress(ctx, p); err != nil {
		return ChapterProgress{}, errors.Wrap(err, "saving chapter progress")
	}
	if _, err := svc.recomputeBookProgress(ctx, usr.ID, b); err != nil {
		return ChapterProgress{}, err
	}

	if _, err := svc.userSvc.AddXP(ctx, usr.ID, chapterCompleteXP); err != nil {
		return ChapterProgress{}, errors.Wrap(err, "adding xp")
	}
	if err := svc.userSvc.SetCurrentChapter(ctx, usr.ID, b.ID, ch.ID); err != nil {
		return ChapterProgress{}, errors.Wrap(err, "setting current chapter")
	}
	if err := svc.usageSvc.Log(ctx, usr.ID, activity.ActionChapterComplete); err != nil {
		svc.logger.Error("logging chapter completion", err, usr)
	}
	for _, hook := range svc.hooks {
		if err := hook(ctx, usr, b, ch); err != nil {
			svc.logger.Error("chapter completion hook", err, usr)
		}
	}
	return p, nil
}

func (svc *service) recomputeBookProgress(ctx context.Context, userID string, b Book) (BookProgress, error) {
	chapters, err := svc.repo.QueryChapters(ctx, b.ID)
	if err != nil {
		return BookProgress{}, errors.Wrap(err, "querying chapters")
	}
	completed, err := svc.completedChapters(ctx, userID)
	if err != nil {
		return BookProgress{}, err
	}
	var count int
	for _, ch := range chapters {
		if completed[ch.ID] {
			count++
		}
	}
	bp, err := svc.repo.SaveBookProgress(ctx, newBookProgress(userID, b.ID, count, len(chapters)))
	return bp, errors.Wrap(err, "saving book progress")
}

func newBookProgress(userID, bookID string, completed, total int) BookProgress {
	var percent float64
	if total > 0 {
		percent = core.Round(float64(completed)/float64(total)*100, 2)
	}
	return BookProgress{
		UserID:            userID,
		BookID:            bookID,
		CompletedChapters: completed,
		TotalChapters:     total,
		PercentComplete:   percent,
		LastUpdated:       core.Now(),
	}
}

func (svc *service) completedChapters(ctx context.Context, userID string) (map[string]bool, error) {
	progress, err := svc.repo.QueryChapterProgress(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying chapter progress")
	}
	done := make(map[string]bool, len(progress))
	for _, p := range progress {
		if p.Completed {
			done[p.ChapterID] = true
		}
	}
	return done, nil
}

func (svc *service) Progress(ctx context.Context, userID string) ([]BookProgress, error) {
	return svc.repo.QueryBookProgress(ctx, userID)
}

// StudyPlan pairs, for each of the next 7 days, a weak topic to study with a started but unfinished
// chapter to practice.
func (svc *service) StudyPlan(ctx context.Context, userID string, weakTopics []string) ([]StudyDay, error) {
	progress, err := svc.repo.QueryChapterProgress(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying chapter progress")
	}
	var unread []string
	for _, p := range progress {
		if p.Completed || len(unread) == studyPlanDays {
			continue
		}
		ch, err := svc.repo.GetChapterByID(ctx, p.ChapterID)
		if err != nil {
			return nil, errors.Wrap(err, "getting chapter")
		}
		unread = append(unread, ch.Title)
	}

	plan := make([]StudyDay, studyPlanDays)
	for i := range plan {
		plan[i] = StudyDay{Day: i + 1, Topic: revisionTopic, Chapter: weeklyQuizSlot}
		if i < len(weakTopics) {
			plan[i].Topic = weakTopics[i]
		}
		if i < len(unread) {
			plan[i].Chapter = unread[i]
		}
	}
	return plan, nil
}

func (svc *service) LastCompletedSubject(ctx context.Context, userID string) (string, error) {
	progress, err := svc.repo.QueryChapterProgress(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "querying chapter progress")
	}
	var completed []ChapterProgress
	for _, p := range progress {
		if p.Completed {
			completed = append(completed, p)
		}
	}
	if len(completed) == 0 {
		return "", nil
	}
	sort.SliceStable(completed, func(i, j int) bool { return completed[i].CompletedAt.After(completed[j].CompletedAt) })

	ch, err := svc.repo.GetChapterByID(ctx, completed[0].ChapterID)
	if err != nil {
		return "", errors.Wrap(err, "getting chapter")
	}
	b, err := svc.repo.GetBookByID(ctx, ch.BookID)
	if err != nil {
		return "", errors.Wrap(err, "getting book")
	}
	return b.Slug, nil
}
