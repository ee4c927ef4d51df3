package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/NaveenRoman/AI-TUTor/core/book"
)

var (
	bookColumns            = []string{"id", "slug", "title", "description", "folder", "created_at"}
	chapterColumns         = []string{"id", "book_id", "title", "heading_id", "chapter_order", "file"}
	chapterProgressColumns = []string{"user_id", "chapter_id", "completed", "completed_at", "last_seen_at", "notes"}
	bookProgressColumns    = []string{"user_id", "book_id", "completed_chapters", "total_chapters", "percent_complete", "last_updated"}
)

type bookRow struct {
	ID          string    `db:"id"`
	Slug        string    `db:"slug"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Folder      string    `db:"folder"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r bookRow) book() book.Book {
	return book.Book{ID: r.ID, Slug: r.Slug, Title: r.Title, Description: r.Description, Folder: r.Folder, CreatedAt: r.CreatedAt.UTC()}
}

type chapterRow struct {
	ID        string `db:"id"`
	BookID    string `db:"book_id"`
	Title     string `db:"title"`
	HeadingID string `db:"heading_id"`
	Order     int    `db:"chapter_order"`
	File      string `db:"file"`
}

func (r chapterRow) chapter() book.Chapter {
	return book.Chapter(r)
}

type chapterProgressRow struct {
	UserID      string    `db:"user_id"`
	ChapterID   string    `db:"chapter_id"`
	Completed   bool      `db:"completed"`
	CompletedAt null.Time `db:"completed_at"`
	LastSeenAt  time.Time `db:"last_seen_at"`
	Notes       string    `db:"notes"`
}

func (r chapterProgressRow) progress() book.ChapterProgress {
	return book.ChapterProgress{
		UserID:      r.UserID,
		ChapterID:   r.ChapterID,
		Completed:   r.Completed,
		CompletedAt: r.CompletedAt.Time.UTC(),
		LastSeenAt:  r.LastSeenAt.UTC(),
		Notes:       r.Notes,
	}
}

type bookProgressRow struct {
	UserID            string    `db:"user_id"`
	BookID            string    `db:"book_id"`
	CompletedChapters int       `db:"completed_chapters"`
	TotalChapters     int       `db:"total_chapters"`
	PercentComplete   float64   `db:"percent_complete"`
	LastUpdated       time.Time `db:"last_updated"`
}

type bookRepository struct {
	db *sqlx.DB
}

var _ book.Repository = (*bookRepository)(nil)

func NewBookRepository(db *sqlx.DB) book.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) UpsertBook(ctx context.Context, b book.Book) (book.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	r := bookRow{ID: b.ID, Slug: b.Slug, Title: b.Title, Description: b.Description, Folder: b.Folder, CreatedAt: b.CreatedAt.UTC()}
	q, args, err := repo.db.BindNamed(upsertQuery("books", bookColumns, []string{"slug"})+" RETURNING *", r)
	if err != nil {
		return book.Book{}, errors.Wrap(err, "binding book")
	}
	if err = repo.db.GetContext(ctx, &r, q, args...); err != nil {
		return book.Book{}, errors.Wrap(err, "upserting book")
	}
	return r.book(), nil
}

func (repo *bookRepository) UpsertChapter(ctx context.Context, ch book.Chapter) (book.Chapter, error) {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	r := chapterRow(ch)
	q, args, err := repo.db.BindNamed(upsertQuery("chapters", chapterColumns, []string{"book_id", "chapter_order"})+" RETURNING *", r)
	if err != nil {
		return book.Chapter{}, errors.Wrap(err, "binding chapter")
	}
	if err = repo.db.GetContext(ctx, &r, q, args...); err != nil {
		return book.Chapter{}, errors.Wrap(err, "upserting chapter")
	}
	return r.chapter(), nil
}

func (repo *bookRepository) QueryBooks(ctx context.Context) ([]book.Book, error) {
	var rows []bookRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM books ORDER BY title"); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	books := make([]book.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.book())
	}
	return books, nil
}

func (repo *bookRepository) GetBook(ctx context.Context, slug string) (book.Book, error) {
	var r bookRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("books", "slug"), slug); err != nil {
		return book.Book{}, trapNoRowsErr(err, book.ErrNotFound, "getting book")
	}
	return r.book(), nil
}

func (repo *bookRepository) GetBookByID(ctx context.Context, id string) (book.Book, error) {
	if !isUUID(id) {
		return book.Book{}, book.ErrNotFound
	}
	var r bookRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("books", "id"), id); err != nil {
		return book.Book{}, trapNoRowsErr(err, book.ErrNotFound, "getting book")
	}
	return r.book(), nil
}

func (repo *bookRepository) QueryChapters(ctx context.Context, bookID string) ([]book.Chapter, error) {
	var rows []chapterRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("chapters", "book_id")+" ORDER BY chapter_order", bookID); err != nil {
		return nil, errors.Wrap(err, "querying chapters")
	}
	chapters := make([]book.Chapter, 0, len(rows))
	for _, r := range rows {
		chapters = append(chapters, r.chapter())
	}
	return chapters, nil
}

func (repo *bookRepository) GetChapter(ctx context.Context, bookID string, order int) (book.Chapter, error) {
	var r chapterRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("chapters", "book_id", "chapter_order"), bookID, order); err != nil {
		return book.Chapter{}, trapNoRowsErr(err, book.ErrChapterNotFound, "getting chapter")
	}
	return r.chapter(), nil
}

func (repo *bookRepository) GetChapterByID(ctx context.Context, id string) (book.Chapter, error) {
	if !isUUID(id) {
		return book.Chapter{}, book.ErrChapterNotFound
	}
	var r chapterRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("chapters", "id"), id); err != nil {
		return book.Chapter{}, trapNoRowsErr(err, book.ErrChapterNotFound, "getting chapter")
	}
	return r.chapter(), nil
}

func (repo *bookRepository) GetChapterProgress(ctx context.Context, userID, chapterID string) (book.ChapterProgress, error) {
	var r chapterProgressRow
	if err := repo.db.GetContext(ctx, &r, selectWhere("chapter_progress", "user_id", "chapter_id"), userID, chapterID); err != nil {
		return book.ChapterProgress{}, trapNoRowsErr(err, book.ErrNotFound, "getting chapter progress")
	}
	return r.progress(), nil
}

func (repo *bookRepository) SaveChapterProgress(ctx context.Context, p book.ChapterProgress) (book.ChapterProgress, error) {
	r := chapterProgressRow{
		UserID:      p.UserID,
		ChapterID:   p.ChapterID,
		Completed:   p.Completed,
		CompletedAt: nullTime(p.CompletedAt),
		LastSeenAt:  p.LastSeenAt.UTC(),
		Notes:       p.Notes,
	}
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("chapter_progress", chapterProgressColumns, []string{"user_id", "chapter_id"}), r)
	return p, errors.Wrap(err, "saving chapter progress")
}

func (repo *bookRepository) QueryChapterProgress(ctx context.Context, userID string) ([]book.ChapterProgress, error) {
	var rows []chapterProgressRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("chapter_progress", "user_id")+" ORDER BY last_seen_at", userID); err != nil {
		return nil, errors.Wrap(err, "querying chapter progress")
	}
	progress := make([]book.ChapterProgress, 0, len(rows))
	for _, r := range rows {
		progress = append(progress, r.progress())
	}
	return progress, nil
}

func (repo *bookRepository) SaveBookProgress(ctx context.Context, p book.BookProgress) (book.BookProgress, error) {
	r := bookProgressRow(p)
	r.LastUpdated = r.LastUpdated.UTC()
	_, err := repo.db.NamedExecContext(ctx, upsertQuery("book_progress", bookProgressColumns, []string{"user_id", "book_id"}), r)
	return p, errors.Wrap(err, "saving book progress")
}

func (repo *bookRepository) QueryBookProgress(ctx context.Context, userID string) ([]book.BookProgress, error) {
	var rows []bookProgressRow
	if err := repo.db.SelectContext(ctx, &rows, selectWhere("book_progress", "user_id")+" ORDER BY book_id", userID); err != nil {
		return nil, errors.Wrap(err, "querying book progress")
	}
	progress := make([]book.BookProgress, 0, len(rows))
	for _, r := range rows {
		p := book.BookProgress(r)
		p.LastUpdated = p.LastUpdated.UTC()
		progress = append(progress, p)
	}
	return progress, nil
}
