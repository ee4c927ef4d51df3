package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/NaveenRoman/AI-TUTor/core/book"
)

type bookRepository struct {
	db *DB
}

var _ book.Repository = (*bookRepository)(nil)

func NewBookRepository(db *DB) book.Repository {
	return &bookRepository{db: db}
}

func (repo *bookRepository) UpsertBook(_ context.Context, b book.Book) (book.Book, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.books {
		if existing.Slug == b.Slug {
			b.ID = existing.ID
			b.CreatedAt = existing.CreatedAt
			break
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	repo.db.books[b.ID] = b
	return b, nil
}

func (repo *bookRepository) UpsertChapter(_ context.Context, ch book.Chapter) (book.Chapter, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.chapters {
		if existing.BookID == ch.BookID && existing.Order == ch.Order {
			ch.ID = existing.ID
			break
		}
	}
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	repo.db.chapters[ch.ID] = ch
	return ch, nil
}

func (repo *bookRepository) QueryBooks(_ context.Context) ([]book.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	books := make([]book.Book, 0, len(repo.db.books))
	for _, b := range repo.db.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

func (repo *bookRepository) GetBook(_ context.Context, slug string) (book.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, b := range repo.db.books {
		if b.Slug == slug {
			return b, nil
		}
	}
	return book.Book{}, book.ErrNotFound
}

func (repo *bookRepository) GetBookByID(_ context.Context, id string) (book.Book, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if b, ok := repo.db.books[id]; ok {
		return b, nil
	}
	return book.Book{}, book.ErrNotFound
}

func (repo *bookRepository) QueryChapters(_ context.Context, bookID string) ([]book.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	chapters := make([]book.Chapter, 0)
	for _, ch := range repo.db.chapters {
		if ch.BookID == bookID {
			chapters = append(chapters, ch)
		}
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })
	return chapters, nil
}

func (repo *bookRepository) GetChapter(_ context.Context, bookID string, order int) (book.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ch := range repo.db.chapters {
		if ch.BookID == bookID && ch.Order == order {
			return ch, nil
		}
	}
	return book.Chapter{}, book.ErrChapterNotFound
}

func (repo *bookRepository) GetChapterByID(_ context.Context, id string) (book.Chapter, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ch, ok := repo.db.chapters[id]; ok {
		return ch, nil
	}
	return book.Chapter{}, book.ErrChapterNotFound
}

func (repo *bookRepository) GetChapterProgress(_ context.Context, userID, chapterID string) (book.ChapterProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.chapterProgress[key(userID, chapterID)]; ok {
		return p, nil
	}
	return book.ChapterProgress{}, book.ErrNotFound
}

func (repo *bookRepository) SaveChapterProgress(_ context.Context, p book.ChapterProgress) (book.ChapterProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.chapterProgress[key(p.UserID, p.ChapterID)] = p
	return p, nil
}

func (repo *bookRepository) QueryChapterProgress(_ context.Context, userID string) ([]book.ChapterProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	progress := make([]book.ChapterProgress, 0)
	for _, p := range repo.db.chapterProgress {
		if p.UserID == userID {
			progress = append(progress, p)
		}
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].LastSeenAt.Before(progress[j].LastSeenAt) })
	return progress, nil
}

func (repo *bookRepository) SaveBookProgress(_ context.Context, p book.BookProgress) (book.BookProgress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.bookProgress[key(p.UserID, p.BookID)] = p
	return p, nil
}

func (repo *bookRepository) QueryBookProgress(_ context.Context, userID string) ([]book.BookProgress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	progress := make([]book.BookProgress, 0)
	for _, p := range repo.db.bookProgress {
		if p.UserID == userID {
			progress = append(progress, p)
		}
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].BookID < progress[j].BookID })
	return progress, nil
}
