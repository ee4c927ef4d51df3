package book

import (
	"time"
)

type Book struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Folder      string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type Chapter struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	HeadingID string `json:"heading_id"`
	Order     int    `json:"order"`
	File      string `json:"file"`
}

// BookProgress is the per user aggregate of completed chapters of a Book.
type BookProgress struct {
	UserID            string    `json:"user_id"`
	BookID            string    `json:"book_id"`
	CompletedChapters int       `json:"completed_chapters"`
	TotalChapters     int       `json:"total_chapters"`
	PercentComplete   float64   `json:"percent_complete"`
	LastUpdated       time.Time `json:"last_updated"`
}

type ChapterProgress struct {
	UserID      string    `json:"user_id"`
	ChapterID   string    `json:"chapter_id"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Notes       string    `json:"notes"`
}

// ChapterStatus is a Chapter as seen by a given reader.
// A chapter is unlocked when it is the first one or the previous one is completed.
type ChapterStatus struct {
	Chapter
	Completed bool `json:"completed"`
	Unlocked  bool `json:"unlocked"`
}

type Outline struct {
	Book     Book            `json:"book"`
	Progress BookProgress    `json:"progress"`
	Chapters []ChapterStatus `json:"chapters"`
}

type StudyDay struct {
	Day     int    `json:"day"`
	Topic   string `json:"topic"`
	Chapter string `json:"chapter"`
}
