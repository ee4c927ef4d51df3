package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

// DB is a process local database. Every repository of a DB shares the same lock, so
// a repository must never call another one while holding it.
type DB struct {
	mutex sync.RWMutex

	users    map[string]*user.User
	profiles map[string]user.Profile

	notifications []activity.Notification
	usageLogs     []activity.UsageLog

	books           map[string]book.Book
	chapters        map[string]book.Chapter
	chapterProgress map[string]book.ChapterProgress // user|chapter
	bookProgress    map[string]book.BookProgress    // user|book

	quizzes       map[string]quiz.Quiz
	quizOrder     []string
	instances     map[string]quiz.Instance
	proctorLogs   []quiz.ProctorLog
	attempts      []quiz.Attempt
	topicStats    map[string]quiz.TopicStat // user|subject|topic
	dailyQuizzes  map[string]quiz.DailyQuiz // date
	dailyAttempts map[string]quiz.DailyAttempt
	weeklyQuizzes map[string]quiz.WeeklyQuiz // user|week
	bankQuestions []quiz.BankQuestion

	skillProfiles map[string]skill.Profile
	history       map[string]skill.ReadinessHistory // user|date

	sessions  map[string]interview.Session // user|week
	responses []interview.Response

	institutions map[string]institution.Institution
	memberships  []institution.Membership
	billing      map[string]institution.BillingRecord // order

	companies    map[string]company.Company
	companyUsers map[string]company.CompanyUser
}

func Open() *DB {
	return &DB{
		users:           make(map[string]*user.User),
		profiles:        make(map[string]user.Profile),
		books:           make(map[string]book.Book),
		chapters:        make(map[string]book.Chapter),
		chapterProgress: make(map[string]book.ChapterProgress),
		bookProgress:    make(map[string]book.BookProgress),
		quizzes:         make(map[string]quiz.Quiz),
		instances:       make(map[string]quiz.Instance),
		topicStats:      make(map[string]quiz.TopicStat),
		dailyQuizzes:    make(map[string]quiz.DailyQuiz),
		dailyAttempts:   make(map[string]quiz.DailyAttempt),
		weeklyQuizzes:   make(map[string]quiz.WeeklyQuiz),
		skillProfiles:   make(map[string]skill.Profile),
		history:         make(map[string]skill.ReadinessHistory),
		sessions:        make(map[string]interview.Session),
		institutions:    make(map[string]institution.Institution),
		billing:         make(map[string]institution.BillingRecord),
		companies:       make(map[string]company.Company),
		companyUsers:    make(map[string]company.CompanyUser),
	}
}

func key(parts ...string) string {
	return strings.Join(parts, "|")
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func inSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
