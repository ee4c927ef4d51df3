package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	boiledrepos "github.com/NaveenRoman/AI-TUTor/storage/database/sqlboiler"
	sqlxrepos "github.com/NaveenRoman/AI-TUTor/storage/database/sqlx"
)

// Repositories bundles the repositories of one storage engine.
type Repositories struct {
	User        user.Repository
	Activity    activity.Repository
	Book        book.Repository
	Quiz        quiz.Repository
	Scores      skill.ScoreSource
	Skill       skill.Repository
	Interview   interview.Repository
	Sessions    skill.SessionSource
	Institution institution.Repository
	Company     company.Repository
	Analytics   analytics.Repository

	closer func() error
}

// Close releases the underlying database, if any.
func (r *Repositories) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func NewMemoryRepositories(db *inmemdb.DB) *Repositories {
	quizRepo := inmemdb.NewQuizRepository(db)
	interviewRepo := inmemdb.NewInterviewRepository(db)
	return &Repositories{
		User:        inmemdb.NewUserRepository(db),
		Activity:    inmemdb.NewActivityRepository(db),
		Book:        inmemdb.NewBookRepository(db),
		Quiz:        quizRepo,
		Scores:      quizRepo,
		Skill:       inmemdb.NewSkillRepository(db),
		Interview:   interviewRepo,
		Sessions:    interviewRepo,
		Institution: inmemdb.NewInstitutionRepository(db),
		Company:     inmemdb.NewCompanyRepository(db),
		Analytics:   inmemdb.NewAnalyticsRepository(db),
	}
}

func NewPostgresRepositories(db *sql.DB) *Repositories {
	xdb := sqlxrepos.NewDB(db)
	quizRepo := sqlxrepos.NewQuizRepository(xdb)
	interviewRepo := sqlxrepos.NewInterviewRepository(xdb)
	return &Repositories{
		User:        sqlxrepos.NewUserRepository(xdb),
		Activity:    sqlxrepos.NewActivityRepository(xdb),
		Book:        sqlxrepos.NewBookRepository(xdb),
		Quiz:        quizRepo,
		Scores:      quizRepo,
		Skill:       sqlxrepos.NewSkillRepository(xdb),
		Interview:   interviewRepo,
		Sessions:    interviewRepo,
		Institution: sqlxrepos.NewInstitutionRepository(xdb),
		Company:     sqlxrepos.NewCompanyRepository(xdb),
		Analytics:   boiledrepos.NewAnalyticsRepository(db),
		closer:      db.Close,
	}
}

// Setup prepares the configured storage engine. Postgres databases are created and migrated on the way.
func Setup(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		logger.Warn("using the in-memory database; data is lost on exit")
		return NewMemoryRepositories(inmemdb.Open()), nil

	case EnginePostgres, "":
		SetLogger(logger)
		if err := CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return NewPostgresRepositories(db), nil

	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}
