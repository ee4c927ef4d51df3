package dig_container

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/NaveenRoman/AI-TUTor/apps/api/echo"
	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/tasks"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	cachesvc "github.com/NaveenRoman/AI-TUTor/services/cache"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	llmsvc "github.com/NaveenRoman/AI-TUTor/services/llm"
	logsvc "github.com/NaveenRoman/AI-TUTor/services/logger"
	reportsvc "github.com/NaveenRoman/AI-TUTor/services/report"
	"github.com/NaveenRoman/AI-TUTor/storage/database"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// LoggerName names the app logger of the running binary (API, WORKER, ADMIN).
type LoggerName string

func newLogger(name LoggerName, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(string(name), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger("DB", conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (*database.Repositories, error) {
	repos, err := database.Setup(context.Background(), conf, loggerParam.Logger)
	return repos, errors.Wrap(err, "setting up database")
}

// newRedisClient returns nil when Redis is disabled or unreachable: the caches then fall back to memory.
func newRedisClient(conf *core.Config, logger core.Logger) *redis.Client {
	if conf.Redis.Disabled {
		return nil
	}
	rdb, err := cachesvc.NewClient(context.Background(), conf)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory caches", err)
		return nil
	}
	return rdb
}

func newDocumentStore(conf *core.Config, rdb *redis.Client) tutor.DocumentStore {
	if rdb == nil {
		return cachesvc.NewMemoryDocumentStore(conf.Redis.DocumentTTL)
	}
	return cachesvc.NewRedisDocumentStore(rdb, conf.Redis.DocumentTTL)
}

func newLocker(rdb *redis.Client, logger core.Logger) tasks.Locker {
	if rdb == nil {
		return cachesvc.NewMemoryLocker()
	}
	return cachesvc.NewRedisLocker(rdb, logger)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	institution.InitValidators(validate, translator)
	return validate
}

// newLibrary loads the books directory. A missing directory leaves the tutor with an empty knowledge base.
func newLibrary(conf *core.Config, logger core.Logger) (*book.KnowledgeBase, []book.CatalogBook) {
	kb, catalog, err := book.NewLoader(logger).Load(os.DirFS(conf.BooksDir))
	if err != nil {
		logger.Warn("books not loaded", err, "dir", conf.BooksDir)
		return book.NewKnowledgeBase(), nil
	}
	return kb, catalog
}

func newPredictor(conf *core.Config, logger core.Logger) *skill.Predictor {
	if conf.PlacementModelPath == "" {
		return skill.NewPredictor(nil)
	}
	model, err := skill.LoadModel(conf.PlacementModelPath)
	if err != nil {
		logger.Error("loading placement model, falling back to the heuristic", err)
		return skill.NewPredictor(nil)
	}
	return skill.NewPredictor(model)
}

func newAnswerer(conf *core.Config) (tutor.Answerer, error) {
	va, err := llmsvc.NewVertexAnswerer(context.Background(), conf)
	if err != nil || va == nil {
		return nil, err
	}
	return va, nil
}

func newUserService(repos *database.Repositories, mailSvc core.EmailService, conf *core.Config, logger core.Logger) user.Service {
	return user.NewService(repos.User, mailSvc, conf, logger)
}

func newActivityService(repos *database.Repositories) activity.Service {
	return activity.NewService(repos.Activity)
}

func newBookService(
	repos *database.Repositories,
	kb *book.KnowledgeBase,
	userSvc user.Service,
	activitySvc activity.Service,
	logger core.Logger,
) book.Service {
	return book.NewService(repos.Book, kb, userSvc, activitySvc, logger)
}

func newSkillService(repos *database.Repositories, predictor *skill.Predictor, logger core.Logger) skill.Service {
	return skill.NewService(repos.Skill, repos.Scores, repos.Sessions, predictor, logger)
}

type quizParams struct {
	dig.In

	Repos       *database.Repositories
	Redis       *redis.Client `optional:"true"`
	BookSvc     book.Service
	UserSvc     user.Service
	SkillSvc    skill.Service
	ActivitySvc activity.Service
	MailSvc     core.EmailService
	Logger      core.Logger
}

// newQuizService also subscribes the quiz service to chapter completions.
func newQuizService(p quizParams) quiz.Service {
	repo := p.Repos.Quiz
	if p.Redis != nil {
		repo = cachesvc.NewCachedQuizRepository(repo, p.Redis, p.Logger)
	}
	svc := quiz.NewService(repo, p.BookSvc, p.UserSvc, p.SkillSvc, p.ActivitySvc, p.MailSvc, quiz.NewGenerator(nil), p.Logger)
	p.BookSvc.OnChapterComplete(svc.ChapterCompleted)
	return svc
}

func newInterviewService(
	repos *database.Repositories,
	skillSvc skill.Service,
	activitySvc activity.Service,
	logger core.Logger,
) (interview.Service, error) {
	bank, err := interview.DefaultQuestionBank()
	if err != nil {
		return nil, err
	}
	return interview.NewService(repos.Interview, bank, skillSvc, activitySvc, logger), nil
}

func newInstitutionService(
	repos *database.Repositories,
	userSvc user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) institution.Service {
	return institution.NewService(repos.Institution, userSvc, mailSvc, conf, logger)
}

func newCompanyService(
	repos *database.Repositories,
	userSvc user.Service,
	skillSvc skill.Service,
	interviewSvc interview.Service,
) company.Service {
	return company.NewService(repos.Company, userSvc, skillSvc, interviewSvc)
}

type analyticsParams struct {
	dig.In

	Repos       *database.Repositories
	InstSvc     institution.Service
	SkillSvc    skill.Service
	QuizSvc     quiz.Service
	UserSvc     user.Service
	ActivitySvc activity.Service
	MailSvc     core.EmailService
	Logger      core.Logger
}

func newAnalyticsService(p analyticsParams) analytics.Service {
	return analytics.NewService(
		p.Repos.Analytics, p.InstSvc, p.SkillSvc, p.QuizSvc, p.UserSvc, p.ActivitySvc, p.MailSvc, reportsvc.NewRenderer(), p.Logger,
	)
}

type tutorParams struct {
	dig.In

	Store       tutor.DocumentStore
	KB          *book.KnowledgeBase
	Answerer    tutor.Answerer `optional:"true"`
	ActivitySvc activity.Service
	Logger      core.Logger
}

func newTutorService(p tutorParams) tutor.Service {
	return tutor.NewService(p.Store, p.KB, p.Answerer, p.ActivitySvc, p.Logger)
}

type serverParams struct {
	dig.In

	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	UserSvc        user.Service
	BookSvc        book.Service
	QuizSvc        quiz.Service
	SkillSvc       skill.Service
	InterviewSvc   interview.Service
	ActivitySvc    activity.Service
	TutorSvc       tutor.Service
	InstitutionSvc institution.Service
	CompanySvc     company.Service
	AnalyticsSvc   analytics.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		BookSvc:        p.BookSvc,
		QuizSvc:        p.QuizSvc,
		SkillSvc:       p.SkillSvc,
		InterviewSvc:   p.InterviewSvc,
		ActivitySvc:    p.ActivitySvc,
		TutorSvc:       p.TutorSvc,
		InstitutionSvc: p.InstitutionSvc,
		CompanySvc:     p.CompanySvc,
		AnalyticsSvc:   p.AnalyticsSvc,
	})
}

func newRunner(
	quizSvc quiz.Service,
	userSvc user.Service,
	skillSvc skill.Service,
	instSvc institution.Service,
	activitySvc activity.Service,
	mailSvc core.EmailService,
	locker tasks.Locker,
	conf *core.Config,
	logger core.Logger,
) *tasks.Runner {
	return tasks.NewRunner(quizSvc, userSvc, skillSvc, instSvc, activitySvc, mailSvc, locker, conf, logger)
}

// New returns a new dependency injection dig.Container.
// Constructors run lazily: each binary only builds what its Invoke asks for.
func New(name LoggerName) *dig.Container {
	c := dig.New()

	must(c.Provide(func() LoggerName { return name }))
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRedisClient))
	must(c.Provide(newDocumentStore))
	must(c.Provide(newLocker))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newLibrary))
	must(c.Provide(newPredictor))
	must(c.Provide(newAnswerer))
	must(c.Provide(newUserService))
	must(c.Provide(newActivityService))
	must(c.Provide(newBookService))
	must(c.Provide(newSkillService))
	must(c.Provide(newQuizService))
	must(c.Provide(newInterviewService))
	must(c.Provide(newInstitutionService))
	must(c.Provide(newCompanyService))
	must(c.Provide(newAnalyticsService))
	must(c.Provide(newTutorService))
	must(c.Provide(newServer))
	must(c.Provide(newRunner))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
