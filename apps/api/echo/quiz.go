package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

type quizApi struct {
	svc      quiz.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{
		svc:      deps.QuizSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	qg := g.Group("/quizzes", jwt)
	qg.POST("/generate", api.generate)
	qg.GET("/latest", api.latest)
	qg.POST("/start", api.start)
	qg.POST("/submit", api.submit)
	qg.POST("/proctor", api.proctor)
	qg.GET("/attempts", api.attempts)
	qg.GET("/topics", api.topics)
	qg.POST("/bank", api.addBankQuestion, adminMiddleware())

	qg.POST("/daily/generate", api.generateDaily)
	qg.GET("/daily", api.daily)
	qg.POST("/daily/submit", api.submitDaily)
	qg.GET("/daily/attempts", api.dailyAttempts)

	qg.POST("/weekly/generate", api.generateWeekly)
	qg.POST("/weekly/submit", api.submitWeekly)

	qg.GET("/:id", api.retrieve)
}

type (
	GenerateQuizRequest struct {
		Subject string `json:"subject" validate:"required"`
		Chapter string `json:"chapter" validate:"required"`
	}

	StartQuizRequest struct {
		QuizID string `json:"quiz_id" validate:"required"`
	}

	ProctorRequest struct {
		InstanceID string `json:"instance_id" validate:"required"`
		Event      string `json:"event" validate:"required,max=100"`
	}

	GenerateDailyRequest struct {
		Subject string `json:"subject"`
		Force   bool   `json:"force"`
	}

	WeeklyResultResponse struct {
		Quiz   quiz.WeeklyQuiz `json:"quiz"`
		Result quiz.Result     `json:"result"`
	}
)

func (gr *GenerateQuizRequest) Validate(validate *validator.Validate) error {
	gr.Subject = core.CleanString(gr.Subject, true /* lower */)
	gr.Chapter = core.CleanString(gr.Chapter)
	return validate.Struct(gr)
}

func (pr *ProctorRequest) Validate(validate *validator.Validate) error {
	pr.Event = core.CleanString(pr.Event)
	return validate.Struct(pr)
}

func (api *quizApi) generate(ctx echo.Context) error {
	var data GenerateQuizRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateQuizRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	q, err := api.svc.GenerateChapterQuiz(ctx.Request().Context(), data.Subject, data.Chapter)
	if err != nil {
		return errors.Wrap(err, "generating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) latest(ctx echo.Context) error {
	q, err := api.svc.Latest(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting latest quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data StartQuizRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartQuizRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	inst, err := api.svc.Start(ctx.Request().Context(), data.QuizID, usr.ID, ctx.Request().UserAgent())
	if err != nil {
		return errors.Wrap(err, "starting quiz")
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *quizApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data quiz.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	attempt, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting quiz")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

func (api *quizApi) proctor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data ProctorRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProctorRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pl, err := api.svc.ProctorLog(ctx.Request().Context(), data.InstanceID, usr.ID, data.Event)
	if err != nil {
		return errors.Wrap(err, "logging proctor event")
	}
	return ctx.JSON(http.StatusCreated, pl)
}

func (api *quizApi) attempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	attempts, err := api.svc.Attempts(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) topics(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.TopicStats(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying topic stats")
	}
	if stats == nil {
		stats = []quiz.TopicStat{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *quizApi) addBankQuestion(ctx echo.Context) error {
	var data quiz.NewBankQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBankQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	bq, err := api.svc.AddBankQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding bank question")
	}
	return ctx.JSON(http.StatusCreated, bq)
}

func (api *quizApi) generateDaily(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data GenerateDailyRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateDailyRequest")
	}

	dq, err := api.svc.GenerateDaily(ctx.Request().Context(), usr.ID, core.CleanString(data.Subject, true /* lower */), data.Force)
	if err != nil {
		return errors.Wrap(err, "generating daily quiz")
	}
	return ctx.JSON(http.StatusOK, dq)
}

func (api *quizApi) daily(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dq, err := api.svc.GetDaily(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting daily quiz")
	}
	return ctx.JSON(http.StatusOK, dq)
}

func (api *quizApi) submitDaily(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data quiz.DailySubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DailySubmission")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.SubmitDaily(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting daily quiz")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) dailyAttempts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	attempts, err := api.svc.DailyAttempts(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying daily attempts")
	}
	if attempts == nil {
		attempts = []quiz.DailyAttempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

func (api *quizApi) generateWeekly(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	wq, err := api.svc.GenerateWeekly(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "generating weekly quiz")
	}
	return ctx.JSON(http.StatusOK, wq)
}

func (api *quizApi) submitWeekly(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data quiz.Answers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Answers")
	}

	wq, res, err := api.svc.SubmitWeekly(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting weekly quiz")
	}
	return ctx.JSON(http.StatusOK, WeeklyResultResponse{Quiz: wq, Result: res})
}
