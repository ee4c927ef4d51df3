package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/interview"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

type interviewApi struct {
	svc      interview.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerInterviewAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := interviewApi{
		svc:      deps.InterviewSvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	ig := g.Group("/interviews", jwt)
	ig.GET("/session", api.session)
	ig.GET("/status", api.status)
	ig.GET("/next-question", api.nextQuestion)
	ig.POST("/answer", api.answer)
	ig.GET("/transcript", api.transcript)
}

type NextQuestionResponse struct {
	Question string `json:"question"`
}

func (api *interviewApi) session(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sess, err := api.svc.WeeklySession(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting weekly session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *interviewApi) status(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	st, err := api.svc.Status(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting interview status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *interviewApi) nextQuestion(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	q, err := api.svc.NextQuestion(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting next question")
	}
	return ctx.JSON(http.StatusOK, NextQuestionResponse{Question: q})
}

func (api *interviewApi) answer(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data interview.NewAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnswer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Answer(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "answering interview question")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *interviewApi) transcript(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	responses, err := api.svc.Transcript(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting transcript")
	}
	if responses == nil {
		responses = []interview.Response{}
	}
	return ctx.JSON(http.StatusOK, responses)
}
