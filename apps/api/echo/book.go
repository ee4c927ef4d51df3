package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	studyPlanMastery = 50
	studyPlanTopics  = 7
)

type bookApi struct {
	svc     book.Service
	quizSvc quiz.Service
	userSvc user.Service
}

func registerBookAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := bookApi{
		svc:     deps.BookSvc,
		quizSvc: deps.QuizSvc,
		userSvc: deps.UserSvc,
	}

	bg := g.Group("/books", jwt)
	bg.GET("", api.list)
	bg.GET("/:slug", api.outline)
	bg.GET("/:slug/chapters/:order", api.read)
	bg.POST("/:slug/chapters/:order/complete", api.complete)

	pg := g.Group("/progress", jwt)
	pg.GET("", api.progress)
	pg.GET("/study-plan", api.studyPlan)
}

type ChapterResponse struct {
	Chapter  book.Chapter   `json:"chapter"`
	Sections []book.Section `json:"sections"`
}

func (api *bookApi) list(ctx echo.Context) error {
	books, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing books")
	}
	if books == nil {
		books = []book.Book{}
	}
	return ctx.JSON(http.StatusOK, books)
}

func (api *bookApi) outline(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	outline, err := api.svc.Outline(ctx.Request().Context(), usr.ID, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting outline")
	}
	return ctx.JSON(http.StatusOK, outline)
}

func (api *bookApi) read(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	order, err := paramInt(ctx, "order")
	if err != nil {
		return err
	}
	ch, sections, err := api.svc.Read(ctx.Request().Context(), usr.ID, ctx.Param("slug"), order)
	if err != nil {
		return errors.Wrap(err, "reading chapter")
	}
	if sections == nil {
		sections = []book.Section{}
	}
	return ctx.JSON(http.StatusOK, ChapterResponse{Chapter: ch, Sections: sections})
}

func (api *bookApi) complete(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	order, err := paramInt(ctx, "order")
	if err != nil {
		return err
	}
	cp, err := api.svc.MarkChapterComplete(ctx.Request().Context(), usr, ctx.Param("slug"), order)
	if err != nil {
		return errors.Wrap(err, "completing chapter")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *bookApi) progress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	progress, err := api.svc.Progress(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	if progress == nil {
		progress = []book.BookProgress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *bookApi) studyPlan(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	weak, err := api.quizSvc.WeakTopics(ctx.Request().Context(), usr.ID, studyPlanMastery, studyPlanTopics)
	if err != nil {
		return errors.Wrap(err, "getting weak topics")
	}
	topics := make([]string, 0, len(weak))
	for _, ts := range weak {
		topics = append(topics, ts.Topic)
	}

	plan, err := api.svc.StudyPlan(ctx.Request().Context(), usr.ID, topics)
	if err != nil {
		return errors.Wrap(err, "building study plan")
	}
	return ctx.JSON(http.StatusOK, plan)
}
