package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/skill"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const defaultHistoryDays = 30

type skillApi struct {
	svc          skill.Service
	analyticsSvc analytics.Service
	userSvc      user.Service
}

func registerSkillAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := skillApi{
		svc:          deps.SkillSvc,
		analyticsSvc: deps.AnalyticsSvc,
		userSvc:      deps.UserSvc,
	}

	sg := g.Group("/skills/me", jwt)
	sg.GET("", api.profile)
	sg.POST("/recompute", api.recompute)
	sg.GET("/history", api.history)
	sg.GET("/prediction", api.prediction)

	g.GET("/dashboard", api.dashboard, jwt)
}

type PredictionResponse struct {
	Profile           skill.Profile    `json:"profile"`
	Prediction        skill.Prediction `json:"prediction"`
	HiringProbability float64          `json:"hiring_probability"`
}

func (api *skillApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Profile(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting skill profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *skillApi) recompute(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Recompute(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "recomputing skill profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *skillApi) history(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	hist, err := api.svc.History(ctx.Request().Context(), usr.ID, queryInt(ctx, "days", defaultHistoryDays))
	if err != nil {
		return errors.Wrap(err, "querying readiness history")
	}
	if hist == nil {
		hist = []skill.ReadinessHistory{}
	}
	return ctx.JSON(http.StatusOK, hist)
}

func (api *skillApi) prediction(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Profile(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting skill profile")
	}
	pred, err := api.svc.Predict(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "predicting placement")
	}
	prob, err := api.svc.HiringProbability(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "computing hiring probability")
	}
	return ctx.JSON(http.StatusOK, PredictionResponse{Profile: p, Prediction: pred, HiringProbability: prob})
}

func (api *skillApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dash, err := api.analyticsSvc.StudentDashboard(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
