package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/analytics"
)

type platformApi struct {
	analyticsSvc analytics.Service
}

func registerPlatformAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := platformApi{analyticsSvc: deps.AnalyticsSvc}

	pg := g.Group("/platform", jwt, adminMiddleware())
	pg.GET("/analytics", api.analytics)
}

func (api *platformApi) analytics(ctx echo.Context) error {
	p, err := api.analyticsSvc.PlatformAnalytics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing platform analytics")
	}
	return ctx.JSON(http.StatusOK, p)
}
