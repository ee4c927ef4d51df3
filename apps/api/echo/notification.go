package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

type notificationApi struct {
	svc     activity.Service
	userSvc user.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{
		svc:     deps.ActivitySvc,
		userSvc: deps.UserSvc,
	}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/:id/seen", api.markSeen)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	unseen, _ := strconv.ParseBool(ctx.QueryParam("unseen"))

	notifs, err := api.svc.Notifications(ctx.Request().Context(), usr.ID, unseen)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []activity.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markSeen(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.MarkSeen(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking notification as seen")
	}
	return ctx.NoContent(http.StatusNoContent)
}
