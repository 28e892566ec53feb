package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.query)
	ng.POST("", api.send, staffMiddleware())
	ng.DELETE("", api.destroy)
	ng.GET("/stats", api.stats)
	ng.POST("/mark-read", api.markRead)
	ng.POST("/mark-all-read", api.markAllRead)
	ng.POST("/archive", api.archive)
	ng.GET("/:id", api.retrieve)
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(notification.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []notification.Notification{})
	}

	ns, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if ns == nil {
		ns = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, ns)
}

func (api *notificationApi) send(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data notification.NewNotification
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotification")
	}

	ns, err := api.svc.Send(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sending notifications")
	}
	return ctx.JSON(http.StatusCreated, ns)
}

// retrieve marks the notification read.
func (api *notificationApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting notification")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.MarkRead)
}

func (api *notificationApi) archive(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.Archive)
}

func (api *notificationApi) destroy(ctx echo.Context) error {
	return api.bulk(ctx, api.svc.Delete)
}

func (api *notificationApi) bulk(ctx echo.Context, fn bulkFunc) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data notification.IDsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}

	n, err := fn(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *notificationApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing notification stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

type bulkFunc func(context.Context, user.User, notification.IDsRequest) (int, error)

type CountResponse struct {
	Count int `json:"count"`
}
