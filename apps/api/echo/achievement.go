package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/achievement"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

type achievementApi struct {
	svc *achievement.Service
}

func registerAchievementAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := achievementApi{svc: deps.AchievementSvc}

	ag := g.Group("/"+submission.KindAchievement.Path(), authed...)
	ag.GET("/categories", api.queryCategories)
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	registerSubmissionRoutes(ag, submission.KindAchievement, deps.SubmissionSvc)
}

func (api *achievementApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying achievement categories")
	}
	if cats == nil {
		cats = []achievement.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *achievementApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(achievement.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []achievement.Achievement{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	achievements, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying achievements")
	}
	if achievements == nil {
		achievements = []achievement.Achievement{}
	}
	return ctx.JSON(http.StatusOK, achievements)
}

func (api *achievementApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data achievement.NewAchievement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAchievement")
	}

	a, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating achievement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *achievementApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	a, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting achievement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *achievementApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data achievement.UpdateAchievement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAchievement")
	}

	a, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating achievement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *achievementApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting achievement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
