package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/volunteering"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

type volunteeringApi struct {
	svc *volunteering.Service
}

func registerVolunteeringAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := volunteeringApi{svc: deps.VolunteeringSvc}

	vg := g.Group("/"+submission.KindVolunteering.Path(), authed...)
	vg.GET("/categories", api.queryCategories)
	vg.GET("", api.query)
	vg.POST("", api.create)
	vg.GET("/:id", api.retrieve)
	vg.PUT("/:id", api.update)
	vg.DELETE("/:id", api.destroy)
	registerSubmissionRoutes(vg, submission.KindVolunteering, deps.SubmissionSvc)
}

func (api *volunteeringApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying volunteering categories")
	}
	if cats == nil {
		cats = []volunteering.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *volunteeringApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(volunteering.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []volunteering.Activity{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	activities, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying volunteering activities")
	}
	if activities == nil {
		activities = []volunteering.Activity{}
	}
	return ctx.JSON(http.StatusOK, activities)
}

func (api *volunteeringApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data volunteering.NewActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}

	va, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating volunteering activity")
	}
	return ctx.JSON(http.StatusCreated, va)
}

func (api *volunteeringApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	va, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting volunteering activity")
	}
	return ctx.JSON(http.StatusOK, va)
}

func (api *volunteeringApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data volunteering.UpdateActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}

	va, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating volunteering activity")
	}
	return ctx.JSON(http.StatusOK, va)
}

func (api *volunteeringApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting volunteering activity")
	}
	return ctx.NoContent(http.StatusNoContent)
}
