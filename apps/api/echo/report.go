package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{svc: deps.ReportSvc}

	rg := g.Group("/reports", authed...)

	// templates
	rg.GET("/templates", api.queryTemplates)
	rg.POST("/templates", api.createTemplate, staffMiddleware())
	rg.GET("/templates/:id", api.retrieveTemplate)
	rg.PUT("/templates/:id", api.updateTemplate, staffMiddleware())
	rg.DELETE("/templates/:id", api.destroyTemplate, staffMiddleware())

	// schedules
	sg := rg.Group("/schedules", staffMiddleware())
	sg.GET("", api.querySchedules)
	sg.POST("", api.createSchedule)
	sg.GET("/:id", api.retrieveSchedule)
	sg.PUT("/:id", api.updateSchedule)
	sg.DELETE("/:id", api.destroySchedule)

	// reports
	rg.GET("", api.query)
	rg.POST("", api.generate)
	rg.GET("/stats", api.stats)
	rg.GET("/:id", api.retrieve)
	rg.GET("/:id/download", api.download)
}

// Templates

func (api *reportApi) queryTemplates(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	includeInactive, _ := strconv.ParseBool(ctx.QueryParam("include_inactive"))

	templates, err := api.svc.Templates(ctx.Request().Context(), usr, includeInactive)
	if err != nil {
		return errors.Wrap(err, "querying report templates")
	}
	if templates == nil {
		templates = []report.Template{}
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *reportApi) createTemplate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data report.NewTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}

	t, err := api.svc.CreateTemplate(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating report template")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *reportApi) retrieveTemplate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	t, err := api.svc.GetTemplate(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting report template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *reportApi) updateTemplate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data report.UpdateTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTemplate")
	}

	t, err := api.svc.UpdateTemplate(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating report template")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *reportApi) destroyTemplate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteTemplate(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting report template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Schedules

func (api *reportApi) querySchedules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	schedules, err := api.svc.Schedules(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying report schedules")
	}
	if schedules == nil {
		schedules = []report.Schedule{}
	}
	return ctx.JSON(http.StatusOK, schedules)
}

func (api *reportApi) createSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data report.NewSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}

	s, err := api.svc.CreateSchedule(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating report schedule")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *reportApi) retrieveSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	s, err := api.svc.GetSchedule(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting report schedule")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) updateSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data report.UpdateSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchedule")
	}

	s, err := api.svc.UpdateSchedule(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating report schedule")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reportApi) destroySchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteSchedule(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting report schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Reports

func (api *reportApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(report.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []report.Report{})
	}

	reports, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	if reports == nil {
		reports = []report.Report{}
	}
	return ctx.JSON(http.StatusOK, reports)
}

func (api *reportApi) generate(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data report.GenerateRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}

	r, err := api.svc.Generate(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "generating report")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting report")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reportApi) download(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Download(ctx.Request().Context(), usr, ctx.Param("id"), ctx.RealIP(), ctx.Request().UserAgent())
	if err != nil {
		return errors.Wrap(err, "downloading report")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reportApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing report stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
