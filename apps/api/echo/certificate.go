package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/certificate"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps ServerDeps) {
	api := certificateApi{svc: deps.CertificateSvc}

	cg := g.Group("/"+submission.KindCertificate.Path(), authed...)
	cg.GET("/categories", api.queryCategories)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
	registerSubmissionRoutes(cg, submission.KindCertificate, deps.SubmissionSvc)
}

func (api *certificateApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.Categories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying certificate categories")
	}
	if cats == nil {
		cats = []certificate.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *certificateApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(certificate.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []certificate.Certificate{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	certificates, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying certificates")
	}
	if certificates == nil {
		certificates = []certificate.Certificate{}
	}
	return ctx.JSON(http.StatusOK, certificates)
}

func (api *certificateApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data certificate.NewCertificate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCertificate")
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating certificate")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *certificateApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *certificateApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data certificate.UpdateCertificate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCertificate")
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating certificate")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *certificateApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	return ctx.NoContent(http.StatusNoContent)
}
