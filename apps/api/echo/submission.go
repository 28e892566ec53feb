package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
)

// submissionApi serves the review workflow & engagement endpoints shared by every submission kind.
type submissionApi struct {
	kind submission.Kind
	svc  *submission.Service
}

func registerSubmissionRoutes(g *echo.Group, kind submission.Kind, svc *submission.Service) {
	api := submissionApi{kind: kind, svc: svc}

	g.GET("/stats", api.stats)
	g.GET("/analytics", api.analytics, staffMiddleware())
	g.POST("/:id/review", api.review)
	g.GET("/:id/comments", api.queryComments)
	g.POST("/:id/comments", api.createComment)
	g.POST("/:id/like", api.toggleLike)
	g.POST("/:id/share", api.share)
	g.GET("/:id/reviews", api.queryReviews)
}

func (api *submissionApi) review(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data submission.Decision
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}

	sub, err := api.svc.Review(ctx.Request().Context(), usr, api.kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrapf(err, "reviewing %s", api.kind)
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) queryComments(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	comments, err := api.svc.Comments(ctx.Request().Context(), usr, api.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	if comments == nil {
		comments = []submission.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *submissionApi) createComment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data submission.NewComment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), usr, api.kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

// toggleLike answers 201 when the submission gets liked, 200 when the like is removed.
func (api *submissionApi) toggleLike(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	liked, err := api.svc.ToggleLike(ctx.Request().Context(), usr, api.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling like")
	}
	code := http.StatusOK
	if liked {
		code = http.StatusCreated
	}
	return ctx.JSON(code, LikeResponse{Liked: liked})
}

func (api *submissionApi) share(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data submission.NewShare
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewShare")
	}

	s, err := api.svc.Share(ctx.Request().Context(), usr, api.kind, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "sharing")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) queryReviews(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reviews, err := api.svc.Reviews(ctx.Request().Context(), usr, api.kind, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	if reviews == nil {
		reviews = []submission.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

func (api *submissionApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), usr, api.kind)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *submissionApi) analytics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	analytics, err := api.svc.Analytics(ctx.Request().Context(), usr, api.kind)
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ctx.JSON(http.StatusOK, analytics)
}

type LikeResponse struct {
	Liked bool `json:"liked"`
}
