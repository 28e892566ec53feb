package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	errCannotReview       = core.NewPermissionError("only faculty and admins can review submissions")
	errInternalComment    = core.NewPermissionError("only faculty and admins can write internal comments")
	errReviewLogForbidden = core.NewPermissionError("only the owner, faculty and admins can see the review history")
	errAnalyticsForbidden = core.NewPermissionError("only faculty and admins can see analytics")
)

type (
	// Store persists the review workflow & engagement of every submission kind.
	Store interface {
		// ApplyTransition moves the pending submission `id` to tr.To in a single unit of work:
		// a conditional update on status = pending, the owner's profile credit (on approval)
		// and the review log entry. It returns ErrNotPending if the submission was already
		// reviewed, and ErrNotFound if it does not exist.
		ApplyTransition(ctx context.Context, kind Kind, id string, tr Transition) (Submission, error)
		GetSubmission(ctx context.Context, kind Kind, id string) (Submission, error)
		QueryReviews(ctx context.Context, kind Kind, id string) ([]Review, error)
		CountReviewsBy(ctx context.Context, reviewerID string) (int, error)

		CreateComment(ctx context.Context, c Comment) (Comment, error)
		QueryComments(ctx context.Context, kind Kind, id string, includeInternal bool) ([]Comment, error)
		// ToggleLike likes the submission for `userID`, or unlikes it if already liked.
		ToggleLike(ctx context.Context, kind Kind, id, userID string, at time.Time) (liked bool, err error)
		CreateShare(ctx context.Context, s Share) (Share, error)

		// SubmissionStats counts the submissions of `ownerID` (all when empty).
		SubmissionStats(ctx context.Context, kind Kind, ownerID string, monthStart time.Time) (Stats, error)
		// CountByCategory is sorted by count (desc) then name.
		CountByCategory(ctx context.Context, kind Kind) ([]CategoryCount, error)
		// CountByMonth is keyed by YYYY-MM, for submissions created since `since`.
		CountByMonth(ctx context.Context, kind Kind, since time.Time) (map[string]int, error)
		// TopContributors ranks owners by the sum of their approved points.
		TopContributors(ctx context.Context, kind Kind, limit int) ([]Contributor, error)
	}

	Notifier interface {
		Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
	}

	// Recorder observes review outcomes (metrics).
	Recorder interface {
		ObserveReview(kind, action string)
	}

	Service struct {
		store    Store
		notifier Notifier
		recorder Recorder
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

// NewService returns a submission Service. notifier & recorder are optional.
func NewService(store Store, notifier Notifier, recorder Recorder, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		validate: validate,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func canReview(actor user.User) error {
	switch actor.Role {
	case user.RoleAdmin, user.RoleFaculty:
		return nil
	case user.RoleStudent:
		return errCannotReview
	default:
		return errCannotReview
	}
}

// Review applies the actor's decision to the pending submission `id`.
// The decision is validated before permissions are checked, so a blank rejection reason fails for every role.
func (svc *Service) Review(ctx context.Context, actor user.User, kind Kind, id string, d Decision) (Submission, error) {
	if err := d.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	if err := canReview(actor); err != nil {
		return Submission{}, err
	}

	tr := d.transition(actor.ID, svc.nowFunc().UTC())
	sub, err := svc.store.ApplyTransition(ctx, kind, id, tr)
	if err != nil {
		return Submission{}, errors.Wrapf(err, "reviewing %s", kind)
	}

	svc.notifyOwner(ctx, sub, tr)
	if svc.recorder != nil {
		svc.recorder.ObserveReview(string(kind), string(tr.Action))
	}
	return sub, nil
}

// notifyOwner tells the owner about the review. Failures are only logged: the review is already committed.
func (svc *Service) notifyOwner(ctx context.Context, sub Submission, tr Transition) {
	if svc.notifier == nil {
		return
	}

	n := notification.Notification{
		UserID:     sub.OwnerID,
		Type:       sub.Kind.NotificationType(),
		ActionURL:  fmt.Sprintf("/%s/%s", sub.Kind.Path(), sub.ID),
		ActionText: "View " + sub.Kind.Label(),
	}
	switch tr.To {
	case StatusApproved:
		n.Title = sub.Kind.Label() + " approved"
		n.Message = fmt.Sprintf("Your %s %q has been approved. You earned %d points.", sub.Kind, sub.Title, sub.Points)
		n.Priority = notification.PriorityMedium
	case StatusRejected:
		n.Title = sub.Kind.Label() + " rejected"
		n.Message = fmt.Sprintf("Your %s %q has been rejected. Reason: %s", sub.Kind, sub.Title, sub.RejectionReason)
		n.Priority = notification.PriorityHigh
	}

	if _, err := svc.notifier.Notify(ctx, n); err != nil && svc.logger != nil {
		svc.logger.Error(fmt.Sprintf("notifying review of %s %s: %v", sub.Kind, sub.ID, err), err)
	}
}

// Get returns the submission if the actor may see it. Hidden submissions are reported as not found.
func (svc *Service) Get(ctx context.Context, actor user.User, kind Kind, id string) (Submission, error) {
	sub, err := svc.store.GetSubmission(ctx, kind, id)
	if err != nil {
		return Submission{}, err
	}
	if !ScopeFor(actor).Allows(sub) {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

func (svc *Service) AddComment(ctx context.Context, actor user.User, kind Kind, id string, nc NewComment) (Comment, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Comment{}, err
	}
	if nc.IsInternal && !actor.IsStaff() {
		return Comment{}, errInternalComment
	}
	sub, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return Comment{}, err
	}

	now := svc.nowFunc().UTC()
	c, err := svc.store.CreateComment(ctx, Comment{
		Kind:         kind,
		SubmissionID: sub.ID,
		UserID:       actor.ID,
		UserName:     actor.FullName(),
		Content:      nc.Content,
		IsInternal:   nc.IsInternal,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Comment{}, errors.Wrap(err, "creating comment")
	}
	return c, nil
}

// Comments lists the comments of a submission. Internal comments are only listed for faculty & admins.
func (svc *Service) Comments(ctx context.Context, actor user.User, kind Kind, id string) ([]Comment, error) {
	sub, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	return svc.store.QueryComments(ctx, kind, sub.ID, actor.IsStaff())
}

func (svc *Service) ToggleLike(ctx context.Context, actor user.User, kind Kind, id string) (bool, error) {
	sub, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return false, err
	}
	liked, err := svc.store.ToggleLike(ctx, kind, sub.ID, actor.ID, svc.nowFunc().UTC())
	if err != nil {
		return false, errors.Wrap(err, "toggling like")
	}
	return liked, nil
}

func (svc *Service) Share(ctx context.Context, actor user.User, kind Kind, id string, ns NewShare) (Share, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Share{}, err
	}
	sub, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return Share{}, err
	}
	s, err := svc.store.CreateShare(ctx, Share{
		Kind:         kind,
		SubmissionID: sub.ID,
		UserID:       actor.ID,
		Platform:     ns.Platform,
		SharedAt:     svc.nowFunc().UTC(),
	})
	if err != nil {
		return Share{}, errors.Wrap(err, "creating share")
	}
	return s, nil
}

// Reviews lists the review log of a submission, for its owner, faculty & admins.
func (svc *Service) Reviews(ctx context.Context, actor user.User, kind Kind, id string) ([]Review, error) {
	sub, err := svc.Get(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && sub.OwnerID != actor.ID {
		return nil, errReviewLogForbidden
	}
	return svc.store.QueryReviews(ctx, kind, sub.ID)
}

// ReviewsBy counts the reviews done by `reviewerID` across all kinds.
func (svc *Service) ReviewsBy(ctx context.Context, reviewerID string) (int, error) {
	return svc.store.CountReviewsBy(ctx, reviewerID)
}
