// Package dashboard assembles the role dependent summary shown on the home page.
package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
	"github.com/Gokulakrishnan610/chicken-dinner/core/submission"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

type (
	UserStatter interface {
		Stats(ctx context.Context) (user.Stats, error)
	}

	SubmissionStatter interface {
		Stats(ctx context.Context, actor user.User, kind submission.Kind) (submission.Stats, error)
		ReviewsBy(ctx context.Context, reviewerID string) (int, error)
	}

	ProfileGetter interface {
		Get(ctx context.Context, userID string) (profile.Profile, error)
	}

	UnreadCounter interface {
		UnreadCount(ctx context.Context, userID string) (int, error)
	}

	// Summary is the dashboard of one user; only the part matching their role is set.
	Summary struct {
		Role    user.Role       `json:"role"`
		Admin   *AdminSummary   `json:"admin,omitempty"`
		Faculty *FacultySummary `json:"faculty,omitempty"`
		Student *StudentSummary `json:"student,omitempty"`
	}

	AdminSummary struct {
		Users   user.Stats                           `json:"users"`
		Pending map[submission.Kind]int              `json:"pending_reviews"`
		Totals  map[submission.Kind]submission.Stats `json:"submissions"`
	}

	FacultySummary struct {
		Pending      map[submission.Kind]int `json:"pending_reviews"`
		TotalPending int                     `json:"total_pending"`
		ReviewsDone  int                     `json:"reviews_done"`
	}

	StudentSummary struct {
		Profile      profile.Profile                      `json:"profile"`
		Submissions  map[submission.Kind]submission.Stats `json:"submissions"`
		UnreadNotifs int                                  `json:"unread_notifications"`
	}

	Service struct {
		users         UserStatter
		submissions   SubmissionStatter
		profiles      ProfileGetter
		notifications UnreadCounter
	}
)

func NewService(users UserStatter, submissions SubmissionStatter, profiles ProfileGetter, notifications UnreadCounter) *Service {
	return &Service{users: users, submissions: submissions, profiles: profiles, notifications: notifications}
}

func (svc *Service) Summary(ctx context.Context, actor user.User) (Summary, error) {
	s := Summary{Role: actor.Role}
	var err error
	switch actor.Role {
	case user.RoleAdmin:
		s.Admin, err = svc.admin(ctx, actor)
	case user.RoleFaculty:
		s.Faculty, err = svc.faculty(ctx, actor)
	case user.RoleStudent:
		s.Student, err = svc.student(ctx, actor)
	default:
		err = errors.Errorf("no dashboard for role %q", actor.Role)
	}
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (svc *Service) statsByKind(ctx context.Context, actor user.User) (map[submission.Kind]submission.Stats, error) {
	byKind := make(map[submission.Kind]submission.Stats, len(submission.Kinds))
	for _, kind := range submission.Kinds {
		stats, err := svc.submissions.Stats(ctx, actor, kind)
		if err != nil {
			return nil, err
		}
		byKind[kind] = stats
	}
	return byKind, nil
}

func (svc *Service) admin(ctx context.Context, actor user.User) (*AdminSummary, error) {
	us, err := svc.users.Stats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "computing user stats")
	}
	totals, err := svc.statsByKind(ctx, actor)
	if err != nil {
		return nil, err
	}
	pending := make(map[submission.Kind]int, len(totals))
	for kind, st := range totals {
		pending[kind] = st.Pending
	}
	return &AdminSummary{Users: us, Pending: pending, Totals: totals}, nil
}

func (svc *Service) faculty(ctx context.Context, actor user.User) (*FacultySummary, error) {
	totals, err := svc.statsByKind(ctx, actor)
	if err != nil {
		return nil, err
	}
	fs := &FacultySummary{Pending: make(map[submission.Kind]int, len(totals))}
	for kind, st := range totals {
		fs.Pending[kind] = st.Pending
		fs.TotalPending += st.Pending
	}
	if fs.ReviewsDone, err = svc.submissions.ReviewsBy(ctx, actor.ID); err != nil {
		return nil, errors.Wrap(err, "counting reviews")
	}
	return fs, nil
}

func (svc *Service) student(ctx context.Context, actor user.User) (*StudentSummary, error) {
	p, err := svc.profiles.Get(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting profile")
	}
	subs, err := svc.statsByKind(ctx, actor)
	if err != nil {
		return nil, err
	}
	unread, err := svc.notifications.UnreadCount(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "counting unread notifications")
	}
	return &StudentSummary{Profile: p, Submissions: subs, UnreadNotifs: unread}, nil
}
