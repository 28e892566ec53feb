package submission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
	"github.com/Gokulakrishnan610/chicken-dinner/core/profile"
)

type (
	Kind     string
	Status   string
	Action   string
	Priority string
)

const (
	KindAchievement  Kind = "achievement"
	KindCertificate  Kind = "certificate"
	KindVolunteering Kind = "volunteering"

	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"

	ActionApprove Action = "approve"
	ActionReject  Action = "reject"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var (
	Kinds = []Kind{KindAchievement, KindCertificate, KindVolunteering}

	ErrNotFound     = core.NewNotFoundError("submission")
	ErrNotPending   = core.NewStateError("submission is no longer pending")
	ErrInvalidKind  = errors.New("invalid submission kind")
	errReasonNeeded = core.NewValidationError(nil, core.FieldError{Field: "rejection_reason", Error: "a reason is required when rejecting"})
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAchievement, KindCertificate, KindVolunteering:
		return k, nil
	}
	return "", errors.Wrap(ErrInvalidKind, s)
}

// Label is the human readable name of the kind.
func (k Kind) Label() string {
	switch k {
	case KindAchievement:
		return "Achievement"
	case KindCertificate:
		return "Certificate"
	case KindVolunteering:
		return "Volunteering activity"
	}
	return string(k)
}

// Path is the API collection of the kind.
func (k Kind) Path() string {
	switch k {
	case KindAchievement:
		return "achievements"
	case KindCertificate:
		return "certificates"
	case KindVolunteering:
		return "volunteering"
	}
	return string(k)
}

func (k Kind) NotificationType() notification.Type {
	switch k {
	case KindAchievement:
		return notification.TypeAchievement
	case KindCertificate:
		return notification.TypeCertificate
	case KindVolunteering:
		return notification.TypeVolunteering
	}
	return notification.TypeSystemAlert
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Submission holds what achievements, certificates & volunteering activities have in common.
type Submission struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"kind"`
	OwnerID         string     `json:"user_id"`
	OwnerName       string     `json:"user_name"`
	CategoryID      string     `json:"category_id"`
	CategoryName    string     `json:"category_name"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	Points          int        `json:"points"`
	Tags            []string   `json:"tags"`
	IsPublic        bool       `json:"is_public"`
	ReviewerID      *string    `json:"verified_by"`
	ReviewedAt      *time.Time `json:"verified_at"`
	RejectionReason string     `json:"rejection_reason"`
	LikesCount      int        `json:"likes_count"`
	CommentsCount   int        `json:"comments_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s Submission) IsPending() bool { return s.Status == StatusPending }

// CreditFor returns what approving a submission of `kind` worth `points` (and `hours`) adds to its owner's profile.
func CreditFor(kind Kind, points int, hours float64) profile.Credit {
	switch kind {
	case KindAchievement:
		return profile.Credit{Points: points, Achievements: 1}
	case KindCertificate:
		return profile.Credit{Points: points, Certificates: 1}
	case KindVolunteering:
		return profile.Credit{Points: points, Hours: hours}
	}
	return profile.Credit{}
}

// Decision is a reviewer's verdict on a pending submission.
type Decision struct {
	Action          Action `json:"action" validate:"required,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
	// Points overrides the submission's points on approval.
	Points *int `json:"points" validate:"omitempty,min=0,max=100000"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.RejectionReason = core.CleanString(d.RejectionReason)
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.Action == ActionReject && d.RejectionReason == "" {
		return errReasonNeeded
	}
	return nil
}

// Transition is the terminal state change applied by a review.
type Transition struct {
	Action     Action
	To         Status
	ReviewerID string
	ReviewedAt time.Time
	Reason     string
	Points     *int // nil keeps the submission's points
}

func (d Decision) transition(reviewerID string, at time.Time) Transition {
	tr := Transition{Action: d.Action, ReviewerID: reviewerID, ReviewedAt: at}
	switch d.Action {
	case ActionApprove:
		tr.To = StatusApproved
		tr.Points = d.Points
	case ActionReject:
		tr.To = StatusRejected
		tr.Reason = d.RejectionReason
	}
	return tr
}

// Review is an entry of a submission's review log.
type Review struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	SubmissionID string    `json:"submission_id"`
	ReviewerID   string    `json:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name"`
	Action       Action    `json:"action"`
	Notes        string    `json:"notes"`
	ReviewedAt   time.Time `json:"reviewed_at"`
}

type Comment struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	Content      string    `json:"content"`
	IsInternal   bool      `json:"is_internal"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewComment struct {
	Content    string `json:"content" validate:"required,notblank,max=2000"`
	IsInternal bool   `json:"is_internal"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

type Share struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	SubmissionID string    `json:"submission_id"`
	UserID       string    `json:"user_id"`
	Platform     string    `json:"platform"`
	SharedAt     time.Time `json:"shared_at"`
}

type NewShare struct {
	Platform string `json:"platform" validate:"required,notblank,max=50"`
}

func (ns *NewShare) Validate(validate *validator.Validate) error {
	ns.Platform = core.CleanString(ns.Platform)
	return validate.Struct(ns)
}
