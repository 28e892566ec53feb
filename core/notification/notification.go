package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

type (
	Type     string
	Priority string
)

const (
	TypeAchievement       Type = "achievement"
	TypeCertificate       Type = "certificate"
	TypeVolunteering      Type = "volunteering"
	TypeSystemAlert       Type = "system_alert"
	TypeAdminNotification Type = "admin_notification"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var (
	emptyMetadata = json.RawMessage("{}")

	ErrNotFound      = core.NewNotFoundError("notification")
	errCannotSend    = core.NewPermissionError("only faculty and admins can send notifications")
	errNoRecipients  = core.NewValidationError(nil, core.FieldError{Field: "user_ids", Error: "this field is required"})
	errMetadataNotKV = core.NewValidationError(nil, core.FieldError{Field: "metadata", Error: "must be a JSON object"})

	// ErrRecipientNotFound is returned when creating a notification for an unknown user.
	ErrRecipientNotFound = core.NewValidationError(nil, core.FieldError{Field: "user_ids", Error: "unknown user"})
)

// Notification is an in-app message for a user.
type Notification struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       Type            `json:"type"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Priority   Priority        `json:"priority"`
	IsRead     bool            `json:"is_read"`
	IsArchived bool            `json:"is_archived"`
	ActionURL  string          `json:"action_url"`
	ActionText string          `json:"action_text"`
	Metadata   json.RawMessage `json:"metadata"`
	ExpiresAt  *time.Time      `json:"expires_at"`
	CreatedAt  time.Time       `json:"created_at"`
	ReadAt     *time.Time      `json:"read_at"`
}

// NewNotification is sent by faculty & admins to a list of users.
type NewNotification struct {
	UserIDs    []string        `json:"user_ids" validate:"required,min=1,dive,uuid"`
	Type       Type            `json:"type" validate:"omitempty,oneof=achievement certificate volunteering system_alert admin_notification"`
	Title      string          `json:"title" validate:"required,notblank,max=200"`
	Message    string          `json:"message" validate:"required,notblank"`
	Priority   Priority        `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ActionURL  string          `json:"action_url" validate:"max=500"`
	ActionText string          `json:"action_text" validate:"max=100"`
	Metadata   json.RawMessage `json:"metadata"`
	ExpiresAt  *time.Time      `json:"expires_at"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.UserIDs = core.CleanStrings(nn.UserIDs)
	if nn.Type == "" {
		nn.Type = TypeAdminNotification
	}
	if nn.Priority == "" {
		nn.Priority = PriorityMedium
	}
	if len(nn.UserIDs) == 0 {
		return errNoRecipients
	}
	metadata, ok := core.CleanJSONObject(nn.Metadata)
	if !ok {
		return errMetadataNotKV
	}
	nn.Metadata = metadata
	return validate.Struct(nn)
}

type QueryFilter struct {
	Type       Type     `query:"type"`
	Priority   Priority `query:"priority"`
	IsRead     *bool    `query:"is_read"`
	IsArchived *bool    `query:"is_archived"`
}

type Stats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	Archived   int              `json:"archived"`
	ByType     map[Type]int     `json:"by_type"`
	ByPriority map[Priority]int `json:"by_priority"`
}

// IDsRequest is the body of the bulk endpoints (mark-read, archive, delete).
type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type (
	Repository interface {
		CreateNotifications(ctx context.Context, ns ...Notification) ([]Notification, error)
		// QueryNotifications lists the notifications of `userID`, most recent first.
		// Archived notifications are excluded unless filter.IsArchived is set.
		QueryNotifications(ctx context.Context, userID string, filter *QueryFilter) ([]Notification, error)
		GetNotification(ctx context.Context, userID, id string) (Notification, error)
		// MarkRead marks `ids` (all when nil) of `userID` as read, returning the number changed.
		MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int, error)
		Archive(ctx context.Context, userID string, ids []string) (int, error)
		DeleteNotifications(ctx context.Context, userID string, ids []string) (int, error)
		NotificationStats(ctx context.Context, userID string) (Stats, error)
		// DeleteExpired removes every notification whose expiry is before `now`.
		DeleteExpired(ctx context.Context, now time.Time) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate, nowFunc: time.Now}
}

// Notify records `n` for its user. Empty type & priority default to system_alert & medium.
func (svc *Service) Notify(ctx context.Context, n Notification) (Notification, error) {
	if n.Type == "" {
		n.Type = TypeSystemAlert
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	if metadata, ok := core.CleanJSONObject(n.Metadata); ok {
		n.Metadata = metadata
	} else {
		n.Metadata = emptyMetadata
	}
	n.CreatedAt = svc.nowFunc().UTC()
	ns, err := svc.repo.CreateNotifications(ctx, n)
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	return ns[0], nil
}

// Send creates the notification described by `nn` for each of its users.
func (svc *Service) Send(ctx context.Context, actor user.User, nn NewNotification) ([]Notification, error) {
	if !actor.IsStaff() {
		return nil, errCannotSend
	}
	if err := nn.Validate(svc.validate); err != nil {
		return nil, err
	}

	now := svc.nowFunc().UTC()
	ns := make([]Notification, 0, len(nn.UserIDs))
	for _, id := range nn.UserIDs {
		ns = append(ns, Notification{
			UserID:     id,
			Type:       nn.Type,
			Title:      nn.Title,
			Message:    nn.Message,
			Priority:   nn.Priority,
			ActionURL:  nn.ActionURL,
			ActionText: nn.ActionText,
			Metadata:   nn.Metadata,
			ExpiresAt:  nn.ExpiresAt,
			CreatedAt:  now,
		})
	}
	ns, err := svc.repo.CreateNotifications(ctx, ns...)
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications")
	}
	return ns, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, actor.ID, filter)
}

// Get returns a notification of the actor and marks it read.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, actor.ID, id)
	if err != nil {
		return Notification{}, err
	}
	if !n.IsRead {
		now := svc.nowFunc().UTC()
		if _, err = svc.repo.MarkRead(ctx, actor.ID, []string{n.ID}, now); err != nil {
			return Notification{}, errors.Wrap(err, "marking notification read")
		}
		n.IsRead, n.ReadAt = true, &now
	}
	return n, nil
}

func (svc *Service) MarkRead(ctx context.Context, actor user.User, req IDsRequest) (int, error) {
	if err := svc.validate.Struct(req); err != nil {
		return 0, err
	}
	return svc.repo.MarkRead(ctx, actor.ID, req.IDs, svc.nowFunc().UTC())
}

func (svc *Service) MarkAllRead(ctx context.Context, actor user.User) (int, error) {
	return svc.repo.MarkRead(ctx, actor.ID, nil, svc.nowFunc().UTC())
}

func (svc *Service) Archive(ctx context.Context, actor user.User, req IDsRequest) (int, error) {
	if err := svc.validate.Struct(req); err != nil {
		return 0, err
	}
	return svc.repo.Archive(ctx, actor.ID, req.IDs)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, req IDsRequest) (int, error) {
	if err := svc.validate.Struct(req); err != nil {
		return 0, err
	}
	return svc.repo.DeleteNotifications(ctx, actor.ID, req.IDs)
}

func (svc *Service) Stats(ctx context.Context, actor user.User) (Stats, error) {
	return svc.repo.NotificationStats(ctx, actor.ID)
}

func (svc *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	stats, err := svc.repo.NotificationStats(ctx, userID)
	if err != nil {
		return 0, err
	}
	return stats.Unread, nil
}

// PurgeExpired deletes the expired notifications of every user.
func (svc *Service) PurgeExpired(ctx context.Context) (int, error) {
	return svc.repo.DeleteExpired(ctx, svc.nowFunc().UTC())
}
