package sqlxrepos

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
)

var _ notification.Repository = (*Store)(nil)

const notificationColumns = `id, user_id, type, title, message, priority, is_read, is_archived, action_url, action_text,
	metadata, expires_at, created_at, read_at`

type notificationRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Type       string         `db:"type"`
	Title      string         `db:"title"`
	Message    string         `db:"message"`
	Priority   string         `db:"priority"`
	IsRead     bool           `db:"is_read"`
	IsArchived bool           `db:"is_archived"`
	ActionURL  string         `db:"action_url"`
	ActionText string         `db:"action_text"`
	Metadata   types.JSONText `db:"metadata"`
	ExpiresAt  null.Time      `db:"expires_at"`
	CreatedAt  time.Time      `db:"created_at"`
	ReadAt     null.Time      `db:"read_at"`
}

func jsonObject(raw json.RawMessage) types.JSONText {
	if len(raw) == 0 {
		return types.JSONText("{}")
	}
	return types.JSONText(raw)
}

func toNotificationRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:         n.ID,
		UserID:     n.UserID,
		Type:       string(n.Type),
		Title:      n.Title,
		Message:    n.Message,
		Priority:   string(n.Priority),
		IsRead:     n.IsRead,
		IsArchived: n.IsArchived,
		ActionURL:  n.ActionURL,
		ActionText: n.ActionText,
		Metadata:   jsonObject(n.Metadata),
		ExpiresAt:  null.TimeFromPtr(n.ExpiresAt),
		CreatedAt:  n.CreatedAt.UTC(),
		ReadAt:     null.TimeFromPtr(n.ReadAt),
	}
}

func (r notificationRow) toNotification() notification.Notification {
	return notification.Notification{
		ID:         r.ID,
		UserID:     r.UserID,
		Type:       notification.Type(r.Type),
		Title:      r.Title,
		Message:    r.Message,
		Priority:   notification.Priority(r.Priority),
		IsRead:     r.IsRead,
		IsArchived: r.IsArchived,
		ActionURL:  r.ActionURL,
		ActionText: r.ActionText,
		Metadata:   json.RawMessage(r.Metadata),
		ExpiresAt:  r.ExpiresAt.Ptr(),
		CreatedAt:  r.CreatedAt.UTC(),
		ReadAt:     r.ReadAt.Ptr(),
	}
}

// CreateNotifications inserts every notification or none.
func (s *Store) CreateNotifications(ctx context.Context, ns ...notification.Notification) ([]notification.Notification, error) {
	created := make([]notification.Notification, 0, len(ns))
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		q := `INSERT INTO notifications (` + notificationColumns + `) VALUES (:id, :user_id, :type, :title, :message,
			:priority, :is_read, :is_archived, :action_url, :action_text, :metadata, :expires_at, :created_at, :read_at)`
		for _, n := range ns {
			if !validID(n.UserID) {
				return notification.ErrRecipientNotFound
			}
			n.ID = uuid.New().String()
			if _, err := tx.NamedExecContext(ctx, q, toNotificationRow(n)); err != nil {
				if pqCode(err) == pqForeignKeyViolation {
					return notification.ErrRecipientNotFound
				}
				return errors.Wrap(err, "inserting notification")
			}
			if len(n.Metadata) == 0 {
				n.Metadata = json.RawMessage("{}")
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) QueryNotifications(ctx context.Context, userID string, filter *notification.QueryFilter) ([]notification.Notification, error) {
	var w where
	w.add("user_id::text = ?", userID)
	if filter != nil {
		if filter.Type != "" {
			w.add("type = ?", string(filter.Type))
		}
		if filter.Priority != "" {
			w.add("priority = ?", string(filter.Priority))
		}
		if filter.IsRead != nil {
			w.add("is_read = ?", *filter.IsRead)
		}
	}
	if filter != nil && filter.IsArchived != nil {
		w.add("is_archived = ?", *filter.IsArchived)
	} else {
		w.add("NOT is_archived")
	}

	q := "SELECT " + notificationColumns + " FROM notifications" + w.String() + " ORDER BY created_at DESC"
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	list := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toNotification())
	}
	return list, nil
}

func (s *Store) GetNotification(ctx context.Context, userID, id string) (notification.Notification, error) {
	if !validID(id) {
		return notification.Notification{}, notification.ErrNotFound
	}
	var r notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications WHERE id = $1 AND user_id::text = $2"
	if err := s.db.GetContext(ctx, &r, q, id, userID); err != nil {
		return notification.Notification{}, trapNoRows(err, notification.ErrNotFound, "getting notification")
	}
	return r.toNotification(), nil
}

// userNotifications restricts a statement to the notifications of userID among `ids` (all when nil).
// Its placeholders follow the statement's `n` first ones.
func userNotifications(userID string, ids []string, n int) (string, []interface{}) {
	cond := " WHERE user_id::text = $" + strconv.Itoa(n+1)
	args := []interface{}{userID}
	if ids != nil {
		cond += " AND id::text = ANY($" + strconv.Itoa(n+2) + ")"
		args = append(args, pq.Array(validIDs(ids)))
	}
	return cond, args
}

func (s *Store) execCount(ctx context.Context, msg, q string, args ...interface{}) (int, error) {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return rowsAffected(res, msg)
}

func (s *Store) MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int, error) {
	cond, args := userNotifications(userID, ids, 1)
	q := "UPDATE notifications SET is_read = true, read_at = $1" + cond + " AND NOT is_read"
	return s.execCount(ctx, "marking notifications read", q, append([]interface{}{at.UTC()}, args...)...)
}

func (s *Store) Archive(ctx context.Context, userID string, ids []string) (int, error) {
	cond, args := userNotifications(userID, ids, 0)
	q := "UPDATE notifications SET is_archived = true" + cond + " AND NOT is_archived"
	return s.execCount(ctx, "archiving notifications", q, args...)
}

func (s *Store) DeleteNotifications(ctx context.Context, userID string, ids []string) (int, error) {
	cond, args := userNotifications(userID, ids, 0)
	return s.execCount(ctx, "deleting notifications", "DELETE FROM notifications"+cond, args...)
}

func (s *Store) NotificationStats(ctx context.Context, userID string) (notification.Stats, error) {
	stats := notification.Stats{
		ByType:     make(map[notification.Type]int),
		ByPriority: make(map[notification.Priority]int),
	}
	var groups []struct {
		Type     string `db:"type"`
		Priority string `db:"priority"`
		Total    int    `db:"total"`
		Unread   int    `db:"unread"`
		Archived int    `db:"archived"`
	}
	q := `SELECT type, priority, COUNT(*) AS total,
		COUNT(*) FILTER (WHERE NOT is_read) AS unread,
		COUNT(*) FILTER (WHERE is_archived) AS archived
		FROM notifications WHERE user_id::text = $1
		GROUP BY type, priority`
	if err := s.db.SelectContext(ctx, &groups, q, userID); err != nil {
		return notification.Stats{}, errors.Wrap(err, "computing notification stats")
	}
	for _, g := range groups {
		stats.Total += g.Total
		stats.Unread += g.Unread
		stats.Archived += g.Archived
		stats.ByType[notification.Type(g.Type)] += g.Total
		stats.ByPriority[notification.Priority(g.Priority)] += g.Total
	}
	return stats, nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	q := "DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1"
	return s.execCount(ctx, "deleting expired notifications", q, now.UTC())
}
