package inmemdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core/notification"
)

var _ notification.Repository = (*DB)(nil)

func copyNotification(n *notification.Notification) notification.Notification {
	cp := *n
	cp.Metadata = append(json.RawMessage(nil), n.Metadata...)
	cp.ExpiresAt = cloneTime(n.ExpiresAt)
	cp.ReadAt = cloneTime(n.ReadAt)
	return cp
}

func (db *DB) CreateNotifications(_ context.Context, ns ...notification.Notification) ([]notification.Notification, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, n := range ns {
		if _, ok := db.users[n.UserID]; !ok {
			return nil, notification.ErrRecipientNotFound
		}
	}
	created := make([]notification.Notification, 0, len(ns))
	for _, n := range ns {
		n := n
		n.ID = uuid.New().String()
		db.notifications[n.ID] = &n
		created = append(created, copyNotification(&n))
	}
	return created, nil
}

func (db *DB) QueryNotifications(_ context.Context, userID string, filter *notification.QueryFilter) ([]notification.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var f notification.QueryFilter
	if filter != nil {
		f = *filter
	}
	list := make([]notification.Notification, 0)
	for _, n := range db.notifications {
		switch {
		case n.UserID != userID,
			f.Type != "" && n.Type != f.Type,
			f.Priority != "" && n.Priority != f.Priority,
			f.IsRead != nil && n.IsRead != *f.IsRead,
			f.IsArchived == nil && n.IsArchived,
			f.IsArchived != nil && n.IsArchived != *f.IsArchived:
			continue
		}
		list = append(list, copyNotification(n))
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (db *DB) GetNotification(_ context.Context, userID, id string) (notification.Notification, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	n, ok := db.notifications[id]
	if !ok || n.UserID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}
	return copyNotification(n), nil
}

// userNotifications calls fn with the notifications of userID among `ids` (all when nil).
func (db *DB) userNotifications(userID string, ids []string, fn func(n *notification.Notification)) {
	if ids == nil {
		for _, n := range db.notifications {
			if n.UserID == userID {
				fn(n)
			}
		}
		return
	}
	for _, id := range ids {
		if n, ok := db.notifications[id]; ok && n.UserID == userID {
			fn(n)
		}
	}
}

func (db *DB) MarkRead(_ context.Context, userID string, ids []string, at time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	db.userNotifications(userID, ids, func(n *notification.Notification) {
		if !n.IsRead {
			readAt := at
			n.IsRead, n.ReadAt = true, &readAt
			count++
		}
	})
	return count, nil
}

func (db *DB) Archive(_ context.Context, userID string, ids []string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	db.userNotifications(userID, ids, func(n *notification.Notification) {
		if !n.IsArchived {
			n.IsArchived = true
			count++
		}
	})
	return count, nil
}

func (db *DB) DeleteNotifications(_ context.Context, userID string, ids []string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var doomed []string
	db.userNotifications(userID, ids, func(n *notification.Notification) {
		doomed = append(doomed, n.ID)
	})
	for _, id := range doomed {
		delete(db.notifications, id)
	}
	return len(doomed), nil
}

func (db *DB) NotificationStats(_ context.Context, userID string) (notification.Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stats := notification.Stats{
		ByType:     make(map[notification.Type]int),
		ByPriority: make(map[notification.Priority]int),
	}
	for _, n := range db.notifications {
		if n.UserID != userID {
			continue
		}
		stats.Total++
		if !n.IsRead {
			stats.Unread++
		}
		if n.IsArchived {
			stats.Archived++
		}
		stats.ByType[n.Type]++
		stats.ByPriority[n.Priority]++
	}
	return stats, nil
}

func (db *DB) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int
	for id, n := range db.notifications {
		if n.ExpiresAt != nil && n.ExpiresAt.Before(now) {
			delete(db.notifications, id)
			count++
		}
	}
	return count, nil
}
