package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var _ user.Repository = (*DB)(nil)

func (db *DB) CheckUniqueness(_ context.Context, username, email string, excludedIDs ...string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range db.users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (db *DB) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr.ID = uuid.New().String()
	db.users[usr.ID] = &usr
	return usr, nil
}

func matchesUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		found := false
		for _, fld := range []string{usr.FirstName, usr.LastName, usr.Username, usr.Email} {
			if strings.Contains(strings.ToLower(fld), search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		found := false
		for _, role := range filter.Roles {
			if usr.Role == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func cmpUsers(a, b user.User, field string) int {
	switch field {
	case "username":
		return cmpString(a.Username, b.Username)
	case "email":
		return cmpString(a.Email, b.Email)
	case "first_name":
		return cmpString(a.FirstName, b.FirstName)
	case "last_name":
		return cmpString(a.LastName, b.LastName)
	case "role":
		return cmpString(string(a.Role), string(b.Role))
	case "created_at":
		return cmpTime(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return cmpTimePtr(a.LastLogin, b.LastLogin)
	}
	return 0
}

func (db *DB) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]user.User, 0, len(db.users))
	for _, usr := range db.users {
		if matchesUser(*usr, filter) {
			users = append(users, *usr)
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return less(ordering, func(field string) int { return cmpUsers(users[i], users[j], field) })
	})
	return users, nil
}

func (db *DB) GetUserByID(_ context.Context, id string) (user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if usr, ok := db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (db *DB) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (db *DB) GetUserByUsernameOrEmail(_ context.Context, uname string) (user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.users {
		if usr.Username == uname || usr.Email == uname {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (db *DB) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orig, ok := db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.CreatedAt = orig.CreatedAt
	usr.LastLogin = cloneTime(orig.LastLogin)
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	*orig = usr
	return usr, nil
}

func (db *DB) SetLastLogin(_ context.Context, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, ok := db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = &at
	return nil
}

// DeleteUsers deletes the users with everything they own.
func (db *DB) DeleteUsers(_ context.Context, ids ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range ids {
		if _, ok := db.users[id]; !ok {
			continue
		}
		delete(db.users, id)
		delete(db.profiles, id)
		for aid, a := range db.achievements {
			if a.OwnerID == id {
				delete(db.achievements, aid)
			}
		}
		for cid, c := range db.certificates {
			if c.OwnerID == id {
				delete(db.certificates, cid)
			}
		}
		for vid, v := range db.activities {
			if v.OwnerID == id {
				delete(db.activities, vid)
			}
		}
		for nid, n := range db.notifications {
			if n.UserID == id {
				delete(db.notifications, nid)
			}
		}
		for rid, r := range db.reports {
			if r.GeneratedBy == id {
				delete(db.reports, rid)
			}
		}
		for k := range db.likes {
			if k.userID == id {
				delete(db.likes, k)
			}
		}
	}
	return nil
}

func (db *DB) UserStats(_ context.Context, monthStart time.Time) (user.Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var stats user.Stats
	for _, usr := range db.users {
		stats.Total++
		if usr.IsActive {
			stats.Active++
		}
		switch usr.Role {
		case user.RoleStudent:
			stats.Students++
		case user.RoleFaculty:
			stats.Faculty++
		case user.RoleAdmin:
			stats.Admins++
		}
		if !usr.CreatedAt.Before(monthStart) {
			stats.NewThisMonth++
		}
	}
	return stats, nil
}
