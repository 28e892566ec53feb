package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var _ user.Repository = (*Store)(nil) // interface compliance check

const userColumns = `id, email, username, first_name, last_name, role, student_id, department, phone,
	is_active, is_verified, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Username     string     `db:"username"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Role         string     `db:"role"`
	StudentID    string     `db:"student_id"`
	Department   string     `db:"department"`
	Phone        string     `db:"phone"`
	IsActive     bool       `db:"is_active"`
	IsVerified   bool       `db:"is_verified"`
	PasswordHash null.Bytes `db:"password_hash"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		Username:     usr.Username,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Role:         string(usr.Role),
		StudentID:    usr.StudentID,
		Department:   usr.Department,
		Phone:        usr.Phone,
		IsActive:     usr.IsActive,
		IsVerified:   usr.IsVerified,
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.TimeFromPtr(usr.LastLogin),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Email:        r.Email,
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         user.Role(r.Role),
		StudentID:    r.StudentID,
		Department:   r.Department,
		Phone:        r.Phone,
		IsActive:     r.IsActive,
		IsVerified:   r.IsVerified,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Ptr(),
	}
}

func (s *Store) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error {
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := `SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id::text = ANY($3))`
	if err := s.db.SelectContext(ctx, &taken, q, username, email, pq.Array(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, t := range taken {
		if t.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :email, :username, :first_name, :last_name, :role,
		:student_id, :department, :phone, :is_active, :is_verified, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := s.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		if pqCode(err) == pqUniqueViolation {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (s *Store) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		// users with names, username or email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(first_name ILIKE ? OR last_name ILIKE ? OR username ILIKE ? OR email ILIKE ?)", val, val, val, val)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roles = append(roles, string(role))
			}
			w.add("role = ANY(?)", pq.Array(roles))
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q := "SELECT " + userColumns + " FROM users" + w.String() + orderBy(ordering, "", "created_at DESC")
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (s *Store) getUser(ctx context.Context, cond string, arg interface{}) (user.User, error) {
	var r userRow
	if err := s.db.GetContext(ctx, &r, "SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", arg); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "getting user")
	}
	return r.toUser(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getUser(ctx, "email = $1", email)
}

func (s *Store) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	return s.getUser(ctx, "(username = $1 OR email = $1)", uname)
}

// UpdateUser never writes created_at & last_login, nor an empty password hash.
func (s *Store) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	q := `UPDATE users SET email = :email, username = :username, first_name = :first_name, last_name = :last_name,
		role = :role, student_id = :student_id, department = :department, phone = :phone, is_active = :is_active,
		is_verified = :is_verified, password_hash = COALESCE(:password_hash, password_hash), updated_at = :updated_at
		WHERE id = :id`
	res, err := s.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := rowsAffected(res, "updating user"); err != nil {
		return user.User{}, err
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return s.GetUserByID(ctx, usr.ID)
}

func (s *Store) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return user.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "UPDATE users SET last_login = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	n, err := rowsAffected(res, "setting last login")
	if err == nil && n == 0 {
		return user.ErrNotFound
	}
	return err
}

// DeleteUsers relies on ON DELETE CASCADE for everything the users own.
func (s *Store) DeleteUsers(ctx context.Context, ids ...string) error {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (s *Store) UserStats(ctx context.Context, monthStart time.Time) (user.Stats, error) {
	var stats struct {
		Total        int `db:"total"`
		Active       int `db:"active"`
		Students     int `db:"students"`
		Faculty      int `db:"faculty"`
		Admins       int `db:"admins"`
		NewThisMonth int `db:"new_this_month"`
	}
	q := `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE is_active) AS active,
		COUNT(*) FILTER (WHERE role = 'student') AS students,
		COUNT(*) FILTER (WHERE role = 'faculty') AS faculty,
		COUNT(*) FILTER (WHERE role = 'admin') AS admins,
		COUNT(*) FILTER (WHERE created_at >= $1) AS new_this_month
		FROM users`
	if err := s.db.GetContext(ctx, &stats, q, monthStart.UTC()); err != nil {
		return user.Stats{}, errors.Wrap(err, "computing user stats")
	}
	return user.Stats(stats), nil
}
