package user

import "github.com/pkg/errors"

// Role is one of RoleStudent, RoleFaculty or RoleAdmin.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

var (
	AllRoles = []Role{RoleStudent, RoleFaculty, RoleAdmin}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Faculty", Value: RoleFaculty},
		{Name: "Admin", Value: RoleAdmin},
	}

	ErrInvalidRole = errors.New("invalid role")
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", errors.Wrap(ErrInvalidRole, s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// Priority ranks roles: a user may only grant roles up to their own priority.
func (r Role) Priority() int {
	switch r {
	case RoleAdmin:
		return 30
	case RoleFaculty:
		return 20
	case RoleStudent:
		return 10
	}
	return 0
}

func (r Role) String() string { return string(r) }
