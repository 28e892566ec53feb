package submission

import "github.com/Gokulakrishnan610/chicken-dinner/core/user"

// Scope is the set of submissions a user may see:
// everything, or their own plus the approved public ones.
// Stores translate it to `user_id = $viewer OR (is_public AND status = 'approved')`.
type Scope struct {
	All      bool
	ViewerID string
}

// ScopeFor maps each role to its scope. Unknown roles only see approved public submissions.
func ScopeFor(actor user.User) Scope {
	switch actor.Role {
	case user.RoleAdmin, user.RoleFaculty:
		return Scope{All: true}
	case user.RoleStudent:
		return Scope{ViewerID: actor.ID}
	default:
		return Scope{}
	}
}

func (sc Scope) Allows(s Submission) bool {
	if sc.All {
		return true
	}
	return (sc.ViewerID != "" && s.OwnerID == sc.ViewerID) || (s.IsPublic && s.Status == StatusApproved)
}

// VisibleTo keeps the submissions `actor` may see, in their original order.
func VisibleTo(actor user.User, subs []Submission) []Submission {
	scope := ScopeFor(actor)
	visible := make([]Submission, 0, len(subs))
	for _, s := range subs {
		if scope.Allows(s) {
			visible = append(visible, s)
		}
	}
	return visible
}
