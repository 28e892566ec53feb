package submission

import (
	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

var (
	ErrNotEditable  = core.NewStateError("only pending submissions can be changed by their owner")
	errCannotEdit   = core.NewPermissionError("you cannot edit this submission")
	errCannotDelete = core.NewPermissionError("you cannot delete this submission")
)

// EditPermission checks that actor may edit s. Faculty & admins may edit anything;
// owners only while s is pending, in which case onlyPending is true.
func EditPermission(actor user.User, s Submission) (onlyPending bool, err error) {
	if actor.IsStaff() {
		return false, nil
	}
	return ownerWhilePending(actor, s, errCannotEdit)
}

// DeletePermission checks that actor may delete s. Admins may delete anything;
// owners only while s is pending, in which case onlyPending is true.
func DeletePermission(actor user.User, s Submission) (onlyPending bool, err error) {
	if actor.IsAdmin() {
		return false, nil
	}
	return ownerWhilePending(actor, s, errCannotDelete)
}

func ownerWhilePending(actor user.User, s Submission, denied error) (bool, error) {
	if s.OwnerID != actor.ID {
		return false, denied
	}
	if !s.IsPending() {
		return false, ErrNotEditable
	}
	return true, nil
}
