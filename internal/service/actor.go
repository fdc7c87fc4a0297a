package service

import "github.com/iliyamo/line-event-reservation/internal/model"

// Actor is the authenticated caller of a lifecycle operation.  Privilege
// is passed explicitly with every call rather than looked up ambiently.
type Actor struct {
	UserID string
	Role   model.Role
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool { return a.UserID != "" }

// IsAdmin reports whether the actor may act on other users' reservations.
func (a Actor) IsAdmin() bool { return a.Authenticated() && a.Role == model.RoleAdmin }

// CanManage reports whether the actor owns the reservation or is an admin.
func (a Actor) CanManage(r *model.Reservation) bool {
	return a.IsAdmin() || (a.Authenticated() && r.UserID == a.UserID)
}
