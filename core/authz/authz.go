// Package authz guards domain operations: every operation declares the Capability it requires
// and calls Check with the acting Identity before touching any data.
package authz

import "github.com/trezcool/coachdesk/core"

// Roles
const (
	RoleCoach   Role = "coach"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleCoach, RoleStudent}

type Role string

func (r Role) IsValid() bool {
	return r == RoleCoach || r == RoleStudent
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	ID   string
	Role Role
}

func (id Identity) IsZero() bool          { return id.ID == "" }
func (id Identity) IsCoach() bool         { return id.Role == RoleCoach }
func (id Identity) IsStudent() bool       { return id.Role == RoleStudent }
func (id Identity) Is(userID string) bool { return !id.IsZero() && id.ID == userID }

// Capability declares who may perform an operation on a target.
type Capability struct {
	Roles []Role              // empty: any authenticated identity
	Owner func(Identity) bool // nil: no ownership check
}

// Check evaluates c for id: authentication, then role, then ownership. The first failure is returned.
func Check(id Identity, c Capability) error {
	if id.IsZero() || !id.Role.IsValid() {
		return core.NewAuthorizationError(core.ReasonUnauthenticated)
	}
	if len(c.Roles) > 0 && !hasRole(id, c.Roles) {
		return core.NewAuthorizationError(core.ReasonWrongRole)
	}
	if c.Owner != nil && !c.Owner(id) {
		return core.NewAuthorizationError(core.ReasonNotOwner)
	}
	return nil
}

func hasRole(id Identity, roles []Role) bool {
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// Authenticated allows any identity.
func Authenticated() Capability { return Capability{} }

// CoachOnly allows any coach.
func CoachOnly() Capability { return Capability{Roles: []Role{RoleCoach}} }

// StudentOnly allows any student.
func StudentOnly() Capability { return Capability{Roles: []Role{RoleStudent}} }

// OwningCoach allows the coach whose id is ownerID.
func OwningCoach(ownerID string) Capability {
	return Capability{Roles: []Role{RoleCoach}, Owner: IsUser(ownerID)}
}

// TargetStudent allows the student whose id is studentID.
func TargetStudent(studentID string) Capability {
	return Capability{Roles: []Role{RoleStudent}, Owner: IsUser(studentID)}
}

// Participant allows any identity whose id is one of userIDs.
func Participant(userIDs ...string) Capability {
	return Capability{Owner: func(id Identity) bool {
		for _, uid := range userIDs {
			if id.Is(uid) {
				return true
			}
		}
		return false
	}}
}

func IsUser(userID string) func(Identity) bool {
	return func(id Identity) bool { return id.Is(userID) }
}
