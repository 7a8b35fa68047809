package rbac

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/user"
)

var (
	// failure reasons, named and deliberately terse: callers surface these
	// verbatim without leaking which check tripped beyond the reason itself.
	ErrActorNotFound    = errors.New("user not found")
	ErrInsufficientRole = errors.New("insufficient permissions")
	ErrSchoolDenied     = errors.New("access denied to this school")
)

// ActorGetter resolves an actor profile by id.
type ActorGetter interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Access is the proof of a successful validation.
type Access struct {
	Actor user.User
}

// Validator checks that an actor may act on a target school.
// It is side-effect free and performs a single lookup per call.
type Validator struct {
	users ActorGetter
}

func NewValidator(users ActorGetter) *Validator {
	return &Validator{users: users}
}

// Validate resolves the actor and verifies role membership and school scope.
// required defaults to user.PrivilegedRoles. A RoleSuper actor is valid
// against any school id. Fails closed on any miss.
func (v *Validator) Validate(ctx context.Context, actorID, schoolID string, required ...user.Role) (Access, error) {
	if len(required) == 0 {
		required = user.PrivilegedRoles
	}

	actor, err := v.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Access{}, ErrActorNotFound
		}
		return Access{}, errors.Wrap(err, "resolving actor")
	}

	if !actor.Active() {
		return Access{}, ErrInsufficientRole
	}

	var allowed bool
	for _, role := range required {
		if actor.Role == role {
			allowed = true
			break
		}
	}
	if !allowed {
		return Access{}, ErrInsufficientRole
	}

	if actor.IsSuper() {
		return Access{Actor: actor}, nil
	}
	if actor.SchoolID != schoolID {
		return Access{}, ErrSchoolDenied
	}
	return Access{Actor: actor}, nil
}
