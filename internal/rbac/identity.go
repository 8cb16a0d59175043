package rbac

import "context"

const (
	RoleLearner = "learner"
	RolePayment = "payment" // enrollment-creating collaborator
	RoleAdmin   = "admin"
)

// Identity is the authenticated caller of a request, taken from the bearer token.
type Identity struct {
	Subject string
	Role    string
}

func (id Identity) Admin() bool { return id.Role == RoleAdmin }

// Enroller reports whether the caller may enroll learners other than itself.
func (id Identity) Enroller() bool { return id.Role == RolePayment }

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by WithIdentity. ok is false for
// unauthenticated requests.
func IdentityFrom(ctx context.Context) (id Identity, ok bool) {
	id, ok = ctx.Value(identityKey{}).(Identity)
	return id, ok && id.Subject != ""
}
