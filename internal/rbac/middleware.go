package rbac

import (
	"encoding/json"
	"net/http"
)

func forbid(w http.ResponseWriter, perm string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "forbidden", "message": "missing permission " + perm},
	})
}

// guard admits a request when the caller's role satisfies allowed under DefaultPolicy.
func guard(denied string, allowed func(role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || !allowed(id.Role) {
				forbid(w, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return guard(perm, func(role string) bool { return DefaultPolicy.Allows(role, perm) })
}

// RequireAny enforces that the role has at least one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return guard(perms[0], func(role string) bool { return DefaultPolicy.AllowsAny(role, perms...) })
}
