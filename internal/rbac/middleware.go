package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stocksavvy/stocksavvy/internal/platform/httpx"
	"github.com/stocksavvy/stocksavvy/internal/shared"
)

// Middleware guards routes with permission checks against the session user.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny lets the request through when the user holds at least one perm.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := newPermSet(perms)
	return m.guard(func(granted permSet) bool { return granted.hasAny(required) }, len(required) == 0)
}

// RequireAll lets the request through only when the user holds every perm.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := newPermSet(perms)
	return m.guard(func(granted permSet) bool { return granted.hasAll(required) }, len(required) == 0)
}

// guard answers 401 for anonymous or unknown users and 403 when allowed
// rejects the user's permissions. An open guard passes everything.
func (m Middleware) guard(allowed func(permSet) bool, open bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if open {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := shared.UserIDFromContext(r.Context())
			if userID == "" {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			perms, err := m.Service.EffectivePermissions(r.Context(), userID)
			switch {
			case errors.Is(err, ErrNotFound):
				httpx.RespondError(w, httpx.ErrUnauthorized)
			case err != nil:
				m.log().Error("resolve permissions", slog.String("user_id", userID), slog.Any("error", err))
				httpx.RespondError(w, err)
			case !allowed(newPermSet(perms)):
				httpx.RespondError(w, httpx.ErrForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func (m Middleware) log() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// permSet holds lower-cased permission names.
type permSet map[string]struct{}

func newPermSet(perms []string) permSet {
	set := make(permSet, len(perms))
	for _, p := range perms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

func (s permSet) has(perm string) bool {
	_, ok := s[strings.ToLower(perm)]
	return ok
}

func (s permSet) hasAny(required permSet) bool {
	for p := range required {
		if s.has(p) {
			return true
		}
	}
	return len(required) == 0
}

func (s permSet) hasAll(required permSet) bool {
	for p := range required {
		if !s.has(p) {
			return false
		}
	}
	return true
}
