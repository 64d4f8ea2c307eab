package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// UserIDHeader carries the user id set by the upstream context provider.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// WithUserID returns a context carrying the user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the user id stored by RequireUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// UserIDQueryParam carries the user id for clients that cannot set headers,
// such as browser websockets.
const UserIDQueryParam = "user_id"

// ErrMissingUser is returned by ResolveUserID when the request names no user.
var ErrMissingUser = errors.New("missing user context")

// MissingUserMessage is the response body for requests without a user.
const MissingUserMessage = "Missing user context"

// ResolveUserID reads the user id from the header, falling back to the query
// parameter. The result is a canonical UUID.
func ResolveUserID(r *http.Request) (string, error) {
	id := r.Header.Get(UserIDHeader)
	if id == "" {
		id = r.URL.Query().Get(UserIDQueryParam)
	}
	if id == "" {
		return "", ErrMissingUser
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", invalid("Invalid user id")
	}
	return parsed.String(), nil
}

// RequireUser rejects requests without a valid user id and stores the id in
// the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ResolveUserID(r)
		if errors.Is(err, ErrMissingUser) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: MissingUserMessage})
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

// userID returns the request's user id. RequireUser guarantees it is present
// on user-scoped routes.
func userID(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}
