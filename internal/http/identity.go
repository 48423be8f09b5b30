package http

import (
	"context"
	"net/http"
	"strings"

	"tally/internal/challenge"
	"tally/internal/core"
)

type actorKey struct{}

// requireIdentity reads the caller from headers set by the upstream auth
// proxy. Requests without a user id are rejected with 401.
func requireIdentity(userHeader, roleHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userHeader))
			if userID == "" {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "missing "+userHeader+" header", "")
				return
			}
			actor := challenge.Actor{UserID: userID, Role: core.ParseRole(r.Header.Get(roleHeader))}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
		})
	}
}

func actorFrom(r *http.Request) challenge.Actor {
	a, _ := r.Context().Value(actorKey{}).(challenge.Actor)
	return a
}
