package middleware

import (
	"context"
	"net/http"
	"strings"
)

type environmentContextKey struct{}

// Environment attaches the deployment environment name to the request
// context so the layout can flag non-production deployments.
func Environment(value string) func(http.Handler) http.Handler {
	name := strings.ToLower(strings.TrimSpace(value))
	if name == "" {
		name = "local"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), environmentContextKey{}, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EnvironmentFromContext returns the environment name registered for the
// current request, defaulting to "local".
func EnvironmentFromContext(ctx context.Context) string {
	if ctx == nil {
		return "local"
	}
	if value, ok := ctx.Value(environmentContextKey{}).(string); ok && value != "" {
		return value
	}
	return "local"
}
