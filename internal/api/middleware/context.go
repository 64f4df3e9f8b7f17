package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	keyPrefixKey contextKey = "key_prefix"
	keyScopesKey contextKey = "api_key_scopes"
)

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, keyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(keyScopesKey).([]string)
	return scopes
}

// WithKeyPrefix injects a key prefix into the request context (for testing).
func WithKeyPrefix(r *http.Request, prefix string) *http.Request {
	return r.WithContext(setKeyPrefix(r.Context(), prefix))
}

// WithScopes injects API key scopes into the request context (for testing).
func WithScopes(r *http.Request, scopes []string) *http.Request {
	return r.WithContext(setScopes(r.Context(), scopes))
}
