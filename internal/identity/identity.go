// Package identity resolves the authenticated user behind a request. Token
// issuance lives upstream; by the time a request reaches the backend the
// gateway has already verified the caller.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when no user can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// Provider resolves the current user id from a request context.
type Provider interface {
	Resolve(ctx context.Context) (string, error)
}

type ctxKey struct{}

// WithUser stores userID on ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// ContextProvider reads the user stored by WithUser.
type ContextProvider struct{}

func (ContextProvider) Resolve(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(ctxKey{}).(string)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// Fixed always resolves to the same user. Used in noauth mode and tests.
type Fixed string

func (f Fixed) Resolve(context.Context) (string, error) {
	if f == "" {
		return "", ErrUnauthenticated
	}
	return string(f), nil
}

// Extractor pulls a user id out of an incoming request.
type Extractor interface {
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor trusts a gateway-injected header.
type HeaderExtractor struct {
	Header string
}

func (h HeaderExtractor) Extract(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get(h.Header))
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

// FixedExtractor maps every request to one synthetic user.
type FixedExtractor struct {
	UserID string
}

func (f FixedExtractor) Extract(*http.Request) (string, error) {
	if f.UserID == "" {
		return "", ErrUnauthenticated
	}
	return f.UserID, nil
}
