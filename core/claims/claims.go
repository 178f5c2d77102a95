// Package claims carries the authenticated identity through the request
// context. It is set by the auth middleware and read by every flow that
// needs the signed-in user.
package claims

import (
	"context"
	"errors"
)

type Claims struct {
	Subject  string
	Email    string
	FullName string
	Phone    string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}
