package auth

import (
	"context"
	"errors"
)

type ctxKey int

const ctxIdentity ctxKey = iota

var ErrNoIdentity = errors.New("volunteer identity not in context")

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFrom(ctx context.Context) (Identity, error) {
	if id, ok := ctx.Value(ctxIdentity).(Identity); ok && id.VolunteerID != "" {
		return id, nil
	}
	return Identity{}, ErrNoIdentity
}
