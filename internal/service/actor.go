package service

import (
	"context"

	"astro-starter/internal/domain"
)

type actorKey struct{}

// WithActor asocia al contexto el login que ejecuta la operación, usado en los campos de auditoría.
func WithActor(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, actorKey{}, login)
}

func actorFrom(ctx context.Context) string {
	if login, ok := ctx.Value(actorKey{}).(string); ok && login != "" {
		return login
	}
	return domain.SystemAccount
}
