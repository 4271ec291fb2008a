package license

import (
	"context"
	"strings"
)

type adminKey struct{}

// WithAdmin marks ctx as carrying an authenticated administrator.
func WithAdmin(ctx context.Context, name string) context.Context {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "admin"
	}
	return context.WithValue(ctx, adminKey{}, name)
}

// AdminFromContext returns the administrator name stored by WithAdmin.
func AdminFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(adminKey{}).(string)
	return name, ok && name != ""
}

func requireAdmin(ctx context.Context) (string, error) {
	name, ok := AdminFromContext(ctx)
	if !ok {
		return "", ErrUnauthorized
	}
	return name, nil
}
