package utils

import "context"

type contextKey string

const ownerIdContextKey contextKey = "owner_id"

func WithOwnerId(ctx context.Context, ownerId string) context.Context {
	return context.WithValue(ctx, ownerIdContextKey, ownerId)
}

func GetOwnerIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerIdContextKey).(string); ok {
		return v
	}
	return ""
}
