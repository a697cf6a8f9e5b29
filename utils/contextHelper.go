package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/rentroll_backend/appctx"
)

var (
	ContextKeyPrincipalUID   = appctx.ContextKeyPrincipalUID
	ContextKeyPrincipalEmail = appctx.ContextKeyPrincipalEmail
	ContextKeyResolvedUserId = appctx.ContextKeyResolvedUserId
	ContextKeyRole           = appctx.ContextKeyRole
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId
	ContextKeyIncludeDeleted = appctx.ContextKeyIncludeDeleted
)

func GetPrincipalUIDFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyPrincipalUID)
}

func GetPrincipalEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyPrincipalEmail)
}

func GetResolvedUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyResolvedUserId)
}

func GetRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetPrincipalUIDInContext(ctx context.Context, uid string) context.Context {
	return appctx.Set(ctx, ContextKeyPrincipalUID, uid)
}

func SetPrincipalEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyPrincipalEmail, email)
}

func SetResolvedUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyResolvedUserId, userId)
}

func SetRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetIncludeDeletedInContext(ctx context.Context, include bool) context.Context {
	return appctx.Set(ctx, ContextKeyIncludeDeleted, include)
}
