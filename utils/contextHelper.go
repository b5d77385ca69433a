package utils

import (
	"context"

	"github.com/mmdatafocus/pos_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyRole          = appctx.ContextKeyRole
	ContextKeyStoreId       = appctx.ContextKeyStoreId
	ContextKeyPermissions   = appctx.ContextKeyPermissions
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

// Identity is the verified caller supplied by the authentication gate.
type Identity struct {
	UserId      string
	Role        string
	StoreId     string
	Permissions []string
}

func (i Identity) HasPermission(permission string) bool {
	for _, p := range i.Permissions {
		if p == permission || p == "*" {
			return true
		}
	}
	return false
}

func SetIdentityInContext(ctx context.Context, identity Identity) context.Context {
	ctx = appctx.Set(ctx, ContextKeyUserId, identity.UserId)
	ctx = appctx.Set(ctx, ContextKeyRole, identity.Role)
	ctx = appctx.Set(ctx, ContextKeyStoreId, identity.StoreId)
	return appctx.Set(ctx, ContextKeyPermissions, identity.Permissions)
}

// GetIdentityFromContext returns the caller identity; ok is false when no user id is present.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	userId, ok := appctx.GetString(ctx, ContextKeyUserId)
	if !ok || userId == "" {
		return Identity{}, false
	}
	role, _ := appctx.GetString(ctx, ContextKeyRole)
	storeId, _ := appctx.GetString(ctx, ContextKeyStoreId)
	permissions, _ := appctx.GetStrings(ctx, ContextKeyPermissions)
	return Identity{
		UserId:      userId,
		Role:        role,
		StoreId:     storeId,
		Permissions: permissions,
	}, true
}

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
