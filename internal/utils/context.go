package utils

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type CustomContext struct {
	AppSource string
	Tenant    string
	UserId    string
	UserEmail string
	AccountId string
}

type customContextKey struct{}

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey{}, customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey{}).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetTenantFromContext(ctx context.Context) string {
	return GetContext(ctx).Tenant
}

func GetUserIdFromContext(ctx context.Context) string {
	return GetContext(ctx).UserId
}

func GetUserEmailFromContext(ctx context.Context) string {
	return GetContext(ctx).UserEmail
}

func GetAccountIdFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountId
}

// copies the current custom context so that sibling goroutines do not share a mutable value
func cloneContext(ctx context.Context) *CustomContext {
	c := *GetContext(ctx)
	return &c
}

func SetAppSourceInContext(ctx context.Context, appSource string) context.Context {
	customContext := cloneContext(ctx)
	customContext.AppSource = appSource
	return WithCustomContext(ctx, customContext)
}

func SetTenantInContext(ctx context.Context, tenant string) context.Context {
	customContext := cloneContext(ctx)
	customContext.Tenant = tenant
	return WithCustomContext(ctx, customContext)
}

func SetAccountInContext(ctx context.Context, tenant, accountId string) context.Context {
	customContext := cloneContext(ctx)
	customContext.Tenant = tenant
	customContext.AccountId = accountId
	return WithCustomContext(ctx, customContext)
}

func ValidateTenant(ctx context.Context) error {
	if GetTenantFromContext(ctx) == "" {
		return errors.New("tenant is missing")
	}
	return nil
}

// Request headers that carry the calling user.
var (
	TenantHeaders    = []string{"X-Openline-TENANT", "tenant", "TenantName"}
	UserIdHeaders    = []string{"X-Openline-USER-ID", "UserId"}
	UserEmailHeaders = []string{"X-Openline-USERNAME", "UserEmail"}
)

func WithCustomContextFromGinRequest(c *gin.Context, appSource string) context.Context {
	customContext := &CustomContext{
		AppSource: appSource,
		Tenant:    c.GetString("TenantName"),
		UserId:    c.GetString("UserId"),
		UserEmail: c.GetString("UserEmail"),
	}
	return WithCustomContext(c.Request.Context(), customContext)
}
