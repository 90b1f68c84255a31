// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"kb-rag-api/pkg/logger"
)

// TenantContextKey 租户上下文 Key 类型
type TenantContextKey string

const (
	// TenantIDKey 租户 ID 上下文 Key
	TenantIDKey TenantContextKey = "tenant_id"
	// UserIDKey 用户 ID 上下文 Key
	UserIDKey TenantContextKey = "user_id"
)

// TenantConfig 租户中间件配置
type TenantConfig struct {
	// HeaderName 从 Header 中获取租户 ID 的字段名
	HeaderName string
	// DefaultTenantID 默认租户 ID（仅开发环境）
	DefaultTenantID string
}

// Tenant 多租户上下文中间件。
// 租户 ID 的来源优先级：JWT 声明 > 请求 Header > 配置默认值。
// 解析出的租户 ID 同时进入 request context，供 Repository 层的
// PostgreSQL RLS 与向量检索使用。
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Tenant-ID"
	}

	return func(c *gin.Context) {
		// Auth 中间件解析 JWT 后设置
		tenantID := c.GetString("tenant_id")

		if tenantID == "" {
			tenantID = c.GetHeader(cfg.HeaderName)
		}
		if tenantID == "" && cfg.DefaultTenantID != "" {
			tenantID = cfg.DefaultTenantID
		}

		if tenantID != "" {
			c.Set("tenant_id", tenantID)

			ctx := context.WithValue(c.Request.Context(), TenantIDKey, tenantID)
			ctx = logger.WithContext(ctx, logger.TenantIDKey, tenantID)
			if userID := c.GetString("user_id"); userID != "" {
				ctx = context.WithValue(ctx, UserIDKey, userID)
			}
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// GetTenantID 从 context 中获取租户 ID
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(TenantIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetTenantIDFromGin 从 Gin Context 中获取租户 ID
func GetTenantIDFromGin(c *gin.Context) string {
	return c.GetString("tenant_id")
}

// GetUserIDFromGin 从 Gin Context 中获取用户 ID
func GetUserIDFromGin(c *gin.Context) string {
	return c.GetString("user_id")
}
