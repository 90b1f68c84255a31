// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"

	"kb-rag-api/internal/domain/repository"
	"kb-rag-api/internal/interfaces/http/dto"
	apperrors "kb-rag-api/pkg/errors"
	"kb-rag-api/pkg/logger"
)

// withTenantTx 在租户事务中执行：开启事务后先设置 RLS 租户上下文，再执行业务逻辑
func withTenantTx(ctx context.Context, txMgr repository.Transactor, tenantCtx repository.TenantContextManager, tenantID string, fn func(context.Context) error) error {
	if txMgr == nil || tenantCtx == nil {
		return fmt.Errorf("transaction dependencies not configured")
	}
	return txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := tenantCtx.SetTenant(txCtx, tenantID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}

// respondError 按错误类型返回对应的 HTTP 错误响应。
// 租户隔离违例照常走 AppError 映射（500），但单独记一条错误日志，
// 方便在告警侧按 code 4005 聚合。
func respondError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrTenantIsolation) {
		logger.Error(c.Request.Context(), "租户隔离违例已返回给调用方", err,
			"path", c.Request.URL.Path)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		dto.FromAppError(c, appErr)
		return
	}
	dto.InternalError(c, "internal server error")
}

// requireTenantID 获取当前请求的租户 ID，缺失时返回 400
func requireTenantID(c *gin.Context) (string, bool) {
	tenantID := c.GetString("tenant_id")
	if tenantID == "" {
		dto.BadRequest(c, "tenant not resolved")
		return "", false
	}
	return tenantID, true
}
