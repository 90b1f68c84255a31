// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"kb-rag-api/internal/domain/entity"
)

// CreateTenantRequest 创建租户请求
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required,max=255"`
	Slug string `json:"slug" binding:"required,max=64,alphanum"`
}

// TenantResponse 租户响应
type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTenantResponse 从实体构建响应
func NewTenantResponse(t *entity.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}
