// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"kb-rag-api/internal/domain/entity"
)

// DocumentRepository 文档仓储接口。
// 所有读写都以 tenantID 为第一过滤条件；不存在跨租户读取的入口。
type DocumentRepository interface {
	// Create 创建文档元数据行
	Create(ctx context.Context, doc *entity.Document) error

	// GetByID 在租户范围内根据 ID 获取文档；未命中返回 nil
	GetByID(ctx context.Context, tenantID, id string) (*entity.Document, error)

	// GetTitles 在租户范围内批量获取文档标题（id -> title）。
	// 请求中不属于该租户的 ID 不会出现在结果里。
	GetTitles(ctx context.Context, tenantID string, ids []string) (map[string]string, error)

	// UpdateIngestResult 摄取完成后回写 chunk_count 与状态
	UpdateIngestResult(ctx context.Context, tenantID, id string, chunkCount int, status entity.DocumentStatus) error

	// Delete 在租户范围内删除文档行
	Delete(ctx context.Context, tenantID, id string) error

	// ListByTenant 获取租户的文档列表
	ListByTenant(ctx context.Context, tenantID string, pagination Pagination) (*PagedResult[*entity.Document], error)
}
