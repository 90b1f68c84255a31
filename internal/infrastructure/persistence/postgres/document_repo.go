// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/domain/repository"
)

// DocumentRepository 文档仓储实现。
// 所有查询都带 tenant_id 条件；配合 RLS 策略形成双层过滤。
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// Create 创建文档元数据行
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(doc).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID 在租户范围内根据 ID 获取文档
func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "tenant_id = ? AND id = ?", tenantID, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// GetTitles 在租户范围内批量获取文档标题
func (r *DocumentRepository) GetTitles(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetTitles")
	defer span.End()

	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	db := getDB(ctx, r.client.db)
	var rows []struct {
		ID    string
		Title string
	}
	if err := db.Model(&entity.Document{}).
		Select("id", "title").
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get document titles: %w", err)
	}
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}

// UpdateIngestResult 摄取完成后回写 chunk_count 与状态
func (r *DocumentRepository) UpdateIngestResult(ctx context.Context, tenantID, id string, chunkCount int, status entity.DocumentStatus) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.UpdateIngestResult")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Document{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"chunk_count": chunkCount,
			"status":      status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update ingest result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Delete 在租户范围内删除文档行
func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Delete(&entity.Document{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// ListByTenant 获取租户的文档列表
func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.ListByTenant")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.Document{}).Where("tenant_id = ?", tenantID).Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	var docs []*entity.Document
	if err := db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return repository.NewPagedResult(docs, total, pagination), nil
}
