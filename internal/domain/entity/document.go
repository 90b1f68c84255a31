// Package entity 定义领域实体
package entity

import (
	"time"
)

// DocumentStatus 文档摄取状态
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusIngesting DocumentStatus = "ingesting"
	DocumentStatusReady     DocumentStatus = "ready"
	// DocumentStatusFailed 表示没有任何分块成功入库；行保留以便排查与重试。
	DocumentStatusFailed DocumentStatus = "failed"
)

// Document 知识库文档实体。
// 正文本身不落库：分块与向量存于向量库，这里只保留元数据。
type Document struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID       string         `json:"tenant_id" gorm:"type:uuid;index;not null"`
	Title          string         `json:"title" gorm:"type:varchar(512);not null"`
	Source         string         `json:"source,omitempty" gorm:"type:varchar(255)"`
	// ChunkCount 仅统计成功嵌入并入库的分块数，可能小于分块器产出数。
	ChunkCount     int            `json:"chunk_count" gorm:"default:0"`
	EmbeddingModel string         `json:"embedding_model,omitempty" gorm:"type:varchar(128)"`
	Status         DocumentStatus `json:"status" gorm:"type:varchar(32);default:'pending'"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// NewDocument 创建新文档
func NewDocument(tenantID, title, source, embeddingModel string) *Document {
	now := time.Now()
	return &Document{
		TenantID:       tenantID,
		Title:          title,
		Source:         source,
		ChunkCount:     0,
		EmbeddingModel: embeddingModel,
		Status:         DocumentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkReady 摄取完成，记录成功入库的分块数
func (d *Document) MarkReady(chunkCount int) {
	d.ChunkCount = chunkCount
	d.Status = DocumentStatusReady
	d.UpdatedAt = time.Now()
}

// MarkFailed 摄取失败（零分块成功）
func (d *Document) MarkFailed() {
	d.ChunkCount = 0
	d.Status = DocumentStatusFailed
	d.UpdatedAt = time.Now()
}
