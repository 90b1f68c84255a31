// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionKnowledgeChunks 知识库分块集合
	CollectionKnowledgeChunks = "knowledge_chunks"

	// VectorDimension 向量维度（BAAI/bge-m3）
	VectorDimension = 1024
)

// KnowledgeChunksSchema 知识库分块 Collection Schema。
// tenant_id 既做分区路由又做过滤字段；embedding_model 参与检索过滤，
// 避免不同模型产出的向量互相比相似度。
func KnowledgeChunksSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionKnowledgeChunks,
		Description:    "Knowledge base chunks for tenant-scoped semantic retrieval",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "1024",
				},
			},
			{
				Name:     "tenant_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "embedding_model",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}

// KnowledgeChunk 知识库分块数据结构
type KnowledgeChunk struct {
	ID             string    `json:"id"`
	Vector         []float32 `json:"vector"`
	TenantID       string    `json:"tenant_id"`
	DocumentID     string    `json:"document_id"`
	ChunkIndex     int64     `json:"chunk_index"`
	EmbeddingModel string    `json:"embedding_model"`
	Content        string    `json:"content"`
}

// PartitionName 生成租户分区名称。
// Milvus 分区名只允许字母数字下划线，UUID 中的连字符需要替换。
func PartitionName(tenantID string) string {
	return "tenant_" + strings.ReplaceAll(tenantID, "-", "_")
}
