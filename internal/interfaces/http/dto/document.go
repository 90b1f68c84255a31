// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"kb-rag-api/internal/application/rag"
	"kb-rag-api/internal/domain/entity"
)

// CreateDocumentRequest 创建并摄取文档请求
type CreateDocumentRequest struct {
	Title  string `json:"title" binding:"required,max=512"`
	Source string `json:"source" binding:"max=255"`
	// Text 已抽取好的纯文本正文
	Text string `json:"text" binding:"required"`
	// Async 为 true 时立即返回 202，摄取由后台 worker 执行
	Async bool `json:"async"`
}

// DocumentResponse 文档元数据响应
type DocumentResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Source         string    `json:"source,omitempty"`
	ChunkCount     int       `json:"chunk_count"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewDocumentResponse 从实体构建响应
func NewDocumentResponse(doc *entity.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:             doc.ID,
		Title:          doc.Title,
		Source:         doc.Source,
		ChunkCount:     doc.ChunkCount,
		EmbeddingModel: doc.EmbeddingModel,
		Status:         string(doc.Status),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// ChunkFailure 单个分块的失败明细
type ChunkFailure struct {
	ChunkIndex int    `json:"chunk_index"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// IngestResultResponse 摄取结果响应。
// chunks_stored < chunks_produced 表示部分分块失败，明细在 failed_chunks。
type IngestResultResponse struct {
	DocumentID     string         `json:"document_id"`
	Title          string         `json:"title"`
	Source         string         `json:"source,omitempty"`
	Status         string         `json:"status"`
	ChunksProduced int            `json:"chunks_produced"`
	ChunksStored   int            `json:"chunks_stored"`
	FailedChunks   []ChunkFailure `json:"failed_chunks,omitempty"`
}

// NewIngestResultResponse 从摄取结果构建响应
func NewIngestResultResponse(result *rag.IngestResult, status entity.DocumentStatus) *IngestResultResponse {
	resp := &IngestResultResponse{
		DocumentID:     result.DocumentID,
		Title:          result.Title,
		Source:         result.Source,
		Status:         string(status),
		ChunksProduced: result.ChunksProduced,
		ChunksStored:   result.ChunksStored,
	}
	for _, o := range result.FailedChunks() {
		f := ChunkFailure{ChunkIndex: o.Index, Stage: o.Stage}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		resp.FailedChunks = append(resp.FailedChunks, f)
	}
	return resp
}

// IngestAcceptedResponse 异步摄取受理响应
type IngestAcceptedResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// ListDocumentsQuery 文档列表查询参数
type ListDocumentsQuery struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20"`
}
