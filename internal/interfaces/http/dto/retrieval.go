// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"kb-rag-api/internal/application/rag"
)

// SearchRequest 检索请求
type SearchRequest struct {
	Query string `json:"query" binding:"required,max=2048"`
}

// SourceItem 可向用户展示的引用来源
type SourceItem struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	Similarity    float64 `json:"similarity"`
}

// MatchItem 一条通过 match 阈值的命中（调试用，含分块内容）
type MatchItem struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
}

// SearchResponse 检索响应。
// context 为空且 sources 为空表示无可用知识，HTTP 状态仍为 200。
type SearchResponse struct {
	Context string       `json:"context"`
	Sources []SourceItem `json:"sources"`
}

// DebugSearchResponse 调试检索响应，附带全部命中明细
type DebugSearchResponse struct {
	Context string       `json:"context"`
	Sources []SourceItem `json:"sources"`
	Matches []MatchItem  `json:"matches"`
}

// NewSearchResponse 从检索输出构建响应
func NewSearchResponse(out *rag.RetrieveOutput) *SearchResponse {
	return &SearchResponse{
		Context: out.Context,
		Sources: sourceItems(out.Sources),
	}
}

// NewDebugSearchResponse 从检索输出构建调试响应
func NewDebugSearchResponse(out *rag.RetrieveOutput) *DebugSearchResponse {
	resp := &DebugSearchResponse{
		Context: out.Context,
		Sources: sourceItems(out.Sources),
		Matches: make([]MatchItem, 0, len(out.Matches)),
	}
	for _, m := range out.Matches {
		resp.Matches = append(resp.Matches, MatchItem{
			ChunkID:       m.ChunkID,
			DocumentID:    m.DocumentID,
			DocumentTitle: m.DocumentTitle,
			ChunkIndex:    m.ChunkIndex,
			Content:       m.Content,
			Similarity:    m.Similarity,
		})
	}
	return resp
}

func sourceItems(citations []rag.Citation) []SourceItem {
	items := make([]SourceItem, 0, len(citations))
	for _, s := range citations {
		items = append(items, SourceItem{
			DocumentID:    s.DocumentID,
			DocumentTitle: s.DocumentTitle,
			ChunkIndex:    s.ChunkIndex,
			Similarity:    s.Similarity,
		})
	}
	return items
}
