// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"kb-rag-api/internal/application/rag"
	"kb-rag-api/internal/interfaces/http/dto"
)

// RetrievalHandler 检索处理器
type RetrievalHandler struct {
	engine *rag.Engine
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(engine *rag.Engine) *RetrievalHandler {
	return &RetrievalHandler{
		engine: engine,
	}
}

// Search 检索上下文
// @Summary 检索上下文
// @Description 在当前租户知识库内检索与查询相关的上下文与引用来源
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	out, ok := h.retrieve(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewSearchResponse(out))
}

// Debug 调试检索，返回包含分块内容与相似度的完整命中明细
// @Summary 调试检索
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.DebugSearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/retrieval/debug [post]
func (h *RetrievalHandler) Debug(c *gin.Context) {
	out, ok := h.retrieve(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewDebugSearchResponse(out))
}

func (h *RetrievalHandler) retrieve(c *gin.Context) (*rag.RetrieveOutput, bool) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return nil, false
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return nil, false
	}

	out, err := h.engine.Retrieve(c.Request.Context(), &rag.RetrieveInput{
		TenantID: tenantID,
		Query:    req.Query,
	})
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return out, true
}
