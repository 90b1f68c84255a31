// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"kb-rag-api/internal/application/rag"
	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/domain/repository"
	"kb-rag-api/internal/infrastructure/messaging"
	"kb-rag-api/internal/interfaces/http/dto"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	ingestor  *rag.Ingestor
	docs      repository.DocumentRepository
	producer  *messaging.Producer
	txMgr     repository.Transactor
	tenantCtx repository.TenantContextManager
	// asyncEnabled 配置开关；为 false 时 async 请求降级为同步摄取
	asyncEnabled bool
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(
	ingestor *rag.Ingestor,
	docs repository.DocumentRepository,
	producer *messaging.Producer,
	txMgr repository.Transactor,
	tenantCtx repository.TenantContextManager,
	asyncEnabled bool,
) *DocumentHandler {
	return &DocumentHandler{
		ingestor:     ingestor,
		docs:         docs,
		producer:     producer,
		txMgr:        txMgr,
		tenantCtx:    tenantCtx,
		asyncEnabled: asyncEnabled,
	}
}

// Create 创建并摄取文档
// @Summary 创建并摄取文档
// @Description 分块、嵌入并写入向量库；async=true 时由后台 worker 执行
// @Tags Document
// @Accept json
// @Produce json
// @Param body body dto.CreateDocumentRequest true "文档内容"
// @Success 201 {object} dto.Response[dto.IngestResultResponse]
// @Success 202 {object} dto.Response[dto.IngestAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	input := &rag.IngestInput{
		TenantID: tenantID,
		Title:    req.Title,
		Source:   req.Source,
		Text:     req.Text,
	}

	if req.Async && h.asyncEnabled && h.producer != nil {
		h.createAsync(c, input)
		return
	}
	h.createSync(c, input)
}

// createSync 同步摄取。
// 文档行创建走租户事务；嵌入与向量写入是外部调用，放在事务外执行，
// 状态回写由流水线按 tenant_id 定向更新。
func (h *DocumentHandler) createSync(c *gin.Context, input *rag.IngestInput) {
	ctx := c.Request.Context()

	var doc *entity.Document
	err := withTenantTx(ctx, h.txMgr, h.tenantCtx, input.TenantID, func(txCtx context.Context) error {
		var txErr error
		doc, txErr = h.ingestor.CreateDocument(txCtx, input)
		return txErr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.ingestor.Process(ctx, doc, input.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Created(c, dto.NewIngestResultResponse(result, entity.DocumentStatusReady))
}

// createAsync 异步摄取：先建 pending 文档行拿到 ID，再投递摄取任务
func (h *DocumentHandler) createAsync(c *gin.Context, input *rag.IngestInput) {
	ctx := c.Request.Context()

	var doc *entity.Document
	err := withTenantTx(ctx, h.txMgr, h.tenantCtx, input.TenantID, func(txCtx context.Context) error {
		var txErr error
		doc, txErr = h.ingestor.CreateDocument(txCtx, input)
		return txErr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_, err = h.producer.PublishIngestJob(ctx, &messaging.IngestJobMessage{
		DocumentID: doc.ID,
		TenantID:   input.TenantID,
		Text:       input.Text,
		RequestID:  c.GetString("request_id"),
		TraceID:    c.GetString("trace_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	dto.Accepted(c, dto.IngestAcceptedResponse{
		DocumentID: doc.ID,
		Status:     string(entity.DocumentStatusPending),
	})
}

// Get 获取文档元数据
// @Summary 获取文档
// @Tags Document
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	documentID := c.Param("did")

	doc, err := h.docs.GetByID(c.Request.Context(), tenantID, documentID)
	if err != nil {
		respondError(c, err)
		return
	}
	if doc == nil {
		dto.NotFound(c, "document not found")
		return
	}
	dto.Success(c, dto.NewDocumentResponse(doc))
}

// List 获取文档列表
// @Summary 获取文档列表
// @Tags Document
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.DocumentResponse]
// @Router /v1/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	var query dto.ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	pagination := repository.NewPagination(query.Page, query.PageSize)
	result, err := h.docs.ListByTenant(c.Request.Context(), tenantID, pagination)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]*dto.DocumentResponse, 0, len(result.Items))
	for _, doc := range result.Items {
		items = append(items, dto.NewDocumentResponse(doc))
	}
	dto.SuccessWithPage(c, items, dto.NewPageMeta(result.Page, result.PageSize, int(result.Total)))
}

// Delete 删除文档及其全部向量分块
// @Summary 删除文档
// @Tags Document
// @Param did path string true "文档 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}
	documentID := c.Param("did")

	if err := h.ingestor.Delete(c.Request.Context(), tenantID, documentID); err != nil {
		respondError(c, err)
		return
	}
	dto.NoContent(c)
}
