// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/domain/repository"
	"kb-rag-api/internal/interfaces/http/dto"
)

// TenantHandler 租户处理器
type TenantHandler struct {
	tenants repository.TenantRepository
}

// NewTenantHandler 创建租户处理器
func NewTenantHandler(tenants repository.TenantRepository) *TenantHandler {
	return &TenantHandler{
		tenants: tenants,
	}
}

// Create 创建租户
// @Summary 创建租户
// @Tags Tenant
// @Accept json
// @Produce json
// @Param body body dto.CreateTenantRequest true "租户信息"
// @Success 201 {object} dto.Response[dto.TenantResponse]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	existing, err := h.tenants.GetBySlug(c.Request.Context(), req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing != nil {
		dto.Conflict(c, "tenant slug already exists")
		return
	}

	tenant := entity.NewTenant(req.Name, req.Slug)
	if err := h.tenants.Create(c.Request.Context(), tenant); err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, dto.NewTenantResponse(tenant))
}

// GetCurrent 获取当前租户
// @Summary 获取当前租户
// @Tags Tenant
// @Produce json
// @Success 200 {object} dto.Response[dto.TenantResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/tenants/current [get]
func (h *TenantHandler) GetCurrent(c *gin.Context) {
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	tenant, err := h.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}
	if tenant == nil {
		dto.NotFound(c, "tenant not found")
		return
	}
	dto.Success(c, dto.NewTenantResponse(tenant))
}
