// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"kb-rag-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	documentHandler *handler.DocumentHandler,
	retrievalHandler *handler.RetrievalHandler,
	tenantHandler *handler.TenantHandler,
) {
	// 文档管理
	documents := v1.Group("/documents")
	{
		documents.GET("", documentHandler.List)
		documents.POST("", documentHandler.Create)
		documents.GET("/:did", documentHandler.Get)
		documents.DELETE("/:did", documentHandler.Delete)
	}

	// 检索
	retrieval := v1.Group("/retrieval")
	{
		retrieval.POST("/search", retrievalHandler.Search)
		retrieval.POST("/debug", retrievalHandler.Debug)
	}

	// 租户管理
	tenants := v1.Group("/tenants")
	{
		tenants.POST("", tenantHandler.Create)
		tenants.GET("/current", tenantHandler.GetCurrent)
	}
}
