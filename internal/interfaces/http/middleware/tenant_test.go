package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func runTenantMiddleware(cfg TenantConfig, prepare func(*gin.Context), header http.Header) (string, string) {
	var ginTenant, ctxTenant string

	r := gin.New()
	if prepare != nil {
		r.Use(func(c *gin.Context) {
			prepare(c)
			c.Next()
		})
	}
	r.Use(Tenant(cfg))
	r.GET("/probe", func(c *gin.Context) {
		ginTenant = GetTenantIDFromGin(c)
		ctxTenant = GetTenantID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(httptest.NewRecorder(), req)
	return ginTenant, ctxTenant
}

func TestTenant_ResolvesFromHeader(t *testing.T) {
	header := http.Header{}
	header.Set("X-Tenant-ID", "tenant-a")

	ginTenant, ctxTenant := runTenantMiddleware(TenantConfig{}, nil, header)

	assert.Equal(t, "tenant-a", ginTenant)
	assert.Equal(t, "tenant-a", ctxTenant)
}

func TestTenant_AuthClaimsTakePriorityOverHeader(t *testing.T) {
	header := http.Header{}
	header.Set("X-Tenant-ID", "tenant-from-header")

	ginTenant, _ := runTenantMiddleware(TenantConfig{}, func(c *gin.Context) {
		c.Set("tenant_id", "tenant-from-jwt")
	}, header)

	assert.Equal(t, "tenant-from-jwt", ginTenant)
}

func TestTenant_FallsBackToDefault(t *testing.T) {
	ginTenant, ctxTenant := runTenantMiddleware(TenantConfig{DefaultTenantID: "tenant-dev"}, nil, nil)

	assert.Equal(t, "tenant-dev", ginTenant)
	assert.Equal(t, "tenant-dev", ctxTenant)
}

func TestTenant_CustomHeaderName(t *testing.T) {
	header := http.Header{}
	header.Set("X-Org-ID", "tenant-b")

	ginTenant, _ := runTenantMiddleware(TenantConfig{HeaderName: "X-Org-ID"}, nil, header)

	assert.Equal(t, "tenant-b", ginTenant)
}

func TestTenant_UnresolvedLeavesContextEmpty(t *testing.T) {
	ginTenant, ctxTenant := runTenantMiddleware(TenantConfig{}, nil, nil)

	assert.Equal(t, "", ginTenant)
	assert.Equal(t, "", ctxTenant)
}
