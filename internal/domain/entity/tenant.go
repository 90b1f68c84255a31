// Package entity 定义领域实体
package entity

import (
	"time"
)

// TenantStatus 租户状态
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// TenantQuota 租户配额
type TenantQuota struct {
	MaxDocuments        int   `json:"max_documents"`
	MaxChunksPerDoc     int   `json:"max_chunks_per_doc"`
	MaxEmbedTokensPerDay int64 `json:"max_embed_tokens_per_day"`
}

// Tenant 租户实体
type Tenant struct {
	ID        string       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string       `json:"name" gorm:"type:varchar(255);not null"`
	Slug      string       `json:"slug" gorm:"type:varchar(64);uniqueIndex;not null"`
	Quota     *TenantQuota `json:"quota,omitempty" gorm:"type:jsonb;serializer:json"`
	Status    TenantStatus `json:"status" gorm:"type:varchar(32);default:'active'"`
	CreatedAt time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant 创建新租户
func NewTenant(name, slug string) *Tenant {
	now := time.Now()
	return &Tenant{
		Name:   name,
		Slug:   slug,
		Status: TenantStatusActive,
		Quota: &TenantQuota{
			MaxDocuments:         10000,
			MaxChunksPerDoc:      2000,
			MaxEmbedTokensPerDay: 10000000,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查租户是否活跃
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}
