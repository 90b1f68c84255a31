// Package main 系统初始化：建表、RLS 策略、向量集合与默认租户
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"kb-rag-api/internal/config"
	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/infrastructure/persistence/milvus"
	"kb-rag-api/internal/wire"
)

// rlsStatements documents 表的行级安全策略。
// 策略依赖事务内的 app.current_tenant_id，由 TenantContext 设置。
var rlsStatements = []string{
	`ALTER TABLE documents ENABLE ROW LEVEL SECURITY`,
	`DROP POLICY IF EXISTS documents_tenant_isolation ON documents`,
	`CREATE POLICY documents_tenant_isolation ON documents
		USING (tenant_id::text = current_setting('app.current_tenant_id', true))`,
}

func main() {
	rebuildIndex := flag.Bool("rebuild-index", false, "drop and rebuild the vector index (collection is released during rebuild)")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	dataLayer, cleanup, err := wire.InitializePostgresOnly(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 1. 建表
	fmt.Println("Running schema migration...")
	db := dataLayer.PgClient.DB()
	if err := db.WithContext(ctx).AutoMigrate(&entity.Tenant{}, &entity.Document{}); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// 2. RLS 策略
	fmt.Println("Applying row level security policies...")
	for _, stmt := range rlsStatements {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			log.Fatalf("failed to apply RLS policy: %v", err)
		}
	}

	// 3. Milvus 集合与索引
	fmt.Println("Ensuring vector collection...")
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		log.Fatalf("failed to init milvus: %v", err)
	}
	defer func() { _ = milvusClient.Close() }()

	vectorRepo := milvus.NewRepository(milvusClient)
	if err := vectorRepo.EnsureKnowledgeChunksCollection(ctx); err != nil {
		log.Fatalf("failed to ensure vector collection: %v", err)
	}

	if *rebuildIndex {
		fmt.Println("Rebuilding vector index...")
		if err := vectorRepo.RebuildIndex(ctx, milvus.CollectionKnowledgeChunks); err != nil {
			log.Fatalf("failed to rebuild vector index: %v", err)
		}
	}

	// 4. 默认租户
	defaultTenantSlug := "default-tenant"
	exists, err := dataLayer.TenantRepo.ExistsBySlug(ctx, defaultTenantSlug)
	if err != nil {
		log.Fatalf("failed to check tenant existence: %v", err)
	}

	if !exists {
		fmt.Printf("Creating default tenant: %s...\n", defaultTenantSlug)
		tenant := entity.NewTenant("Default Tenant", defaultTenantSlug)
		if err := dataLayer.TenantRepo.Create(ctx, tenant); err != nil {
			log.Fatalf("failed to create default tenant: %v", err)
		}
		fmt.Printf("Default tenant created with ID: %s\n", tenant.ID)
	} else {
		tenant, err := dataLayer.TenantRepo.GetBySlug(ctx, defaultTenantSlug)
		if err != nil {
			log.Fatalf("failed to get existing tenant: %v", err)
		}
		fmt.Printf("Default tenant already exists with ID: %s\n", tenant.ID)
	}

	fmt.Println("Bootstrap completed successfully.")
}
