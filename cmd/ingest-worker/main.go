// Package main 文档摄取 worker 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kb-rag-api/internal/config"
	"kb-rag-api/internal/infrastructure/messaging"
	"kb-rag-api/internal/wire"
	apperrors "kb-rag-api/pkg/errors"
	"kb-rag-api/pkg/logger"
	"kb-rag-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "ingest-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	log := logger.FromContext(ctx)

	worker.Consumer.RegisterHandler(messaging.MessageTypeDocumentIngest, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.IngestJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		doc, err := worker.Data.DocumentRepo.GetByID(ctx, payload.TenantID, payload.DocumentID)
		if err != nil {
			return err
		}
		if doc == nil {
			// 文档在摄取前已被删除，任务作废
			logger.Warn(ctx, "文档不存在，跳过摄取任务", "document_id", payload.DocumentID)
			return nil
		}

		_, err = worker.Ingestor.Process(ctx, doc, payload.Text)
		if errors.Is(err, apperrors.ErrNoChunks) {
			// 确定性失败：文档已标记 failed，重试不会改变结果
			return nil
		}
		return err
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := worker.Consumer.Start(runCtx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(runCtx, 100)

	log.Info("ingest-worker started", "stream", messaging.StreamKBIngest)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down ingest-worker...")
	worker.Consumer.Stop()
	cancel()
	log.Info("ingest-worker exited")
}
