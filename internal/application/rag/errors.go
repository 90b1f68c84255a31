package rag

import "errors"

// ErrVectorDisabled 表示向量检索/索引能力未配置（Milvus 或 Embedder 不可用）。
var ErrVectorDisabled = errors.New("vector retrieval is disabled")
