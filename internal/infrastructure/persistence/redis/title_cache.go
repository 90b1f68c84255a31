// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kb-rag-api/internal/application/rag"
	"kb-rag-api/internal/domain/repository"
)

// titleCacheTTL 标题缓存 TTL
const titleCacheTTL = 10 * time.Minute

// errTitleNotFound 回源查不到标题（文档已删除或不属于该租户），不写缓存
var errTitleNotFound = errors.New("document title not found")

// titleStore 标题缓存依赖的缓存能力，*Cache 实现
type titleStore interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// TitleCache 文档标题的 Read-Through 缓存。
// 键按租户命名空间隔离；未命中时经 singleflight 回源到租户范围的
// 元数据查询，因此其他租户的文档 ID 永远解析不出标题。
type TitleCache struct {
	cache titleStore
	docs  repository.DocumentRepository
}

// NewTitleCache 创建标题缓存
func NewTitleCache(cache *Cache, docs repository.DocumentRepository) *TitleCache {
	return &TitleCache{cache: cache, docs: docs}
}

var _ rag.TitleDirectory = (*TitleCache)(nil)

func titleKey(tenantID, documentID string) string {
	return fmt.Sprintf("kb:doc:title:%s:%s", tenantID, documentID)
}

// ResolveTitles 批量解析文档标题。
// 每个 ID 走 singleflight 读穿：并发的同键未命中只回源一次。
// 回源查不到的 ID 不出现在结果里（文档已删除或不属于该租户）。
func (t *TitleCache) ResolveTitles(ctx context.Context, tenantID string, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}

	var missed []string
	for _, id := range ids {
		val, err := t.cache.GetOrLoadSafe(ctx, titleKey(tenantID, id), titleCacheTTL, t.titleLoader(ctx, tenantID, id))
		if err != nil {
			if errors.Is(err, errTitleNotFound) {
				continue
			}
			// 缓存层不可用时降级为直查库，标题解析不因 Redis 故障阻断检索
			missed = append(missed, id)
			continue
		}
		var title string
		if err := json.Unmarshal(val, &title); err != nil {
			missed = append(missed, id)
			continue
		}
		titles[id] = title
	}

	if len(missed) > 0 {
		loaded, err := t.docs.GetTitles(ctx, tenantID, missed)
		if err != nil {
			return nil, err
		}
		for id, title := range loaded {
			titles[id] = title
		}
	}
	return titles, nil
}

// titleLoader 未命中时的回源函数，查询限定在 tenantID 范围内
func (t *TitleCache) titleLoader(ctx context.Context, tenantID, id string) func() (interface{}, error) {
	return func() (interface{}, error) {
		loaded, err := t.docs.GetTitles(ctx, tenantID, []string{id})
		if err != nil {
			return nil, err
		}
		title, ok := loaded[id]
		if !ok {
			return nil, errTitleNotFound
		}
		return title, nil
	}
}

// Invalidate 删除文档时失效对应标题缓存
func (t *TitleCache) Invalidate(ctx context.Context, tenantID, documentID string) error {
	return t.cache.Delete(ctx, titleKey(tenantID, documentID))
}
