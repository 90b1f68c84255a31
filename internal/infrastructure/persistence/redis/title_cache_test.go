package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-rag-api/internal/domain/repository"
)

// fakeTitleStore 内存实现的读穿缓存，记录回源次数便于断言
type fakeTitleStore struct {
	data        map[string][]byte
	loads       map[string]int
	unavailable bool
}

func newFakeTitleStore() *fakeTitleStore {
	return &fakeTitleStore{
		data:  map[string][]byte{},
		loads: map[string]int{},
	}
}

func (f *fakeTitleStore) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if f.unavailable {
		return nil, errors.New("redis unavailable")
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	f.loads[key]++
	val, err := loader()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	f.data[key] = b
	return b, nil
}

func (f *fakeTitleStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

// fakeTitleSource 只实现 GetTitles 的文档仓储替身
type fakeTitleSource struct {
	repository.DocumentRepository
	titles map[string]map[string]string // tenantID -> docID -> title
	calls  int
}

func (f *fakeTitleSource) GetTitles(_ context.Context, tenantID string, ids []string) (map[string]string, error) {
	f.calls++
	out := map[string]string{}
	for _, id := range ids {
		if title, ok := f.titles[tenantID][id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

func newTitleFixture() (*TitleCache, *fakeTitleStore, *fakeTitleSource) {
	store := newFakeTitleStore()
	docs := &fakeTitleSource{titles: map[string]map[string]string{
		"tenant-a": {"doc-1": "入门指南", "doc-2": "发布流程"},
	}}
	return &TitleCache{cache: store, docs: docs}, store, docs
}

func TestTitleCache_MissLoadsThroughSingleflightThenHits(t *testing.T) {
	tc, store, docs := newTitleFixture()

	titles, err := tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"doc-1": "入门指南", "doc-2": "发布流程"}, titles)
	assert.Equal(t, 1, store.loads[titleKey("tenant-a", "doc-1")])
	assert.Equal(t, 2, docs.calls)

	// 第二次解析全部命中缓存，不再回源
	titles, err = tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	assert.Len(t, titles, 2)
	assert.Equal(t, 2, docs.calls)
	assert.Equal(t, 1, store.loads[titleKey("tenant-a", "doc-1")])
}

func TestTitleCache_UnknownDocumentOmittedAndNotCached(t *testing.T) {
	tc, store, _ := newTitleFixture()

	titles, err := tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1", "doc-gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"doc-1": "入门指南"}, titles)

	// 查不到的标题不落缓存，避免把"不存在"缓存 10 分钟
	_, cached := store.data[titleKey("tenant-a", "doc-gone")]
	assert.False(t, cached)
}

func TestTitleCache_TenantScopedResolution(t *testing.T) {
	tc, _, _ := newTitleFixture()

	// 其他租户拿着同一个 document_id 解析不出标题
	titles, err := tc.ResolveTitles(context.Background(), "tenant-b", []string{"doc-1"})
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestTitleCache_FallsBackToDirectLookupWhenCacheUnavailable(t *testing.T) {
	tc, store, docs := newTitleFixture()
	store.unavailable = true

	titles, err := tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	assert.Len(t, titles, 2)
	// 降级路径合并为一次批量回源
	assert.Equal(t, 1, docs.calls)
}

func TestTitleCache_InvalidateForcesReload(t *testing.T) {
	tc, store, _ := newTitleFixture()

	_, err := tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1"})
	require.NoError(t, err)
	require.NoError(t, tc.Invalidate(context.Background(), "tenant-a", "doc-1"))

	_, err = tc.ResolveTitles(context.Background(), "tenant-a", []string{"doc-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads[titleKey("tenant-a", "doc-1")])
}

func TestTitleCache_EmptyIDList(t *testing.T) {
	tc, _, docs := newTitleFixture()

	titles, err := tc.ResolveTitles(context.Background(), "tenant-a", nil)
	require.NoError(t, err)
	assert.Empty(t, titles)
	assert.Equal(t, 0, docs.calls)
}
