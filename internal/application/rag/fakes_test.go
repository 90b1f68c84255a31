package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"

	"kb-rag-api/internal/domain/entity"
	"kb-rag-api/internal/domain/repository"
)

// fakeEmbedder 确定性的内存 Embedder。
// 文本包含 failOn 标记时返回错误，用于模拟单块嵌入失败。
type fakeEmbedder struct {
	failOn string
	calls  int
	mu     sync.Mutex
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make([][]float64, 0, len(texts))
	for _, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, fmt.Errorf("embedding backend unavailable")
		}
		vec := make([]float64, 4)
		for i, r := range t {
			vec[i%4] += float64(r) / 1000
		}
		out = append(out, vec)
	}
	return out, nil
}

// fakeVectorRepo 内存向量仓储。
// Search 直接返回预置结果，Insert/Delete 记录在内存便于断言。
type fakeVectorRepo struct {
	mu           sync.Mutex
	inserted     []*VectorChunk
	searchResult []*VectorMatch
	searchErr    error
	failOnIndex  int // 为 -1 时不失败
	lastSearch   *VectorSearchParams
}

func newFakeVectorRepo() *fakeVectorRepo {
	return &fakeVectorRepo{failOnIndex: -1}
}

func (f *fakeVectorRepo) EnsureCollection(context.Context) error { return nil }

func (f *fakeVectorRepo) InsertChunk(_ context.Context, chunk *VectorChunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnIndex >= 0 && chunk.ChunkIndex == f.failOnIndex {
		return "", fmt.Errorf("vector store write failed")
	}
	f.inserted = append(f.inserted, chunk)
	return chunk.ID, nil
}

func (f *fakeVectorRepo) Search(_ context.Context, params *VectorSearchParams) ([]*VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearch = params
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResult, nil
}

func (f *fakeVectorRepo) DeleteByDocument(_ context.Context, tenantID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*VectorChunk
	for _, c := range f.inserted {
		if c.TenantID == tenantID && c.DocumentID == documentID {
			continue
		}
		kept = append(kept, c)
	}
	f.inserted = kept
	return nil
}

// fakeTitleDirectory 按租户隔离的内存标题表
type fakeTitleDirectory struct {
	mu          sync.Mutex
	titles      map[string]map[string]string // tenantID -> docID -> title
	invalidated []string
}

func newFakeTitleDirectory() *fakeTitleDirectory {
	return &fakeTitleDirectory{titles: map[string]map[string]string{}}
}

func (f *fakeTitleDirectory) set(tenantID, docID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.titles[tenantID] == nil {
		f.titles[tenantID] = map[string]string{}
	}
	f.titles[tenantID][docID] = title
}

func (f *fakeTitleDirectory) ResolveTitles(_ context.Context, tenantID string, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for _, id := range ids {
		if title, ok := f.titles[tenantID][id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

func (f *fakeTitleDirectory) Invalidate(_ context.Context, tenantID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.titles[tenantID], documentID)
	f.invalidated = append(f.invalidated, tenantID+"/"+documentID)
	return nil
}

// fakeDocumentRepo 内存文档仓储，所有读写按 tenantID 过滤
type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*entity.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*entity.Document{}}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return nil, nil
	}
	return doc, nil
}

func (f *fakeDocumentRepo) GetTitles(_ context.Context, tenantID string, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok && doc.TenantID == tenantID {
			out[id] = doc.Title
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) UpdateIngestResult(_ context.Context, tenantID, id string, chunkCount int, status entity.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return fmt.Errorf("document not found")
	}
	doc.ChunkCount = chunkCount
	doc.Status = status
	return nil
}

func (f *fakeDocumentRepo) Delete(_ context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok || doc.TenantID != tenantID {
		return fmt.Errorf("document not found")
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentRepo) ListByTenant(_ context.Context, tenantID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*entity.Document
	for _, doc := range f.docs {
		if doc.TenantID == tenantID {
			items = append(items, doc)
		}
	}
	return &repository.PagedResult[*entity.Document]{
		Items:    items,
		Total:    int64(len(items)),
		Page:     pagination.Page,
		PageSize: pagination.PageSize,
	}, nil
}
