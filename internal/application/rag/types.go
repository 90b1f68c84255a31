package rag

// IngestInput 文档摄取输入。Text 是上游已抽取好的纯文本。
type IngestInput struct {
	TenantID string
	Title    string
	Source   string
	Text     string
}

// ChunkOutcome 单个分块的摄取结果。
// 摄取流水线逐块记录成败，而不是吞掉错误只留日志。
type ChunkOutcome struct {
	Index   int
	ChunkID string
	// Stage 失败发生的阶段：embed / store；成功时为空。
	Stage string
	Err   error
}

// Failed 该分块是否摄取失败
func (o ChunkOutcome) Failed() bool {
	return o.Err != nil
}

// IngestResult 文档摄取结果
type IngestResult struct {
	DocumentID string
	Title      string
	Source     string

	// ChunksProduced 分块器产出的分块数
	ChunksProduced int
	// ChunksStored 成功嵌入并入库的分块数（<= ChunksProduced）
	ChunksStored int

	Outcomes []ChunkOutcome
}

// FailedChunks 返回失败的分块结果
func (r *IngestResult) FailedChunks() []ChunkOutcome {
	if r == nil {
		return nil
	}
	var out []ChunkOutcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// RetrieveInput 检索输入
type RetrieveInput struct {
	TenantID string
	Query    string
}

// Citation 引用来源。按检索调用即时计算，从不落库。
type Citation struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkIndex    int     `json:"chunk_index"`
	Similarity    float64 `json:"similarity"`
}

// Match 一条通过 match 阈值的分块命中
type Match struct {
	ChunkID       string
	DocumentID    string
	DocumentTitle string
	ChunkIndex    int
	Content       string
	Similarity    float64
}

// RetrieveOutput 检索输出。
// Context 为空且 Sources 为空表示“无可用知识”，不是错误。
type RetrieveOutput struct {
	// Context 拼装好的上下文块，直接注入生成 Prompt
	Context string
	// Sources 通过 citation 阈值、可向用户展示的来源
	Sources []Citation
	// Matches 通过 match 阈值的全部命中（含未达 citation 阈值的）
	Matches []Match
}
