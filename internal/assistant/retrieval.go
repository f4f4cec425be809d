package assistant

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	maxExcerptRunes = 600
	embedBatchSize  = 64
)

// Excerpt is one retrievable piece of a reference document.
type Excerpt struct {
	Source string
	Text   string
	vector openai.Embedding
}

// Index is an embedding index over the reference documents in a directory.
// Build embeds them up front; otherwise the first search does. A failed
// build is retried on the next call.
type Index struct {
	dir    string
	client *openai.Client
	model  openai.EmbeddingModel
	logger *zap.Logger

	// one-slot semaphore guarding the fields below; waiting on it honours ctx
	sem      chan struct{}
	excerpts []Excerpt
	built    bool
}

func NewIndex(dir string, client *openai.Client, model openai.EmbeddingModel, logger *zap.Logger) *Index {
	if model == "" {
		model = openai.SmallEmbedding3
	}
	return &Index{
		dir:    dir,
		client: client,
		model:  model,
		logger: logger,
		sem:    make(chan struct{}, 1),
	}
}

// Build reads and embeds the knowledge base unless that already happened.
func (ix *Index) Build(ctx context.Context) error {
	_, err := ix.ensureBuilt(ctx)
	return err
}

// Search returns up to k excerpts ranked by similarity to query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Excerpt, error) {
	excerpts, err := ix.ensureBuilt(ctx)
	if err != nil {
		return nil, err
	}
	if len(excerpts) == 0 {
		return nil, nil
	}

	vectors, err := ix.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	q := vectors[0]

	type scored struct {
		excerpt Excerpt
		score   float32
	}
	ranked := make([]scored, 0, len(excerpts))
	for _, e := range excerpts {
		score, err := e.vector.DotProduct(&q)
		if err != nil {
			return nil, fmt.Errorf("compare embeddings: %w", err)
		}
		ranked = append(ranked, scored{excerpt: e, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Excerpt, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].excerpt
	}
	return out, nil
}

func (ix *Index) ensureBuilt(ctx context.Context) ([]Excerpt, error) {
	select {
	case ix.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for knowledge base index: %w", ctx.Err())
	}
	defer func() { <-ix.sem }()

	if ix.built {
		return ix.excerpts, nil
	}

	excerpts, err := ReadExcerpts(ix.dir)
	if err != nil {
		return nil, err
	}

	for start := 0; start < len(excerpts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(excerpts) {
			end = len(excerpts)
		}
		texts := make([]string, 0, end-start)
		for _, e := range excerpts[start:end] {
			texts = append(texts, e.Text)
		}
		vectors, err := ix.embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed knowledge base: %w", err)
		}
		for i := range vectors {
			excerpts[start+i].vector = vectors[i]
		}
	}

	ix.excerpts = excerpts
	ix.built = true
	ix.logger.Info("Knowledge base indexed",
		zap.String("dir", ix.dir),
		zap.Int("excerpts", len(excerpts)))
	return excerpts, nil
}

func (ix *Index) embed(ctx context.Context, texts []string) ([]openai.Embedding, error) {
	resp, err := ix.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: ix.model,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	out := make([]openai.Embedding, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d
	}
	return out, nil
}

// ReadExcerpts walks dir for .md and .txt files and splits each into
// paragraph-aligned excerpts of bounded size.
func ReadExcerpts(dir string) ([]Excerpt, error) {
	var excerpts []Excerpt
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		for _, chunk := range splitParagraphs(string(data), maxExcerptRunes) {
			excerpts = append(excerpts, Excerpt{Source: filepath.ToSlash(rel), Text: chunk})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", dir, err)
	}
	return excerpts, nil
}

// splitParagraphs packs blank-line separated paragraphs into chunks of at
// most limit runes. A single paragraph longer than limit is cut.
func splitParagraphs(text string, limit int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for utf8.RuneCountInString(para) > limit {
			flush()
			runes := []rune(para)
			chunks = append(chunks, string(runes[:limit]))
			para = strings.TrimSpace(string(runes[limit:]))
		}
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(para)+2 > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
