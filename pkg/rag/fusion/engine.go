package fusion

import (
	"context"
	"crypto/md5"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"ai-regassist-be/pkg/llm"
	"ai-regassist-be/pkg/rag/prompt"
	"ai-regassist-be/pkg/store"
	"ai-regassist-be/pkg/vectorstore"

	"golang.org/x/sync/errgroup"
)

// Search modes accepted by the engine
const (
	ModeGenerated = "generated"
	ModeSingle    = "single"
)

// RetrievalError reports which expanded query failed; one failed
// retrieval aborts the whole search rather than fusing partial results.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for query %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one fused knowledge base search
type Result struct {
	Documents   []store.ScoredDocument `json:"documents"`
	QueriesUsed []string               `json:"queries_used"`
}

// Engine runs multi-query retrieval with reciprocal rank fusion.
// In generated mode the original query is expanded through the LLM,
// each expansion is retrieved concurrently, and the ranked lists are
// merged into a single deduplicated ranking.
type Engine struct {
	llmProvider llm.LLMProvider
	index       vectorstore.VectorIndex
	numQueries  int
	rrfK        int
	topK        int
	logger      *log.Logger
}

// NewEngine creates a fusion engine. numQueries, rrfK and topK fall
// back to the standard defaults (3, 3, 5) when non-positive.
func NewEngine(llmProvider llm.LLMProvider, index vectorstore.VectorIndex, numQueries, rrfK, topK int, logger *log.Logger) *Engine {
	if numQueries <= 0 {
		numQueries = 3
	}
	if rrfK <= 0 {
		rrfK = 3
	}
	if topK <= 0 {
		topK = 5
	}
	return &Engine{
		llmProvider: llmProvider,
		index:       index,
		numQueries:  numQueries,
		rrfK:        rrfK,
		topK:        topK,
		logger:      logger,
	}
}

// Search executes the retrieval pipeline for one question. mode is
// ModeGenerated or ModeSingle; numQueries overrides the engine default
// when positive and, like chatContext, only matters in generated mode.
func (e *Engine) Search(ctx context.Context, query, mode string, numQueries int, chatContext string) (*Result, error) {
	if numQueries <= 0 {
		numQueries = e.numQueries
	}

	var queries []string
	if mode == ModeSingle {
		queries = []string{query}
	} else {
		queries = e.GenerateQueries(ctx, query, numQueries, chatContext)
	}
	e.logger.Printf("[FUSION] Searching with %d queries (mode=%s)", len(queries), mode)

	rankings, err := e.retrieveAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	fused := Fuse(rankings, e.rrfK)
	if len(fused) > e.topK {
		fused = fused[:e.topK]
	}

	e.logger.Printf("[FUSION] Fused %d ranked lists into %d documents", len(rankings), len(fused))
	return &Result{Documents: fused, QueriesUsed: queries}, nil
}

var queryNumbering = regexp.MustCompile(`^\s*\d+[.)]\s*`)

// GenerateQueries expands the original query into up to n search
// queries via the LLM, one per line, with the conversation context in
// the prompt so follow-ups expand against what was already discussed.
// Any failure or empty output falls back to the original query alone
// so a flaky expansion never blocks retrieval.
func (e *Engine) GenerateQueries(ctx context.Context, original string, n int, chatContext string) []string {
	raw, err := e.llmProvider.Generate(ctx, prompt.BuildQueryGeneration(original, n, chatContext))
	if err != nil {
		e.logger.Printf("[FUSION] Query generation failed, using original query: %v", err)
		return []string{original}
	}

	var queries []string
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimSpace(queryNumbering.ReplaceAllString(line, ""))
		if q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return []string{original}
	}
	if len(queries) > n {
		queries = queries[:n]
	}

	e.logger.Printf("[FUSION] Generated %d queries for %q", len(queries), original)
	return queries
}

// retrieveAll fans the queries out to the index concurrently. The
// result slice is indexed by query so fusion input order is stable
// regardless of completion order.
func (e *Engine) retrieveAll(ctx context.Context, queries []string) ([][]store.Document, error) {
	rankings := make([][]store.Document, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			docs, err := e.index.Search(gctx, q)
			if err != nil {
				return &RetrievalError{Query: q, Err: err}
			}
			rankings[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rankings, nil
}

// Fuse merges ranked lists with reciprocal rank fusion: each document
// scores 1/(rank+k) per list it appears in, summed across lists.
// Documents are identified by a fingerprint of content plus metadata,
// and ties keep first-seen order.
func Fuse(rankings [][]store.Document, k int) []store.ScoredDocument {
	type entry struct {
		doc   store.Document
		score float64
		seen  int
	}

	scores := make(map[string]*entry)
	order := 0
	for _, docs := range rankings {
		for rank, doc := range docs {
			fp := Fingerprint(doc)
			ent, ok := scores[fp]
			if !ok {
				ent = &entry{doc: doc, seen: order}
				scores[fp] = ent
				order++
			}
			ent.score += 1.0 / float64(rank+k)
		}
	}

	fused := make([]store.ScoredDocument, 0, len(scores))
	for fp, ent := range scores {
		fused = append(fused, store.ScoredDocument{
			Document:    ent.doc,
			Score:       ent.score,
			Fingerprint: fp,
		})
	}

	seenOf := func(d store.ScoredDocument) int { return scores[d.Fingerprint].seen }
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return seenOf(fused[i]) < seenOf(fused[j])
	})
	return fused
}

// Fingerprint identifies a document for deduplication. Metadata keys
// are sorted so identical documents hash identically regardless of map
// iteration order.
func Fingerprint(doc store.Document) string {
	var sb strings.Builder
	sb.WriteString(doc.Content)

	keys := make([]string, 0, len(doc.Metadata))
	for key := range doc.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString("|")
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", doc.Metadata[key]))
	}

	return fmt.Sprintf("%x", md5.Sum([]byte(sb.String())))
}
