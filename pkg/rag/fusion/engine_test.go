package fusion

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"ai-regassist-be/pkg/llm"
	"ai-regassist-be/pkg/store"
)

type stubLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	s.lastPrompt = prompt
	return s.response, s.err
}

func (s *stubLLM) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.Tool, options ...llm.Option) (*llm.ToolResult, error) {
	return &llm.ToolResult{Text: s.response}, s.err
}

type stubIndex struct {
	results map[string][]store.Document
	err     error
}

func (s *stubIndex) Search(ctx context.Context, query string) ([]store.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results[query], nil
}

func doc(content string) store.Document {
	return store.Document{Content: content}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFuseScoring(t *testing.T) {
	rankings := [][]store.Document{
		{doc("shared"), doc("only-first")},
		{doc("other"), doc("shared")},
	}

	fused := Fuse(rankings, 3)
	if len(fused) != 3 {
		t.Fatalf("fused length = %d, want 3", len(fused))
	}

	// shared: rank 0 in list one, rank 1 in list two: 1/3 + 1/4
	if fused[0].Content != "shared" {
		t.Fatalf("top document = %q, want %q", fused[0].Content, "shared")
	}
	want := 1.0/3.0 + 1.0/4.0
	if math.Abs(fused[0].Score-want) > 1e-9 {
		t.Errorf("top score = %f, want %f", fused[0].Score, want)
	}

	// only-first and other both scored 1/3 at rank 0/1 respectively:
	// only-first is 1/4, other is 1/3
	if fused[1].Content != "other" {
		t.Errorf("second document = %q, want %q", fused[1].Content, "other")
	}
	if fused[2].Content != "only-first" {
		t.Errorf("third document = %q, want %q", fused[2].Content, "only-first")
	}
}

func TestFuseTieKeepsFirstSeen(t *testing.T) {
	rankings := [][]store.Document{
		{doc("alpha")},
		{doc("beta")},
	}

	fused := Fuse(rankings, 3)
	if len(fused) != 2 {
		t.Fatalf("fused length = %d, want 2", len(fused))
	}
	if fused[0].Content != "alpha" || fused[1].Content != "beta" {
		t.Errorf("tie order = [%q, %q], want first-seen order", fused[0].Content, fused[1].Content)
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	rankings := [][]store.Document{
		{doc("a"), doc("b"), doc("c")},
		{doc("c"), doc("a"), doc("d")},
	}

	first := Fuse(rankings, 3)
	for i := 0; i < 10; i++ {
		again := Fuse(rankings, 3)
		for j := range first {
			if first[j].Content != again[j].Content {
				t.Fatalf("run %d: position %d = %q, want %q", i, j, again[j].Content, first[j].Content)
			}
		}
	}
}

func TestFingerprintDistinguishesMetadata(t *testing.T) {
	a := store.Document{Content: "same", Metadata: map[string]interface{}{"source": "one.pdf"}}
	b := store.Document{Content: "same", Metadata: map[string]interface{}{"source": "two.pdf"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("documents with different metadata share a fingerprint")
	}
	if Fingerprint(a) != Fingerprint(a) {
		t.Error("fingerprint is not stable")
	}
}

func TestGenerateQueries(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		n        int
		want     []string
	}{
		{
			name:     "plain lines",
			response: "first query\nsecond query\nthird query",
			n:        3,
			want:     []string{"first query", "second query", "third query"},
		},
		{
			name:     "numbered lines stripped",
			response: "1. first\n2) second\n3. third",
			n:        3,
			want:     []string{"first", "second", "third"},
		},
		{
			name:     "blank lines skipped and truncated to n",
			response: "one\n\ntwo\nthree\nfour",
			n:        2,
			want:     []string{"one", "two"},
		},
		{
			name:     "empty output falls back to original",
			response: "\n\n",
			n:        3,
			want:     []string{"original question"},
		},
		{
			name:     "provider error falls back to original",
			response: "",
			err:      errors.New("provider down"),
			n:        3,
			want:     []string{"original question"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(&stubLLM{response: tt.response, err: tt.err}, &stubIndex{}, 3, 3, 5, testLogger())
			got := e.GenerateQueries(context.Background(), "original question", tt.n, "")

			if len(got) != len(tt.want) {
				t.Fatalf("queries = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("query %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGenerateQueriesIncludesChatContext(t *testing.T) {
	provider := &stubLLM{response: "q1\nq2"}
	e := NewEngine(provider, &stubIndex{}, 3, 3, 5, testLogger())

	chatContext := "User: какие требования к аттестации?\nAssistant: Требования описаны в приказе."
	e.GenerateQueries(context.Background(), "а сроки?", 2, chatContext)

	if !strings.Contains(provider.lastPrompt, chatContext) {
		t.Errorf("generation prompt missing chat context:\n%s", provider.lastPrompt)
	}

	e.GenerateQueries(context.Background(), "а сроки?", 2, "")
	if !strings.Contains(provider.lastPrompt, "No previous conversation context.") {
		t.Errorf("generation prompt missing empty-context placeholder:\n%s", provider.lastPrompt)
	}
}

func TestSearchGeneratedModePassesContext(t *testing.T) {
	provider := &stubLLM{response: "q1"}
	index := &stubIndex{results: map[string][]store.Document{"q1": {doc("hit")}}}
	e := NewEngine(provider, index, 3, 3, 5, testLogger())

	_, err := e.Search(context.Background(), "а для них?", ModeGenerated, 1, "User: вопрос\nAssistant: ответ")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(provider.lastPrompt, "User: вопрос") {
		t.Errorf("search did not thread chat context into generation prompt:\n%s", provider.lastPrompt)
	}
}

func TestSearchSingleMode(t *testing.T) {
	index := &stubIndex{results: map[string][]store.Document{
		"the question": {doc("hit")},
	}}
	e := NewEngine(&stubLLM{response: "should not be used"}, index, 3, 3, 5, testLogger())

	result, err := e.Search(context.Background(), "the question", ModeSingle, 0, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.QueriesUsed) != 1 || result.QueriesUsed[0] != "the question" {
		t.Errorf("QueriesUsed = %v, want the original query only", result.QueriesUsed)
	}
	if len(result.Documents) != 1 || result.Documents[0].Content != "hit" {
		t.Errorf("Documents = %v, want the single hit", result.Documents)
	}
}

func TestSearchAbortsOnRetrievalFailure(t *testing.T) {
	index := &stubIndex{err: errors.New("db down")}
	e := NewEngine(&stubLLM{response: "q1\nq2"}, index, 3, 3, 5, testLogger())

	_, err := e.Search(context.Background(), "question", ModeGenerated, 2, "")
	var retrievalErr *RetrievalError
	if !errors.As(err, &retrievalErr) {
		t.Fatalf("err = %v, want RetrievalError", err)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	index := &stubIndex{results: map[string][]store.Document{
		"q": {doc("a"), doc("b"), doc("c"), doc("d")},
	}}
	e := NewEngine(&stubLLM{}, index, 3, 3, 2, testLogger())

	result, err := e.Search(context.Background(), "q", ModeSingle, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Documents) != 2 {
		t.Errorf("Documents length = %d, want topK=2", len(result.Documents))
	}
}
