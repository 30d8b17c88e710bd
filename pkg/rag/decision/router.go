package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"ai-regassist-be/pkg/llm"
	"ai-regassist-be/pkg/rag/prompt"

	"github.com/go-playground/validator/v10"
)

// Kind classifies what the router decided to do with a turn
type Kind string

const (
	KindRetrieveDocument    Kind = "RETRIEVE_DOCUMENT"
	KindSearchKnowledgeBase Kind = "SEARCH_KNOWLEDGE_BASE"
	KindDirectAnswer        Kind = "DIRECT_ANSWER"
	KindRefuse              Kind = "REFUSE"
)

// Decision is the routed outcome for one user turn. Exactly one of
// the argument fields is set, according to Kind; Answer carries the
// model's text for direct answers and refusals. Raw keeps the model
// output that produced the decision for audit logging.
type Decision struct {
	Kind      Kind
	Retrieve  *RetrieveDocumentArgs
	Search    *SearchKnowledgeBaseArgs
	Answer    string
	Raw       string
	DecidedAt time.Time
}

// Router asks the model to pick a capability for each turn via
// function calling. Malformed tool payloads never fail the turn; they
// degrade to a direct answer so the conversation keeps moving.
type Router struct {
	llmProvider llm.LLMProvider
	validate    *validator.Validate
	refusals    []string
	logger      *log.Logger
}

// NewRouter creates a decision router. refusals are the exact refusal
// texts the system prompt instructs the model to use; a direct answer
// containing one of them is classified as KindRefuse.
func NewRouter(llmProvider llm.LLMProvider, refusals []string, logger *log.Logger) *Router {
	return &Router{
		llmProvider: llmProvider,
		validate:    validator.New(),
		refusals:    refusals,
		logger:      logger,
	}
}

// Decide routes one user query. documentSummary advertises the
// retrievable documents; chatContext is the formatted turn window.
func (r *Router) Decide(ctx context.Context, query, chatContext, documentSummary string) (*Decision, error) {
	history := []llm.Message{
		{Role: "system", Content: prompt.BuildDecisionSystem(documentSummary, chatContext)},
		{Role: "user", Content: query},
	}

	result, err := r.llmProvider.ChatWithTools(ctx, history, Tools(), llm.WithTemperature(0.0))
	if err != nil {
		return nil, fmt.Errorf("routing call failed: %w", err)
	}

	if result.Call == nil {
		return r.classifyDirect(result.Text), nil
	}

	decision, err := r.parseCall(result.Call)
	if err != nil {
		r.logger.Printf("[ROUTER] Malformed tool call %q, degrading to direct answer: %v", result.Call.Name, err)
		return r.classifyDirect(result.Text), nil
	}

	r.logger.Printf("[ROUTER] Decision: %s", decision.Kind)
	decision.Raw = string(result.Call.Arguments)
	decision.DecidedAt = time.Now()
	return decision, nil
}

// parseCall decodes and validates structured tool arguments
func (r *Router) parseCall(call *llm.ToolCall) (*Decision, error) {
	switch call.Name {
	case ToolRetrieveDocument:
		var args RetrieveDocumentArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, err
		}
		if err := r.validate.Struct(&args); err != nil {
			return nil, err
		}
		return &Decision{Kind: KindRetrieveDocument, Retrieve: &args}, nil

	case ToolSearchKnowledgeBase:
		var args SearchKnowledgeBaseArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, err
		}
		if err := r.validate.Struct(&args); err != nil {
			return nil, err
		}
		return &Decision{Kind: KindSearchKnowledgeBase, Search: &args}, nil

	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

// classifyDirect splits direct model text into answers and refusals
func (r *Router) classifyDirect(text string) *Decision {
	trimmed := strings.TrimSpace(text)
	for _, refusal := range r.refusals {
		if trimmed != "" && strings.Contains(trimmed, refusal) {
			r.logger.Printf("[ROUTER] Decision: %s", KindRefuse)
			return &Decision{Kind: KindRefuse, Answer: trimmed, Raw: text, DecidedAt: time.Now()}
		}
	}
	r.logger.Printf("[ROUTER] Decision: %s", KindDirectAnswer)
	return &Decision{Kind: KindDirectAnswer, Answer: trimmed, Raw: text, DecidedAt: time.Now()}
}
