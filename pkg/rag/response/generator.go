package response

import (
	"context"
	"log"

	"ai-regassist-be/pkg/llm"
	"ai-regassist-be/pkg/rag/prompt"
	"ai-regassist-be/pkg/store"
)

// Generator turns fused documents into the final user-facing answer
type Generator struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

// NewGenerator creates a response generator
func NewGenerator(llmProvider llm.LLMProvider, logger *log.Logger) *Generator {
	return &Generator{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// Synthesize answers the question from the fused documents and the
// conversation context. The documents are the only knowledge source;
// the prompt tells the model to say so when they don't cover the
// question.
func (g *Generator) Synthesize(ctx context.Context, query string, documents []store.ScoredDocument, chatContext string) (string, error) {
	promptText := prompt.NewSynthesisBuilder(query, documents, chatContext).Build()

	answer, err := g.llmProvider.Generate(ctx, promptText)
	if err != nil {
		g.logger.Printf("[ERROR] Answer synthesis failed: %v", err)
		return "", err
	}

	g.logger.Printf("[GENERATION] Answer synthesized from %d documents", len(documents))
	return answer, nil
}

// Direct answers without retrieval, keeping conversational continuity
// through the turn window. Used when the router picks a direct answer
// but returned no text of its own.
func (g *Generator) Direct(ctx context.Context, query string, turns []store.Turn) (string, error) {
	history := make([]llm.Message, 0, len(turns)+1)
	for _, turn := range turns {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	history = append(history, llm.Message{Role: "user", Content: query})

	answer, err := g.llmProvider.Chat(ctx, history)
	if err != nil {
		g.logger.Printf("[ERROR] Direct answer failed: %v", err)
		return "", err
	}
	return answer, nil
}
