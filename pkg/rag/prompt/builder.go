package prompt

import (
	"fmt"
	"strings"

	"ai-regassist-be/pkg/store"
)

// SynthesisBuilder builds the final answer prompt from the current
// question, the fused documents, and the conversation so far.
type SynthesisBuilder struct {
	query       string
	documents   []store.ScoredDocument
	chatContext string
}

// NewSynthesisBuilder creates a prompt builder for answer synthesis
func NewSynthesisBuilder(query string, documents []store.ScoredDocument, chatContext string) *SynthesisBuilder {
	return &SynthesisBuilder{
		query:       query,
		documents:   documents,
		chatContext: chatContext,
	}
}

// Build assembles the synthesis prompt
func (b *SynthesisBuilder) Build() string {
	var prompt strings.Builder

	prompt.WriteString("You are a helpful assistant answering questions based on the provided documents and conversation history.\n\n")

	if b.chatContext != "" {
		prompt.WriteString("Previous conversation:\n")
		prompt.WriteString(b.chatContext)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("Current question: ")
	prompt.WriteString(b.query)
	prompt.WriteString("\n\nRelevant documents:\n")
	b.writeDocuments(&prompt)

	prompt.WriteString("\nInstructions:\n")
	prompt.WriteString("1. If there is previous conversation context, consider it when formulating your answer to maintain continuity.\n")
	prompt.WriteString("2. Answer the current question based on the provided documents and any relevant conversation history.\n")
	prompt.WriteString("3. If the documents don't contain relevant information, say so.\n")
	prompt.WriteString("4. Be concise but thorough in your response.\n")
	prompt.WriteString("5. Answer the question either in Kazakh or Russian, depending on the language of the question.\n")
	prompt.WriteString("6. Translate \"ПББ (Педагогтің білімін бағалау)\" from Kazakh to \"ОЗП\" in Russian.\n")
	prompt.WriteString("\nAnswer:\n")

	return prompt.String()
}

func (b *SynthesisBuilder) writeDocuments(prompt *strings.Builder) {
	if len(b.documents) == 0 {
		prompt.WriteString("(no documents retrieved)\n")
		return
	}
	for i, doc := range b.documents {
		prompt.WriteString(fmt.Sprintf("--- Document %d ---\n", i+1))
		prompt.WriteString(doc.Content)
		prompt.WriteString("\n")
	}
}

// FormatChatContext renders the session turn window the way the
// synthesis and decision prompts expect it.
func FormatChatContext(turns []store.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case store.RoleUser:
			sb.WriteString("User: ")
		case store.RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString(turn.Role + ": ")
		}
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
