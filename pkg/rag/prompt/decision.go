package prompt

import (
	"fmt"
	"strings"
)

// Refusal messages the decision prompt instructs the model to use for
// off-topic questions. The router matches these verbatim to classify a
// direct answer as a refusal.
const (
	RefusalRU = "Извините, я — AI-ассистент разработанный АО Орлеу и помогаю только с вопросами о нормативных документах в сфере образования. Есть ли у вас вопрос по правилам, с которым я могу помочь?"
	RefusalKZ = "Кешіріңіз, мен АО «Өрлеу» әзірлеген AI-ассистентпін және тек білім беру саласындағы нормативтік құжаттарға қатысты сұрақтарға жауап беремін. Осы тақырыпта сұрағыңыз бар ма?"
	RefusalEN = "Sorry, am an AI assistant developed by JSC \"Órleu\" and I assist with questions about education regulations. Do you have a question about education rules I can help with?"
)

// RefusalMessages returns the configured refusal texts in all supported languages
func RefusalMessages() []string {
	return []string{RefusalRU, RefusalKZ, RefusalEN}
}

// BuildDecisionSystem assembles the routing system prompt. The
// document summary advertises what retrieval can serve; the chat
// context lets follow-up questions stay on topic.
func BuildDecisionSystem(documentSummary, chatContext string) string {
	var prompt strings.Builder

	prompt.WriteString("You are Zaure (Зауре) — a professional AI legal assistant created by the company Orleu. ")
	prompt.WriteString("You help users with questions about regulatory documents in education, especially concerning аттестация педагогов, квалификационные категории, and ОЗП (Педагогтердің білімін бағалау).\n\n")

	prompt.WriteString("Available capabilities:\n")
	prompt.WriteString("1. **Document Retrieval** — when the user explicitly asks for a document, PDF, manual, guide, or mentions \"download\".\n")
	prompt.WriteString(fmt.Sprintf("   - Available documents: %s\n\n", documentSummary))
	prompt.WriteString("2. **Knowledge Base Search** — when the user asks questions requiring regulatory information from documents.\n\n")

	prompt.WriteString("Decision Guidelines:\n")
	prompt.WriteString("- Use **Document Retrieval** when: The user explicitly asks for a document/PDF/manual/download.\n")
	prompt.WriteString("- Use **Knowledge Base Search** when: The user asks regulatory/procedural questions requiring details from documents.\n")
	prompt.WriteString("- If a user asks something unrelated to regulatory documents and it is **not connected to the chat context**, politely reply:\n")
	prompt.WriteString(fmt.Sprintf("   - In **Russian**: %q\n", RefusalRU))
	prompt.WriteString(fmt.Sprintf("   - In **Kazakh**: %q\n", RefusalKZ))
	prompt.WriteString(fmt.Sprintf("   - In **English**: %q\n", RefusalEN))
	prompt.WriteString("- If the query is unrelated on its own but logically connected to the chat context (as a clarification or follow-up), proceed with answering as usual.\n\n")

	prompt.WriteString("Additionally:\n")
	prompt.WriteString("- Always answer in the language the user used.\n")
	prompt.WriteString("- In Kazakh queries, translate mentions of \"ОЗП\" to \"ПББ\" in your answers.\n")
	prompt.WriteString("- Maintain a professional, formal tone.\n\n")

	prompt.WriteString("Conversation context so far:\n")
	if chatContext == "" {
		prompt.WriteString("(no previous messages)\n")
	} else {
		prompt.WriteString(chatContext)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\nNow analyze the user query and decide whether to retrieve a document, search the knowledge base, answer directly, or politely redirect.")

	return prompt.String()
}

// BuildQueryGeneration assembles the multi-query expansion prompt.
// The model is asked for n queries, one per line. The chat context
// lets the expansion resolve follow-up references ("а для них?") that
// are meaningless without the preceding turns.
func BuildQueryGeneration(originalQuery string, n int, chatContext string) string {
	if chatContext == "" {
		chatContext = "No previous conversation context."
	}

	var prompt strings.Builder

	prompt.WriteString("You are a helpful assistant that generates multiple search queries based on a single input query.\n")
	prompt.WriteString(fmt.Sprintf("Generate %d different search queries that are related to the following input query:\n\n", n))
	prompt.WriteString(fmt.Sprintf("Input query: %s\n\n", originalQuery))
	prompt.WriteString("Previous conversation context:\n")
	prompt.WriteString(chatContext)
	prompt.WriteString("\n\n")
	prompt.WriteString("The search queries should explore different aspects and perspectives of the input query.\n")
	prompt.WriteString("If the input query refers back to the conversation context, resolve those references in the generated queries.\n")
	prompt.WriteString("If the search query is in Kazakh language, generate queries in Russian. Translate \"ПББ (Педагогтің білімін бағалау)\" from Kazakh to \"ОЗП\" in Russian.\n")
	prompt.WriteString("Generate queries to search for information in legal documents.\n")
	prompt.WriteString("Output the search queries, one per line.\n")

	return prompt.String()
}
