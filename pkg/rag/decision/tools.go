package decision

import "ai-regassist-be/pkg/llm"

// Tool names the model can call
const (
	ToolRetrieveDocument    = "retrieve_document"
	ToolSearchKnowledgeBase = "search_knowledge_base"
)

// RetrieveDocumentArgs are the structured arguments for a document lookup
type RetrieveDocumentArgs struct {
	DocumentQuery string `json:"document_query" validate:"required,min=1"`
}

// SearchKnowledgeBaseArgs are the structured arguments for a fused search.
// Mode and NumQueries are optional; zero values mean engine defaults.
type SearchKnowledgeBaseArgs struct {
	Query      string `json:"query" validate:"required,min=1"`
	Mode       string `json:"mode" validate:"omitempty,oneof=single generated"`
	NumQueries int    `json:"num_queries" validate:"omitempty,min=1,max=10"`
}

// Tools returns the function schemas advertised to the model
func Tools() []llm.Tool {
	return []llm.Tool{
		{
			Name:        ToolRetrieveDocument,
			Description: "Retrieve a specific document file when the user explicitly asks for a document, PDF, manual, guide, or download.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"document_query": map[string]interface{}{
						"type":        "string",
						"description": "Name or description of the document to retrieve",
					},
				},
				"required": []string{"document_query"},
			},
		},
		{
			Name:        ToolSearchKnowledgeBase,
			Description: "Search the regulatory knowledge base to answer questions requiring information from documents.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"single", "generated"},
						"description": "Query mode: 'single' uses the query as-is, 'generated' expands it into multiple queries",
					},
					"num_queries": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"maximum":     10,
						"description": "Number of queries to generate if using 'generated' mode",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
