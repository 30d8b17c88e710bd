package response

import (
	"fmt"
	"strings"
)

// Fixed user-facing texts for outcomes that never reach the LLM
const (
	ErrorMessage = "Sorry, something went wrong while processing your request. Please try again."
)

// RateLimitedMessage tells the user to slow down
func RateLimitedMessage(retryAfterSeconds int) string {
	return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds before sending another message.", retryAfterSeconds)
}

// DocumentNotFoundMessage lists the documents that are actually
// available when a lookup fails.
func DocumentNotFoundMessage(query string, available []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("No document found matching '%s'.", query))
	if len(available) > 0 {
		sb.WriteString("\n\nAvailable documents:\n")
		for _, name := range available {
			sb.WriteString("- ")
			sb.WriteString(name)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// DocumentFoundMessage summarizes a located document for the chat reply
func DocumentFoundMessage(name string, sizeMB float64) string {
	return fmt.Sprintf("Document '%s' found and ready for download (%.2f MB).", name, sizeMB)
}
