package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"ai-regassist-be/pkg/embedding"

	gocache "github.com/patrickmn/go-cache"
)

// Match type labels
const (
	MatchExact    = "exact_match"
	MatchSemantic = "semantic_match"
)

// Match describes a successfully located document file
type Match struct {
	Name    string  `json:"document_name"`
	Path    string  `json:"file_path"`
	SizeMB  float64 `json:"file_size_mb"`
	Score   float64 `json:"match_score"`
	Type    string  `json:"match_type"`
	Message string  `json:"message"`
}

// NotFoundError carries the known document names so the caller can
// tell the user what is actually available.
type NotFoundError struct {
	Query string
	Known []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no document found matching %q", e.Query)
}

// Locator resolves free-form document requests to registered files.
// Exact name containment wins outright; otherwise the request falls
// through to embedding similarity over the registered names.
type Locator struct {
	embedder  embedding.EmbeddingProvider
	mappings  map[string]string
	names     []string
	cache     *gocache.Cache
	threshold float64
	logger    *log.Logger
}

// NewLocator creates a locator over a name-to-path registry. Call
// Rebuild before the first lookup so the name embeddings are cached;
// until then only exact matches resolve.
func NewLocator(embedder embedding.EmbeddingProvider, mappings map[string]string, threshold float64, logger *log.Logger) *Locator {
	if threshold <= 0 {
		threshold = 0.3
	}

	names := make([]string, 0, len(mappings))
	for name := range mappings {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Locator{
		embedder:  embedder,
		mappings:  mappings,
		names:     names,
		cache:     gocache.New(gocache.NoExpiration, 0),
		threshold: threshold,
		logger:    logger,
	}
}

// LoadRegistry reads a document name to file path mapping from JSON
func LoadRegistry(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document registry not found: %w", err)
	}

	var mappings map[string]string
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("invalid document registry: %w", err)
	}
	return mappings, nil
}

var nameSeparators = regexp.MustCompile(`[_\-]`)

// Rebuild re-embeds every registered document name and replaces the
// cached vectors. It runs at startup and on explicit registry changes,
// never implicitly during lookups.
func (l *Locator) Rebuild(ctx context.Context) error {
	for _, name := range l.names {
		searchable := fmt.Sprintf("%s %s %s",
			name,
			strings.ToLower(name),
			nameSeparators.ReplaceAllString(strings.ToLower(name), " "))

		vec, err := l.embedder.Embed(ctx, searchable)
		if err != nil {
			return fmt.Errorf("embedding document name %q: %w", name, err)
		}
		l.cache.Set(name, vec, gocache.NoExpiration)
	}

	l.logger.Printf("[LOCATOR] Built semantic index for %d documents", len(l.names))
	return nil
}

// Names returns the registered document names in sorted order
func (l *Locator) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Summary describes the registry for the routing prompt
func (l *Locator) Summary() string {
	if len(l.names) == 0 {
		return "No documents available"
	}
	preview := l.names
	if len(preview) > 5 {
		preview = preview[:5]
	}
	return fmt.Sprintf("%d documents including: %s...", len(l.names), strings.Join(preview, ", "))
}

// Find resolves a document request. Exact containment in either
// direction (case-insensitive) scores 1.0; otherwise the best cosine
// similarity above the threshold wins. A match whose file is missing
// on disk does not count.
func (l *Locator) Find(ctx context.Context, query string) (*Match, error) {
	l.logger.Printf("[LOCATOR] Searching for document: %q", query)

	lowered := strings.ToLower(query)
	for _, name := range l.names {
		loweredName := strings.ToLower(name)
		if strings.Contains(loweredName, lowered) || strings.Contains(lowered, loweredName) {
			if match := l.describe(name, 1.0, MatchExact); match != nil {
				return match, nil
			}
		}
	}

	if match, err := l.findSemantic(ctx, query); err != nil {
		return nil, err
	} else if match != nil {
		return match, nil
	}

	return nil, &NotFoundError{Query: query, Known: l.Names()}
}

// findSemantic returns the best cached-name match above the threshold,
// or nil when nothing qualifies. Ties keep the first name in sorted
// order so results are deterministic.
func (l *Locator) findSemantic(ctx context.Context, query string) (*Match, error) {
	queryVec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding document query: %w", err)
	}

	bestScore := -1.0
	bestName := ""
	for _, name := range l.names {
		cached, ok := l.cache.Get(name)
		if !ok {
			continue
		}
		vec, ok := cached.([]float32)
		if !ok {
			continue
		}
		if score := embedding.CosineSimilarity(queryVec, vec); score > bestScore {
			bestScore = score
			bestName = name
		}
	}

	if bestName == "" || bestScore <= l.threshold {
		return nil, nil
	}
	return l.describe(bestName, bestScore, MatchSemantic), nil
}

// describe builds the match record, returning nil when the backing
// file no longer exists on disk.
func (l *Locator) describe(name string, score float64, matchType string) *Match {
	path := l.mappings[name]
	info, err := os.Stat(path)
	if err != nil {
		l.logger.Printf("[LOCATOR] Registered document %q missing on disk: %s", name, path)
		return nil
	}

	return &Match{
		Name:    name,
		Path:    path,
		SizeMB:  math.Round(float64(info.Size())/(1024*1024)*100) / 100,
		Score:   score,
		Type:    matchType,
		Message: fmt.Sprintf("Document '%s' found and ready for download.", name),
	}
}
