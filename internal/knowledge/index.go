package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Document is an immutable entry in the knowledge index. Its id is derived
// from source and content, so re-adding identical content yields the same id.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// Result is one ranked retrieval hit. Score is a relative ordering aid,
// not a calibrated probability.
type Result struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"relevance_score"`
}

type Stats struct {
	Count int `json:"total_documents"`
}

// Index ranks short documents by keyword overlap with the query. It is
// purely in-memory; search is total and never fails.
type Index struct {
	mu    sync.RWMutex
	docs  []*Document
	byID  map[string]*Document
}

func NewIndex() *Index {
	return &Index{byID: make(map[string]*Document)}
}

// DocumentID derives the deterministic id for a (source, content) pair.
func DocumentID(source, content string) string {
	sum := sha256.Sum256([]byte(source + "\x00" + content))
	return fmt.Sprintf("%s_%s", source, hex.EncodeToString(sum[:8]))
}

// Add stores a document and returns its id. An empty id defaults to
// DocumentID(source, content); adding under an existing id replaces the
// stored document in place, keeping its original insertion rank.
func (ix *Index) Add(content, source string, metadata map[string]string, id string) string {
	if id == "" {
		id = DocumentID(source, content)
	}
	md := map[string]string{"source": source}
	for k, v := range metadata {
		md[k] = v
	}
	doc := &Document{ID: id, Content: content, Source: source, Metadata: md}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if existing, ok := ix.byID[id]; ok {
		*existing = *doc
		return id
	}
	ix.docs = append(ix.docs, doc)
	ix.byID[id] = doc
	return id
}

// AddBatch adds documents in order (order matters for ranking tie-breaks).
func (ix *Index) AddBatch(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, ix.Add(d.Content, d.Source, d.Metadata, d.ID))
	}
	return ids
}

// Search scores each document as |query-token set ∩ content-token set| plus
// the number of query tokens occurring as substrings of the content.
// Documents scoring zero are excluded. filter is an exact-equality match
// against document metadata. Results are sorted by score descending with
// insertion order breaking ties, truncated to topK.
func (ix *Index) Search(query string, topK int, filter map[string]string) []Result {
	tokens := queryTokens(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		doc   *Document
		score int
	}
	var candidates []scored
	for _, doc := range ix.docs {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		score := scoreDocument(doc.Content, tokens)
		if score == 0 {
			continue
		}
		candidates = append(candidates, scored{doc: doc, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK >= 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		md := make(map[string]string, len(c.doc.Metadata))
		for k, v := range c.doc.Metadata {
			md[k] = v
		}
		results = append(results, Result{
			Content:  c.doc.Content,
			Source:   c.doc.Source,
			Metadata: md,
			// Divided by 10 to keep the displayed value bounded.
			Score: float64(c.score) / 10.0,
		})
	}
	return results
}

// Delete removes a document and reports whether anything was removed.
func (ix *Index) Delete(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.byID[id]; !ok {
		return false
	}
	delete(ix.byID, id)
	for i, doc := range ix.docs {
		if doc.ID == id {
			ix.docs = append(ix.docs[:i], ix.docs[i+1:]...)
			break
		}
	}
	return true
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{Count: len(ix.docs)}
}

func queryTokens(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

func scoreDocument(content string, tokens []string) int {
	contentLower := strings.ToLower(content)
	contentWords := make(map[string]bool)
	for _, w := range strings.Fields(contentLower) {
		contentWords[w] = true
	}

	score := 0
	for _, tok := range tokens {
		if contentWords[tok] {
			score++
		}
		if strings.Contains(contentLower, tok) {
			score++
		}
	}
	return score
}

func matchesFilter(metadata, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
