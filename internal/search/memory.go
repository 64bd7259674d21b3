package search

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const snippetRadius = 80

// Memory scans the latest records in process. Every query term must appear in the
// entity's text; matching ignores case and accents.
type Memory struct {
	mu      sync.RWMutex
	records Records
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Set(records Records) {
	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
}

func (m *Memory) Search(q Query) ([]Result, int) {
	terms := strings.Fields(fold(q.Text))
	if len(terms) == 0 {
		return []Result{}, 0
	}

	m.mu.RLock()
	records := m.records
	m.mu.RUnlock()

	var results []Result
	if q.FilterType == "" || q.FilterType == ResultPost {
		for _, p := range records.Posts {
			if matches(terms, p.Title, p.Description, p.Content) {
				results = append(results, Result{Type: ResultPost, ID: p.ID, Title: p.Title, Snippet: snippet(terms[0], p.Description, p.Content), Date: p.Date})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultBook {
		for _, b := range records.Books {
			if matches(terms, b.Title) {
				results = append(results, Result{Type: ResultBook, ID: b.ID, Title: b.Title})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultEvent {
		for _, e := range records.Events {
			if matches(terms, e.Name, e.Description, e.Location) {
				results = append(results, Result{Type: ResultEvent, ID: e.ID, Title: e.Name, Snippet: snippet(terms[0], e.Description, e.Location), Date: e.Date})
			}
		}
	}

	total := len(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	if results == nil {
		results = []Result{}
	}
	return results, total
}

func matches(terms []string, fields ...string) bool {
	text := fold(strings.Join(fields, " "))
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

// snippet returns the text around the first occurrence of term in the first field
// containing it, or the start of the first non-empty field.
func snippet(term string, fields ...string) string {
	for _, field := range fields {
		runes := []rune(field)
		folded := []rune(fold(field))
		if len(folded) != len(runes) {
			continue
		}
		idx := indexRunes(folded, []rune(term))
		if idx < 0 {
			continue
		}
		start := max(0, idx-snippetRadius)
		end := min(len(runes), idx+len([]rune(term))+snippetRadius)
		return strings.TrimSpace(string(runes[start:end]))
	}
	for _, field := range fields {
		if strings.TrimSpace(field) != "" {
			runes := []rune(strings.TrimSpace(field))
			return string(runes[:min(len(runes), 2*snippetRadius)])
		}
	}
	return ""
}

func indexRunes(haystack, needle []rune) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases s and strips combining accents, so "Galería" matches "galeria".
func fold(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
