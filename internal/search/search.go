// Package search finds blog posts, books and events in the site content, through
// Meilisearch when it is available and an in-memory scan of the current document
// otherwise.
package search

import (
	"authorsite/api/internal/content"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPost  ResultType = "post"
	ResultBook  ResultType = "book"
	ResultEvent ResultType = "event"
)

// ParseResultType accepts the empty string as "all types".
func ParseResultType(value string) (ResultType, bool) {
	switch ResultType(value) {
	case "", ResultPost, ResultBook, ResultEvent:
		return ResultType(value), true
	}
	return "", false
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Date    string     `json:"date,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

type PostRecord struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	Featured    bool   `json:"featured"`
}

type BookRecord struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	PurchaseLink string `json:"purchaseLink"`
}

type EventRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Location    string `json:"location"`
}

// Records is the searchable projection of a content document.
type Records struct {
	Posts  []PostRecord
	Books  []BookRecord
	Events []EventRecord
}

func RecordsFrom(doc content.Document) Records {
	r := Records{
		Posts:  make([]PostRecord, 0, len(doc.Blog.Posts)),
		Books:  make([]BookRecord, 0, len(doc.Books.Books)),
		Events: make([]EventRecord, 0, len(doc.Events.Events)),
	}
	for _, p := range doc.Blog.Posts {
		r.Posts = append(r.Posts, PostRecord{ID: p.ID, Title: p.Title, Description: p.Description, Content: p.Content, Date: p.Date, Featured: p.Featured})
	}
	for _, b := range doc.Books.Books {
		r.Books = append(r.Books, BookRecord{ID: b.ID, Title: b.Title, PurchaseLink: b.PurchaseLink})
	}
	for _, e := range doc.Events.Events {
		r.Events = append(r.Events, EventRecord{ID: e.ID, Name: e.Name, Description: e.Description, Date: e.Date, Location: e.Location})
	}
	return r
}
