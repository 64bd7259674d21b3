package content

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Decode overlays persisted JSON onto Defaults, so sections or fields missing from
// older documents keep their default values, then upgrades the schema.
func Decode(data []byte) (Document, error) {
	doc := Defaults()
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode content: %w", err)
	}
	if err := Migrate(&doc, data); err != nil {
		return Document{}, err
	}
	normalizeLists(&doc)
	return doc, nil
}

// Encode serializes the document with the current schema version.
func Encode(doc Document) ([]byte, error) {
	doc = doc.Clone()
	doc.SchemaVersion = SchemaVersion
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	return data, nil
}

type legacyDocument struct {
	SchemaVersion int `json:"schemaVersion"`
	BlogSection   struct {
		Posts []struct {
			Excerpt string `json:"excerpt"`
		} `json:"posts"`
	} `json:"blogSection"`
}

// Migrate upgrades doc, decoded from raw, to SchemaVersion. Version 1 blog posts kept
// their summary under "excerpt".
func Migrate(doc *Document, raw []byte) error {
	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return fmt.Errorf("inspect content version: %w", err)
	}
	if legacy.SchemaVersion > SchemaVersion {
		return fmt.Errorf("content schema version %d is newer than supported version %d", legacy.SchemaVersion, SchemaVersion)
	}
	if legacy.SchemaVersion < 2 {
		for i := range doc.Blog.Posts {
			if i >= len(legacy.BlogSection.Posts) {
				break
			}
			if doc.Blog.Posts[i].Description == "" {
				doc.Blog.Posts[i].Description = legacy.BlogSection.Posts[i].Excerpt
			}
		}
	}
	doc.SchemaVersion = SchemaVersion
	return nil
}

// Equal reports whether two documents carry the same content.
func Equal(a, b Document) bool {
	a, b = a.Clone(), b.Clone()
	a.SchemaVersion, b.SchemaVersion = SchemaVersion, SchemaVersion
	return reflect.DeepEqual(a, b)
}
