package content

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// SectionName is the document key of an independently addressable section.
type SectionName string

const (
	SectionHero     SectionName = "heroSection"
	SectionAbout    SectionName = "aboutSection"
	SectionBooks    SectionName = "booksSection"
	SectionGallery  SectionName = "gallerySection"
	SectionEvents   SectionName = "eventsSection"
	SectionServices SectionName = "servicesSection"
	SectionBlog     SectionName = "blogSection"
	SectionSocial   SectionName = "socialMedia"
)

// Sections lists every section in page order.
var Sections = []SectionName{
	SectionHero,
	SectionAbout,
	SectionBooks,
	SectionGallery,
	SectionEvents,
	SectionServices,
	SectionBlog,
	SectionSocial,
}

func ParseSection(name string) (SectionName, error) {
	for _, section := range Sections {
		if string(section) == name {
			return section, nil
		}
	}
	return "", fmt.Errorf("unknown section %q", name)
}

func (d *Document) section(name SectionName) (any, error) {
	switch name {
	case SectionHero:
		return &d.Hero, nil
	case SectionAbout:
		return &d.About, nil
	case SectionBooks:
		return &d.Books, nil
	case SectionGallery:
		return &d.Gallery, nil
	case SectionEvents:
		return &d.Events, nil
	case SectionServices:
		return &d.Services, nil
	case SectionBlog:
		return &d.Blog, nil
	case SectionSocial:
		return &d.Social, nil
	default:
		return nil, fmt.Errorf("unknown section %q", name)
	}
}

// Section returns the named section as a JSON-encodable value.
func (d Document) Section(name SectionName) (any, error) {
	ptr, err := d.section(name)
	if err != nil {
		return nil, err
	}
	return ptr, nil
}

// MergeSection returns a copy of doc where the top-level keys of partial replace the
// matching keys of the named section. Keys absent from partial keep their values.
func MergeSection(doc Document, name SectionName, partial json.RawMessage) (Document, error) {
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(partial, &overlay); err != nil || overlay == nil {
		return Document{}, &ValidationError{Problems: []string{fmt.Sprintf("%s: update must be a JSON object", name)}}
	}

	out := doc.Clone()
	ptr, err := out.section(name)
	if err != nil {
		return Document{}, err
	}

	current, err := json.Marshal(ptr)
	if err != nil {
		return Document{}, fmt.Errorf("encode section %s: %w", name, err)
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return Document{}, fmt.Errorf("decode section %s: %w", name, err)
	}
	for key, value := range overlay {
		merged[key] = value
	}
	combined, err := json.Marshal(merged)
	if err != nil {
		return Document{}, fmt.Errorf("encode merged section %s: %w", name, err)
	}
	// Decoding into a reused slice keeps stale fields of old elements, so start from zero.
	reflect.ValueOf(ptr).Elem().SetZero()
	if err := json.Unmarshal(combined, ptr); err != nil {
		return Document{}, &ValidationError{Problems: []string{fmt.Sprintf("%s: %v", name, err)}}
	}
	normalizeLists(&out)
	return out, nil
}
