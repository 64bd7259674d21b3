package content

import (
	"fmt"
	"strings"

	"authorsite/api/internal/util"
)

// Validate checks list ids and the required fields the admin editors enforce.
func Validate(doc Document) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	checkIDs := func(section string, ids []int64) {
		seen := make(map[int64]struct{}, len(ids))
		for i, id := range ids {
			if id == 0 {
				add("%s[%d]: id is required", section, i)
				continue
			}
			if _, dup := seen[id]; dup {
				add("%s[%d]: duplicate id %d", section, i, id)
			}
			seen[id] = struct{}{}
		}
	}

	bookIDs := make([]int64, len(doc.Books.Books))
	for i, book := range doc.Books.Books {
		bookIDs[i] = book.ID
	}
	checkIDs("booksSection.books", bookIDs)

	imageIDs := make([]int64, len(doc.Gallery.Images))
	for i, image := range doc.Gallery.Images {
		imageIDs[i] = image.ID
	}
	checkIDs("gallerySection.images", imageIDs)

	eventIDs := make([]int64, len(doc.Events.Events))
	for i, event := range doc.Events.Events {
		eventIDs[i] = event.ID
		for _, msg := range ValidateEvent(event) {
			add("eventsSection.events[%d]: %s", i, msg)
		}
	}
	checkIDs("eventsSection.events", eventIDs)

	serviceIDs := make([]int64, len(doc.Services.Services))
	for i, service := range doc.Services.Services {
		serviceIDs[i] = service.ID
		for _, msg := range ValidateService(service) {
			add("servicesSection.services[%d]: %s", i, msg)
		}
	}
	checkIDs("servicesSection.services", serviceIDs)

	postIDs := make([]int64, len(doc.Blog.Posts))
	for i, post := range doc.Blog.Posts {
		postIDs[i] = post.ID
		for _, msg := range ValidatePost(post) {
			add("blogSection.posts[%d]: %s", i, msg)
		}
	}
	checkIDs("blogSection.posts", postIDs)

	networkIDs := make([]int64, len(doc.Social.Networks))
	for i, network := range doc.Social.Networks {
		networkIDs[i] = network.ID
	}
	checkIDs("socialMedia.networks", networkIDs)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func ValidateEvent(event Event) []string {
	var problems []string
	if blank(event.Name) {
		problems = append(problems, "El nombre del evento es requerido")
	}
	if blank(event.Description) {
		problems = append(problems, "La descripción del evento es requerida")
	}
	if blank(event.Date) {
		problems = append(problems, "La fecha del evento es requerida")
	}
	if blank(event.Time) {
		problems = append(problems, "La hora del evento es requerida")
	}
	if blank(event.Location) {
		problems = append(problems, "El lugar del evento es requerido")
	}
	return problems
}

func ValidateService(service Service) []string {
	if blank(service.Title) || blank(service.Description) {
		return []string{"El título y descripción son requeridos"}
	}
	return nil
}

func ValidatePost(post Post) []string {
	if blank(post.Title) {
		return []string{"El título del post es requerido"}
	}
	return nil
}

// AssignIDs gives every list item without an id a fresh one. Existing ids are kept.
func AssignIDs(doc *Document) {
	for i := range doc.Books.Books {
		if doc.Books.Books[i].ID == 0 {
			doc.Books.Books[i].ID = util.NewItemID()
		}
	}
	for i := range doc.Gallery.Images {
		if doc.Gallery.Images[i].ID == 0 {
			doc.Gallery.Images[i].ID = util.NewItemID()
		}
	}
	for i := range doc.Events.Events {
		if doc.Events.Events[i].ID == 0 {
			doc.Events.Events[i].ID = util.NewItemID()
		}
	}
	for i := range doc.Services.Services {
		if doc.Services.Services[i].ID == 0 {
			doc.Services.Services[i].ID = util.NewItemID()
		}
	}
	for i := range doc.Blog.Posts {
		if doc.Blog.Posts[i].ID == 0 {
			doc.Blog.Posts[i].ID = util.NewItemID()
		}
	}
	for i := range doc.Social.Networks {
		if doc.Social.Networks[i].ID == 0 {
			doc.Social.Networks[i].ID = util.NewItemID()
		}
	}
}

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}
