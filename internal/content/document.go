// Package content defines the site content document: the single record every page
// section is read from and every admin editor writes to.
package content

// SchemaVersion is written into every encoded document. Version 1 documents predate
// the field and are upgraded by Migrate.
const SchemaVersion = 2

type Document struct {
	SchemaVersion int             `json:"schemaVersion" yaml:"schemaVersion"`
	Hero          HeroSection     `json:"heroSection" yaml:"heroSection"`
	About         AboutSection    `json:"aboutSection" yaml:"aboutSection"`
	Books         BooksSection    `json:"booksSection" yaml:"booksSection"`
	Gallery       GallerySection  `json:"gallerySection" yaml:"gallerySection"`
	Events        EventsSection   `json:"eventsSection" yaml:"eventsSection"`
	Services      ServicesSection `json:"servicesSection" yaml:"servicesSection"`
	Blog          BlogSection     `json:"blogSection" yaml:"blogSection"`
	Social        SocialMedia     `json:"socialMedia" yaml:"socialMedia"`
}

type HeroSection struct {
	Title                  string `json:"title" yaml:"title"`
	Description            string `json:"description" yaml:"description"`
	BackgroundImageDesktop string `json:"backgroundImageDesktop" yaml:"backgroundImageDesktop"`
	BackgroundImageMobile  string `json:"backgroundImageMobile" yaml:"backgroundImageMobile"`
	LogoImage              string `json:"logoImage" yaml:"logoImage"`
	ButtonText             string `json:"buttonText" yaml:"buttonText"`
}

type AboutSection struct {
	Title     string  `json:"title" yaml:"title"`
	Biography string  `json:"biography" yaml:"biography"`
	// AuthorImage is null until an image has been uploaded.
	AuthorImage *string `json:"authorImage" yaml:"authorImage"`
}

type BooksSection struct {
	Title string `json:"title" yaml:"title"`
	Books []Book `json:"books" yaml:"books"`
}

type Book struct {
	ID           int64  `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	CoverImage   string `json:"coverImage" yaml:"coverImage"`
	PurchaseLink string `json:"purchaseLink" yaml:"purchaseLink"`
}

type GallerySection struct {
	Title  string  `json:"title" yaml:"title"`
	Images []Image `json:"images" yaml:"images"`
}

type Image struct {
	ID    int64  `json:"id" yaml:"id"`
	Image string `json:"image" yaml:"image"`
}

type EventsSection struct {
	Events []Event `json:"events" yaml:"events"`
}

type Event struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Date        string `json:"date" yaml:"date"`
	Time        string `json:"time" yaml:"time"`
	Location    string `json:"location" yaml:"location"`
}

type ServicesSection struct {
	Title      string    `json:"title" yaml:"title"`
	ButtonText string    `json:"buttonText" yaml:"buttonText"`
	Services   []Service `json:"services" yaml:"services"`
}

type Service struct {
	ID          int64  `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Icon        string `json:"icon" yaml:"icon"`
}

type BlogSection struct {
	Title      string `json:"title" yaml:"title"`
	ButtonText string `json:"buttonText" yaml:"buttonText"`
	Posts      []Post `json:"posts" yaml:"posts"`
}

type Post struct {
	ID            int64   `json:"id" yaml:"id"`
	Title         string  `json:"title" yaml:"title"`
	Description   string  `json:"description" yaml:"description"`
	Content       string  `json:"content" yaml:"content"`
	Date          string  `json:"date" yaml:"date"`
	Featured      bool    `json:"featured" yaml:"featured"`
	FeaturedImage *string `json:"featuredImage" yaml:"featuredImage"`
}

type SocialMedia struct {
	Networks []Network `json:"networks" yaml:"networks"`
}

type Network struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// Icon holds inline SVG markup.
	Icon string `json:"icon" yaml:"icon"`
	Link string `json:"link" yaml:"link"`
}

// FindPost returns the blog post with the given id.
func (d Document) FindPost(id int64) (Post, bool) {
	for _, post := range d.Blog.Posts {
		if post.ID == id {
			return post, true
		}
	}
	return Post{}, false
}

// Clone returns a deep copy so snapshots handed to readers never share slices with the
// owner's working copy.
func (d Document) Clone() Document {
	out := d
	out.About.AuthorImage = cloneString(d.About.AuthorImage)
	out.Books.Books = append([]Book(nil), d.Books.Books...)
	out.Gallery.Images = append([]Image(nil), d.Gallery.Images...)
	out.Events.Events = append([]Event(nil), d.Events.Events...)
	out.Services.Services = append([]Service(nil), d.Services.Services...)
	out.Blog.Posts = make([]Post, len(d.Blog.Posts))
	for i, post := range d.Blog.Posts {
		post.FeaturedImage = cloneString(post.FeaturedImage)
		out.Blog.Posts[i] = post
	}
	out.Social.Networks = append([]Network(nil), d.Social.Networks...)
	normalizeLists(&out)
	return out
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// normalizeLists replaces nil slices with empty ones so documents always encode lists
// as [] rather than null.
func normalizeLists(d *Document) {
	if d.Books.Books == nil {
		d.Books.Books = []Book{}
	}
	if d.Gallery.Images == nil {
		d.Gallery.Images = []Image{}
	}
	if d.Events.Events == nil {
		d.Events.Events = []Event{}
	}
	if d.Services.Services == nil {
		d.Services.Services = []Service{}
	}
	if d.Blog.Posts == nil {
		d.Blog.Posts = []Post{}
	}
	if d.Social.Networks == nil {
		d.Social.Networks = []Network{}
	}
}
