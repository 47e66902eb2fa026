package opds

import (
	"encoding/xml"
	"time"
)

// Atom and OPDS namespaces.
const (
	AtomNS = "http://www.w3.org/2005/Atom"
	DCNS   = "http://purl.org/dc/terms/"
	OPDSNS = "http://opds-spec.org/2010/catalog"
)

// Link relation types.
const (
	RelSelf        = "self"
	RelStart       = "start"
	RelUp          = "up"
	RelSubsection  = "subsection"
	RelAcquisition = "http://opds-spec.org/acquisition"
	RelImage       = "http://opds-spec.org/image"
	RelThumbnail   = "http://opds-spec.org/image/thumbnail"
)

// MIME types.
const (
	MimeTypeAtom        = "application/atom+xml"
	MimeTypeNavigation  = "application/atom+xml;profile=opds-catalog;kind=navigation"
	MimeTypeAcquisition = "application/atom+xml;profile=opds-catalog;kind=acquisition"
	MimeTypeEPUB        = "application/epub+zip"
	MimeTypeCBZ         = "application/vnd.comicbook+zip"
	MimeTypeCBR         = "application/vnd.comicbook-rar"
	MimeTypePDF         = "application/pdf"
	MimeTypeWebP        = "image/webp"
	MimeTypeJPEG        = "image/jpeg"
)

// Feed is an OPDS Atom feed.
type Feed struct {
	XMLName   xml.Name  `xml:"feed"`
	Xmlns     string    `xml:"xmlns,attr"`
	XmlnsDC   string    `xml:"xmlns:dc,attr,omitempty"`
	XmlnsOPDS string    `xml:"xmlns:opds,attr,omitempty"`
	ID        string    `xml:"id"`
	Title     string    `xml:"title"`
	Updated   time.Time `xml:"updated"`
	Author    *Author   `xml:"author,omitempty"`
	Links     []Link    `xml:"link"`
	Entries   []Entry   `xml:"entry"`
}

// NewFeed creates a feed with the default namespaces.
func NewFeed(id, title string) *Feed {
	return &Feed{
		Xmlns:     AtomNS,
		XmlnsDC:   DCNS,
		XmlnsOPDS: OPDSNS,
		ID:        id,
		Title:     title,
		Updated:   time.Now().UTC(),
		Links:     []Link{},
		Entries:   []Entry{},
	}
}

func (f *Feed) AddLink(rel, href, linkType string) {
	f.Links = append(f.Links, Link{Rel: rel, Href: href, Type: linkType})
}

func (f *Feed) AddEntry(entry Entry) {
	f.Entries = append(f.Entries, entry)
}

// Entry is a navigation item or an acquirable publication.
type Entry struct {
	ID        string    `xml:"id"`
	Title     string    `xml:"title"`
	Updated   time.Time `xml:"updated"`
	Authors   []Author  `xml:"author,omitempty"`
	Summary   string    `xml:"summary,omitempty"`
	Content   *Content  `xml:"content,omitempty"`
	Links     []Link    `xml:"link"`
	Publisher string    `xml:"dc:publisher,omitempty"`
}

func NewEntry(id, title string) Entry {
	return Entry{
		ID:      id,
		Title:   title,
		Updated: time.Now().UTC(),
		Links:   []Link{},
	}
}

func (e *Entry) AddLink(rel, href, linkType string) {
	e.Links = append(e.Links, Link{Rel: rel, Href: href, Type: linkType})
}

func (e *Entry) AddAcquisitionLink(href, mimeType string) {
	e.AddLink(RelAcquisition, href, mimeType)
}

func (e *Entry) AddImageLink(href, mimeType string) {
	e.AddLink(RelImage, href, mimeType)
}

func (e *Entry) AddThumbnailLink(href, mimeType string) {
	e.AddLink(RelThumbnail, href, mimeType)
}

type Author struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

type Link struct {
	Rel   string `xml:"rel,attr,omitempty"`
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr,omitempty"`
	Title string `xml:"title,attr,omitempty"`
}

type Content struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// FileFormatMimeType returns the MIME type used for acquisition links of a
// given stored file format.
func FileFormatMimeType(format string) string {
	switch format {
	case "epub":
		return MimeTypeEPUB
	case "cbz", "zip":
		return MimeTypeCBZ
	case "cbr", "rar":
		return MimeTypeCBR
	case "pdf":
		return MimeTypePDF
	default:
		return "application/octet-stream"
	}
}
