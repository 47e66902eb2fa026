package models

// Identifier is a single structured identifier attached to a metadata
// record (ISBN_10, ISBN_13, OCLC, etc.).
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"identifier"`
}

// BookMetadata is the canonical bibliographic record shape. Every external
// provider's response is mapped into this flat struct at the resolver
// boundary; nothing loosely typed flows into persistence.
type BookMetadata struct {
	OriginalTitle     string       `json:"original_title,omitempty"`
	Title             string       `json:"title,omitempty"`
	Subtitle          string       `json:"subtitle,omitempty"`
	ISBN10            string       `json:"isbn_10,omitempty"`
	ISBN13            string       `json:"isbn_13,omitempty"`
	PublishDate       string       `json:"publish_date,omitempty"`
	Description       string       `json:"description,omitempty"`
	Authors           []string     `json:"authors,omitempty"`
	Genres            []string     `json:"genres,omitempty"`
	Publishers        []string     `json:"publishers,omitempty"`
	Identifiers       []Identifier `json:"identifiers,omitempty"`
	Subjects          []string     `json:"subjects,omitempty"`
	NumberOfPages     int          `json:"number_of_pages,omitempty"`
	Cover             string       `json:"cover,omitempty"`
	OCLCNumbers       []string     `json:"oclc_numbers,omitempty"`
	WorkKey           string       `json:"work_key,omitempty"`
	Key               string       `json:"key,omitempty"`
	DeweyDecimalClass string       `json:"dewey_decimal_class,omitempty"`
	Provider          string       `json:"provider,omitempty"`

	// Epub holds metadata extracted from the file itself, kept alongside
	// the provider record. The embedded cover bytes are never persisted.
	Epub *EpubMetadata `json:"epub,omitempty"`
}

// EpubMetadata is the subset of embedded e-book metadata that gets
// persisted with a book file.
type EpubMetadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
}

// MangaData is the canonical series record shape for manga providers.
type MangaData struct {
	MetadataID       int      `json:"metadata_id,omitempty"`
	MetadataProvider string   `json:"metadata_provider,omitempty"`
	Title            string   `json:"title,omitempty"`
	Titles           []string `json:"titles,omitempty"`
	Synopsis         string   `json:"synopsis,omitempty"`
	Background       string   `json:"background,omitempty"`
	CoverImage       string   `json:"coverImage,omitempty"`
	Authors          []string `json:"authors,omitempty"`
	Demographics     []string `json:"demographics,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	Themes           []string `json:"themes,omitempty"`
	Score            float64  `json:"score,omitempty"`
	URL              string   `json:"url,omitempty"`
	TotalVolumes     int      `json:"total_volumes,omitempty"`
	TotalChapters    int      `json:"total_chapters,omitempty"`
	PublishedFrom    string   `json:"published_from,omitempty"`
	PublishedTo      string   `json:"published_to,omitempty"`
	Status           string   `json:"status,omitempty"`
}
