package metadata

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

type googleVolumesResponse struct {
	Items []googleVolume `json:"items"`
}

type googleVolume struct {
	VolumeInfo struct {
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		Authors             []string `json:"authors"`
		Publisher           string   `json:"publisher"`
		PublishedDate       string   `json:"publishedDate"`
		Description         string   `json:"description"`
		PageCount           int      `json:"pageCount"`
		Categories          []string `json:"categories"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// flexString accepts either a bare JSON string or an array of strings,
// taking the first element. Bibliographic dumps are inconsistent about
// which one they use for ISBN fields.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return errors.WithStack(err)
	}
	if len(arr) > 0 {
		*f = flexString(arr[0])
	}
	return nil
}

type openLibraryDoc struct {
	Title             string              `json:"title"`
	Subtitle          string              `json:"subtitle"`
	ISBN10            flexString          `json:"isbn_10"`
	ISBN13            flexString          `json:"isbn_13"`
	PublishDate       string              `json:"publish_date"`
	OCLCNumbers       []string            `json:"oclc_numbers"`
	WorkKey           string              `json:"work_key"`
	Key               string              `json:"key"`
	DeweyDecimalClass string              `json:"dewey_decimal_class"`
	Description       string              `json:"description"`
	Authors           []string            `json:"authors"`
	Genres            []string            `json:"genres"`
	Publishers        []string            `json:"publishers"`
	Identifiers       []models.Identifier `json:"identifiers"`
	NumberOfPages     int                 `json:"number_of_pages"`
	Cover             string              `json:"cover"`
	Subjects          []string            `json:"subjects"`
}

type openLibrarySearchResponse struct {
	Hits struct {
		Hits []struct {
			Source openLibraryDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// ResolveBook resolves bibliographic metadata for a book title: Google
// Books by exact title first, then the Open Library search service keyed
// by ISBN-13, ISBN-10, and finally free-text title. Failures never
// propagate; the returned record always carries at least the original
// title.
func (s *Service) ResolveBook(ctx context.Context, title, isbn string) *models.BookMetadata {
	log := logger.FromContext(ctx)

	if md, err := s.googleBookByTitle(ctx, title); err != nil {
		log.Err(err).Warn("google books lookup failed")
	} else if md != nil {
		md.OriginalTitle = title
		finishBookRecord(md)
		return md
	}

	var doc *openLibraryDoc
	if len(isbn) == 13 {
		doc = s.openLibraryFirst(ctx, "isbn_13", isbn)
	}
	if doc == nil && len(isbn) == 10 {
		doc = s.openLibraryFirst(ctx, "isbn_10", isbn)
	}
	if doc == nil {
		doc = s.openLibraryFirst(ctx, "title", title)
	}

	if doc == nil {
		return &models.BookMetadata{OriginalTitle: title}
	}

	md := &models.BookMetadata{
		OriginalTitle:     title,
		Title:             doc.Title,
		Subtitle:          doc.Subtitle,
		ISBN10:            string(doc.ISBN10),
		ISBN13:            string(doc.ISBN13),
		PublishDate:       doc.PublishDate,
		OCLCNumbers:       doc.OCLCNumbers,
		WorkKey:           doc.WorkKey,
		Key:               doc.Key,
		DeweyDecimalClass: doc.DeweyDecimalClass,
		Description:       doc.Description,
		Authors:           doc.Authors,
		Genres:            doc.Genres,
		Publishers:        doc.Publishers,
		Identifiers:       doc.Identifiers,
		NumberOfPages:     doc.NumberOfPages,
		Cover:             doc.Cover,
		Subjects:          doc.Subjects,
		Provider:          "devourer",
	}
	finishBookRecord(md)
	return md
}

// finishBookRecord applies the shared record fixups: a colon title splits
// into title and subtitle when no subtitle exists, and ISBNs are promoted
// into the identifiers list when it is empty.
func finishBookRecord(md *models.BookMetadata) {
	if md.Subtitle == "" && strings.Contains(md.Title, ":") {
		parts := strings.SplitN(md.Title, ":", 2)
		md.Title = strings.TrimSpace(parts[0])
		md.Subtitle = strings.TrimSpace(parts[1])
	}

	if len(md.Identifiers) == 0 {
		if md.ISBN13 != "" {
			md.Identifiers = append(md.Identifiers, models.Identifier{Type: "ISBN_13", Value: md.ISBN13})
		}
		if md.ISBN10 != "" {
			md.Identifiers = append(md.Identifiers, models.Identifier{Type: "ISBN_10", Value: md.ISBN10})
		}
	}
}

// googleBookByTitle queries Google Books and keeps the first exact
// case-insensitive title match that has a description, skipping results in
// the comics category. No usable result yields (nil, nil).
func (s *Service) googleBookByTitle(ctx context.Context, title string) (*models.BookMetadata, error) {
	query := strings.ToLower(strings.ReplaceAll(title, " ", "+"))
	endpoint := s.cfg.GoogleBooksBaseURL + "/books/v1/volumes?q=" + query
	if s.cfg.GoogleBooksAPIKey != "" {
		endpoint += "&key=" + s.cfg.GoogleBooksAPIKey
	}

	body, err := ratelimit.Schedule(ctx, s.limiters.GoogleBooks(), func() ([]byte, error) {
		return s.get(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	response := &googleVolumesResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		return nil, errors.WithStack(err)
	}

	items := make([]googleVolume, 0, len(response.Items))
	for _, item := range response.Items {
		comics := false
		for _, category := range item.VolumeInfo.Categories {
			if category == "Comics & Graphic Novels" {
				comics = true
				break
			}
		}
		if !comics {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	var selected *googleVolume
	for i := range items {
		info := items[i].VolumeInfo
		if info.Title == "" || info.Description == "" {
			continue
		}
		if strings.EqualFold(info.Title, title) {
			selected = &items[i]
			break
		}
	}
	if selected == nil {
		selected = &items[0]
	}

	info := selected.VolumeInfo
	md := &models.BookMetadata{
		Title:         info.Title,
		Subtitle:      info.Subtitle,
		PublishDate:   info.PublishedDate,
		Description:   info.Description,
		Authors:       info.Authors,
		Genres:        info.Categories,
		Subjects:      info.Categories,
		NumberOfPages: info.PageCount,
		Cover:         info.ImageLinks.Thumbnail,
		Provider:      "google",
	}
	if info.Publisher != "" {
		md.Publishers = []string{info.Publisher}
	}
	for _, id := range info.IndustryIdentifiers {
		md.Identifiers = append(md.Identifiers, models.Identifier{Type: id.Type, Value: id.Identifier})
		switch id.Type {
		case "ISBN_13":
			md.ISBN13 = id.Identifier
		case "ISBN_10":
			md.ISBN10 = id.Identifier
		}
	}
	return md, nil
}

// openLibraryFirst posts a term or phrase query to the Open Library search
// service and returns the first hit. Errors are logged and swallowed;
// missing metadata never fails an ingestion step.
func (s *Service) openLibraryFirst(ctx context.Context, by, query string) *openLibraryDoc {
	log := logger.FromContext(ctx)

	// Some filenames carry a suffix after a dash; search on the part
	// before it.
	if strings.Contains(query, "-") {
		query = strings.TrimSpace(strings.Split(query, "-")[0])
	}

	var payload map[string]any
	switch by {
	case "isbn_10", "isbn_13":
		payload = map[string]any{
			"query": map[string]any{"term": map[string]any{by: query}},
			"size":  10,
		}
	case "title":
		payload = map[string]any{
			"query": map[string]any{"match_phrase": map[string]any{"title": query}},
			"size":  10,
		}
	default:
		return nil
	}

	body, err := ratelimit.Schedule(ctx, s.limiters.OpenLibrary(), func() ([]byte, error) {
		return s.postJSON(ctx, s.cfg.OpenLibrarySearchBaseURL+"/openlibrary/_search", payload)
	})
	if err != nil {
		log.Err(err).Warn("open library lookup failed", logger.Data{"by": by})
		return nil
	}

	response := &openLibrarySearchResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		log.Err(err).Warn("open library response unreadable", logger.Data{"by": by})
		return nil
	}
	if len(response.Hits.Hits) == 0 {
		return nil
	}
	return &response.Hits.Hits[0].Source
}

func (s *Service) postJSON(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("metadata request failed with status %d", resp.StatusCode)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}
