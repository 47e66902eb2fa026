// Package epub reads publication metadata and cover images out of EPUB
// containers. Only the OPF package document is consulted; rendition
// content is never parsed.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
)

// Metadata is the result of parsing an EPUB: the publication fields plus
// the embedded cover image, when one is declared.
type Metadata struct {
	models.EpubMetadata
	CoverMimeType string
	CoverData     []byte
}

// HasJPEGCover reports whether the embedded cover is a JPEG, the only
// embedded format used directly as a library cover source.
func (m *Metadata) HasJPEGCover() bool {
	return len(m.CoverData) > 0 && (m.CoverMimeType == "image/jpeg" || m.CoverMimeType == "image/jpg")
}

type opf struct {
	Title         string
	Author        string
	Publisher     string
	Date          string
	Description   string
	Language      string
	ISBN          string
	CoverFilepath string
	CoverMimeType string
}

// Package mirrors the OPF package document. Only the elements we read are
// declared.
type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Description string `xml:"description"`
		Publisher   string `xml:"publisher"`
		Identifier  []struct {
			Text   string `xml:",chardata"`
			ID     string `xml:"id,attr"`
			Scheme string `xml:"scheme,attr"`
		} `xml:"identifier"`
		Date     string `xml:"date"`
		Language string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
}

var isbnDigits = regexp.MustCompile(`^[0-9][0-9Xx-]{8,16}$`)

// Parse opens the EPUB at path and extracts its package metadata and cover
// image bytes.
func Parse(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	stats, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	zipReader, err := zip.NewReader(f, stats.Size())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var parsed *opf
	for _, file := range zipReader.File {
		if filepath.Ext(file.Name) == ".opf" {
			r, err := file.Open()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			parsed, err = parseOPF(file.Name, r)
			r.Close()
			if err != nil {
				return nil, errors.WithStack(err)
			}
			break
		}
	}
	if parsed == nil {
		return nil, errors.New("no opf file found")
	}

	meta := &Metadata{
		EpubMetadata: models.EpubMetadata{
			Title:       parsed.Title,
			Author:      parsed.Author,
			Publisher:   parsed.Publisher,
			Date:        parsed.Date,
			Description: parsed.Description,
			Language:    parsed.Language,
			ISBN:        parsed.ISBN,
		},
		CoverMimeType: parsed.CoverMimeType,
	}

	if parsed.CoverFilepath != "" {
		for _, file := range zipReader.File {
			if file.Name == parsed.CoverFilepath {
				r, err := file.Open()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				b, err := io.ReadAll(r)
				r.Close()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				meta.CoverData = b
				break
			}
		}
	}

	return meta, nil
}

func parseOPF(filename string, r io.Reader) (*opf, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	if err := xml.Unmarshal(b, pkg); err != nil {
		return nil, errors.WithStack(err)
	}

	// Manifest hrefs are relative to the OPF file's own directory.
	basePath := filepath.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	// Refinement metas keyed by the element they refine, plus the legacy
	// name/content metas.
	metaProperties := map[string]map[string]string{}
	metaContent := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if _, ok := metaProperties[key]; !ok {
				metaProperties[key] = map[string]string{}
			}
			metaProperties[key][m.Property] = m.Text
		} else if m.Content != "" {
			metaContent[m.Name] = m.Content
		}
	}

	title := ""
	if len(pkg.Metadata.Title) == 1 {
		title = pkg.Metadata.Title[0].Text
	} else if len(pkg.Metadata.Title) > 1 {
		for _, t := range pkg.Metadata.Title {
			if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
				title = t.Text
				break
			}
		}
		if title == "" {
			title = pkg.Metadata.Title[0].Text
		}
	}

	// The first creator with the author role wins; a sole unmarked creator
	// is assumed to be the author.
	author := ""
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		if role == "aut" || len(pkg.Metadata.Creator) == 1 {
			author = creator.Text
			break
		}
	}

	isbn := ""
	for _, id := range pkg.Metadata.Identifier {
		value := strings.TrimSpace(id.Text)
		lower := strings.ToLower(value)
		switch {
		case strings.EqualFold(id.Scheme, "isbn"):
			isbn = value
		case strings.HasPrefix(lower, "urn:isbn:"):
			isbn = value[len("urn:isbn:"):]
		case isbnDigits.MatchString(value):
			isbn = value
		}
		if isbn != "" {
			isbn = strings.ReplaceAll(isbn, "-", "")
			break
		}
	}

	coverFilepath := ""
	coverMimeType := ""
	if coverID := metaContent["cover"]; coverID != "" {
		for _, item := range pkg.Manifest.Item {
			if item.ID == coverID {
				coverFilepath = basePath + item.Href
				coverMimeType = item.MediaType
			}
		}
	}
	if coverFilepath == "" {
		// EPUB 3 marks the cover on the manifest item itself.
		for _, item := range pkg.Manifest.Item {
			if strings.Contains(item.Properties, "cover-image") {
				coverFilepath = basePath + item.Href
				coverMimeType = item.MediaType
				break
			}
		}
	}

	return &opf{
		Title:         title,
		Author:        author,
		Publisher:     pkg.Metadata.Publisher,
		Date:          pkg.Metadata.Date,
		Description:   pkg.Metadata.Description,
		Language:      pkg.Metadata.Language,
		ISBN:          isbn,
		CoverFilepath: coverFilepath,
		CoverMimeType: coverMimeType,
	}, nil
}
