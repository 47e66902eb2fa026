package opds

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devourer-reader/devourer/pkg/books"
	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/libraries"
	"github.com/devourer-reader/devourer/pkg/manga"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/devourer-reader/devourer/pkg/scanner"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	libraryService *libraries.Service
	bookService    *books.Service
	mangaService   *manga.Service
}

// baseURL reconstructs the externally visible prefix, honoring reverse
// proxy forwarding headers.
func baseURL(c echo.Context) string {
	scheme := "http"
	if c.Request().TLS != nil {
		scheme = "https"
	}
	if proto := c.Request().Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	prefix := c.Request().Header.Get("X-Forwarded-Prefix")
	return scheme + "://" + c.Request().Host + prefix + "/opds"
}

func writeFeed(c echo.Context, feed *Feed, kind string) error {
	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	body := append([]byte(xml.Header), out...)
	return errors.WithStack(c.Blob(http.StatusOK, kind, body))
}

// catalog lists every library as a navigation entry.
func (h *handler) catalog(c echo.Context) error {
	ctx := c.Request().Context()
	base := baseURL(c)

	libs, err := h.libraryService.ListLibraries(ctx, libraries.ListLibrariesOptions{})
	if err != nil {
		return errors.WithStack(err)
	}

	feed := NewFeed("devourer:catalog", "Devourer")
	feed.Author = &Author{Name: "Devourer"}
	feed.AddLink(RelSelf, base, MimeTypeNavigation)
	feed.AddLink(RelStart, base, MimeTypeNavigation)

	for _, library := range libs {
		entry := NewEntry(fmt.Sprintf("devourer:library:%d", library.ID), library.Name)
		entry.Content = &Content{Type: "text", Value: library.Type + " library"}
		entry.AddLink(RelSubsection, fmt.Sprintf("%s/libraries/%d", base, library.ID), MimeTypeAcquisition)
		feed.AddEntry(entry)
	}

	return writeFeed(c, feed, MimeTypeNavigation)
}

// libraryFeed lists a book library's files for acquisition, or a manga
// library's series as subsections.
func (h *handler) libraryFeed(c echo.Context) error {
	ctx := c.Request().Context()
	base := baseURL(c)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Library")
	}
	library, err := h.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	feed := NewFeed(fmt.Sprintf("devourer:library:%d", library.ID), library.Name)
	feed.AddLink(RelSelf, fmt.Sprintf("%s/libraries/%d", base, library.ID), MimeTypeAcquisition)
	feed.AddLink(RelStart, base, MimeTypeNavigation)
	feed.AddLink(RelUp, base, MimeTypeNavigation)

	if library.Type == models.LibraryTypeManga {
		allSeries, err := h.mangaService.ListSeries(ctx, manga.ListSeriesOptions{LibraryID: &library.ID})
		if err != nil {
			return errors.WithStack(err)
		}
		for _, series := range allSeries {
			entry := NewEntry(fmt.Sprintf("devourer:series:%d", series.ID), series.Title)
			if series.MangaDataParsed != nil && series.MangaDataParsed.Synopsis != "" {
				entry.Summary = series.MangaDataParsed.Synopsis
			}
			entry.AddLink(RelSubsection, fmt.Sprintf("%s/libraries/%d/series/%d", base, library.ID, series.ID), MimeTypeAcquisition)
			if series.Cover != "" {
				entry.AddImageLink(fmt.Sprintf("%s/covers/series/%d", base, series.ID), MimeTypeWebP)
				entry.AddThumbnailLink(fmt.Sprintf("%s/covers/series/%d", base, series.ID), MimeTypeWebP)
			}
			feed.AddEntry(entry)
		}
		return writeFeed(c, feed, MimeTypeNavigation)
	}

	files, err := h.bookService.ListBookFiles(ctx, books.ListBookFilesOptions{LibraryID: &library.ID})
	if err != nil {
		return errors.WithStack(err)
	}
	for _, file := range files {
		feed.AddEntry(h.bookEntry(base, file))
	}
	return writeFeed(c, feed, MimeTypeAcquisition)
}

func (h *handler) bookEntry(base string, file *models.BookFile) Entry {
	entry := NewEntry(fmt.Sprintf("devourer:book:%d", file.ID), file.Title)
	entry.Updated = file.UpdatedAt

	if md := file.MetadataParsed; md != nil {
		for _, author := range md.Authors {
			entry.Authors = append(entry.Authors, Author{Name: author})
		}
		if md.Description != "" {
			entry.Summary = md.Description
		}
		if len(md.Publishers) > 0 {
			entry.Publisher = md.Publishers[0]
		}
	}

	entry.AddAcquisitionLink(fmt.Sprintf("%s/download/books/%d", base, file.ID), FileFormatMimeType(file.FileFormat))
	entry.AddImageLink(fmt.Sprintf("%s/covers/books/%d", base, file.ID), MimeTypeWebP)
	entry.AddThumbnailLink(fmt.Sprintf("%s/covers/books/%d", base, file.ID), MimeTypeWebP)
	return entry
}

// seriesFeed lists one series' archives for acquisition.
func (h *handler) seriesFeed(c echo.Context) error {
	ctx := c.Request().Context()
	base := baseURL(c)

	libraryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Library")
	}
	seriesID, err := strconv.Atoi(c.Param("seriesID"))
	if err != nil {
		return errcodes.NotFound("Series")
	}

	series, err := h.mangaService.RetrieveSeries(ctx, manga.RetrieveSeriesOptions{
		ID:           &seriesID,
		LibraryID:    &libraryID,
		IncludeFiles: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	feed := NewFeed(fmt.Sprintf("devourer:series:%d", series.ID), series.Title)
	feed.AddLink(RelSelf, fmt.Sprintf("%s/libraries/%d/series/%d", base, libraryID, series.ID), MimeTypeAcquisition)
	feed.AddLink(RelUp, fmt.Sprintf("%s/libraries/%d", base, libraryID), MimeTypeNavigation)

	for _, file := range series.Files {
		entry := NewEntry(fmt.Sprintf("devourer:manga:%d", file.ID), file.FileName)
		entry.Updated = file.UpdatedAt
		entry.AddAcquisitionLink(fmt.Sprintf("%s/download/manga/%d", base, file.ID), FileFormatMimeType(file.FileFormat))
		entry.AddThumbnailLink(fmt.Sprintf("%s/previews/manga/%d", base, file.ID), MimeTypeJPEG)
		feed.AddEntry(entry)
	}
	return writeFeed(c, feed, MimeTypeAcquisition)
}

func (h *handler) downloadBook(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}
	file, err := h.bookService.RetrieveBookFile(ctx, books.RetrieveBookFileOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.Attachment(file.Path, file.FileName))
}

func (h *handler) downloadManga(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("File")
	}
	file, err := h.mangaService.RetrieveMangaFileByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.Attachment(file.Path, file.FileName))
}

func (h *handler) bookCover(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}
	file, err := h.bookService.RetrieveBookFile(ctx, books.RetrieveBookFileOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	library, err := h.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &file.LibraryID})
	if err != nil {
		return errors.WithStack(err)
	}

	path := filepath.Join(scanner.BookAssetDir(library.Path, file.ID), "cover.webp")
	if _, err := os.Stat(path); err != nil {
		return errcodes.NotFound("Cover")
	}
	return errors.WithStack(c.File(path))
}

func (h *handler) seriesCover(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Series")
	}
	series, err := h.mangaService.RetrieveSeries(ctx, manga.RetrieveSeriesOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	if series.Cover == "" {
		return errcodes.NotFound("Cover")
	}
	return errors.WithStack(c.File(series.Cover))
}

func (h *handler) mangaPreview(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("File")
	}
	file, err := h.mangaService.RetrieveMangaFileByID(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	series, err := h.mangaService.RetrieveSeries(ctx, manga.RetrieveSeriesOptions{ID: &file.SeriesID})
	if err != nil {
		return errors.WithStack(err)
	}
	library, err := h.libraryService.RetrieveLibrary(ctx, libraries.RetrieveLibraryOptions{ID: &series.LibraryID})
	if err != nil {
		return errors.WithStack(err)
	}

	path := scanner.PreviewPath(library.Path, series.ID, file.FileName)
	if _, err := os.Stat(path); err != nil {
		return errcodes.NotFound("Preview")
	}
	return errors.WithStack(c.File(path))
}
