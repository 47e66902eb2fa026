package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookService(t *testing.T, googleURL, openLibraryURL string) *Service {
	t.Helper()

	cfg, err := config.New()
	require.NoError(t, err)
	cfg.GoogleBooksBaseURL = googleURL
	cfg.OpenLibrarySearchBaseURL = openLibraryURL
	return NewService(cfg, ratelimit.NewProviders())
}

func TestResolveBook(t *testing.T) {
	t.Parallel()

	t.Run("exact google title match wins, comics filtered out", func(t *testing.T) {
		t.Parallel()
		google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/books/v1/volumes", r.URL.Path)
			assert.Equal(t, "q=the+hobbit", r.URL.RawQuery)
			_, _ = w.Write([]byte(`{"items": [
				{"volumeInfo": {"title": "The Hobbit", "description": "Graphic novel edition.", "categories": ["Comics & Graphic Novels"]}},
				{"volumeInfo": {
					"title": "The Hobbit",
					"description": "There and back again.",
					"authors": ["J.R.R. Tolkien"],
					"publisher": "Allen & Unwin",
					"publishedDate": "1937",
					"pageCount": 310,
					"industryIdentifiers": [{"type": "ISBN_13", "identifier": "9780048231888"}],
					"imageLinks": {"thumbnail": "https://books.example.com/hobbit.jpg"}
				}}
			]}`))
		}))
		defer google.Close()

		svc := newBookService(t, google.URL, "http://unused.invalid")
		md := svc.ResolveBook(context.Background(), "The Hobbit", "")
		require.NotNil(t, md)

		assert.Equal(t, "The Hobbit", md.OriginalTitle)
		assert.Equal(t, "The Hobbit", md.Title)
		assert.Equal(t, "google", md.Provider)
		assert.Equal(t, "There and back again.", md.Description)
		assert.Equal(t, []string{"J.R.R. Tolkien"}, md.Authors)
		assert.Equal(t, []string{"Allen & Unwin"}, md.Publishers)
		assert.Equal(t, "9780048231888", md.ISBN13)
		assert.Equal(t, 310, md.NumberOfPages)
		assert.Equal(t, "https://books.example.com/hobbit.jpg", md.Cover)
	})

	t.Run("falls back to open library by isbn_13", func(t *testing.T) {
		t.Parallel()
		google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"items": []}`))
		}))
		defer google.Close()

		openLibrary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/openlibrary/_search", r.URL.Path)
			_, _ = w.Write([]byte(`{"hits": {"hits": [{"_source": {
				"title": "Dune",
				"isbn_13": ["9780441013593"],
				"isbn_10": "0441013597",
				"publish_date": "2005",
				"authors": ["Frank Herbert"],
				"publishers": ["Ace Books"],
				"number_of_pages": 535
			}}]}}`))
		}))
		defer openLibrary.Close()

		svc := newBookService(t, google.URL, openLibrary.URL)
		md := svc.ResolveBook(context.Background(), "Dune", "9780441013593")
		require.NotNil(t, md)

		assert.Equal(t, "devourer", md.Provider)
		assert.Equal(t, "Dune", md.Title)
		assert.Equal(t, "9780441013593", md.ISBN13)
		assert.Equal(t, "0441013597", md.ISBN10)
		assert.Equal(t, []string{"Frank Herbert"}, md.Authors)
		// No identifiers in the source record, so ISBNs get promoted.
		require.Len(t, md.Identifiers, 2)
		assert.Equal(t, "ISBN_13", md.Identifiers[0].Type)
		assert.Equal(t, "9780441013593", md.Identifiers[0].Value)
	})

	t.Run("colon title splits into title and subtitle", func(t *testing.T) {
		t.Parallel()
		google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"items": [{"volumeInfo": {
				"title": "Mistborn: The Final Empire",
				"description": "The Lord Ruler reigns."
			}}]}`))
		}))
		defer google.Close()

		svc := newBookService(t, google.URL, "http://unused.invalid")
		md := svc.ResolveBook(context.Background(), "Mistborn", "")
		require.NotNil(t, md)

		assert.Equal(t, "Mistborn", md.Title)
		assert.Equal(t, "The Final Empire", md.Subtitle)
	})

	t.Run("total failure still returns the original title", func(t *testing.T) {
		t.Parallel()
		svc := newBookService(t, "http://unreachable.invalid", "http://unreachable.invalid")
		md := svc.ResolveBook(context.Background(), "Unknown Book", "")
		require.NotNil(t, md)

		assert.Equal(t, "Unknown Book", md.OriginalTitle)
		assert.Empty(t, md.Title)
		assert.Empty(t, md.Provider)
	})
}
