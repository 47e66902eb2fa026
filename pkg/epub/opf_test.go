package epub

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPF_Metadata(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>The Way of Kings</dc:title>
    <dc:creator opf:role="aut">Brandon Sanderson</dc:creator>
    <dc:publisher>Tor Books</dc:publisher>
    <dc:date>2010-08-31</dc:date>
    <dc:description>An epic fantasy.</dc:description>
    <dc:language>en</dc:language>
    <dc:identifier opf:scheme="ISBN">978-0-7653-2635-5</dc:identifier>
  </metadata>
</package>`

	result, err := parseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "The Way of Kings", result.Title)
	assert.Equal(t, "Brandon Sanderson", result.Author)
	assert.Equal(t, "Tor Books", result.Publisher)
	assert.Equal(t, "2010-08-31", result.Date)
	assert.Equal(t, "An epic fantasy.", result.Description)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, "9780765326355", result.ISBN)
}

func TestParseOPF_ISBNFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{
			name:       "urn isbn prefix",
			identifier: `<dc:identifier>urn:isbn:9780316769488</dc:identifier>`,
			want:       "9780316769488",
		},
		{
			name:       "bare digits",
			identifier: `<dc:identifier>0316769487</dc:identifier>`,
			want:       "0316769487",
		},
		{
			name:       "uuid is ignored",
			identifier: `<dc:identifier>urn:uuid:a1b2c3d4-e5f6-7890-abcd-ef1234567890</dc:identifier>`,
			want:       "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    ` + tt.identifier + `
  </metadata>
</package>`

			result, err := parseOPF("content.opf", strings.NewReader(opfXML))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.ISBN)
		})
	}
}

func TestParseOPF_MainTitleByProperty(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="title-sub">Book One of the Stormlight Archive</dc:title>
    <dc:title id="title-main">The Way of Kings</dc:title>
    <meta refines="#title-main" property="title-type">main</meta>
    <meta refines="#title-sub" property="title-type">subtitle</meta>
  </metadata>
</package>`

	result, err := parseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Way of Kings", result.Title)
}

func TestParseOPF_CreatorRoleByRefine(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator id="illustrator">Some Artist</dc:creator>
    <dc:creator id="writer">The Author</dc:creator>
    <meta refines="#illustrator" property="role">ill</meta>
    <meta refines="#writer" property="role">aut</meta>
  </metadata>
</package>`

	result, err := parseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)
	assert.Equal(t, "The Author", result.Author)
}

func TestParse_CoverExtraction(t *testing.T) {
	t.Parallel()

	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Covered Book</dc:title>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
  </manifest>
</package>`
	coverBytes := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}

	path := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("OEBPS/content.opf")
	require.NoError(t, err)
	_, err = w.Write([]byte(opfXML))
	require.NoError(t, err)

	w, err = zw.Create("OEBPS/images/cover.jpg")
	require.NoError(t, err)
	_, err = w.Write(coverBytes)
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	meta, err := Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "Covered Book", meta.Title)
	assert.Equal(t, "image/jpeg", meta.CoverMimeType)
	assert.Equal(t, coverBytes, meta.CoverData)
	assert.True(t, meta.HasJPEGCover())
}

func TestParse_NoOPF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.epub")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("mimetype")
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = Parse(path)
	assert.EqualError(t, err, "no opf file found")
}
