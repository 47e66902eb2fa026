package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, pluginDir, name, body string) {
	t.Helper()

	dir := filepath.Join(pluginDir, "providers")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestService(t *testing.T, pluginDir string) *Service {
	t.Helper()

	cfg, err := config.New()
	require.NoError(t, err)
	cfg.PluginDir = pluginDir
	return NewService(cfg, ratelimit.NewProviders())
}

func TestLoadDescriptors(t *testing.T) {
	t.Parallel()

	t.Run("keeps metadata documents and skips the rest", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeDescriptor(t, dir, "jikan.json", `{
			"type": "metadata",
			"key": "myanimelist",
			"properties": {"library_type": "manga", "results_entity": "data"},
			"endpoints": {"title": "https://api.jikan.moe/v4/manga?q={{query}}"},
			"parser": {"title": "title"}
		}`)
		writeDescriptor(t, dir, "theme.json", `{"type": "theme", "key": "dark"}`)

		descriptors, err := LoadDescriptors(dir)
		require.NoError(t, err)
		require.Len(t, descriptors, 1)
		assert.Equal(t, "myanimelist", descriptors[0].Key)
	})

	t.Run("rejects a parser targeting an unknown field", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeDescriptor(t, dir, "bad.json", `{
			"type": "metadata",
			"key": "bad",
			"properties": {"library_type": "manga", "results_entity": "data"},
			"endpoints": {"title": "https://example.com?q={{query}}"},
			"parser": {"not_a_field": "title"}
		}`)

		_, err := LoadDescriptors(dir)
		assert.ErrorContains(t, err, `unknown field "not_a_field"`)
	})

	t.Run("rejects an unknown post-processing action", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeDescriptor(t, dir, "bad.json", `{
			"type": "metadata",
			"key": "bad",
			"properties": {"library_type": "manga", "results_entity": "data"},
			"endpoints": {"title": "https://example.com?q={{query}}"},
			"parser": {"genres": "genre"},
			"postProcessing": {"genres": {"action": "explode"}}
		}`)

		_, err := LoadDescriptors(dir)
		assert.ErrorContains(t, err, `unknown post-processing action "explode"`)
	})

	t.Run("missing plugin directory yields no descriptors", func(t *testing.T) {
		t.Parallel()
		descriptors, err := LoadDescriptors(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, descriptors)
	})
}

func TestMappingRuleUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want MappingRule
	}{
		{
			name: "string is a direct copy",
			in:   `"images.jpg.large_image_url"`,
			want: MappingRule{Kind: RuleDirect, Source: "images.jpg.large_image_url"},
		},
		{
			name: "object is a projection",
			in:   `{"key": "authors", "value": "name"}`,
			want: MappingRule{Kind: RuleProjection, Key: "authors", Value: "name"},
		},
		{
			name: "static key is a constant",
			in:   `{"key": "static", "value": "myanimelist"}`,
			want: MappingRule{Kind: RuleStatic, Value: "myanimelist"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := MappingRule{}
			require.NoError(t, rule.UnmarshalJSON([]byte(tt.in)))
			assert.Equal(t, tt.want, rule)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("maps static, direct, and projected fields", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "frieren", r.URL.Query().Get("q"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data": [{
				"title": "Sousou no Frieren",
				"titles": [{"type": "Default", "title": "Sousou no Frieren"}, {"type": "English", "title": "Frieren"}],
				"synopsis": "The journey after the journey.",
				"authors": [{"name": "Yamada, Kanehito"}, {"name": "Abe, Tsukasa"}],
				"images": {"jpg": {"large_image_url": "https://cdn.example.com/frieren.jpg"}}
			}]}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		writeDescriptor(t, dir, "jikan.json", `{
			"type": "metadata",
			"key": "myanimelist",
			"properties": {"library_type": "manga", "results_entity": "data", "search_array": "titles"},
			"endpoints": {"title": "`+srv.URL+`?q={{query}}"},
			"parser": {
				"title": "title",
				"synopsis": "synopsis",
				"coverImage": "images.jpg.large_image_url",
				"authors": {"key": "authors", "value": "name"},
				"metadata_provider": {"key": "static", "value": "myanimelist"}
			}
		}`)

		svc := newTestService(t, dir)
		record, err := svc.Resolve(context.Background(), "myanimelist", "title", "frieren", "")
		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, "myanimelist", record["metadata_provider"])
		assert.Equal(t, "Sousou no Frieren", record["title"])
		assert.Equal(t, "https://cdn.example.com/frieren.jpg", record["coverImage"])
		assert.Equal(t, []any{"Yamada, Kanehito", "Abe, Tsukasa"}, record["authors"])
	})

	t.Run("empty results yield nil without error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": []}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		writeDescriptor(t, dir, "jikan.json", `{
			"type": "metadata",
			"key": "myanimelist",
			"properties": {"library_type": "manga", "results_entity": "data"},
			"endpoints": {"title": "`+srv.URL+`?q={{query}}"},
			"parser": {"title": "title"}
		}`)

		svc := newTestService(t, dir)
		record, err := svc.Resolve(context.Background(), "myanimelist", "title", "nothing", "")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("alias array match beats result order", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data": [
				{"title": "Wrong Series", "titles": [{"title": "Wrong Series"}]},
				{"title": "Right Series", "titles": [{"title": "Right Series"}, {"title": "RIGHT series"}]}
			]}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		writeDescriptor(t, dir, "jikan.json", `{
			"type": "metadata",
			"key": "myanimelist",
			"properties": {"library_type": "manga", "results_entity": "data", "search_array": "titles"},
			"endpoints": {"title": "`+srv.URL+`?q={{query}}"},
			"parser": {"title": "title"}
		}`)

		svc := newTestService(t, dir)
		record, err := svc.Resolve(context.Background(), "myanimelist", "title", "right series", "")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "Right Series", record["title"])
	})

	t.Run("post-processing promotes identifiers and lists", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"results": [{"name": "Some Book", "isbn": "9780765326355", "publisher": "Tor"}]}`))
		}))
		defer srv.Close()

		dir := t.TempDir()
		writeDescriptor(t, dir, "catalog.json", `{
			"type": "metadata",
			"key": "catalog",
			"properties": {"library_type": "book", "results_entity": "results", "search_fallback": "name"},
			"endpoints": {"title": "`+srv.URL+`?q={{query}}"},
			"parser": {
				"title": "name",
				"isbn_13": "isbn",
				"publishers": "publisher"
			},
			"postProcessing": {
				"publishers": {"action": "to_list"},
				"isbn_13": {"action": "to_identifier"}
			}
		}`)

		svc := newTestService(t, dir)
		record, err := svc.Resolve(context.Background(), "catalog", "title", "Some Book", "")
		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, []any{"Tor"}, record["publishers"])
		assert.Equal(t, []any{map[string]any{"type": "ISBN_13", "identifier": "9780765326355"}}, record["identifiers"])
	})
}

func TestResolveManga(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"title": "Berserk", "score": 9.47, "synopsis": "Struggler."}]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeDescriptor(t, dir, "jikan.json", `{
		"type": "metadata",
		"key": "myanimelist",
		"properties": {"library_type": "manga", "results_entity": "data"},
		"endpoints": {"title": "`+srv.URL+`?q={{query}}"},
		"parser": {
			"title": "title",
			"score": "score",
			"synopsis": "synopsis",
			"metadata_provider": {"key": "static", "value": "myanimelist"}
		}
	}`)

	svc := newTestService(t, dir)
	data, err := svc.ResolveManga(context.Background(), "myanimelist", "berserk", "")
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, "Berserk", data.Title)
	assert.Equal(t, "myanimelist", data.MetadataProvider)
	assert.InDelta(t, 9.47, data.Score, 0.001)
	assert.Equal(t, "Struggler.", data.Synopsis)
}
