// Package metadata resolves bibliographic and series metadata from
// external catalogs. Manga providers are driven by declarative descriptors
// loaded from the plugin directory; book resolution uses a fixed provider
// chain.
package metadata

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devourer-reader/devourer/pkg/config"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/devourer-reader/devourer/pkg/ratelimit"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

type Service struct {
	cfg      *config.Config
	limiters *ratelimit.Providers
	client   *http.Client
}

func NewService(cfg *config.Config, limiters *ratelimit.Providers) *Service {
	return &Service{
		cfg:      cfg,
		limiters: limiters,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Providers returns all loaded descriptors grouped by library type, for
// the provider-listing endpoint.
func (s *Service) Providers() (map[string][]*Descriptor, error) {
	descriptors, err := LoadDescriptors(s.cfg.PluginDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	grouped := map[string][]*Descriptor{
		models.LibraryTypeBook:  {},
		models.LibraryTypeManga: {},
	}
	for _, d := range descriptors {
		grouped[d.Properties.LibraryType] = append(grouped[d.Properties.LibraryType], d)
	}
	return grouped, nil
}

func (s *Service) descriptor(providerKey string) (*Descriptor, error) {
	descriptors, err := LoadDescriptors(s.cfg.PluginDir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, d := range descriptors {
		if d.Key == providerKey {
			return d, nil
		}
	}
	return nil, errors.Errorf("unknown metadata provider: %s", providerKey)
}

// Resolve queries providerKey's endpoint named by selector and maps the
// best-matching result into canonical field names. A provider response
// with no results yields (nil, nil).
func (s *Service) Resolve(ctx context.Context, providerKey, selector, query, apiKey string) (map[string]any, error) {
	desc, err := s.descriptor(providerKey)
	if err != nil {
		return nil, err
	}

	template, ok := desc.Endpoints[selector]
	if !ok {
		return nil, errors.Errorf("provider %s has no %q endpoint", providerKey, selector)
	}
	endpoint := strings.ReplaceAll(template, "{{query}}", url.QueryEscape(query))
	endpoint = strings.ReplaceAll(endpoint, "{{apiKey}}", apiKey)

	body, err := ratelimit.Schedule(ctx, s.limiters.For(providerKey), func() ([]byte, error) {
		return s.get(ctx, endpoint)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.WithStack(err)
	}

	results := asSlice(lookupPath(response, desc.Properties.ResultsEntity))
	if len(results) == 0 {
		return nil, nil
	}

	chosen := pickResult(desc, results, query)
	if chosen == nil {
		return nil, nil
	}

	record := mapFields(desc, chosen)
	applyPostProcessing(desc, record)
	return record, nil
}

// ResolveManga resolves a manga series record through providerKey and
// validates the mapped fields into the canonical struct.
func (s *Service) ResolveManga(ctx context.Context, providerKey, query, apiKey string) (*models.MangaData, error) {
	record, err := s.Resolve(ctx, providerKey, "title", query, apiKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	b, err := json.Marshal(record)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	data := &models.MangaData{}
	if err := json.Unmarshal(b, data); err != nil {
		return nil, errors.Wrap(err, "provider record does not fit the series shape")
	}
	return data, nil
}

func (s *Service) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("metadata request failed with status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// pickResult selects the best match: an exact case-insensitive hit in the
// alias-title array when declared, then an exact hit on the fallback title
// field, then the first result.
func pickResult(desc *Descriptor, results []any, query string) map[string]any {
	lowered := strings.ToLower(query)

	if field := desc.Properties.SearchArray; field != "" {
		for _, r := range results {
			result, ok := r.(map[string]any)
			if !ok {
				continue
			}
			for _, alias := range asSlice(result[field]) {
				if strings.ToLower(aliasTitle(alias)) == lowered {
					return result
				}
			}
		}
	}

	if field := desc.Properties.SearchFallback; field != "" {
		for _, r := range results {
			result, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if title, ok := result[field].(string); ok && strings.ToLower(title) == lowered {
				return result
			}
		}
	}

	result, _ := results[0].(map[string]any)
	return result
}

// aliasTitle reads an alias entry that may be a bare string or an object
// carrying a "title" member.
func aliasTitle(alias any) string {
	switch v := alias.(type) {
	case string:
		return v
	case map[string]any:
		if title, ok := v["title"].(string); ok {
			return title
		}
	}
	return ""
}

func mapFields(desc *Descriptor, chosen map[string]any) map[string]any {
	record := map[string]any{}
	for target, rule := range desc.Parser {
		switch rule.Kind {
		case RuleStatic:
			record[target] = rule.Value
		case RuleDirect:
			if v := lookupPath(chosen, rule.Source); v != nil {
				record[target] = v
			}
		case RuleProjection:
			var projected []any
			for _, elem := range asSlice(chosen[rule.Key]) {
				obj, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				if v, ok := obj[rule.Value]; ok {
					projected = append(projected, v)
				}
			}
			if projected != nil {
				record[target] = projected
			}
		}
	}
	return record
}

func applyPostProcessing(desc *Descriptor, record map[string]any) {
	for field, pp := range desc.PostProcessing {
		v, ok := record[field]
		if !ok {
			continue
		}
		switch pp.Action {
		case ActionToList:
			if _, isSlice := v.([]any); !isSlice {
				record[field] = []any{v}
			}
		case ActionToIdentifier:
			str, ok := v.(string)
			if !ok || str == "" {
				continue
			}
			identifiers := asSlice(record["identifiers"])
			record["identifiers"] = append(identifiers, map[string]any{
				"type":       strings.ToUpper(field),
				"identifier": str,
			})
		}
	}
}

// lookupPath walks a dotted path through nested JSON objects.
func lookupPath(m map[string]any, path string) any {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var current any = m
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return current
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
