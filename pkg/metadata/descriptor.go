package metadata

import (
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	// Post-processing actions a descriptor may declare per mapped field.
	ActionToList       = "to_list"
	ActionToIdentifier = "to_identifier"
)

// RuleKind discriminates the mapping rule variants a descriptor's parser
// section can declare.
type RuleKind int

const (
	// RuleDirect copies a (possibly dotted) source field.
	RuleDirect RuleKind = iota
	// RuleProjection projects one member field out of a nested object array.
	RuleProjection
	// RuleStatic injects a constant.
	RuleStatic
)

// MappingRule is one parser entry, decoded from either a plain string
// (direct copy) or an object ({key, value} projection, or {key: "static",
// value} constant).
type MappingRule struct {
	Kind   RuleKind
	Source string
	Key    string
	Value  string
}

func (r *MappingRule) UnmarshalJSON(data []byte) error {
	var source string
	if err := json.Unmarshal(data, &source); err == nil {
		r.Kind = RuleDirect
		r.Source = source
		return nil
	}

	var obj struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "mapping rule must be a string or a {key, value} object")
	}
	if obj.Key == "static" {
		r.Kind = RuleStatic
		r.Value = obj.Value
		return nil
	}
	r.Kind = RuleProjection
	r.Key = obj.Key
	r.Value = obj.Value
	return nil
}

// PostProcess declares one action applied to a mapped field after parsing.
type PostProcess struct {
	Action string `json:"action"`
}

// Descriptor is a provider descriptor: one declarative document describing
// how to query and map a single external metadata catalog.
type Descriptor struct {
	Type       string `json:"type"`
	Key        string `json:"key"`
	Properties struct {
		LibraryType    string `json:"library_type"`
		ResultsEntity  string `json:"results_entity"`
		SearchArray    string `json:"search_array,omitempty"`
		SearchFallback string `json:"search_fallback,omitempty"`
	} `json:"properties"`
	Endpoints      map[string]string      `json:"endpoints"`
	Parser         map[string]MappingRule `json:"parser"`
	PostProcessing map[string]PostProcess `json:"postProcessing,omitempty"`
}

// recordFields maps library type to the set of canonical field names a
// descriptor's parser may target, derived from the record structs' json
// tags.
var recordFields = map[string]map[string]bool{
	models.LibraryTypeBook:  jsonFieldSet(models.BookMetadata{}),
	models.LibraryTypeManga: jsonFieldSet(models.MangaData{}),
}

func jsonFieldSet(v any) map[string]bool {
	fields := map[string]bool{}
	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		fields[name] = true
	}
	return fields
}

// Validate checks a descriptor into a usable state: known library type, at
// least one endpoint, and every parser target and post-processing action
// recognized. Invalid descriptors are rejected at load time rather than
// failing mid-resolution.
func (d *Descriptor) Validate() error {
	if d.Key == "" {
		return errors.New("descriptor has no key")
	}
	fields, ok := recordFields[d.Properties.LibraryType]
	if !ok {
		return errors.Errorf("descriptor %s: unknown library_type %q", d.Key, d.Properties.LibraryType)
	}
	if len(d.Endpoints) == 0 {
		return errors.Errorf("descriptor %s: no endpoints declared", d.Key)
	}
	for target, rule := range d.Parser {
		if !fields[target] {
			return errors.Errorf("descriptor %s: parser targets unknown field %q", d.Key, target)
		}
		switch rule.Kind {
		case RuleDirect:
			if rule.Source == "" {
				return errors.Errorf("descriptor %s: field %q has an empty source", d.Key, target)
			}
		case RuleProjection:
			if rule.Key == "" || rule.Value == "" {
				return errors.Errorf("descriptor %s: field %q projection needs both key and value", d.Key, target)
			}
		case RuleStatic:
		}
	}
	for field, pp := range d.PostProcessing {
		if _, ok := d.Parser[field]; !ok {
			return errors.Errorf("descriptor %s: post-processing references unmapped field %q", d.Key, field)
		}
		switch pp.Action {
		case ActionToList, ActionToIdentifier:
		default:
			return errors.Errorf("descriptor %s: unknown post-processing action %q", d.Key, pp.Action)
		}
	}
	return nil
}

// LoadDescriptors reads every *.json under <pluginDir>/providers
// (recursively), keeping documents of type "metadata" that declare a
// library type. Each kept descriptor is validated.
func LoadDescriptors(pluginDir string) ([]*Descriptor, error) {
	root := filepath.Join(pluginDir, "providers")
	var descriptors []*Descriptor

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return errors.WithStack(err)
		}
		desc := &Descriptor{}
		if err := json.Unmarshal(b, desc); err != nil {
			return errors.Wrapf(err, "parsing provider descriptor %s", path)
		}
		if desc.Type != "metadata" || desc.Properties.LibraryType == "" {
			return nil
		}
		if err := desc.Validate(); err != nil {
			return errors.Wrapf(err, "invalid provider descriptor %s", path)
		}

		descriptors = append(descriptors, desc)
		return nil
	})
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	return descriptors, nil
}
