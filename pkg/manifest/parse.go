package manifest

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML or JSON manifest and validates it. On failure the
// returned error carries one or more *ManifestError values, all of kind
// MalformedStructure; reference checks against content happen later.
func Parse(data []byte) (*Marketplace, error) {
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}

	var errs Collector

	issues, err := validateSchema(tree)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		errs.Add(&ManifestError{
			Kind:    MalformedStructure,
			Plugin:  pluginAt(tree, issue.Location),
			Field:   issue.Pointer(),
			Message: issue.Message,
		})
	}
	if errs.Len() > 0 {
		return nil, errs.Err()
	}

	m, err := decodeMarketplace(tree)
	if err != nil {
		return nil, err
	}

	if err := Check(m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeTree(data []byte) (any, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, &ManifestError{
			Kind:    MalformedStructure,
			Message: "invalid manifest syntax",
			Err:     err,
		}
	}
	if tree == nil {
		return nil, &ManifestError{
			Kind:    MalformedStructure,
			Message: "manifest is empty",
		}
	}
	return normalize(tree), nil
}

// normalize converts a YAML tree into values encoding/json can marshal.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[k] = normalize(v)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = normalize(v)
		}
		return m
	case []any:
		a := make([]any, len(val))
		for i, v := range val {
			a[i] = normalize(v)
		}
		return a
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

func decodeMarketplace(tree any) (*Marketplace, error) {
	var m Marketplace
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &m,
		TagName: "json",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create manifest decoder")
	}
	if err := decoder.Decode(tree); err != nil {
		return nil, &ManifestError{
			Kind:    MalformedStructure,
			Message: "unexpected value type",
			Err:     err,
		}
	}
	return &m, nil
}
