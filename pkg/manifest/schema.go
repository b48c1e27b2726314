package manifest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	schemagen "github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const schemaURL = "marketplace.schema.json"

var (
	schemaOnce     sync.Once
	schemaJSON     []byte
	compiledSchema *jsonschema.Schema
	schemaErr      error
	printer        = message.NewPrinter(language.English)
)

// Schema returns the JSON Schema of the manifest, generated from Marketplace.
func Schema() ([]byte, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return schemaJSON, nil
}

func generateSchema() ([]byte, error) {
	r := &schemagen.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&Marketplace{})
	s.Title = "Plugin marketplace manifest"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal manifest schema")
	}
	return data, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaJSON, schemaErr = generateSchema()
		if schemaErr != nil {
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = errors.Wrap(err, "failed to unmarshal manifest schema")
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = errors.Wrap(err, "failed to add manifest schema resource")
			return
		}
		compiledSchema, err = c.Compile(schemaURL)
		if err != nil {
			schemaErr = errors.Wrap(err, "failed to compile manifest schema")
		}
	})
	return compiledSchema, schemaErr
}

// schemaIssue is a leaf validation failure.
type schemaIssue struct {
	Location []string
	Keyword  string
	Message  string
}

func (i schemaIssue) Pointer() string {
	if len(i.Location) == 0 {
		return ""
	}
	return "/" + strings.Join(i.Location, "/")
}

// validateSchema checks a JSON compatible tree against the manifest schema.
func validateSchema(tree any) ([]schemaIssue, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert manifest to JSON")
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare manifest for validation")
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, errors.Wrap(err, "unexpected schema validation failure")
	}

	var issues []schemaIssue
	collectIssues(ve, &issues)
	if len(issues) == 0 {
		return []schemaIssue{{Message: ve.Error()}}, nil
	}
	return dedupIssues(issues), nil
}

// collectIssues walks the error tree down to the leaves, skipping
// combinator keywords that carry no detail of their own.
func collectIssues(ve *jsonschema.ValidationError, issues *[]schemaIssue) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collectIssues(cause, issues)
		}
		return
	}
	if ve.ErrorKind == nil {
		return
	}

	keyword := ""
	if kw := ve.ErrorKind.KeywordPath(); len(kw) > 0 {
		keyword = kw[len(kw)-1]
	}
	switch keyword {
	case "", "oneOf", "anyOf", "allOf", "$ref":
		return
	}

	*issues = append(*issues, schemaIssue{
		Location: ve.InstanceLocation,
		Keyword:  keyword,
		Message:  ve.ErrorKind.LocalizedString(printer),
	})
}

func dedupIssues(issues []schemaIssue) []schemaIssue {
	seen := make(map[string]bool, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		key := issue.Pointer() + "|" + issue.Keyword + "|" + issue.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, issue)
	}
	return out
}

// pluginAt returns the id of the plugin a schema location points into.
func pluginAt(tree any, location []string) string {
	if len(location) < 2 || location[0] != "plugins" {
		return ""
	}
	idx, err := strconv.Atoi(location[1])
	if err != nil {
		return ""
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return ""
	}
	plugins, ok := root["plugins"].([]any)
	if !ok || idx < 0 || idx >= len(plugins) {
		return ""
	}
	entry, ok := plugins[idx].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := entry["id"].(string)
	return id
}
