package content

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// Body is a loaded entity definition. The registry does not interpret it.
type Body struct {
	// Text is the definition with its frontmatter removed.
	Text string
	// Raw is the file as stored.
	Raw         []byte
	Description string
	// Activation holds the criteria a host uses to decide when a skill
	// applies. It falls back to the description.
	Activation string
	Meta       map[string]any
	// MetaErr is set when the body has a frontmatter block that is not
	// valid YAML. The text is still usable.
	MetaErr error
}

// ParseBody splits an entity file into frontmatter metadata and text.
// Files without frontmatter are returned as-is.
func ParseBody(raw []byte) (*Body, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(raw, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	text, hasFrontmatter := extractBodyContent(string(raw))
	body := &Body{Text: text, Raw: raw}

	metaData, err := meta.TryGet(pctx)
	switch {
	case err == nil:
		body.Meta = metaData
	case hasFrontmatter:
		body.MetaErr = errors.Wrap(err, "invalid frontmatter")
	}
	body.Description, _ = metaData["description"].(string)
	body.Activation, _ = metaData["activation"].(string)
	if body.Activation == "" {
		body.Activation = body.Description
	}
	return body, nil
}

// extractBodyContent removes YAML frontmatter and returns the body
func extractBodyContent(content string) (string, bool) {
	if !strings.HasPrefix(content, "---") {
		return content, false
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content, false
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n"), true
}
