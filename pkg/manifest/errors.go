package manifest

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrorKind classifies a manifest problem.
type ErrorKind int

const (
	// MalformedStructure covers syntax errors, missing or mistyped fields,
	// invalid identifiers and duplicates.
	MalformedStructure ErrorKind = iota + 1
	// DanglingReference means a plugin names an entity that is not defined.
	DanglingReference
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedStructure:
		return "malformed structure"
	case DanglingReference:
		return "dangling reference"
	default:
		return fmt.Sprintf("manifest error kind %d", int(k))
	}
}

// ManifestError describes one problem found while loading a manifest.
type ManifestError struct {
	Kind     ErrorKind
	Plugin   string
	Category EntityKind
	Entity   string
	// Field is the JSON pointer of the offending value, when known.
	Field   string
	Message string
	Err     error
}

func (e *ManifestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Plugin != "" {
		fmt.Fprintf(&b, ": plugin %q", e.Plugin)
	}
	if e.Entity != "" {
		fmt.Fprintf(&b, " %s %q", e.Category.Singular(), e.Entity)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " at %s", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Errors flattens err into the manifest errors it carries. It returns nil
// when err holds none.
func Errors(err error) []*ManifestError {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		var out []*ManifestError
		for _, e := range merr.Errors {
			out = append(out, Errors(e)...)
		}
		return out
	}

	var me *ManifestError
	if errors.As(err, &me) {
		return []*ManifestError{me}
	}
	return nil
}

// IsKind reports whether err carries at least one manifest error of kind.
func IsKind(err error, kind ErrorKind) bool {
	for _, me := range Errors(err) {
		if me.Kind == kind {
			return true
		}
	}
	return false
}

// Collector accumulates manifest errors for a single load attempt.
type Collector struct {
	result *multierror.Error
}

// Add records a manifest error.
func (c *Collector) Add(e *ManifestError) {
	c.result = multierror.Append(c.result, e)
}

// Malformed records a MalformedStructure error.
func (c *Collector) Malformed(plugin, field, format string, args ...any) {
	c.Add(&ManifestError{
		Kind:    MalformedStructure,
		Plugin:  plugin,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	if c.result == nil {
		return 0
	}
	return len(c.result.Errors)
}

// Err returns the aggregated error or nil.
func (c *Collector) Err() error {
	if c.result == nil {
		return nil
	}
	c.result.ErrorFormat = formatErrors
	return c.result.ErrorOrNil()
}

func formatErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	lines := make([]string, 0, len(errs)+1)
	lines = append(lines, fmt.Sprintf("%d manifest errors:", len(errs)))
	for _, err := range errs {
		lines = append(lines, "  * "+err.Error())
	}
	return strings.Join(lines, "\n")
}
