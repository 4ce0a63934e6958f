package domain

import (
	"fmt"
	"strings"
)

// MissingField names a required semantic field that no header could be resolved to.
type MissingField struct {
	Collection string `json:"collection"`
	Field      Field  `json:"field"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (m MissingField) String() string {
	s := fmt.Sprintf("%s: no column for %q", m.Collection, m.Field)
	if m.Suggestion != "" {
		s += fmt.Sprintf(" (closest header: %q)", m.Suggestion)
	}
	return s
}

// SchemaError reports required fields that could not be resolved on one or both collections.
// It is fatal to a run: no partial results are produced.
type SchemaError struct {
	Missing []MissingField `json:"missing"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, m.String())
	}
	return "schema error: " + strings.Join(parts, "; ")
}

// JoinSchemaErrors merges the missing fields of several schema errors.
// Nil inputs are ignored; it returns nil when nothing is missing.
func JoinSchemaErrors(errs ...*SchemaError) *SchemaError {
	var merged []MissingField
	for _, e := range errs {
		if e != nil {
			merged = append(merged, e.Missing...)
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return &SchemaError{Missing: merged}
}

// ConfigurationError rejects a tolerance, threshold or key setting outside its valid domain.
type ConfigurationError struct {
	Setting string `json:"setting"`
	Value   any    `json:"value"`
	Reason  string `json:"reason"`
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%v: %s", e.Setting, e.Value, e.Reason)
}

// ParseWarning records a cell that failed to parse. The row is excluded from matching.
type ParseWarning struct {
	Collection string `json:"collection" yaml:"collection"`
	Row        int    `json:"row" yaml:"row"`
	Field      Field  `json:"field" yaml:"field"`
	Value      string `json:"value" yaml:"value"`
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("%s row %d: unparsable %s %q", w.Collection, w.Row, w.Field, w.Value)
}

// SkippedMessage renders the per-collection notice for records excluded from matching.
func SkippedMessage(collection string, n int) string {
	return fmt.Sprintf("%s: %d records skipped due to unparsable date/amount", collection, n)
}
