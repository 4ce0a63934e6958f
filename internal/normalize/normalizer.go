// Package normalize coerces raw spreadsheet cells into canonical record values.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// AmountFormat selects how thousands and decimal separators are read.
type AmountFormat string

const (
	// AmountLatin reads "1.234,56": periods are thousands separators, the comma is decimal.
	// Dot-decimal input such as "100.50" is NOT round-tripped by this rule.
	AmountLatin AmountFormat = "latin"
	// AmountDot reads "1,234.56": commas are thousands separators, the period is decimal.
	AmountDot AmountFormat = "dot"
)

// Options configures a Normalizer.
type Options struct {
	AmountFormat     AmountFormat
	UnassignedEntity string
}

// DefaultOptions returns the Latin-locale behaviour of the source spreadsheets.
func DefaultOptions() Options {
	return Options{
		AmountFormat:     AmountLatin,
		UnassignedEntity: domain.UnassignedEntity,
	}
}

// Validate rejects unknown amount formats.
func (o Options) Validate() error {
	switch o.AmountFormat {
	case AmountLatin, AmountDot:
		return nil
	}
	return &domain.ConfigurationError{Setting: "normalization.amount_format", Value: o.AmountFormat, Reason: "must be latin or dot"}
}

// Normalizer turns tables into record collections.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer, filling in defaults for empty options.
func NewNormalizer(opts Options) *Normalizer {
	if opts.AmountFormat == "" {
		opts.AmountFormat = AmountLatin
	}
	if opts.UnassignedEntity == "" {
		opts.UnassignedEntity = domain.UnassignedEntity
	}
	return &Normalizer{opts: opts}
}

// ParseAmount parses a cell according to the configured amount format.
func (n *Normalizer) ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	switch n.opts.AmountFormat {
	case AmountDot:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Day-first layouts come before ISO so that "05/01/2023" reads as 5 January.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2006-01-02",
	"2006/01/02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Excel stores dates as serial day numbers; anything beyond 9999-12-31 is not a date.
const maxExcelSerial = 2958465

// ParseDate parses a text cell with day-first interpretation and drops the time of day.
// A bare number is not a date.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDate(t), true
		}
	}
	return time.Time{}, false
}

// ParseWorkbookDate parses a spreadsheet cell. Numbers are Excel serial day
// numbers (1900 date system); anything else is read as text by ParseDate.
func ParseWorkbookDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ParseDate(s)
	}
	if serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return calendarDate(t), true
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Collection normalizes every data row of a table using the resolved column mapping.
// Excel serial dates are accepted only for workbook tables.
// Rows whose date or amount cannot be parsed are excluded and reported as warnings;
// rows with no content at all are dropped silently.
func (n *Normalizer) Collection(table *domain.Table, mapping domain.ColumnMapping) ([]domain.Record, []domain.ParseWarning) {
	idx := make(map[domain.Field]int, len(mapping))
	for f, h := range mapping {
		if i := table.Index(h); i >= 0 {
			idx[f] = i
		}
	}

	cell := func(row []string, f domain.Field) (string, bool) {
		i, ok := idx[f]
		if !ok {
			return "", false
		}
		if i >= len(row) {
			return "", true
		}
		return row[i], true
	}

	parseDate := ParseDate
	if table.Workbook {
		parseDate = ParseWorkbookDate
	}

	records := make([]domain.Record, 0, len(table.Rows))
	var warnings []domain.ParseWarning

	for i, row := range table.Rows {
		if blank(row) {
			continue
		}
		rowNum := i + 1

		rawDate, _ := cell(row, domain.FieldDate)
		date, dateOK := parseDate(rawDate)
		if !dateOK {
			warnings = append(warnings, domain.ParseWarning{Collection: table.Name, Row: rowNum, Field: domain.FieldDate, Value: rawDate})
		}
		rawAmount, _ := cell(row, domain.FieldAmount)
		amount, amountOK := n.ParseAmount(rawAmount)
		if !amountOK {
			warnings = append(warnings, domain.ParseWarning{Collection: table.Name, Row: rowNum, Field: domain.FieldAmount, Value: rawAmount})
		}
		if !dateOK || !amountOK {
			continue
		}

		rec := domain.Record{
			Row:    rowNum,
			Date:   date,
			Amount: amount,
			Entity: n.opts.UnassignedEntity,
		}
		if v, ok := cell(row, domain.FieldID); ok {
			rec.ID = strings.TrimSpace(v)
		}
		if v, ok := cell(row, domain.FieldEntity); ok {
			if v = strings.TrimSpace(v); v != "" {
				rec.Entity = v
			}
		}
		if v, ok := cell(row, domain.FieldReference); ok {
			rec.Reference = NormalizeReference(v)
		}
		if v, ok := cell(row, domain.FieldObservation); ok {
			rec.Observation = v
		}
		records = append(records, rec)
	}
	return records, warnings
}

// NormalizeReference trims and upper-cases a document reference for exact matching.
func NormalizeReference(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SkippedRows counts the distinct rows named by a set of warnings.
func SkippedRows(warnings []domain.ParseWarning) int {
	rows := make(map[int]struct{}, len(warnings))
	for _, w := range warnings {
		rows[w.Row] = struct{}{}
	}
	return len(rows)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
