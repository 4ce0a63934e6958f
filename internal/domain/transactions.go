package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field is a semantic column that a loosely named spreadsheet header can resolve to.
type Field string

const (
	FieldID          Field = "id"
	FieldEntity      Field = "entity"
	FieldDate        Field = "date"
	FieldAmount      Field = "amount"
	FieldReference   Field = "reference"
	FieldObservation Field = "observation"
)

// Fields lists every semantic field in canonical order.
var Fields = []Field{FieldID, FieldEntity, FieldDate, FieldAmount, FieldReference, FieldObservation}

// ParseField maps a configuration string onto a Field.
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// UnassignedEntity is used when a collection carries no counterparty column.
const UnassignedEntity = "UNASSIGNED"

// DateLayout is the calendar-date format used in keys and exports.
const DateLayout = "2006-01-02"

// Table is a raw tabular dataset as loaded from a file, before normalization.
type Table struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"-"`

	// Workbook marks tables read from spreadsheets, whose typed date cells
	// arrive as Excel serial day numbers.
	Workbook bool `json:"workbook,omitempty"`
}

// Index returns the column position of header, or -1.
func (t *Table) Index(header string) int {
	for i, h := range t.Headers {
		if h == header {
			return i
		}
	}
	return -1
}

// ColumnMapping maps semantic fields onto the header that represents them in a Table.
type ColumnMapping map[Field]string

// Has reports whether the field was resolved.
func (m ColumnMapping) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Record is a single normalized transaction row.
// Amount is signed: positive for invoices/debits, negative for credit notes and retentions.
type Record struct {
	Row         int             `json:"row" yaml:"row"`
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Entity      string          `json:"entity" yaml:"entity"`
	Date        time.Time       `json:"date" yaml:"date"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Reference   string          `json:"reference,omitempty" yaml:"reference,omitempty"`
	Observation string          `json:"observation,omitempty" yaml:"observation,omitempty"`
}

// Value renders a field in canonical form, suitable for building join keys.
func (r Record) Value(f Field) string {
	switch f {
	case FieldID:
		return r.ID
	case FieldEntity:
		return r.Entity
	case FieldDate:
		return r.Date.Format(DateLayout)
	case FieldAmount:
		return r.Amount.String()
	case FieldReference:
		return r.Reference
	case FieldObservation:
		return r.Observation
	}
	return ""
}

// SameValue compares a single field of two records. Amounts compare numerically
// and dates by calendar day.
func (r Record) SameValue(other Record, f Field) bool {
	switch f {
	case FieldAmount:
		return r.Amount.Equal(other.Amount)
	case FieldDate:
		y1, m1, d1 := r.Date.Date()
		y2, m2, d2 := other.Date.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	return r.Value(f) == other.Value(f)
}

// Category tags a record or pair with the outcome of a reconciliation run.
type Category string

const (
	CategoryMatchedExact       Category = "matched_exact"
	CategoryMissingInTarget    Category = "missing_in_target"
	CategoryUnexpectedInTarget Category = "unexpected_in_target"
	CategoryValueDiscrepancy   Category = "value_discrepancy"
	CategoryDuplicate          Category = "duplicate"

	CategoryMatchedByReference        Category = "matched_by_reference"
	CategoryMatchedByAmountDate       Category = "matched_by_amount_date"
	CategoryPendingReceivable         Category = "pending_receivable"
	CategoryUnappliedBankPayment      Category = "unapplied_bank_payment"
	CategoryTrivialBalance            Category = "trivial_balance"
	CategoryPossibleCreditOrRetention Category = "possible_credit_or_retention"
)
