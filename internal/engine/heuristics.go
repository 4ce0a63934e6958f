package engine

import (
	"regexp"
	"strings"

	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
)

// IsTrivial reports whether |amount| is at or below the materiality threshold.
func IsTrivial(amount, threshold decimal.Decimal) bool {
	return amount.Abs().LessThanOrEqual(threshold)
}

// CreditDetector flags receivables that look like credit notes or retentions.
// It is orientative: false positives and negatives are expected.
type CreditDetector struct {
	pattern *regexp.Regexp
}

// NewCreditDetector matches any keyword at the start of a word, ignoring case.
// Word boundaries are Unicode-aware, so accented keywords work too.
func NewCreditDetector(keywords []string) *CreditDetector {
	var alts []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			alts = append(alts, regexp.QuoteMeta(k))
		}
	}
	d := &CreditDetector{}
	if len(alts) > 0 {
		d.pattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)`)
	}
	return d
}

// Flag reports a negative amount or an observation mentioning a keyword.
func (d *CreditDetector) Flag(r domain.Record) bool {
	if r.Amount.IsNegative() {
		return true
	}
	return d.pattern != nil && d.pattern.MatchString(r.Observation)
}
