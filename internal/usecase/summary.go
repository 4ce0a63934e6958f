package usecase

import (
	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
)

// anomalyThreshold is the count above which an anomaly category is graded high.
const anomalyThreshold = 2

// grade maps a category count to a risk level.
func grade(count, threshold int) domain.RiskLevel {
	switch {
	case count > threshold:
		return domain.RiskHigh
	case count > 0:
		return domain.RiskAttention
	default:
		return domain.RiskOK
	}
}

func summarizeExact(r domain.ExactResult) domain.ExactSummary {
	s := domain.ExactSummary{
		Matched:            len(r.Matched),
		MissingInTarget:    len(r.MissingInTarget),
		UnexpectedInTarget: len(r.UnexpectedInTarget),
		ValueDiscrepancy:   len(r.ValueDiscrepancy),
		Duplicates:         len(r.Duplicates.Source) + len(r.Duplicates.Target),
	}
	s.Findings = []domain.Finding{
		// matched rows are informational
		{Category: domain.CategoryMatchedExact, Count: s.Matched, Level: domain.RiskOK},
		{Category: domain.CategoryMissingInTarget, Count: s.MissingInTarget, Level: grade(s.MissingInTarget, anomalyThreshold)},
		{Category: domain.CategoryUnexpectedInTarget, Count: s.UnexpectedInTarget, Level: grade(s.UnexpectedInTarget, anomalyThreshold)},
		{Category: domain.CategoryValueDiscrepancy, Count: s.ValueDiscrepancy, Level: grade(s.ValueDiscrepancy, anomalyThreshold)},
		{Category: domain.CategoryDuplicate, Count: s.Duplicates, Level: grade(s.Duplicates, anomalyThreshold)},
	}
	return s
}

func summarizeReceivables(r domain.ReceivablesResult) domain.ReceivablesSummary {
	s := domain.ReceivablesSummary{
		MatchedByReference:  len(r.MatchedByReference),
		MatchedByAmountDate: len(r.MatchedByAmountDate),
		Pending:             len(r.Pending),
		PendingAmount:       decimal.Zero,
		Unapplied:           len(r.UnappliedPayments),
		UnappliedAmount:     decimal.Zero,
		Trivial:             len(r.TrivialBalances),
		PossibleCredits:     len(r.PossibleCredits),
	}
	for _, p := range r.Pending {
		s.PendingAmount = s.PendingAmount.Add(p.Amount)
	}
	for _, k := range r.UnappliedPayments {
		s.UnappliedAmount = s.UnappliedAmount.Add(k.Amount)
	}
	s.CriticalBucket = criticalBucket(r.Aging)
	return s
}

// criticalBucket is the populated aging band carrying the largest pending sum.
// Ties go to the older band.
func criticalBucket(aging []domain.AgingBucket) string {
	var (
		name string
		max  decimal.Decimal
	)
	for _, b := range aging {
		if b.Count == 0 {
			continue
		}
		if name == "" || b.Sum.GreaterThanOrEqual(max) {
			name, max = b.Bucket, b.Sum
		}
	}
	return name
}
