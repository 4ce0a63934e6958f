package engine

import (
	"sort"
	"time"

	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
)

// TieBreak decides what happens when one record has several passing candidates.
type TieBreak string

const (
	// TieBreakAll keeps every passing candidate pair as its own match row.
	TieBreakAll TieBreak = "all"
	// TieBreakNearest assigns pairs 1:1, nearest date first, then nearest amount.
	TieBreakNearest TieBreak = "nearest"
)

// minBandWidth keeps the band width positive when the amount tolerance is zero.
var minBandWidth = decimal.New(1, -2)

// ReceivablesOptions configures receivables-vs-bank reconciliation.
type ReceivablesOptions struct {
	AmountTolerance   decimal.Decimal
	DateToleranceDays int
	TrivialThreshold  decimal.Decimal
	AgingCuts         []int
	CreditKeywords    []string
	TieBreak          TieBreak
	// Today anchors aging. The effective date is never earlier than the newest receivable.
	Today time.Time
}

// DefaultReceivablesOptions mirrors the defaults of the audit tool: ±0.50, ±5 days,
// trivial balances up to 5.00 and 30/60/90 aging.
func DefaultReceivablesOptions() ReceivablesOptions {
	return ReceivablesOptions{
		AmountTolerance:   decimal.New(50, -2),
		DateToleranceDays: 5,
		TrivialThreshold:  decimal.New(5, 0),
		AgingCuts:         []int{30, 60, 90},
		CreditKeywords:    []string{"NC", "nota de crédito", "retenc"},
		TieBreak:          TieBreakAll,
	}
}

// Validate rejects tolerances and cut points outside their domain.
func (o ReceivablesOptions) Validate() error {
	if o.AmountTolerance.IsNegative() {
		return &domain.ConfigurationError{Setting: "receivables.amount_tolerance", Value: o.AmountTolerance, Reason: "must be >= 0"}
	}
	if o.DateToleranceDays < 0 {
		return &domain.ConfigurationError{Setting: "receivables.date_tolerance_days", Value: o.DateToleranceDays, Reason: "must be >= 0"}
	}
	if o.TrivialThreshold.IsNegative() {
		return &domain.ConfigurationError{Setting: "receivables.trivial_threshold", Value: o.TrivialThreshold, Reason: "must be >= 0"}
	}
	for i, c := range o.AgingCuts {
		if c <= 0 {
			return &domain.ConfigurationError{Setting: "receivables.aging_cuts", Value: o.AgingCuts, Reason: "cut points must be positive"}
		}
		if i > 0 && c <= o.AgingCuts[i-1] {
			return &domain.ConfigurationError{Setting: "receivables.aging_cuts", Value: o.AgingCuts, Reason: "cut points must be strictly ascending"}
		}
	}
	switch o.TieBreak {
	case "", TieBreakAll, TieBreakNearest:
	default:
		return &domain.ConfigurationError{Setting: "receivables.tie_break", Value: o.TieBreak, Reason: "must be all or nearest"}
	}
	return nil
}

// ReceivablesEngine matches receivables against bank movements in two passes:
// an exact reference join, then a tolerance-banded amount and date join over
// whatever the first pass left unclaimed.
type ReceivablesEngine struct {
	opts   ReceivablesOptions
	aging  *AgingClassifier
	credit *CreditDetector
}

// NewReceivablesEngine creates an engine. Options are expected to be validated.
func NewReceivablesEngine(opts ReceivablesOptions) *ReceivablesEngine {
	return &ReceivablesEngine{
		opts:   opts,
		aging:  NewAgingClassifier(opts.AgingCuts),
		credit: NewCreditDetector(opts.CreditKeywords),
	}
}

type candidate struct {
	r, k       int
	amountDiff decimal.Decimal
	days       int
}

// Reconcile runs both passes, then ages and tags the receivables left pending.
func (e *ReceivablesEngine) Reconcile(receivables, bank []domain.Record) domain.ReceivablesResult {
	claimedR := make(map[int]bool)
	claimedK := make(map[int]bool)

	byRef := e.assign(e.referencePass(receivables, bank))
	for _, c := range byRef {
		claimedR[c.r] = true
		claimedK[c.k] = true
	}

	byAmount := e.assign(e.amountDatePass(receivables, bank, claimedR, claimedK))
	for _, c := range byAmount {
		claimedR[c.r] = true
		claimedK[c.k] = true
	}

	asOf := e.asOf(receivables)
	result := domain.ReceivablesResult{
		AsOf:                asOf,
		MatchedByReference:  e.matches(domain.CategoryMatchedByReference, byRef, receivables, bank),
		MatchedByAmountDate: e.matches(domain.CategoryMatchedByAmountDate, byAmount, receivables, bank),
	}

	for i, r := range receivables {
		if claimedR[i] {
			continue
		}
		age := AgeInDays(asOf, r.Date)
		p := domain.PendingReceivable{
			Record:         r,
			AgeDays:        age,
			Bucket:         e.aging.Classify(age),
			Trivial:        IsTrivial(r.Amount, e.opts.TrivialThreshold),
			PossibleCredit: e.credit.Flag(r),
		}
		result.Pending = append(result.Pending, p)
		if p.Trivial {
			result.TrivialBalances = append(result.TrivialBalances, p)
		}
	}
	for i, k := range bank {
		if !claimedK[i] {
			result.UnappliedPayments = append(result.UnappliedPayments, k)
		}
	}
	for _, r := range receivables {
		if e.credit.Flag(r) {
			result.PossibleCredits = append(result.PossibleCredits, r)
		}
	}
	result.Aging = e.aging.Summarize(result.Pending)

	return result
}

// referencePass joins on normalized reference. Blank references never match.
func (e *ReceivablesEngine) referencePass(receivables, bank []domain.Record) []candidate {
	byRef := make(map[string][]int)
	for j, k := range bank {
		if k.Reference != "" {
			byRef[k.Reference] = append(byRef[k.Reference], j)
		}
	}

	var out []candidate
	for i, r := range receivables {
		if r.Reference == "" {
			continue
		}
		for _, j := range byRef[r.Reference] {
			diff := r.Amount.Sub(bank[j].Amount).Abs()
			if diff.LessThanOrEqual(e.opts.AmountTolerance) {
				out = append(out, candidate{r: i, k: j, amountDiff: diff, days: absInt(dayDiff(r.Date, bank[j].Date))})
			}
		}
	}
	return out
}

// amountDatePass buckets absolute amounts into bands one tolerance wide. Two
// amounts within tolerance always fall in the same or adjacent bands, so
// probing band-1..band+1 finds every pair a full pairwise scan would.
func (e *ReceivablesEngine) amountDatePass(receivables, bank []domain.Record, claimedR, claimedK map[int]bool) []candidate {
	width := decimal.Max(e.opts.AmountTolerance, minBandWidth)
	band := func(a decimal.Decimal) int64 {
		return a.Abs().Div(width).Round(0).IntPart()
	}

	bands := make(map[int64][]int)
	for j, k := range bank {
		if !claimedK[j] {
			b := band(k.Amount)
			bands[b] = append(bands[b], j)
		}
	}

	var out []candidate
	for i, r := range receivables {
		if claimedR[i] {
			continue
		}
		b := band(r.Amount)
		for probe := b - 1; probe <= b+1; probe++ {
			for _, j := range bands[probe] {
				k := bank[j]
				diff := r.Amount.Abs().Sub(k.Amount.Abs()).Abs()
				days := absInt(dayDiff(r.Date, k.Date))
				if diff.LessThanOrEqual(e.opts.AmountTolerance) && days <= e.opts.DateToleranceDays {
					out = append(out, candidate{r: i, k: j, amountDiff: diff, days: days})
				}
			}
		}
	}
	sortByRow(out)
	return out
}

// assign applies the tie-break policy to a set of passing candidates.
func (e *ReceivablesEngine) assign(cands []candidate) []candidate {
	if e.opts.TieBreak != TieBreakNearest {
		return cands
	}

	ranked := append([]candidate(nil), cands...)
	sort.SliceStable(ranked, func(a, b int) bool {
		ca, cb := ranked[a], ranked[b]
		if ca.days != cb.days {
			return ca.days < cb.days
		}
		if c := ca.amountDiff.Cmp(cb.amountDiff); c != 0 {
			return c < 0
		}
		if ca.r != cb.r {
			return ca.r < cb.r
		}
		return ca.k < cb.k
	})

	usedR := make(map[int]bool)
	usedK := make(map[int]bool)
	var out []candidate
	for _, c := range ranked {
		if usedR[c.r] || usedK[c.k] {
			continue
		}
		usedR[c.r] = true
		usedK[c.k] = true
		out = append(out, c)
	}
	sortByRow(out)
	return out
}

func (e *ReceivablesEngine) matches(cat domain.Category, cands []candidate, receivables, bank []domain.Record) []domain.ReceivableMatch {
	out := make([]domain.ReceivableMatch, 0, len(cands))
	for _, c := range cands {
		out = append(out, domain.ReceivableMatch{
			Category:         cat,
			Receivable:       receivables[c.r],
			Payment:          bank[c.k],
			AmountDifference: c.amountDiff,
			DayDifference:    c.days,
		})
	}
	return out
}

// asOf is the later of the configured day and the newest receivable date.
func (e *ReceivablesEngine) asOf(receivables []domain.Record) time.Time {
	var asOf time.Time
	if !e.opts.Today.IsZero() {
		y, m, d := e.opts.Today.Date()
		asOf = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	for _, r := range receivables {
		if r.Date.After(asOf) {
			asOf = r.Date
		}
	}
	return asOf
}

func sortByRow(cands []candidate) {
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].r != cands[b].r {
			return cands[a].r < cands[b].r
		}
		return cands[a].k < cands[b].k
	})
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
