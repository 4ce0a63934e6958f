// Package engine holds the reconciliation rules: composite-key comparison of two
// ledgers, tolerance matching of receivables against bank movements, aging and
// the advisory heuristics applied to unmatched receivables.
//
// The engine is pure: it performs no I/O, keeps no state between runs and
// returns fresh result tables on every call.
package engine

import (
	"strings"

	"caat-reconciliation/internal/domain"
)

// ExactOptions configures composite-key reconciliation.
type ExactOptions struct {
	// CompositeKey identifies "the same transaction" across collections.
	CompositeKey []domain.Field
	// FullKey must agree field by field for a pair to count as an exact match.
	FullKey []domain.Field
}

// DefaultExactOptions keys on id+entity and requires id, date, amount and entity to agree.
func DefaultExactOptions() ExactOptions {
	return ExactOptions{
		CompositeKey: []domain.Field{domain.FieldID, domain.FieldEntity},
		FullKey:      []domain.Field{domain.FieldID, domain.FieldDate, domain.FieldAmount, domain.FieldEntity},
	}
}

// Validate rejects empty or unknown key fields.
func (o ExactOptions) Validate() error {
	if len(o.CompositeKey) == 0 {
		return &domain.ConfigurationError{Setting: "reconciliation.composite_key", Value: o.CompositeKey, Reason: "must name at least one field"}
	}
	if len(o.FullKey) == 0 {
		return &domain.ConfigurationError{Setting: "reconciliation.full_key", Value: o.FullKey, Reason: "must name at least one field"}
	}
	for _, f := range o.CompositeKey {
		if _, ok := domain.ParseField(string(f)); !ok {
			return &domain.ConfigurationError{Setting: "reconciliation.composite_key", Value: f, Reason: "unknown field"}
		}
	}
	for _, f := range o.FullKey {
		if _, ok := domain.ParseField(string(f)); !ok {
			return &domain.ConfigurationError{Setting: "reconciliation.full_key", Value: f, Reason: "unknown field"}
		}
	}
	return nil
}

// KeyFields returns every field either key depends on, in first-seen order.
func (o ExactOptions) KeyFields() []domain.Field {
	seen := make(map[domain.Field]bool)
	var out []domain.Field
	for _, f := range append(append([]domain.Field{}, o.CompositeKey...), o.FullKey...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// ExactEngine compares two normalized collections on a composite key.
type ExactEngine struct {
	opts ExactOptions
}

// NewExactEngine creates an engine. Options are expected to be validated.
func NewExactEngine(opts ExactOptions) *ExactEngine {
	return &ExactEngine{opts: opts}
}

// Reconcile classifies both collections into the five exact categories.
func (e *ExactEngine) Reconcile(source, target []domain.Record) domain.ExactResult {
	matched, discrepancies := e.compareIntersection(source, target)
	return domain.ExactResult{
		Matched:            matched,
		MissingInTarget:    e.MissingInTarget(source, target),
		UnexpectedInTarget: e.UnexpectedInTarget(source, target),
		ValueDiscrepancy:   discrepancies,
		Duplicates: domain.Duplicates{
			Source: e.Duplicates(source),
			Target: e.Duplicates(target),
		},
	}
}

// MatchedExact returns the composite-key pairs whose full keys agree.
func (e *ExactEngine) MatchedExact(source, target []domain.Record) []domain.Pair {
	matched, _ := e.compareIntersection(source, target)
	return matched
}

// ValueDiscrepancy returns the composite-key pairs whose full keys disagree.
func (e *ExactEngine) ValueDiscrepancy(source, target []domain.Record) []domain.Discrepancy {
	_, discrepancies := e.compareIntersection(source, target)
	return discrepancies
}

// MissingInTarget returns source records whose composite key never appears in target.
func (e *ExactEngine) MissingInTarget(source, target []domain.Record) []domain.Record {
	return e.antiJoin(source, target)
}

// UnexpectedInTarget returns target records whose composite key never appears in source.
func (e *ExactEngine) UnexpectedInTarget(source, target []domain.Record) []domain.Record {
	return e.antiJoin(target, source)
}

// Duplicates returns every record whose composite key occurs more than once,
// grouped by key in order of first appearance.
func (e *ExactEngine) Duplicates(records []domain.Record) []domain.Record {
	groups, order := e.group(records)
	var out []domain.Record
	for _, k := range order {
		if idx := groups[k]; len(idx) > 1 {
			for _, i := range idx {
				out = append(out, records[i])
			}
		}
	}
	return out
}

// compareIntersection walks the composite-key inner join. Every pair lands in
// exactly one of the two returned tables.
func (e *ExactEngine) compareIntersection(source, target []domain.Record) ([]domain.Pair, []domain.Discrepancy) {
	byKey, _ := e.group(target)

	var matched []domain.Pair
	var discrepancies []domain.Discrepancy
	for _, s := range source {
		for _, i := range byKey[e.key(s)] {
			t := target[i]
			pair := domain.Pair{Source: s, Target: t}
			if diff := e.differingFields(s, t); len(diff) > 0 {
				discrepancies = append(discrepancies, domain.Discrepancy{
					Pair:             pair,
					Fields:           diff,
					AmountDifference: s.Amount.Sub(t.Amount),
					DayDifference:    dayDiff(s.Date, t.Date),
				})
				continue
			}
			matched = append(matched, pair)
		}
	}
	return matched, discrepancies
}

func (e *ExactEngine) differingFields(a, b domain.Record) []domain.Field {
	var diff []domain.Field
	for _, f := range e.opts.FullKey {
		if !a.SameValue(b, f) {
			diff = append(diff, f)
		}
	}
	return diff
}

func (e *ExactEngine) antiJoin(left, right []domain.Record) []domain.Record {
	keys, _ := e.group(right)
	var out []domain.Record
	for _, r := range left {
		if _, ok := keys[e.key(r)]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func (e *ExactEngine) group(records []domain.Record) (map[string][]int, []string) {
	groups := make(map[string][]int, len(records))
	var order []string
	for i, r := range records {
		k := e.key(r)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	return groups, order
}

func (e *ExactEngine) key(r domain.Record) string {
	parts := make([]string, len(e.opts.CompositeKey))
	for i, f := range e.opts.CompositeKey {
		parts[i] = r.Value(f)
	}
	return strings.Join(parts, "\x1f")
}
