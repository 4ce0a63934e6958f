package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair links a source record with its counterpart in the target collection.
type Pair struct {
	Source Record `json:"source" yaml:"source"`
	Target Record `json:"target" yaml:"target"`
}

// Discrepancy is a composite-key match whose values disagree.
type Discrepancy struct {
	Pair             `yaml:",inline"`
	Fields           []Field         `json:"fields" yaml:"fields"`
	AmountDifference decimal.Decimal `json:"amount_difference" yaml:"amount_difference"`
	DayDifference    int             `json:"day_difference" yaml:"day_difference"`
}

// Duplicates holds every copy of a repeated composite key, per collection.
type Duplicates struct {
	Source []Record `json:"source" yaml:"source"`
	Target []Record `json:"target" yaml:"target"`
}

// ExactResult holds the result tables of a composite-key reconciliation.
type ExactResult struct {
	Matched            []Pair        `json:"matched" yaml:"matched"`
	MissingInTarget    []Record      `json:"missing_in_target" yaml:"missing_in_target"`
	UnexpectedInTarget []Record      `json:"unexpected_in_target" yaml:"unexpected_in_target"`
	ValueDiscrepancy   []Discrepancy `json:"value_discrepancy" yaml:"value_discrepancy"`
	Duplicates         Duplicates    `json:"duplicates" yaml:"duplicates"`
}

// ReceivableMatch pairs a receivable with the bank movement that settles it.
type ReceivableMatch struct {
	Category         Category        `json:"category" yaml:"category"`
	Receivable       Record          `json:"receivable" yaml:"receivable"`
	Payment          Record          `json:"payment" yaml:"payment"`
	AmountDifference decimal.Decimal `json:"amount_difference" yaml:"amount_difference"`
	DayDifference    int             `json:"day_difference" yaml:"day_difference"`
}

// PendingReceivable is an unmatched receivable with its derived aging data.
type PendingReceivable struct {
	Record         `yaml:",inline"`
	AgeDays        int    `json:"age_days" yaml:"age_days"`
	Bucket         string `json:"bucket" yaml:"bucket"`
	Trivial        bool   `json:"trivial" yaml:"trivial"`
	PossibleCredit bool   `json:"possible_credit" yaml:"possible_credit"`
}

// AgingBucket aggregates pending receivables of one aging band.
type AgingBucket struct {
	Bucket string          `json:"bucket" yaml:"bucket"`
	Count  int             `json:"count" yaml:"count"`
	Sum    decimal.Decimal `json:"sum" yaml:"sum"`
}

// ReceivablesResult holds the result tables of a receivables-vs-bank reconciliation.
type ReceivablesResult struct {
	AsOf                time.Time           `json:"as_of" yaml:"as_of"`
	MatchedByReference  []ReceivableMatch   `json:"matched_exact_ref" yaml:"matched_exact_ref"`
	MatchedByAmountDate []ReceivableMatch   `json:"matched_amount_date" yaml:"matched_amount_date"`
	Pending             []PendingReceivable `json:"pending_receivable" yaml:"pending_receivable"`
	UnappliedPayments   []Record            `json:"unapplied_bank_payment" yaml:"unapplied_bank_payment"`
	Aging               []AgingBucket       `json:"aging_summary" yaml:"aging_summary"`
	TrivialBalances     []PendingReceivable `json:"trivial_balance" yaml:"trivial_balance"`
	PossibleCredits     []Record            `json:"possible_credit_or_retention" yaml:"possible_credit_or_retention"`
}

// RiskLevel grades how much attention a finding needs.
type RiskLevel string

const (
	RiskOK        RiskLevel = "ok"
	RiskAttention RiskLevel = "attention"
	RiskHigh      RiskLevel = "high"
)

// Finding is a category count with its risk grade.
type Finding struct {
	Category Category  `json:"category" yaml:"category"`
	Count    int       `json:"count" yaml:"count"`
	Level    RiskLevel `json:"level" yaml:"level"`
}

// CollectionInfo describes one loaded collection.
type CollectionInfo struct {
	Name     string         `json:"name" yaml:"name"`
	Rows     int            `json:"rows" yaml:"rows"`
	Records  int            `json:"records" yaml:"records"`
	Skipped  int            `json:"skipped" yaml:"skipped"`
	Columns  ColumnMapping  `json:"columns" yaml:"columns"`
	Warnings []ParseWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ExactSummary provides the category counts of an exact reconciliation.
type ExactSummary struct {
	Matched            int       `json:"matched" yaml:"matched"`
	MissingInTarget    int       `json:"missing_in_target" yaml:"missing_in_target"`
	UnexpectedInTarget int       `json:"unexpected_in_target" yaml:"unexpected_in_target"`
	ValueDiscrepancy   int       `json:"value_discrepancy" yaml:"value_discrepancy"`
	Duplicates         int       `json:"duplicates" yaml:"duplicates"`
	Findings           []Finding `json:"findings" yaml:"findings"`
}

// ReceivablesSummary provides the category counts of a receivables reconciliation.
type ReceivablesSummary struct {
	MatchedByReference  int             `json:"matched_by_reference" yaml:"matched_by_reference"`
	MatchedByAmountDate int             `json:"matched_by_amount_date" yaml:"matched_by_amount_date"`
	Pending             int             `json:"pending_receivable" yaml:"pending_receivable"`
	PendingAmount       decimal.Decimal `json:"pending_amount" yaml:"pending_amount"`
	Unapplied           int             `json:"unapplied_bank_payment" yaml:"unapplied_bank_payment"`
	UnappliedAmount     decimal.Decimal `json:"unapplied_amount" yaml:"unapplied_amount"`
	Trivial             int             `json:"trivial_balance" yaml:"trivial_balance"`
	PossibleCredits     int             `json:"possible_credit_or_retention" yaml:"possible_credit_or_retention"`
	CriticalBucket      string          `json:"critical_bucket,omitempty" yaml:"critical_bucket,omitempty"`
}

// ExactReport is the top-level structure for an exact reconciliation run.
type ExactReport struct {
	RunID       string         `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Source      CollectionInfo `json:"source" yaml:"source"`
	Target      CollectionInfo `json:"target" yaml:"target"`
	Summary     ExactSummary   `json:"summary" yaml:"summary"`
	Result      ExactResult    `json:"result" yaml:"result"`
}

// ReceivablesParameters echoes the tolerances a receivables run used.
type ReceivablesParameters struct {
	AmountTolerance   decimal.Decimal `json:"amount_tolerance" yaml:"amount_tolerance"`
	DateToleranceDays int             `json:"date_tolerance_days" yaml:"date_tolerance_days"`
	TrivialThreshold  decimal.Decimal `json:"trivial_threshold" yaml:"trivial_threshold"`
	AgingCuts         []int           `json:"aging_cuts" yaml:"aging_cuts"`
}

// ReceivablesReport is the top-level structure for a receivables-vs-bank run.
type ReceivablesReport struct {
	RunID       string                `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	Receivables CollectionInfo        `json:"receivables" yaml:"receivables"`
	Bank        CollectionInfo        `json:"bank" yaml:"bank"`
	Parameters  ReceivablesParameters `json:"parameters" yaml:"parameters"`
	Summary     ReceivablesSummary    `json:"summary" yaml:"summary"`
	Result      ReceivablesResult     `json:"result" yaml:"result"`
}
