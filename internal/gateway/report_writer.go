package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"caat-reconciliation/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding for reports.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a flag value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatXLSX:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// WriteReport encodes an *domain.ExactReport or *domain.ReceivablesReport.
func WriteReport(w io.Writer, format Format, report any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatXLSX:
		return writeWorkbook(w, report)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// sheet is one result table of the workbook.
type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

func writeWorkbook(w io.Writer, report any) error {
	var sheets []sheet
	switch r := report.(type) {
	case *domain.ExactReport:
		sheets = exactSheets(r)
	case *domain.ReceivablesReport:
		sheets = receivablesSheets(r)
	default:
		return fmt.Errorf("cannot write %T as a workbook", report)
	}

	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("could not create sheet %s: %w", s.name, err)
		}
		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return fmt.Errorf("could not write header of %s: %w", s.name, err)
		}
		for i, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("could not write row %d of %s: %w", i+1, s.name, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

var recordHeader = []interface{}{"row", "id", "entity", "date", "amount", "reference", "observation"}

func recordCells(r domain.Record) []interface{} {
	return []interface{}{r.Row, r.ID, r.Entity, r.Date.Format(domain.DateLayout), amount(r.Amount), r.Reference, r.Observation}
}

func prefixed(prefix string, header []interface{}) []interface{} {
	out := make([]interface{}, len(header))
	for i, h := range header {
		out[i] = prefix + "_" + h.(string)
	}
	return out
}

func amount(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func recordSheet(name string, records []domain.Record) sheet {
	s := sheet{name: name, header: recordHeader}
	for _, r := range records {
		s.rows = append(s.rows, recordCells(r))
	}
	return s
}

func summarySheet(pairs ...interface{}) sheet {
	s := sheet{name: "summary", header: []interface{}{"metric", "value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		s.rows = append(s.rows, []interface{}{pairs[i], pairs[i+1]})
	}
	return s
}

func exactSheets(r *domain.ExactReport) []sheet {
	summary := summarySheet(
		"run_id", r.RunID,
		"generated_at", r.GeneratedAt.Format("2006-01-02 15:04:05"),
		"source", r.Source.Name,
		"target", r.Target.Name,
		"source_skipped", r.Source.Skipped,
		"target_skipped", r.Target.Skipped,
	)
	for _, f := range r.Summary.Findings {
		summary.rows = append(summary.rows, []interface{}{string(f.Category), strconv.Itoa(f.Count) + " (" + string(f.Level) + ")"})
	}

	pairHeader := append(prefixed("source", recordHeader), prefixed("target", recordHeader)...)
	matched := sheet{name: "matched", header: pairHeader}
	for _, p := range r.Result.Matched {
		matched.rows = append(matched.rows, append(recordCells(p.Source), recordCells(p.Target)...))
	}

	discrepancies := sheet{
		name:   "value_discrepancy",
		header: append(append([]interface{}{}, pairHeader...), "fields", "amount_difference", "day_difference"),
	}
	for _, d := range r.Result.ValueDiscrepancy {
		fields := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			fields[i] = string(f)
		}
		row := append(recordCells(d.Source), recordCells(d.Target)...)
		row = append(row, strings.Join(fields, ","), amount(d.AmountDifference), d.DayDifference)
		discrepancies.rows = append(discrepancies.rows, row)
	}

	duplicates := sheet{name: "duplicates", header: append([]interface{}{"collection"}, recordHeader...)}
	for _, rec := range r.Result.Duplicates.Source {
		duplicates.rows = append(duplicates.rows, append([]interface{}{"source"}, recordCells(rec)...))
	}
	for _, rec := range r.Result.Duplicates.Target {
		duplicates.rows = append(duplicates.rows, append([]interface{}{"target"}, recordCells(rec)...))
	}

	return []sheet{
		summary,
		matched,
		recordSheet("missing_in_target", r.Result.MissingInTarget),
		recordSheet("unexpected_in_target", r.Result.UnexpectedInTarget),
		discrepancies,
		duplicates,
	}
}

func matchSheet(name string, matches []domain.ReceivableMatch) sheet {
	s := sheet{
		name:   name,
		header: append(append(prefixed("receivable", recordHeader), prefixed("payment", recordHeader)...), "amount_difference", "day_difference"),
	}
	for _, m := range matches {
		row := append(recordCells(m.Receivable), recordCells(m.Payment)...)
		s.rows = append(s.rows, append(row, amount(m.AmountDifference), m.DayDifference))
	}
	return s
}

func pendingSheet(name string, pending []domain.PendingReceivable) sheet {
	s := sheet{name: name, header: append(append([]interface{}{}, recordHeader...), "age_days", "bucket", "trivial", "possible_credit")}
	for _, p := range pending {
		s.rows = append(s.rows, append(recordCells(p.Record), p.AgeDays, p.Bucket, p.Trivial, p.PossibleCredit))
	}
	return s
}

func receivablesSheets(r *domain.ReceivablesReport) []sheet {
	cuts := make([]string, len(r.Parameters.AgingCuts))
	for i, c := range r.Parameters.AgingCuts {
		cuts[i] = strconv.Itoa(c)
	}
	summary := summarySheet(
		"run_id", r.RunID,
		"generated_at", r.GeneratedAt.Format("2006-01-02 15:04:05"),
		"as_of", r.Result.AsOf.Format(domain.DateLayout),
		"receivables", r.Receivables.Name,
		"bank", r.Bank.Name,
		"receivables_skipped", r.Receivables.Skipped,
		"bank_skipped", r.Bank.Skipped,
		"amount_tolerance", amount(r.Parameters.AmountTolerance),
		"date_tolerance_days", r.Parameters.DateToleranceDays,
		"trivial_threshold", amount(r.Parameters.TrivialThreshold),
		"aging_cuts", strings.Join(cuts, ","),
		"matched_by_reference", r.Summary.MatchedByReference,
		"matched_by_amount_date", r.Summary.MatchedByAmountDate,
		"pending_receivable", r.Summary.Pending,
		"pending_amount", amount(r.Summary.PendingAmount),
		"unapplied_bank_payment", r.Summary.Unapplied,
		"unapplied_amount", amount(r.Summary.UnappliedAmount),
		"trivial_balance", r.Summary.Trivial,
		"possible_credit_or_retention", r.Summary.PossibleCredits,
		"critical_bucket", r.Summary.CriticalBucket,
	)

	aging := sheet{name: "aging_summary", header: []interface{}{"bucket", "count", "sum"}}
	for _, b := range r.Result.Aging {
		aging.rows = append(aging.rows, []interface{}{b.Bucket, b.Count, amount(b.Sum)})
	}

	return []sheet{
		summary,
		matchSheet("matched_exact_ref", r.Result.MatchedByReference),
		matchSheet("matched_amount_date", r.Result.MatchedByAmountDate),
		pendingSheet("pending_receivable", r.Result.Pending),
		recordSheet("unapplied_bank_payment", r.Result.UnappliedPayments),
		aging,
		pendingSheet("trivial_balance", r.Result.TrivialBalances),
		recordSheet("possible_credit_or_retention", r.Result.PossibleCredits),
	}
}
