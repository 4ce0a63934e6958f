package usecase

import (
	"context"
	"fmt"
	"time"

	"caat-reconciliation/internal/columns"
	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/engine"
	"caat-reconciliation/internal/normalize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options carries everything a reconciliation run can be tuned with.
type Options struct {
	Exact       engine.ExactOptions
	Receivables engine.ReceivablesOptions
	Normalize   normalize.Options

	LedgerSynonyms      columns.Synonyms
	ReceivablesSynonyms columns.Synonyms
	BankSynonyms        columns.Synonyms

	// Clock stamps reports and anchors aging. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the built-in tolerances, keys and synonym profiles.
func DefaultOptions() Options {
	return Options{
		Exact:               engine.DefaultExactOptions(),
		Receivables:         engine.DefaultReceivablesOptions(),
		Normalize:           normalize.DefaultOptions(),
		LedgerSynonyms:      columns.LedgerSynonyms,
		ReceivablesSynonyms: columns.ReceivablesSynonyms,
		BankSynonyms:        columns.BankSynonyms,
		Clock:               time.Now,
	}
}

// ReconciliationUseCase orchestrates a run: load, resolve columns, normalize,
// validate, match and summarize.
type ReconciliationUseCase struct {
	repo   TableRepository
	opts   Options
	logger *zap.Logger

	normalizer  *normalize.Normalizer
	ledger      *columns.Resolver
	receivables *columns.Resolver
	bank        *columns.Resolver
}

// NewReconciliationUseCase creates a new instance of the usecase.
func NewReconciliationUseCase(repo TableRepository, opts Options, logger *zap.Logger) *ReconciliationUseCase {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationUseCase{
		repo:        repo,
		opts:        opts,
		logger:      logger,
		normalizer:  normalize.NewNormalizer(opts.Normalize),
		ledger:      columns.NewResolver(opts.LedgerSynonyms),
		receivables: columns.NewResolver(opts.ReceivablesSynonyms),
		bank:        columns.NewResolver(opts.BankSynonyms),
	}
}

// ReceivablesOptions returns a copy of the configured receivables options, for
// callers that override individual tolerances per request.
func (uc *ReconciliationUseCase) ReceivablesOptions() engine.ReceivablesOptions {
	o := uc.opts.Receivables
	o.AgingCuts = append([]int(nil), o.AgingCuts...)
	o.CreditKeywords = append([]string(nil), o.CreditKeywords...)
	return o
}

// ReconcileExact loads two ledgers and compares them on the composite key.
func (uc *ReconciliationUseCase) ReconcileExact(ctx context.Context, sourcePath, targetPath string) (*domain.ExactReport, error) {
	if err := uc.validate(uc.opts.Exact); err != nil {
		return nil, err
	}
	source, err := uc.repo.GetTable(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("could not load source collection: %w", err)
	}
	target, err := uc.repo.GetTable(ctx, targetPath)
	if err != nil {
		return nil, fmt.Errorf("could not load target collection: %w", err)
	}
	return uc.ReconcileExactTables(ctx, source, target)
}

// ReconcileExactTables runs an exact reconciliation over already loaded tables.
func (uc *ReconciliationUseCase) ReconcileExactTables(ctx context.Context, source, target *domain.Table) (*domain.ExactReport, error) {
	if err := uc.validate(uc.opts.Exact); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := uc.logger.With(zap.String("run_id", runID), zap.String("mode", "exact"))

	required, optional := exactFields(uc.opts.Exact)
	srcMap, srcErr := uc.ledger.ResolveAll(source, required, optional)
	tgtMap, tgtErr := uc.ledger.ResolveAll(target, required, optional)
	if err := domain.JoinSchemaErrors(srcErr, tgtErr); err != nil {
		log.Warn("unresolved columns", zap.Error(err))
		return nil, err
	}
	log.Debug("columns resolved", zap.Any("source", srcMap), zap.Any("target", tgtMap))

	srcRecords, srcInfo := uc.collect(log, source, srcMap)
	tgtRecords, tgtInfo := uc.collect(log, target, tgtMap)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := engine.NewExactEngine(uc.opts.Exact).Reconcile(srcRecords, tgtRecords)
	report := &domain.ExactReport{
		RunID:       runID,
		GeneratedAt: uc.opts.Clock().UTC(),
		Source:      srcInfo,
		Target:      tgtInfo,
		Summary:     summarizeExact(result),
		Result:      result,
	}

	log.Info("exact reconciliation finished",
		zap.Int("matched", report.Summary.Matched),
		zap.Int("missing_in_target", report.Summary.MissingInTarget),
		zap.Int("unexpected_in_target", report.Summary.UnexpectedInTarget),
		zap.Int("value_discrepancy", report.Summary.ValueDiscrepancy),
		zap.Int("duplicates", report.Summary.Duplicates))
	return report, nil
}

// ReconcileReceivables loads a receivables ledger and a bank statement and
// matches them with the configured tolerances.
func (uc *ReconciliationUseCase) ReconcileReceivables(ctx context.Context, receivablesPath, bankPath string) (*domain.ReceivablesReport, error) {
	if err := uc.validate(uc.opts.Receivables); err != nil {
		return nil, err
	}
	receivables, err := uc.repo.GetTable(ctx, receivablesPath)
	if err != nil {
		return nil, fmt.Errorf("could not load receivables collection: %w", err)
	}
	bank, err := uc.repo.GetTable(ctx, bankPath)
	if err != nil {
		return nil, fmt.Errorf("could not load bank collection: %w", err)
	}
	return uc.ReconcileReceivablesTables(ctx, receivables, bank, uc.opts.Receivables)
}

// ReconcileReceivablesTables runs a receivables reconciliation over already
// loaded tables with the given options.
func (uc *ReconciliationUseCase) ReconcileReceivablesTables(ctx context.Context, receivables, bank *domain.Table, opts engine.ReceivablesOptions) (*domain.ReceivablesReport, error) {
	if err := uc.validate(opts); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := uc.logger.With(zap.String("run_id", runID), zap.String("mode", "receivables"))

	required := []domain.Field{domain.FieldDate, domain.FieldAmount}
	recMap, recErr := uc.receivables.ResolveAll(receivables, required,
		[]domain.Field{domain.FieldEntity, domain.FieldReference, domain.FieldObservation})
	bankMap, bankErr := uc.bank.ResolveAll(bank, required,
		[]domain.Field{domain.FieldReference})
	if err := domain.JoinSchemaErrors(recErr, bankErr); err != nil {
		log.Warn("unresolved columns", zap.Error(err))
		return nil, err
	}
	log.Debug("columns resolved", zap.Any("receivables", recMap), zap.Any("bank", bankMap))

	recRecords, recInfo := uc.collect(log, receivables, recMap)
	bankRecords, bankInfo := uc.collect(log, bank, bankMap)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := uc.opts.Clock()
	if opts.Today.IsZero() {
		opts.Today = now
	}
	result := engine.NewReceivablesEngine(opts).Reconcile(recRecords, bankRecords)
	report := &domain.ReceivablesReport{
		RunID:       runID,
		GeneratedAt: now.UTC(),
		Receivables: recInfo,
		Bank:        bankInfo,
		Parameters: domain.ReceivablesParameters{
			AmountTolerance:   opts.AmountTolerance,
			DateToleranceDays: opts.DateToleranceDays,
			TrivialThreshold:  opts.TrivialThreshold,
			AgingCuts:         opts.AgingCuts,
		},
		Summary: summarizeReceivables(result),
		Result:  result,
	}

	log.Info("receivables reconciliation finished",
		zap.Time("as_of", result.AsOf),
		zap.Int("matched_by_reference", report.Summary.MatchedByReference),
		zap.Int("matched_by_amount_date", report.Summary.MatchedByAmountDate),
		zap.Int("pending_receivable", report.Summary.Pending),
		zap.Int("unapplied_bank_payment", report.Summary.Unapplied),
		zap.String("critical_bucket", report.Summary.CriticalBucket))
	return report, nil
}

// validate rejects engine and normalization settings before any file is read.
func (uc *ReconciliationUseCase) validate(engineOpts interface{ Validate() error }) error {
	if err := engineOpts.Validate(); err != nil {
		return err
	}
	return uc.opts.Normalize.Validate()
}

// collect normalizes a table and describes what was loaded from it.
func (uc *ReconciliationUseCase) collect(log *zap.Logger, table *domain.Table, mapping domain.ColumnMapping) ([]domain.Record, domain.CollectionInfo) {
	records, warnings := uc.normalizer.Collection(table, mapping)
	info := domain.CollectionInfo{
		Name:     table.Name,
		Rows:     len(table.Rows),
		Records:  len(records),
		Skipped:  normalize.SkippedRows(warnings),
		Columns:  mapping,
		Warnings: warnings,
	}
	if info.Skipped > 0 {
		log.Warn(domain.SkippedMessage(table.Name, info.Skipped), zap.Int("skipped", info.Skipped))
	}
	log.Debug("collection normalized", zap.String("collection", table.Name), zap.Int("records", info.Records))
	return records, info
}

// exactFields splits the semantic fields into required and optional for an
// exact run. Entity falls back to a sentinel, so it is never required; date and
// amount always are because rows without them cannot be normalized.
func exactFields(opts engine.ExactOptions) (required, optional []domain.Field) {
	need := map[domain.Field]bool{domain.FieldDate: true, domain.FieldAmount: true}
	for _, f := range opts.KeyFields() {
		need[f] = true
	}
	need[domain.FieldEntity] = false

	for _, f := range domain.Fields {
		if need[f] {
			required = append(required, f)
		} else {
			optional = append(optional, f)
		}
	}
	return required, optional
}
