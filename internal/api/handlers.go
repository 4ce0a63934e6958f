package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/engine"
	"caat-reconciliation/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Reconciler runs reconciliations over uploaded tables.
type Reconciler interface {
	ReconcileExactTables(ctx context.Context, source, target *domain.Table) (*domain.ExactReport, error)
	ReconcileReceivablesTables(ctx context.Context, receivables, bank *domain.Table, opts engine.ReceivablesOptions) (*domain.ReceivablesReport, error)
	ReceivablesOptions() engine.ReceivablesOptions
}

// TableReader decodes an uploaded file into a table.
type TableReader interface {
	ReadTable(name string, r io.Reader) (*domain.Table, error)
}

// ReconcileHandler handles reconciliation requests.
type ReconcileHandler struct {
	reconciler Reconciler
	tables     TableReader
	resp       responder
}

// badRequest carries a client mistake that is not a reconciliation error.
type badRequest struct {
	message string
	details []string
}

// readUpload opens and decodes the multipart file sent under key.
func (h *ReconcileHandler) readUpload(c *gin.Context, key string) (*domain.Table, *badRequest) {
	header, err := c.FormFile(key)
	if err != nil {
		return nil, &badRequest{message: fmt.Sprintf("file %q not found or invalid", key), details: []string{err.Error()}}
	}
	file, err := header.Open()
	if err != nil {
		return nil, &badRequest{message: fmt.Sprintf("could not open %q", header.Filename), details: []string{err.Error()}}
	}
	defer file.Close()

	table, err := h.tables.ReadTable(header.Filename, file)
	if err != nil {
		return nil, &badRequest{message: fmt.Sprintf("could not read %q", header.Filename), details: []string{err.Error()}}
	}
	return table, nil
}

func (h *ReconcileHandler) readUploads(c *gin.Context, keys ...string) ([]*domain.Table, bool) {
	tables := make([]*domain.Table, 0, len(keys))
	for _, k := range keys {
		t, br := h.readUpload(c, k)
		if br != nil {
			h.resp.error(c, http.StatusBadRequest, br.message, br.details...)
			return nil, false
		}
		tables = append(tables, t)
	}
	return tables, true
}

// HandleExact reconciles source_file against target_file.
func (h *ReconcileHandler) HandleExact(c *gin.Context) {
	tables, ok := h.readUploads(c, "source_file", "target_file")
	if !ok {
		return
	}

	report, err := h.reconciler.ReconcileExactTables(c.Request.Context(), tables[0], tables[1])
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.respond(c, report, report.GeneratedAt, fmt.Sprintf("%d matched, %d findings", report.Summary.Matched,
		report.Summary.MissingInTarget+report.Summary.UnexpectedInTarget+report.Summary.ValueDiscrepancy+report.Summary.Duplicates))
}

// HandleReceivables reconciles receivables_file against bank_file, with
// optional per-request tolerance overrides.
func (h *ReconcileHandler) HandleReceivables(c *gin.Context) {
	opts, err := h.receivablesOptions(c)
	if err != nil {
		h.resp.error(c, http.StatusBadRequest, "invalid form parameter", err.Error())
		return
	}
	tables, ok := h.readUploads(c, "receivables_file", "bank_file")
	if !ok {
		return
	}

	report, err := h.reconciler.ReconcileReceivablesTables(c.Request.Context(), tables[0], tables[1], opts)
	if err != nil {
		h.resp.fail(c, err)
		return
	}
	h.respond(c, report, report.GeneratedAt, fmt.Sprintf("%d pending receivables, %d unapplied payments", report.Summary.Pending, report.Summary.Unapplied))
}

// respond sends the report as a JSON envelope, or as a workbook download when
// format=xlsx is requested. The download is named after the run's timestamp.
func (h *ReconcileHandler) respond(c *gin.Context, report any, generatedAt time.Time, message string) {
	if strings.EqualFold(c.Query("format"), string(gateway.FormatXLSX)) {
		var buf bytes.Buffer
		if err := gateway.WriteReport(&buf, gateway.FormatXLSX, report); err != nil {
			h.resp.error(c, http.StatusInternalServerError, "could not build workbook", err.Error())
			return
		}
		fileName := fmt.Sprintf("reconciliation_%s.xlsx", generatedAt.Format("20060102_150405"))
		c.Header("Content-Disposition", "attachment; filename="+fileName)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	h.resp.success(c, report, message)
}

// receivablesOptions applies form overrides on top of the configured options.
// Values are syntax-checked here; range checks happen in the use case.
func (h *ReconcileHandler) receivablesOptions(c *gin.Context) (engine.ReceivablesOptions, error) {
	opts := h.reconciler.ReceivablesOptions()

	if v := strings.TrimSpace(c.PostForm("amount_tolerance")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return opts, fmt.Errorf("amount_tolerance: %w", err)
		}
		opts.AmountTolerance = d
	}
	if v := strings.TrimSpace(c.PostForm("date_tolerance_days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("date_tolerance_days: %w", err)
		}
		opts.DateToleranceDays = n
	}
	if v := strings.TrimSpace(c.PostForm("trivial_threshold")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return opts, fmt.Errorf("trivial_threshold: %w", err)
		}
		opts.TrivialThreshold = d
	}
	if cuts, present := c.GetPostForm("aging_cuts"); present {
		opts.AgingCuts = nil
		for _, part := range strings.Split(cuts, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return opts, fmt.Errorf("aging_cuts: %w", err)
			}
			opts.AgingCuts = append(opts.AgingCuts, n)
		}
	}
	return opts, nil
}
