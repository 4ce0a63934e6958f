package config

import (
	"os"
	"path/filepath"
	"testing"

	"caat-reconciliation/internal/columns"
	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/engine"
	"caat-reconciliation/internal/normalize"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caat.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "entity"}, c.Reconciliation.CompositeKey)
	assert.Equal(t, []string{"id", "date", "amount", "entity"}, c.Reconciliation.FullKey)
	assert.Equal(t, 0.50, c.Receivables.AmountTolerance)
	assert.Equal(t, 5, c.Receivables.DateToleranceDays)
	assert.Equal(t, []int{30, 60, 90}, c.Receivables.AgingCuts)
	assert.Equal(t, "latin", c.Normalization.AmountFormat)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, int64(10<<20), c.MaxUploadBytes())

	opts, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultExactOptions(), opts.Exact)
	assert.True(t, opts.Receivables.AmountTolerance.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, opts.Receivables.TrivialThreshold.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, engine.TieBreakAll, opts.Receivables.TieBreak)
	assert.True(t, opts.Receivables.Today.IsZero())
	assert.Equal(t, normalize.DefaultOptions(), opts.Normalize)
	assert.Equal(t, columns.BankSynonyms, opts.BankSynonyms)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
reconciliation:
  composite_key: [id]
  full_key: [id, amount]
receivables:
  amount_tolerance: 1.25
  aging_cuts: [15, 45]
  tie_break: nearest
  as_of: "2023-06-30"
normalization:
  amount_format: dot
columns:
  bank:
    amount: [haber, credito]
logging:
  level: debug
  format: console
`)
	t.Setenv("CAAT_RECEIVABLES_DATE_TOLERANCE_DAYS", "2")
	t.Setenv("CAAT_SERVER_PORT", "9090")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Receivables.DateToleranceDays)
	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "console", c.Logging.Format)

	opts, err := c.Options()
	require.NoError(t, err)
	assert.Equal(t, []domain.Field{domain.FieldID}, opts.Exact.CompositeKey)
	assert.Equal(t, []domain.Field{domain.FieldID, domain.FieldAmount}, opts.Exact.FullKey)
	assert.True(t, opts.Receivables.AmountTolerance.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, 2, opts.Receivables.DateToleranceDays)
	assert.Equal(t, []int{15, 45}, opts.Receivables.AgingCuts)
	assert.Equal(t, engine.TieBreakNearest, opts.Receivables.TieBreak)
	assert.Equal(t, 2023, opts.Receivables.Today.Year())
	assert.Equal(t, normalize.AmountDot, opts.Normalize.AmountFormat)
	assert.Equal(t, []string{"haber", "credito"}, opts.BankSynonyms[domain.FieldAmount])
	assert.Equal(t, columns.BankSynonyms[domain.FieldDate], opts.BankSynonyms[domain.FieldDate])
	assert.Equal(t, []string{"monto", "importe", "abono", "deposito", "cr", "credito", "valor"}, columns.BankSynonyms[domain.FieldAmount], "built-in profile is not modified")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "receivables: [unclosed")

	_, err := Load(path)

	assert.Error(t, err)
}

func TestConfig_OptionsRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		setting string
	}{
		{
			name:    "unknown key field",
			body:    "reconciliation:\n  composite_key: [id, colour]\n",
			setting: "reconciliation.composite_key",
		},
		{
			name:    "empty full key",
			body:    "reconciliation:\n  full_key: []\n",
			setting: "reconciliation.full_key",
		},
		{
			name:    "negative amount tolerance",
			body:    "receivables:\n  amount_tolerance: -0.5\n",
			setting: "receivables.amount_tolerance",
		},
		{
			name:    "descending aging cuts",
			body:    "receivables:\n  aging_cuts: [90, 60, 30]\n",
			setting: "receivables.aging_cuts",
		},
		{
			name:    "malformed as-of date",
			body:    "receivables:\n  as_of: 30/06/2023\n",
			setting: "receivables.as_of",
		},
		{
			name:    "unknown amount format",
			body:    "normalization:\n  amount_format: swiss\n",
			setting: "normalization.amount_format",
		},
		{
			name:    "synonyms for an unknown field",
			body:    "columns:\n  ledger:\n    currency: [moneda]\n",
			setting: "columns.ledger.currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeConfig(t, tt.body))
			require.NoError(t, err)

			_, err = c.Options()

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}
}
