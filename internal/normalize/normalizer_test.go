package normalize_test

import (
	"testing"
	"time"

	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/normalize"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_ParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		format normalize.AmountFormat
		raw    string
		want   string
		wantOK bool
	}{
		{name: "latin thousands and decimals", format: normalize.AmountLatin, raw: "1.234,56", want: "1234.56", wantOK: true},
		{name: "latin decimal comma", format: normalize.AmountLatin, raw: "100,5", want: "100.5", wantOK: true},
		{name: "latin negative", format: normalize.AmountLatin, raw: " -50 ", want: "-50", wantOK: true},
		{name: "latin reads dot as thousands", format: normalize.AmountLatin, raw: "100.00", want: "10000", wantOK: true},
		{name: "dot thousands and decimals", format: normalize.AmountDot, raw: "1,234.56", want: "1234.56", wantOK: true},
		{name: "dot plain decimal", format: normalize.AmountDot, raw: "149.99", want: "149.99", wantOK: true},
		{name: "empty", format: normalize.AmountLatin, raw: "  ", wantOK: false},
		{name: "text", format: normalize.AmountLatin, raw: "n/a", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := normalize.NewNormalizer(normalize.Options{AmountFormat: tt.format})

			got, ok := n.ParseAmount(tt.raw)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		raw    string
		want   time.Time
		wantOK bool
	}{
		{name: "day first slash", raw: "05/01/2023", want: day(2023, time.January, 5), wantOK: true},
		{name: "day first dash no padding", raw: "5-1-2023", want: day(2023, time.January, 5), wantOK: true},
		{name: "two digit year", raw: "05/01/23", want: day(2023, time.January, 5), wantOK: true},
		{name: "iso", raw: "2023-01-05", want: day(2023, time.January, 5), wantOK: true},
		{name: "time of day dropped", raw: "2023-01-05 13:45:00", want: day(2023, time.January, 5), wantOK: true},
		{name: "rfc3339", raw: "2023-01-05T10:00:00Z", want: day(2023, time.January, 5), wantOK: true},
		{name: "bare number is not a date", raw: "2023", wantOK: false},
		{name: "excel serial outside a workbook", raw: "45000", wantOK: false},
		{name: "impossible day", raw: "31/02/2023", wantOK: false},
		{name: "garbage", raw: "mañana", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize.ParseDate(tt.raw)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseWorkbookDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		raw    string
		want   time.Time
		wantOK bool
	}{
		{name: "excel serial", raw: "45000", want: day(2023, time.March, 15), wantOK: true},
		{name: "serial day above twelve", raw: "44951", want: day(2023, time.January, 25), wantOK: true},
		{name: "serial with time of day", raw: "44931.75", want: day(2023, time.January, 5), wantOK: true},
		{name: "text date in a string cell", raw: " 05/01/2023 ", want: day(2023, time.January, 5), wantOK: true},
		{name: "serial zero", raw: "0", wantOK: false},
		{name: "beyond year 9999", raw: "2958466", wantOK: false},
		{name: "garbage", raw: "pendiente", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize.ParseWorkbookDate(tt.raw)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestNormalizer_Collection_SerialDates(t *testing.T) {
	rows := [][]string{{"44931", "300,00"}, {"2023", "10,00"}}
	mapping := domain.ColumnMapping{domain.FieldDate: "Fecha", domain.FieldAmount: "Monto"}
	n := normalize.NewNormalizer(normalize.DefaultOptions())

	t.Run("workbook table reads serials", func(t *testing.T) {
		table := &domain.Table{Name: "cxc.xlsx", Headers: []string{"Fecha", "Monto"}, Rows: rows, Workbook: true}

		records, warnings := n.Collection(table, mapping)

		assert.Empty(t, warnings)
		require.Len(t, records, 2)
		assert.Equal(t, time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC), records[0].Date)
		assert.Equal(t, time.Date(1905, time.July, 15, 0, 0, 0, 0, time.UTC), records[1].Date)
	})

	t.Run("delimited table rejects bare numbers", func(t *testing.T) {
		table := &domain.Table{Name: "cxc.csv", Headers: []string{"Fecha", "Monto"}, Rows: rows}

		records, warnings := n.Collection(table, mapping)

		assert.Empty(t, records)
		require.Len(t, warnings, 2)
		assert.Equal(t, domain.ParseWarning{Collection: "cxc.csv", Row: 2, Field: domain.FieldDate, Value: "2023"}, warnings[1])
	})
}

func TestNormalizer_Collection(t *testing.T) {
	table := &domain.Table{
		Name:    "receivables",
		Headers: []string{"Cliente", "Factura", "Fecha", "Monto", "Obs"},
		Rows: [][]string{
			{"CLI001", " f-001 ", "05/01/2023", "300,00", "venta"},
			{"", "F-002", "06/01/2023", "1,50", ""},
			{"", "", "", "", ""},
			{"CLI003", "F-003", "someday", "10,00", ""},
			{"CLI004", "F-004", "07/01/2023", "abc", ""},
			{"CLI005", "F-005", "08/01/2023"},
		},
	}
	mapping := domain.ColumnMapping{
		domain.FieldEntity:      "Cliente",
		domain.FieldReference:   "Factura",
		domain.FieldDate:        "Fecha",
		domain.FieldAmount:      "Monto",
		domain.FieldObservation: "Obs",
	}
	n := normalize.NewNormalizer(normalize.DefaultOptions())

	records, warnings := n.Collection(table, mapping)

	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Row)
	assert.Equal(t, "CLI001", records[0].Entity)
	assert.Equal(t, "F-001", records[0].Reference)
	assert.Equal(t, "venta", records[0].Observation)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, domain.UnassignedEntity, records[1].Entity)
	assert.True(t, records[1].Amount.Equal(decimal.RequireFromString("1.5")))

	require.Len(t, warnings, 3)
	assert.Equal(t, domain.ParseWarning{Collection: "receivables", Row: 4, Field: domain.FieldDate, Value: "someday"}, warnings[0])
	assert.Equal(t, domain.FieldAmount, warnings[1].Field)
	assert.Equal(t, 5, warnings[1].Row)
	assert.Equal(t, 6, warnings[2].Row)
	assert.Equal(t, 3, normalize.SkippedRows(warnings))
}

func TestNormalizer_CustomUnassignedEntity(t *testing.T) {
	table := &domain.Table{
		Name:    "bank",
		Headers: []string{"Fecha", "Abono"},
		Rows:    [][]string{{"2023-01-07", "300"}},
	}
	n := normalize.NewNormalizer(normalize.Options{AmountFormat: normalize.AmountLatin, UnassignedEntity: "BANCO"})

	records, warnings := n.Collection(table, domain.ColumnMapping{domain.FieldDate: "Fecha", domain.FieldAmount: "Abono"})

	assert.Empty(t, warnings)
	require.Len(t, records, 1)
	assert.Equal(t, "BANCO", records[0].Entity)
	assert.Empty(t, records[0].Reference)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, normalize.DefaultOptions().Validate())

	err := normalize.Options{AmountFormat: "roman"}.Validate()

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "normalization.amount_format", cfgErr.Setting)
}

func TestNormalizeReference(t *testing.T) {
	assert.Equal(t, "FAC-0001", normalize.NormalizeReference("  fac-0001\t"))
	assert.Equal(t, "", normalize.NormalizeReference("   "))
}
