package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFileTableRepository_GetTable_Delimited(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		expected *domain.Table
		wantErr  bool
	}{
		{
			name:     "semicolon separated with latin amounts",
			filename: "cxc.csv",
			content:  []byte("Cliente;NumeroFactura;Fecha;Monto\nCLI001;F-001;05/01/2023;1.234,56\nCLI002;F-002;06/01/2023;300,00\n"),
			expected: &domain.Table{
				Name:    "cxc.csv",
				Headers: []string{"Cliente", "NumeroFactura", "Fecha", "Monto"},
				Rows: [][]string{
					{"CLI001", "F-001", "05/01/2023", "1.234,56"},
					{"CLI002", "F-002", "06/01/2023", "300,00"},
				},
			},
		},
		{
			name:     "comma separated with quoted field and padded headers",
			filename: "origen.csv",
			content:  []byte(" ID_Transaccion , ID_Entidad ,Fecha,Monto\n101,CLI001,01/01/2023,\"100,00\"\n"),
			expected: &domain.Table{
				Name:    "origen.csv",
				Headers: []string{"ID_Transaccion", "ID_Entidad", "Fecha", "Monto"},
				Rows:    [][]string{{"101", "CLI001", "01/01/2023", "100,00"}},
			},
		},
		{
			name:     "tab separated txt with byte order mark",
			filename: "banco.txt",
			content:  append([]byte{0xEF, 0xBB, 0xBF}, []byte("Fecha\tReferencia\tAbono\n07/01/2023\tTRF 1\t300,00\n")...),
			expected: &domain.Table{
				Name:    "banco.txt",
				Headers: []string{"Fecha", "Referencia", "Abono"},
				Rows:    [][]string{{"07/01/2023", "TRF 1", "300,00"}},
			},
		},
		{
			name:     "latin-1 encoded file",
			filename: "cxc.csv",
			content:  []byte("Cliente;Observaci\xf3n\nCLI001;Retenci\xf3n IVA\n"),
			expected: &domain.Table{
				Name:    "cxc.csv",
				Headers: []string{"Cliente", "Observación"},
				Rows:    [][]string{{"CLI001", "Retención IVA"}},
			},
		},
		{
			name:     "ragged rows and leading blank lines",
			filename: "destino.csv",
			content:  []byte("\n;;\nID;Fecha;Monto\n1;01/01/2023\n2;02/01/2023;5;extra\n"),
			expected: &domain.Table{
				Name:    "destino.csv",
				Headers: []string{"ID", "Fecha", "Monto"},
				Rows: [][]string{
					{"1", "01/01/2023"},
					{"2", "02/01/2023", "5", "extra"},
				},
			},
		},
		{
			name:     "header only",
			filename: "empty.csv",
			content:  []byte("ID;Fecha;Monto\n"),
			expected: &domain.Table{Name: "empty.csv", Headers: []string{"ID", "Fecha", "Monto"}},
		},
		{
			name:     "empty file",
			filename: "blank.csv",
			content:  []byte(""),
			wantErr:  true,
		},
		{
			name:     "unsupported extension",
			filename: "ledger.json",
			content:  []byte("{}"),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createTempFile(t, tt.filename, tt.content)
			repo := NewFileTableRepository("")

			got, err := repo.GetTable(context.Background(), path)
			if tt.wantErr {
				assert.Error(t, err, "Expected error but got nil")
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected.Name, got.Name)
			assert.Equal(t, tt.expected.Headers, got.Headers)
			assert.Equal(t, len(tt.expected.Rows), len(got.Rows))
			for i := range tt.expected.Rows {
				assert.Equal(t, tt.expected.Rows[i], got.Rows[i])
			}
		})
	}
}

func TestFileTableRepository_GetTable_FileErrors(t *testing.T) {
	repo := NewFileTableRepository("")

	t.Run("file not found", func(t *testing.T) {
		_, err := repo.GetTable(context.Background(), filepath.Join(t.TempDir(), "nonexistent_file.csv"))
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := repo.GetTable(ctx, "whatever.csv")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		path := createTempFile(t, "broken.xlsx", []byte("not a zip"))
		_, err := repo.GetTable(context.Background(), path)
		assert.Error(t, err)
	})
}

func TestFileTableRepository_GetTable_Workbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Fecha", "Referencia", "Abono"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"07/01/2023", "F-001", "300,00"}))
	_, err := f.NewSheet("Enero")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Enero", "A1", &[]interface{}{"Fecha", "Monto"}))
	require.NoError(t, f.SetSheetRow("Enero", "A2", &[]interface{}{"02/01/2023", "10,00"}))

	path := filepath.Join(t.TempDir(), "banco.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	t.Run("first sheet by default", func(t *testing.T) {
		got, err := NewFileTableRepository("").GetTable(context.Background(), path)

		require.NoError(t, err)
		assert.Equal(t, "banco.xlsx", got.Name)
		assert.Equal(t, []string{"Fecha", "Referencia", "Abono"}, got.Headers)
		assert.Equal(t, [][]string{{"07/01/2023", "F-001", "300,00"}}, got.Rows)
	})

	t.Run("named sheet", func(t *testing.T) {
		got, err := NewFileTableRepository("Enero").GetTable(context.Background(), path)

		require.NoError(t, err)
		assert.Equal(t, []string{"Fecha", "Monto"}, got.Headers)
	})

	t.Run("xlsx content saved as xls", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		got, err := NewFileTableRepository("").ReadTable("banco.xls", strings.NewReader(string(data)))

		require.NoError(t, err)
		assert.Equal(t, "banco.xls", got.Name)
		assert.Equal(t, []string{"Fecha", "Referencia", "Abono"}, got.Headers)
	})
}

func TestFileTableRepository_GetTable_TypedDateCells(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Fecha", "Monto"}))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "300,00"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", time.Date(2023, time.January, 25, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "120,00"))
	shortDate, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A3", shortDate))

	path := filepath.Join(t.TempDir(), "cxc.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := NewFileTableRepository("").GetTable(context.Background(), path)

	require.NoError(t, err)
	assert.True(t, got.Workbook)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "44931", got.Rows[0][0], "date cells are read as serials, not display text")

	records, warnings := normalize.NewNormalizer(normalize.DefaultOptions()).Collection(got,
		domain.ColumnMapping{domain.FieldDate: "Fecha", domain.FieldAmount: "Monto"})
	assert.Empty(t, warnings)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, time.Date(2023, time.January, 25, 0, 0, 0, 0, time.UTC), records[1].Date)
}

func TestFileTableRepository_ReadTable_DelimitedIsNotWorkbook(t *testing.T) {
	got, err := NewFileTableRepository("").ReadTable("banco.csv", strings.NewReader("Fecha;Abono\n07/01/2023;300,00\n"))

	require.NoError(t, err)
	assert.False(t, got.Workbook)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1;2,5;3\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n1,2,3\n")))
	assert.Equal(t, '|', sniffDelimiter([]byte("a|b\n1|2\n")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb\n1\t2\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single column\n")))
}

// Helper functions

func createTempFile(t *testing.T, filename string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}
