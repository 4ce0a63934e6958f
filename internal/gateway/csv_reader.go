package gateway

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"caat-reconciliation/internal/domain"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// FileTableRepository implements the TableRepository interface for CSV, TXT,
// XLSX and XLS files.
type FileTableRepository struct {
	// Sheet selects the worksheet of workbook files. Empty means the first one.
	Sheet string
}

// NewFileTableRepository creates a new repository instance.
func NewFileTableRepository(sheet string) *FileTableRepository {
	return &FileTableRepository{Sheet: sheet}
}

// GetTable opens a file and reads it as a table named after the file.
func (r *FileTableRepository) GetTable(ctx context.Context, path string) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	return r.ReadTable(filepath.Base(path), file)
}

// ReadTable reads a table from an open stream. The format is picked from the
// extension of name.
func (r *FileTableRepository) ReadTable(name string, src io.Reader) (*domain.Table, error) {
	var (
		rows     [][]string
		workbook bool
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		rows, err = readDelimited(src)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(src, r.Sheet)
		workbook = true
	case ".xls":
		rows, err = readXLS(src, r.Sheet)
		workbook = true
	default:
		return nil, fmt.Errorf("unsupported file extension %q for %s", ext, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	table, err := newTable(name, rows)
	if err != nil {
		return nil, err
	}
	table.Workbook = workbook
	return table, nil
}

// newTable takes the first non-blank row as the header row.
func newTable(name string, rows [][]string) (*domain.Table, error) {
	start := 0
	for start < len(rows) && blankRow(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("failed to read header from %s: file is empty", name)
	}

	headers := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		headers[i] = strings.TrimSpace(h)
	}
	return &domain.Table{
		Name:    name,
		Headers: headers,
		Rows:    rows[start+1:],
	}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidateDelimiters in order of preference when counts tie.
var candidateDelimiters = []rune{';', ',', '\t', '|'}

// readDelimited reads CSV or TXT content, sniffing the delimiter and falling
// back to latin-1 when the bytes are not valid UTF-8.
func readDelimited(src io.Reader) ([][]string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var text io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		text = transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
	}

	reader := csv.NewReader(text)
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// sniffDelimiter picks the candidate that appears most often, and most
// consistently, across the first lines of the sample.
func sniffDelimiter(data []byte) rune {
	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	var lines []string
	for _, l := range strings.Split(string(sample), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
		if len(lines) == 10 {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}

	best, bestScore := ',', 0
	for _, d := range candidateDelimiters {
		first := strings.Count(lines[0], string(d))
		if first == 0 {
			continue
		}
		score := 0
		for _, l := range lines {
			if strings.Count(l, string(d)) == first {
				score += first
			}
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
