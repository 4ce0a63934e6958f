package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

func readXLSX(src io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	}
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// readXLS reads a legacy BIFF workbook. Files saved as .xls that are really
// OOXML are handed to the xlsx reader.
func readXLS(src io.Reader, sheet string) ([][]string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		if rows, errX := readXLSX(bytes.NewReader(data), sheet); errX == nil {
			return rows, nil
		}
		return nil, err
	}

	sheets := workbook.GetSheets()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	idx := 0
	if sheet != "" {
		idx = -1
		for i, s := range sheets {
			if s.GetName() == sheet {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("sheet %q not found", sheet)
		}
	}

	ws, err := workbook.GetSheet(idx)
	if err != nil {
		return nil, fmt.Errorf("could not open sheet %d: %w", idx, err)
	}
	var rows [][]string
	for _, row := range ws.GetRows() {
		var cells []string
		for _, cell := range row.GetCols() {
			cells = append(cells, cell.GetString())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
