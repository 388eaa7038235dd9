package files

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetPreview summarizes one worksheet of a file selected for upload.
type SheetPreview struct {
	Name        string   `json:"name"`
	Headers     []string `json:"headers"`
	RowCount    int      `json:"rowCount"`
	ColumnCount int      `json:"columnCount"`
}

// PreviewResult is the local inspection of a selected file. Supported is
// false for formats that cannot be read locally (legacy .xls).
type PreviewResult struct {
	Supported bool           `json:"supported"`
	Sheets    []SheetPreview `json:"sheets"`
}

// Preview reads the header row and row counts of a selected file without
// sending it anywhere. RowCount excludes the header row.
func Preview(name string, r io.Reader) (PreviewResult, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return previewWorkbook(r)
	case ".csv":
		return previewCSV(name, r)
	default:
		return PreviewResult{Sheets: []SheetPreview{}}, nil
	}
}

func previewWorkbook(r io.Reader) (PreviewResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	out := PreviewResult{Supported: true, Sheets: []SheetPreview{}}
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return PreviewResult{}, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		out.Sheets = append(out.Sheets, summarize(sheetName, rows))
	}
	return out, nil
}

func previewCSV(name string, r io.Reader) (PreviewResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PreviewResult{}, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, record)
	}
	sheetName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return PreviewResult{Supported: true, Sheets: []SheetPreview{summarize(sheetName, rows)}}, nil
}

func summarize(name string, rows [][]string) SheetPreview {
	sheet := SheetPreview{Name: name, Headers: []string{}}
	if len(rows) == 0 {
		return sheet
	}
	for _, h := range rows[0] {
		sheet.Headers = append(sheet.Headers, strings.TrimSpace(h))
	}
	sheet.RowCount = len(rows) - 1
	for _, row := range rows {
		if len(row) > sheet.ColumnCount {
			sheet.ColumnCount = len(row)
		}
	}
	return sheet
}
