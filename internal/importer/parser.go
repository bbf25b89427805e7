package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	appErr "github.com/contatus/contatus/internal/pkg/errors"
)

const (
	MimeCSV           = "text/csv"
	MimeExcelLegacy   = "application/vnd.ms-excel"
	MimeExcelWorkbook = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Row is one raw spreadsheet line keyed by column name, after column
// mapping. Ephemeral; it only lives between parsing and validation.
type Row map[string]string

type Parser struct{}

// Parse turns an uploaded file into ordered rows. The first line (CSV) or
// the first sheet's first row (workbook) is the header. Legacy Excel files
// are CSV exports in practice and go through the CSV path.
func (p Parser) Parse(data []byte, contentType string, mapping map[string]string) ([]Row, error) {
	switch contentType {
	case MimeCSV, MimeExcelLegacy:
		return p.parseCSV(data, mapping)
	case MimeExcelWorkbook:
		return p.parseExcel(data, mapping)
	default:
		return nil, appErr.ErrUnsupportedFormat
	}
}

// ExtractColumns returns just the header row, for the column-mapping UI.
func (p Parser) ExtractColumns(data []byte, contentType string) ([]string, error) {
	switch contentType {
	case MimeCSV, MimeExcelLegacy:
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		header, err := reader.Read()
		if err == io.EOF {
			return []string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		return header, nil
	case MimeExcelWorkbook:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer file.Close()
		rows, err := p.sheetRows(file)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return []string{}, nil
		}
		return rows[0], nil
	default:
		return nil, appErr.ErrUnsupportedFormat
	}
}

func (p Parser) parseCSV(data []byte, mapping map[string]string) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	rows := make([]Row, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, applyColumnMapping(recordToRow(header, record), mapping))
	}
	return rows, nil
}

func (p Parser) parseExcel(data []byte, mapping map[string]string) ([]Row, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	cells, err := p.sheetRows(file)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return []Row{}, nil
	}
	header := cells[0]
	rows := make([]Row, 0, len(cells)-1)
	for _, record := range cells[1:] {
		rows = append(rows, applyColumnMapping(recordToRow(header, record), mapping))
	}
	return rows, nil
}

func (p Parser) sheetRows(file *excelize.File) ([][]string, error) {
	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func recordToRow(header, record []string) Row {
	row := make(Row, len(header))
	for i, column := range header {
		if column == "" {
			continue
		}
		if i < len(record) {
			row[column] = record[i]
		}
	}
	return row
}

// applyColumnMapping renames columns per the caller-supplied mapping. A
// non-empty mapping is an allow-list: unmapped columns are dropped, not
// carried through. An empty mapping returns the row unchanged.
func applyColumnMapping(row Row, mapping map[string]string) Row {
	if len(mapping) == 0 {
		return row
	}
	mapped := make(Row, len(mapping))
	for fileColumn, field := range mapping {
		if value, ok := row[fileColumn]; ok {
			mapped[field] = value
		}
	}
	return mapped
}
