package rowsource

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrParse indicates the catalog file could not be turned into rows
var ErrParse = errors.New("failed to parse catalog file")

// RawRow is one line item as it appears in the uploaded file. Keys are the
// file's own column names; values are strings for csv/xlsx and whatever the
// document contains for json.
type RawRow map[string]interface{}

// Rows parses the catalog file content into line items based on the file
// name's extension. Supported formats: csv, json, xlsx, xls.
func Rows(fileName string, data []byte) ([]RawRow, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		return parseJSON(data)
	case ".xlsx", ".xls":
		return parseXLSX(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file format: %s", ErrParse, fileName)
	}
}

func parseCSV(data []byte) ([]RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", ErrParse, err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []RawRow
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: error reading line %d: %v", ErrParse, lineNum+1, err)
		}

		row := make(RawRow)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

func parseJSON(data []byte) ([]RawRow, error) {
	// Either a top-level array of items or an object with an "items" key
	var asList []RawRow
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}

	var asObject struct {
		Items []RawRow `json:"items"`
	}
	if err := json.Unmarshal(data, &asObject); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON content: %v", ErrParse, err)
	}
	if asObject.Items == nil {
		return nil, fmt.Errorf("%w: invalid JSON format: expected array or object with 'items' key", ErrParse)
	}
	return asObject.Items, nil
}

func parseXLSX(data []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found in Excel file", ErrParse)
	}

	excelRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet: %v", ErrParse, err)
	}

	if len(excelRows) < 2 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", ErrParse)
	}

	headers := excelRows[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []RawRow
	for _, excelRow := range excelRows[1:] {
		row := make(RawRow)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
