package etl

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/datadeck/datadeck/pkg/jsonsafe"
)

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		jsonsafe.TimeLayout,
		"2006-01-02",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.000000",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
	}
)

// Extract parses uploaded bytes into normalized row mappings. It returns
// the row count before and after cleaning so callers can report both.
func Extract(payload []byte, fileName string) (records []map[string]any, originalRows, cleanedRows int, err error) {
	if len(payload) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: file is empty", ErrMalformedInput)
	}

	var rows [][]string
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		rows, err = parseCSV(payload)
	case ".xls", ".xlsx":
		rows, err = parseExcel(payload)
	default:
		return nil, 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, 0, 0, err
	}

	headers, dataRows, err := splitHeader(rows)
	if err != nil {
		return nil, 0, 0, err
	}

	originalRows = len(dataRows)
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}
	dataRows = filterEmptyRows(dataRows)
	cleanedRows = len(dataRows)

	if cleanedRows == 0 {
		return nil, originalRows, 0, ErrEmptyAfterCleaning
	}

	types := profileColumns(headers, dataRows)
	records = make([]map[string]any, cleanedRows)
	for i, row := range dataRows {
		record := make(map[string]any, len(headers))
		for col, header := range headers {
			record[header] = coerceCell(types[col], row[col])
		}
		records[i] = record
	}

	return records, originalRows, cleanedRows, nil
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv: %v", ErrMalformedInput, err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open spreadsheet: %v", ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: spreadsheet has no sheets", ErrMalformedInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows: %v", ErrMalformedInput, err)
	}
	return rows, nil
}

// splitHeader takes the first non-empty row as the header and returns
// every following row as data, including fully-empty ones so the caller
// can count them before cleaning.
func splitHeader(rows [][]string) ([]string, [][]string, error) {
	headerIndex := -1
	for idx, row := range rows {
		if !rowIsEmpty(row) {
			headerIndex = idx
			break
		}
	}
	if headerIndex == -1 {
		return nil, nil, fmt.Errorf("%w: no header row detected", ErrMalformedInput)
	}
	return sanitizeHeaders(rows[headerIndex]), rows[headerIndex+1:], nil
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func filterEmptyRows(rows [][]string) [][]string {
	var filtered [][]string
	for _, row := range rows {
		if !rowIsEmpty(row) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

type columnType int

const (
	columnString columnType = iota
	columnBool
	columnInt
	columnFloat
	columnTimestamp
)

// profileColumns detects a uniform type per column across all non-blank
// cells. Mixed columns stay string.
func profileColumns(headers []string, rows [][]string) []columnType {
	types := make([]columnType, len(headers))
	for col := range headers {
		types[col] = profileColumn(col, rows)
	}
	return types
}

func profileColumn(col int, rows [][]string) columnType {
	isBool := true
	isInt := true
	isFloat := true
	isTimestamp := true
	hasValue := false

	for _, row := range rows {
		value := strings.TrimSpace(row[col])
		if value == "" {
			continue
		}
		hasValue = true

		if !looksLikeBool(value) {
			isBool = false
		}
		if !looksLikeInt(value) {
			isInt = false
		}
		if !looksLikeFloat(value) {
			isFloat = false
		}
		if !looksLikeTimestamp(value) {
			isTimestamp = false
		}
	}

	switch {
	case !hasValue:
		return columnString
	case isBool:
		return columnBool
	case isInt:
		return columnInt
	case isFloat:
		return columnFloat
	case isTimestamp:
		return columnTimestamp
	default:
		return columnString
	}
}

// coerceCell converts a raw cell to its profiled type. Blank cells map
// to nil; a cell that unexpectedly resists coercion stays a string.
func coerceCell(ct columnType, raw string) any {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil
	}

	switch ct {
	case columnBool:
		switch strings.ToLower(value) {
		case "true", "yes", "y":
			return true
		case "false", "no", "n":
			return false
		}
		return value
	case columnInt:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil && math.Mod(f, 1) == 0 {
			return int64(f)
		}
		return value
	case columnFloat:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	case columnTimestamp:
		// Uniformly temporal columns are stored as canonical strings.
		if ts, err := parseTimestamp(value); err == nil {
			return ts.Format(jsonsafe.TimeLayout)
		}
		return value
	default:
		return value
	}
}

// looksLikeBool accepts only textual boolean forms. Numeric 1/0 columns
// are left to integer detection; treating them as booleans would destroy
// count-like data.
func looksLikeBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "false", "yes", "no", "y", "n":
		return true
	}
	return false
}

func looksLikeInt(value string) bool {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	// Allow float representations that convert losslessly to int.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return math.Mod(f, 1) == 0
	}
	return false
}

func looksLikeFloat(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

func looksLikeTimestamp(value string) bool {
	_, err := parseTimestamp(value)
	return err == nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp format")
}
