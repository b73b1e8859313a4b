package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tasklane/internal/common"
	"tasklane/internal/domain/model"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportColumns = []string{"title", "description", "due_date", "completed"}

// tabularRow holds one data row keyed by normalized column name. A key
// is absent when the file had no such column or the cell was blank.
type tabularRow map[string]string

// decodeTabular turns an uploaded file into rows of named columns.
// Unrecognized extensions are rejected up front; a file that fails to
// parse despite a recognized extension is an import failure, not a
// validation one.
func decodeTabular(filename string, data []byte) ([]tabularRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, err := readWorkbook(data)
		if err != nil {
			return nil, fmt.Errorf("server failed to process file: %v: %w", err, common.ErrImport)
		}
		return namedRows(records), nil
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1 // ragged rows are defaulted, not rejected
		records, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("server failed to process file: %v: %w", err, common.ErrImport)
		}
		return namedRows(records), nil
	default:
		return nil, fmt.Errorf("unsupported file type, please upload a spreadsheet: %w", common.ErrBadRequest)
	}
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

// namedRows zips the header row onto each data row. Header spelling is
// forgiving: "Due Date", "due-date" and "DUE_DATE" all land on due_date.
func namedRows(records [][]string) []tabularRow {
	if len(records) < 2 {
		return nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	rows := make([]tabularRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := tabularRow{}
		for i, cell := range record {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				row[headers[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(slug.Make(h), "-", "_")
}

// Per-column coercion policy: each entry maps a column onto a task field
// with a default applied on absence or parse failure. Coercion is never
// row-fatal; a row of garbage still imports as a defaulted task.
var importPolicy = []struct {
	column string
	apply  func(t *model.Task, raw string, present bool, now time.Time)
}{
	{"title", func(t *model.Task, raw string, present bool, _ time.Time) {
		if !present {
			raw = "Untitled Task"
		}
		t.Title = raw
	}},
	{"description", func(t *model.Task, raw string, _ bool, _ time.Time) {
		t.Description = raw
	}},
	{"due_date", func(t *model.Task, raw string, present bool, now time.Time) {
		// Imported due dates are exempt from the future-date rule that
		// interactive creation enforces; unparsable values fall back to
		// the import timestamp.
		t.DueDate = now
		if present {
			if ts, ok := parseTimestamp(raw); ok {
				t.DueDate = ts
			}
		}
	}},
	{"completed", func(t *model.Task, raw string, present bool, _ time.Time) {
		if present {
			if b, err := strconv.ParseBool(strings.ToLower(raw)); err == nil {
				t.Completed = b
			}
		}
	}},
}

func taskFromRow(row tabularRow, ownerID string, now time.Time) *model.Task {
	task := &model.Task{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	for _, p := range importPolicy {
		raw, present := row[p.column]
		p.apply(task, raw, present, now)
	}
	return task
}

// Layouts tried in order when coercing a due_date cell. Covers RFC 3339,
// common ISO-ish spellings, and the short date formats spreadsheet
// applications render by default.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01-02-06",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// encodeWorkbook materializes tasks into a single-sheet xlsx, one row
// per task in the given order.
func encodeWorkbook(tasks []model.Task) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{t.Title, t.Description, t.DueDate.Format(time.RFC3339), t.Completed}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
