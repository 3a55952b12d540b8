package artifact

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"profilescraper/internal/core/model"
)

// InlineDelimiter separates fields of inline-stream records.
const InlineDelimiter = "\t"

// decodeInline splits worker stdout into records. Lines without a delimiter
// are progress chatter, not records.
func decodeInline(stdout []byte) []model.FlatRow {
	l := positional()
	var rows []model.FlatRow
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || !strings.Contains(line, InlineDelimiter) {
			continue
		}
		rows = append(rows, l.row(strings.Split(line, InlineDelimiter)))
	}
	return rows
}

func decodeDelimited(data []byte) ([]model.FlatRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	l, err := headerLayout(header)
	if err != nil {
		return nil, err
	}

	var rows []model.FlatRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %w", err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, l.row(record))
	}
	return rows, nil
}

func decodeSpreadsheet(data []byte) ([]model.FlatRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty sheet")
	}

	l, err := headerLayout(records[0])
	if err != nil {
		return nil, err
	}
	var rows []model.FlatRow
	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		rows = append(rows, l.row(record))
	}
	return rows, nil
}
