package logparse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readTable parses CSV text whose first record is the header. Short rows
// are padded with nulls. It fails on structural problems (bad quoting,
// rows wider than the header) so the caller can fall back to readPositional.
func readTable(text string) (header []string, rows []map[string]any, err error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err = r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d has %d fields, header has %d", line, len(rec), len(header))
		}
		rows = append(rows, rowFromFields(header, rec))
	}
	return header, rows, nil
}

// readPositional is the lenient reader: it splits every line on commas
// without quote handling and pairs fields with header columns by position.
// Extra fields are dropped and missing ones are null.
func readPositional(text string) (header []string, rows []map[string]any) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitFields(line)
		if header == nil {
			header = fields
			continue
		}
		rows = append(rows, rowFromFields(header, fields))
	}
	return header, rows
}

func splitFields(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

func rowFromFields(header, fields []string) map[string]any {
	row := make(map[string]any, len(header))
	for i, col := range header {
		if i < len(fields) {
			row[col] = fields[i]
		} else {
			row[col] = nil
		}
	}
	return row
}
