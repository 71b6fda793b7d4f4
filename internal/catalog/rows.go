package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is one data row keyed by lowercased header name. Every value is a
// string; columns the row does not reach are simply absent.
type Record map[string]string

// Get returns the trimmed value for key, or "" when the column is missing.
func (r Record) Get(key string) string {
	return strings.TrimSpace(r[key])
}

var errNoHeader = errors.New("csv: missing header row")

// ReadRows parses one source table. The grammar is plain RFC 4180: comma
// separated, quotes escaped by doubling, CRLF or LF line ends, a mandatory
// header row. Blank lines are ignored wherever they appear.
func ReadRows(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	var out []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if blankRow(row) {
			continue
		}

		rec := make(Record, len(header))
		for idx, name := range header {
			if name == "" || idx >= len(row) {
				continue
			}
			if _, seen := rec[name]; seen {
				continue
			}
			rec[name] = row[idx]
		}
		out = append(out, rec)
	}
	return out, nil
}

func readHeader(cr *csv.Reader) ([]string, error) {
	row, err := cr.Read()
	if err == io.EOF {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if blankRow(row) {
		return nil, errNoHeader
	}

	header := make([]string, len(row))
	for idx, name := range row {
		if idx == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[idx] = strings.ToLower(strings.TrimSpace(name))
	}
	return header, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
