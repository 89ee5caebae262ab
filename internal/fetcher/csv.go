package fetcher

import (
	"strings"
)

// ParseCSV parses comma-separated text with a header row into one record per
// data row, keyed by the trimmed header names. Values are trimmed and rows
// shorter than the header are padded with "". Input with fewer than two rows
// yields an empty result.
func ParseCSV(text string) []map[string]string {
	return RowsToRecords(CSVRows(text))
}

// CSVRows scans text left to right and returns the raw rows. Double quotes
// delimit values that may contain commas, line breaks, or doubled quotes.
// LF, CRLF, and lone CR all end a row; blank lines produce no row and a
// final row without a terminator is kept.
func CSVRows(text string) [][]string {
	var (
		rows    [][]string
		row     []string
		val     strings.Builder
		inQuote bool
	)

	endRow := func() {
		if val.Len() > 0 || len(row) > 0 {
			row = append(row, val.String())
			rows = append(rows, row)
			row = nil
			val.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuote {
			switch {
			case c == '"' && i+1 < len(text) && text[i+1] == '"':
				val.WriteByte('"')
				i++
			case c == '"':
				inQuote = false
			default:
				val.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			inQuote = true
		case ',':
			row = append(row, val.String())
			val.Reset()
		case '\r', '\n':
			endRow()
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
		default:
			val.WriteByte(c)
		}
	}
	endRow()

	return rows
}

// RowsToRecords zips every row after the first against the first (header)
// row. Header names and values are trimmed; missing trailing fields become
// "". A later duplicate header overwrites an earlier one.
func RowsToRecords(rows [][]string) []map[string]string {
	if len(rows) < 2 {
		return []map[string]string{}
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(headers))
		for i, h := range headers {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			rec[h] = v
		}
		out = append(out, rec)
	}
	return out
}
