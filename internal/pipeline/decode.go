package pipeline

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go-report-pipeline/internal/model"
)

// HeaderNormalizer maps a raw header cell to the key used in decoded rows
type HeaderNormalizer func(string) string

var whitespaceRun = regexp.MustCompile(`\s+`)

// SnakeCase trims, lower-cases and collapses whitespace runs to "_".
func SnakeCase(h string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

// PassThrough keeps the header text as the report wrote it.
func PassThrough(h string) string { return h }

// ------------------- Tab → CSV -------------------

// TabToCSV rewrites tab-delimited text as CSV. Embedded quotes are doubled and
// a column is quoted when it holds a comma, quote, CR or LF. Lines split on LF
// only, so CRLF input keeps the CR inside the last cell of every line and a
// PassThrough header ends in "\r". DecodeTSV trims it instead.
func TabToCSV(data []byte) string {
	lines := strings.Split(string(data), "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		cols := strings.Split(line, "\t")
		for j, col := range cols {
			cleaned := strings.ReplaceAll(col, `"`, `""`)
			if strings.ContainsAny(cleaned, ",\"\n\r") {
				cleaned = `"` + cleaned + `"`
			}
			cols[j] = cleaned
		}
		out[i] = strings.Join(cols, ",")
	}
	return strings.Join(out, "\n")
}

// ------------------- Row decoding -------------------

// DecodeRows reads CSV text whose first record is the header. Records with a
// field count different from the header are dropped without error.
func DecodeRows(text string, normalize HeaderNormalizer) ([]model.Row, error) {
	if normalize == nil {
		normalize = PassThrough
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := normalizeHeader(header, normalize)

	var rows []model.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				rowsDropped.WithLabelValues("csv").Inc()
				continue
			}
			return rows, fmt.Errorf("CSV read error: %w", err)
		}
		if len(record) != len(columns) {
			rowsDropped.WithLabelValues("csv").Inc()
			continue
		}
		rows = append(rows, model.NewRow(columns, record))
		rowsDecoded.WithLabelValues("csv").Inc()
	}
}

// DecodeTSV splits tab-delimited bytes directly: lines on LF, fields on tab.
// Values are trimmed and rows with the wrong field count are dropped.
func DecodeTSV(data []byte, normalize HeaderNormalizer) []model.Row {
	if normalize == nil {
		normalize = PassThrough
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return nil
	}

	columns := normalizeHeader(strings.Split(strings.TrimSuffix(lines[0], "\r"), "\t"), normalize)

	rows := make([]model.Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Split(strings.TrimSuffix(line, "\r"), "\t")
		if len(fields) != len(columns) {
			if line != "" {
				rowsDropped.WithLabelValues("tsv").Inc()
			}
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, model.NewRow(columns, fields))
	}
	rowsDecoded.WithLabelValues("tsv").Add(float64(len(rows)))
	return rows
}

func normalizeHeader(header []string, normalize HeaderNormalizer) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalize(h)
	}
	return columns
}

// ------------------- Decompression -------------------

// Decompress returns the artifact payload ready for decoding.
func Decompress(raw []byte, compression model.Compression) ([]byte, error) {
	switch compression {
	case model.CompressionNone:
		return raw, nil
	case model.CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip artifact: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("failed to gunzip artifact: %w", err)
		}
		return out, nil
	default:
		return nil, &UnsupportedCompressionError{Value: compression.String()}
	}
}
