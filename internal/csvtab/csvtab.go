// Package csvtab reads GTFS tables: one delimited text file per entity kind,
// addressed by the columns the caller asks for rather than by position.
package csvtab

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Clean trims leading and trailing spaces and tabs. Interior whitespace and
// any other character (including newlines) are left alone.
func Clean(s string) string {
	return strings.Trim(s, " \t")
}

// Reader streams the rows of one table, projected onto a requested column
// schema. Columns missing from the file are synthesized as empty values.
type Reader struct {
	name      string
	file      *os.File
	csv       *csv.Reader
	columns   []string
	positions []int // column -> record position, -1 when synthesized
	missing   []string
	row       []string
}

// Path returns the location of a table inside a feed directory.
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}

// Exists reports whether a feed directory carries the given table.
func Exists(dir, name string) bool {
	info, err := os.Stat(Path(dir, name))
	return err == nil && !info.IsDir()
}

// Open opens dir/name and reads its header. The returned reader yields rows
// with one value per entry of columns, in that order.
func Open(dir, name string, columns []string) (*Reader, error) {
	f, err := os.Open(Path(dir, name))
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		log.Debugf("%s has a byte order mark, ignored", name)
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading header: %w", name, err)
	}

	found := make(map[string]int, len(header))
	for i, h := range header {
		h = Clean(h)
		if _, dup := found[h]; !dup {
			found[h] = i
		}
	}

	r := &Reader{
		name:      name,
		file:      f,
		csv:       cr,
		columns:   columns,
		positions: make([]int, len(columns)),
		row:       make([]string, len(columns)),
	}
	for i, col := range columns {
		pos, ok := found[col]
		if !ok {
			log.Warnf("%s: adding empty field %s", name, col)
			r.missing = append(r.missing, col)
			pos = -1
		}
		r.positions[i] = pos
	}

	return r, nil
}

// Missing returns the requested columns the file did not carry.
func (r *Reader) Missing() []string { return r.missing }

// Has reports whether a column was present in the file header.
func (r *Reader) Has(column string) bool {
	for i, col := range r.columns {
		if col == column {
			return r.positions[i] >= 0
		}
	}
	return false
}

// Next returns the next row, or io.EOF once the table is exhausted. The
// returned slice is reused by the following call.
func (r *Reader) Next() ([]string, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}

	for i, pos := range r.positions {
		if pos < 0 || pos >= len(record) {
			r.row[i] = ""
			continue
		}
		r.row[i] = Clean(record[pos])
	}
	return r.row, nil
}

// Line returns the input line of the most recently read row.
func (r *Reader) Line() int {
	line, _ := r.csv.FieldPos(0)
	return line
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
