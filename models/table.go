package models

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
	"github.com/charmbracelet/log"
)

var ErrMissingPrimaryKey = errors.New("primary key column missing")

// Describes one GTFS entity kind to the generic table loader
type Schema interface {
	// File name inside the feed directory, e.g. "stops.txt"
	Name() string
	// Column whose value identifies a row
	PrimaryKey() string
	// Columns retained for every row, primary key included
	Columns() []string
}

// The column layout shared by every row of one table
type header struct {
	columns []string
	index   map[string]int
}

// Represents one record of a table. Rows are immutable once loaded.
type Row struct {
	ID     int
	header *header
	values []string
}

// Returns the value of a column, or "" for a column outside the schema
func (r *Row) Get(column string) string {
	i, ok := r.header.index[column]
	if !ok {
		return ""
	}
	return r.values[i]
}

// Returns the schema columns in order
func (r *Row) Columns() []string {
	return r.header.columns
}

// Returns the values aligned with Columns
func (r *Row) Values() []string {
	return r.values
}

// An immutable, primary-key-indexed collection of rows. The arena keeps every
// row read from the file, so a row's ID is both its ordinal and its handle.
type Table struct {
	schema Schema
	header *header
	rows   []Row
	byKey  map[string]int
}

// Returns the schema the table was loaded with
func (t *Table) Schema() Schema { return t.schema }

// Returns the ordinal range of the table
func (t *Table) Len() int { return len(t.rows) }

// Returns the number of rows reachable by primary key
func (t *Table) KeyCount() int { return len(t.byKey) }

// Returns the row with the given ordinal
func (t *Table) At(id int) *Row {
	return &t.rows[id]
}

// Returns the row with the given primary key
func (t *Table) Find(key string) (*Row, bool) {
	id, ok := t.byKey[key]
	if !ok {
		return nil, false
	}
	return &t.rows[id], true
}

// Calls fn for every row reachable by primary key, in ordinal order
func (t *Table) Each(fn func(key string, row *Row)) {
	pk := t.schema.PrimaryKey()
	for i := range t.rows {
		row := &t.rows[i]
		key := row.Get(pk)
		if id, ok := t.byKey[key]; ok && id == i {
			fn(key, row)
		}
	}
}

// Builds a table in memory, mainly for tests and synthetic feeds
func NewTable(schema Schema, records [][]string) *Table {
	t := newTable(schema)
	for _, record := range records {
		t.append(slices.Clone(record))
	}
	return t
}

func newTable(schema Schema) *Table {
	columns := schema.Columns()
	h := &header{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		h.index[col] = i
	}
	return &Table{
		schema: schema,
		header: h,
		byKey:  make(map[string]int),
	}
}

func (t *Table) append(values []string) {
	id := len(t.rows)
	t.rows = append(t.rows, Row{ID: id, header: t.header, values: values})

	key := values[t.header.index[t.schema.PrimaryKey()]]
	if first, dup := t.byKey[key]; dup {
		log.Debugf("%s: duplicate %s %q (row %d), keeping row %d", t.schema.Name(), t.schema.PrimaryKey(), key, id, first)
		return
	}
	t.byKey[key] = id
}

// Load a table from a feed directory
func LoadTable(dir string, schema Schema) (*Table, error) {
	reader, err := csvtab.Open(dir, schema.Name(), schema.Columns())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if !reader.Has(schema.PrimaryKey()) {
		return nil, fmt.Errorf("%s: %w: %s", schema.Name(), ErrMissingPrimaryKey, schema.PrimaryKey())
	}

	t := newTable(schema)
	for {
		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.append(slices.Clone(row))
	}

	log.Infof("Loaded %d rows from %s", t.Len(), schema.Name())
	return t, nil
}
