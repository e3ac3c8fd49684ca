package internal

import (
	"github.com/kelindar/column"
)

// Index is a read-mostly string-keyed collection of serialized payloads,
// backing the served lookups that are addressed by an identifier rather
// than by ordinal.
type Index struct {
	entries *column.Collection
}

// Creates an empty index
func NewIndex() *Index {
	entries := column.NewCollection()
	entries.CreateColumn("key", column.ForKey())
	entries.CreateColumn("payload", column.ForString())
	return &Index{entries: entries}
}

// Inserts every key/payload pair in one transaction. Empty keys are skipped.
func (i *Index) Populate(payloads map[string]string) error {
	return i.entries.Query(func(txn *column.Txn) error {
		for key, payload := range payloads {
			if key == "" {
				continue
			}
			err := txn.InsertKey(key, func(row column.Row) error {
				row.SetString("payload", payload)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Returns the payload stored under key
func (i *Index) Get(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	var payload string
	var found bool
	err := i.entries.QueryKey(key, func(row column.Row) error {
		payload, found = row.String("payload")
		return nil
	})
	if err != nil {
		return "", false
	}
	return payload, found
}

// Returns the number of entries
func (i *Index) Len() int {
	return i.entries.Count()
}

// Releases the collection
func (i *Index) Close() error {
	return i.entries.Close()
}
