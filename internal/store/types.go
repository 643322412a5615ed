package store

import "encoding/json"

// Document is a single record read from the store.
type Document struct {
	Path  string
	ID    string
	Value json.RawMessage
}

// Decode unmarshals the document value into dst.
func (d Document) Decode(dst any) error {
	return json.Unmarshal(d.Value, dst)
}

// Patch is a set of top-level fields merged into a document.
type Patch map[string]any

// Filter matches documents whose JSON field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects the direct children of Collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}
