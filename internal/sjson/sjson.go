// Package sjson renders the small JSON documents served by the visualizer.
//
// Values are built from a closed set of variants (String, Int, Float, List,
// Tuple, Object) and written by one recursive serializer. Objects keep their
// fields in insertion order, so the output of a build is reproducible.
package sjson

import (
	"strconv"
	"strings"

	"github.com/aaroncutress/gtfs-itineraries/internal/jkey"
)

// Value is one node of a document.
type Value interface {
	write(b *strings.Builder)
}

type (
	// String is a double-quoted string.
	String string
	// Int is an integer number.
	Int int64
	// Float is a floating point number in plain decimal notation.
	Float float64
	// List is a homogeneous ordered sequence.
	List []Value
	// Tuple is a fixed-size sequence whose elements may differ in kind.
	Tuple []Value
)

// Field is a key/value pair of an Object.
type Field struct {
	Key   string
	Value Value
}

// Object is an ordered map of fields.
type Object struct {
	fields []Field
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (s String) write(b *strings.Builder) {
	b.WriteByte('"')
	escaper.WriteString(b, string(s))
	b.WriteByte('"')
}

func (n Int) write(b *strings.Builder) {
	b.WriteString(strconv.FormatInt(int64(n), 10))
}

func (f Float) write(b *strings.Builder) {
	b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 64))
}

func (l List) write(b *strings.Builder) { writeSeq(b, l) }

func (t Tuple) write(b *strings.Builder) { writeSeq(b, t) }

func writeSeq(b *strings.Builder, vs []Value) {
	b.WriteByte('[')
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		v.write(b)
	}
	b.WriteByte(']')
}

func (o *Object) write(b *strings.Builder) {
	if len(o.fields) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{\n")
	for i, f := range o.fields {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("    ")
		String(f.Key).write(b)
		b.WriteString(": ")
		f.Value.write(b)
	}
	b.WriteString("\n}")
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{}
}

// Add appends a field.
func (o *Object) Add(key string, v Value) *Object {
	o.fields = append(o.fields, Field{Key: key, Value: v})
	return o
}

// AddKey appends a field holding the jkey of id.
func (o *Object) AddKey(key, id string) *Object {
	return o.Add(key, String(jkey.Of(id)))
}

// Extend appends one string field per column, in column order.
func (o *Object) Extend(columns, values []string) *Object {
	for i, col := range columns {
		o.Add(col, String(values[i]))
	}
	return o
}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.fields) }

// Fields returns the fields in insertion order.
func (o *Object) Fields() []Field { return o.fields }

// Strings builds a List of String values.
func Strings(ss []string) List {
	l := make(List, len(ss))
	for i, s := range ss {
		l[i] = String(s)
	}
	return l
}

// Ints builds a List of Int values.
func Ints(ns []int) List {
	l := make(List, len(ns))
	for i, n := range ns {
		l[i] = Int(n)
	}
	return l
}

// IntStrings builds a List of String values holding decimal integers.
func IntStrings(ns []int) List {
	l := make(List, len(ns))
	for i, n := range ns {
		l[i] = String(strconv.Itoa(n))
	}
	return l
}

// Marshal renders v.
func Marshal(v Value) string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}
