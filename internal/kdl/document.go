// Package kdl parses KDL-style configuration documents into a navigable
// node tree.
//
// A document is a sequence of nodes. Each node has a name (a bare
// identifier or a quoted string), an ordered list of entries that are
// either positional values or key="value" properties, and an optional
// nested block of child nodes:
//
//	services {
//	    Example {
//	        listeners {
//	            "127.0.0.1:8080" cert-path="./c.pem" key-path="./k.pem"
//	        }
//	    }
//	}
//
// Scalar values are strings, integers, floats, booleans (#true/#false)
// and #null. Every document, node and entry carries a byte-offset span
// into the original source so later passes can point diagnostics at the
// exact offending text.
package kdl

import "strconv"

// Span is a half-open byte range into the document source.
type Span struct {
	Offset int
	Len    int
}

// Document is the root container of a parsed file, or the child block of
// a node. Nested documents share the source text of their root.
type Document struct {
	Nodes []*Node
	Span  Span

	src string
}

// Source returns the full source text the document was parsed from.
func (d *Document) Source() string { return d.src }

// Node is one named directive: `name arg key="value" { children }`.
type Node struct {
	Name     string
	NameSpan Span
	Entries  []Entry
	// Children is nil when the node has no block. An empty block
	// (`name { }`) yields a non-nil document with zero nodes.
	Children *Document
	Span     Span
}

// Entry is one scalar argument of a node. Name is empty for positional
// entries.
type Entry struct {
	Name  string
	Value Value
	Span  Span
}

// ValueKind enumerates the scalar kinds a KDL value can take.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInteger
	KindFloat
	KindBool
	KindNull
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Boolean"
	case KindNull:
		return "Null"
	}
	return "Unknown"
}

// Value is one scalar. Exactly the field matching Kind is meaningful.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// AsString returns the string payload when the value is a string.
func (v Value) AsString() (string, bool) {
	if v.Kind == KindString {
		return v.Str, true
	}
	return "", false
}

// AsInt returns the integer payload when the value is an integer.
func (v Value) AsInt() (int64, bool) {
	if v.Kind == KindInteger {
		return v.Int, true
	}
	return 0, false
}

// AsBool returns the boolean payload when the value is a boolean.
func (v Value) AsBool() (bool, bool) {
	if v.Kind == KindBool {
		return v.Bool, true
	}
	return false, false
}

// Describe renders the value with its kind for diagnostics, e.g.
// `String("debug")`, `Integer(42)`, `Null`.
func (v Value) Describe() string {
	switch v.Kind {
	case KindString:
		return "String(" + strconv.Quote(v.Str) + ")"
	case KindInteger:
		return "Integer(" + strconv.FormatInt(v.Int, 10) + ")"
	case KindFloat:
		return "Float(" + strconv.FormatFloat(v.Float, 'g', -1, 64) + ")"
	case KindBool:
		if v.Bool {
			return "Boolean(true)"
		}
		return "Boolean(false)"
	case KindNull:
		return "Null"
	}
	return "Unknown"
}
