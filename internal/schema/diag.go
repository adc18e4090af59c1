// Package schema is the semantic layer between parsed KDL documents and
// typed configuration values.
//
// A Context is a read-only cursor over a document: either the document
// root or one node with its entries. Contexts are cheap to copy and
// never own tree data, so section parsers can hand sub-contexts around
// freely. All failures are reported as *Diag values anchored to the
// exact source span of the offending element; the first failure in a
// subtree aborts that subtree's parse.
package schema

import (
	"fmt"
	"strings"

	"github.com/kedgeproxy/kedge/internal/kdl"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// KindStructural: wrong focus (document vs node), missing or empty
	// children block.
	KindStructural Kind = iota
	// KindMissingRequired: required directive, property or positional
	// argument absent.
	KindMissingRequired
	// KindUnknownDirective: block child whose name matches no schema
	// entry, reported at Exhaust.
	KindUnknownDirective
	// KindUnknownKey: property key outside an explicit allow-list.
	KindUnknownKey
	// KindTypeMismatch: scalar kind differs from the expected kind.
	KindTypeMismatch
	// KindFormat: textual form fails a target-type parse.
	KindFormat
	// KindMutualExclusion: cross-field dependency violated.
	KindMutualExclusion
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindMissingRequired:
		return "missing-required"
	case KindUnknownDirective:
		return "unknown-directive"
	case KindUnknownKey:
		return "unknown-key"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindFormat:
		return "format"
	case KindMutualExclusion:
		return "mutual-exclusion"
	}
	return "unknown"
}

// Diag is a single labeled diagnostic pointing into the source text.
type Diag struct {
	Kind    Kind
	Message string
	Source  string
	Span    kdl.Span

	src string
}

// NewDiag builds a diagnostic for a span of doc. It is usually reached
// through Context.Errorf / Context.ErrorAt.
func NewDiag(kind Kind, msg string, doc *kdl.Document, span kdl.Span, source string) *Diag {
	return &Diag{
		Kind:    kind,
		Message: msg,
		Source:  source,
		Span:    span,
		src:     doc.Source(),
	}
}

func (d *Diag) Error() string {
	line, col := d.lineCol()
	return fmt.Sprintf("%s:%d:%d: %s", d.Source, line, col, d.Message)
}

// Help renders the message together with the offending source line and
// a caret marker under the span.
func (d *Diag) Help() string {
	line, col := d.lineCol()

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Message)
	fmt.Fprintf(&b, "  --> %s:%d:%d\n", d.Source, line, col)

	text := d.lineText()
	if text == "" {
		return b.String()
	}
	fmt.Fprintf(&b, "%4s |\n", "")
	fmt.Fprintf(&b, "%4d | %s\n", line, text)

	width := d.Span.Len
	if rest := len(text) - (col - 1); width > rest {
		width = rest
	}
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(&b, "%4s | %s%s\n", "", strings.Repeat(" ", col-1), strings.Repeat("^", width))
	return b.String()
}

func (d *Diag) lineCol() (int, int) {
	off := d.Span.Offset
	if off > len(d.src) {
		off = len(d.src)
	}
	line := 1 + strings.Count(d.src[:off], "\n")
	col := off - strings.LastIndexByte(d.src[:off], '\n')
	return line, col
}

// lineText returns the source line containing the span start, without
// its trailing newline.
func (d *Diag) lineText() string {
	off := d.Span.Offset
	if off > len(d.src) {
		off = len(d.src)
	}
	start := strings.LastIndexByte(d.src[:off], '\n') + 1
	end := strings.IndexByte(d.src[off:], '\n')
	if end < 0 {
		return d.src[start:]
	}
	return d.src[start : off+end]
}
