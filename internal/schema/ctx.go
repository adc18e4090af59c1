package schema

import (
	"fmt"

	"github.com/kedgeproxy/kedge/internal/kdl"
)

// Context is the parser's current position: the root of a document (or
// of a node's child block), or one specific node with its entry list.
//
// A Context borrows the underlying document and is cheap to copy; no
// operation mutates it. Operations that need a node (Name, Args, the
// property accessors) fail with a structural diagnostic when the focus
// is a document.
type Context struct {
	root   *kdl.Document
	source string

	// Exactly one of cur/node is set: document focus or node focus.
	cur  *kdl.Document
	node *kdl.Node
}

// NewContext creates a document-focused context at the root of doc.
// source is used only for diagnostic labeling.
func NewContext(doc *kdl.Document, source string) *Context {
	return &Context{root: doc, source: source, cur: doc}
}

// ForNode derives a context focused on a specific node, keeping the
// parent's document and source.
func (c *Context) ForNode(n *kdl.Node) *Context {
	return &Context{root: c.root, source: c.source, node: n}
}

// EnterBlock converts a node-focused context into a document-focused
// context over the node's children.
func (c *Context) EnterBlock() (*Context, error) {
	if c.node == nil {
		return nil, c.Errorf(KindStructural, "Cannot enter block: current context is already a document root")
	}
	if c.node.Children == nil {
		return nil, c.Errorf(KindStructural, "Expected a children block { ... }, but none found")
	}
	return &Context{root: c.root, source: c.source, cur: c.node.Children}, nil
}

// Span returns the source span of the current element.
func (c *Context) Span() kdl.Span {
	if c.node != nil {
		return c.node.Span
	}
	return c.cur.Span
}

// NameSpan returns the span of the current node's name.
func (c *Context) NameSpan() kdl.Span {
	if c.node != nil {
		return c.node.NameSpan
	}
	return c.cur.Span
}

// Name returns the current node's name (e.g. "filter" in
// `filter name="x"`).
func (c *Context) Name() (string, error) {
	if c.node == nil {
		return "", c.Errorf(KindStructural, "Expected node, but current is a document")
	}
	return c.node.Name, nil
}

// ExpectName fails unless the current node carries the given name.
func (c *Context) ExpectName(expected string) error {
	if c.node == nil {
		return c.Errorf(KindStructural, "Expected node '%s', but current is a document", expected)
	}
	if c.node.Name != expected {
		return c.Errorf(KindStructural, "Expected '%s', found '%s'", expected, c.node.Name)
	}
	return nil
}

// HasChildren reports whether the current node has an attached block.
func (c *Context) HasChildren() (bool, error) {
	if c.node == nil {
		return false, c.Errorf(KindStructural, "Expected node, but current is a document")
	}
	return c.node.Children != nil, nil
}

// Nodes returns one child context per immediate child node, in source
// order. On a node focus the node must have a children block.
func (c *Context) Nodes() ([]*Context, error) {
	doc := c.cur
	if c.node != nil {
		if c.node.Children == nil {
			return nil, c.Errorf(KindStructural, "Expected children block")
		}
		doc = c.node.Children
	}

	out := make([]*Context, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		out = append(out, c.ForNode(n))
	}
	return out, nil
}

// ReqNodes is Nodes, but an empty block is a structural error.
func (c *Context) ReqNodes() ([]*Context, error) {
	nodes, err := c.Nodes()
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		name, err := c.Name()
		if err != nil {
			return nil, err
		}
		return nil, c.Errorf(KindStructural, "Block '%s' cannot be empty", name)
	}
	return nodes, nil
}

// Args returns the raw entry list of the current node.
func (c *Context) Args() ([]kdl.Entry, error) {
	if c.node == nil {
		return nil, c.Errorf(KindStructural, "Expected node, but current is a document")
	}
	return c.node.Entries, nil
}

// ArgsMapFrom extracts named string entries starting at entry index
// start into a key→value map. Positional entries are skipped; for a
// duplicated key the first occurrence wins. A start beyond the entry
// list is a structural error.
func (c *Context) ArgsMapFrom(start int) (map[string]string, error) {
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	if start < 0 || start > len(args) {
		return nil, c.Errorf(KindStructural, "Range out of bounds")
	}

	out := make(map[string]string)
	for _, arg := range args[start:] {
		if arg.Name == "" {
			continue
		}
		s, ok := arg.Value.AsString()
		if !ok {
			continue
		}
		if _, dup := out[arg.Name]; dup {
			continue
		}
		out[arg.Name] = s
	}
	return out, nil
}

// ArgsMapWithOnlyKeys is ArgsMapFrom plus an allow-list check over the
// extracted keys.
func (c *Context) ArgsMapWithOnlyKeys(start int, allowed []string) (map[string]string, error) {
	m, err := c.ArgsMapFrom(start)
	if err != nil {
		return nil, err
	}
	args, _ := c.Args() // focus already checked by ArgsMapFrom
	for _, e := range args[start:] {
		if e.Name == "" {
			continue
		}
		if _, ok := e.Value.AsString(); !ok {
			continue
		}
		if !contains(allowed, e.Name) {
			return nil, c.ErrorAt(KindUnknownKey, e.Span,
				"Unknown configuration key: '%s'. Allowed keys are: %q", e.Name, allowed)
		}
	}
	return m, nil
}

// Errorf builds a diagnostic anchored to the current node or document.
func (c *Context) Errorf(kind Kind, format string, args ...any) *Diag {
	return NewDiag(kind, fmt.Sprintf(format, args...), c.root, c.Span(), c.source)
}

// ErrorAt builds a diagnostic anchored to an explicit finer-grained
// span, e.g. one offending value instead of the whole node.
func (c *Context) ErrorAt(kind Kind, span kdl.Span, format string, args ...any) *Diag {
	return NewDiag(kind, fmt.Sprintf(format, args...), c.root, span, c.source)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
