package kdl

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse normalizes and parses raw file bytes into a Document.
func Parse(input []byte) (*Document, error) {
	src := string(normalizeInput(input))
	p := &parser{lex: newLexer(src), src: src}

	nodes, end, err := p.parseNodes(false)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Nodes: nodes,
		Span:  Span{Offset: 0, Len: end},
		src:   src,
	}
	propagateSource(doc, src)
	return doc, nil
}

// ParseString is a convenience wrapper for tests and tooling.
func ParseString(input string) (*Document, error) {
	return Parse([]byte(input))
}

// normalizeInput prepares raw file bytes for lexing:
// - strips UTF-8 BOM
// - normalizes CRLF/CR to LF
func normalizeInput(in []byte) []byte {
	if len(in) >= 3 && in[0] == 0xEF && in[1] == 0xBB && in[2] == 0xBF {
		in = in[3:]
	}

	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		b := in[i]
		if b == '\r' {
			if i+1 < len(in) && in[i+1] == '\n' {
				i++
			}
			out = append(out, '\n')
			continue
		}
		out = append(out, b)
	}
	return out
}

// propagateSource points every nested child document at the shared
// source text.
func propagateSource(doc *Document, src string) {
	doc.src = src
	for _, n := range doc.Nodes {
		if n.Children != nil {
			propagateSource(n.Children, src)
		}
	}
}

type parser struct {
	lex     *lexer
	src     string
	peeked  token
	hasPeek bool
}

func (p *parser) next() (token, error) {
	if p.hasPeek {
		p.hasPeek = false
		return p.peeked, nil
	}
	return p.lex.nextToken()
}

func (p *parser) peek() (token, error) {
	if !p.hasPeek {
		tok, err := p.lex.nextToken()
		if err != nil {
			return token{}, err
		}
		p.peeked = tok
		p.hasPeek = true
	}
	return p.peeked, nil
}

func (p *parser) errAt(pos position, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("kdl parse error at %s: %s", pos.String(), msg)
}

// parseNodes reads nodes until EOF, or until a closing brace when
// inBlock is set. It returns the nodes and the byte offset where the
// sequence ended.
func (p *parser) parseNodes(inBlock bool) ([]*Node, int, error) {
	var nodes []*Node
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, 0, err
		}
		switch tok.kind {
		case tokEOF:
			if inBlock {
				return nil, 0, p.errAt(tok.pos, "unexpected end of input, expected '}'")
			}
			return nodes, tok.end, nil
		case tokRBrace:
			if !inBlock {
				return nil, 0, p.errAt(tok.pos, "unexpected '}'")
			}
			return nodes, tok.pos.off, nil
		case tokNewline:
			_, _ = p.next()
			continue
		case tokIdent, tokString:
			node, err := p.parseNode()
			if err != nil {
				return nil, 0, err
			}
			nodes = append(nodes, node)
		default:
			return nil, 0, p.errAt(tok.pos, "expected node name, found %q", tok.text)
		}
	}
}

func (p *parser) parseNode() (*Node, error) {
	nameTok, err := p.next()
	if err != nil {
		return nil, err
	}

	node := &Node{
		Name:     nameTok.text,
		NameSpan: nameTok.span(),
	}
	end := nameTok.end

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokNewline, tokEOF:
			_, _ = p.next()
			node.Span = Span{Offset: nameTok.pos.off, Len: end - nameTok.pos.off}
			return node, nil
		case tokRBrace:
			// Leave the brace for the enclosing block.
			node.Span = Span{Offset: nameTok.pos.off, Len: end - nameTok.pos.off}
			return node, nil
		case tokLBrace:
			open, _ := p.next()
			children, childEnd, err := p.parseNodes(true)
			if err != nil {
				return nil, err
			}
			closeTok, err := p.next() // the '}'
			if err != nil {
				return nil, err
			}
			node.Children = &Document{
				Nodes: children,
				Span:  Span{Offset: open.end, Len: childEnd - open.end},
			}
			end = closeTok.end
			node.Span = Span{Offset: nameTok.pos.off, Len: end - nameTok.pos.off}
			return node, nil
		default:
			entry, entryEnd, err := p.parseEntry()
			if err != nil {
				return nil, err
			}
			node.Entries = append(node.Entries, entry)
			end = entryEnd
		}
	}
}

func (p *parser) parseEntry() (Entry, int, error) {
	tok, err := p.next()
	if err != nil {
		return Entry{}, 0, err
	}

	switch tok.kind {
	case tokIdent, tokString:
		if tok.kind == tokIdent {
			// Bare identifiers are only valid as property keys.
			eq, err := p.peek()
			if err != nil {
				return Entry{}, 0, err
			}
			if eq.kind != tokEquals {
				return Entry{}, 0, p.errAt(tok.pos, "bare identifier %q is not a value; quote it or use key=value", tok.text)
			}
		} else {
			eq, err := p.peek()
			if err != nil {
				return Entry{}, 0, err
			}
			if eq.kind != tokEquals {
				// Positional string.
				return Entry{
					Value: Value{Kind: KindString, Str: tok.text},
					Span:  tok.span(),
				}, tok.end, nil
			}
		}
		_, _ = p.next() // the '='
		valTok, err := p.next()
		if err != nil {
			return Entry{}, 0, err
		}
		val, err := p.scalar(valTok)
		if err != nil {
			return Entry{}, 0, err
		}
		return Entry{
			Name:  tok.text,
			Value: val,
			Span:  Span{Offset: tok.pos.off, Len: valTok.end - tok.pos.off},
		}, valTok.end, nil
	case tokNumber, tokKeyword:
		val, err := p.scalar(tok)
		if err != nil {
			return Entry{}, 0, err
		}
		return Entry{Value: val, Span: tok.span()}, tok.end, nil
	default:
		return Entry{}, 0, p.errAt(tok.pos, "unexpected token %q", tok.text)
	}
}

func (p *parser) scalar(tok token) (Value, error) {
	switch tok.kind {
	case tokString:
		return Value{Kind: KindString, Str: tok.text}, nil
	case tokKeyword:
		switch tok.text {
		case "#true":
			return Value{Kind: KindBool, Bool: true}, nil
		case "#false":
			return Value{Kind: KindBool, Bool: false}, nil
		case "#null":
			return Value{Kind: KindNull}, nil
		}
	case tokNumber:
		if !strings.ContainsAny(tok.text, ".eE") {
			i, err := strconv.ParseInt(tok.text, 10, 64)
			if err == nil {
				return Value{Kind: KindInteger, Int: i}, nil
			}
		}
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return Value{}, p.errAt(tok.pos, "invalid number %q", tok.text)
		}
		return Value{Kind: KindFloat, Float: f}, nil
	}
	return Value{}, p.errAt(tok.pos, "expected a value, found %q", tok.text)
}
