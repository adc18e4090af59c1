package kdl

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokKeyword // #true, #false, #null
	tokLBrace
	tokRBrace
	tokEquals
	tokNewline // also emitted for ';'
)

type token struct {
	kind tokenKind
	text string
	pos  position
	end  int // byte offset one past the token
}

func (t token) span() Span {
	return Span{Offset: t.pos.off, Len: t.end - t.pos.off}
}

type position struct {
	off  int
	line int
	col  int
}

func (p position) String() string {
	return fmt.Sprintf("%d:%d", p.line, p.col)
}

type lexer struct {
	src  string
	i    int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{
		src:  src,
		i:    0,
		line: 1,
		col:  1,
	}
}

// identTerminators are the runes that end a bare identifier.
const identTerminators = " \t\n{}=\";"

func (l *lexer) nextToken() (token, error) {
	for {
		if l.i >= len(l.src) {
			return token{kind: tokEOF, pos: l.pos(), end: l.i}, nil
		}

		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if r == utf8.RuneError && size == 1 {
			return token{}, fmt.Errorf("invalid utf-8 at %d:%d", l.line, l.col)
		}

		if r == ' ' || r == '\t' {
			l.consumeRune(r, size)
			continue
		}

		pos := l.pos()
		switch r {
		case '\n', ';':
			l.consumeRune(r, size)
			return token{kind: tokNewline, text: string(r), pos: pos, end: l.i}, nil
		case '/':
			if strings.HasPrefix(l.src[l.i:], "//") {
				// Comment until end of line.
				for l.i < len(l.src) {
					r2, size2 := utf8.DecodeRuneInString(l.src[l.i:])
					if r2 == '\n' {
						break
					}
					l.consumeRune(r2, size2)
				}
				continue
			}
			ident := l.readIdent()
			return token{kind: tokIdent, text: ident, pos: pos, end: l.i}, nil
		case '{':
			l.consumeRune(r, size)
			return token{kind: tokLBrace, text: "{", pos: pos, end: l.i}, nil
		case '}':
			l.consumeRune(r, size)
			return token{kind: tokRBrace, text: "}", pos: pos, end: l.i}, nil
		case '=':
			l.consumeRune(r, size)
			return token{kind: tokEquals, text: "=", pos: pos, end: l.i}, nil
		case '"':
			s, err := l.readString()
			if err != nil {
				return token{}, err
			}
			return token{kind: tokString, text: s, pos: pos, end: l.i}, nil
		case '#':
			kw := l.readIdent()
			switch kw {
			case "#true", "#false", "#null":
				return token{kind: tokKeyword, text: kw, pos: pos, end: l.i}, nil
			}
			return token{}, fmt.Errorf("unknown keyword %q at %s", kw, pos)
		default:
			if r >= '0' && r <= '9' || r == '-' && l.startsNumber() || r == '+' && l.startsNumber() {
				num := l.readIdent()
				return token{kind: tokNumber, text: num, pos: pos, end: l.i}, nil
			}
			ident := l.readIdent()
			return token{kind: tokIdent, text: ident, pos: pos, end: l.i}, nil
		}
	}
}

// startsNumber reports whether the rune after the current sign rune is a
// digit, so `-2` lexes as a number while `-flag` stays an identifier.
func (l *lexer) startsNumber() bool {
	if l.i+1 >= len(l.src) {
		return false
	}
	b := l.src[l.i+1]
	return b >= '0' && b <= '9'
}

func (l *lexer) readIdent() string {
	start := l.i
	for l.i < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if strings.ContainsRune(identTerminators, r) {
			break
		}
		l.consumeRune(r, size)
	}
	return l.src[start:l.i]
}

func (l *lexer) readString() (string, error) {
	openPos := l.pos()
	// Consume the opening quote.
	l.consumeRune('"', 1)

	var b strings.Builder
	for {
		if l.i >= len(l.src) {
			return "", fmt.Errorf("unterminated string starting at %s", openPos)
		}
		r, size := utf8.DecodeRuneInString(l.src[l.i:])
		if r == utf8.RuneError && size == 1 {
			return "", fmt.Errorf("invalid utf-8 at %d:%d", l.line, l.col)
		}
		switch r {
		case '"':
			l.consumeRune(r, size)
			return b.String(), nil
		case '\n':
			return "", fmt.Errorf("unterminated string starting at %s", openPos)
		case '\\':
			l.consumeRune(r, size)
			if l.i >= len(l.src) {
				return "", fmt.Errorf("unterminated string starting at %s", openPos)
			}
			e, esize := utf8.DecodeRuneInString(l.src[l.i:])
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return "", fmt.Errorf("invalid escape \\%c at %d:%d", e, l.line, l.col)
			}
			l.consumeRune(e, esize)
		default:
			b.WriteRune(r)
			l.consumeRune(r, size)
		}
	}
}

func (l *lexer) pos() position {
	return position{off: l.i, line: l.line, col: l.col}
}

func (l *lexer) consumeRune(r rune, size int) {
	l.i += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}
