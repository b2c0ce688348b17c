// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"strconv"
	"strings"
)

// TokenKind is the lexical class of a token.
type TokenKind int

//go:generate go tool stringer -linecomment -type=TokenKind
const (
	TOKEN_IDENT     = TokenKind(0)  // identifier
	TOKEN_DIRECTIVE = TokenKind(1)  // directive
	TOKEN_REGISTER  = TokenKind(2)  // register
	TOKEN_INTEGER   = TokenKind(3)  // integer
	TOKEN_STRING    = TokenKind(4)  // string
	TOKEN_COLON     = TokenKind(5)  // :
	TOKEN_COMMA     = TokenKind(6)  // ,
	TOKEN_LPAREN    = TokenKind(7)  // (
	TOKEN_RPAREN    = TokenKind(8)  // )
	TOKEN_PLUS      = TokenKind(9)  // +
	TOKEN_MINUS     = TokenKind(10) // -
	TOKEN_ARG       = TokenKind(11) // macro argument
	TOKEN_EXPR      = TokenKind(12) // expression
)

// Token is a lexical element of a source line.
type Token struct {
	Kind  TokenKind
	Text  string // Source text; decoded contents for strings, inner text for expressions.
	Value int64  // Value of integers.
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool {
	return isIdentStart(c) || c == '.' || (c >= '0' && c <= '9')
}

var escapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'b':  '\b',
	'f':  '\f',
	'0':  0,
	'\\': '\\',
	'"':  '"',
	'\'': '\'',
}

// parseInteger parses a decimal, hex (0x), octal (0o) or binary (0b)
// integer.
func parseInteger(word string) (value int64, err error) {
	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		var u64 uint64
		u64, err = strconv.ParseUint(word, 0, 32)
		if err != nil {
			err = ErrParseNumber(word)
			return
		}
		value = int64(u64)
	}
	return
}

// tokenize splits a line of source into tokens, stopping at a comment.
func tokenize(line string) (tokens []Token, err error) {
	for n := 0; n < len(line); {
		c := line[n]

		switch {
		case c == '#':
			return
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			n++
		case c == ':':
			tokens = append(tokens, Token{Kind: TOKEN_COLON, Text: ":"})
			n++
		case c == ',':
			tokens = append(tokens, Token{Kind: TOKEN_COMMA, Text: ","})
			n++
		case c == '(':
			tokens = append(tokens, Token{Kind: TOKEN_LPAREN, Text: "("})
			n++
		case c == ')':
			tokens = append(tokens, Token{Kind: TOKEN_RPAREN, Text: ")"})
			n++
		case c == '+':
			tokens = append(tokens, Token{Kind: TOKEN_PLUS, Text: "+"})
			n++
		case c == '-':
			tokens = append(tokens, Token{Kind: TOKEN_MINUS, Text: "-"})
			n++
		case c == '"':
			var str strings.Builder
			n++
			for {
				if n >= len(line) {
					err = ErrStringSyntax
					return
				}
				c = line[n]
				if c == '"' {
					n++
					break
				}
				if c == '\\' {
					n++
					if n >= len(line) {
						err = ErrStringSyntax
						return
					}
					esc, ok := escapes[line[n]]
					if !ok {
						err = ErrStringSyntax
						return
					}
					c = esc
				}
				str.WriteByte(c)
				n++
			}
			tokens = append(tokens, Token{Kind: TOKEN_STRING, Text: str.String()})
		case c == '\'':
			end := strings.IndexByte(line[n+1:], '\'')
			if end < 0 {
				err = ErrParseCharacter(line[n:])
				return
			}
			body := line[n+1 : n+1+end]
			if body == "\\" && n+2+end < len(line) && line[n+2+end] == '\'' {
				// '\''
				body = "\\'"
				end++
			}
			var value byte
			switch {
			case len(body) == 1:
				value = body[0]
			case len(body) == 2 && body[0] == '\\':
				esc, ok := escapes[body[1]]
				if !ok {
					err = ErrParseCharacter(body)
					return
				}
				value = esc
			default:
				err = ErrParseCharacter(body)
				return
			}
			tokens = append(tokens, Token{Kind: TOKEN_INTEGER, Text: line[n : n+2+end], Value: int64(value)})
			n += 2 + end
		case c == '$' && n+1 < len(line) && line[n+1] == '(':
			depth := 0
			start := n + 2
			for n++; n < len(line); n++ {
				if line[n] == '(' {
					depth++
				} else if line[n] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if n >= len(line) {
				err = ErrParseExpression(line[start:])
				return
			}
			tokens = append(tokens, Token{Kind: TOKEN_EXPR, Text: line[start:n]})
			n++
		case c == '$' || c == '%':
			start := n
			for n++; n < len(line) && isIdent(line[n]); n++ {
			}
			kind := TOKEN_REGISTER
			if c == '%' {
				kind = TOKEN_ARG
			}
			tokens = append(tokens, Token{Kind: kind, Text: line[start:n]})
		case c == '.' && n+1 < len(line) && isIdentStart(line[n+1]):
			start := n
			for n++; n < len(line) && isIdent(line[n]); n++ {
			}
			tokens = append(tokens, Token{Kind: TOKEN_DIRECTIVE, Text: strings.ToLower(line[start:n])})
		case c >= '0' && c <= '9':
			start := n
			for ; n < len(line) && isIdent(line[n]); n++ {
			}
			var value int64
			value, err = parseInteger(line[start:n])
			if err != nil {
				return
			}
			tokens = append(tokens, Token{Kind: TOKEN_INTEGER, Text: line[start:n], Value: value})
		case isIdentStart(c):
			start := n
			for ; n < len(line) && isIdent(line[n]); n++ {
			}
			tokens = append(tokens, Token{Kind: TOKEN_IDENT, Text: line[start:n]})
		default:
			err = ErrParseCharacter(string(c))
			return
		}
	}

	return
}

// splitArgs splits tokens at top-level commas.
func splitArgs(tokens []Token) (args [][]Token) {
	if len(tokens) == 0 {
		return
	}

	depth := 0
	start := 0
	for n, tok := range tokens {
		switch tok.Kind {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_COMMA:
			if depth == 0 {
				args = append(args, tokens[start:n])
				start = n + 1
			}
		}
	}
	args = append(args, tokens[start:])

	return
}
