package parser

import (
	"strings"

	"github.com/pg-sharding/shardcore/pkg/models/sherror"
)

type tokenKind int

const (
	tokIdent = tokenKind(iota)
	tokQuotedIdent
	tokString
	tokNumber
	tokParam
	tokPunct
)

type token struct {
	kind  tokenKind
	text  string
	start int
	stop  int
	// depth is the paren depth outside of the token, for '(' and ')' too.
	depth int
}

func (t token) is(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (t token) punct(c byte) bool {
	return t.kind == tokPunct && len(t.text) == 1 && t.text[0] == c
}

// name returns the identifier text without quotes.
func (t token) name() string {
	if t.kind == tokQuotedIdent {
		return strings.ReplaceAll(t.text[1:len(t.text)-1], "``", "`")
	}
	return t.text
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func errLex(pos int, msg string) error {
	return sherror.Newf(sherror.SHARD_PARSE_ERROR, "%s at position %d", msg, pos)
}

// lex splits sql into positioned tokens, skipping blanks and comments.
func lex(sql string) ([]token, error) {
	var toks []token
	depth := 0
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '#' || c == '-' && i+1 < n && sql[i+1] == '-' && (i+2 == n || sql[i+2] == ' ' || sql[i+2] == '\t' || sql[i+2] == '\n'):
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				return nil, errLex(i, "unterminated comment")
			}
			i += end + 4
		case c == '\'' || c == '"':
			j, err := scanQuoted(sql, i, c, true)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: sql[i:j], start: i, stop: j, depth: depth})
			i = j
		case c == '`':
			j, err := scanQuoted(sql, i, c, false)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: sql[i:j], start: i, stop: j, depth: depth})
			i = j
		case isDigit(c) || c == '.' && i+1 < n && isDigit(sql[i+1]) && !prevIsName(toks, i):
			j := scanNumber(sql, i)
			toks = append(toks, token{kind: tokNumber, text: sql[i:j], start: i, stop: j, depth: depth})
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < n && isIdentChar(sql[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: sql[i:j], start: i, stop: j, depth: depth})
			i = j
		case c == '?':
			toks = append(toks, token{kind: tokParam, text: "?", start: i, stop: i + 1, depth: depth})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokPunct, text: "(", start: i, stop: i + 1, depth: depth})
			depth++
			i++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, errLex(i, "unbalanced ')'")
			}
			toks = append(toks, token{kind: tokPunct, text: ")", start: i, stop: i + 1, depth: depth})
			i++
		default:
			toks = append(toks, token{kind: tokPunct, text: sql[i : i+1], start: i, stop: i + 1, depth: depth})
			i++
		}
	}
	if depth != 0 {
		return nil, errLex(n, "unbalanced '('")
	}
	return toks, nil
}

// prevIsName reports a '.' directly following an identifier, as in t.1col.
func prevIsName(toks []token, pos int) bool {
	if len(toks) == 0 {
		return false
	}
	last := toks[len(toks)-1]
	return last.stop == pos && (last.kind == tokIdent || last.kind == tokQuotedIdent)
}

func scanQuoted(sql string, i int, q byte, backslash bool) (int, error) {
	for j := i + 1; j < len(sql); j++ {
		switch sql[j] {
		case '\\':
			if backslash {
				j++
			}
		case q:
			if j+1 < len(sql) && sql[j+1] == q {
				j++
				continue
			}
			return j + 1, nil
		}
	}
	return 0, errLex(i, "unterminated quoted literal")
}

func scanNumber(sql string, i int) int {
	n := len(sql)
	if sql[i] == '0' && i+1 < n && (sql[i+1] == 'x' || sql[i+1] == 'X' || sql[i+1] == 'b' || sql[i+1] == 'B') {
		j := i + 2
		for j < n && isIdentChar(sql[j]) {
			j++
		}
		return j
	}
	j := i
	for j < n && isDigit(sql[j]) {
		j++
	}
	if j < n && sql[j] == '.' {
		j++
		for j < n && isDigit(sql[j]) {
			j++
		}
	}
	if j < n && (sql[j] == 'e' || sql[j] == 'E') {
		k := j + 1
		if k < n && (sql[k] == '+' || sql[k] == '-') {
			k++
		}
		if k < n && isDigit(sql[k]) {
			j = k
			for j < n && isDigit(sql[j]) {
				j++
			}
		}
	}
	return j
}
