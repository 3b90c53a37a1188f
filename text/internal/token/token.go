// Package token splits textual IR into S-expression tokens.
package token

import (
	"strings"
	"unicode"
)

type Type int

const (
	LParen Type = iota
	RParen
	Ident
	String
	Number
	Label
)

func (t Type) String() string {
	switch t {
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Label:
		return "label"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

// symbolic runes that may form operator identifiers such as <= or &&
const symbols = "+-*/%=!<>&|?:"

// Tokenize splits input into tokens. String values keep their escapes; Label
// values drop the leading '@'. An unterminated string runs to end of input.
func Tokenize(input string) []Token {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == ';' && i+1 < len(runes) && runes[i+1] == ';' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			line++
			continue
		}

		if r == '(' {
			tokens = append(tokens, Token{"(", LParen, line})
			continue
		}
		if r == ')' {
			tokens = append(tokens, Token{")", RParen, line})
			continue
		}

		if r == '"' {
			start := i + 1
			startLine := line
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' {
					i++
				} else if runes[i] == '\n' {
					line++
				}
				i++
			}
			end := min(i, len(runes))
			tokens = append(tokens, Token{string(runes[start:end]), String, startLine})
			continue
		}

		// Number, optionally negative
		if unicode.IsDigit(r) || (r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1])) {
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		if r == '@' {
			start := i + 1
			i++
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Label, line})
			i--
			continue
		}

		if isIdentRune(r) || strings.ContainsRune(symbols, r) {
			start := i
			symbolic := strings.ContainsRune(symbols, r)
			for i < len(runes) {
				c := runes[i]
				if (symbolic && strings.ContainsRune(symbols, c)) || (!symbolic && (isIdentRune(c) || c == '?' || c == '-')) {
					i++
				} else {
					break
				}
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line})
			i--
			continue
		}

		// Anything else becomes a one-rune identifier the parser rejects.
		tokens = append(tokens, Token{string(r), Ident, line})
	}

	return tokens
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$'
}
