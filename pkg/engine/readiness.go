package engine

import (
	"go/scanner"
	"go/token"
	"strings"
)

// indentWidth is the number of spaces suggested per open bracket
const indentWidth = 2

// balance summarizes the lexical state at the end of a chunk of Go source
type balance struct {
	depth    int         // open ( [ { minus closed ones
	open     bool        // unterminated raw string or block comment
	trailing token.Token // last significant token
	empty    bool        // no tokens at all
}

// continuationTokens are tokens after which a statement cannot end
var continuationTokens = map[token.Token]bool{
	token.ASSIGN:         true,
	token.DEFINE:         true,
	token.ADD_ASSIGN:     true,
	token.SUB_ASSIGN:     true,
	token.MUL_ASSIGN:     true,
	token.QUO_ASSIGN:     true,
	token.REM_ASSIGN:     true,
	token.AND_ASSIGN:     true,
	token.OR_ASSIGN:      true,
	token.XOR_ASSIGN:     true,
	token.SHL_ASSIGN:     true,
	token.SHR_ASSIGN:     true,
	token.AND_NOT_ASSIGN: true,
	token.COMMA:          true,
	token.PERIOD:         true,
	token.COLON:          true,
	token.ARROW:          true,
	token.NOT:            true,
	token.ELSE:           true,
}

// scanBalance tokenizes text and reports its bracket balance
func scanBalance(text string) balance {
	b := balance{empty: true}

	fset := token.NewFileSet()
	file := fset.AddFile("input", fset.Base(), len(text))

	var s scanner.Scanner
	s.Init(file, []byte(text), func(_ token.Position, msg string) {
		if strings.HasSuffix(msg, "not terminated") &&
			(strings.HasPrefix(msg, "raw string") || strings.HasPrefix(msg, "comment")) {
			b.open = true
		}
	}, scanner.ScanComments)

	for {
		_, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}

		switch tok {
		case token.COMMENT:
			continue
		case token.SEMICOLON:
			if lit == "\n" {
				// inserted at a line end, not typed
				continue
			}
		case token.LPAREN, token.LBRACK, token.LBRACE:
			b.depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			b.depth--
		}

		b.empty = false
		b.trailing = tok
	}

	return b
}

// ready reports whether the balance describes a complete unit.
// Over-closed input counts as complete so the interpreter can report it.
func (b balance) ready() bool {
	if b.empty || b.open {
		return false
	}
	if b.depth > 0 {
		return false
	}
	if b.depth < 0 {
		return true
	}
	return !isContinuation(b.trailing)
}

func (b balance) indent() int {
	if b.depth <= 0 {
		return 0
	}
	return b.depth * indentWidth
}

func isContinuation(tok token.Token) bool {
	if continuationTokens[tok] {
		return true
	}
	// binary operators: || && == + * ...
	return tok.Precedence() > token.LowestPrec
}

// packageClause returns the package name when text starts with a package clause
func packageClause(text string) (string, bool) {
	fset := token.NewFileSet()
	file := fset.AddFile("input", fset.Base(), len(text))

	var s scanner.Scanner
	s.Init(file, []byte(text), nil, 0)

	_, tok, _ := s.Scan()
	if tok != token.PACKAGE {
		return "", false
	}
	_, tok, lit := s.Scan()
	if tok != token.IDENT {
		return "", false
	}
	return lit, true
}
