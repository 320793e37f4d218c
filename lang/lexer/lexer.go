// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package lexer implements a single-pass, no-backtracking scanner for
// Luma source text.
//
// Design principles:
//   - ASCII-only input
//   - Single-pass, no backtracking
//   - Support -- line comments and --[[ ]] long comments
//   - Single and double quoted string literals with standard escapes
//   - Decimal and 0x-prefixed hex numeric literals
package lexer

import (
	"github.com/lumalang/luma/lang/token"
)

// Lexer holds the state for a single-pass tokenization run.
type Lexer struct {
	filename string
	input    []byte

	// pos is the index into input of the next byte to be loaded into ch.
	// After advance(), ch == input[pos-1] and pos points one past it.
	pos  int
	line int // 1-based current line number
	col  int // 1-based current column number

	ch byte // current character; 0 when past end
}

// New creates a new Lexer for the given filename and input string.
func New(filename, input string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    []byte(input),
		line:     1,
		col:      0,
	}
	l.advance() // prime l.ch with the first byte
	return l
}

// advance moves to the next byte in the input, updating line/column tracking.
func (l *Lexer) advance() {
	if l.ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	l.ch = l.input[l.pos]
	l.pos++
}

// peek returns the byte after the current character without consuming it.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

// currentPos returns a token.Position capturing the lexer's state right now.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		File:   l.filename,
		Line:   l.line,
		Column: l.col,
		Offset: l.pos - 1,
	}
}

func makeToken(typ token.Type, literal string, pos token.Position) token.Token {
	return token.Token{Type: typ, Literal: literal, Pos: pos}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.advance()
	}
}

// NextToken scans and returns the next token from the input. After EOF is
// reached, subsequent calls continue returning EOF tokens.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		pos := l.currentPos()
		ch := l.ch

		if ch == 0 {
			return makeToken(token.EOF, "", pos)
		}

		if ch == '-' && l.peek() == '-' {
			l.advance() // consume first '-'
			l.advance() // consume second '-'
			l.skipComment()
			continue
		}

		l.advance() // consume ch

		switch {
		case isIdentStart(ch):
			lit := l.readIdentFromFirst(ch)
			return makeToken(token.LookupIdent(lit), lit, pos)

		case isDigit(ch):
			lit := l.readNumberFromFirst(ch)
			return makeToken(token.NUMBER, lit, pos)

		case ch == '"' || ch == '\'':
			lit, ok := l.readStringBody(ch)
			if !ok {
				return makeToken(token.ILLEGAL, lit, pos)
			}
			return makeToken(token.STRING, lit, pos)

		case ch == '+':
			return makeToken(token.PLUS, "+", pos)
		case ch == '-':
			return makeToken(token.MINUS, "-", pos)
		case ch == '*':
			return makeToken(token.STAR, "*", pos)
		case ch == '/':
			return makeToken(token.SLASH, "/", pos)
		case ch == '%':
			return makeToken(token.PERCENT, "%", pos)
		case ch == '^':
			return makeToken(token.CARET, "^", pos)
		case ch == '#':
			return makeToken(token.HASH, "#", pos)

		case ch == '~':
			if l.ch == '=' {
				l.advance()
				return makeToken(token.NEQ, "~=", pos)
			}
			return makeToken(token.ILLEGAL, "~", pos)

		case ch == '=':
			if l.ch == '=' {
				l.advance()
				return makeToken(token.EQ, "==", pos)
			}
			return makeToken(token.ASSIGN, "=", pos)

		case ch == '<':
			if l.ch == '=' {
				l.advance()
				return makeToken(token.LTE, "<=", pos)
			}
			return makeToken(token.LT, "<", pos)

		case ch == '>':
			if l.ch == '=' {
				l.advance()
				return makeToken(token.GTE, ">=", pos)
			}
			return makeToken(token.GT, ">", pos)

		case ch == '.':
			if l.ch == '.' {
				l.advance()
				if l.ch == '.' {
					l.advance()
					return makeToken(token.ELLIPSIS, "...", pos)
				}
				return makeToken(token.DOTDOT, "..", pos)
			}
			if isDigit(l.ch) {
				lit := l.readNumberFromFirst('.')
				return makeToken(token.NUMBER, "."+lit, pos)
			}
			return makeToken(token.DOT, ".", pos)

		case ch == '(':
			return makeToken(token.LPAREN, "(", pos)
		case ch == ')':
			return makeToken(token.RPAREN, ")", pos)
		case ch == '{':
			return makeToken(token.LBRACE, "{", pos)
		case ch == '}':
			return makeToken(token.RBRACE, "}", pos)
		case ch == '[':
			return makeToken(token.LBRACKET, "[", pos)
		case ch == ']':
			return makeToken(token.RBRACKET, "]", pos)
		case ch == ',':
			return makeToken(token.COMMA, ",", pos)
		case ch == ';':
			return makeToken(token.SEMICOLON, ";", pos)
		case ch == ':':
			return makeToken(token.COLON, ":", pos)
		}

		return makeToken(token.ILLEGAL, string([]byte{ch}), pos)
	}
}

// skipComment consumes a comment body, assuming the leading "--" has
// already been read. A "[[" immediately following starts a long comment
// terminated by "]]"; anything else is a line comment terminated by a
// newline or EOF.
func (l *Lexer) skipComment() {
	if l.ch == '[' && l.peek() == '[' {
		l.advance()
		l.advance()
		for {
			if l.ch == 0 {
				return
			}
			if l.ch == ']' && l.peek() == ']' {
				l.advance()
				l.advance()
				return
			}
			l.advance()
		}
	}
	for l.ch != '\n' && l.ch != 0 {
		l.advance()
	}
}

// Tokenize returns all tokens (including the final EOF) produced by repeated
// calls to NextToken.
func (l *Lexer) Tokenize() []token.Token {
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks
}

func (l *Lexer) readIdentFromFirst(first byte) string {
	buf := make([]byte, 1, 16)
	buf[0] = first
	for isIdentContinue(l.ch) {
		buf = append(buf, l.ch)
		l.advance()
	}
	return string(buf)
}

// readNumberFromFirst parses a decimal or 0x-prefixed hex numeric literal
// given the already-consumed first digit (or '.' for a leading-dot float).
func (l *Lexer) readNumberFromFirst(first byte) string {
	buf := make([]byte, 0, 24)
	if first != '.' {
		buf = append(buf, first)
	}

	if first == '0' && (l.ch == 'x' || l.ch == 'X') {
		buf = append(buf, l.ch)
		l.advance()
		for isHexDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
		return string(buf)
	}

	for isDigit(l.ch) {
		buf = append(buf, l.ch)
		l.advance()
	}

	hasDot := first == '.'
	if !hasDot && l.ch == '.' && l.peek() != '.' {
		hasDot = true
		buf = append(buf, '.')
		l.advance()
	}
	if hasDot {
		for isDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		buf = append(buf, l.ch)
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			buf = append(buf, l.ch)
			l.advance()
		}
		for isDigit(l.ch) {
			buf = append(buf, l.ch)
			l.advance()
		}
	}

	return string(buf)
}

// readStringBody reads the content of a string literal after the opening
// quote byte has been consumed, returning the decoded body (quotes
// stripped, escapes resolved) and false if unterminated.
func (l *Lexer) readStringBody(quote byte) (string, bool) {
	var buf []byte
	for {
		switch l.ch {
		case 0, '\n':
			return string(buf), false
		case '\\':
			l.advance()
			switch l.ch {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case 'r':
				buf = append(buf, '\r')
			case '\\', '"', '\'':
				buf = append(buf, l.ch)
			case 0:
				return string(buf), false
			default:
				buf = append(buf, l.ch)
			}
			l.advance()
		default:
			if l.ch == quote {
				l.advance()
				return string(buf), true
			}
			buf = append(buf, l.ch)
			l.advance()
		}
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'f') ||
		(ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
