// Copyright 2024 The Luma Authors
// This file is part of Luma.
//
// Luma is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package lexer_test

import (
	"testing"

	"github.com/lumalang/luma/lang/lexer"
	"github.com/lumalang/luma/lang/token"
)

type tokenCase struct {
	typ     token.Type
	literal string
}

// runTokenize lexes input and checks that it produces exactly the expected
// sequence (plus a final EOF).
func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		t.Helper()
		toks := lexer.New("test.luma", input).Tokenize()

		if len(toks) == 0 {
			t.Fatal("Tokenize returned empty slice")
		}
		last := toks[len(toks)-1]
		if last.Type != token.EOF {
			t.Errorf("last token is %s, want EOF", last.Type)
		}
		body := toks[:len(toks)-1]

		if len(body) != len(want) {
			t.Errorf("got %d tokens (excl. EOF), want %d", len(body), len(want))
			for i, tok := range body {
				t.Logf("  [%d] %s %q", i, tok.Type, tok.Literal)
			}
			return
		}
		for i, w := range want {
			got := body[i]
			if got.Type != w.typ {
				t.Errorf("token[%d]: type = %s, want %s (literal %q)", i, got.Type, w.typ, got.Literal)
			}
			if got.Literal != w.literal {
				t.Errorf("token[%d]: literal = %q, want %q", i, got.Literal, w.literal)
			}
		}
	})
}

func TestSingleCharTokens(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantTyp token.Type
		wantLit string
	}{
		{"plus", "+", token.PLUS, "+"},
		{"minus", "-", token.MINUS, "-"},
		{"star", "*", token.STAR, "*"},
		{"slash", "/", token.SLASH, "/"},
		{"percent", "%", token.PERCENT, "%"},
		{"caret", "^", token.CARET, "^"},
		{"hash", "#", token.HASH, "#"},
		{"lt", "<", token.LT, "<"},
		{"gt", ">", token.GT, ">"},
		{"assign", "=", token.ASSIGN, "="},
		{"colon", ":", token.COLON, ":"},
		{"dot", ".", token.DOT, "."},
		{"lparen", "(", token.LPAREN, "("},
		{"rparen", ")", token.RPAREN, ")"},
		{"lbracket", "[", token.LBRACKET, "["},
		{"rbracket", "]", token.RBRACKET, "]"},
		{"lbrace", "{", token.LBRACE, "{"},
		{"rbrace", "}", token.RBRACE, "}"},
		{"comma", ",", token.COMMA, ","},
		{"semicolon", ";", token.SEMICOLON, ";"},
	}
	for _, c := range cases {
		runTokenize(t, c.name, c.input, []tokenCase{{c.wantTyp, c.wantLit}})
	}
}

func TestMultiCharOperators(t *testing.T) {
	runTokenize(t, "EQ", "==", []tokenCase{{token.EQ, "=="}})
	runTokenize(t, "NEQ", "~=", []tokenCase{{token.NEQ, "~="}})
	runTokenize(t, "LTE", "<=", []tokenCase{{token.LTE, "<="}})
	runTokenize(t, "GTE", ">=", []tokenCase{{token.GTE, ">="}})
	runTokenize(t, "DOTDOT", "..", []tokenCase{{token.DOTDOT, ".."}})
	runTokenize(t, "ELLIPSIS", "...", []tokenCase{{token.ELLIPSIS, "..."}})
}

func TestTildeAloneIsIllegal(t *testing.T) {
	runTokenize(t, "tilde_alone", "~", []tokenCase{{token.ILLEGAL, "~"}})
}

func TestNumberLiterals(t *testing.T) {
	runTokenize(t, "zero", "0", []tokenCase{{token.NUMBER, "0"}})
	runTokenize(t, "int", "42", []tokenCase{{token.NUMBER, "42"}})
	runTokenize(t, "float", "3.14", []tokenCase{{token.NUMBER, "3.14"}})
	runTokenize(t, "leading_zero_float", "0.5", []tokenCase{{token.NUMBER, "0.5"}})
	runTokenize(t, "leading_dot_float", ".5", []tokenCase{{token.NUMBER, ".5"}})
	runTokenize(t, "trailing_dot", "5.", []tokenCase{{token.NUMBER, "5."}})
	runTokenize(t, "exponent", "1.5e10", []tokenCase{{token.NUMBER, "1.5e10"}})
	runTokenize(t, "exponent_upper", "2.0E3", []tokenCase{{token.NUMBER, "2.0E3"}})
	runTokenize(t, "exponent_neg", "1.0e-5", []tokenCase{{token.NUMBER, "1.0e-5"}})
	runTokenize(t, "exponent_pos", "1.0e+5", []tokenCase{{token.NUMBER, "1.0e+5"}})
	runTokenize(t, "hex", "0xFF", []tokenCase{{token.NUMBER, "0xFF"}})
	runTokenize(t, "hex_lower", "0xdeadbeef", []tokenCase{{token.NUMBER, "0xdeadbeef"}})
}

func TestDotBeforeDigitStartsNumber(t *testing.T) {
	runTokenize(t, "dot_then_digit", ".5 + 1", []tokenCase{
		{token.NUMBER, ".5"},
		{token.PLUS, "+"},
		{token.NUMBER, "1"},
	})
}

func TestDotBeforeDotDotIsRange(t *testing.T) {
	runTokenize(t, "dotdot_between_numbers", "1..2", []tokenCase{
		{token.NUMBER, "1"},
		{token.DOTDOT, ".."},
		{token.NUMBER, "2"},
	})
}

func TestStringLiteralsStripQuotesAndResolveEscapes(t *testing.T) {
	runTokenize(t, "empty_double", `""`, []tokenCase{{token.STRING, ""}})
	runTokenize(t, "empty_single", `''`, []tokenCase{{token.STRING, ""}})
	runTokenize(t, "hello", `"hello"`, []tokenCase{{token.STRING, "hello"}})
	runTokenize(t, "single_quoted", `'hello'`, []tokenCase{{token.STRING, "hello"}})
	runTokenize(t, "escape_n", `"line\nfeed"`, []tokenCase{{token.STRING, "line\nfeed"}})
	runTokenize(t, "escape_t", `"tab\there"`, []tokenCase{{token.STRING, "tab\there"}})
	runTokenize(t, "escape_backslash", `"back\\slash"`, []tokenCase{{token.STRING, `back\slash`}})
	runTokenize(t, "escape_quote", `"say\"hi\""`, []tokenCase{{token.STRING, `say"hi"`}})
	runTokenize(t, "spaces", `"hello world"`, []tokenCase{{token.STRING, "hello world"}})
}

func TestUnterminatedStringIsIllegal(t *testing.T) {
	tok := lexer.New("test.luma", `"no closing`).NextToken()
	if tok.Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL for unterminated string, got %s", tok.Type)
	}
}

func TestStringCannotSpanANewline(t *testing.T) {
	tok := lexer.New("test.luma", "\"broken\nstring\"").NextToken()
	if tok.Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL for a string literal crossing a newline, got %s", tok.Type)
	}
}

func TestIdentifiers(t *testing.T) {
	runTokenize(t, "simple", "foo", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "underscore_prefix", "_bar", []tokenCase{{token.IDENT, "_bar"}})
	runTokenize(t, "underscore_only", "_", []tokenCase{{token.IDENT, "_"}})
	runTokenize(t, "mixed_case", "MyVar", []tokenCase{{token.IDENT, "MyVar"}})
	runTokenize(t, "with_digits", "x1y2z3", []tokenCase{{token.IDENT, "x1y2z3"}})
}

func TestKeywords(t *testing.T) {
	cases := []struct {
		kw  string
		typ token.Type
	}{
		{"and", token.AND},
		{"break", token.BREAK},
		{"do", token.DO},
		{"else", token.ELSE},
		{"elseif", token.ELSEIF},
		{"end", token.END},
		{"false", token.FALSE},
		{"for", token.FOR},
		{"function", token.FUNCTION},
		{"if", token.IF},
		{"in", token.IN},
		{"local", token.LOCAL},
		{"nil", token.NIL},
		{"not", token.NOT},
		{"or", token.OR},
		{"repeat", token.REPEAT},
		{"return", token.RETURN},
		{"then", token.THEN},
		{"true", token.TRUE},
		{"until", token.UNTIL},
		{"while", token.WHILE},
	}
	for _, c := range cases {
		runTokenize(t, c.kw, c.kw, []tokenCase{{c.typ, c.kw}})
	}
}

// Prefix of a keyword should still be an IDENT.
func TestKeywordPrefixIsIdent(t *testing.T) {
	runTokenize(t, "end_prefix", "endian", []tokenCase{{token.IDENT, "endian"}})
	runTokenize(t, "if_prefix", "iff", []tokenCase{{token.IDENT, "iff"}})
	runTokenize(t, "for_prefix", "foreach", []tokenCase{{token.IDENT, "foreach"}})
	runTokenize(t, "nil_prefix", "nilable", []tokenCase{{token.IDENT, "nilable"}})
}

func TestLineComment(t *testing.T) {
	runTokenize(t, "empty_line_comment", "--", nil)
	runTokenize(t, "line_comment", "-- hello world", nil)
	runTokenize(t, "line_comment_then_code", "-- comment\nfoo", []tokenCase{{token.IDENT, "foo"}})
}

func TestLongComment(t *testing.T) {
	runTokenize(t, "empty_long", "--[[]]", nil)
	runTokenize(t, "long_comment", "--[[ hello ]]", nil)
	runTokenize(t, "long_multiline", "--[[ line1\nline2 ]]", nil)
	runTokenize(t, "long_then_code", "--[[ c ]]x", []tokenCase{{token.IDENT, "x"}})
}

func TestUnterminatedLongCommentConsumesToEOF(t *testing.T) {
	toks := lexer.New("test.luma", "--[[ oops").Tokenize()
	if len(toks) != 1 || toks[0].Type != token.EOF {
		t.Errorf("expected only EOF after an unterminated long comment, got %v", toks)
	}
}

func TestWhitespaceSkipping(t *testing.T) {
	runTokenize(t, "spaces", "   foo   ", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "tabs", "\t\tfoo\t\t", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "newlines", "\n\nfoo\n\n", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "mixed_ws", " \t\n foo \n\t", []tokenCase{{token.IDENT, "foo"}})
}

func TestLocalAssignment(t *testing.T) {
	input := `local x = 42`
	runTokenize(t, "local_assign", input, []tokenCase{
		{token.LOCAL, "local"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.NUMBER, "42"},
	})
}

func TestFunctionDeclaration(t *testing.T) {
	input := `function add(x, y) return x + y end`
	runTokenize(t, "fn_decl", input, []tokenCase{
		{token.FUNCTION, "function"},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.COMMA, ","},
		{token.IDENT, "y"},
		{token.RPAREN, ")"},
		{token.RETURN, "return"},
		{token.IDENT, "x"},
		{token.PLUS, "+"},
		{token.IDENT, "y"},
		{token.END, "end"},
	})
}

func TestMethodCallColon(t *testing.T) {
	input := `obj:method(1, 2)`
	runTokenize(t, "method_call", input, []tokenCase{
		{token.IDENT, "obj"},
		{token.COLON, ":"},
		{token.IDENT, "method"},
		{token.LPAREN, "("},
		{token.NUMBER, "1"},
		{token.COMMA, ","},
		{token.NUMBER, "2"},
		{token.RPAREN, ")"},
	})
}

func TestFieldAccess(t *testing.T) {
	runTokenize(t, "field_access", "obj.field", []tokenCase{
		{token.IDENT, "obj"},
		{token.DOT, "."},
		{token.IDENT, "field"},
	})
}

func TestComparisonChain(t *testing.T) {
	input := `a == b ~= c < d > e <= f >= g`
	runTokenize(t, "comparison_chain", input, []tokenCase{
		{token.IDENT, "a"},
		{token.EQ, "=="},
		{token.IDENT, "b"},
		{token.NEQ, "~="},
		{token.IDENT, "c"},
		{token.LT, "<"},
		{token.IDENT, "d"},
		{token.GT, ">"},
		{token.IDENT, "e"},
		{token.LTE, "<="},
		{token.IDENT, "f"},
		{token.GTE, ">="},
		{token.IDENT, "g"},
	})
}

// ---------------------------------------------------------------------------
// Position tracking
// ---------------------------------------------------------------------------

func TestPositionTracking(t *testing.T) {
	t.Run("line_and_column", func(t *testing.T) {
		toks := lexer.New("src.luma", "foo\nbar").Tokenize()
		if len(toks) < 2 {
			t.Fatal("expected at least 2 tokens")
		}
		foo, bar := toks[0], toks[1]
		if foo.Pos.Line != 1 || foo.Pos.Column != 1 {
			t.Errorf("foo: got line %d col %d, want 1 1", foo.Pos.Line, foo.Pos.Column)
		}
		if bar.Pos.Line != 2 || bar.Pos.Column != 1 {
			t.Errorf("bar: got line %d col %d, want 2 1", bar.Pos.Line, bar.Pos.Column)
		}
	})

	t.Run("filename_propagated", func(t *testing.T) {
		tok := lexer.New("myfile.luma", "x").NextToken()
		if tok.Pos.File != "myfile.luma" {
			t.Errorf("file = %q, want %q", tok.Pos.File, "myfile.luma")
		}
	})
}

// ---------------------------------------------------------------------------
// Edge cases
// ---------------------------------------------------------------------------

func TestEmptyInput(t *testing.T) {
	tok := lexer.New("test.luma", "").NextToken()
	if tok.Type != token.EOF {
		t.Errorf("expected EOF for empty input, got %s", tok.Type)
	}
}

func TestWhitespaceOnlyInput(t *testing.T) {
	tok := lexer.New("test.luma", "   \t\n  ").NextToken()
	if tok.Type != token.EOF {
		t.Errorf("expected EOF for whitespace-only input, got %s", tok.Type)
	}
}

func TestIllegalCharacter(t *testing.T) {
	tok := lexer.New("test.luma", "`").NextToken()
	if tok.Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL for backtick, got %s", tok.Type)
	}
	if tok.Literal != "`" {
		t.Errorf("expected literal %q, got %q", "`", tok.Literal)
	}
}

func TestMultipleCallsAfterEOFAreIdempotent(t *testing.T) {
	l := lexer.New("test.luma", "")
	for i := 0; i < 5; i++ {
		tok := l.NextToken()
		if tok.Type != token.EOF {
			t.Errorf("call %d: expected EOF, got %s", i, tok.Type)
		}
	}
}

func TestNegativeNumberIsMinusThenNumber(t *testing.T) {
	// The lexer does not produce negative literals; '-' is always a MINUS
	// token, and unary minus is a parser/codegen concern.
	runTokenize(t, "negative", "-42", []tokenCase{
		{token.MINUS, "-"},
		{token.NUMBER, "42"},
	})
}

func TestComplexProgram(t *testing.T) {
	input := `
local Account = {}
function Account:deposit(amount)
    self.balance = self.balance + amount
end
`
	runTokenize(t, "complex_program", input, []tokenCase{
		{token.LOCAL, "local"},
		{token.IDENT, "Account"},
		{token.ASSIGN, "="},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.FUNCTION, "function"},
		{token.IDENT, "Account"},
		{token.COLON, ":"},
		{token.IDENT, "deposit"},
		{token.LPAREN, "("},
		{token.IDENT, "amount"},
		{token.RPAREN, ")"},
		{token.IDENT, "self"},
		{token.DOT, "."},
		{token.IDENT, "balance"},
		{token.ASSIGN, "="},
		{token.IDENT, "self"},
		{token.DOT, "."},
		{token.IDENT, "balance"},
		{token.PLUS, "+"},
		{token.IDENT, "amount"},
		{token.END, "end"},
	})
}
