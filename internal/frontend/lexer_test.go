package frontend

import "testing"

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lex := newLexer(src)
	var toks []Token
	for {
		tok := lex.next()
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks
		}
	}
}

func TestLexerPunctuationAndOperators(t *testing.T) {
	toks := lexAll(t, "a += 1 === 2 !== 3 && b || !c")
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []TokenKind{
		TokenIdent, TokenPlusEq, TokenNumber, TokenEqEqEq, TokenNumber,
		TokenNotEqEq, TokenNumber, TokenAmpAmp, TokenIdent, TokenPipePipe,
		TokenBang, TokenIdent, TokenEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(kinds), kinds, len(want), want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("token %d: got %s want %s", i, kinds[i], want[i])
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\"c"`)
	if toks[0].Kind != TokenString {
		t.Fatalf("expected string token, got %s", toks[0].Kind)
	}
	if toks[0].Text != "a\nb\"c" {
		t.Fatalf("got %q", toks[0].Text)
	}
}

func TestLexerNumberForms(t *testing.T) {
	for _, src := range []string{"0", "42", "3.14", "1e10", "2.5e-3"} {
		toks := lexAll(t, src)
		if toks[0].Kind != TokenNumber || toks[0].Text != src {
			t.Fatalf("src %q: got kind %s text %q", src, toks[0].Kind, toks[0].Text)
		}
	}
}

func TestLexerComments(t *testing.T) {
	toks := lexAll(t, "a // trailing comment\n/* block\ncomment */ b")
	if len(toks) != 3 { // a, b, EOF
		t.Fatalf("got %d tokens: %v", len(toks), toks)
	}
	if toks[0].Text != "a" || toks[1].Text != "b" {
		t.Fatalf("got %+v", toks)
	}
}

func TestLexerKeywords(t *testing.T) {
	toks := lexAll(t, "var let const function return if else while for")
	want := []TokenKind{
		TokenVar, TokenLet, TokenConst, TokenFunction, TokenReturn,
		TokenIf, TokenElse, TokenWhile, TokenFor, TokenEOF,
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d: got %s want %s", i, toks[i].Kind, k)
		}
	}
}

func TestLexerUTF8Identifiers(t *testing.T) {
	toks := lexAll(t, "let café = 1")
	if toks[1].Kind != TokenIdent || toks[1].Text != "café" {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestLexerPositions(t *testing.T) {
	toks := lexAll(t, "a\nb")
	if toks[0].Pos.Line != 1 || toks[1].Pos.Line != 2 {
		t.Fatalf("got positions %+v %+v", toks[0].Pos, toks[1].Pos)
	}
}
