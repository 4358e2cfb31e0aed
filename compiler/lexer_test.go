package compiler

import (
	"strings"
	"testing"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestTokenizeEmpty(t *testing.T) {
	tokens, err := Tokenize("")
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("token count = %d, want 1", len(tokens))
	}
	if tokens[0].Type != TokenEOF {
		t.Errorf("token type = %v, want EOF", tokens[0].Type)
	}
}

func TestTokenizePunctuation(t *testing.T) {
	tokens, err := Tokenize("[](){};+-*/%,.")
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	want := []TokenType{
		TokenLeftBracket, TokenRightBracket, TokenLeftParen, TokenRightParen,
		TokenLeftBrace, TokenRightBrace, TokenSemicolon, TokenPlus, TokenMinus,
		TokenStar, TokenSlash, TokenPercent, TokenComma, TokenDot, TokenEOF,
	}
	got := tokenTypes(tokens)
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"!", []TokenType{TokenNot, TokenEOF}},
		{"!=", []TokenType{TokenNotEqual, TokenEOF}},
		{"=", []TokenType{TokenAssign, TokenEOF}},
		{"==", []TokenType{TokenIsEqual, TokenEOF}},
		{"<", []TokenType{TokenLessThan, TokenEOF}},
		{"<=", []TokenType{TokenLessThanEqual, TokenEOF}},
		{">", []TokenType{TokenGreaterThan, TokenEOF}},
		{">=", []TokenType{TokenGreaterThanEqual, TokenEOF}},
		{"= =", []TokenType{TokenAssign, TokenAssign, TokenEOF}},
		{"<==", []TokenType{TokenLessThanEqual, TokenAssign, TokenEOF}},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Errorf("Tokenize(%q) error: %v", tt.input, err)
			continue
		}
		got := tokenTypes(tokens)
		if len(got) != len(tt.want) {
			t.Errorf("Tokenize(%q) count = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Tokenize(%q) token %d = %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTokenizeKeywords(t *testing.T) {
	tests := []struct {
		lexeme string
		want   TokenType
	}{
		{"and", TokenAnd},
		{"or", TokenOr},
		{"not", TokenNot},
		{"if", TokenIf},
		{"else", TokenElse},
		{"for", TokenFor},
		{"while", TokenWhile},
		{"return", TokenReturn},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"print", TokenPrint},
		{"str", TokenStr},
		{"int", TokenInt},
		{"char", TokenChar},
		{"bool", TokenBool},
		{"fun", TokenFun},
		{"ifx", TokenIdentifier},
		{"Integer", TokenIdentifier},
		{"_x", TokenIdentifier},
		{"x123", TokenIdentifier},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.lexeme)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.lexeme, err)
		}
		if tokens[0].Type != tt.want {
			t.Errorf("Tokenize(%q) type = %v, want %v", tt.lexeme, tokens[0].Type, tt.want)
		}
		if tokens[0].Lexeme != tt.lexeme {
			t.Errorf("Tokenize(%q) lexeme = %q, want %q", tt.lexeme, tokens[0].Lexeme, tt.lexeme)
		}
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"42", "42"},
		{"1234567890", "1234567890"},
		{"3.14", "3.14"},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.input, err)
		}
		if tokens[0].Type != TokenNumber {
			t.Errorf("Tokenize(%q) type = %v, want NUMBER", tt.input, tokens[0].Type)
		}
		if tokens[0].Lexeme != tt.want {
			t.Errorf("Tokenize(%q) lexeme = %q, want %q", tt.input, tokens[0].Lexeme, tt.want)
		}
	}
}

func TestTokenizeNumberTrailingDot(t *testing.T) {
	// A dot not followed by a digit is its own token.
	tokens, err := Tokenize("42.")
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	want := []TokenType{TokenNumber, TokenDot, TokenEOF}
	got := tokenTypes(tokens)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTokenizeStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`'hello'`, "hello"},
		{`"hello"`, "hello"},
		{`''`, ""},
		{`'say "hi"'`, `say "hi"`},
		{`"it's"`, "it's"},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.input, err)
		}
		if tokens[0].Type != TokenString {
			t.Errorf("Tokenize(%q) type = %v, want STRING", tt.input, tokens[0].Type)
		}
		if tokens[0].Lexeme != tt.want {
			t.Errorf("Tokenize(%q) lexeme = %q, want %q", tt.input, tokens[0].Lexeme, tt.want)
		}
	}
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := Tokenize("'oops")
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
	lexErr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("error type = %T, want *LexError", err)
	}
	if !strings.Contains(lexErr.Message, "unterminated string") {
		t.Errorf("message = %q, want unterminated string", lexErr.Message)
	}
}

func TestTokenizeUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("int x = 1;\n@")
	if err == nil {
		t.Fatal("expected error for unexpected character")
	}
	lexErr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("error type = %T, want *LexError", err)
	}
	if lexErr.Line != 2 {
		t.Errorf("line = %d, want 2", lexErr.Line)
	}
}

func TestTokenizeComments(t *testing.T) {
	tokens, err := Tokenize("1 // the rest is ignored\n2")
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	want := []TokenType{TokenNumber, TokenNumber, TokenEOF}
	got := tokenTypes(tokens)
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d", len(got), len(want))
	}
	if tokens[1].Line != 2 {
		t.Errorf("second token line = %d, want 2", tokens[1].Line)
	}
}

func TestTokenizeLineNumbers(t *testing.T) {
	source := "int x;\nint y;\n\nprint 'multi\nline';\nx"
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	// The string literal spans lines 4-5; tokens after it pick up the
	// incremented line counter.
	last := tokens[len(tokens)-2] // the trailing identifier
	if last.Lexeme != "x" {
		t.Fatalf("last token = %q, want x", last.Lexeme)
	}
	if last.Line != 6 {
		t.Errorf("last token line = %d, want 6", last.Line)
	}
}

func TestTokenizeProgram(t *testing.T) {
	source := `
fun add(int a, int b) {
	return a + b;
}
print add(2, 40);
`
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize() error: %v", err)
	}
	want := []TokenType{
		TokenFun, TokenIdentifier, TokenLeftParen, TokenInt, TokenIdentifier,
		TokenComma, TokenInt, TokenIdentifier, TokenRightParen, TokenLeftBrace,
		TokenReturn, TokenIdentifier, TokenPlus, TokenIdentifier, TokenSemicolon,
		TokenRightBrace, TokenPrint, TokenIdentifier, TokenLeftParen, TokenNumber,
		TokenComma, TokenNumber, TokenRightParen, TokenSemicolon, TokenEOF,
	}
	got := tokenTypes(tokens)
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}
