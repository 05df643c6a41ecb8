package vasm

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNewline

	// Literals
	TokenIdent     // add, x, loop, main__epilogue
	TokenReg       // $t0, $sp
	TokenInt       // 42, -8
	TokenDirective // .function, .args

	// Punctuation
	TokenComma    // ,
	TokenColon    // :
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenNewline:   "NEWLINE",
	TokenIdent:     "IDENT",
	TokenReg:       "REG",
	TokenInt:       "INT",
	TokenDirective: "DIRECTIVE",
	TokenComma:     ",",
	TokenColon:     ":",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}
