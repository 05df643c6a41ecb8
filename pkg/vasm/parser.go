// Package vasm reads instruction-selected virtual assembly:
//
//	.function fact
//	.args n
//	.locals r
//	.arrays buf[10]
//	    li r, 1
//	loop:
//	    ...
//	.end
package vasm

import (
	"fmt"
	"strconv"

	"tlog.app/go/errors"

	"github.com/raymyers/ralph-mips/pkg/mips"
)

// ParseError is a syntax or structural error at a source position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Msg)
}

// Parser parses virtual assembly into functions
type Parser struct {
	l         *Lexer
	curToken  Token
	peekToken Token
	errors    []*ParseError
}

// NewParser creates a new Parser for the given lexer
func NewParser(l *Lexer) *Parser {
	p := &Parser{l: l}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse reads a whole program. The first error is returned; Errors on a
// Parser lists all of them.
func Parse(src string) (*mips.Program, error) {
	p := NewParser(NewLexer(src))
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{
		Line:   p.curToken.Line,
		Column: p.curToken.Column,
		Msg:    fmt.Sprintf(format, args...),
	})
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal)
	return false
}

// skipLine drops the rest of the current line after an error.
func (p *Parser) skipLine() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		p.nextToken()
	}
}

func (p *Parser) endLine() bool {
	if p.curTokenIs(TokenEOF) {
		return true
	}
	if !p.curTokenIs(TokenNewline) {
		p.addError("unexpected %s %q at end of line", p.curToken.Type, p.curToken.Literal)
		p.skipLine()
		return false
	}
	p.nextToken()
	return true
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// ParseProgram parses functions until EOF
func (p *Parser) ParseProgram() *mips.Program {
	prog := &mips.Program{}
	names := make(map[string]bool)

	for p.skipNewlines(); !p.curTokenIs(TokenEOF); p.skipNewlines() {
		if !p.curTokenIs(TokenDirective) || p.curToken.Literal != ".function" {
			p.addError("expected .function, got %s %q", p.curToken.Type, p.curToken.Literal)
			p.skipLine()
			continue
		}
		line, col := p.curToken.Line, p.curToken.Column
		f := p.parseFunction()
		if f == nil {
			continue
		}
		if names[f.Name] {
			p.errors = append(p.errors, &ParseError{Line: line, Column: col, Msg: fmt.Sprintf("function %q redefined", f.Name)})
			continue
		}
		names[f.Name] = true
		if err := f.Validate(); err != nil {
			p.errors = append(p.errors, &ParseError{Line: line, Column: col, Msg: err.Error()})
			continue
		}
		prog.Functions = append(prog.Functions, *f)
	}

	return prog
}

func (p *Parser) parseFunction() *mips.Function {
	p.nextToken() // consume .function
	if !p.curTokenIs(TokenIdent) {
		p.addError("expected function name, got %s", p.curToken.Type)
		p.skipLine()
		return nil
	}
	f := &mips.Function{Name: p.curToken.Literal}
	p.nextToken()
	p.endLine()

	for {
		p.skipNewlines()
		switch {
		case p.curTokenIs(TokenEOF):
			p.addError("function %q is missing .end", f.Name)
			return nil
		case p.curTokenIs(TokenDirective):
			dir := p.curToken.Literal
			p.nextToken()
			switch dir {
			case ".end":
				p.endLine()
				return f
			case ".args":
				f.Args = append(f.Args, p.parseRegList()...)
			case ".locals":
				f.Locals = append(f.Locals, p.parseRegList()...)
			case ".arrays":
				f.Arrays = append(f.Arrays, p.parseArrayList()...)
			default:
				p.addError("unknown directive %q", dir)
				p.skipLine()
				continue
			}
			p.endLine()
		default:
			p.parseLine(f)
		}
	}
}

func (p *Parser) parseRegList() []mips.Reg {
	var regs []mips.Reg
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		r, ok := p.parseReg()
		if !ok {
			p.skipLine()
			return regs
		}
		regs = append(regs, r)
	}
	return regs
}

func (p *Parser) parseArrayList() []mips.Array {
	var arrays []mips.Array
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenEOF) {
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(TokenIdent) {
			p.addError("expected array name, got %s", p.curToken.Type)
			p.skipLine()
			return arrays
		}
		a := mips.Array{Name: mips.Reg(p.curToken.Literal)}
		p.nextToken()
		if !p.expect(TokenLBracket) {
			p.skipLine()
			return arrays
		}
		n, ok := p.parseInt()
		if !ok || !p.expect(TokenRBracket) {
			p.skipLine()
			return arrays
		}
		a.Len = n
		arrays = append(arrays, a)
	}
	return arrays
}

// parseLine parses an optional label and an optional instruction.
func (p *Parser) parseLine(f *mips.Function) {
	if p.curTokenIs(TokenIdent) && p.peekTokenIs(TokenColon) {
		f.Body = append(f.Body, mips.Label(p.curToken.Literal))
		p.nextToken()
		p.nextToken()
		if p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF) {
			p.endLine()
			return
		}
	}

	if !p.curTokenIs(TokenIdent) {
		p.addError("expected instruction, got %s %q", p.curToken.Type, p.curToken.Literal)
		p.skipLine()
		return
	}
	in, ok := p.parseInstr()
	if !ok {
		p.skipLine()
		return
	}
	if err := in.Validate(); err != nil {
		p.addError("%v", err)
		p.skipLine()
		return
	}
	f.Body = append(f.Body, in)
	p.endLine()
}

func (p *Parser) parseInstr() (mips.Instr, bool) {
	name := p.curToken.Literal
	op, ok := mips.LookupOpcode(name)
	if !ok {
		p.addError("unknown opcode %q", name)
		return mips.Instr{}, false
	}
	p.nextToken()

	switch {
	case op == mips.OpCall || op == mips.OpCallr:
		return p.parseCall(op)
	case op.HasOffset():
		return p.parseMem(op)
	}

	in := mips.Instr{Op: op}
	n, variadic := op.Arity()
	if variadic {
		// return [r]
		if !p.atOperandEnd() {
			r, ok := p.parseReg()
			if !ok {
				return in, false
			}
			in.Regs = append(in.Regs, r)
		}
		return in, true
	}
	for i := 0; i < n; i++ {
		if i > 0 && !p.expect(TokenComma) {
			return in, false
		}
		r, ok := p.parseReg()
		if !ok {
			return in, false
		}
		in.Regs = append(in.Regs, r)
	}
	if op.HasImm() {
		if n > 0 && !p.expect(TokenComma) {
			return in, false
		}
		imm, ok := p.parseInt()
		if !ok {
			return in, false
		}
		in.Imm = imm
	}
	if op.HasTarget() {
		if n > 0 && !p.expect(TokenComma) {
			return in, false
		}
		if !p.curTokenIs(TokenIdent) {
			p.addError("expected label, got %s %q", p.curToken.Type, p.curToken.Literal)
			return in, false
		}
		in.Target = p.curToken.Literal
		p.nextToken()
	}
	return in, true
}

// parseMem parses "rt, offset(base)" and "rt, (base)".
func (p *Parser) parseMem(op mips.Opcode) (mips.Instr, bool) {
	in := mips.Instr{Op: op}
	rt, ok := p.parseReg()
	if !ok || !p.expect(TokenComma) {
		return in, false
	}
	if p.curTokenIs(TokenInt) {
		if in.Offset, ok = p.parseInt(); !ok {
			return in, false
		}
	}
	if !p.expect(TokenLParen) {
		return in, false
	}
	base, ok := p.parseReg()
	if !ok || !p.expect(TokenRParen) {
		return in, false
	}
	in.Regs = []mips.Reg{rt, base}
	return in, true
}

// parseCall parses "call f, args..." and "callr d, f, args...".
func (p *Parser) parseCall(op mips.Opcode) (mips.Instr, bool) {
	in := mips.Instr{Op: op}
	if op == mips.OpCallr {
		d, ok := p.parseReg()
		if !ok || !p.expect(TokenComma) {
			return in, false
		}
		in.Regs = append(in.Regs, d)
	}
	if !p.curTokenIs(TokenIdent) {
		p.addError("expected callee, got %s %q", p.curToken.Type, p.curToken.Literal)
		return in, false
	}
	in.Target = p.curToken.Literal
	p.nextToken()
	for p.curTokenIs(TokenComma) {
		p.nextToken()
		r, ok := p.parseReg()
		if !ok {
			return in, false
		}
		in.Regs = append(in.Regs, r)
	}
	return in, true
}

func (p *Parser) atOperandEnd() bool {
	return p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF)
}

func (p *Parser) parseReg() (mips.Reg, bool) {
	switch p.curToken.Type {
	case TokenReg:
		r := mips.Reg(p.curToken.Literal)
		if !r.IsPhysical() {
			p.addError("unknown register %q", p.curToken.Literal)
			return "", false
		}
		p.nextToken()
		return r, true
	case TokenIdent:
		r := mips.Reg(p.curToken.Literal)
		p.nextToken()
		return r, true
	}
	p.addError("expected register, got %s %q", p.curToken.Type, p.curToken.Literal)
	return "", false
}

func (p *Parser) parseInt() (int, bool) {
	if !p.curTokenIs(TokenInt) {
		p.addError("expected integer, got %s %q", p.curToken.Type, p.curToken.Literal)
		return 0, false
	}
	v, err := strconv.ParseInt(p.curToken.Literal, 0, 32)
	if err != nil {
		p.addError("%v", errors.Wrap(err, "integer %q", p.curToken.Literal))
		return 0, false
	}
	p.nextToken()
	return int(v), true
}
