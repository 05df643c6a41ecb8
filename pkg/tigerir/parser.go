package tigerir

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError is a syntax or declaration error on one source line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var (
	identRE  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	intRE    = regexp.MustCompile(`^-?[0-9]+$`)
	floatRE  = regexp.MustCompile(`^-?[0-9]*\.[0-9]+$`)
	headerRE = regexp.MustCompile(`^(int|void|float)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*:$`)
	arrayRE  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*\[\s*([0-9]+)\s*\]$`)
)

// Parser reads Tiger IR a line at a time.
type Parser struct {
	lines  []string
	pos    int // index of the next line
	line   int // number of the current line
	errors []*ParseError
}

// NewParser creates a parser over src.
func NewParser(src string) *Parser {
	return &Parser{lines: strings.Split(src, "\n")}
}

// Parse reads a whole program. The first error is returned; Errors on a
// Parser lists all of them.
func Parse(src string) (*Program, error) {
	p := NewParser(src)
	prog := p.ParseProgram()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return prog, nil
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

func (p *Parser) addError(format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)})
}

// next returns the next line that is not blank or a comment, trimmed.
func (p *Parser) next() (string, bool) {
	for p.pos < len(p.lines) {
		text := strings.TrimSpace(p.lines[p.pos])
		p.pos++
		p.line = p.pos
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "#") && !isMarker(text):
			continue
		case strings.HasPrefix(text, "start_program"), strings.HasPrefix(text, "end_program"):
			continue
		}
		return text, true
	}
	return "", false
}

func isMarker(text string) bool {
	return text == "#start_function" || text == "#end_function"
}

// ParseProgram parses functions until the end of the input
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	names := make(map[string]bool)

	for {
		text, ok := p.next()
		if !ok {
			return prog
		}
		if text != "#start_function" {
			p.addError("expected #start_function, got %q", text)
			continue
		}
		f := p.parseFunction()
		if f == nil {
			continue
		}
		if names[f.Name] {
			p.errors = append(p.errors, &ParseError{Line: f.Line, Msg: fmt.Sprintf("function %q redefined", f.Name)})
			continue
		}
		names[f.Name] = true
		prog.Functions = append(prog.Functions, *f)
	}
}

func (p *Parser) parseFunction() *Function {
	text, ok := p.next()
	if !ok {
		p.addError("function without a header")
		return nil
	}
	f := p.parseHeader(text)
	if f == nil {
		p.skipFunction()
		return nil
	}
	errs := len(p.errors)
	scope := newScope(f.Params)

	text, ok = p.next()
	if !ok || !strings.HasPrefix(text, "int-list:") {
		p.addError("function %q: expected int-list:", f.Name)
		p.skipFunction()
		return nil
	}
	p.parseIntList(f, scope, strings.TrimPrefix(text, "int-list:"))

	text, ok = p.next()
	if !ok || !strings.HasPrefix(text, "float-list:") {
		p.addError("function %q: expected float-list:", f.Name)
		p.skipFunction()
		return nil
	}
	if strings.TrimSpace(strings.TrimPrefix(text, "float-list:")) != "" {
		p.addError("function %q: floating point variables are not supported", f.Name)
	}

	for {
		text, ok := p.next()
		if !ok {
			p.addError("function %q is missing #end_function", f.Name)
			return nil
		}
		switch text {
		case "#end_function":
			if len(p.errors) > errs {
				return nil
			}
			return f
		case "#start_function":
			p.addError("function %q is missing #end_function", f.Name)
			p.pos--
			return nil
		}
		if in, ok := p.parseInstr(text, f, scope); ok {
			f.Body = append(f.Body, in)
		}
	}
}

// skipFunction drops lines up to the end of the current function.
func (p *Parser) skipFunction() {
	for {
		text, ok := p.next()
		if !ok || text == "#end_function" {
			return
		}
		if text == "#start_function" {
			p.pos--
			return
		}
	}
}

func (p *Parser) parseHeader(text string) *Function {
	m := headerRE.FindStringSubmatch(text)
	if m == nil {
		p.addError("expected function header like \"int f(int a):\", got %q", text)
		return nil
	}
	if m[1] == "float" {
		p.addError("function %q: floating point return values are not supported", m[2])
		return nil
	}
	f := &Function{Name: m[2], ReturnType: m[1], Line: p.line}
	params := strings.TrimSpace(m[3])
	if params == "" {
		return f
	}
	seen := make(map[string]bool)
	for _, param := range strings.Split(params, ",") {
		fields := strings.Fields(param)
		switch {
		case len(fields) != 2:
			p.addError("function %q: malformed parameter %q", f.Name, strings.TrimSpace(param))
			return nil
		case fields[0] != "int":
			p.addError("function %q: parameter %q has unsupported type %s", f.Name, fields[1], fields[0])
			return nil
		case !identRE.MatchString(fields[1]):
			p.addError("function %q: bad parameter name %q", f.Name, fields[1])
			return nil
		case seen[fields[1]]:
			p.addError("function %q: parameter %q declared twice", f.Name, fields[1])
			return nil
		}
		seen[fields[1]] = true
		f.Params = append(f.Params, fields[1])
	}
	return f
}

func (p *Parser) parseIntList(f *Function, s *scope, list string) {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if m := arrayRE.FindStringSubmatch(item); m != nil {
			n, _ := strconv.Atoi(m[2])
			if n <= 0 {
				p.addError("array %q has non-positive length %d", m[1], n)
				continue
			}
			if !s.declare(m[1], kindArray) {
				p.addError("%q declared twice", m[1])
				continue
			}
			f.Arrays = append(f.Arrays, Array{Name: m[1], Len: n})
			continue
		}
		if !identRE.MatchString(item) {
			p.addError("bad variable name %q", item)
			continue
		}
		if !s.declare(item, kindInt) {
			p.addError("%q declared twice", item)
			continue
		}
		f.Ints = append(f.Ints, item)
	}
}

// parseInstr parses a label or a comma-separated instruction.
func (p *Parser) parseInstr(text string, f *Function, s *scope) (Instr, bool) {
	if strings.HasSuffix(text, ":") && !strings.Contains(text, ",") {
		name := strings.TrimSpace(strings.TrimSuffix(text, ":"))
		if !identRE.MatchString(name) {
			p.addError("bad label %q", name)
			return Instr{}, false
		}
		return Instr{Op: OpLabel, Args: []Operand{Var(name)}, Line: p.line}, true
	}

	fields := strings.Split(text, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 1 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	op := Op(fields[0])
	args := fields[1:]
	in := Instr{Op: op, Line: p.line}

	// Each operand is checked against its role: d a scalar destination,
	// v a value, a an array, l a label or callee.
	var roles string
	switch {
	case op.IsBinary():
		roles = "dvv"
	case op == OpAssign && len(args) == 3:
		roles = "avv"
	case op == OpAssign:
		roles = "dv"
	case op == OpGoto:
		roles = "l"
	case op.IsBranch():
		roles = "lvv"
	case op == OpReturn:
		roles = "v"
		if len(args) == 0 {
			roles = ""
		}
		if f.ReturnType == "void" && len(args) > 0 {
			p.addError("void function %q returns a value", f.Name)
			return Instr{}, false
		}
	case op == OpCall:
		if len(args) == 0 {
			p.addError("call without a callee")
			return Instr{}, false
		}
		roles = "l" + strings.Repeat("v", len(args)-1)
	case op == OpCallr:
		if len(args) < 2 {
			p.addError("callr needs a destination and a callee")
			return Instr{}, false
		}
		roles = "dl" + strings.Repeat("v", len(args)-2)
	case op == OpArrayStore:
		roles = "vav"
	case op == OpArrayLoad:
		roles = "dav"
	default:
		p.addError("unknown operation %q", fields[0])
		return Instr{}, false
	}
	if len(args) != len(roles) {
		p.addError("%s takes %d operands, got %d", op, len(roles), len(args))
		return Instr{}, false
	}

	for i, arg := range args {
		o, ok := p.operand(arg, roles[i], s)
		if !ok {
			return Instr{}, false
		}
		in.Args = append(in.Args, o)
	}
	return in, true
}

func (p *Parser) operand(text string, role byte, s *scope) (Operand, bool) {
	if role == 'v' && intRE.MatchString(text) {
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			p.addError("constant %s out of range", text)
			return Operand{}, false
		}
		return Int(int(v)), true
	}
	if floatRE.MatchString(text) {
		p.addError("floating point constant %s is not supported", text)
		return Operand{}, false
	}
	if !identRE.MatchString(text) {
		p.addError("bad operand %q", text)
		return Operand{}, false
	}
	switch role {
	case 'l':
		return Var(text), true
	case 'a':
		if s.kind(text) != kindArray {
			p.addError("%q is not an array", text)
			return Operand{}, false
		}
	default:
		switch s.kind(text) {
		case kindNone:
			p.addError("undeclared variable %q", text)
			return Operand{}, false
		case kindArray:
			p.addError("array %q used as a value", text)
			return Operand{}, false
		}
	}
	return Var(text), true
}

type kind int

const (
	kindNone kind = iota
	kindInt
	kindArray
)

// scope maps the names a function declares to their kinds.
type scope struct {
	names map[string]kind
}

func newScope(params []string) *scope {
	s := &scope{names: make(map[string]kind)}
	for _, name := range params {
		s.names[name] = kindInt
	}
	return s
}

func (s *scope) declare(name string, k kind) bool {
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = k
	return true
}

func (s *scope) kind(name string) kind {
	return s.names[name]
}
