// Copyright 2026 go-tilepipe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ajroetker/go-tilepipe/tir"
)

// ParseKernel parses the compact kernel text format:
//
//	kernel matmul(A: global[64, 64], C: global[64, 64]) {
//	  for ko in 0..8 @pipeline(num_stages = 2) {
//	    alloc As: shared[64, 8]
//	    As[i, j] = A[i, ko * 8 + j]
//	    C[i, j] = C[i, j] + As[i, j]
//	  }
//	}
//
// tir.FormatFunction produces the same format, so planned kernels parse
// back to the tree they were printed from.
//
// targetName is the kernel's @target attribute, empty if absent.
func ParseKernel(src string) (fn *tir.Function, targetName string, err error) {
	p := &parser{lex: newLexer(src), freeVars: make(map[string]*tir.Var)}
	fn, err = p.parseKernel()
	if err != nil {
		return nil, "", err
	}
	return fn, p.targetName, nil
}

// token kinds
type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokPunct
)

type token struct {
	kind tokKind
	text string
	line int
	col  int
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

// multi-character operators, longest first
var punctuators = []string{
	"..", "<=", ">=", "==", "!=", "&&", "||",
	"(", ")", "[", "]", "{", "}", ",", ":", "=", "@",
	"+", "-", "*", "/", "%", "<", ">",
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.advance(1)
		case c == '\n':
			l.advance(1)
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			goto scan
		}
	}
	return token{kind: tokEOF, line: l.line, col: l.col}, nil

scan:
	start := token{line: l.line, col: l.col}
	c := l.src[l.pos]
	if unicode.IsLetter(rune(c)) || c == '_' {
		begin := l.pos
		for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
			l.advance(1)
		}
		start.kind = tokIdent
		start.text = l.src[begin:l.pos]
		// "shared.dyn" is one scope name, but ".." must stay a range.
		if strings.HasPrefix(l.src[l.pos:], ".dyn") {
			l.advance(4)
			start.text += ".dyn"
		}
		return start, nil
	}
	if c >= '0' && c <= '9' {
		begin := l.pos
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.advance(1)
		}
		start.kind = tokInt
		start.text = l.src[begin:l.pos]
		return start, nil
	}
	for _, p := range punctuators {
		if strings.HasPrefix(l.src[l.pos:], p) {
			l.advance(len(p))
			start.kind = tokPunct
			start.text = p
			return start, nil
		}
	}
	return token{}, fmt.Errorf("%d:%d: unexpected character %q", l.line, l.col, c)
}

func (l *lexer) advance(n int) {
	for i := 0; i < n; i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || (c >= '0' && c <= '9')
}

type parser struct {
	lex    *lexer
	tok    token
	peeked bool

	// buffers maps visible buffer names, innermost scope last.
	buffers []map[string]*tir.Buffer

	// loopVars maps in-scope loop variable names, innermost last.
	loopVars []map[string]*tir.Var

	// freeVars interns undeclared scalar variables (thread indices etc.)
	// so repeated mentions share one identity.
	freeVars map[string]*tir.Var

	// targetName is the parsed @target attribute, if any.
	targetName string
}

func (p *parser) next() (token, error) {
	if p.peeked {
		p.peeked = false
		return p.tok, nil
	}
	return p.lex.next()
}

func (p *parser) peek() (token, error) {
	if !p.peeked {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.tok = t
		p.peeked = true
	}
	return p.tok, nil
}

func (p *parser) expect(text string) (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.text != text {
		return token{}, p.errf(t, "expected %q, got %q", text, t.text)
	}
	return t, nil
}

func (p *parser) expectIdent() (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != tokIdent {
		return token{}, p.errf(t, "expected identifier, got %q", t.text)
	}
	return t, nil
}

func (p *parser) errf(t token, format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s", t.line, t.col, fmt.Sprintf(format, args...))
}

func (p *parser) parseKernel() (*tir.Function, error) {
	if _, err := p.expect("kernel"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}

	fn := &tir.Function{Name: name.text}
	p.buffers = append(p.buffers, make(map[string]*tir.Buffer))
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.text == ")" {
			p.next()
			break
		}
		if len(fn.Params) > 0 {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
		}
		b, err := p.parseBufferDecl()
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, b)
	}

	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.text == "@" {
		p.next()
		if _, err := p.expect("target"); err != nil {
			return nil, err
		}
		if _, err := p.expect("("); err != nil {
			return nil, err
		}
		tn, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		p.targetName = tn.text
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body

	end, err := p.next()
	if err != nil {
		return nil, err
	}
	if end.kind != tokEOF {
		return nil, p.errf(end, "expected end of input, got %q", end.text)
	}
	return fn, nil
}

// parseBufferDecl parses NAME ":" scope "[" int ("," int)* "]" and registers
// the buffer in the innermost scope.
func (p *parser) parseBufferDecl() (*tir.Buffer, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(":"); err != nil {
		return nil, err
	}
	scopeTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	scope := tir.StorageScope(scopeTok.text)
	switch scope {
	case tir.ScopeGlobal, tir.ScopeShared, tir.ScopeSharedDyn, tir.ScopeLocal:
	default:
		return nil, p.errf(scopeTok, "unknown storage scope %q", scopeTok.text)
	}
	if _, err := p.expect("["); err != nil {
		return nil, err
	}
	var shape []int
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind != tokInt {
			return nil, p.errf(t, "expected dimension size, got %q", t.text)
		}
		n, _ := strconv.Atoi(t.text)
		shape = append(shape, n)
		t, err = p.next()
		if err != nil {
			return nil, err
		}
		if t.text == "]" {
			break
		}
		if t.text != "," {
			return nil, p.errf(t, "expected , or ] in shape, got %q", t.text)
		}
	}
	b := tir.NewBuffer(name.text, scope, shape...)
	p.buffers[len(p.buffers)-1][name.text] = b
	return b, nil
}

// parseBlock parses "{" stmt* "}". Leading alloc declarations open a Block
// scope wrapping the remaining statements.
func (p *parser) parseBlock() (tir.Stmt, error) {
	if _, err := p.expect("{"); err != nil {
		return nil, err
	}
	p.buffers = append(p.buffers, make(map[string]*tir.Buffer))
	defer func() { p.buffers = p.buffers[:len(p.buffers)-1] }()

	var allocs []*tir.Buffer
	var stmts []tir.Stmt
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.text == "}" {
			p.next()
			break
		}
		if t.text == "alloc" {
			p.next()
			b, err := p.parseBufferDecl()
			if err != nil {
				return nil, err
			}
			allocs = append(allocs, b)
			continue
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}

	var body tir.Stmt = &tir.SeqStmt{Stmts: stmts}
	if len(allocs) > 0 {
		body = &tir.Block{Allocs: allocs, Body: body}
	}
	return body, nil
}

func (p *parser) parseStmt() (tir.Stmt, error) {
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch t.text {
	case "for":
		return p.parseFor()
	case "if":
		return p.parseIf()
	}
	if t.kind != tokIdent {
		return nil, p.errf(t, "expected statement, got %q", t.text)
	}
	// Either a store "name[...] = expr" or an expression statement.
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if load, ok := e.(*tir.BufferLoad); ok {
		nt, err := p.peek()
		if err != nil {
			return nil, err
		}
		if nt.text == "=" {
			p.next()
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &tir.BufferStore{Buffer: load.Buffer, Indices: load.Indices, Value: value}, nil
		}
	}
	return &tir.Evaluate{Value: e}, nil
}

func (p *parser) parseFor() (tir.Stmt, error) {
	if _, err := p.expect("for"); err != nil {
		return nil, err
	}
	kind := tir.ForSerial
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch t.text {
	case "parallel":
		kind = tir.ForParallel
		p.next()
	case "vectorized":
		kind = tir.ForVectorized
		p.next()
	case "unrolled":
		kind = tir.ForUnrolled
		p.next()
	}

	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("in"); err != nil {
		return nil, err
	}
	lo, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(".."); err != nil {
		return nil, err
	}
	hi, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	var anns map[string]any
	t, err = p.peek()
	if err != nil {
		return nil, err
	}
	if t.text == "@" {
		p.next()
		if anns, err = p.parseAnnotations(); err != nil {
			return nil, err
		}
	}

	v := &tir.Var{Name: name.text}
	p.loopVars = append(p.loopVars, map[string]*tir.Var{name.text: v})
	body, err := p.parseBlock()
	p.loopVars = p.loopVars[:len(p.loopVars)-1]
	if err != nil {
		return nil, err
	}

	return &tir.ForLoop{
		Var:         v,
		Min:         lo,
		Extent:      extentExpr(lo, hi),
		Kind:        kind,
		Annotations: anns,
		Body:        body,
	}, nil
}

// extentExpr derives the loop extent from half-open bounds, folding the
// common constant case.
func extentExpr(lo, hi tir.Expr) tir.Expr {
	l, lok := lo.(*tir.IntImm)
	h, hok := hi.(*tir.IntImm)
	if lok && hok {
		return &tir.IntImm{Value: h.Value - l.Value}
	}
	if lok && l.Value == 0 {
		return hi
	}
	return &tir.Binary{Op: tir.OpSub, A: hi, B: lo}
}

// parseAnnotations parses "pipeline" "(" name = value, ... ")" where value
// is an integer or an integer list.
func (p *parser) parseAnnotations() (map[string]any, error) {
	if _, err := p.expect("pipeline"); err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	anns := make(map[string]any)
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("="); err != nil {
			return nil, err
		}
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		var value any
		switch {
		case t.kind == tokInt:
			value, _ = strconv.Atoi(t.text)
		case t.text == "[":
			var list []int
			for {
				it, err := p.next()
				if err != nil {
					return nil, err
				}
				if it.kind != tokInt {
					return nil, p.errf(it, "expected integer in annotation list, got %q", it.text)
				}
				n, _ := strconv.Atoi(it.text)
				list = append(list, n)
				it, err = p.next()
				if err != nil {
					return nil, err
				}
				if it.text == "]" {
					break
				}
				if it.text != "," {
					return nil, p.errf(it, "expected , or ] in annotation list, got %q", it.text)
				}
			}
			value = list
		default:
			return nil, p.errf(t, "expected annotation value, got %q", t.text)
		}
		anns[tir.AnnotationKey(name.text)] = value

		t, err = p.next()
		if err != nil {
			return nil, err
		}
		if t.text == ")" {
			break
		}
		if t.text != "," {
			return nil, p.errf(t, "expected , or ) in annotations, got %q", t.text)
		}
	}
	return anns, nil
}

func (p *parser) parseIf() (tir.Stmt, error) {
	if _, err := p.expect("if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var els tir.Stmt
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.text == "else" {
		p.next()
		if els, err = p.parseBlock(); err != nil {
			return nil, err
		}
	}
	return &tir.IfThenElse{Cond: cond, Then: then, Else: els}, nil
}

// Expression parsing by precedence climbing.

var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"<", "<=", ">", ">=", "==", "!="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) parseExpr() (tir.Expr, error) {
	return p.parseBinary(0)
}

func (p *parser) parseBinary(level int) (tir.Expr, error) {
	if level == len(binaryLevels) {
		return p.parsePrimary()
	}
	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		matched := false
		for _, op := range binaryLevels[level] {
			if t.text == op && t.kind == tokPunct {
				matched = true
				break
			}
		}
		if !matched {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = &tir.Binary{Op: tir.BinOp(t.text), A: lhs, B: rhs}
	}
}

func (p *parser) parsePrimary() (tir.Expr, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	switch {
	case t.kind == tokInt:
		n, _ := strconv.Atoi(t.text)
		return &tir.IntImm{Value: n}, nil

	case t.text == "(":
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil

	case t.kind == tokIdent:
		nt, err := p.peek()
		if err != nil {
			return nil, err
		}
		if nt.text == "[" {
			p.next()
			b := p.lookupBuffer(t.text)
			if b == nil {
				return nil, p.errf(t, "unknown buffer %q", t.text)
			}
			indices, err := p.parseExprList("]")
			if err != nil {
				return nil, err
			}
			return &tir.BufferLoad{Buffer: b, Indices: indices}, nil
		}
		if nt.text == "(" {
			p.next()
			args, err := p.parseExprList(")")
			if err != nil {
				return nil, err
			}
			return p.makeCall(t, args)
		}
		return p.lookupVar(t.text), nil
	}
	return nil, p.errf(t, "expected expression, got %q", t.text)
}

// makeCall lowers the builtin pseudo-calls and leaves the rest opaque.
func (p *parser) makeCall(name token, args []tir.Expr) (tir.Expr, error) {
	switch name.text {
	case "select":
		if len(args) != 3 {
			return nil, p.errf(name, "select takes 3 arguments, got %d", len(args))
		}
		return &tir.Select{Cond: args[0], Then: args[1], Else: args[2]}, nil
	case "min", "max":
		if len(args) != 2 {
			return nil, p.errf(name, "%s takes 2 arguments, got %d", name.text, len(args))
		}
		return &tir.Binary{Op: tir.BinOp(name.text), A: args[0], B: args[1]}, nil
	default:
		return &tir.Call{Fn: name.text, Args: args}, nil
	}
}

func (p *parser) parseExprList(closing string) ([]tir.Expr, error) {
	var exprs []tir.Expr
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.text == closing {
			p.next()
			return exprs, nil
		}
		if len(exprs) > 0 {
			if _, err := p.expect(","); err != nil {
				return nil, err
			}
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
}

func (p *parser) lookupBuffer(name string) *tir.Buffer {
	for i := len(p.buffers) - 1; i >= 0; i-- {
		if b, ok := p.buffers[i][name]; ok {
			return b
		}
	}
	return nil
}

// lookupVar resolves a scalar name: innermost loop variable first, then the
// interned free variables (undeclared names like thread indices).
func (p *parser) lookupVar(name string) *tir.Var {
	for i := len(p.loopVars) - 1; i >= 0; i-- {
		if v, ok := p.loopVars[i][name]; ok {
			return v
		}
	}
	if v, ok := p.freeVars[name]; ok {
		return v
	}
	v := &tir.Var{Name: name}
	p.freeVars[name] = v
	return v
}
