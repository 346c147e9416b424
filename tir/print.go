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

package tir

import (
	"fmt"
	"sort"
	"strings"
)

// FormatFunction renders a kernel in the compact textual form understood by
// cmd/tlplan. Planned loops render their order/stage annotations, so the
// output of a planning run parses back to the same tree.
func FormatFunction(f *Function) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kernel %s(", f.Name)
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %s", p.Name, formatShape(p))
	}
	sb.WriteString(")")
	if t := f.Attr("target"); t != nil {
		if s, ok := t.(fmt.Stringer); ok {
			fmt.Fprintf(&sb, " @target(%s)", s)
		}
	}
	sb.WriteString(" {\n")
	writeStmt(&sb, f.Body, 1)
	sb.WriteString("}\n")
	return sb.String()
}

// FormatStmt renders a single statement subtree.
func FormatStmt(s Stmt) string {
	var sb strings.Builder
	writeStmt(&sb, s, 0)
	return sb.String()
}

func formatShape(b *Buffer) string {
	dims := make([]string, len(b.Shape))
	for i, d := range b.Shape {
		dims[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s[%s]", b.Scope, strings.Join(dims, ", "))
}

func writeStmt(sb *strings.Builder, s Stmt, depth int) {
	ind := strings.Repeat("  ", depth)
	switch s := s.(type) {
	case *BufferStore:
		fmt.Fprintf(sb, "%s%s[%s] = %s\n", ind, s.Buffer.Name, formatIndices(s.Indices), FormatExpr(s.Value))

	case *SeqStmt:
		for _, sub := range s.Stmts {
			writeStmt(sb, sub, depth)
		}

	case *ForLoop:
		sb.WriteString(ind)
		sb.WriteString("for ")
		if s.Kind != ForSerial {
			sb.WriteString(s.Kind.String())
			sb.WriteString(" ")
		}
		fmt.Fprintf(sb, "%s in %s", s.Var.Name, formatLoopRange(s.Min, s.Extent))
		if len(s.Annotations) > 0 {
			fmt.Fprintf(sb, " @pipeline(%s)", formatAnnotations(s.Annotations))
		}
		sb.WriteString(" {\n")
		writeStmt(sb, s.Body, depth+1)
		sb.WriteString(ind)
		sb.WriteString("}\n")

	case *IfThenElse:
		fmt.Fprintf(sb, "%sif %s {\n", ind, FormatExpr(s.Cond))
		writeStmt(sb, s.Then, depth+1)
		sb.WriteString(ind)
		sb.WriteString("}")
		if s.Else != nil {
			sb.WriteString(" else {\n")
			writeStmt(sb, s.Else, depth+1)
			sb.WriteString(ind)
			sb.WriteString("}")
		}
		sb.WriteString("\n")

	case *Block:
		for _, b := range s.Allocs {
			fmt.Fprintf(sb, "%salloc %s: %s\n", ind, b.Name, formatShape(b))
		}
		writeStmt(sb, s.Body, depth)

	case *Evaluate:
		fmt.Fprintf(sb, "%s%s\n", ind, FormatExpr(s.Value))
	}
}

// formatLoopRange prints the half-open iteration range as lo..hi.
func formatLoopRange(min, extent Expr) string {
	lo, loConst := constValue(min)
	n, extConst := constValue(extent)
	if loConst && extConst {
		return fmt.Sprintf("%d..%d", lo, lo+n)
	}
	if loConst && lo == 0 {
		return fmt.Sprintf("0..%s", FormatExpr(extent))
	}
	return fmt.Sprintf("%s..%s + %s", FormatExpr(min), FormatExpr(min), FormatExpr(extent))
}

func constValue(e Expr) (int, bool) {
	if imm, ok := e.(*IntImm); ok {
		return imm.Value, true
	}
	return 0, false
}

// annotationAliases maps short annotation names in kernel text to the keys
// used on the tree. Printing walks it in the listed order.
var annotationAliases = []struct{ short, key string }{
	{"num_stages", AnnNumStages},
	{"order", AnnPipelineOrder},
	{"stage", AnnPipelineStage},
	{"async", AnnPipelineAsyncStages},
}

// AnnotationKey resolves a short annotation name from kernel text to the
// canonical key, returning the name itself if it has no alias.
func AnnotationKey(short string) string {
	for _, a := range annotationAliases {
		if a.short == short {
			return a.key
		}
	}
	return short
}

func formatAnnotations(anns map[string]any) string {
	var parts []string
	seen := make(map[string]bool)
	for _, a := range annotationAliases {
		if v, ok := anns[a.key]; ok {
			parts = append(parts, fmt.Sprintf("%s = %s", a.short, formatAnnValue(v)))
			seen[a.key] = true
		}
	}
	var rest []string
	for k := range anns {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		parts = append(parts, fmt.Sprintf("%s = %s", k, formatAnnValue(anns[k])))
	}
	return strings.Join(parts, ", ")
}

func formatAnnValue(v any) string {
	switch v := v.(type) {
	case int:
		return fmt.Sprintf("%d", v)
	case []int:
		elems := make([]string, len(v))
		for i, n := range v {
			elems[i] = fmt.Sprintf("%d", n)
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatIndices(indices []Expr) string {
	parts := make([]string, len(indices))
	for i, e := range indices {
		parts[i] = FormatExpr(e)
	}
	return strings.Join(parts, ", ")
}

// FormatExpr renders an expression with minimal parentheses.
func FormatExpr(e Expr) string {
	return formatExprPrec(e, 0)
}

// Binding strength per operator; higher binds tighter.
func opPrec(op BinOp) int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		return 3
	case OpAdd, OpSub:
		return 4
	case OpMul, OpDiv, OpMod:
		return 5
	default:
		return 6
	}
}

func formatExprPrec(e Expr, parent int) string {
	switch e := e.(type) {
	case *IntImm:
		return fmt.Sprintf("%d", e.Value)

	case *Var:
		return e.Name

	case *Binary:
		if e.Op == OpMin || e.Op == OpMax {
			return fmt.Sprintf("%s(%s, %s)", e.Op, FormatExpr(e.A), FormatExpr(e.B))
		}
		prec := opPrec(e.Op)
		// Left-associative: right operand needs a strictly tighter level.
		s := fmt.Sprintf("%s %s %s", formatExprPrec(e.A, prec), e.Op, formatExprPrec(e.B, prec+1))
		if prec < parent {
			return "(" + s + ")"
		}
		return s

	case *BufferLoad:
		return fmt.Sprintf("%s[%s]", e.Buffer.Name, formatIndices(e.Indices))

	case *Select:
		return fmt.Sprintf("select(%s, %s, %s)", FormatExpr(e.Cond), FormatExpr(e.Then), FormatExpr(e.Else))

	case *Call:
		return fmt.Sprintf("%s(%s)", e.Fn, formatIndices(e.Args))

	default:
		return fmt.Sprintf("<%T>", e)
	}
}
