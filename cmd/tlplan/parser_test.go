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
	"strings"
	"testing"

	"github.com/ajroetker/go-tilepipe/tir"
)

const matmulSrc = `
# 64x64 matmul with a prefetched A tile.
kernel matmul(A: global[64, 64], C: global[64, 64]) @target(sm_90) {
  for ko in 0..8 @pipeline(num_stages = 2) {
    alloc As: shared[64, 8]
    As[i, j] = A[i, ko * 8 + j]
    C[i, j] = C[i, j] + As[i, j]
  }
}
`

func TestParseKernelStructure(t *testing.T) {
	fn, tgt, err := ParseKernel(matmulSrc)
	if err != nil {
		t.Fatal(err)
	}
	if fn.Name != "matmul" {
		t.Errorf("name = %q", fn.Name)
	}
	if tgt != "sm_90" {
		t.Errorf("target = %q, want sm_90", tgt)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("got %d params", len(fn.Params))
	}
	a := fn.Params[0]
	if a.Name != "A" || a.Scope != tir.ScopeGlobal || len(a.Shape) != 2 || a.Shape[0] != 64 {
		t.Errorf("param A = %+v", a)
	}

	seq := fn.Body.(*tir.SeqStmt)
	loop := seq.Stmts[0].(*tir.ForLoop)
	if loop.Kind != tir.ForSerial {
		t.Errorf("loop kind = %v", loop.Kind)
	}
	if got := loop.Annotations[tir.AnnNumStages]; got != 2 {
		t.Errorf("num_stages = %v", got)
	}
	if min := loop.Min.(*tir.IntImm); min.Value != 0 {
		t.Errorf("loop min = %d", min.Value)
	}
	if ext := loop.Extent.(*tir.IntImm); ext.Value != 8 {
		t.Errorf("loop extent = %d", ext.Value)
	}

	blk := loop.Body.(*tir.Block)
	if len(blk.Allocs) != 1 || blk.Allocs[0].Name != "As" || blk.Allocs[0].Scope != tir.ScopeShared {
		t.Fatalf("allocs = %v", blk.Allocs)
	}
	body := blk.Body.(*tir.SeqStmt)
	if len(body.Stmts) != 2 {
		t.Fatalf("got %d body statements", len(body.Stmts))
	}

	// Buffer references resolve to the declaring *Buffer, not fresh copies.
	copyStmt := body.Stmts[0].(*tir.BufferStore)
	if copyStmt.Buffer != blk.Allocs[0] {
		t.Error("store destination is not the allocated buffer")
	}
	if load := copyStmt.Value.(*tir.BufferLoad); load.Buffer != a {
		t.Error("load source is not the A parameter")
	}

	// The loop variable and free variables are interned by name.
	idx := copyStmt.Value.(*tir.BufferLoad).Indices[1].(*tir.Binary) // ko * 8 + j
	ko := idx.A.(*tir.Binary).A.(*tir.Var)
	if ko != loop.Var {
		t.Error("ko in the body is not the loop variable")
	}
	computeStmt := body.Stmts[1].(*tir.BufferStore)
	if copyStmt.Indices[0] != computeStmt.Indices[0] {
		t.Error("free variable i has two identities")
	}
}

func TestParseKernelSharedDynScope(t *testing.T) {
	src := `
kernel k(g: global[64]) {
  alloc s: shared.dyn[64]
  s[i] = g[i]
}
`
	fn, _, err := ParseKernel(src)
	if err != nil {
		t.Fatal(err)
	}
	blk := fn.Body.(*tir.Block)
	if blk.Allocs[0].Scope != tir.ScopeSharedDyn {
		t.Errorf("scope = %q", blk.Allocs[0].Scope)
	}
}

func TestParseKernelBuiltins(t *testing.T) {
	src := `
kernel k(g: global[64], out: global[64]) {
  out[i] = select(i < 32, min(g[i], 7), max(g[i], 0))
  barrier()
}
`
	fn, _, err := ParseKernel(src)
	if err != nil {
		t.Fatal(err)
	}
	seq := fn.Body.(*tir.SeqStmt)
	store := seq.Stmts[0].(*tir.BufferStore)
	sel := store.Value.(*tir.Select)
	if b := sel.Then.(*tir.Binary); b.Op != tir.OpMin {
		t.Errorf("select then = %v, want min", b.Op)
	}
	if b := sel.Else.(*tir.Binary); b.Op != tir.OpMax {
		t.Errorf("select else = %v, want max", b.Op)
	}
	eval := seq.Stmts[1].(*tir.Evaluate)
	if call := eval.Value.(*tir.Call); call.Fn != "barrier" {
		t.Errorf("call = %q", call.Fn)
	}
}

func TestParseKernelBufferScoping(t *testing.T) {
	// As is allocated in the loop's scope and must not be visible after it.
	src := `
kernel k(g: global[64]) {
  for t in 0..4 {
    alloc As: shared[8]
    As[i] = g[i]
  }
  As[0] = 1
}
`
	_, _, err := ParseKernel(src)
	if err == nil || !strings.Contains(err.Error(), `unknown buffer "As"`) {
		t.Errorf("err = %v, want unknown buffer", err)
	}
}

func TestParseKernelErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing kernel keyword",
			src:  `func k(g: global[64]) {}`,
			want: `expected "kernel"`,
		},
		{
			name: "unknown storage scope",
			src:  `kernel k(g: texture[64]) {}`,
			want: "unknown storage scope",
		},
		{
			name: "unknown buffer",
			src:  "kernel k(g: global[64]) {\n  h[0] = 1\n}",
			want: `unknown buffer "h"`,
		},
		{
			name: "select arity",
			src:  "kernel k(g: global[64]) {\n  g[0] = select(1, 2)\n}",
			want: "select takes 3 arguments",
		},
		{
			name: "bad annotation value",
			src:  "kernel k(g: global[64]) {\n  for t in 0..4 @pipeline(num_stages = x) {\n  }\n}",
			want: "expected annotation value",
		},
		{
			name: "trailing tokens",
			src:  "kernel k(g: global[64]) {\n}\nextra",
			want: "expected end of input",
		},
		{
			name: "stray character",
			src:  "kernel k(g: global[64]) {\n  g[0] = $\n}",
			want: "unexpected character",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseKernel(tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

// The printed form of a parsed kernel parses back to an identical print.
func TestParseFormatRoundTrip(t *testing.T) {
	fn, err := parseWithTarget(matmulSrc, "")
	if err != nil {
		t.Fatal(err)
	}
	first := tir.FormatFunction(fn)
	fn2, err := parseWithTarget(first, "")
	if err != nil {
		t.Fatalf("re-parsing formatted output: %v\n%s", err, first)
	}
	second := tir.FormatFunction(fn2)
	if first != second {
		t.Errorf("round trip diverged:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}
