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

package pipeline

import "github.com/ajroetker/go-tilepipe/tir"

// Small constructors shared by the package tests.

func loadExpr(b *tir.Buffer, indices ...tir.Expr) *tir.BufferLoad {
	return &tir.BufferLoad{Buffer: b, Indices: indices}
}

func storeStmt(b *tir.Buffer, value tir.Expr, indices ...tir.Expr) *tir.BufferStore {
	return &tir.BufferStore{Buffer: b, Indices: indices, Value: value}
}

func seqStmt(stmts ...tir.Stmt) *tir.SeqStmt {
	return &tir.SeqStmt{Stmts: stmts}
}

func imm(v int) *tir.IntImm {
	return &tir.IntImm{Value: v}
}

// pipelineLoop builds a serial loop annotated as a pipelining candidate,
// with the given fast-memory allocations scoped to its body.
func pipelineLoop(numStages int, allocs []*tir.Buffer, stmts ...tir.Stmt) *tir.ForLoop {
	var body tir.Stmt = seqStmt(stmts...)
	if len(allocs) > 0 {
		body = &tir.Block{Allocs: allocs, Body: body}
	}
	return &tir.ForLoop{
		Var:         &tir.Var{Name: "ko"},
		Min:         imm(0),
		Extent:      imm(8),
		Kind:        tir.ForSerial,
		Annotations: map[string]any{tir.AnnNumStages: numStages},
		Body:        body,
	}
}
