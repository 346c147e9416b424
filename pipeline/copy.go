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

// IsGlobalCopyPattern reports whether a statement is a pure prefetch: it
// stores a value read from global memory into a fast-memory buffer
// (shared, shared.dyn or local). Guarding conditionals are looked through
// without inspecting their conditions, so boundary-masked copies qualify.
//
// The check is permissive on purpose: any qualifying store anywhere in the
// subtree marks the whole statement, even if the statement contains several
// stores. Pipelined kernels rely on multi-store copies (e.g. vectorized
// tails), so no exactly-one-store rule is enforced.
func IsGlobalCopyPattern(s tir.Stmt) bool {
	d := &copyDetector{}
	d.visitStmt(s)
	return d.found
}

// copyDetector walks a statement carrying one flag: "the last loaded value
// came from global memory". Stores test and reset it.
type copyDetector struct {
	globalRead bool
	found      bool
}

func (d *copyDetector) visitStmt(s tir.Stmt) {
	switch s := s.(type) {
	case *tir.BufferStore:
		d.globalRead = false
		d.visitExpr(s.Value)
		if d.globalRead && s.Buffer.Scope.IsFast() {
			d.found = true
		}
		d.globalRead = false

	case *tir.SeqStmt:
		for _, sub := range s.Stmts {
			d.visitStmt(sub)
		}

	case *tir.ForLoop:
		d.visitExpr(s.Min)
		d.visitExpr(s.Extent)
		d.visitStmt(s.Body)

	case *tir.IfThenElse:
		// The guard may reference unrelated buffers; skip it.
		d.visitStmt(s.Then)
		if s.Else != nil {
			d.visitStmt(s.Else)
		}

	case *tir.Block:
		d.visitStmt(s.Body)

	case *tir.Evaluate:
		d.visitExpr(s.Value)
	}
}

func (d *copyDetector) visitExpr(e tir.Expr) {
	switch e := e.(type) {
	case *tir.BufferLoad:
		// A non-global load does not clear the flag: an earlier global
		// load in the same expression still counts. Indices are not
		// inspected.
		if e.Buffer.Scope == tir.ScopeGlobal {
			d.globalRead = true
		}

	case *tir.Binary:
		d.visitExpr(e.A)
		d.visitExpr(e.B)

	case *tir.Select:
		// Value branches only; the condition must not pollute the flag.
		d.visitExpr(e.Then)
		d.visitExpr(e.Else)

	case *tir.Call:
		// Opaque call: arguments are not copy material.
	}
}
