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

// Package pipeline plans software pipelining for annotated loops: it assigns
// each statement of a loop body an emission order and a buffering stage, so
// that a downstream code generator can overlap prefetch copies from global
// memory with compute from earlier iterations.
//
// A serial loop annotated with num_stages is a candidate. Planning replaces
// that annotation with per-statement order and stage arrays (and an async
// marker when the target supports asynchronous copies); the loop is
// otherwise reconstructed unchanged. The pass is single-threaded, runs once
// per function, and aborts on the first error with no partial rewrites.
package pipeline

import (
	"fmt"

	"github.com/ajroetker/go-tilepipe/target"
	"github.com/ajroetker/go-tilepipe/tir"
)

// Plan rewrites every pipelining candidate loop in the function. The target
// is read from the function's "target" attribute; its absence is fatal since
// async-copy capability cannot be decided without it.
func Plan(fn *tir.Function) (*tir.Function, error) {
	tgt, ok := fn.Attr("target").(*target.Target)
	if !ok {
		return nil, fmt.Errorf("planning %s: %w", fn.Name, ErrMissingTarget)
	}
	body, err := PlanStmt(fn.Body, tgt, fn.Params)
	if err != nil {
		return nil, fmt.Errorf("planning %s: %w", fn.Name, err)
	}
	if body == fn.Body {
		return fn, nil
	}
	return &tir.Function{
		Name:   fn.Name,
		Params: fn.Params,
		Attrs:  fn.Attrs,
		Body:   body,
	}, nil
}

// PlanStmt plans pipelining within a statement tree, with the given buffers
// visible at the root scope. Most callers want Plan; this entry point serves
// drivers that operate below function granularity.
func PlanStmt(s tir.Stmt, tgt *target.Target, visible []*tir.Buffer) (tir.Stmt, error) {
	p := &planner{
		target: tgt,
		known:  make(map[*tir.Buffer]bool, len(visible)),
	}
	for _, b := range visible {
		p.known[b] = true
	}
	return p.rewriteStmt(s)
}

// planner holds the per-invocation state: the target and the scoped set of
// visible buffers, pushed and popped in lockstep with block entry and exit.
type planner struct {
	target *target.Target
	known  map[*tir.Buffer]bool
}

// rewriteStmt is the pass-through rewrite: candidate loops are planned,
// everything else is reconstructed immutably only when a child changed.
func (p *planner) rewriteStmt(s tir.Stmt) (tir.Stmt, error) {
	switch s := s.(type) {
	case *tir.ForLoop:
		if _, ok := s.Annotations[tir.AnnNumStages]; ok {
			return p.planLoop(s)
		}
		body, err := p.rewriteStmt(s.Body)
		if err != nil {
			return nil, err
		}
		if body == s.Body {
			return s, nil
		}
		return &tir.ForLoop{
			Var:         s.Var,
			Min:         s.Min,
			Extent:      s.Extent,
			Kind:        s.Kind,
			Annotations: s.Annotations,
			Body:        body,
		}, nil

	case *tir.SeqStmt:
		changed := false
		stmts := make([]tir.Stmt, len(s.Stmts))
		for i, sub := range s.Stmts {
			out, err := p.rewriteStmt(sub)
			if err != nil {
				return nil, err
			}
			stmts[i] = out
			changed = changed || out != sub
		}
		if !changed {
			return s, nil
		}
		return &tir.SeqStmt{Stmts: stmts}, nil

	case *tir.IfThenElse:
		then, err := p.rewriteStmt(s.Then)
		if err != nil {
			return nil, err
		}
		els := s.Else
		if els != nil {
			if els, err = p.rewriteStmt(s.Else); err != nil {
				return nil, err
			}
		}
		if then == s.Then && els == s.Else {
			return s, nil
		}
		return &tir.IfThenElse{Cond: s.Cond, Then: then, Else: els}, nil

	case *tir.Block:
		p.pushScope(s.Allocs)
		body, err := p.rewriteStmt(s.Body)
		p.popScope(s.Allocs)
		if err != nil {
			return nil, err
		}
		if body == s.Body {
			return s, nil
		}
		return &tir.Block{Allocs: s.Allocs, Body: body}, nil

	default:
		return s, nil
	}
}

func (p *planner) pushScope(allocs []*tir.Buffer) {
	for _, b := range allocs {
		p.known[b] = true
	}
}

func (p *planner) popScope(allocs []*tir.Buffer) {
	for _, b := range allocs {
		delete(p.known, b)
	}
}

// planLoop plans one candidate loop and reconstructs it with the num_stages
// annotation replaced by the computed order/stage arrays. The loop body is
// kept as-is and not re-entered.
func (p *planner) planLoop(loop *tir.ForLoop) (tir.Stmt, error) {
	numStages, ok := loop.Annotations[tir.AnnNumStages].(int)
	if !ok || numStages < 1 {
		return nil, fmt.Errorf("loop over %s: %w (got %v)",
			loop.Var.Name, ErrBadNumStages, loop.Annotations[tir.AnnNumStages])
	}
	if loop.Kind != tir.ForSerial {
		return nil, &ShapeError{Construct: fmt.Sprintf("%s loop", loop.Kind)}
	}

	seq, scoped, err := p.unwrapBody(loop.Body)
	if err != nil {
		return nil, fmt.Errorf("loop over %s: %w", loop.Var.Name, err)
	}
	p.pushScope(scoped)
	defer p.popScope(scoped)

	debugPrint("planning loop over %s: %d statements, num_stages=%d",
		loop.Var.Name, len(seq.Stmts), numStages)

	infos := make([]stageInfo, len(seq.Stmts))
	for i, s := range seq.Stmts {
		infos[i] = makeStageInfo(s, i, p.known)
	}
	if err := analyzeUseDef(infos); err != nil {
		return nil, fmt.Errorf("loop over %s: %w", loop.Var.Name, err)
	}
	if err := assignOrders(infos, numStages); err != nil {
		return nil, fmt.Errorf("loop over %s: %w", loop.Var.Name, err)
	}

	anns := make(map[string]any, len(loop.Annotations)+2)
	for k, v := range loop.Annotations {
		if k != tir.AnnNumStages {
			anns[k] = v
		}
	}
	orders := make([]int, len(infos))
	stages := make([]int, len(infos))
	for i := range infos {
		orders[i] = infos[i].order
		stages[i] = infos[i].stage
	}
	anns[tir.AnnPipelineOrder] = orders
	anns[tir.AnnPipelineStage] = stages
	if p.target.SupportsAsyncCopy() {
		anns[tir.AnnPipelineAsyncStages] = []int{0}
	}

	return &tir.ForLoop{
		Var:         loop.Var,
		Min:         loop.Min,
		Extent:      loop.Extent,
		Kind:        loop.Kind,
		Annotations: anns,
		Body:        loop.Body,
	}, nil
}

// unwrapBody resolves a candidate loop body to its statement sequence. A
// block wrapper contributes its allocations to the planning scope; a
// then-only conditional is looked through, its guard assumed uniform (e.g.
// a trip-count boundary check). Anything else is a ShapeError.
func (p *planner) unwrapBody(body tir.Stmt) (*tir.SeqStmt, []*tir.Buffer, error) {
	var scoped []*tir.Buffer
	if blk, ok := body.(*tir.Block); ok {
		scoped = blk.Allocs
		body = blk.Body
	}
	switch s := body.(type) {
	case *tir.SeqStmt:
		return s, scoped, nil
	case *tir.IfThenElse:
		if s.Else != nil {
			return nil, nil, &ShapeError{Construct: "conditional with an else branch"}
		}
		seq, ok := s.Then.(*tir.SeqStmt)
		if !ok {
			return nil, nil, &ShapeError{Construct: fmt.Sprintf("guarded %s", stmtName(s.Then))}
		}
		return seq, scoped, nil
	default:
		return nil, nil, &ShapeError{Construct: stmtName(body)}
	}
}

func stmtName(s tir.Stmt) string {
	switch s.(type) {
	case *tir.BufferStore:
		return "buffer store"
	case *tir.SeqStmt:
		return "statement sequence"
	case *tir.ForLoop:
		return "for loop"
	case *tir.IfThenElse:
		return "conditional"
	case *tir.Block:
		return "block"
	case *tir.Evaluate:
		return "expression statement"
	default:
		return fmt.Sprintf("%T", s)
	}
}
