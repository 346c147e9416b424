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

// Package tir provides a tile-level tensor IR for GPU kernel transforms:
// buffers with storage scopes, a sum-typed statement/expression tree, and
// static access-region analysis. Trees are immutable by convention; passes
// rebuild the nodes they change and share the rest.
package tir

// StorageScope identifies the memory space a buffer lives in.
type StorageScope string

const (
	// ScopeGlobal is device global memory (slow, large).
	ScopeGlobal StorageScope = "global"

	// ScopeShared is statically sized shared memory (fast, per-block).
	ScopeShared StorageScope = "shared"

	// ScopeSharedDyn is dynamically sized shared memory.
	ScopeSharedDyn StorageScope = "shared.dyn"

	// ScopeLocal is per-thread local storage (registers or stack).
	ScopeLocal StorageScope = "local"
)

// IsFast reports whether the scope is an on-chip fast-memory scope, i.e. a
// valid destination for a prefetch copy out of global memory.
func (s StorageScope) IsFast() bool {
	return s == ScopeShared || s == ScopeSharedDyn || s == ScopeLocal
}

// Buffer describes a multidimensional memory region. Buffer identity is the
// pointer: two distinct buffers may share a display name across scopes, so
// comparisons must never go through Name.
type Buffer struct {
	Name  string
	Scope StorageScope
	Shape []int
}

// NewBuffer creates a buffer with the given name, scope and shape.
func NewBuffer(name string, scope StorageScope, shape ...int) *Buffer {
	return &Buffer{Name: name, Scope: scope, Shape: shape}
}

// Expr is the expression side of the IR sum type.
type Expr interface {
	isExpr()
}

// Stmt is the statement side of the IR sum type.
type Stmt interface {
	isStmt()
}

// IntImm is an integer literal.
type IntImm struct {
	Value int
}

// Var is a named scalar variable, typically a loop iteration variable.
// Identity is the pointer.
type Var struct {
	Name string
}

// BinOp enumerates binary operators.
type BinOp string

// Binary operators. Arithmetic ops appear in index expressions; comparison
// and logical ops appear in conditions.
const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpMod BinOp = "%"
	OpMin BinOp = "min"
	OpMax BinOp = "max"
	OpLT  BinOp = "<"
	OpLE  BinOp = "<="
	OpGT  BinOp = ">"
	OpGE  BinOp = ">="
	OpEQ  BinOp = "=="
	OpNE  BinOp = "!="
	OpAnd BinOp = "&&"
	OpOr  BinOp = "||"
)

// Binary applies a binary operator to two operands.
type Binary struct {
	Op   BinOp
	A, B Expr
}

// BufferLoad reads one element of a buffer.
type BufferLoad struct {
	Buffer  *Buffer
	Indices []Expr
}

// Select is a value-level ternary: Cond ? Then : Else.
type Select struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Call is an opaque intrinsic or external function applied to arguments.
type Call struct {
	Fn   string
	Args []Expr
}

func (*IntImm) isExpr()     {}
func (*Var) isExpr()        {}
func (*Binary) isExpr()     {}
func (*BufferLoad) isExpr() {}
func (*Select) isExpr()     {}
func (*Call) isExpr()       {}

// BufferStore writes one element of a buffer.
type BufferStore struct {
	Buffer  *Buffer
	Indices []Expr
	Value   Expr
}

// SeqStmt is an ordered sequence of statements.
type SeqStmt struct {
	Stmts []Stmt
}

// ForKind enumerates loop execution kinds.
type ForKind int

const (
	// ForSerial is a plain sequential loop.
	ForSerial ForKind = iota

	// ForParallel is a data-parallel loop (e.g. bound to thread indices).
	ForParallel

	// ForVectorized is a SIMD-vectorized loop.
	ForVectorized

	// ForUnrolled is a fully unrolled loop.
	ForUnrolled
)

// String returns a human-readable name for the ForKind.
func (k ForKind) String() string {
	switch k {
	case ForSerial:
		return "serial"
	case ForParallel:
		return "parallel"
	case ForVectorized:
		return "vectorized"
	case ForUnrolled:
		return "unrolled"
	default:
		return "unknown"
	}
}

// ForLoop iterates Var over [Min, Min+Extent). Annotations carry scheduling
// directives consumed by downstream passes.
type ForLoop struct {
	Var         *Var
	Min         Expr
	Extent      Expr
	Kind        ForKind
	Annotations map[string]any
	Body        Stmt
}

// IfThenElse guards statements with a condition. Else may be nil.
type IfThenElse struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// Block introduces a lexical scope that declares fast-memory allocations
// visible to its body and nowhere else.
type Block struct {
	Allocs []*Buffer
	Body   Stmt
}

// Evaluate executes an expression for its side effects.
type Evaluate struct {
	Value Expr
}

func (*BufferStore) isStmt() {}
func (*SeqStmt) isStmt()     {}
func (*ForLoop) isStmt()     {}
func (*IfThenElse) isStmt()  {}
func (*Block) isStmt()       {}
func (*Evaluate) isStmt()    {}

// Annotation keys understood by the pipeline passes.
const (
	// AnnNumStages marks a serial loop as a software-pipelining candidate
	// and gives the number of pipeline stages to use.
	AnnNumStages = "num_stages"

	// AnnPipelineOrder holds the per-statement emission order ([]int).
	AnnPipelineOrder = "software_pipeline_order"

	// AnnPipelineStage holds the per-statement buffering stage ([]int).
	AnnPipelineStage = "software_pipeline_stage"

	// AnnPipelineAsyncStages lists the stage values whose copies should be
	// issued asynchronously ([]int).
	AnnPipelineAsyncStages = "software_pipeline_async_stages"
)

// Function is a kernel: named parameters (buffers), free-form attributes and
// a body.
type Function struct {
	Name   string
	Params []*Buffer
	Attrs  map[string]any
	Body   Stmt
}

// Attr returns the value of the named function attribute, or nil.
func (f *Function) Attr(key string) any {
	if f.Attrs == nil {
		return nil
	}
	return f.Attrs[key]
}
