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

// Range is a half-open integer interval [Min, Min+Extent).
type Range struct {
	Min    int
	Extent int
}

// Region is a per-dimension sequence of ranges describing a rectangular
// memory footprint. Its length matches the buffer's rank.
type Region []Range

// BufferAccess is one buffer's read or write footprint within a statement.
type BufferAccess struct {
	Buffer *Buffer
	Region Region
}

// ComputeAccessRegions computes the read and write footprints of a statement,
// including everything nested inside it (loops, conditionals, selects).
// Only buffers present in known are reported; buffers allocated by blocks
// inside the statement are private to it and never escape. Index expressions
// are resolved with interval arithmetic over loop-variable ranges; anything
// that cannot be bounded widens to the buffer's full dimension. Accesses to
// the same buffer are unioned into a single rectangular hull, reported in
// first-touch order.
func ComputeAccessRegions(s Stmt, known map[*Buffer]bool) (reads, writes []BufferAccess) {
	c := &accessCollector{
		known:    known,
		bounds:   make(map[*Var]Range),
		readIdx:  make(map[*Buffer]int),
		writeIdx: make(map[*Buffer]int),
	}
	c.visitStmt(s)
	return c.reads, c.writes
}

type accessCollector struct {
	known  map[*Buffer]bool
	bounds map[*Var]Range

	reads    []BufferAccess
	writes   []BufferAccess
	readIdx  map[*Buffer]int
	writeIdx map[*Buffer]int
}

func (c *accessCollector) visitStmt(s Stmt) {
	switch s := s.(type) {
	case *BufferStore:
		for _, idx := range s.Indices {
			c.visitExpr(idx)
		}
		c.visitExpr(s.Value)
		c.record(&c.writes, c.writeIdx, s.Buffer, s.Indices)

	case *SeqStmt:
		for _, sub := range s.Stmts {
			c.visitStmt(sub)
		}

	case *ForLoop:
		c.visitExpr(s.Min)
		c.visitExpr(s.Extent)
		min, minOK := c.evalPoint(s.Min)
		ext, extOK := c.evalPoint(s.Extent)
		if minOK && extOK {
			c.bounds[s.Var] = Range{Min: min, Extent: ext}
			c.visitStmt(s.Body)
			delete(c.bounds, s.Var)
		} else {
			c.visitStmt(s.Body)
		}

	case *IfThenElse:
		c.visitExpr(s.Cond)
		c.visitStmt(s.Then)
		if s.Else != nil {
			c.visitStmt(s.Else)
		}

	case *Block:
		// Allocations are private to the block; they stay outside known
		// and are therefore never recorded.
		c.visitStmt(s.Body)

	case *Evaluate:
		c.visitExpr(s.Value)
	}
}

func (c *accessCollector) visitExpr(e Expr) {
	switch e := e.(type) {
	case *BufferLoad:
		for _, idx := range e.Indices {
			c.visitExpr(idx)
		}
		c.record(&c.reads, c.readIdx, e.Buffer, e.Indices)

	case *Binary:
		c.visitExpr(e.A)
		c.visitExpr(e.B)

	case *Select:
		c.visitExpr(e.Cond)
		c.visitExpr(e.Then)
		c.visitExpr(e.Else)

	case *Call:
		for _, arg := range e.Args {
			c.visitExpr(arg)
		}
	}
}

// record unions an access into the per-buffer accumulated footprint.
func (c *accessCollector) record(accs *[]BufferAccess, idx map[*Buffer]int, b *Buffer, indices []Expr) {
	if !c.known[b] {
		return
	}
	region := make(Region, len(b.Shape))
	for d := range b.Shape {
		if d < len(indices) {
			region[d] = c.evalIndex(indices[d], b.Shape[d])
		} else {
			region[d] = Range{Min: 0, Extent: b.Shape[d]}
		}
	}
	if i, ok := idx[b]; ok {
		(*accs)[i].Region = unionHull((*accs)[i].Region, region)
		return
	}
	idx[b] = len(*accs)
	*accs = append(*accs, BufferAccess{Buffer: b, Region: region})
}

// evalIndex bounds an index expression for a dimension of the given size,
// widening to the full dimension when the expression cannot be resolved.
func (c *accessCollector) evalIndex(e Expr, dim int) Range {
	if r, ok := c.evalRange(e); ok {
		return r
	}
	return Range{Min: 0, Extent: dim}
}

// evalRange performs interval arithmetic over constants, bound loop
// variables, addition, subtraction and multiplication by a constant.
func (c *accessCollector) evalRange(e Expr) (Range, bool) {
	switch e := e.(type) {
	case *IntImm:
		return Range{Min: e.Value, Extent: 1}, true

	case *Var:
		r, ok := c.bounds[e]
		return r, ok

	case *Binary:
		a, aok := c.evalRange(e.A)
		b, bok := c.evalRange(e.B)
		if !aok || !bok {
			return Range{}, false
		}
		switch e.Op {
		case OpAdd:
			return Range{Min: a.Min + b.Min, Extent: a.Extent + b.Extent - 1}, true
		case OpSub:
			return Range{Min: a.Min - (b.Min + b.Extent - 1), Extent: a.Extent + b.Extent - 1}, true
		case OpMul:
			if b.Extent == 1 && b.Min >= 0 {
				return scaleRange(a, b.Min), true
			}
			if a.Extent == 1 && a.Min >= 0 {
				return scaleRange(b, a.Min), true
			}
		}
		return Range{}, false
	}
	return Range{}, false
}

// evalPoint resolves an expression to a single constant value.
func (c *accessCollector) evalPoint(e Expr) (int, bool) {
	r, ok := c.evalRange(e)
	if !ok || r.Extent != 1 {
		return 0, false
	}
	return r.Min, true
}

func scaleRange(r Range, k int) Range {
	if k == 0 {
		return Range{Min: 0, Extent: 1}
	}
	return Range{Min: r.Min * k, Extent: (r.Extent-1)*k + 1}
}

// unionHull returns the smallest rectangular region covering both inputs.
func unionHull(a, b Region) Region {
	out := make(Region, len(a))
	for d := range a {
		lo := a[d].Min
		if b[d].Min < lo {
			lo = b[d].Min
		}
		hiA := a[d].Min + a[d].Extent
		hiB := b[d].Min + b[d].Extent
		hi := hiA
		if hiB > hi {
			hi = hiB
		}
		out[d] = Range{Min: lo, Extent: hi - lo}
	}
	return out
}
