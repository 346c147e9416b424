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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajroetker/go-tilepipe/tir"
)

// buildInfos builds stage records the way the planner does, with every
// listed buffer visible.
func buildInfos(t *testing.T, visible []*tir.Buffer, stmts ...tir.Stmt) []stageInfo {
	t.Helper()
	known := make(map[*tir.Buffer]bool)
	for _, b := range visible {
		known[b] = true
	}
	infos := make([]stageInfo, len(stmts))
	for i, s := range stmts {
		infos[i] = makeStageInfo(s, i, known)
	}
	return infos
}

func TestUseDefLastUseIsFurthestReader(t *testing.T) {
	g := tir.NewBuffer("g", tir.ScopeGlobal, 64)
	s := tir.NewBuffer("s", tir.ScopeShared, 64)
	out := tir.NewBuffer("out", tir.ScopeGlobal, 64)

	infos := buildInfos(t, []*tir.Buffer{g, s, out},
		storeStmt(s, loadExpr(g, imm(0)), imm(0)),                 // 0: copy
		storeStmt(out, loadExpr(s, imm(0)), imm(0)),               // 1: reads the copy
		storeStmt(out, loadExpr(s, imm(0)), imm(1)),               // 2: reads it again, further away
		storeStmt(out, &tir.IntImm{Value: 0}, imm(2)),             // 3: unrelated
	)

	require.NoError(t, analyzeUseDef(infos))
	require.True(t, infos[0].copyStage)
	require.Equal(t, 2, infos[0].lastUseStage)
}

func TestUseDefIgnoresDisjointRegions(t *testing.T) {
	g := tir.NewBuffer("g", tir.ScopeGlobal, 64)
	s := tir.NewBuffer("s", tir.ScopeShared, 64)
	out := tir.NewBuffer("out", tir.ScopeGlobal, 64)

	// The copy fills s[0], the consumer reads s[40]: no dependency.
	infos := buildInfos(t, []*tir.Buffer{g, s, out},
		storeStmt(s, loadExpr(g, imm(0)), imm(0)),
		storeStmt(out, loadExpr(s, imm(40)), imm(0)),
	)

	require.NoError(t, analyzeUseDef(infos))
	require.Equal(t, -1, infos[0].lastUseStage)
}

func TestUseDefNeverLooksBackward(t *testing.T) {
	g := tir.NewBuffer("g", tir.ScopeGlobal, 64)
	s := tir.NewBuffer("s", tir.ScopeShared, 64)
	out := tir.NewBuffer("out", tir.ScopeGlobal, 64)

	// An earlier statement reads the same region the copy writes; only
	// forward dependencies count, so the copy records no use at all.
	infos := buildInfos(t, []*tir.Buffer{g, s, out},
		storeStmt(out, loadExpr(s, imm(0)), imm(0)),
		storeStmt(s, loadExpr(g, imm(0)), imm(0)),
	)

	require.NoError(t, analyzeUseDef(infos))
	require.True(t, infos[1].copyStage)
	require.Equal(t, -1, infos[1].lastUseStage)
}

func TestUseDefSkipsNonCopyStages(t *testing.T) {
	s := tir.NewBuffer("s", tir.ScopeShared, 64)
	out := tir.NewBuffer("out", tir.ScopeGlobal, 64)

	// Statement 0 writes shared from shared: not a copy stage, so no
	// last use is recorded even though statement 1 reads its output.
	infos := buildInfos(t, []*tir.Buffer{s, out},
		storeStmt(s, loadExpr(s, imm(1)), imm(0)),
		storeStmt(out, loadExpr(s, imm(0)), imm(0)),
	)

	require.NoError(t, analyzeUseDef(infos))
	require.False(t, infos[0].copyStage)
	require.Equal(t, -1, infos[0].lastUseStage)
}

func TestUseDefOverlappingWritesAreFatal(t *testing.T) {
	g := tir.NewBuffer("g", tir.ScopeGlobal, 64)
	s := tir.NewBuffer("s", tir.ScopeShared, 64)

	infos := buildInfos(t, []*tir.Buffer{g, s},
		storeStmt(s, loadExpr(g, imm(0)), imm(0)),
		storeStmt(s, &tir.IntImm{Value: 0}, imm(0)),
	)

	err := analyzeUseDef(infos)
	var hazard *HazardError
	require.ErrorAs(t, err, &hazard)
	require.Equal(t, 0, hazard.StageA)
	require.Equal(t, 1, hazard.StageB)
	require.Same(t, s, hazard.Buffer)
	require.Contains(t, err.Error(), `"s"`)
}

func TestUseDefDisjointWritesAreFine(t *testing.T) {
	g := tir.NewBuffer("g", tir.ScopeGlobal, 64)
	s := tir.NewBuffer("s", tir.ScopeShared, 64)

	infos := buildInfos(t, []*tir.Buffer{g, s},
		storeStmt(s, loadExpr(g, imm(0)), imm(0)),
		storeStmt(s, &tir.IntImm{Value: 0}, imm(1)),
	)

	require.NoError(t, analyzeUseDef(infos))
}
