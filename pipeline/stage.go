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

// stageInfo is the planning record for one top-level statement of a
// pipelined loop body. Records live for one loop's planning and are
// discarded once order/stage are serialized into annotations.
type stageInfo struct {
	reads  []tir.BufferAccess
	writes []tir.BufferAccess

	// originalOrder is the statement's fixed 0-based source position.
	originalOrder int

	// order and stage are the planned emission order and buffering stage,
	// -1 until assigned.
	order int
	stage int

	// copyStage marks a pure global-to-fast-memory prefetch.
	copyStage bool

	// lastUseStage is the original position of the furthest later
	// statement reading this copy's output, -1 if none.
	lastUseStage int
}

// makeStageInfo builds the planning record for one statement: its full
// read/write footprint (nested loops and conditionals included) and the
// copy-stage classification.
func makeStageInfo(s tir.Stmt, idx int, known map[*tir.Buffer]bool) stageInfo {
	reads, writes := tir.ComputeAccessRegions(s, known)
	return stageInfo{
		reads:         reads,
		writes:        writes,
		originalOrder: idx,
		order:         -1,
		stage:         -1,
		copyStage:     IsGlobalCopyPattern(s),
		lastUseStage:  -1,
	}
}
