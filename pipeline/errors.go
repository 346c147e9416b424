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
	"errors"
	"fmt"

	"github.com/ajroetker/go-tilepipe/tir"
)

// Planning failures abort the whole pass: the caller gets either a fully
// rewritten function or one of these errors, never a partially annotated
// tree.
var (
	// ErrMissingTarget reports that the function carries no target
	// attribute, so async-copy capability cannot be decided.
	ErrMissingTarget = errors.New("function has no target attribute")

	// ErrBadNumStages reports a num_stages annotation that is not a
	// positive integer.
	ErrBadNumStages = errors.New("num_stages must be a positive integer")
)

// ShapeError reports a pipeline candidate loop whose body is not a plain
// statement sequence (or a then-only guarded sequence).
type ShapeError struct {
	Construct string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("pipeline loop body must be a statement sequence, got %s", e.Construct)
}

// HazardError reports two statements that provably write overlapping regions
// of the same buffer, which makes order-independent staging unsound.
type HazardError struct {
	StageA int
	StageB int
	Buffer *tir.Buffer
}

func (e *HazardError) Error() string {
	return fmt.Sprintf("statements %d and %d write overlapping regions of buffer %q",
		e.StageA, e.StageB, e.Buffer.Name)
}

// InvariantError reports that order assignment did not produce a full
// permutation of the loop body. It indicates a planner defect or a body
// whose copy chain cannot be placed, never ordinary user input.
type InvariantError struct {
	Assigned int
	Total    int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("assigned orders to %d of %d pipeline statements", e.Assigned, e.Total)
}
