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

// mayConflict reports whether two regions of equal rank can intersect.
// A multidimensional box overlap requires overlap on every axis, so one
// empty per-dimension intersection is enough to disprove it. Callers only
// compare regions of the same buffer, which guarantees matching ranks.
func mayConflict(r1, r2 tir.Region) bool {
	for i := range r1 {
		lo := max(r1[i].Min, r2[i].Min)
		hi := min(r1[i].Min+r1[i].Extent, r2[i].Min+r2[i].Extent)
		if hi <= lo {
			return false
		}
	}
	return true
}
