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

// assignOrders gives every statement its final (order, stage) pair.
//
// Phase 1 interleaves: statements are placed in original order at the full
// buffering stage, except copy stages with a recorded consumer, which are
// held back and placed at stage 0 immediately after their last consumer.
// Ties among copies waiting on the same consumer resolve in original-index
// order.
//
// Phase 2 rotates trailing copies: when every copy ends up ordered past
// every non-copy statement, the copies can wrap around to the front of the
// sequence, and the compute stages then need one fewer iteration of
// lookahead buffering.
func assignOrders(infos []stageInfo, numStages int) error {
	orderIdx := 0
	for i := range infos {
		pinfo := &infos[i]
		if pinfo.copyStage && pinfo.lastUseStage != -1 {
			continue
		}
		pinfo.order = orderIdx
		orderIdx++
		pinfo.stage = numStages
		for j := range infos {
			q := &infos[j]
			if q.copyStage && q.lastUseStage == pinfo.originalOrder {
				q.order = orderIdx
				orderIdx++
				q.stage = 0
			}
		}
	}
	if orderIdx != len(infos) {
		return &InvariantError{Assigned: orderIdx, Total: len(infos)}
	}

	if numStages >= 2 {
		if cnt := trailingCopyCount(infos); cnt > 0 {
			debugPrint("rotating %d trailing copies to the front", cnt)
			n := len(infos)
			for i := range infos {
				infos[i].order = (infos[i].order + cnt) % n
				if !infos[i].copyStage {
					infos[i].stage--
				}
			}
		}
	}
	return nil
}

// trailingCopyCount returns the number of copy stages when every copy's
// order lies strictly past every non-copy's order, and -1 otherwise.
// Bodies with no copies (or nothing but copies) never rotate.
func trailingCopyCount(infos []stageInfo) int {
	copyCount := 0
	copyOrderMin := len(infos)
	nonCopyOrderMax := 0
	for i := range infos {
		if infos[i].copyStage {
			copyCount++
			if infos[i].order < copyOrderMin {
				copyOrderMin = infos[i].order
			}
		} else if infos[i].order > nonCopyOrderMax {
			nonCopyOrderMax = infos[i].order
		}
	}
	if copyOrderMin > nonCopyOrderMax {
		return copyCount
	}
	return -1
}
