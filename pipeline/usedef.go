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

// analyzeUseDef records, for every copy stage, the furthest later statement
// that reads any part of what the copy writes. Only forward dependencies are
// tracked: pipelined code cannot have a compute stage depend on a copy that
// has not been issued yet, so a copy never inspects earlier statements.
//
// Two statements writing overlapping regions of the same buffer are a
// HazardError: their relative order would become observable once the
// scheduler interleaves them.
func analyzeUseDef(infos []stageInfo) error {
	for i := range infos {
		pinfo := &infos[i]
		if !pinfo.copyStage {
			continue
		}
		for j := pinfo.originalOrder + 1; j < len(infos); j++ {
			for _, read := range infos[j].reads {
				for _, write := range pinfo.writes {
					if write.Buffer == read.Buffer && mayConflict(write.Region, read.Region) {
						if j > pinfo.lastUseStage {
							pinfo.lastUseStage = j
							debugPrint("copy %d: last use moved to %d (buffer %s)",
								pinfo.originalOrder, j, read.Buffer.Name)
						}
					}
				}
			}
			for _, write := range infos[j].writes {
				for _, own := range pinfo.writes {
					if own.Buffer == write.Buffer && mayConflict(own.Region, write.Region) {
						return &HazardError{
							StageA: pinfo.originalOrder,
							StageB: j,
							Buffer: write.Buffer,
						}
					}
				}
			}
		}
	}
	return nil
}
