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

// Command tlplan plans software pipelining for tile-level kernels.
//
// Usage:
//
//	tlplan -input matmul.tl                  # plan for sm_80, print to stdout
//	tlplan -input matmul.tl -target sm_90
//	tlplan -input matmul.tl -target host -o matmul_planned.tl
//
// The input is a kernel in the compact textual form (see ParseKernel). Every
// serial loop annotated with @pipeline(num_stages = N) is rewritten with
// per-statement order and stage arrays; on targets with asynchronous copy
// support (sm_80 and newer) stage 0 is additionally marked async. A -target
// given on the command line overrides a @target attribute in the file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ajroetker/go-tilepipe/pipeline"
	"github.com/ajroetker/go-tilepipe/target"
	"github.com/ajroetker/go-tilepipe/tir"
)

var (
	inputFile  = flag.String("input", "", "Input kernel file (required)")
	targetName = flag.String("target", "", "Target: sm_NN or host (default: the kernel's @target, else sm_80)")
	outputFile = flag.String("o", "", "Output file (default: stdout)")
)

func main() {
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	out, err := run(*inputFile, *targetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *outputFile == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses, plans and formats one kernel file.
func run(path, targetOverride string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fn, err := parseWithTarget(string(src), targetOverride)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	planned, err := pipeline.Plan(fn)
	if err != nil {
		return "", err
	}
	return tir.FormatFunction(planned), nil
}

// parseWithTarget parses kernel text and resolves its target: the override
// wins, then the kernel's @target attribute, then sm_80.
func parseWithTarget(src, targetOverride string) (*tir.Function, error) {
	fn, kernelTarget, err := ParseKernel(src)
	if err != nil {
		return nil, err
	}
	name := targetOverride
	if name == "" {
		name = kernelTarget
	}
	if name == "" {
		name = "sm_80"
	}
	tgt, err := target.Parse(name)
	if err != nil {
		return nil, err
	}
	fn.Attrs = map[string]any{"target": tgt}
	return fn, nil
}
