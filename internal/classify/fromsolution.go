package classify

import (
	"regexp"
	"strings"
)

// FromSolution holds the structural labels extracted from solution code.
type FromSolution struct {
	ReasoningShape        string `json:"reasoning_shape,omitempty"`
	CaseSplit             string `json:"case_split,omitempty"`
	AuxiliaryConstruction string `json:"auxiliary_construction,omitempty"`
	ReasoningDepth        string `json:"reasoning_depth,omitempty"`
	IntermediateReuse     string `json:"intermediate_reuse,omitempty"`
}

var (
	reDef        = regexp.MustCompile(`(?m)^\s*def\s+(\w+)\s*\(`)
	reIf         = regexp.MustCompile(`(?m)^\s*if\s+`)
	reElif       = regexp.MustCompile(`(?m)^\s*elif\s+`)
	reElse       = regexp.MustCompile(`(?m)^\s*else\s*:`)
	reCaseLabel  = regexp.MustCompile(`\b[Cc]ase\s+(\d+)`)
	reAssignment = regexp.MustCompile(`(?m)^\s*([a-zA-Z_]\w*)\s*=[^=]`)

	structuralPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*def\s+\w+\s*\(`),
		regexp.MustCompile(`(?m)^\s*class\s+\w+`),
		regexp.MustCompile(`\bdefaultdict\b`),
		regexp.MustCompile(`\bCounter\b`),
		regexp.MustCompile(`\bdeque\b`),
		regexp.MustCompile(`\bheapq\b`),
	}

	stepPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*[a-zA-Z_]\w*\s*[+\-*/]?=`),
		reIf,
		reElif,
		regexp.MustCompile(`(?m)^\s*for\s+`),
		regexp.MustCompile(`(?m)^\s*while\s+`),
		regexp.MustCompile(`(?m)^\s*return\b`),
	}
)

// skipVars are common throwaway names ignored when deciding whether
// assignments are meaningful.
var skipVars = map[string]bool{
	"_": true, "i": true, "j": true, "k": true, "n": true, "m": true,
	"x": true, "y": true, "f": true, "line": true, "ans": true,
	"result": true, "res": true, "ret": true, "output": true,
	"answer": true, "MOD": true, "mod": true, "INF": true, "inf": true,
}

func caseLabelCount(code string) int {
	labels := make(map[string]bool)
	for _, m := range reCaseLabel.FindAllStringSubmatch(code, -1) {
		labels[m[1]] = true
	}
	return len(labels)
}

// ExtractReasoningShape classifies the solution as "linear" or
// "branching". A single if/else pair is common control flow, not
// branching reasoning; elif chains and Case labels are.
func ExtractReasoningShape(code string) string {
	if code == "" {
		return "linear"
	}
	ifCount := len(reIf.FindAllString(code, -1))
	elifCount := len(reElif.FindAllString(code, -1))
	elseCount := len(reElse.FindAllString(code, -1))

	if elifCount+caseLabelCount(code) >= 1 || (ifCount >= 2 && elseCount >= 2) {
		return "branching"
	}
	return "linear"
}

// ExtractCaseSplit detects case splitting: "none", "binary" or "multi".
func ExtractCaseSplit(code string) string {
	if code == "" {
		return "none"
	}
	nCases := caseLabelCount(code)
	elifCount := len(reElif.FindAllString(code, -1))
	ifCount := len(reIf.FindAllString(code, -1))
	elseCount := len(reElse.FindAllString(code, -1))

	switch {
	case nCases >= 3 || elifCount >= 2:
		return "multi"
	case nCases == 2 || elifCount == 1:
		return "binary"
	case ifCount >= 1 && elseCount >= 1:
		return "binary"
	}
	return "none"
}

// ExtractAuxiliaryConstruction detects auxiliary constructions:
// "structural" (helper functions, custom data structures), "symbolic"
// (three or more meaningful assignments), or "none".
func ExtractAuxiliaryConstruction(code string) string {
	if code == "" {
		return "none"
	}
	for _, p := range structuralPatterns {
		if p.MatchString(code) {
			return "structural"
		}
	}
	meaningful := 0
	for _, m := range reAssignment.FindAllStringSubmatch(code, -1) {
		if !skipVars[m[1]] {
			meaningful++
		}
	}
	if meaningful >= 3 {
		return "symbolic"
	}
	return "none"
}

// ExtractReasoningDepth estimates reasoning depth from step count and
// maximum indentation: "shallow", "medium" or "deep".
func ExtractReasoningDepth(code string) string {
	if code == "" {
		return "shallow"
	}
	steps := 0
	for _, p := range stepPatterns {
		steps += len(p.FindAllString(code, -1))
	}
	maxIndent := 0
	for _, line := range strings.Split(code, "\n") {
		stripped := strings.TrimLeft(line, " \t")
		if stripped == "" {
			continue
		}
		if level := (len(line) - len(stripped)) / 4; level > maxIndent {
			maxIndent = level
		}
	}

	switch {
	case steps <= 8 && maxIndent <= 2:
		return "shallow"
	case steps >= 25 || maxIndent >= 5:
		return "deep"
	}
	return "medium"
}

// ExtractIntermediateReuse counts how many assigned variables are
// referenced again downstream: "none", "single" (1-2) or "multiple" (3+).
func ExtractIntermediateReuse(code string) string {
	if code == "" {
		return "none"
	}
	lines := strings.Split(code, "\n")

	type assignment struct {
		name string
		line int
	}
	var assigned []assignment
	for i, line := range lines {
		if m := reAssignment.FindStringSubmatch(line); m != nil && !skipVars[m[1]] {
			assigned = append(assigned, assignment{m[1], i})
		}
	}
	if len(assigned) == 0 {
		return "none"
	}

	reused := 0
	for _, a := range assigned {
		ref := regexp.MustCompile(`\b` + regexp.QuoteMeta(a.name) + `\b`)
		reassign := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(a.name) + `\s*=[^=]`)
		for j := a.line + 1; j < len(lines); j++ {
			if reassign.MatchString(lines[j]) {
				continue
			}
			if ref.MatchString(lines[j]) {
				reused++
				break
			}
		}
	}

	switch {
	case reused >= 3:
		return "multiple"
	case reused >= 1:
		return "single"
	}
	return "none"
}

// detectRecursion reports whether any defined function calls itself,
// which stands in for inductive reasoning.
func detectRecursion(code string) bool {
	if code == "" {
		return false
	}
	for _, m := range reDef.FindAllStringSubmatchIndex(code, -1) {
		name := code[m[2]:m[3]]
		rest := code[m[1]:]
		if regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`).MatchString(rest) {
			return true
		}
	}
	return false
}

// detectCaseAnalysisCode reports case analysis via elif chains or three
// or more Case labels.
func detectCaseAnalysisCode(code string) bool {
	if code == "" {
		return false
	}
	if len(reElif.FindAllString(code, -1)) >= 2 {
		return true
	}
	return caseLabelCount(code) >= 3
}

// ExtractFromSolution runs all code-side extractors.
func ExtractFromSolution(code string) FromSolution {
	return FromSolution{
		ReasoningShape:        ExtractReasoningShape(code),
		CaseSplit:             ExtractCaseSplit(code),
		AuxiliaryConstruction: ExtractAuxiliaryConstruction(code),
		ReasoningDepth:        ExtractReasoningDepth(code),
		IntermediateReuse:     ExtractIntermediateReuse(code),
	}
}
