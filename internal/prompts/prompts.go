// Package prompts provides system prompts for mathpipe's LLM stages.
package prompts

import (
	"fmt"
	"strings"
)

// ClassifySystemPrompt is the system prompt for the domain classification stage.
const ClassifySystemPrompt = `You are an expert competition mathematics classifier.
Given a problem statement and its solution code, classify the problem into exactly one domain:
algebra, number_theory, combinatorics, or geometry.
Reply with a single JSON object: {"domain": "<domain>"}.
Do not include explanations or markdown fences.`

// LabelSystemPrompt is the system prompt for the structure labeling stage.
const LabelSystemPrompt = `You are an expert competition mathematics analyst.
Given a problem statement and its solution code, emit a single JSON object with two keys.
"from_text" describes the problem statement:
  objects: up to 3 of integer, positive_integer, real, rational, complex, sequence, set, function, polynomial, point, line, circle, triangle, polygon, graph, matrix, vector
  constraints: up to 4 of equality, inequality, divisibility, parity, forall, exists, bounded, distinct, monotonic, symmetry, invariant
  mechanisms: up to 3 of induction, pigeonhole, extremal, case_analysis, invariant, monovariant, algebraic_manipulation, geometric_congruence, geometric_similarity, counting
  output_type: one of proof, existence, non_existence, classification, maximum, minimum, exact_value
"from_solution" describes the solution code:
  reasoning_shape: linear or branching
  case_split: none, binary, or multi
  auxiliary_construction: none, symbolic, or structural
  reasoning_depth: shallow, medium, or deep
  intermediate_reuse: none, single, or multiple
Only use the listed values. Do not include explanations or markdown fences.`

// maxSolutionChars bounds the solution code included in a user prompt so
// a single oversized record cannot blow the context window.
const maxSolutionChars = 8000

// UserPrompt builds the user message for either LLM stage from a problem
// statement and its solution code.
func UserPrompt(problem, solution string) string {
	solution = truncate(solution, maxSolutionChars)
	if solution == "" {
		return fmt.Sprintf("Problem:\n%s", strings.TrimSpace(problem))
	}
	return fmt.Sprintf("Problem:\n%s\n\nSolution code:\n```python\n%s\n```",
		strings.TrimSpace(problem), strings.TrimSpace(solution))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n# ... truncated"
}
