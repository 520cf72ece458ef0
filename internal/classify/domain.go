package classify

import (
	"fmt"
	"sort"
	"strings"
)

// Fields is the text extracted from one problem record: the problem
// statement, its solution code, and both concatenated.
type Fields struct {
	Text string
	Code string
	All  string
}

// NewFields builds a Fields from a problem statement and solution code.
func NewFields(text, code string) Fields {
	return Fields{Text: text, Code: code, All: text + " " + code}
}

func (f Fields) target(name string) string {
	switch name {
	case "code":
		return f.Code
	case "text":
		return f.Text
	default:
		return f.All
	}
}

// signals available to penalty conditions.
func strongNT(f Fields) bool  { return matchesAny(f.All, ntHardOverride) }
func strongAlg(f Fields) bool { return matchesAny(f.All, algHardOverride) }

func combinatorialEnumeration(f Fields) bool {
	hasComb := matchesAny(f.Code, combCodeItertools) || matchesAny(f.Code, combCodeEnumeration)
	return hasComb && !strongNT(f)
}

// Score computes the non-negative heuristic score for one domain.
func Score(domain string, f Fields) int {
	var patterns domainPatterns
	switch domain {
	case DomainNumberTheory:
		patterns = numberTheoryPatterns
	case DomainAlgebra:
		patterns = algebraPatterns
	case DomainGeometry:
		patterns = geometryPatterns
	case DomainCombinatorics:
		patterns = combinatoricsPatterns
	default:
		return 0
	}

	score := 0
	for _, rule := range patterns.rules {
		if matchesAny(f.target(rule.target), rule.patterns) {
			score += rule.points
		}
	}
	for _, cond := range patterns.penalties {
		switch cond {
		case "strong_nt":
			if strongNT(f) {
				score += patterns.penaltyScore
			}
		case "strong_alg":
			if strongAlg(f) {
				score += patterns.penaltyScore
			}
		case "combinatorial_enumeration":
			if combinatorialEnumeration(f) {
				score += patterns.penaltyScore
			}
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// Scores computes heuristic scores for all domains.
func Scores(f Fields) map[string]int {
	out := make(map[string]int, len(AllowedDomains))
	for _, d := range AllowedDomains {
		out[d] = Score(d, f)
	}
	return out
}

// ranking returns the best domain, the runner-up, and the score margin
// between them. Ties break alphabetically for determinism.
func ranking(scores map[string]int) (best, second string, margin int) {
	domains := make([]string, 0, len(scores))
	for d := range scores {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if scores[domains[i]] != scores[domains[j]] {
			return scores[domains[i]] > scores[domains[j]]
		}
		return domains[i] < domains[j]
	})
	best = domains[0]
	second = best
	if len(domains) > 1 {
		second = domains[1]
	}
	return best, second, scores[best] - scores[second]
}

// hardOverride checks forced-domain rules in priority order: geometry
// (two strong objects in the text), then number theory, then algebra,
// then combinatorics. Returns "" when no rule fires.
func hardOverride(f Fields) string {
	if countMatches(f.Text, geomHardOverride) >= 2 {
		return DomainGeometry
	}
	if matchesAny(f.All, ntHardOverride) {
		return DomainNumberTheory
	}
	if matchesAny(f.All, algHardOverride) {
		return DomainAlgebra
	}
	if matchesAny(f.Code, combHardCode) && matchesAny(f.Text, combHardText) {
		return DomainCombinatorics
	}
	return ""
}

// domainNormalization maps LLM domains outside the allowed set onto
// allowed ones. "mixed" maps to "" so the heuristic decides.
var domainNormalization = map[string]string{
	"arithmetic":           DomainAlgebra,
	"probability":          DomainCombinatorics,
	"inequalities":         DomainAlgebra,
	"functional_equations": DomainAlgebra,
	"mixed":                "",
}

// NormalizeDomain maps a raw LLM-provided domain onto the allowed set,
// returning "" when it is missing, ambiguous, or unrecognised.
func NormalizeDomain(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, d := range AllowedDomains {
		if raw == d {
			return d
		}
	}
	return domainNormalization[raw]
}

// DomainMeta records how a domain decision was made.
type DomainMeta struct {
	LLMDomain    string         `json:"llm_domain,omitempty"`
	HeurScores   map[string]int `json:"heur_scores"`
	HeurBest     string         `json:"heur_best"`
	HeurMargin   int            `json:"heur_margin"`
	ForcedDomain string         `json:"forced_domain,omitempty"`
	Reason       string         `json:"decision_reason"`
}

// ResolveDomain combines the heuristic scores, hard overrides, and an
// optional LLM-provided domain into a final decision. Precedence: hard
// override, then heuristic fallback when the LLM domain is missing, then
// agreement, then heuristic override when its margin reaches threshold,
// then the LLM domain.
func ResolveDomain(f Fields, llmDomain string, threshold int) (string, DomainMeta) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	llm := NormalizeDomain(llmDomain)
	scores := Scores(f)
	best, _, margin := ranking(scores)
	forced := hardOverride(f)

	meta := DomainMeta{
		LLMDomain:    llm,
		HeurScores:   scores,
		HeurBest:     best,
		HeurMargin:   margin,
		ForcedDomain: forced,
	}

	switch {
	case forced != "":
		meta.Reason = "hard_override:" + forced
		return forced, meta
	case llm == "":
		meta.Reason = "llm_missing_heuristic_fallback"
		if scores[best] > 0 {
			return best, meta
		}
		return DomainAlgebra, meta
	case llm == best:
		meta.Reason = "agree"
		return llm, meta
	case margin >= threshold:
		meta.Reason = fmt.Sprintf("heuristic_override:margin=%d", margin)
		return best, meta
	default:
		meta.Reason = "llm_default"
		return llm, meta
	}
}
