// Package classify assigns math problems a domain and structural labels
// using regex heuristics over the problem text and its solution code.
package classify

import "regexp"

// Allowed domains; every resolved classification is one of these.
const (
	DomainAlgebra       = "algebra"
	DomainNumberTheory  = "number_theory"
	DomainCombinatorics = "combinatorics"
	DomainGeometry      = "geometry"
)

// AllowedDomains lists the valid final domains.
var AllowedDomains = []string{DomainAlgebra, DomainNumberTheory, DomainCombinatorics, DomainGeometry}

// DefaultThreshold is the heuristic score margin above which the
// heuristic overrides an LLM-provided domain.
const DefaultThreshold = 6

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// scoringRule awards points when any of its patterns match the target
// field ("code", "text" or "all").
type scoringRule struct {
	patterns []*regexp.Regexp
	points   int
	target   string
}

// domainPatterns holds the signal tables for one domain.
type domainPatterns struct {
	rules []scoringRule

	// penalties name cross-domain conditions that subtract points.
	penalties    []string
	penaltyScore int
}

// Number theory.
var (
	ntHardOverride = compileAll([]string{
		`≡`, `\bmod\b`, `\bgcd\b`, `\blcm\b`, `\bisprime\b`, `\bfactorint\b`,
		`\bmod_inverse\b`, `\bcrt\b`, `\bvaluation\b`, `\bv_p\b`,
		`pow\s*\([^,]+,[^,]+,[^)]+\)`,
	})
	ntCode = compileAll([]string{
		`\bgcd\b`, `\bigcd\b`, `\bisprime\b`, `\bfactorint\b`, `\bprimerange\b`,
		`\bmod_inverse\b`, `\bcrt\b`, `\bvaluation\b`, `\bv_p\b`,
		`pow\s*\([^,]+,[^,]+,[^)]+\)`,
	})
	ntText = compileAll([]string{
		`≡`, `\bmod\b`, `\bremainder\b`, `\bdivides\b`, `\bgcd\b`, `\blcm\b`,
		`\bprime\b`, `\bcomposite\b`,
	})
	ntTextSecondary = compileAll([]string{
		`\bdiophantine\b`, `highest\s+power\s+of\s+p\s+dividing`,
	})
	ntPlan = compileAll([]string{
		`work\s+modulo`, `prime\s+factorization`, `divisibility`,
	})

	numberTheoryPatterns = domainPatterns{
		rules: []scoringRule{
			{ntCode, 6, "code"},
			{ntText, 5, "text"},
			{ntTextSecondary, 3, "text"},
			{ntPlan, 4, "text"},
		},
		penalties:    []string{"combinatorial_enumeration"},
		penaltyScore: -4,
	}
)

// Algebra.
var (
	algHardOverride = compileAll([]string{
		`\bMatrix\b`, `\bdet\b`, `\btrace\b`, `\brank\b`, `\beigen\b`,
		`\bPoly\b`, `\bgroebner\b`, `\bsolve\b`, `\blinsolve\b`,
	})
	algCode = compileAll([]string{
		`\bsolve\b`, `\blinsolve\b`, `\bPoly\b`, `\bgroebner\b`, `\bMatrix\b`,
		`\bdet\b`, `\btrace\b`, `\brank\b`, `\beigen\b`,
	})
	algText = compileAll([]string{
		`\bpolynomial\b`, `\broots\b`, `\bdegree\b`, `\bcoefficients?\b`,
		`functional\s+equation`, `system\s+of\s+equations`, `\bmatrix\b`,
		`\bdeterminant\b`, `\btrace\b`, `vector\s+space`, `linear\s+transformation`,
	})
	algTextSecondary = compileAll([]string{
		`\bAM-GM\b`, `\bCauchy\b`, `\bJensen\b`, `\bSchur\b`,
		`\binequality\b`, `\binequalities\b`,
	})
	algPlan = compileAll([]string{
		`solve\s+for`, `find\s+all\s+functions`, `analyze\s+roots`, `analyze\s+coefficients`,
	})

	algebraPatterns = domainPatterns{
		rules: []scoringRule{
			{algCode, 6, "code"},
			{algText, 5, "text"},
			{algTextSecondary, 3, "text"},
			{algPlan, 4, "text"},
		},
		penalties:    []string{"strong_nt"},
		penaltyScore: -4,
	}
)

// Geometry. The hard override requires two distinct strong objects in the
// problem text.
var (
	geomHardOverride = compileAll([]string{
		`\btriangle\b`, `\bcircle\b`, `\bangle\b`, `\bperpendicular\b`,
		`\bparallel\b`, `\btangent\b`, `\bchord\b`, `\barc\b`,
		`\bcircumcircle\b`, `\bincircle\b`, `\bmidpoint\b`, `\bbisector\b`,
		`\borthocenter\b`, `\bincenter\b`, `\bcircumcenter\b`,
		`∠`, `°`, `Ω`, `ω`,
	})
	geomPlan = compileAll([]string{
		`let\s+points?\s+[A-Z]`, `\bintersection\b`, `\bconstruct\b`,
		`\breflection\b`, `\bhomothety\b`,
	})
	geomCode = compileAll([]string{
		`sympy\.geometry`, `\bPoint\b`, `\bLine\b`, `\bCircle\b`,
	})

	geometryPatterns = domainPatterns{
		rules: []scoringRule{
			{geomHardOverride, 6, "text"},
			{geomPlan, 4, "text"},
			{geomCode, 6, "code"},
		},
		penalties:    []string{"strong_nt"},
		penaltyScore: -4,
	}
)

// Combinatorics. The hard override requires both code and text signals
// and no strong NT or algebra tokens.
var (
	combCodeItertools = compileAll([]string{
		`itertools\.combinations`, `itertools\.permutations`, `itertools\.product`,
	})
	combCodeEnumeration = compileAll([]string{
		`subset`, `bitmask`, `1\s*<<`, `bin\(`,
	})
	combCodeString = compileAll([]string{
		`'\d+'|"\d+"`, `\.issubset\b`, `\bin\s+str\(`,
	})
	combText = compileAll([]string{
		`how\s+many`, `number\s+of\s+ways`, `\barrangements?\b`,
		`\bpermutation\b`, `\bcombination\b`, `\bchoose\b`, `\bcount\b`,
		`exactly\s+k\s+of`, `\bsubstring\b`, `\bforbidden\b`, `\bavoid\b`,
		`\bgraph\b`, `\bmatching\b`, `\bcoloring\b`, `\binvariant\b`, `\bgame\b`,
	})
	combPlan = compileAll([]string{
		`\benumerate\b`, `generate\s+all`, `\bfilter\b`, `brute\s+force`,
	})
	combHardCode = compileAll([]string{
		`itertools\.combinations`, `itertools\.permutations`, `itertools\.product`,
		`\bsubset\b`, `\bbitmask\b`,
	})
	combHardText = compileAll([]string{
		`\barrangements?\b`, `\bcounting\b`, `number\s+of\s+ways`,
		`exact\s+counts?`, `\bforbidden\b`, `\bsubstrings?\b`,
		`\bgraph\b`, `\bmatchings?\b`,
	})

	combinatoricsPatterns = domainPatterns{
		rules: []scoringRule{
			{combCodeItertools, 5, "code"},
			{combCodeEnumeration, 5, "code"},
			{combCodeString, 3, "code"},
			{combText, 4, "text"},
			{combPlan, 4, "text"},
		},
		penalties:    []string{"strong_nt", "strong_alg"},
		penaltyScore: -4,
	}
)

func countMatches(text string, patterns []*regexp.Regexp) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			count++
		}
	}
	return count
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	return countMatches(text, patterns) > 0
}
