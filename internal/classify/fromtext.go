package classify

import "regexp"

// FromText holds the labels extracted from a problem statement.
type FromText struct {
	Domain      string   `json:"domain,omitempty"`
	Objects     []string `json:"objects,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Mechanisms  []string `json:"mechanisms,omitempty"`
	OutputType  string   `json:"output_type,omitempty"`
}

const (
	maxObjects     = 3
	maxConstraints = 4
	maxMechanisms  = 3
)

type labelPatterns struct {
	label    string
	patterns []*regexp.Regexp
}

var objectPatterns = []labelPatterns{
	{"integer", compileAll([]string{`\bintegers?\b`, `\bn\s*[∈∊]\s*ℤ\b`, `\bwhole\s+numbers?\b`})},
	{"positive_integer", compileAll([]string{`\bpositive\s+integers?\b`, `\bnatural\s+numbers?\b`, `\bn\s*[∈∊]\s*ℕ\b`, `\bnonnegative\s+integers?\b`})},
	{"real", compileAll([]string{`\breals?\b`, `\breal\s+numbers?\b`, `\bℝ\b`})},
	{"rational", compileAll([]string{`\brationals?\b`, `\brational\s+numbers?\b`, `\bℚ\b`})},
	{"complex", compileAll([]string{`\bcomplex\s+numbers?\b`, `\bℂ\b`, `\bimaginary\b`})},
	{"sequence", compileAll([]string{`\bsequences?\b`, `\ba_n\b`, `\ba_\{?\d+\}?\b`})},
	{"set", compileAll([]string{`\bsets?\b\s+(?:of|S|A|B)`, `\bsubsets?\b`, `\bempty\s+set\b`})},
	{"function", compileAll([]string{`\bfunctions?\b`, `\bf\s*:\s*`, `\bf\s*\(\s*[a-z]\s*\)`})},
	{"polynomial", compileAll([]string{`\bpolynomials?\b`, `\bdegree\s+\d`, `\bP\s*\(\s*x\s*\)`})},
	{"point", compileAll([]string{`\bpoints?\b`, `\bvertices\b`, `\bvertex\b`})},
	{"line", compileAll([]string{`\blines?\b`, `\bsegments?\b`, `\brays?\b`})},
	{"circle", compileAll([]string{`\bcircles?\b`, `\bradius\b`, `\bdiameters?\b`})},
	{"triangle", compileAll([]string{`\btriangles?\b`, `△`})},
	{"polygon", compileAll([]string{`\bpolygons?\b`, `\bquadrilaterals?\b`, `\bpentagons?\b`, `\bhexagons?\b`, `\brectangles?\b`, `\bsquares?\b`})},
	{"graph", compileAll([]string{`\bgraphs?\b`, `\bedges?\b.*\bvertices\b`, `\bvertices\b.*\bedges?\b`})},
	{"matrix", compileAll([]string{`\bmatrix\b`, `\bmatrices\b`})},
	{"vector", compileAll([]string{`\bvectors?\b`})},
}

var constraintPatterns = []labelPatterns{
	{"equality", compileAll([]string{`(^|[^<>!=])=([^=]|$)`, `\bequals?\b`, `\bequal\s+to\b`})},
	{"inequality", compileAll([]string{`[<>≥≤≠]`, `\bgreater\s+than\b`, `\bless\s+than\b`, `\bat\s+least\b`, `\bat\s+most\b`, `\binequality\b`, `\binequalities\b`})},
	{"divisibility", compileAll([]string{`\bdivides\b`, `\bdivisible\b`, `\bfactor\s+of\b`, `\bmultiple\s+of\b`})},
	{"parity", compileAll([]string{`\beven\b`, `\bodd\b`, `\bparity\b`})},
	{"forall", compileAll([]string{`\bfor\s+all\b`, `\bfor\s+every\b`, `\bfor\s+each\b`, `∀`})},
	{"exists", compileAll([]string{`\bthere\s+exists?\b`, `\bfind\b.*\bsuch\s+that\b`, `∃`})},
	{"bounded", compileAll([]string{`\bbounded\b`, `\bbetween\b`, `\d\s*[≤<].*[≤<]\s*\d`})},
	{"distinct", compileAll([]string{`\bdistinct\b`, `\bno\s+two\b.*\bsame\b`})},
	{"monotonic", compileAll([]string{`\bincreasing\b`, `\bdecreasing\b`, `\bmonotonic\b`, `\bnon-decreasing\b`, `\bnon-increasing\b`})},
	{"symmetry", compileAll([]string{`\bsymmetric\b`, `\bsymmetry\b`})},
	{"invariant", compileAll([]string{`\binvariant\b`})},
}

// Ordered by priority; the first matching rule decides the output type.
var outputTypeRules = []labelPatterns{
	{"proof", compileAll([]string{`\bprove\b`, `\bshow\s+that\b`})},
	{"existence", compileAll([]string{`\bdoes\s+there\s+exist\b`, `\bis\s+there\b.*\?`})},
	{"non_existence", compileAll([]string{`\bno\s+such\b`, `\bcannot\s+exist\b`, `\bimpossible\b`})},
	{"classification", compileAll([]string{`\bfind\s+all\b`, `\bdetermine\s+all\b`, `\bcharacterize\b`})},
	{"maximum", compileAll([]string{`\bmaximum\b`, `\blargest\b`, `\bgreatest\b`})},
	{"minimum", compileAll([]string{`\bminimum\b`, `\bsmallest\b`, `\bleast\b`})},
	{"exact_value", compileAll([]string{`\bfind\b`, `\bcompute\b`, `\bcalculate\b`, `\bdetermine\b`, `\bwhat\s+is\b`, `\bhow\s+many\b`, `\bevaluate\b`})},
}

var mechanismTextPatterns = []labelPatterns{
	{"induction", compileAll([]string{`\binduction\b`, `\binductive\b`, `\bbase\s+case\b`})},
	{"pigeonhole", compileAll([]string{`\bpigeonhole\b`, `\bDirichlet\b`})},
	{"extremal", compileAll([]string{`\bextremal\b`, `\bminimal\s+counterexample\b`})},
	{"case_analysis", compileAll([]string{`\bconsider\s+cases\b`, `\bCase\s+1\b`, `\bWLOG\b`})},
	{"invariant", compileAll([]string{`\binvariant\b`, `\bremains\s+constant\b`, `\bremains\s+unchanged\b`})},
	{"monovariant", compileAll([]string{`\bmonovariant\b`})},
	{"algebraic_manipulation", compileAll([]string{`\bVieta\b`, `\bAM-GM\b`, `\bCauchy-Schwarz\b`, `\bfactorize\b`, `\bsubstitution\b`})},
	{"geometric_congruence", compileAll([]string{`\bcongruent\b.*\btriangle\b`, `\btriangle\b.*\bcongruent\b`, `\bSAS\b`, `\bASA\b`, `\bSSS\b`, `\bAAS\b`})},
	{"geometric_similarity", compileAll([]string{`\bsimilar\s+triangles\b`, `\bhomothety\b`})},
	{"counting", compileAll([]string{`\bhow\s+many\b`, `\bnumber\s+of\s+ways\b`, `\bcombinations?\b`, `\bpermutations?\b`})},
}

var mechanismCodePatterns = []labelPatterns{
	{"counting", compileAll([]string{`itertools\.combinations\b`, `itertools\.permutations\b`, `itertools\.product\b`, `\bmath\.comb\b`, `\bmath\.factorial\b`})},
	{"algebraic_manipulation", compileAll([]string{`\bimport\s+sympy\b`, `\bfrom\s+sympy\b`, `\bsolve\s*\(`, `\bsimplify\s*\(`, `\bexpand\s*\(`, `\bfactor\s*\(`, `\bPoly\s*\(`})},
	{"case_analysis", compileAll([]string{`#\s*[Cc]ase\s+\d`})},
}

// allowedMechanisms filters LLM-provided mechanism labels during merge.
var allowedMechanisms = map[string]bool{
	"induction": true, "pigeonhole": true, "extremal": true,
	"case_analysis": true, "invariant": true, "monovariant": true,
	"algebraic_manipulation": true, "geometric_congruence": true,
	"geometric_similarity": true, "counting": true,
}

var allowedObjects = func() map[string]bool {
	m := make(map[string]bool, len(objectPatterns))
	for _, lp := range objectPatterns {
		m[lp.label] = true
	}
	return m
}()

// ExtractObjects returns the mathematical objects mentioned in the
// problem text, capped at three. positive_integer subsumes integer.
func ExtractObjects(text string) []string {
	if text == "" {
		return nil
	}
	var matched []string
	for _, lp := range objectPatterns {
		if matchesAny(text, lp.patterns) {
			matched = append(matched, lp.label)
		}
	}
	hasPositive := false
	for _, m := range matched {
		if m == "positive_integer" {
			hasPositive = true
		}
	}
	if hasPositive {
		filtered := matched[:0]
		for _, m := range matched {
			if m != "integer" {
				filtered = append(filtered, m)
			}
		}
		matched = filtered
	}
	if len(matched) > maxObjects {
		matched = matched[:maxObjects]
	}
	return matched
}

// ExtractConstraints returns the constraint types present in the problem
// text, capped at four.
func ExtractConstraints(text string) []string {
	if text == "" {
		return nil
	}
	var matched []string
	for _, lp := range constraintPatterns {
		if matchesAny(text, lp.patterns) {
			matched = append(matched, lp.label)
			if len(matched) == maxConstraints {
				break
			}
		}
	}
	return matched
}

// ExtractOutputType determines the question intent of the problem text.
// Defaults to exact_value.
func ExtractOutputType(text string) string {
	if text == "" {
		return ""
	}
	for _, rule := range outputTypeRules {
		if matchesAny(text, rule.patterns) {
			return rule.label
		}
	}
	return "exact_value"
}

// ExtractMechanisms returns the solution mechanisms signalled by the
// problem text and the solution code, capped at three. Text patterns are
// checked first, then code patterns, then structural detectors.
func ExtractMechanisms(f Fields) []string {
	var matched []string
	seen := make(map[string]bool)
	add := func(label string) {
		if !seen[label] && len(matched) < maxMechanisms {
			matched = append(matched, label)
			seen[label] = true
		}
	}

	for _, lp := range mechanismTextPatterns {
		if matchesAny(f.Text, lp.patterns) {
			add(lp.label)
		}
	}
	for _, lp := range mechanismCodePatterns {
		if matchesAny(f.Code, lp.patterns) {
			add(lp.label)
		}
	}
	if detectRecursion(f.Code) {
		add("induction")
	}
	if detectCaseAnalysisCode(f.Code) {
		add("case_analysis")
	}
	return matched
}

// ExtractFromText runs all text-side extractors.
func ExtractFromText(f Fields) FromText {
	return FromText{
		Objects:     ExtractObjects(f.Text),
		Constraints: ExtractConstraints(f.Text),
		Mechanisms:  ExtractMechanisms(f),
		OutputType:  ExtractOutputType(f.Text),
	}
}
