package classify

// Structure is the math_structure section of a problem record: the
// resolved domain plus text- and solution-side labels. FromText and
// FromSolution may carry LLM-provided values before the consensus merge.
type Structure struct {
	Domain        string               `json:"domain,omitempty"`
	DomainMeta    *DomainMeta          `json:"domain_meta,omitempty"`
	FromText      *FromText            `json:"from_text,omitempty"`
	FromSolution  *FromSolution        `json:"from_solution,omitempty"`
	ConsensusMeta map[string]FieldMeta `json:"consensus_meta,omitempty"`
}

// FieldMeta records how one field's consensus value was chosen.
type FieldMeta struct {
	Source       string `json:"source"`     // "heuristic", "llm" or "merged"
	Confidence   string `json:"confidence"` // "high", "med" or "low"
	Disagreement bool   `json:"disagreement"`
}

// Merge combines heuristic extraction with an optional LLM-provided
// structure. Heuristics win on solution-side fields (they see the actual
// code); LLM values fill gaps and extend capped lists on text-side
// fields. The result's DomainMeta and ConsensusMeta describe every
// decision.
func Merge(f Fields, llm *Structure, threshold int) *Structure {
	heurText := ExtractFromText(f)
	heurSol := ExtractFromSolution(f.Code)

	var llmText FromText
	var llmSol FromSolution
	llmDomain := ""
	if llm != nil {
		llmDomain = llm.Domain
		if llm.FromText != nil {
			llmText = *llm.FromText
			if llmDomain == "" {
				llmDomain = llmText.Domain
			}
		}
		if llm.FromSolution != nil {
			llmSol = *llm.FromSolution
		}
	}

	domain, domainMeta := ResolveDomain(f, llmDomain, threshold)
	meta := make(map[string]FieldMeta)

	// Solution-side fields: heuristic always wins; the LLM value only
	// flags disagreement, except auxiliary_construction, where an LLM
	// "structural" upgrades a heuristic "none".
	sol := FromSolution{
		ReasoningShape:        heurSol.ReasoningShape,
		CaseSplit:             heurSol.CaseSplit,
		AuxiliaryConstruction: heurSol.AuxiliaryConstruction,
		ReasoningDepth:        heurSol.ReasoningDepth,
		IntermediateReuse:     heurSol.IntermediateReuse,
	}
	meta["reasoning_shape"] = FieldMeta{
		Source:       "heuristic",
		Confidence:   confidenceWhen(heurSol.ReasoningShape != "linear"),
		Disagreement: llmSol.ReasoningShape != "" && llmSol.ReasoningShape != heurSol.ReasoningShape,
	}
	meta["case_split"] = FieldMeta{
		Source:       "heuristic",
		Confidence:   confidenceWhen(heurSol.CaseSplit != "none"),
		Disagreement: llmSol.CaseSplit != "" && llmSol.CaseSplit != heurSol.CaseSplit,
	}
	auxMeta := FieldMeta{Source: "heuristic", Confidence: "med"}
	switch {
	case heurSol.AuxiliaryConstruction == "structural":
		auxMeta.Confidence = "high"
	case heurSol.AuxiliaryConstruction == "none" && llmSol.AuxiliaryConstruction == "structural":
		sol.AuxiliaryConstruction = "structural"
		auxMeta = FieldMeta{Source: "llm", Confidence: "low", Disagreement: true}
	}
	if auxMeta.Source == "heuristic" {
		auxMeta.Disagreement = llmSol.AuxiliaryConstruction != "" && llmSol.AuxiliaryConstruction != sol.AuxiliaryConstruction
	}
	meta["auxiliary_construction"] = auxMeta
	meta["reasoning_depth"] = FieldMeta{
		Source:       "heuristic",
		Confidence:   "med",
		Disagreement: llmSol.ReasoningDepth != "" && llmSol.ReasoningDepth != heurSol.ReasoningDepth,
	}
	meta["intermediate_reuse"] = FieldMeta{
		Source:       "heuristic",
		Confidence:   "med",
		Disagreement: llmSol.IntermediateReuse != "" && llmSol.IntermediateReuse != heurSol.IntermediateReuse,
	}

	// Text-side fields.
	text := FromText{OutputType: heurText.OutputType}
	var m FieldMeta
	text.Objects, m = unionCapped(heurText.Objects, llmText.Objects, allowedObjects, maxObjects)
	meta["objects"] = m
	text.Mechanisms, m = unionCapped(heurText.Mechanisms, llmText.Mechanisms, allowedMechanisms, maxMechanisms)
	meta["mechanisms"] = m
	text.Constraints, m = mergeConstraints(heurText.Constraints, llmText.Constraints, f.Text)
	meta["constraints"] = m

	outMeta := FieldMeta{Source: "heuristic", Confidence: "med"}
	if heurText.OutputType != "" && heurText.OutputType != "exact_value" {
		outMeta.Confidence = "high"
	} else if llmText.OutputType != "" && llmText.OutputType != "exact_value" && outputTypeConfirmed(llmText.OutputType, f.Text) {
		text.OutputType = llmText.OutputType
		outMeta = FieldMeta{Source: "llm", Confidence: "med", Disagreement: true}
	}
	if text.OutputType == "" {
		text.OutputType = "exact_value"
	}
	if outMeta.Source == "heuristic" {
		outMeta.Disagreement = llmText.OutputType != "" && llmText.OutputType != text.OutputType
	}
	meta["output_type"] = outMeta

	return &Structure{
		Domain:        domain,
		DomainMeta:    &domainMeta,
		FromText:      &text,
		FromSolution:  &sol,
		ConsensusMeta: meta,
	}
}

func confidenceWhen(high bool) string {
	if high {
		return "high"
	}
	return "med"
}

// unionCapped keeps heuristic values first and appends allowed LLM
// values up to the limit.
func unionCapped(heur, llm []string, allowed map[string]bool, limit int) ([]string, FieldMeta) {
	if len(llm) == 0 {
		conf := "low"
		if len(heur) > 0 {
			conf = "high"
		}
		return capped(heur, limit), FieldMeta{Source: "heuristic", Confidence: conf}
	}

	result := capped(heur, limit)
	seen := make(map[string]bool, len(result))
	for _, v := range result {
		seen[v] = true
	}
	added := false
	for _, v := range llm {
		if allowed[v] && !seen[v] && len(result) < limit {
			result = append(result, v)
			seen[v] = true
			added = true
		}
	}

	m := FieldMeta{Source: "heuristic", Confidence: "high", Disagreement: !sameSet(heur, llm)}
	switch {
	case len(heur) == 0:
		m.Source = "llm"
		m.Confidence = "low"
	case added:
		m.Source = "merged"
		m.Confidence = "med"
	}
	return result, m
}

var (
	forallTriggers = compileAll([]string{`\bfor\s+all\b`, `\bfor\s+every\b`, `\bfor\s+each\b`, `∀`})
	existsTriggers = compileAll([]string{`\bthere\s+exists?\b`, `\bfind\b.*\bsuch\s+that\b`, `∃`})
)

// mergeConstraints takes the heuristic constraints and lets the LLM add
// forall/exists only when the text contains the matching trigger words.
func mergeConstraints(heur, llm []string, text string) ([]string, FieldMeta) {
	if len(llm) == 0 {
		conf := "low"
		if len(heur) > 0 {
			conf = "high"
		}
		return capped(heur, maxConstraints), FieldMeta{Source: "heuristic", Confidence: conf}
	}

	result := capped(heur, maxConstraints)
	seen := make(map[string]bool, len(result))
	for _, v := range result {
		seen[v] = true
	}
	added := false
	for _, c := range llm {
		if seen[c] || (c != "forall" && c != "exists") || len(result) >= maxConstraints {
			continue
		}
		triggers := forallTriggers
		if c == "exists" {
			triggers = existsTriggers
		}
		if matchesAny(text, triggers) {
			result = append(result, c)
			seen[c] = true
			added = true
		}
	}

	m := FieldMeta{Source: "heuristic", Disagreement: !sameSet(heur, llm)}
	if added {
		m.Source = "merged"
	}
	m.Confidence = "low"
	if len(heur) > 0 {
		m.Confidence = "high"
	}
	return result, m
}

// outputTypeConfirmed checks that an LLM-suggested output type is backed
// by explicit trigger words in the problem text.
func outputTypeConfirmed(outputType, text string) bool {
	for _, rule := range outputTypeRules {
		if rule.label == outputType {
			return rule.label != "exact_value" && matchesAny(text, rule.patterns)
		}
	}
	return false
}

func capped(vals []string, limit int) []string {
	out := append([]string(nil), vals...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
