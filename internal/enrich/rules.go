package enrich

import "regexp"

// Priority levels.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Category buckets.
type Category string

const (
	CategoryFinancial Category = "Financial"
	CategoryLegal     Category = "Legal"
	CategoryHR        Category = "HR"
	CategoryIT        Category = "IT"
	CategoryGeneral   Category = "General"
)

// Rule tags a result onto text that matches Pattern. Rule lists are
// evaluated in order and the first match wins.
type Rule[T any] struct {
	Name    string
	Pattern *regexp.Regexp
	Result  T
}

func rule[T any](name, pattern string, result T) Rule[T] {
	return Rule[T]{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Result: result}
}

// firstMatch returns the result of the first rule matching text.
func firstMatch[T any](rules []Rule[T], text string, fallback T) (T, string) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r.Result, r.Name
		}
	}
	return fallback, ""
}

// DefaultPriorityRules flags urgency first, then routine correspondence.
func DefaultPriorityRules() []Rule[Priority] {
	return []Rule[Priority]{
		rule("urgent", `\burgent[ea]?s?\b|\burgência\b|\burgencia\b`, PriorityHigh),
		rule("injunction", `\bliminar(es)?\b|\binjunction\b`, PriorityHigh),
		rule("writ", `\bmandado de seguran[çc]a\b|\bwrit\b`, PriorityHigh),
		rule("deadline", `\bprazos?\b|\bdeadline\b`, PriorityHigh),
		rule("immediate", `\bimediat[ao]\w*|\bimmediate\w*`, PriorityHigh),
		rule("priority", `\bprioridade\b|\bpriorit[áa]ri[oa]\b|\bpriority\b`, PriorityHigh),
		rule("due", `\bvencimento\b|\bvence\b|\bdue\b`, PriorityHigh),
		rule("delay", `\batraso\b|\batrasad[oa]\b|\bdelay(ed)?\b`, PriorityHigh),

		rule("memo", `\bmemorando\b|\bmemo\b`, PriorityMedium),
		rule("official-letter", `\bof[íi]cio\b`, PriorityMedium),
		rule("request", `\bsolicita[çc][ãa]o\b|\brequerimento\b|\brequest\b`, PriorityMedium),
	}
}

// DefaultCategoryRules are checked Financial, Legal, HR, IT.
func DefaultCategoryRules() []Rule[Category] {
	return []Rule[Category]{
		rule("financial", `financ|pagamento|or[çc]ament|empenho|licita[çc]|preg[ãa]o|nota fiscal|despesa|aquisi[çc]|compra|contrato`, CategoryFinancial),
		rule("legal", `jur[íi]dic|judicial|liminar|mandado|parecer|procuradoria|recurso administrativo|advocacia|sindic[âa]ncia`, CategoryLegal),
		rule("hr", `f[ée]rias|servidor|pessoal|recursos humanos|\brh\b|nomea[çc]|exonera[çc]|aposentadoria|licen[çc]a|folha de pagamento`, CategoryHR),
		rule("it", `tecnologia|inform[áa]tica|\bti\b|sistema|software|hardware|computador|rede l[óo]gica|suporte t[ée]cnico`, CategoryIT),
	}
}
