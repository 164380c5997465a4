package format

import "strings"

// Tier is a named color bucket. Surfaces map tiers onto concrete colors.
type Tier string

// Color tiers used by the badges and charts.
const (
	Green  Tier = "green"
	Blue   Tier = "blue"
	Yellow Tier = "yellow"
	Red    Tier = "red"
	Amber  Tier = "amber"
	Orange Tier = "orange"
	Purple Tier = "purple"
	Teal   Tier = "teal"
	Pink   Tier = "pink"
	Indigo Tier = "indigo"
	Cyan   Tier = "cyan"
	Gray   Tier = "gray"
)

// Urgency levels.
const (
	UrgencyNone   = "none"
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// ScoreTier buckets a 0-10 reputation score.
func ScoreTier(score float64) Tier {
	switch {
	case score >= 8:
		return Green
	case score >= 7:
		return Blue
	case score >= 6:
		return Yellow
	default:
		return Red
	}
}

// UrgencyTier buckets an urgency score. A nil score has no urgency.
func UrgencyTier(score *float64) string {
	if score == nil {
		return UrgencyNone
	}
	switch {
	case *score >= 7:
		return UrgencyHigh
	case *score >= 4:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

type keywordRule struct {
	match func(folded string) bool
	tier  Tier
}

func containsAny(words ...string) func(string) bool {
	return func(s string) bool {
		for _, w := range words {
			if strings.Contains(s, w) {
				return true
			}
		}
		return false
	}
}

// statusRules are evaluated in order; the first match wins. "nao respondida"
// has to precede "respondida" and "nao resolvida" has to precede "resolvid".
var statusRules = []keywordRule{
	{func(s string) bool { return strings.Contains(s, "nao respondida") || s == "pendente" }, Red},
	{containsAny("nao resolvida"), Amber},
	{containsAny("resolvid", "finalizado"), Green},
	{containsAny("respondida", "respondido"), Blue},
	{containsAny("replica", "aguardando"), Orange},
	{containsAny("andamento", "analise"), Purple},
	{containsAny("avaliada", "avaliado"), Teal},
}

var categoryRules = []keywordRule{
	{containsAny("entrega"), Orange},
	{containsAny("atendimento"), Pink},
	{containsAny("financeiro", "cobranca", "estorno"), Green},
	{containsAny("produto", "estoque"), Blue},
	{containsAny("sistema", "site", "app"), Purple},
	{containsAny("troca", "devolucao"), Amber},
	{containsAny("cancelamento"), Red},
	{containsAny("preco"), Cyan},
}

func firstMatch(rules []keywordRule, value string) Tier {
	folded := Fold(value)
	if folded == "" {
		return Gray
	}
	for _, rule := range rules {
		if rule.match(folded) {
			return rule.tier
		}
	}
	return Gray
}

// StatusTier colors a status label after folding case and diacritics.
func StatusTier(status string) Tier {
	return firstMatch(statusRules, status)
}

// CategoryTier colors a category label.
func CategoryTier(category string) Tier {
	return firstMatch(categoryRules, category)
}

// SentimentTier colors a sentiment label.
func SentimentTier(sentiment string) Tier {
	switch sentiment {
	case "Negativo":
		return Red
	case "Positivo":
		return Green
	default:
		return Gray
	}
}

// ReputationTier colors a platform reputation badge.
func ReputationTier(reputation string) Tier {
	switch Fold(reputation) {
	case "ra1000":
		return Purple
	case "otimo":
		return Green
	case "bom":
		return Blue
	case "regular":
		return Yellow
	default:
		return Gray
	}
}
