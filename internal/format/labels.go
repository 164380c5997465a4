// Package format holds the display rules shared by every presentation
// surface: status normalization, tag to category mapping, color tiers and
// truncation.
package format

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cdash/internal/complaint"
)

// NoCategory is shown in table cells for records without any tag.
const NoCategory = "—"

// statusLabels maps raw platform and API status values onto the Portuguese
// display labels.
var statusLabels = map[string]string{
	"ANSWERED":       "Respondida",
	"PENDING":        "Pendente",
	"SOLVED":         "Resolvida",
	"NOT_SOLVED":     "Não Resolvida",
	"EVALUATED":      "Avaliada",
	"Resolvido":      "Resolvida",
	"Resolvida":      "Resolvida",
	"Não Resolvido":  "Não Resolvida",
	"Não resolvida":  "Não Resolvida",
	"Respondida":     "Respondida",
	"Não respondida": "Não Respondida",
	"Pendente":       "Pendente",
}

// tagCategories maps known tag slugs onto category names.
var tagCategories = map[string]string{
	"atraso-entrega":            "Entrega",
	"produto-indisponivel":      "Estoque",
	"atendimento-ruim":          "Atendimento",
	"erro-sistema":              "Sistema",
	"estorno-pendente":          "Financeiro",
	"troca-recusada":            "Troca/Devolucao",
	"cancelamento-problematico": "Cancelamento",
	"cobranca-indevida":         "Financeiro",
	"produto-danificado":        "Produto",
	"preco-errado":              "Preco",
}

// NormalizeStatus returns the display label for a raw status. Unknown
// values pass through unchanged.
func NormalizeStatus(raw string) string {
	if label, ok := statusLabels[raw]; ok {
		return label
	}
	return raw
}

// CategoryOf derives the display category of a record from its tags. The
// first tag found in the known table wins; otherwise the first tag is
// humanized. Records without tags have no category.
func CategoryOf(r complaint.Record) string {
	return CategoryOfTags(r.Tags)
}

// CategoryOfTags is CategoryOf for a bare tag list.
func CategoryOfTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, tag := range tags {
		if cat, ok := tagCategories[tag]; ok {
			return cat
		}
	}
	return Humanize(tags[0])
}

// DisplayCategory renders an empty category as a dash.
func DisplayCategory(category string) string {
	if category == "" {
		return NoCategory
	}
	return category
}

// Humanize turns a slug such as "entrega-atrasada" into "Entrega Atrasada".
// Only the first letter of each word is touched.
func Humanize(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	// Casers carry state and cannot be shared between goroutines.
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}

// Fold lower-cases s and strips diacritics so "Não Resolvida" becomes
// "nao resolvida".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
