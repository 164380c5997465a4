package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cdash/internal/complaint"
)

func sample() []complaint.Record {
	return []complaint.Record{
		{ID: 1, Title: "Entrega atrasada", Text: "pedido parado", Status: "Não respondida",
			Tags: []string{"atraso-entrega"}, Sentiment: complaint.Ptr("Negativo"), UserName: complaint.Ptr("Ana")},
		{ID: 2, Title: "Cobrança", Text: "valor em dobro", Status: "Resolvido",
			Tags: []string{"cobranca-indevida"}, Sentiment: complaint.Ptr("Neutro")},
		{ID: 3, Title: "Produto", Text: "veio quebrado", Status: "Não respondida",
			Tags: []string{"produto-danificado"}, Sentiment: complaint.Ptr("Negativo"), UserName: complaint.Ptr("Bruno Entregador")},
		{ID: 4, Title: "Sem tags", Text: "outro assunto", Status: "Resolvido"},
	}
}

func ids(records []complaint.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []int64
	}{
		{"no constraint", New(), []int64{1, 2, 3, 4}},
		{"zero value matches all", State{}, []int64{1, 2, 3, 4}},
		{"search title case insensitive", New().WithSearch("ENTREGA"), []int64{1, 3}},
		{"search text", New().WithSearch("dobro"), []int64{2}},
		{"search user name", New().WithSearch("bruno"), []int64{3}},
		{"status exact", New().WithStatus("Resolvido"), []int64{2, 4}},
		{"status is not normalized", New().WithStatus("Resolvida"), []int64{}},
		{"category derived from tags", New().WithCategory("Financeiro"), []int64{2}},
		{"sentiment", New().WithSentiment(complaint.Ptr("Negativo")), []int64{1, 3}},
		{"conjunction", New().WithStatus("Não respondida").WithSearch("quebrado"), []int64{3}},
		{"no match", New().WithSearch("inexistente"), []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(sample(), tt.state)))
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	states := []State{
		New(),
		New().WithSearch("e"),
		New().WithStatus("Não respondida").WithSentiment(complaint.Ptr("Negativo")),
		New().WithCategory("Produto"),
	}

	for _, s := range states {
		once := Apply(sample(), s)
		twice := Apply(once, s)
		assert.Equal(t, once, twice)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sample()
	before := ids(in)
	_ = Apply(in, New().WithStatus("Resolvido"))
	assert.Equal(t, before, ids(in))
}

func TestSlotsAreIndependent(t *testing.T) {
	base := New().WithSearch("e").WithSentiment(complaint.Ptr("Negativo"))
	changed := base.WithStatus("Não respondida")

	assert.Equal(t, base.SearchTerm, changed.SearchTerm)
	assert.Equal(t, base.Sentiment, changed.Sentiment)
	assert.Equal(t, base.Category, changed.Category)

	// Rows that differ must be exactly the rows the status predicate rejects.
	without := Apply(sample(), base)
	with := Apply(sample(), changed)
	for _, r := range without {
		statusOK := r.Status == "Não respondida"
		assert.Equal(t, statusOK, contains(with, r.ID), "record %d", r.ID)
	}
	for _, r := range with {
		assert.True(t, contains(without, r.ID))
	}
}

func contains(records []complaint.Record, id int64) bool {
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func TestWithSentimentCopies(t *testing.T) {
	v := "Negativo"
	s := New().WithSentiment(&v)
	v = "Positivo"
	assert.Equal(t, "Negativo", *s.Sentiment)
	assert.Nil(t, s.WithSentiment(nil).Sentiment)
}

func TestActive(t *testing.T) {
	assert.False(t, New().Active())
	assert.True(t, New().WithCategory("Entrega").Active())
	assert.True(t, New().WithSearch("x").Active())
}

func TestOptions(t *testing.T) {
	statuses, categories := Options(sample())
	assert.Equal(t, []string{"Não respondida", "Resolvido"}, statuses)
	assert.Equal(t, []string{"Entrega", "Financeiro", "Produto"}, categories)

	statuses, categories = Options(nil)
	assert.Empty(t, statuses)
	assert.Empty(t, categories)
}
