package cache_test

import (
	"testing"

	"github.com/UnknownOlympus/geotweet/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "case and punctuation", input: "New York!", want: "new york"},
		{name: "already normalized", input: "new york", want: "new york"},
		{name: "collapses whitespace", input: "  San   Francisco,\tCA  ", want: "san francisco ca"},
		{name: "keeps digits", input: "Area 51", want: "area 51"},
		{name: "keeps non latin letters", input: "Київ, Україна", want: "київ україна"},
		{name: "only punctuation", input: "!!! ... ???", want: ""},
		{name: "empty", input: "", want: ""},
		{name: "inline coordinates", input: "iPhone: not-a-number", want: "iphone notanumber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cache.Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, cache.Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestNormalize_Insensitive(t *testing.T) {
	t.Parallel()
	assert.Equal(t, cache.Normalize("new york"), cache.Normalize("New York!"))
	assert.Equal(t, cache.Normalize("LONDON, UK"), cache.Normalize("london uk"))
	assert.Equal(t, "istanbul", cache.Normalize("İstanbul"))
}
