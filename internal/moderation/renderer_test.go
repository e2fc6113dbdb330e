package moderation_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/wordguard/config"
	"github.com/tullo/wordguard/internal/models"
	"github.com/tullo/wordguard/internal/moderation"
	"go.uber.org/zap"
)

func newRenderer(store *memStore) *moderation.Renderer {
	return moderation.NewRenderer(store, config.DefaultTemplate, zap.NewNop()).
		WithRand(rand.New(rand.NewSource(1)))
}

func TestRenderDefaultTemplate(t *testing.T) {
	r := newRenderer(newMemStore())

	got := r.Render(context.Background(), 100, []string{"spam"}, "Bob")
	assert.Equal(t, "Hey, Bob, this word `spam` is banned!", got)
}

func TestRenderBothPlaceholders(t *testing.T) {
	store := newMemStore()
	store.templates[100] = []models.Template{{ChatID: 100, TemplateID: 1, Text: "{name}: no {word} here"}}
	r := newRenderer(store)

	got := r.Render(context.Background(), 100, []string{"damn"}, "Alice")
	assert.Equal(t, "Alice: no damn here", got)
	assert.NotContains(t, got, "{name}")
	assert.NotContains(t, got, "{word}")
}

func TestRenderPresentPlaceholdersOnly(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"name only", "Please stop, {name}.", "Please stop, Alice."},
		{"word only", "Banned: {word}", "Banned: spam, junk"},
		{"no placeholders", "Watch your language.", "Watch your language."},
		{"repeated placeholder", "{name} {name}", "Alice Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.templates[100] = []models.Template{{ChatID: 100, TemplateID: 1, Text: tt.text}}
			r := newRenderer(store)
			assert.Equal(t, tt.want, r.Render(context.Background(), 100, []string{"spam", "junk"}, "Alice"))
		})
	}
}

func TestRenderFallsBackToDefault(t *testing.T) {
	want := "Hey, Bob, this word `spam` is banned!"

	tests := []struct {
		name string
		text string
	}{
		{"unknown placeholder", "Hi {user}"},
		{"unclosed brace", "Hi {name"},
		{"empty tag", "Hi {}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.templates[100] = []models.Template{{ChatID: 100, TemplateID: 1, Text: tt.text}}
			r := newRenderer(store)
			assert.Equal(t, want, r.Render(context.Background(), 100, []string{"spam"}, "Bob"))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		store := newMemStore()
		store.failTemplates = true
		r := newRenderer(store)
		assert.Equal(t, want, r.Render(context.Background(), 100, []string{"spam"}, "Bob"))
	})
}

func TestRenderMisconfiguredDefault(t *testing.T) {
	r := moderation.NewRenderer(newMemStore(), "{name} said {word} {oops}", zap.NewNop())
	got := r.Render(context.Background(), 1, []string{"spam"}, "Bob")
	assert.True(t, strings.HasPrefix(got, "Bob said spam"), got)
}

func TestRenderChoosesUniformly(t *testing.T) {
	store := newMemStore()
	store.templates[100] = []models.Template{
		{ChatID: 100, TemplateID: 1, Text: "a"},
		{ChatID: 100, TemplateID: 2, Text: "b"},
		{ChatID: 100, TemplateID: 3, Text: "c"},
	}
	r := newRenderer(store)

	counts := map[string]int{}
	const rounds = 3000
	for i := 0; i < rounds; i++ {
		counts[r.Render(context.Background(), 100, []string{"x"}, "n")]++
	}

	require.Len(t, counts, 3)
	for text, n := range counts {
		assert.InDelta(t, rounds/3, n, 200, text)
	}
}

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		text    string
		wantErr bool
	}{
		{"Hey {name}, {word} is banned", false},
		{"No placeholders at all", false},
		{"{word}", false},
		{"", true},
		{"Hi {user}", true},
		{"Hi {name", true},
		{"Hi name}", true},
		{"{{name}}", true},
		{"literal {{braces}} here", true},
	}

	for _, tt := range tests {
		err := moderation.ValidateTemplate(tt.text)
		if tt.wantErr {
			require.Error(t, err, tt.text)
			_, ok := moderation.IsValidation(err)
			assert.True(t, ok, tt.text)
		} else {
			assert.NoError(t, err, tt.text)
		}
	}
}
